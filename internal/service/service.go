package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/foldersync/internal/compiler"
	"github.com/roach88/foldersync/internal/engine"
	"github.com/roach88/foldersync/internal/model"
	"github.com/roach88/foldersync/internal/store"
)

// SchemaSource fetches a data folder's schema. A nil spec with a nil error
// means the folder has no schema.
type SchemaSource interface {
	FetchSchemaSpec(ctx context.Context, workbookID, folderID string, actor model.Actor) (*model.SchemaSpec, error)
}

// CompatibilityFunc decides whether records of the source schema can be
// written to the destination schema through fieldMap (source column to
// destination column). It is only called when both schemas exist.
type CompatibilityFunc func(source, destination *model.SchemaSpec, fieldMap map[string]string) bool

// LooseCompatibility accepts every mapping.
func LooseCompatibility(_, _ *model.SchemaSpec, _ map[string]string) bool {
	return true
}

// Service is the sync configuration service.
type Service struct {
	store      *store.Store
	schemas    SchemaSource
	ids        engine.IDGenerator
	clock      engine.Clock
	compatible CompatibilityFunc
	logger     *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithIDGenerator sets the generator for new sync ids.
func WithIDGenerator(g engine.IDGenerator) Option {
	return func(s *Service) {
		s.ids = g
	}
}

// WithClock sets the clock used for created/updated timestamps.
func WithClock(c engine.Clock) Option {
	return func(s *Service) {
		s.clock = c
	}
}

// WithCompatibility replaces the folder compatibility check.
func WithCompatibility(f CompatibilityFunc) Option {
	return func(s *Service) {
		s.compatible = f
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// New creates a Service. schemas may be nil when ValidateFolderMapping is
// not used.
func New(st *store.Store, schemas SchemaSource, opts ...Option) *Service {
	s := &Service{
		store:      st,
		schemas:    schemas,
		ids:        engine.UUIDv7Generator{},
		clock:      engine.SystemClock{},
		compatible: LooseCompatibility,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSync validates def and stores it as a new sync of the workbook.
func (s *Service) CreateSync(ctx context.Context, workbookID string, def model.SyncDefinition, actor model.Actor) (*model.Sync, error) {
	if workbookID == "" {
		return nil, fmt.Errorf("create sync: workbook id is required: %w", model.ErrBadConfiguration)
	}
	if err := validate(def); err != nil {
		return nil, fmt.Errorf("create sync %q: %w", def.Name, err)
	}

	now := s.clock.Now()
	sync := model.Sync{
		ID:            s.ids.Generate(),
		WorkbookID:    workbookID,
		Name:          def.Name,
		TableMappings: def.TableMappings,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.CreateSync(ctx, sync); err != nil {
		return nil, err
	}

	s.logger.Info("sync created",
		"sync_id", sync.ID,
		"workbook_id", workbookID,
		"name", sync.Name,
		"table_mappings", len(sync.TableMappings),
		"actor", actor.UserID)
	return &sync, nil
}

// UpdateSync replaces the name and table mappings of an existing sync.
// Remote identity rows are kept, so records already created keep being
// updated in place.
func (s *Service) UpdateSync(ctx context.Context, syncID string, def model.SyncDefinition, actor model.Actor) (*model.Sync, error) {
	existing, err := s.store.GetSync(ctx, syncID)
	if err != nil {
		return nil, err
	}
	if err := validate(def); err != nil {
		return nil, fmt.Errorf("update sync %s: %w", syncID, err)
	}

	existing.Name = def.Name
	existing.TableMappings = def.TableMappings
	existing.UpdatedAt = s.clock.Now()
	if err := s.store.UpdateSync(ctx, *existing); err != nil {
		return nil, err
	}

	s.logger.Info("sync updated",
		"sync_id", syncID,
		"name", existing.Name,
		"table_mappings", len(existing.TableMappings),
		"actor", actor.UserID)
	return existing, nil
}

// ApplySync creates the workbook's sync named def.Name, or updates it when
// it exists. The second return value reports whether it was created.
func (s *Service) ApplySync(ctx context.Context, workbookID string, def model.SyncDefinition, actor model.Actor) (*model.Sync, bool, error) {
	existing, err := s.store.FindSyncByName(ctx, workbookID, def.Name)
	switch {
	case errors.Is(err, model.ErrNotFound):
		sync, err := s.CreateSync(ctx, workbookID, def, actor)
		return sync, true, err
	case err != nil:
		return nil, false, err
	}

	sync, err := s.UpdateSync(ctx, existing.ID, def, actor)
	return sync, false, err
}

// DeleteSync removes a sync together with its identity rows and history.
func (s *Service) DeleteSync(ctx context.Context, syncID string, actor model.Actor) error {
	if err := s.store.DeleteSync(ctx, syncID); err != nil {
		return err
	}
	s.logger.Info("sync deleted", "sync_id", syncID, "actor", actor.UserID)
	return nil
}

// GetSync returns one sync, or model.ErrNotFound.
func (s *Service) GetSync(ctx context.Context, syncID string, _ model.Actor) (*model.Sync, error) {
	return s.store.GetSync(ctx, syncID)
}

// FindAllForWorkbook returns the workbook's syncs ordered by name.
func (s *Service) FindAllForWorkbook(ctx context.Context, workbookID string, _ model.Actor) ([]model.Sync, error) {
	return s.store.ListSyncs(ctx, workbookID)
}

// ValidateFolderMapping reports whether records of the source folder can be
// written to the destination folder through fieldMap.
//
// When either folder has no schema the mapping is accepted. Otherwise the
// configured CompatibilityFunc decides. Fetch failures are returned as
// errors, not as false.
func (s *Service) ValidateFolderMapping(ctx context.Context, workbookID, sourceID, destinationID string, fieldMap map[string]string, actor model.Actor) (bool, error) {
	if s.schemas == nil {
		return false, errors.New("validate folder mapping: no schema source configured")
	}

	source, err := s.schemas.FetchSchemaSpec(ctx, workbookID, sourceID, actor)
	if err != nil {
		return false, fmt.Errorf("validate folder mapping: source schema: %w", err)
	}
	destination, err := s.schemas.FetchSchemaSpec(ctx, workbookID, destinationID, actor)
	if err != nil {
		return false, fmt.Errorf("validate folder mapping: destination schema: %w", err)
	}

	if source == nil || destination == nil {
		s.logger.Debug("folder mapping accepted without schema",
			"source", sourceID,
			"destination", destinationID,
			"source_schema", source != nil,
			"destination_schema", destination != nil)
		return true, nil
	}

	ok := s.compatible(source, destination, fieldMap)
	s.logger.Debug("folder mapping checked",
		"source", sourceID,
		"destination", destinationID,
		"compatible", ok)
	return ok, nil
}

// validate runs compiler.Validate and joins its findings into one error
// wrapping model.ErrBadConfiguration.
func validate(def model.SyncDefinition) error {
	verrs := compiler.Validate(def)
	if len(verrs) == 0 {
		return nil
	}
	errs := make([]error, 0, len(verrs)+1)
	errs = append(errs, model.ErrBadConfiguration)
	for _, e := range verrs {
		errs = append(errs, e)
	}
	return errors.Join(errs...)
}
