package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/foldersync/internal/compiler"
	"github.com/roach88/foldersync/internal/engine"
	"github.com/roach88/foldersync/internal/model"
	"github.com/roach88/foldersync/internal/service"
	"github.com/roach88/foldersync/internal/store"
	"github.com/roach88/foldersync/internal/testutil"
)

// Actor is the actor every scenario runs as.
var Actor = model.Actor{UserID: "harness"}

// Harness is the scenario execution environment: a fresh store, an
// in-memory workbook and an engine wired with deterministic ids and clock.
type Harness struct {
	store    *store.Store
	workbook *testutil.MemoryWorkbook
	service  *service.Service
	engine   *engine.Engine
	logger   *slog.Logger
}

// Run executes a scenario and returns the result.
//
// A returned error means the scenario could not be executed (bad specs,
// invalid sync definition). Expectation failures are reported in
// Result.Errors instead.
//
// Execution flow:
//  1. Create a fresh in-memory database and workbook
//  2. Compile the specs and apply the selected sync definition
//  3. For each step: edit files, run the sync, check the expect clause
//  4. Evaluate assertions against the final state
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	def, err := loadDefinition(scenario)
	if err != nil {
		return nil, err
	}

	h := newHarness(st, scenario)
	ctx := context.Background()

	sync, err := h.service.CreateSync(ctx, h.workbook.ID(), *def, Actor)
	if err != nil {
		return nil, fmt.Errorf("failed to apply sync %q: %w", def.Name, err)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		h.executeStep(ctx, i, step, sync.ID, result)
	}

	result.Files = h.workbook.Files()
	result.Commits = len(h.workbook.Commits())

	actx := &AssertionContext{
		Ctx:      ctx,
		Store:    st,
		SyncID:   sync.ID,
		Workbook: h.workbook,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

func newHarness(st *store.Store, scenario *Scenario) *Harness {
	workbookID := scenario.Workbook
	if workbookID == "" {
		workbookID = DefaultWorkbookID
	}

	wb := testutil.NewMemoryWorkbook(workbookID)
	for _, f := range scenario.Folders {
		name, path := f.Name, f.Path
		if name == "" {
			name = f.ID
		}
		if path == "" {
			path = f.ID
		}
		wb.AddFolder(f.ID, name, path)
		wb.SetSchema(f.ID, f.Schema)
	}
	for p, content := range scenario.Files {
		wb.PutFile(p, content)
	}

	clock := testutil.NewDeterministicClock()
	logger := slog.New(slog.DiscardHandler)

	return &Harness{
		store:    st,
		workbook: wb,
		service: service.New(st, wb,
			service.WithIDGenerator(testutil.NewSequenceGenerator("sync")),
			service.WithClock(clock),
			service.WithLogger(logger),
		),
		engine: engine.New(st, wb, wb,
			engine.WithFileIDGenerator(testutil.NewSequenceGenerator("new")),
			engine.WithRunIDGenerator(testutil.NewSequenceGenerator("run")),
			engine.WithClock(clock),
			engine.WithLogger(logger),
		),
		logger: logger,
	}
}

// executeStep applies the step's file edits, runs the sync and validates
// the expect clause.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, syncID string, result *Result) {
	for _, p := range step.Delete {
		h.workbook.DeleteFile(p)
	}
	for p, content := range step.Put {
		h.workbook.PutFile(p, content)
	}

	tables, err := h.engine.RunSync(ctx, syncID, Actor)
	sr := StepResult{Step: i, Tables: tables}
	if sr.Tables == nil {
		sr.Tables = []model.SyncTableMappingResult{}
	}
	if err != nil {
		sr.Fatal = err.Error()
	}
	result.Steps = append(result.Steps, sr)

	for _, msg := range checkExpect(sr, step.Expect) {
		result.AddError(fmt.Sprintf("steps[%d]: %s", i, msg))
	}

	h.logger.Info("step completed", "step", i, "tables", len(sr.Tables), "fatal", sr.Fatal)
}

// checkExpect compares a step result against its expect clause.
func checkExpect(sr StepResult, expect *ExpectClause) []string {
	if expect == nil {
		expect = &ExpectClause{}
	}

	var errs []string
	switch {
	case expect.Fatal == "" && sr.Fatal != "":
		return []string{fmt.Sprintf("unexpected fatal error: %s", sr.Fatal)}
	case expect.Fatal != "" && sr.Fatal == "":
		errs = append(errs, fmt.Sprintf("expected fatal error containing %q, run succeeded", expect.Fatal))
	case expect.Fatal != "" && !strings.Contains(sr.Fatal, expect.Fatal):
		errs = append(errs, fmt.Sprintf("expected fatal error containing %q, got %q", expect.Fatal, sr.Fatal))
	}

	created, updated, recErrs := sr.Totals()
	if expect.Created != nil && *expect.Created != created {
		errs = append(errs, fmt.Sprintf("expected %d created, got %d", *expect.Created, created))
	}
	if expect.Updated != nil && *expect.Updated != updated {
		errs = append(errs, fmt.Sprintf("expected %d updated, got %d", *expect.Updated, updated))
	}
	if expect.Errors != nil && *expect.Errors != len(recErrs) {
		errs = append(errs, fmt.Sprintf("expected %d record errors, got %d: %v", *expect.Errors, len(recErrs), recErrs))
	}
	for _, want := range expect.ErrorContains {
		found := false
		for _, e := range recErrs {
			if strings.Contains(e.Error, want) {
				found = true
				break
			}
		}
		if !found {
			errs = append(errs, fmt.Sprintf("no record error contains %q", want))
		}
	}
	return errs
}

// loadDefinition compiles the scenario's spec files and selects the sync
// definition it names.
func loadDefinition(scenario *Scenario) (*model.SyncDefinition, error) {
	ctx := cuecontext.New()

	var defs []model.SyncDefinition
	for _, specPath := range scenario.Specs {
		data, err := os.ReadFile(specPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read spec: %w", err)
		}
		v := ctx.CompileBytes(data, cue.Filename(specPath))
		if err := v.Err(); err != nil {
			return nil, fmt.Errorf("failed to compile %s: %w", specPath, err)
		}
		compiled, errs := compiler.CompileSyncs(v)
		if len(errs) > 0 {
			return nil, fmt.Errorf("failed to compile %s: %w", specPath, errors.Join(errs...))
		}
		defs = append(defs, compiled...)
	}

	if scenario.Sync == "" {
		if len(defs) != 1 {
			return nil, fmt.Errorf("specs define %d syncs; name one with the sync field", len(defs))
		}
		return &defs[0], nil
	}
	for i := range defs {
		if defs[i].Name == scenario.Sync {
			return &defs[i], nil
		}
	}
	return nil, fmt.Errorf("sync %q not found in specs", scenario.Sync)
}
