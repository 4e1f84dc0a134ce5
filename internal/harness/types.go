package harness

import "github.com/roach88/foldersync/internal/model"

// StepResult is the outcome of one sync run.
type StepResult struct {
	Step   int                            `json:"step"`
	Tables []model.SyncTableMappingResult `json:"tables"`
	Fatal  string                         `json:"fatal,omitempty"`
}

// Totals sums counts over every table mapping of the run.
func (r StepResult) Totals() (created, updated int, errs []model.RecordError) {
	for _, t := range r.Tables {
		created += t.RecordsCreated
		updated += t.RecordsUpdated
		errs = append(errs, t.Errors...)
	}
	return created, updated, errs
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Steps holds one entry per executed step.
	Steps []StepResult `json:"steps"`

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Files is the final workbook content, path -> content.
	Files map[string]string `json:"files"`

	// Commits is the number of commits written.
	Commits int `json:"commits"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepResult{},
		Errors: []string{},
		Files:  make(map[string]string),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
