package domain

import "time"

// RunStatus classifies the outcome of a run.
// Values include RunStatusSuccess, RunStatusPartial, and RunStatusFailed.
type RunStatus string

const (
	RunStatusSuccess RunStatus = "success"
	RunStatusPartial RunStatus = "partial"
	RunStatusFailed  RunStatus = "failed"
)

// RunOutcome summarises one run for logging and the status API.
type RunOutcome struct {
	RunID      string
	Trigger    string
	Status     RunStatus
	Theme      Theme
	FilterSet  string
	Requested  int
	Cached     int
	Skipped    int
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Committed reports whether the run published a new Generation.
func (o *RunOutcome) Committed() bool {
	return o.Status == RunStatusSuccess || o.Status == RunStatusPartial
}

// Duration returns the wall time the run took.
func (o *RunOutcome) Duration() time.Duration {
	return o.FinishedAt.Sub(o.StartedAt)
}

// RunRecord is the persisted form of a RunOutcome.
type RunRecord struct {
	ID          string    `gorm:"type:text;primaryKey" json:"id"`
	Trigger     string    `gorm:"type:text" json:"trigger"`
	Status      RunStatus `gorm:"type:text;index" json:"status"`
	Theme       string    `gorm:"type:text" json:"theme"`
	ThemeSource string    `gorm:"type:text" json:"theme_source"`
	FilterSet   string    `gorm:"type:text" json:"filter_set,omitempty"`
	Requested   int       `json:"requested"`
	Cached      int       `json:"cached"`
	Skipped     int       `json:"skipped"`
	ErrorLog    string    `gorm:"type:text" json:"error_log,omitempty"`
	StartedAt   time.Time `gorm:"index" json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	DurationMs  int64     `json:"duration_ms"`
}

// TableName returns the database table name for RunRecord.
func (RunRecord) TableName() string {
	return "run_records"
}

// NewRunRecord converts an outcome into its persisted form.
func NewRunRecord(o *RunOutcome) *RunRecord {
	rec := &RunRecord{
		ID:          o.RunID,
		Trigger:     o.Trigger,
		Status:      o.Status,
		Theme:       o.Theme.Text,
		ThemeSource: o.Theme.Source,
		FilterSet:   o.FilterSet,
		Requested:   o.Requested,
		Cached:      o.Cached,
		Skipped:     o.Skipped,
		StartedAt:   o.StartedAt,
		FinishedAt:  o.FinishedAt,
		DurationMs:  o.Duration().Milliseconds(),
	}
	if o.Err != nil {
		rec.ErrorLog = o.Err.Error()
	}
	return rec
}

// RotationState is the durable static-rotation counter for one theme strategy.
type RotationState struct {
	Strategy  string    `gorm:"type:text;primaryKey" json:"strategy"`
	Index     int       `gorm:"column:rotation_index;default:0" json:"index"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for RotationState.
func (RotationState) TableName() string {
	return "rotation_states"
}
