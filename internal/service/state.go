package service

import (
	"time"

	"github.com/timmy/immiframe/internal/domain"
)

// State is the orchestrator's position in its run cycle.
type State string

const (
	StateIdle            State = "idle"
	StateAwaitingTrigger State = "awaiting_trigger"
	StateRunning         State = "running"
	StateCommitting      State = "committing"
	StateAborting        State = "aborting"
)

// Triggers recorded on each run.
const (
	TriggerStartup  = "startup"
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
	TriggerOnce     = "once"
)

// ScheduleState is the in-memory schedule bookkeeping. Only the rotation
// indexes survive a restart; they are reloaded from the state database.
type ScheduleState struct {
	Expression     string    `json:"expression"`
	NextFire       time.Time `json:"next_fire,omitempty"`
	LastFire       time.Time `json:"last_fire,omitempty"`
	RotationIndex  int       `json:"rotation_index"`
	FilterSetIndex int       `json:"filter_set_index"`
}

// Status is a point-in-time snapshot for the status API.
type Status struct {
	State    State              `json:"state"`
	Schedule ScheduleState      `json:"schedule"`
	LastRun  *domain.RunOutcome `json:"-"`
}
