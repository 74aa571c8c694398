package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Tracing fields carried on the context logger through a run.
const (
	// FieldRunID identifies one orchestrator run (UUID)
	FieldRunID = "run_id"

	// FieldRequestID is the HTTP request ID on the status API
	FieldRequestID = "request_id"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldTrigger is what started a run: startup, schedule, manual
	FieldTrigger = "trigger"

	// FieldStrategy is the theme strategy name
	FieldStrategy = "strategy"

	// FieldMode is the selection mode
	FieldMode = "mode"

	// FieldFilterSet is the selection filter set of a run
	FieldFilterSet = "filter_set"

	// FieldAssetID is the remote asset identifier
	FieldAssetID = "asset_id"

	// FieldOrdinal is the publish slot of an asset
	FieldOrdinal = "ordinal"
)

// Metric fields used with the Entry API for aggregation.
const (
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	FieldSize       = "size"
	FieldStatus     = "status"
)
