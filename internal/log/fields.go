package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldOwner      = "owner"
	FieldPeriod     = "period"
	FieldCriterion  = "criterion"
	FieldClosureID  = "closure_id"
	FieldVersion    = "version"
	FieldRowRef     = "row_ref"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentClosure   = "closure"
	ComponentReset     = "reset"
	ComponentKpi       = "kpi"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentArchive   = "archive"
	ComponentRateLimit = "rate_limit"
)

// Operations defines standard operation names
const (
	OpPreview  = "preview"
	OpGenerate = "generate"
	OpReset    = "reset"
	OpPatch    = "patch"
	OpDelete   = "delete"
	OpList     = "list"
	OpArchive  = "archive"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)
