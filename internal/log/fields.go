package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldHouseholdID = "household_id"
	FieldUserID      = "user_id"
	FieldRecordID    = "record_id"
	FieldGoalID      = "goal_id"
	FieldAmount      = "amount"
	FieldTitle       = "title"
	FieldCategory    = "category"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentLedger    = "ledger"
	ComponentHousehold = "household"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentExport    = "export"
	ComponentCache     = "cache"
)

// Operations defines standard operation names
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpList   = "list"
	OpJoin   = "join"
	OpFund   = "fund"
	OpExport = "export"
)
