package logger

// Standard field keys. Use these consistently so that logs can be queried.
const (
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	KeyOperation = "operation"  // public client operation: download, list, ...
	KeyCommand   = "command"    // SMB2 command
	KeyMessageID = "message_id" // SMB2 message id
	KeyAsyncID   = "async_id"
	KeyCredits   = "credits"
	KeyCharge    = "charge"
	KeyStatus    = "status"

	KeyServer    = "server"
	KeyDialect   = "dialect"
	KeySessionID = "session_id"
	KeyTreeID    = "tree_id"
	KeyShare     = "share"
	KeyUsername  = "username"
	KeyDomain    = "domain"

	KeyPath    = "path"
	KeyOldPath = "old_path"
	KeyNewPath = "new_path"
	KeyOffset  = "offset"
	KeyBytes   = "bytes"
	KeyFiles   = "files"

	KeyError = "error"
)

// Err returns an error attribute pair suitable for the variadic args.
func Err(err error) []any {
	if err == nil {
		return nil
	}
	return []any{KeyError, err.Error()}
}
