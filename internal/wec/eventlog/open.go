package eventlog

import "fmt"

// Open resolves the configured backend ("json" or "sqlite") and opens the
// event log for the given workflow path under logDir.
func Open(backend, logDir, workflowPath string) (Log, error) {
	switch backend {
	case "", "json":
		return OpenJSONLog(JSONLogPath(logDir, workflowPath))
	case "sqlite":
		return OpenSQLiteLog(SQLiteLogPath(logDir, workflowPath))
	default:
		return nil, fmt.Errorf("unknown event log backend %q", backend)
	}
}
