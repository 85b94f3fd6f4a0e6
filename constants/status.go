package constants

// RunStatus is the canonical status for rows in extraction_runs.
type RunStatus string

// Stable values (store these exact strings in DB).
const (
	RunStatusValid   RunStatus = "VALID"   // the result is valid
	RunStatusPartial RunStatus = "PARTIAL" // some chunks validated, others did not
	RunStatusFailed  RunStatus = "FAILED"  // no chunk produced a valid record
)
