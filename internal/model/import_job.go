package model

const (
	ImportJobWaiting   = "waiting"
	ImportJobActive    = "active"
	ImportJobCompleted = "completed"
	ImportJobFailed    = "failed"
)

// ImportError is one entry of ImportResult.ErrorDetails. Line is the 1-based
// file line (first data row = 2), except for an aggregated batch insert
// failure where it holds the 0-based starting index of the failed batch.
type ImportError struct {
	Line  int    `json:"line"`
	Field string `json:"field,omitempty"`
	Value string `json:"value,omitempty"`
	Error string `json:"error"`
}

// ImportResult is the aggregate outcome of one import run. Invariant:
// Success + Duplicates + Errors == Total.
type ImportResult struct {
	Total        int           `json:"total"`
	Success      int           `json:"success"`
	Duplicates   int           `json:"duplicates"`
	Errors       int           `json:"errors"`
	ErrorDetails []ImportError `json:"errorDetails"`
}

// ImportJob is the durable record of one queued import. The payload carries
// the already-parsed rows plus the run configuration so the worker replays
// the exact per-row algorithm outside the request cycle.
type ImportJob struct {
	ID             string
	OrganizationID string
	UserID         string
	Status         string
	Progress       int
	Total          int
	Attempts       int
	MaxAttempts    int
	Payload        []byte
	Result         *ImportResult
	LastError      string
	NextRunAt      int64
	Ctime          int64
	Mtime          int64
}
