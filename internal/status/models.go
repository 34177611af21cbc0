package status

import "time"

// Status is the last observed state of a derived file.
type Status string

const (
	// StatusBuilt means the file existed when the record was last written.
	StatusBuilt Status = "built"
	// StatusMissing means the file was absent when the record was last written.
	StatusMissing Status = "missing"
)

// Record is one row of the status store.
type Record struct {
	Filepath  string
	Status    Status
	PID       string
	Session   string
	Task      string
	Direction string
	DataKind  string
	FileKind  string
	UpdatedAt time.Time
}

// Filter narrows Query and Summaries. Empty fields match all values.
type Filter struct {
	Task     string
	FileKind string
	DataKind string
}

// BatchResult summarizes one UpsertBatch commit.
type BatchResult struct {
	Built   int
	Missing int
}

// Total returns the number of records written.
func (r BatchResult) Total() int {
	return r.Built + r.Missing
}

// Summary is one row of the grouped status overview.
type Summary struct {
	Task     string
	DataKind string
	FileKind string
	Built    int
	Missing  int
}
