package jobs

// Status represents the lifecycle state of a crawl job in the
// crawl_jobs table. These values must match the text values
// stored in the database (crawl_jobs.status).
//
// Transitions are one-way: pending -> running -> completed|failed.
// Centralizing these here avoids scattering string literals like
// "pending" or "completed" across packages.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether a job in this status can never change again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}
