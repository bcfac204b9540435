package models

// Status is the lifecycle status of the most recent session operation.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusLoading   Status = "loading"
	StatusUpdating  Status = "updating"
	StatusSucceeded Status = "succeeded"
	StatusUpdated   Status = "updated"
	StatusFailed    Status = "failed"
)

// InFlight reports whether a request is pending.
func (s Status) InFlight() bool {
	return s == StatusLoading || s == StatusUpdating
}

func (s Status) String() string {
	return string(s)
}
