// Package lifecycle holds the request status enum and the rules for
// status changes that are not plain admin overrides.
package lifecycle

import "fmt"

type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusNewUpdate  Status = "New Update"
	StatusActive     Status = "Active"
	StatusCompleted  Status = "Completed"
	StatusRejected   Status = "Rejected"
)

// Initial is the status every request starts in.
const Initial = StatusPending

var known = map[Status]struct{}{
	StatusPending:    {},
	StatusInProgress: {},
	StatusNewUpdate:  {},
	StatusActive:     {},
	StatusCompleted:  {},
	StatusRejected:   {},
}

func Parse(raw string) (Status, error) {
	status := Status(raw)
	if _, ok := known[status]; !ok {
		return "", fmt.Errorf("unknown status %q", raw)
	}
	return status, nil
}

func Valid(status Status) bool {
	_, ok := known[status]
	return ok
}

// AfterComment returns the status a request should hold after a comment is
// appended. An owner comment on an Active or Completed request flags it for
// re-review; every other comment leaves the status alone. Admin status
// changes go through their own path and are not constrained here.
func AfterComment(current Status, byOwner bool) Status {
	if byOwner && (current == StatusActive || current == StatusCompleted) {
		return StatusNewUpdate
	}
	return current
}
