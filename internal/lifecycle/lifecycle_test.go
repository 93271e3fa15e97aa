package lifecycle

import "testing"

func TestParseAcceptsKnownStatuses(t *testing.T) {
	for _, raw := range []string{"Pending", "In Progress", "New Update", "Active", "Completed", "Rejected"} {
		status, err := Parse(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if string(status) != raw {
			t.Fatalf("expected %q, got %q", raw, status)
		}
	}
}

func TestParseRejectsUnknownStatus(t *testing.T) {
	for _, raw := range []string{"", "pending", "Done", "ACTIVE"} {
		if _, err := Parse(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestAfterCommentOwnerTriggersNewUpdate(t *testing.T) {
	if got := AfterComment(StatusActive, true); got != StatusNewUpdate {
		t.Fatalf("owner comment on Active: expected New Update, got %q", got)
	}
	if got := AfterComment(StatusCompleted, true); got != StatusNewUpdate {
		t.Fatalf("owner comment on Completed: expected New Update, got %q", got)
	}
}

func TestAfterCommentOwnerLeavesOtherStatuses(t *testing.T) {
	for _, status := range []Status{StatusPending, StatusInProgress, StatusNewUpdate, StatusRejected} {
		if got := AfterComment(status, true); got != status {
			t.Fatalf("owner comment on %q: expected unchanged, got %q", status, got)
		}
	}
}

func TestAfterCommentAdminNeverChangesStatus(t *testing.T) {
	for status := range known {
		if got := AfterComment(status, false); got != status {
			t.Fatalf("admin comment on %q: expected unchanged, got %q", status, got)
		}
	}
}
