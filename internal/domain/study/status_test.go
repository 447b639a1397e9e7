package study

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

var testActor = uuid.MustParse("6f9619ff-8b86-4d01-b42d-00cf4fc964ff")

func TestCategory(t *testing.T) {
	tests := []struct {
		status WorkflowStatus
		want   Category
	}{
		{StatusNewStudyReceived, CategoryPending},
		{StatusPendingAssignment, CategoryPending},
		{StatusAssignedToDoctor, CategoryInProgress},
		{StatusReportDownloadedRadiologist, CategoryInProgress},
		{StatusReportDownloaded, CategoryInProgress},
		{StatusDoctorOpenedReport, CategoryInProgress},
		{StatusReportInProgress, CategoryInProgress},
		{StatusReportUploaded, CategoryInProgress},
		{StatusReportFinalized, CategoryInProgress},
		{StatusReportDrafted, CategoryInProgress},
		{StatusFinalReportDownloaded, CategoryCompleted},
		{WorkflowStatus("garbage"), CategoryUnknown},
		{WorkflowStatus(""), CategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.Category(); got != tt.want {
				t.Errorf("Category(%q) = %q, want %q", tt.status, got, tt.want)
			}
		})
	}
}

func TestRank(t *testing.T) {
	if got := StatusNewStudyReceived.Rank(); got != 0 {
		t.Errorf("Rank(new_study_received) = %d, want 0", got)
	}
	if got := StatusFinalReportDownloaded.Rank(); got != 9 {
		t.Errorf("Rank(final_report_downloaded) = %d, want 9", got)
	}
	if got := StatusReportDrafted.Rank(); got != -1 {
		t.Errorf("Rank(report_drafted) = %d, want -1 (off the canonical ladder)", got)
	}
	if got := WorkflowStatus("bogus").Rank(); got != -1 {
		t.Errorf("Rank(bogus) = %d, want -1", got)
	}
}

func TestAdvanceStatusForwardOnly(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		current   WorkflowStatus
		candidate WorkflowStatus
		applied   bool
		want      WorkflowStatus
	}{
		{"forward one step", StatusNewStudyReceived, StatusPendingAssignment, true, StatusPendingAssignment},
		{"forward skipping steps", StatusAssignedToDoctor, StatusReportFinalized, true, StatusReportFinalized},
		{"backward rejected", StatusReportFinalized, StatusAssignedToDoctor, false, StatusReportFinalized},
		{"same status rejected", StatusReportInProgress, StatusReportInProgress, false, StatusReportInProgress},
		{"unknown candidate rejected", StatusAssignedToDoctor, WorkflowStatus("bogus"), false, StatusAssignedToDoctor},
		{"legacy candidate rejected", StatusAssignedToDoctor, StatusReportDrafted, false, StatusAssignedToDoctor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Study{WorkflowStatus: tt.current}
			applied := s.AdvanceStatus(tt.candidate, testActor, "", now)
			if applied != tt.applied {
				t.Errorf("AdvanceStatus applied = %v, want %v", applied, tt.applied)
			}
			if s.WorkflowStatus != tt.want {
				t.Errorf("WorkflowStatus = %q, want %q", s.WorkflowStatus, tt.want)
			}
		})
	}
}

// Every rejected candidate must leave the status exactly where it was, for
// every ordered pair on the ladder.
func TestAdvanceStatusNeverRegresses(t *testing.T) {
	now := time.Now().UTC()
	for i, current := range canonicalOrder {
		for j, candidate := range canonicalOrder {
			s := &Study{WorkflowStatus: current}
			applied := s.AdvanceStatus(candidate, testActor, "", now)
			if j > i && !applied {
				t.Errorf("advance %q -> %q should apply", current, candidate)
			}
			if j <= i && applied {
				t.Errorf("advance %q -> %q should be rejected", current, candidate)
			}
			if !applied && s.WorkflowStatus != current {
				t.Errorf("rejected advance mutated status: %q -> %q", current, s.WorkflowStatus)
			}
		}
	}
}

func TestAdvanceStatusAppendsHistory(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := &Study{WorkflowStatus: StatusNewStudyReceived}

	if !s.AdvanceStatus(StatusAssignedToDoctor, testActor, "assigned", now) {
		t.Fatal("advance should apply")
	}
	if len(s.StatusHistory) != 1 {
		t.Fatalf("history length = %d, want 1", len(s.StatusHistory))
	}
	entry := s.StatusHistory[0]
	if entry.Status != StatusAssignedToDoctor || entry.ChangedBy != testActor || !entry.ChangedAt.Equal(now) || entry.Note != "assigned" {
		t.Errorf("unexpected history entry: %+v", entry)
	}

	// A rejected candidate must not touch the history.
	s.AdvanceStatus(StatusPendingAssignment, testActor, "", now)
	if len(s.StatusHistory) != 1 {
		t.Errorf("rejected advance appended history: length = %d", len(s.StatusHistory))
	}
}

func TestResetToPendingAssignment(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := &Study{WorkflowStatus: StatusReportInProgress}

	s.ResetToPendingAssignment(testActor, now)

	if s.WorkflowStatus != StatusPendingAssignment {
		t.Errorf("WorkflowStatus = %q, want %q", s.WorkflowStatus, StatusPendingAssignment)
	}
	if len(s.StatusHistory) != 1 || s.StatusHistory[0].Status != StatusPendingAssignment {
		t.Errorf("reset did not record history: %+v", s.StatusHistory)
	}
}

func TestNoteHistoryKeepsStatus(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := &Study{WorkflowStatus: StatusReportInProgress}

	s.NoteHistory(testActor, "assignment updated", now)

	if s.WorkflowStatus != StatusReportInProgress {
		t.Errorf("NoteHistory changed status to %q", s.WorkflowStatus)
	}
	if len(s.StatusHistory) != 1 || s.StatusHistory[0].Status != StatusReportInProgress {
		t.Errorf("unexpected history: %+v", s.StatusHistory)
	}
}
