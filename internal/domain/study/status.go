package study

import (
	"time"

	"github.com/google/uuid"
)

// WorkflowStatus is the stage a study's report has reached. Statuses only
// move forward along the canonical order below; the single sanctioned
// backward transition is ResetToPendingAssignment when the last assignment
// is removed.
type WorkflowStatus string

const (
	StatusNewStudyReceived            WorkflowStatus = "new_study_received"
	StatusPendingAssignment           WorkflowStatus = "pending_assignment"
	StatusAssignedToDoctor            WorkflowStatus = "assigned_to_doctor"
	StatusReportDownloadedRadiologist WorkflowStatus = "report_downloaded_radiologist"
	StatusReportDownloaded            WorkflowStatus = "report_downloaded"
	StatusDoctorOpenedReport          WorkflowStatus = "doctor_opened_report"
	StatusReportInProgress            WorkflowStatus = "report_in_progress"
	StatusReportUploaded              WorkflowStatus = "report_uploaded"
	StatusReportFinalized             WorkflowStatus = "report_finalized"
	StatusFinalReportDownloaded       WorkflowStatus = "final_report_downloaded"

	// StatusReportDrafted predates the canonical ladder. It still appears in
	// historical rows and must categorize as inprogress, but it is not a
	// valid AdvanceStatus candidate.
	StatusReportDrafted WorkflowStatus = "report_drafted"
)

// canonicalOrder fixes the forward ordering of statuses.
var canonicalOrder = []WorkflowStatus{
	StatusNewStudyReceived,
	StatusPendingAssignment,
	StatusAssignedToDoctor,
	StatusReportDownloadedRadiologist,
	StatusReportDownloaded,
	StatusDoctorOpenedReport,
	StatusReportInProgress,
	StatusReportUploaded,
	StatusReportFinalized,
	StatusFinalReportDownloaded,
}

var statusRank = func() map[WorkflowStatus]int {
	m := make(map[WorkflowStatus]int, len(canonicalOrder))
	for i, s := range canonicalOrder {
		m[s] = i
	}
	return m
}()

func (s WorkflowStatus) IsValid() bool {
	_, ok := statusRank[s]
	return ok
}

// Rank returns the position of s in the canonical order, or -1 for statuses
// outside it (legacy values and garbage).
func (s WorkflowStatus) Rank() int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return -1
}

// Category is the coarse grouping dashboards bucket studies by. It is always
// derived from the status, never stored.
type Category string

const (
	CategoryPending    Category = "pending"
	CategoryInProgress Category = "inprogress"
	CategoryCompleted  Category = "completed"
	CategoryUnknown    Category = "unknown"
)

func (s WorkflowStatus) Category() Category {
	switch s {
	case StatusNewStudyReceived, StatusPendingAssignment:
		return CategoryPending
	case StatusAssignedToDoctor, StatusDoctorOpenedReport, StatusReportInProgress,
		StatusReportFinalized, StatusReportDrafted, StatusReportUploaded,
		StatusReportDownloadedRadiologist, StatusReportDownloaded:
		return CategoryInProgress
	case StatusFinalReportDownloaded:
		return CategoryCompleted
	default:
		return CategoryUnknown
	}
}

// StatusHistoryEntry is an immutable record of a status change. History is
// append-only; entries are never rewritten.
type StatusHistoryEntry struct {
	Status    WorkflowStatus `json:"status"`
	ChangedAt time.Time      `json:"changedAt"`
	ChangedBy uuid.UUID      `json:"changedBy"`
	Note      string         `json:"note,omitempty"`
}

// AdvanceStatus applies candidate only when it sits at or beyond the current
// status on the canonical ladder. A regressive or unknown candidate leaves
// the status untouched and returns false; callers log the no-op but must not
// treat it as an error. Applying appends one history entry.
func (s *Study) AdvanceStatus(candidate WorkflowStatus, actor uuid.UUID, note string, now time.Time) bool {
	cr := candidate.Rank()
	if cr < 0 {
		return false
	}
	if cr < s.WorkflowStatus.Rank() {
		return false
	}
	if candidate == s.WorkflowStatus {
		// Re-applying the current status is a no-op: no history entry, no
		// version churn. Callers that want a trail entry use NoteHistory.
		return false
	}
	s.WorkflowStatus = candidate
	s.appendHistory(candidate, actor, note, now)
	return true
}

// ResetToPendingAssignment is the single sanctioned backward transition,
// taken when the last assignment is removed from the ledger.
func (s *Study) ResetToPendingAssignment(actor uuid.UUID, now time.Time) {
	s.WorkflowStatus = StatusPendingAssignment
	s.appendHistory(StatusPendingAssignment, actor, "all assignments removed", now)
}

// NoteHistory appends a history entry for the current status without
// changing it. Assignment updates use it so the trail records every ledger
// mutation, including ones that left the status where it was.
func (s *Study) NoteHistory(actor uuid.UUID, note string, now time.Time) {
	s.appendHistory(s.WorkflowStatus, actor, note, now)
}

func (s *Study) appendHistory(status WorkflowStatus, actor uuid.UUID, note string, now time.Time) {
	s.StatusHistory = append(s.StatusHistory, StatusHistoryEntry{
		Status:    status,
		ChangedAt: now,
		ChangedBy: actor,
		Note:      note,
	})
}
