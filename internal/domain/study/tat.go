package study

import (
	"fmt"
	"math"
	"time"
)

// TATPhase marks how far along the reporting pipeline a study is, derived
// from which milestone timestamps exist.
type TATPhase string

const (
	PhaseNotStarted TATPhase = "not_started"
	PhaseUploaded   TATPhase = "uploaded"
	PhaseAssigned   TATPhase = "assigned"
	PhaseCompleted  TATPhase = "completed"
)

// TAT is the fully derived turnaround-time view of a study. Every field is a
// pure function of the study's timestamps; the struct is cached on the row
// but never authoritative and always safe to overwrite. Durations are whole
// minutes; nil means an endpoint was missing or unparseable.
type TAT struct {
	StudyToUpload      *int64 `json:"studyToUpload"`
	UploadToAssignment *int64 `json:"uploadToAssignment"`
	AssignmentToReport *int64 `json:"assignmentToReport"`
	StudyToReport      *int64 `json:"studyToReport"`
	UploadToReport     *int64 `json:"uploadToReport"`

	// TotalMinutes runs from upload to the report, or to now while the report
	// is outstanding. ResetAwareMinutes always runs to now, the "still open"
	// view that ignores completion.
	TotalMinutes      *int64 `json:"totalMinutes"`
	TotalDays         *int64 `json:"totalDays"`
	ResetAwareMinutes *int64 `json:"resetAwareMinutes"`

	Phase      TATPhase  `json:"phase"`
	IsOverdue  bool      `json:"isOverdue"`
	ComputedAt time.Time `json:"computedAt"`
}

// ComputeTAT derives the TAT view at the given instant. It never fails:
// unparseable inputs leave the affected fields nil. overdueSLA is the window
// after upload within which the report must be finalized.
func ComputeTAT(s *Study, now time.Time, overdueSLA time.Duration) *TAT {
	studyDate := ParseStudyDate(s.StudyDate, s.StudyTime)
	uploadDate := resolveUploadDate(s)
	assignedDate := resolveAssignedDate(s)
	reportDate := resolveReportDate(s)

	t := &TAT{
		StudyToUpload:      minutesBetween(studyDate, uploadDate),
		UploadToAssignment: minutesBetween(uploadDate, assignedDate),
		AssignmentToReport: minutesBetween(assignedDate, reportDate),
		StudyToReport:      minutesBetween(studyDate, reportDate),
		UploadToReport:     minutesBetween(uploadDate, reportDate),
		Phase:              derivePhase(uploadDate, assignedDate, reportDate),
		ComputedAt:         now,
	}

	totalEnd := reportDate
	if totalEnd == nil {
		totalEnd = &now
	}
	t.TotalMinutes = minutesBetween(uploadDate, totalEnd)
	if t.TotalMinutes != nil {
		days := *t.TotalMinutes / (24 * 60)
		t.TotalDays = &days
	}
	t.ResetAwareMinutes = minutesBetween(uploadDate, &now)

	if reportDate == nil && t.TotalMinutes != nil {
		t.IsOverdue = *t.TotalMinutes > int64(overdueSLA.Minutes())
	}

	return t
}

// ParseStudyDate turns the modality's 8-digit date (and optional 6-digit
// time) strings into a UTC timestamp. Anything that fails the strict format
// falls back to general date parsing; anything that fails that yields nil.
// It never panics and never returns an error; a bad acquisition string must
// not break TAT for the rest of the study.
func ParseStudyDate(dateStr, timeStr string) *time.Time {
	if dateStr == "" {
		return nil
	}
	if len(dateStr) == 8 {
		if len(timeStr) == 6 {
			if ts, err := time.ParseInLocation("20060102150405", dateStr+timeStr, time.UTC); err == nil {
				return &ts
			}
			// A corrupt time must not take the date down with it.
		}
		if ts, err := time.ParseInLocation("20060102", dateStr, time.UTC); err == nil {
			return &ts
		}
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02", "2006/01/02"} {
		if ts, err := time.ParseInLocation(layout, dateStr, time.UTC); err == nil {
			return &ts
		}
	}
	return nil
}

func resolveUploadDate(s *Study) *time.Time {
	if s.CreatedAt.IsZero() {
		return nil
	}
	ts := s.CreatedAt
	return &ts
}

// resolveAssignedDate takes the newest assignment timestamp. An empty ledger
// falls back to the denormalized mirror, which is where pre-migration rows
// kept their only assignment.
func resolveAssignedDate(s *Study) *time.Time {
	var latest *time.Time
	for i := range s.Assignments {
		at := s.Assignments[i].AssignedAt
		if at.IsZero() {
			continue
		}
		if latest == nil || at.After(*latest) {
			ts := at
			latest = &ts
		}
	}
	if latest != nil {
		return latest
	}
	for i := range s.LastAssignedDoctor {
		at := s.LastAssignedDoctor[i].AssignedAt
		if at.IsZero() {
			continue
		}
		if latest == nil || at.After(*latest) {
			ts := at
			latest = &ts
		}
	}
	return latest
}

// resolveReportDate picks the first populated finalization field, newest
// schema first.
func resolveReportDate(s *Study) *time.Time {
	if s.ReportFinalizedAt != nil {
		return s.ReportFinalizedAt
	}
	if s.Report != nil && s.Report.FinalizedAt != nil {
		return s.Report.FinalizedAt
	}
	return s.LegacyReportDate
}

func derivePhase(upload, assigned, report *time.Time) TATPhase {
	switch {
	case report != nil:
		return PhaseCompleted
	case assigned != nil:
		return PhaseAssigned
	case upload != nil:
		return PhaseUploaded
	default:
		return PhaseNotStarted
	}
}

func minutesBetween(from, to *time.Time) *int64 {
	if from == nil || to == nil {
		return nil
	}
	m := int64(math.Round(to.Sub(*from).Minutes()))
	return &m
}

// FormatMinutes renders a duration for dashboards: "45m", "3h 20m", "2d 4h",
// "1w 3d".
func FormatMinutes(minutes int64) string {
	if minutes < 0 {
		minutes = 0
	}
	switch {
	case minutes < 60:
		return fmt.Sprintf("%dm", minutes)
	case minutes < 24*60:
		return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
	case minutes < 7*24*60:
		return fmt.Sprintf("%dd %dh", minutes/(24*60), (minutes%(24*60))/60)
	default:
		return fmt.Sprintf("%dw %dd", minutes/(7*24*60), (minutes%(7*24*60))/(24*60))
	}
}

// FormatTotalDays renders the coarse total used on worklists.
func FormatTotalDays(days int64) string {
	return fmt.Sprintf("%d days", days)
}

// ApplyTAT overwrites the cached TAT object and the legacy mirror columns in
// one step so they can never disagree.
func (s *Study) ApplyTAT(t *TAT) {
	s.CalculatedTAT = t
	s.TurnaroundMinutes = t.TotalMinutes
	s.TurnaroundDays = t.TotalDays
}
