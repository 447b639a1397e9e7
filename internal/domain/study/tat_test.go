package study

import (
	"testing"
	"time"
)

func tptr(t time.Time) *time.Time { return &t }

func wantMinutes(t *testing.T, name string, got *int64, want int64) {
	t.Helper()
	if got == nil {
		t.Fatalf("%s = nil, want %d", name, want)
	}
	if *got != want {
		t.Errorf("%s = %d, want %d", name, *got, want)
	}
}

func TestComputeTATCompletedStudy(t *testing.T) {
	created := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	assigned := time.Date(2024, 1, 3, 6, 0, 0, 0, time.UTC)
	finalized := time.Date(2024, 1, 4, 6, 0, 0, 0, time.UTC)

	s := &Study{
		StudyDate:         "20240101",
		CreatedAt:         created,
		Assignments:       AssignmentList{{AssigneeID: doctorX, AssignedAt: assigned}},
		ReportFinalizedAt: &finalized,
	}

	tat := ComputeTAT(s, finalized.Add(48*time.Hour), 24*time.Hour)

	wantMinutes(t, "StudyToUpload", tat.StudyToUpload, 2880)
	wantMinutes(t, "UploadToAssignment", tat.UploadToAssignment, 360)
	wantMinutes(t, "AssignmentToReport", tat.AssignmentToReport, 1440)
	wantMinutes(t, "UploadToReport", tat.UploadToReport, 1800)
	wantMinutes(t, "TotalMinutes", tat.TotalMinutes, 1800)
	if tat.TotalDays == nil || *tat.TotalDays != 1 {
		t.Errorf("TotalDays = %v, want 1", tat.TotalDays)
	}
	if tat.Phase != PhaseCompleted {
		t.Errorf("Phase = %q, want %q", tat.Phase, PhaseCompleted)
	}
	// A finalized study is never overdue, however long it took.
	if tat.IsOverdue {
		t.Error("IsOverdue = true for a finalized study")
	}
}

func TestComputeTATNullSafety(t *testing.T) {
	created := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	s := &Study{CreatedAt: created}

	tat := ComputeTAT(s, created.Add(time.Hour), 24*time.Hour)

	if tat.StudyToUpload != nil {
		t.Errorf("StudyToUpload = %d without a study date, want nil", *tat.StudyToUpload)
	}
	if tat.UploadToAssignment != nil {
		t.Errorf("UploadToAssignment = %d without assignments, want nil", *tat.UploadToAssignment)
	}
	if tat.AssignmentToReport != nil {
		t.Errorf("AssignmentToReport = %d, want nil", *tat.AssignmentToReport)
	}
	wantMinutes(t, "TotalMinutes", tat.TotalMinutes, 60)
	if tat.Phase != PhaseUploaded {
		t.Errorf("Phase = %q, want %q", tat.Phase, PhaseUploaded)
	}
}

func TestComputeTATOverdue(t *testing.T) {
	created := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	s := &Study{CreatedAt: created}

	within := ComputeTAT(s, created.Add(23*time.Hour), 24*time.Hour)
	if within.IsOverdue {
		t.Error("study inside the SLA flagged overdue")
	}

	past := ComputeTAT(s, created.Add(25*time.Hour), 24*time.Hour)
	if !past.IsOverdue {
		t.Error("study past the SLA not flagged overdue")
	}

	// The SLA is configurable, not a fixed day.
	tight := ComputeTAT(s, created.Add(2*time.Hour), time.Hour)
	if !tight.IsOverdue {
		t.Error("study past a 1h SLA not flagged overdue")
	}
}

func TestComputeTATResetAwareMonotonic(t *testing.T) {
	created := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	finalized := created.Add(6 * time.Hour)
	s := &Study{CreatedAt: created, ReportFinalizedAt: &finalized}

	t1 := ComputeTAT(s, created.Add(12*time.Hour), 24*time.Hour)
	t2 := ComputeTAT(s, created.Add(36*time.Hour), 24*time.Hour)

	if *t2.ResetAwareMinutes < *t1.ResetAwareMinutes {
		t.Errorf("ResetAwareMinutes regressed: %d then %d", *t1.ResetAwareMinutes, *t2.ResetAwareMinutes)
	}
	// TotalMinutes is pinned to the report once finalized.
	if *t1.TotalMinutes != *t2.TotalMinutes {
		t.Errorf("TotalMinutes changed after finalization: %d then %d", *t1.TotalMinutes, *t2.TotalMinutes)
	}
}

func TestComputeTATReportDateFallbacks(t *testing.T) {
	created := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	reported := created.Add(4 * time.Hour)

	tests := []struct {
		name string
		s    *Study
	}{
		{"report_finalized_at", &Study{CreatedAt: created, ReportFinalizedAt: &reported}},
		{"nested report object", &Study{CreatedAt: created, Report: &ReportInfo{FinalizedAt: &reported}}},
		{"legacy report_date", &Study{CreatedAt: created, LegacyReportDate: &reported}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tat := ComputeTAT(tt.s, reported.Add(time.Hour), 24*time.Hour)
			wantMinutes(t, "UploadToReport", tat.UploadToReport, 240)
			if tat.Phase != PhaseCompleted {
				t.Errorf("Phase = %q, want %q", tat.Phase, PhaseCompleted)
			}
		})
	}
}

func TestComputeTATAssignedDateFromMirror(t *testing.T) {
	created := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	assigned := created.Add(2 * time.Hour)

	// Pre-migration rows kept the assignment only in the mirror.
	s := &Study{
		CreatedAt:          created,
		LastAssignedDoctor: DoctorRefList{{DoctorID: doctorX, AssignedAt: assigned}},
	}

	tat := ComputeTAT(s, assigned.Add(time.Hour), 24*time.Hour)
	wantMinutes(t, "UploadToAssignment", tat.UploadToAssignment, 120)
	if tat.Phase != PhaseAssigned {
		t.Errorf("Phase = %q, want %q", tat.Phase, PhaseAssigned)
	}
}

func TestComputeTATUsesNewestAssignment(t *testing.T) {
	created := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	s := &Study{
		CreatedAt: created,
		Assignments: AssignmentList{
			{AssigneeID: doctorX, AssignedAt: created.Add(time.Hour)},
			{AssigneeID: doctorY, AssignedAt: created.Add(3 * time.Hour)},
		},
	}

	tat := ComputeTAT(s, created.Add(4*time.Hour), 24*time.Hour)
	wantMinutes(t, "UploadToAssignment", tat.UploadToAssignment, 180)
}

func TestParseStudyDate(t *testing.T) {
	tests := []struct {
		name    string
		dateStr string
		timeStr string
		want    *time.Time
	}{
		{"compact date", "20240101", "", tptr(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))},
		{"compact date and time", "20240101", "134501", tptr(time.Date(2024, 1, 1, 13, 45, 1, 0, time.UTC))},
		{"compact date, bad time ignored", "20240101", "9999", tptr(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))},
		{"compact date, corrupt six-digit time ignored", "20240101", "999999", tptr(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))},
		{"rfc3339", "2024-01-01T10:00:00Z", "", tptr(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))},
		{"dashed date", "2024-01-01", "", tptr(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))},
		{"slashed date", "2024/01/01", "", tptr(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))},
		{"empty", "", "", nil},
		{"garbage", "not-a-date", "", nil},
		{"eight digit garbage", "99999999", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseStudyDate(tt.dateStr, tt.timeStr)
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("ParseStudyDate(%q, %q) = %v, want nil", tt.dateStr, tt.timeStr, got)
			case tt.want != nil && got == nil:
				t.Errorf("ParseStudyDate(%q, %q) = nil, want %v", tt.dateStr, tt.timeStr, tt.want)
			case tt.want != nil && !got.Equal(*tt.want):
				t.Errorf("ParseStudyDate(%q, %q) = %v, want %v", tt.dateStr, tt.timeStr, got, tt.want)
			}
		})
	}
}

func TestFormatMinutes(t *testing.T) {
	tests := []struct {
		minutes int64
		want    string
	}{
		{0, "0m"},
		{45, "45m"},
		{60, "1h 0m"},
		{200, "3h 20m"},
		{24 * 60, "1d 0h"},
		{2*24*60 + 4*60, "2d 4h"},
		{7 * 24 * 60, "1w 0d"},
		{10 * 24 * 60, "1w 3d"},
		{-5, "0m"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatMinutes(tt.minutes); got != tt.want {
				t.Errorf("FormatMinutes(%d) = %q, want %q", tt.minutes, got, tt.want)
			}
		})
	}
}

func TestApplyTATSyncsMirrors(t *testing.T) {
	created := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	finalized := created.Add(25 * time.Hour)
	s := &Study{CreatedAt: created, ReportFinalizedAt: &finalized}

	s.ApplyTAT(ComputeTAT(s, finalized, 24*time.Hour))

	if s.CalculatedTAT == nil {
		t.Fatal("CalculatedTAT not set")
	}
	if s.TurnaroundMinutes == nil || *s.TurnaroundMinutes != 1500 {
		t.Errorf("TurnaroundMinutes = %v, want 1500", s.TurnaroundMinutes)
	}
	if s.TurnaroundDays == nil || *s.TurnaroundDays != 1 {
		t.Errorf("TurnaroundDays = %v, want 1", s.TurnaroundDays)
	}
}
