package study

import (
	"time"

	"github.com/google/uuid"
)

// ApplyAssignment upserts a ledger entry for assignee. Re-assigning the same
// assignee refreshes AssignedAt/Priority/DueDate in place instead of adding a
// duplicate, which is what makes caller-driven retries safe. A DoctorRef
// mirror entry is appended on every call so "who is the doctor" lookups see
// the latest touch. Returns true when a new entry was appended, false when an
// existing one was refreshed.
func (s *Study) ApplyAssignment(assigneeID, assignedBy uuid.UUID, priority Priority, dueDate *time.Time, now time.Time) bool {
	appended := true
	for i := range s.Assignments {
		if s.Assignments[i].AssigneeID == assigneeID {
			s.Assignments[i].AssignedAt = now
			s.Assignments[i].AssignedBy = assignedBy
			s.Assignments[i].Priority = priority
			s.Assignments[i].DueDate = dueDate
			appended = false
			break
		}
	}
	if appended {
		s.Assignments = append(s.Assignments, Assignment{
			AssigneeID: assigneeID,
			AssignedBy: assignedBy,
			Priority:   priority,
			AssignedAt: now,
			DueDate:    dueDate,
		})
	}
	s.LastAssignedDoctor = append(s.LastAssignedDoctor, DoctorRef{
		DoctorID:   assigneeID,
		AssignedAt: now,
	})
	return appended
}

// RemoveAssignees strips every ledger and mirror entry matching any of the
// given ids. Historical rows are ambiguous about whether they stored the
// doctor id or its linked account id, so callers pass both. Zero matches is
// a no-op, not an error. Returns the number of assignment entries removed.
func (s *Study) RemoveAssignees(ids ...uuid.UUID) int {
	match := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		match[id] = true
	}

	removed := 0
	kept := s.Assignments[:0]
	for _, a := range s.Assignments {
		if match[a.AssigneeID] {
			removed++
			continue
		}
		kept = append(kept, a)
	}
	s.Assignments = kept

	keptRefs := s.LastAssignedDoctor[:0]
	for _, r := range s.LastAssignedDoctor {
		if match[r.DoctorID] {
			continue
		}
		keptRefs = append(keptRefs, r)
	}
	s.LastAssignedDoctor = keptRefs

	return removed
}

// CurrentAssignment returns the entry that owns the study for display: the
// maximum AssignedAt, with ties broken by later list position. Nil when the
// ledger is empty.
func (s *Study) CurrentAssignment() *Assignment {
	var current *Assignment
	for i := range s.Assignments {
		a := &s.Assignments[i]
		if current == nil || !a.AssignedAt.Before(current.AssignedAt) {
			current = a
		}
	}
	return current
}

// HasAssignee reports whether any ledger entry matches one of the ids.
func (s *Study) HasAssignee(ids ...uuid.UUID) bool {
	for _, a := range s.Assignments {
		for _, id := range ids {
			if a.AssigneeID == id {
				return true
			}
		}
	}
	return false
}
