package models

import (
	"time"

	"github.com/google/uuid"
)

// DraftSnapshot is the state flushed to the draft store on every auto-save
// tick: the current phase plus both data records, verbatim.
type DraftSnapshot struct {
	Phase      Phase      `json:"phase"`
	PhaseData  PhaseData  `json:"phaseData"`
	CourseData CourseData `json:"courseData"`
}

// Draft is a persisted snapshot of in-progress wizard state, resumable by
// identifier.
type Draft struct {
	ID         uuid.UUID  `json:"id"`
	OwnerID    uuid.UUID  `json:"ownerId"`
	Phase      Phase      `json:"phase"`
	PhaseData  PhaseData  `json:"phaseData"`
	CourseData CourseData `json:"courseData"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Snapshot extracts the wizard-facing state of the draft.
func (d *Draft) Snapshot() DraftSnapshot {
	return DraftSnapshot{
		Phase:      d.Phase,
		PhaseData:  d.PhaseData,
		CourseData: d.CourseData,
	}
}
