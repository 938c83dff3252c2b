package models

// Phase identifies one step of the fixed course-authoring sequence.
type Phase string

const (
	PhaseBasicInfo          Phase = "basic-info"
	PhaseLearningObjectives Phase = "learning-objectives"
	PhaseOutlineGeneration  Phase = "outline-generation"
	PhaseContentCreation    Phase = "content-creation"
	PhaseReviewFinalize     Phase = "review-finalize"
)

// PhaseSequence is the canonical ordering of the wizard phases.
// Transitions only move between immediate neighbours of this sequence.
var PhaseSequence = []Phase{
	PhaseBasicInfo,
	PhaseLearningObjectives,
	PhaseOutlineGeneration,
	PhaseContentCreation,
	PhaseReviewFinalize,
}

// FirstPhase returns the phase a fresh wizard session starts in.
func FirstPhase() Phase { return PhaseSequence[0] }

// LastPhase returns the final phase before course completion.
func LastPhase() Phase { return PhaseSequence[len(PhaseSequence)-1] }

// IsValid reports whether p is one of the known phases.
func (p Phase) IsValid() bool {
	return p.Index() >= 0
}

// Index returns the position of p in PhaseSequence, or -1 if unknown.
func (p Phase) Index() int {
	for i, candidate := range PhaseSequence {
		if candidate == p {
			return i
		}
	}
	return -1
}

// Next returns the immediate successor of p. ok is false at the last phase
// or for an unknown phase.
func (p Phase) Next() (next Phase, ok bool) {
	i := p.Index()
	if i < 0 || i >= len(PhaseSequence)-1 {
		return p, false
	}
	return PhaseSequence[i+1], true
}

// Prev returns the immediate predecessor of p. ok is false at the first
// phase or for an unknown phase.
func (p Phase) Prev() (prev Phase, ok bool) {
	i := p.Index()
	if i <= 0 {
		return p, false
	}
	return PhaseSequence[i-1], true
}

// IsLast reports whether p is the final authoring phase.
func (p Phase) IsLast() bool { return p == LastPhase() }
