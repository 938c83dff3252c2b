package models_test

import (
	"testing"

	"course-builder/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseSequence(t *testing.T) {
	require.Equal(t, models.PhaseBasicInfo, models.FirstPhase())
	require.Equal(t, models.PhaseReviewFinalize, models.LastPhase())

	// Walking Next from the first phase visits the whole sequence in order.
	phase := models.FirstPhase()
	visited := []models.Phase{phase}
	for {
		next, ok := phase.Next()
		if !ok {
			break
		}
		phase = next
		visited = append(visited, phase)
	}
	assert.Equal(t, models.PhaseSequence, visited)
	assert.True(t, phase.IsLast())
}

func TestPhaseNeighbours(t *testing.T) {
	next, ok := models.PhaseBasicInfo.Next()
	require.True(t, ok)
	assert.Equal(t, models.PhaseLearningObjectives, next)

	_, ok = models.PhaseReviewFinalize.Next()
	assert.False(t, ok)

	prev, ok := models.PhaseLearningObjectives.Prev()
	require.True(t, ok)
	assert.Equal(t, models.PhaseBasicInfo, prev)

	_, ok = models.PhaseBasicInfo.Prev()
	assert.False(t, ok)
}

func TestPhaseValidity(t *testing.T) {
	for _, phase := range models.PhaseSequence {
		assert.True(t, phase.IsValid(), "phase %s should be valid", phase)
	}
	assert.False(t, models.Phase("publishing").IsValid())
	assert.Equal(t, -1, models.Phase("").Index())
}
