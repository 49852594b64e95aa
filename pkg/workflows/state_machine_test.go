package workflows

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocumentTransitions(t *testing.T) {
	sm := NewStateMachine()

	assert.True(t, sm.CanTransition(StatusPending, StatusProcessing))
	assert.True(t, sm.CanTransition(StatusProcessing, StatusCompleted))
	assert.True(t, sm.CanTransition(StatusProcessing, StatusFailed))
	assert.True(t, sm.CanTransition(StatusFailed, StatusProcessing), "failed documents can be retried")

	assert.False(t, sm.CanTransition(StatusProcessing, StatusProcessing))
	assert.False(t, sm.CanTransition(StatusPending, StatusCompleted))
	assert.False(t, sm.CanTransition("archived", StatusProcessing))
}

func TestSources(t *testing.T) {
	sm := NewStateMachine()
	assert.ElementsMatch(t, []string{StatusPending, StatusCompleted, StatusFailed}, sm.Sources(StatusProcessing))
	assert.Empty(t, sm.GetAllowedTransitions("unknown"))
}
