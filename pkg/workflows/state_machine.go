package workflows

// Document statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// StateMachine enforces document status transitions
type StateMachine struct {
	allowedTransitions map[string][]string
}

// NewStateMachine creates the document lifecycle. Finished documents may be
// analyzed again; only a document already processing is locked.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		allowedTransitions: map[string][]string{
			StatusPending:    {StatusProcessing},
			StatusProcessing: {StatusCompleted, StatusFailed},
			StatusCompleted:  {StatusProcessing},
			StatusFailed:     {StatusProcessing},
		},
	}
}

// CanTransition checks if a status transition is allowed
func (sm *StateMachine) CanTransition(from, to string) bool {
	for _, allowedTo := range sm.allowedTransitions[from] {
		if allowedTo == to {
			return true
		}
	}
	return false
}

// GetAllowedTransitions returns the allowed next statuses for a given status
func (sm *StateMachine) GetAllowedTransitions(from string) []string {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return []string{}
	}
	return allowed
}

// Sources returns every status from which to is reachable.
func (sm *StateMachine) Sources(to string) []string {
	var from []string
	for _, status := range []string{StatusPending, StatusProcessing, StatusCompleted, StatusFailed} {
		if sm.CanTransition(status, to) {
			from = append(from, status)
		}
	}
	return from
}
