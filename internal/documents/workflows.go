package documents

import (
	"fmt"

	"luma-ledger/ledger-backend/pkg/workflows"
)

type WorkflowService struct {
	machine *workflows.StateMachine
}

func NewWorkflowService() *WorkflowService {
	return &WorkflowService{machine: workflows.NewStateMachine()}
}

// Transition moves doc to next, refusing moves the lifecycle does not allow.
func (s *WorkflowService) Transition(doc *Document, next DocumentStatus) error {
	if !s.machine.CanTransition(string(doc.Status), string(next)) {
		return fmt.Errorf("cannot move document from %s to %s", doc.Status, next)
	}
	doc.Status = next
	return nil
}

// ClaimableStatuses lists the statuses an analysis may start from.
func (s *WorkflowService) ClaimableStatuses() []string {
	return s.machine.Sources(string(StatusProcessing))
}
