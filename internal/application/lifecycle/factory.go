package lifecycle

import (
	domainwf "github.com/garyjia/reimbursement-tracker/internal/domain/workflow"
)

// BuildStateMachine creates the request state machine for one edit policy.
//
//	pending  --APPROVE--> approved
//	pending  --REJECT---> rejected
//	pending  --RESUBMIT-> pending    (non_approved only)
//	rejected --APPROVE--> approved
//	rejected --REJECT---> rejected
//	rejected --RESUBMIT-> pending
//
// approved has no outgoing transitions.
func BuildStateMachine(policy EditPolicy, current domainwf.State) (domainwf.StateMachine, error) {
	builder := domainwf.NewBuilder()

	pending := builder.Configure(domainwf.StatePending).
		Permit(domainwf.TriggerApprove, domainwf.StateApproved).
		Permit(domainwf.TriggerReject, domainwf.StateRejected)
	if policy != EditPolicyRejectedOnly {
		pending.Permit(domainwf.TriggerResubmit, domainwf.StatePending)
	}

	builder.Configure(domainwf.StateRejected).
		Permit(domainwf.TriggerApprove, domainwf.StateApproved).
		Permit(domainwf.TriggerReject, domainwf.StateRejected).
		Permit(domainwf.TriggerResubmit, domainwf.StatePending)

	builder.Configure(domainwf.StateApproved)

	return builder.Build(current)
}
