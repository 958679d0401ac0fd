package event

// Type identifies the type of domain event
type Type string

const (
	TypeRequestSubmitted   Type = "request.submitted"
	TypeRequestResubmitted Type = "request.resubmitted"
	TypeRequestApproved    Type = "request.approved"
	TypeRequestRejected    Type = "request.rejected"
	TypeRequestDeleted     Type = "request.deleted"
	TypeInvoiceRemoved     Type = "request.invoice_removed"
)

// AllTypes lists every event type in a stable order
func AllTypes() []Type {
	return []Type{
		TypeRequestSubmitted,
		TypeRequestResubmitted,
		TypeRequestApproved,
		TypeRequestRejected,
		TypeRequestDeleted,
		TypeInvoiceRemoved,
	}
}

func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeRequestSubmitted,
		TypeRequestResubmitted,
		TypeRequestApproved,
		TypeRequestRejected,
		TypeRequestDeleted,
		TypeInvoiceRemoved:
		return true
	default:
		return false
	}
}
