package contract

// Status is the contract lifecycle state. Transitions are restricted to the
// edges in allowedTransitions; anything else is rejected without mutation.
type Status string

const (
	StatusDraft            Status = "draft"
	StatusPendingSignature Status = "pending_signature"
	StatusPartiallySigned  Status = "partially_signed"
	StatusActive           Status = "active"
	StatusRenewed          Status = "renewed"
	StatusPendingRenewal   Status = "pending_renewal"
	StatusSuspended        Status = "suspended"
	StatusTerminated       Status = "terminated"
	StatusExpired          Status = "expired"
	StatusBreached         Status = "breached"
)

// AllStatuses lists every lifecycle state, used by validation and tests.
func AllStatuses() []Status {
	return []Status{
		StatusDraft,
		StatusPendingSignature,
		StatusPartiallySigned,
		StatusActive,
		StatusRenewed,
		StatusPendingRenewal,
		StatusSuspended,
		StatusTerminated,
		StatusExpired,
		StatusBreached,
	}
}

var allowedTransitions = map[Status][]Status{
	StatusDraft:            {StatusPendingSignature},
	StatusPendingSignature: {StatusPartiallySigned},
	StatusPartiallySigned:  {StatusActive},
	StatusActive: {
		StatusPendingRenewal,
		StatusSuspended,
		StatusTerminated,
		StatusExpired,
		StatusBreached,
	},
	StatusPendingRenewal: {StatusRenewed, StatusExpired},
	StatusRenewed:        {StatusActive},
	StatusSuspended:      {StatusActive, StatusTerminated, StatusBreached},
	StatusBreached:       {StatusTerminated},
	StatusTerminated:     {},
	StatusExpired:        {},
}

func (s Status) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// Terminal states accept no outgoing transitions.
func (s Status) Terminal() bool {
	return s == StatusTerminated || s == StatusExpired
}

// CanTransition reports whether from -> to is an allowed lifecycle edge.
func CanTransition(from, to Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionsFrom returns the allowed targets of a state, copied so callers
// cannot mutate the table.
func TransitionsFrom(s Status) []Status {
	out := make([]Status, len(allowedTransitions[s]))
	copy(out, allowedTransitions[s])
	return out
}

// Signable reports whether a signing session may be opened while the
// contract is in this state.
func (s Status) Signable() bool {
	switch s {
	case StatusDraft, StatusPendingSignature, StatusPartiallySigned:
		return true
	default:
		return false
	}
}
