package authz

// DeniedReason is the generic message attached to every denial. It never
// names the permission that was checked.
const DeniedReason = "You do not have permission to perform this action."

// Outcome classifies a decision.
type Outcome int

const (
	// OutcomeDeny refuses the action.
	OutcomeDeny Outcome = iota
	// OutcomeAllow permits the action.
	OutcomeAllow
	// OutcomeNotFound reports that the target row does not exist.
	OutcomeNotFound
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAllow:
		return "allow"
	case OutcomeNotFound:
		return "not_found"
	default:
		return "deny"
	}
}

// Decision is the result of an authorization check. The zero value denies.
type Decision struct {
	Outcome Outcome
	Reason  string
}

// Allow returns an allowing decision.
func Allow() Decision { return Decision{Outcome: OutcomeAllow} }

// Deny returns a denying decision with the given reason, or DeniedReason
// when reason is empty.
func Deny(reason string) Decision {
	if reason == "" {
		reason = DeniedReason
	}
	return Decision{Outcome: OutcomeDeny, Reason: reason}
}

// NotFound returns a decision for a missing row.
func NotFound() Decision { return Decision{Outcome: OutcomeNotFound} }

// Allowed reports whether the action may proceed.
func (d Decision) Allowed() bool { return d.Outcome == OutcomeAllow }

// Denied reports whether the principal lacks the rights for an existing row
// or module.
func (d Decision) Denied() bool { return d.Outcome == OutcomeDeny }

// Missing reports whether the target row does not exist.
func (d Decision) Missing() bool { return d.Outcome == OutcomeNotFound }

// WithReason replaces the reason of a denial. Other outcomes are returned
// unchanged.
func (d Decision) WithReason(reason string) Decision {
	if d.Outcome != OutcomeDeny || reason == "" {
		return d
	}
	d.Reason = reason
	return d
}
