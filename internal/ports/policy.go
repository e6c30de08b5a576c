package ports

import "caseflow/internal/domain/casework"

// PolicySource returns the timing policy in effect. Implementations may reload it.
type PolicySource interface {
	Policy() casework.Policy
}

type StaticPolicy casework.Policy

func (p StaticPolicy) Policy() casework.Policy {
	return casework.Policy(p)
}
