package ports

import (
	"context"
	"time"

	"caseflow/internal/domain/casework"
)

// CaseChanged is emitted after a transition commits.
type CaseChanged struct {
	CaseID     string             `json:"case_id"`
	CaseNumber string             `json:"case_number"`
	Event      casework.EventType `json:"event"`
	From       casework.Status    `json:"from"`
	To         casework.Status    `json:"to"`
	Actor      string             `json:"actor"`
	AssigneeID string             `json:"assignee_id,omitempty"`
	// InRework is true when the case was on the rework path after the change.
	InRework bool      `json:"in_rework"`
	At       time.Time `json:"at"`
}

// Publisher fans committed case changes out to subscribers. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, change CaseChanged) error
}
