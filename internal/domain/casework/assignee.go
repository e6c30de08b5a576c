package casework

import (
	"fmt"
	"strings"
	"time"
)

type AssigneeType string

const (
	AssigneeGig    AssigneeType = "gig"
	AssigneeVendor AssigneeType = "vendor"
)

// Assignee is the single active holder of a case. A gig assignee without a
// vendor is a direct worker.
type Assignee struct {
	ID       string
	Type     AssigneeType
	VendorID string
}

func NewAssignee(id string, assigneeType string, vendorID string) (Assignee, error) {
	a := Assignee{
		ID:       strings.TrimSpace(id),
		Type:     AssigneeType(strings.ToLower(strings.TrimSpace(assigneeType))),
		VendorID: strings.TrimSpace(vendorID),
	}
	if err := a.Validate(); err != nil {
		return Assignee{}, err
	}
	if a.Type == AssigneeVendor && a.VendorID == "" {
		a.VendorID = a.ID
	}
	return a, nil
}

func (a Assignee) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return ErrAssigneeRequired
	}
	switch a.Type {
	case AssigneeGig:
		return nil
	case AssigneeVendor:
		if a.VendorID != "" && a.VendorID != a.ID {
			return fmt.Errorf("%w: vendor assignee %q carries vendor %q", ErrInvalidAssignee, a.ID, a.VendorID)
		}
		return nil
	default:
		return fmt.Errorf("%w: type %q", ErrInvalidAssignee, a.Type)
	}
}

// IsDirectGig reports a gig worker without a vendor; such allocations never expire.
func (a Assignee) IsDirectGig() bool {
	return a.Type == AssigneeGig && strings.TrimSpace(a.VendorID) == ""
}

// Represents reports whether actor may act for this assignee.
func (a Assignee) Represents(actor string) bool {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return false
	}
	return actor == a.ID || (a.VendorID != "" && actor == a.VendorID)
}

// Policy holds the timing windows of the workflow.
type Policy struct {
	VendorAcceptanceWindow time.Duration
	GigAcceptanceWindow    time.Duration
	ReworkWindow           time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		VendorAcceptanceWindow: 30 * time.Minute,
		GigAcceptanceWindow:    time.Hour,
		ReworkWindow:           30 * time.Minute,
	}
}

// AcceptanceWindow returns the window for an allocation, or false when the
// allocation never expires.
func (p Policy) AcceptanceWindow(a Assignee) (time.Duration, bool) {
	if a.IsDirectGig() {
		return 0, false
	}
	if a.Type == AssigneeVendor {
		return p.VendorAcceptanceWindow, true
	}
	return p.GigAcceptanceWindow, true
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.VendorAcceptanceWindow <= 0 {
		p.VendorAcceptanceWindow = def.VendorAcceptanceWindow
	}
	if p.GigAcceptanceWindow <= 0 {
		p.GigAcceptanceWindow = def.GigAcceptanceWindow
	}
	if p.ReworkWindow <= 0 {
		p.ReworkWindow = def.ReworkWindow
	}
	return p
}
