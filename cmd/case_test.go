package cmd

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"caseflow/internal/domain/casework"
	caseusecase "caseflow/internal/usecase/casework"
)

func TestPrintCase(t *testing.T) {
	deadline := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	rework := casework.QCResponseRework
	amount := decimal.RequireFromString("1250.50")

	var out bytes.Buffer
	err := printCase(&out, "allocate", casework.Case{
		ID:                 "c-1",
		CaseNumber:         "BGV-1",
		Status:             casework.StatusQCPassed,
		Assignee:           &casework.Assignee{ID: "gig-7", Type: casework.AssigneeGig, VendorID: "vendor-1"},
		AcceptanceDeadline: &deadline,
		QCResponse:         &rework,
		PayoutAmount:       &amount,
	})
	if err != nil {
		t.Fatalf("printCase() error = %v", err)
	}

	want := "allocate: case=BGV-1 id=c-1 status=qc_passed assignee=gig:gig-7@vendor-1 acceptance_deadline=2025-03-01T10:00:00Z rework=true payout=1250.5\n"
	if out.String() != want {
		t.Fatalf("printCase() = %q, want %q", out.String(), want)
	}
}

func TestPrintDetail(t *testing.T) {
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	var out bytes.Buffer
	err := printDetail(&out, caseusecase.CaseDetail{
		Case: casework.Case{ID: "c-2", CaseNumber: "BGV-2", Status: casework.StatusAccepted},
		AllocationLogs: []casework.AllocationLog{{
			Assignee:           casework.Assignee{ID: "v-1", Type: casework.AssigneeVendor},
			AllocatedAt:        at,
			Decision:           casework.DecisionAccepted,
			ReallocationReason: "rework",
		}},
		Allowed: []casework.EventType{casework.EventFirstAutosave, casework.EventCancel},
	})
	if err != nil {
		t.Fatalf("printDetail() error = %v", err)
	}

	for _, want := range []string{
		"allowed: first_autosave,cancel",
		"2025-03-01T09:00:00Z vendor:v-1 decision=accepted reason=rework",
		"qc reviews:",
	} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("printDetail() missing %q in:\n%s", want, out.String())
		}
	}
}
