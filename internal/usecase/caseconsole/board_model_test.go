package caseconsole

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"caseflow/internal/domain/casework"
	"caseflow/internal/ports"
	caseusecase "caseflow/internal/usecase/casework"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeService struct {
	cases    []casework.Case
	lastCall string
	lastArgs []string
	fail     error
}

func (f *fakeService) ListCases(_ context.Context, filter ports.CaseFilter) ([]casework.Case, error) {
	if len(filter.Statuses) == 0 {
		return append([]casework.Case(nil), f.cases...), nil
	}
	var out []casework.Case
	for _, c := range f.cases {
		for _, s := range filter.Statuses {
			if c.Status == s {
				out = append(out, c)
			}
		}
	}
	return out, nil
}

func (f *fakeService) GetCaseDetail(_ context.Context, caseID string) (caseusecase.CaseDetail, error) {
	for _, c := range f.cases {
		if c.ID == caseID {
			return caseusecase.CaseDetail{Case: c, InRework: casework.IsReworkPath(c), Allowed: casework.Allowed(c.Status)}, nil
		}
	}
	return caseusecase.CaseDetail{}, casework.ErrCaseNotFound
}

func (f *fakeService) record(call string, args ...string) (casework.Case, error) {
	f.lastCall = call
	f.lastArgs = args
	if f.fail != nil {
		return casework.Case{}, f.fail
	}
	return casework.Case{ID: args[0], Status: casework.StatusAccepted}, nil
}

func (f *fakeService) Accept(_ context.Context, caseID string, actorID string) (casework.Case, error) {
	return f.record("accept", caseID, actorID)
}

func (f *fakeService) Reject(_ context.Context, caseID string, actorID string, _ string) (casework.Case, error) {
	return f.record("reject", caseID, actorID)
}

func (f *fakeService) Report(_ context.Context, caseID string, actor string) (casework.Case, error) {
	return f.record("report", caseID, actor)
}

func (f *fakeService) EnterPaymentCycle(_ context.Context, caseID string, actor string) (casework.Case, error) {
	return f.record("enter_payment_cycle", caseID, actor)
}

func (f *fakeService) Cancel(_ context.Context, caseID string, actor string, _ string) (casework.Case, error) {
	return f.record("cancel", caseID, actor)
}

func sampleCases() []casework.Case {
	rework := casework.QCResponseRework
	return []casework.Case{
		{ID: "c2", CaseNumber: "BGV-2", Status: casework.StatusQCPassed, QCResponse: &rework, StatusUpdatedAt: t0.Add(time.Hour)},
		{ID: "c1", CaseNumber: "BGV-1", Status: casework.StatusAllocated, StatusUpdatedAt: t0,
			Assignee: &casework.Assignee{ID: "gig-7", Type: casework.AssigneeGig, VendorID: "vendor-1"}},
	}
}

func load(t *testing.T, m *boardModel) {
	t.Helper()
	msg := m.loadCasesCmd()()
	_, cmd := m.Update(msg)
	if cmd != nil {
		m.Update(cmd())
	}
}

func TestBoardLoadsOldestFirst(t *testing.T) {
	svc := &fakeService{cases: sampleCases()}
	m := NewBoardModel(context.Background(), svc, BoardOptions{}).(*boardModel)
	load(t, m)

	if len(m.cases) != 2 || m.cases[0].ID != "c1" {
		t.Fatalf("cases = %+v", m.cases)
	}
	if !m.hasDetail || m.detail.Case.ID != "c1" {
		t.Fatalf("detail = %+v", m.detail)
	}

	view := m.View()
	for _, want := range []string{"BGV-1 [allocated] assignee=gig:gig-7@vendor-1", "BGV-2 [qc_passed]", "rework", "allocated=1 qc_passed=1"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
}

func TestBoardStatusFilter(t *testing.T) {
	svc := &fakeService{cases: sampleCases()}
	m := NewBoardModel(context.Background(), svc, BoardOptions{StatusFilter: "qc_passed, bogus"}).(*boardModel)
	load(t, m)

	if len(m.statuses) != 1 || m.statuses[0] != casework.StatusQCPassed {
		t.Fatalf("statuses = %v", m.statuses)
	}
	if len(m.cases) != 1 || m.cases[0].ID != "c2" {
		t.Fatalf("cases = %+v", m.cases)
	}
}

func TestBoardAcceptActsForAssignee(t *testing.T) {
	svc := &fakeService{cases: sampleCases()}
	m := NewBoardModel(context.Background(), svc, BoardOptions{Operator: "ops-1"}).(*boardModel)
	load(t, m)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("a")})
	if cmd == nil {
		t.Fatalf("accept returned no command")
	}
	m.Update(cmd())

	if svc.lastCall != "accept" || svc.lastArgs[1] != "gig-7" {
		t.Fatalf("call = %s %v", svc.lastCall, svc.lastArgs)
	}
	if len(m.auditLogs) != 1 || !strings.Contains(m.auditLogs[0], "action=accept result=accepted") {
		t.Fatalf("audit = %v", m.auditLogs)
	}
}

func TestBoardActionFailureIsReported(t *testing.T) {
	svc := &fakeService{cases: sampleCases(), fail: casework.ErrStaleState}
	m := NewBoardModel(context.Background(), svc, BoardOptions{}).(*boardModel)
	load(t, m)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	m.Update(cmd())

	if !strings.Contains(m.status, "cancel failed") || !errors.Is(svc.fail, casework.ErrStaleState) {
		t.Fatalf("status = %q", m.status)
	}
	if !strings.Contains(m.auditLogs[0], "error: case already handled") {
		t.Fatalf("audit = %v", m.auditLogs)
	}
}

func TestBoardFollowsChanges(t *testing.T) {
	changes := make(chan ports.CaseChanged, 1)
	svc := &fakeService{cases: sampleCases()}
	m := NewBoardModel(context.Background(), svc, BoardOptions{Changes: changes}).(*boardModel)

	changes <- ports.CaseChanged{CaseID: "c1", CaseNumber: "BGV-1", From: casework.StatusAllocated, To: casework.StatusAccepted}
	_, cmd := m.Update(m.waitForChangeCmd()())
	if cmd == nil {
		t.Fatalf("change produced no command")
	}
	if m.status != "BGV-1 allocated -> accepted" {
		t.Fatalf("status = %q", m.status)
	}

	close(changes)
	m.Update(m.waitForChangeCmd()())
	if m.changes != nil {
		t.Fatalf("closed change feed still attached")
	}
}
