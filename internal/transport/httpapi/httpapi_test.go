package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"

	"caseflow/internal/infrastructure/events"
	"caseflow/internal/infrastructure/persistence/gormstore/model"
	gormrepo "caseflow/internal/infrastructure/persistence/gormstore/repository"
	gormuow "caseflow/internal/infrastructure/persistence/gormstore/uow"
	"caseflow/internal/ports"
	caseusecase "caseflow/internal/usecase/casework"
)

type failingBlob struct{}

func (failingBlob) Put(context.Context, ports.BlobObject) (string, error) {
	return "", errors.New("bucket offline")
}

type testServer struct {
	*httptest.Server
	broker *events.Broker
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "caseflow.sqlite")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	broker := events.NewBroker()
	svc := caseusecase.NewService(
		gormrepo.NewCaseRepository(db),
		gormrepo.NewSubmissionRepository(db),
		gormuow.NewUnitOfWork(db),
		nil,
		caseusecase.WithBlobStore(failingBlob{}),
		caseusecase.WithPublisher(broker),
	)
	srv := httptest.NewServer(NewRouter(NewHandler(svc, broker)))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, broker: broker}
}

func (s *testServer) do(t *testing.T, method string, path string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	out := map[string]any{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && !errors.Is(err, io.EOF) {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, out
}

func (s *testServer) createCase(t *testing.T, number string) string {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/v1/cases", map[string]any{"case_number": number, "tat_hours": 48})
	if status != http.StatusCreated {
		t.Fatalf("create case status = %d body = %v", status, body)
	}
	id, _ := body["id"].(string)
	if id == "" {
		t.Fatalf("create case returned no id: %v", body)
	}
	return id
}

func allocateBody() map[string]any {
	return map[string]any{
		"actor":    "ops",
		"assignee": map[string]any{"id": "gig-7", "type": "gig", "vendor_id": "vendor-1"},
	}
}

func TestCaseLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	id := s.createCase(t, "BGV-100")

	status, body := s.do(t, http.MethodPost, "/v1/cases/"+id+"/allocate", allocateBody())
	if status != http.StatusOK || body["status"] != "allocated" {
		t.Fatalf("allocate = %d %v", status, body)
	}
	status, body = s.do(t, http.MethodPost, "/v1/cases/"+id+"/accept", map[string]any{"actor": "gig-7"})
	if status != http.StatusOK || body["status"] != "accepted" {
		t.Fatalf("accept = %d %v", status, body)
	}

	status, body = s.do(t, http.MethodGet, "/v1/cases/"+id, nil)
	if status != http.StatusOK {
		t.Fatalf("get case = %d %v", status, body)
	}
	logs, _ := body["allocation_logs"].([]any)
	if len(logs) != 1 {
		t.Fatalf("allocation logs = %v", body["allocation_logs"])
	}

	status, body = s.do(t, http.MethodGet, "/v1/cases?status=accepted", nil)
	if status != http.StatusOK {
		t.Fatalf("list cases = %d %v", status, body)
	}
	if cases, _ := body["cases"].([]any); len(cases) != 1 {
		t.Fatalf("listed cases = %v", body["cases"])
	}
}

func TestAcceptAfterRejectIsConflict(t *testing.T) {
	s := newTestServer(t)
	id := s.createCase(t, "BGV-101")

	if status, body := s.do(t, http.MethodPost, "/v1/cases/"+id+"/allocate", allocateBody()); status != http.StatusOK {
		t.Fatalf("allocate = %d %v", status, body)
	}
	if status, body := s.do(t, http.MethodPost, "/v1/cases/"+id+"/reject", map[string]any{"actor": "gig-7", "reason": "busy"}); status != http.StatusOK {
		t.Fatalf("reject = %d %v", status, body)
	}

	status, body := s.do(t, http.MethodPost, "/v1/cases/"+id+"/accept", map[string]any{"actor": "gig-7"})
	if status != http.StatusConflict {
		t.Fatalf("accept after reject = %d %v", status, body)
	}
	if body["error"] != "case already handled" || body["kind"] != "stale_state" {
		t.Fatalf("conflict body = %v", body)
	}
}

func TestSubmitFinalBeforeAllocationIsUnprocessable(t *testing.T) {
	s := newTestServer(t)
	id := s.createCase(t, "BGV-102")

	status, body := s.do(t, http.MethodPost, "/v1/cases/"+id+"/submission/final", map[string]any{
		"fields": map[string]any{"name": map[string]any{"value": "Asha"}},
	})
	if status != http.StatusUnprocessableEntity || body["kind"] != "invalid_transition" {
		t.Fatalf("submit final = %d %v", status, body)
	}
}

func TestRequestValidation(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/v1/cases", map[string]any{"tat_hours": 0})
	if status != http.StatusBadRequest {
		t.Fatalf("create case = %d %v", status, body)
	}
	fields, _ := body["fields"].(map[string]any)
	if fields["case_number"] != "required" || fields["tat_hours"] != "gt" {
		t.Fatalf("fields = %v", body["fields"])
	}

	id := s.createCase(t, "BGV-103")
	status, body = s.do(t, http.MethodPost, "/v1/cases/"+id+"/qc", map[string]any{"reviewer_id": "qc-1", "result": "maybe"})
	if status != http.StatusBadRequest {
		t.Fatalf("qc = %d %v", status, body)
	}

	status, body = s.do(t, http.MethodPut, "/v1/cases/"+id+"/submission/draft", map[string]any{
		"fields": map[string]any{
			"photo": map[string]any{"files": []any{map[string]any{
				"content": base64.StdEncoding.EncodeToString([]byte("jpeg")),
			}}},
		},
	})
	if status != http.StatusBadRequest {
		t.Fatalf("nameless file draft = %d %v", status, body)
	}
	fields, _ = body["fields"].(map[string]any)
	if fields["name"] != "required_with" {
		t.Fatalf("fields = %v", body["fields"])
	}
}

func TestUnknownCaseIsNotFound(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/v1/cases/missing", nil)
	if status != http.StatusNotFound {
		t.Fatalf("get missing = %d %v", status, body)
	}
}

func TestDraftWithFailedUploadReturnsWarning(t *testing.T) {
	s := newTestServer(t)
	id := s.createCase(t, "BGV-104")
	if status, body := s.do(t, http.MethodPost, "/v1/cases/"+id+"/allocate", allocateBody()); status != http.StatusOK {
		t.Fatalf("allocate = %d %v", status, body)
	}
	if status, body := s.do(t, http.MethodPost, "/v1/cases/"+id+"/accept", map[string]any{"actor": "gig-7"}); status != http.StatusOK {
		t.Fatalf("accept = %d %v", status, body)
	}

	status, body := s.do(t, http.MethodPut, "/v1/cases/"+id+"/submission/draft", map[string]any{
		"actor": "gig-7",
		"fields": map[string]any{
			"address": map[string]any{"value": "12 Lake Rd"},
			"photo": map[string]any{"files": []any{map[string]any{
				"name":    "front.jpg",
				"content": base64.StdEncoding.EncodeToString([]byte("jpeg")),
			}}},
		},
	})
	if status != http.StatusOK {
		t.Fatalf("draft = %d %v", status, body)
	}
	warnings, _ := body["warnings"].([]any)
	if len(warnings) != 1 || !strings.Contains(warnings[0].(string), "your answers are saved") {
		t.Fatalf("warnings = %v", body["warnings"])
	}
	if body["transitioned"] != true {
		t.Fatalf("transitioned = %v", body["transitioned"])
	}
	caseBody, _ := body["case"].(map[string]any)
	if caseBody["status"] != "in_progress" {
		t.Fatalf("case status = %v", caseBody["status"])
	}

	status, body = s.do(t, http.MethodGet, "/v1/cases/"+id+"/submission", nil)
	if status != http.StatusOK {
		t.Fatalf("get submission = %d %v", status, body)
	}
	data, _ := body["data"].(map[string]any)
	if _, ok := data["address"]; !ok {
		t.Fatalf("submission data = %v", data)
	}
}

func TestStreamPushesCaseChanges(t *testing.T) {
	s := newTestServer(t)
	id := s.createCase(t, "BGV-105")

	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/v1/cases/stream?case_id=" + id
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial stream: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for s.broker.SubscriberCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("stream never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if status, body := s.do(t, http.MethodPost, "/v1/cases/"+id+"/allocate", allocateBody()); status != http.StatusOK {
		t.Fatalf("allocate = %d %v", status, body)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var change ports.CaseChanged
	if err := conn.ReadJSON(&change); err != nil {
		t.Fatalf("read change: %v", err)
	}
	if change.CaseID != id || change.Event != "allocate" || change.To != "allocated" {
		t.Fatalf("change = %+v", change)
	}
}
