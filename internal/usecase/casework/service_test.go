package casework

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"caseflow/internal/domain/casework"
	"caseflow/internal/infrastructure/persistence/gormstore/model"
	gormrepo "caseflow/internal/infrastructure/persistence/gormstore/repository"
	gormuow "caseflow/internal/infrastructure/persistence/gormstore/uow"
	"caseflow/internal/ports"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type testCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newTestCache() *testCache {
	return &testCache{data: make(map[string]string)}
}

func (c *testCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *testCache) Set(_ context.Context, key string, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *testCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *testCache) value(key string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[key]
}

type testPublisher struct {
	mu      sync.Mutex
	changes []ports.CaseChanged
}

func (p *testPublisher) Publish(_ context.Context, change ports.CaseChanged) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, change)
	return nil
}

func (p *testPublisher) events() []casework.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]casework.EventType, 0, len(p.changes))
	for _, change := range p.changes {
		out = append(out, change.Event)
	}
	return out
}

type testBlob struct {
	mu   sync.Mutex
	puts []ports.BlobObject
	fail map[string]bool
}

func (b *testBlob) Put(_ context.Context, obj ports.BlobObject) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := io.ReadAll(obj.Body); err != nil {
		return "", err
	}
	for name := range b.fail {
		if filepath.Base(obj.Key) == name {
			return "", errors.New("blob backend unavailable")
		}
	}
	b.puts = append(b.puts, obj)
	return "https://blob.test/" + obj.Key, nil
}

func (b *testBlob) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.puts)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

type testEnv struct {
	svc       *Service
	db        *gorm.DB
	repo      *gormrepo.CaseRepository
	subs      *gormrepo.SubmissionRepository
	cache     *testCache
	publisher *testPublisher
	blob      *testBlob
	clock     *testClock
}

func setupService(t *testing.T) *testEnv {
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
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	env := &testEnv{
		db:        db,
		repo:      gormrepo.NewCaseRepository(db),
		subs:      gormrepo.NewSubmissionRepository(db),
		cache:     newTestCache(),
		publisher: &testPublisher{},
		blob:      &testBlob{fail: map[string]bool{}},
		clock:     &testClock{now: t0},
	}
	env.svc = NewService(env.repo, env.subs, gormuow.NewUnitOfWork(db), env.cache,
		WithBlobStore(env.blob),
		WithPublisher(env.publisher),
		WithClock(env.clock.Now),
		WithObjectKey(func(caseID string, fieldID string, fileName string) string {
			return "cases/" + caseID + "/" + fieldID + "/" + fileName
		}),
	)
	return env
}

func (e *testEnv) createCase(t *testing.T, number string) casework.Case {
	t.Helper()
	c, err := e.svc.CreateCase(context.Background(), CreateCaseInput{CaseNumber: number, TATHours: 48})
	if err != nil {
		t.Fatalf("CreateCase() error = %v", err)
	}
	return c
}

func vendorGig() casework.Assignee {
	return casework.Assignee{ID: "gig-7", Type: casework.AssigneeGig, VendorID: "vendor-1"}
}

// acceptedCase creates a case allocated and accepted at t0.
func (e *testEnv) acceptedCase(t *testing.T, number string) casework.Case {
	t.Helper()
	ctx := context.Background()
	c := e.createCase(t, number)
	if _, err := e.svc.Allocate(ctx, AllocateInput{CaseID: c.ID, Actor: "ops", Assignee: vendorGig()}); err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	accepted, err := e.svc.Accept(ctx, c.ID, "gig-7")
	if err != nil {
		t.Fatalf("Accept() error = %v", err)
	}
	return accepted
}

func TestCreateCaseValidatesAndCaches(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	if _, err := env.svc.CreateCase(ctx, CreateCaseInput{}); !errors.Is(err, casework.ErrCaseNumberRequired) {
		t.Fatalf("CreateCase() error = %v", err)
	}

	c := env.createCase(t, "BGV-1")
	if c.Status != casework.StatusNew || c.ID == "" {
		t.Fatalf("CreateCase() = %#v", c)
	}
	if got := env.cache.value(cacheCaseStatusKey(c.ID)); got != "new" {
		t.Fatalf("cache status = %q", got)
	}

	if _, err := env.svc.CreateCase(ctx, CreateCaseInput{CaseNumber: "BGV-1"}); !errors.Is(err, gormrepo.ErrCaseNumberTaken) {
		t.Fatalf("duplicate CreateCase() error = %v", err)
	}
}

func TestServiceRequiresContext(t *testing.T) {
	env := setupService(t)
	if _, err := env.svc.GetCase(nil, "x"); err == nil {
		t.Fatalf("GetCase(nil) expected error")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := env.svc.Accept(ctx, "x", ""); !errors.Is(err, context.Canceled) {
		t.Fatalf("Accept() error = %v", err)
	}
	if _, err := env.svc.Accept(context.Background(), "  ", ""); !errors.Is(err, errCaseIDRequired) {
		t.Fatalf("Accept() error = %v", err)
	}
}
