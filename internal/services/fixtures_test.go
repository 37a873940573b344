package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/modengine/internal/config"
	"github.com/ahmetcoskunkizilkaya/modengine/internal/database"
	"github.com/ahmetcoskunkizilkaya/modengine/internal/models"
	"github.com/ahmetcoskunkizilkaya/modengine/internal/notify"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open("sqlite://:memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func testPolicy(t *testing.T) *config.Policy {
	t.Helper()
	return config.DefaultPolicy()
}

func createUser(t *testing.T, db *gorm.DB, role string) uuid.UUID {
	t.Helper()
	u := models.User{Email: uuid.NewString() + "@example.com", Role: role, CreatedAt: testNow}
	require.NoError(t, db.Create(&u).Error)
	return u.ID
}

func createPost(t *testing.T, db *gorm.DB, author uuid.UUID) string {
	t.Helper()
	p := models.Post{UserID: author, Title: "hello", Body: "a post body"}
	require.NoError(t, db.Create(&p).Error)
	return p.ID.String()
}

func createQuestion(t *testing.T, db *gorm.DB, author uuid.UUID) string {
	t.Helper()
	q := models.Question{UserID: author, Title: "why?", Body: "a question body"}
	require.NoError(t, db.Create(&q).Error)
	return q.ID.String()
}

type memRecorder struct {
	mu      sync.Mutex
	entries []AuditEntry
	err     error
}

func (r *memRecorder) Record(_ context.Context, e AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, e)
	return nil
}

func (r *memRecorder) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

type memNotifier struct {
	mu       sync.Mutex
	requests []notify.Request
	err      error
}

func (n *memNotifier) Notify(_ context.Context, req notify.Request) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.requests = append(n.requests, req)
	return nil
}

func (n *memNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.requests)
}

type testEngine struct {
	svc      *ModerationService
	db       *gorm.DB
	recorder *memRecorder
	notifier *memNotifier
}

func newTestEngine(t *testing.T, mutate func(*config.Policy)) *testEngine {
	t.Helper()
	db := testDB(t)
	policy := testPolicy(t)
	if mutate != nil {
		mutate(policy)
	}
	rec := &memRecorder{}
	n := &memNotifier{}
	svc, err := NewModerationService(db, policy, Options{
		Now:      fixedClock,
		Scale:    FixedScale(1),
		Recorder: rec,
		Notifier: n,
	})
	require.NoError(t, err)
	return &testEngine{svc: svc, db: db, recorder: rec, notifier: n}
}
