package hydro

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/hydroponics-core/internal/infrastructure/database"
	_ "github.com/nerrad567/hydroponics-core/migrations"
)

var (
	alice = Principal{UserID: "usr-alice", Username: "alice"}
	bob   = Principal{UserID: "usr-bob", Username: "bob"}
)

// testDB opens a migrated database with alice and bob as users.
func testDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "hydro.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	for _, p := range []Principal{alice, bob} {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO users (id, username, password_hash, is_active, created_at, updated_at)
			 VALUES (?, ?, 'x', 1, '2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z')`,
			p.UserID, p.Username); err != nil {
			t.Fatalf("seeding user %s: %v", p.Username, err)
		}
	}
	return db
}

// fakeClock advances one second on every reading.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

// testService returns a service over a fresh database with a ticking clock.
func testService(t *testing.T) (*Service, *database.DB) {
	t.Helper()
	db := testDB(t)
	svc := NewService(NewSQLiteStore(db.DB), PageLimits{Default: 10, Max: 100})
	svc.SetClock(newFakeClock().Now)
	return svc, db
}

func ptr[T any](v T) *T { return &v }

func mustCreateSystem(t *testing.T, svc *Service, p Principal, name string) *System {
	t.Helper()
	sys, err := svc.CreateSystem(context.Background(), p, SystemDraft{Name: &name})
	if err != nil {
		t.Fatalf("CreateSystem(%q) error = %v", name, err)
	}
	return sys
}

func mustCreateMeasurement(t *testing.T, svc *Service, p Principal, systemID int64, ph float64) *Measurement {
	t.Helper()
	m, err := svc.CreateMeasurement(context.Background(), p, MeasurementDraft{
		System:      &systemID,
		PH:          &ph,
		Temperature: ptr(21.5),
		TDS:         ptr(800.0),
	})
	if err != nil {
		t.Fatalf("CreateMeasurement(ph=%v) error = %v", ph, err)
	}
	return m
}
