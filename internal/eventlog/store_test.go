package eventlog

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-test/deep"

	"github.com/nerrad567/gray-logic-basestation/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-basestation/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-basestation/migrations"
)

// store is the query surface shared by the persistent sinks.
type store interface {
	Sink
	Count(ctx context.Context) (int, error)
	Recent(ctx context.Context, limit int) ([]Event, error)
}

func openSQLiteStore(t *testing.T) store {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "events.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteStore(db, "run-1")
}

func openBoltStore(t *testing.T) store {
	t.Helper()

	s, err := OpenBoltStore(filepath.Join(t.TempDir(), "nested", "events.bolt"), "run-1")
	if err != nil {
		t.Fatalf("OpenBoltStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() }) //nolint:errcheck // Test cleanup
	return s
}

var stores = []struct {
	name string
	open func(t *testing.T) store
}{
	{"sqlite", openSQLiteStore},
	{"bolt", openBoltStore},
}

func TestStore_InsertAndRecent(t *testing.T) {
	for _, st := range stores {
		t.Run(st.name, func(t *testing.T) {
			s := st.open(t)
			ctx := context.Background()
			base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local)

			var want []Event
			for i := range 5 {
				e := Event{
					Time:        base.Add(time.Duration(i) * time.Second),
					DeviceID:    uint32(10 + i%2),
					DeviceInfo:  fmt.Sprintf("sensor-%d", i%2),
					Priority:    Priority(i % 4),
					Description: fmt.Sprintf("event %d", i),
				}
				if err := s.InsertEvent(ctx, e); err != nil {
					t.Fatalf("InsertEvent(%d) error = %v", i, err)
				}
				want = append([]Event{e}, want...)
			}

			n, err := s.Count(ctx)
			if err != nil {
				t.Fatalf("Count() error = %v", err)
			}
			if n != 5 {
				t.Errorf("Count() = %d, want 5", n)
			}

			got, err := s.Recent(ctx, 3)
			if err != nil {
				t.Fatalf("Recent() error = %v", err)
			}
			if diff := deep.Equal(got, want[:3]); diff != nil {
				t.Error(diff)
			}
		})
	}
}

func TestStore_SameSecondKeepsOrder(t *testing.T) {
	for _, st := range stores {
		t.Run(st.name, func(t *testing.T) {
			s := st.open(t)
			ctx := context.Background()
			now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local)

			for _, d := range []string{"first", "second", "third"} {
				e := Event{Time: now, DeviceID: 10, DeviceInfo: "x", Description: d}
				if err := s.InsertEvent(ctx, e); err != nil {
					t.Fatal(err)
				}
			}

			got, err := s.Recent(ctx, 10)
			if err != nil {
				t.Fatalf("Recent() error = %v", err)
			}
			if len(got) != 3 || got[0].Description != "third" || got[2].Description != "first" {
				t.Errorf("Recent() = %+v", got)
			}
		})
	}
}

func TestStore_RejectsInvalidPriority(t *testing.T) {
	for _, st := range stores {
		t.Run(st.name, func(t *testing.T) {
			s := st.open(t)
			ctx := context.Background()

			err := s.InsertEvent(ctx, Event{Time: time.Now(), DeviceID: 10, Priority: 7})
			if !errors.Is(err, ErrInvalidPriority) {
				t.Errorf("InsertEvent() error = %v, want ErrInvalidPriority", err)
			}
			if n, _ := s.Count(ctx); n != 0 {
				t.Errorf("Count() = %d after rejected insert", n)
			}
		})
	}
}

func TestSQLiteStore_RecordsRunID(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(ctx, config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "run.db")})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // Test cleanup
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	for _, run := range []string{"run-a", "run-b"} {
		s := NewSQLiteStore(db, run)
		if err := s.InsertEvent(ctx, Event{Time: time.Now(), DeviceID: 10, DeviceInfo: "x"}); err != nil {
			t.Fatal(err)
		}
	}

	var runs int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT run_id) FROM eventdata WHERE dev_id = 10").Scan(&runs); err != nil {
		t.Fatalf("query error = %v", err)
	}
	if runs != 2 {
		t.Errorf("distinct run ids = %d, want 2", runs)
	}
}

func TestBoltStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.bolt")
	ctx := context.Background()

	s, err := OpenBoltStore(path, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.InsertEvent(ctx, Event{Time: time.Now(), DeviceID: 10, DeviceInfo: "x"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.InsertEvent(ctx, Event{Time: time.Now(), DeviceID: 10}); !errors.Is(err, ErrClosed) {
		t.Errorf("InsertEvent() after Close error = %v, want ErrClosed", err)
	}

	reopened, err := OpenBoltStore(path, "run-2")
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close() //nolint:errcheck // Test cleanup

	if n, _ := reopened.Count(ctx); n != 1 {
		t.Errorf("Count() after reopen = %d, want 1", n)
	}
}

func TestEventKey_Ordering(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := eventKey(t0, 5)
	b := eventKey(t0, 6)
	c := eventKey(t0.Add(time.Nanosecond), 1)

	if string(a) >= string(b) || string(b) >= string(c) {
		t.Errorf("keys not ordered: %x %x %x", a, b, c)
	}
}
