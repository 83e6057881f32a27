package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/TAO-07/no-one-answer/internal/records"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "nested", "records.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreCreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	callAt := time.Date(2026, 4, 2, 21, 15, 0, 500, time.UTC)

	created, err := store.Create(ctx, records.Record{
		Caller:  "grandma",
		Outcome: records.OutcomeMissed,
		Note:    "rang twice",
		Tags:    []string{"family", "evening"},
		CallAt:  callAt,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == uuid.Nil || created.CreatedAt.IsZero() || !created.CreatedAt.Equal(created.UpdatedAt) {
		t.Fatalf("unexpected created record %+v", created)
	}

	got, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != created.ID || got.Caller != "grandma" || got.Outcome != records.OutcomeMissed || got.Note != "rang twice" {
		t.Fatalf("unexpected record %+v", got)
	}
	if !reflect.DeepEqual(got.Tags, []string{"family", "evening"}) {
		t.Fatalf("unexpected tags %q", got.Tags)
	}
	if !got.CallAt.Equal(callAt.Truncate(time.Microsecond)) || !got.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("times did not round-trip: %v %v", got.CallAt, got.CreatedAt)
	}
}

func TestStoreCreateRejectsInvalid(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Create(context.Background(), records.Record{Caller: "x", Outcome: "unknown"}); !errors.Is(err, records.ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord, got %v", err)
	}
}

func TestStoreListOrdersByCallTime(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, caller := range []string{"first", "third", "second"} {
		offset := map[string]time.Duration{"first": 0, "second": time.Hour, "third": 2 * time.Hour}[caller]
		if _, err := store.Create(ctx, records.Record{Caller: caller, Outcome: records.OutcomeDeclined, CallAt: base.Add(offset)}); err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
	}

	list, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var callers []string
	for _, rec := range list {
		callers = append(callers, rec.Caller)
		if rec.Tags == nil {
			t.Fatalf("tags should decode to an empty slice")
		}
	}
	if !reflect.DeepEqual(callers, []string{"third", "second", "first"}) {
		t.Fatalf("unexpected order %q", callers)
	}

	limited, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("List limit: %v", err)
	}
	if len(limited) != 2 || limited[0].Caller != "third" {
		t.Fatalf("unexpected limited list %+v", limited)
	}
}

func TestStoreUpdate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	clock := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }

	created, err := store.Create(ctx, records.Record{Caller: "boss", Outcome: records.OutcomeDeclined})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	clock = clock.Add(time.Minute)

	created.Outcome = records.OutcomeAccepted
	created.Note = "called back"
	created.Tags = []string{"work"}
	updated, err := store.Update(ctx, created)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Outcome != records.OutcomeAccepted || updated.Note != "called back" || !reflect.DeepEqual(updated.Tags, []string{"work"}) {
		t.Fatalf("unexpected updated record %+v", updated)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) || !updated.UpdatedAt.Equal(clock) {
		t.Fatalf("unexpected timestamps created=%v updated=%v", updated.CreatedAt, updated.UpdatedAt)
	}

	if _, err := store.Update(ctx, records.Record{ID: uuid.New(), Caller: "ghost", Outcome: records.OutcomeMissed}); !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	created, err := store.Create(ctx, records.Record{Caller: "spam", Outcome: records.OutcomeDeclined})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, created.ID); !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, created.ID); !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if err := store.PingContext(ctx); err != nil {
		t.Fatalf("PingContext: %v", err)
	}
}
