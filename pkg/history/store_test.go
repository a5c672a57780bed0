package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/teslashibe/go-smartspar/pkg/classifier"
	"github.com/teslashibe/go-smartspar/pkg/session"
	"github.com/teslashibe/go-smartspar/pkg/stats"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func report(id string, ended time.Time, counts map[classifier.PunchType]int) session.Report {
	total := 0
	for _, n := range counts {
		total += n
	}
	return session.Report{
		SessionID:       id,
		StartedAt:       ended.Add(-time.Minute),
		EndedAt:         ended,
		FramesProcessed: 1800,
		FramesDropped:   3,
		Stats: stats.Stats{
			TotalPunches:     total,
			ValidPunches:     total,
			Accuracy:         100,
			GuardWarnings:    2,
			GuardPerfection:  87.5,
			PunchCounts:      counts,
			SessionDuration:  60,
			PunchesPerMinute: float64(total),
		},
	}
}

func TestSaveAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ended := time.Date(2026, 3, 1, 18, 30, 0, 123456789, time.UTC)

	want := report("s1", ended, map[classifier.PunchType]int{
		classifier.Jab: 10, classifier.Cross: 6, classifier.Hook: 3,
	})
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if !got.EndedAt.Equal(want.EndedAt) || !got.StartedAt.Equal(want.StartedAt) {
		t.Errorf("times = %v..%v, want %v..%v", got.StartedAt, got.EndedAt, want.StartedAt, want.EndedAt)
	}
	if got.FramesProcessed != 1800 || got.FramesDropped != 3 {
		t.Errorf("frames = %d/%d", got.FramesProcessed, got.FramesDropped)
	}
	if got.Stats.TotalPunches != 19 || got.Stats.GuardPerfection != 87.5 {
		t.Errorf("stats = %+v", got.Stats)
	}
	for _, p := range classifier.PunchTypes {
		if got.Stats.PunchCounts[p] != want.Stats.PunchCounts[p] {
			t.Errorf("punch_counts[%s] = %d, want %d", p, got.Stats.PunchCounts[p], want.Stats.PunchCounts[p])
		}
	}
}

func TestGet_NotFound(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSave_Replaces(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	s.Save(ctx, report("s1", now, map[classifier.PunchType]int{classifier.Jab: 5}))
	if err := s.Save(ctx, report("s1", now, map[classifier.PunchType]int{classifier.Hook: 2})); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, _ := s.Get(ctx, "s1")
	if got.Stats.PunchCounts[classifier.Jab] != 0 || got.Stats.PunchCounts[classifier.Hook] != 2 {
		t.Errorf("punch counts not replaced: %v", got.Stats.PunchCounts)
	}

	all, _ := s.List(ctx, 0)
	if len(all) != 1 {
		t.Errorf("List len = %d, want 1", len(all))
	}
}

func TestList_NewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	// Whole and fractional seconds must still sort correctly
	ends := map[string]time.Time{
		"a": base,
		"b": base.Add(500 * time.Millisecond),
		"c": base.Add(2 * time.Second),
	}
	for id, ended := range ends {
		if err := s.Save(ctx, report(id, ended, nil)); err != nil {
			t.Fatalf("Save %s: %v", id, err)
		}
	}

	tests := []struct {
		limit int
		want  []string
	}{
		{0, []string{"c", "b", "a"}},
		{2, []string{"c", "b"}},
		{10, []string{"c", "b", "a"}},
	}

	for _, tt := range tests {
		got, err := s.List(ctx, tt.limit)
		if err != nil {
			t.Fatalf("List(%d): %v", tt.limit, err)
		}
		if len(got) != len(tt.want) {
			t.Fatalf("List(%d) len = %d, want %d", tt.limit, len(got), len(tt.want))
		}
		for i, id := range tt.want {
			if got[i].SessionID != id {
				t.Errorf("List(%d)[%d] = %s, want %s", tt.limit, i, got[i].SessionID, id)
			}
		}
		if got[0].Stats.PunchCounts == nil {
			t.Error("listed reports should carry punch counts")
		}
	}
}

func TestTotals(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	empty, err := s.Totals(ctx)
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	if empty.Sessions != 0 || empty.Punches != 0 || len(empty.PunchCounts) != 4 {
		t.Errorf("empty totals = %+v", empty)
	}

	s.Save(ctx, report("a", time.Now(), map[classifier.PunchType]int{classifier.Jab: 4}))
	s.Save(ctx, report("b", time.Now(), map[classifier.PunchType]int{classifier.Jab: 1, classifier.Uppercut: 2}))

	tot, err := s.Totals(ctx)
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	if tot.Sessions != 2 || tot.Punches != 7 || tot.GuardWarnings != 4 || tot.Seconds != 120 {
		t.Errorf("totals = %+v", tot)
	}
	if tot.PunchCounts[classifier.Jab] != 5 || tot.PunchCounts[classifier.Uppercut] != 2 {
		t.Errorf("punch totals = %v", tot.PunchCounts)
	}
}

func TestDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.Save(ctx, report("s1", time.Now(), nil))
	if err := s.Delete(ctx, "s1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.Delete(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.Save(ctx, report("s1", time.Now(), nil))
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	if _, err := s.Get(ctx, "s1"); err != nil {
		t.Errorf("report lost across reopen: %v", err)
	}
}
