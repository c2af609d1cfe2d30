package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"
)

func newTestBoard(t *testing.T, opts ...Option) *Scoreboard {
	t.Helper()
	s := NewScoreboard(context.Background(), opts...)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestScoreboard_BasicOperations(t *testing.T) {
	ctx := context.Background()
	store := newTestBoard(t)

	if count := store.Count(ctx); count != 0 {
		t.Errorf("expected count 0, got %d", count)
	}

	if err := store.Put(ctx, "octo/widgets", 85.5, "healthy"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count := store.Count(ctx); count != 1 {
		t.Errorf("expected count 1, got %d", count)
	}

	entry, err := store.Rank(ctx, "octo/widgets")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Rank != 1 || entry.Score != 85.5 || entry.State != "healthy" {
		t.Errorf("unexpected entry %+v", entry)
	}

	entries, err := store.TopN(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].Repo != "octo/widgets" {
		t.Errorf("unexpected top entries %+v", entries)
	}
}

func TestScoreboard_PutReplaces(t *testing.T) {
	ctx := context.Background()
	store := newTestBoard(t)

	_ = store.Put(ctx, "a/one", 90, "healthy")
	_ = store.Put(ctx, "b/two", 70, "degraded")

	// A lower score still replaces the old one.
	if err := store.Put(ctx, "a/one", 40, "critical"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count := store.Count(ctx); count != 2 {
		t.Errorf("expected count 2, got %d", count)
	}
	entry, _ := store.Rank(ctx, "a/one")
	if entry.Rank != 2 || entry.Score != 40 || entry.State != "critical" {
		t.Errorf("expected a/one at rank 2 with 40, got %+v", entry)
	}
	entry, _ = store.Rank(ctx, "b/two")
	if entry.Rank != 1 {
		t.Errorf("expected b/two at rank 1, got %d", entry.Rank)
	}
}

func TestScoreboard_Ordering(t *testing.T) {
	ctx := context.Background()
	store := newTestBoard(t)

	scores := map[string]float64{
		"o/c": 30.25,
		"o/a": 99.99,
		"o/e": 0,
		"o/b": 64.5,
		"o/d": 12,
	}
	for repo, score := range scores {
		if err := store.Put(ctx, repo, score, ""); err != nil {
			t.Fatalf("put %s: %v", repo, err)
		}
	}

	entries, err := store.TopN(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"o/a", "o/b", "o/c", "o/d", "o/e"}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i, repo := range want {
		if entries[i].Repo != repo {
			t.Errorf("position %d: expected %s, got %s", i, repo, entries[i].Repo)
		}
		if entries[i].Rank != i+1 {
			t.Errorf("position %d: expected rank %d, got %d", i, i+1, entries[i].Rank)
		}
		if entries[i].Score != scores[repo] {
			t.Errorf("position %d: expected score %v, got %v", i, scores[repo], entries[i].Score)
		}
	}

	top, _ := store.TopN(ctx, 2)
	if len(top) != 2 || top[1].Repo != "o/b" {
		t.Errorf("expected two entries ending with o/b, got %+v", top)
	}
}

func TestScoreboard_TieBreaking(t *testing.T) {
	ctx := context.Background()
	store := newTestBoard(t)

	_ = store.Put(ctx, "z/last", 80, "")
	_ = store.Put(ctx, "a/first", 80, "")
	_ = store.Put(ctx, "m/middle", 80, "")
	_ = store.Put(ctx, "x/lower", 50, "")

	entries, _ := store.TopN(ctx, 10)
	want := []struct {
		repo string
		rank int
	}{{"a/first", 1}, {"m/middle", 1}, {"z/last", 1}, {"x/lower", 2}}
	for i, w := range want {
		if entries[i].Repo != w.repo || entries[i].Rank != w.rank {
			t.Errorf("position %d: expected %s at rank %d, got %s at %d", i, w.repo, w.rank, entries[i].Repo, entries[i].Rank)
		}
	}

	entry, _ := store.Rank(ctx, "x/lower")
	if entry.Rank != 2 {
		t.Errorf("expected dense rank 2, got %d", entry.Rank)
	}
}

func TestScoreboard_EdgeCases(t *testing.T) {
	ctx := context.Background()
	store := newTestBoard(t)

	if _, err := store.Rank(ctx, "nobody/here"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.TopN(ctx, 0); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit, got %v", err)
	}
	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if err := store.Put(ctx, "o/r", bad, ""); !errors.Is(err, ErrInvalidScore) {
			t.Errorf("expected ErrInvalidScore for %v, got %v", bad, err)
		}
	}
	entries, err := store.TopN(ctx, 5)
	if err != nil || len(entries) != 0 {
		t.Errorf("expected empty board, got %v %v", entries, err)
	}
}

func TestScoreboard_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := newTestBoard(t)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				repo := fmt.Sprintf("org%d/repo%d", w, i%20)
				_ = store.Put(ctx, repo, float64((w*i)%10000)/100, "")
				_, _ = store.TopN(ctx, 5)
				_, _ = store.Rank(ctx, repo)
			}
		}(w)
	}
	wg.Wait()

	if count := store.Count(ctx); count != 160 {
		t.Errorf("expected 160 repos, got %d", count)
	}
	entries, _ := store.TopN(ctx, 1000)
	for i := 1; i < len(entries); i++ {
		if entries[i].Less(entries[i-1]) {
			t.Fatalf("entries out of order at %d: %+v before %+v", i, entries[i-1], entries[i])
		}
	}
}

func TestScoreboard_PeriodicSnapshots(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	store := newTestBoard(t, WithSnapshotInterval(10*time.Millisecond), WithTopCacheSize(1), WithClock(func() time.Time { return fixed }))

	if snap := store.Snapshot(); snap == nil || len(snap.RankByRepo) != 0 {
		t.Fatalf("expected an empty initial snapshot, got %+v", snap)
	}

	_ = store.Put(ctx, "o/a", 90, "healthy")
	_ = store.Put(ctx, "o/b", 95, "healthy")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if snap := store.Snapshot(); len(snap.RankByRepo) == 2 {
			if snap.RankByRepo["o/b"] != 1 || snap.RankByRepo["o/a"] != 2 {
				t.Errorf("unexpected ranks %v", snap.RankByRepo)
			}
			if len(snap.TopCache) != 1 || snap.TopCache[0].Repo != "o/b" {
				t.Errorf("unexpected top cache %+v", snap.TopCache)
			}
			if !snap.TopCache[0].UpdatedAt.Equal(fixed) {
				t.Errorf("expected UpdatedAt from clock, got %v", snap.TopCache[0].UpdatedAt)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("snapshot never caught up")
}

func TestScoreboard_RankMatchesWalk(t *testing.T) {
	ctx := context.Background()
	store := newTestBoard(t)

	// Few distinct scores so ties form, split and vanish as repos move.
	for i := 0; i < 500; i++ {
		repo := fmt.Sprintf("o/r%02d", (i*7)%40)
		if err := store.Put(ctx, repo, float64((i*13)%9)*10, ""); err != nil {
			t.Fatalf("put %s: %v", repo, err)
		}
	}

	entries, _ := store.TopN(ctx, 100)
	if len(entries) != 40 {
		t.Fatalf("expected 40 entries, got %d", len(entries))
	}
	for _, want := range entries {
		got, err := store.Rank(ctx, want.Repo)
		if err != nil {
			t.Fatalf("rank %s: %v", want.Repo, err)
		}
		if got.Rank != want.Rank || got.Score != want.Score {
			t.Errorf("%s: walk says rank %d score %v, Rank says %d %v", want.Repo, want.Rank, want.Score, got.Rank, got.Score)
		}
	}
}

func TestScoreboard_RankAfterScoreVacated(t *testing.T) {
	ctx := context.Background()
	store := newTestBoard(t)

	_ = store.Put(ctx, "o/a", 90, "")
	_ = store.Put(ctx, "o/b", 80, "")
	_ = store.Put(ctx, "o/c", 70, "")

	// 90 no longer has a holder, so everyone moves up.
	_ = store.Put(ctx, "o/a", 70, "")

	for repo, want := range map[string]int{"o/b": 1, "o/a": 2, "o/c": 2} {
		entry, _ := store.Rank(ctx, repo)
		if entry.Rank != want {
			t.Errorf("%s: expected rank %d, got %d", repo, want, entry.Rank)
		}
	}
}
