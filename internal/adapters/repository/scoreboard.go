package repository

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/gitlytix/pkg/metrics"
)

// Treap-backed, in-memory Ranking.
//
// Ordering: score DESC, then repo ASC. "less" means ranks earlier, so an
// in-order walk yields the leaderboard from best to worst. Equal scores share
// a rank and the next distinct score takes the following rank.
//
// A second treap holds one node per distinct score (repo left empty). A dense
// rank is one plus the number of distinct scores ahead, read off its subtree
// sizes.

// scoreScale keeps two decimal places, the precision scores are rounded to.
const scoreScale = 100

type scoreFP int64

func toFixedPoint(x float64) scoreFP {
	return scoreFP(math.Round(x * scoreScale))
}

func toFloat(x scoreFP) float64 {
	return float64(x) / scoreScale
}

type record struct {
	score     scoreFP
	state     string
	updatedAt time.Time
}

// Snapshot is an immutable copy of the board, rebuilt periodically. It backs
// the leaderboard section of /stats so monitoring never takes the write lock.
type Snapshot struct {
	RankByRepo map[string]int
	TopCache   []Entry
	TakenAt    time.Time
}

type node struct {
	repo  string
	score scoreFP
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func less(aScore scoreFP, aRepo string, bScore scoreFP, bRepo string) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	return aRepo < bRepo
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, repo string, score scoreFP) *node {
	if n == nil {
		return &node{repo: repo, score: score, prio: rand.Uint64(), size: 1}
	}
	if less(score, repo, n.score, n.repo) {
		n.left = insert(n.left, repo, score)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, repo, score)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, repo string, score scoreFP) *node {
	if n == nil {
		return nil
	}
	switch {
	case score == n.score && repo == n.repo:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, repo, score)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, repo, score)
		}
	case less(score, repo, n.score, n.repo):
		n.left = deleteNode(n.left, repo, score)
	default:
		n.right = deleteNode(n.right, repo, score)
	}
	fix(n)
	return n
}

// countAhead returns the number of nodes scoring strictly better than score.
func countAhead(n *node, score scoreFP) int {
	ahead := 0
	for n != nil {
		if n.score > score {
			ahead += nsize(n.left) + 1
			n = n.right
		} else {
			n = n.left
		}
	}
	return ahead
}

// walk visits nodes in rank order until visit returns false.
func walk(n *node, visit func(*node) bool) bool {
	if n == nil {
		return true
	}
	if !walk(n.left, visit) {
		return false
	}
	if !visit(n) {
		return false
	}
	return walk(n.right, visit)
}

// Scoreboard ranks repositories by their latest health score.
type Scoreboard struct {
	mu               sync.RWMutex
	root             *node
	byRepo           map[string]record
	scores           *node
	holders          map[scoreFP]int
	snapshotInterval time.Duration
	topCacheSize     int
	now              func() time.Time

	snapshot atomic.Pointer[Snapshot]

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

var _ Ranking = (*Scoreboard)(nil)

// NewScoreboard constructs an empty board and starts its snapshot loop.
func NewScoreboard(ctx context.Context, opts ...Option) *Scoreboard {
	s := &Scoreboard{
		snapshotInterval: time.Second,
		topCacheSize:     100,
		byRepo:           make(map[string]record),
		holders:          make(map[scoreFP]int),
		now:              time.Now,
		stopChan:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.publishSnapshot()
	s.startPeriodicSnapshots(ctx)
	return s
}

func (s *Scoreboard) startPeriodicSnapshots(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.snapshotInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.publishSnapshot()
			}
		}
	}()
}

func (s *Scoreboard) publishSnapshot() {
	s.mu.RLock()
	ranks := make(map[string]int, len(s.byRepo))
	top := make([]Entry, 0, min(s.topCacheSize, len(s.byRepo)))
	s.rankedWalk(func(e Entry) bool {
		ranks[e.Repo] = e.Rank
		if len(top) < s.topCacheSize {
			top = append(top, e)
		}
		return true
	})
	s.mu.RUnlock()

	s.snapshot.Store(&Snapshot{RankByRepo: ranks, TopCache: top, TakenAt: s.now()})
}

// Snapshot returns the most recently published snapshot.
func (s *Scoreboard) Snapshot() *Snapshot {
	return s.snapshot.Load()
}

// Close stops the snapshot loop.
func (s *Scoreboard) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

// Put implements Ranking.Put in O(log n) expected time.
func (s *Scoreboard) Put(ctx context.Context, repo string, score float64, state string) error {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		metrics.RecordErrorByComponent("scoreboard", "invalid_score")
		return ErrInvalidScore
	}
	start := time.Now()
	ns := toFixedPoint(score)

	s.mu.Lock()
	if old, ok := s.byRepo[repo]; ok {
		s.root = deleteNode(s.root, repo, old.score)
		s.release(old.score)
	}
	s.byRepo[repo] = record{score: ns, state: state, updatedAt: s.now()}
	s.root = insert(s.root, repo, ns)
	s.hold(ns)
	size := len(s.byRepo)
	s.mu.Unlock()

	metrics.UpdateScoreboardSize(size)
	metrics.RecordScoreboardUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)
	return nil
}

// hold and release track how many repos share a score. Caller holds s.mu.
func (s *Scoreboard) hold(score scoreFP) {
	s.holders[score]++
	if s.holders[score] == 1 {
		s.scores = insert(s.scores, "", score)
	}
}

func (s *Scoreboard) release(score scoreFP) {
	s.holders[score]--
	if s.holders[score] == 0 {
		delete(s.holders, score)
		s.scores = deleteNode(s.scores, "", score)
	}
}

// Rank implements Ranking.Rank in O(log n) expected time.
func (s *Scoreboard) Rank(ctx context.Context, repo string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byRepo[repo]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return Entry{
		Rank:      countAhead(s.scores, rec.score) + 1,
		Repo:      repo,
		Score:     toFloat(rec.score),
		State:     rec.state,
		UpdatedAt: rec.updatedAt,
	}, nil
}

// TopN implements Ranking.TopN.
func (s *Scoreboard) TopN(ctx context.Context, n int) ([]Entry, error) {
	if n < 1 {
		metrics.RecordErrorByComponent("scoreboard", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, min(n, len(s.byRepo)))
	s.rankedWalk(func(e Entry) bool {
		out = append(out, e)
		return len(out) < n
	})
	return out, nil
}

// Count implements Ranking.Count.
func (s *Scoreboard) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byRepo)
}

// rankedWalk yields entries best-first with dense ranks. Caller holds s.mu.
func (s *Scoreboard) rankedWalk(yield func(Entry) bool) {
	rank := 0
	var prev scoreFP
	walk(s.root, func(n *node) bool {
		if rank == 0 || n.score != prev {
			rank++
			prev = n.score
		}
		rec := s.byRepo[n.repo]
		return yield(Entry{
			Rank:      rank,
			Repo:      n.repo,
			Score:     toFloat(n.score),
			State:     rec.state,
			UpdatedAt: rec.updatedAt,
		})
	})
}
