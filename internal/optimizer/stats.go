package optimizer

import (
	"sort"
	"sync"

	"go.uber.org/atomic"
)

// ============================================================================
// 规则统计
// ============================================================================

// Family 规则族
type Family uint8

const (
	FamilyUnary Family = iota
	FamilyBinary
	FamilyFold
	FamilyThrow
	FamilyBlock
	FamilyTry
	FamilyMember
	FamilyBeta
	numFamilies
)

var familyNames = [...]string{
	FamilyUnary:  "unary",
	FamilyBinary: "binary",
	FamilyFold:   "fold",
	FamilyThrow:  "throw",
	FamilyBlock:  "block",
	FamilyTry:    "try",
	FamilyMember: "member",
	FamilyBeta:   "beta",
}

func (f Family) String() string {
	if int(f) < len(familyNames) {
		return familyNames[f]
	}
	return "family?"
}

// Stats 优化器统计；计数器可被多个并发的 Optimize 调用共享
type Stats struct {
	rewrites [numFamilies]atomic.Int64
	reduce   ReduceStats
}

// ReduceStats lambda 内联统计
type ReduceStats struct {
	attempts atomic.Int64
	reduced  atomic.Int64

	mu      sync.Mutex
	skipped map[string]int64
}

func (s *ReduceStats) skip(reason string) {
	s.mu.Lock()
	if s.skipped == nil {
		s.skipped = make(map[string]int64)
	}
	s.skipped[reason]++
	s.mu.Unlock()
}

// StatsSnapshot 统计快照，可直接序列化
type StatsSnapshot struct {
	Rewrites map[string]int64 `json:"rewrites"`
	Reduce   ReduceSnapshot   `json:"reduce"`
}

// ReduceSnapshot 内联统计快照
type ReduceSnapshot struct {
	Attempts int64            `json:"attempts"`
	Reduced  int64            `json:"reduced"`
	Skipped  map[string]int64 `json:"skipped,omitempty"`
}

// Total 全部规则的改写次数
func (s StatsSnapshot) Total() int64 {
	var n int64
	for _, v := range s.Rewrites {
		n += v
	}
	return n
}

// Reasons 按次数降序排列的拒绝原因
func (s ReduceSnapshot) Reasons() []string {
	out := make([]string, 0, len(s.Skipped))
	for r := range s.Skipped {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if s.Skipped[out[i]] != s.Skipped[out[j]] {
			return s.Skipped[out[i]] > s.Skipped[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}

// Snapshot 读取当前统计
func (s *Stats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{Rewrites: make(map[string]int64)}
	for f := Family(0); f < numFamilies; f++ {
		if n := s.rewrites[f].Load(); n > 0 {
			snap.Rewrites[f.String()] = n
		}
	}
	snap.Reduce.Attempts = s.reduce.attempts.Load()
	snap.Reduce.Reduced = s.reduce.reduced.Load()
	s.reduce.mu.Lock()
	if len(s.reduce.skipped) > 0 {
		snap.Reduce.Skipped = make(map[string]int64, len(s.reduce.skipped))
		for k, v := range s.reduce.skipped {
			snap.Reduce.Skipped[k] = v
		}
	}
	s.reduce.mu.Unlock()
	return snap
}
