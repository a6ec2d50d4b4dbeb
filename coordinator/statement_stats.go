package coordinator

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultStatementStatsSize bounds the statistics table when no size is configured
const DefaultStatementStatsSize = 1024

var (
	stringLiteral  = regexp.MustCompile(`'(?:[^'\\]|\\.|'')*'|"(?:[^"\\]|\\.)*"`)
	numericLiteral = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)
	literalList    = regexp.MustCompile(`\(\s*\?(?:\s*,\s*\?)*\s*\)`)
	whitespace     = regexp.MustCompile(`\s+`)
)

// StatementStat aggregates executions of statements sharing a fingerprint.
type StatementStat struct {
	Fingerprint   string        `json:"fingerprint"`
	LastQuery     string        `json:"last_query"`
	LastStrategy  string        `json:"last_strategy"`
	Hits          uint64        `json:"hits"`
	Errors        uint64        `json:"errors"`
	Retries       uint64        `json:"retries"`
	TotalDuration time.Duration `json:"total_duration_ns"`
	LastSeen      time.Time     `json:"last_seen"`
}

// StatementStats is a bounded LRU of StatementStat keyed by the XXH64 hash
// of the statement fingerprint.
type StatementStats struct {
	mu    sync.Mutex
	cache *lru.Cache[uint64, *StatementStat]
}

// NewStatementStats creates a statistics table holding at most size fingerprints.
func NewStatementStats(size int) (*StatementStats, error) {
	if size <= 0 {
		size = DefaultStatementStatsSize
	}
	cache, err := lru.New[uint64, *StatementStat](size)
	if err != nil {
		return nil, err
	}
	return &StatementStats{cache: cache}, nil
}

// Fingerprint replaces literals with ? and collapses whitespace so that
// statements differing only in values share an entry.
func Fingerprint(sql string) string {
	fp := stringLiteral.ReplaceAllString(sql, "?")
	fp = numericLiteral.ReplaceAllString(fp, "?")
	fp = literalList.ReplaceAllString(fp, "(?)")
	fp = whitespace.ReplaceAllString(strings.TrimSpace(fp), " ")
	return strings.ToLower(strings.TrimRight(fp, "; "))
}

// Record accounts one execution of sql.
func (s *StatementStats) Record(sql, strategy string, duration time.Duration, failed, retried bool) {
	if s == nil {
		return
	}
	fp := Fingerprint(sql)
	key := xxhash.Sum64String(fp)

	s.mu.Lock()
	defer s.mu.Unlock()

	stat, ok := s.cache.Get(key)
	if !ok {
		stat = &StatementStat{Fingerprint: fp}
		s.cache.Add(key, stat)
	}
	stat.Hits++
	if failed {
		stat.Errors++
	}
	if retried {
		stat.Retries++
	}
	stat.LastQuery = sql
	stat.LastStrategy = strategy
	stat.TotalDuration += duration
	stat.LastSeen = time.Now()
}

// Snapshot returns copies of all entries, most hit first.
func (s *StatementStats) Snapshot() []StatementStat {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	out := make([]StatementStat, 0, s.cache.Len())
	for _, key := range s.cache.Keys() {
		if stat, ok := s.cache.Peek(key); ok {
			out = append(out, *stat)
		}
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Hits != out[j].Hits {
			return out[i].Hits > out[j].Hits
		}
		return out[i].Fingerprint < out[j].Fingerprint
	})
	return out
}

// TrackedCount returns the number of fingerprints held.
func (s *StatementStats) TrackedCount() int {
	if s == nil {
		return 0
	}
	return s.cache.Len()
}

// Reset drops every entry.
func (s *StatementStats) Reset() {
	if s == nil {
		return
	}
	s.cache.Purge()
}
