package mailer

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stats holds process-lifetime rolling delivery counters. Counters are
// monotonically increasing and reset only on process restart. Safe for
// concurrent use; mutated exclusively by the Mailer.
type Stats struct {
	sent    atomic.Int64
	failed  atomic.Int64
	retries atomic.Int64

	mu         sync.Mutex
	lastSentAt time.Time
	lastError  *LastError
}

// LastError captures the most recent terminal delivery failure.
type LastError struct {
	Recipient string
	Message   string
	At        time.Time
}

// Snapshot is a point-in-time, read-only view of Stats.
type Snapshot struct {
	Sent        int64
	Failed      int64
	Retries     int64
	LastSentAt  time.Time
	LastError   *LastError
	SuccessRate float64 // sent / (sent + failed), 0 when nothing delivered yet
}

// NewStats creates an empty stats counter set.
func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) recordSent(at time.Time) {
	s.sent.Add(1)
	s.mu.Lock()
	s.lastSentAt = at
	s.mu.Unlock()
}

func (s *Stats) recordFailure(recipient string, err error, at time.Time) {
	s.failed.Add(1)
	s.mu.Lock()
	s.lastError = &LastError{
		Recipient: recipient,
		Message:   err.Error(),
		At:        at,
	}
	s.mu.Unlock()
}

func (s *Stats) recordRetry() {
	s.retries.Add(1)
}

// Snapshot returns a consistent copy of the current counters.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	lastSentAt := s.lastSentAt
	var lastError *LastError
	if s.lastError != nil {
		le := *s.lastError
		lastError = &le
	}
	s.mu.Unlock()

	sent := s.sent.Load()
	failed := s.failed.Load()

	var rate float64
	if total := sent + failed; total > 0 {
		rate = float64(sent) / float64(total)
	}

	return Snapshot{
		Sent:        sent,
		Failed:      failed,
		Retries:     s.retries.Load(),
		LastSentAt:  lastSentAt,
		LastError:   lastError,
		SuccessRate: rate,
	}
}
