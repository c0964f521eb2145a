package chain

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// FixedSimulator returns predictable values. The clock advances by Step on
// every call to Now so consecutive IDs differ.
type FixedSimulator struct {
	mu      sync.Mutex
	Clock   time.Time
	Step    time.Duration
	Block   int64
	Gas     decimal.Decimal
	Delay   time.Duration
	Fail    bool
	counter int
}

// NewFixedSimulator starts the clock at start and confirms after delay
func NewFixedSimulator(start time.Time, delay time.Duration) *FixedSimulator {
	return &FixedSimulator{
		Clock: start.UTC(),
		Step:  time.Millisecond,
		Block: 42,
		Gas:   decimal.RequireFromString("0.001"),
		Delay: delay,
	}
}

func (s *FixedSimulator) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.Clock
	s.Clock = s.Clock.Add(s.Step)
	return now
}

func (s *FixedSimulator) BlockNumber() int64 { return s.Block }

func (s *FixedSimulator) GasCost(Operation) decimal.Decimal { return s.Gas }

func (s *FixedSimulator) ReceiptHash() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counter++
	return fmt.Sprintf("0x%064x", s.counter)
}

func (s *FixedSimulator) ConfirmationDelay() time.Duration { return s.Delay }

func (s *FixedSimulator) Finalize() bool { return !s.Fail }

func (s *FixedSimulator) PolicyNumber(at time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counter++
	return fmt.Sprintf("POL-%d-%04d", at.Year(), s.counter%10000)
}
