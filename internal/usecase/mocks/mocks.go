package mocks

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iho/betledger/internal/usecase"
)

// MockTransactionManager hands out MockTransactions unless BeginFunc is set.
type MockTransactionManager struct {
	BeginFunc func(ctx context.Context) (usecase.Transaction, error)

	begins atomic.Int32
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	m.begins.Add(1)
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	return &MockTransaction{}, nil
}

// Begins reports how many transactions were requested.
func (m *MockTransactionManager) Begins() int {
	return int(m.begins.Load())
}

// MockTransaction records how it ended.
type MockTransaction struct {
	CommitErr error

	Committed  bool
	RolledBack bool
}

func (m *MockTransaction) Commit(context.Context) error {
	if m.CommitErr != nil {
		return m.CommitErr
	}
	m.Committed = true
	return nil
}

func (m *MockTransaction) Rollback(context.Context) error {
	if !m.Committed {
		m.RolledBack = true
	}
	return nil
}

// MockIDGenerator yields "<prefix><n>" with n counting from 1.
type MockIDGenerator struct {
	Prefix string

	n atomic.Int64
}

func NewMockIDGenerator() *MockIDGenerator {
	return &MockIDGenerator{Prefix: "mock-id-"}
}

func (m *MockIDGenerator) Generate() string {
	return fmt.Sprintf("%s%d", m.Prefix, m.n.Add(1))
}

// MockClock is a settable Clock.
type MockClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewMockClock(now time.Time) *MockClock {
	return &MockClock{now: now}
}

func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// FuncAttributionSink adapts a function to AttributionSink and keeps every
// event it was handed.
type FuncAttributionSink struct {
	SendFn func(ctx context.Context, event usecase.AttributionEvent) error

	mu    sync.Mutex
	calls []usecase.AttributionEvent
}

func (s *FuncAttributionSink) SendEvent(ctx context.Context, event usecase.AttributionEvent) error {
	s.mu.Lock()
	s.calls = append(s.calls, event)
	s.mu.Unlock()
	if s.SendFn != nil {
		return s.SendFn(ctx, event)
	}
	return nil
}

// Calls returns the events received so far.
func (s *FuncAttributionSink) Calls() []usecase.AttributionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]usecase.AttributionEvent(nil), s.calls...)
}
