package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/thebtf/hcplog/pkg/backend"
	"github.com/thebtf/hcplog/pkg/models"
)

// fakeClock is a manually advanced Clock. Timers fire inside Advance, outside the clock lock.
type fakeClock struct {
	now    time.Time
	timers []*fakeTimer
	mu     sync.Mutex
}

type fakeTimer struct {
	at      time.Time
	clock   *fakeClock
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{at: c.now.Add(d), clock: c, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward by d, firing due timers in order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = next.at
		next.fired = true
		c.mu.Unlock()

		next.f()
	}
}

// pending counts timers that have neither fired nor been stopped.
func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

var errNotConfigured = errors.New("fake backend: call not configured")

// fakeBackend answers with per-endpoint functions and records what it was sent.
type fakeBackend struct {
	saveManual func(models.InteractionRecord) (*backend.RecordResult, error)
	update     func(models.InteractionRecord) (*backend.RecordResult, error)
	logAI      func(string) (*backend.RecordResult, error)
	fillForm   func(string) (*backend.RecordResult, error)
	chatWithAI func(string) (*backend.QueryResult, error)
	chat       func(string, models.LogID) (backend.ChatResult, error)

	texts    []string
	currents []models.LogID
	saved    []models.InteractionRecord
	calls    int
	mu       sync.Mutex
}

func (f *fakeBackend) note(text string, rec *models.InteractionRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if text != "" {
		f.texts = append(f.texts, text)
	}
	if rec != nil {
		f.saved = append(f.saved, *rec)
	}
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeBackend) SaveManual(_ context.Context, r models.InteractionRecord) (*backend.RecordResult, error) {
	f.note("", &r)
	if f.saveManual == nil {
		return nil, errNotConfigured
	}
	return f.saveManual(r)
}

func (f *fakeBackend) UpdateInteraction(_ context.Context, r models.InteractionRecord) (*backend.RecordResult, error) {
	f.note("", &r)
	if f.update == nil {
		return nil, errNotConfigured
	}
	return f.update(r)
}

func (f *fakeBackend) LogInteraction(_ context.Context, text string) (*backend.RecordResult, error) {
	f.note(text, nil)
	if f.logAI == nil {
		return nil, errNotConfigured
	}
	return f.logAI(text)
}

func (f *fakeBackend) FillFormWithAI(_ context.Context, text string) (*backend.RecordResult, error) {
	f.note(text, nil)
	if f.fillForm == nil {
		return nil, errNotConfigured
	}
	return f.fillForm(text)
}

func (f *fakeBackend) ChatWithAI(_ context.Context, text string) (*backend.QueryResult, error) {
	f.note(text, nil)
	if f.chatWithAI == nil {
		return nil, errNotConfigured
	}
	return f.chatWithAI(text)
}

func (f *fakeBackend) Chat(_ context.Context, text string, current models.LogID) (backend.ChatResult, error) {
	f.note(text, nil)
	f.mu.Lock()
	f.currents = append(f.currents, current)
	f.mu.Unlock()
	if f.chat == nil {
		return nil, errNotConfigured
	}
	return f.chat(text, current)
}

// record builds a saved interaction for tests.
func record(id models.LogID, hcp string, sentiment models.Sentiment) models.InteractionRecord {
	return models.InteractionRecord{
		LogID:           id,
		HCPName:         hcp,
		InteractionType: "Meeting",
		Sentiment:       sentiment,
	}
}
