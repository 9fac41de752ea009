package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"trivia/internal/domain"
)

// fakeClock fires timers synchronously from Advance, in deadline order
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
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

// Advance moves time forward by d, running every timer that comes due
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var due *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at.After(target) {
				continue
			}
			if due == nil || t.at.Before(due.at) {
				due = t
			}
		}
		if due == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		due.fired = true
		c.now = due.at
		c.mu.Unlock()

		due.f()
	}
}

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

// fakeQuestions hands out valid questions q1, q2, ... unless an error is queued
type fakeQuestions struct {
	mu       sync.Mutex
	calls    int
	requests []domain.QuestionRequest
	errs     []error
	empty    bool // return questions without an id
	invalid  bool
}

func (f *fakeQuestions) Generate(_ context.Context, req domain.QuestionRequest) (domain.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.requests = append(f.requests, req)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return domain.Question{}, err
		}
	}

	q := testQuestion(fmt.Sprintf("q%d", f.calls))
	if f.empty {
		q.ID = ""
	}
	if f.invalid {
		q.Options = q.Options[:2]
	}
	return q, nil
}

func (f *fakeQuestions) failNext(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = append(f.errs, err)
}

func (f *fakeQuestions) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testQuestion(id string) domain.Question {
	return domain.Question{
		ID:            id,
		Text:          "Which prophet was swallowed by a whale?",
		CorrectAnswer: "Yunus",
		Options:       []string{"Yunus", "Musa", "Harun", "Dawud"},
		Explanation:   "Yunus prayed from the belly of the whale.",
	}
}

// fakeGrader accepts "Yunus" unless an error is queued; with a gate set,
// Grade signals started and waits for the gate to close
type fakeGrader struct {
	mu      sync.Mutex
	calls   int
	errs    []error
	gate    chan struct{}
	started chan struct{}
}

func (g *fakeGrader) Grade(ctx context.Context, _, correctAnswer, answer string) (bool, error) {
	g.mu.Lock()
	g.calls++
	var err error
	if len(g.errs) > 0 {
		err = g.errs[0]
		g.errs = g.errs[1:]
	}
	gate, started := g.gate, g.started
	g.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	if err != nil {
		return false, err
	}
	return answer == correctAnswer, nil
}

func (g *fakeGrader) failNext(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.errs = append(g.errs, err)
}

func (g *fakeGrader) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type switchConnectivity struct {
	offline atomic.Bool
}

func (s *switchConnectivity) Online() bool {
	return !s.offline.Load()
}

type fakeRecorder struct {
	games chan domain.GameSummary
	gate  chan struct{} // when set, RecordGame waits for it
}

func (r *fakeRecorder) RecordGame(ctx context.Context, summary domain.GameSummary) error {
	if r.gate != nil {
		<-r.gate
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.games <- summary
	return nil
}

// fakeClient collects broadcast events
type fakeClient struct {
	events chan *domain.GameEvent
	closed atomic.Bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{events: make(chan *domain.GameEvent, 256)}
}

func (c *fakeClient) Send(message interface{}) error {
	if ev, ok := message.(*domain.GameEvent); ok {
		c.events <- ev
	}
	return nil
}

func (c *fakeClient) Close() error {
	c.closed.Store(true)
	return nil
}

// waitFor returns the first event of type typ received within a second
func (c *fakeClient) waitFor(t *testing.T, typ domain.EventType) *domain.GameEvent {
	t.Helper()
	timeout := time.After(time.Second)
	for {
		select {
		case ev := <-c.events:
			if ev.Type == typ {
				return ev
			}
		case <-timeout:
			t.Fatalf("no %s event received", typ)
			return nil
		}
	}
}

type harness struct {
	engine    *Engine
	clock     *fakeClock
	questions *fakeQuestions
	grader    *fakeGrader
	net       *switchConnectivity
	recorder  *fakeRecorder
}

func newHarness(t *testing.T, settings domain.GameSettings) *harness {
	t.Helper()
	h := &harness{
		clock:     newFakeClock(),
		questions: &fakeQuestions{},
		grader:    &fakeGrader{},
		net:       &switchConnectivity{},
		recorder:  &fakeRecorder{games: make(chan domain.GameSummary, 1)},
	}
	h.engine = NewEngine("TABLE1", Deps{
		Questions:    h.questions,
		Grader:       h.grader,
		Connectivity: h.net,
		Recorder:     h.recorder,
		Clock:        h.clock,
		Rand:         rand.New(rand.NewSource(1)),
		Settings:     settings,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(h.engine.Close)
	return h
}

func testPlayers(n int) []domain.Player {
	names := []string{"Aisha", "Omar", "Khadija", "Bilal", "Fatima", "Zaid"}
	players := make([]domain.Player, n)
	for i := range players {
		players[i] = domain.Player{ID: fmt.Sprintf("p%d", i+1), Name: names[i]}
	}
	return players
}

// started returns a harness whose game is on turn 1 in DIRECT
func started(t *testing.T, settings domain.GameSettings, players int) *harness {
	t.Helper()
	h := newHarness(t, settings)
	if err := h.engine.Start(context.Background(), testPlayers(players)); err != nil {
		t.Fatalf("start: %v", err)
	}
	return h
}
