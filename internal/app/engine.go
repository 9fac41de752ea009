package app

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"trivia/internal/domain"
)

// ErrEngineClosed is returned by operations on a closed engine
var ErrEngineClosed = errors.New("engine closed")

const recordTimeout = 5 * time.Second

// ClientConnection represents a connected client
type ClientConnection interface {
	Send(message interface{}) error
	Close() error
}

// Deps are the collaborators an Engine is built from
type Deps struct {
	Questions    QuestionSource
	Grader       Grader
	Connectivity Connectivity
	Recorder     Recorder
	Clock        Clock
	Rand         *rand.Rand
	Settings     domain.GameSettings
	TickInterval time.Duration
	Logger       *slog.Logger
}

// View is a snapshot of the engine for display
type View struct {
	State   domain.GameState     `json:"state"`
	Busy    bool                 `json:"busy"`
	Error   *domain.ErrorPayload `json:"error,omitempty"`
	Ranking []domain.Player      `json:"ranking,omitempty"`
}

// Engine owns one game. It is the only writer of its GameState and
// serializes every transition; external calls run without the lock held,
// guarded by a single in-flight flag.
type Engine struct {
	id    string
	mu    sync.Mutex
	state domain.GameState
	gen   uint64 // bumped on every applied transition
	busy  bool
	fault error

	timer        *countdown
	advanceTimer Timer

	questions    QuestionSource
	grader       Grader
	connectivity Connectivity
	recorder     Recorder
	clock        Clock
	rng          *rand.Rand
	logger       *slog.Logger

	ctx        context.Context
	cancel     context.CancelFunc
	lastActive time.Time
	closed     bool

	clients   map[string]ClientConnection
	clientsMu sync.RWMutex

	// Event channel for broadcasting
	events chan *domain.GameEvent
	done   chan struct{}
}

// NewEngine creates an engine for a game in SETUP
func NewEngine(id string, deps Deps) *Engine {
	if deps.Clock == nil {
		deps.Clock = RealClock()
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if deps.Connectivity == nil {
		deps.Connectivity = alwaysOnline{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Settings == (domain.GameSettings{}) {
		deps.Settings = domain.DefaultGameSettings()
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		id:           id,
		state:        domain.NewGameState(id, deps.Settings),
		timer:        newCountdown(deps.Clock, deps.TickInterval),
		questions:    deps.Questions,
		grader:       deps.Grader,
		connectivity: deps.Connectivity,
		recorder:     deps.Recorder,
		clock:        deps.Clock,
		rng:          deps.Rand,
		logger:       deps.Logger.With("table", id),
		ctx:          ctx,
		cancel:       cancel,
		lastActive:   deps.Clock.Now(),
		clients:      make(map[string]ClientConnection),
		events:       make(chan *domain.GameEvent, 100),
		done:         make(chan struct{}),
	}

	go e.eventLoop()

	return e
}

// ID returns the game ID
func (e *Engine) ID() string {
	return e.id
}

// State returns the current game state
func (e *Engine) State() domain.GameState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// View returns a display snapshot
func (e *Engine) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewLocked()
}

func (e *Engine) viewLocked() View {
	view := View{
		State: e.state.Public(),
		Busy:  e.busy,
	}
	if e.fault != nil {
		view.Error = domain.NewErrorPayload(e.fault)
	}
	if e.state.Status == domain.StatusFinished {
		view.Ranking = e.state.Ranking()
	}
	return view
}

// Fault returns the error currently blocking timer-driven progress, if any
func (e *Engine) Fault() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fault
}

// LastActive returns when the game last changed state
func (e *Engine) LastActive() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastActive
}

// Start fetches the first question and begins the game with players
func (e *Engine) Start(ctx context.Context, players []domain.Player) error {
	const op = "start"

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	if e.state.Status != domain.StatusSetup {
		e.mu.Unlock()
		return domain.ErrGameStarted
	}
	if err := e.state.Settings.ValidatePlayers(players); err != nil {
		e.mu.Unlock()
		return err
	}
	if e.busy {
		e.mu.Unlock()
		return nil
	}
	if !e.connectivity.Online() {
		defer e.mu.Unlock()
		return e.fail(op, domain.NewError(op, domain.ErrOffline, nil))
	}
	req := e.questionRequest()
	gen := e.beginCall()
	e.mu.Unlock()

	callCtx, cancel := e.callContext(ctx)
	q, err := e.questions.Generate(callCtx, req)
	cancel()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.busy = false
	if gen != e.gen {
		return e.superseded()
	}
	if err != nil {
		return e.fail(op, err)
	}
	q, err = e.prepareQuestion(op, req, q)
	if err != nil {
		return e.fail(op, err)
	}

	next, err := e.state.Start(players, q)
	if err != nil {
		return err
	}
	e.apply(next)
	return nil
}

// SubmitDirectAnswer grades a free-text answer for the current question.
// Empty answers and answers submitted while grading is in flight are ignored.
func (e *Engine) SubmitDirectAnswer(ctx context.Context, text string) error {
	const op = "submit_direct_answer"
	text = strings.TrimSpace(text)

	e.mu.Lock()
	if err := e.requireStage(domain.StageDirect); err != nil {
		e.mu.Unlock()
		return err
	}
	if text == "" || e.busy {
		e.mu.Unlock()
		return nil
	}
	q := *e.state.CurrentQuestion
	gen := e.beginCall()
	e.mu.Unlock()

	callCtx, cancel := e.callContext(ctx)
	correct, err := e.grader.Grade(callCtx, q.Text, q.CorrectAnswer, text)
	cancel()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.busy = false
	if gen != e.gen {
		return e.superseded()
	}
	if err != nil {
		return e.fail(op, err)
	}

	next, err := e.state.GradeDirect(correct)
	if err != nil {
		return err
	}
	e.logger.Debug("direct answer graded", "correct", correct, "turn", next.Turn)
	e.apply(next)
	return nil
}

// SelectOption answers the multiple-choice stage. It reports false, and
// changes nothing, if the stage is not MULTIPLE_CHOICE or an option was
// already chosen.
func (e *Engine) SelectOption(option string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.busy {
		return false
	}
	next, ok := e.state.SelectOption(option)
	if !ok {
		return false
	}
	e.apply(next)
	return true
}

// TimeExpire applies the countdown for the current stage reaching zero.
// It reports false when the stage has no countdown.
func (e *Engine) TimeExpire() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.expire()
}

func (e *Engine) expire() bool {
	if e.closed || e.busy {
		return false
	}
	next, ok := e.state.Expire()
	if !ok {
		return false
	}
	e.apply(next)
	return true
}

// AdvanceTurn ends the RESULT stage: the game finishes if anyone reached
// the win threshold, otherwise the next player gets a new question.
func (e *Engine) AdvanceTurn(ctx context.Context) error {
	return e.advance(ctx, false, 0)
}

func (e *Engine) advance(ctx context.Context, auto bool, armedGen uint64) error {
	const op = "advance_turn"

	e.mu.Lock()
	if auto && armedGen != e.gen {
		e.mu.Unlock()
		return nil
	}
	if err := e.requireStage(domain.StageResult); err != nil {
		e.mu.Unlock()
		return err
	}
	if e.busy {
		e.mu.Unlock()
		return nil
	}
	e.cancelAutoAdvance()

	if e.state.HasWinner() {
		defer e.mu.Unlock()
		next, err := e.state.Finish()
		if err != nil {
			return err
		}
		e.apply(next)
		return nil
	}
	if !e.connectivity.Online() {
		defer e.mu.Unlock()
		return e.fail(op, domain.NewError(op, domain.ErrOffline, nil))
	}
	req := e.questionRequest()
	gen := e.beginCall()
	e.mu.Unlock()

	callCtx, cancel := e.callContext(ctx)
	q, err := e.questions.Generate(callCtx, req)
	cancel()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.busy = false
	if gen != e.gen {
		return e.superseded()
	}
	if err != nil {
		return e.fail(op, err)
	}
	q, err = e.prepareQuestion(op, req, q)
	if err != nil {
		return e.fail(op, err)
	}

	next, err := e.state.NextTurn(q)
	if err != nil {
		return err
	}
	e.apply(next)
	return nil
}

// DismissError clears a displayed failure and resumes the countdown of a
// timed stage with the time that was left.
func (e *Engine) DismissError() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.fault == nil {
		return false
	}
	e.fault = nil
	if e.state.Status == domain.StatusPlaying && e.state.Stage.Timed() && !e.busy {
		e.timer.arm(e.onTick)
	}
	e.queueEvent(domain.NewEvent(domain.EventStateChanged, e.state.ID, e.viewLocked()))
	return true
}

// requireStage checks a turn is live in stage (caller must hold lock)
func (e *Engine) requireStage(stage domain.Stage) error {
	switch {
	case e.closed:
		return ErrEngineClosed
	case e.state.Status == domain.StatusSetup:
		return domain.ErrNoQuestion
	case e.state.Status == domain.StatusFinished:
		return domain.ErrGameFinished
	case e.state.Stage != stage:
		return domain.ErrInvalidStage
	}
	return nil
}

// beginCall marks an external call in flight and freezes the countdown
// (caller must hold lock)
func (e *Engine) beginCall() uint64 {
	e.busy = true
	e.timer.disarm()
	return e.gen
}

func (e *Engine) superseded() error {
	if e.closed {
		return ErrEngineClosed
	}
	return nil
}

// callContext bounds a collaborator call by the engine's lifetime instead
// of the caller's. Values of ctx are kept.
func (e *Engine) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(e.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// fail records a visible failure; state is left as it was (caller must hold lock)
func (e *Engine) fail(op string, err error) error {
	err = classify(op, err)
	e.fault = err
	e.timer.disarm()
	e.logger.Warn("operation failed", "op", op, "error", err)
	e.queueEvent(domain.NewEvent(domain.EventError, e.state.ID, domain.NewErrorPayload(err)))
	return err
}

// questionRequest picks the category for the next question (caller must hold lock)
func (e *Engine) questionRequest() domain.QuestionRequest {
	return domain.QuestionRequest{
		Category: domain.RandomCategory(e.rng),
		UsedIDs:  slices.Clone(e.state.UsedQuestionIDs),
	}
}

// prepareQuestion stamps, validates and shuffles a generated question
// (caller must hold lock)
func (e *Engine) prepareQuestion(op string, req domain.QuestionRequest, q domain.Question) (domain.Question, error) {
	q.Category = req.Category
	if strings.TrimSpace(q.ID) == "" {
		id, err := uuid.NewRandomFromReader(e.rng)
		if err != nil {
			return q, domain.NewError(op, domain.ErrService, err)
		}
		q.ID = id.String()
	}
	if err := q.Validate(); err != nil {
		return q, domain.NewError(op, domain.ErrService, err)
	}
	if slices.Contains(req.UsedIDs, q.ID) {
		e.logger.Warn("question service returned a repeated question", "questionID", q.ID)
	}
	return q.ShuffleOptions(e.rng), nil
}

// apply installs next and re-arms timers for its stage (caller must hold lock)
func (e *Engine) apply(next domain.GameState) {
	prev := e.state
	e.state = next
	e.gen++
	e.fault = nil
	e.lastActive = e.clock.Now()
	e.cancelAutoAdvance()

	switch {
	case next.Status == domain.StatusFinished:
		e.timer.disarm()
		e.queueEvent(domain.NewEvent(domain.EventGameEnded, next.ID, &domain.GameEndedPayload{
			Ranking: next.Ranking(),
			Winners: next.Winners(),
		}))
		if e.recorder != nil {
			go e.record(next.Summary(e.lastActive))
		}
	case next.Stage == domain.StageResult:
		e.timer.disarm()
		e.scheduleAutoAdvance()
	case next.Stage.Timed():
		e.timer.arm(e.onTick)
	}

	e.logger.Debug("state changed",
		"status", next.Status,
		"stage", next.Stage,
		"fromStage", prev.Stage,
		"turn", next.Turn,
		"player", next.CurrentPlayerIndex,
	)
	e.queueEvent(domain.NewEvent(domain.EventStateChanged, next.ID, e.viewLocked()))
}

// onTick is the countdown callback
func (e *Engine) onTick(seq uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || !e.timer.current(seq) {
		return
	}
	e.state = e.state.Tick()
	e.queueEvent(domain.NewEvent(domain.EventCountdown, e.state.ID, &domain.CountdownPayload{
		Stage:            e.state.Stage,
		RemainingSeconds: e.state.TimeRemaining,
	}))
	if e.state.TimeRemaining > 0 {
		e.timer.next(seq, e.onTick)
		return
	}
	e.timer.disarm()
	e.expire()
}

// scheduleAutoAdvance arms the delayed advance for the RESULT stage just
// entered (caller must hold lock)
func (e *Engine) scheduleAutoAdvance() {
	gen := e.gen
	e.advanceTimer = e.clock.AfterFunc(e.state.Settings.ResultDelay, func() {
		if err := e.advance(e.ctx, true, gen); err != nil && !errors.Is(err, ErrEngineClosed) {
			e.logger.Warn("auto advance failed", "error", err)
		}
	})
}

func (e *Engine) cancelAutoAdvance() {
	if e.advanceTimer != nil {
		e.advanceTimer.Stop()
		e.advanceTimer = nil
	}
}

func (e *Engine) record(summary domain.GameSummary) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := e.recorder.RecordGame(ctx, summary); err != nil {
		e.logger.Error("failed to record game", "error", err)
	}
}

// RegisterClient registers a client connection
func (e *Engine) RegisterClient(clientID string, client ClientConnection) {
	e.clientsMu.Lock()
	defer e.clientsMu.Unlock()
	e.clients[clientID] = client
}

// UnregisterClient removes a client connection
func (e *Engine) UnregisterClient(clientID string) {
	e.clientsMu.Lock()
	defer e.clientsMu.Unlock()
	delete(e.clients, clientID)
}

// ClientCount returns the number of connected clients
func (e *Engine) ClientCount() int {
	e.clientsMu.RLock()
	defer e.clientsMu.RUnlock()
	return len(e.clients)
}

// queueEvent adds an event to the broadcast queue
func (e *Engine) queueEvent(event *domain.GameEvent) {
	select {
	case e.events <- event:
	default:
		e.logger.Warn("event queue full, dropping event", "type", event.Type)
	}
}

// eventLoop processes events and broadcasts to clients
func (e *Engine) eventLoop() {
	for {
		select {
		case <-e.done:
			return
		case event := <-e.events:
			e.broadcastEvent(event)
		}
	}
}

func (e *Engine) broadcastEvent(event *domain.GameEvent) {
	e.clientsMu.RLock()
	defer e.clientsMu.RUnlock()

	for clientID, client := range e.clients {
		if err := client.Send(event); err != nil {
			e.logger.Debug("failed to send to client", "clientID", clientID, "error", err)
		}
	}
}

// Close stops all timers and disconnects every client
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.gen++
	e.timer.disarm()
	e.cancelAutoAdvance()
	e.cancel()
	e.mu.Unlock()

	close(e.done)

	e.clientsMu.Lock()
	for _, client := range e.clients {
		client.Close()
	}
	e.clients = make(map[string]ClientConnection)
	e.clientsMu.Unlock()
}
