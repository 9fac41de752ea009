package app

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"trivia/internal/domain"
)

const (
	// DefaultTableCodeLength is the default length for table codes
	DefaultTableCodeLength = 6

	// StaleTableTimeout is how long before an inactive table is cleaned up
	StaleTableTimeout = 2 * time.Hour

	// CleanupInterval is how often stale tables are looked for
	CleanupInterval = time.Minute
)

// TableCodeChars are characters used for table codes (no ambiguous chars)
const TableCodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GameHub manages all active tables
type GameHub struct {
	tables          map[string]*Engine
	mu              sync.RWMutex
	deps            Deps
	tableCodeLength int
	logger          *slog.Logger
	done            chan struct{}
	closeOnce       sync.Once

	cleanupMu    sync.Mutex
	cleanupTimer Timer
}

// NewGameHub creates a new game hub. Every table gets its own random
// source; deps.Rand is ignored.
func NewGameHub(deps Deps, logger *slog.Logger) *GameHub {
	if deps.Clock == nil {
		deps.Clock = RealClock()
	}
	deps.Rand = nil
	deps.Logger = logger

	hub := &GameHub{
		tables:          make(map[string]*Engine),
		deps:            deps,
		tableCodeLength: DefaultTableCodeLength,
		logger:          logger,
		done:            make(chan struct{}),
	}

	hub.scheduleCleanup()

	return hub
}

// CreateTable creates a new game and returns its engine
func (h *GameHub) CreateTable() (*Engine, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Generate unique table code
	var code string
	for attempts := 0; attempts < 10; attempts++ {
		code = h.generateTableCode()
		if _, exists := h.tables[code]; !exists {
			break
		}
	}

	if _, exists := h.tables[code]; exists {
		return nil, fmt.Errorf("failed to generate unique table code")
	}

	engine := NewEngine(code, h.deps)
	h.tables[code] = engine

	h.logger.Info("table created", "tableCode", code)

	return engine, nil
}

// GetTable returns a table by code
func (h *GameHub) GetTable(code string) (*Engine, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	engine, ok := h.tables[code]
	if !ok {
		return nil, domain.ErrTableNotFound
	}

	return engine, nil
}

// DeleteTable removes a table
func (h *GameHub) DeleteTable(code string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if engine, ok := h.tables[code]; ok {
		engine.Close()
		delete(h.tables, code)
		h.logger.Info("table deleted", "tableCode", code)
	}
}

// TableCount returns the number of active tables
func (h *GameHub) TableCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.tables)
}

// PlayingCount returns the number of tables with a game in progress
func (h *GameHub) PlayingCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, engine := range h.tables {
		if engine.State().Status == domain.StatusPlaying {
			total++
		}
	}
	return total
}

// Close shuts down the hub and all tables
func (h *GameHub) Close() {
	h.closeOnce.Do(func() { close(h.done) })

	h.cleanupMu.Lock()
	if h.cleanupTimer != nil {
		h.cleanupTimer.Stop()
	}
	h.cleanupMu.Unlock()

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, engine := range h.tables {
		engine.Close()
	}
	h.tables = make(map[string]*Engine)
}

// generateTableCode generates a random table code
func (h *GameHub) generateTableCode() string {
	b := make([]byte, h.tableCodeLength)
	rand.Read(b)

	code := make([]byte, h.tableCodeLength)
	for i := range code {
		code[i] = TableCodeChars[int(b[i])%len(TableCodeChars)]
	}

	return string(code)
}

// scheduleCleanup runs cleanupStaleTables every CleanupInterval on the
// hub's clock until Close
func (h *GameHub) scheduleCleanup() {
	h.cleanupMu.Lock()
	defer h.cleanupMu.Unlock()

	select {
	case <-h.done:
		return
	default:
	}
	h.cleanupTimer = h.deps.Clock.AfterFunc(CleanupInterval, func() {
		h.cleanupStaleTables()
		h.scheduleCleanup()
	})
}

// cleanupStaleTables removes tables nobody is watching that have not
// changed for StaleTableTimeout
func (h *GameHub) cleanupStaleTables() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.deps.Clock.Now()
	stale := make([]string, 0)

	for code, engine := range h.tables {
		if engine.ClientCount() == 0 && now.Sub(engine.LastActive()) > StaleTableTimeout {
			stale = append(stale, code)
		}
	}

	for _, code := range stale {
		if engine, ok := h.tables[code]; ok {
			engine.Close()
			delete(h.tables, code)
			h.logger.Info("stale table cleaned up", "tableCode", code)
		}
	}
	return len(stale)
}
