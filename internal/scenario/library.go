package scenario

import (
	"strings"
	"sync"

	"github.com/parleyworks/parley/internal/telemetry"
)

// Library is the read-only scenario content catalog plus the scripted
// offline simulator. The core consumes exactly three operations: List,
// GetByID, and SimulateOffline.
type Library struct {
	patterns []telemetry.TargetPattern
	scripts  map[string]script

	mu      sync.Mutex
	cursors map[string]int
}

// script pairs keyword-triggered counter-moves with a rotation of fallback
// lines used when nothing matches.
type script struct {
	triggers  []trigger
	fallbacks []string
}

type trigger struct {
	keyword string
	reply   string
}

// NewLibrary returns the built-in catalog.
func NewLibrary() *Library {
	return &Library{
		patterns: builtinPatterns,
		scripts:  builtinScripts,
		cursors:  make(map[string]int),
	}
}

// List returns every target pattern in the catalog.
func (l *Library) List() []telemetry.TargetPattern {
	out := make([]telemetry.TargetPattern, len(l.patterns))
	copy(out, l.patterns)
	return out
}

// GetByID looks up a pattern by scenario id.
func (l *Library) GetByID(id string) (telemetry.TargetPattern, bool) {
	for _, p := range l.patterns {
		if p.ID == id {
			return p, true
		}
	}
	return telemetry.TargetPattern{}, false
}

// SimulateOffline synthesizes a scripted counter-move for the given scenario.
// Keyword triggers take priority; otherwise fallback lines rotate
// deterministically so repeated identical inputs still vary.
func (l *Library) SimulateOffline(scenarioID, inputText string) string {
	sc, ok := l.scripts[scenarioID]
	if !ok {
		sc = defaultScript
	}

	lowered := strings.ToLower(inputText)
	for _, t := range sc.triggers {
		if strings.Contains(lowered, t.keyword) {
			return t.reply
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	idx := l.cursors[scenarioID] % len(sc.fallbacks)
	l.cursors[scenarioID]++
	return sc.fallbacks[idx]
}
