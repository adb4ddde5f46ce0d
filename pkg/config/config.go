// Package config implements the per-scope config.json described in
// SPEC_FULL.md §4.5: ranking, maintenance, sharing, and context-pack
// preferences, hot-reloaded via github.com/fsnotify/fsnotify. Unknown keys
// are preserved across rewrites by keeping the raw JSON object alongside
// the typed view, the same "decode what we know, retain the rest" pattern
// the teacher uses for its own watched config file.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/llm-memory/engine/pkg/log"
	"github.com/llm-memory/engine/pkg/memerr"
)

// FieldWeights mirrors index.FieldWeights; duplicated here (rather than
// imported) so pkg/config has no dependency on pkg/index.
type FieldWeights struct {
	Title float64 `json:"title"`
	Text  float64 `json:"text"`
	Code  float64 `json:"code"`
	Tag   float64 `json:"tag"`
}

type BM25 struct {
	K1 float64 `json:"k1"`
	B  float64 `json:"b"`
}

type Hybrid struct {
	Enabled bool    `json:"enabled"`
	WBM25   float64 `json:"wBM25"`
	WVec    float64 `json:"wVec"`
}

type Phrase struct {
	ExactTitleBonus float64 `json:"exactTitleBonus"`
	Bonus           float64 `json:"bonus"`
}

type Ranking struct {
	Weights      FieldWeights       `json:"weights"`
	BM25         BM25               `json:"bm25"`
	ScopeBonus   map[string]float64 `json:"scopeBonus"`
	PinBonus     float64            `json:"pinBonus"`
	RecencyScale float64            `json:"recencyScale"`
	HalfLifeDays float64            `json:"halfLifeDays"`
	Hybrid       Hybrid             `json:"hybrid"`
	Phrase       Phrase             `json:"phrase"`
}

type IndexFlush struct {
	MaxMs  int `json:"maxMs"`
	MaxOps int `json:"maxOps"`
}

type Maintenance struct {
	CompactEvery      int        `json:"compactEvery"`
	CompactIntervalMs int64      `json:"compactIntervalMs"`
	IndexFlush        IndexFlush `json:"indexFlush"`
}

type Sharing struct {
	Sensitivity string `json:"sensitivity"`
}

type Caps struct {
	Snippets int `json:"snippets"`
	Facts    int `json:"facts"`
	Patterns int `json:"patterns"`
	Configs  int `json:"configs"`
}

type Window struct {
	Before int `json:"before"`
	After  int `json:"after"`
}

type ContextPack struct {
	Caps   Caps     `json:"caps"`
	Order  []string `json:"order"`
	Window Window   `json:"window"`
}

type Cache struct {
	Size int `json:"size"`
}

// Config is the typed view of a scope's config.json.
type Config struct {
	Ranking     Ranking     `json:"ranking"`
	Maintenance Maintenance `json:"maintenance"`
	Sharing     Sharing     `json:"sharing"`
	ContextPack ContextPack `json:"contextPack"`
	Cache       Cache       `json:"cache"`
}

// Default returns the configuration described throughout SPEC_FULL.md §4.
func Default() Config {
	return Config{
		Ranking: Ranking{
			Weights:      FieldWeights{Title: 5, Text: 2, Code: 1.5, Tag: 3},
			BM25:         BM25{K1: 1.5, B: 0.75},
			ScopeBonus:   map[string]float64{"committed": 1.5, "local": 1.0, "global": 0.5},
			PinBonus:     2.0,
			RecencyScale: 1.0,
			HalfLifeDays: 30,
			Hybrid:       Hybrid{Enabled: false, WBM25: 0.7, WVec: 0.3},
			Phrase:       Phrase{ExactTitleBonus: 6, Bonus: 2.5},
		},
		Maintenance: Maintenance{
			CompactEvery:      500,
			CompactIntervalMs: 24 * 60 * 60 * 1000,
			IndexFlush:        IndexFlush{MaxMs: 500, MaxOps: 200},
		},
		Sharing: Sharing{Sensitivity: "team"},
		ContextPack: ContextPack{
			Caps:   Caps{Snippets: 12, Facts: 8, Patterns: 6, Configs: 6},
			Order:  []string{"snippets", "facts", "patterns", "configs"},
			Window: Window{Before: 6, After: 6},
		},
		Cache: Cache{Size: 256},
	}
}

// Store owns one scope's config.json, including hot-reload via fsnotify.
// Unknown top-level keys are preserved in raw across Load/Save round
// trips; a malformed file on reload leaves the previously-loaded valid
// config untouched (memerr.ConfigInvalid is only ever returned, never
// panics or silently zeroes the config).
type Store struct {
	path string

	mu      sync.RWMutex
	current Config
	raw     map[string]json.RawMessage

	watcher  *fsnotify.Watcher
	onChange func(Config)
}

// Load reads path if present (applying SPEC_FULL.md defaults for any
// missing section) or writes out the defaults if absent.
func Load(path string) (*Store, error) {
	s := &Store{path: path, current: Default(), raw: map[string]json.RawMessage{}}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if werr := s.Save(); werr != nil {
			return nil, werr
		}
		return s, nil
	}
	if err != nil {
		return nil, memerr.Wrap(memerr.IO, err, "read config %s", path)
	}
	if err := s.applyRaw(data); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) applyRaw(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return memerr.Wrap(memerr.ConfigInvalid, err, "parse config %s", s.path)
	}
	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return memerr.Wrap(memerr.ConfigInvalid, err, "decode config %s", s.path)
	}

	s.mu.Lock()
	s.raw = raw
	s.current = cfg
	s.mu.Unlock()
	return nil
}

// Current returns the most recently loaded configuration.
func (s *Store) Current() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Save rewrites config.json atomically, folding the typed config's fields
// over the previously-seen raw object so unrecognized keys survive.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	known, err := json.Marshal(s.current)
	if err != nil {
		return memerr.Wrap(memerr.IO, err, "marshal config")
	}
	var knownMap map[string]json.RawMessage
	if err := json.Unmarshal(known, &knownMap); err != nil {
		return memerr.Wrap(memerr.IO, err, "remarshal config")
	}
	merged := map[string]json.RawMessage{}
	for k, v := range s.raw {
		merged[k] = v
	}
	for k, v := range knownMap {
		merged[k] = v
	}
	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return memerr.Wrap(memerr.IO, err, "marshal merged config")
	}

	dir := filepath.Dir(s.path)
	tmpDir := filepath.Join(dir, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return memerr.Wrap(memerr.IO, err, "create tmp dir %s", tmpDir)
	}
	tmp := filepath.Join(tmpDir, "config.json.tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return memerr.Wrap(memerr.IO, err, "write temp config %s", tmp)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return memerr.Wrap(memerr.IO, err, "rename config into place %s", s.path)
	}
	s.raw = merged
	return nil
}

// Set replaces the typed config and persists it.
func (s *Store) Set(cfg Config) error {
	s.mu.Lock()
	s.current = cfg
	s.mu.Unlock()
	return s.Save()
}

// Watch starts an fsnotify watcher on the config file's directory and
// calls onChange (on the watcher's own goroutine) with the newly loaded
// config each time the file is written. A reload that fails validation
// is logged and ignored; Current() continues to return the last good
// config. Close stops the watcher.
func (s *Store) Watch(onChange func(Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return memerr.Wrap(memerr.IO, err, "create config watcher")
	}
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		w.Close()
		return memerr.Wrap(memerr.IO, err, "watch config dir %s", filepath.Dir(s.path))
	}
	s.watcher = w
	s.onChange = onChange

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(s.path) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				data, err := os.ReadFile(s.path)
				if err != nil {
					continue
				}
				if err := s.applyRaw(data); err != nil {
					log.Logger.Warn().Err(err).Msg("config reload rejected, keeping previous config")
					continue
				}
				if s.onChange != nil {
					s.onChange(s.Current())
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Logger.Warn().Err(err).Msg("config watcher error")
			}
		}
	}()
	return nil
}

// Close stops the watcher, if running.
func (s *Store) Close() error {
	if s.watcher == nil {
		return nil
	}
	return s.watcher.Close()
}
