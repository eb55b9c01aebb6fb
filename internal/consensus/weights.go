package consensus

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"maestro/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// WeightTable maps analyzer source names to vote weights. Sources absent
// from the table weigh 1.0.
type WeightTable map[string]float64

func (t WeightTable) Of(source string) float64 {
	if w, ok := t[source]; ok {
		return w
	}
	return 1.0
}

type weightsFile struct {
	Weights map[string]float64 `yaml:"weights"`
}

// Snapshot is an immutable view of the weight table. A cycle captures one
// snapshot at its start and never sees a mid-cycle reload.
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Table    WeightTable
}

type ChangeListener func(Snapshot)

// WeightRegistry loads the weight table from a YAML file and hot-reloads it
// on file changes. A reload that fails to parse keeps the previous table.
type WeightRegistry struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

func NewWeightRegistry(path string) (*WeightRegistry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("weight registry requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read weights config failed: %w", err)
	}
	r := &WeightRegistry{path: path, v: v}
	if err := r.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("weights reload failed, keeping previous table: %v", err)
			return
		}
		r.notifyListeners()
	})
	v.WatchConfig()
	return r, nil
}

// Table returns a copy of the active weight table.
func (r *WeightRegistry) Table() WeightTable {
	return r.Snapshot().Table
}

func (r *WeightRegistry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneSnapshot(r.snapshot)
}

func (r *WeightRegistry) AddListener(fn ChangeListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

func (r *WeightRegistry) reload() error {
	table, err := readWeightsFile(r.path)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:  r.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Table:    table,
	}
	version := r.snapshot.Version
	r.mu.Unlock()
	logger.Infof("weight table v%d loaded: %d entries from %s", version, len(table), filepath.Base(r.path))
	return nil
}

func (r *WeightRegistry) notifyListeners() {
	r.mu.RLock()
	snap := cloneSnapshot(r.snapshot)
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		go func(cb ChangeListener) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Errorf("weight listener panic: %v", rec)
				}
			}()
			cb(snap)
		}(fn)
	}
}

func cloneSnapshot(src Snapshot) Snapshot {
	dst := Snapshot{Version: src.Version, LoadedAt: src.LoadedAt, Table: make(WeightTable, len(src.Table))}
	for k, v := range src.Table {
		dst.Table[k] = v
	}
	return dst
}

func readWeightsFile(path string) (WeightTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read weights file failed: %w", err)
	}
	var cfg weightsFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse weights file failed: %w", err)
	}
	table := make(WeightTable, len(cfg.Weights))
	for name, w := range cfg.Weights {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if w < 0 {
			logger.Warnf("weight for %s is negative (%.3f), clamping to 0", name, w)
			w = 0
		}
		table[name] = w
	}
	return table, nil
}
