package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"maestro/internal/logger"
	"maestro/internal/signal"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// ErrPersistence marks an append that failed twice. The caller degrades the
// cycle but keeps the decision.
var ErrPersistence = errors.New("event memory persistence failed")

// SignalBatch is one cycle's full record: every signal collected plus the
// decision they aggregated into.
type SignalBatch struct {
	TraceID   string          `json:"trace_id"`
	Symbol    string          `json:"symbol"`
	Decision  signal.Decision `json:"decision"`
	Signals   []signal.Signal `json:"signals"`
	CreatedAt time.Time       `json:"created_at"`
}

// Trade is one executed order.
type Trade struct {
	TraceID      string    `json:"trace_id"`
	Symbol       string    `json:"symbol"`
	Side         string    `json:"side"`
	Quantity     float64   `json:"quantity"`
	Price        float64   `json:"price"`
	NotionalUSD  float64   `json:"notional_usd"`
	ModelVersion string    `json:"model_version"`
	CreatedAt    time.Time `json:"created_at"`
}

// SystemEvent is an operational marker: halts, resumes, retrains, monitor
// snapshots, analyzer faults.
type SystemEvent struct {
	Kind      string         `json:"kind"`
	Message   string         `json:"message"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

type Stats struct {
	SignalBatches int64 `json:"signal_batches"`
	Trades        int64 `json:"trades"`
	SystemEvents  int64 `json:"system_events"`
}

// Memory is the append-only audit store. Rows are inserted and read, never
// updated or deleted.
type Memory struct {
	db  *gorm.DB
	log logger.Component
}

// Open creates or opens the store at path. A store that cannot be opened is
// moved aside and recreated empty: memory is an audit aid, losing history
// must not keep the system down.
func Open(path string) (*Memory, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("event memory path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := openGorm(path)
	if err != nil {
		quarantine := fmt.Sprintf("%s.corrupt-%d", path, time.Now().UTC().Unix())
		logger.Errorf("memory: store %s unusable (%v), moving aside to %s and starting empty", path, err, quarantine)
		if mvErr := os.Rename(path, quarantine); mvErr != nil && !os.IsNotExist(mvErr) {
			return nil, fmt.Errorf("quarantining corrupt store failed: %v (open error: %w)", mvErr, err)
		}
		db, err = openGorm(path)
		if err != nil {
			return nil, fmt.Errorf("reopening event memory failed: %w", err)
		}
	}
	return &Memory{db: db, log: logger.For("memory")}, nil
}

func openGorm(path string) (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	// The _pragma DSN syntax above is the modernc.org/sqlite form; bind the
	// dialector to that pure-Go driver so the store works with CGO disabled.
	db, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: dsn}, &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&signalBatchModel{}, &tradeModel{}, &systemEventModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: a little parallelism for HTTP reads, low lock contention.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return db, nil
}

func (m *Memory) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AppendSignalBatch records a full cycle. Appends retry once immediately;
// the second failure surfaces as ErrPersistence.
func (m *Memory) AppendSignalBatch(ctx context.Context, batch SignalBatch) error {
	payload, err := json.Marshal(batch.Signals)
	if err != nil {
		return fmt.Errorf("%w: encoding signals: %v", ErrPersistence, err)
	}
	row := &signalBatchModel{
		TraceID:    batch.TraceID,
		Symbol:     batch.Symbol,
		Action:     string(batch.Decision.Action),
		Confidence: batch.Decision.Confidence,
		Reason:     batch.Decision.Reason(),
		Halted:     boolToInt(batch.Decision.Halted),
		Degraded:   boolToInt(batch.Decision.Degraded),
		Signals:    datatypes.JSON(payload),
		CreatedAt:  stamp(batch.CreatedAt),
	}
	return m.insertWithRetry(ctx, "signal batch", row)
}

// AppendTrade records an executed order.
func (m *Memory) AppendTrade(ctx context.Context, trade Trade) error {
	row := &tradeModel{
		TraceID:      trade.TraceID,
		Symbol:       trade.Symbol,
		Side:         trade.Side,
		Quantity:     trade.Quantity,
		Price:        trade.Price,
		NotionalUSD:  trade.NotionalUSD,
		ModelVersion: trade.ModelVersion,
		CreatedAt:    stamp(trade.CreatedAt),
	}
	return m.insertWithRetry(ctx, "trade", row)
}

// AppendSystemEvent records an operational event.
func (m *Memory) AppendSystemEvent(ctx context.Context, evt SystemEvent) error {
	var payload datatypes.JSON
	if len(evt.Payload) > 0 {
		data, err := json.Marshal(evt.Payload)
		if err != nil {
			return fmt.Errorf("%w: encoding payload: %v", ErrPersistence, err)
		}
		payload = datatypes.JSON(data)
	}
	row := &systemEventModel{
		Kind:      evt.Kind,
		Message:   evt.Message,
		Payload:   payload,
		CreatedAt: stamp(evt.CreatedAt),
	}
	return m.insertWithRetry(ctx, "system event", row)
}

func (m *Memory) insertWithRetry(ctx context.Context, what string, row any) error {
	if err := m.db.WithContext(ctx).Create(row).Error; err != nil {
		m.log.Warnf("%s insert failed, retrying once: %v", what, err)
		if err2 := m.db.WithContext(ctx).Create(row).Error; err2 != nil {
			m.log.Errorf("%s insert failed twice, giving up: %v", what, err2)
			return fmt.Errorf("%w: %s: %v", ErrPersistence, what, err2)
		}
	}
	return nil
}

// SignalBatches returns the most recent limit batches, oldest first.
func (m *Memory) SignalBatches(ctx context.Context, limit int) ([]SignalBatch, error) {
	var rows []signalBatchModel
	if err := m.db.WithContext(ctx).Order("id DESC").Limit(capLimit(limit)).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]SignalBatch, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		out = append(out, batchFromModel(rows[i]))
	}
	return out, nil
}

// Trades returns the most recent limit trades, oldest first.
func (m *Memory) Trades(ctx context.Context, limit int) ([]Trade, error) {
	var rows []tradeModel
	if err := m.db.WithContext(ctx).Order("id DESC").Limit(capLimit(limit)).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Trade, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		out = append(out, tradeFromModel(rows[i]))
	}
	return out, nil
}

// TradesSince returns all trades recorded at or after t, oldest first.
func (m *Memory) TradesSince(ctx context.Context, t time.Time) ([]Trade, error) {
	var rows []tradeModel
	if err := m.db.WithContext(ctx).
		Where("created_at >= ?", t.UTC().UnixMilli()).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Trade, 0, len(rows))
	for _, r := range rows {
		out = append(out, tradeFromModel(r))
	}
	return out, nil
}

// SignalBatchesSince returns all batches recorded at or after t, oldest first.
func (m *Memory) SignalBatchesSince(ctx context.Context, t time.Time) ([]SignalBatch, error) {
	var rows []signalBatchModel
	if err := m.db.WithContext(ctx).
		Where("created_at >= ?", t.UTC().UnixMilli()).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]SignalBatch, 0, len(rows))
	for _, r := range rows {
		out = append(out, batchFromModel(r))
	}
	return out, nil
}

// Events returns the most recent limit events, oldest first, optionally
// filtered by kind.
func (m *Memory) Events(ctx context.Context, kind string, limit int) ([]SystemEvent, error) {
	q := m.db.WithContext(ctx).Order("id DESC").Limit(capLimit(limit))
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	var rows []systemEventModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]SystemEvent, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		out = append(out, eventFromModel(rows[i]))
	}
	return out, nil
}

func (m *Memory) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := m.db.WithContext(ctx).Model(&signalBatchModel{}).Count(&st.SignalBatches).Error; err != nil {
		return st, err
	}
	if err := m.db.WithContext(ctx).Model(&tradeModel{}).Count(&st.Trades).Error; err != nil {
		return st, err
	}
	if err := m.db.WithContext(ctx).Model(&systemEventModel{}).Count(&st.SystemEvents).Error; err != nil {
		return st, err
	}
	return st, nil
}

func batchFromModel(r signalBatchModel) SignalBatch {
	var signals []signal.Signal
	if len(r.Signals) > 0 {
		_ = json.Unmarshal(r.Signals, &signals)
	}
	contributions := make([]signal.Contribution, 0, len(signals))
	for _, s := range signals {
		contributions = append(contributions, signal.Contribution{Source: s.Source, Reason: s.Reason})
	}
	return SignalBatch{
		TraceID: r.TraceID,
		Symbol:  r.Symbol,
		Decision: signal.Decision{
			Action:        signal.Action(r.Action),
			Confidence:    r.Confidence,
			Contributions: contributions,
			TraceID:       r.TraceID,
			DecidedAt:     time.UnixMilli(r.CreatedAt).UTC(),
			Halted:        r.Halted == 1,
			Degraded:      r.Degraded == 1,
		},
		Signals:   signals,
		CreatedAt: time.UnixMilli(r.CreatedAt).UTC(),
	}
}

func tradeFromModel(r tradeModel) Trade {
	return Trade{
		TraceID:      r.TraceID,
		Symbol:       r.Symbol,
		Side:         r.Side,
		Quantity:     r.Quantity,
		Price:        r.Price,
		NotionalUSD:  r.NotionalUSD,
		ModelVersion: r.ModelVersion,
		CreatedAt:    time.UnixMilli(r.CreatedAt).UTC(),
	}
}

func eventFromModel(r systemEventModel) SystemEvent {
	var payload map[string]any
	if len(r.Payload) > 0 {
		_ = json.Unmarshal(r.Payload, &payload)
	}
	return SystemEvent{
		Kind:      r.Kind,
		Message:   r.Message,
		Payload:   payload,
		CreatedAt: time.UnixMilli(r.CreatedAt).UTC(),
	}
}

func stamp(t time.Time) int64 {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().UnixMilli()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func capLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return 1000
	}
	return limit
}
