// Package storage owns the SQLite database: connection setup, pragma
// verification, schema, and the row models for all persisted events.
//
// The database runs in WAL mode so the batch writer and the replay reader
// can share it. Timestamps are stored at second resolution; the truncation
// happens here and only here, so in-memory events keep their millisecond
// timestamps. Consumers of the tables must not expect sub-second precision.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/web3guy0/shadowbot/internal/types"
)

const (
	maxConnections = 5
	replayPageSize = 1000
)

// PragmaRequirements are verified at startup; a mismatch aborts the process.
type PragmaRequirements struct {
	JournalMode string // "wal"
	Synchronous int64  // 1 (NORMAL)
	BusyTimeout int64  // minimum, ms
	TempStore   int64  // 2 (MEMORY)
}

// DefaultPragmas returns the required pragma set.
func DefaultPragmas() PragmaRequirements {
	return PragmaRequirements{
		JournalMode: "wal",
		Synchronous: 1,
		BusyTimeout: 1000,
		TempStore:   2,
	}
}

// Store wraps the gorm handle. It is clone-cheap: the replay source and the
// persistence task share one Store value.
type Store struct {
	db *gorm.DB
}

// Row models. These map one-to-one onto the storage schema; AutoMigrate
// creates the tables and the ts indexes.

// TickRow is a persisted tick. ts is in seconds.
type TickRow struct {
	ID     uint    `gorm:"primaryKey"`
	Symbol string  `gorm:"not null"`
	Price  float64 `gorm:"not null"`
	Volume float64 `gorm:"not null"`
	TS     int64   `gorm:"column:ts;index;not null"`
}

func (TickRow) TableName() string { return "ticks" }

// SignalRow is a persisted signal; kind is "SIDE:REASON", value is the
// confidence.
type SignalRow struct {
	ID     uint    `gorm:"primaryKey"`
	Symbol string  `gorm:"not null"`
	Kind   string  `gorm:"not null"`
	Value  float64 `gorm:"not null"`
	TS     int64   `gorm:"column:ts;index;not null"`
}

func (SignalRow) TableName() string { return "signals" }

// OrderRow is a persisted order. Price is null for market orders.
type OrderRow struct {
	ID     uint     `gorm:"primaryKey"`
	Symbol string   `gorm:"not null"`
	Side   string   `gorm:"not null"`
	Qty    float64  `gorm:"not null"`
	Price  *float64
	Status string   `gorm:"not null"`
	TS     int64    `gorm:"column:ts;index;not null"`
}

func (OrderRow) TableName() string { return "orders" }

// TradeRow is a persisted trade; event_id is unique for idempotency.
type TradeRow struct {
	ID        uint    `gorm:"primaryKey"`
	EventID   string  `gorm:"column:event_id;uniqueIndex;not null"`
	OrderID   string  `gorm:"column:order_id;index;not null"`
	Symbol    string  `gorm:"not null"`
	Side      string  `gorm:"not null"`
	FillQty   float64 `gorm:"not null"`
	FillPrice float64 `gorm:"not null"`
	Fees      float64 `gorm:"not null"`
	TS        int64   `gorm:"column:ts;index;not null"`
	IsShadow  int     `gorm:"column:is_shadow;not null;default:1"`
}

func (TradeRow) TableName() string { return "trades" }

// Open creates the connection pool with WAL-mode pragmas applied through the
// DSN, so every pooled connection carries them. temp_store is not a DSN
// parameter of the driver; it is set with an explicit PRAGMA on the
// connection the pool holds right after opening. Connections the pool opens
// later do not receive it.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt: true,
		Logger:      logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sql handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(maxConnections)
	sqlDB.SetMaxIdleConns(maxConnections)

	if err := db.Exec("PRAGMA temp_store = MEMORY").Error; err != nil {
		return nil, fmt.Errorf("set temp_store: %w", err)
	}

	log.Info().Str("path", path).Msg("💾 database opened (WAL mode)")
	return &Store{db: db}, nil
}

// VerifyPragmas checks the live connection against the requirements and
// fails on any mismatch. This runs at startup before the pipeline spawns.
func (s *Store) VerifyPragmas(req PragmaRequirements) error {
	var journal string
	if err := s.db.Raw("PRAGMA journal_mode").Scan(&journal).Error; err != nil {
		return fmt.Errorf("query journal_mode: %w", err)
	}
	var sync int64
	if err := s.db.Raw("PRAGMA synchronous").Scan(&sync).Error; err != nil {
		return fmt.Errorf("query synchronous: %w", err)
	}
	var timeout int64
	if err := s.db.Raw("PRAGMA busy_timeout").Scan(&timeout).Error; err != nil {
		return fmt.Errorf("query busy_timeout: %w", err)
	}
	var temp int64
	if err := s.db.Raw("PRAGMA temp_store").Scan(&temp).Error; err != nil {
		return fmt.Errorf("query temp_store: %w", err)
	}

	log.Info().
		Str("journal_mode", journal).
		Int64("synchronous", sync).
		Int64("busy_timeout", timeout).
		Int64("temp_store", temp).
		Msg("pragma verification")

	if strings.ToLower(journal) != req.JournalMode {
		return fmt.Errorf("pragma journal_mode mismatch: got %q, expected %q", journal, req.JournalMode)
	}
	if sync != req.Synchronous {
		return fmt.Errorf("pragma synchronous mismatch: got %d, expected %d", sync, req.Synchronous)
	}
	if timeout < req.BusyTimeout {
		return fmt.Errorf("pragma busy_timeout too low: got %d, minimum %d", timeout, req.BusyTimeout)
	}
	if temp != req.TempStore {
		return fmt.Errorf("pragma temp_store mismatch: got %d, expected %d", temp, req.TempStore)
	}
	return nil
}

// EnsureSchema migrates all event tables.
func (s *Store) EnsureSchema() error {
	if err := s.db.AutoMigrate(&TickRow{}, &SignalRow{}, &OrderRow{}, &TradeRow{}); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	log.Info().Msg("schema ensured (ticks, signals, orders, trades)")
	return nil
}

// SaveTick inserts one tick row. Millisecond timestamps are truncated to
// seconds at this boundary.
func (s *Store) SaveTick(t *types.Tick) error {
	row := TickRow{
		Symbol: t.Symbol,
		Price:  t.Price,
		Volume: t.Volume,
		TS:     t.TS / 1000,
	}
	return s.db.Create(&row).Error
}

// SaveSignal inserts one signal row as (kind="SIDE:REASON", value=confidence).
func (s *Store) SaveSignal(sig *types.Signal) error {
	row := SignalRow{
		Symbol: sig.Symbol,
		Kind:   fmt.Sprintf("%s:%s", sig.Side, sig.Reason),
		Value:  sig.Confidence,
		TS:     sig.TS / 1000,
	}
	return s.db.Create(&row).Error
}

// SaveOrder inserts one order row.
func (s *Store) SaveOrder(o *types.Order) error {
	row := OrderRow{
		Symbol: o.Symbol,
		Side:   string(o.Side),
		Qty:    o.Qty,
		Price:  o.Price,
		Status: string(o.Status),
		TS:     o.TS / 1000,
	}
	return s.db.Create(&row).Error
}

// SaveTrade inserts one trade row.
func (s *Store) SaveTrade(t *types.Trade) error {
	shadow := 0
	if t.IsShadow {
		shadow = 1
	}
	row := TradeRow{
		EventID:   t.EventID.String(),
		OrderID:   t.OrderID.String(),
		Symbol:    t.Symbol,
		Side:      string(t.Side),
		FillQty:   t.FillQty,
		FillPrice: t.FillPrice,
		Fees:      t.Fees,
		TS:        t.TS / 1000,
		IsShadow:  shadow,
	}
	return s.db.Create(&row).Error
}

// ReadTickPage returns one page of historical ticks ordered by ts ascending,
// for the database replay source.
func (s *Store) ReadTickPage(offset int) ([]TickRow, error) {
	var rows []TickRow
	err := s.db.Order("ts ASC").Limit(replayPageSize).Offset(offset).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("read tick page at %d: %w", offset, err)
	}
	return rows, nil
}

// ReplayPageSize is the paging unit used by ReadTickPage.
func ReplayPageSize() int { return replayPageSize }

// RowCounts returns the current table sizes, logged at startup.
func (s *Store) RowCounts() (ticks, signals, orders, trades int64, err error) {
	if err = s.db.Model(&TickRow{}).Count(&ticks).Error; err != nil {
		return
	}
	if err = s.db.Model(&SignalRow{}).Count(&signals).Error; err != nil {
		return
	}
	if err = s.db.Model(&OrderRow{}).Count(&orders).Error; err != nil {
		return
	}
	err = s.db.Model(&TradeRow{}).Count(&trades).Error
	return
}

// Close shuts the underlying pool down.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
