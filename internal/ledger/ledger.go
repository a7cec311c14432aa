// Package ledger persists the append-only trade history as a CSV file.
//
// Every processed signal produces exactly one record, success or failure,
// so the file doubles as the audit trail for the whole pipeline. Records are
// never updated or deleted.
//
// Key features:
//   - Header written once on file creation, appended rows thereafter
//   - Mutex-serialized appends so concurrent webhooks never interleave rows
//   - Missing file reads as an empty history rather than an error
//   - Write failures are reported to the caller but are non-fatal by policy
package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/umer-khann/Automated-Crypto-Trading-Bot-TradingView-Binance/internal/model"
)

// ErrInvalidConfig indicates that the provided Config contains invalid values.
var ErrInvalidConfig = errors.New("invalid configuration")

// header is the fixed CSV column set. Column order matches the field order
// of model.LedgerRecord and must never change, existing files depend on it.
var header = []string{"timestamp", "signal", "symbol", "price", "order_id", "status", "quantity", "error"}

// Config provides configuration for the trade history store.
type Config struct {
	// Path is the CSV file location. The file is created on first append.
	Path string
}

// defaultConfig provides sensible default configuration values.
var defaultConfig = Config{
	Path: "trade_history.csv",
}

// Store is an append-only CSV store of trade records.
//
// A Store is safe for concurrent use. Appends are serialized with a mutex;
// reads open the file independently and see all completed appends.
type Store struct {
	cfg Config

	mu sync.Mutex // Serializes appends so rows never interleave
}

// NewStore creates a trade history store with the specified configuration.
//
// If no configuration is provided (cfg is nil), default values are used.
// The file itself is not touched until the first append.
func NewStore(cfg *Config) (*Store, error) {
	if cfg == nil {
		cfg = &defaultConfig
	}

	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: path must not be empty", ErrInvalidConfig)
	}

	return &Store{cfg: *cfg}, nil
}

// Path returns the configured CSV file location.
func (s *Store) Path() string {
	return s.cfg.Path
}

// Append writes one record to the end of the history file, creating the file
// with a header row first when it does not exist yet.
func (s *Store) Append(record model.LedgerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	writeHeader := false
	if _, err := os.Stat(s.cfg.Path); errors.Is(err, os.ErrNotExist) {
		writeHeader = true
	}

	f, err := os.OpenFile(s.cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open trade history: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("write trade history header: %w", err)
		}
	}

	if err := w.Write(record.Row()); err != nil {
		return fmt.Errorf("write trade history record: %w", err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush trade history: %w", err)
	}

	log.Debug().
		Str("symbol", record.Symbol).
		Str("status", record.Status).
		Msg("trade record appended")

	return nil
}

// ReadAll returns every record in the history file in append order.
//
// A missing file is an empty history, not an error; the store may simply
// never have recorded a trade yet.
func (s *Store) ReadAll() ([]model.LedgerRecord, error) {
	f, err := os.Open(s.cfg.Path)
	if errors.Is(err, os.ErrNotExist) {
		return []model.LedgerRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open trade history: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(header)

	// Skip the header row. An empty file also reads as empty history.
	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return []model.LedgerRecord{}, nil
		}
		return nil, fmt.Errorf("read trade history header: %w", err)
	}

	records := []model.LedgerRecord{}
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read trade history: %w", err)
		}

		records = append(records, model.LedgerRecord{
			Timestamp: row[0],
			Signal:    row[1],
			Symbol:    row[2],
			Price:     row[3],
			OrderID:   row[4],
			Status:    row[5],
			Quantity:  row[6],
			Error:     row[7],
		})
	}

	return records, nil
}
