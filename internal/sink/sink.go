// Package sink persists scanner output to append-only CSV logs. Each log
// keeps a single file handle open for its lifetime and flushes after every
// record so rows survive an abrupt shutdown.
package sink

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/coachpo/spreadscan/internal/schema"
)

// timeFormat renders row timestamps as UTC wall-clock seconds.
const timeFormat = "2006-01-02 15:04:05"

var (
	spreadHeader = []string{
		"ts_utc", "pair", "direction", "buy_exchange", "sell_exchange",
		"buy_price", "sell_price", "spread_pct",
	}
	confirmedHeader = []string{
		"ts_utc", "pair", "direction", "buy_exchange", "sell_exchange",
		"exec_notional_usdt", "exec_buy_price", "exec_sell_price", "exec_spread_pct",
	}
)

// csvLog appends rows to one CSV file. The header is written only when the
// file is created or still empty, so restarts keep extending the same log.
type csvLog struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	writer *csv.Writer
}

func newCSVLog(path string, header []string) (*csvLog, error) {
	if path == "" {
		return nil, fmt.Errorf("sink: empty log path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sink: create dir %s: %w", dir, err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("sink: open %s: %w", path, err)
	}
	writer := csv.NewWriter(file)
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("sink: stat %s: %w", path, err)
	}
	if stat.Size() == 0 {
		if err := writer.Write(header); err != nil {
			file.Close()
			return nil, fmt.Errorf("sink: write header %s: %w", path, err)
		}
		writer.Flush()
		if err := writer.Error(); err != nil {
			file.Close()
			return nil, fmt.Errorf("sink: flush header %s: %w", path, err)
		}
	}
	return &csvLog{path: path, file: file, writer: writer}, nil
}

func (l *csvLog) append(record []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return fmt.Errorf("sink: %s already closed", l.path)
	}
	if err := l.writer.Write(record); err != nil {
		return fmt.Errorf("sink: write row %s: %w", l.path, err)
	}
	l.writer.Flush()
	if err := l.writer.Error(); err != nil {
		return fmt.Errorf("sink: flush row %s: %w", l.path, err)
	}
	return nil
}

func (l *csvLog) close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	l.writer.Flush()
	flushErr := l.writer.Error()
	closeErr := l.file.Close()
	l.file = nil
	if flushErr != nil {
		return fmt.Errorf("sink: flush %s: %w", l.path, flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("sink: close %s: %w", l.path, closeErr)
	}
	return nil
}

// SpreadLog records every Stage-1 candidate that cleared the gross threshold.
type SpreadLog struct {
	log *csvLog
}

// NewSpreadLog opens or creates the spread-signal log at path.
func NewSpreadLog(path string) (*SpreadLog, error) {
	log, err := newCSVLog(path, spreadHeader)
	if err != nil {
		return nil, err
	}
	return &SpreadLog{log: log}, nil
}

// Write appends one candidate row. The timestamp is the candidate's detection
// time; percent values carry at most four fractional digits.
func (s *SpreadLog) Write(candidate schema.Candidate) error {
	return s.log.append([]string{
		candidate.TS.UTC().Format(timeFormat),
		string(candidate.Pair),
		candidate.Direction(),
		string(candidate.BuyVenue),
		string(candidate.SellVenue),
		candidate.BuyQuote.Ask.String(),
		candidate.SellQuote.Bid.String(),
		candidate.BestSpreadPct.Round(4).String(),
	})
}

// Close flushes and releases the underlying file.
func (s *SpreadLog) Close() error {
	return s.log.close()
}

// ConfirmedLog records Stage-2 candidates whose executable spread survived
// fees and the safety buffer.
type ConfirmedLog struct {
	log *csvLog
}

// NewConfirmedLog opens or creates the confirmed-signal log at path.
func NewConfirmedLog(path string) (*ConfirmedLog, error) {
	log, err := newCSVLog(path, confirmedHeader)
	if err != nil {
		return nil, err
	}
	return &ConfirmedLog{log: log}, nil
}

// Write appends one confirmed result row, stamped with the depth-check time.
func (c *ConfirmedLog) Write(result schema.DepthResult) error {
	checkedAt := result.CheckedAt
	if checkedAt.IsZero() {
		checkedAt = time.Now()
	}
	candidate := result.Candidate
	return c.log.append([]string{
		checkedAt.UTC().Format(timeFormat),
		string(candidate.Pair),
		candidate.Direction(),
		string(candidate.BuyVenue),
		string(candidate.SellVenue),
		result.ExecNotionalUSDT.Round(4).String(),
		result.ExecBuyPrice.Round(4).String(),
		result.ExecSellPrice.Round(4).String(),
		result.ExecSpreadPctNet.Round(4).String(),
	})
}

// Close flushes and releases the underlying file.
func (c *ConfirmedLog) Close() error {
	return c.log.close()
}
