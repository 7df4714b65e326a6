// Package tradelog appends one row per closed or liquidated Position to a
// CSV file, a JSON-lines file, and a SQLite table, and computes the shutdown
// performance summary over every recorded close.
package tradelog

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/20hyo/rusto/internal/domain"
)

// Row is one flattened trade-log record, written identically to every sink.
type Row struct {
	ID             string          `json:"id" gorm:"primaryKey"`
	Symbol         string          `json:"symbol"`
	Side           string          `json:"side"`
	Setup          string          `json:"setup"`
	EntryPrice     decimal.Decimal `json:"entry_price" gorm:"type:text"`
	ExitPrice      decimal.Decimal `json:"exit_price" gorm:"type:text"`
	Quantity       decimal.Decimal `json:"quantity" gorm:"type:text"`
	StopLoss       decimal.Decimal `json:"stop_loss" gorm:"type:text"`
	TakeProfit     decimal.Decimal `json:"take_profit" gorm:"type:text"`
	PnL            decimal.Decimal `json:"pnl" gorm:"type:text"`
	Status         string          `json:"status"`
	EntryTime      time.Time       `json:"entry_time"`
	ExitTime       time.Time       `json:"exit_time"`
	BreakEvenMoved bool            `json:"break_even_moved"`
}

// TableName pins the GORM table name regardless of struct name pluralization.
func (Row) TableName() string { return "trade_log_rows" }

func rowFromPosition(p *domain.Position) Row {
	var exitPrice decimal.Decimal
	var exitTime time.Time
	if p.ExitPrice != nil {
		exitPrice = *p.ExitPrice
	}
	if p.ExitTime != nil {
		exitTime = *p.ExitTime
	}
	return Row{
		ID:             p.ID,
		Symbol:         p.Symbol,
		Side:           p.Side.String(),
		Setup:          p.Setup.String(),
		EntryPrice:     p.EntryPrice,
		ExitPrice:      exitPrice,
		Quantity:       p.OriginalQuantity,
		StopLoss:       p.StopLoss,
		TakeProfit:     p.TakeProfit,
		PnL:            p.PnL,
		Status:         p.Status.String(),
		EntryTime:      p.EntryTime,
		ExitTime:       exitTime,
		BreakEvenMoved: p.BreakEvenMoved,
	}
}

// Sink appends trade-log rows to CSV, JSON-lines, and SQLite, serializing
// every write behind one mutex since it is the only component touching disk.
type Sink struct {
	mu sync.Mutex

	csvFile   *os.File
	csvWriter *csv.Writer

	jsonFile *os.File

	db *gorm.DB

	logger *zerolog.Logger

	closed []Row
}

// Config selects which sinks are active and where they write.
type Config struct {
	CSVPath   string
	JSONPath  string
	DB        *gorm.DB // nil disables the SQLite sink
	MigrateDB bool
}

// NewSink opens the configured CSV/JSON files and migrates the SQLite table
// if a *gorm.DB was supplied.
func NewSink(cfg Config, logger *zerolog.Logger) (*Sink, error) {
	s := &Sink{db: cfg.DB, logger: logger}

	if cfg.CSVPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.CSVPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating trade log directory: %w", err)
		}
		existed := fileExists(cfg.CSVPath)
		f, err := os.OpenFile(cfg.CSVPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening csv trade log: %w", err)
		}
		s.csvFile = f
		s.csvWriter = csv.NewWriter(f)
		if !existed {
			if err := s.csvWriter.Write(csvHeader); err != nil {
				return nil, fmt.Errorf("writing csv header: %w", err)
			}
			s.csvWriter.Flush()
		}
	}

	if cfg.JSONPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.JSONPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating trade log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.JSONPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening json trade log: %w", err)
		}
		s.jsonFile = f
	}

	if cfg.DB != nil && cfg.MigrateDB {
		if err := cfg.DB.AutoMigrate(&Row{}); err != nil {
			// A corrupt persistence layer at schema-creation time compromises
			// correctness for every subsequent write: fail fast at startup.
			panic(fmt.Sprintf("trade log schema migration failed: %v", err))
		}
	}

	return s, nil
}

var csvHeader = []string{
	"id", "symbol", "side", "setup", "entry_price", "exit_price", "quantity",
	"stop_loss", "take_profit", "pnl", "status", "entry_time", "exit_time",
	"break_even_moved",
}

// Record appends one row for a closed or liquidated position. Persistence
// failures are logged, never fatal to trading.
func (s *Sink) Record(p *domain.Position) {
	row := rowFromPosition(p)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = append(s.closed, row)

	if s.csvWriter != nil {
		if err := s.csvWriter.Write(csvRecord(row)); err != nil {
			s.warn("csv trade log write failed", err)
		} else {
			s.csvWriter.Flush()
		}
	}

	if s.jsonFile != nil {
		b, err := json.Marshal(row)
		if err != nil {
			s.warn("json trade log marshal failed", err)
		} else if _, err := s.jsonFile.Write(append(b, '\n')); err != nil {
			s.warn("json trade log write failed", err)
		}
	}

	if s.db != nil {
		if err := s.db.Create(&row).Error; err != nil {
			s.warn("sqlite trade log write failed", err)
		}
	}
}

func (s *Sink) warn(msg string, err error) {
	if s.logger != nil {
		s.logger.Error().Err(err).Msg(msg)
	}
}

func csvRecord(r Row) []string {
	return []string{
		r.ID, r.Symbol, r.Side, r.Setup,
		r.EntryPrice.String(), r.ExitPrice.String(), r.Quantity.String(),
		r.StopLoss.String(), r.TakeProfit.String(), r.PnL.String(), r.Status,
		r.EntryTime.Format(time.RFC3339), r.ExitTime.Format(time.RFC3339),
		fmt.Sprintf("%t", r.BreakEvenMoved),
	}
}

// Close flushes and closes every open file handle.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.csvWriter != nil {
		s.csvWriter.Flush()
	}
	if s.csvFile != nil {
		if err := s.csvFile.Close(); err != nil {
			return err
		}
	}
	if s.jsonFile != nil {
		return s.jsonFile.Close()
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Summary is the shutdown performance report.
type Summary struct {
	TotalTrades    int
	Winners        int
	Losers         int
	WinRate        decimal.Decimal
	TotalPnL       decimal.Decimal
	GrossProfit    decimal.Decimal
	GrossLossAbs   decimal.Decimal
	ProfitFactor   *decimal.Decimal
	AvgWin         decimal.Decimal
	AvgLoss        decimal.Decimal
	MaxDrawdownAbs decimal.Decimal
	MaxDrawdownPct decimal.Decimal
}

// Summary computes the shutdown performance report by iterating every
// recorded position in exit-time order.
func (s *Sink) Summary() Summary {
	s.mu.Lock()
	rows := make([]Row, len(s.closed))
	copy(rows, s.closed)
	s.mu.Unlock()

	sort.Slice(rows, func(i, j int) bool { return rows[i].ExitTime.Before(rows[j].ExitTime) })

	var out Summary
	grossProfit, grossLoss := decimal.Zero, decimal.Zero

	equity := decimal.Zero
	peak := decimal.Zero
	maxDDAbs := decimal.Zero
	maxDDPct := decimal.Zero

	for _, row := range rows {
		out.TotalTrades++
		out.TotalPnL = out.TotalPnL.Add(row.PnL)
		if row.PnL.IsPositive() {
			out.Winners++
			grossProfit = grossProfit.Add(row.PnL)
		} else if row.PnL.IsNegative() {
			out.Losers++
			grossLoss = grossLoss.Add(row.PnL)
		}

		equity = equity.Add(row.PnL)
		if equity.GreaterThan(peak) {
			peak = equity
		}
		dd := peak.Sub(equity)
		if dd.GreaterThan(maxDDAbs) {
			maxDDAbs = dd
			if peak.IsPositive() {
				maxDDPct = dd.Div(peak).Mul(decimal.NewFromInt(100))
			}
		}
	}

	out.GrossProfit = grossProfit
	out.GrossLossAbs = grossLoss.Abs()
	out.MaxDrawdownAbs = maxDDAbs
	out.MaxDrawdownPct = maxDDPct

	if out.TotalTrades > 0 {
		out.WinRate = decimal.NewFromInt(int64(out.Winners)).Div(decimal.NewFromInt(int64(out.TotalTrades)))
	}
	if out.Winners > 0 {
		out.AvgWin = grossProfit.Div(decimal.NewFromInt(int64(out.Winners)))
	}
	if out.Losers > 0 {
		out.AvgLoss = grossLoss.Div(decimal.NewFromInt(int64(out.Losers)))
		pf := grossProfit.Div(grossLoss.Abs())
		out.ProfitFactor = &pf
	}

	return out
}
