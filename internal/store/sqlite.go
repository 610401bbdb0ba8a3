package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"stratfolio/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver, registered as "sqlite".
)

// Compile-time interface checks.
var _ InstrumentStore = (*SQLiteStore)(nil)
var _ PortfolioStore = (*SQLiteStore)(nil)

// SQLiteStore implements InstrumentStore and PortfolioStore backed by a
// SQLite database accessed through gorm.
type SQLiteStore struct {
	db  *gorm.DB
	log *slog.Logger
}

// ---------------------------------------------------------------------------
// Table models
// ---------------------------------------------------------------------------

type instrumentModel struct {
	Symbol string `gorm:"primaryKey"`
	Market string `gorm:"primaryKey"`
	Name   string
}

func (instrumentModel) TableName() string { return "stock" }

type portfolioModel struct {
	ID            int64 `gorm:"primaryKey;autoIncrement"`
	Name          string `gorm:"not null"`
	Description   string
	CreateDate    time.Time
	StartDate     time.Time
	EndDate       time.Time
	TotalReturn   float64
	AnnualReturn  float64
	LastdayReturn float64
	SharpeRatio   float64
	MaxDrawdown   float64 `gorm:"column:maxdrawdown"`
	ParamDict     datatypes.JSON
	Strategy      string `gorm:"index;not null"`
	Symbols       string `gorm:"not null"`
	Market        string `gorm:"not null"`
	Snapshot      []byte
}

func (portfolioModel) TableName() string { return "portfolio" }

// ---------------------------------------------------------------------------
// Open / close
// ---------------------------------------------------------------------------

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, migrates
// the stock and portfolio tables and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.New(sqlite.Config{
		DriverName: "sqlite",
		DSN:        sqliteDSN(dbPath),
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.AutoMigrate(&instrumentModel{}, &portfolioModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &SQLiteStore{db: db, log: slog.Default().With("component", "sqlite")}, nil
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// DB exposes the underlying gorm handle.
func (s *SQLiteStore) DB() *gorm.DB { return s.db }

// Close closes the underlying database connection pool.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ---------------------------------------------------------------------------
// InstrumentStore implementation
// ---------------------------------------------------------------------------

// SaveInstruments upserts instruments keyed by (symbol, market).
func (s *SQLiteStore) SaveInstruments(ctx context.Context, instruments []domain.Instrument) error {
	if len(instruments) == 0 {
		return nil
	}
	rows := make([]instrumentModel, len(instruments))
	for i, in := range instruments {
		rows[i] = instrumentModel{Symbol: in.Symbol, Market: string(in.Market), Name: in.Name}
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}, {Name: "market"}},
			DoUpdates: clause.AssignmentColumns([]string{"name"}),
		}).CreateInBatches(rows, 500).Error
	})
}

// ResolveInstruments returns the known instruments among symbols.
func (s *SQLiteStore) ResolveInstruments(ctx context.Context, market domain.Market, symbols []string) ([]domain.Instrument, error) {
	if len(symbols) == 0 {
		return nil, nil
	}
	var rows []instrumentModel
	err := s.db.WithContext(ctx).
		Where("market = ? AND symbol IN ?", string(market), symbols).
		Order("symbol").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toInstruments(rows), nil
}

// ListInstruments returns all instruments of a market.
func (s *SQLiteStore) ListInstruments(ctx context.Context, market domain.Market) ([]domain.Instrument, error) {
	var rows []instrumentModel
	if err := s.db.WithContext(ctx).Where("market = ?", string(market)).Order("symbol").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toInstruments(rows), nil
}

func toInstruments(rows []instrumentModel) []domain.Instrument {
	out := make([]domain.Instrument, len(rows))
	for i, r := range rows {
		out[i] = domain.Instrument{Symbol: r.Symbol, Market: domain.Market(r.Market), Name: r.Name}
	}
	return out
}

// ---------------------------------------------------------------------------
// PortfolioStore implementation
// ---------------------------------------------------------------------------

// ListPortfolios returns every portfolio ordered by id. Rows whose
// param_dict cannot be decoded are logged and left out.
func (s *SQLiteStore) ListPortfolios(ctx context.Context) ([]domain.PortfolioRecord, error) {
	var rows []portfolioModel
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.PortfolioRecord, 0, len(rows))
	for i := range rows {
		rec, err := toRecord(&rows[i])
		if err != nil {
			s.log.Warn("skipping unreadable portfolio", "id", rows[i].ID, "name", rows[i].Name, "error", err)
			continue
		}
		out = append(out, *rec)
	}
	return out, nil
}

// GetPortfolio returns one portfolio by id.
func (s *SQLiteStore) GetPortfolio(ctx context.Context, id int64) (*domain.PortfolioRecord, error) {
	var row portfolioModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toRecord(&row)
}

// InsertPortfolio inserts rec inside a transaction and sets rec.ID.
func (s *SQLiteStore) InsertPortfolio(ctx context.Context, rec *domain.PortfolioRecord) error {
	row, err := fromRecord(rec)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(row).Error
	})
	if err != nil {
		return err
	}
	rec.ID = row.ID
	return nil
}

// UpdatePortfolio rewrites end date, statistics and snapshot inside a
// transaction.
func (s *SQLiteStore) UpdatePortfolio(ctx context.Context, id int64, upd domain.PortfolioUpdate) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&portfolioModel{}).Where("id = ?", id).Updates(map[string]any{
			"end_date":       upd.EndDate,
			"total_return":   upd.Summary.TotalReturn,
			"lastday_return": upd.Summary.LastdayReturn,
			"annual_return":  upd.Summary.AnnualReturn,
			"sharpe_ratio":   upd.Summary.SharpeRatio,
			"maxdrawdown":    upd.Summary.MaxDrawdown,
			"snapshot":       upd.Snapshot,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// DeletePortfolio removes one portfolio inside a transaction.
func (s *SQLiteStore) DeletePortfolio(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&portfolioModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func fromRecord(rec *domain.PortfolioRecord) (*portfolioModel, error) {
	params, err := json.Marshal(rec.ParamDict)
	if err != nil {
		return nil, fmt.Errorf("encoding param_dict: %w", err)
	}
	return &portfolioModel{
		ID:            rec.ID,
		Name:          rec.Name,
		Description:   rec.Description,
		CreateDate:    rec.CreateDate,
		StartDate:     rec.StartDate,
		EndDate:       rec.EndDate,
		TotalReturn:   rec.TotalReturn,
		AnnualReturn:  rec.AnnualReturn,
		LastdayReturn: rec.LastdayReturn,
		SharpeRatio:   rec.SharpeRatio,
		MaxDrawdown:   rec.MaxDrawdown,
		ParamDict:     datatypes.JSON(params),
		Strategy:      rec.Strategy,
		Symbols:       strings.Join(rec.Symbols, ","),
		Market:        string(rec.Market),
		Snapshot:      rec.Snapshot,
	}, nil
}

func toRecord(row *portfolioModel) (*domain.PortfolioRecord, error) {
	params, err := DecodeParamDict(string(row.ParamDict))
	if err != nil {
		return nil, fmt.Errorf("portfolio %d: %w", row.ID, err)
	}
	var symbols []string
	if row.Symbols != "" {
		symbols = strings.Split(row.Symbols, ",")
	}
	return &domain.PortfolioRecord{
		ID:            row.ID,
		Name:          row.Name,
		Description:   row.Description,
		CreateDate:    row.CreateDate.UTC(),
		StartDate:     row.StartDate.UTC(),
		EndDate:       row.EndDate.UTC(),
		TotalReturn:   row.TotalReturn,
		AnnualReturn:  row.AnnualReturn,
		LastdayReturn: row.LastdayReturn,
		SharpeRatio:   row.SharpeRatio,
		MaxDrawdown:   row.MaxDrawdown,
		ParamDict:     params,
		Strategy:      row.Strategy,
		Symbols:       symbols,
		Market:        domain.Market(row.Market),
		Snapshot:      row.Snapshot,
	}, nil
}

// DecodeParamDict parses a stored param_dict. Values may have been written
// as JSON numbers with a fractional part; they are truncated to int.
func DecodeParamDict(raw string) (domain.ParamDict, error) {
	if raw == "" || raw == "null" {
		return domain.ParamDict{}, nil
	}
	var generic map[string]float64
	if err := json.Unmarshal([]byte(raw), &generic); err != nil {
		return nil, fmt.Errorf("decoding param_dict: %w", err)
	}
	out := make(domain.ParamDict, len(generic))
	for k, v := range generic {
		out[k] = int(v)
	}
	return out, nil
}
