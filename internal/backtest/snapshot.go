package backtest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/parquet-go/parquet-go"

	"stratfolio/internal/domain"
)

// Snapshots are single-column portfolios encoded as an in-memory Parquet
// file: one row per bar plus key/value metadata for everything that is not a
// series. A snapshot is self-contained; Load rebuilds identical statistics
// without re-running the simulation.

const (
	metaVersion  = "stratfolio.snapshot.version"
	metaInitCash = "stratfolio.init_cash"
	metaOrders   = "stratfolio.orders"
	metaParams   = "stratfolio.params"
	metaConfig   = "stratfolio.config"

	snapshotVersion = "1"
)

// snapshotRow is the Parquet schema of one bar in a snapshot.
type snapshotRow struct {
	Timestamp int64   `parquet:"timestamp"` // Unix ms
	Open      float64 `parquet:"open"`
	Close     float64 `parquet:"close"`
	Cash      float64 `parquet:"cash"`
	Shares    float64 `parquet:"shares"`
	Value     float64 `parquet:"value"`
	Return    float64 `parquet:"return"`
}

// MarshalBinary encodes a single-column portfolio as a snapshot.
func (p *Portfolio) MarshalBinary() ([]byte, error) {
	if len(p.cols) != 1 {
		return nil, ErrMultiColumn
	}
	c := p.cols[0]
	n := len(c.value)
	if n == 0 {
		return nil, ErrMissingArtifact
	}

	rows := make([]snapshotRow, n)
	for i := 0; i < n; i++ {
		rows[i] = snapshotRow{
			Timestamp: p.prices.Index[i].UnixMilli(),
			Close:     p.prices.Close[i],
			Cash:      c.cash[i],
			Shares:    c.shares[i],
			Value:     c.value[i],
			Return:    c.returns[i],
		}
		if p.prices.Open != nil {
			rows[i].Open = p.prices.Open[i]
		}
	}

	params, err := json.Marshal(c.params)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot params: %w", err)
	}
	cfg, err := json.Marshal(p.cfg)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot config: %w", err)
	}

	var buf bytes.Buffer
	err = parquet.Write(&buf, rows,
		parquet.KeyValueMetadata(metaVersion, snapshotVersion),
		parquet.KeyValueMetadata(metaInitCash, strconv.FormatFloat(c.initCash, 'g', -1, 64)),
		parquet.KeyValueMetadata(metaOrders, strconv.Itoa(c.orders)),
		parquet.KeyValueMetadata(metaParams, string(params)),
		parquet.KeyValueMetadata(metaConfig, string(cfg)),
	)
	if err != nil {
		return nil, fmt.Errorf("writing snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// Load decodes a snapshot produced by MarshalBinary.
func Load(data []byte) (*Portfolio, error) {
	if len(data) == 0 {
		return nil, ErrMissingArtifact
	}
	r := bytes.NewReader(data)

	f, err := parquet.OpenFile(r, int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	if v, _ := f.Lookup(metaVersion); v != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %q", v)
	}

	rows, err := parquet.Read[snapshotRow](r, int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("reading snapshot rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrMissingArtifact
	}

	var c column
	raw, _ := f.Lookup(metaInitCash)
	if c.initCash, err = strconv.ParseFloat(raw, 64); err != nil {
		return nil, fmt.Errorf("snapshot init cash %q: %w", raw, err)
	}
	raw, _ = f.Lookup(metaOrders)
	if c.orders, err = strconv.Atoi(raw); err != nil {
		return nil, fmt.Errorf("snapshot orders %q: %w", raw, err)
	}
	raw, _ = f.Lookup(metaParams)
	c.params = domain.ParamDict{}
	if err := json.Unmarshal([]byte(raw), &c.params); err != nil {
		return nil, fmt.Errorf("snapshot params: %w", err)
	}
	var cfg Config
	raw, _ = f.Lookup(metaConfig)
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, fmt.Errorf("snapshot config: %w", err)
	}

	n := len(rows)
	prices := Prices{
		Index: make([]time.Time, n),
		Open:  make([]float64, n),
		Close: make([]float64, n),
	}
	c.cash = make([]float64, n)
	c.shares = make([]float64, n)
	c.value = make([]float64, n)
	c.returns = make([]float64, n)
	for i, row := range rows {
		prices.Index[i] = time.UnixMilli(row.Timestamp).UTC()
		prices.Open[i] = row.Open
		prices.Close[i] = row.Close
		c.cash[i] = row.Cash
		c.shares[i] = row.Shares
		c.value[i] = row.Value
		c.returns[i] = row.Return
	}

	return &Portfolio{cfg: cfg, prices: prices, cols: []column{c}}, nil
}
