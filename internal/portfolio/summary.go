package portfolio

import (
	"math"

	"github.com/shopspring/decimal"

	"stratfolio/internal/backtest"
	"stratfolio/internal/domain"
)

// Summarize extracts the stored statistics of a single-column portfolio.
// Returns and drawdown are fractions rounded to 2 places; the last-day
// return keeps 4.
func Summarize(pf *backtest.Portfolio) (domain.Summary, error) {
	st, err := pf.Stats()
	if err != nil {
		return domain.Summary{}, err
	}
	return domain.Summary{
		TotalReturn:   roundTo(st.TotalReturnPct/100, 2),
		AnnualReturn:  roundTo(st.AnnualizedReturn, 2),
		LastdayReturn: roundTo(st.LastdayReturn, 4),
		SharpeRatio:   roundTo(st.SharpeRatio, 2),
		MaxDrawdown:   roundTo(st.MaxDrawdownPct/100, 2),
	}, nil
}

// roundTo rounds half away from zero. NaN becomes 0 since SQLite stores it
// as NULL; infinities pass through.
func roundTo(v float64, places int32) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}
