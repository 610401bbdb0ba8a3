package portfolio

import (
	"fmt"
	"strings"

	"stratfolio/internal/domain"
	"stratfolio/internal/store"
)

// ErrNotFound is returned for an id that is not in the portfolio table.
var ErrNotFound = store.ErrNotFound

// ValidationError rejects a portfolio before anything is written: either
// symbols missing from the instrument table, or a strategy and parameter set
// that could not be re-run later.
type ValidationError struct {
	Market     domain.Market
	Unresolved []string

	Strategy string
	Err      error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s portfolio: %v", e.Strategy, e.Err)
	}
	return fmt.Sprintf("unknown %s symbols: %s", e.Market, strings.Join(e.Unresolved, ", "))
}

func (e *ValidationError) Unwrap() error { return e.Err }

// PersistenceError wraps a failed database operation. The transaction it
// ran in has been rolled back.
type PersistenceError struct {
	Op  string
	ID  int64
	Err error
}

func (e *PersistenceError) Error() string {
	if e.ID != 0 {
		return fmt.Sprintf("portfolio %s %d: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("portfolio %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
