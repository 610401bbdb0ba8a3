package main

import (
	"context"
	"encoding/json"
	"fmt"

	"stratfolio/internal/store"
	"stratfolio/internal/strategy"
)

// surfaceSink writes optimization surfaces next to the bar cache.
type surfaceSink struct {
	bars *store.ParquetStore
}

func (s *surfaceSink) Surface(_ context.Context, surf strategy.Surface) error {
	rows := make([]store.SurfaceRecord, len(surf.Cells))
	for i, c := range surf.Cells {
		params, err := json.Marshal(c.Params)
		if err != nil {
			return err
		}
		rows[i] = store.SurfaceRecord{
			Params:      string(params),
			SharpeRatio: c.SharpeRatio,
			TotalReturn: c.TotalReturn,
			MaxDrawdown: c.MaxDrawdown,
		}
	}
	path, err := s.bars.WriteSurface(surf.Name, rows)
	if err != nil {
		return err
	}
	fmt.Printf("surface over %v written to %s\n", surf.Axes, path)
	return nil
}
