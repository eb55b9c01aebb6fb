package market

import (
	"context"
	"math"
	"time"
)

// StaticSource synthesizes a deterministic candle series. It backs demo
// runs and tests where no exchange connectivity is wanted.
type StaticSource struct {
	Base   float64
	Step   float64
	nowFn  func() time.Time
	offset int
}

func NewStaticSource(base float64) *StaticSource {
	if base <= 0 {
		base = 50000
	}
	return &StaticSource{Base: base, Step: base * 0.001, nowFn: time.Now}
}

func (s *StaticSource) Name() string { return "static" }

func (s *StaticSource) FetchCandles(_ context.Context, _ string, interval string, limit int) ([]Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	step := time.Minute
	if d, err := time.ParseDuration(interval); err == nil && d > 0 {
		step = d
	}
	now := s.nowFn().UTC().Truncate(step)
	out := make([]Candle, 0, limit)
	for i := 0; i < limit; i++ {
		idx := s.offset + i
		mid := s.Base + s.Step*20*math.Sin(float64(idx)/14) + s.Step*4*math.Sin(float64(idx)/3)
		open := mid - s.Step/2
		closep := mid + s.Step/2
		openTime := now.Add(-time.Duration(limit-i) * step)
		out = append(out, Candle{
			OpenTime:  openTime.UnixMilli(),
			CloseTime: openTime.Add(step).UnixMilli() - 1,
			Open:      open,
			High:      mid + s.Step,
			Low:       mid - s.Step,
			Close:     closep,
			Volume:    1000 + 50*math.Sin(float64(idx)/5),
		})
	}
	s.offset++
	return out, nil
}
