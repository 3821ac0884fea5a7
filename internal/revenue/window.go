// Package revenue compares sales before and after a price change.
package revenue

import (
	"context"
	"fmt"
	"time"

	"dynamic-pricing-service/internal/entity"

	"github.com/shopspring/decimal"
)

const day = 24 * time.Hour

// SalesSource reads daily sales aggregates. from is inclusive, to is exclusive.
type SalesSource interface {
	ListRecords(ctx context.Context, productID string, from, to time.Time) ([]entity.SalesRecord, error)
}

// Windows is the before/after revenue comparison around a price change.
type Windows struct {
	BeforeFrom, BeforeTo time.Time
	AfterFrom, AfterTo   time.Time

	BeforeRevenue  decimal.Decimal
	AfterRevenue   decimal.Decimal
	BeforeUnits    int
	AfterUnits     int
	SufficientData bool
}

// Drop returns (before - after) / before. ok is false when the data is insufficient,
// in which case the read is inconclusive and must not be treated as a 0% drop.
func (w Windows) Drop() (drop decimal.Decimal, ok bool) {
	if !w.SufficientData || w.BeforeRevenue.IsZero() {
		return decimal.Zero, false
	}
	return w.BeforeRevenue.Sub(w.AfterRevenue).Div(w.BeforeRevenue), true
}

// Bounds returns the before and after windows for an anchor. Both sides cover the
// same number of whole days, the window rounded up to days, split at the day of the
// anchor. The after window is clipped to now. A nil anchor means there was no price
// change: the before window is a baseline lookback ending today and the after window
// is empty.
func Bounds(lastChange *time.Time, window time.Duration, now time.Time) (beforeFrom, beforeTo, afterFrom, afterTo time.Time) {
	anchor := now
	if lastChange != nil {
		anchor = *lastChange
	}
	span := time.Duration(windowDays(window)) * day

	beforeTo = truncDay(anchor)
	beforeFrom = beforeTo.Add(-span)

	afterFrom = beforeTo
	afterTo = afterFrom.Add(span)
	if now.Before(afterTo) {
		afterTo = now.UTC()
	}
	if lastChange == nil || afterTo.Before(afterFrom) {
		afterTo = afterFrom
	}
	return beforeFrom, beforeTo, afterFrom, afterTo
}

// windowDays is the number of daily buckets a window spans, at least one.
func windowDays(window time.Duration) int {
	n := int((window + day - 1) / day)
	if n < 1 {
		n = 1
	}
	return n
}

// ComputeWindows aggregates records into the before and after windows.
// Records outside both windows are ignored.
func ComputeWindows(records []entity.SalesRecord, lastChange *time.Time, window time.Duration, now time.Time) Windows {
	w := Windows{
		BeforeRevenue: decimal.Zero,
		AfterRevenue:  decimal.Zero,
	}
	w.BeforeFrom, w.BeforeTo, w.AfterFrom, w.AfterTo = Bounds(lastChange, window, now)

	var beforeSelling, afterSelling bool
	for _, r := range records {
		d := truncDay(r.Date)
		switch {
		case within(d, w.BeforeFrom, w.BeforeTo):
			w.BeforeRevenue = w.BeforeRevenue.Add(r.Revenue)
			w.BeforeUnits += r.UnitsSold
			if r.UnitsSold > 0 {
				beforeSelling = true
			}
		case within(d, w.AfterFrom, w.AfterTo):
			w.AfterRevenue = w.AfterRevenue.Add(r.Revenue)
			w.AfterUnits += r.UnitsSold
			if r.UnitsSold > 0 {
				afterSelling = true
			}
		}
	}

	w.SufficientData = beforeSelling && afterSelling && !w.BeforeRevenue.IsZero()
	return w
}

// Calculator fetches sales records and computes the windows for a product.
type Calculator struct {
	sales SalesSource
}

// NewCalculator creates a Calculator reading from sales.
func NewCalculator(sales SalesSource) *Calculator {
	return &Calculator{sales: sales}
}

// Compute reads the records covering both windows and aggregates them.
func (c *Calculator) Compute(ctx context.Context, productID string, lastChange *time.Time, window time.Duration, now time.Time) (Windows, error) {
	from, _, _, to := Bounds(lastChange, window, now)
	records, err := c.sales.ListRecords(ctx, productID, from, to)
	if err != nil {
		return Windows{}, fmt.Errorf("list sales records: %w", err)
	}
	return ComputeWindows(records, lastChange, window, now), nil
}

func within(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}

func truncDay(t time.Time) time.Time {
	return t.UTC().Truncate(day)
}
