package revenue

import (
	"context"
	"errors"
	"testing"
	"time"

	"dynamic-pricing-service/internal/entity"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	changeAt = time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	window   = 72 * time.Hour
)

func rec(date string, units int, revenue string) entity.SalesRecord {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return entity.SalesRecord{ProductID: "p-1", Date: d, UnitsSold: units, Revenue: decimal.RequireFromString(revenue)}
}

func TestBounds(t *testing.T) {
	now := changeAt.Add(80 * time.Hour)
	bf, bt, af, at := Bounds(&changeAt, window, now)

	assert.Equal(t, "2026-03-07", bf.Format("2006-01-02"))
	assert.Equal(t, "2026-03-10", bt.Format("2006-01-02"))
	assert.Equal(t, "2026-03-10", af.Format("2006-01-02"))
	assert.Equal(t, "2026-03-13", at.Format("2006-01-02"))
}

func TestBoundsClipsToNow(t *testing.T) {
	now := changeAt.Add(30 * time.Hour)
	_, _, af, at := Bounds(&changeAt, window, now)

	assert.Equal(t, "2026-03-10", af.Format("2006-01-02"))
	assert.Equal(t, "2026-03-11", at.Format("2006-01-02"))
}

func TestBoundsWithoutPriorChange(t *testing.T) {
	now := changeAt
	bf, bt, af, at := Bounds(nil, window, now)

	assert.Equal(t, "2026-03-07", bf.Format("2006-01-02"))
	assert.Equal(t, "2026-03-10", bt.Format("2006-01-02"))
	assert.Equal(t, af, at, "after window is empty without a change")
}

func TestComputeWindows(t *testing.T) {
	now := changeAt.Add(80 * time.Hour)

	tests := []struct {
		name       string
		records    []entity.SalesRecord
		before     string
		after      string
		sufficient bool
		drop       string
	}{
		{
			name: "twenty percent drop",
			records: []entity.SalesRecord{
				rec("2026-03-07", 4, "400"), rec("2026-03-08", 3, "300"), rec("2026-03-09", 3, "300"),
				rec("2026-03-10", 3, "315"), rec("2026-03-11", 2, "210"), rec("2026-03-12", 3, "275"),
			},
			before: "1000", after: "800", sufficient: true, drop: "0.2",
		},
		{
			name: "records outside both windows are ignored",
			records: []entity.SalesRecord{
				rec("2026-03-01", 100, "9999"),
				rec("2026-03-08", 10, "1000"),
				rec("2026-03-11", 9, "950"),
				rec("2026-03-13", 100, "9999"),
			},
			before: "1000", after: "950", sufficient: true, drop: "0.05",
		},
		{
			name: "no before sales",
			records: []entity.SalesRecord{
				rec("2026-03-08", 0, "0"),
				rec("2026-03-11", 9, "950"),
			},
			before: "0", after: "950", sufficient: false,
		},
		{
			name: "no after sales",
			records: []entity.SalesRecord{
				rec("2026-03-08", 10, "1000"),
				rec("2026-03-11", 0, "0"),
			},
			before: "1000", after: "0", sufficient: false,
		},
		{
			name:   "empty",
			before: "0", after: "0", sufficient: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ComputeWindows(tt.records, &changeAt, window, now)
			assert.True(t, decimal.RequireFromString(tt.before).Equal(w.BeforeRevenue), "before %s", w.BeforeRevenue)
			assert.True(t, decimal.RequireFromString(tt.after).Equal(w.AfterRevenue), "after %s", w.AfterRevenue)
			assert.Equal(t, tt.sufficient, w.SufficientData)

			drop, ok := w.Drop()
			assert.Equal(t, tt.sufficient, ok)
			if ok {
				assert.True(t, decimal.RequireFromString(tt.drop).Equal(drop), "drop %s", drop)
			}
		})
	}
}

func TestZeroBeforeRevenueIsInsufficient(t *testing.T) {
	now := changeAt.Add(80 * time.Hour)
	// units sold but revenue recorded as zero (e.g. free promotion)
	records := []entity.SalesRecord{rec("2026-03-08", 5, "0"), rec("2026-03-11", 5, "500")}

	w := ComputeWindows(records, &changeAt, window, now)
	assert.False(t, w.SufficientData)
	_, ok := w.Drop()
	assert.False(t, ok)
}

type fakeSales struct {
	records  []entity.SalesRecord
	err      error
	from, to time.Time
}

func (f *fakeSales) ListRecords(_ context.Context, _ string, from, to time.Time) ([]entity.SalesRecord, error) {
	f.from, f.to = from, to
	return f.records, f.err
}

func TestCalculatorCompute(t *testing.T) {
	src := &fakeSales{records: []entity.SalesRecord{rec("2026-03-08", 10, "1000"), rec("2026-03-11", 9, "800")}}
	calc := NewCalculator(src)

	w, err := calc.Compute(context.Background(), "p-1", &changeAt, window, changeAt.Add(80*time.Hour))
	require.NoError(t, err)
	assert.True(t, w.SufficientData)
	assert.Equal(t, "2026-03-07", src.from.Format("2006-01-02"))
	assert.Equal(t, "2026-03-13", src.to.Format("2006-01-02"))

	src.err = errors.New("db down")
	_, err = calc.Compute(context.Background(), "p-1", &changeAt, window, changeAt.Add(80*time.Hour))
	assert.ErrorIs(t, err, src.err)
}

func flatSales(from string, days int) []entity.SalesRecord {
	start, err := time.Parse("2006-01-02", from)
	if err != nil {
		panic(err)
	}
	var records []entity.SalesRecord
	for i := 0; i < days; i++ {
		records = append(records, entity.SalesRecord{
			ProductID: "p-1",
			Date:      start.AddDate(0, 0, i),
			UnitsSold: 1,
			Revenue:   decimal.NewFromInt(100),
		})
	}
	return records
}

func TestComputeWindowsEqualSpans(t *testing.T) {
	records := flatSales("2026-02-01", 90)

	tests := []struct {
		name   string
		window time.Duration
		now    time.Time
		total  string
	}{
		{"12h just after the window", 12 * time.Hour, changeAt.Add(13 * time.Hour), "100"},
		{"12h a month later", 12 * time.Hour, changeAt.Add(30 * 24 * time.Hour), "100"},
		{"36h just after the window", 36 * time.Hour, changeAt.Add(37 * time.Hour), "200"},
		{"48h just after the window", 48 * time.Hour, changeAt.Add(49 * time.Hour), "200"},
		{"60h just after the window", 60 * time.Hour, changeAt.Add(61 * time.Hour), "300"},
		{"72h just after the window", 72 * time.Hour, changeAt.Add(73 * time.Hour), "300"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ComputeWindows(records, &changeAt, tt.window, tt.now)
			require.True(t, w.SufficientData)
			assert.True(t, decimal.RequireFromString(tt.total).Equal(w.BeforeRevenue), "before %s", w.BeforeRevenue)
			assert.True(t, decimal.RequireFromString(tt.total).Equal(w.AfterRevenue), "after %s", w.AfterRevenue)

			drop, ok := w.Drop()
			require.True(t, ok)
			assert.True(t, drop.IsZero(), "drop %s", drop)
		})
	}
}

func TestBoundsSubDayWindow(t *testing.T) {
	bf, bt, af, at := Bounds(&changeAt, 12*time.Hour, changeAt.Add(72*time.Hour))

	assert.Equal(t, "2026-03-09", bf.Format("2006-01-02"))
	assert.Equal(t, "2026-03-10", bt.Format("2006-01-02"))
	assert.Equal(t, "2026-03-10", af.Format("2006-01-02"))
	assert.Equal(t, "2026-03-11", at.Format("2006-01-02"))
}
