// Package analysis computes descriptive statistics over a loaded dataset.
package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/KaramelBytes/autolysis/internal/dataset"
	"gonum.org/v1/gonum/stat"
)

// Shape is the (rows, columns) size of a table.
type Shape struct {
	Rows int
	Cols int
}

// Summary is the descriptive profile of a table.
type Summary struct {
	Source      string
	Shape       Shape
	Columns     []string
	NullCounts  map[string]int
	Stats       map[string]ColumnStats
	Correlation *CorrMatrix
	Warnings    []string
}

// ColumnStats captures type-dependent statistics per column.
type ColumnStats struct {
	Kind  dataset.Kind
	Count int
	// Numeric stats
	Mean   float64
	Std    float64
	Min    float64
	Q1     float64
	Median float64
	Q3     float64
	Max    float64
	// Categorical stats
	Unique    int
	Top       string
	Freq      int
	TopValues []CategoryCount
}

// CategoryCount is one categorical value and how often it occurs.
type CategoryCount struct {
	Value string
	Count int
}

// CorrMatrix holds a symmetric Pearson correlation matrix across numeric columns.
type CorrMatrix struct {
	Columns []string
	Values  [][]float64 // row-major, Values[i][j]
}

// PairCorr is a simple correlation pair summary.
type PairCorr struct {
	A, B string
	R    float64
}

// SummarizationError reports a table whose statistics cannot be computed.
type SummarizationError struct {
	Source string
	Err    error
}

func (e *SummarizationError) Error() string {
	return fmt.Sprintf("summarize %s: %v", e.Source, e.Err)
}

func (e *SummarizationError) Unwrap() error { return e.Err }

const topValuesLimit = 5

// Summarize computes shape, null counts and per-column statistics.
func Summarize(t *dataset.Table) (*Summary, error) {
	if t == nil {
		return nil, &SummarizationError{Err: fmt.Errorf("nil table")}
	}
	if err := t.Validate(); err != nil {
		return nil, &SummarizationError{Source: t.Path, Err: err}
	}
	s := &Summary{
		Source:     t.Path,
		Shape:      Shape{Rows: t.Rows, Cols: len(t.Columns)},
		Columns:    t.Names(),
		NullCounts: make(map[string]int, len(t.Columns)),
		Stats:      make(map[string]ColumnStats, len(t.Columns)),
		Warnings:   append([]string(nil), t.Warnings...),
	}
	for i := range t.Columns {
		c := &t.Columns[i]
		s.NullCounts[c.Name] = c.NullCount()
		switch c.Kind {
		case dataset.KindNumeric:
			s.Stats[c.Name] = numericStats(c.Present())
		case dataset.KindCategorical:
			s.Stats[c.Name] = categoricalStats(c.Texts())
		case dataset.KindUnknown:
			s.Stats[c.Name] = ColumnStats{Kind: dataset.KindUnknown}
		}
	}
	s.Correlation = Correlate(t)
	return s, nil
}

func numericStats(vals []float64) ColumnStats {
	cs := ColumnStats{Kind: dataset.KindNumeric, Count: len(vals)}
	nan := math.NaN()
	if len(vals) == 0 {
		cs.Mean, cs.Std, cs.Min, cs.Q1, cs.Median, cs.Q3, cs.Max = nan, nan, nan, nan, nan, nan, nan
		return cs
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	if len(vals) > 1 {
		cs.Mean, cs.Std = stat.MeanStdDev(vals, nil)
	} else {
		cs.Mean, cs.Std = vals[0], nan
	}
	cs.Min = sorted[0]
	cs.Q1 = quantile(sorted, 0.25)
	cs.Median = quantile(sorted, 0.5)
	cs.Q3 = quantile(sorted, 0.75)
	cs.Max = sorted[len(sorted)-1]
	return cs
}

func categoricalStats(vals []string) ColumnStats {
	cs := ColumnStats{Kind: dataset.KindCategorical, Count: len(vals)}
	counts := map[string]int{}
	first := map[string]int{}
	for i, v := range vals {
		if _, ok := counts[v]; !ok {
			first[v] = i
		}
		counts[v]++
	}
	tops := make([]CategoryCount, 0, len(counts))
	for k, v := range counts {
		tops = append(tops, CategoryCount{Value: k, Count: v})
	}
	// ties keep first-seen order
	sort.Slice(tops, func(i, j int) bool {
		if tops[i].Count == tops[j].Count {
			return first[tops[i].Value] < first[tops[j].Value]
		}
		return tops[i].Count > tops[j].Count
	})
	cs.Unique = len(counts)
	if len(tops) > 0 {
		cs.Top, cs.Freq = tops[0].Value, tops[0].Count
	}
	if len(tops) > topValuesLimit {
		tops = tops[:topValuesLimit]
	}
	cs.TopValues = tops
	return cs
}

// Correlate computes pairwise Pearson correlations among the numeric columns
// of t using pairwise-complete observations. It returns nil when the table has
// no numeric columns. Pairs with fewer than two complete rows or zero
// variance yield NaN.
func Correlate(t *dataset.Table) *CorrMatrix {
	cols := t.NumericColumns()
	if len(cols) == 0 {
		return nil
	}
	n := len(cols)
	m := &CorrMatrix{Columns: make([]string, n), Values: make([][]float64, n)}
	for i, c := range cols {
		m.Columns[i] = c.Name
		m.Values[i] = make([]float64, n)
	}
	for a := 0; a < n; a++ {
		for b := a; b < n; b++ {
			r := pearson(cols[a].Values, cols[b].Values)
			m.Values[a][b] = r
			m.Values[b][a] = r
		}
	}
	return m
}

func pearson(x, y []float64) float64 {
	xs := make([]float64, 0, len(x))
	ys := make([]float64, 0, len(y))
	for i := range x {
		if i >= len(y) || math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	if len(xs) < 2 {
		return math.NaN()
	}
	r := stat.Correlation(xs, ys, nil)
	if math.IsInf(r, 0) {
		return math.NaN()
	}
	if r > 1 {
		r = 1
	} else if r < -1 {
		r = -1
	}
	return r
}

// TopPairs lists off-diagonal pairs ordered by |r|, skipping NaN entries.
func (m *CorrMatrix) TopPairs(limit int) []PairCorr {
	if m == nil {
		return nil
	}
	var pairs []PairCorr
	n := len(m.Columns)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if r := m.Values[i][j]; !math.IsNaN(r) {
				pairs = append(pairs, PairCorr{A: m.Columns[i], B: m.Columns[j], R: r})
			}
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		ai, aj := math.Abs(pairs[i].R), math.Abs(pairs[j].R)
		if ai == aj {
			return pairs[i].A+pairs[i].B < pairs[j].A+pairs[j].B
		}
		return ai > aj
	})
	if limit > 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs
}

// quantile interpolates linearly between closest ranks of sorted.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}
