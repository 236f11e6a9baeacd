// Package dataset loads delimited text files into an in-memory Table whose
// columns are classified once, at load time, as numeric, categorical or
// unknown (all missing).
package dataset

import (
	"fmt"
	"math"
)

// Kind tags the type of a column.
type Kind int

const (
	KindUnknown Kind = iota
	KindNumeric
	KindCategorical
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindCategorical:
		return "categorical"
	case KindUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Column is a named sequence of cells. Raw and Missing always have one entry
// per row; Values is only populated for numeric columns and holds NaN where
// the cell is missing.
type Column struct {
	Name    string
	Kind    Kind
	Raw     []string
	Missing []bool
	Values  []float64
}

// Len returns the number of rows in the column.
func (c *Column) Len() int { return len(c.Raw) }

// NullCount tallies missing cells.
func (c *Column) NullCount() int {
	n := 0
	for _, m := range c.Missing {
		if m {
			n++
		}
	}
	return n
}

// Present returns the non-missing numeric values of a numeric column.
func (c *Column) Present() []float64 {
	if c.Kind != KindNumeric {
		return nil
	}
	out := make([]float64, 0, len(c.Values))
	for _, v := range c.Values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// Texts returns the non-missing raw values of the column in row order.
func (c *Column) Texts() []string {
	out := make([]string, 0, len(c.Raw))
	for i, v := range c.Raw {
		if !c.Missing[i] {
			out = append(out, v)
		}
	}
	return out
}

// Table is an ordered set of equally long columns.
type Table struct {
	Path      string
	Encoding  string
	Delimiter rune
	Rows      int
	Columns   []Column
	Warnings  []string
}

// Names returns the column names in order.
func (t *Table) Names() []string {
	out := make([]string, len(t.Columns))
	for i := range t.Columns {
		out[i] = t.Columns[i].Name
	}
	return out
}

// Column looks up a column by name.
func (t *Table) Column(name string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// NumericColumns returns the numeric columns in table order.
func (t *Table) NumericColumns() []*Column {
	var out []*Column
	for i := range t.Columns {
		if t.Columns[i].Kind == KindNumeric {
			out = append(out, &t.Columns[i])
		}
	}
	return out
}

// Validate checks that every column carries exactly Rows cells and a known kind.
func (t *Table) Validate() error {
	for i := range t.Columns {
		c := &t.Columns[i]
		if len(c.Raw) != t.Rows || len(c.Missing) != t.Rows {
			return fmt.Errorf("column %q has %d cells, table has %d rows", c.Name, len(c.Raw), t.Rows)
		}
		switch c.Kind {
		case KindNumeric:
			if len(c.Values) != t.Rows {
				return fmt.Errorf("numeric column %q has %d values, table has %d rows", c.Name, len(c.Values), t.Rows)
			}
		case KindCategorical, KindUnknown:
		default:
			return fmt.Errorf("column %q has unsupported kind %s", c.Name, c.Kind)
		}
	}
	return nil
}
