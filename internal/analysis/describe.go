package analysis

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/autolysis/internal/dataset"
)

// Describe renders a compact text profile suitable for prompts.
func (s *Summary) Describe() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if s.Source != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", filepath.Base(s.Source)))
	}
	b.WriteString(fmt.Sprintf("Shape: %d rows x %d columns\n", s.Shape.Rows, s.Shape.Cols))
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = safeName(c)
	}
	b.WriteString(fmt.Sprintf("Columns: %s\n", strings.Join(names, ", ")))

	b.WriteString("\n[MISSING VALUES]\n")
	anyMissing := false
	for _, c := range s.Columns {
		if n := s.NullCounts[c]; n > 0 {
			anyMissing = true
			pct := 0.0
			if s.Shape.Rows > 0 {
				pct = float64(n) * 100.0 / float64(s.Shape.Rows)
			}
			b.WriteString(fmt.Sprintf("- %s: %d (%.1f%%)\n", safeName(c), n, pct))
		}
	}
	if !anyMissing {
		b.WriteString("- none\n")
	}

	b.WriteString("\n[STATISTICS]\n")
	for _, c := range s.Columns {
		st := s.Stats[c]
		b.WriteString(fmt.Sprintf("- %s: %s, count %d", safeName(c), st.Kind, st.Count))
		switch st.Kind {
		case dataset.KindNumeric:
			b.WriteString(fmt.Sprintf("; mean %.4g, std %.4g, min %.4g, 25%% %.4g, 50%% %.4g, 75%% %.4g, max %.4g",
				st.Mean, st.Std, st.Min, st.Q1, st.Median, st.Q3, st.Max))
		case dataset.KindCategorical:
			b.WriteString(fmt.Sprintf("; unique %d, top %q (freq %d)", st.Unique, safeVal(st.Top), st.Freq))
			if len(st.TopValues) > 1 {
				b.WriteString("; most common: ")
				for i, kv := range st.TopValues {
					if i > 0 {
						b.WriteString(", ")
					}
					b.WriteString(fmt.Sprintf("%s(%d)", safeVal(kv.Value), kv.Count))
				}
			}
		case dataset.KindUnknown:
			b.WriteString("; all values missing")
		}
		b.WriteString("\n")
	}

	if pairs := s.Correlation.TopPairs(10); len(pairs) > 0 {
		b.WriteString("\n[CORRELATIONS]\n")
		for _, p := range pairs {
			b.WriteString(fmt.Sprintf("- %s ~ %s: r=%.3f\n", p.A, p.B, p.R))
		}
	}
	if len(s.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range s.Warnings {
			b.WriteString("- ")
			b.WriteString(w)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
