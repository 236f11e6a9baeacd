package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Options controls how files are decoded and split.
type Options struct {
	// Encodings are tried in order; the first that decodes and parses wins.
	Encodings []string
	// Delimiter for fields. If 0, auto-detects among ',', ';', '\t', '|'.
	Delimiter rune
}

// DefaultOptions returns the utf-8 then latin-1 fallback with delimiter sniffing.
func DefaultOptions() Options {
	return Options{Encodings: append([]string(nil), DefaultEncodings...)}
}

// DataLoadError reports that a dataset could not be read under any encoding.
type DataLoadError struct {
	Path     string
	Attempts []EncodingAttempt
	Err      error
}

// EncodingAttempt records why one candidate encoding was rejected.
type EncodingAttempt struct {
	Encoding string
	Err      error
}

func (e *DataLoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("load dataset %s: %v", e.Path, e.Err)
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Encoding, a.Err))
	}
	return fmt.Sprintf("load dataset %s: no supported encoding could parse the file (%s)", e.Path, strings.Join(parts, "; "))
}

func (e *DataLoadError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts)+1)
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}

// Loader reads delimited text files into Tables.
type Loader struct {
	opt Options
	log zerolog.Logger
}

// NewLoader builds a Loader. Unknown encodings are rejected up front.
func NewLoader(opt Options, log zerolog.Logger) (*Loader, error) {
	if len(opt.Encodings) == 0 {
		opt.Encodings = append([]string(nil), DefaultEncodings...)
	}
	encs := make([]string, 0, len(opt.Encodings))
	for _, e := range opt.Encodings {
		n, ok := NormalizeEncoding(e)
		if !ok {
			return nil, fmt.Errorf("unsupported encoding %q (supported: %s)", e, strings.Join(SupportedEncodings(), ", "))
		}
		encs = append(encs, n)
	}
	opt.Encodings = encs
	return &Loader{opt: opt, log: log.With().Str("component", "loader").Logger()}, nil
}

// Load reads path, trying each configured encoding in order.
func (l *Loader) Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &DataLoadError{Path: path, Err: fmt.Errorf("read file: %w", err)}
	}
	var attempts []EncodingAttempt
	for _, enc := range l.opt.Encodings {
		text, err := decoders[enc](data)
		if err == nil {
			var t *Table
			t, err = l.parse(path, text)
			if err == nil {
				t.Encoding = enc
				l.log.Debug().Str("path", path).Str("encoding", enc).Int("rows", t.Rows).Int("cols", len(t.Columns)).Msg("dataset loaded")
				return t, nil
			}
		}
		l.log.Debug().Err(err).Str("encoding", enc).Msg("encoding rejected")
		attempts = append(attempts, EncodingAttempt{Encoding: enc, Err: err})
	}
	return nil, &DataLoadError{Path: path, Attempts: attempts}
}

func (l *Loader) parse(path, text string) (*Table, error) {
	delim := l.opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(path, text)
	}
	t := &Table{Path: path, Delimiter: delim}

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return t, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	names := headerNames(header)
	ncol := len(names)
	raw := make([][]string, ncol)
	long := 0
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", t.Rows+1, err)
		}
		if len(rec) > ncol {
			long++
		}
		for j := 0; j < ncol; j++ {
			v := ""
			if j < len(rec) {
				v = rec[j]
			}
			raw[j] = append(raw[j], v)
		}
		t.Rows++
	}
	if long > 0 {
		w := fmt.Sprintf("%d row(s) had more than %d fields; extra fields were dropped", long, ncol)
		t.Warnings = append(t.Warnings, w)
		l.log.Warn().Str("path", path).Int("rows", long).Msg("ragged rows truncated to header width")
	}
	t.Columns = make([]Column, ncol)
	for j, name := range names {
		t.Columns[j] = buildColumn(name, raw[j], t.Rows)
	}
	return t, nil
}

// buildColumn classifies a column once: numeric when every present cell
// parses as a float, categorical when any present cell does not, unknown
// when nothing is present.
func buildColumn(name string, raw []string, rows int) Column {
	if raw == nil {
		raw = make([]string, rows)
	}
	c := Column{Name: name, Raw: raw, Missing: make([]bool, rows)}
	values := make([]float64, rows)
	present, numeric := 0, true
	for i, v := range raw {
		s := strings.TrimSpace(v)
		if isMissing(s) {
			c.Missing[i] = true
			values[i] = math.NaN()
			continue
		}
		x, err := strconv.ParseFloat(s, 64)
		if err == nil && math.IsNaN(x) {
			// spellings such as "NAN" that are not in the token list
			c.Missing[i] = true
			values[i] = x
			continue
		}
		present++
		if err != nil {
			numeric = false
			continue
		}
		values[i] = x
	}
	switch {
	case present == 0:
		c.Kind = KindUnknown
	case numeric:
		c.Kind = KindNumeric
		c.Values = values
	default:
		c.Kind = KindCategorical
	}
	return c
}

var missingTokens = map[string]struct{}{
	"": {}, "NA": {}, "N/A": {}, "n/a": {}, "NaN": {}, "nan": {}, "-NaN": {}, "-nan": {},
	"null": {}, "NULL": {}, "None": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "<NA>": {},
	"1.#IND": {}, "1.#QNAN": {}, "-1.#IND": {}, "-1.#QNAN": {},
}

func isMissing(s string) bool {
	_, ok := missingTokens[s]
	return ok
}

// headerNames trims names, fills blanks and de-duplicates so that every
// column name is unique.
func headerNames(header []string) []string {
	out := make([]string, len(header))
	used := map[string]bool{}
	suffix := map[string]int{}
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if used[name] {
			base := name
			for used[name] {
				suffix[base]++
				name = fmt.Sprintf("%s.%d", base, suffix[base])
			}
		}
		used[name] = true
		out[i] = name
	}
	return out
}

func sniffDelimiter(path, text string) rune {
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		return '\t'
	}
	line := text
	if i := strings.IndexAny(text, "\r\n"); i >= 0 {
		line = text[:i]
	}
	best, bestN := ',', 0
	for _, d := range []rune{',', ';', '\t', '|'} {
		if n := strings.Count(line, string(d)); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}

// BaseName returns the file name without directory or extension.
func BaseName(path string) string {
	b := filepath.Base(path)
	return strings.TrimSuffix(b, filepath.Ext(b))
}
