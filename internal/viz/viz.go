// Package viz renders the correlation heatmap and per-column histograms for a
// dataset. Every plot is attempted independently: a failing plot is reported
// as skipped and never stops the others.
package viz

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/autolysis/internal/analysis"
	"github.com/KaramelBytes/autolysis/internal/dataset"
	"github.com/rs/zerolog"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
)

// ArtifactKind identifies what an image shows.
type ArtifactKind string

const (
	KindHeatmap   ArtifactKind = "heatmap"
	KindHistogram ArtifactKind = "histogram"
)

// Artifact references a rendered image.
type Artifact struct {
	Path   string
	Kind   ArtifactKind
	Column string // source column for histograms
}

// Result is the outcome of one plot attempt: either an artifact or the
// reason it was skipped.
type Result struct {
	Artifact Artifact
	Skipped  string
}

// OK reports whether the attempt produced an image.
func (r Result) OK() bool { return r.Skipped == "" }

// Options controls image output.
type Options struct {
	// Format is the image extension: png, svg, pdf, jpg, tif or eps.
	Format string
	Width  vg.Length
	Height vg.Length
	// Bins for histograms; 0 picks Sturges' rule.
	Bins int
}

// DefaultOptions returns 8x6 inch PNG output with automatic bins.
func DefaultOptions() Options {
	return Options{Format: "png", Width: 8 * vg.Inch, Height: 6 * vg.Inch}
}

var formats = map[string]bool{
	"png": true, "svg": true, "pdf": true, "jpg": true, "jpeg": true, "tif": true, "tiff": true, "eps": true,
}

// ValidFormat reports whether ext can be rendered.
func ValidFormat(ext string) bool { return formats[strings.ToLower(ext)] }

// Visualizer writes plot images for a table.
type Visualizer struct {
	opt Options
	log zerolog.Logger
}

// New builds a Visualizer.
func New(opt Options, log zerolog.Logger) (*Visualizer, error) {
	d := DefaultOptions()
	if opt.Format == "" {
		opt.Format = d.Format
	}
	opt.Format = strings.ToLower(opt.Format)
	if !ValidFormat(opt.Format) {
		return nil, fmt.Errorf("unsupported image format %q", opt.Format)
	}
	if opt.Width <= 0 {
		opt.Width = d.Width
	}
	if opt.Height <= 0 {
		opt.Height = d.Height
	}
	if opt.Bins < 0 {
		opt.Bins = 0
	}
	return &Visualizer{opt: opt, log: log.With().Str("component", "visualizer").Logger()}, nil
}

// Visualize renders every plot and returns the artifacts that succeeded, in
// generation order (heatmap first, then histograms in column order).
func (v *Visualizer) Visualize(ctx context.Context, t *dataset.Table, outDir, prefix string) []Artifact {
	var out []Artifact
	for _, r := range v.Attempts(ctx, t, outDir, prefix) {
		if r.OK() {
			out = append(out, r.Artifact)
			continue
		}
		v.log.Warn().
			Str("kind", string(r.Artifact.Kind)).
			Str("column", r.Artifact.Column).
			Str("reason", r.Skipped).
			Msg("plot skipped")
	}
	return out
}

// Attempts renders every plot and returns one Result per attempt.
func (v *Visualizer) Attempts(ctx context.Context, t *dataset.Table, outDir, prefix string) []Result {
	numeric := t.NumericColumns()
	if len(numeric) == 0 {
		v.log.Info().Str("path", t.Path).Msg("no numeric columns; skipping heatmap and histograms")
		return nil
	}
	results := make([]Result, 0, len(numeric)+1)

	heatPath := filepath.Join(outDir, fmt.Sprintf("%s_heatmap.%s", prefix, v.opt.Format))
	results = append(results, v.attempt(ctx, Artifact{Path: heatPath, Kind: KindHeatmap}, func() error {
		return v.heatmap(analysis.Correlate(t), heatPath)
	}))

	for _, c := range numeric {
		name := fmt.Sprintf("%s_%s_hist.%s", prefix, fileSafe(c.Name), v.opt.Format)
		a := Artifact{Path: filepath.Join(outDir, name), Kind: KindHistogram, Column: c.Name}
		results = append(results, v.attempt(ctx, a, func() error {
			return v.histogram(c, a.Path)
		}))
	}
	return results
}

func (v *Visualizer) attempt(ctx context.Context, a Artifact, render func() error) (res Result) {
	if err := ctx.Err(); err != nil {
		return Result{Artifact: a, Skipped: err.Error()}
	}
	defer func() {
		if r := recover(); r != nil {
			_ = os.Remove(a.Path)
			res = Result{Artifact: a, Skipped: fmt.Sprintf("render panic: %v", r)}
		}
	}()
	if err := render(); err != nil {
		return Result{Artifact: a, Skipped: err.Error()}
	}
	v.log.Debug().Str("kind", string(a.Kind)).Str("path", a.Path).Msg("plot written")
	return Result{Artifact: a}
}

// save renders p and writes it to path, removing a partial file on failure.
func (v *Visualizer) save(p *plot.Plot, path string) (err error) {
	wt, err := p.WriterTo(v.opt.Width, v.opt.Height, v.opt.Format)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create image: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close image: %w", cerr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()
	if _, err = wt.WriteTo(f); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	return nil
}

func fileSafe(name string) string {
	return strings.NewReplacer("/", "_", "\\", "_").Replace(name)
}
