// Package pipeline runs the analysis stages in order for one dataset:
// load, summarize, visualize, narrate and report.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/KaramelBytes/autolysis/internal/ai"
	"github.com/KaramelBytes/autolysis/internal/analysis"
	"github.com/KaramelBytes/autolysis/internal/config"
	"github.com/KaramelBytes/autolysis/internal/dataset"
	"github.com/KaramelBytes/autolysis/internal/narrative"
	"github.com/KaramelBytes/autolysis/internal/report"
	"github.com/KaramelBytes/autolysis/internal/utils"
	"github.com/KaramelBytes/autolysis/internal/viz"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gonum.org/v1/plot/vg"
)

// Result describes what a run produced.
type Result struct {
	RunID      string
	ReportPath string
	Artifacts  []viz.Artifact
	Narrative  narrative.Narrative
	Summary    *analysis.Summary
	// ReportErr is set when README.md could not be written. It does not fail the run.
	ReportErr error
}

// Pipeline wires the stages from a validated configuration.
type Pipeline struct {
	cfg *config.Global
	rt  ai.Runtime
	log zerolog.Logger
}

// stages holds the per-run stage instances; they share the run logger.
type stages struct {
	loader   *dataset.Loader
	viz      *viz.Visualizer
	narrator *narrative.Narrator
}

// New builds a Pipeline. rt may be nil, which disables narration; when
// cfg.Narrate is false rt is ignored. Stage options are checked here so a
// bad configuration fails before any run.
func New(cfg *config.Global, rt ai.Runtime, log zerolog.Logger) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	if !cfg.Narrate {
		rt = nil
	}
	p := &Pipeline{cfg: cfg, rt: rt, log: log}
	if _, err := p.stages(zerolog.Nop()); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pipeline) stages(log zerolog.Logger) (*stages, error) {
	loader, err := dataset.NewLoader(dataset.Options{
		Encodings: p.cfg.Encodings,
		Delimiter: p.cfg.DelimiterRune(),
	}, log)
	if err != nil {
		return nil, err
	}
	v, err := viz.New(viz.Options{
		Format: p.cfg.ImageFormat,
		Width:  vg.Length(p.cfg.ImageWidthIn) * vg.Inch,
		Height: vg.Length(p.cfg.ImageHeightIn) * vg.Inch,
		Bins:   p.cfg.HistogramBins,
	}, log)
	if err != nil {
		return nil, err
	}
	n := narrative.New(p.rt, narrative.Config{
		Model:           p.cfg.Model,
		Temperature:     p.cfg.Temperature,
		MaxPromptTokens: p.cfg.MaxPromptTokens,
	}, log)
	return &stages{loader: loader, viz: v, narrator: n}, nil
}

// Run analyzes datasetPath and writes images and README.md into outDir.
// Only a missing output directory, an unloadable dataset or a failed
// summary abort the run.
func (p *Pipeline) Run(ctx context.Context, datasetPath, outDir string) (*Result, error) {
	res := &Result{RunID: uuid.NewString()}
	log := p.log.With().Str("run_id", res.RunID).Logger()
	start := time.Now()
	log.Info().Str("dataset", datasetPath).Str("out_dir", outDir).Msg("analysis started")
	st, err := p.stages(log)
	if err != nil {
		return nil, err
	}

	if err := utils.EnsureDir(outDir); err != nil {
		return nil, err
	}

	table, err := st.loader.Load(datasetPath)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("encoding", table.Encoding).
		Int("rows", table.Rows).
		Int("cols", len(table.Columns)).
		Int("warnings", len(table.Warnings)).
		Msg("dataset loaded")

	summary, err := analysis.Summarize(table)
	if err != nil {
		return nil, err
	}
	res.Summary = summary

	res.Artifacts = st.viz.Visualize(ctx, table, outDir, Prefix(datasetPath))
	log.Info().Int("artifacts", len(res.Artifacts)).Msg("visualizations rendered")

	res.Narrative = st.narrator.Narrate(ctx, summary, datasetPath)
	if !res.Narrative.Available {
		log.Warn().Str("reason", res.Narrative.Reason).Msg("narrative unavailable")
	}

	path, err := report.Build(res.Narrative, res.Artifacts).Write(outDir)
	if err != nil {
		res.ReportErr = err
		log.Error().Err(err).Msg("report not written")
	} else {
		res.ReportPath = path
	}
	log.Info().Dur("elapsed", time.Since(start)).Msg("analysis finished")
	return res, nil
}

// Prefix is the dataset base name without its extension; it names every
// image written for the dataset.
func Prefix(datasetPath string) string {
	if p := dataset.BaseName(datasetPath); p != "" {
		return p
	}
	return "dataset"
}
