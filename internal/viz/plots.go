package viz

import (
	"errors"
	"fmt"
	"image/color"
	"math"

	"github.com/KaramelBytes/autolysis/internal/analysis"
	"github.com/KaramelBytes/autolysis/internal/dataset"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
)

// minNormal is the smallest positive normal float64. Bin widths below it
// overflow the density and stall the rasterizer.
const minNormal = 0x1p-1022

var errTinyRange = errors.New("value range too small to bin")

var (
	histFill = color.RGBA{R: 76, G: 114, B: 176, A: 170}
	kdeLine  = color.RGBA{R: 196, G: 78, B: 82, A: 255}
	nanCell  = color.Gray{Y: 200}
)

// corrGrid adapts a correlation matrix to plotter.GridXYZ. Row 0 of the
// matrix is drawn at the top.
type corrGrid struct{ m *analysis.CorrMatrix }

func (g corrGrid) Dims() (c, r int) { n := len(g.m.Columns); return n, n }
func (g corrGrid) Z(c, r int) float64 {
	return g.m.Values[len(g.m.Columns)-1-r][c]
}
func (g corrGrid) X(c int) float64 { return float64(c) }
func (g corrGrid) Y(r int) float64 { return float64(r) }
func (g corrGrid) Min() float64    { return -1 }
func (g corrGrid) Max() float64    { return 1 }

func (v *Visualizer) heatmap(m *analysis.CorrMatrix, path string) error {
	if m == nil || len(m.Columns) == 0 {
		return errors.New("no correlation matrix")
	}
	grid := corrGrid{m: m}
	n := len(m.Columns)

	cm := moreland.SmoothBlueRed()
	cm.SetMax(1)
	cm.SetMin(-1)
	hm := plotter.NewHeatMap(grid, cm.Palette(255))
	hm.NaN = nanCell

	xys := make(plotter.XYs, 0, n*n)
	labels := make([]string, 0, n*n)
	for c := 0; c < n; c++ {
		for r := 0; r < n; r++ {
			z := grid.Z(c, r)
			if math.IsNaN(z) {
				continue
			}
			xys = append(xys, plotter.XY{X: grid.X(c), Y: grid.Y(r)})
			labels = append(labels, fmt.Sprintf("%.2f", z))
		}
	}

	p := plot.New()
	p.Title.Text = "Correlation Heatmap"
	p.Add(hm)
	if len(xys) > 0 {
		annot, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: labels})
		if err != nil {
			return fmt.Errorf("annotate heatmap: %w", err)
		}
		for i := range annot.TextStyle {
			annot.TextStyle[i].XAlign = text.XCenter
			annot.TextStyle[i].YAlign = text.YCenter
		}
		p.Add(annot)
	}

	xt := make([]plot.Tick, n)
	yt := make([]plot.Tick, n)
	for i, name := range m.Columns {
		xt[i] = plot.Tick{Value: float64(i), Label: name}
		yt[i] = plot.Tick{Value: float64(n - 1 - i), Label: name}
	}
	p.X.Tick.Marker = plot.ConstantTicks(xt)
	p.Y.Tick.Marker = plot.ConstantTicks(yt)
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = text.XRight
	return v.save(p, path)
}

func (v *Visualizer) histogram(c *dataset.Column, path string) error {
	vals := c.Present()
	if len(vals) == 0 {
		return errors.New("no values to plot")
	}
	for _, x := range vals {
		if math.IsInf(x, 0) || math.IsNaN(x) {
			return errors.New("column has non-finite values")
		}
	}
	bins := v.opt.Bins
	if bins <= 0 {
		bins = sturges(len(vals))
	}
	lo, hi := floats.Min(vals), floats.Max(vals)
	if w := (hi - lo) / float64(bins); w != 0 && w < minNormal {
		return errTinyRange
	}
	h, err := plotter.NewHist(plotter.Values(vals), bins)
	if err != nil {
		return fmt.Errorf("histogram: %w", err)
	}
	h.Normalize(1)
	for _, b := range h.Bins {
		if math.IsInf(b.Weight, 0) || math.IsNaN(b.Weight) {
			return errTinyRange
		}
	}
	h.FillColor = histFill

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Distribution of %s", c.Name)
	p.X.Label.Text = c.Name
	p.Y.Label.Text = "Density"
	p.Add(h)
	if f := gaussianKDE(vals); f != nil {
		line := plotter.NewFunction(f)
		line.Samples = 200
		line.Color = kdeLine
		line.Width = vg.Points(2)
		p.Add(line)
	}
	return v.save(p, path)
}

// sturges returns ceil(log2(n)) + 1 bins.
func sturges(n int) int {
	if n < 2 {
		return 1
	}
	return int(math.Ceil(math.Log2(float64(n)))) + 1
}

// gaussianKDE returns a kernel density estimate using Scott's bandwidth, or
// nil when the sample has no spread.
func gaussianKDE(vals []float64) func(float64) float64 {
	if len(vals) < 2 {
		return nil
	}
	sd := stat.StdDev(vals, nil)
	if sd == 0 || math.IsNaN(sd) || math.IsInf(sd, 0) {
		return nil
	}
	n := float64(len(vals))
	bw := sd * math.Pow(n, -0.2)
	kernels := make([]distuv.Normal, len(vals))
	for i, x := range vals {
		kernels[i] = distuv.Normal{Mu: x, Sigma: bw}
	}
	return func(x float64) float64 {
		var sum float64
		for _, k := range kernels {
			sum += k.Prob(x)
		}
		return sum / n
	}
}
