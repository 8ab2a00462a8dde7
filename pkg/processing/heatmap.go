package processing

import (
	"fmt"
	"image/color"
	"os"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/menta2k/corner-detector/pkg/response"
	"github.com/menta2k/corner-detector/pkg/types"
)

// scoreGrid adapts a score matrix to plotter.GridXYZ. Rows are flipped so
// row 0 is drawn at the top, as in the source image.
type scoreGrid struct {
	data *mat.Dense
}

func (g scoreGrid) Dims() (c, r int)   { r, c = g.data.Dims(); return c, r }
func (g scoreGrid) X(c int) float64    { return float64(c) }
func (g scoreGrid) Y(r int) float64    { return float64(r) }
func (g scoreGrid) Z(c, r int) float64 { rows, _ := g.data.Dims(); return g.data.At(rows-1-r, c) }

// WriteHeatmap renders the score map as a PNG heatmap with the detected
// corners marked on top.
func (p *Processor) WriteHeatmap(scores *response.ScoreMap, corners types.CornerSet, title, path string) error {
	data := scores.Dense()
	if data == nil {
		return fmt.Errorf("heatmap: empty score map")
	}
	if mat.Min(data) >= mat.Max(data) {
		return fmt.Errorf("heatmap: flat score map (all %g)", mat.Min(data))
	}

	pal := palette.Heat(32, 1)
	hm := plotter.NewHeatMap(scoreGrid{data: data}, pal)

	pl := plot.New()
	pl.Title.Text = title
	pl.X.Label.Text = "col"
	pl.Y.Label.Text = "row (flipped)"
	pl.X.Padding = 0
	pl.Y.Padding = 0
	pl.Add(hm)

	rows, cols := data.Dims()
	if len(corners) > 0 {
		pts := make(plotter.XYs, len(corners))
		for i, c := range corners {
			pts[i].X = float64(c.Col)
			pts[i].Y = float64(rows - 1 - c.Row)
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return fmt.Errorf("heatmap: corner layer: %w", err)
		}
		sc.GlyphStyle.Color = color.RGBA{0, 200, 255, 255}
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		sc.GlyphStyle.Radius = vg.Points(3)
		pl.Add(sc)
	}
	pl.X.Min, pl.X.Max = -0.5, float64(cols)-0.5
	pl.Y.Min, pl.Y.Max = -0.5, float64(rows)-0.5

	legend := plot.NewLegend()
	thumbs := plotter.PaletteThumbnailers(pal)
	for i := len(thumbs) - 1; i >= 0; i-- {
		switch i {
		case 0:
			legend.Add(fmt.Sprintf("%.2g", hm.Min), thumbs[i])
		case len(thumbs) - 1:
			legend.Add(fmt.Sprintf("%.2g", hm.Max), thumbs[i])
		default:
			legend.Add("", thumbs[i])
		}
	}
	legend.Top = true

	img := vgimg.New(720, 480)
	dc := draw.New(img)
	r := legend.Rectangle(dc)
	legendWidth := r.Max.X - r.Min.X
	legend.Draw(dc)
	dc = draw.Crop(dc, 0, -legendWidth-vg.Millimeter, 0, 0)
	pl.Draw(dc)

	w, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("heatmap: %w", err)
	}
	defer w.Close()

	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(w); err != nil {
		return fmt.Errorf("heatmap: write %s: %w", path, err)
	}
	return nil
}
