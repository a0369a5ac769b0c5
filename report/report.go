// Package report renders selection histories, tuning traces and
// information-value tables.
package report

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/featurelab/hyperopt"
	"github.com/YuminosukeSato/featurelab/pkg/errors"
	"github.com/YuminosukeSato/featurelab/pkg/log"
	"github.com/YuminosukeSato/featurelab/preprocessing"
	"github.com/YuminosukeSato/featurelab/sklearn/model_selection"
)

// Size of every saved chart.
var (
	Width  = 6 * vg.Inch
	Height = 4 * vg.Inch
)

// SelectionPlot draws every candidate score per round as points and the
// accepted score per round as a line.
func SelectionPlot(res *model_selection.SelectionResult, metric string) (*plot.Plot, error) {
	if res == nil || len(res.History) == 0 {
		return nil, errors.NewValueError("SelectionPlot", "selection history is empty")
	}
	p := plot.New()
	p.Title.Text = "Greedy feature selection"
	p.X.Label.Text = "round"
	p.Y.Label.Text = metric

	var cands plotter.XYs
	for round, scores := range res.Rounds {
		for _, c := range scores {
			cands = append(cands, plotter.XY{X: float64(round + 1), Y: c.Score})
		}
	}
	best := make(plotter.XYs, len(res.History))
	for i, h := range res.History {
		best[i] = plotter.XY{X: float64(i + 1), Y: h.Score}
	}

	scatter, err := plotter.NewScatter(cands)
	if err != nil {
		return nil, errors.Wrap(err, "candidate scatter")
	}
	scatter.Color = plotutil.Color(1)
	line, points, err := plotter.NewLinePoints(best)
	if err != nil {
		return nil, errors.Wrap(err, "history line")
	}
	line.Color = plotutil.Color(0)
	line.Width = vg.Points(2)
	points.Shape = plotutil.Shape(0)

	p.Add(scatter, line, points)
	p.Legend.Add("candidates", scatter)
	p.Legend.Add("selected", line, points)
	return p, nil
}

// TuningPlot draws the loss of every trial and the running best.
func TuningPlot(res *hyperopt.TuningResult) (*plot.Plot, error) {
	if res == nil || len(res.Trials) == 0 {
		return nil, errors.NewValueError("TuningPlot", "no trials")
	}
	p := plot.New()
	p.Title.Text = "Hyperparameter search"
	p.X.Label.Text = "trial"
	p.Y.Label.Text = "loss"

	trials := make(plotter.XYs, len(res.Trials))
	running := make(plotter.XYs, len(res.Trials))
	best := math.Inf(1)
	for i, tr := range res.Trials {
		best = math.Min(best, tr.Loss)
		trials[i] = plotter.XY{X: float64(tr.Number), Y: tr.Loss}
		running[i] = plotter.XY{X: float64(tr.Number), Y: best}
	}

	scatter, err := plotter.NewScatter(trials)
	if err != nil {
		return nil, errors.Wrap(err, "trial scatter")
	}
	scatter.Color = plotutil.Color(1)
	line, err := plotter.NewLine(running)
	if err != nil {
		return nil, errors.Wrap(err, "best line")
	}
	line.Color = plotutil.Color(0)
	line.Width = vg.Points(2)

	p.Add(scatter, line)
	p.Legend.Add("trial", scatter)
	p.Legend.Add("best so far", line)
	return p, nil
}

// IVPlot draws a bar per feature in report order.
func IVPlot(report preprocessing.IVReport) (*plot.Plot, error) {
	if len(report) == 0 {
		return nil, errors.NewValueError("IVPlot", "empty report")
	}
	p := plot.New()
	p.Title.Text = "Information value"
	p.Y.Label.Text = "IV"

	values := make(plotter.Values, len(report))
	names := make([]string, len(report))
	for i, e := range report {
		values[i] = e.IV
		names[i] = e.Feature
	}
	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return nil, errors.Wrap(err, "bar chart")
	}
	bars.Color = plotutil.Color(2)
	p.Add(bars)
	p.NominalX(names...)
	return p, nil
}

// Save writes p to path. The format follows the extension (.png, .svg,
// .pdf ...).
func Save(p *plot.Plot, path string) error {
	if err := p.Save(Width, Height, path); err != nil {
		return errors.Wrapf(err, "save plot %s", path)
	}
	log.GetLoggerWithName("report").Info("plot saved", log.PathKey, path)
	return nil
}

// WriteIVTable writes report as an aligned text table with a strength
// band per feature.
func WriteIVTable(w io.Writer, report preprocessing.IVReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "feature\tIV\tstrength")
	for _, e := range report {
		fmt.Fprintf(tw, "%s\t%.6f\t%s\n", e.Feature, e.IV, Strength(e.IV))
	}
	return tw.Flush()
}

// Strength maps an information value to the usual predictive-power band.
func Strength(iv float64) string {
	switch {
	case iv < 0.02:
		return "useless"
	case iv < 0.1:
		return "weak"
	case iv < 0.3:
		return "medium"
	case iv < 0.5:
		return "strong"
	}
	return "suspicious"
}

// WriteSelectionTable writes one line per round with the accepted feature
// name and score.
func WriteSelectionTable(w io.Writer, res *model_selection.SelectionResult, names []string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "round\tfeature\tscore\tkept")
	kept := make(map[int]bool, len(res.Selected))
	for _, f := range res.Selected {
		kept[f] = true
	}
	for i, h := range res.History {
		name := fmt.Sprint(h.Feature)
		if h.Feature < len(names) {
			name = names[h.Feature]
		}
		fmt.Fprintf(tw, "%d\t%s\t%.6f\t%t\n", i+1, name, h.Score, kept[h.Feature])
	}
	return tw.Flush()
}
