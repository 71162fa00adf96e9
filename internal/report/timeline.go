package report

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// TimelineChart plots the tracker state per frame as a step line on a
// categorical axis, with confirm and miss counters beneath it.
func TimelineChart(samples []Sample, title string) *charts.Line {
	x := make([]string, 0, len(samples))
	states := make([]opts.LineData, 0, len(samples))
	confirm := make([]opts.LineData, 0, len(samples))
	miss := make([]opts.LineData, 0, len(samples))
	for _, s := range samples {
		x = append(x, strconv.FormatUint(s.Frame, 10))
		states = append(states, opts.LineData{Value: stateIndex(s.State), Name: s.State})
		confirm = append(confirm, opts.LineData{Value: s.Confirm})
		miss = append(miss, opts.LineData{Value: s.Miss})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("frames=%d", len(samples))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: stateOrder}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	line.ExtendYAxis(opts.YAxis{Type: "value", Name: "count", Position: "right"})
	line.SetXAxis(x).
		AddSeries("state", states, charts.WithLineChartOpts(opts.LineChart{Step: "end", ShowSymbol: opts.Bool(false)})).
		AddSeries("confirm", confirm, charts.WithLineChartOpts(opts.LineChart{YAxisIndex: 1, ShowSymbol: opts.Bool(false)})).
		AddSeries("miss", miss, charts.WithLineChartOpts(opts.LineChart{YAxisIndex: 1, ShowSymbol: opts.Bool(false)}))
	return line
}

// StateBarChart shows how many frames were spent in each state.
func StateBarChart(sum Summary) *charts.Bar {
	y := make([]opts.BarData, 0, len(stateOrder))
	for _, s := range stateOrder {
		y = append(y, opts.BarData{Value: sum.StateFrames[s]})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Frames per state",
			Subtitle: fmt.Sprintf("matched=%d episodes=%d mean residual=%.2fpx", sum.Matched, sum.Episodes, sum.MeanResidual),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(stateOrder).
		AddSeries("frames", y, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))
	return bar
}

// WriteTimelineHTML renders the timeline and state bar chart as one page.
func WriteTimelineHTML(w io.Writer, samples []Sample, title string) error {
	if len(samples) == 0 {
		return ErrNoSamples
	}
	page := components.NewPage()
	page.SetPageTitle(title)
	page.AddCharts(TimelineChart(samples, title), StateBarChart(Summarise(samples)))
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render timeline: %w", err)
	}
	return nil
}

// WriteTimelineFile is WriteTimelineHTML to a file at path.
func WriteTimelineFile(path string, samples []Sample, title string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteTimelineHTML(f, samples, title); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// SortedStates returns the state names present in sum in display order,
// followed by any unknown names alphabetically.
func SortedStates(sum Summary) []string {
	var out, extra []string
	known := make(map[string]bool, len(stateOrder))
	for _, s := range stateOrder {
		known[s] = true
		if sum.StateFrames[s] > 0 {
			out = append(out, s)
		}
	}
	for s := range sum.StateFrames {
		if !known[s] {
			extra = append(extra, s)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}
