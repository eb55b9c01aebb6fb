package report

import (
	"os"

	"maestro/internal/signal"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const (
	chartWidth  = "720px"
	chartHeight = "420px"

	colorBuy  = "#26a69a"
	colorSell = "#ef5350"
	colorHold = "#9e9e9e"
)

// writeChart renders the action-distribution bar chart to an HTML file.
func writeChart(path string, s Summary) error {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Width:  chartWidth,
			Height: chartHeight,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Decision distribution " + s.Date,
			Subtitle: "cycles per action over the trailing 24h",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "cycles"}),
	)

	data := []opts.BarData{
		{Value: s.Actions[signal.ActionBuy], ItemStyle: &opts.ItemStyle{Color: colorBuy}},
		{Value: s.Actions[signal.ActionSell], ItemStyle: &opts.ItemStyle{Color: colorSell}},
		{Value: s.Actions[signal.ActionHold], ItemStyle: &opts.ItemStyle{Color: colorHold}},
	}
	bar.SetXAxis([]string{"BUY", "SELL", "HOLD"})
	bar.AddSeries("Decisions", data)

	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(bar)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return page.Render(f)
}
