// Package report 把回测结果渲染成 HTML 报告，必要时经无头浏览器截成 PNG。
package report

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"kosim/internal/ledger"
	"kosim/internal/metrics"
	"kosim/internal/portfolio"
)

const (
	colorBackground = "#060c1b"
	colorText       = "#eceff4"
	colorTextDim    = "#9ca3af"
	colorEquity     = "#3b82f6"
	colorDrawdown   = "#f87171"
	colorWin        = "#34d399"
	colorLoss       = "#f87171"

	chartWidthPx  = 1280
	chartHeightPx = 420
)

// Input 汇集一次回测的渲染素材。
type Input struct {
	Title   string
	Equity  []portfolio.EquityPoint
	Trades  []ledger.Trade
	Metrics metrics.Report
}

// BuildHTML 生成完整报告页面：资金曲线、回撤曲线与单笔盈亏。
func BuildHTML(in Input) ([]byte, error) {
	if len(in.Equity) == 0 {
		return nil, fmt.Errorf("equity 为空，无法生成报告")
	}
	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(equityChart(in), drawdownChart(in))
	if len(in.Trades) > 0 {
		page.AddCharts(tradePnLChart(in))
	}

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteHTML 落盘报告并返回文件路径。
func WriteHTML(dir string, in Input) (string, error) {
	html, err := BuildHTML(in)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	name := strings.ToLower(strings.ReplaceAll(in.Title, " ", "_"))
	if name == "" {
		name = "report"
	}
	path := filepath.Join(dir, name+".html")
	if err := os.WriteFile(path, html, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func chartInit(title, subtitle string) []charts.GlobalOpts {
	return []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", chartHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:         title,
			Subtitle:      subtitle,
			Left:          "left",
			Top:           "10",
			TitleStyle:    &opts.TextStyle{Color: colorText, FontSize: 18},
			SubtitleStyle: &opts.TextStyle{Color: colorTextDim},
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "category",
			AxisLabel: &opts.AxisLabel{Color: colorTextDim},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale:     opts.Bool(true),
			AxisLabel: &opts.AxisLabel{Color: colorTextDim},
		}),
	}
}

func equityAxis(equity []portfolio.EquityPoint) []string {
	xs := make([]string, 0, len(equity))
	for _, p := range equity {
		xs = append(xs, p.Date.Format("2006-01-02"))
	}
	return xs
}

func equityChart(in Input) components.Charter {
	line := charts.NewLine()
	subtitle := fmt.Sprintf("总收益 %.2f%%  年化 %.2f%%  Sharpe %.2f",
		in.Metrics.TotalReturn*100, in.Metrics.AnnualReturn*100, in.Metrics.Sharpe)
	line.SetGlobalOptions(chartInit(in.Title+" 资金曲线", subtitle)...)

	data := make([]opts.LineData, 0, len(in.Equity))
	for _, p := range in.Equity {
		data = append(data, opts.LineData{Value: p.Value})
	}
	line.SetXAxis(equityAxis(in.Equity)).
		AddSeries("Equity", data, charts.WithLineStyleOpts(opts.LineStyle{Color: colorEquity, Width: 2}))
	return line
}

func drawdownChart(in Input) components.Charter {
	line := charts.NewLine()
	subtitle := fmt.Sprintf("最大回撤 %.2f%%  回撤持续 %d 日",
		in.Metrics.MaxDrawdown*100, in.Metrics.DrawdownDays)
	line.SetGlobalOptions(chartInit(in.Title+" 回撤", subtitle)...)

	peak := in.Equity[0].Value
	data := make([]opts.LineData, 0, len(in.Equity))
	for _, p := range in.Equity {
		if p.Value > peak {
			peak = p.Value
		}
		dd := 0.0
		if peak > 0 {
			dd = (p.Value - peak) / peak
		}
		data = append(data, opts.LineData{Value: dd * 100})
	}
	line.SetXAxis(equityAxis(in.Equity)).
		AddSeries("Drawdown %", data, charts.WithLineStyleOpts(opts.LineStyle{Color: colorDrawdown, Width: 2}))
	return line
}

func tradePnLChart(in Input) components.Charter {
	bar := charts.NewBar()
	bar.SetGlobalOptions(chartInit(in.Title+" 单笔盈亏", fmt.Sprintf("共 %d 笔", len(in.Trades)))...)

	xs := make([]string, 0, len(in.Trades))
	data := make([]opts.BarData, 0, len(in.Trades))
	for i, tr := range in.Trades {
		xs = append(xs, fmt.Sprintf("#%d %s", i+1, tr.Code))
		color := colorWin
		if tr.NetPnL <= 0 {
			color = colorLoss
		}
		data = append(data, opts.BarData{
			Value:     tr.NetPnL,
			ItemStyle: &opts.ItemStyle{Color: color},
		})
	}
	bar.SetXAxis(xs).AddSeries("NetPnL", data)
	return bar
}

var (
	headlessOnce sync.Once
	headlessErr  error
)

// EnsureHeadlessAvailable 探测本机无头浏览器是否可用，进程内只测一次。
func EnsureHeadlessAvailable(ctx context.Context) error {
	headlessOnce.Do(func() {
		targetCtx := ctx
		if targetCtx == nil {
			targetCtx = context.Background()
		}
		parent, cancel := chromedp.NewContext(targetCtx)
		if cancel != nil {
			defer cancel()
		}
		headlessErr = chromedp.Run(parent)
	})
	return headlessErr
}

// RenderPNG 将报告页面截成 PNG。
func RenderPNG(ctx context.Context, in Input, timeout time.Duration) ([]byte, error) {
	if err := EnsureHeadlessAvailable(ctx); err != nil {
		return nil, err
	}
	html, err := BuildHTML(in)
	if err != nil {
		return nil, err
	}
	height := chartHeightPx * 3
	return renderHTMLToPNG(ctx, html, chartWidthPx, height, timeout)
}

func renderHTMLToPNG(ctx context.Context, html []byte, width, height int, timeout time.Duration) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	parent, cancel := chromedp.NewContext(ctx)
	defer cancel()

	timeoutCtx, cancelTimeout := context.WithTimeout(parent, timeout)
	defer cancelTimeout()

	dataURI := "data:text/html;base64," + base64.StdEncoding.EncodeToString(html)
	var screenshot []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(width), int64(height)),
		chromedp.Navigate(dataURI),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(1500 * time.Millisecond),
		chromedp.FullScreenshot(&screenshot, 0),
	}
	if err := chromedp.Run(timeoutCtx, tasks...); err != nil {
		return nil, err
	}
	return screenshot, nil
}
