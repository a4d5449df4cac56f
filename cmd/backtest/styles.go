package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	engine "github.com/rxtech-lab/inkback/internal/backtest/engine/engine_v1"
	"github.com/rxtech-lab/inkback/internal/types"
)

// Style definitions.
var (
	TitleStyle = lipgloss.NewStyle().Bold(true)

	HeaderStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)

	CellStyle = lipgloss.NewStyle().Padding(0, 1)

	// BenchmarkStyle marks the buy and hold row.
	BenchmarkStyle = lipgloss.NewStyle().Faint(true).Padding(0, 1)

	ErrorStyle = lipgloss.NewStyle().Bold(true)
)

var reportHeaders = []string{"#", "Run", "Return %", "Max DD %", "Win Rate", "Profit Factor", "Trades", "Costs"}

func resultRow(rank string, result types.BacktestResult) []string {
	return []string{
		rank,
		result.Label,
		fmt.Sprintf("%.2f", result.TotalReturnPercent),
		fmt.Sprintf("%.2f", result.MaxDrawdownPercent),
		fmt.Sprintf("%.1f%%", result.WinRate*100),
		fmt.Sprintf("%.2f", result.ProfitFactor),
		fmt.Sprintf("%d", result.TotalTrades),
		fmt.Sprintf("%.2f", result.TotalTransactionCosts),
	}
}

// renderReport draws the top ranked runs of a sweep followed by the
// benchmark and a one line summary.
func renderReport(report engine.SweepReport, top int) string {
	rows := make([][]string, 0, top+1)

	for i, result := range report.Results {
		if top > 0 && i >= top {
			break
		}

		rows = append(rows, resultRow(fmt.Sprintf("%d", i+1), result))
	}

	benchmarkRow := -1
	if report.Benchmark != nil {
		benchmarkRow = len(rows)
		rows = append(rows, resultRow("-", *report.Benchmark))
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(reportHeaders...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return HeaderStyle
			case row == benchmarkRow:
				return BenchmarkStyle
			default:
				return CellStyle
			}
		})

	summary := report.Summary
	footer := fmt.Sprintf("%d runs, %d failed, %d profitable, %d beat the benchmark, average return %.2f%%",
		summary.Runs, summary.Failed, summary.Profitable, summary.BeatBenchmark, summary.AverageReturnPercent)

	return lipgloss.JoinVertical(lipgloss.Left,
		TitleStyle.Render(report.Strategy),
		t.String(),
		footer,
	)
}

func renderFailures(report engine.SweepReport) string {
	if len(report.Failures) == 0 {
		return ""
	}

	lines := make([]string, 0, len(report.Failures)+1)
	lines = append(lines, ErrorStyle.Render(fmt.Sprintf("%d failed runs", len(report.Failures))))

	for _, failure := range report.Failures {
		lines = append(lines, fmt.Sprintf("  %s [%d] %s", failure.Label, failure.Code, failure.Message))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
