package agent

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// DefaultMovingAverageWindow is the smoothing window of the report's trend line.
const DefaultMovingAverageWindow = 20

// WriteReport renders an HTML page with the episode rewards of a training run,
// their moving average and, when eval is non-nil, the evaluation rewards.
func WriteReport(w io.Writer, stats TrainingStats, eval *EvaluationResult) error {
	page := components.NewPage()
	page.PageTitle = "Route policy training"
	page.AddCharts(trainingChart(stats))
	if eval != nil && eval.Episodes > 0 {
		page.AddCharts(evaluationChart(*eval))
	}
	if err := page.Render(w); err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}
	return nil
}

func trainingChart(stats TrainingStats) *charts.Line {
	rewards := stats.Rewards()

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Episode reward",
			Subtitle: fmt.Sprintf("%d timesteps, %d episodes, %d without data", stats.Timesteps, len(stats.Episodes), stats.AbsentEpisodes),
		}),
		charts.WithInitializationOpts(opts.Initialization{
			Theme: "shine",
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "episode"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "reward"}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
	)

	line.SetXAxis(episodeLabels(len(rewards))).
		AddSeries("reward", lineData(rewards)).
		AddSeries(fmt.Sprintf("moving average (%d)", DefaultMovingAverageWindow),
			lineData(MovingAverage(rewards, DefaultMovingAverageWindow)))

	return line
}

func evaluationChart(eval EvaluationResult) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Evaluation reward",
			Subtitle: fmt.Sprintf("mean %.2f over %d episodes", eval.MeanReward(), eval.Episodes),
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "episode"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "reward"}),
	)
	line.SetXAxis(episodeLabels(len(eval.Rewards))).
		AddSeries("greedy", lineData(eval.Rewards))
	return line
}

func episodeLabels(n int) []string {
	labels := make([]string, n)
	for i := range labels {
		labels[i] = strconv.Itoa(i + 1)
	}
	return labels
}

func lineData(values []float64) []opts.LineData {
	items := make([]opts.LineData, 0, len(values))
	for _, v := range values {
		items = append(items, opts.LineData{Value: v})
	}
	return items
}

// MovingAverage returns the trailing mean over window values at each position.
func MovingAverage(values []float64, window int) []float64 {
	if window < 1 {
		window = 1
	}
	out := make([]float64, len(values))
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		n := i + 1
		if n > window {
			n = window
		}
		out[i] = sum / float64(n)
	}
	return out
}
