package main

import (
	"fmt"
	"os"
	"strings"
)

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// Self-contained HTML reports for a fine-tuning run: loss curves per epoch,
// validation metrics, and a word-count histogram of the prepared dataset.
//
// Plain HTML with a small canvas script, no external assets, so a report can
// be opened from any browser and archived alongside the checkpoint it
// describes.
//
// ===========================================================================

// SaveTrainingReport writes an HTML report of a completed run to path.
func SaveTrainingReport(path string, result *TrainResult, wordCounts []int) error {
	if len(result.Epochs) == 0 {
		return fmt.Errorf("report: no epochs to report")
	}

	trainLosses := make([]float64, len(result.Epochs))
	valLosses := make([]float64, len(result.Epochs))
	accuracies := make([]float64, len(result.Epochs))
	for i, ep := range result.Epochs {
		trainLosses[i] = ep.TrainLoss
		valLosses[i] = ep.ValLoss
		accuracies[i] = ep.Metrics.Accuracy
	}

	last := result.Epochs[len(result.Epochs)-1]
	stopNote := "completed all epochs"
	if result.StoppedEarly {
		stopNote = "stopped early"
	}

	html := fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>Sentiment Fine-Tuning Report</title>
<style>
  body { font-family: -apple-system, 'Segoe UI', sans-serif; background: #0d1117; color: #c9d1d9; padding: 24px; }
  .container { max-width: 1000px; margin: 0 auto; }
  h1 { font-size: 26px; margin-bottom: 6px; }
  .subtitle { color: #8b949e; margin-bottom: 24px; }
  .stats { display: grid; grid-template-columns: repeat(auto-fit, minmax(180px, 1fr)); gap: 12px; margin-bottom: 28px; }
  .stat { background: #161b22; border: 1px solid #30363d; border-radius: 8px; padding: 14px; }
  .stat .value { font-size: 22px; color: #58a6ff; }
  .stat .label { font-size: 12px; color: #8b949e; text-transform: uppercase; }
  .chart { background: #161b22; border: 1px solid #30363d; border-radius: 8px; padding: 16px; margin-bottom: 24px; }
  canvas { width: 100%%; height: 260px; }
</style>
</head>
<body>
<div class="container">
  <h1>Sentiment Fine-Tuning Report</h1>
  <div class="subtitle">%d epochs, %s; best validation loss %.4f at epoch %d</div>
  <div class="stats">
    <div class="stat"><div class="value">%.4f</div><div class="label">Final val loss</div></div>
    <div class="stat"><div class="value">%.4f</div><div class="label">Final val accuracy</div></div>
    <div class="stat"><div class="value">%.4f</div><div class="label">Final val F1</div></div>
    <div class="stat"><div class="value">%d</div><div class="label">Best epoch</div></div>
  </div>
  <div class="chart"><h3>Loss per epoch</h3><canvas id="loss"></canvas></div>
  <div class="chart"><h3>Validation accuracy</h3><canvas id="acc"></canvas></div>
  %s
</div>
<script>
const trainLoss = %s;
const valLoss = %s;
const accuracy = %s;
const wordCounts = %s;

function drawLines(id, series, colors) {
  const canvas = document.getElementById(id);
  if (!canvas) return;
  canvas.width = canvas.offsetWidth; canvas.height = 260;
  const ctx = canvas.getContext('2d');
  const all = series.flat();
  const min = Math.min(...all), max = Math.max(...all);
  const pad = 30, w = canvas.width - 2*pad, h = canvas.height - 2*pad;
  const span = (max - min) || 1;
  series.forEach((data, s) => {
    ctx.strokeStyle = colors[s]; ctx.lineWidth = 2; ctx.beginPath();
    data.forEach((v, i) => {
      const x = pad + (data.length === 1 ? w/2 : w * i / (data.length - 1));
      const y = pad + h - h * (v - min) / span;
      i === 0 ? ctx.moveTo(x, y) : ctx.lineTo(x, y);
    });
    ctx.stroke();
  });
}

function drawHistogram(id, counts) {
  const canvas = document.getElementById(id);
  if (!canvas || counts.length === 0) return;
  canvas.width = canvas.offsetWidth; canvas.height = 260;
  const ctx = canvas.getContext('2d');
  const bins = new Array(15).fill(0);
  const max = Math.max(...counts);
  counts.forEach(c => bins[Math.min(14, Math.floor(c / (max + 1) * 15))]++);
  const binMax = Math.max(...bins);
  const pad = 30, w = canvas.width - 2*pad, h = canvas.height - 2*pad;
  const bw = w / bins.length;
  ctx.fillStyle = '#58a6ff';
  bins.forEach((b, i) => {
    const bh = h * b / binMax;
    ctx.fillRect(pad + i*bw + 2, pad + h - bh, bw - 4, bh);
  });
}

window.onload = () => {
  drawLines('loss', [trainLoss, valLoss], ['#58a6ff', '#f85149']);
  drawLines('acc', [accuracy], ['#3fb950']);
  drawHistogram('hist', wordCounts);
};
</script>
</body>
</html>
`,
		len(result.Epochs), stopNote, result.BestValLoss, result.BestEpoch,
		last.ValLoss, last.Metrics.Accuracy, last.Metrics.F1, result.BestEpoch,
		histogramSection(wordCounts),
		formatJSFloats(trainLosses), formatJSFloats(valLosses),
		formatJSFloats(accuracies), formatJSInts(wordCounts))

	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		return fmt.Errorf("report: writing %s: %w", path, err)
	}
	return nil
}

func histogramSection(wordCounts []int) string {
	if len(wordCounts) == 0 {
		return ""
	}
	return `<div class="chart"><h3>Review length distribution (words)</h3><canvas id="hist"></canvas></div>`
}

func formatJSFloats(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%.6f", v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func formatJSInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
