package report

import (
	"fmt"
	"html/template"
	"os"
	"strings"

	"loadpulse/internal/metrics"
)

// Presentation bands. These cutoffs are fixed cosmetics for the HTML
// report and deliberately not tied to configured thresholds.
const (
	bandGood  = "good"
	bandWarn  = "warn"
	bandError = "error"
)

func errorRateBand(rate float64) string {
	switch {
	case rate < 0.05:
		return bandGood
	case rate < 0.10:
		return bandWarn
	default:
		return bandError
	}
}

func latencyBand(p95Ms float64) string {
	switch {
	case p95Ms < 500:
		return bandGood
	case p95Ms < 1000:
		return bandWarn
	default:
		return bandError
	}
}

func checksBand(rate float64) string {
	switch {
	case rate >= 1:
		return bandGood
	case rate >= 0.95:
		return bandWarn
	default:
		return bandError
	}
}

type htmlData struct {
	Report *Report

	ErrorRatePct  string
	ErrorRateBand string
	LatencyBand   string
	ChecksPct     string
	ChecksBand    string
	Throughput    string

	Duration  metrics.TrendStats
	CheckRows []checkRow
}

type checkRow struct {
	Name   string
	Passes int64
	Total  int64
	Band   string
}

// WriteHTML writes the styled standalone report. Styling is inline CSS;
// the document has no external asset dependencies.
func (r *Report) WriteHTML(path string) error {
	snap := r.Metrics
	dur := snap.Trends[metrics.MetricDuration]
	checks := snap.Rates[metrics.MetricChecks]

	data := htmlData{
		Report:        r,
		ErrorRatePct:  fmt.Sprintf("%.2f%%", snap.ErrorRate()*100),
		ErrorRateBand: errorRateBand(snap.ErrorRate()),
		LatencyBand:   latencyBand(dur.P95),
		ChecksPct:     fmt.Sprintf("%.1f%%", checks.Value*100),
		ChecksBand:    checksBand(checks.Value),
		Throughput:    fmt.Sprintf("%.1f req/s", snap.RequestRate()),
		Duration:      dur,
	}

	for _, name := range snap.CheckNames() {
		cr := snap.Rates[name]
		band := bandGood
		if cr.Trues < cr.Total {
			band = bandError
		}
		data.CheckRows = append(data.CheckRows, checkRow{
			Name:   strings.TrimPrefix(name, metrics.CheckPrefix),
			Passes: cr.Trues,
			Total:  cr.Total,
			Band:   band,
		})
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return htmlTmpl.Execute(f, data)
}

var htmlTmpl = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>loadpulse report — {{.Report.Meta.Target}}</title>
<style>
  body { font-family: -apple-system, "Segoe UI", sans-serif; background: #1a1a1a; color: #fafafa; margin: 0; padding: 2rem; }
  h1 { color: #7d56f4; }
  h2 { border-bottom: 1px solid #3c3c3c; padding-bottom: .3rem; }
  .cards { display: grid; grid-template-columns: repeat(auto-fit, minmax(180px, 1fr)); gap: 1rem; margin: 1.5rem 0; }
  .card { border: 1px solid #3c3c3c; border-radius: 8px; padding: 1rem; }
  .card .label { color: #767676; font-size: .8rem; text-transform: uppercase; }
  .card .value { font-size: 1.6rem; font-weight: bold; }
  .good { color: #04b575; }
  .warn { color: #ffaf00; }
  .error { color: #ff5f87; }
  table { border-collapse: collapse; width: 100%; margin: 1rem 0; }
  th, td { text-align: left; padding: .4rem .8rem; border-bottom: 1px solid #3c3c3c; }
  th { color: #767676; font-size: .8rem; text-transform: uppercase; }
  .verdict { display: inline-block; padding: .4rem 1rem; border-radius: 6px; font-weight: bold; }
  .verdict.pass { background: #04b575; color: #1a1a1a; }
  .verdict.fail { background: #ff5f87; color: #1a1a1a; }
</style>
</head>
<body>
<h1>loadpulse report</h1>
<p>Target <strong>{{.Report.Meta.Target}}</strong> &middot; started {{.Report.Meta.StartedAt.Format "2006-01-02 15:04:05"}}</p>
{{if .Report.Passed}}<span class="verdict pass">PASS</span>{{else}}<span class="verdict fail">FAIL</span>{{end}}

<div class="cards">
  <div class="card"><div class="label">Requests</div><div class="value">{{index .Report.Metrics.Counters "http_reqs"}}</div></div>
  <div class="card"><div class="label">Throughput</div><div class="value">{{.Throughput}}</div></div>
  <div class="card"><div class="label">Error Rate</div><div class="value {{.ErrorRateBand}}">{{.ErrorRatePct}}</div></div>
  <div class="card"><div class="label">P95 Latency</div><div class="value {{.LatencyBand}}">{{printf "%.1f ms" .Duration.P95}}</div></div>
  <div class="card"><div class="label">Checks</div><div class="value {{.ChecksBand}}">{{.ChecksPct}}</div></div>
</div>

<h2>Latency (ms)</h2>
<table>
  <tr><th>Avg</th><th>Min</th><th>P50</th><th>P90</th><th>P95</th><th>P99</th><th>Max</th></tr>
  <tr>
    <td>{{printf "%.2f" .Duration.Avg}}</td>
    <td>{{printf "%.2f" .Duration.Min}}</td>
    <td>{{printf "%.2f" .Duration.P50}}</td>
    <td>{{printf "%.2f" .Duration.P90}}</td>
    <td>{{printf "%.2f" .Duration.P95}}</td>
    <td>{{printf "%.2f" .Duration.P99}}</td>
    <td>{{printf "%.2f" .Duration.Max}}</td>
  </tr>
</table>

<h2>Checks</h2>
<table>
  <tr><th>Check</th><th>Passed</th><th>Total</th></tr>
  {{range .CheckRows}}
  <tr><td>{{.Name}}</td><td class="{{.Band}}">{{.Passes}}</td><td>{{.Total}}</td></tr>
  {{end}}
</table>

{{if .Report.Thresholds.Results}}
<h2>Thresholds</h2>
<table>
  <tr><th>Metric</th><th>Rule</th><th>Actual</th><th>Limit</th><th>Result</th></tr>
  {{range .Report.Thresholds.Results}}
  <tr>
    <td>{{.Metric}}</td>
    <td>{{.Stat}}{{.Cmp}}{{.Limit}}</td>
    <td>{{printf "%.2f" .Actual}}</td>
    <td>{{.Limit}}</td>
    {{if .Passed}}<td class="good">pass</td>{{else}}<td class="error">fail</td>{{end}}
  </tr>
  {{end}}
</table>
{{end}}

<h2>Scenarios</h2>
<table>
  <tr><th>Name</th><th>Executor</th><th>Tags</th></tr>
  {{range .Report.Meta.Scenarios}}
  <tr><td>{{.Name}}</td><td>{{.Executor}}</td><td>{{range $k, $v := .Tags}}{{$k}}={{$v}} {{end}}</td></tr>
  {{end}}
</table>
</body>
</html>
`))
