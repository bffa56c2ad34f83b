// Package plot renders clustering results as interactive HTML charts.
package plot

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

var palette = []string{
	"#5470c6", "#91cc75", "#fac858", "#ee6666", "#73c0de",
	"#3ba272", "#fc8452", "#9a60b4", "#ea7ccc", "#8d6e63",
}

// Color returns the series color of cluster i.
func Color(i int) string {
	return palette[i%len(palette)]
}

// Scatter writes an HTML scatter plot with one series per cluster and a
// black centroid series. Points of higher dimension are projected onto their
// first two coordinates. Points without a label (labels shorter than points,
// e.g. before the first step) are drawn as "Unassigned".
func Scatter(w io.Writer, points [][]float64, labels []int, centroids [][]float64, title string) error {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: title,
			Width:     "900px",
			Height:    "700px",
		}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(true),
			Top:  "5%",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	clusters := make([][]opts.ScatterData, len(centroids))
	var unassigned []opts.ScatterData

	for i, p := range points {
		d := opts.ScatterData{Value: xy(p), SymbolSize: 8}

		if i < len(labels) && labels[i] >= 0 && labels[i] < len(clusters) {
			clusters[labels[i]] = append(clusters[labels[i]], d)
			continue
		}
		unassigned = append(unassigned, d)
	}

	for i, data := range clusters {
		scatter.AddSeries(fmt.Sprintf("Cluster %d", i), data,
			charts.WithItemStyleOpts(opts.ItemStyle{Color: Color(i)}))
	}

	if len(unassigned) > 0 {
		scatter.AddSeries("Unassigned", unassigned,
			charts.WithItemStyleOpts(opts.ItemStyle{Color: "#999999"}))
	}

	centers := make([]opts.ScatterData, len(centroids))
	for i, c := range centroids {
		centers[i] = opts.ScatterData{Value: xy(c), Symbol: "diamond", SymbolSize: 16}
	}
	scatter.AddSeries("Centroids", centers,
		charts.WithItemStyleOpts(opts.ItemStyle{Color: "black"}))

	return scatter.Render(w)
}

func xy(p []float64) []float64 {
	switch len(p) {
	case 0:
		return []float64{0, 0}
	case 1:
		return []float64{p[0], 0}
	default:
		return []float64{p[0], p[1]}
	}
}
