package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/lookahead/internal/waypoint"
)

// echartsAssetsHost serves the echarts javascript bundle.
const echartsAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// maxChartPoints bounds the route series; longer routes are strided.
const maxChartPoints = 5000

func routeScatter(route waypoint.Route, limit int) []opts.ScatterData {
	stride := 1
	if limit > 0 && route.Len() > limit {
		stride = (route.Len() + limit - 1) / limit
	}
	data := make([]opts.ScatterData, 0, route.Len()/stride+1)
	for i := 0; i < route.Len(); i += stride {
		p := route.Waypoints[i].Position()
		data = append(data, opts.ScatterData{Value: []interface{}{p.X, p.Y, i}})
	}
	return data
}

// handleWindowChart renders the route, the latest window and the vehicle
// position as an HTML scatter plot in the world frame.
func (s *Server) handleWindowChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	route, haveRoute := s.planner.Route()
	window, haveWindow := s.bus.Window.Latest()
	pose, havePose := s.planner.Pose()
	if !haveRoute && !haveWindow {
		s.writeJSONError(w, http.StatusNotFound, "no route received yet")
		return
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Lookahead Window", Theme: "dark", Width: "900px", Height: "900px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Lookahead Window", Subtitle: fmt.Sprintf("frame=%s route=%d window=%d", route.Header.FrameID, route.Len(), window.Len())}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "X (m)", NameLocation: "middle", NameGap: 25, Scale: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "Y (m)", NameLocation: "middle", NameGap: 30, Scale: opts.Bool(true)}),
	)

	if haveRoute {
		scatter.AddSeries("route", routeScatter(route, maxChartPoints), charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))
	}
	if haveWindow {
		scatter.AddSeries("window", routeScatter(window, 0), charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))
	}
	if havePose {
		p := pose.Pose.Position
		scatter.AddSeries("vehicle", []opts.ScatterData{{Value: []interface{}{p.X, p.Y}}}, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 14}))
	}

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
