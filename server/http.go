// server/http.go
// Copyright(c) 2025 nodexec contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package server

import (
	"context"
	"encoding/json"
	"errors"
	gomath "math"
	"net"
	"net/http"
	"net/http/pprof"
	"runtime"
	"strconv"
	"text/template"
	"time"

	"github.com/nodexec/nodexec/executor"
	"github.com/nodexec/nodexec/sim"
	"github.com/nodexec/nodexec/util"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/cpu"
)

type serverStats struct {
	Uptime           time.Duration
	AllocMemory      uint64
	TotalAllocMemory uint64
	SysMemory        uint64
	RX, TX           int64
	NumGC            uint32
	NumGoRoutines    int
	CPUUsage         int
	Streams          int

	Vessel sim.State
}

///////////////////////////////////////////////////////////////////////////
// Status / statistics via HTTP...

// HTTPHandler returns the handler for the status page (/sup), a JSON dump
// of the vessel's state (/state), Prometheus metrics (/metrics) and
// pprof.
func (vs *VesselServer) HTTPHandler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/sup", func(w http.ResponseWriter, r *http.Request) {
		vs.statsHandler(w, r)
		vs.lg.Infof("%s: served stats request", r.URL.String())
	})
	mux.HandleFunc("/state", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(vs.vessel.Snapshot()); err != nil {
			vs.lg.Errorf("%s: %v", r.URL.String(), err)
		}
	})
	mux.Handle("/metrics", executor.MetricsHandler(vs.metricsRegistry()))

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	return mux
}

// ServeHTTP serves HTTPHandler on the given port, trying the next few
// ports if it's taken. It returns once ctx is canceled.
func (vs *VesselServer) ServeHTTP(ctx context.Context, port int) error {
	var listener net.Listener
	var err error
	for i := range 10 {
		if listener, err = net.Listen("tcp", ":"+strconv.Itoa(port+i)); err == nil {
			vs.lg.Infof("Launching HTTP server on port %d", port+i)
			break
		}
	}
	if err != nil {
		vs.lg.Warnf("Unable to start HTTP server: %v", err)
		return err
	}

	srv := &http.Server{Handler: vs.HTTPHandler()}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	if err := srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// metricsRegistry returns a registry that reports the vessel's state and
// the RPC traffic.
func (vs *VesselServer) metricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()

	gauge := func(name, help string, f func(sim.State) float64) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "nodexec",
			Subsystem: "sim",
			Name:      name,
			Help:      help,
		}, func() float64 { return f(vs.vessel.Snapshot()) })
	}
	reg.MustRegister(
		gauge("time_seconds", "Simulation time.", func(s sim.State) float64 { return s.SimTime }),
		gauge("throttle", "Commanded throttle.", func(s sim.State) float64 { return s.Throttle }),
		gauge("stages", "Stages still attached.", func(s sim.State) float64 { return float64(len(s.Stages)) }),
		gauge("nodes", "Planned maneuver nodes.", func(s sim.State) float64 { return float64(len(s.Nodes)) }),
		gauge("speed_meters_per_second", "Inertial speed.",
			func(s sim.State) float64 { return s.Velocity.Length() }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "nodexec",
			Subsystem: "server",
			Name:      "open_streams",
			Help:      "Streams held open for clients.",
		}, func() float64 { return float64(vs.streams.Len()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "nodexec",
			Subsystem: "server",
			Name:      "rx_bytes_total",
			Help:      "Bytes received over RPC connections.",
		}, func() float64 { rx, _ := util.GetLoggedRPCBandwidth(); return float64(rx) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "nodexec",
			Subsystem: "server",
			Name:      "tx_bytes_total",
			Help:      "Bytes sent over RPC connections.",
		}, func() float64 { _, tx := util.GetLoggedRPCBandwidth(); return float64(tx) }),
	)
	return reg
}

var templateFuncs = template.FuncMap{
	"mps": func(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) + " m/s" },
}

var statsTemplate = template.Must(template.New("").Funcs(templateFuncs).Parse(`
<!DOCTYPE html>
<html>
<head>
<title>nodexec vessel server</title>
</head>
<style>
table {
  border-collapse: collapse;
  width: 100%;
}

th, td {
  border: 1px solid #dddddd;
  padding: 8px;
  text-align: left;
}

tr:nth-child(even) {
  background-color: #f2f2f2;
}
</style>
<body>
<h1>Server Status</h1>
<ul>
  <li>Uptime: {{.Uptime}}</li>
  <li>CPU usage: {{.CPUUsage}}%</li>
  <li>Bandwidth: {{.RX}} bytes RX, {{.TX}} bytes TX</li>
  <li>Allocated memory: {{.AllocMemory}} MB</li>
  <li>Total allocated memory: {{.TotalAllocMemory}} MB</li>
  <li>System memory: {{.SysMemory}} MB</li>
  <li>Garbage collection passes: {{.NumGC}}</li>
  <li>Running goroutines: {{.NumGoRoutines}}</li>
  <li>Open streams: {{.Streams}}</li>
</ul>

<h1>Vessel {{.Vessel.Name}}</h1>
<ul>
  <li>Sim time: {{printf "%.1f" .Vessel.SimTime}}</li>
  <li>Throttle: {{printf "%.3f" .Vessel.Throttle}}</li>
  <li>Speed: {{mps .Vessel.Velocity.Length}}</li>
  <li>Attitude hold: {{.Vessel.AttitudeHold}}</li>
  <li>Stagings: {{.Vessel.Stagings}}</li>
</ul>

<h2>Stages</h2>
<table>
  <tr>
  <th>Name</th>
  <th>Dry Mass</th>
  <th>Propellant</th>
  <th>Thrust</th>
  <th>Isp</th>
  </tr>
{{range .Vessel.Stages}}
  <tr>
  <td>{{.Name}}</td>
  <td>{{.DryMass}}</td>
  <td>{{printf "%.1f" .PropellantMass}}</td>
  <td>{{.Thrust}}</td>
  <td>{{.Isp}}</td>
  </tr>
{{end}}
</table>

<h2>Maneuver Nodes</h2>
<table>
  <tr>
  <th>ID</th>
  <th>UT</th>
  <th>Delta-v</th>
  <th>Frame</th>
  </tr>
{{range .Vessel.Nodes}}
  <tr>
  <td>{{.Node.ID}}</td>
  <td>{{printf "%.1f" .Node.UT}}</td>
  <td>{{mps .Node.DeltaV}}</td>
  <td><tt>{{.Node.Frame}}</tt></td>
  </tr>
{{end}}
</table>

</body>
</html>
`))

func (vs *VesselServer) statsHandler(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	usage, _ := cpu.Percent(time.Second, false)

	stats := serverStats{
		Uptime:           time.Since(vs.startTime).Round(time.Second),
		AllocMemory:      m.Alloc / (1024 * 1024),
		TotalAllocMemory: m.TotalAlloc / (1024 * 1024),
		SysMemory:        m.Sys / (1024 * 1024),
		NumGC:            m.NumGC,
		NumGoRoutines:    runtime.NumGoroutine(),
		Streams:          vs.streams.Len(),

		Vessel: vs.vessel.Snapshot(),
	}
	if len(usage) > 0 {
		stats.CPUUsage = int(gomath.Round(usage[0]))
	}

	stats.RX, stats.TX = util.GetLoggedRPCBandwidth()

	if err := statsTemplate.Execute(w, stats); err != nil {
		vs.lg.Errorf("%s: %v", r.URL.String(), err)
	}
}
