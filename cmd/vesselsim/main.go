// cmd/vesselsim/main.go
// Copyright(c) 2025 nodexec contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// vesselsim runs a simulated vessel and serves it over RPC so that
// nodexec can fly it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nodexec/nodexec/log"
	"github.com/nodexec/nodexec/server"
	"github.com/nodexec/nodexec/sim"
	"github.com/nodexec/nodexec/util"

	"github.com/apenwarr/fixconsole"
	"github.com/goforj/godump"
	"golang.org/x/sync/errgroup"
)

var (
	scenarioFile = flag.String("scenario", "", "JSON file with the vessel scenario")
	rpcPort      = flag.Int("port", server.DefaultRPCPort, "port to listen on for RPC connections (0 picks one)")
	httpPort     = flag.Int("http", server.DefaultHTTPPort, "port for the status page and metrics (0 disables it)")
	simRate      = flag.Float64("simrate", 0, "simulation rate (overrides the scenario if set)")
	logLevel     = flag.String("loglevel", "info", "logging level: debug, info, warn, error")
	logDir       = flag.String("logdir", "", "log file directory")
	lint         = flag.Bool("lint", false, "check the scenario, dump it, and exit")
)

// updateInterval is how often the simulation is advanced when it's not
// in lock-step mode.
const updateInterval = 50 * time.Millisecond

func main() {
	flag.Parse()

	if err := fixconsole.FixConsoleIfNeeded(); err != nil {
		fmt.Printf("FixConsole: %v\n", err)
	}

	if *scenarioFile == "" {
		fmt.Fprintf(os.Stderr, "usage: vesselsim -scenario <file.json> [flags]\nwhere [flags] may be:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	lg := log.New(*logLevel, *logDir)
	defer lg.CatchAndReportCrash()

	var e util.ErrorLogger
	s := sim.LoadScenario(*scenarioFile, &e)
	if e.HaveErrors() {
		e.PrintErrors(lg)
		os.Exit(1)
	}
	if *simRate > 0 {
		s.SimRate = *simRate
	}
	if *lint {
		godump.Dump(s)
		return
	}

	v := sim.NewVessel(s, lg)
	vs := server.NewVesselServer(v, lg)
	port, err := vs.Listen(*rpcPort)
	if err != nil {
		lg.Errorf("%v", err)
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Serving vessel %q on port %d\n", s.Vessel.Name, port)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(vs.Serve)
	eg.Go(func() error {
		<-ctx.Done()
		return vs.Close()
	})
	eg.Go(func() error {
		defer lg.CatchAndReportCrash()

		ticker := time.NewTicker(updateInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				v.Update()
			}
		}
	})
	if *httpPort != 0 {
		eg.Go(func() error { return vs.ServeHTTP(ctx, *httpPort) })
	}

	if err := eg.Wait(); err != nil {
		lg.Errorf("%v", err)
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	lg.Info("shut down", "vessel", v)
}
