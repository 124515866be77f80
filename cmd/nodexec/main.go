// cmd/nodexec/main.go
// Copyright(c) 2025 nodexec contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// nodexec executes the maneuver nodes planned for a vessel served by
// vesselsim.
package main

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nodexec/nodexec/client"
	"github.com/nodexec/nodexec/executor"
	"github.com/nodexec/nodexec/log"
	"github.com/nodexec/nodexec/server"
	"github.com/nodexec/nodexec/util"

	"github.com/apenwarr/fixconsole"
	"github.com/goforj/godump"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	serverAddress = flag.String("server", net.JoinHostPort("localhost", strconv.Itoa(server.DefaultRPCPort)), "address of the vessel server")
	configFile    = flag.String("config", "", "JSON file with executor settings")
	logLevel      = flag.String("loglevel", "info", "logging level: debug, info, warn, error")
	logDir        = flag.String("logdir", "", "log file directory")
	minBurn       = flag.Duration("minburn", 0, "minimum burn duration (overrides the config file)")
	executeAll    = flag.Bool("all", false, "execute all planned nodes, not just the next one")
	describe      = flag.Bool("describe", false, "describe the next burn and exit")
	dump          = flag.Bool("dump", false, "dump the next node and its burn plan and exit")
	recordDir     = flag.String("record", "", "directory to save burn recordings in")
	metricsAddr   = flag.String("metrics", "", "address to serve Prometheus metrics on (e.g., :9310)")
)

func main() {
	flag.Parse()

	if err := fixconsole.FixConsoleIfNeeded(); err != nil {
		fmt.Printf("FixConsole: %v\n", err)
	}

	lg := log.New(*logLevel, *logDir)
	defer lg.CatchAndReportCrash()

	cfg := loadConfig(lg)

	if *serverAddress != "" && !strings.Contains(*serverAddress, ":") {
		*serverAddress = net.JoinHostPort(*serverAddress, strconv.Itoa(server.DefaultRPCPort))
	}
	v, err := client.Dial(*serverAddress, lg)
	if err != nil {
		fatal(lg, "%s: %v", *serverAddress, err)
	}
	defer v.Close()

	es := executor.NewEventStream(lg)
	defer es.Destroy()
	opts := []executor.Option{executor.WithEventStream(es)}

	if *metricsAddr != "" {
		reg := prometheus.NewRegistry()
		opts = append(opts, executor.WithMetrics(executor.NewMetrics(reg)))
		go func() {
			if err := http.ListenAndServe(*metricsAddr, executor.MetricsHandler(reg)); err != nil {
				lg.Errorf("metrics server: %v", err)
			}
		}()
	}
	if *recordDir != "" {
		if err := os.MkdirAll(*recordDir, 0o755); err != nil {
			fatal(lg, "%s: %v", *recordDir, err)
		}
		opts = append(opts, executor.WithRecorder(executor.NewRecorder(*recordDir, lg)))
	}

	ex := executor.New(v, cfg, lg, opts...)

	switch {
	case *describe:
		s, err := ex.Describe()
		if errors.Is(err, executor.ErrNoNode) {
			fmt.Println("No maneuver nodes are planned.")
		} else if err != nil {
			fatal(lg, "%v", err)
		} else {
			fmt.Println(s)
		}

	case *dump:
		node, plan, err := ex.Plan()
		if errors.Is(err, executor.ErrNoNode) {
			fmt.Println("No maneuver nodes are planned.")
		} else if err != nil {
			fatal(lg, "%v", err)
		} else {
			godump.Dump(*node)
			godump.Dump(plan)
		}

	default:
		stop := printEvents(es)
		reports, err := execute(ex)
		stop()

		aborted := false
		for _, r := range reports {
			fmt.Println(r.String())
			aborted = aborted || r.Burn.State == executor.Aborted
		}
		if err != nil {
			fatal(lg, "%v", err)
		}
		if len(reports) == 0 {
			fmt.Println("No maneuver nodes to execute.")
		}
		if aborted {
			os.Exit(2)
		}
	}
}

func loadConfig(lg *log.Logger) executor.Config {
	// -minburn 0 is a valid override, so check whether it was given
	// rather than looking at its value.
	var override *time.Duration
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "minburn" {
			override = minBurn
		}
	})

	var e util.ErrorLogger
	cfg := makeConfig(*configFile, override, &e)
	if e.HaveErrors() {
		e.PrintErrors(lg)
		os.Exit(1)
	}
	return cfg
}

// makeConfig returns the executor configuration from the given file, if
// any, with the minimum burn time replaced by minBurn if it is non-nil.
func makeConfig(filename string, minBurn *time.Duration, e *util.ErrorLogger) executor.Config {
	cfg := executor.DefaultConfig()
	if filename != "" {
		cfg = executor.LoadConfig(filename, e)
	}
	if minBurn != nil && !e.HaveErrors() {
		cfg.MinimumBurnTime = util.Duration(*minBurn)
		e.Push("-minburn")
		cfg.Check(e)
		e.Pop()
	}
	return cfg
}

func execute(ex *executor.Executor) ([]executor.Report, error) {
	if *executeAll {
		return ex.ExecuteAll()
	}
	r, err := ex.ExecuteNode()
	if !r.Executed {
		return nil, err
	}
	return []executor.Report{r}, err
}

// printEvents echoes the executor's events to stdout as they happen until
// the returned function is called.
func printEvents(es *executor.EventStream) func() {
	sub := es.Subscribe()
	done := make(chan struct{})
	var wg sync.WaitGroup

	flush := func() {
		for _, e := range sub.Get() {
			fmt.Println(e.String())
		}
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				flush()
			case <-done:
				flush()
				return
			}
		}
	}()

	return func() {
		close(done)
		wg.Wait()
		sub.Unsubscribe()
	}
}

func fatal(lg *log.Logger, msg string, args ...any) {
	lg.Errorf(msg, args...)
	fmt.Fprintf(os.Stderr, msg+"\n", args...)
	os.Exit(1)
}
