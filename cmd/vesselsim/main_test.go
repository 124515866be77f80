// cmd/vesselsim/main_test.go
// Copyright(c) 2025 nodexec contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package main

import (
	"testing"

	"github.com/nodexec/nodexec/sim"
	"github.com/nodexec/nodexec/util"
)

func TestExampleScenario(t *testing.T) {
	var e util.ErrorLogger
	s := sim.LoadScenario("example-scenario.json", &e)
	if e.HaveErrors() {
		t.Fatal(e.String())
	}
	if len(s.Vessel.Stages) != 2 || len(s.Nodes) != 2 || s.SimRate != 4 {
		t.Errorf("unexpected scenario %+v", s)
	}
}
