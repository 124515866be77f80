// cmd/nodexec/main_test.go
// Copyright(c) 2025 nodexec contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nodexec/nodexec/util"
)

func TestMakeConfig(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "nodexec.json")
	if err := os.WriteFile(fn, []byte(`{"minimum_burn_time": "10s"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	for _, test := range []struct {
		name     string
		minBurn  *time.Duration
		expected time.Duration
		errors   bool
	}{
		{name: "file", expected: 10 * time.Second},
		{name: "override", minBurn: new(time.Duration), expected: 0},
		{name: "negative", minBurn: func() *time.Duration { d := -time.Second; return &d }(), errors: true},
	} {
		t.Run(test.name, func(t *testing.T) {
			var e util.ErrorLogger
			cfg := makeConfig(fn, test.minBurn, &e)
			if e.HaveErrors() != test.errors {
				t.Fatalf("got errors %v (%s), expected %v", e.HaveErrors(), e.String(), test.errors)
			}
			if !test.errors && cfg.MinimumBurnTime.D() != test.expected {
				t.Errorf("got minimum burn time %s, expected %s", cfg.MinimumBurnTime, test.expected)
			}
		})
	}
}
