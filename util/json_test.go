// util/json_test.go
// Copyright(c) 2025 nodexec contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type jsonTestConfig struct {
	Name     string    `json:"name"`
	Margins  []float64 `json:"margins"`
	Settle   Duration  `json:"settle"`
	Verbose  bool      `json:"verbose"`
	Children map[string]struct {
		Count int `json:"count"`
	} `json:"children"`
}

func TestUnmarshalJSONErrors(t *testing.T) {
	var c jsonTestConfig
	err := UnmarshalJSONBytes([]byte("{\n  \"name\": \"x\",\n  \"margins\": [1, 2,]\n}"), &c)
	if err == nil {
		t.Fatalf("expected syntax error")
	}
	if !strings.Contains(err.Error(), "line 3") {
		t.Errorf("got %q, expected error to mention line 3", err)
	}

	err = UnmarshalJSONBytes([]byte(`{"name": 12}`), &c)
	if err == nil || !strings.Contains(err.Error(), "line 1") {
		t.Errorf("got %v, expected type error on line 1", err)
	}
}

func TestCheckJSON(t *testing.T) {
	for _, test := range []struct {
		json   string
		errors int
	}{
		{json: `{"name": "a", "margins": [180, 5], "settle": "100ms", "verbose": true}`},
		{json: `{"settle": 2.5}`},
		{json: `{"children": {"a": {"count": 1}}}`},
		{json: `{"nmae": "a"}`, errors: 1},
		{json: `{"margins": "180"}`, errors: 1},
		{json: `{"margins": [180, "5"]}`, errors: 1},
		{json: `{"settle": "soon"}`, errors: 1},
		{json: `{"verbose": 1, "name": false}`, errors: 2},
		{json: `{"children": {"a": {"count": "one"}}}`, errors: 1},
	} {
		var e ErrorLogger
		CheckJSON[jsonTestConfig]([]byte(test.json), &e)
		if n := len(e.errors); n != test.errors {
			t.Errorf("%s: got %d errors, expected %d: %s", test.json, n, test.errors, e.String())
		}
	}
}

func TestDuration(t *testing.T) {
	var c jsonTestConfig
	if err := UnmarshalJSONBytes([]byte(`{"settle": "250ms"}`), &c); err != nil {
		t.Fatal(err)
	}
	if c.Settle.D() != 250*time.Millisecond {
		t.Errorf("got %v, expected 250ms", c.Settle)
	}
	if err := UnmarshalJSONBytes([]byte(`{"settle": 1.5}`), &c); err != nil {
		t.Fatal(err)
	}
	if c.Settle.D() != 1500*time.Millisecond {
		t.Errorf("got %v, expected 1.5s", c.Settle)
	}

	b, err := Duration(5 * time.Second).MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"5s"` {
		t.Errorf("got %s, expected \"5s\"", b)
	}
}

func TestLoadJSONFile(t *testing.T) {
	dir := t.TempDir()
	fn := filepath.Join(dir, "config.json")
	if err := os.WriteFile(fn, []byte(`{"name": "test", "settle": "1s"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	var c jsonTestConfig
	var e ErrorLogger
	LoadJSONFile(fn, &c, &e)
	if e.HaveErrors() {
		t.Fatalf("unexpected errors: %s", e.String())
	}
	if c.Name != "test" || c.Settle.D() != time.Second {
		t.Errorf("got %+v", c)
	}

	LoadJSONFile(filepath.Join(dir, "missing.json"), &c, &e)
	if !e.HaveErrors() {
		t.Errorf("expected error for missing file")
	} else if !strings.HasPrefix(e.String(), filepath.Join(dir, "missing.json")+": ") {
		t.Errorf("got %q, expected error prefixed with filename", e.String())
	}
	if e.CurrentDepth() != 0 {
		t.Errorf("got depth %d, expected 0", e.CurrentDepth())
	}
}

func TestErrorLoggerHierarchy(t *testing.T) {
	var e ErrorLogger
	e.Push("scenario")
	e.Push("stage 2")
	e.ErrorString("thrust %d must be positive", -5)
	e.Pop()
	e.ErrorString("no stages")
	e.Pop()

	expected := "scenario / stage 2: thrust -5 must be positive\nscenario: no stages"
	if e.String() != expected {
		t.Errorf("got %q, expected %q", e.String(), expected)
	}
}
