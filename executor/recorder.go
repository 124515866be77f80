// executor/recorder.go
// Copyright(c) 2025 nodexec contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package executor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/nodexec/nodexec/log"
	"github.com/nodexec/nodexec/maneuver"
	"github.com/nodexec/nodexec/physics"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// Sample is one burn loop iteration's view of the vessel.
type Sample struct {
	UT              float64 `msgpack:"ut"`
	Throttle        float64 `msgpack:"throttle"`
	RemainingDeltaV float64 `msgpack:"remaining_delta_v"`
	AttitudeError   float64 `msgpack:"attitude_error"`
	Thrust          float64 `msgpack:"thrust"`
	Mass            float64 `msgpack:"mass"`
}

// Recording is everything captured about a single burn.
type Recording struct {
	Node    maneuver.Node `msgpack:"node"`
	Plan    physics.Plan  `msgpack:"plan"`
	Start   time.Time     `msgpack:"start"`
	Samples []Sample      `msgpack:"samples"`
	Result  BurnResult    `msgpack:"result"`
}

// Recorder captures per-iteration burn samples and writes each burn to
// its own file in Dir, msgpack-encoded and zstd-compressed.
type Recorder struct {
	Dir     string
	lg      *log.Logger
	current *Recording
}

func NewRecorder(dir string, lg *log.Logger) *Recorder {
	return &Recorder{Dir: dir, lg: lg}
}

func (r *Recorder) Begin(node maneuver.Node, plan physics.Plan) error {
	if r.current != nil {
		return ErrRecorderStarted
	}
	r.current = &Recording{Node: node, Plan: plan, Start: time.Now()}
	return nil
}

func (r *Recorder) Recording() bool {
	return r.current != nil
}

func (r *Recorder) Sample(s Sample) {
	if r.current != nil {
		r.current.Samples = append(r.current.Samples, s)
	}
}

// Finish writes the current recording and returns the path of the file
// it was written to.
func (r *Recorder) Finish(result BurnResult) (string, error) {
	if r.current == nil {
		return "", ErrRecorderIdle
	}
	rec := r.current
	r.current = nil
	rec.Result = result

	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return "", err
	}

	fn := filepath.Join(r.Dir, fmt.Sprintf("burn-%s-%s.msgpack.zst", rec.Node.ID,
		rec.Start.UTC().Format("20060102T150405")))
	f, err := os.Create(fn)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := rec.Save(f); err != nil {
		return "", err
	}

	r.lg.Info("saved burn recording", "path", fn, "samples", len(rec.Samples))
	return fn, f.Close()
}

// Save writes the recording as msgpack, compressed with zstd.
func (rec *Recording) Save(w io.Writer) error {
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}

	if err := msgpack.NewEncoder(zw).Encode(rec); err != nil {
		zw.Close()
		return fmt.Errorf("failed to encode recording: %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to close zstd writer: %w", err)
	}
	return nil
}

func LoadRecording(r io.Reader) (*Recording, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer zr.Close()

	var rec Recording
	if err := msgpack.NewDecoder(zr).Decode(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode recording: %w", err)
	}
	return &rec, nil
}

func LoadRecordingFile(path string) (*Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return LoadRecording(f)
}
