// executor/events.go
// Copyright(c) 2025 nodexec contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package executor

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/nodexec/nodexec/log"
	"github.com/nodexec/nodexec/maneuver"
)

// EventStream fans out the events the executor posts as it works through
// nodes. Each subscriber sees every event posted after it subscribed, in
// order, whenever it gets around to calling Get.
type EventStream struct {
	mu     sync.Mutex
	events []Event
	subs   map[*EventsSubscription]struct{}
	closed bool
	lg     *log.Logger
}

type EventsSubscription struct {
	stream *EventStream
	offset int // index in stream.events of the next unread event
}

func NewEventStream(lg *log.Logger) *EventStream {
	return &EventStream{
		subs: make(map[*EventsSubscription]struct{}),
		lg:   lg,
	}
}

func (e *EventStream) Subscribe() *EventsSubscription {
	e.mu.Lock()
	defer e.mu.Unlock()

	sub := &EventsSubscription{stream: e, offset: len(e.events)}
	e.subs[sub] = struct{}{}
	return sub
}

func (s *EventsSubscription) Unsubscribe() {
	e := s.stream
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.subs[s]; !ok {
		e.lg.Warn("unsubscribing unknown event subscription", slog.Int("offset", s.offset))
		return
	}
	delete(e.subs, s)
	e.compact()
}

// Post appends event to the stream. Events posted while nobody is
// subscribed, or after Destroy, are dropped.
func (e *EventStream) Post(event Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.lg.Debug("posted event", slog.Any("event", event))
	if !e.closed && len(e.subs) > 0 {
		e.events = append(e.events, event)
	}
}

// Get returns the events posted since the subscription's last Get.
func (s *EventsSubscription) Get() []Event {
	e := s.stream
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.subs[s]; !ok {
		return nil
	}
	events := slices.Clone(e.events[s.offset:])
	s.offset = len(e.events)
	e.compact()
	return events
}

func (e *EventStream) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	clear(e.subs)
	e.events = nil
}

// compact drops events every subscriber has read once they make up more
// than half of the backing array. e.mu must be held.
func (e *EventStream) compact() {
	read := len(e.events)
	for sub := range e.subs {
		read = min(read, sub.offset)
	}
	if read == 0 || read <= cap(e.events)/2 {
		return
	}

	n := copy(e.events, e.events[read:])
	clear(e.events[n:])
	e.events = e.events[:n]
	for sub := range e.subs {
		sub.offset -= read
	}
}

///////////////////////////////////////////////////////////////////////////

type EventType int

const (
	AlignEvent EventType = iota
	WarpEvent
	IgnitionEvent
	StagingEvent
	ShutdownEvent
	AbortEvent
	NodeRemovedEvent
	NumEventTypes
)

var eventTypeNames = []string{"Align", "Warp", "Ignition", "Staging", "Shutdown", "Abort", "NodeRemoved"}

func (t EventType) String() string {
	if t < 0 || int(t) >= len(eventTypeNames) {
		return fmt.Sprintf("EventType(%d)", int(t))
	}
	return eventTypeNames[t]
}

// Event records one transition in a node's execution. UT is the
// simulation time when it happened; T0 is the time relative to the node's
// UT (negative before the node). DeltaV is the remaining delta-v, where
// known.
type Event struct {
	Type   EventType
	Node   maneuver.NodeID
	UT     float64
	T0     float64
	DeltaV float64
	Reason ExitReason
}

func (e Event) String() string {
	s := fmt.Sprintf("%s %s at T0%+.0f seconds", e.Node, e.Type, e.T0)
	switch e.Type {
	case ShutdownEvent, AbortEvent:
		s += fmt.Sprintf(": %.2f m/s remaining (%s)", e.DeltaV, e.Reason)
	}
	return s
}

func (e Event) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("type", e.Type.String()),
		slog.String("node", string(e.Node)),
		slog.Float64("ut", e.UT),
		slog.Float64("t0", e.T0),
	}
	if e.Type == ShutdownEvent || e.Type == AbortEvent {
		attrs = append(attrs, slog.Float64("delta_v", e.DeltaV),
			slog.String("reason", e.Reason.String()))
	}
	return slog.GroupValue(attrs...)
}
