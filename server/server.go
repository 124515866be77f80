// server/server.go
// Copyright(c) 2025 nodexec contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package server exposes a simulated vessel over net/rpc so that the
// executor can be run against it from another process.
package server

import (
	"errors"
	"log/slog"
	"net"
	"net/rpc"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/nodexec/nodexec/log"
	"github.com/nodexec/nodexec/sim"
	"github.com/nodexec/nodexec/util"
	"github.com/nodexec/nodexec/vessel"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// RPCVersion must be bumped whenever the arguments or results of any of
// the RPCs change.
const RPCVersion = 1

const DefaultRPCPort = 8310
const DefaultHTTPPort = 8311

const (
	// MaxStreams bounds the number of streams open across all clients;
	// opening another closes the least recently used one.
	MaxStreams = 256
	// StreamTimeout is how long a stream may go unread before it's closed.
	StreamTimeout = 2 * time.Minute
)

type StreamID int64

// VesselServer serves a single simulated vessel.
type VesselServer struct {
	vessel *sim.Vessel
	lg     *log.Logger

	streams    *expirable.LRU[StreamID, openStream]
	nextStream atomic.Int64

	listener  net.Listener
	startTime time.Time
}

func NewVesselServer(v *sim.Vessel, lg *log.Logger) *VesselServer {
	vs := &VesselServer{
		vessel:    v,
		lg:        lg,
		startTime: time.Now(),
	}
	vs.streams = expirable.NewLRU[StreamID, openStream](MaxStreams, vs.closeStream, StreamTimeout)
	return vs
}

// Listen opens the RPC listener; if port is 0, an open one is chosen. The
// port actually used is returned.
func (vs *VesselServer) Listen(port int) (int, error) {
	var err error
	if vs.listener, err = net.Listen("tcp", ":"+strconv.Itoa(port)); err != nil {
		return 0, err
	}
	return vs.listener.Addr().(*net.TCPAddr).Port, nil
}

// Serve accepts connections until the listener is closed. Listen must
// have been called first.
func (vs *VesselServer) Serve() error {
	server := rpc.NewServer()
	if err := server.RegisterName("Vessel", &dispatcher{vs: vs}); err != nil {
		return err
	}

	vs.lg.Infof("Listening on %s", vs.listener.Addr())

	for {
		conn, err := vs.listener.Accept()
		if errors.Is(err, net.ErrClosed) {
			return nil
		} else if err != nil {
			vs.lg.Errorf("Accept error: %v", err)
			continue
		}

		vs.lg.Infof("%s: new connection", conn.RemoteAddr())
		if cc, err := util.MakeCompressedConn(util.MakeLoggingConn(conn, vs.lg)); err != nil {
			vs.lg.Errorf("MakeCompressedConn: %v", err)
		} else {
			codec := util.MakeMessagepackServerCodec(cc, vs.lg)
			codec = util.MakeLoggingServerCodec(conn.RemoteAddr().String(), codec, vs.lg)
			go server.ServeCodec(codec)
		}
	}
}

// Close stops accepting connections and closes all open streams.
func (vs *VesselServer) Close() error {
	vs.streams.Purge()
	if vs.listener == nil {
		return nil
	}
	return vs.listener.Close()
}

///////////////////////////////////////////////////////////////////////////
// Streams

// openStream holds one of the vessel's streams on behalf of a client;
// exactly one of scalar and vector is set.
type openStream struct {
	scalar vessel.ScalarStream
	vector vessel.VectorStream
}

func (s openStream) Close() error {
	if s.scalar != nil {
		return s.scalar.Close()
	}
	return s.vector.Close()
}

func (vs *VesselServer) addStream(s openStream) StreamID {
	id := StreamID(vs.nextStream.Add(1))
	vs.streams.Add(id, s)
	return id
}

// lookupStream returns the stream with the given id and restarts its
// expiration clock.
func (vs *VesselServer) lookupStream(id StreamID) (openStream, bool) {
	s, ok := vs.streams.Get(id)
	if ok {
		vs.streams.Add(id, s)
	}
	return s, ok
}

// closeStream is called by the LRU whenever a stream leaves it, whether it
// was closed by the client, expired, or was pushed out by newer ones.
func (vs *VesselServer) closeStream(id StreamID, s openStream) {
	if err := s.Close(); err != nil {
		vs.lg.Warnf("stream %d: %v", id, err)
	} else {
		vs.lg.Debug("closed stream", slog.Int64("id", int64(id)))
	}
}
