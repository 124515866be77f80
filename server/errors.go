// server/errors.go
// Copyright(c) 2025 nodexec contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package server

import (
	"errors"

	"github.com/nodexec/nodexec/vessel"
)

var ErrRPCVersionMismatch = errors.New("Client and server RPC versions don't match")

// net/rpc only carries the error text across the wire; this maps it back
// to the sentinel so that callers can use errors.Is.
var errorStringToError = map[string]error{
	vessel.ErrDuplicateNode.Error():    vessel.ErrDuplicateNode,
	vessel.ErrInvalidDirection.Error(): vessel.ErrInvalidDirection,
	vessel.ErrInvalidThrottle.Error():  vessel.ErrInvalidThrottle,
	vessel.ErrNoSuchNode.Error():       vessel.ErrNoSuchNode,
	vessel.ErrStreamClosed.Error():     vessel.ErrStreamClosed,
	vessel.ErrUnknownFrame.Error():     vessel.ErrUnknownFrame,

	ErrRPCVersionMismatch.Error(): ErrRPCVersionMismatch,
}

func TryDecodeError(e error) error {
	if e == nil {
		return e
	}
	if err, ok := errorStringToError[e.Error()]; ok {
		return err
	}
	return e
}

func TryDecodeErrorString(s string) error {
	if err, ok := errorStringToError[s]; ok {
		return err
	}
	return nil
}
