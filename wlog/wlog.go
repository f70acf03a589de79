// Copyright (c) 2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package wlog defines the leveled logger interface shared by every
// package in this module. Each package that wants to log holds its own
// package-level Logger (defaulting to a disabled logger) and exposes a
// UseLogger function so an embedding application can wire it to a real
// backend, matching the convention used throughout pktwallet's
// sub-packages. Logger and Level are aliases for btclog's own types
// rather than a parallel reimplementation, so any btclog-backed
// subsystem logger an embedding application already has can be passed
// to UseLogger unmodified.
package wlog

import (
	"io"
	"os"

	"github.com/btcsuite/btclog"
)

// Level is the severity of a single log message.
type Level = btclog.Level

const (
	LevelTrace    = btclog.LevelTrace
	LevelDebug    = btclog.LevelDebug
	LevelInfo     = btclog.LevelInfo
	LevelWarn     = btclog.LevelWarn
	LevelError    = btclog.LevelError
	LevelCritical = btclog.LevelCritical
	LevelOff      = btclog.LevelOff
)

// Logger is the interface every package in this module logs through.
type Logger = btclog.Logger

// Disabled is a Logger that discards every message. It is the default
// value of every package-level log variable in this module.
var Disabled Logger = btclog.Disabled

// NewBackend returns a Logger that writes formatted, leveled lines to w,
// tagged with the given subsystem name (e.g. "TXIX").
func NewBackend(w io.Writer, tag string) Logger {
	b := btclog.NewBackend(w)
	l := b.Logger(tag)
	l.SetLevel(btclog.LevelInfo)
	return l
}

// NewStderrBackend is a convenience constructor for a Logger that writes
// to standard error.
func NewStderrBackend(tag string) Logger {
	return NewBackend(os.Stderr, tag)
}
