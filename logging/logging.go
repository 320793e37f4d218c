// Copyright 2024 The Luma Authors
// This file is part of Luma.
//
// Luma is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package logging is the structured, leveled logger every ambient
// subsystem (GC phase transitions, VM traps, the CLI) logs through. It
// follows the teacher's go.mod-declared logging stack exactly: caller
// frames via go-stack/stack, TTY detection via mattn/go-isatty with the
// Windows color shim from mattn/go-colorable, and level coloring via
// fatih/color.
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/go-stack/stack"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Level is a log severity, ordered so numerically smaller is noisier.
type Level int

const (
	LvlTrace Level = iota
	LvlDebug
	LvlInfo
	LvlWarn
	LvlError
)

func (l Level) String() string {
	switch l {
	case LvlTrace:
		return "TRACE"
	case LvlDebug:
		return "DEBUG"
	case LvlInfo:
		return "INFO"
	case LvlWarn:
		return "WARN"
	case LvlError:
		return "ERROR"
	default:
		return "?????"
	}
}

var levelColor = map[Level]*color.Color{
	LvlTrace: color.New(color.FgHiBlack),
	LvlDebug: color.New(color.FgCyan),
	LvlInfo:  color.New(color.FgGreen),
	LvlWarn:  color.New(color.FgYellow),
	LvlError: color.New(color.FgRed, color.Bold),
}

// Logger is a context-carrying leveled logger, in the Trace/Debug/Info/
// Warn/Error shape every caller in this module uses.
type Logger interface {
	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	// New returns a child logger with ctx permanently appended to every
	// record, the way log.New(ctx...) works in the teacher's stack.
	New(ctx ...interface{}) Logger
}

type logger struct {
	mu     *sync.Mutex
	out    io.Writer
	color  bool
	level  Level
	prefix []interface{}
}

var root = newTerminalLogger(os.Stderr)

// Root returns the process-wide default logger, analogous to the
// teacher's log.Root().
func Root() Logger { return root }

// SetRootLevel adjusts the minimum level the root logger emits.
func SetRootLevel(l Level) { root.(*logger).level = l }

func newTerminalLogger(w io.Writer) Logger {
	useColor := false
	if f, ok := w.(*os.File); ok {
		useColor = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	out := w
	if useColor {
		if f, ok := w.(*os.File); ok {
			out = colorable.NewColorable(f)
		}
	}
	return &logger{mu: &sync.Mutex{}, out: out, color: useColor, level: LvlInfo}
}

// New builds a standalone logger writing to w at level Info, independent
// of the root logger's level.
func New(w io.Writer) Logger { return newTerminalLogger(w) }

func (l *logger) New(ctx ...interface{}) Logger {
	child := *l
	child.prefix = append(append([]interface{}{}, l.prefix...), ctx...)
	return &child
}

func (l *logger) Trace(msg string, ctx ...interface{}) { l.write(LvlTrace, msg, ctx) }
func (l *logger) Debug(msg string, ctx ...interface{}) { l.write(LvlDebug, msg, ctx) }
func (l *logger) Info(msg string, ctx ...interface{})  { l.write(LvlInfo, msg, ctx) }
func (l *logger) Warn(msg string, ctx ...interface{})  { l.write(LvlWarn, msg, ctx) }
func (l *logger) Error(msg string, ctx ...interface{}) { l.write(LvlError, msg, ctx) }

func (l *logger) write(lvl Level, msg string, ctx []interface{}) {
	if lvl < l.level {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := time.Now().Format("15:04:05.000")
	levelStr := lvl.String()
	if l.color {
		if c, ok := levelColor[lvl]; ok {
			levelStr = c.Sprint(lvl.String())
		}
	}
	fmt.Fprintf(l.out, "%s [%s] %s", ts, levelStr, msg)

	all := append(append([]interface{}{}, l.prefix...), ctx...)
	for i := 0; i+1 < len(all); i += 2 {
		fmt.Fprintf(l.out, " %v=%v", all[i], all[i+1])
	}
	fmt.Fprintln(l.out)
}

// CallerFrame names the immediate caller of the logging call, via
// go-stack/stack, for diagnostics that want source location (e.g. panic
// recovery logging in cmd/luma).
func CallerFrame(skip int) string {
	call := stack.Caller(skip + 1)
	return fmt.Sprintf("%+v", call)
}
