// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package logging builds the slog loggers used by the instgraph tools.
//
// A Logger always writes to a console writer (stderr by default) and can
// additionally append JSON records to a per-run file under LogDir:
//
//	logger, err := logging.New(logging.Config{
//	    Level:   slog.LevelInfo,
//	    LogDir:  "~/.instgraph/logs",
//	    Service: "instgraph",
//	})
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//	slog.SetDefault(logger.Slog())
//
// File records are always JSON and always at least Info, so a quiet
// console still leaves an audit trail of sessions and chain applications.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// ErrInvalidFormat is returned for an unknown console format.
var ErrInvalidFormat = errors.New("invalid log format")

// Format selects the console handler.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"

	// FormatAuto picks text for a terminal and JSON otherwise.
	FormatAuto Format = "auto"
)

// ParseFormat accepts "text", "json" or "auto" in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatAuto:
		return f, nil
	default:
		return "", fmt.Errorf("%w %q: want text, json or auto", ErrInvalidFormat, s)
	}
}

// ResolveFormat returns FormatText when w is a terminal and FormatJSON for
// pipes, files and in-memory writers.
func ResolveFormat(w io.Writer) Format {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return FormatJSON
	}
	if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
		return FormatText
	}
	return FormatJSON
}

// ParseLevel accepts the slog level names (debug, info, warn, error),
// optionally with an offset such as "info+2".
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return lvl, nil
}

// Config configures a Logger. The zero value logs Info and above as text
// to stderr.
type Config struct {
	// Level is the console threshold.
	Level slog.Level

	// Format is the console format. Empty means text, FormatAuto resolves
	// against Writer.
	Format Format

	// Writer is the console destination. Nil means os.Stderr.
	Writer io.Writer

	// LogDir, when set, enables JSON file logging. A leading ~ expands to
	// the home directory.
	LogDir string

	// Service prefixes the log file name and is attached to every record.
	Service string
}

// Logger fans records out to the console and the optional log file.
type Logger struct {
	slog *slog.Logger

	mu   sync.Mutex
	file *os.File
}

// New creates a Logger from cfg.
//
// Description:
//
//	Builds the console handler, then, if LogDir is set, creates the
//	directory and opens <service>_<timestamp>.log in append mode. Both
//	handlers are joined by a multiHandler.
//
// Outputs:
//
//	*Logger - Ready to use. Callers must Close it when LogDir is set.
//	error   - Non-nil for an unknown format or an unwritable LogDir.
func New(cfg Config) (*Logger, error) {
	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}
	format := cfg.Format
	switch format {
	case "":
		format = FormatText
	case FormatAuto:
		format = ResolveFormat(w)
	}

	opts := &slog.HandlerOptions{Level: cfg.Level}
	var console slog.Handler
	switch format {
	case FormatText:
		console = slog.NewTextHandler(w, opts)
	case FormatJSON:
		console = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("%w %q: want text or json", ErrInvalidFormat, format)
	}

	l := &Logger{}
	handler := console
	if cfg.LogDir != "" {
		f, err := openLogFile(expandPath(cfg.LogDir), cfg.Service)
		if err != nil {
			return nil, err
		}
		l.file = f
		fileLevel := min(cfg.Level, slog.LevelInfo)
		handler = &multiHandler{handlers: []slog.Handler{
			console,
			slog.NewJSONHandler(f, &slog.HandlerOptions{Level: fileLevel}),
		}}
	}

	l.slog = slog.New(handler)
	if cfg.Service != "" {
		l.slog = l.slog.With(slog.String("service", cfg.Service))
	}
	return l, nil
}

// Slog returns the underlying slog.Logger.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// FilePath returns the log file path, or "" when file logging is off.
func (l *Logger) FilePath() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return ""
	}
	return l.file.Name()
}

// Close syncs and closes the log file. It is safe to call more than once.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	f := l.file
	l.file = nil
	return errors.Join(
		wrapErr("sync log file", f.Sync()),
		wrapErr("close log file", f.Close()),
	)
}

func openLogFile(dir, service string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	if service == "" {
		service = "instgraph"
	}
	name := fmt.Sprintf("%s_%s.log", service, time.Now().Format("20060102_150405"))
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// multiHandler sends each record to every handler enabled for its level.
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}
