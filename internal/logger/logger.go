// Copyright 2026 The Uniondiff Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger provides uniondiff's structured logger: a thin set of
// severity-named functions over log/slog, with a custom handler that
// prints either logfmt-ish text or single-line JSON. uniondiff is a
// one-shot batch CLI, not a mount daemon, so unlike the mount helper this
// never logs to a rotating file — just stderr (or whatever the CLI points
// it at).
package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Severity levels, one finer-grained than slog's built-in four so that -vv
// (trace) has somewhere to go.
const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	LevelOff   = slog.Level(12)
)

// Severity name constants accepted by SetLevel.
const (
	Trace = "TRACE"
	Debug = "DEBUG"
	Info  = "INFO"
	Warn  = "WARNING"
	Error = "ERROR"
	Off   = "OFF"
)

func levelForName(name string) slog.Level {
	switch name {
	case Trace:
		return LevelTrace
	case Debug:
		return LevelDebug
	case Info:
		return LevelInfo
	case Warn:
		return LevelWarn
	case Error:
		return LevelError
	default:
		return LevelOff
	}
}

func severityName(l slog.Level) string {
	switch {
	case l < LevelDebug:
		return Trace
	case l < LevelInfo:
		return Debug
	case l < LevelWarn:
		return Info
	case l < LevelError:
		return Warn
	case l < LevelOff:
		return Error
	default:
		return Off
	}
}

type factory struct {
	out    io.Writer
	format string
	level  *slog.LevelVar
	prefix string
}

var defaultFactory = &factory{out: os.Stderr, format: "text", level: &slog.LevelVar{}}
var defaultLogger = slog.New(defaultFactory.handler())

func (f *factory) handler() slog.Handler {
	opts := &slog.HandlerOptions{
		Level: f.level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				a.Key = "severity"
				a.Value = slog.StringValue(severityName(a.Value.Any().(slog.Level)))
			}
			if a.Key == slog.MessageKey && f.prefix != "" {
				a.Value = slog.StringValue(f.prefix + a.Value.String())
			}
			return a
		},
	}
	if f.format == "json" {
		return &jsonHandler{out: f.out, opts: opts}
	}
	return slog.NewTextHandler(f.out, opts)
}

// jsonHandler emits one compact JSON object per record, matching the
// {"timestamp":{"seconds":...,"nanos":...},"severity":...,"message":...}
// shape; SetFormat("json") selects it.
type jsonHandler struct {
	out  io.Writer
	opts *slog.HandlerOptions
}

type jsonRecord struct {
	Timestamp struct {
		Seconds int64 `json:"seconds"`
		Nanos   int   `json:"nanos"`
	} `json:"timestamp"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

func (h *jsonHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

func (h *jsonHandler) Handle(_ context.Context, r slog.Record) error {
	var rec jsonRecord
	rec.Timestamp.Seconds = r.Time.Unix()
	rec.Timestamp.Nanos = r.Time.Nanosecond()
	rec.Severity = severityName(r.Level)
	rec.Message = r.Message
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(h.out, string(data))
	return err
}

func (h *jsonHandler) WithAttrs(_ []slog.Attr) slog.Handler { return h }
func (h *jsonHandler) WithGroup(_ string) slog.Handler      { return h }

// SetFormat switches the logger between "text" and "json" output. Any
// other value (including "") falls back to "json".
func SetFormat(format string) {
	if format != "text" {
		format = "json"
	}
	defaultFactory.format = format
	defaultLogger = slog.New(defaultFactory.handler())
}

// SetLevel sets the minimum severity that gets logged. Unrecognized names
// are treated as Off.
func SetLevel(name string) {
	defaultFactory.level.Set(levelForName(name))
}

// SetOutput redirects where log lines are written.
func SetOutput(w io.Writer) {
	defaultFactory.out = w
	defaultLogger = slog.New(defaultFactory.handler())
}

// Logger returns the process-wide *slog.Logger that SetLevel/SetFormat/
// SetOutput configure, so a caller that wants a *slog.Logger (the differ's
// WithLogger, say) rather than the Tracef/Debugf/... helpers can get one
// that stays in sync with -v/-q.
func Logger() *slog.Logger {
	return defaultLogger
}

func logf(level slog.Level, format string, args ...any) {
	defaultLogger.Log(context.Background(), level, fmt.Sprintf(format, args...))
}

func Tracef(format string, args ...any) { logf(LevelTrace, format, args...) }
func Debugf(format string, args ...any) { logf(LevelDebug, format, args...) }
func Infof(format string, args ...any)  { logf(LevelInfo, format, args...) }
func Warnf(format string, args ...any)  { logf(LevelWarn, format, args...) }
func Errorf(format string, args ...any) { logf(LevelError, format, args...) }
