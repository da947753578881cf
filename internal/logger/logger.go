// Copyright 2025 Google LLC
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

// Package logger provides the daemon's leveled diagnostic logging
// (TRACE/DEBUG/INFO/WARNING/ERROR, text or JSON) on top of log/slog, with
// on-disk rotation via lumberjack. It is deliberately separate from
// OperationLog, whose on-disk format is a fixed contract rather than a log
// level.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Severity levels, spaced like slog's own so custom levels interleave
// cleanly with slog.LevelDebug/Info/Warn/Error.
const (
	LevelTrace   = slog.Level(-8)
	LevelDebug   = slog.LevelDebug
	LevelInfo    = slog.LevelInfo
	LevelWarning = slog.LevelWarn
	LevelError   = slog.LevelError
	LevelOff     = slog.Level(12)
)

var severityNames = map[slog.Level]string{
	LevelTrace:   "TRACE",
	LevelDebug:   "DEBUG",
	LevelInfo:    "INFO",
	LevelWarning: "WARNING",
	LevelError:   "ERROR",
}

func levelForName(name string) slog.Level {
	switch name {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARNING":
		return LevelWarning
	case "ERROR":
		return LevelError
	default:
		return LevelOff
	}
}

// LogRotateConfig controls on-disk rotation of the diagnostic log file.
type LogRotateConfig struct {
	MaxFileSizeMB   int
	BackupFileCount int
	Compress        bool
}

// loggerFactory owns the writer(s) backing defaultLogger and lets the
// logging level be changed at runtime.
type loggerFactory struct {
	programLevel *slog.LevelVar
	format       string
	file         *lumberjack.Logger
}

var (
	defaultLoggerFactory = &loggerFactory{
		programLevel: new(slog.LevelVar),
		format:       "text",
	}
	defaultLogger = slog.New(defaultLoggerFactory.createHandler(os.Stderr))
)

func init() {
	defaultLoggerFactory.programLevel.Set(LevelInfo)
}

func (f *loggerFactory) createHandler(w io.Writer) slog.Handler {
	replace := func(groups []string, a slog.Attr) slog.Attr {
		switch a.Key {
		case slog.LevelKey:
			level := a.Value.Any().(slog.Level)
			name, ok := severityNames[level]
			if !ok {
				name = level.String()
			}
			a.Key = "severity"
			a.Value = slog.StringValue(name)
		case slog.MessageKey:
			a.Key = "message"
		}
		return a
	}

	opts := &slog.HandlerOptions{Level: f.programLevel, ReplaceAttr: replace}
	if f.format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// SetLevel changes the minimum severity that is emitted.
func SetLevel(name string) {
	defaultLoggerFactory.programLevel.Set(levelForName(name))
}

// SetFormat switches between "text" and "json" rendering and rebuilds the
// default logger against its current writer.
func SetFormat(format string) {
	defaultLoggerFactory.format = format
	defaultLogger = slog.New(defaultLoggerFactory.createHandler(currentWriter()))
}

func currentWriter() io.Writer {
	if defaultLoggerFactory.file != nil {
		return defaultLoggerFactory.file
	}
	return os.Stderr
}

// InitLogFile redirects the default logger to path, rotated according to
// rotate. A process that cannot open its log file is expected to treat
// that as fatal before mounting (see SPEC_FULL.md, "Process-fatal
// cache-open failure").
func InitLogFile(path string, rotate LogRotateConfig) error {
	if path == "" {
		return fmt.Errorf("logger: empty log file path")
	}

	defaultLoggerFactory.file = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    rotate.MaxFileSizeMB,
		MaxBackups: rotate.BackupFileCount,
		Compress:   rotate.Compress,
	}
	defaultLogger = slog.New(defaultLoggerFactory.createHandler(defaultLoggerFactory.file))

	return nil
}

func log(level slog.Level, format string, args ...any) {
	defaultLogger.Log(context.Background(), level, fmt.Sprintf(format, args...))
}

func Tracef(format string, args ...any) { log(LevelTrace, format, args...) }
func Debugf(format string, args ...any) { log(LevelDebug, format, args...) }
func Infof(format string, args ...any)  { log(LevelInfo, format, args...) }
func Warnf(format string, args ...any)  { log(LevelWarning, format, args...) }
func Errorf(format string, args ...any) { log(LevelError, format, args...) }
