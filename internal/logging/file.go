// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/samber/oops"
)

// fileTimeLayout is the timestamp part of a log file name.
const fileTimeLayout = "20060102_150405"

// FileName returns the log file name for an application started at t,
// e.g. "my_app_20260131_142501.log" for "My App". The name is lowercased;
// spaces, path separators and control characters become underscores, so
// the result never leaves the log directory.
func FileName(app string, t time.Time) string {
	safe := strings.Map(func(r rune) rune {
		if r == ' ' || r == '/' || r == '\\' || unicode.IsControl(r) {
			return '_'
		}
		return r
	}, strings.ToLower(strings.TrimSpace(app)))
	return safe + "_" + t.Format(fileTimeLayout) + ".log"
}

// Open builds a logger that writes to console and, when dir is non-empty,
// also to a new timestamped file in dir. The returned closer releases the
// file; it is a no-op when no file was opened.
func Open(opts Options, console io.Writer, dir string, now time.Time) (*slog.Logger, io.Closer, error) {
	if console == nil {
		console = os.Stderr
	}
	if dir == "" {
		logger, err := Setup(opts, console)
		return logger, nopCloser{}, err
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, nil, oops.Code("LOG_DIR_FAILED").With("dir", dir).Wrap(err)
	}
	app := opts.AppName
	if app == "" {
		app = opts.Service
	}
	path := filepath.Join(dir, FileName(app, now))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640) //nolint:gosec // path built from config dir
	if err != nil {
		return nil, nil, oops.Code("LOG_FILE_FAILED").With("path", path).Wrap(err)
	}

	logger, err := Setup(opts, io.MultiWriter(console, f))
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	return logger, f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
