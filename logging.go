package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// logOptions is what NewLogger understands of the logging blob.
type logOptions struct {
	level  slog.Level
	format string
	output string
}

// NewLogger builds the logger described by the opaque logging blob of the
// settings. Two shapes are understood: a flat one
//
//	{"level": "debug", "format": "json", "output": "hmr.log"}
//
// and a dictConfig-style one with a root logger and named handlers, where
// root.level, a handler "stream" and a handler "filename" are honored.
// Output "stdout" and "stderr" map to the given writers; anything else is
// a file opened for appending, released by the returned Closer.
func NewLogger(blob map[string]any, stdout, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	lo, err := parseLogOptions(blob)
	if err != nil {
		return nil, nil, err
	}

	var w io.Writer
	var closer io.Closer = nopCloser{}
	switch lo.output {
	case "", "stdout":
		w = stdout
	case "stderr":
		w = stderr
	default:
		f, err := os.OpenFile(lo.output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w, closer = f, f
	}

	opts := &slog.HandlerOptions{Level: lo.level}
	var handler slog.Handler
	if lo.format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler), closer, nil
}

func parseLogOptions(blob map[string]any) (logOptions, error) {
	lo := logOptions{level: slog.LevelInfo, format: "text", output: "stdout"}

	level := stringValue(blob["level"])
	if root, ok := blob["root"].(map[string]any); ok {
		if level == "" {
			level = stringValue(root["level"])
		}
		if h := firstHandler(blob, root); h != nil {
			if out := handlerOutput(h); out != "" {
				lo.output = out
			}
			if level == "" {
				level = stringValue(h["level"])
			}
		}
	}
	if level != "" {
		l, err := parseLevel(level)
		if err != nil {
			return lo, err
		}
		lo.level = l
	}

	if format := strings.ToLower(stringValue(blob["format"])); format != "" {
		if format != "text" && format != "json" {
			return lo, fmt.Errorf("unknown log format %q", format)
		}
		lo.format = format
	}
	if out := stringValue(blob["output"]); out != "" {
		lo.output = out
	}
	return lo, nil
}

// firstHandler returns the definition of the first handler the root logger
// references.
func firstHandler(blob, root map[string]any) map[string]any {
	handlers, ok := blob["handlers"].(map[string]any)
	if !ok {
		return nil
	}
	var names []string
	switch v := root["handlers"].(type) {
	case []any:
		for _, n := range v {
			names = append(names, stringValue(n))
		}
	case []string:
		names = v
	}
	for _, name := range names {
		if h, ok := handlers[name].(map[string]any); ok {
			return h
		}
		// Config files are decoded with lowercased keys, while the names
		// listed under root.handlers keep their case.
		for key, v := range handlers {
			if h, ok := v.(map[string]any); ok && strings.EqualFold(key, name) {
				return h
			}
		}
	}
	return nil
}

func handlerOutput(h map[string]any) string {
	if file := stringValue(h["filename"]); file != "" {
		return file
	}
	switch stringValue(h["stream"]) {
	case "ext://sys.stderr":
		return "stderr"
	case "ext://sys.stdout":
		return "stdout"
	}
	return ""
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG", "NOTSET":
		return slog.LevelDebug, nil
	case "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR", "CRITICAL", "FATAL":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}
