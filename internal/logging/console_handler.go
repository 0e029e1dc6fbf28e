package logging

import (
	"bytes"
	"context"
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

const (
	ansiReset  = "\x1b[0m"
	ansiDim    = "\x1b[2m"
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
)

// consoleHandler renders human-oriented log lines:
//
//	15:04:05 INFO  [server] api server listening address=127.0.0.1:8961
type consoleHandler struct {
	mu        sync.Mutex
	writer    io.Writer
	level     *slog.LevelVar
	attrs     []slog.Attr
	group     string
	addSource bool
	color     bool
}

func newConsoleHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &consoleHandler{writer: w, level: lvl, addSource: addSource, color: color}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	timestamp := record.Time
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	var component string
	var fields []slog.Attr
	collect := func(attr slog.Attr) {
		if attr.Key == "component" && component == "" {
			component = attr.Value.String()
			return
		}
		fields = append(fields, attr)
	}
	for _, attr := range h.attrs {
		collect(attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		collect(attr)
		return true
	})

	var buf bytes.Buffer
	buf.Grow(128 + len(fields)*24)

	buf.WriteString(timestamp.Format("15:04:05"))
	buf.WriteByte(' ')
	h.writeLevel(&buf, record.Level)
	if component != "" {
		buf.WriteString(" [")
		buf.WriteString(component)
		buf.WriteByte(']')
	}
	buf.WriteByte(' ')
	buf.WriteString(strings.TrimSpace(record.Message))

	for _, attr := range fields {
		buf.WriteByte(' ')
		if h.color {
			buf.WriteString(ansiDim)
		}
		buf.WriteString(h.attrKey(attr.Key))
		buf.WriteByte('=')
		buf.WriteString(formatValue(attr.Value))
		if h.color {
			buf.WriteString(ansiReset)
		}
	}

	if h.addSource {
		if src := record.Source(); src != nil {
			fmt.Fprintf(&buf, " (%s:%d)", filepath.Base(src.File), src.Line)
		}
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.writer.Write(buf.Bytes())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := h.clone()
	for _, attr := range attrs {
		if h.group != "" {
			attr.Key = h.group + "." + attr.Key
		}
		clone.attrs = append(clone.attrs, attr)
	}
	return clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := h.clone()
	if clone.group != "" {
		clone.group = clone.group + "." + name
	} else {
		clone.group = name
	}
	return clone
}

func (h *consoleHandler) clone() *consoleHandler {
	attrs := make([]slog.Attr, len(h.attrs))
	copy(attrs, h.attrs)
	return &consoleHandler{
		writer:    h.writer,
		level:     h.level,
		attrs:     attrs,
		group:     h.group,
		addSource: h.addSource,
		color:     h.color,
	}
}

func (h *consoleHandler) attrKey(key string) string {
	if h.group != "" {
		return h.group + "." + key
	}
	return key
}

func (h *consoleHandler) writeLevel(buf *bytes.Buffer, level slog.Level) {
	label := strings.ToUpper(level.String())
	if len(label) > 5 {
		label = label[:5]
	}
	for len(label) < 5 {
		label += " "
	}
	if !h.color {
		buf.WriteString(label)
		return
	}
	switch {
	case level >= slog.LevelError:
		buf.WriteString(ansiRed)
	case level >= slog.LevelWarn:
		buf.WriteString(ansiYellow)
	case level < slog.LevelInfo:
		buf.WriteString(ansiCyan)
	}
	buf.WriteString(label)
	buf.WriteString(ansiReset)
}

func formatValue(value slog.Value) string {
	value = value.Resolve()
	switch value.Kind() {
	case slog.KindString:
		s := value.String()
		if strings.ContainsAny(s, " \t\"") {
			return fmt.Sprintf("%q", s)
		}
		return s
	case slog.KindTime:
		return value.Time().UTC().Format(time.RFC3339)
	case slog.KindDuration:
		return value.Duration().String()
	default:
		return fmt.Sprint(value.Any())
	}
}
