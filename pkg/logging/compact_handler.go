package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// CompactHandler writes one line per record for console output:
//
//	[LEVEL] HH:MM:SS message | key=value key=value
//
// Ids are shortened to eight characters and map distances are printed
// with one decimal.
type CompactHandler struct {
	opts   slog.HandlerOptions
	mu     *sync.Mutex
	out    io.Writer
	attrs  []slog.Attr
	prefix string // dotted group path
}

// NewCompactHandler creates a handler writing to w.
func NewCompactHandler(w io.Writer, opts *slog.HandlerOptions) *CompactHandler {
	h := &CompactHandler{out: w, mu: new(sync.Mutex)}
	if opts != nil {
		h.opts = *opts
	}
	return h
}

func (h *CompactHandler) Enabled(_ context.Context, level slog.Level) bool {
	min := slog.LevelInfo
	if h.opts.Level != nil {
		min = h.opts.Level.Level()
	}
	return level >= min
}

var levelTags = map[slog.Level]string{
	LevelTrace:      "[TRACE] ",
	slog.LevelDebug: "[DEBUG] ",
	slog.LevelInfo:  "[INFO]  ",
	slog.LevelWarn:  "[WARN]  ",
	slog.LevelError: "[ERROR] ",
}

func (h *CompactHandler) Handle(_ context.Context, r slog.Record) error {
	buf := make([]byte, 0, 256)

	if tag, ok := levelTags[r.Level]; ok {
		buf = append(buf, tag...)
	} else {
		buf = fmt.Appendf(buf, "[%-5s] ", r.Level)
	}
	buf = r.Time.AppendFormat(buf, time.TimeOnly)
	buf = append(buf, ' ')
	buf = append(buf, r.Message...)

	sep := " |"
	emit := func(a slog.Attr) {
		if a.Equal(slog.Attr{}) {
			return
		}
		buf = append(buf, sep...)
		buf = append(buf, ' ')
		sep = ""
		buf = h.appendAttr(buf, a)
	}
	for _, a := range h.attrs {
		emit(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		emit(a)
		return true
	})
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(buf)
	return err
}

// shortKeys are ids that only need to be told apart on a console.
var shortKeys = map[string]string{
	"requestID": "req",
	"session":   "session",
}

// decimalKeys are map-unit quantities.
var decimalKeys = map[string]bool{
	"distance": true,
	"radius":   true,
	"grid":     true,
	"x":        true,
	"y":        true,
}

func (h *CompactHandler) appendAttr(buf []byte, a slog.Attr) []byte {
	v := a.Value.Resolve()

	if name, ok := shortKeys[a.Key]; ok && v.Kind() == slog.KindString {
		s := v.String()
		if len(s) > 8 {
			s = s[:8]
		}
		return append(append(append(buf, name...), '='), s...)
	}
	switch {
	case a.Key == "durationMs":
		return fmt.Appendf(buf, "duration=%sms", v)
	case a.Key == "error":
		return fmt.Appendf(buf, "error=%q", v.Any())
	case decimalKeys[a.Key] && v.Kind() == slog.KindFloat64:
		buf = append(append(buf, a.Key...), '=')
		return strconv.AppendFloat(buf, v.Float64(), 'f', 1, 64)
	}

	buf = append(buf, h.prefix...)
	buf = append(append(buf, a.Key...), '=')

	switch v.Kind() {
	case slog.KindString:
		if s := v.String(); needsQuoting(s) {
			buf = strconv.AppendQuote(buf, s)
		} else {
			buf = append(buf, s...)
		}
	case slog.KindInt64:
		buf = strconv.AppendInt(buf, v.Int64(), 10)
	case slog.KindUint64:
		buf = strconv.AppendUint(buf, v.Uint64(), 10)
	case slog.KindFloat64:
		buf = strconv.AppendFloat(buf, v.Float64(), 'g', -1, 64)
	case slog.KindBool:
		buf = strconv.AppendBool(buf, v.Bool())
	case slog.KindDuration:
		buf = append(buf, v.Duration().String()...)
	case slog.KindTime:
		buf = v.Time().AppendFormat(buf, time.RFC3339)
	case slog.KindGroup:
		for i, ga := range v.Group() {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = h.appendAttr(buf, ga)
		}
	default:
		buf = fmt.Appendf(buf, "%v", v.Any())
	}
	return buf
}

func needsQuoting(s string) bool {
	return s == "" || strings.ContainsAny(s, " \t\n\"=")
}

func (h *CompactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = append(h.attrs[:len(h.attrs):len(h.attrs)], attrs...)
	return &c
}

func (h *CompactHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.prefix = h.prefix + name + "."
	return &c
}
