package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// hexKeys are printed the way protocol traces show them.
var hexKeys = map[string]bool{
	KeySessionID: true,
	KeyTreeID:    true,
	KeyAsyncID:   true,
}

// TextHandler writes one line per record:
//
//	2024-01-02 03:04:05.678 DEBUG recv SMB2_READ#42 status=STATUS_SUCCESS credits=31
//
// The command and message_id attributes are joined into CMD#id right after
// the message so request traces line up.
type TextHandler struct {
	opts     *slog.HandlerOptions
	w        io.Writer
	mu       *sync.Mutex
	attrs    []slog.Attr
	group    string
	useColor bool
}

func NewTextHandler(w io.Writer, opts *slog.HandlerOptions, useColor bool) *TextHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &TextHandler{
		opts:     opts,
		w:        w,
		mu:       &sync.Mutex{},
		useColor: useColor,
	}
}

func (h *TextHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

func (h *TextHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make([]slog.Attr, 0, len(h.attrs)+r.NumAttrs())
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, h.qualify(a))
		return true
	})

	var command, msgId string
	rest := attrs[:0]
	for _, a := range attrs {
		switch a.Key {
		case KeyCommand:
			command = a.Value.Resolve().String()
		case KeyMessageID:
			msgId = a.Value.Resolve().String()
		default:
			rest = append(rest, a)
		}
	}

	var buf []byte
	buf = fmt.Appendf(buf, "%s %s %s", r.Time.Format("2006-01-02 15:04:05.000"), h.formatLevel(r.Level), r.Message)

	switch {
	case command != "" && msgId != "":
		buf = fmt.Appendf(buf, " %s#%s", command, msgId)
	case command != "":
		buf = append(buf, ' ')
		buf = append(buf, command...)
	case msgId != "":
		rest = append(rest, slog.String(KeyMessageID, msgId))
	}

	for _, a := range rest {
		buf = h.appendAttr(buf, a)
	}
	buf = append(buf, '\n')

	h.mu.Lock()
	_, err := h.w.Write(buf)
	h.mu.Unlock()
	return err
}

func (h *TextHandler) qualify(a slog.Attr) slog.Attr {
	if h.group != "" {
		a.Key = h.group + "." + a.Key
	}
	return a
}

func (h *TextHandler) formatLevel(level slog.Level) string {
	var levelStr, color string

	switch {
	case level < slog.LevelInfo:
		levelStr, color = "DEBUG", colorGray
	case level < slog.LevelWarn:
		levelStr, color = "INFO ", colorGreen
	case level < slog.LevelError:
		levelStr, color = "WARN ", colorYellow
	default:
		levelStr, color = "ERROR", colorRed
	}

	if h.useColor {
		return color + levelStr + colorReset
	}
	return levelStr
}

func (h *TextHandler) appendAttr(buf []byte, a slog.Attr) []byte {
	if a.Equal(slog.Attr{}) {
		return buf
	}
	a.Value = a.Value.Resolve()

	value := formatValue(a.Key, a.Value)
	if strings.ContainsAny(value, " \t\"=") {
		value = fmt.Sprintf("%q", value)
	}

	if !h.useColor {
		return fmt.Appendf(buf, " %s=%s", a.Key, value)
	}
	if isFailure(a) {
		return fmt.Appendf(buf, " %s%s=%s%s", colorRed, a.Key, value, colorReset)
	}
	return fmt.Appendf(buf, " %s%s%s=%s", colorCyan, a.Key, colorReset, value)
}

// isFailure reports attributes worth highlighting: errors and NTSTATUS
// names other than success or pending.
func isFailure(a slog.Attr) bool {
	switch a.Key {
	case KeyError:
		return true
	case KeyStatus:
		s := a.Value.String()
		return s != "STATUS_SUCCESS" && s != "STATUS_PENDING"
	}
	return false
}

func formatValue(key string, v slog.Value) string {
	switch v.Kind() {
	case slog.KindUint64:
		if hexKeys[key] {
			return fmt.Sprintf("0x%x", v.Uint64())
		}
	case slog.KindInt64:
		if hexKeys[key] {
			return fmt.Sprintf("0x%x", v.Int64())
		}
	case slog.KindFloat64:
		return fmt.Sprintf("%.3f", v.Float64())
	case slog.KindDuration:
		return v.Duration().Round(time.Microsecond).String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindAny:
		return fmt.Sprintf("%v", v.Any())
	}
	return v.String()
}

func (h *TextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	qualified := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		qualified[i] = h.qualify(a)
	}
	return &TextHandler{
		opts:     h.opts,
		w:        h.w,
		mu:       h.mu,
		attrs:    append(append([]slog.Attr{}, h.attrs...), qualified...),
		group:    h.group,
		useColor: h.useColor,
	}
}

// WithGroup qualifies the keys of later attributes with name.
func (h *TextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}
	return &TextHandler{
		opts:     h.opts,
		w:        h.w,
		mu:       h.mu,
		attrs:    h.attrs,
		group:    group,
		useColor: h.useColor,
	}
}
