package logging

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// prettyHandler renders one human readable line per record:
//
//	2026-01-02 15:04:05 WARN  transcode: [Batch 0a1b2c3d · Job #4 (encode) · MP3 CBR 320] job failed tool=lame
//	    | lame: unsupported sample format
//
// Line blocks such as an encoder's stderr tail follow the record, indented.
type prettyHandler struct {
	mu        *sync.Mutex
	writer    io.Writer
	level     *slog.LevelVar
	attrs     []slog.Attr
	groups    []string
	addSource bool
	colors    *levelColors
}

type levelColors struct {
	debug, info, warn, err, subject, block *color.Color
}

func newLevelColors() *levelColors {
	c := &levelColors{
		debug:   color.New(color.Faint),
		info:    color.New(color.FgCyan),
		warn:    color.New(color.FgYellow, color.Bold),
		err:     color.New(color.FgRed, color.Bold),
		subject: color.New(color.FgMagenta),
		block:   color.New(color.Faint),
	}
	// The handler decides per writer; the package-wide NoColor default only
	// looks at stdout.
	for _, col := range []*color.Color{c.debug, c.info, c.warn, c.err, c.subject, c.block} {
		col.EnableColor()
	}
	return c
}

func newPrettyHandler(w io.Writer, lvl *slog.LevelVar, addSource, colored bool) slog.Handler {
	h := &prettyHandler{mu: &sync.Mutex{}, writer: w, level: lvl, addSource: addSource}
	if colored {
		h.colors = newLevelColors()
	}
	return h
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *prettyHandler) Handle(_ context.Context, record slog.Record) error {
	if record.Level < h.level.Level() {
		return nil
	}

	kvs := make([]kv, 0, record.NumAttrs()+len(h.attrs))
	flattenAttrs(&kvs, h.groups, h.attrs)
	record.Attrs(func(attr slog.Attr) bool {
		flattenAttr(&kvs, h.groups, attr)
		return true
	})

	var component string
	var subject Subject
	var blocks []kv
	filtered := make([]kv, 0, len(kvs))
	for _, item := range kvs {
		if _, ok := item.value.Any().(lineBlock); ok && item.value.Kind() == slog.KindAny {
			blocks = append(blocks, item)
			continue
		}
		var slot *string
		switch item.key {
		case FieldComponent:
			slot = &component
		case FieldBatchID:
			slot = &subject.Batch
		case FieldJobID:
			slot = &subject.Job
		case FieldStage:
			slot = &subject.Stage
		case FieldFormat:
			slot = &subject.Format
		}
		if slot == nil {
			filtered = append(filtered, item)
			continue
		}
		if *slot == "" {
			*slot = attrString(item.value)
		}
	}

	var buf bytes.Buffer
	buf.Grow(128 + len(filtered)*24)

	buf.WriteString(formatTimestamp(timestamp(record)))
	buf.WriteByte(' ')
	buf.WriteString(h.paint(h.levelColor(record.Level), levelLabel(record.Level)))
	buf.WriteByte(' ')

	if component != "" {
		buf.WriteString(component)
		buf.WriteString(": ")
	}
	if s := subject.String(); s != "" {
		buf.WriteString(h.paint(h.subjectColor(), "["+s+"]"))
		buf.WriteByte(' ')
	}

	if msg := strings.TrimSpace(record.Message); msg != "" {
		buf.WriteString(msg)
	} else {
		buf.WriteString("(no message)")
	}

	if h.addSource {
		if src := record.Source(); src != nil {
			buf.WriteString(" [")
			buf.WriteString(filepath.Base(src.File))
			buf.WriteByte(':')
			buf.WriteString(strconv.Itoa(src.Line))
			buf.WriteByte(']')
		}
	}

	for _, item := range filtered {
		if item.key == "" {
			continue
		}
		buf.WriteByte(' ')
		buf.WriteString(item.key)
		buf.WriteByte('=')
		buf.WriteString(formatValue(item.value))
	}
	buf.WriteByte('\n')

	for _, block := range blocks {
		for _, line := range block.value.Any().(lineBlock) {
			buf.WriteString(h.paint(h.blockColor(), "    | "+line))
			buf.WriteByte('\n')
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.writer.Write(buf.Bytes())
	return err
}

func (h *prettyHandler) paint(c *color.Color, s string) string {
	if c == nil {
		return s
	}
	return c.Sprint(s)
}

func (h *prettyHandler) levelColor(level slog.Level) *color.Color {
	if h.colors == nil {
		return nil
	}
	switch {
	case level >= slog.LevelError:
		return h.colors.err
	case level >= slog.LevelWarn:
		return h.colors.warn
	case level >= slog.LevelInfo:
		return h.colors.info
	default:
		return h.colors.debug
	}
}

func (h *prettyHandler) subjectColor() *color.Color {
	if h.colors == nil {
		return nil
	}
	return h.colors.subject
}

func (h *prettyHandler) blockColor() *color.Color {
	if h.colors == nil {
		return nil
	}
	return h.colors.block
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := h.clone()
	clone.attrs = append(clone.attrs, attrs...)
	return clone
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	clone := h.clone()
	clone.groups = append(clone.groups, name)
	return clone
}

func (h *prettyHandler) clone() *prettyHandler {
	clone := *h
	clone.attrs = append([]slog.Attr(nil), h.attrs...)
	clone.groups = append([]string(nil), h.groups...)
	return &clone
}

type kv struct {
	key   string
	value slog.Value
}

func flattenAttrs(dst *[]kv, prefix []string, attrs []slog.Attr) {
	for _, attr := range attrs {
		flattenAttr(dst, prefix, attr)
	}
}

func flattenAttr(dst *[]kv, prefix []string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	attr.Value = attr.Value.Resolve()
	if attr.Value.Kind() == slog.KindGroup {
		nextPrefix := prefix
		if attr.Key != "" {
			nextPrefix = append(append([]string(nil), prefix...), attr.Key)
		}
		flattenAttrs(dst, nextPrefix, attr.Value.Group())
		return
	}
	key := attr.Key
	if len(prefix) > 0 {
		key = strings.Join(append(append([]string(nil), prefix...), key), ".")
	}
	*dst = append(*dst, kv{key: key, value: attr.Value})
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN "
	case level >= slog.LevelInfo:
		return "INFO "
	default:
		return "DEBUG"
	}
}
