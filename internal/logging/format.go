package logging

import (
	"bytes"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// fields holds the attrs and groups accumulated through WithAttrs/WithGroup.
type fields struct {
	attrs  []slog.Attr
	groups []string
}

func (f fields) withAttrs(attrs []slog.Attr) fields {
	if len(attrs) == 0 {
		return f
	}
	// pre-qualify so later groups don't rename them
	out := f
	out.attrs = make([]slog.Attr, 0, len(f.attrs)+len(attrs))
	out.attrs = append(out.attrs, f.attrs...)
	for _, a := range attrs {
		out.attrs = append(out.attrs, qualify(f.groups, a))
	}
	return out
}

func (f fields) withGroup(name string) fields {
	if name == "" {
		return f
	}
	out := f
	out.groups = append(append(make([]string, 0, len(f.groups)+1), f.groups...), name)
	return out
}

// pairs flattens preset and record attrs into key=value pairs, dotting group
// names into keys.
func (f fields) pairs(record slog.Record) []pair {
	out := make([]pair, 0, len(f.attrs)+record.NumAttrs())
	for _, a := range f.attrs {
		out = flatten(out, "", a)
	}
	record.Attrs(func(a slog.Attr) bool {
		out = flatten(out, "", qualify(f.groups, a))
		return true
	})
	return out
}

type pair struct {
	key   string
	value slog.Value
}

func qualify(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 || a.Key == "" {
		return a
	}
	a.Key = strings.Join(groups, ".") + "." + a.Key
	return a
}

func flatten(out []pair, prefix string, a slog.Attr) []pair {
	v := a.Value.Resolve()
	key := a.Key
	if prefix != "" && key != "" {
		key = prefix + "." + key
	} else if prefix != "" {
		key = prefix
	}
	if v.Kind() == slog.KindGroup {
		for _, child := range v.Group() {
			out = flatten(out, key, child)
		}
		return out
	}
	if key == "" {
		return out
	}
	return append(out, pair{key: key, value: v})
}

func appendPairs(buf *bytes.Buffer, pairs []pair) {
	for _, p := range pairs {
		fmt.Fprintf(buf, " %s=%s", p.key, renderValue(p.value))
	}
}

func renderValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindString:
		s = v.String()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			s = err.Error()
		} else {
			s = fmt.Sprint(v.Any())
		}
	default:
		return v.String()
	}
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}
