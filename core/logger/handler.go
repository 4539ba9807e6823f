package logger

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"
)

type handlerConfig struct {
	level    slog.Leveler
	writer   *asyncWriter
	format   logFormat
	keyOrder []string
}

// structuredHandler renders records as one flat line with a fixed key order
// so that ts, level, component and event always lead.
type structuredHandler struct {
	cfg    handlerConfig
	attrs  []slog.Attr
	groups []string
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if cfg.keyOrder == nil {
		cfg.keyOrder = slices.Clone(defaultKeyOrder)
	}
	return &structuredHandler{cfg: cfg}
}

func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return errors.New("logger: writer not initialized")
	}
	isJSON := h.cfg.format == formatJSON

	fields := make(map[string]any, 16)
	ts := r.Time.UTC()
	fields["ts"] = ts.Truncate(time.Millisecond).Format(timeFormatMillis)
	fields["level"] = normalizeLevel(r.Level.String())
	if isJSON {
		fields["ts_unix_nano"] = ts.UnixNano()
	}
	for _, a := range h.attrs {
		h.collect(fields, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.collect(fields, a)
		return true
	})
	addContextFields(ctx, fields)

	if rid, ok := fields["rid"].(string); ok {
		if compact := CompactRID(rid); compact != rid {
			if isJSON {
				fields["rid_full"] = rid
			}
			fields["rid"] = compact
		}
	}
	if s, _ := fields["event"].(string); s == "" {
		fields["event"] = cmp.Or(r.Message, "unknown")
	}
	if s, _ := fields["component"].(string); s == "" {
		fields["component"] = "app"
	}
	sanitizeEnumerations(fields)

	var line []byte
	if isJSON {
		var err error
		if line, err = formatJSONLine(fields, h.cfg.keyOrder); err != nil {
			return err
		}
	} else {
		line = formatKVLine(fields, h.cfg.keyOrder)
	}
	return h.cfg.writer.Write(r.Level, append(line, '\n'))
}

func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(slices.Clone(h.attrs), attrs...)
	return &clone
}

func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(slices.Clone(h.groups), name)
	return &clone
}

// collect flattens groups into dotted keys and drops empty values.
func (h *structuredHandler) collect(fields map[string]any, attr slog.Attr) {
	flattenAttr(strings.Join(h.groups, "."), attr, func(key string, v slog.Value) {
		if key == "" {
			return
		}
		key, val := normalizeAttr(key, v)
		if val == nil || val == "" {
			delete(fields, key)
			return
		}
		fields[key] = val
	})
}

func flattenAttr(prefix string, attr slog.Attr, fn func(string, slog.Value)) {
	key := attr.Key
	switch {
	case key == "":
		key = prefix
	case prefix != "":
		key = prefix + "." + key
	}
	v := attr.Value.Resolve()
	if v.Kind() != slog.KindGroup {
		fn(key, v)
		return
	}
	for _, child := range v.Group() {
		flattenAttr(key, child, fn)
	}
}

// normalizeAttr converts v into a JSON-friendly value. Durations become
// integer milliseconds under a "_ms" key; strings are trimmed and have bot
// tokens masked.
func normalizeAttr(key string, v slog.Value) (string, any) {
	switch v.Kind() {
	case slog.KindString:
		return key, Redact(strings.TrimSpace(v.String()))
	case slog.KindBool:
		return key, v.Bool()
	case slog.KindInt64:
		return key, v.Int64()
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			return key, int64(u)
		}
		return key, v.Uint64()
	case slog.KindFloat64:
		return key, v.Float64()
	case slog.KindDuration:
		return durationKey(key), RoundMS(v.Duration()).Milliseconds()
	case slog.KindTime:
		return key, v.Time().UTC().Format(time.RFC3339Nano)
	}
	switch x := v.Any().(type) {
	case nil:
		return key, nil
	case error:
		return key, Redact(x.Error())
	case time.Duration:
		return durationKey(key), RoundMS(x).Milliseconds()
	case fmt.Stringer:
		return key, Redact(strings.TrimSpace(x.String()))
	default:
		return key, Redact(fmt.Sprint(x))
	}
}

func durationKey(key string) string {
	switch {
	case key == "duration":
		return "duration_ms"
	case strings.HasSuffix(key, "_ms"):
		return key
	}
	return key + "_ms"
}

func sanitizeEnumerations(fields map[string]any) {
	if s, ok := fields["status"].(string); ok {
		fields["status"], _ = normalizeStatus(s)
	}
	for key, norm := range map[string]func(string) (string, bool){
		"cache":   normalizeCache,
		"outcome": normalizeOutcome,
	} {
		s, ok := fields[key].(string)
		if !ok {
			continue
		}
		if v, valid := norm(s); valid {
			fields[key] = v
		} else {
			delete(fields, key)
		}
	}
}

// orderedKeys lists the keys named in order first, then the rest sorted.
func orderedKeys(fields map[string]any, order []string) []string {
	keys := make([]string, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for _, k := range order {
		if _, ok := fields[k]; ok && !seen[k] {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	var rest []string
	for k := range fields {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	slices.Sort(rest)
	return append(keys, rest...)
}

func formatJSONLine(fields map[string]any, order []string) ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range orderedKeys(fields, order) {
		data, err := json.Marshal(fields[k])
		if err != nil {
			return nil, fmt.Errorf("logger: encode %s: %w", k, err)
		}
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(k))
		b.WriteByte(':')
		b.Write(data)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

func formatKVLine(fields map[string]any, order []string) []byte {
	var b strings.Builder
	for i, k := range orderedKeys(fields, order) {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(k)
		b.WriteByte('=')
		s := fmt.Sprint(fields[k])
		if strings.ContainsFunc(s, needsQuote) {
			s = strconv.Quote(s)
		}
		b.WriteString(s)
	}
	return []byte(b.String())
}

func needsQuote(r rune) bool {
	return r <= ' ' || r == '=' || r == '"'
}

// addContextFields copies correlation data from ctx unless the record set it.
func addContextFields(ctx context.Context, fields map[string]any) {
	if ctx == nil {
		return
	}
	setDefault := func(key string, val any, ok bool) {
		if _, exists := fields[key]; ok && !exists {
			fields[key] = val
		}
	}
	rid := RIDFrom(ctx)
	setDefault("rid", rid, rid != "")
	updateID := UpdateIDFrom(ctx)
	setDefault("update_id", updateID, updateID != 0)
	userID := UserIDFrom(ctx)
	setDefault("user_id", userID, userID != 0)
	chatID := ChatIDFrom(ctx)
	setDefault("chat_id", chatID, chatID != 0)
	handler := HandlerFrom(ctx)
	setDefault("handler", handler, handler != "")
	scenario := ScenarioFrom(ctx)
	setDefault("scenario", scenario, scenario != "")
}
