package logs

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Filter selects log lines. Empty fields match everything.
type Filter struct {
	Item      string
	Stage     string
	RunID     string
	EventType string
	// Level is the minimum level: debug, info, warn or error.
	Level string
}

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

// Empty reports whether the filter matches every line.
func (f Filter) Empty() bool {
	return f == Filter{}
}

// Match reports whether line passes the filter. Lines that cannot be parsed
// only pass an empty filter.
func (f Filter) Match(line string) bool {
	if f.Empty() {
		return true
	}
	rec, ok := parse(line)
	if !ok {
		return false
	}
	if f.Level != "" {
		want, known := levelRank[strings.ToLower(f.Level)]
		if known && levelRank[rec.level] < want {
			return false
		}
	}
	return matchField(f.Item, rec.fields["item"]) &&
		matchField(f.Stage, rec.fields["stage"]) &&
		matchField(f.RunID, rec.fields["run_id"]) &&
		matchField(f.EventType, rec.fields["event_type"])
}

func matchField(want, got string) bool {
	return want == "" || want == got
}

type record struct {
	level  string
	fields map[string]string
}

func parse(line string) (record, bool) {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "{") {
		return parseJSON(line)
	}
	return parseConsole(line)
}

func parseJSON(line string) (record, bool) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return record{}, false
	}
	rec := record{fields: make(map[string]string, len(raw))}
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			rec.fields[k] = val
		case float64:
			rec.fields[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			rec.fields[k] = strconv.FormatBool(val)
		}
	}
	rec.level = strings.ToLower(rec.fields["level"])
	return rec, true
}

// parseConsole reads "TS LEVEL [component: ][\[item\] ]message k=v ...".
func parseConsole(line string) (record, bool) {
	ts, rest, ok := strings.Cut(line, " ")
	if !ok || ts == "" {
		return record{}, false
	}
	level, rest, _ := strings.Cut(rest, " ")
	level = strings.ToLower(level)
	if _, known := levelRank[level]; !known {
		return record{}, false
	}
	rec := record{level: level, fields: map[string]string{}}

	if head, tail, found := strings.Cut(rest, ": "); found && !strings.ContainsAny(head, " =[") {
		rec.fields["component"] = head
		rest = tail
	}
	if strings.HasPrefix(rest, "[") {
		if end := strings.Index(rest, "] "); end > 0 {
			rec.fields["item"] = rest[1:end]
			rest = rest[end+2:]
		}
	}
	for key, value := range scanPairs(rest) {
		rec.fields[key] = value
	}
	return rec, true
}

// scanPairs extracts key=value tokens, honoring Go-quoted values.
func scanPairs(s string) map[string]string {
	out := map[string]string{}
	for i := 0; i < len(s); {
		eq := strings.IndexByte(s[i:], '=')
		if eq < 0 {
			break
		}
		keyStart := strings.LastIndexByte(s[i:i+eq], ' ') + 1
		key := s[i+keyStart : i+eq]
		j := i + eq + 1
		var value string
		if j < len(s) && s[j] == '"' {
			quoted, err := strconv.QuotedPrefix(s[j:])
			if err != nil {
				break
			}
			value, _ = strconv.Unquote(quoted)
			j += len(quoted)
		} else {
			end := strings.IndexByte(s[j:], ' ')
			if end < 0 {
				end = len(s) - j
			}
			value = s[j : j+end]
			j += end
		}
		if key != "" {
			out[key] = value
		}
		i = j
	}
	return out
}
