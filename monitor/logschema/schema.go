package logschema

import (
	"fmt"
	"sort"
	"strings"
)

// Schema 定义每个日志事件所需的关键字段，便于集中校验。
type Schema struct {
	Event    string
	Required []string
}

var schemas = map[string]Schema{
	"stream_connected": {
		Event:    "stream_connected",
		Required: []string{"tokens"},
	},
	"stream_disconnected": {
		Event:    "stream_disconnected",
		Required: []string{"error"},
	},
	"stream_resubscribe": {
		Event: "stream_resubscribe",
	},
	"stream_dial_failed": {
		Event:    "stream_dial_failed",
		Required: []string{"attempt", "error"},
	},
	"poll_result": {
		Event:    "poll_result",
		Required: []string{"view", "records", "elapsed_ms"},
	},
	"view_snapshot": {
		Event:    "view_snapshot",
		Required: []string{"view", "rows", "pending"},
	},
}

// Known 返回所有事件名，便于外部生成文档。
func Known() []string {
	names := make([]string, 0, len(schemas))
	for k := range schemas {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Validate 检查日志字段是否包含 schema 中要求的 key。
func Validate(event string, fields map[string]interface{}) error {
	s, ok := schemas[event]
	if !ok {
		return nil
	}
	var missing []string
	for _, key := range s.Required {
		if _, ok := fields[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("event %s missing fields: %s", event, strings.Join(missing, ","))
	}
	return nil
}
