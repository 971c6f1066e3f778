package actionfile

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/curatorhq/curator/internal/curatorerr"
)

// asMap normalizes a decoded YAML value to map[string]interface{}. yaml.v3
// decodes mapping nodes into map[string]interface{} when the target is
// interface{}, but a nil node (an omitted `options:`/`filters:` key)
// decodes to nil, which callers treat as "no options given".
func asMap(v interface{}) map[string]interface{} {
	if v == nil {
		return nil
	}
	m, _ := v.(map[string]interface{})
	return m
}

func asSlice(v interface{}) []interface{} {
	if v == nil {
		return nil
	}
	s, _ := v.([]interface{})
	return s
}

func getString(m map[string]interface{}, key, def string) string {
	if v, ok := m[key]; ok && v != nil {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", v)
	}
	return def
}

func getBool(m map[string]interface{}, key string, def bool) bool {
	if v, ok := m[key]; ok && v != nil {
		switch b := v.(type) {
		case bool:
			return b
		case string:
			if parsed, err := strconv.ParseBool(b); err == nil {
				return parsed
			}
		}
	}
	return def
}

func getInt(m map[string]interface{}, key string, def int) int {
	if v, ok := m[key]; ok && v != nil {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		case string:
			if parsed, err := strconv.Atoi(n); err == nil {
				return parsed
			}
		}
	}
	return def
}

func getInt64(m map[string]interface{}, key string, def int64) int64 {
	if v, ok := m[key]; ok && v != nil {
		switch n := v.(type) {
		case int:
			return int64(n)
		case int64:
			return n
		case float64:
			return int64(n)
		case string:
			if parsed, err := strconv.ParseInt(n, 10, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}

func getFloat(m map[string]interface{}, key string, def float64) float64 {
	if v, ok := m[key]; ok && v != nil {
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		case int64:
			return float64(n)
		case string:
			if parsed, err := strconv.ParseFloat(n, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}

func getStringSlice(m map[string]interface{}, key string) []string {
	raw := asSlice(m[key])
	if raw == nil {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		out = append(out, fmt.Sprintf("%v", v))
	}
	return out
}

func getStringMap(m map[string]interface{}, key string) map[string]string {
	raw := asMap(m[key])
	if raw == nil {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}

func getDuration(m map[string]interface{}, key string, def time.Duration) time.Duration {
	if v, ok := m[key]; ok && v != nil {
		switch d := v.(type) {
		case string:
			parsed, err := time.ParseDuration(d)
			if err == nil {
				return parsed
			}
		case int:
			return time.Duration(d) * time.Second
		case float64:
			return time.Duration(d) * time.Second
		}
	}
	return def
}

// getJSON re-marshals a YAML-decoded mapping value (yaml.v3 decodes mappings
// into map[string]interface{}, which encoding/json marshals directly) into
// the raw JSON bytes an action's *JSON struct field expects. Returns nil,
// nil when the key is absent so callers can distinguish "no body given"
// from a marshal failure.
func getJSON(m map[string]interface{}, key string) ([]byte, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, curatorerr.Wrap(curatorerr.ConfigError, "option "+key+" is not valid JSON-representable YAML", err)
	}
	return b, nil
}

func requireString(m map[string]interface{}, key, context string) (string, error) {
	s := getString(m, key, "")
	if s == "" {
		return "", curatorerr.New(curatorerr.ConfigError, context+": missing required option "+key)
	}
	return s, nil
}
