package config

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

const redacted = "********"

var secretKeys = []string{"api_key", "token", "password", "secret_key", "access_key"}

// Dump writes the effective configuration as YAML with credentials masked.
func (c *Config) Dump(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(redact(c.settings)); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}

func redact(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			if isSecret(k) {
				if s, ok := val.(string); ok && s == "" {
					out[k] = ""
					continue
				}
				out[k] = redacted
				continue
			}
			out[k] = redact(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = redact(val)
		}
		return out
	default:
		return v
	}
}

func isSecret(key string) bool {
	key = strings.ToLower(key)
	if strings.HasSuffix(key, "_env") {
		return false
	}
	for _, s := range secretKeys {
		if strings.HasSuffix(key, s) {
			return true
		}
	}
	return false
}
