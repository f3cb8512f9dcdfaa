package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// The config file may be JSON or YAML. YAML input is re-encoded as JSON
// up front so a single strict decode path (DisallowUnknownFields) serves
// both formats; yaml.v3 has no equivalent strictness knob.

func isYAMLPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	out, err := json.Marshal(stringifyKeys(doc))
	if err != nil {
		return nil, fmt.Errorf("re-encode yaml as json: %w", err)
	}
	return out, nil
}

// stringifyKeys forces every map key in the decoded document to a string.
// yaml.v3 usually yields map[string]any already, but anchors and merged
// documents can still surface any-keyed maps that json.Marshal rejects.
func stringifyKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, sub := range t {
			t[k] = stringifyKeys(sub)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, sub := range t {
			out[fmt.Sprint(k)] = stringifyKeys(sub)
		}
		return out
	case []any:
		for i, sub := range t {
			t[i] = stringifyKeys(sub)
		}
		return t
	}
	return v
}
