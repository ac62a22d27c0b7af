package routine

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

var envRegex = regexp.MustCompile(`^\s*\{\{\s*env\.([A-Za-z0-9_]+)\s*}}\s*$`)

// ResolveVarfile loads a YAML parameter file, resolving {{ env.NAME }}
// indirections against the process environment. Values keep their YAML
// types (string, bool, number) so literal booleans and numbers reach
// coercion untouched.
func ResolveVarfile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading varfile %q: %w", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing varfile YAML from %q: %w", path, err)
	}

	resolved := make(map[string]any, len(raw))
	for key, val := range raw {
		if s, ok := val.(string); ok {
			if m := envRegex.FindStringSubmatch(s); m != nil {
				envVal, exists := os.LookupEnv(m[1])
				if !exists {
					fmt.Fprintf(os.Stderr, "warning: environment variable %q not found for varfile key %q\n", m[1], key)
				}
				resolved[key] = envVal
				continue
			}
		}
		resolved[key] = val
	}
	return resolved, nil
}

// ValidateRequiredValues checks that every required parameter has a
// supplied value before a run is created.
func ValidateRequiredValues(rt *Routine, values map[string]any) error {
	for _, p := range rt.Parameters {
		if !p.Required {
			continue
		}
		if _, ok := values[p.Name]; !ok {
			return fmt.Errorf("required parameter %q has no supplied value", p.Name)
		}
	}
	return nil
}
