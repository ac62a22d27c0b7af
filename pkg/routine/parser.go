package routine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFromFile reads a routine definition from a JSON or YAML file
// (chosen by extension) and validates its structure.
func LoadFromFile(path string) (*Routine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading routine file %q: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return ParseYAML(data)
	default:
		return ParseJSON(data)
	}
}

// ParseJSON parses a routine from its JSON wire form.
func ParseJSON(data []byte) (*Routine, error) {
	var rt Routine
	if err := json.Unmarshal(data, &rt); err != nil {
		return nil, fmt.Errorf("parsing routine JSON: %w", err)
	}
	if err := ValidateStructure(&rt); err != nil {
		return nil, fmt.Errorf("invalid routine: %w", err)
	}
	return &rt, nil
}

// ParseYAML parses a routine from YAML.
func ParseYAML(data []byte) (*Routine, error) {
	var rt Routine
	if err := yaml.Unmarshal(data, &rt); err != nil {
		return nil, fmt.Errorf("parsing routine YAML: %w", err)
	}
	if err := ValidateStructure(&rt); err != nil {
		return nil, fmt.Errorf("invalid routine: %w", err)
	}
	return &rt, nil
}

// ValidateStructure checks routine-level shape: name, parameter
// uniqueness and types, operation kinds and per-kind required fields.
// Placeholder coverage is a separate pass (Validate).
func ValidateStructure(rt *Routine) error {
	if rt.Name == "" {
		return fmt.Errorf("routine is missing 'name'")
	}

	paramNames := make(map[string]bool)
	for i, p := range rt.Parameters {
		if p.Name == "" {
			return fmt.Errorf("parameter %d is missing 'name'", i)
		}
		if paramNames[p.Name] {
			return fmt.Errorf("duplicate parameter name: %q", p.Name)
		}
		paramNames[p.Name] = true

		if !ValidParameterTypes[p.Type] {
			return fmt.Errorf("parameter %q has invalid type %q", p.Name, p.Type)
		}
	}

	if len(rt.Operations) == 0 {
		return fmt.Errorf("routine %q has no operations", rt.Name)
	}

	for i := range rt.Operations {
		if err := validateOperation(i, &rt.Operations[i]); err != nil {
			return err
		}
	}

	return nil
}

func validateOperation(i int, op *Operation) error {
	if op.Kind == "" {
		return fmt.Errorf("operation %d is missing 'type'", i)
	}
	if !ValidOperationKinds[op.Kind] {
		return fmt.Errorf("operation %d has unknown type %q", i, op.Kind)
	}

	require := func(field, value string) error {
		if value == "" {
			return fmt.Errorf("operation %d (%s) is missing '%s'", i, op.Kind, field)
		}
		return nil
	}

	switch op.Kind {
	case OpNavigate:
		return require("url", op.URL)
	case OpClick, OpScroll, OpExtractHTML:
		return require("selector", op.Selector)
	case OpType:
		if err := require("selector", op.Selector); err != nil {
			return err
		}
		return require("text", op.Text)
	case OpFetch:
		if err := require("method", op.Method); err != nil {
			return err
		}
		return require("url", op.URL)
	case OpDownload:
		if err := require("url", op.URL); err != nil {
			return err
		}
		return require("filename", op.Filename)
	case OpEvaluateScript:
		return require("script", op.Script)
	}
	return nil
}
