package schemas

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// isYAML reports whether a path should be encoded as YAML rather than JSON.
func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// ReadDocument decodes a plan-like document from fs, choosing YAML or JSON by
// file extension.
func ReadDocument(fs afero.Fs, path string, v any) error {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if isYAML(path) {
		err = yaml.Unmarshal(data, v)
	} else {
		err = json.Unmarshal(data, v)
	}
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// WriteDocument encodes v to path on fs, creating parent directories.
func WriteDocument(fs afero.Fs, path string, v any) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(v)
	} else {
		data, err = json.MarshalIndent(v, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return afero.WriteFile(fs, path, data, 0o644)
}

// LoadPlan reads a Plan and checks that every step uses a known action.
func LoadPlan(fs afero.Fs, path string) (*Plan, error) {
	var plan Plan
	if err := ReadDocument(fs, path, &plan); err != nil {
		return nil, err
	}
	if err := plan.Check(); err != nil {
		return nil, fmt.Errorf("invalid plan %s: %w", path, err)
	}
	return &plan, nil
}

// LoadValidatedPlan reads a ValidatedPlan.
func LoadValidatedPlan(fs afero.Fs, path string) (*ValidatedPlan, error) {
	var plan ValidatedPlan
	if err := ReadDocument(fs, path, &plan); err != nil {
		return nil, err
	}
	if err := plan.Plan.Check(); err != nil {
		return nil, fmt.Errorf("invalid plan %s: %w", path, err)
	}
	return &plan, nil
}

// Check verifies the structural integrity of a plan.
func (p *Plan) Check() error {
	seen := make(map[string]bool, len(p.Scenarios))
	for i, sc := range p.Scenarios {
		if strings.TrimSpace(sc.Name) == "" {
			return fmt.Errorf("scenario %d has no name", i)
		}
		if seen[sc.Name] {
			return fmt.Errorf("duplicate scenario name %q", sc.Name)
		}
		seen[sc.Name] = true
		for j, step := range sc.Steps {
			if !step.Action.Valid() {
				return fmt.Errorf("scenario %q step %d: unknown action %q", sc.Name, j+1, step.Action)
			}
		}
	}
	return nil
}
