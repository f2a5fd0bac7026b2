package patch

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrPathNotAllowed = errors.New("path is not in the allowed paths set")
	ErrAlreadySet     = errors.New("field is already set")
)

func ValidatePatchOperations(ops []Operation, allowedPaths map[string]bool) error {
	if len(ops) == 0 {
		return nil
	}
	for i, op := range ops {
		if err := validatePathAllowed(op.Path, allowedPaths); err != nil {
			return fmt.Errorf("operation %d: %w", i, err)
		}
	}
	return nil
}

func validatePathAllowed(path string, allowedPaths map[string]bool) error {
	if len(allowedPaths) == 0 {
		return nil
	}
	if allowedPaths[path] {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrPathNotAllowed, path)
}

// ValidateSetOnce rejects operations that would overwrite a write-once field
// that already holds a value.
func ValidateSetOnce(currentJSON []byte, ops []Operation, once map[string]bool) error {
	if len(once) == 0 || len(ops) == 0 {
		return nil
	}
	var doc any
	if err := json.Unmarshal(currentJSON, &doc); err != nil {
		return fmt.Errorf("failed to unmarshal current state: %w", err)
	}
	for i, op := range ops {
		if !once[op.Path] {
			continue
		}
		if pathExists(doc, op.Path) {
			return fmt.Errorf("operation %d: %w: %q", i, ErrAlreadySet, op.Path)
		}
	}
	return nil
}
