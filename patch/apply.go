package patch

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	jsonpatch "github.com/evanphx/json-patch/v5"
)

// Apply validates ops against guard and applies them to current. current is
// never modified; a rejected or failing patch returns the zero value.
func Apply[T any](current T, ops []Operation, guard Guard) (T, error) {
	var zero T
	if len(ops) == 0 {
		return current, nil
	}
	if len(guard.Allowed) == 0 {
		return zero, fmt.Errorf("operation 0: %w: %q", ErrPathNotAllowed, ops[0].Path)
	}
	if err := ValidatePatchOperations(ops, guard.allowedSet()); err != nil {
		return zero, err
	}
	currentJSON, err := json.Marshal(current)
	if err != nil {
		return zero, fmt.Errorf("failed to marshal current state: %w", err)
	}
	if err := ValidateSetOnce(currentJSON, ops, guard.onceSet()); err != nil {
		return zero, err
	}
	return applyJSON[T](currentJSON, ops)
}

func applyJSON[T any](currentJSON []byte, ops []Operation) (T, error) {
	var zero T

	ops = FixOperation(currentJSON, ops)

	patchJSON, err := json.Marshal(ops)
	if err != nil {
		return zero, fmt.Errorf("failed to marshal patch operations: %w", err)
	}

	p, err := jsonpatch.DecodePatch(patchJSON)
	if err != nil {
		return zero, fmt.Errorf("failed to decode patch: %w", err)
	}

	modifiedJSON, err := p.Apply(currentJSON)
	if err != nil {
		return zero, fmt.Errorf("failed to apply patch: %w", err)
	}

	var result T
	if err := json.Unmarshal(modifiedJSON, &result); err != nil {
		return zero, fmt.Errorf("type mismatch: patch would result in invalid type: %w", err)
	}

	return result, nil
}

// FixOperation turns replaces of absent members into adds, so patches stay
// valid against documents that omit empty fields.
func FixOperation(currentJSON []byte, ops []Operation) []Operation {
	var doc any
	if err := json.Unmarshal(currentJSON, &doc); err != nil {
		return ops
	}

	fixed := make([]Operation, 0, len(ops))
	for _, op := range ops {
		if op.Op == OperationReplace && !pathExists(doc, op.Path) {
			op.Op = OperationAdd
		}
		fixed = append(fixed, op)
	}

	return fixed
}

func pathExists(doc any, path string) bool {
	v, ok := lookup(doc, path)
	return ok && v != nil
}

func lookup(doc any, path string) (any, bool) {
	if path == "" {
		return doc, true
	}
	if !strings.HasPrefix(path, "/") {
		return nil, false
	}

	tokens := strings.Split(path[1:], "/")
	cur := doc
	for _, token := range tokens {
		token = strings.ReplaceAll(token, "~1", "/")
		token = strings.ReplaceAll(token, "~0", "~")
		switch node := cur.(type) {
		case map[string]any:
			value, ok := node[token]
			if !ok {
				return nil, false
			}
			cur = value
		case []any:
			index, err := strconv.Atoi(token)
			if err != nil || index < 0 || index >= len(node) {
				return nil, false
			}
			cur = node[index]
		default:
			return nil, false
		}
	}

	return cur, true
}
