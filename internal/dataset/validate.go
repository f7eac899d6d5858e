package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidRecord is wrapped by every validation failure.
var ErrInvalidRecord = errors.New("invalid training record")

// Validate checks that v, a decoded JSON value, has the training record
// shape: an object with a non-empty "contents" array whose elements each
// carry a "role" of user or model and a non-empty "parts" array whose first
// element has a "text" key.
func Validate(v any) error {
	obj, ok := v.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: not an object", ErrInvalidRecord)
	}

	raw, ok := obj["contents"]
	if !ok {
		return fmt.Errorf("%w: missing contents", ErrInvalidRecord)
	}
	contents, ok := raw.([]any)
	if !ok || len(contents) == 0 {
		return fmt.Errorf("%w: contents must be a non-empty array", ErrInvalidRecord)
	}

	for i, c := range contents {
		turn, ok := c.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: contents[%d] is not an object", ErrInvalidRecord, i)
		}
		role, hasRole := turn["role"]
		parts, hasParts := turn["parts"]
		if !hasRole || !hasParts {
			return fmt.Errorf("%w: contents[%d] missing role or parts", ErrInvalidRecord, i)
		}

		list, ok := parts.([]any)
		if !ok || len(list) == 0 {
			return fmt.Errorf("%w: contents[%d].parts must be a non-empty array", ErrInvalidRecord, i)
		}
		first, ok := list[0].(map[string]any)
		if !ok {
			return fmt.Errorf("%w: contents[%d].parts[0] is not an object", ErrInvalidRecord, i)
		}
		if _, ok := first["text"]; !ok {
			return fmt.Errorf("%w: contents[%d].parts[0] missing text", ErrInvalidRecord, i)
		}

		if r, _ := role.(string); r != RoleUser && r != RoleModel {
			return fmt.Errorf("%w: contents[%d] has role %v", ErrInvalidRecord, i, role)
		}
	}
	return nil
}

// Decode validates v and converts it to a Record.
func Decode(v any) (Record, error) {
	if err := Validate(v); err != nil {
		return Record{}, err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return rec, nil
}
