package entity

import (
	"encoding/json"
	"fmt"

	"support-chat-be/internal/pkg/apperror"
)

// Metadata is the open key-value bag on sessions and messages.
// Values are restricted to JSON primitives: string, number, bool or null.
type Metadata map[string]interface{}

func (m Metadata) Validate() error {
	for key, value := range m {
		if key == "" {
			return apperror.Validation("metadata keys must not be empty", nil)
		}
		if !isPrimitive(value) {
			return apperror.Validation(
				fmt.Sprintf("metadata value for %q must be a string, number, bool or null", key),
				map[string]interface{}{"key": key},
			)
		}
	}
	return nil
}

// Merge returns a copy of m overlaid with other. A nil value in other removes the key.
func (m Metadata) Merge(other Metadata) Metadata {
	out := m.Clone()
	if out == nil {
		out = Metadata{}
	}
	for k, v := range other {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}

func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func isPrimitive(v interface{}) bool {
	switch v.(type) {
	case nil, string, bool,
		float32, float64,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		json.Number:
		return true
	}
	return false
}
