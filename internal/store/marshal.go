package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// marshalDetail converts an entry's detail map to JSON TEXT for storage.
// Go's encoder sorts map keys, so equal maps give equal text.
func marshalDetail(detail map[string]string) (string, error) {
	if len(detail) == 0 {
		return "{}", nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(detail); err != nil {
		return "", fmt.Errorf("marshal detail: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func unmarshalDetail(text string) (map[string]string, error) {
	if text == "" || text == "{}" {
		return nil, nil
	}
	var detail map[string]string
	if err := json.Unmarshal([]byte(text), &detail); err != nil {
		return nil, fmt.Errorf("unmarshal detail: %w", err)
	}
	return detail, nil
}
