// Package storage holds the keyed JSON document stores the repositories sit on.
// A store gives no transactional guarantees; callers that read-modify-write a
// document must serialize themselves (see package lock).
package storage

import (
	"context"
	"encoding/json"
	"fmt"
)

// Store reads and writes named JSON documents.
type Store interface {
	// Read decodes the document into dst. When the document is absent it
	// returns false and leaves dst untouched, so dst acts as the default.
	Read(ctx context.Context, name string, dst any) (bool, error)
	// Write replaces the document with the JSON encoding of src.
	Write(ctx context.Context, name string, src any) error
}

func decode(name string, body []byte, dst any) error {
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decode document %q: %w", name, err)
	}
	return nil
}

func encode(name string, src any) ([]byte, error) {
	body, err := json.Marshal(src)
	if err != nil {
		return nil, fmt.Errorf("encode document %q: %w", name, err)
	}
	return body, nil
}
