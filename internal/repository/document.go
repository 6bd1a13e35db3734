package repository

import (
	"context"
	"encoding/json"

	"github.com/Freeeeeet/roomslots/internal/repository/base"
	"go.uber.org/zap"
)

// readEntries loads a keyed document without decoding its values. A document
// that is not a JSON object is logged and read as empty.
func readEntries(ctx context.Context, r *base.Repository, logger *zap.Logger, name string) (map[string]json.RawMessage, error) {
	var doc json.RawMessage
	if _, err := r.Read(ctx, name, &doc); err != nil {
		return nil, err
	}

	entries := map[string]json.RawMessage{}
	if len(doc) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(doc, &entries); err != nil {
		logger.Warn("Ignoring document that is not an object",
			zap.String("document", name),
			zap.Error(err))
		return map[string]json.RawMessage{}, nil
	}
	if entries == nil {
		entries = map[string]json.RawMessage{}
	}
	return entries, nil
}
