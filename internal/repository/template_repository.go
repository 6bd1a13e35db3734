package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/Freeeeeet/roomslots/internal/model"
	"github.com/Freeeeeet/roomslots/internal/repository/base"
	"go.uber.org/zap"
)

const templateDocument = "schedule"

// TemplateRepository stores the weekly template as one document keyed
// "<Weekday>-<Hour>-<Room>" -> instructor id.
type TemplateRepository struct {
	*base.Repository
	logger *zap.Logger
}

// NewTemplateRepository creates a new template repository
func NewTemplateRepository(b *base.Repository, logger *zap.Logger) *TemplateRepository {
	return &TemplateRepository{
		Repository: b,
		logger:     logger,
	}
}

// Cells returns every assigned cell. Malformed keys and values are skipped.
func (r *TemplateRepository) Cells(ctx context.Context) ([]model.ScheduleAssignment, error) {
	raw, err := readEntries(ctx, r.Repository, r.logger, templateDocument)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}

	cells := make([]model.ScheduleAssignment, 0, len(raw))
	for key, value := range raw {
		var instructorID string
		if err := json.Unmarshal(value, &instructorID); err != nil {
			r.logger.Warn("Skipping malformed template value",
				zap.String("key", key),
				zap.Error(err))
			continue
		}
		if instructorID == "" {
			continue
		}

		cell, err := model.ParseCellKey(key)
		if err != nil {
			r.logger.Warn("Skipping malformed template key",
				zap.String("key", key),
				zap.Error(err))
			continue
		}

		cells = append(cells, model.ScheduleAssignment{Cell: cell, InstructorID: instructorID})
	}

	sort.Slice(cells, func(a, b int) bool { return cells[a].Less(cells[b]) })

	return cells, nil
}

// Assign sets the owner of a cell; an empty instructorID clears it.
// Other entries are written back as stored.
func (r *TemplateRepository) Assign(ctx context.Context, cell model.ScheduleCell, instructorID string) error {
	return r.WithLock(ctx, templateDocument, func(ctx context.Context) error {
		raw, err := readEntries(ctx, r.Repository, r.logger, templateDocument)
		if err != nil {
			return fmt.Errorf("read template: %w", err)
		}

		if instructorID == "" {
			delete(raw, cell.Key())
		} else {
			value, err := json.Marshal(instructorID)
			if err != nil {
				return fmt.Errorf("encode template value: %w", err)
			}
			raw[cell.Key()] = value
		}

		if err := r.Write(ctx, templateDocument, raw); err != nil {
			return fmt.Errorf("write template: %w", err)
		}
		return nil
	})
}
