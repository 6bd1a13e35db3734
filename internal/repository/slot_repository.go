package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Freeeeeet/roomslots/internal/model"
	"github.com/Freeeeeet/roomslots/internal/repository/base"
	"go.uber.org/zap"
)

// SlotRepository owns the bookable instances, one document per instructor.
type SlotRepository struct {
	*base.Repository
	logger *zap.Logger
}

func NewSlotRepository(b *base.Repository, logger *zap.Logger) *SlotRepository {
	return &SlotRepository{
		Repository: b,
		logger:     logger,
	}
}

func slotDocument(instructorID string) string {
	return "slots/" + instructorID
}

// GetByInstructor returns all persisted instances of an instructor ordered by date, hour and room
func (r *SlotRepository) GetByInstructor(ctx context.Context, instructorID string) ([]model.Instance, error) {
	var doc json.RawMessage
	if _, err := r.Read(ctx, slotDocument(instructorID), &doc); err != nil {
		return nil, fmt.Errorf("read slots: %w", err)
	}

	var raw []json.RawMessage
	if len(doc) > 0 {
		if err := json.Unmarshal(doc, &raw); err != nil {
			r.logger.Warn("Ignoring slot document that is not a list",
				zap.String("instructor_id", instructorID),
				zap.Error(err))
			raw = nil
		}
	}

	instances := make([]model.Instance, 0, len(raw))
	for _, item := range raw {
		var inst model.Instance
		if err := json.Unmarshal(item, &inst); err != nil {
			r.logger.Warn("Skipping undecodable instance",
				zap.String("instructor_id", instructorID),
				zap.Error(err))
			continue
		}
		if err := inst.Validate(); err != nil {
			r.logger.Warn("Skipping malformed instance",
				zap.String("instructor_id", instructorID),
				zap.String("instance_id", inst.ID),
				zap.Error(err))
			continue
		}
		if inst.InstructorID != instructorID {
			r.logger.Warn("Skipping instance filed under another instructor",
				zap.String("instructor_id", instructorID),
				zap.String("instance_id", inst.ID))
			continue
		}
		inst.Orphaned = false
		instances = append(instances, inst)
	}

	model.SortInstances(instances)
	return instances, nil
}

// ReplaceAll writes the full instance list of an instructor. Callers that
// derive the list from a previous read must hold the instructor lock; use Update.
func (r *SlotRepository) ReplaceAll(ctx context.Context, instructorID string, instances []model.Instance) error {
	out := make([]model.Instance, len(instances))
	copy(out, instances)
	for i := range out {
		out[i].Orphaned = false
	}
	model.SortInstances(out)

	if err := r.Write(ctx, slotDocument(instructorID), out); err != nil {
		return fmt.Errorf("write slots: %w", err)
	}
	return nil
}

// Update runs an atomic read-modify-write on the instructor's instances.
// fn receives the freshest list; when it returns an error nothing is written.
func (r *SlotRepository) Update(ctx context.Context, instructorID string, fn func([]model.Instance) ([]model.Instance, error)) error {
	return r.WithLock(ctx, slotDocument(instructorID), func(ctx context.Context) error {
		current, err := r.GetByInstructor(ctx, instructorID)
		if err != nil {
			return err
		}

		updated, err := fn(current)
		if err != nil {
			return err
		}

		return r.ReplaceAll(ctx, instructorID, updated)
	})
}

// MergeDate splices instances for one date into the stored list. Records that
// already exist are kept as stored and other dates are never touched.
func (r *SlotRepository) MergeDate(ctx context.Context, instructorID, date string, instances []model.Instance) error {
	incoming := make([]model.Instance, 0, len(instances))
	for _, inst := range instances {
		if inst.Date != date {
			return fmt.Errorf("merge slots: instance %s is not dated %s", inst.ID, date)
		}
		incoming = append(incoming, inst)
	}

	return r.Update(ctx, instructorID, func(current []model.Instance) ([]model.Instance, error) {
		return model.MergeMissing(current, incoming), nil
	})
}
