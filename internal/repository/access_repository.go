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

const assignmentsDocument = "assignments"

// AccessRepository stores which instructors each actor may book from.
type AccessRepository struct {
	*base.Repository
	logger *zap.Logger
}

func NewAccessRepository(b *base.Repository, logger *zap.Logger) *AccessRepository {
	return &AccessRepository{Repository: b, logger: logger}
}

// GetRelation loads the eligibility relation of an actor. An unknown actor gets an empty relation.
func (r *AccessRepository) GetRelation(ctx context.Context, actorID string) (model.AssignmentRelation, error) {
	all, err := r.load(ctx)
	if err != nil {
		return model.AssignmentRelation{}, err
	}

	return model.AssignmentRelation{
		ActorID:       actorID,
		InstructorIDs: append([]string(nil), all[actorID]...),
	}, nil
}

// GrantAccess adds instructorID to the actor's list. Granting twice is a no-op.
func (r *AccessRepository) GrantAccess(ctx context.Context, actorID, instructorID string) error {
	return r.modify(ctx, func(all map[string][]string) {
		for _, id := range all[actorID] {
			if id == instructorID {
				return
			}
		}
		list := append(all[actorID], instructorID)
		sort.Strings(list)
		all[actorID] = list
	})
}

// RevokeAccess removes instructorID from the actor's list.
func (r *AccessRepository) RevokeAccess(ctx context.Context, actorID, instructorID string) (bool, error) {
	removed := false
	err := r.modify(ctx, func(all map[string][]string) {
		var list []string
		for _, id := range all[actorID] {
			if id == instructorID {
				removed = true
				continue
			}
			list = append(list, id)
		}
		if len(list) == 0 {
			delete(all, actorID)
			return
		}
		all[actorID] = list
	})
	return removed, err
}

// load decodes the document entry by entry; an entry that is not a list of
// ids is logged and treated as absent.
func (r *AccessRepository) load(ctx context.Context) (map[string][]string, error) {
	raw, err := readEntries(ctx, r.Repository, r.logger, assignmentsDocument)
	if err != nil {
		return nil, fmt.Errorf("read assignments: %w", err)
	}

	all := make(map[string][]string, len(raw))
	for actorID, value := range raw {
		var ids []string
		if err := json.Unmarshal(value, &ids); err != nil {
			r.logger.Warn("Skipping malformed assignment entry",
				zap.String("actor_id", actorID),
				zap.Error(err))
			continue
		}
		all[actorID] = ids
	}
	return all, nil
}

func (r *AccessRepository) modify(ctx context.Context, fn func(map[string][]string)) error {
	return r.WithLock(ctx, assignmentsDocument, func(ctx context.Context) error {
		all, err := r.load(ctx)
		if err != nil {
			return err
		}

		fn(all)

		if err := r.Write(ctx, assignmentsDocument, all); err != nil {
			return fmt.Errorf("write assignments: %w", err)
		}
		return nil
	})
}
