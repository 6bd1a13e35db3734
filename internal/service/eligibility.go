package service

import "github.com/Freeeeeet/roomslots/internal/model"

// CanBook reports whether actorID may book slots owned by instructorID.
func CanBook(actorID, instructorID string, relation model.AssignmentRelation) bool {
	if actorID == "" || actorID == instructorID {
		return false
	}
	if relation.ActorID != "" && relation.ActorID != actorID {
		return false
	}
	return relation.Allows(instructorID)
}
