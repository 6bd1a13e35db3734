package model

// Contact holds the delivery addresses of an actor.
type Contact struct {
	ActorID        string `json:"actor_id"`
	Email          string `json:"email"`
	TelegramChatID int64  `json:"telegram_chat_id"`
}

// AssignmentRelation lists the instructors an actor may book from.
type AssignmentRelation struct {
	ActorID       string   `json:"actor_id"`
	InstructorIDs []string `json:"instructor_ids"`
}

// Allows checks if instructorID appears in the relation
func (r AssignmentRelation) Allows(instructorID string) bool {
	for _, id := range r.InstructorIDs {
		if id == instructorID {
			return true
		}
	}
	return false
}
