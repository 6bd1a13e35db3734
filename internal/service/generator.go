package service

import (
	"fmt"
	"sort"
	"time"

	"github.com/Freeeeeet/roomslots/internal/model"
)

// Expand returns the identity a template cell takes on date for an instructor.
func Expand(cell model.ScheduleCell, date, instructorID string) model.InstanceID {
	return model.InstanceID{
		Date:         date,
		Hour:         cell.Hour,
		Room:         cell.Room,
		InstructorID: instructorID,
	}
}

// Generate derives the instructor's instances for one date.
//
// Cells assigned to the instructor on the date's weekday yield one instance
// each; a persisted record with the same identity wins, otherwise the instance
// starts closed. Dates before today only keep booked instances. Booked records
// whose cell is no longer assigned to the instructor are appended as orphaned.
func Generate(cells []model.ScheduleAssignment, date string, persisted []model.Instance, instructorID, today string) ([]model.Instance, error) {
	day, err := time.Parse(model.DateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("%w: date %q", ErrMalformedInput, date)
	}
	weekday := model.WeekdayOf(day)
	past := date < today

	stored := make(map[string]model.Instance, len(persisted))
	for _, inst := range persisted {
		if inst.Date == date && inst.InstructorID == instructorID {
			stored[inst.ID] = inst
		}
	}

	out := make([]model.Instance, 0, len(cells))
	live := make(map[string]struct{}, len(cells))
	for _, a := range cells {
		if a.Cell.Weekday != weekday || a.InstructorID != instructorID {
			continue
		}

		id := Expand(a.Cell, date, instructorID).String()
		if _, dup := live[id]; dup {
			continue
		}
		live[id] = struct{}{}

		inst, ok := stored[id]
		if !ok {
			inst = model.NewInstance(Expand(a.Cell, date, instructorID), weekday)
		}
		inst.Orphaned = false

		if past && !inst.IsBooked() {
			continue
		}
		out = append(out, inst)
	}

	for id, inst := range stored {
		if _, ok := live[id]; ok || !inst.IsBooked() {
			continue
		}
		inst.Orphaned = true
		out = append(out, inst)
	}

	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Hour != out[b].Hour {
			return out[a].Hour < out[b].Hour
		}
		return out[a].Room < out[b].Room
	})

	return out, nil
}
