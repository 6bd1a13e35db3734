package model

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar date format used in instance identities.
const DateLayout = "2006-01-02"

// SlotDurationMinutes is the only supported slot length.
const SlotDurationMinutes = 60

// idSeparator may not appear in room names or instructor ids.
const idSeparator = "|"

// ErrMalformedInstanceID is returned by ParseInstanceID.
var ErrMalformedInstanceID = errors.New("malformed instance id")

// ErrInstanceShape is returned by Instance.Validate for records violating the booking invariants.
var ErrInstanceShape = errors.New("invalid instance shape")

type SlotState string

const (
	SlotStateOpen   SlotState = "open"   // available, not booked
	SlotStateClosed SlotState = "closed" // not offered by the instructor
	SlotStateBooked SlotState = "booked"
)

// InstanceID is the deterministic identity of a bookable instance.
type InstanceID struct {
	Date         string
	Hour         int
	Room         string
	InstructorID string
}

// String renders "2026-10-19|08|Room A|instructor".
func (id InstanceID) String() string {
	return strings.Join([]string{id.Date, fmt.Sprintf("%02d", id.Hour), id.Room, id.InstructorID}, idSeparator)
}

// ParseInstanceID is the inverse of InstanceID.String.
func ParseInstanceID(s string) (InstanceID, error) {
	parts := strings.SplitN(s, idSeparator, 4)
	if len(parts) != 4 {
		return InstanceID{}, fmt.Errorf("%w: %q", ErrMalformedInstanceID, s)
	}

	if _, err := time.Parse(DateLayout, parts[0]); err != nil {
		return InstanceID{}, fmt.Errorf("%w: bad date in %q", ErrMalformedInstanceID, s)
	}

	hour, err := strconv.Atoi(parts[1])
	if err != nil || hour < 0 || hour > 23 {
		return InstanceID{}, fmt.Errorf("%w: bad hour in %q", ErrMalformedInstanceID, s)
	}

	if parts[2] == "" || parts[3] == "" {
		return InstanceID{}, fmt.Errorf("%w: %q", ErrMalformedInstanceID, s)
	}

	return InstanceID{Date: parts[0], Hour: hour, Room: parts[2], InstructorID: parts[3]}, nil
}

// ValidIDPart reports whether s can be embedded in an InstanceID.
func ValidIDPart(s string) bool {
	return strings.TrimSpace(s) != "" && !strings.Contains(s, idSeparator)
}

// Instance is one dated, roomed, hour-long teaching offer.
type Instance struct {
	ID               string     `json:"id"`
	Date             string     `json:"date"`
	Weekday          Weekday    `json:"weekday"`
	Hour             int        `json:"hour"`
	Room             string     `json:"room"`
	DurationMinutes  int        `json:"duration_minutes"`
	Available        bool       `json:"available"`
	BookedBy         string     `json:"booked_by"`
	BookingTimestamp *time.Time `json:"booking_timestamp"`
	InstructorID     string     `json:"instructor_id"`

	// Set at listing time when the template cell no longer belongs to the instructor.
	Orphaned bool `json:"orphaned,omitempty"`
}

// NewInstance builds the default (closed) instance for id.
func NewInstance(id InstanceID, weekday Weekday) Instance {
	return Instance{
		ID:              id.String(),
		Date:            id.Date,
		Weekday:         weekday,
		Hour:            id.Hour,
		Room:            id.Room,
		DurationMinutes: SlotDurationMinutes,
		InstructorID:    id.InstructorID,
	}
}

// Identity recomputes the identity from the record fields.
func (i *Instance) Identity() InstanceID {
	return InstanceID{Date: i.Date, Hour: i.Hour, Room: i.Room, InstructorID: i.InstructorID}
}

// State derives the lifecycle state from the availability and booking fields.
func (i *Instance) State() SlotState {
	switch {
	case i.BookedBy != "":
		return SlotStateBooked
	case i.Available:
		return SlotStateOpen
	default:
		return SlotStateClosed
	}
}

// IsBooked checks if the instance holds a booking
func (i *Instance) IsBooked() bool {
	return i.State() == SlotStateBooked
}

// IsOpen checks if the instance can be booked
func (i *Instance) IsOpen() bool {
	return i.State() == SlotStateOpen
}

// Start returns the lesson start in loc.
func (i *Instance) Start(loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation(DateLayout, i.Date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse instance date: %w", err)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), i.Hour, 0, 0, 0, loc), nil
}

// MarkBooked moves an open instance to the booked state.
func (i *Instance) MarkBooked(actorID string, at time.Time) {
	ts := at.UTC()
	i.BookedBy = actorID
	i.BookingTimestamp = &ts
	i.Available = false
}

// ClearBooking returns a booked instance to the open state.
func (i *Instance) ClearBooking() {
	i.BookedBy = ""
	i.BookingTimestamp = nil
	i.Available = true
}

// Validate checks the record shape and the booking invariants.
func (i *Instance) Validate() error {
	if i.Date == "" || i.Room == "" || i.InstructorID == "" {
		return fmt.Errorf("%w: missing identity fields", ErrInstanceShape)
	}
	if i.ID != i.Identity().String() {
		return fmt.Errorf("%w: id %q does not match fields", ErrInstanceShape, i.ID)
	}
	if (i.BookedBy == "") != (i.BookingTimestamp == nil) {
		return fmt.Errorf("%w: booked_by and booking_timestamp disagree", ErrInstanceShape)
	}
	if i.BookedBy != "" && i.Available {
		return fmt.Errorf("%w: booked instance marked available", ErrInstanceShape)
	}
	return nil
}

// SortInstances orders by date, hour, then room name.
func SortInstances(list []Instance) {
	sort.SliceStable(list, func(a, b int) bool {
		if list[a].Date != list[b].Date {
			return list[a].Date < list[b].Date
		}
		if list[a].Hour != list[b].Hour {
			return list[a].Hour < list[b].Hour
		}
		return list[a].Room < list[b].Room
	})
}

// FindInstance returns the index of the instance with the given id, or -1.
func FindInstance(list []Instance, id string) int {
	for idx := range list {
		if list[idx].ID == id {
			return idx
		}
	}
	return -1
}

// MergeMissing appends incoming instances whose id is not yet present.
// Existing records always win, so concurrent writers never lose state.
func MergeMissing(existing, incoming []Instance) []Instance {
	seen := make(map[string]struct{}, len(existing))
	for _, inst := range existing {
		seen[inst.ID] = struct{}{}
	}

	merged := existing
	for _, inst := range incoming {
		if _, ok := seen[inst.ID]; ok {
			continue
		}
		seen[inst.ID] = struct{}{}
		merged = append(merged, inst)
	}

	SortInstances(merged)
	return merged
}
