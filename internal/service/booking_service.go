package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/roomslots/internal/events"
	"github.com/Freeeeeet/roomslots/internal/model"
	"github.com/Freeeeeet/roomslots/internal/repository"
	"go.uber.org/zap"
)

// DefaultCancelWindow is how far ahead of the lesson a booker may still cancel.
const DefaultCancelWindow = 24 * time.Hour

// notifyTimeout bounds the whole notification fan-out after a transition.
const notifyTimeout = 10 * time.Second

// Notifier delivers a message to an actor. Delivery is best effort.
type Notifier interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

type BookingConfig struct {
	// Location is the institution's wall clock; dates and hours are interpreted in it.
	Location     *time.Location
	CancelWindow time.Duration
	Now          func() time.Time
}

type BookingService struct {
	templateRepo *repository.TemplateRepository
	slotRepo     *repository.SlotRepository
	accessRepo   *repository.AccessRepository
	notifier     Notifier
	publisher    events.EventPublisher
	logger       *zap.Logger

	loc          *time.Location
	cancelWindow time.Duration
	now          func() time.Time
}

func NewBookingService(
	templateRepo *repository.TemplateRepository,
	slotRepo *repository.SlotRepository,
	accessRepo *repository.AccessRepository,
	notifier Notifier,
	publisher events.EventPublisher,
	cfg BookingConfig,
	logger *zap.Logger,
) *BookingService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.CancelWindow <= 0 {
		cfg.CancelWindow = DefaultCancelWindow
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if publisher == nil {
		publisher = events.Nop{}
	}

	return &BookingService{
		templateRepo: templateRepo,
		slotRepo:     slotRepo,
		accessRepo:   accessRepo,
		notifier:     notifier,
		publisher:    publisher,
		logger:       logger,
		loc:          cfg.Location,
		cancelWindow: cfg.CancelWindow,
		now:          cfg.Now,
	}
}

// Location returns the time zone instance dates are interpreted in
func (s *BookingService) Location() *time.Location {
	return s.loc
}

// Now returns the service clock in the institution time zone.
func (s *BookingService) Now() time.Time {
	return s.now().In(s.loc)
}

// Today is the current calendar date in the institution time zone.
func (s *BookingService) Today() string {
	return s.Now().Format(model.DateLayout)
}

// ListInstances returns the instructor's instances for a date as seen by
// viewerID. When the instructor views their own date, newly derived instances
// are persisted so later transitions find them by identity; other viewers get
// the same listing without anything being written.
func (s *BookingService) ListInstances(ctx context.Context, viewerID, instructorID, date string) ([]model.Instance, error) {
	return s.listInstances(ctx, instructorID, date, viewerID == instructorID)
}

func (s *BookingService) listInstances(ctx context.Context, instructorID, date string, persist bool) ([]model.Instance, error) {
	if !model.ValidIDPart(instructorID) {
		return nil, fmt.Errorf("%w: instructor id %q", ErrMalformedInput, instructorID)
	}

	cells, err := s.templateRepo.Cells(ctx)
	if err != nil {
		return nil, unavailable("list instances", err)
	}

	persisted, err := s.slotRepo.GetByInstructor(ctx, instructorID)
	if err != nil {
		return nil, unavailable("list instances", err)
	}

	list, err := Generate(cells, date, persisted, instructorID, s.Today())
	if err != nil {
		return nil, err
	}

	if !persist {
		return list, nil
	}

	var fresh []model.Instance
	for _, inst := range list {
		if !inst.Orphaned && model.FindInstance(persisted, inst.ID) < 0 {
			fresh = append(fresh, inst)
		}
	}

	if len(fresh) > 0 {
		if err := s.slotRepo.MergeDate(ctx, instructorID, date, fresh); err != nil {
			// The listing is still correct; the defaults are written again on the next call.
			s.logger.Warn("Failed to persist generated instances",
				zap.String("instructor_id", instructorID),
				zap.String("date", date),
				zap.Error(err))
		}
	}

	return list, nil
}

// ListWeek returns the instructor's instances for the Monday-based week
// containing date. Persistence follows ListInstances.
func (s *BookingService) ListWeek(ctx context.Context, viewerID, instructorID, date string) (time.Time, []model.Instance, error) {
	day, err := time.ParseInLocation(model.DateLayout, date, s.loc)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("%w: date %q", ErrMalformedInput, date)
	}
	monday := day.AddDate(0, 0, -model.WeekdayOf(day).Index())

	var week []model.Instance
	for i := 0; i < len(model.Weekdays); i++ {
		list, err := s.ListInstances(ctx, viewerID, instructorID, monday.AddDate(0, 0, i).Format(model.DateLayout))
		if err != nil {
			return time.Time{}, nil, err
		}
		week = append(week, list...)
	}

	return monday, week, nil
}

// MaterializeAhead writes the default instances of every templated instructor
// for the next days, as if each instructor had viewed them.
func (s *BookingService) MaterializeAhead(ctx context.Context, days int) (int, error) {
	cells, err := s.templateRepo.Cells(ctx)
	if err != nil {
		return 0, unavailable("materialize", err)
	}

	seen := make(map[string]struct{})
	var instructors []string
	for _, a := range cells {
		if _, ok := seen[a.InstructorID]; ok {
			continue
		}
		seen[a.InstructorID] = struct{}{}
		instructors = append(instructors, a.InstructorID)
	}

	start := s.now().In(s.loc)
	total := 0
	var errs []error
	for _, instructorID := range instructors {
		for i := 0; i < days; i++ {
			date := start.AddDate(0, 0, i).Format(model.DateLayout)
			list, err := s.listInstances(ctx, instructorID, date, true)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s %s: %w", instructorID, date, err))
				continue
			}
			total += len(list)
		}
	}

	return total, errors.Join(errs...)
}

// ListBooked returns every booked instance of the instructor across dates.
// Instances whose template cell has moved on are flagged as orphaned.
func (s *BookingService) ListBooked(ctx context.Context, instructorID string) ([]model.Instance, error) {
	cells, err := s.templateRepo.Cells(ctx)
	if err != nil {
		return nil, unavailable("list booked", err)
	}

	persisted, err := s.slotRepo.GetByInstructor(ctx, instructorID)
	if err != nil {
		return nil, unavailable("list booked", err)
	}

	var booked []model.Instance
	for _, inst := range persisted {
		if !inst.IsBooked() {
			continue
		}
		inst.Orphaned = !cellAssigned(cells, inst.Identity())
		booked = append(booked, inst)
	}

	return booked, nil
}

// ListBookable returns the open future instances on date that actorID may book.
func (s *BookingService) ListBookable(ctx context.Context, actorID, date string) ([]model.Instance, error) {
	relation, err := s.accessRepo.GetRelation(ctx, actorID)
	if err != nil {
		return nil, unavailable("list bookable", err)
	}

	now := s.now()
	var out []model.Instance
	for _, instructorID := range relation.InstructorIDs {
		if !CanBook(actorID, instructorID, relation) {
			continue
		}

		list, err := s.listInstances(ctx, instructorID, date, false)
		if err != nil {
			return nil, err
		}

		for _, inst := range list {
			if !inst.IsOpen() || inst.Orphaned {
				continue
			}
			start, err := inst.Start(s.loc)
			if err != nil || start.Before(now) {
				continue
			}
			out = append(out, inst)
		}
	}

	model.SortInstances(out)
	return out, nil
}

// SetAvailability opens or closes one of the instructor's own instances.
func (s *BookingService) SetAvailability(ctx context.Context, instructorID, instanceID string, available bool) (inst *model.Instance, err error) {
	defer func() { observeTransition("set_availability", err) }()

	id, err := model.ParseInstanceID(instanceID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedInput, err)
	}
	if id.InstructorID != instructorID {
		return nil, fmt.Errorf("%w: instance belongs to another instructor", ErrForbidden)
	}

	cells, err := s.templateRepo.Cells(ctx)
	if err != nil {
		return nil, unavailable("set availability", err)
	}
	assigned := cellAssigned(cells, id)
	today := s.Today()

	var result model.Instance
	err = s.slotRepo.Update(ctx, instructorID, func(list []model.Instance) ([]model.Instance, error) {
		idx := model.FindInstance(list, instanceID)
		if idx < 0 {
			if !assigned {
				return nil, fmt.Errorf("%w: instance %s", ErrNotFound, instanceID)
			}
			list = append(list, model.NewInstance(id, weekdayOfDate(id.Date)))
			idx = len(list) - 1
		}

		target := &list[idx]
		if target.IsBooked() {
			return nil, fmt.Errorf("%w: instance is booked", ErrInvalidState)
		}
		if !assigned {
			return nil, fmt.Errorf("%w: instance %s is no longer offered", ErrNotFound, instanceID)
		}
		if target.Date < today {
			return nil, fmt.Errorf("%w: instance date %s is in the past", ErrTemporalViolation, target.Date)
		}

		target.Available = available
		result = *target
		return list, nil
	})
	if err != nil {
		return nil, unavailable("set availability", err)
	}

	s.logger.Info("Availability changed",
		zap.String("instance_id", instanceID),
		zap.String("instructor_id", instructorID),
		zap.Bool("available", available),
	)

	return &result, nil
}

// Book reserves an open instance for actorID.
func (s *BookingService) Book(ctx context.Context, actorID, instanceID string) (inst *model.Instance, err error) {
	defer func() { observeTransition("book", err) }()

	id, err := model.ParseInstanceID(instanceID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedInput, err)
	}
	if !model.ValidIDPart(actorID) {
		return nil, fmt.Errorf("%w: actor id %q", ErrMalformedInput, actorID)
	}

	relation, err := s.accessRepo.GetRelation(ctx, actorID)
	if err != nil {
		return nil, unavailable("book", err)
	}

	cells, err := s.templateRepo.Cells(ctx)
	if err != nil {
		return nil, unavailable("book", err)
	}
	assigned := cellAssigned(cells, id)

	// Checked in order: exists, eligibility, open, not started.
	var result model.Instance
	err = s.slotRepo.Update(ctx, id.InstructorID, func(list []model.Instance) ([]model.Instance, error) {
		idx := model.FindInstance(list, instanceID)
		if !assigned {
			return nil, fmt.Errorf("%w: instance %s", ErrNotFound, instanceID)
		}
		if !CanBook(actorID, id.InstructorID, relation) {
			return nil, fmt.Errorf("%w: %s may not book from %s", ErrForbidden, actorID, id.InstructorID)
		}
		if idx < 0 {
			return nil, fmt.Errorf("%w: instance is closed", ErrInvalidState)
		}

		target := &list[idx]
		switch target.State() {
		case model.SlotStateBooked:
			return nil, ErrSlotNoLongerAvailable
		case model.SlotStateClosed:
			return nil, fmt.Errorf("%w: instance is closed", ErrInvalidState)
		}

		now := s.now()
		start, err := target.Start(s.loc)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedInput, err)
		}
		if start.Before(now) {
			return nil, fmt.Errorf("%w: instance started at %s", ErrTemporalViolation, start.Format(time.RFC3339))
		}

		target.MarkBooked(actorID, now)
		result = *target
		return list, nil
	})
	if err != nil {
		return nil, unavailable("book", err)
	}

	s.logger.Info("Slot booked",
		zap.String("instance_id", instanceID),
		zap.String("instructor_id", id.InstructorID),
		zap.String("actor_id", actorID),
	)

	s.afterTransition(ctx, events.SubjectBookingCreated, actorID, result)
	return &result, nil
}

// Cancel releases a booking. The booker must respect the cancellation window;
// the owning instructor may cancel at any time.
func (s *BookingService) Cancel(ctx context.Context, actorID, instanceID string) (inst *model.Instance, err error) {
	defer func() { observeTransition("cancel", err) }()

	id, err := model.ParseInstanceID(instanceID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedInput, err)
	}

	var (
		result   model.Instance
		bookedBy string
	)
	err = s.slotRepo.Update(ctx, id.InstructorID, func(list []model.Instance) ([]model.Instance, error) {
		idx := model.FindInstance(list, instanceID)
		if idx < 0 {
			return nil, fmt.Errorf("%w: instance %s", ErrNotFound, instanceID)
		}

		target := &list[idx]
		if !target.IsBooked() {
			return nil, fmt.Errorf("%w: instance is not booked", ErrInvalidState)
		}

		switch actorID {
		case target.InstructorID:
		case target.BookedBy:
			start, err := target.Start(s.loc)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrMalformedInput, err)
			}
			if start.Sub(s.now()) < s.cancelWindow {
				return nil, fmt.Errorf("%w: cancellation closes %s before the lesson", ErrTemporalViolation, s.cancelWindow)
			}
		default:
			return nil, fmt.Errorf("%w: only the booker or the instructor may cancel", ErrForbidden)
		}

		bookedBy = target.BookedBy
		target.ClearBooking()
		result = *target
		return list, nil
	})
	if err != nil {
		return nil, unavailable("cancel", err)
	}

	s.logger.Info("Booking canceled",
		zap.String("instance_id", instanceID),
		zap.String("instructor_id", id.InstructorID),
		zap.String("actor_id", actorID),
		zap.String("booked_by", bookedBy),
	)

	notified := result
	notified.BookedBy = bookedBy
	s.afterTransition(ctx, events.SubjectBookingCanceled, actorID, notified)
	return &result, nil
}

// afterTransition runs outside the instructor lock. Failures are logged only.
func (s *BookingService) afterTransition(ctx context.Context, subject, actorID string, inst model.Instance) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	title, body := describe(subject, inst, s.loc)
	for _, recipient := range []string{inst.BookedBy, inst.InstructorID} {
		if s.notifier == nil || recipient == "" {
			continue
		}
		if err := s.notifier.Send(ctx, recipient, title, body); err != nil {
			notificationFailuresTotal.Inc()
			s.logger.Warn("Failed to send notification",
				zap.String("recipient", recipient),
				zap.String("instance_id", inst.ID),
				zap.Error(err))
		}
	}

	err := s.publisher.PublishBooking(ctx, events.BookingEvent{
		EventType:    subject,
		InstanceID:   inst.ID,
		InstructorID: inst.InstructorID,
		ActorID:      actorID,
		BookedBy:     inst.BookedBy,
		Date:         inst.Date,
		Hour:         inst.Hour,
		Room:         inst.Room,
		OccurredAt:   s.now().UTC(),
	})
	if err != nil {
		s.logger.Warn("Failed to publish booking event",
			zap.String("subject", subject),
			zap.String("instance_id", inst.ID),
			zap.Error(err))
	}
}

func describe(subject string, inst model.Instance, loc *time.Location) (string, string) {
	when := fmt.Sprintf("%s %02d:00", inst.Date, inst.Hour)
	if start, err := inst.Start(loc); err == nil {
		when = start.Format("Mon 02 Jan 2006 15:04 MST")
	}

	if subject == events.SubjectBookingCanceled {
		return "Booking canceled",
			fmt.Sprintf("The lesson with %s in %s on %s has been canceled.", inst.InstructorID, inst.Room, when)
	}
	return "Booking confirmed",
		fmt.Sprintf("%s booked the lesson with %s in %s on %s.", inst.BookedBy, inst.InstructorID, inst.Room, when)
}

func cellAssigned(cells []model.ScheduleAssignment, id model.InstanceID) bool {
	weekday := weekdayOfDate(id.Date)
	for _, a := range cells {
		if a.InstructorID == id.InstructorID && a.Cell.Weekday == weekday && a.Cell.Hour == id.Hour && a.Cell.Room == id.Room {
			return true
		}
	}
	return false
}

func weekdayOfDate(date string) model.Weekday {
	day, err := time.Parse(model.DateLayout, date)
	if err != nil {
		return ""
	}
	return model.WeekdayOf(day)
}
