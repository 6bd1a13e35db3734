package service

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/roomslots/internal/model"
	"github.com/Freeeeeet/roomslots/internal/repository"
	"go.uber.org/zap"
)

// ScheduleService administers the weekly template. Changing the template never
// touches instances that already exist.
type ScheduleService struct {
	templateRepo *repository.TemplateRepository
	firstHour    int
	lastHour     int
	logger       *zap.Logger
}

func NewScheduleService(templateRepo *repository.TemplateRepository, firstHour, lastHour int, logger *zap.Logger) *ScheduleService {
	if firstHour < 0 {
		firstHour = 0
	}
	if lastHour > 23 || lastHour < firstHour {
		lastHour = 23
	}
	return &ScheduleService{
		templateRepo: templateRepo,
		firstHour:    firstHour,
		lastHour:     lastHour,
		logger:       logger,
	}
}

// HourRange returns the first and last hour a cell may start at
func (s *ScheduleService) HourRange() (int, int) {
	return s.firstHour, s.lastHour
}

func (s *ScheduleService) validateCell(cell model.ScheduleCell) error {
	if cell.Weekday.Index() < 0 {
		return fmt.Errorf("%w: weekday %q", ErrMalformedInput, cell.Weekday)
	}
	if cell.Hour < s.firstHour || cell.Hour > s.lastHour {
		return fmt.Errorf("%w: hour %d outside %d..%d", ErrMalformedInput, cell.Hour, s.firstHour, s.lastHour)
	}
	if !model.ValidIDPart(cell.Room) {
		return fmt.Errorf("%w: room %q", ErrMalformedInput, cell.Room)
	}
	return nil
}

// AssignCell gives a template cell to an instructor, replacing any previous owner.
func (s *ScheduleService) AssignCell(ctx context.Context, cell model.ScheduleCell, instructorID string) error {
	if err := s.validateCell(cell); err != nil {
		return err
	}
	if !model.ValidIDPart(instructorID) {
		return fmt.Errorf("%w: instructor id %q", ErrMalformedInput, instructorID)
	}

	if err := s.templateRepo.Assign(ctx, cell, instructorID); err != nil {
		return unavailable("assign cell", err)
	}

	s.logger.Info("Template cell assigned",
		zap.String("cell", cell.Key()),
		zap.String("instructor_id", instructorID),
	)
	return nil
}

// ClearCell removes the owner of a template cell.
func (s *ScheduleService) ClearCell(ctx context.Context, cell model.ScheduleCell) error {
	if err := s.validateCell(cell); err != nil {
		return err
	}

	if err := s.templateRepo.Assign(ctx, cell, ""); err != nil {
		return unavailable("clear cell", err)
	}

	s.logger.Info("Template cell cleared", zap.String("cell", cell.Key()))
	return nil
}

func (s *ScheduleService) ListTemplate(ctx context.Context) ([]model.ScheduleAssignment, error) {
	cells, err := s.templateRepo.Cells(ctx)
	if err != nil {
		return nil, unavailable("list template", err)
	}
	return cells, nil
}
