package repository_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Freeeeeet/roomslots/internal/model"
	"github.com/Freeeeeet/roomslots/internal/repository"
	"github.com/Freeeeeet/roomslots/internal/repository/base"
	"github.com/Freeeeeet/roomslots/internal/storage"
)

func newBase(store storage.Store) *base.Repository {
	return base.NewRepository(store, nil, time.Second)
}

func TestTemplateRepository_SkipsMalformedKeys(t *testing.T) {
	store := storage.NewMemoryStore()
	store.SetRaw("schedule", []byte(`{
		"Mon-8-Room A": "p1",
		"Mon-9": "p1",
		"Funday-8-Room A": "p1",
		"Tue-25-Room A": "p1",
		"Tue-10-Lab-2": "p2",
		"Wed-8-Room B": ""
	}`))

	core, logs := observer.New(zapcore.WarnLevel)
	repo := repository.NewTemplateRepository(newBase(store), zap.New(core))

	cells, err := repo.Cells(context.Background())
	require.NoError(t, err)
	require.Equal(t, []model.ScheduleAssignment{
		{Cell: model.ScheduleCell{Weekday: model.Monday, Hour: 8, Room: "Room A"}, InstructorID: "p1"},
		{Cell: model.ScheduleCell{Weekday: model.Tuesday, Hour: 10, Room: "Lab-2"}, InstructorID: "p2"},
	}, cells)
	assert.Equal(t, 3, logs.FilterMessage("Skipping malformed template key").Len())
}

func TestTemplateRepository_SkipsMalformedValues(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	store.SetRaw("schedule", []byte(`{"Mon-8-Room A": "p1", "Tue-9-Room B": 123, "Wed-10-Room C": ["p2"]}`))

	core, logs := observer.New(zapcore.WarnLevel)
	repo := repository.NewTemplateRepository(newBase(store), zap.New(core))

	cells, err := repo.Cells(ctx)
	require.NoError(t, err)
	require.Equal(t, []model.ScheduleAssignment{
		{Cell: model.ScheduleCell{Weekday: model.Monday, Hour: 8, Room: "Room A"}, InstructorID: "p1"},
	}, cells)
	assert.Equal(t, 2, logs.FilterMessage("Skipping malformed template value").Len())

	// assigning another cell keeps the stored entries as they were
	require.NoError(t, repo.Assign(ctx, model.ScheduleCell{Weekday: model.Friday, Hour: 9, Room: "Room D"}, "p3"))
	cells, err = repo.Cells(ctx)
	require.NoError(t, err)
	require.Len(t, cells, 2)

	body, ok := store.Raw("schedule")
	require.True(t, ok)
	assert.Contains(t, string(body), `"Tue-9-Room B":123`)
}

func TestTemplateRepository_DocumentNotAnObject(t *testing.T) {
	store := storage.NewMemoryStore()
	store.SetRaw("schedule", []byte(`["Mon-8-Room A"]`))

	core, logs := observer.New(zapcore.WarnLevel)
	repo := repository.NewTemplateRepository(newBase(store), zap.New(core))

	cells, err := repo.Cells(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cells)
	assert.Equal(t, 1, logs.FilterMessage("Ignoring document that is not an object").Len())
}

func TestTemplateRepository_AssignAndClear(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewTemplateRepository(newBase(storage.NewMemoryStore()), zap.NewNop())

	cell := model.ScheduleCell{Weekday: model.Friday, Hour: 14, Room: "Room C"}
	require.NoError(t, repo.Assign(ctx, cell, "p1"))
	require.NoError(t, repo.Assign(ctx, cell, "p2"))

	cells, err := repo.Cells(ctx)
	require.NoError(t, err)
	require.Len(t, cells, 1)
	assert.Equal(t, "p2", cells[0].InstructorID)

	require.NoError(t, repo.Assign(ctx, cell, ""))
	cells, err = repo.Cells(ctx)
	require.NoError(t, err)
	assert.Empty(t, cells)
}

func instance(date string, hour int, room, instructor string) model.Instance {
	id := model.InstanceID{Date: date, Hour: hour, Room: room, InstructorID: instructor}
	return model.NewInstance(id, model.Monday)
}

func TestSlotRepository_SortsAndSkipsMalformed(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	core, logs := observer.New(zapcore.WarnLevel)
	repo := repository.NewSlotRepository(newBase(store), zap.New(core))

	later := instance("2026-10-20", 9, "Room A", "p1")
	earlier := instance("2026-10-19", 10, "Room B", "p1")
	require.NoError(t, repo.ReplaceAll(ctx, "p1", []model.Instance{later, earlier}))

	body, ok := store.Raw("slots/p1")
	require.True(t, ok)
	// Append a record that breaks the booking invariants and one that does not decode.
	patched := append(body[:len(body)-1], []byte(`,{"id":"2026-10-21|08|Room A|p1","date":"2026-10-21","hour":8,"room":"Room A","instructor_id":"p1","booked_by":"s1","booking_timestamp":null},42]`)...)
	store.SetRaw("slots/p1", patched)

	got, err := repo.GetByInstructor(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, earlier.ID, got[0].ID)
	assert.Equal(t, later.ID, got[1].ID)
	assert.Equal(t, 1, logs.FilterMessage("Skipping malformed instance").Len())
	assert.Equal(t, 1, logs.FilterMessage("Skipping undecodable instance").Len())
}

func TestSlotRepository_MergeDateKeepsExisting(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewSlotRepository(newBase(storage.NewMemoryStore()), zap.NewNop())

	booked := instance("2026-10-19", 8, "Room A", "p1")
	booked.MarkBooked("s1", time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC))
	other := instance("2026-10-26", 8, "Room A", "p1")
	require.NoError(t, repo.ReplaceAll(ctx, "p1", []model.Instance{booked, other}))

	fresh := instance("2026-10-19", 8, "Room A", "p1")
	added := instance("2026-10-19", 9, "Room A", "p1")
	require.NoError(t, repo.MergeDate(ctx, "p1", "2026-10-19", []model.Instance{fresh, added}))

	got, err := repo.GetByInstructor(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "s1", got[0].BookedBy, "stored state must win over the generated default")
	assert.Equal(t, added.ID, got[1].ID)
	assert.Equal(t, other.ID, got[2].ID)

	err = repo.MergeDate(ctx, "p1", "2026-10-20", []model.Instance{fresh})
	require.Error(t, err)
}

func TestSlotRepository_UpdateIsSerialized(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewSlotRepository(newBase(storage.NewMemoryStore()), zap.NewNop())

	var wg sync.WaitGroup
	for hour := 0; hour < 20; hour++ {
		wg.Add(1)
		go func(hour int) {
			defer wg.Done()
			err := repo.Update(ctx, "p1", func(list []model.Instance) ([]model.Instance, error) {
				return append(list, instance("2026-10-19", hour, "Room A", "p1")), nil
			})
			if err != nil {
				t.Error(err)
			}
		}(hour)
	}
	wg.Wait()

	got, err := repo.GetByInstructor(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, got, 20, "no concurrent update may be lost")
	for i, inst := range got {
		assert.Equal(t, i, inst.Hour)
	}
}

func TestSlotRepository_UpdateErrorWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	repo := repository.NewSlotRepository(newBase(store), zap.NewNop())

	err := repo.Update(ctx, "p1", func(list []model.Instance) ([]model.Instance, error) {
		return nil, assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	_, ok := store.Raw("slots/p1")
	assert.False(t, ok)
}

func TestAccessRepository(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewAccessRepository(newBase(storage.NewMemoryStore()), zap.NewNop())

	rel, err := repo.GetRelation(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, rel.InstructorIDs)

	require.NoError(t, repo.GrantAccess(ctx, "s1", "p2"))
	require.NoError(t, repo.GrantAccess(ctx, "s1", "p1"))
	require.NoError(t, repo.GrantAccess(ctx, "s1", "p1"))

	rel, err = repo.GetRelation(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, rel.InstructorIDs)
	assert.True(t, rel.Allows("p2"))

	removed, err := repo.RevokeAccess(ctx, "s1", "p2")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.RevokeAccess(ctx, "s1", "p2")
	require.NoError(t, err)
	assert.False(t, removed)

	rel, err = repo.GetRelation(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, rel.InstructorIDs)
}

func TestAccessRepository_SkipsMalformedEntries(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	store.SetRaw("assignments", []byte(`{"s1": ["p1"], "s2": "p1", "s3": [7]}`))

	core, logs := observer.New(zapcore.WarnLevel)
	repo := repository.NewAccessRepository(newBase(store), zap.New(core))

	rel, err := repo.GetRelation(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, rel.InstructorIDs)

	rel, err = repo.GetRelation(ctx, "s2")
	require.NoError(t, err)
	assert.Empty(t, rel.InstructorIDs)
	assert.Equal(t, 2, logs.FilterMessage("Skipping malformed assignment entry").Len())

	require.NoError(t, repo.GrantAccess(ctx, "s2", "p2"))
	rel, err = repo.GetRelation(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, []string{"p2"}, rel.InstructorIDs)

	rel, err = repo.GetRelation(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, rel.InstructorIDs)
}

func TestContactRepository(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewContactRepository(newBase(storage.NewMemoryStore()), zap.NewNop())

	c, err := repo.GetByActorID(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, c)

	require.NoError(t, repo.Upsert(ctx, model.Contact{ActorID: "s1", Email: "s1@example.org", TelegramChatID: 77}))

	c, err = repo.GetByActorID(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "s1@example.org", c.Email)

	c, err = repo.GetByTelegramID(ctx, 77)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "s1", c.ActorID)

	c, err = repo.GetByTelegramID(ctx, 78)
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestContactRepository_SkipsMalformedEntries(t *testing.T) {
	store := storage.NewMemoryStore()
	store.SetRaw("contacts", []byte(`{"s1": {"telegram_chat_id": 77}, "s2": "nope"}`))

	repo := repository.NewContactRepository(newBase(store), zap.NewNop())

	c, err := repo.GetByTelegramID(context.Background(), 77)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "s1", c.ActorID)

	c, err = repo.GetByActorID(context.Background(), "s2")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestSlotRepository_DocumentNotAList(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	store.SetRaw("slots/p1", []byte(`{"id": "2026-10-19|08|Room A|p1"}`))

	core, logs := observer.New(zapcore.WarnLevel)
	repo := repository.NewSlotRepository(newBase(store), zap.New(core))

	list, err := repo.GetByInstructor(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, 1, logs.FilterMessage("Ignoring slot document that is not a list").Len())

	require.NoError(t, repo.MergeDate(ctx, "p1", "2026-10-19", []model.Instance{instance("2026-10-19", 8, "Room A", "p1")}))
	list, err = repo.GetByInstructor(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestWithLockBoundsTheSection(t *testing.T) {
	b := base.NewRepository(storage.NewMemoryStore(), nil, 50*time.Millisecond)

	err := b.WithLock(context.Background(), "doc", func(ctx context.Context) error {
		deadline, ok := ctx.Deadline()
		require.True(t, ok)
		assert.LessOrEqual(t, time.Until(deadline), base.HoldLimit(50*time.Millisecond))

		<-ctx.Done()
		return ctx.Err()
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
