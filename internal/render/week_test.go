package render

import (
	"bytes"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Freeeeeet/roomslots/internal/model"
)

func TestWeekPNG(t *testing.T) {
	monday := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

	open := model.NewInstance(model.InstanceID{Date: "2026-10-19", Hour: 8, Room: "Room-A", InstructorID: "p1"}, model.Monday)
	open.Available = true
	booked := model.NewInstance(model.InstanceID{Date: "2026-10-21", Hour: 10, Room: "Room-B", InstructorID: "p1"}, model.Wednesday)
	booked.MarkBooked("s1", monday)
	outside := model.NewInstance(model.InstanceID{Date: "2026-10-27", Hour: 8, Room: "Room-A", InstructorID: "p1"}, model.Tuesday)

	data, err := WeekPNG(monday, []model.Instance{open, booked, outside}, WeekOptions{
		Title:     "p1",
		FirstHour: 8,
		LastHour:  20,
		Now:       time.Date(2026, 10, 20, 12, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, imageWidth, img.Bounds().Dx())
	assert.Equal(t, imageHeight, img.Bounds().Dy())
}

func TestWeekPNG_BadRange(t *testing.T) {
	_, err := WeekPNG(time.Now(), nil, WeekOptions{FirstHour: 10, LastHour: 9})
	require.Error(t, err)
}

func TestGridColumn(t *testing.T) {
	g := grid{weekStart: time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, 0, g.column(time.Date(2026, 10, 19, 23, 0, 0, 0, time.UTC)))
	assert.Equal(t, 6, g.column(time.Date(2026, 10, 25, 1, 0, 0, 0, time.UTC)))
	assert.Equal(t, -1, g.column(time.Date(2026, 10, 26, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, -1, g.column(time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "Room-A", truncate("Room-A", 10))
	assert.Equal(t, "Lecture...", truncate("Lecture Hall 101", 10))
}
