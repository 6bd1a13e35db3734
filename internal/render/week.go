package render

import (
	"bytes"
	"fmt"
	"image/color"
	"time"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"github.com/Freeeeeet/roomslots/internal/model"
)

// Layout constants
const (
	imageWidth       = 1400
	imageHeight      = 900
	headerHeight     = 70
	dayHeaderHeight  = 30
	leftLabelsWidth  = 60
	legendWidth      = 130
	dayPaddingX      = 4
	slotBorderRadius = 5.0
	shadowOffset     = 2.0
	totalDaysInWeek  = 7
)

var (
	bgColor          = color.RGBA{245, 246, 248, 255}
	textColor        = color.RGBA{80, 85, 90, 220}
	hourLabelColor   = color.RGBA{110, 115, 120, 200}
	hourLineColor    = color.NRGBA{200, 200, 200, 255}
	todayBgColor     = color.NRGBA{255, 99, 71, 60}
	evenDayColor     = color.NRGBA{240, 240, 240, 255}
	oddDayColor      = color.NRGBA{228, 228, 228, 255}
	currentTimeColor = color.NRGBA{255, 80, 80, 200}

	slotOpenColor       = color.RGBA{133, 193, 85, 220}
	slotBookedColor     = color.RGBA{255, 182, 193, 255}
	slotClosedColor     = color.RGBA{190, 190, 190, 200}
	slotOrphanColor     = color.RGBA{255, 214, 102, 230}
	slotTextColor       = color.RGBA{20, 24, 28, 230}
	slotBookedTextColor = color.RGBA{120, 40, 50, 255}
	slotShadowColor     = color.RGBA{0, 0, 0, 20}
)

// WeekOptions controls the rendered grid.
type WeekOptions struct {
	Title     string
	FirstHour int
	LastHour  int
	// Now marks today's column and the current time line. Zero disables both.
	Now time.Time
}

type grid struct {
	weekStart  time.Time
	firstHour  int
	hours      int
	dayWidth   float64
	cellHeight float64
}

// WeekPNG draws the instances of the Monday-based week starting at weekStart.
func WeekPNG(weekStart time.Time, instances []model.Instance, opts WeekOptions) ([]byte, error) {
	if opts.LastHour < opts.FirstHour {
		return nil, fmt.Errorf("invalid hour range %d..%d", opts.FirstHour, opts.LastHour)
	}

	g := grid{
		weekStart: time.Date(weekStart.Year(), weekStart.Month(), weekStart.Day(), 0, 0, 0, 0, weekStart.Location()),
		firstHour: opts.FirstHour,
		hours:     opts.LastHour - opts.FirstHour + 1,
		dayWidth:  float64(imageWidth-leftLabelsWidth-legendWidth) / totalDaysInWeek,
	}
	g.cellHeight = float64(imageHeight-headerHeight-dayHeaderHeight) / float64(g.hours)

	dc := gg.NewContext(imageWidth, imageHeight)
	dc.SetColor(bgColor)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	todayCol := -1
	if !opts.Now.IsZero() {
		todayCol = g.column(opts.Now.In(weekStart.Location()))
	}

	drawHeader(dc, g, opts.Title)
	drawDays(dc, g, todayCol)
	drawHourLabels(dc, g)
	drawInstances(dc, g, instances)
	if todayCol >= 0 {
		drawCurrentTimeLine(dc, g, opts.Now.In(weekStart.Location()))
	}
	drawLegend(dc)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// column returns the day index of t within the week, or -1.
func (g grid) column(t time.Time) int {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, g.weekStart.Location())
	idx := int(day.Sub(g.weekStart).Hours() / 24)
	if idx < 0 || idx >= totalDaysInWeek {
		return -1
	}
	return idx
}

func (g grid) dayX(col int) float64 {
	return leftLabelsWidth + float64(col)*g.dayWidth
}

func (g grid) hourY(hour float64) float64 {
	return headerHeight + dayHeaderHeight + (hour-float64(g.firstHour))*g.cellHeight
}

func drawHeader(dc *gg.Context, g grid, title string) {
	end := g.weekStart.AddDate(0, 0, totalDaysInWeek-1)
	if title == "" {
		title = "Week"
	}
	dc.SetColor(textColor)
	dc.DrawStringAnchored(title, imageWidth/2, 25, 0.5, 0.5)
	dc.DrawStringAnchored(
		fmt.Sprintf("%s - %s", g.weekStart.Format("02 Jan"), end.Format("02 Jan 2006")),
		imageWidth/2, 48, 0.5, 0.5,
	)
}

func drawDays(dc *gg.Context, g grid, todayCol int) {
	top := float64(headerHeight)
	height := float64(imageHeight - headerHeight)

	for col := 0; col < totalDaysInWeek; col++ {
		x := g.dayX(col)
		if col%2 == 0 {
			dc.SetColor(evenDayColor)
		} else {
			dc.SetColor(oddDayColor)
		}
		dc.DrawRectangle(x, top, g.dayWidth, height)
		dc.Fill()

		if col == todayCol {
			dc.SetColor(todayBgColor)
			dc.DrawRectangle(x, top, g.dayWidth, height)
			dc.Fill()
		}

		day := g.weekStart.AddDate(0, 0, col)
		dc.SetColor(textColor)
		dc.DrawStringAnchored(day.Format("Mon 02.01"), x+g.dayWidth/2, top+dayHeaderHeight/2, 0.5, 0.5)
	}
}

func drawHourLabels(dc *gg.Context, g grid) {
	dc.SetLineWidth(1)
	for i := 0; i <= g.hours; i++ {
		y := g.hourY(float64(g.firstHour + i))
		dc.SetColor(hourLineColor)
		dc.DrawLine(leftLabelsWidth, y, leftLabelsWidth+totalDaysInWeek*g.dayWidth, y)
		dc.Stroke()

		if i < g.hours {
			dc.SetColor(hourLabelColor)
			dc.DrawStringAnchored(fmt.Sprintf("%02d:00", g.firstHour+i), leftLabelsWidth-8, y+10, 1, 0.5)
		}
	}
}

func drawInstances(dc *gg.Context, g grid, instances []model.Instance) {
	type cellKey struct{ col, hour int }
	cells := make(map[cellKey][]model.Instance)
	var order []cellKey

	for _, inst := range instances {
		day, err := time.ParseInLocation(model.DateLayout, inst.Date, g.weekStart.Location())
		if err != nil {
			continue
		}
		col := g.column(day)
		if col < 0 || inst.Hour < g.firstHour || inst.Hour >= g.firstHour+g.hours {
			continue
		}
		key := cellKey{col, inst.Hour}
		if _, ok := cells[key]; !ok {
			order = append(order, key)
		}
		cells[key] = append(cells[key], inst)
	}

	for _, key := range order {
		list := cells[key]
		width := (g.dayWidth - 2*dayPaddingX) / float64(len(list))
		for i, inst := range list {
			x := g.dayX(key.col) + dayPaddingX + float64(i)*width
			drawInstance(dc, inst, x, g.hourY(float64(key.hour)), width, g.cellHeight)
		}
	}
}

func drawInstance(dc *gg.Context, inst model.Instance, x, y, w, h float64) {
	fill := instanceColor(inst)

	dc.SetColor(slotShadowColor)
	dc.DrawRoundedRectangle(x+shadowOffset, y+2+shadowOffset, w-2, h-4, slotBorderRadius)
	dc.Fill()

	dc.SetColor(fill)
	dc.DrawRoundedRectangle(x, y+2, w-2, h-4, slotBorderRadius)
	dc.Fill()

	dc.SetColor(darkenColor(fill, 0.8))
	dc.SetLineWidth(1)
	dc.DrawRoundedRectangle(x, y+2, w-2, h-4, slotBorderRadius)
	dc.Stroke()

	txt := slotTextColor
	if inst.IsBooked() {
		txt = slotBookedTextColor
	}
	dc.SetColor(txt)
	maxChars := int((w - 8) / 7)
	dc.DrawStringAnchored(truncate(inst.Room, maxChars), x+4, y+14, 0, 0)
	if inst.IsBooked() && h > 30 {
		dc.DrawStringAnchored(truncate(inst.BookedBy, maxChars), x+4, y+28, 0, 0)
	}
}

func instanceColor(inst model.Instance) color.RGBA {
	switch {
	case inst.Orphaned:
		return slotOrphanColor
	case inst.IsBooked():
		return slotBookedColor
	case inst.IsOpen():
		return slotOpenColor
	default:
		return slotClosedColor
	}
}

func drawCurrentTimeLine(dc *gg.Context, g grid, now time.Time) {
	hour := float64(now.Hour()) + float64(now.Minute())/60
	if hour < float64(g.firstHour) || hour > float64(g.firstHour+g.hours) {
		return
	}
	y := g.hourY(hour)
	dc.SetColor(currentTimeColor)
	dc.SetLineWidth(2)
	dc.DrawLine(leftLabelsWidth, y, leftLabelsWidth+totalDaysInWeek*g.dayWidth, y)
	dc.Stroke()
}

func drawLegend(dc *gg.Context) {
	x := float64(imageWidth - legendWidth + 12)
	y := float64(imageHeight) - 120

	items := []struct {
		label string
		clr   color.Color
	}{
		{"Open", slotOpenColor},
		{"Booked", slotBookedColor},
		{"Closed", slotClosedColor},
		{"Orphaned", slotOrphanColor},
	}
	for _, item := range items {
		dc.SetColor(item.clr)
		dc.DrawRoundedRectangle(x, y, 20, 14, 3)
		dc.Fill()
		dc.SetColor(textColor)
		dc.DrawStringAnchored(item.label, x+28, y+7, 0, 0.5)
		y += 26
	}
}

func darkenColor(c color.RGBA, factor float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(c.R) * factor),
		G: uint8(float64(c.G) * factor),
		B: uint8(float64(c.B) * factor),
		A: c.A,
	}
}

func truncate(s string, n int) string {
	if n <= 3 || len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
