// Package display composes the status screen: inside reading, outside
// weather, clock and date.
package display

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"sensornode-go/types"
)

// Placeholder shown for a value that is not known yet.
const Placeholder = "--"

// Frame is one composed screen.
type Frame struct {
	Label   string // inside location
	Inside  string
	Outside string
	Icon    string
	Time    string
	Date    string
}

// Outside is the auxiliary weather reading.
type Outside struct {
	TempC float64
	Icon  string
	Valid bool
}

// Renderer draws a frame.
type Renderer interface {
	Render(Frame) error
}

// Compose formats a frame. inside is the highlighted sensor, the zero record
// when none is highlighted.
func Compose(inside types.SensorRecord, outside Outside, now time.Time) Frame {
	f := Frame{
		Label:   inside.Location,
		Inside:  Placeholder,
		Outside: Placeholder,
		Time:    now.Format("15:04"),
		Date:    now.Format("02.01."),
	}
	if v, err := strconv.ParseFloat(inside.Value, 64); err == nil {
		f.Inside = formatReading(v, inside.Measurand)
	}
	if outside.Valid {
		f.Outside = formatReading(outside.TempC, types.MeasurandTemperature)
		f.Icon = outside.Icon
	}
	return f
}

func formatReading(v float64, m types.Measurand) string {
	if m == types.MeasurandTemperature {
		return fmt.Sprintf("%.1f°", v)
	}
	return fmt.Sprintf("%.1f%s", v, m.Unit())
}

var (
	colorAccent = lipgloss.Color("214")
	colorDim    = lipgloss.Color("243")
	colorRule   = lipgloss.Color("33")
)

// Terminal renders frames as a bordered panel on a writer.
type Terminal struct {
	W     io.Writer
	Width int
}

func (t Terminal) Render(f Frame) error {
	width := t.Width
	if width < 24 {
		width = 24
	}
	label := lipgloss.NewStyle().Foreground(colorDim).Width(10)
	value := lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Align(lipgloss.Right).Width(width - 14)

	outLabel := "outside"
	if f.Icon != "" {
		outLabel = f.Icon
	}
	inLabel := "inside"
	if f.Label != "" {
		inLabel = f.Label
	}
	rows := []string{
		label.Render(outLabel) + value.Render(f.Outside),
		label.Render(inLabel) + value.Render(f.Inside),
		lipgloss.NewStyle().Foreground(colorRule).Render(strings.Repeat("─", width-4)),
		lipgloss.NewStyle().Foreground(colorDim).Width(width - 4).Align(lipgloss.Center).Render(f.Time + "  " + f.Date),
	}
	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorRule).
		Padding(0, 1).
		Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	_, err := io.WriteString(t.W, panel+"\n")
	return err
}
