// Package display renders the station status on a character panel.
package display

import (
	"context"
	"fmt"
	"strings"

	"github.com/itohio/gotip/pkg/event"
	"github.com/itohio/gotip/pkg/station"
)

// Width is the number of columns used on each row.
const Width = 16

const barWidth = 10

// Panel is a character display. hd44780i2c.Device satisfies it.
type Panel interface {
	ClearDisplay()
	SetCursor(col, row uint8)
	Print(data []byte)
}

// Lines formats the two status rows.
func Lines(s station.State) [2]string {
	is := "---"
	if s.Connected {
		is = fmt.Sprintf("%3.0f", s.TemperatureControl.Is)
	}
	top := fmt.Sprintf("%sC SET %3.0fC", is, s.TemperatureControl.Set)

	bottom := "SLEEP"
	if !s.Sleep {
		// '!' marks that the over-current guard has tripped since start.
		mark := ' '
		if s.Faults > 0 {
			mark = '!'
		}
		r := s.PowerRatio()
		bottom = fmt.Sprintf("%s%c%3d%%", bar(r), mark, int(r*100+0.5))
	}
	return [2]string{pad(top), pad(bottom)}
}

func bar(ratio float32) string {
	n := int(ratio*barWidth + 0.5)
	return strings.Repeat("#", n) + strings.Repeat(" ", barWidth-n)
}

func pad(s string) string {
	if len(s) >= Width {
		return s[:Width]
	}
	return s + strings.Repeat(" ", Width-len(s))
}

// Display is the display thread.
type Display struct {
	panel Panel
	st    *station.Station
	power *event.Gate
	temp  *event.Listener
	shown [2]string
}

// New creates the display thread.
func New(panel Panel, st *station.Station, src *event.Source, power *event.Gate) *Display {
	return &Display{
		panel: panel,
		st:    st,
		power: power,
		temp:  src.Listen(event.Temp),
	}
}

// Run shows a negotiation banner until power is up, then refreshes the
// status once per temperature sample.
func (d *Display) Run(ctx context.Context) error {
	d.panel.ClearDisplay()
	d.show([2]string{pad("USB-PD ..."), pad("")})

	if err := d.power.Wait(ctx); err != nil {
		return err
	}

	for {
		if _, err := d.temp.Wait(ctx, event.Temp); err != nil {
			return err
		}
		d.show(Lines(d.st.Snapshot()))
	}
}

func (d *Display) show(lines [2]string) {
	for row, line := range lines {
		if line == d.shown[row] {
			continue
		}
		d.panel.SetCursor(0, uint8(row))
		d.panel.Print([]byte(line))
		d.shown[row] = line
	}
}
