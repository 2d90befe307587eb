package console

import (
	"github.com/fatih/color"

	"github.com/mklimuk/visca"
)

// Available ANSI colors
var (
	Yellow = color.New(color.FgYellow).SprintFunc()
	Red    = color.New(color.FgRed).SprintFunc()
	Green  = color.New(color.FgGreen).SprintFunc()
	Cyan   = color.New(color.FgCyan).SprintFunc()
	White  = color.New(color.FgHiWhite).SprintFunc()
	Bold   = color.New(color.Bold).SprintFunc()
)

// StatusColor renders a connection status the way an operator expects to
// see it: green when usable, red when broken.
func StatusColor(s visca.Status) string {
	switch s {
	case visca.StatusOk:
		return Green(s)
	case visca.StatusConnecting:
		return Yellow(s)
	case visca.StatusConnectionFailure:
		return Red(s)
	}
	return White(s)
}
