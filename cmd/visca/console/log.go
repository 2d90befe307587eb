package console

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/mklimuk/visca"
	"github.com/mklimuk/visca/message"
)

const PictoCamera = "🎥"
const PictoPlug = "🔌"
const PictoCheck = "✅"
const PictoStop = "🚫"

var writer io.Writer
var errWriter io.Writer

func init() {
	writer = os.Stdout
	errWriter = os.Stderr
}

func SetOutput(w, errw io.Writer) {
	writer = w
	errWriter = errw
}

func Errorf(msg string, args ...any) {
	_, _ = fmt.Fprintf(errWriter, "%s: %s\n", Red("ERROR"), fmt.Sprintf(msg, args...))
}

func Warnf(msg string, args ...any) {
	_, _ = fmt.Fprintf(errWriter, "%s: %s\n", Yellow("WARN"), fmt.Sprintf(msg, args...))
}

func Infof(msg string, args ...any) {
	_, _ = fmt.Fprintf(writer, "%s %s\n", White("..."), fmt.Sprintf(msg, args...))
}

func PInfof(picto, msg string, args ...any) {
	_, _ = fmt.Fprintf(writer, "%s %s\n", picto, fmt.Sprintf(msg, args...))
}

func Print(msg string) {
	_, _ = fmt.Fprintln(writer, msg)
}

func Printf(msg string, args ...any) {
	_, _ = fmt.Fprintf(writer, msg, args...)
}

// Status is a visca.StatusHandler printing transitions for the operator.
func Status(s visca.Status, msg string) {
	if msg == "" {
		PInfof(PictoPlug, "camera %s", StatusColor(s))
		return
	}
	PInfof(PictoPlug, "camera %s: %s", StatusColor(s), msg)
}

// Values prints decoded reply values one per line, sorted by name.
func Values(values message.Values) {
	if len(values) == 0 {
		PInfof(PictoCheck, "done")
		return
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	var sb strings.Builder
	for _, name := range names {
		fmt.Fprintf(&sb, "%s: %v\n", Bold(name), Cyan(values[name]))
	}
	Printf("%s", sb.String())
}
