package console

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/visca/port"
)

func Exit(code int, msg string, args ...any) cli.ExitCoder {
	return cli.Exit(fmt.Sprintf(msg, args...), code)
}

// Exit codes distinguish a camera that refused a request from a connection
// that broke.
const (
	CodeFailure  = 1
	CodeRejected = 2
	CodeFatal    = 3
)

// ExitRequest maps the outcome of a request to an exit code.
func ExitRequest(what string, err error) cli.ExitCoder {
	switch {
	case port.IsNonfatal(err):
		return Exit(CodeRejected, "%s rejected: %s", what, Red(err))
	case port.IsFatal(err):
		return Exit(CodeFatal, "%s failed: %s", what, Red(err))
	}
	return Exit(CodeFailure, "%s: %s", what, Red(err))
}
