package console

import (
	"errors"
	"io"
	"strings"

	"github.com/chzyer/readline"
)

const (
	Yes = "y"
	No  = "n"
)

// YesOrNo asks question and defaults to No on empty input.
func YesOrNo(question string) (string, error) {
	return Prompt(question, No, Yes)
}

// Prompt asks question and returns one of constraints, the first being the
// default.
func Prompt(question string, constraints ...string) (string, error) {
	if len(constraints) == 0 {
		rl, err := readline.New(question)
		if err != nil {
			return "", err
		}
		defer func() { _ = rl.Close() }()
		return rl.Readline()
	}
	var prompt strings.Builder
	prompt.WriteString(question)
	prompt.WriteString(" [")
	prompt.WriteString(strings.ToUpper(constraints[0]))
	for _, c := range constraints[1:] {
		prompt.WriteString("/")
		prompt.WriteString(c)
	}
	prompt.WriteString("]: ")
	rl, err := readline.New(prompt.String())
	if err != nil {
		return "", err
	}
	defer func() { _ = rl.Close() }()
	response, err := rl.Readline()
	if err != nil {
		return "", err
	}
	normalized := strings.ToLower(strings.TrimSpace(response))
	for _, c := range constraints {
		if normalized == c {
			return normalized, nil
		}
	}
	// no constraint matched, return default
	return constraints[0], nil
}

// Shell reads operator lines with history and completion of the first word.
type Shell struct {
	rl *readline.Instance
}

// NewShell starts an interactive prompt completing words, typically command
// verbs, and message names after them.
func NewShell(prompt, historyFile string, verbs []string, names func() []string) (*Shell, error) {
	items := make([]readline.PrefixCompleterInterface, 0, len(verbs))
	for _, v := range verbs {
		items = append(items, readline.PcItem(v, readline.PcItemDynamic(func(string) []string {
			return names()
		})))
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     historyFile,
		AutoComplete:    readline.NewPrefixCompleter(items...),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, err
	}
	return &Shell{rl: rl}, nil
}

// Next returns the next non empty line. It returns io.EOF when the operator
// is done.
func (s *Shell) Next() (string, error) {
	for {
		line, err := s.rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return "", io.EOF
			}
			continue
		}
		if err != nil {
			return "", err
		}
		line = strings.TrimSpace(line)
		if line != "" {
			return line, nil
		}
	}
}

// Stdout returns a writer that does not garble the prompt line, for output
// arriving while the operator types.
func (s *Shell) Stdout() io.Writer {
	return s.rl.Stdout()
}

func (s *Shell) Stderr() io.Writer {
	return s.rl.Stderr()
}

func (s *Shell) Close() error {
	return s.rl.Close()
}
