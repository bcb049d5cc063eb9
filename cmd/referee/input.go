package main

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

//go:embed sample_abstract.txt
var sampleAbstract string

// minInputLength is the size below which reviews tend to be thin.
const minInputLength = 100

var errNoInput = errors.New("no input: pass the abstract as arguments, with --file, with --sample, or on stdin")

// inputSource describes where the abstract comes from.
type inputSource struct {
	Sample bool
	File   string
	Args   []string
	// Stdin is read only when nothing else is given. Nil means no stdin.
	Stdin io.Reader
}

// readInput resolves the abstract text. Precedence: --sample, --file, arguments, stdin.
func readInput(src inputSource) (string, error) {
	var text string
	switch {
	case src.Sample:
		text = sampleAbstract
	case src.File != "":
		data, err := os.ReadFile(src.File)
		if err != nil {
			return "", fmt.Errorf("reading input file: %w", err)
		}
		text = string(data)
	case len(src.Args) > 0:
		text = strings.Join(src.Args, " ")
	case src.Stdin != nil:
		data, err := io.ReadAll(src.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		text = string(data)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", errNoInput
	}
	return text, nil
}

// stdinIfPiped returns os.Stdin when it is not a terminal.
func stdinIfPiped() io.Reader {
	info, err := os.Stdin.Stat()
	if err != nil || info.Mode()&os.ModeCharDevice != 0 {
		return nil
	}
	return os.Stdin
}
