package crypto

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrNoPassphrase is returned when no terminal or environment value can
// provide a passphrase.
var ErrNoPassphrase = errors.New("crypto: passphrase unavailable")

// PassphraseSource resolves keystore passphrases. Env names a variable checked
// first; otherwise the passphrase is read from In, without echo when In is a
// terminal.
type PassphraseSource struct {
	Env    string
	In     *os.File
	Prompt io.Writer
}

// Read returns the passphrase for label.
func (s PassphraseSource) Read(label string) (string, error) {
	if s.Env != "" {
		if value, ok := os.LookupEnv(s.Env); ok {
			return value, nil
		}
	}
	in := s.In
	if in == nil {
		in = os.Stdin
	}
	prompt := s.Prompt
	if prompt == nil {
		prompt = os.Stderr
	}
	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprintf(prompt, "Passphrase for %s: ", label)
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("crypto: read passphrase: %w", err)
		}
		return string(raw), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", ErrNoPassphrase
	}
	return strings.TrimRight(line, "\r\n"), nil
}
