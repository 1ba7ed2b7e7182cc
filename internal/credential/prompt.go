package credential

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrNoTerminal is returned by PromptToken when stdin is not a terminal.
var ErrNoTerminal = errors.New("no terminal available for token prompt")

// PromptToken asks for the API token on the terminal with echo disabled.
func PromptToken(in *os.File, out io.Writer) (string, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return "", ErrNoTerminal
	}

	fmt.Fprint(out, "API token: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("reading token: %w", err)
	}

	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", fmt.Errorf("token is empty")
	}
	return token, nil
}

// ReadToken reads a token from r, for piped input. Only the first line is used.
func ReadToken(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading token: %w", err)
	}
	token := strings.TrimSpace(line)
	if token == "" {
		return "", fmt.Errorf("token is empty")
	}
	return token, nil
}
