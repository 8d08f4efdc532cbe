package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// promptPassphrase reads a passphrase from the terminal without echo, or a
// line from stdin when it is not a terminal.
func promptPassphrase(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())

	if !term.IsTerminal(fd) {
		return readLine(os.Stdin)
	}

	fmt.Fprint(os.Stderr, prompt)
	pass, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("unable to read passphrase: %w", err)
	}

	if len(pass) == 0 {
		return "", errors.New("empty passphrase")
	}

	return string(pass), nil
}

// readLine returns the first line of r without its line ending.
func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}

	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty passphrase")
	}

	return line, nil
}
