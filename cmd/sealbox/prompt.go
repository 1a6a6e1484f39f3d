package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// terminalPrompter runs the interactive recovery steps on the controlling
// terminal. The secret is printed once; the typed secret is never echoed.
type terminalPrompter struct{}

func (*terminalPrompter) ConfirmSecretSaved(_ context.Context, secret string) (bool, error) {
	fmt.Fprintln(os.Stderr, "Your recovery secret (the only copy, write it down now):")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintf(os.Stderr, "    %s\n", secret)
	fmt.Fprintln(os.Stderr)
	fmt.Fprint(os.Stderr, "Type 'saved' once you have recorded it: ")

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false, err
	}

	return strings.TrimSpace(line) == "saved", nil
}

func (*terminalPrompter) AskRecoverySecret(context.Context) (string, bool, error) {
	defer func() { _, _ = fmt.Fprintln(os.Stderr) }()

	fmt.Fprint(os.Stderr, "Enter recovery secret (or leave empty to skip): ")

	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", false, err
	}

	secret := strings.TrimSpace(string(b))
	if secret == "" {
		return "", false, nil
	}

	return secret, true, nil
}
