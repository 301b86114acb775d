package project

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// ResolvePassword obtains the run-wide password: the OS_PASSWORD
// environment variable, else the first line of passwordFile, else an
// interactive prompt. It is called once per run and the result reused for
// every context.
func ResolvePassword(passwordFile string) (string, error) {
	if password := os.Getenv("OS_PASSWORD"); password != "" {
		return password, nil
	}

	if passwordFile != "" {
		data, err := os.ReadFile(passwordFile)
		if err != nil {
			return "", fmt.Errorf("failed to read password file: %w", err)
		}
		password := strings.TrimSpace(strings.SplitN(string(data), "\n", 2)[0])
		if password == "" {
			return "", fmt.Errorf("password file %s is empty", passwordFile)
		}
		return password, nil
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("no password available: OS_PASSWORD unset, no password file, stdin is not a terminal")
	}

	fmt.Fprint(os.Stderr, "Password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if len(password) == 0 {
		return "", fmt.Errorf("empty password")
	}
	return string(password), nil
}
