package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/joho/godotenv"
)

// Environment variables consulted when the flags are absent.
const (
	EnvSender   = "GMAIL_ADDRESS"
	EnvPassword = "GMAIL_APP_PASSWORD"
)

// Sender used for dry runs when no real sender is configured.
const dryRunSender = "dry-run@example.invalid"

// AutoloadEnv loads .env files into the process environment: one from
// the working directory, then one next to each given path. Existing
// variables win; missing files are fine.
func AutoloadEnv(nearby ...string) {
	_ = godotenv.Load()
	for _, p := range nearby {
		if p == "" {
			continue
		}
		_ = godotenv.Load(filepath.Join(filepath.Dir(p), ".env"))
	}
}

// prompter is swapped out in tests; production asks on the terminal.
var prompter = func(message string) (string, error) {
	var answer string
	err := survey.AskOne(&survey.Password{Message: message}, &answer)
	return answer, err
}

// Credentials resolves the sender address and app password: flag value,
// then environment, then (for the password only) a hidden interactive
// prompt. Dry runs never prompt and fall back to a placeholder sender.
func Credentials(sender, password string, dryRun bool) (string, string, error) {
	sender = strings.TrimSpace(sender)
	if sender == "" {
		sender = strings.TrimSpace(os.Getenv(EnvSender))
	}
	if password == "" {
		password = os.Getenv(EnvPassword)
	}

	if dryRun {
		if sender == "" {
			sender = dryRunSender
		}
		return sender, password, nil
	}

	if sender == "" {
		return "", "", fmt.Errorf("sender address is required: pass --sender or set %s", EnvSender)
	}
	if password == "" {
		answer, err := prompter(fmt.Sprintf("App password for %s (input hidden):", sender))
		if err != nil {
			return "", "", fmt.Errorf("read password: %w", err)
		}
		password = answer
	}
	if password == "" {
		return "", "", errors.New("cannot proceed without an app password")
	}
	return sender, password, nil
}
