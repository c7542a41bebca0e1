package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	EnvPracticumToken = "PRACTICUM_TOKEN"
	EnvTelegramToken  = "TELEGRAM_TOKEN"
	EnvTelegramChatID = "TELEGRAM_CHAT_ID"
)

// Credentials are read from the environment only.
type Credentials struct {
	PracticumToken string
	TelegramToken  string
	TelegramChatID string
}

// MissingCredentialsError names every required variable that is unset or blank.
type MissingCredentialsError struct {
	Names []string
}

func (e *MissingCredentialsError) Error() string {
	return "missing required environment variables: " + strings.Join(e.Names, ", ")
}

// LoadCredentials reads the bot's secrets from the environment. When
// envFile exists it is loaded first; variables already set in the process
// environment win over the file.
func LoadCredentials(envFile string) (Credentials, error) {
	if envFile = strings.TrimSpace(envFile); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Credentials{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	creds := Credentials{
		PracticumToken: strings.TrimSpace(os.Getenv(EnvPracticumToken)),
		TelegramToken:  strings.TrimSpace(os.Getenv(EnvTelegramToken)),
		TelegramChatID: strings.TrimSpace(os.Getenv(EnvTelegramChatID)),
	}

	var missing []string
	for _, c := range []struct{ name, val string }{
		{EnvPracticumToken, creds.PracticumToken},
		{EnvTelegramToken, creds.TelegramToken},
		{EnvTelegramChatID, creds.TelegramChatID},
	} {
		if c.val == "" {
			missing = append(missing, c.name)
		}
	}
	if len(missing) > 0 {
		return Credentials{}, &MissingCredentialsError{Names: missing}
	}
	return creds, nil
}
