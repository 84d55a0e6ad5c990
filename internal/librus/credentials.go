package librus

import (
	"os"
	"strings"
)

const (
	EnvUsername = "LIBRUS_USERNAME"
	EnvPassword = "LIBRUS_PASSWORD"
)

type Credentials struct {
	Username string
	Password string
}

func CredentialsFromEnv() Credentials {
	return Credentials{
		Username: os.Getenv(EnvUsername),
		Password: os.Getenv(EnvPassword),
	}
}

func (c Credentials) Valid() bool {
	return c.Username != "" && c.Password != ""
}

// MaskedPassword renders the password as asterisks of the same length.
func (c Credentials) MaskedPassword() string {
	return strings.Repeat("*", len([]rune(c.Password)))
}
