package backendsim

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
)

// MinSecretLength is the shortest signing key accepted outside development.
const MinSecretLength = 32

var knownWeakSecrets = []string{
	"maintsync-simulator-secret",
	"changeme",
	"secret",
	"password",
	"test",
	"dev",
	"development",
}

// ValidateSecret checks a token signing key. Development mode accepts the
// known weak keys with a warning.
func ValidateSecret(secret string, isDev bool) error {
	if secret == "" {
		return errors.New("signing secret is required")
	}

	// Weak keys are checked before length so development can still use them.
	for _, weak := range knownWeakSecrets {
		if secret == weak {
			if isDev {
				log.Warn().Msg("using a default signing secret, not for production use")
				return nil
			}
			return errors.New("default or weak signing secret not allowed outside development")
		}
	}

	if len(secret) < MinSecretLength {
		return fmt.Errorf("signing secret must be at least %d characters (got %d)", MinSecretLength, len(secret))
	}
	return nil
}

// IsDevelopmentMode reports whether ENVIRONMENT or GO_ENV names a development
// environment.
func IsDevelopmentMode() bool {
	for _, key := range []string{"ENVIRONMENT", "GO_ENV"} {
		switch os.Getenv(key) {
		case "development", "dev":
			return true
		}
	}
	return false
}
