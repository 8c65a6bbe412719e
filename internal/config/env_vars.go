package config

import (
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/inschat/auth-service/token"
)

const (
	portEnvVar     = "PORT"
	appNameVar     = "APP_NAME"
	folderEnvVar   = "FOLDER"
	serverSecret   = "AUTH_SERVER_SECRET"
	passwordPepper = "AUTH_PASSWORD_PEPPER"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Inschat Auth")
}

func (EnvVars) GetDataFolder() string {
	return GetEnv(folderEnvVar, "./authdata")
}

var (
	ephemeralSecretOnce sync.Once
	ephemeralSecret     string
)

// GetServerSecret returns the token signing secret. When the environment
// does not supply one, a fresh secret is generated once per process start;
// every previously issued cookie stops validating after a restart under
// that policy, so production deployments must pin the secret externally.
func (EnvVars) GetServerSecret() string {
	if v := os.Getenv(serverSecret); v != "" {
		return v
	}
	ephemeralSecretOnce.Do(func() {
		s, err := token.NewSecret()
		if err != nil {
			panic(fmt.Sprintf("generating server secret: %v", err))
		}
		ephemeralSecret = s
		log.Warn().Msg("AUTH_SERVER_SECRET not set, generated an ephemeral signing secret; outstanding sessions will not survive a restart")
	})
	return ephemeralSecret
}

// GetPasswordPepper returns the optional server-wide password pepper.
func (EnvVars) GetPasswordPepper() string {
	return GetEnv(passwordPepper, "")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
