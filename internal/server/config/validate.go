package config

import (
	"errors"
	"fmt"
	"slices"

	"golang.org/x/crypto/bcrypt"
)

// MinSecretLength matches auth.MinSecretLength.
const MinSecretLength = 32

var (
	storageBackends = []string{"postgres", "memory"}
	sessionBackends = []string{"postgres", "redis", "memory"}
)

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error

	if len(c.AccessTokenSecret) < MinSecretLength {
		errs = append(errs, fmt.Errorf("access token secret must be at least %d characters", MinSecretLength))
	}
	if len(c.RefreshTokenSecret) < MinSecretLength {
		errs = append(errs, fmt.Errorf("refresh token secret must be at least %d characters", MinSecretLength))
	}
	if c.AccessTokenSecret != "" && c.AccessTokenSecret == c.RefreshTokenSecret {
		errs = append(errs, errors.New("access and refresh token secrets must differ"))
	}
	if c.AccessTokenValidityDuration <= 0 || c.RefreshTokenValidityDuration <= 0 {
		errs = append(errs, errors.New("token validity durations must be positive"))
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}

	if !slices.Contains(storageBackends, c.StorageBackend) {
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.StorageBackend))
	}
	if !slices.Contains(sessionBackends, c.SessionBackend) {
		errs = append(errs, fmt.Errorf("unknown session backend %q", c.SessionBackend))
	}
	if (c.StorageBackend == "postgres" || c.SessionBackend == "postgres") && c.DatabaseDSN == "" {
		errs = append(errs, errors.New("postgres backend requires a database DSN"))
	}
	if c.SessionBackend == "postgres" && c.StorageBackend != "postgres" {
		// sessions.user_id references users(id)
		errs = append(errs, errors.New("postgres session backend requires the postgres storage backend"))
	}
	if c.SessionBackend == "redis" && c.RedisAddr == "" {
		errs = append(errs, errors.New("redis session backend requires a redis address"))
	}

	if c.EndpointAddrGRPC == "" && c.EndpointAddrHTTP == "" {
		errs = append(errs, errors.New("at least one of the gRPC and HTTP endpoints must be enabled"))
	}
	if c.JanitorInterval < 0 {
		errs = append(errs, errors.New("janitor interval must not be negative"))
	}

	return errors.Join(errs...)
}
