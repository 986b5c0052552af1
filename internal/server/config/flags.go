package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-a string        gRPC bind address (e.g. ":50051")
//	-w string        HTTP bind address (e.g. ":8080")
//	-d string        PostgreSQL DSN
//	-storage string  user store backend (postgres|memory)
//	-sessions string session store backend (postgres|redis|memory)
//	-redis string    Redis address
//	-t int           access token validity, minutes
//	-r int           refresh token validity, minutes
//	-l string        log level
//
// Only flags actually present override earlier layers.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-w", "-d", "-storage", "-sessions", "-redis", "-t", "-r", "-l"})

	fs := flag.NewFlagSet("credkeeper", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "gRPC address and port to run server")
	fs.StringVar(&config.EndpointAddrHTTP, "w", config.EndpointAddrHTTP, "HTTP address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.StorageBackend, "storage", config.StorageBackend, "user store backend")
	fs.StringVar(&config.SessionBackend, "sessions", config.SessionBackend, "session store backend")
	fs.StringVar(&config.RedisAddr, "redis", config.RedisAddr, "redis address")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	accessMinutes := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	refreshMinutes := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh token validity (in minutes)")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("error parsing flags: %w", err)
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.AccessTokenValidityDuration = time.Duration(*accessMinutes) * time.Minute
		case "r":
			config.RefreshTokenValidityDuration = time.Duration(*refreshMinutes) * time.Minute
		}
	})
	return nil
}
