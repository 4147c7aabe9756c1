package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
//	-a string      gRPC bind address (e.g. ":50051")
//	-d string      PostgreSQL DSN
//	-s string      JWT HMAC secret key
//	-t duration    access token validity (e.g. "15m")
//	-r duration    refresh token validity
//	-l string      log level
//	-base-url      public base URL for verification links
//	-expose-code   return verification codes in responses (debug only)
//	-otlp          OTLP/HTTP trace endpoint
//
// Unknown flags are ignored so other components can share os.Args.
func parseFlags(config *Config) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.DurationVar(&config.AccessTokenValidityDuration, "t", config.AccessTokenValidityDuration, "access token validity")
	fs.DurationVar(&config.RefreshTokenValidityDuration, "r", config.RefreshTokenValidityDuration, "refresh token validity")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&config.BaseURL, "base-url", config.BaseURL, "public base URL for verification links")
	fs.BoolVar(&config.ExposeVerificationCode, "expose-code", config.ExposeVerificationCode, "return verification codes in responses (debug only)")
	fs.StringVar(&config.OTLPEndpoint, "otlp", config.OTLPEndpoint, "OTLP/HTTP trace endpoint URL")

	if err := flagx.ParseKnown(fs, os.Args[1:]); err != nil {
		panic(err)
	}
}
