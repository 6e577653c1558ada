// Command tokengen prints a bearer token for a user, for local API testing.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/briangreenhill/tourguide/internal/auth"
	"github.com/briangreenhill/tourguide/internal/config"
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	user := flag.String("user", "", "user ID to put in the token subject")
	ttl := flag.Duration("ttl", 0, "token lifetime (defaults to TOKEN_TTL)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET is required")
	}
	if *user == "" {
		log.Fatal().Msg("-user is required")
	}

	lifetime := cfg.TokenTTL
	if *ttl > 0 {
		lifetime = *ttl
	}

	tokens := auth.Tokens{Secret: []byte(cfg.JWTSecret), TTL: lifetime}
	tok, err := tokens.Issue(*user)
	if err != nil {
		log.Fatal().Err(err).Msg("issue token")
	}
	log.Info().Str("user", *user).Str("expires", time.Now().Add(lifetime).Format(time.RFC3339)).Msg("issued token")
	fmt.Println(tok)
}
