// Command tokenctl issues an access token for an existing subject using the service's
// signing configuration. It is meant for operators and local testing.
//
//	tokenctl -sub 6f1c... -email admin@example.com -roles admin,customer -ttl 15m
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/config"
	"github.com/spec-kit/auth-service/internal/domain"
)

func main() {
	if err := run(os.Args[1:], config.Load, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "tokenctl:", err)
		os.Exit(1)
	}
}

func run(args []string, load func() (*config.Config, error), stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("tokenctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	sub := fs.String("sub", "", "subject (user id) the token is issued for")
	email := fs.String("email", "", "email claim")
	roles := fs.String("roles", string(domain.DefaultRole), "comma separated roles")
	ttl := fs.Duration("ttl", 0, "token lifetime; defaults to AUTH_ACCESS_TOKEN_TTL_MINUTES")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *sub == "" {
		return errors.New("-sub is required")
	}
	if _, err := uuid.Parse(*sub); err != nil {
		return fmt.Errorf("-sub must be a user id: %w", err)
	}

	roleSet, err := domain.ParseRoles(strings.Split(*roles, ","))
	if err != nil {
		return err
	}

	cfg, err := load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Auth.FallbackSecret {
		fmt.Fprintln(stderr, "warning: signing with the development fallback secret")
	}

	lifetime := cfg.Auth.AccessTokenTTL()
	if *ttl > 0 {
		lifetime = *ttl
	}
	tokens := auth.NewTokenManager(auth.TokenConfig{
		Secret: cfg.Auth.JWTSecret,
		Issuer: cfg.Auth.Issuer,
		TTL:    lifetime,
	})

	token, exp, err := tokens.GenerateToken(domain.Identity{ID: *sub, Email: domain.NormalizeEmail(*email)}, roleSet)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, token)
	fmt.Fprintf(stderr, "expires at %s\n", exp.Format(time.RFC3339))
	return nil
}
