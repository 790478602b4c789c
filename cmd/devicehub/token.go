package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/nerrad567/devicehub/internal/auth"
	"github.com/nerrad567/devicehub/internal/infrastructure/config"
)

// runToken issues a signed API token with the configured secret and
// prints it to out.
func runToken(args []string, cfg *config.Config, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(out)
	subject := fs.String("subject", "", "token subject, e.g. the client name (required)")
	role := fs.String("role", string(auth.RoleReader), "reader or writer")
	ttl := fs.Duration("ttl", time.Duration(cfg.Security.JWT.TokenTTL)*time.Minute, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if !cfg.Security.JWT.Enabled() {
		return errors.New("security.jwt.secret is not set (use DEVICEHUB_JWT_SECRET)")
	}
	if *subject == "" {
		return errors.New("-subject is required")
	}

	token, err := auth.GenerateToken(*subject, auth.Role(*role), cfg.Security.JWT.Secret, *ttl)
	if err != nil {
		return fmt.Errorf("issuing token: %w", err)
	}

	fmt.Fprintln(out, token)
	return nil
}
