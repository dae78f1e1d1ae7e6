// Command tokengen mints service tokens for the tracker API.
package main

import (
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"inviterank/tracker/internal/config"
	jwtpkg "inviterank/tracker/pkg/jwt"
)

func main() {
	configPath := flag.StringP("config", "c", "config.yaml", "path to the config file")
	subject := flag.StringP("subject", "s", "", "token subject, e.g. the calling service")
	role := flag.StringP("role", "r", string(jwtpkg.RoleIngest), "ingest, reader or admin")
	ttl := flag.Duration("ttl", 0, "token lifetime (default jwt.token_ttl)")
	flag.Parse()

	if *subject == "" {
		fmt.Fprintln(os.Stderr, "--subject is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.JWT.SigningKey == "" {
		fmt.Fprintln(os.Stderr, "jwt.signing_key is not set")
		os.Exit(1)
	}

	manager := jwtpkg.NewManager(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.TokenTTL)
	token, err := manager.GenerateToken(*subject, jwtpkg.Role(*role), *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate token: %v\n", err)
		os.Exit(1)
	}

	lifetime := *ttl
	if lifetime <= 0 {
		lifetime = cfg.JWT.TokenTTL
	}
	fmt.Fprintf(os.Stderr, "role=%s expires=%s\n", *role, time.Now().Add(lifetime).Format(time.RFC3339))
	fmt.Println(token)
}
