package core

import (
	"fmt"

	"npsrv/config"
	"npsrv/internal/auth"
	"npsrv/internal/engine"
	"npsrv/internal/metrics"
	"npsrv/internal/registry"
	"npsrv/util"
)

// Build constructs the serve mode from cfg.  cfg must already have
// been validated; Build still reports unparsable listen addresses and
// unreadable credentials.
func Build(cfg *config.Config, logger *util.Logger) (Mode, error) {
	addrs, err := cfg.ListenAddrs()
	if err != nil {
		return nil, err
	}

	authn, err := buildAuthenticator(cfg)
	if err != nil {
		return nil, err
	}

	return &ServeMode{
		Listeners:     addrs,
		Timeout:       cfg.Timeout,
		NoDNS:         cfg.NoDNS,
		Authenticator: authn,
		Engine:        buildEngine(cfg),
		Registry:      registry.Default,
		Policy:        cfg,
		Metrics:       metrics.New(),
		Logger:        logger,
	}, nil
}

// ── helpers ──────────────────────────────────────────────────────────

// buildAuthenticator selects the authentication scheme.
func buildAuthenticator(cfg *config.Config) (auth.Authenticator, error) {
	switch cfg.Auth {
	case "", config.AuthNone:
		return auth.None{}, nil
	case config.AuthPeerCred:
		return auth.PeerCred{}, nil
	case config.AuthPassword:
		creds, err := auth.LoadCredentials(cfg.CredentialsFile)
		if err != nil {
			return nil, err
		}
		return &auth.Password{Creds: creds}, nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Auth)
	}
}

// buildEngine selects the per-connection behaviour.
func buildEngine(cfg *config.Config) engine.Engine {
	if cfg.Execute != "" || cfg.Command != "" {
		return &engine.Exec{
			Program: cfg.Execute,
			Command: cfg.Command,
		}
	}
	return engine.Echo{}
}
