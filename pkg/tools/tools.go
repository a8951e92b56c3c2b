// Package tools provides the built-in tool set: password generation, token
// generation, wallet generation, and the Octra RPC client. Built-ins register
// through an embedded candidate table; their entrypoints are also exposed by
// name so manifest files can rebind them with custom metadata or tighter
// schemas.
package tools

import (
	"fmt"
	"time"

	"github.com/uzlow/webtools/pkg/manifest"
	"github.com/uzlow/webtools/pkg/registry"
)

// Config carries host settings the built-in tools need.
type Config struct {
	// OctraRPCURL is the default RPC endpoint for the octra_client tool.
	OctraRPCURL string
	// HTTPTimeout bounds outbound RPC calls made by tools.
	HTTPTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.OctraRPCURL == "" {
		c.OctraRPCURL = "https://octra.network"
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = 10 * time.Second
	}
	return c
}

// Candidates returns the built-in tool candidates in presentation order.
func Candidates(cfg Config) []registry.Candidate {
	cfg = cfg.withDefaults()
	return []registry.Candidate{
		passwordCandidate(),
		tokenCandidate(),
		walletCandidate(),
		octraCandidate(cfg),
	}
}

// Source returns the built-ins as an embedded registry source.
func Source(cfg Config) registry.Source {
	return registry.StaticSource(Candidates(cfg))
}

// BindEntrypoints registers the built-in handlers into a handler table so
// manifest files can reference them by entrypoint name.
func BindEntrypoints(table *manifest.HandlerTable, cfg Config) error {
	cfg = cfg.withDefaults()

	bindings := map[string]registry.Handler{
		"generate_password":   generatePassword,
		"generate_tokens":     generateTokens,
		"process_transaction": octraHandler(cfg),
	}
	for name, h := range bindings {
		if err := table.Register(name, h); err != nil {
			return fmt.Errorf("failed to bind entrypoint: %w", err)
		}
	}
	if err := table.RegisterNoArg("generate_wallet", generateWallet); err != nil {
		return fmt.Errorf("failed to bind entrypoint: %w", err)
	}
	return nil
}
