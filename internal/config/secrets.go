// internal/config/secrets.go
//
// Vault reference resolution.
//
// A value of the form `vault:<mount>/<path>#<key>` is replaced with the
// KV-v2 secret it points at.  Only the fields that may carry credentials are
// inspected: the bot token, the webhook secret, the ipinfo token, and the
// database DSN.  Plain values pass through untouched, so a deployment without
// Vault never needs a client.

package config

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const vaultPrefix = "vault:"

// SecretSource is the subset of *vault.Client used here.
type SecretSource interface {
	GetKV(ctx context.Context, secretPath, key string, ttl time.Duration) (string, error)
}

// NeedsVault reports whether any secret-bearing field holds a vault: ref.
func NeedsVault(c *Config) bool {
	for _, p := range secretFields(c) {
		if strings.HasPrefix(*p, vaultPrefix) {
			return true
		}
	}
	return false
}

// ResolveSecrets replaces every vault: reference in place.  src may be nil
// when NeedsVault is false.
func ResolveSecrets(ctx context.Context, c *Config, src SecretSource) error {
	for _, p := range secretFields(c) {
		ref, ok := strings.CutPrefix(*p, vaultPrefix)
		if !ok {
			continue
		}
		if src == nil {
			return fmt.Errorf("secret %q requires vault, but no client is configured", ref)
		}
		path, key, ok := strings.Cut(ref, "#")
		if !ok || path == "" || key == "" {
			return fmt.Errorf("malformed vault ref %q: want vault:<path>#<key>", ref)
		}
		val, err := src.GetKV(ctx, path, key, 0)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", ref, err)
		}
		*p = val
	}
	return nil
}

func secretFields(c *Config) []*string {
	return []*string{
		&c.Telegram.Token,
		&c.Telegram.WebhookSecret,
		&c.Geo.IPInfoToken,
		&c.Database.DSN,
	}
}
