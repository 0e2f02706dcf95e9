// Package bootstrap prepares a fresh deployment for first use.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"sonar/internal/store"
)

// Run mints an initial API key when the api_keys table is empty, so a
// fresh deployment can authenticate without manual SQL. The raw key is
// logged exactly once; only its hash is stored. Idempotent and safe to
// run on every boot.
func Run(ctx context.Context, st *store.Store, logger *slog.Logger) error {
	if st == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	n, err := st.CountAPIKeys(ctx)
	if err != nil {
		return fmt.Errorf("count api keys: %w", err)
	}
	if n > 0 {
		return nil
	}

	raw, key, err := st.CreateAPIKey(ctx, "bootstrap", 0, 0)
	if err != nil {
		return fmt.Errorf("create bootstrap key: %w", err)
	}

	logger.Warn("no API keys found, minted an initial key; store it now, it will not be shown again",
		"name", key.Name,
		"api_key", raw,
	)
	return nil
}
