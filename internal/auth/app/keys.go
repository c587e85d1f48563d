package app

import (
	"fmt"
	"log/slog"

	"github.com/luminara-labs/storefront-auth/pkg/cryptox"
)

// ResolveSigningKey turns the configured secret into the HS256 signing key.
//
// Three cases:
//   - Missing or placeholder secret: generate a random ephemeral key. The
//     service still works, but every token dies with the process, which is
//     warned loudly at startup so it never slips into prod.
//   - Secret shorter than the HS256 floor: stretch it with HKDF rather than
//     sign with weak material or refuse to boot.
//   - Adequate secret: used as-is.
func ResolveSigningKey(cfg Config, logger *slog.Logger) ([]byte, error) {
	secret := cfg.TokenSecret

	if secret == "" || secret == TokenSecretPlaceholder {
		key, err := cryptox.NewSigningKey()
		if err != nil {
			return nil, fmt.Errorf("generate ephemeral signing key: %w", err)
		}
		logger.Warn("AUTH_TOKEN_SECRET is not set; using an ephemeral signing key",
			"consequence", "all issued tokens become invalid when this process exits",
		)
		return key, nil
	}

	if len(secret) < cryptox.MinSigningKeyBytes {
		logger.Warn("AUTH_TOKEN_SECRET is shorter than recommended; deriving a stretched key",
			"min_bytes", cryptox.MinSigningKeyBytes,
		)
		key, err := cryptox.StretchKey([]byte(secret))
		if err != nil {
			return nil, fmt.Errorf("stretch signing key: %w", err)
		}
		return key, nil
	}

	return []byte(secret), nil
}
