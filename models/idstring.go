package models

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"
)

// IDStringPrefixes controls whether PrivateKey/PublicKey/Signature string
// forms are rendered with their "PRI-"/"PUB-"/"SIG-" prefix (§6). The
// original implementation gates this behind a compile-time cargo feature;
// Go has no equivalent at this layer, so it is exposed as a package
// variable; nothing in this module changes it from its default.
// Defaults to true, matching the original's default-enabled feature.
var IDStringPrefixes = true

const (
	privateKeyPrefix = "PRI"
	publicKeyPrefix  = "PUB"
	signaturePrefix  = "SIG"
)

// formatIDString renders data as bs58check, optionally prefixed.
func formatIDString(prefix string, data []byte) string {
	enc := base58.CheckEncode(data, 0)
	if !IDStringPrefixes {
		return enc
	}
	return fmt.Sprintf("%s-%s", prefix, enc)
}

// parseIDString parses a string produced by formatIDString. If the input
// contains exactly one '-', the part before it must match prefix; otherwise
// the whole input is treated as an unprefixed bs58check blob. This mirrors
// signature_impl.rs's FromStr, which falls back to bare parsing whenever the
// "v.len() != 2" split condition isn't met.
func parseIDString(prefix, s string) ([]byte, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return decodeIDBytes(s)
	}
	if parts[0] != prefix {
		return nil, fmt.Errorf("models: wrong prefix, want %q got %q", prefix, parts[0])
	}
	return decodeIDBytes(parts[1])
}

func decodeIDBytes(s string) ([]byte, error) {
	b, _, err := base58.CheckDecode(s)
	if err != nil {
		return nil, fmt.Errorf("models: bs58check parse error: %w", err)
	}
	return b, nil
}
