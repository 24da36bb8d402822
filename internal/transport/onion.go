package transport

import (
	"encoding/base32"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

const (
	// OnionSuffix is the top-level domain of onion services.
	OnionSuffix = ".onion"

	// onionV3Version is the version byte embedded in v3 addresses.
	onionV3Version = 0x03
)

// onionV3Pattern matches a v3 onion host: 56 base32 characters and the suffix.
var onionV3Pattern = regexp.MustCompile(`^[a-z2-7]{56}\.onion$`)

// checksumPrefix is prepended to the key when computing a v3 checksum.
var checksumPrefix = []byte(".onion checksum")

// IsOnionHost reports whether host is a well-formed v3 onion address with a
// valid checksum. Subdomains are accepted. Deprecated v2 addresses are not.
func IsOnionHost(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if !strings.HasSuffix(host, OnionSuffix) {
		return false
	}
	// Keep only the last label before ".onion".
	if i := strings.LastIndex(strings.TrimSuffix(host, OnionSuffix), "."); i >= 0 {
		host = host[i+1:]
	}
	if !onionV3Pattern.MatchString(host) {
		return false
	}

	decoded, err := base32.StdEncoding.DecodeString(strings.ToUpper(strings.TrimSuffix(host, OnionSuffix)))
	if err != nil || len(decoded) != 35 {
		return false
	}
	pubkey, checksum, version := decoded[:32], decoded[32:34], decoded[34]
	if version != onionV3Version {
		return false
	}
	want := onionChecksum(pubkey, version)
	return checksum[0] == want[0] && checksum[1] == want[1]
}

// OnionHostFromKey encodes an ed25519 public key as a v3 onion host.
// It returns "" when pubkey is not 32 bytes.
func OnionHostFromKey(pubkey []byte) string {
	if len(pubkey) != 32 {
		return ""
	}
	data := make([]byte, 0, 35)
	data = append(data, pubkey...)
	data = append(data, onionChecksum(pubkey, onionV3Version)...)
	data = append(data, onionV3Version)
	return strings.ToLower(base32.StdEncoding.EncodeToString(data)) + OnionSuffix
}

// onionChecksum returns the first two bytes of
// SHA3-256(".onion checksum" || pubkey || version).
func onionChecksum(pubkey []byte, version byte) []byte {
	data := make([]byte, 0, len(checksumPrefix)+len(pubkey)+1)
	data = append(data, checksumPrefix...)
	data = append(data, pubkey...)
	data = append(data, version)
	sum := sha3.Sum256(data)
	return sum[:2]
}
