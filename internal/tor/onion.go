package tor

import (
	"encoding/base32"
	"fmt"
	"net"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Onion address constants.
const (
	// OnionV3Length is the length of a v3 onion address without the suffix.
	OnionV3Length = 56

	// OnionV3TotalLength is the length including the ".onion" suffix.
	OnionV3TotalLength = 62

	// OnionV3Version is the version byte of v3 onion addresses.
	OnionV3Version = 0x03

	// OnionSuffix is the suffix of all onion addresses.
	OnionSuffix = ".onion"
)

var (
	onionV3Pattern = regexp.MustCompile(`^[a-z2-7]{56}\.onion$`)
	onionV2Pattern = regexp.MustCompile(`^[a-z2-7]{16}\.onion$`)
)

// checksumPrefix is prepended to the public key in the v3 checksum.
var checksumPrefix = []byte(".onion checksum")

// IsValidV3Address reports whether address is a v3 onion address with a
// correct version byte and checksum. Case is ignored.
func IsValidV3Address(address string) bool {
	address = strings.ToLower(address)
	if !onionV3Pattern.MatchString(address) {
		return false
	}

	decoded, err := base32.StdEncoding.DecodeString(strings.ToUpper(strings.TrimSuffix(address, OnionSuffix)))
	if err != nil || len(decoded) != 35 {
		return false
	}

	// pubkey (32) | checksum (2) | version (1)
	pubkey, checksum, version := decoded[:32], decoded[32:34], decoded[34]
	if version != OnionV3Version {
		return false
	}
	want := computeV3Checksum(pubkey, version)
	return checksum[0] == want[0] && checksum[1] == want[1]
}

// computeV3Checksum returns the first two bytes of
// SHA3-256(".onion checksum" || pubkey || version).
func computeV3Checksum(pubkey []byte, version byte) []byte {
	data := make([]byte, 0, len(checksumPrefix)+len(pubkey)+1)
	data = append(data, checksumPrefix...)
	data = append(data, pubkey...)
	data = append(data, version)

	hash := sha3.Sum256(data)
	return hash[:2]
}

// IsV2Address reports whether address has the format of a v2 onion address.
func IsV2Address(address string) bool {
	return onionV2Pattern.MatchString(strings.ToLower(address))
}

// ValidateOnionHost checks the host part of a URL authority. Hosts outside
// .onion are always accepted. Subdomains of an onion service are allowed,
// so "www.<addr>.onion" is validated as "<addr>.onion".
func ValidateOnionHost(host string) error {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if !strings.HasSuffix(host, OnionSuffix) {
		return nil
	}

	labels := strings.Split(strings.TrimSuffix(host, OnionSuffix), ".")
	address := labels[len(labels)-1] + OnionSuffix

	if IsValidV3Address(address) {
		return nil
	}
	if IsV2Address(address) {
		return fmt.Errorf("%w: %s", ErrV2AddressDeprecated, host)
	}
	return fmt.Errorf("%w: %s", ErrInvalidOnionAddress, host)
}

// ComputeV3AddressFromPublicKey returns the v3 onion address of an ed25519
// public key.
func ComputeV3AddressFromPublicKey(pubkey []byte) (string, error) {
	if len(pubkey) != 32 {
		return "", ErrInvalidOnionAddress
	}

	data := make([]byte, 35)
	copy(data[:32], pubkey)
	copy(data[32:34], computeV3Checksum(pubkey, OnionV3Version))
	data[34] = OnionV3Version

	return strings.ToLower(base32.StdEncoding.EncodeToString(data)) + OnionSuffix, nil
}
