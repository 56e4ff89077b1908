package torrent

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// --------------------------------------------------------------------------------------------- //

/*
GeneratePeerID creates this process's 20-byte peer id: a fixed client prefix
followed by random bytes, chosen once per process and shared read-only by
every session thereafter.

Returns:
  - [20]byte: the peer id.
  - error: non-nil if reading random bytes fails.
*/
func GeneratePeerID() ([20]byte, error) {
	const prefix = "-GT0001-"

	var id [20]byte
	copy(id[:], prefix)

	if _, err := crand.Read(id[len(prefix):]); err != nil {
		return id, fmt.Errorf("generating peer id: %w", err)
	}

	return id, nil
}

// --------------------------------------------------------------------------------------------- //

/*
percentEncodeUpper percent-encodes every byte of data as "%XX" using
uppercase hex, regardless of whether the byte is RFC 3986 "unreserved";
url.QueryEscape lowercases hex and leaves some bytes unescaped, which fails
the uppercase round-trip a tracker's info_hash/peer_id query parameters
require.

Parameters:
  - data: Raw bytes to encode.

Returns:
  - string: the percent-encoded string.
*/
func percentEncodeUpper(data []byte) string {
	var sb strings.Builder
	sb.Grow(len(data) * 3)

	const hex = "0123456789ABCDEF"
	for _, b := range data {
		sb.WriteByte('%')
		sb.WriteByte(hex[b>>4])
		sb.WriteByte(hex[b&0x0F])
	}

	return sb.String()
}

// --------------------------------------------------------------------------------------------- //

/*
generateTransactionID creates a random 32-bit transaction id for UDP tracker
requests.

Returns:
  - uint32: a random transaction id.
  - error: non-nil if reading random bytes fails.
*/
func generateTransactionID() (uint32, error) {
	var buf [4]byte
	if _, err := crand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("generating transaction id: %w", err)
	}

	return binary.BigEndian.Uint32(buf[:]), nil
}

// --------------------------------------------------------------------------------------------- //

// newCycleID returns a short correlation id for one announce cycle or peer
// session, stamped into log lines only, never part of any wire message.
func newCycleID() string {
	return uuid.NewString()[:8]
}

func isHTTPTracker(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}

func isUDPTracker(url string) bool {
	return strings.HasPrefix(url, "udp://")
}
