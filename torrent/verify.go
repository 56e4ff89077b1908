package torrent

import "crypto/sha1"

// VerifyPiece reports whether the SHA-1 of data matches expected,
// byte-for-byte. The full piece must be buffered before calling this; no
// streaming/partial hashing is exposed, since pieces are small enough
// (typically 256 KiB-4 MiB) that buffering the whole thing is cheap.
func VerifyPiece(data []byte, expected [20]byte) bool {
	return sha1.Sum(data) == expected
}
