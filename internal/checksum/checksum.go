package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
)

// Hasher accumulates bytes and yields a hex digest. It exists so callers
// can hash a stream they are already copying, without a second read.
type Hasher struct {
	h hash.Hash
}

// New returns a streaming SHA-256 hasher.
func New() *Hasher {
	return &Hasher{h: sha256.New()}
}

// Write implements io.Writer.
func (s *Hasher) Write(p []byte) (int, error) {
	return s.h.Write(p)
}

// SumHex returns the hex-encoded digest of everything written so far.
func (s *Hasher) SumHex() string {
	return hex.EncodeToString(s.h.Sum(nil))
}

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// SumFile returns the hex-encoded SHA-256 digest of the file at path,
// streaming the contents rather than loading them into memory. The digest
// covers bytes only, never metadata.
func SumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("checksum: open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("checksum: read %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
