package config

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/zeebo/blake3"
)

// Fingerprint returns the BLAKE3 hash of a config file, hex encoded.
// Logged at startup so operators can tell which revision a process runs.
func Fingerprint(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return Digest(data), nil
}

// Digest returns the hex-encoded BLAKE3 hash of data.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
