package service

import (
	"crypto/rand"
	"fmt"
	"time"
)

// generateCode returns a fresh 8-character uppercase hex code.
func generateCode() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate access code: %w", err)
	}
	return fmt.Sprintf("%08X", b), nil
}

func utcNow() time.Time {
	return time.Now().UTC()
}
