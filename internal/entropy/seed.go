// Package entropy supplies seeds for terrain generation when none is configured.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"log/slog"
	"time"
)

// Seed returns a non-zero random seed from crypto/rand, falling back to the
// clock if the system source fails.
func Seed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		slog.Warn("crypto/rand unavailable, seeding from clock", "error", err)
		return time.Now().UnixNano() | 1
	}
	// Clear the sign bit so seeds print as positive numbers.
	seed := int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
	if seed == 0 {
		seed = 1
	}
	return seed
}
