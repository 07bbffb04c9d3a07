package jobs

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"

	"github.com/rs/zerolog/log"
)

// RegionPrefix prefixes ids of asynchronous region detection jobs.
const RegionPrefix = "roi-"

var idPattern = regexp.MustCompile(`^[a-z]+-[0-9a-f]{32}$`)

// GenerateID creates a new cryptographically random job ID with the given
// prefix. The prefix should include a trailing dash, e.g. "roi-".
func GenerateID(prefix string) string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		log.Fatal().Err(err).Msgf("Failed to generate random %s job ID", prefix)
	}
	return prefix + hex.EncodeToString(b)
}

// ValidID reports whether id has the shape produced by GenerateID.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}
