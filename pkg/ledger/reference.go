package ledger

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// GenerateReferenceID builds a human-readable external reference of the form
// REF_<unix-millis>_<random>. Callers may supply their own reference instead;
// deduplication on it is caller policy.
func GenerateReferenceID() string {
	noise := make([]byte, 5)
	if _, err := rand.Read(noise); err != nil {
		// clock-only fallback when the entropy source is unavailable
		return fmt.Sprintf("REF_%d", time.Now().UnixMilli())
	}
	return fmt.Sprintf("REF_%d_%s", time.Now().UnixMilli(), hex.EncodeToString(noise))
}
