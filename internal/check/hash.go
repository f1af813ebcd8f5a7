package check

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/planarx/bimhealth/internal/domain"
)

// ObjectHash computes a stable content digest over an object's canonical
// subset (type, name, location, properties). encoding/json writes map keys
// in sorted order, so equal content always serializes identically and two
// objects differing only by id hash the same. Used for duplicate detection
// only; this is not a general identity scheme.
func ObjectHash(obj domain.BIMObject) string {
	payload, err := json.Marshal(obj.CanonicalContent())
	if err != nil {
		// Canonical content is built from decoded JSON values and cannot
		// fail to re-encode; fall back to the empty digest if it ever does.
		payload = nil
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
