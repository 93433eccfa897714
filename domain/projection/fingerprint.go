package projection

import (
	"encoding/hex"
	"encoding/json"

	"lukechampine.com/blake3"
)

// Fingerprint is a BLAKE3 digest of the canonical JSON of elements. Equal
// element lists always produce equal fingerprints because projection
// is order-stable.
func Fingerprint(elements []Element) (string, error) {
	raw, err := json.Marshal(elements)
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
