package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

const keyDigestLen = 16

// Key hashes a canonicalized serialization of the call parameters down to a
// short stable digest so identical generation calls share a cache slot.
// Canonicalization round-trips through map form; encoding/json emits map
// keys in sorted order.
func Key(params any) string {
	raw, err := json.Marshal(params)
	if err != nil {
		raw = []byte(fmt.Sprintf("%+v", params))
	} else {
		var generic any
		if uErr := json.Unmarshal(raw, &generic); uErr == nil {
			if canonical, mErr := json.Marshal(generic); mErr == nil {
				raw = canonical
			}
		}
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])[:keyDigestLen]
}
