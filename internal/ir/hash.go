package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainUpsert prefixes instance upsert hashes. The version suffix allows
// the hashed shape to change without colliding with journal rows from older
// runs.
const DomainUpsert = "metamigrate/upsert/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// PayloadHash returns the hex hash of v's canonical JSON under domain.
// Equal payloads hash equally regardless of map iteration or key order.
func PayloadHash(domain string, v any) (string, error) {
	generic, err := Canonicalize(v)
	if err != nil {
		return "", err
	}
	data, err := MarshalCanonical(generic)
	if err != nil {
		return "", fmt.Errorf("payload hash: %w", err)
	}
	return hashWithDomain(domain, data), nil
}

// UpsertHash hashes an instance upsert by its handle and rewritten input.
func UpsertHash(handle MetaobjectHandle, input MetaobjectUpsertInput) (string, error) {
	return PayloadHash(DomainUpsert, map[string]any{
		"handle":     handle,
		"metaobject": input,
	})
}
