package faces

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// Hash is the hex encoded SHA-256 of raw encoding bytes
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func VerifyHash(data []byte, digest string) error {
	if subtle.ConstantTimeCompare([]byte(Hash(data)), []byte(digest)) != 1 {
		return ErrDataIntegrity
	}
	return nil
}

// VerifyAll fails on the first encoding whose bytes no longer match the stored digest
func VerifyAll(items []HashedData) error {
	for _, item := range items {
		if err := VerifyHash(item.Data, item.Hash); err != nil {
			return fmt.Errorf("%w (encoding %d)", err, item.ID)
		}
	}
	return nil
}

type HashedData struct {
	ID   uint64
	Data []byte
	Hash string
}
