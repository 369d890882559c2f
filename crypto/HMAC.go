package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
)

func hmacGeneric(buf, key []byte, algo Hash) ([]byte, error) {
	switch algo {
	case HashSHA256:
		mac := hmac.New(sha256.New, key)
		mac.Write(buf)
		return mac.Sum(nil), nil
	case HashSHA512:
		mac := hmac.New(sha512.New, key)
		mac.Write(buf)
		return mac.Sum(nil), nil
	default:
		return nil, fmt.Errorf("crypto: unsupported HMAC hash algorithm %d", algo)
	}
}
