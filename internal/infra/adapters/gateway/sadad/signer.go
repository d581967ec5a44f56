package sadad

import (
	"bytes"
	"crypto/des"
	"encoding/base64"
	"fmt"

	"iran-payment/internal/domain"
)

// Sign produces the Sadad request signature: base64 of the plaintext
// encrypted with DES-EDE3 in ECB mode under the base64-decoded terminal key.
// Deterministic by construction, so re-signing the token during verification
// reproduces the exact value that authenticated the purchase.
func Sign(plaintext, encodedKey string) (string, error) {
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return "", fmt.Errorf("%w: terminal key is not valid base64", domain.ErrInvalidConfiguration)
	}
	block, err := des.NewTripleDESCipher(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidConfiguration, err)
	}

	bs := block.BlockSize()
	padded := pkcs7Pad([]byte(plaintext), bs)
	out := make([]byte, len(padded))
	for i := 0; i < len(padded); i += bs {
		block.Encrypt(out[i:i+bs], padded[i:i+bs])
	}
	return base64.StdEncoding.EncodeToString(out), nil
}

func pkcs7Pad(b []byte, bs int) []byte {
	n := bs - len(b)%bs
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}
