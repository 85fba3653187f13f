package didkey

import (
	"crypto/elliptic"
	"encoding/base64"

	"siopverifier/pkg/apierrors"
)

// p256CompressedToJwk decodes a compressed P-256 point (as found inside a
// did:key multikey or a publicKeyMultibase verification method) into a JWK
// EC map.
func p256CompressedToJwk(compressed []byte) (map[string]any, error) {
	curve := elliptic.P256()
	x, y := elliptic.UnmarshalCompressed(curve, compressed)
	if x == nil {
		return nil, apierrors.New(apierrors.Malformed, "failed to unmarshal compressed P-256 point")
	}

	byteLen := (curve.Params().BitSize + 7) / 8
	return map[string]any{
		"kty": "EC",
		"crv": "P-256",
		"x":   base64.RawURLEncoding.EncodeToString(padTo(x.Bytes(), byteLen)),
		"y":   base64.RawURLEncoding.EncodeToString(padTo(y.Bytes(), byteLen)),
	}, nil
}

func padTo(b []byte, n int) []byte {
	if len(b) >= n {
		return b
	}
	padded := make([]byte, n)
	copy(padded[n-len(b):], b)
	return padded
}
