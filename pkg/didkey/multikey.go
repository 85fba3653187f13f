package didkey

import (
	"encoding/base64"
	"encoding/binary"

	"github.com/multiformats/go-multibase"

	"siopverifier/pkg/apierrors"
)

// multicodec values for the public-key types this engine needs to resolve
// from a did:key multikey (varint-encoded, per the multikey spec).
const (
	multicodecEd25519PublicKey = 0xed
	multicodecP256PublicKey    = 0x1200
)

// decodeMultikeyJwk decodes a multibase-encoded multikey into a JWK map.
// Supports Ed25519 ('z'/'u' prefixed base58-btc/base64url multikeys) and
// P-256 compressed points, the two key types did:key is used with in this
// engine's supported credential ecosystems.
func decodeMultikeyJwk(multikey string) (map[string]any, error) {
	if len(multikey) == 0 {
		return nil, apierrors.New(apierrors.Malformed, "empty multikey")
	}

	var keyBytes []byte
	switch multikey[0] {
	case 'z':
		_, decoded, err := multibase.Decode(multikey)
		if err != nil {
			return nil, apierrors.Wrap(apierrors.Malformed, err, "failed to decode base58-btc multikey")
		}
		keyBytes = decoded
	case 'u':
		decoded, err := base64.RawURLEncoding.DecodeString(multikey[1:])
		if err != nil {
			return nil, apierrors.Wrap(apierrors.Malformed, err, "failed to decode base64url multikey")
		}
		keyBytes = decoded
	default:
		return nil, apierrors.Newf(apierrors.Malformed, "unsupported multibase prefix: %c", multikey[0])
	}

	code, n := binary.Uvarint(keyBytes)
	if n <= 0 {
		return nil, apierrors.New(apierrors.Malformed, "failed to decode multikey multicodec varint")
	}
	payload := keyBytes[n:]

	switch code {
	case multicodecEd25519PublicKey:
		return map[string]any{
			"kty": "OKP",
			"crv": "Ed25519",
			"x":   base64.RawURLEncoding.EncodeToString(payload),
		}, nil
	case multicodecP256PublicKey:
		return p256CompressedToJwk(payload)
	default:
		return nil, apierrors.Newf(apierrors.Malformed, "unsupported multikey type: multicodec 0x%x", code)
	}
}
