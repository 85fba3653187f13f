package didkey

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"

	"siopverifier/pkg/apierrors"
)

// LocalResolver resolves did:key and did:jwk identifiers (and bare
// multikeys) without any network call: the key material is embedded in the
// identifier itself.
type LocalResolver struct{}

// NewLocalResolver returns a LocalResolver.
func NewLocalResolver() *LocalResolver {
	return &LocalResolver{}
}

// Resolve synthesizes a single-verification-method DidDocument from a
// self-contained DID. The document's sole verification method id is the
// DID with any `#fragment` removed, so FindVerificationMethod matches a kid
// equal to that bare DID; a kid of just the multikey, or of the form
// `did#fragment`, does not match it.
func (l *LocalResolver) Resolve(_ context.Context, did string) (*DidDocument, error) {
	bare := StripDID(did)

	var jwk map[string]any
	var err error

	switch {
	case strings.HasPrefix(bare, "did:key:"):
		jwk, err = decodeMultikeyJwk(strings.TrimPrefix(bare, "did:key:"))
	case strings.HasPrefix(bare, "did:jwk:"):
		jwk, err = decodeDidJwk(strings.TrimPrefix(bare, "did:jwk:"))
	case strings.HasPrefix(bare, "z"), strings.HasPrefix(bare, "u"):
		jwk, err = decodeMultikeyJwk(bare)
	default:
		return nil, apierrors.Newf(apierrors.Malformed, "unsupported local DID method: %s", did)
	}
	if err != nil {
		return nil, err
	}

	return &DidDocument{
		ID: bare,
		VerificationMethod: []VerificationMethod{
			{ID: bare, Type: "JsonWebKey2020", Controller: bare, PublicKeyJwk: jwk},
		},
	}, nil
}

func decodeDidJwk(encoded string) (map[string]any, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		decoded, err = base64.URLEncoding.DecodeString(encoded)
		if err != nil {
			return nil, apierrors.Wrap(apierrors.Malformed, err, "failed to decode did:jwk")
		}
	}

	var jwk map[string]any
	if err := json.Unmarshal(decoded, &jwk); err != nil {
		return nil, apierrors.Wrap(apierrors.Malformed, err, "failed to parse did:jwk JSON")
	}
	return jwk, nil
}
