package apiv1

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v3/jwk"

	"siopverifier/pkg/jose"
)

// LocalSigner implements statusreceipt.Signer against an ECDSA private key
// read from disk, built on pkg/jose's PEM-file loading and jwt/v5-based
// signing helpers.
type LocalSigner struct {
	did           string
	keyReference  string
	privateKey    *ecdsa.PrivateKey
	signingMethod jwt.SigningMethod
}

// NewLocalSigner loads the ECDSA private key at signingKeyPath and builds a
// signer presenting itself as did, with keyReference named in the `kid` of
// every envelope it signs.
func NewLocalSigner(did, keyReference, signingKeyPath string) (*LocalSigner, error) {
	privateKey, err := jose.ParseSigningKey(signingKeyPath)
	if err != nil {
		return nil, err
	}
	return &LocalSigner{
		did:           did,
		keyReference:  keyReference,
		privateKey:    privateKey,
		signingMethod: jose.GetSigningMethodFromKey(privateKey),
	}, nil
}

func (s *LocalSigner) Did() string          { return s.did }
func (s *LocalSigner) KeyReference() string { return s.keyReference }

// PublicJWK exports the signer's public key as a JWK map, for embedding as
// `sub_jwk` in the status-check request envelope.
func (s *LocalSigner) PublicJWK(_ context.Context) (map[string]any, error) {
	exported, err := jwk.Import(&s.privateKey.PublicKey)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(exported)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Sign builds a compact JWS over payload, merging header into the token's
// default header fields.
func (s *LocalSigner) Sign(_ context.Context, header, payload map[string]any) (string, error) {
	claims := jwt.MapClaims{}
	for k, v := range payload {
		claims[k] = v
	}
	return jose.MakeJWT(header, claims, s.signingMethod, s.privateKey)
}
