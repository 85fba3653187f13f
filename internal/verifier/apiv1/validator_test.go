package apiv1

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siopverifier/pkg/claimtoken"
	"siopverifier/pkg/didkey"
	"siopverifier/pkg/siopvalidate"
)

const verifierAudience = "https://verifier.example.com"

func publicJwkMap(t *testing.T, key *ecdsa.PrivateKey) map[string]any {
	t.Helper()
	exported, err := jwk.Import(&key.PublicKey)
	require.NoError(t, err)
	raw, err := json.Marshal(exported)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

func sign(t *testing.T, key *ecdsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

// multiKeyResolver resolves distinct DIDs to distinct keys, since a full
// run involves a holder key (the SIOP/VP) and a separate issuer key (the VC).
type multiKeyResolver map[string]*ecdsa.PublicKey

func (m multiKeyResolver) Resolve(_ context.Context, did string) (*didkey.DidDocument, error) {
	pub, ok := m[did]
	if !ok {
		return nil, assertNotFound(did)
	}
	exported, err := jwk.Import(pub)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(exported)
	if err != nil {
		return nil, err
	}
	var jwkMap map[string]any
	if err := json.Unmarshal(raw, &jwkMap); err != nil {
		return nil, err
	}
	return &didkey.DidDocument{
		ID: did,
		VerificationMethod: []didkey.VerificationMethod{
			{ID: did, Controller: did, PublicKeyJwk: jwkMap},
		},
	}, nil
}

func assertNotFound(did string) error {
	return &notFoundError{did: did}
}

type notFoundError struct{ did string }

func (e *notFoundError) Error() string { return "no test key registered for " + e.did }

// TestValidator_HappyPath covers an attestation-flavour SIOP nesting a
// selfIssued claim bundle and a VP that nests one trusted VC.
func TestValidator_HappyPath(t *testing.T) {
	holderKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	issuerKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	const holderDid = "did:test:holder"
	const issuerDid = "did:test:issuer"

	vc := sign(t, issuerKey, jwt.MapClaims{
		"iss": issuerDid,
		"aud": holderDid,
		"exp": float64(time.Now().Add(time.Hour).Unix()),
		"vc": map[string]any{
			"credentialSubject": map[string]any{"givenName": "Jules"},
		},
	})

	vp := sign(t, holderKey, jwt.MapClaims{
		"iss": holderDid,
		"aud": verifierAudience,
		"exp": float64(time.Now().Add(time.Hour).Unix()),
		"vp":  map[string]any{"verifiableCredential": []any{vc}},
	})

	// classify() treats "contract" and "attestations" as mutually
	// exclusive markers (contract always wins), so an attestation-flavour
	// SIOP never carries a contract id — its VC trust set is keyed by the
	// empty contract id.
	raw := sign(t, holderKey, jwt.MapClaims{
		"iss":     "https://self-issued.me",
		"sub":     holderDid,
		"aud":     verifierAudience,
		"exp":     float64(time.Now().Add(time.Hour).Unix()),
		"sub_jwk": publicJwkMap(t, holderKey),
		"attestations": map[string]any{
			"selfIssued": map[string]any{"name": "jules"},
			"presentations": map[string]any{
				"vp-1": vp,
			},
		},
	})

	resolver := multiKeyResolver{holderDid: &holderKey.PublicKey, issuerDid: &issuerKey.PublicKey}
	builder := NewValidatorBuilder(resolver).
		WithAudience(verifierAudience).
		WithTrustedIssuers(map[string]map[string]struct{}{
			"": {issuerDid: {}},
		})
	validator := builder.Build()

	resp, err := validator.Validate(context.Background(), raw)
	require.NoError(t, err)
	require.True(t, resp.Result, resp.DetailedError)
	assert.Equal(t, 200, resp.Status)
	require.NotNil(t, resp.ValidationResult)

	result := resp.ValidationResult
	assert.Equal(t, holderDid, result.Did)
	assert.Equal(t, "jules", result.SelfIssued["name"])

	require.Len(t, result.VerifiablePresentations, 1)
	require.Len(t, result.VerifiableCredentials, 1)
	for _, vcToken := range result.VerifiableCredentials {
		vcObj, _ := vcToken.Payload["vc"].(map[string]any)
		subject, _ := vcObj["credentialSubject"].(map[string]any)
		assert.Equal(t, "Jules", subject["givenName"])
	}
}

// TestValidator_MissingPresentationSubmission covers a
// presentation-exchange-flavoured SIOP payload missing the one key
// (`presentation_submission`) that would classify it.
func TestValidator_MissingPresentationSubmission(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	raw := sign(t, key, jwt.MapClaims{
		"iss":     "https://self-issued.me",
		"sub":     "did:test:holder",
		"aud":     verifierAudience,
		"exp":     float64(time.Now().Add(time.Hour).Unix()),
		"sub_jwk": publicJwkMap(t, key),
	})

	validator := NewValidatorBuilder(multiKeyResolver{}).WithAudience(verifierAudience).Build()

	resp, err := validator.Validate(context.Background(), raw)
	require.NoError(t, err)
	require.False(t, resp.Result)
	assert.Equal(t, "SIOP was not recognized.", resp.DetailedError)
}

// TestValidator_VPDidMismatch covers the VP's iss differing from the DID
// the outer SIOP established.
func TestValidator_VPDidMismatch(t *testing.T) {
	siopKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	vpKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	const siopDid = "did:test:holder"
	const vpIss = "did:test:user"

	vp := sign(t, vpKey, jwt.MapClaims{
		"iss": vpIss,
		"aud": verifierAudience,
		"exp": float64(time.Now().Add(time.Hour).Unix()),
		"vp":  map[string]any{"verifiableCredential": []any{}},
	})

	raw := sign(t, siopKey, jwt.MapClaims{
		"iss":     "https://self-issued.me",
		"sub":     siopDid,
		"aud":     verifierAudience,
		"exp":     float64(time.Now().Add(time.Hour).Unix()),
		"sub_jwk": publicJwkMap(t, siopKey),
		"attestations": map[string]any{
			"presentations": map[string]any{"vp-1": vp},
		},
	})

	resolver := multiKeyResolver{siopDid: &siopKey.PublicKey, vpIss: &vpKey.PublicKey}
	validator := NewValidatorBuilder(resolver).WithAudience(verifierAudience).Build()

	resp, err := validator.Validate(context.Background(), raw)
	require.NoError(t, err)
	require.False(t, resp.Result)
	assert.Equal(t, 403, resp.Status)
	assert.Contains(t, resp.DetailedError, "is not equal to the DID used for the verifiable presentation")
}

// TestValidator_MissingVCValidator covers a registry with no TokenValidator
// for verifiableCredential: it fails with a 500 naming the missing type,
// even though every other token in the run validates fine.
func TestValidator_MissingVCValidator(t *testing.T) {
	holderKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	issuerKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	const holderDid = "did:test:holder"
	const issuerDid = "did:test:issuer"

	vc := sign(t, issuerKey, jwt.MapClaims{
		"iss": issuerDid,
		"aud": holderDid,
		"exp": float64(time.Now().Add(time.Hour).Unix()),
		"vc":  map[string]any{"credentialSubject": map[string]any{"givenName": "Jules"}},
	})
	vp := sign(t, holderKey, jwt.MapClaims{
		"iss": holderDid,
		"aud": verifierAudience,
		"exp": float64(time.Now().Add(time.Hour).Unix()),
		"vp":  map[string]any{"verifiableCredential": []any{vc}},
	})
	raw := sign(t, holderKey, jwt.MapClaims{
		"iss":     "https://self-issued.me",
		"sub":     holderDid,
		"aud":     verifierAudience,
		"exp":     float64(time.Now().Add(time.Hour).Unix()),
		"sub_jwk": publicJwkMap(t, holderKey),
		"attestations": map[string]any{
			"presentations": map[string]any{"vp-1": vp},
		},
	})

	resolver := multiKeyResolver{holderDid: &holderKey.PublicKey, issuerDid: &issuerKey.PublicKey}
	siop := siopvalidate.NewSiopValidator(resolver)
	siop.Claims.Audience = verifierAudience
	vpValidator := siopvalidate.NewVpValidator(resolver)
	vpValidator.Audience = verifierAudience

	registry := siopvalidate.NewRegistry(siop, vpValidator, siopvalidate.NewSelfIssuedValidator())
	registry.Set(claimtoken.SiopPresentationAttestation, siop)
	registry.Set(claimtoken.SiopPresentationExchange, siop)

	validator := &Validator{registry: registry}

	resp, err := validator.Validate(context.Background(), raw)
	require.NoError(t, err)
	require.False(t, resp.Result)
	assert.Equal(t, 500, resp.Status)
	assert.Equal(t, "verifiableCredential does not has a TokenValidator", resp.DetailedError)
}
