package claimtoken

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeSegment(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return base64.RawURLEncoding.EncodeToString(b)
}

func compact(t *testing.T, header, payload map[string]any, signed bool) string {
	t.Helper()
	tok := encodeSegment(t, header) + "." + encodeSegment(t, payload)
	if signed {
		tok += ".sig"
	} else {
		tok += "."
	}
	return tok
}

func TestNew_Classification(t *testing.T) {
	tts := []struct {
		name    string
		payload map[string]any
		signed  bool
		want    TokenType
	}{
		{
			name:    "siop issuance",
			payload: map[string]any{"iss": siopSentinelIssuer, "contract": "https://example.com/contract/1"},
			signed:  true,
			want:    SiopIssuance,
		},
		{
			name:    "siop presentation exchange",
			payload: map[string]any{"iss": siopSentinelIssuer, "presentation_submission": map[string]any{}},
			signed:  true,
			want:    SiopPresentationExchange,
		},
		{
			name:    "siop presentation attestation",
			payload: map[string]any{"iss": siopSentinelIssuer, "attestations": map[string]any{}},
			signed:  true,
			want:    SiopPresentationAttestation,
		},
		{
			name:    "siop status receipt",
			payload: map[string]any{"iss": siopSentinelIssuer, "receipt": map[string]any{}},
			signed:  true,
			want:    VerifiablePresentationStatus,
		},
		{
			name:    "verifiable credential",
			payload: map[string]any{"vc": map[string]any{}},
			signed:  true,
			want:    VerifiableCredential,
		},
		{
			name:    "verifiable presentation",
			payload: map[string]any{"vp": map[string]any{}},
			signed:  true,
			want:    VerifiablePresentation,
		},
		{
			name:    "signed id token",
			payload: map[string]any{"iss": "https://issuer.example.com"},
			signed:  true,
			want:    IDToken,
		},
		{
			name:    "unsigned self issued",
			payload: map[string]any{"iss": "https://issuer.example.com"},
			signed:  false,
			want:    SelfIssued,
		},
	}

	for _, tt := range tts {
		t.Run(tt.name, func(t *testing.T) {
			raw := compact(t, map[string]any{"alg": "ES256"}, tt.payload, tt.signed)
			got, err := New(raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Type)
			assert.Equal(t, tt.signed, got.Signed)
		})
	}
}

func TestNew_UnrecognisedSiop(t *testing.T) {
	raw := compact(t, map[string]any{"alg": "ES256"}, map[string]any{"iss": siopSentinelIssuer}, true)
	_, err := New(raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SIOP was not recognized.")
}

func TestNew_TooFewSegments(t *testing.T) {
	_, err := New("onlyonesegment")
	require.Error(t, err)
}

func TestNew_InvalidBase64(t *testing.T) {
	_, err := New("not-base64!!.also-not-base64!!.sig")
	require.Error(t, err)
}

func TestParseTokenType(t *testing.T) {
	assert.Equal(t, SiopIssuance, ParseTokenType("siop"))
	assert.Equal(t, VerifiableCredential, ParseTokenType("verifiableCredential"))
}

func TestTokenType_IsSiop(t *testing.T) {
	assert.True(t, SiopIssuance.IsSiop())
	assert.True(t, SiopPresentationAttestation.IsSiop())
	assert.True(t, SiopPresentationExchange.IsSiop())
	assert.False(t, VerifiableCredential.IsSiop())
	assert.False(t, IDToken.IsSiop())
}
