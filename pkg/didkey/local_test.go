package didkey

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"testing"

	"github.com/multiformats/go-multibase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeEd25519Multikey(t *testing.T, pub ed25519.PublicKey) string {
	t.Helper()
	codec := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(codec, multicodecEd25519PublicKey)
	payload := append(codec[:n], pub...)
	encoded, err := multibase.Encode(multibase.Base58BTC, payload)
	require.NoError(t, err)
	return encoded
}

func TestCanResolveLocally(t *testing.T) {
	tts := []struct {
		name string
		did  string
		want bool
	}{
		{"did:key", "did:key:z6Mk...#z6Mk...", true},
		{"did:jwk", "did:jwk:eyJ...", true},
		{"did:web", "did:web:example.com#key-1", false},
		{"multikey z prefix", "z6Mk...", true},
		{"multikey u prefix", "uMQAAAQ", true},
		{"https URL", "https://example.com/keys/1", false},
	}

	for _, tt := range tts {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanResolveLocally(tt.did))
		})
	}
}

func TestLocalResolver_DidKey_Ed25519(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	multikey := encodeEd25519Multikey(t, pub)
	did := "did:key:" + multikey

	doc, err := NewLocalResolver().Resolve(context.Background(), did)
	require.NoError(t, err)
	require.Len(t, doc.VerificationMethod, 1)

	vm := doc.VerificationMethod[0]
	assert.Equal(t, "OKP", vm.PublicKeyJwk["kty"])
	assert.Equal(t, "Ed25519", vm.PublicKeyJwk["crv"])
	assert.Equal(t, base64.RawURLEncoding.EncodeToString(pub), vm.PublicKeyJwk["x"])
}

func TestLocalResolver_DidJwk(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	jwk := `{"kty":"OKP","crv":"Ed25519","x":"` + base64.RawURLEncoding.EncodeToString(pub) + `"}`
	did := "did:jwk:" + base64.RawURLEncoding.EncodeToString([]byte(jwk))

	doc, err := NewLocalResolver().Resolve(context.Background(), did)
	require.NoError(t, err)
	require.Len(t, doc.VerificationMethod, 1)
	assert.Equal(t, "Ed25519", doc.VerificationMethod[0].PublicKeyJwk["crv"])
}

func TestLocalResolver_UnsupportedMethod(t *testing.T) {
	_, err := NewLocalResolver().Resolve(context.Background(), "did:web:example.com")
	require.Error(t, err)
}

func TestDidDocument_FindVerificationMethod(t *testing.T) {
	doc := &DidDocument{
		ID: "did:example:123",
		VerificationMethod: []VerificationMethod{
			{ID: "did:example:123#key-1"},
		},
	}

	vm, ok := doc.FindVerificationMethod("key-1")
	require.True(t, ok)
	assert.Equal(t, "did:example:123#key-1", vm.ID)

	vm, ok = doc.FindVerificationMethod("did:example:123#key-1")
	require.True(t, ok)
	assert.Equal(t, "did:example:123#key-1", vm.ID)

	_, ok = doc.FindVerificationMethod("key-2")
	assert.False(t, ok)
}
