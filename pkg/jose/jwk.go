package jose

import (
	"crypto/ecdsa"
	"errors"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// ParseSigningKey parses the verifier's own ECDSA signing key from a
// PEM-encoded file. The status-receipt signer (internal/verifier/apiv1.
// LocalSigner) is the only caller: every envelope it signs uses this key,
// and its public half is exported separately via jwx/v3 (jwk.Import) rather
// than through this package, so no JWK-export helper lives here.
func ParseSigningKey(signingKeyPath string) (*ecdsa.PrivateKey, error) {
	keyByte, err := os.ReadFile(signingKeyPath)
	if err != nil {
		return nil, err
	}
	if keyByte == nil {
		return nil, errors.New("private key missing")
	}

	privateKey, err := jwt.ParseECPrivateKeyFromPEM(keyByte)
	if err != nil {
		return nil, err
	}

	return privateKey, nil
}
