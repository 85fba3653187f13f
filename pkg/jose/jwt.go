package jose

import (
	"crypto/ecdsa"
	"maps"

	"github.com/golang-jwt/jwt/v5"
)

// MakeJWT creates a signed JWT with the given header, body, signing method, and key.
// The header parameter is merged with default headers set by the signing method.
func MakeJWT(header, body jwt.MapClaims, signingMethod jwt.SigningMethod, signingKey any) (string, error) {
	token := jwt.NewWithClaims(signingMethod, body)

	// Merge provided header fields with defaults (provided values override defaults)
	maps.Copy(token.Header, header)

	signedToken, err := token.SignedString(signingKey)
	if err != nil {
		return "", err
	}

	return signedToken, nil
}

// GetSigningMethodFromKey determines the JWT signing method from the curve
// of an ECDSA private key. ParseSigningKey only ever returns an
// *ecdsa.PrivateKey, since the status-receipt envelope is signed with an EC
// key, so this carries no RSA branch to dispatch a key type that can never
// reach it.
func GetSigningMethodFromKey(privateKey any) jwt.SigningMethod {
	ecKey, ok := privateKey.(*ecdsa.PrivateKey)
	if !ok {
		return jwt.SigningMethodES256
	}

	switch ecKey.Curve.Params().Name {
	case "P-384":
		return jwt.SigningMethodES384
	case "P-521":
		return jwt.SigningMethodES512
	default:
		return jwt.SigningMethodES256
	}
}
