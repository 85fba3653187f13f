package didkey

import (
	"context"
	"encoding/json"

	"github.com/lestrrat-go/jwx/v3/jwk"

	"siopverifier/pkg/apierrors"
)

// ResolveKey resolves did's DID Document, finds the verification method kid
// names, and returns its public key as a crypto.PublicKey (*ecdsa.PublicKey,
// ed25519.PublicKey, ...). This is the single entry point the per-type
// validators use to turn a JWS header's `kid` into a key ready for
// signature verification.
//
// Grounded on pkg/pki/jwk.go's PEM2jwk + jwk.Key.Raw pattern, generalized
// from a PEM source to a verification method's publicKeyJwk map.
func ResolveKey(ctx context.Context, r Resolver, did, kid string) (any, error) {
	doc, err := r.Resolve(ctx, did)
	if err != nil {
		return nil, err
	}

	vm, ok := doc.FindVerificationMethod(kid)
	if !ok {
		return nil, apierrors.Newf(apierrors.Rejected, "verification method %q not found in DID document for %s", kid, did)
	}

	return verificationMethodKey(vm)
}

func verificationMethodKey(vm *VerificationMethod) (any, error) {
	var jwkMap map[string]any

	switch {
	case vm.PublicKeyJwk != nil:
		jwkMap = vm.PublicKeyJwk
	case vm.PublicKeyMultibase != "":
		decoded, err := decodeMultikeyJwk(vm.PublicKeyMultibase)
		if err != nil {
			return nil, err
		}
		jwkMap = decoded
	default:
		return nil, apierrors.Newf(apierrors.Rejected, "verification method %q carries no usable key material", vm.ID)
	}

	raw, err := json.Marshal(jwkMap)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.Malformed, err, "failed to marshal resolved JWK")
	}

	key, err := jwk.ParseKey(raw)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.Rejected, err, "failed to parse resolved JWK")
	}

	var publicKey any
	if err := key.Raw(&publicKey); err != nil {
		return nil, apierrors.Wrap(apierrors.Rejected, err, "failed to extract public key from JWK")
	}

	return publicKey, nil
}
