package didkey

import (
	"context"

	"github.com/sirosfoundation/go-trust/pkg/authzenclient"

	"siopverifier/pkg/apierrors"
)

// GoTrustResolver resolves DID documents for DID methods that are not
// self-contained (did:web, did:ebsi, ...) by issuing a resolution-only
// AuthZEN request to a Policy Decision Point.
type GoTrustResolver struct {
	client *authzenclient.Client
}

// NewGoTrustResolver builds a resolver against a known PDP base URL.
func NewGoTrustResolver(baseURL string) *GoTrustResolver {
	return &GoTrustResolver{client: authzenclient.New(baseURL)}
}

// NewGoTrustResolverWithDiscovery builds a resolver using AuthZEN discovery
// (`.well-known/authzen-configuration`) against baseURL.
func NewGoTrustResolverWithDiscovery(ctx context.Context, baseURL string) (*GoTrustResolver, error) {
	client, err := authzenclient.Discover(ctx, baseURL)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.Unavailable, err, "authzen discovery failed")
	}
	return &GoTrustResolver{client: client}, nil
}

// Resolve issues a resolution-only AuthZEN request for did and converts
// the returned trust_metadata into a DidDocument.
func (g *GoTrustResolver) Resolve(ctx context.Context, did string) (*DidDocument, error) {
	resp, err := g.client.Resolve(ctx, did)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.Unavailable, err, "did resolution request failed")
	}

	if !resp.Decision {
		reason := "unknown"
		if resp.Context != nil && resp.Context.Reason != nil {
			if r, ok := resp.Context.Reason["error"].(string); ok {
				reason = r
			}
		}
		return nil, apierrors.Newf(apierrors.Unavailable, "did resolution denied for %s: %s", did, reason)
	}

	if resp.Context == nil || resp.Context.TrustMetadata == nil {
		return nil, apierrors.Newf(apierrors.Unavailable, "no trust_metadata in response for %s", did)
	}

	return metadataToDocument(did, resp.Context.TrustMetadata)
}

// metadataToDocument converts the trust_metadata payload (a DID Document or
// an OpenID Federation entity configuration) into our DidDocument shape.
func metadataToDocument(did string, metadata any) (*DidDocument, error) {
	doc, ok := metadata.(map[string]any)
	if !ok {
		return nil, apierrors.Newf(apierrors.Unavailable, "invalid trust_metadata format for %s", did)
	}

	vms, err := verificationMethodsFromMetadata(doc)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.Unavailable, err, "no verification methods in trust_metadata for "+did)
	}

	id := did
	if docID, ok := doc["id"].(string); ok && docID != "" {
		id = docID
	}

	return &DidDocument{ID: id, VerificationMethod: vms}, nil
}

func verificationMethodsFromMetadata(doc map[string]any) ([]VerificationMethod, error) {
	raw, ok := doc["verificationMethod"].([]any)
	if !ok {
		if keys := federationKeys(doc); len(keys) > 0 {
			return keys, nil
		}
		return nil, apierrors.New(apierrors.Unavailable, "document has no verificationMethod array")
	}

	vms := make([]VerificationMethod, 0, len(raw))
	for _, v := range raw {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		vm := VerificationMethod{}
		vm.ID, _ = m["id"].(string)
		vm.Type, _ = m["type"].(string)
		vm.Controller, _ = m["controller"].(string)
		vm.PublicKeyJwk, _ = m["publicKeyJwk"].(map[string]any)
		vm.PublicKeyMultibase, _ = m["publicKeyMultibase"].(string)
		vms = append(vms, vm)
	}
	return vms, nil
}

// federationKeys extracts JWKS entries from an OpenID Federation entity
// configuration (metadata.<entity type>.jwks.keys), the fallback shape used
// for PDPs that resolve OpenID relying parties rather than plain DID
// Documents.
func federationKeys(doc map[string]any) []VerificationMethod {
	metadata, ok := doc["metadata"].(map[string]any)
	if !ok {
		return nil
	}

	for _, entityType := range []string{"openid_relying_party", "openid_provider", "federation_entity"} {
		entityMeta, ok := metadata[entityType].(map[string]any)
		if !ok {
			continue
		}
		jwks, ok := entityMeta["jwks"].(map[string]any)
		if !ok {
			continue
		}
		keys, ok := jwks["keys"].([]any)
		if !ok {
			continue
		}

		var vms []VerificationMethod
		for _, k := range keys {
			keyMap, ok := k.(map[string]any)
			if !ok {
				continue
			}
			id, _ := keyMap["kid"].(string)
			vms = append(vms, VerificationMethod{ID: id, Type: "JsonWebKey2020", PublicKeyJwk: keyMap})
		}
		if len(vms) > 0 {
			return vms
		}
	}
	return nil
}
