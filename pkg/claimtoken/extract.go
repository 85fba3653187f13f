package claimtoken

import (
	"fmt"
	"sort"

	"github.com/PaesslerAG/jsonpath"

	"siopverifier/pkg/apierrors"
)

// Child is one fan-out item produced by an extraction strategy: a stable id
// paired with the classified token it names.
type Child struct {
	ID    string
	Token *ClaimToken
}

// ExtractAttestations walks a siopPresentationAttestation payload's
// `attestations` map. The reserved "selfIssued" key's value is wrapped
// directly as a selfIssued ClaimToken (it is a claims object, not a raw
// JWS); every other key names a sub-map of {childId -> rawToken}, and each
// raw token is classified via New.
//
// Map iteration order is not stable in Go, but the queue's determinism
// property requires it to be: both the outer attestation keys and each
// sub-map's keys are walked in sorted order.
func ExtractAttestations(payload map[string]any) ([]Child, error) {
	raw, ok := payload["attestations"].(map[string]any)
	if !ok {
		return nil, apierrors.New(apierrors.Malformed, "attestations is missing or not an object")
	}

	outerKeys := make([]string, 0, len(raw))
	for k := range raw {
		outerKeys = append(outerKeys, k)
	}
	sort.Strings(outerKeys)

	var children []Child
	for _, outer := range outerKeys {
		if outer == "selfIssued" {
			claims, ok := raw[outer].(map[string]any)
			if !ok {
				return nil, apierrors.New(apierrors.Malformed, "attestations.selfIssued is not an object")
			}
			children = append(children, Child{ID: "selfIssued", Token: newUnsigned(SelfIssued, claims)})
			continue
		}

		sub, ok := raw[outer].(map[string]any)
		if !ok {
			return nil, apierrors.Newf(apierrors.Malformed, "attestations.%s is not an object", outer)
		}

		subKeys := make([]string, 0, len(sub))
		for k := range sub {
			subKeys = append(subKeys, k)
		}
		sort.Strings(subKeys)

		for _, sk := range subKeys {
			rawToken, ok := sub[sk].(string)
			if !ok {
				return nil, apierrors.Newf(apierrors.Malformed, "attestations.%s.%s is not a token string", outer, sk)
			}
			child, err := New(rawToken)
			if err != nil {
				return nil, err
			}
			children = append(children, Child{ID: sk, Token: child})
		}
	}

	return children, nil
}

// ExtractPresentationExchange resolves a siopPresentationExchange payload's
// `presentation_submission.descriptor_map` entries: each descriptor names a
// JSONPath `path` evaluated against the full payload, and the resolved
// value must be exactly one token string.
func ExtractPresentationExchange(payload map[string]any) ([]Child, error) {
	submission, ok := payload["presentation_submission"].(map[string]any)
	if !ok {
		return nil, apierrors.New(apierrors.Malformed, "presentation_submission is missing or not an object")
	}

	descriptors, ok := submission["descriptor_map"].([]any)
	if !ok {
		return nil, apierrors.New(apierrors.Malformed, "presentation_submission.descriptor_map is missing or not an array")
	}

	children := make([]Child, 0, len(descriptors))
	for i, d := range descriptors {
		entry, ok := d.(map[string]any)
		if !ok {
			return nil, apierrors.Newf(apierrors.Malformed, "descriptor_map[%d] is not an object", i)
		}

		id, _ := entry["id"].(string)
		if id == "" {
			id = fmt.Sprintf("descriptor_map[%d]", i)
		}

		path, ok := entry["path"].(string)
		if !ok || path == "" {
			return nil, apierrors.Newf(apierrors.Malformed, "descriptor %q: No path property found.", id)
		}

		rawToken, err := resolveDescriptorPath(payload, id, path)
		if err != nil {
			return nil, err
		}

		child, err := New(rawToken)
		if err != nil {
			return nil, err
		}
		children = append(children, Child{ID: id, Token: child})
	}

	return children, nil
}

func resolveDescriptorPath(payload map[string]any, id, path string) (string, error) {
	result, err := jsonpath.Get(path, payload)
	if err != nil {
		return "", apierrors.Wrap(apierrors.Malformed, err, "descriptor \""+id+"\" (path="+path+") did not return exactly one token")
	}

	switch v := result.(type) {
	case string:
		return v, nil
	case []any:
		switch len(v) {
		case 0:
			return "", apierrors.Newf(apierrors.Malformed, "descriptor %q (path=%s) did not return any token", id, path)
		case 1:
			s, ok := v[0].(string)
			if !ok {
				return "", apierrors.Newf(apierrors.Malformed, "descriptor %q (path=%s) did not return exactly one token", id, path)
			}
			return s, nil
		default:
			return "", apierrors.Newf(apierrors.Malformed, "descriptor %q (path=%s) resolved to %d tokens, want exactly one", id, path, len(v))
		}
	default:
		return "", apierrors.Newf(apierrors.Malformed, "descriptor %q (path=%s) did not return exactly one token", id, path)
	}
}

// ExtractReceipt walks a verifiablePresentationStatus payload's `receipt`
// map ({jti -> rawToken}), classifying each entry. Keys are walked in
// sorted order for the same determinism reason as ExtractAttestations.
func ExtractReceipt(payload map[string]any) ([]Child, error) {
	raw, ok := payload["receipt"].(map[string]any)
	if !ok {
		return nil, apierrors.New(apierrors.Malformed, "receipt is missing or not an object")
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	children := make([]Child, 0, len(keys))
	for _, k := range keys {
		rawToken, ok := raw[k].(string)
		if !ok {
			return nil, apierrors.Newf(apierrors.Malformed, "receipt.%s is not a token string", k)
		}
		child, err := New(rawToken)
		if err != nil {
			return nil, err
		}
		children = append(children, Child{ID: k, Token: child})
	}

	return children, nil
}
