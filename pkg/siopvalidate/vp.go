package siopvalidate

import (
	"context"
	"fmt"

	"siopverifier/pkg/apierrors"
	"siopverifier/pkg/claimtoken"
	"siopverifier/pkg/didkey"
	"siopverifier/pkg/tokenverify"
	"siopverifier/pkg/validationqueue"
)

// VpValidator validates a verifiablePresentation: signed by its holder DID,
// iss must equal the SIOP DID established earlier in the run (DID
// continuity with the outer SIOP), and each nested vp.verifiableCredential
// entry is re-enqueued as its own VC item.
type VpValidator struct {
	Resolver didkey.Resolver

	// Audience is the verifier's own DID/identifier; when set, the VP's aud
	// must equal it.
	Audience string
}

// NewVpValidator builds a VpValidator resolving holder DIDs through r.
func NewVpValidator(r didkey.Resolver) *VpValidator {
	return &VpValidator{Resolver: r}
}

func (v *VpValidator) IsType() claimtoken.TokenType { return claimtoken.VerifiablePresentation }

func (v *VpValidator) Validate(ctx context.Context, q *validationqueue.Queue, item *validationqueue.Item, subjectDid, contractId string) *validationqueue.ValidationResponse {
	ct := item.ClaimToken
	if ct == nil || ct.Type != claimtoken.VerifiablePresentation {
		return fail(apierrors.Rejected.Status(), "item is not a verifiablePresentation")
	}

	iss, _ := ct.Payload["iss"].(string)
	if iss == "" {
		return fail(apierrors.Malformed.Status(), "verifiablePresentation carries no iss")
	}

	kid, _ := ct.Header["kid"].(string)
	if kid == "" {
		kid = iss
	}

	publicKey, err := didkey.ResolveKey(ctx, v.Resolver, iss, kid)
	if err != nil {
		return responseFromErr(err)
	}

	claims, err := tokenverify.VerifyJws(ct.RawToken, publicKey)
	if err != nil {
		return responseFromErr(err)
	}

	if err := tokenverify.CheckClaims(claims, tokenverify.ClaimOptions{Audience: v.Audience}); err != nil {
		return responseFromErr(err)
	}

	if subjectDid != "" && iss != subjectDid {
		return fail(apierrors.Rejected.Status(),
			"The DID used for the SIOP "+subjectDid+" is not equal to the DID used for the verifiable presentation "+iss)
	}

	vcs, err := nestedVerifiableCredentials(ct.Payload)
	if err != nil {
		return responseFromErr(err)
	}

	for i, raw := range vcs {
		child, err := claimtoken.New(raw)
		if err != nil {
			return responseFromErr(err)
		}
		q.EnqueueItem(vcChildID(i), child)
	}

	return ok(iss, ct.Payload)
}

func nestedVerifiableCredentials(payload map[string]any) ([]string, error) {
	vp, ok := payload["vp"].(map[string]any)
	if !ok {
		return nil, apierrors.New(apierrors.Malformed, "verifiablePresentation carries no vp object")
	}

	raw, ok := vp["verifiableCredential"].([]any)
	if !ok {
		return nil, nil
	}

	vcs := make([]string, 0, len(raw))
	for i, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, apierrors.Newf(apierrors.Malformed, "vp.verifiableCredential[%d] is not a token string", i)
		}
		vcs = append(vcs, s)
	}
	return vcs, nil
}

// vcChildID names a VP's nested VC items per the happy-path scenario's
// expected "VerifiableCredential" key, disambiguating beyond the first with
// an index suffix for VPs that nest more than one VC.
func vcChildID(index int) string {
	if index == 0 {
		return "VerifiableCredential"
	}
	return fmt.Sprintf("VerifiableCredential#%d", index)
}
