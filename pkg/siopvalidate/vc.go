package siopvalidate

import (
	"context"

	"siopverifier/pkg/apierrors"
	"siopverifier/pkg/claimtoken"
	"siopverifier/pkg/didkey"
	"siopverifier/pkg/tokenverify"
	"siopverifier/pkg/validationqueue"
)

// VcValidator validates a verifiableCredential: signed by its issuer DID,
// audience the SIOP DID, issuer in the trusted set for the run's contract.
type VcValidator struct {
	Resolver       didkey.Resolver
	TrustedIssuers map[string]map[string]struct{} // contractId -> set<DID>
}

// NewVcValidator builds a VcValidator resolving issuer DIDs through r and
// checking membership against trustedIssuers, keyed by contract id.
func NewVcValidator(r didkey.Resolver, trustedIssuers map[string]map[string]struct{}) *VcValidator {
	return &VcValidator{Resolver: r, TrustedIssuers: trustedIssuers}
}

func (v *VcValidator) IsType() claimtoken.TokenType { return claimtoken.VerifiableCredential }

func (v *VcValidator) Validate(ctx context.Context, q *validationqueue.Queue, item *validationqueue.Item, subjectDid, contractId string) *validationqueue.ValidationResponse {
	ct := item.ClaimToken
	if ct == nil || ct.Type != claimtoken.VerifiableCredential {
		return fail(apierrors.Rejected.Status(), "item is not a verifiableCredential")
	}

	iss, _ := ct.Payload["iss"].(string)
	if iss == "" {
		return fail(apierrors.Malformed.Status(), "verifiableCredential carries no iss")
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

	if err := tokenverify.CheckClaims(claims, tokenverify.ClaimOptions{Audience: subjectDid}); err != nil {
		return responseFromErr(err)
	}

	if !v.issuerTrusted(contractId, iss) {
		return fail(apierrors.Rejected.Status(), "issuer "+iss+" is not a trusted issuer for contract "+contractId)
	}

	return ok(iss, ct.Payload)
}

func (v *VcValidator) issuerTrusted(contractId, iss string) bool {
	if v.TrustedIssuers == nil {
		return false
	}
	set, ok := v.TrustedIssuers[contractId]
	if !ok {
		return false
	}
	_, trusted := set[iss]
	return trusted
}
