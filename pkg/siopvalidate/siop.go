package siopvalidate

import (
	"context"
	"encoding/json"

	"github.com/lestrrat-go/jwx/v3/jwk"

	"siopverifier/pkg/apierrors"
	"siopverifier/pkg/claimtoken"
	"siopverifier/pkg/didkey"
	"siopverifier/pkg/tokenverify"
	"siopverifier/pkg/validationqueue"
)

// SiopValidator handles the three SIOP-flavoured types: a self-issued,
// self-signed JWS whose key is either embedded (`sub_jwk`) or resolvable
// through its own `sub` DID. It also performs the fan-out: on success it
// classifies and enqueues every child token the payload names, so the
// queue keeps draining until every descendant has a result.
type SiopValidator struct {
	Resolver didkey.Resolver
	Claims   tokenverify.ClaimOptions

	// ExpectedNonce and ExpectedState implement the outer SIOP's replay
	// check: if set, the payload's nonce/state must match bitwise or the
	// run fails with both values named in the error. Empty means "not
	// checked".
	ExpectedNonce string
	ExpectedState string
}

// NewSiopValidator builds a SiopValidator resolving DIDs through r.
func NewSiopValidator(r didkey.Resolver) *SiopValidator {
	return &SiopValidator{Resolver: r}
}

func (v *SiopValidator) IsType() claimtoken.TokenType { return claimtoken.SiopIssuance }

// Validate runs Parse (already done by the caller) -> ResolveKey ->
// VerifySignature -> CheckClaims -> CrossValidate -> Finish for a SIOP
// token, then fans out its children into q.
func (v *SiopValidator) Validate(ctx context.Context, q *validationqueue.Queue, item *validationqueue.Item, subjectDid, contractId string) *validationqueue.ValidationResponse {
	ct := item.ClaimToken
	if ct == nil || !ct.Type.IsSiop() {
		return fail(apierrors.Rejected.Status(), "item is not a SIOP token")
	}

	sub, _ := ct.Payload["sub"].(string)
	if sub == "" {
		return fail(apierrors.Malformed.Status(), "SIOP token carries no sub")
	}

	publicKey, err := v.resolveSelfIssuedKey(ctx, ct, sub)
	if err != nil {
		return responseFromErr(err)
	}

	claims, err := tokenverify.VerifyJws(ct.RawToken, publicKey)
	if err != nil {
		return responseFromErr(err)
	}

	// A SIOP's iss is the fixed sentinel, not a configured issuer, so only
	// exp/nbf/aud are checked here; iss was already confirmed by classify.
	if err := tokenverify.CheckClaims(claims, tokenverify.ClaimOptions{
		Audience:  v.Claims.Audience,
		ClockSkew: v.Claims.ClockSkew,
	}); err != nil {
		return responseFromErr(err)
	}

	if err := v.checkReplay(ct.Payload); err != nil {
		return responseFromErr(err)
	}

	children, err := fanOut(ct)
	if err != nil {
		return responseFromErr(err)
	}

	for _, child := range children {
		q.EnqueueItem(child.ID, child.Token)
	}

	return ok(sub, ct.Payload)
}

// checkReplay enforces the replay check: when a nonce or state was
// configured as expected, the payload's value must match it bitwise.
func (v *SiopValidator) checkReplay(payload map[string]any) error {
	if v.ExpectedNonce != "" {
		actual, _ := payload["nonce"].(string)
		if actual != v.ExpectedNonce {
			return apierrors.Newf(apierrors.Rejected, "nonce mismatch: expected %q, got %q", v.ExpectedNonce, actual)
		}
	}
	if v.ExpectedState != "" {
		actual, _ := payload["state"].(string)
		if actual != v.ExpectedState {
			return apierrors.Newf(apierrors.Rejected, "state mismatch: expected %q, got %q", v.ExpectedState, actual)
		}
	}
	return nil
}

// fanOut dispatches to the extraction strategy matching ct's concrete SIOP
// flavour: issuance carries no children of its own besides the contract
// reference, attestation carries an attestations map, presentation-exchange
// carries a descriptor map. ct.Type is guaranteed to be one of these three
// by the IsSiop() guard at the top of Validate.
//
// A classification failure while fanning out a SIOP's children must surface
// as a 403 regardless of the extraction strategy's own Kind:
// ExtractAttestations/ExtractPresentationExchange raise Malformed (400)
// since they're reasoning about shape in isolation, but this is a
// rejection of the SIOP token itself, so the error is re-kinded to
// Rejected, keeping the underlying message verbatim.
func fanOut(ct *claimtoken.ClaimToken) ([]claimtoken.Child, error) {
	var (
		children []claimtoken.Child
		err      error
	)

	switch ct.Type {
	case claimtoken.SiopPresentationAttestation:
		children, err = claimtoken.ExtractAttestations(ct.Payload)
	case claimtoken.SiopPresentationExchange:
		children, err = claimtoken.ExtractPresentationExchange(ct.Payload)
	default:
		return nil, nil
	}

	if err != nil {
		if apiErr, ok := err.(*apierrors.Error); ok {
			return nil, apierrors.New(apierrors.Rejected, apiErr.Detail)
		}
		return nil, apierrors.New(apierrors.Rejected, err.Error())
	}
	return children, nil
}

// resolveSelfIssuedKey implements the two ways a SIOP token carries its own
// verification key: inline in the header/payload as `sub_jwk`, or indirectly
// via DID resolution of `sub` through the configured Resolver. No
// restriction on the DID method of `sub` is applied here.
func (v *SiopValidator) resolveSelfIssuedKey(ctx context.Context, ct *claimtoken.ClaimToken, sub string) (any, error) {
	if raw, ok := ct.Payload["sub_jwk"]; ok {
		return jwkToPublicKey(raw)
	}
	if raw, ok := ct.Header["sub_jwk"]; ok {
		return jwkToPublicKey(raw)
	}

	if v.Resolver == nil {
		return nil, apierrors.New(apierrors.Misconfigured, "no sub_jwk present and no DID resolver configured")
	}

	kid, _ := ct.Header["kid"].(string)
	if kid == "" {
		kid = sub
	}
	return didkey.ResolveKey(ctx, v.Resolver, sub, kid)
}

func jwkToPublicKey(raw any) (any, error) {
	jwkMap, ok := raw.(map[string]any)
	if !ok {
		return nil, apierrors.New(apierrors.Malformed, "sub_jwk is not an object")
	}

	encoded, err := json.Marshal(jwkMap)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.Malformed, err, "failed to marshal sub_jwk")
	}

	key, err := jwk.ParseKey(encoded)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.Rejected, err, "failed to parse sub_jwk")
	}

	var publicKey any
	if err := key.Raw(&publicKey); err != nil {
		return nil, apierrors.Wrap(apierrors.Rejected, err, "failed to extract public key from sub_jwk")
	}

	return publicKey, nil
}

func responseFromErr(err error) *validationqueue.ValidationResponse {
	if apiErr, ok := err.(*apierrors.Error); ok {
		return fail(apiErr.Status(), apiErr.Error())
	}
	return fail(apierrors.Rejected.Status(), err.Error())
}
