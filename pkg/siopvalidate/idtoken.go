package siopvalidate

import (
	"context"

	"github.com/coreos/go-oidc/v3/oidc"

	"siopverifier/pkg/apierrors"
	"siopverifier/pkg/claimtoken"
	"siopverifier/pkg/validationqueue"
)

// IdTokenValidator looks up OIDC discovery for the token's issuer, fetches
// its JWKS, verifies the signature and validates iss/aud/exp — grounded on
// oidc.NewProvider + Provider.Verifier's discovery flow.
//
// Discovery documents are looked up by issuer name in Configuration, not by
// treating the token's iss claim as a discovery URL: the validator is
// configured with `{ issuers: set<string>, configuration: map<issuer-name,url> }`.
// A configured URL takes precedence over the token's own `configuration`
// claim, which is used only when the issuer has no entry in the map; an
// issuer with neither is Unavailable before a single HTTP call is made.
type IdTokenValidator struct {
	Audience      string
	Issuers       map[string]struct{}   // set of acceptable issuer names
	Configuration map[string]string     // issuer name -> discovery document URL
	providerFor   func(ctx context.Context, discoveryURL string) (*oidc.Provider, error)
}

// NewIdTokenValidator builds an IdTokenValidator accepting any issuer in
// issuers, discovering each via the matching entry in configuration.
func NewIdTokenValidator(audience string, issuers map[string]struct{}, configuration map[string]string) *IdTokenValidator {
	return &IdTokenValidator{
		Audience:      audience,
		Issuers:       issuers,
		Configuration: configuration,
		providerFor:   oidc.NewProvider,
	}
}

func (v *IdTokenValidator) IsType() claimtoken.TokenType { return claimtoken.IDToken }

func (v *IdTokenValidator) Validate(ctx context.Context, q *validationqueue.Queue, item *validationqueue.Item, subjectDid, contractId string) *validationqueue.ValidationResponse {
	ct := item.ClaimToken
	if ct == nil || ct.Type != claimtoken.IDToken {
		return fail(apierrors.Rejected.Status(), "item is not an idToken")
	}

	iss, _ := ct.Payload["iss"].(string)
	if iss == "" {
		return fail(apierrors.Malformed.Status(), "idToken carries no iss")
	}

	if _, allowed := v.Issuers[iss]; v.Issuers != nil && !allowed {
		return fail(apierrors.Unavailable.Status(), "Could not fetch token configuration")
	}

	discoveryURL := v.Configuration[iss]
	if discoveryURL == "" {
		discoveryURL = ct.ConfigurationURL
	}
	if discoveryURL == "" {
		return fail(apierrors.Unavailable.Status(), "Could not fetch token configuration")
	}

	providerFor := v.providerFor
	if providerFor == nil {
		providerFor = oidc.NewProvider
	}

	provider, err := providerFor(ctx, discoveryURL)
	if err != nil {
		return fail(apierrors.Unavailable.Status(), "Could not fetch token configuration")
	}

	verifier := provider.Verifier(&oidc.Config{ClientID: v.Audience})
	idToken, err := verifier.Verify(ctx, ct.RawToken)
	if err != nil {
		return responseFromErr(apierrors.Wrap(apierrors.Rejected, err, "idToken signature or claim verification failed"))
	}

	var claims map[string]any
	if err := idToken.Claims(&claims); err != nil {
		return responseFromErr(apierrors.Wrap(apierrors.Malformed, err, "failed to decode idToken claims"))
	}

	return ok(subjectDid, claims)
}
