// Package apiv1 implements the validation orchestrator: it drains a
// ValidationQueue seeded with the outer SIOP token, dispatching each
// classified item to the per-type validator registry built by
// ValidatorBuilder, and assembles the final ValidationResult. The Validator
// itself is immutable once produced by an explicit builder — configuration
// cannot change mid-run.
package apiv1

import (
	"time"

	"siopverifier/pkg/claimtoken"
	"siopverifier/pkg/didkey"
	"siopverifier/pkg/siopvalidate"
	"siopverifier/pkg/statusreceipt"
	"siopverifier/pkg/tokenverify"
)

// ValidatorBuilder accumulates the configuration a Validator needs, then
// produces an immutable Validator via Build.
type ValidatorBuilder struct {
	resolver didkey.Resolver

	audience      string
	clockSkew     time.Duration
	expectedNonce string
	expectedState string

	trustedIssuers map[string]map[string]struct{}

	idTokenIssuers      map[string]struct{}
	idTokenConfiguration map[string]string

	statusCheckEnabled bool
	statusSigner       statusreceipt.Signer
	statusTimeout      time.Duration
}

// NewValidatorBuilder starts a ValidatorBuilder resolving DIDs through r.
func NewValidatorBuilder(r didkey.Resolver) *ValidatorBuilder {
	return &ValidatorBuilder{resolver: r}
}

// WithAudience sets the expected audience for the outer SIOP and every VP's
// CrossValidate step.
func (b *ValidatorBuilder) WithAudience(audience string) *ValidatorBuilder {
	b.audience = audience
	return b
}

// WithClockSkew overrides tokenverify.DefaultClockSkew for the outer SIOP's
// claim check; the VC and VP validators keep the default.
func (b *ValidatorBuilder) WithClockSkew(d time.Duration) *ValidatorBuilder {
	b.clockSkew = d
	return b
}

// WithReplay sets the nonce/state the outer SIOP must echo. Either may be
// left empty to skip that check.
func (b *ValidatorBuilder) WithReplay(nonce, state string) *ValidatorBuilder {
	b.expectedNonce = nonce
	b.expectedState = state
	return b
}

// WithTrustedIssuers sets, per contract id, the set of issuer DIDs trusted
// to issue a verifiableCredential under it.
func (b *ValidatorBuilder) WithTrustedIssuers(trustedIssuers map[string]map[string]struct{}) *ValidatorBuilder {
	b.trustedIssuers = trustedIssuers
	return b
}

// WithIDTokenIssuers sets the accepted OIDC issuers and their discovery
// configuration for the id-token validator.
func (b *ValidatorBuilder) WithIDTokenIssuers(issuers map[string]struct{}, configuration map[string]string) *ValidatorBuilder {
	b.idTokenIssuers = issuers
	b.idTokenConfiguration = configuration
	return b
}

// WithStatusCheck enables the status-receipt sub-protocol, signing
// status-request envelopes with signer. Leaving this unset means
// statusCheckEnabled stays false and Validate never makes a status-check
// network call: disabling it short-circuits the check entirely, with no
// network traffic.
func (b *ValidatorBuilder) WithStatusCheck(signer statusreceipt.Signer, timeout time.Duration) *ValidatorBuilder {
	b.statusCheckEnabled = true
	b.statusSigner = signer
	b.statusTimeout = timeout
	return b
}

// Build wires the per-type validator registry and returns the immutable
// Validator. The single SiopValidator instance is registered under all
// three SIOP-flavoured TokenTypes, since it alone cannot report more than
// one IsType() (see siopvalidate.Registry.Set).
func (b *ValidatorBuilder) Build() *Validator {
	claims := tokenverify.ClaimOptions{Audience: b.audience, ClockSkew: b.clockSkew}

	siop := siopvalidate.NewSiopValidator(b.resolver)
	siop.Claims = claims
	siop.ExpectedNonce = b.expectedNonce
	siop.ExpectedState = b.expectedState

	vc := siopvalidate.NewVcValidator(b.resolver, b.trustedIssuers)
	vp := siopvalidate.NewVpValidator(b.resolver)
	vp.Audience = b.audience
	selfIssued := siopvalidate.NewSelfIssuedValidator()
	idToken := siopvalidate.NewIdTokenValidator(b.audience, b.idTokenIssuers, b.idTokenConfiguration)

	registry := siopvalidate.NewRegistry(siop, vc, vp, selfIssued, idToken)
	registry.Set(claimtoken.SiopPresentationAttestation, siop)
	registry.Set(claimtoken.SiopPresentationExchange, siop)

	var statusChecker *statusreceipt.Checker
	if b.statusCheckEnabled {
		statusChecker = statusreceipt.NewChecker(b.statusSigner, b.resolver)
		if b.statusTimeout > 0 {
			statusChecker.Timeout = b.statusTimeout
		}
	}

	return &Validator{
		registry:           registry,
		statusChecker:      statusChecker,
		statusCheckEnabled: b.statusCheckEnabled,
	}
}
