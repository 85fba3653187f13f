// Package siopvalidate implements the per-type validator state machines and
// the SIOP fan-out performed inside the SIOP validator. Every validator
// shares the same Parse -> ResolveKey -> VerifySignature -> CheckClaims ->
// CrossValidate -> Finish shape, even though Go has no first-class
// state-machine construct: each validator's Validate method runs the
// states as a sequence of early returns, any of which can terminate with a
// failing ValidationResponse.
package siopvalidate

import (
	"context"

	"siopverifier/pkg/claimtoken"
	"siopverifier/pkg/validationqueue"
)

// TokenValidator is the per-type validator trait: validate one
// already-classified queue item, given the SIOP DID and contract id
// established by the run so far (empty until the outer SIOP validates).
// ctx bounds the network calls a validator may need (DID resolution, OIDC
// discovery) and carries no deadline of its own — the queue runs one item
// at a time, so there is nothing to cancel concurrently with.
type TokenValidator interface {
	IsType() claimtoken.TokenType
	Validate(ctx context.Context, q *validationqueue.Queue, item *validationqueue.Item, subjectDid, contractId string) *validationqueue.ValidationResponse
}

// Registry maps a TokenType to the validator that handles it. A type with
// no registered validator is a Misconfigured (500) failure, not a panic.
type Registry struct {
	validators map[claimtoken.TokenType]TokenValidator
}

// NewRegistry builds a Registry from the given validators, keyed by their
// own IsType().
func NewRegistry(validators ...TokenValidator) *Registry {
	r := &Registry{validators: make(map[claimtoken.TokenType]TokenValidator, len(validators))}
	for _, v := range validators {
		r.validators[v.IsType()] = v
	}
	return r
}

// Get returns the validator for t, or nil, false if none is registered.
func (r *Registry) Get(t claimtoken.TokenType) (TokenValidator, bool) {
	v, ok := r.validators[t]
	return v, ok
}

// Set registers v under t explicitly, overriding whatever v.IsType() would
// have keyed it as. SiopValidator handles all three SIOP flavours
// (siopIssuance, siopPresentationAttestation, siopPresentationExchange)
// through the same Validate method but can only report one IsType(), so the
// builder uses Set to register the single instance under the other two.
func (r *Registry) Set(t claimtoken.TokenType, v TokenValidator) {
	r.validators[t] = v
}

func fail(status int, detail string) *validationqueue.ValidationResponse {
	return &validationqueue.ValidationResponse{Result: false, Status: status, DetailedError: detail}
}

func ok(did string, payload map[string]any) *validationqueue.ValidationResponse {
	return &validationqueue.ValidationResponse{Result: true, Status: 200, Did: did, PayloadObject: payload}
}
