package siopvalidate

import (
	"context"

	"siopverifier/pkg/apierrors"
	"siopverifier/pkg/claimtoken"
	"siopverifier/pkg/validationqueue"
)

// SelfIssuedValidator handles a selfIssued claim bundle lifted directly out
// of an attestations map: it carries no signature and is checked for
// structure only.
type SelfIssuedValidator struct{}

// NewSelfIssuedValidator builds a SelfIssuedValidator.
func NewSelfIssuedValidator() *SelfIssuedValidator { return &SelfIssuedValidator{} }

func (v *SelfIssuedValidator) IsType() claimtoken.TokenType { return claimtoken.SelfIssued }

func (v *SelfIssuedValidator) Validate(ctx context.Context, q *validationqueue.Queue, item *validationqueue.Item, subjectDid, contractId string) *validationqueue.ValidationResponse {
	ct := item.ClaimToken
	if ct == nil || ct.Type != claimtoken.SelfIssued {
		return fail(apierrors.Rejected.Status(), "item is not a selfIssued claim bundle")
	}
	if len(ct.Payload) == 0 {
		return fail(apierrors.Malformed.Status(), "selfIssued claim bundle is empty")
	}

	return ok(subjectDid, ct.Payload)
}
