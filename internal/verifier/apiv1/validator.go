package apiv1

import (
	"context"
	"net/url"
	"strings"

	"siopverifier/pkg/apierrors"
	"siopverifier/pkg/claimtoken"
	"siopverifier/pkg/siopvalidate"
	"siopverifier/pkg/statusreceipt"
	"siopverifier/pkg/validationqueue"
)

// rootItemID is the queue id the orchestrator assigns the outer SIOP token.
const rootItemID = "siop"

// ValidationResult is the final, assembled verdict.
type ValidationResult struct {
	Did     string `json:"did,omitempty"`
	Contract string `json:"contract,omitempty"`
	SiopJti string `json:"siopJti,omitempty"`

	IdTokens                map[string]map[string]any        `json:"idTokens,omitempty"`
	VerifiableCredentials   map[string]*claimtoken.ClaimToken `json:"verifiableCredentials,omitempty"`
	VerifiablePresentations map[string]*claimtoken.ClaimToken `json:"verifiablePresentations,omitempty"`
	SelfIssued              map[string]any                   `json:"selfIssued,omitempty"`
	Siop                    map[string]any                    `json:"siop,omitempty"`

	VerifiablePresentationStatus map[string]statusreceipt.StatusEntry `json:"verifiablePresentationStatus,omitempty"`
}

// Response is the top-level outcome of a Validate call.
type Response struct {
	Result           bool              `json:"result"`
	Status           int               `json:"status"`
	DetailedError    string            `json:"detailedError,omitempty"`
	ValidationResult *ValidationResult `json:"validationResult,omitempty"`
}

// Validator is the immutable, built engine: a registry of per-type
// validators plus the optional status-receipt checker. Construct one with
// ValidatorBuilder.
type Validator struct {
	registry           *siopvalidate.Registry
	statusChecker      *statusreceipt.Checker
	statusCheckEnabled bool
}

// Validate runs the orchestrator loop over a single raw SIOP response
// token: seed the queue, drain it one item at a time dispatching through
// the registry, track the SIOP-established did/contract context, and on an
// all-success aggregate assemble the final ValidationResult — optionally
// followed by the status-receipt sub-protocol.
func (v *Validator) Validate(ctx context.Context, raw string) (*Response, error) {
	q := validationqueue.New()
	q.EnqueueToken(rootItemID, raw)

	var contextDid, contextContractId string
	outerSiopSeen := false

	for {
		item := q.GetNext()
		if item == nil {
			break
		}

		if item.ClaimToken == nil {
			token, err := claimtoken.New(item.TokenToValidate)
			if err != nil {
				q.SetResult(item, responseFromErr(err), nil)
				continue
			}
			item.ClaimToken = token
		}
		token := item.ClaimToken

		if token.Type.IsSiop() {
			if outerSiopSeen {
				q.SetResult(item, fail(apierrors.Malformed.Status(), "multiple outer SIOP tokens are not supported"), token)
				continue
			}
			outerSiopSeen = true
		}

		validator, ok := v.registry.Get(token.Type)
		if !ok {
			q.SetResult(item, fail(apierrors.Misconfigured.Status(), string(token.Type)+" does not has a TokenValidator"), token)
			continue
		}

		resp := validator.Validate(ctx, q, item, contextDid, contextContractId)
		q.SetResult(item, resp, token)

		if token.Type.IsSiop() && resp.Result {
			contextDid = resp.Did
			if contract, ok := token.Payload["contract"].(string); ok {
				contextContractId = readContractId(contract)
			}
		}
	}

	agg := q.Aggregate()
	if !agg.Result {
		return &Response{Result: false, Status: agg.Status, DetailedError: agg.DetailedError}, nil
	}

	result := assemble(q)

	if v.statusCheckEnabled {
		if err := v.runStatusCheck(ctx, result); err != nil {
			if apiErr, ok := err.(*apierrors.Error); ok {
				return &Response{Result: false, Status: apiErr.Status(), DetailedError: apiErr.Error()}, nil
			}
			return &Response{Result: false, Status: apierrors.Unavailable.Status(), DetailedError: err.Error()}, nil
		}
	}

	return &Response{Result: true, Status: 200, ValidationResult: result}, nil
}

// runStatusCheck runs the status-receipt sub-protocol over every validated
// verifiablePresentation and merges the per-jti entries into a single map.
func (v *Validator) runStatusCheck(ctx context.Context, result *ValidationResult) error {
	if len(result.VerifiablePresentations) == 0 {
		return nil
	}

	merged := make(map[string]statusreceipt.StatusEntry)
	for _, vp := range result.VerifiablePresentations {
		entries, err := v.statusChecker.CheckPresentation(ctx, vp)
		if err != nil {
			return err
		}
		for jti, entry := range entries {
			merged[jti] = entry
		}
	}

	if len(merged) > 0 {
		result.VerifiablePresentationStatus = merged
	}
	return nil
}

// readContractId URL-parses url and returns its last non-empty,
// URL-decoded path segment.
func readContractId(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	segments := strings.Split(parsed.Path, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] == "" {
			continue
		}
		decoded, err := url.PathUnescape(segments[i])
		if err != nil {
			return segments[i]
		}
		return decoded
	}
	return raw
}

// assemble scans a fully-drained queue and builds the final
// ValidationResult, grouping children by type keyed by their queue item id.
func assemble(q *validationqueue.Queue) *ValidationResult {
	result := &ValidationResult{}

	var fallbackAudience string

	for _, item := range q.Items() {
		token := item.ValidatedToken
		if token == nil || item.Response == nil {
			continue
		}

		switch {
		case token.Type.IsSiop():
			result.Did = item.Response.Did
			if contract, ok := token.Payload["contract"].(string); ok {
				result.Contract = contract
			}
			if jti, ok := token.Payload["jti"].(string); ok {
				result.SiopJti = jti
			}
			result.Siop = token.Payload

		case token.Type == claimtoken.IDToken:
			if result.IdTokens == nil {
				result.IdTokens = make(map[string]map[string]any)
			}
			result.IdTokens[item.ID] = item.Response.PayloadObject

		case token.Type == claimtoken.VerifiableCredential:
			if result.VerifiableCredentials == nil {
				result.VerifiableCredentials = make(map[string]*claimtoken.ClaimToken)
			}
			result.VerifiableCredentials[item.ID] = token
			if aud, ok := token.Payload["aud"].(string); ok && fallbackAudience == "" {
				fallbackAudience = aud
			}

		case token.Type == claimtoken.VerifiablePresentation:
			if result.VerifiablePresentations == nil {
				result.VerifiablePresentations = make(map[string]*claimtoken.ClaimToken)
			}
			result.VerifiablePresentations[item.ID] = token

		case token.Type == claimtoken.SelfIssued:
			result.SelfIssued = token.Payload
		}
	}

	if result.Did == "" {
		result.Did = fallbackAudience
	}

	return result
}

func fail(status int, detail string) *validationqueue.ValidationResponse {
	return &validationqueue.ValidationResponse{Result: false, Status: status, DetailedError: detail}
}

func responseFromErr(err error) *validationqueue.ValidationResponse {
	if apiErr, ok := err.(*apierrors.Error); ok {
		return fail(apiErr.Status(), apiErr.Detail)
	}
	return fail(apierrors.Rejected.Status(), err.Error())
}
