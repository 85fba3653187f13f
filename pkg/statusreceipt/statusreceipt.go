// Package statusreceipt implements the status-receipt sub-protocol: for
// each validated verifiable presentation, every nested credential that
// names a credentialStatus.id gets a signed status-request envelope POSTed
// to it, and the signed receipt that comes back is itself validated and
// folded into a per-jti StatusEntry map. It is only invoked when the
// orchestrator's status-check feature flag is enabled; disabled, it never
// runs and produces no network traffic.
package statusreceipt

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"

	"siopverifier/pkg/apierrors"
	"siopverifier/pkg/claimtoken"
	"siopverifier/pkg/didkey"
	"siopverifier/pkg/tokenverify"
)

// DefaultTimeout bounds each status-request HTTP call; every HTTP call
// this package makes carries a timeout, configurable via Checker.Timeout.
const DefaultTimeout = 10 * time.Second

// Signer is the verifier's own signing identity. Low-level key storage and
// signing are treated as an external concern, so the checker only needs
// enough of an interface to produce a signed envelope and name itself.
type Signer interface {
	// Did is the verifier's own DID, used as both `did` and `aud` in
	// receipts issued back to it.
	Did() string

	// KeyReference names the verification method fragment identifying
	// the signing key, combined into `did#keyRef` for the envelope's kid.
	KeyReference() string

	// PublicJWK returns the verifier's public key as a JWK map, embedded
	// in the envelope as `sub_jwk` so a status service with no DID
	// resolution path can still verify it.
	PublicJWK(ctx context.Context) (map[string]any, error)

	// Sign produces a compact JWS over header merged with payload, using
	// the verifier's own private key.
	Sign(ctx context.Context, header, payload map[string]any) (string, error)
}

// StatusEntry is the per-jti outcome accumulated from one credential
// status receipt.
type StatusEntry struct {
	Jti     string
	Result  bool
	Status  int
	Detail  string
	Claims  map[string]any
}

// Checker drives the status-receipt sub-protocol for one HTTP client and
// signing identity, shared across every presentation checked during a
// single Validate call.
type Checker struct {
	Signer   Signer
	Resolver didkey.Resolver
	Client   *http.Client
	Timeout  time.Duration
}

// NewChecker builds a Checker with DefaultTimeout and http.DefaultClient.
func NewChecker(signer Signer, resolver didkey.Resolver) *Checker {
	return &Checker{Signer: signer, Resolver: resolver, Client: http.DefaultClient, Timeout: DefaultTimeout}
}

func (c *Checker) client() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return http.DefaultClient
}

func (c *Checker) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

// CheckPresentation runs the status-receipt sub-protocol for one validated
// verifiable presentation: every verifiableCredential it nests that exposes
// credentialStatus.id gets a signed status request POSTed to that URL, and
// the returned receipt is validated and folded into the returned map,
// keyed by the jti each receipt entry names.
func (c *Checker) CheckPresentation(ctx context.Context, vp *claimtoken.ClaimToken) (map[string]StatusEntry, error) {
	vcRaws, err := nestedVerifiableCredentials(vp.Payload)
	if err != nil {
		return nil, err
	}

	entries := make(map[string]StatusEntry)
	for _, raw := range vcRaws {
		vcToken, err := claimtoken.New(raw)
		if err != nil {
			return nil, err
		}

		statusURL, ok := credentialStatusURL(vcToken.Payload)
		if !ok {
			continue
		}

		vcIssuer, _ := vcToken.Payload["iss"].(string)
		if vcIssuer == "" {
			return nil, apierrors.New(apierrors.Malformed, "verifiableCredential carries no iss to check status against")
		}

		receiptRaw, err := c.requestReceipt(ctx, vp, statusURL)
		if err != nil {
			return nil, err
		}

		receiptEntries, err := c.validateReceipt(ctx, receiptRaw, vcIssuer)
		if err != nil {
			return nil, err
		}

		for jti, entry := range receiptEntries {
			entries[jti] = entry
		}
	}

	return entries, nil
}

// requestReceipt builds and signs the envelope, POSTs it to statusURL, and
// returns the raw response body.
func (c *Checker) requestReceipt(ctx context.Context, vp *claimtoken.ClaimToken, statusURL string) (string, error) {
	publicJwk, err := c.Signer.PublicJWK(ctx)
	if err != nil {
		return "", apierrors.Wrap(apierrors.Unavailable, err, "failed to obtain verifier public key")
	}

	did := c.Signer.Did()
	kid := did + "#" + c.Signer.KeyReference()

	payload := map[string]any{
		"did":     did,
		"vp":      vp.RawToken,
		"sub_jwk": publicJwk,
	}
	header := map[string]any{"kid": kid}

	envelope, err := c.Signer.Sign(ctx, header, payload)
	if err != nil {
		return "", apierrors.Wrap(apierrors.Unavailable, err, "failed to sign status request envelope")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, statusURL, bytes.NewBufferString(envelope))
	if err != nil {
		return "", apierrors.Wrap(apierrors.Unavailable, err, "status check could not fetch response from "+statusURL)
	}
	req.Header.Set("Content-Type", "application/jwt")

	resp, err := c.client().Do(req)
	if err != nil {
		return "", apierrors.Wrap(apierrors.Unavailable, err, "status check could not fetch response from "+statusURL)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apierrors.Wrap(apierrors.Unavailable, err, "status check could not fetch response from "+statusURL)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apierrors.Newf(apierrors.Unavailable, "status check could not fetch response from %s", statusURL)
	}

	return extractEnvelopeToken(body)
}

// extractEnvelopeToken accepts either a bare compact-JWS response body or a
// `{"token": "..."}` JSON envelope, matching how a status service may
// reasonably wrap the signed receipt.
func extractEnvelopeToken(body []byte) (string, error) {
	trimmed := bytesTrimSpace(body)
	if len(trimmed) == 0 {
		return "", apierrors.New(apierrors.Malformed, "status check response body is empty")
	}
	if trimmed[0] == '{' {
		var wrapper struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return "", apierrors.Wrap(apierrors.Malformed, err, "status check response is not a valid JSON envelope")
		}
		if wrapper.Token == "" {
			return "", apierrors.New(apierrors.Malformed, "status check response JSON envelope carries no token")
		}
		return wrapper.Token, nil
	}
	return string(trimmed), nil
}

func bytesTrimSpace(b []byte) []byte {
	start, end := 0, len(b)
	for start < end && isSpace(b[start]) {
		start++
	}
	for end > start && isSpace(b[end-1]) {
		end--
	}
	return b[start:end]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// validateReceipt verifies the returned receipt: it must itself be a
// signed SIOP-like token (classified by claimtoken.New as
// verifiablePresentationStatus), whose signature verifies against its own
// embedded sub_jwk or resolved sub DID and whose aud is the verifier's own
// DID. Each entry nested in its `receipt` map is then independently
// verified against expectedIssuer (the checked credential's iss) and
// folded into a StatusEntry keyed by the entry's id.
func (c *Checker) validateReceipt(ctx context.Context, raw, expectedIssuer string) (map[string]StatusEntry, error) {
	receipt, err := claimtoken.New(raw)
	if err != nil {
		return nil, err
	}
	if receipt.Type != claimtoken.VerifiablePresentationStatus {
		return nil, apierrors.Newf(apierrors.Rejected, "status receipt was classified as %s, not a status receipt", receipt.Type)
	}

	publicKey, err := c.resolveEnvelopeKey(ctx, receipt)
	if err != nil {
		return nil, err
	}

	claims, err := tokenverify.VerifyJws(receipt.RawToken, publicKey)
	if err != nil {
		return nil, err
	}
	if err := tokenverify.CheckClaims(claims, tokenverify.ClaimOptions{Audience: c.Signer.Did()}); err != nil {
		return nil, err
	}

	children, err := claimtoken.ExtractReceipt(receipt.Payload)
	if err != nil {
		return nil, err
	}

	entries := make(map[string]StatusEntry, len(children))
	for _, child := range children {
		entry, err := c.validateEntry(ctx, child.ID, child.Token, expectedIssuer)
		if err != nil {
			return nil, err
		}
		entries[child.ID] = entry
	}

	return entries, nil
}

// resolveEnvelopeKey mirrors the SIOP validator's self-signed key
// resolution: an inline sub_jwk takes precedence over DID-resolving sub,
// since a status service needs no DID infrastructure at all to answer.
func (c *Checker) resolveEnvelopeKey(ctx context.Context, ct *claimtoken.ClaimToken) (any, error) {
	if raw, ok := ct.Payload["sub_jwk"]; ok {
		return jwkMapToPublicKey(raw)
	}

	sub, _ := ct.Payload["sub"].(string)
	if sub == "" {
		return nil, apierrors.New(apierrors.Malformed, "status receipt carries neither sub_jwk nor sub")
	}
	if c.Resolver == nil {
		return nil, apierrors.New(apierrors.Misconfigured, "status receipt carries no sub_jwk and no DID resolver is configured")
	}

	kid, _ := ct.Header["kid"].(string)
	if kid == "" {
		kid = sub
	}
	return didkey.ResolveKey(ctx, c.Resolver, sub, kid)
}

// validateEntry verifies one receipt entry: signed by expectedIssuer's DID,
// iss claim matching it exactly.
func (c *Checker) validateEntry(ctx context.Context, jti string, ct *claimtoken.ClaimToken, expectedIssuer string) (StatusEntry, error) {
	if c.Resolver == nil {
		return StatusEntry{}, apierrors.New(apierrors.Misconfigured, "no DID resolver configured to verify status receipt entries")
	}

	kid, _ := ct.Header["kid"].(string)
	if kid == "" {
		kid = expectedIssuer
	}

	publicKey, err := didkey.ResolveKey(ctx, c.Resolver, expectedIssuer, kid)
	if err != nil {
		return StatusEntry{}, err
	}

	claims, err := tokenverify.VerifyJws(ct.RawToken, publicKey)
	if err != nil {
		return StatusEntry{}, err
	}

	if err := tokenverify.CheckClaims(claims, tokenverify.ClaimOptions{ExpectedIssuer: expectedIssuer}); err != nil {
		return StatusEntry{}, err
	}

	return StatusEntry{Jti: jti, Result: true, Status: 200, Claims: ct.Payload}, nil
}

func jwkMapToPublicKey(raw any) (any, error) {
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

func credentialStatusURL(vcPayload map[string]any) (string, bool) {
	vc, ok := vcPayload["vc"].(map[string]any)
	if !ok {
		return "", false
	}
	status, ok := vc["credentialStatus"].(map[string]any)
	if !ok {
		return "", false
	}
	id, ok := status["id"].(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
