// Package tokenverify implements the signature and standard-claim
// primitives every per-type validator builds on: verifyJws plus the
// exp/nbf/aud/iss checks shared by every token type.
package tokenverify

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"siopverifier/pkg/apierrors"
)

// DefaultClockSkew is the tolerance applied to exp/nbf checks when
// ClaimOptions.ClockSkew is zero.
const DefaultClockSkew = 5 * time.Minute

// ClaimOptions parameterizes CheckClaims. Every field is optional: an empty
// Audience skips the aud check and an empty ExpectedIssuer skips the iss
// check.
type ClaimOptions struct {
	// Audience is the configured audience; a token's aud (string or array
	// member) must equal it.
	Audience string

	// ExpectedIssuer is compared against the token's iss directly, unless
	// IssuerAliases maps the token's iss to an expected value first.
	ExpectedIssuer string

	// IssuerAliases maps a raw iss claim to the issuer it should be
	// treated as, letting an iss value be accepted as an alias of a
	// differently-named configured issuer.
	IssuerAliases map[string]string

	// ClockSkew bounds how far exp may be in the past / nbf in the future
	// while still being accepted. Defaults to DefaultClockSkew.
	ClockSkew time.Duration
}

func (o ClaimOptions) skew() time.Duration {
	if o.ClockSkew <= 0 {
		return DefaultClockSkew
	}
	return o.ClockSkew
}

// VerifyJws parses and cryptographically verifies a compact JWS against
// publicKey, returning its claims on success. It does not evaluate exp/nbf/
// aud/iss — that is CheckClaims's job, so callers can verify the signature
// and still report a precise claim-shape error afterward.
func VerifyJws(raw string, publicKey any) (jwt.MapClaims, error) {
	token, err := jwt.Parse(raw, func(*jwt.Token) (any, error) {
		return publicKey, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, apierrors.Wrap(apierrors.Rejected, err, "signature verification failed")
	}
	if !token.Valid {
		return nil, apierrors.New(apierrors.Rejected, "signature verification failed")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apierrors.New(apierrors.Rejected, "token claims are not a JSON object")
	}

	return claims, nil
}

// CheckClaims applies the standard exp/nbf/aud/iss checks. Every failure
// is a *apierrors.Error with Kind Rejected and a specific detail message.
func CheckClaims(claims jwt.MapClaims, opts ClaimOptions) error {
	skew := opts.skew()
	now := time.Now()

	if expVal, ok := claims["exp"]; ok {
		exp, err := asTime(expVal)
		if err != nil {
			return apierrors.Wrap(apierrors.Rejected, err, "exp claim is not a valid timestamp")
		}
		if now.After(exp.Add(skew)) {
			return apierrors.Newf(apierrors.Rejected, "token has expired: exp=%s now=%s", exp, now)
		}
	} else {
		return apierrors.New(apierrors.Rejected, "exp claim is required")
	}

	if nbfVal, ok := claims["nbf"]; ok {
		nbf, err := asTime(nbfVal)
		if err != nil {
			return apierrors.Wrap(apierrors.Rejected, err, "nbf claim is not a valid timestamp")
		}
		if now.Add(skew).Before(nbf) {
			return apierrors.Newf(apierrors.Rejected, "token not yet valid: nbf=%s now=%s", nbf, now)
		}
	}

	if opts.Audience != "" {
		if !audienceMatches(claims["aud"], opts.Audience) {
			return apierrors.Newf(apierrors.Rejected, "aud claim %v does not contain expected audience %q", claims["aud"], opts.Audience)
		}
	}

	if opts.ExpectedIssuer != "" {
		iss, _ := claims["iss"].(string)
		resolved := iss
		if alias, ok := opts.IssuerAliases[iss]; ok {
			resolved = alias
		}
		if resolved != opts.ExpectedIssuer {
			return apierrors.Newf(apierrors.Rejected, "iss claim %q does not match expected issuer %q", iss, opts.ExpectedIssuer)
		}
	}

	return nil
}

func asTime(v any) (time.Time, error) {
	switch n := v.(type) {
	case float64:
		return time.Unix(int64(n), 0), nil
	case int64:
		return time.Unix(n, 0), nil
	case jwt.NumericDate:
		return n.Time, nil
	default:
		return time.Time{}, apierrors.Newf(apierrors.Rejected, "unsupported timestamp type %T", v)
	}
}

func audienceMatches(aud any, expected string) bool {
	switch a := aud.(type) {
	case string:
		return a == expected
	case []any:
		for _, v := range a {
			if s, ok := v.(string); ok && s == expected {
				return true
			}
		}
		return false
	case []string:
		for _, s := range a {
			if s == expected {
				return true
			}
		}
		return false
	default:
		return false
	}
}
