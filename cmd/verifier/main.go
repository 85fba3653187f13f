package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"siopverifier/internal/verifier/apiv1"
	"siopverifier/pkg/configuration"
	"siopverifier/pkg/didkey"
	"siopverifier/pkg/logger"
	"siopverifier/pkg/model"
)

func main() {
	ctx := context.Background()

	tokenFlag := flag.String("token", "", "raw SIOP response token to validate (default: read from stdin)")
	flag.Parse()

	cfg, err := configuration.New(ctx)
	if err != nil {
		panic(err)
	}

	log, err := logger.New("verifier", cfg.Common.Log.FolderPath, cfg.Common.Production)
	if err != nil {
		panic(err)
	}
	mainLog := log.New("main")

	raw := *tokenFlag
	if raw == "" {
		input, err := io.ReadAll(os.Stdin)
		if err != nil {
			mainLog.Info("failed to read token from stdin", "error", err)
			os.Exit(2)
		}
		raw = strings.TrimSpace(string(input))
	}
	if raw == "" {
		fmt.Fprintln(os.Stderr, "no token given: pass -token or pipe one to stdin")
		os.Exit(2)
	}

	validator, err := buildValidator(cfg)
	if err != nil {
		mainLog.Info("failed to build validator", "error", err)
		os.Exit(2)
	}

	resp, err := validator.Validate(ctx, raw)
	if err != nil {
		mainLog.Info("validation engine error", "error", err)
		os.Exit(2)
	}

	encoded, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		mainLog.Info("failed to encode response", "error", err)
		os.Exit(2)
	}
	fmt.Println(string(encoded))

	if !resp.Result {
		os.Exit(1)
	}
}

// buildValidator wires an apiv1.Validator from cfg: a caching DID resolver
// routing did:key/did:jwk locally and everything else to the GoTrust PDP at
// cfg.Verifier.DidResolverBaseURL, plus the trust anchors and optional
// status-check sub-protocol from cfg.Verifier.
func buildValidator(cfg *model.Cfg) (*apiv1.Validator, error) {
	var resolver didkey.Resolver = didkey.NewLocalResolver()
	if cfg.Verifier.DidResolverBaseURL != "" {
		remote := didkey.NewGoTrustResolver(cfg.Verifier.DidResolverBaseURL)
		resolver = didkey.NewSmartResolver(remote)
	}
	resolver = didkey.NewCachingResolver(resolver, didkey.DefaultCacheTTL)

	trustedIssuers := make(map[string]map[string]struct{}, len(cfg.Verifier.TrustedIssuers))
	for contractID, issuers := range cfg.Verifier.TrustedIssuers {
		set := make(map[string]struct{}, len(issuers))
		for _, issuer := range issuers {
			set[issuer] = struct{}{}
		}
		trustedIssuers[contractID] = set
	}

	idTokenIssuers := make(map[string]struct{}, len(cfg.Verifier.IDTokenIssuers))
	idTokenConfiguration := make(map[string]string, len(cfg.Verifier.IDTokenIssuers))
	for issuer, details := range cfg.Verifier.IDTokenIssuers {
		idTokenIssuers[issuer] = struct{}{}
		if details.ConfigurationURL != "" {
			idTokenConfiguration[issuer] = details.ConfigurationURL
		}
	}

	builder := apiv1.NewValidatorBuilder(resolver).
		WithAudience(cfg.Verifier.Did).
		WithClockSkew(time.Duration(cfg.Verifier.ClockSkewSeconds) * time.Second).
		WithReplay(cfg.Verifier.ExpectedNonce, cfg.Verifier.ExpectedState).
		WithTrustedIssuers(trustedIssuers).
		WithIDTokenIssuers(idTokenIssuers, idTokenConfiguration)

	if cfg.Verifier.StatusCheck.Enabled {
		signer, err := apiv1.NewLocalSigner(cfg.Verifier.Did, cfg.Verifier.StatusCheck.KeyReference, cfg.Verifier.StatusCheck.SigningKeyPath)
		if err != nil {
			return nil, err
		}
		timeout := time.Duration(cfg.Verifier.StatusCheck.TimeoutSeconds) * time.Second
		builder = builder.WithStatusCheck(signer, timeout)
	}

	return builder.Build(), nil
}
