package model

// Log holds the log configuration.
type Log struct {
	Level      string `yaml:"level"`
	FolderPath string `yaml:"folder_path"`
}

// Common holds configuration shared by every binary in this module.
type Common struct {
	Production bool `yaml:"production"`
	Log        Log  `yaml:"log"`
}

// StatusCheck holds the status-receipt sub-protocol configuration: it is
// off by default and only invoked when Enabled is set.
type StatusCheck struct {
	Enabled        bool   `yaml:"enabled"`
	TimeoutSeconds int    `yaml:"timeout_seconds" default:"10"`
	SigningKeyPath string `yaml:"signing_key_path" validate:"required_if=Enabled true"`

	// KeyReference names the `kid` fragment the signer attaches to every
	// status-check envelope it signs, identifying which verification
	// method in this verifier's own DID document the key belongs to.
	KeyReference string `yaml:"key_reference"`
}

// IDTokenIssuer holds one accepted OIDC id-token issuer and the way its
// discovery document is reached, for the id-token validator.
type IDTokenIssuer struct {
	// ConfigurationURL overrides OIDC discovery for this issuer, used when
	// the token's own configuration claim should not be trusted.
	ConfigurationURL string `yaml:"configuration_url"`
}

// Verifier holds the configuration of this SIOP verifier: trust anchors,
// expected audience, and the optional status-check sub-protocol.
type Verifier struct {
	// Did is this verifier's own identity, the expected `aud` of the
	// outer SIOP token and of any status-receipt envelope.
	Did string `yaml:"did" validate:"required"`

	// ClockSkewSeconds bounds exp/nbf tolerance for the outer SIOP token,
	// default matches tokenverify.DefaultClockSkew. The VC, VP and
	// status-receipt checks always use tokenverify.DefaultClockSkew.
	ClockSkewSeconds int `yaml:"clock_skew_seconds" default:"300"`

	// ExpectedNonce and ExpectedState implement the outer SIOP's replay
	// check; empty disables the corresponding check.
	ExpectedNonce string `yaml:"expected_nonce"`
	ExpectedState string `yaml:"expected_state"`

	// TrustedIssuers maps a contract id to the set of issuer DIDs trusted
	// to issue a verifiableCredential under it: the issuer DID must be in
	// the trusted set for the contract id the SIOP carried.
	TrustedIssuers map[string][]string `yaml:"trusted_issuers"`

	// IDTokenIssuers maps an accepted OIDC issuer to its discovery
	// configuration, keying the id-token issuer allow-list.
	IDTokenIssuers map[string]IDTokenIssuer `yaml:"id_token_issuers"`

	// DidResolverBaseURL points the non-self-contained DID methods
	// (did:web, did:ebsi, ...) at a GoTrustResolver-compatible PDP. Empty
	// means only did:key/did:jwk DIDs can be resolved.
	DidResolverBaseURL string `yaml:"did_resolver_base_url"`

	StatusCheck StatusCheck `yaml:"status_check"`
}

// Cfg is the configuration structure for the verifier binary.
type Cfg struct {
	Common   Common   `yaml:"common"`
	Verifier Verifier `yaml:"verifier" validate:"required"`
}
