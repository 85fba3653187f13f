package siopvalidate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"siopverifier/pkg/claimtoken"
)

func TestRegistry_GetRegisteredAndMissing(t *testing.T) {
	siop := NewSiopValidator(nil)
	selfIssued := NewSelfIssuedValidator()

	r := NewRegistry(siop, selfIssued)

	v, ok := r.Get(claimtoken.SiopIssuance)
	assert.True(t, ok)
	assert.Same(t, siop, v)

	_, ok = r.Get(claimtoken.VerifiableCredential)
	assert.False(t, ok, "no VcValidator was registered")
}
