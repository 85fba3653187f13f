package didkey

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingResolver struct {
	calls int
	doc   *DidDocument
}

func (c *countingResolver) Resolve(_ context.Context, did string) (*DidDocument, error) {
	c.calls++
	return c.doc, nil
}

func TestCachingResolver_CachesSuccessfulResolution(t *testing.T) {
	inner := &countingResolver{doc: &DidDocument{ID: "did:example:1"}}
	cached := NewCachingResolver(inner, time.Minute)
	defer cached.Stop()

	_, err := cached.Resolve(context.Background(), "did:example:1")
	require.NoError(t, err)
	_, err = cached.Resolve(context.Background(), "did:example:1")
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, 1, cached.Len())
}

func TestCachingResolver_Invalidate(t *testing.T) {
	inner := &countingResolver{doc: &DidDocument{ID: "did:example:1"}}
	cached := NewCachingResolver(inner, time.Minute)
	defer cached.Stop()

	_, _ = cached.Resolve(context.Background(), "did:example:1")
	cached.Invalidate("did:example:1")
	_, _ = cached.Resolve(context.Background(), "did:example:1")

	assert.Equal(t, 2, inner.calls)
}
