package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLedgerClaimOnce(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()

	ok, err := l.Claim(ctx, NamespaceResetTokens, "jti-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Claim(ctx, NamespaceResetTokens, "jti-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.Claim(ctx, NamespaceSessions, "jti-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "namespaces are independent")
}

func TestMemoryLedgerReleaseAndExpiry(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	now := time.Now()
	l.now = func() time.Time { return now }

	_, _ = l.Claim(ctx, NamespaceSessions, "a", time.Minute)
	exists, _ := l.Exists(ctx, NamespaceSessions, "a")
	assert.True(t, exists)

	require.NoError(t, l.Release(ctx, NamespaceSessions, "a"))
	exists, _ = l.Exists(ctx, NamespaceSessions, "a")
	assert.False(t, exists)

	_, _ = l.Claim(ctx, NamespaceSessions, "b", time.Minute)
	now = now.Add(2 * time.Minute)
	exists, _ = l.Exists(ctx, NamespaceSessions, "b")
	assert.False(t, exists)
	ok, _ := l.Claim(ctx, NamespaceSessions, "b", time.Minute)
	assert.True(t, ok)
}
