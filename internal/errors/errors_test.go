package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuredError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *StructuredError
		want string
	}{
		{"no cause", New(KindConfiguration, "cluster name is required"), "[CONFIGURATION] cluster name is required"},
		{"with cause", Wrap(KindConnectivity, "fetch metrics", stderrors.New("connection refused")), "[CONNECTIVITY] fetch metrics: connection refused"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.err.Error())
		})
	}
}

func TestStructuredError_Unwrap(t *testing.T) {
	cause := stderrors.New("boom")
	err := Wrap(KindParse, "decode", cause)
	assert.ErrorIs(t, err, cause)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, KindInternal, KindOf(stderrors.New("plain")))
	assert.Equal(t, KindParse, KindOf(New(KindParse, "bad json")))

	wrapped := fmt.Errorf("node failed: %w", New(KindConnectivity, "timeout"))
	assert.Equal(t, KindConnectivity, KindOf(wrapped))
}

func TestIsKind_WalksChain(t *testing.T) {
	inner := Wrap(KindConnectivity, "status 500", nil)
	outer := Wrap(KindInternal, "collect node", inner)

	assert.True(t, IsKind(outer, KindInternal))
	assert.True(t, IsKind(outer, KindConnectivity))
	assert.False(t, IsKind(outer, KindParse))
	assert.False(t, IsKind(stderrors.New("plain"), KindParse))
	assert.False(t, IsKind(nil, KindParse))
}

func TestContextOf_OuterWins(t *testing.T) {
	inner := WrapWithContext(KindConnectivity, "get", nil, map[string]any{"url": "http://a", "status": 500})
	outer := WrapWithContext(KindConnectivity, "node", inner, map[string]any{"url": "http://b"})

	ctx := ContextOf(outer)
	require.Len(t, ctx, 2)
	assert.Equal(t, "http://b", ctx["url"])
	assert.Equal(t, 500, ctx["status"])
}
