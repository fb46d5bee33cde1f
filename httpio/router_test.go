package httpio

import (
	"testing"
	"time"

	"github.com/llio/llio/iopipe"
	"github.com/stretchr/testify/require"
)

func TestRouterExactMatch(t *testing.T) {
	r := NewRouter()
	node := &Node{}
	r.Handle("/agent/state", node)

	got, ok := r.Traverse("/agent/state")
	require.True(t, ok)
	require.Same(t, node, got)
}

func TestRouterWildcardFallback(t *testing.T) {
	r := NewRouter()
	node := &Node{}
	r.Handle("/agent/*", node)

	got, ok := r.Traverse("/agent/1234/profile")
	require.True(t, ok)
	require.Same(t, node, got)

	_, ok = r.Traverse("/other/1234")
	require.False(t, ok)
}

func TestRouterPrefersMoreSpecificWildcard(t *testing.T) {
	r := NewRouter()
	general := &Node{}
	specific := &Node{}
	r.Handle("/agent/*", general)
	r.Handle("/agent/profile/*", specific)

	got, ok := r.Traverse("/agent/profile/1234")
	require.True(t, ok)
	require.Same(t, specific, got)

	got, ok = r.Traverse("/agent/other")
	require.True(t, ok)
	require.Same(t, general, got)
}

func TestRouterAllowRateLimitsPerRoute(t *testing.T) {
	r := NewRouter()
	r.Handle("/limited", &Node{})
	r.Limit("/limited", 1, 1)

	now := time.Now()
	require.True(t, r.Allow("/limited", now))
	require.False(t, r.Allow("/limited", now))

	require.True(t, r.Allow("/unlimited", now))
}

func TestNodeHasHandler(t *testing.T) {
	n := &Node{Get: func(resp *Response, ctx *iopipe.Context, params interface{}) {}}
	require.True(t, n.HasHandler(VerbGet))
	require.False(t, n.HasHandler(VerbPost))
}
