package keyexpr_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenohgo/zenoh08/keyexpr"
)

func TestIntersectTruthTable(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"a", "a", true},
		{"*", "abc", true},
		{"a/*/c/*/e", "a/b/c/d/e", true},
		{"a/*/c/*/e", "a/c/e", false},
		{"**", "a/b/c", true},
		{"@a", "@a/**", false},
		{"@a/**/@b", "@a/@b", true},
		{"ab$*cd", "abxxcxxd", false},
		{"ab$*cd", "abxxcxxcd", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, keyexpr.Intersect(tt.a, tt.b), "intersect(%q, %q)", tt.a, tt.b)
	}
}

func TestIntersectSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"a/*/c/*/e", "a/b/c/d/e"},
		{"a/*/c/*/e", "a/c/e"},
		{"**", "a/b/c"},
		{"@a", "@a/**"},
		{"@a/**/@b", "@a/@b"},
		{"ab$*cd", "abxxcxxcd"},
		{"a/**/b", "a/x/y/z/b"},
	}
	for _, p := range pairs {
		assert.Equal(t, keyexpr.Intersect(p[0], p[1]), keyexpr.Intersect(p[1], p[0]), "symmetry(%q, %q)", p[0], p[1])
	}
}

func TestCanonizeIdempotent(t *testing.T) {
	inputs := []string{
		"a/b/c",
		"a/**/**/b",
		"a/*/**/b",
		"a/**/*/b",
		"a/$*$*$*b",
		"**",
		"a/b/$*",
	}
	for _, in := range inputs {
		once, err := keyexpr.Canonize(in)
		require.Nil(t, err)
		twice, err := keyexpr.Canonize(once)
		require.Nil(t, err)
		assert.Equal(t, once, twice, "canonize(canonize(%q))", in)
	}
}

func TestCanonizeCollapses(t *testing.T) {
	tests := []struct{ in, want string }{
		{"a/**/**/b", "a/**/b"},
		{"a/*/**/b", "a/**/b"},
		{"a/**/*/b", "a/**/b"},
		{"a/$*$*$*b", "a/$*b"},
		{"**", "**"},
	}
	for _, tt := range tests {
		got, err := keyexpr.Canonize(tt.in)
		require.Nil(t, err)
		assert.Equal(t, tt.want, got, "canonize(%q)", tt.in)
	}
}

func TestCanonizeRejectsEmptyChunks(t *testing.T) {
	for _, in := range []string{"", "/a", "a/", "a//b"} {
		_, err := keyexpr.Canonize(in)
		require.NotNil(t, err, "canonize(%q) should fail", in)
	}
}

func TestNewRoundTripsThroughKeyExpr(t *testing.T) {
	k, err := keyexpr.New("demo/example/*")
	require.Nil(t, err)
	assert.True(t, k.Intersects(k))
	other, err := keyexpr.New("demo/example/foo")
	require.Nil(t, err)
	assert.True(t, k.Intersects(other))
}
