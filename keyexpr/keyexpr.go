// Package keyexpr implements canonicalization and intersection testing for
// Zenoh key expressions: '/'-separated chunk sequences over
// [A-Za-z0-9_-], with the chunk wildcard '*', the any-depth wildcard '**',
// and the intra-chunk glob '$*'. Chunks prefixed with '@' are verbatim and
// excluded from wildcard matches.
package keyexpr

import (
	"strings"

	"github.com/zenohgo/zenoh08/core"
)

// KeyExpr is a canonical key expression: a KeyExpr constructed through New
// is already in normal form. A direct conversion from string skips that
// canonicalization and validation.
type KeyExpr string

// New canonicalizes s and validates it, returning InvalidArgument on a
// malformed expression (empty chunks, leading/trailing '/').
func New(s string) (KeyExpr, *core.Error) {
	canon, err := Canonize(s)
	if err != nil {
		return "", err
	}
	return KeyExpr(canon), nil
}

// String returns the canonical textual form.
func (k KeyExpr) String() string { return string(k) }

// Intersects reports whether k and other denote overlapping sets of
// concrete keys. Both receivers are already canonical by construction.
func (k KeyExpr) Intersects(other KeyExpr) bool {
	return Intersect(string(k), string(other))
}

// Canonize rewrites a key expression into normal form: '**/**' collapses to
// '**', '*/**' and '**/*' collapse to '**', and any run of one or more
// consecutive '$*' tokens inside a chunk collapses to a single '$*'. Empty
// chunks (leading/trailing '/', or '//') are rejected.
func Canonize(s string) (string, *core.Error) {
	if s == "" {
		return "", core.NewError(core.InvalidArgument, "keyexpr: empty expression")
	}

	chunks := strings.Split(s, "/")
	for _, c := range chunks {
		if c == "" {
			return "", core.NewError(core.InvalidArgument, "keyexpr: empty chunk (leading/trailing or doubled '/')")
		}
	}

	for i, c := range chunks {
		chunks[i] = collapseDollarStarRuns(c)
	}

	chunks = collapseWildcardChunks(chunks)

	return strings.Join(chunks, "/"), nil
}

// collapseDollarStarRuns rewrites any run of >=1 consecutive "$*" tokens
// within a chunk to a single "$*", leaving the rest of the chunk untouched.
func collapseDollarStarRuns(chunk string) string {
	if !strings.Contains(chunk, "$*") {
		return chunk
	}

	var b strings.Builder
	b.Grow(len(chunk))
	i := 0
	for i < len(chunk) {
		if chunk[i] == '$' && i+1 < len(chunk) && chunk[i+1] == '*' {
			b.WriteString("$*")
			i += 2
			for i+1 < len(chunk) && chunk[i] == '$' && chunk[i+1] == '*' {
				i += 2
			}
			continue
		}
		b.WriteByte(chunk[i])
		i++
	}
	return b.String()
}

// collapseWildcardChunks collapses "**/**" to "**" and "*/**"/"**/ *" to
// "**", scanning left to right and folding into the accumulator in place.
func collapseWildcardChunks(chunks []string) []string {
	out := chunks[:0]
	for _, c := range chunks {
		switch c {
		case "**":
			if n := len(out); n > 0 && (out[n-1] == "**" || out[n-1] == "*") {
				out[n-1] = "**"
				continue
			}
			out = append(out, c)
		case "*":
			if n := len(out); n > 0 && out[n-1] == "**" {
				continue
			}
			out = append(out, c)
		default:
			out = append(out, c)
		}
	}
	return out
}

func isVerbatim(chunk string) bool { return strings.HasPrefix(chunk, "@") }

func hasVerbatim(chunks []string) bool {
	for _, c := range chunks {
		if isVerbatim(c) {
			return true
		}
	}
	return false
}

// Intersect reports whether two canonical key expressions a and b denote
// overlapping sets of concrete keys. Behavior on non-canonical input is
// unspecified; canonize first via New or Canonize.
//
// A trailing "**" can only absorb zero chunks from the other side when that other
// side — taken as a whole, not just its unconsumed tail — carries no
// verbatim chunk: "@a" vs "@a/**" is false because "@a" the whole
// expression is verbatim, even though the unconsumed remainder at that
// point in the recursion is empty.
func Intersect(a, b string) bool {
	chunksL := strings.Split(a, "/")
	chunksR := strings.Split(b, "/")
	return intersectChunks(chunksL, chunksR, hasVerbatim(chunksL), hasVerbatim(chunksR))
}

// intersectChunks implements the inductive definition over chunk slices
// L, R: both empty is true; a "**" on either side matches zero or more
// non-verbatim chunks of the other; otherwise heads must chunk-intersect
// and tails must intersect. vL/vR record whether the whole original L/R
// (not just the current tail) ever carried a verbatim chunk.
func intersectChunks(it1, it2 []string, vL, vR bool) bool {
	for len(it1) > 0 && len(it2) > 0 {
		c1, rest1 := it1[0], it1[1:]
		c2, rest2 := it2[0], it2[1:]

		switch {
		case c1 == "**":
			if len(rest1) == 0 {
				return !hasVerbatim(it2)
			}
			return (!isVerbatim(c2) && intersectChunks(it1, rest2, vL, vR)) || intersectChunks(rest1, it2, vL, vR)
		case c2 == "**":
			if len(rest2) == 0 {
				return !hasVerbatim(it1)
			}
			return (!isVerbatim(c1) && intersectChunks(rest1, it2, vL, vR)) || intersectChunks(it1, rest2, vL, vR)
		default:
			if !chunkIntersect(c1, c2) {
				return false
			}
			it1, it2 = rest1, rest2
		}
	}

	switch {
	case len(it1) == 0 && len(it2) == 0:
		return true
	case len(it1) == 0:
		return len(it2) == 1 && it2[0] == "**" && !vL
	case len(it2) == 0:
		return len(it1) == 1 && it1[0] == "**" && !vR
	default:
		return false
	}
}

// chunkIntersect reports whether two single chunks overlap: equal strings
// always intersect; "*" intersects any non-verbatim chunk; verbatim chunks
// intersect only by literal equality; otherwise a $*-aware matcher decides.
func chunkIntersect(c1, c2 string) bool {
	if c1 == c2 {
		return true
	}
	if isVerbatim(c1) || isVerbatim(c2) {
		return false
	}
	if c1 == "*" || c2 == "*" {
		return true
	}
	return dollarStarIntersect([]byte(c1), []byte(c2))
}

// dollarStarIntersect greedily backtracks over "$*" tokens inside two
// chunks, treating each as a 2-byte glob token that may consume zero or
// more following bytes.
func dollarStarIntersect(it1, it2 []byte) bool {
	for len(it1) > 0 && len(it2) > 0 {
		c1, rest1 := it1[0], it1[1:]
		c2, rest2 := it2[0], it2[1:]

		switch {
		case c1 == '$' && c2 == '$':
			if len(rest1) == 1 || len(rest2) == 1 {
				return true
			}
			if dollarStarIntersect(rest1[1:], it2) {
				return true
			}
			return dollarStarIntersect(it1, rest2[1:])
		case c1 == '$':
			if len(rest1) == 1 {
				return true
			}
			if dollarStarIntersect(rest1[1:], it2) {
				return true
			}
			it2 = rest2
		case c2 == '$':
			if len(rest2) == 1 {
				return true
			}
			if dollarStarIntersect(it1, rest2[1:]) {
				return true
			}
			it1 = rest1
		case c1 == c2:
			it1, it2 = rest1, rest2
		default:
			return false
		}
	}
	return (len(it1) == 0 && len(it2) == 0) || string(it1) == "$*" || string(it2) == "$*"
}
