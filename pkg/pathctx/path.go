// Package pathctx resolves parent contexts for tree shaped executions by the
// structural path of a node instead of by goroutine nesting.
//
// Sibling and child nodes of a tree (GraphQL fields, nested steps of a
// workflow) are often resolved on unrelated goroutines, so the context that
// happens to be current when a node starts says nothing about its parent.
// The Store records the context of each started node under its path and
// answers "which context is my parent" by longest registered prefix.
package pathctx

import "strings"

// Path is an ordered list of segments from the root. The root is the empty
// path.
type Path []string

var (
	segmentEscaper   = strings.NewReplacer("%", "%25", "/", "%2F")
	segmentUnescaper = strings.NewReplacer("%2F", "/", "%25", "%")
)

// ParsePath splits a slash separated path as produced by String. Empty
// segments are dropped, so "", "/" and "//" all parse to the root.
func ParsePath(s string) Path {
	parts := strings.Split(s, "/")
	p := make(Path, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			p = append(p, segmentUnescaper.Replace(part))
		}
	}
	return p
}

// String joins the segments with "/". A "/" or "%" inside a segment is
// percent-encoded, so distinct paths never share a string form.
func (p Path) String() string {
	escaped := make([]string, len(p))
	for i, segment := range p {
		escaped[i] = segmentEscaper.Replace(segment)
	}
	return "/" + strings.Join(escaped, "/")
}

func (p Path) IsRoot() bool {
	return len(p) == 0
}

// Parent drops the last segment. The parent of the root is the root.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return p
	}
	return p[:len(p)-1:len(p)-1]
}

// Child returns a new path with segment appended. p is not modified.
func (p Path) Child(segment string) Path {
	c := make(Path, len(p), len(p)+1)
	copy(c, p)
	return append(c, segment)
}

func (p Path) Last() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}
