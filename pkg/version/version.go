// Package version models artifact versions and their total ordering.
//
// Three representations exist:
//
//   - [Semantic]: major[.minor[.patch]][-prerelease][+build]
//   - [Composite]: an ordered sequence of versions, the first being the main one
//   - [Raw]: any string that does not parse as semantic
//
// [Parse] never fails. Anything it cannot read as [Semantic] becomes [Raw],
// and Raw versions sort above every other kind so an unparseable version is
// treated as the newest one.
package version

import (
	"regexp"
	"strconv"
	"strings"
)

// Version is a comparable artifact version.
type Version interface {
	// String returns the textual form of the version.
	String() string

	// Compare returns a negative number if v < other, zero if equal,
	// and a positive number if v > other.
	Compare(other Version) int
}

var semverPattern = regexp.MustCompile(`^(0|[1-9]\d*)` +
	`(?:\.(0|[1-9]\d*))?` +
	`(?:\.(0|[1-9]\d*))?` +
	`(?:-((?:0|[1-9]\d*|\d*[a-zA-Z-][0-9a-zA-Z-]*)(?:\.(?:0|[1-9]\d*|\d*[a-zA-Z-][0-9a-zA-Z-]*))*))?` +
	`(?:\+([0-9a-zA-Z-]+(?:\.[0-9a-zA-Z-]+)*))?$`)

// Parse reads text as a semantic version, falling back to [Raw] on any
// mismatch (including integer overflow). It never fails.
func Parse(text string) Version {
	m := semverPattern.FindStringSubmatch(text)
	if m == nil {
		return Raw{Text: text}
	}
	major, err := strconv.Atoi(m[1])
	if err != nil {
		return Raw{Text: text}
	}
	minor, ok := optionalInt(m[2])
	if !ok {
		return Raw{Text: text}
	}
	patch, ok := optionalInt(m[3])
	if !ok {
		return Raw{Text: text}
	}
	return Semantic{Major: major, Minor: minor, Patch: patch, PreRelease: m[4], Build: m[5]}
}

func optionalInt(s string) (int, bool) {
	if s == "" {
		return -1, true
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}

// Equal reports whether a and b compare as equal.
func Equal(a, b Version) bool {
	return a.Compare(b) == 0
}

// InRange reports whether v lies within [min, max]. A nil max is unbounded.
func InRange(v, min, max Version) bool {
	if min != nil && min.Compare(v) > 0 {
		return false
	}
	if max != nil && max.Compare(v) < 0 {
		return false
	}
	return true
}

// =============================================================================
// Semantic
// =============================================================================

// Semantic is a SemVer-like version. Minor and Patch are -1 when the
// source text omitted them, so "1" < "1.0" < "1.0.0".
type Semantic struct {
	Major      int
	Minor      int
	Patch      int
	PreRelease string
	Build      string // ignored in ordering
}

// String returns the version in its original textual form.
func (s Semantic) String() string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(s.Major))
	if s.Minor >= 0 {
		b.WriteByte('.')
		b.WriteString(strconv.Itoa(s.Minor))
		if s.Patch >= 0 {
			b.WriteByte('.')
			b.WriteString(strconv.Itoa(s.Patch))
		}
	}
	if s.PreRelease != "" {
		b.WriteByte('-')
		b.WriteString(s.PreRelease)
	}
	if s.Build != "" {
		b.WriteByte('+')
		b.WriteString(s.Build)
	}
	return b.String()
}

// Compare implements [Version].
func (s Semantic) Compare(other Version) int {
	switch o := other.(type) {
	case Semantic:
		return compareSemantic(s, o)
	case Composite:
		return compareSequences([]Version{s}, o.Parts)
	case Raw:
		return -1
	}
	return 0
}

func compareSemantic(a, b Semantic) int {
	if c := compareInt(a.Major, b.Major); c != 0 {
		return c
	}
	if c := compareInt(a.Minor, b.Minor); c != 0 {
		return c
	}
	if c := compareInt(a.Patch, b.Patch); c != 0 {
		return c
	}
	switch {
	case a.PreRelease == b.PreRelease:
		return 0
	case a.PreRelease == "":
		return 1
	case b.PreRelease == "":
		return -1
	}
	return strings.Compare(a.PreRelease, b.PreRelease)
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// =============================================================================
// Composite
// =============================================================================

// Composite is an ordered, non-empty sequence of versions. Parts[0] is the
// main version.
type Composite struct {
	Parts []Version
}

// NewComposite builds a composite version from parts.
func NewComposite(parts ...Version) Composite {
	return Composite{Parts: parts}
}

// Main returns the first part.
func (c Composite) Main() Version {
	if len(c.Parts) == 0 {
		return nil
	}
	return c.Parts[0]
}

// String joins the parts with '-'.
func (c Composite) String() string {
	parts := make([]string, len(c.Parts))
	for i, p := range c.Parts {
		parts[i] = p.String()
	}
	return strings.Join(parts, "-")
}

// Compare implements [Version].
func (c Composite) Compare(other Version) int {
	switch o := other.(type) {
	case Composite:
		return compareSequences(c.Parts, o.Parts)
	case Semantic:
		return compareSequences(c.Parts, []Version{o})
	case Raw:
		return -1
	}
	return 0
}

// compareSequences compares element-wise; on a prefix tie the shorter
// sequence is smaller.
func compareSequences(a, b []Version) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := a[i].Compare(b[i]); c != 0 {
			return c
		}
	}
	return compareInt(len(a), len(b))
}

// =============================================================================
// Raw
// =============================================================================

// Raw is an opaque version string. It sorts above every non-Raw version.
type Raw struct {
	Text string
}

// String returns the raw text.
func (r Raw) String() string { return r.Text }

// Compare implements [Version].
func (r Raw) Compare(other Version) int {
	if o, ok := other.(Raw); ok {
		return strings.Compare(r.Text, o.Text)
	}
	return 1
}
