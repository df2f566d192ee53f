package version

import (
	"fmt"
	"strings"
)

// Spec is the min/max/preferred constraint carried by a dependency entry.
type Spec struct {
	Min       Version
	Max       Version // nil when unbounded
	Preferred Version
}

// ParseSpec reads the version field of a coordinate. Accepted forms:
//
//	1.5.0                  min = preferred = 1.5.0, no max
//	[1.0.0,2.0.0]          min 1.0.0, max 2.0.0, preferred = min
//	[1.0.0,]               min 1.0.0, no max
//	[1.0.0,2.0.0]->1.5.0   explicit preferred version ("→" is accepted too)
func ParseSpec(text string) (Spec, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "[") {
		if text == "" {
			return Spec{}, fmt.Errorf("empty version")
		}
		v := Parse(text)
		return Spec{Min: v, Preferred: v}, nil
	}

	end := strings.IndexByte(text, ']')
	if end < 0 {
		return Spec{}, fmt.Errorf("unterminated version range %q", text)
	}
	bounds := strings.Split(text[1:end], ",")
	if len(bounds) != 2 {
		return Spec{}, fmt.Errorf("version range %q must have exactly two bounds", text)
	}
	lo, hi := strings.TrimSpace(bounds[0]), strings.TrimSpace(bounds[1])
	if lo == "" {
		return Spec{}, fmt.Errorf("version range %q has no minimum", text)
	}

	spec := Spec{Min: Parse(lo)}
	if hi != "" {
		spec.Max = Parse(hi)
	}

	rest := strings.TrimSpace(text[end+1:])
	switch {
	case rest == "":
		spec.Preferred = spec.Min
	case strings.HasPrefix(rest, "->"):
		rest = strings.TrimSpace(strings.TrimPrefix(rest, "->"))
	case strings.HasPrefix(rest, "→"):
		rest = strings.TrimSpace(strings.TrimPrefix(rest, "→"))
	default:
		return Spec{}, fmt.Errorf("unexpected %q after version range", rest)
	}
	if spec.Preferred == nil {
		if rest == "" {
			return Spec{}, fmt.Errorf("version range %q has an empty preferred version", text)
		}
		spec.Preferred = Parse(rest)
	}

	if spec.Max != nil && spec.Min.Compare(spec.Max) > 0 {
		return Spec{}, fmt.Errorf("version range %q has min above max", text)
	}
	return spec, nil
}

// String formats s back into the range syntax.
func (s Spec) String() string {
	if s.Max == nil && Equal(s.Min, s.Preferred) {
		return s.Preferred.String()
	}
	max := ""
	if s.Max != nil {
		max = s.Max.String()
	}
	return fmt.Sprintf("[%s,%s]->%s", s.Min, max, s.Preferred)
}
