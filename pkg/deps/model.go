package deps

import (
	"fmt"
	"strings"

	"github.com/matzehuels/deploader/pkg/errors"
	"github.com/matzehuels/deploader/pkg/version"
)

// Identity names a loadable unit independent of its version.
type Identity struct {
	Group      string
	Artifact   string
	Classifier string // empty when absent
}

// String returns group:artifact[:classifier].
func (id Identity) String() string {
	if id.Classifier == "" {
		return id.Group + ":" + id.Artifact
	}
	return id.Group + ":" + id.Artifact + ":" + id.Classifier
}

// Validate checks every component is safe to use in file and URL paths.
func (id Identity) Validate() error {
	if err := errors.ValidateCoordinatePart("group", id.Group); err != nil {
		return err
	}
	if err := errors.ValidateCoordinatePart("artifact", id.Artifact); err != nil {
		return err
	}
	if id.Classifier != "" {
		return errors.ValidateCoordinatePart("classifier", id.Classifier)
	}
	return nil
}

// ParseCoordinate splits group:artifact:version[:classifier]. Fewer than
// three parts is an error; parts after the classifier are ignored.
func ParseCoordinate(s string) (Identity, version.Spec, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 3 {
		return Identity{}, version.Spec{}, errors.New(errors.ErrCodeInvalidCoordinate, "coordinate %q needs at least group:artifact:version", s)
	}

	id := Identity{Group: parts[0], Artifact: parts[1]}
	if len(parts) > 3 {
		id.Classifier = parts[3]
	}
	if err := id.Validate(); err != nil {
		return Identity{}, version.Spec{}, err
	}

	spec, err := version.ParseSpec(parts[2])
	if err != nil {
		return Identity{}, version.Spec{}, errors.Wrap(errors.ErrCodeInvalidCoordinate, err, "coordinate %q", s)
	}
	if err := validateSpec(spec); err != nil {
		return Identity{}, version.Spec{}, err
	}
	return id, spec, nil
}

// validateSpec rejects versions that are unsafe in file names and
// repository paths. The preferred version names the file on disk.
func validateSpec(spec version.Spec) error {
	for _, v := range []version.Version{spec.Min, spec.Max, spec.Preferred} {
		if v == nil {
			continue
		}
		if err := errors.ValidateCoordinatePart("version", v.String()); err != nil {
			return err
		}
	}
	return nil
}

// Request asks for one artifact. It is immutable once built.
type Request struct {
	Requester string
	Identity  Identity
	Min       version.Version
	Max       version.Version // nil when unbounded
	Preferred version.Version

	// RegularSuffix and DevSuffix pick the file variant for production and
	// development environments. Either may be empty.
	RegularSuffix string
	DevSuffix     string

	Mod   bool
	ModID string
}

// NewRequest builds a request for a parsed coordinate. The classifier
// becomes the suffix in both environments.
func NewRequest(requester string, id Identity, spec version.Spec, mod bool, modID string) Request {
	return Request{
		Requester:     requester,
		Identity:      id,
		Min:           spec.Min,
		Max:           spec.Max,
		Preferred:     spec.Preferred,
		RegularSuffix: id.Classifier,
		DevSuffix:     id.Classifier,
		Mod:           mod,
		ModID:         modID,
	}
}

// Suffix returns the suffix for the given environment.
func (r Request) Suffix(dev bool) string {
	if dev {
		return r.DevSuffix
	}
	return r.RegularSuffix
}

// Key returns the registry key group:artifact[:suffix].
func (r Request) Key(dev bool) string {
	return LibraryKey(r.Identity.Group, r.Identity.Artifact, r.Suffix(dev))
}

// Coordinate returns group:artifact:preferred[-suffix] for logging.
func (r Request) Coordinate(dev bool) string {
	s := fmt.Sprintf("%s:%s:%s", r.Identity.Group, r.Identity.Artifact, r.Preferred)
	if suffix := r.Suffix(dev); suffix != "" {
		s += "-" + suffix
	}
	return s
}

// RangeString describes the accepted version range.
func (r Request) RangeString() string {
	if r.Max == nil {
		return fmt.Sprintf("(minimum: %s)", r.Min)
	}
	return fmt.Sprintf("(minimum: %s, maximum: %s)", r.Min, r.Max)
}

// String names every field of the request.
func (r Request) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s min=%s", r.Identity, r.Min)
	if r.Max != nil {
		fmt.Fprintf(&b, " max=%s", r.Max)
	}
	fmt.Fprintf(&b, " preferred=%s", r.Preferred)
	if r.RegularSuffix != "" {
		fmt.Fprintf(&b, " suffix=%s", r.RegularSuffix)
	}
	if r.DevSuffix != "" {
		fmt.Fprintf(&b, " devSuffix=%s", r.DevSuffix)
	}
	if r.Mod {
		b.WriteString(" mod=true")
		if r.ModID != "" {
			fmt.Fprintf(&b, " modid=%s", r.ModID)
		}
	}
	fmt.Fprintf(&b, " requester=%s", r.Requester)
	return b.String()
}

// dedupKey identifies a request by value.
func (r Request) dedupKey() string {
	max := ""
	if r.Max != nil {
		max = r.Max.String()
	}
	return strings.Join([]string{
		r.Requester, r.Identity.String(), r.Min.String(), max, r.Preferred.String(),
		r.RegularSuffix, r.DevSuffix, fmt.Sprint(r.Mod), r.ModID,
	}, "\x00")
}

// LibraryKey builds a registry key. An empty suffix is omitted.
func LibraryKey(group, artifact, suffix string) string {
	if suffix == "" {
		return group + ":" + artifact
	}
	return group + ":" + artifact + ":" + suffix
}

// =============================================================================
// Scopes
// =============================================================================

// DeclScope is the environment a dependency was declared for.
type DeclScope int

const (
	ScopeAlways DeclScope = iota
	ScopeDev
	ScopeObf
)

func (s DeclScope) String() string {
	switch s {
	case ScopeAlways:
		return "always"
	case ScopeDev:
		return "dev"
	case ScopeObf:
		return "obf"
	}
	return fmt.Sprintf("scope(%d)", int(s))
}

// Side is the platform role a dependency was declared for.
type Side int

const (
	SideCommon Side = iota
	SideClient
	SideServer
)

func (s Side) String() string {
	switch s {
	case SideCommon:
		return "common"
	case SideClient:
		return "client"
	case SideServer:
		return "server"
	}
	return fmt.Sprintf("side(%d)", int(s))
}

// ResolutionScope pairs a declaration scope with a side.
type ResolutionScope struct {
	Scope DeclScope
	Side  Side
}

func (s ResolutionScope) String() string {
	return s.Scope.String() + "/" + s.Side.String()
}

// AppliesTo reports whether a dependency declared under s applies to the
// running environment r.
func (s ResolutionScope) AppliesTo(r ResolutionScope) bool {
	return (s.Scope == ScopeAlways || s.Scope == r.Scope) &&
		(s.Side == SideCommon || s.Side == r.Side)
}

// RuntimeContext describes the running environment. It is passed by value
// and never mutated.
type RuntimeContext struct {
	Dev         bool // development (deobfuscated) environment
	Client      bool
	JavaVersion int
}

// Scope returns the concrete scope of the running environment.
func (c RuntimeContext) Scope() ResolutionScope {
	s := ResolutionScope{Scope: ScopeObf, Side: SideServer}
	if c.Dev {
		s.Scope = ScopeDev
	}
	if c.Client {
		s.Side = SideClient
	}
	return s
}

// Task is a request tagged with the scope it was declared under.
type Task struct {
	Scope   ResolutionScope
	Request Request
}
