// Package manifest parses dependency manifests embedded in mod archives.
//
// A manifest is a JSON document whose "identifier" field equals [Identifier].
// It lists bundled artifacts, extra repositories, and two dependency trees
// (plain libraries and mods), each split by scope (always, dev, obf) and
// side (common, client, server):
//
//	{
//	  "identifier": "falsepatternlib_dependencies",
//	  "minJava": 8,
//	  "repositories": ["https://mvn.falsepattern.com/releases/"],
//	  "bundledArtifacts": ["com.example:bundled:1.0.0"],
//	  "dependencies": {
//	    "always": {"common": ["org.joml:joml:1.10.5"]}
//	  },
//	  "modDependencies": {
//	    "always": {"client": [{"modid": "chunkapi", "artifact": "com.falsepattern:chunkapi:0.5.1"}]}
//	  }
//	}
//
// Dependency entries are either coordinate strings or objects carrying a
// coordinate and a mod id.
package manifest

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/matzehuels/deploader/pkg/errors"
)

// Identifier is the sentinel value a manifest's "identifier" field must carry.
const Identifier = "falsepatternlib_dependencies"

// Sentinel errors for manifest parsing.
var (
	// ErrNotManifest is returned for JSON that is not a dependency manifest.
	ErrNotManifest = stderrors.New("not a dependency manifest")

	// ErrJavaMismatch is returned when minJava/maxJava exclude the running Java version.
	ErrJavaMismatch = stderrors.New("manifest does not apply to this java version")
)

// Document is a parsed dependency manifest.
type Document struct {
	// Source identifies where the manifest was read from.
	Source string `json:"-"`

	MinJava          *int     `json:"minJava,omitempty"`
	MaxJava          *int     `json:"maxJava,omitempty"`
	BundledArtifacts []Entry  `json:"bundledArtifacts,omitempty"`
	Repositories     []string `json:"repositories,omitempty"`
	Dependencies     *Tree    `json:"dependencies,omitempty"`
	ModDependencies  *Tree    `json:"modDependencies,omitempty"`
}

// Tree splits dependency entries by declaration scope.
type Tree struct {
	Always *Sided `json:"always,omitempty"`
	Obf    *Sided `json:"obf,omitempty"`
	Dev    *Sided `json:"dev,omitempty"`
}

// Sided splits dependency entries by platform side.
type Sided struct {
	Common []Entry `json:"common,omitempty"`
	Client []Entry `json:"client,omitempty"`
	Server []Entry `json:"server,omitempty"`
}

// Entry is a single dependency declaration.
type Entry struct {
	// Artifact is a coordinate of the form group:artifact:version[:classifier].
	Artifact string
	// ModID is set for entries that name the mod they provide.
	ModID string
}

// UnmarshalJSON accepts either a coordinate string or an object with
// "artifact" and an optional "modid".
func (e *Entry) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &e.Artifact)
	}
	var obj struct {
		Artifact *string `json:"artifact"`
		ModID    string  `json:"modid"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	if obj.Artifact == nil {
		return fmt.Errorf("missing artifact in dependency object")
	}
	e.Artifact = *obj.Artifact
	e.ModID = obj.ModID
	return nil
}

// MarshalJSON writes plain entries as strings and mod entries as objects.
func (e Entry) MarshalJSON() ([]byte, error) {
	if e.ModID == "" {
		return json.Marshal(e.Artifact)
	}
	return json.Marshal(struct {
		ModID    string `json:"modid"`
		Artifact string `json:"artifact"`
	}{e.ModID, e.Artifact})
}

// Parse reads a manifest from r. It returns [ErrNotManifest] when the
// document is not a JSON object carrying the sentinel identifier and
// [ErrJavaMismatch] when the Java gate excludes javaVersion.
func Parse(source string, r io.Reader, javaVersion int) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", source, err)
	}

	var header map[string]json.RawMessage
	if err := json.Unmarshal(data, &header); err != nil {
		var syntaxErr *json.SyntaxError
		if stderrors.As(err, &syntaxErr) {
			return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "parse %s", source)
		}
		return nil, ErrNotManifest
	}
	var identifier string
	if raw, ok := header["identifier"]; !ok || json.Unmarshal(raw, &identifier) != nil || identifier != Identifier {
		return nil, ErrNotManifest
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "parse %s", source)
	}
	doc.Source = source

	if !doc.AppliesToJava(javaVersion) {
		return nil, ErrJavaMismatch
	}
	return &doc, nil
}

// AppliesToJava reports whether the manifest's Java gate admits v.
func (d *Document) AppliesToJava(v int) bool {
	if d.MinJava != nil && *d.MinJava > v {
		return false
	}
	if d.MaxJava != nil && *d.MaxJava < v {
		return false
	}
	return true
}
