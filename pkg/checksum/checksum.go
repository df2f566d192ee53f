// Package checksum computes and verifies artifact checksums.
//
// Repositories publish checksums next to artifacts as "<file>.<type>".
// [Types] lists the supported types from strongest to weakest; callers
// always try them in that order and use the first one available.
package checksum

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Type is a checksum algorithm, named by its file extension.
type Type string

const (
	SHA512 Type = "sha512"
	SHA256 Type = "sha256"
	SHA1   Type = "sha1"
	MD5    Type = "md5"
)

// Types is the trial order, strongest first.
var Types = []Type{SHA512, SHA256, SHA1, MD5}

// Status is the outcome of validating an artifact.
type Status int

const (
	StatusOK Status = iota
	StatusFailed
	StatusMissing
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusFailed:
		return "failed"
	case StatusMissing:
		return "missing"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// New returns a fresh hash for t.
func (t Type) New() (hash.Hash, error) {
	switch t {
	case SHA512:
		return sha512.New(), nil
	case SHA256:
		return sha256.New(), nil
	case SHA1:
		return sha1.New(), nil
	case MD5:
		return md5.New(), nil
	}
	return nil, fmt.Errorf("unsupported checksum type %q", string(t))
}

// Sum hashes r with t and returns the lowercase hex digest.
func Sum(t Type, r io.Reader) (string, error) {
	h, err := t.New()
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SumFile hashes the file at path.
func SumFile(t Type, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return Sum(t, f)
}

// Normalize extracts the digest from checksum file content. Repositories
// sometimes append the file name after whitespace; only the first field
// counts.
func Normalize(reference string) string {
	fields := strings.Fields(reference)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}

// Match reports whether digest matches the checksum file content reference.
func Match(digest, reference string) bool {
	ref := Normalize(reference)
	return ref != "" && strings.EqualFold(digest, ref)
}

// VerifyFile hashes path with t and compares it against reference.
func VerifyFile(t Type, path, reference string) (bool, error) {
	digest, err := SumFile(t, path)
	if err != nil {
		return false, err
	}
	return Match(digest, reference), nil
}

// SidecarName returns the sidecar file name for an artifact file name.
func SidecarName(name string, t Type) string {
	return name + "." + string(t)
}

// FindSidecar walks [Types] in order and returns the first sidecar of name
// in dir for which exists reports true.
func FindSidecar(dir, name string, exists func(path string) bool) (Type, string, bool) {
	for _, t := range Types {
		p := filepath.Join(dir, SidecarName(name, t))
		if exists(p) {
			return t, p, true
		}
	}
	return "", "", false
}
