// Package repo provides access to Maven-layout artifact repositories.
//
// Three kinds are supported:
//   - [HTTP]: a remote repository reached through [httputil.Client]
//   - [Archive]: a repository embedded in a jar under a path prefix
//   - [Dir]: a repository on the local file system
//
// Archive and Dir repositories are local: the fetcher consults them before
// any download gate applies.
package repo

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/matzehuels/deploader/pkg/errors"
	"github.com/matzehuels/deploader/pkg/httputil"
)

// ErrNotFound is returned by [Repository.Open] when the repository does
// not contain the requested path.
var ErrNotFound = errors.New(errors.ErrCodeNotFound, "not in repository")

// Repository is a source of artifact files addressed by Maven path.
type Repository interface {
	// String identifies the repository in logs.
	String() string
	// Local reports whether the repository lives on this machine.
	Local() bool
	// Open returns a reader for path and its size, or -1 when unknown.
	Open(ctx context.Context, path string) (io.ReadCloser, int64, error)
}

// ArtifactPath returns the Maven layout path for an artifact jar:
// {group/with/slashes}/{artifact}/{version}/{artifact}-{version}[-{suffix}].jar
func ArtifactPath(group, artifact, version, suffix string) string {
	file := artifact + "-" + version
	if suffix != "" {
		file += "-" + suffix
	}
	return path.Join(strings.ReplaceAll(group, ".", "/"), artifact, version, file+".jar")
}

// =============================================================================
// HTTP
// =============================================================================

// HTTP is a remote Maven repository.
type HTTP struct {
	base   string
	client *httputil.Client
}

// NewHTTP returns a remote repository rooted at base. A trailing slash is
// added when missing.
func NewHTTP(base string, client *httputil.Client) *HTTP {
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return &HTTP{base: base, client: client}
}

func (r *HTTP) String() string { return r.base }

func (r *HTTP) Local() bool { return false }

// URL returns the absolute URL of path.
func (r *HTTP) URL(p string) string {
	return r.base + strings.TrimPrefix(p, "/")
}

func (r *HTTP) Open(ctx context.Context, p string) (io.ReadCloser, int64, error) {
	resp, err := r.client.Get(ctx, r.URL(p))
	if err != nil {
		if stderrors.Is(err, httputil.ErrNotFound) {
			return nil, 0, fmt.Errorf("%s%s: %w", r.base, p, ErrNotFound)
		}
		return nil, 0, err
	}
	return resp.Body, resp.Size, nil
}

// =============================================================================
// Archive
// =============================================================================

// Archive is a repository stored inside a zip archive under a directory
// prefix, such as the META-INF/falsepatternlib_repo/ folder of a jar.
type Archive struct {
	file   string
	prefix string
}

// NewArchive returns a repository reading entries below prefix in file.
func NewArchive(file, prefix string) *Archive {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Archive{file: file, prefix: prefix}
}

func (r *Archive) String() string { return r.file + "!/" + r.prefix }

func (r *Archive) Local() bool { return true }

func (r *Archive) Open(ctx context.Context, p string) (io.ReadCloser, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	zr, err := zip.OpenReader(r.file)
	if err != nil {
		return nil, 0, fmt.Errorf("open archive %s: %w", r.file, err)
	}
	name := r.prefix + strings.TrimPrefix(p, "/")
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			zr.Close()
			return nil, 0, fmt.Errorf("open %s in %s: %w", name, r.file, err)
		}
		return &archiveEntry{ReadCloser: rc, archive: zr}, int64(f.UncompressedSize64), nil
	}
	zr.Close()
	return nil, 0, fmt.Errorf("%s: %w", r.String()+p, ErrNotFound)
}

// archiveEntry closes the owning archive together with the entry.
type archiveEntry struct {
	io.ReadCloser
	archive *zip.ReadCloser
}

func (e *archiveEntry) Close() error {
	err := e.ReadCloser.Close()
	if cerr := e.archive.Close(); err == nil {
		err = cerr
	}
	return err
}

// =============================================================================
// Dir
// =============================================================================

// Dir is a repository laid out in a local directory.
type Dir struct {
	root string
}

// NewDir returns a repository rooted at the directory root.
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

func (r *Dir) String() string { return r.root }

func (r *Dir) Local() bool { return true }

func (r *Dir) Open(ctx context.Context, p string) (io.ReadCloser, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	rel := strings.TrimPrefix(p, "/")
	if err := errors.ValidatePath(rel); err != nil {
		return nil, 0, err
	}
	full := filepath.Join(r.root, filepath.FromSlash(rel))
	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, fmt.Errorf("%s: %w", full, ErrNotFound)
		}
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	if info.IsDir() {
		f.Close()
		return nil, 0, fmt.Errorf("%s is a directory: %w", full, ErrNotFound)
	}
	return f, info.Size(), nil
}
