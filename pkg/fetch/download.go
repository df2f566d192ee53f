package fetch

import (
	"bufio"
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/natefinch/atomic"

	"github.com/matzehuels/deploader/pkg/checksum"
	"github.com/matzehuels/deploader/pkg/errors"
	"github.com/matzehuels/deploader/pkg/httputil"
	"github.com/matzehuels/deploader/pkg/observability"
	"github.com/matzehuels/deploader/pkg/repo"
)

// maxChecksumSize bounds checksum file downloads.
const maxChecksumSize = 4096

var (
	errChecksumMismatch = errors.New(errors.ErrCodeChecksumMismatch, "checksum mismatch")
	errTruncated        = stderrors.New("download truncated")
)

// tryRepository runs up to Rounds download rounds against r. Checksum
// mismatches and transient network failures start a new round; a missing
// artifact or an open breaker moves on to the next repository.
func (f *Fetcher) tryRepository(ctx context.Context, t *task, r repo.Repository) (Result, bool) {
	downloadMu.Lock()
	defer downloadMu.Unlock()

	var res Result
	err := httputil.Retry(ctx, f.opts.Rounds, f.opts.RetryDelay, func() error {
		var err error
		res, err = f.download(ctx, t, r)
		return err
	})
	if err != nil {
		f.logger.Debug("Artifact could not be downloaded", "artifact", t.logName, "repository", r, "err", err)
		return Result{}, false
	}
	return res, true
}

// download performs one round: fetch to a temp file, verify, promote.
func (f *Fetcher) download(ctx context.Context, t *task, r repo.Repository) (Result, error) {
	tmp := t.file + ".tmp"
	if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
		return Result{}, err
	}

	body, size, err := r.Open(ctx, t.repoPath)
	if err != nil {
		return Result{}, classify(err)
	}
	f.logger.Debug("Downloading", "artifact", t.logName, "repository", r)
	written, err := f.save(ctx, t, body, size, tmp)
	body.Close()
	if err != nil {
		checkedDelete(f.logger, tmp)
		return Result{}, httputil.Retryable(err)
	}
	if size >= 0 && written != size {
		checkedDelete(f.logger, tmp)
		return Result{}, httputil.Retryable(fmt.Errorf("%w: got %d of %d bytes", errTruncated, written, size))
	}
	f.logger.Debug("Downloaded", "artifact", t.logName, "repository", r, "bytes", written)

	status, err := f.verifyDownload(ctx, t, r, tmp)
	if err != nil {
		checkedDelete(f.logger, tmp)
		return Result{}, err
	}
	if status == checksum.StatusMissing && !r.Local() {
		f.logger.Warn("The artifact had no checksum available on the repository. There's a chance it might have gotten corrupted during download, but we're loading it anyways.",
			"artifact", t.logName, "repository", r)
	}

	installed, err := promote(tmp, t.file)
	if err != nil {
		checkedDelete(f.logger, tmp)
		return Result{}, err
	}
	return Result{Path: t.file, Installed: installed}, nil
}

// save streams body into path, reporting progress.
func (f *Fetcher) save(ctx context.Context, t *task, body io.Reader, size int64, path string) (int64, error) {
	out, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	pr := &progressReader{r: body, ctx: ctx, artifact: t.logName, total: size, hooks: observability.Fetch()}
	n, err := io.Copy(out, pr)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// verifyDownload fetches the first checksum r offers, stores it as a
// sidecar and checks tmp against it.
func (f *Fetcher) verifyDownload(ctx context.Context, t *task, r repo.Repository, tmp string) (checksum.Status, error) {
	for _, typ := range checksum.Types {
		ref, err := fetchChecksum(ctx, r, t.repoPath+"."+string(typ))
		if err != nil {
			f.logger.Debug("Could not get checksum", "type", typ, "artifact", t.logName, "err", err)
			continue
		}

		sidecar := t.sidecar(f.opts.LibDir, typ)
		if err := atomic.WriteFile(sidecar, bytes.NewReader(ref)); err != nil {
			return checksum.StatusFailed, fmt.Errorf("write %s sidecar: %w", typ, err)
		}

		match, err := checksum.VerifyFile(typ, tmp, string(ref))
		if err != nil {
			return checksum.StatusFailed, err
		}
		if !match {
			f.logger.Error("Failed checksum validation", "type", typ, "artifact", t.logName, "repository", r)
			checkedDelete(f.logger, sidecar)
			return checksum.StatusFailed, httputil.Retryable(fmt.Errorf("%s: %w", typ, errChecksumMismatch))
		}
		f.logger.Debug("Validated checksum", "type", typ, "artifact", t.logName)
		return checksum.StatusOK, nil
	}
	return checksum.StatusMissing, nil
}

func fetchChecksum(ctx context.Context, r repo.Repository, path string) ([]byte, error) {
	body, _, err := r.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(io.LimitReader(body, maxChecksumSize))
}

// classify marks transient repository failures as retryable.
func classify(err error) error {
	switch {
	case stderrors.Is(err, repo.ErrNotFound),
		stderrors.Is(err, httputil.ErrBreakerOpen),
		stderrors.Is(err, context.Canceled),
		stderrors.Is(err, context.DeadlineExceeded),
		errors.Is(err, errors.ErrCodeInvalidPath):
		return err
	}
	return httputil.Retryable(err)
}

// promote moves tmp to dst. When dst already holds the same bytes tmp is
// discarded and dst is left untouched. It reports whether dst changed.
func promote(tmp, dst string) (bool, error) {
	same, err := sameContent(tmp, dst)
	if err != nil {
		return false, err
	}
	if same {
		return false, os.Remove(tmp)
	}

	if err := atomic.ReplaceFile(tmp, dst); err == nil {
		return true, nil
	}

	// Rename is not possible here; copy and drop the temp file.
	src, err := os.Open(tmp)
	if err != nil {
		return false, err
	}
	err = atomic.WriteFile(dst, src)
	src.Close()
	if err != nil {
		return false, fmt.Errorf("move %s: %w", tmp, err)
	}
	return true, os.Remove(tmp)
}

// sameContent reports whether both files exist with identical bytes.
func sameContent(a, b string) (bool, error) {
	ia, err := os.Stat(a)
	if err != nil {
		return false, err
	}
	ib, err := os.Stat(b)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if ia.Size() != ib.Size() {
		return false, nil
	}

	fa, err := os.Open(a)
	if err != nil {
		return false, err
	}
	defer fa.Close()
	fb, err := os.Open(b)
	if err != nil {
		return false, err
	}
	defer fb.Close()

	ra, rb := bufio.NewReader(fa), bufio.NewReader(fb)
	bufA, bufB := make([]byte, 32*1024), make([]byte, 32*1024)
	for {
		na, errA := io.ReadFull(ra, bufA)
		nb, errB := io.ReadFull(rb, bufB)
		if na != nb || !bytes.Equal(bufA[:na], bufB[:nb]) {
			return false, nil
		}
		if errA == io.EOF || errA == io.ErrUnexpectedEOF {
			return errB == io.EOF || errB == io.ErrUnexpectedEOF, nil
		}
		if errA != nil {
			return false, errA
		}
		if errB != nil {
			return false, errB
		}
	}
}

// progressReader reports bytes read to the fetch hooks.
type progressReader struct {
	r        io.Reader
	ctx      context.Context
	artifact string
	total    int64
	done     int64
	hooks    observability.FetchHooks
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.done += int64(n)
		p.hooks.OnProgress(p.ctx, p.artifact, p.done, p.total)
	}
	return n, err
}
