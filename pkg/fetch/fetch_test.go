package fetch

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/deploader/pkg/checksum"
	"github.com/matzehuels/deploader/pkg/deps"
	"github.com/matzehuels/deploader/pkg/errors"
	"github.com/matzehuels/deploader/pkg/httputil"
	"github.com/matzehuels/deploader/pkg/registry"
	"github.com/matzehuels/deploader/pkg/repo"
	"github.com/matzehuels/deploader/pkg/version"
)

// mavenServer serves a fixed set of paths and records every request.
type mavenServer struct {
	*httptest.Server

	mu    sync.Mutex
	files map[string][]byte
	hits  []string

	// onHit runs under the lock before each lookup.
	onHit func(path string, files map[string][]byte)
}

func newMavenServer(t *testing.T, files map[string][]byte) *mavenServer {
	t.Helper()
	m := &mavenServer{files: files}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.hits = append(m.hits, r.URL.Path)
		if m.onHit != nil {
			m.onHit(r.URL.Path, m.files)
		}
		body, ok := m.files[r.URL.Path]
		m.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(body)
	}))
	t.Cleanup(m.Close)
	return m
}

func (m *mavenServer) requests() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.hits...)
}

type recordingSink struct {
	mu    sync.Mutex
	paths []string
}

func (s *recordingSink) AddArchive(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, path)
	return nil
}

type env struct {
	libDir, modDir string
	registry       *registry.Registry
	local, remote  *registry.OrderedSet[repo.Repository]
	sink           *recordingSink
	logs           *bytes.Buffer
}

func newEnv(t *testing.T) *env {
	t.Helper()
	root := t.TempDir()
	e := &env{
		libDir:   filepath.Join(root, "falsepattern"),
		modDir:   filepath.Join(root, "mods", "1.7.10"),
		registry: registry.New(),
		local:    registry.NewOrderedSet[repo.Repository](),
		remote:   registry.NewOrderedSet[repo.Repository](),
		sink:     &recordingSink{},
		logs:     &bytes.Buffer{},
	}
	return e
}

func (e *env) fetcher(downloads bool) *Fetcher {
	logger := log.NewWithOptions(e.logs, log.Options{Level: log.DebugLevel})
	return New(Options{
		LibDir:           e.libDir,
		ModDir:           e.modDir,
		DownloadsEnabled: downloads,
		Registry:         e.registry,
		Local:            e.local,
		Remote:           e.remote,
		Sink:             e.sink,
		Logger:           logger,
		RetryDelay:       time.Millisecond,
	})
}

func (e *env) addRemote(t *testing.T, s *mavenServer) {
	t.Helper()
	client := httputil.NewClient(httputil.WithHTTPClient(s.Client()))
	t.Cleanup(func() { client.Close() })
	e.remote.Add(repo.NewHTTP(s.URL+"/", client))
}

func request(t *testing.T, coordinate string, mod bool, modID string) deps.Request {
	t.Helper()
	id, spec, err := deps.ParseCoordinate(coordinate)
	require.NoError(t, err)
	return deps.NewRequest("tester", id, spec, mod, modID)
}

func digest(t *testing.T, typ checksum.Type, data []byte) []byte {
	t.Helper()
	sum, err := checksum.Sum(typ, bytes.NewReader(data))
	require.NoError(t, err)
	return []byte(sum)
}

const jarPath = "/g/a/1.0/a-1.0.jar"

func TestFetchRemoteChecksumOrder(t *testing.T) {
	content := []byte("library bytes")
	server := newMavenServer(t, map[string][]byte{
		jarPath:           content,
		jarPath + ".sha1": digest(t, checksum.SHA1, content),
		jarPath + ".md5":  digest(t, checksum.MD5, content),
	})
	e := newEnv(t)
	e.addRemote(t, server)

	res, err := e.fetcher(true).Fetch(context.Background(), request(t, "g:a:1.0", false, ""))
	require.NoError(t, err)

	assert.Equal(t, SourceRemote, res.Source)
	assert.True(t, res.Installed)
	assert.Equal(t, filepath.Join(e.libDir, "g-a-1.0.jar"), res.Path)
	assert.Equal(t, []string{
		jarPath,
		jarPath + ".sha512",
		jarPath + ".sha256",
		jarPath + ".sha1",
	}, server.requests(), "md5 must not be requested once sha1 is found")

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, content, data)
	assert.FileExists(t, filepath.Join(e.libDir, "g-a-1.0.jar.sha1"))
	assert.NoFileExists(t, res.Path+".tmp")

	assert.Equal(t, []string{res.Path}, e.sink.paths)
	entry, ok := e.registry.Library("g:a")
	require.True(t, ok)
	assert.Equal(t, "1.0", entry.Version.String())
	assert.Equal(t, "tester", entry.Owner)
}

func TestFetchExistingFileSkipsNetwork(t *testing.T) {
	content := []byte("library bytes")
	server := newMavenServer(t, map[string][]byte{
		jarPath:           content,
		jarPath + ".sha1": digest(t, checksum.SHA1, content),
	})
	e := newEnv(t)
	e.addRemote(t, server)

	_, err := e.fetcher(true).Fetch(context.Background(), request(t, "g:a:1.0", false, ""))
	require.NoError(t, err)
	before := len(server.requests())

	// A new process: empty registry, same directories.
	e.registry = registry.New()
	res, err := e.fetcher(true).Fetch(context.Background(), request(t, "g:a:1.0", false, ""))
	require.NoError(t, err)

	assert.Equal(t, SourceDisk, res.Source)
	assert.False(t, res.Installed)
	assert.Len(t, server.requests(), before, "re-fetch must not touch the network")
}

func TestFetchExistingFileBadSidecar(t *testing.T) {
	content := []byte("library bytes")
	server := newMavenServer(t, map[string][]byte{
		jarPath:           content,
		jarPath + ".sha1": digest(t, checksum.SHA1, content),
	})
	e := newEnv(t)
	e.addRemote(t, server)

	require.NoError(t, os.MkdirAll(e.libDir, 0755))
	target := filepath.Join(e.libDir, "g-a-1.0.jar")
	require.NoError(t, os.WriteFile(target, []byte("corrupted"), 0644))
	require.NoError(t, os.WriteFile(target+".sha256", digest(t, checksum.SHA256, content), 0644))

	res, err := e.fetcher(true).Fetch(context.Background(), request(t, "g:a:1.0", false, ""))
	require.NoError(t, err)

	assert.Equal(t, SourceRemote, res.Source)
	assert.NoFileExists(t, target+".sha256", "failed sidecar must be deleted")
	data, _ := os.ReadFile(target)
	assert.Equal(t, content, data)
}

func TestFetchChecksumMismatchRetries(t *testing.T) {
	content := []byte("library bytes")
	server := newMavenServer(t, map[string][]byte{
		jarPath:           content,
		jarPath + ".sha1": []byte("0000000000000000000000000000000000000000"),
	})
	e := newEnv(t)
	e.addRemote(t, server)

	// The first checksum is stale; the repository fixes it afterwards.
	good := digest(t, checksum.SHA1, content)
	server.mu.Lock()
	server.onHit = func(path string, files map[string][]byte) {
		if path == jarPath+".sha1" && countOf(server.hits, path) > 1 {
			files[path] = good
		}
	}
	server.mu.Unlock()

	res, err := e.fetcher(true).Fetch(context.Background(), request(t, "g:a:1.0", false, ""))
	require.NoError(t, err)
	assert.Equal(t, SourceRemote, res.Source)
	assert.Equal(t, 2, countOf(server.requests(), jarPath), "one bad round, one good round")
	data, _ := os.ReadFile(res.Path + ".sha1")
	assert.Equal(t, string(good), string(data))
}

func TestFetchChecksumMismatchGivesUp(t *testing.T) {
	server := newMavenServer(t, map[string][]byte{
		jarPath:           []byte("library bytes"),
		jarPath + ".sha1": []byte("0000000000000000000000000000000000000000"),
	})
	e := newEnv(t)
	e.addRemote(t, server)

	_, err := e.fetcher(true).Fetch(context.Background(), request(t, "g:a:1.0", false, ""))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeUnresolvable, errors.GetCode(err))
	assert.Equal(t, DefaultRounds, countOf(server.requests(), jarPath))
	assert.NoFileExists(t, filepath.Join(e.libDir, "g-a-1.0.jar"))
	assert.NoFileExists(t, filepath.Join(e.libDir, "g-a-1.0.jar.tmp"))
	assert.Contains(t, err.Error(), "requester=tester")
}

func TestFetchMissingChecksumWarns(t *testing.T) {
	server := newMavenServer(t, map[string][]byte{jarPath: []byte("library bytes")})
	e := newEnv(t)
	e.addRemote(t, server)

	res, err := e.fetcher(true).Fetch(context.Background(), request(t, "g:a:1.0", false, ""))
	require.NoError(t, err)
	assert.Equal(t, SourceRemote, res.Source)
	assert.Contains(t, e.logs.String(), "had no checksum available")
}

func TestFetchDownloadsDisabled(t *testing.T) {
	server := newMavenServer(t, map[string][]byte{jarPath: []byte("library bytes")})
	e := newEnv(t)
	e.addRemote(t, server)

	_, err := e.fetcher(false).Fetch(context.Background(), request(t, "g:a:1.0", false, ""))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeDownloadsDisabled, errors.GetCode(err))
	assert.True(t, errors.IsFatal(err))
	assert.Empty(t, server.requests())
}

func TestFetchLocalBypassesDownloadGate(t *testing.T) {
	dir := t.TempDir()
	full := filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(jarPath, "/")))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
	require.NoError(t, os.WriteFile(full, []byte("bundled"), 0644))

	e := newEnv(t)
	e.local.Add(repo.NewDir(dir))

	res, err := e.fetcher(false).Fetch(context.Background(), request(t, "g:a:1.0", false, ""))
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, res.Source)
	assert.NotContains(t, e.logs.String(), "had no checksum available", "local repositories do not warn")
}

func TestFetchAlreadyLoaded(t *testing.T) {
	e := newEnv(t)
	e.registry.RegisterLibrary("g:a", version.Parse("3.0"), "othermod")

	res, err := e.fetcher(true).Fetch(context.Background(), request(t, "g:a:[1.0,2.0]->1.5", false, ""))
	require.NoError(t, err, "version conflicts are not fatal")
	assert.True(t, res.Loaded)
	assert.Empty(t, res.Path)

	logs := e.logs.String()
	assert.Equal(t, 4, strings.Count(logs, "ALERT VVVVVVVVVVVV ALERT"))
	assert.Equal(t, 4, strings.Count(logs, "ALERT ^^^^^^^^^^^^ ALERT"))
	assert.Contains(t, logs, "othermod")
}

func TestFetchAlreadyLoadedInRange(t *testing.T) {
	e := newEnv(t)
	e.registry.RegisterLibrary("g:a", version.Parse("1.2"), "othermod")

	res, err := e.fetcher(true).Fetch(context.Background(), request(t, "g:a:[1.0,2.0]->1.5", false, ""))
	require.NoError(t, err)
	assert.True(t, res.Loaded)
	assert.NotContains(t, e.logs.String(), "ALERT")
	assert.Contains(t, e.logs.String(), "This is not an error")
}

func TestFetchModByID(t *testing.T) {
	e := newEnv(t)
	e.registry.RegisterMod("examplemod", version.Parse("1.0"), "mcmod.info")

	res, err := e.fetcher(true).Fetch(context.Background(), request(t, "g:a:1.0", true, "examplemod"))
	require.NoError(t, err)
	assert.True(t, res.Loaded)
	assert.Empty(t, e.logs.String(), "equal versions are silent")
}

func TestFetchModRestartFlag(t *testing.T) {
	content := []byte("mod bytes")
	dir := t.TempDir()
	full := filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(jarPath, "/")))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
	require.NoError(t, os.WriteFile(full, content, 0644))

	t.Run("identical content", func(t *testing.T) {
		e := newEnv(t)
		e.local.Add(repo.NewDir(dir))
		require.NoError(t, os.MkdirAll(e.modDir, 0755))
		target := filepath.Join(e.modDir, "a-1.0.jar")
		require.NoError(t, os.WriteFile(target, content, 0644))
		before, err := os.Stat(target)
		require.NoError(t, err)

		f := e.fetcher(true)
		res, err := f.Fetch(context.Background(), request(t, "g:a:1.0", true, "examplemod"))
		require.NoError(t, err)

		assert.False(t, res.Installed)
		assert.False(t, f.RestartRequired())
		after, err := os.Stat(target)
		require.NoError(t, err)
		assert.True(t, os.SameFile(before, after), "destination must not be replaced")
		assert.Equal(t, before.ModTime(), after.ModTime())
		assert.Empty(t, e.sink.paths, "mods are not added to the classpath")
	})

	t.Run("fresh install", func(t *testing.T) {
		e := newEnv(t)
		e.local.Add(repo.NewDir(dir))

		f := e.fetcher(true)
		res, err := f.Fetch(context.Background(), request(t, "g:a:1.0", true, "examplemod"))
		require.NoError(t, err)

		assert.True(t, res.Installed)
		assert.True(t, f.RestartRequired())
		assert.Equal(t, filepath.Join(e.modDir, "a-1.0.jar"), res.Path)
		_, ok := e.registry.Mod("examplemod")
		assert.True(t, ok)
	})
}

func TestFetchUnresolvable(t *testing.T) {
	server := newMavenServer(t, map[string][]byte{})
	e := newEnv(t)
	e.addRemote(t, server)

	_, err := e.fetcher(true).Fetch(context.Background(), request(t, "g:a:1.0:natives", false, ""))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeUnresolvable, errors.GetCode(err))
	assert.Contains(t, err.Error(), "g:a:1.0-natives")
	assert.Equal(t, 1, countOf(server.requests(), "/g/a/1.0/a-1.0-natives.jar"), "a missing artifact is not retried")
}

func TestFetchRejectsEscapingVersion(t *testing.T) {
	server := newMavenServer(t, map[string][]byte{})
	server.onHit = func(path string, files map[string][]byte) { files[path] = []byte("payload") }
	e := newEnv(t)
	e.addRemote(t, server)

	req := request(t, "g:a:1.0", false, "")
	req.Preferred = version.Raw{Text: "x/../../../../escaped"}

	_, err := e.fetcher(true).Target(req)
	assert.Equal(t, errors.ErrCodeInvalidPath, errors.GetCode(err))

	res, err := e.fetcher(true).Fetch(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidPath, errors.GetCode(err))
	assert.Empty(t, res.Path)
	assert.Empty(t, server.requests())
	assert.NoFileExists(t, filepath.Join(e.libDir, "g-a-x", "..", "..", "..", "..", "escaped.jar"))
	assert.Empty(t, e.sink.paths)
}

func TestTargetStaysInDirectory(t *testing.T) {
	e := newEnv(t)
	f := e.fetcher(false)

	lib, err := f.Target(request(t, "org.joml:joml:1.10.5", false, ""))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(e.libDir, "org.joml-joml-1.10.5.jar"), lib)

	mod, err := f.Target(request(t, "com.example:mymod:2.0", true, "mymod"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(e.modDir, "mymod-2.0.jar"), mod)
}

func TestPromote(t *testing.T) {
	dir := t.TempDir()
	tmp := filepath.Join(dir, "a.jar.tmp")
	dst := filepath.Join(dir, "a.jar")

	require.NoError(t, os.WriteFile(tmp, []byte("new"), 0644))
	changed, err := promote(tmp, dst)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.NoFileExists(t, tmp)

	past := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(dst, past, past))
	before, err := os.Stat(dst)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(tmp, []byte("new"), 0644))
	changed, err = promote(tmp, dst)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.NoFileExists(t, tmp)

	after, err := os.Stat(dst)
	require.NoError(t, err)
	assert.True(t, os.SameFile(before, after), "identical content must not replace the file")
	assert.True(t, before.ModTime().Equal(after.ModTime()), "mtime changed from %v to %v", before.ModTime(), after.ModTime())

	require.NoError(t, os.WriteFile(tmp, []byte("newer"), 0644))
	changed, err = promote(tmp, dst)
	require.NoError(t, err)
	assert.True(t, changed)
	data, _ := os.ReadFile(dst)
	assert.Equal(t, "newer", string(data))
}

func TestFileName(t *testing.T) {
	lib := request(t, "org.joml:joml:1.10.5", false, "")
	mod := request(t, "com.example:mymod:2.0:dev", true, "mymod")

	assert.Equal(t, "org.joml-joml-1.10.5.jar", FileName(lib, false))
	assert.Equal(t, "mymod-2.0-dev.jar", FileName(mod, false))

	mod.DevSuffix = "deobf"
	assert.Equal(t, "mymod-2.0-deobf.jar", FileName(mod, true))
}

func countOf(items []string, want string) int {
	n := 0
	for _, s := range items {
		if s == want {
			n++
		}
	}
	return n
}
