package deps

import (
	"errors"
	"io"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/deploader/pkg/manifest"
	"github.com/matzehuels/deploader/pkg/registry"
	"github.com/matzehuels/deploader/pkg/version"
)

// Source is an openable manifest location.
type Source interface {
	String() string
	Open() (io.ReadCloser, error)
}

// Bundled is an artifact shipped inside its declaring archive.
type Bundled struct {
	Identity Identity
	Version  version.Version
	ModID    string
	Source   string
}

// Result is the outcome of flattening a batch of manifests.
type Result struct {
	// Repositories are remote repository URLs, normalized to end in '/'.
	Repositories []string
	Bundled      []Bundled
	Tasks        []Task
}

// Aggregator parses manifests and flattens them into tasks.
type Aggregator struct {
	registry *registry.Registry
	java     int
	logger   *log.Logger
}

// NewAggregator creates an aggregator that registers bundled artifacts in
// reg and gates manifests on javaVersion. A nil logger discards output.
func NewAggregator(reg *registry.Registry, javaVersion int, logger *log.Logger) *Aggregator {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Aggregator{registry: reg, java: javaVersion, logger: logger}
}

// Parse reads one manifest. It returns nil for anything that is not an
// applicable manifest; failures are logged, never returned.
func (a *Aggregator) Parse(src Source) *manifest.Document {
	rc, err := src.Open()
	if err != nil {
		a.logger.Error("Failed to open dependency manifest", "source", src, "err", err)
		return nil
	}
	defer rc.Close()

	doc, err := manifest.Parse(src.String(), rc, a.java)
	switch {
	case errors.Is(err, manifest.ErrNotManifest):
		a.logger.Debug("Ignoring non-manifest json", "source", src)
		return nil
	case errors.Is(err, manifest.ErrJavaMismatch):
		a.logger.Debug("Manifest does not apply to this java version", "source", src, "java", a.java)
		return nil
	case err != nil:
		a.logger.Error("Failed to read json from source", "source", src, "err", err)
		return nil
	}
	return doc
}

// ParseAll parses every source, dropping the ones [Aggregator.Parse] rejects.
func (a *Aggregator) ParseAll(srcs []Source) []*manifest.Document {
	var docs []*manifest.Document
	for _, src := range srcs {
		if doc := a.Parse(src); doc != nil {
			docs = append(docs, doc)
		}
	}
	return docs
}

// Aggregate flattens docs into repositories, bundled artifacts and tasks.
// Bundled artifacts are registered as a side effect.
func (a *Aggregator) Aggregate(docs []*manifest.Document) Result {
	var res Result
	seenRepo := make(map[string]bool)
	seenTask := make(map[string]bool)

	for _, doc := range docs {
		for _, repo := range doc.Repositories {
			repo = NormalizeRepository(repo)
			if repo == "/" || seenRepo[repo] {
				continue
			}
			seenRepo[repo] = true
			res.Repositories = append(res.Repositories, repo)
		}

		for _, entry := range doc.BundledArtifacts {
			if b, ok := a.bundled(doc.Source, entry); ok {
				res.Bundled = append(res.Bundled, b)
			}
		}

		for _, tree := range []struct {
			deps *manifest.Tree
			mod  bool
		}{{doc.Dependencies, false}, {doc.ModDependencies, true}} {
			for _, t := range a.flatten(doc.Source, tree.deps, tree.mod) {
				key := t.Scope.String() + "\x00" + t.Request.dedupKey()
				if seenTask[key] {
					continue
				}
				seenTask[key] = true
				res.Tasks = append(res.Tasks, t)
			}
		}
	}
	return res
}

func (a *Aggregator) bundled(source string, entry manifest.Entry) (Bundled, bool) {
	id, spec, err := ParseCoordinate(entry.Artifact)
	if err != nil {
		a.logger.Error("Invalid bundled artifact", "artifact", entry.Artifact, "source", source, "err", err)
		return Bundled{}, false
	}
	a.logger.Info("Found bundled artifact", "artifact", id.String()+":"+spec.Preferred.String(), "source", source)

	a.registry.RegisterLibrary(id.String(), spec.Preferred, source)
	if entry.ModID != "" {
		a.logger.Info("With modid", "modid", entry.ModID)
		a.registry.RegisterMod(entry.ModID, spec.Preferred, source)
	}
	return Bundled{Identity: id, Version: spec.Preferred, ModID: entry.ModID, Source: source}, true
}

func (a *Aggregator) flatten(source string, tree *manifest.Tree, mod bool) []Task {
	if tree == nil {
		return nil
	}
	var tasks []Task
	for _, scoped := range []struct {
		sided *manifest.Sided
		scope DeclScope
	}{{tree.Always, ScopeAlways}, {tree.Dev, ScopeDev}, {tree.Obf, ScopeObf}} {
		if scoped.sided == nil {
			continue
		}
		for _, sided := range []struct {
			entries []manifest.Entry
			side    Side
		}{{scoped.sided.Common, SideCommon}, {scoped.sided.Client, SideClient}, {scoped.sided.Server, SideServer}} {
			for _, entry := range sided.entries {
				id, spec, err := ParseCoordinate(entry.Artifact)
				if err != nil {
					a.logger.Error("Invalid dependency", "artifact", entry.Artifact, "source", source, "err", err)
					continue
				}
				a.logger.Debug("Found dependency", "artifact", entry.Artifact, "source", source)
				tasks = append(tasks, Task{
					Scope:   ResolutionScope{Scope: scoped.scope, Side: sided.side},
					Request: NewRequest(source, id, spec, mod, entry.ModID),
				})
			}
		}
	}
	return tasks
}

// NormalizeRepository trims whitespace and guarantees a trailing slash.
func NormalizeRepository(repo string) string {
	repo = strings.TrimSpace(repo)
	if !strings.HasSuffix(repo, "/") {
		repo += "/"
	}
	return repo
}
