package config

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/deploader/pkg/cache"
	"github.com/matzehuels/deploader/pkg/errors"
)

// EnvSharedDataDir moves libraries and temp files out of the home
// directory, so several installations can share one library folder.
const EnvSharedDataDir = "DEPLOADER_SHARED_DATA_DIR"

// Dirs is the resolved directory layout.
type Dirs struct {
	Home   string // game home; mods and config live here
	Shared string // shared data dir; libraries and temp files live here
	Lib    string // <shared>/falsepattern
	Mods   string // <home>/mods/1.7.10, where mods are installed
	Temp   string // <shared>/logs/falsepattern_tmp
	Config string // <home>/config
}

// ResolveDirs builds the layout for home. An empty home means the current
// directory.
func ResolveDirs(home string) (Dirs, error) {
	if home == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Dirs{}, errors.Wrap(errors.ErrCodeInvalidPath, err, "resolve working directory")
		}
		home = wd
	}
	home, err := filepath.Abs(home)
	if err != nil {
		return Dirs{}, errors.Wrap(errors.ErrCodeInvalidPath, err, "resolve home %s", home)
	}

	shared := home
	if env := os.Getenv(EnvSharedDataDir); env != "" {
		shared = env
	}

	return Dirs{
		Home:   home,
		Shared: shared,
		Lib:    filepath.Join(shared, "falsepattern"),
		Mods:   filepath.Join(home, "mods", "1.7.10"),
		Temp:   filepath.Join(shared, "logs", "falsepattern_tmp"),
		Config: filepath.Join(home, "config"),
	}, nil
}

// ModScanDirs returns the folders whose children are scan candidates.
func (d Dirs) ModScanDirs() []string {
	return []string{filepath.Join(d.Home, "mods"), d.Mods}
}

// OldLib is the library folder used by earlier releases.
func (d Dirs) OldLib() string {
	return filepath.Join(d.Shared, "mods", "falsepattern")
}

// LegacyScanCache is where earlier releases kept the scan cache.
func (d Dirs) LegacyScanCache() string {
	return filepath.Join(d.Lib, cache.FileName)
}

// Ensure creates the library, mod and temp directories.
func (d Dirs) Ensure() error {
	for _, dir := range []string{d.Lib, d.Mods, d.Temp} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidPath, err, "create directory %s", dir)
		}
	}
	return nil
}

// MigrateOldLib moves every file from the old library folder into Lib and
// removes the old folder. Files that cannot be moved are deleted.
func (d Dirs) MigrateOldLib(logger *log.Logger) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	old := d.OldLib()
	entries, err := os.ReadDir(old)
	if os.IsNotExist(err) {
		return
	}
	if err != nil {
		logger.Warn("Failed to iterate old library directory", "path", old, "err", err)
		return
	}

	logger.Info("Migrating old library folder", "from", old, "to", d.Lib)
	if err := os.MkdirAll(d.Lib, 0755); err != nil {
		logger.Warn("Failed to create library directory", "path", d.Lib, "err", err)
		return
	}
	for _, e := range entries {
		src := filepath.Join(old, e.Name())
		dst := filepath.Join(d.Lib, e.Name())
		_ = os.RemoveAll(dst)
		if err := os.Rename(src, dst); err != nil {
			logger.Warn("Failed to move file to new dir, deleting instead", "file", e.Name(), "err", err)
			if err := os.RemoveAll(src); err != nil {
				logger.Warn("Failed to delete file", "path", src, "err", err)
			}
		}
	}
	if err := os.Remove(old); err != nil {
		logger.Warn("Failed to delete old library directory", "path", old, "err", err)
	}
}
