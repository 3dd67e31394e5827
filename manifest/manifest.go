// Package manifest handles lxg.toml project configuration.
package manifest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileName is the manifest file looked up by Load and FindAndLoad.
const FileName = "lxg.toml"

// SourceExt and ModuleExt are the extensions of source files and built
// modules. AsmExt is used for disassembly listings written next to modules.
const (
	SourceExt = ".lxg"
	ModuleExt = ".lxgm"
	AsmExt    = ".lxgs"
)

// DefaultParallel bounds concurrent compilations when [build] parallel is
// unset or not positive.
const DefaultParallel = 4

// Manifest represents an lxg.toml project configuration.
type Manifest struct {
	Project Project     `toml:"project"`
	Build   BuildConfig `toml:"build"`
	Run     RunConfig   `toml:"run"`
	Log     LogConfig   `toml:"log"`

	// Dir is the directory containing the lxg.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string   `toml:"name"`
	Entry   string   `toml:"entry"`
	Sources []string `toml:"sources"`
}

// BuildConfig configures module output.
type BuildConfig struct {
	Output   string `toml:"output"`
	EmitAsm  bool   `toml:"emit-asm"`
	Parallel int    `toml:"parallel"`
}

// RunConfig configures program execution.
type RunConfig struct {
	Trace bool `toml:"trace"`
}

// LogConfig configures commonlog.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the configuration used when no lxg.toml exists. Dir is
// the current directory.
func Default() *Manifest {
	m := &Manifest{Dir: "."}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if len(m.Project.Sources) == 0 {
		m.Project.Sources = []string{"."}
	}
	if m.Build.Output == "" {
		m.Build.Output = "out"
	}
	if m.Build.Parallel <= 0 {
		m.Build.Parallel = DefaultParallel
	}
}

// Load parses a lxg.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	return parse(data, path, dir)
}

func parse(data []byte, path, dir string) (*Manifest, error) {
	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	m.applyDefaults()
	return &m, nil
}

// FindAndLoad walks up from startDir to find a lxg.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// Resolve makes a manifest-relative path absolute. Absolute paths and the
// empty string are returned unchanged.
func (m *Manifest) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// EntryPath returns the absolute path of the project's entry file, or ""
// when none is configured.
func (m *Manifest) EntryPath() string {
	return m.Resolve(m.Project.Entry)
}

// OutputDir returns the absolute module output directory.
func (m *Manifest) OutputDir() string {
	return m.Resolve(m.Build.Output)
}

// LogFile returns the absolute log file path, or "" for stderr.
func (m *Manifest) LogFile() string {
	return m.Resolve(m.Log.File)
}

// SourceDirPaths returns absolute paths for the configured source directories.
func (m *Manifest) SourceDirPaths() []string {
	var paths []string
	for _, d := range m.Project.Sources {
		paths = append(paths, m.Resolve(d))
	}
	return paths
}

// SourceFiles lists every .lxg file under the source directories, sorted
// and without duplicates. The output directory and hidden directories are
// skipped.
func (m *Manifest) SourceFiles() ([]string, error) {
	out := m.OutputDir()
	seen := make(map[string]bool)
	var files []string
	for _, root := range m.SourceDirPaths() {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && (path == out || strings.HasPrefix(d.Name(), ".")) {
					return filepath.SkipDir
				}
				return nil
			}
			if filepath.Ext(path) == SourceExt && !seen[path] {
				seen[path] = true
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", root, err)
		}
	}
	sort.Strings(files)
	return files, nil
}

// ModulePath returns where the module built from src is written:
// the output directory plus src's base name with the module extension.
func (m *Manifest) ModulePath(src string) string {
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	return filepath.Join(m.OutputDir(), base+ModuleExt)
}

// AsmPath is ModulePath with the listing extension.
func (m *Manifest) AsmPath(src string) string {
	return strings.TrimSuffix(m.ModulePath(src), ModuleExt) + AsmExt
}
