// File: internal/workspace/workspace.go
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/xkilldash9x/ghidra-auto/internal/config"
)

// ErrEmptyProjectName is returned when the input path has no usable stem, e.g. "dir/".
var ErrEmptyProjectName = errors.New("cannot derive a project name from the input path")

// dirPerm is the permission used for every directory the launcher creates.
const dirPerm = 0o755

// Define function variables for dependency injection/mocking in tests.
var (
	osMkdirAll    = os.MkdirAll
	homedirExpand = homedir.Expand
)

// LookupEnvFunc has the signature of os.LookupEnv.
type LookupEnvFunc func(key string) (string, bool)

// ClockFunc has the signature of time.Now.
type ClockFunc func() time.Time

// Layout is the fully resolved on-disk location of one analysis session.
type Layout struct {
	BaseDir     string
	Name        string
	Timestamp   int64
	Dir         string
	ProjectFile string
}

// Resolver turns an input path into a Layout. The environment and the clock are
// injected so the naming is deterministic under test.
type Resolver struct {
	cfg       config.GhidraConfig
	lookupEnv LookupEnvFunc
	now       ClockFunc
}

// NewResolver creates a Resolver. Nil lookupEnv or now fall back to os.LookupEnv and time.Now.
func NewResolver(cfg config.GhidraConfig, lookupEnv LookupEnvFunc, now ClockFunc) *Resolver {
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}
	if now == nil {
		now = time.Now
	}
	return &Resolver{cfg: cfg, lookupEnv: lookupEnv, now: now}
}

// BaseDir returns $HOME/<ProjectsDirName> when HOME is set and non-empty and
// <ProjectsDirName> relative to the working directory otherwise. A configured
// ProjectsRoot takes precedence and may start with "~".
func (r *Resolver) BaseDir() (string, error) {
	if r.cfg.ProjectsRoot != "" {
		root, err := homedirExpand(r.cfg.ProjectsRoot)
		if err != nil {
			return "", fmt.Errorf("failed to expand projects_root %q: %w", r.cfg.ProjectsRoot, err)
		}
		return root, nil
	}
	if home, ok := r.lookupEnv("HOME"); ok && home != "" {
		return filepath.Join(home, r.cfg.ProjectsDirName), nil
	}
	return r.cfg.ProjectsDirName, nil
}

// Resolve reads the clock once and computes the Layout for inputPath.
// Nothing is created on disk.
func (r *Resolver) Resolve(inputPath string) (Layout, error) {
	ts := r.now().Unix()

	base, err := r.BaseDir()
	if err != nil {
		return Layout{}, err
	}

	name := Stem(inputPath)
	if name == "" {
		return Layout{}, fmt.Errorf("%w: %q", ErrEmptyProjectName, inputPath)
	}

	dir := filepath.Join(base, name+"_"+strconv.FormatInt(ts, 10))
	return Layout{
		BaseDir:     base,
		Name:        name,
		Timestamp:   ts,
		Dir:         dir,
		ProjectFile: filepath.Join(dir, name+"."+r.cfg.ProjectExtension),
	}, nil
}

// Create makes the project directory and any missing ancestors.
func (l Layout) Create() error {
	if err := osMkdirAll(l.Dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create project directory %q: %w", l.Dir, err)
	}
	return nil
}

// Stem returns the last '/'- or '\'-delimited segment of p without its extension.
// A dot in first position does not start an extension, so ".bashrc" is kept whole,
// and "." and ".." are returned unchanged.
func Stem(p string) string {
	name := p
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		name = p[i+1:]
	}
	if name == "." || name == ".." {
		return name
	}
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return name[:i]
	}
	return name
}
