package paths

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/arthur-debert/solodeploy/pkg/errors"
)

// Environment variable names
const (
	// EnvProjectRoot is the explicit project root override
	EnvProjectRoot = "SOLODEPLOY_ROOT"

	// EnvCacheDir overrides the XDG cache directory for solodeploy
	EnvCacheDir = "SOLODEPLOY_CACHE_DIR"
)

// Default directories and files
const (
	// AppDirName is the directory name used below XDG base directories
	AppDirName = "solodeploy"

	// DotEnvFile holds secrets loaded into the environment before config
	DotEnvFile = ".env"
)

// ConfigFileNames are the project config file names, in lookup order
var ConfigFileNames = []string{"solodeploy.toml", ".solodeploy.toml", "solodeploy.yaml", "solodeploy.yml"}

// Paths provides centralized path management for solodeploy
type Paths struct {
	root         string
	configFile   string
	cacheDir     string
	usedFallback bool
}

// New creates a Paths instance rooted at projectRoot. An empty projectRoot is
// resolved from SOLODEPLOY_ROOT, then by walking up from the working
// directory looking for a config file, then the working directory itself.
func New(projectRoot string) (*Paths, error) {
	p := &Paths{}

	if projectRoot == "" {
		root, usedFallback, err := findProjectRoot()
		if err != nil {
			return nil, err
		}
		p.root = root
		p.usedFallback = usedFallback
	} else {
		p.root = ExpandHome(projectRoot)
	}

	absRoot, err := filepath.Abs(p.root)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrInvalidInput, "failed to get absolute path for project root")
	}
	p.root = absRoot
	p.configFile = findConfigFile(absRoot)

	if cacheDir := os.Getenv(EnvCacheDir); cacheDir != "" {
		p.cacheDir = ExpandHome(cacheDir)
	} else {
		p.cacheDir = filepath.Join(xdg.CacheHome, AppDirName)
	}

	return p, nil
}

// Root returns the absolute project root
func (p *Paths) Root() string { return p.root }

// UsedFallback reports whether the working directory was used because no
// config file was found
func (p *Paths) UsedFallback() bool { return p.usedFallback }

// ConfigFile returns the project config file, or "" if none exists
func (p *Paths) ConfigFile() string { return p.configFile }

// DotEnvFile returns the path of the project's .env file
func (p *Paths) DotEnvFile() string { return filepath.Join(p.root, DotEnvFile) }

// CacheDir returns the XDG cache directory for solodeploy
func (p *Paths) CacheDir() string { return p.cacheDir }

// Resolve makes a project-relative path absolute
func (p *Paths) Resolve(path string) string {
	path = ExpandHome(path)
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(p.root, path)
}

func findProjectRoot() (string, bool, error) {
	if root := os.Getenv(EnvProjectRoot); root != "" {
		return ExpandHome(root), false, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", false, errors.Wrapf(err, errors.ErrInvalidInput, "failed to get current directory")
	}

	dir := cwd
	for {
		if findConfigFile(dir) != "" {
			return dir, false, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return cwd, true, nil
}

func findConfigFile(dir string) string {
	for _, name := range ConfigFileNames {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

// ExpandHome expands a leading ~ to the user's home directory
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
