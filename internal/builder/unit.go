package builder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// buildOutputDir is the compiler's output directory inside every unit root.
// It is excluded from staleness scanning and removed by the clean pass.
const buildOutputDir = "target"

const (
	KindApp    = "app"
	KindKernel = "kernel"
)

var errNoUnits = errors.New("workspace declares no units")

// Unit is one independently compilable source tree: a guest application or
// the kernel. All paths are absolute.
type Unit struct {
	Name    string
	Kind    string
	Root    string
	Target  string
	Binary  string
	Profile string

	// Deps are source trees whose changes also invalidate this unit's
	// artifact. They are read-only influences: the unit never writes to them.
	Deps []string

	// Deploy lists destinations in the deployment tree that must carry this
	// unit's artifact.
	Deploy []string
}

// ArtifactPath returns the deterministic location of the compiler's output
// for this unit.
func (u *Unit) ArtifactPath() string {
	return filepath.Join(u.Root, buildOutputDir, u.Target, u.Profile, u.Binary)
}

// profileArgs maps the build profile onto compiler flags.
func (u *Unit) profileArgs() []string {
	switch u.Profile {
	case "debug":
		return nil
	case "release":
		return []string{"--release"}
	default:
		return []string{"--profile", u.Profile}
	}
}

// resolveUnits validates the declared units and resolves every path against
// the workspace directory. A missing unit root or dependency root is a
// configuration error, not a staleness signal.
func resolveUnits(cfg *Config, basedir string) ([]*Unit, error) {
	if len(cfg.Units) == 0 {
		return nil, errNoUnits
	}

	kernels := 0
	units := make([]*Unit, 0, len(cfg.Units))

	for i, sec := range cfg.Units {
		if sec.Name == "" {
			return nil, fmt.Errorf("unit #%d has no name", i+1)
		}
		if sec.Root == "" || sec.Target == "" || sec.Binary == "" {
			return nil, fmt.Errorf("unit %q must declare root, target and binary", sec.Name)
		}

		u := &Unit{
			Name:    sec.Name,
			Kind:    sec.Kind,
			Root:    filepath.Join(basedir, sec.Root),
			Target:  sec.Target,
			Binary:  sec.Binary,
			Profile: sec.Profile,
		}
		if u.Kind == "" {
			u.Kind = KindApp
		}
		if u.Kind != KindApp && u.Kind != KindKernel {
			return nil, fmt.Errorf("unit %q has unknown kind %q", u.Name, u.Kind)
		}
		if u.Profile == "" {
			u.Profile = "release"
		}
		if u.Kind == KindKernel {
			kernels++
		}

		if err := requireDir(u.Root, u.Name); err != nil {
			return nil, err
		}
		for _, dep := range sec.Deps {
			depRoot := filepath.Join(basedir, dep)
			if err := requireDir(depRoot, u.Name); err != nil {
				return nil, err
			}
			u.Deps = append(u.Deps, depRoot)
		}
		for _, dst := range sec.Deploy {
			u.Deploy = append(u.Deploy, filepath.Join(basedir, dst))
		}

		units = append(units, u)
	}

	if kernels > 1 {
		return nil, errors.New("workspace declares more than one kernel unit")
	}

	return units, nil
}

func requireDir(path, unit string) error {
	stat, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("unit %q: source tree %s: %w", unit, path, err)
	}
	if !stat.IsDir() {
		return fmt.Errorf("unit %q: source tree %s is not a directory", unit, path)
	}
	return nil
}
