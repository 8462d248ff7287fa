package builder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/crater-build/crater/internal/msg"
	"golang.org/x/sync/errgroup"
)

const defaultCompiler = "cargo"

// defaultExcludes prunes every unit's own build output from staleness
// scanning, so a unit never appears stale just because it was built.
var defaultExcludes = []string{buildOutputDir + "/**"}

var (
	errNoKernelUnit = errors.New("workspace declares no kernel unit")
	errNoRuntime    = errors.New("no [runtime] command configured in " + manifestName)
)

// Builder sequences unit builds and artifact staging for one workspace.
type Builder struct {
	cfg     *Config
	basedir string
	units   []*Unit
	runner  Runner
}

func NewBuilderInDirectory(path string) (*Builder, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	env := NewConfigEnv()
	cfg, err := ParseConfigFromFile(filepath.Join(path, manifestName), env)
	if err != nil {
		return nil, err
	}
	return newBuilder(cfg, path, execRunner{})
}

func newBuilder(cfg *Config, basedir string, runner Runner) (*Builder, error) {
	units, err := resolveUnits(cfg, basedir)
	if err != nil {
		return nil, err
	}
	return &Builder{cfg: cfg, basedir: basedir, units: units, runner: runner}, nil
}

func (b *Builder) compiler() string {
	if b.cfg.Workspace.Compiler != "" {
		return b.cfg.Workspace.Compiler
	}
	return defaultCompiler
}

func (b *Builder) excludes() []string {
	if len(b.cfg.Workspace.Exclude) > 0 {
		return b.cfg.Workspace.Exclude
	}
	return defaultExcludes
}

// rel shortens a path for diagnostics
func (b *Builder) rel(path string) string {
	if rel, err := filepath.Rel(b.basedir, path); err == nil {
		return rel
	}
	return path
}

// isUnitStale reports whether any file under the unit's root or any of its
// dependency roots is strictly newer than ref. The roots are scanned
// concurrently (they are read-only during the scan) but the changed-file
// reports come out in declared order so logs stay deterministic. The same
// build-output exclusion applies to every root, own and dependency alike.
func (b *Builder) isUnitStale(u *Unit, ref time.Time) (bool, error) {
	roots := append([]string{u.Root}, u.Deps...)
	newer := make([][]string, len(roots))

	var eg errgroup.Group
	for i, root := range roots {
		i, root := i, root
		eg.Go(func() error {
			files, err := scanNewer(root, ref, b.excludes())
			newer[i] = files
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return false, err
	}

	stale := false
	for i, files := range newer {
		if len(files) == 0 {
			continue
		}
		stale = true
		msg.Info("source changes in %s:", b.rel(roots[i]))
		for _, f := range files {
			fmt.Printf("  - %s\n", b.rel(f))
		}
	}

	return stale, nil
}

// BuildUnit rebuilds u if its artifact is missing or stale and returns the
// artifact path. A missing artifact never skips the build; staleness is
// fully determined before the compiler is invoked.
func (b *Builder) BuildUnit(u *Unit) (string, error) {
	artifact := u.ArtifactPath()

	stale := true
	if info, err := os.Stat(artifact); err == nil {
		stale, err = b.isUnitStale(u, info.ModTime())
		if err != nil {
			return "", err
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("unit %q: artifact %s: %w", u.Name, artifact, err)
	}

	if !stale {
		msg.Info("skipping %s (up-to-date)", u.Name)
		return artifact, nil
	}

	msg.Info("building %s (%s, %s)", u.Name, u.Target, u.Profile)
	args := append([]string{"build", "--target", u.Target}, u.profileArgs()...)
	if err := b.runner.Run(u.Root, b.compiler(), args...); err != nil {
		return "", fmt.Errorf("build failed for unit %q: %w", u.Name, err)
	}

	if _, err := os.Stat(artifact); err != nil {
		return "", fmt.Errorf("unit %q built, but artifact %s was not produced: %w", u.Name, artifact, err)
	}
	return artifact, nil
}

func (b *Builder) buildAndStage(u *Unit) error {
	artifact, err := b.BuildUnit(u)
	if err != nil {
		return err
	}
	for _, dst := range u.Deploy {
		copied, err := Stage(artifact, dst)
		if err != nil {
			return err
		}
		if copied {
			msg.Info("staged %s -> %s", b.rel(artifact), b.rel(dst))
		}
	}
	return nil
}

// Build runs the build flow: every application unit in declared order, then
// the kernel. Applications stage before the kernel builds because the
// kernel's artifact tree embeds their binaries. Any failure aborts the run.
func (b *Builder) Build() error {
	var kernel *Unit
	for _, u := range b.units {
		if u.Kind == KindKernel {
			kernel = u
		}
	}
	if kernel == nil {
		return errNoKernelUnit
	}

	for _, u := range b.units {
		if u.Kind == KindKernel {
			continue
		}
		if err := b.buildAndStage(u); err != nil {
			return err
		}
	}

	return b.buildAndStage(kernel)
}

// BuildAndRun runs the build flow and then launches the configured runtime
// against the deployment tree. A runtime failure or interrupt is reported
// but does not invalidate anything that was built and staged.
func (b *Builder) BuildAndRun() error {
	if err := b.Build(); err != nil {
		return err
	}
	if b.cfg.Runtime.Command == "" {
		return errNoRuntime
	}

	msg.Info("launching %s", b.cfg.Runtime.Command)
	if err := b.runner.Run(b.basedir, b.cfg.Runtime.Command, b.cfg.Runtime.Args...); err != nil {
		return fmt.Errorf("runtime exited: %w", err)
	}
	return nil
}

// Status reports each unit's staleness without invoking the compiler.
func (b *Builder) Status() error {
	for _, u := range b.units {
		artifact := u.ArtifactPath()
		info, err := os.Stat(artifact)
		if os.IsNotExist(err) {
			msg.Warn("%s: never built", u.Name)
			continue
		} else if err != nil {
			return fmt.Errorf("unit %q: artifact %s: %w", u.Name, artifact, err)
		}

		stale, err := b.isUnitStale(u, info.ModTime())
		if err != nil {
			return err
		}
		if stale {
			msg.Warn("%s: stale", u.Name)
		} else {
			msg.Info("%s: up-to-date", u.Name)
		}
	}
	return nil
}

// Fmt runs the compiler's formatting pass in every unit root.
func (b *Builder) Fmt() error {
	return b.eachUnit("fmt")
}

// Fix runs the compiler's auto-fix pass in every unit root.
func (b *Builder) Fix() error {
	return b.eachUnit("fix", "--allow-dirty")
}

func (b *Builder) eachUnit(args ...string) error {
	for _, u := range b.units {
		msg.Info("%s %s", args[0], u.Name)
		if err := b.runner.Run(u.Root, b.compiler(), args...); err != nil {
			return fmt.Errorf("%s failed for unit %q: %w", args[0], u.Name, err)
		}
	}
	return nil
}

// Clean removes every unit's build-output directory. Staged deployment
// files are left alone; they are refreshed, never deleted.
func (b *Builder) Clean() error {
	for _, u := range b.units {
		out := filepath.Join(u.Root, buildOutputDir)
		if err := os.RemoveAll(out); err != nil {
			return fmt.Errorf("clean %s: %w", out, err)
		}
		msg.Info("removed %s", b.rel(out))
	}
	return nil
}

// SetupToolchain installs the pinned toolchain channel and registers every
// configured compilation target with rustup.
func (b *Builder) SetupToolchain() error {
	channel := b.cfg.Toolchain.Channel
	if channel != "" {
		msg.Info("installing toolchain %s", channel)
		if err := b.runner.Run(b.basedir, "rustup", "toolchain", "install", channel); err != nil {
			return fmt.Errorf("toolchain install failed: %w", err)
		}
	}

	for _, target := range b.cfg.Toolchain.Targets {
		args := []string{"target", "add"}
		if channel != "" {
			args = append(args, "--toolchain", channel)
		}
		args = append(args, target)

		msg.Info("adding target %s", target)
		if err := b.runner.Run(b.basedir, "rustup", args...); err != nil {
			return fmt.Errorf("target add %s failed: %w", target, err)
		}
	}

	return nil
}
