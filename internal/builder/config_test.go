package builder

import (
	"strings"
	"testing"
)

func testEnv() ConfigEnv {
	return ConfigEnv{
		TargetOS:   "linux",
		TargetArch: "amd64",
		Environ:    map[string]string{"CI": "true"},
	}
}

const sampleManifest = `
[workspace]
name = "snegos"
exclude = ["target/**"]

[toolchain]
channel = "nightly"
targets = ["wasm32-wasip1", "x86_64-unknown-uefi"]

[runtime]
command = "qemu-system-x86_64"
args = ["-m", "4G", "-drive", "format=raw,file=fat:rw:esp"]

[[unit]]
name = "terminal"
root = "wasm_apps/terminal"
target = "wasm32-wasip1"
binary = "terminal.wasm"
deps = ["guestlib", "applib"]
deploy = ["kernel/wasm/terminal.wasm"]

[[unit]]
name = "kernel"
kind = "kernel"
root = "kernel"
target = "x86_64-unknown-uefi"
binary = "kernel.efi"
profile = "release"
deps = ["applib"]
deploy = ["esp/efi/boot/bootx64.efi"]
`

func TestParseConfigManifest(t *testing.T) {
	cfg, err := ParseConfig(strings.NewReader(sampleManifest), testEnv())
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}

	if cfg.Workspace.Name != "snegos" {
		t.Errorf("workspace name %q", cfg.Workspace.Name)
	}
	if cfg.Toolchain.Channel != "nightly" || len(cfg.Toolchain.Targets) != 2 {
		t.Errorf("toolchain section: %+v", cfg.Toolchain)
	}
	if cfg.Runtime.Command != "qemu-system-x86_64" {
		t.Errorf("runtime command %q", cfg.Runtime.Command)
	}

	if len(cfg.Units) != 2 {
		t.Fatalf("expected 2 units, got %d", len(cfg.Units))
	}
	// declared order must survive parsing
	if cfg.Units[0].Name != "terminal" || cfg.Units[1].Name != "kernel" {
		t.Errorf("unit order: %q, %q", cfg.Units[0].Name, cfg.Units[1].Name)
	}
	if cfg.Units[1].Kind != KindKernel {
		t.Errorf("kernel kind %q", cfg.Units[1].Kind)
	}
	if len(cfg.Units[0].Deps) != 2 || cfg.Units[0].Deps[0] != "guestlib" {
		t.Errorf("terminal deps: %v", cfg.Units[0].Deps)
	}
}

func TestParseConfigConditionalRuntimeSection(t *testing.T) {
	manifest := `
[runtime]
command = "qemu-system-x86_64"
args = ["-m", "4G"]

[runtime."target_os == 'linux'"]
args = ["-enable-kvm"]

[runtime."target_os == 'windows'"]
args = ["-accel", "whpx"]
`
	cfg, err := ParseConfig(strings.NewReader(manifest), testEnv())
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}

	joined := strings.Join(cfg.Runtime.Args, " ")
	if !strings.Contains(joined, "-enable-kvm") {
		t.Errorf("matching conditional section not merged: %v", cfg.Runtime.Args)
	}
	if strings.Contains(joined, "whpx") {
		t.Errorf("non-matching conditional section was merged: %v", cfg.Runtime.Args)
	}
	if cfg.Runtime.Args[0] != "-m" || cfg.Runtime.Args[1] != "4G" {
		t.Errorf("base args must come first: %v", cfg.Runtime.Args)
	}
}

func TestParseConfigWhenGatesUnit(t *testing.T) {
	manifest := `
[[unit]]
name = "always"
root = "a"
target = "t"
binary = "a.bin"

[[unit]]
name = "gated-out"
root = "b"
target = "t"
binary = "b.bin"
when = "target_os == 'plan9'"

[[unit]]
name = "gated-in"
root = "c"
target = "t"
binary = "c.bin"
when = "environ['CI'] == 'true'"
`
	cfg, err := ParseConfig(strings.NewReader(manifest), testEnv())
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}

	if len(cfg.Units) != 2 {
		t.Fatalf("expected 2 units after gating, got %d", len(cfg.Units))
	}
	if cfg.Units[0].Name != "always" || cfg.Units[1].Name != "gated-in" {
		t.Errorf("wrong units survived: %q, %q", cfg.Units[0].Name, cfg.Units[1].Name)
	}
}

func TestParseConfigStringExpressions(t *testing.T) {
	manifest := `
[workspace]
name = "image-{{ target_arch }}"
`
	cfg, err := ParseConfig(strings.NewReader(manifest), testEnv())
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}
	if cfg.Workspace.Name != "image-amd64" {
		t.Errorf("expression not evaluated: %q", cfg.Workspace.Name)
	}
}

func TestParseConfigBadToml(t *testing.T) {
	if _, err := ParseConfig(strings.NewReader("[workspace\nname="), testEnv()); err == nil {
		t.Fatal("expected a decode error")
	}
}

func TestParseConfigBadWhenExpression(t *testing.T) {
	manifest := `
[[unit]]
name = "broken"
root = "a"
target = "t"
binary = "a.bin"
when = "target_os =="
`
	if _, err := ParseConfig(strings.NewReader(manifest), testEnv()); err == nil {
		t.Fatal("expected an error for a malformed when expression")
	}
}
