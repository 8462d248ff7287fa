package builder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"regexp"
	"runtime"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/pelletier/go-toml/v2"
)

// manifestName is the workspace manifest expected at the workspace root.
const manifestName = "Crater.toml"

type Config struct {
	Workspace WorkspaceSection
	Toolchain ToolchainSection
	Runtime   RuntimeSection
	Units     []UnitSection
}

// WorkspaceSection defines the [workspace] section
type WorkspaceSection struct {
	Name     string   `toml:"name"`
	Compiler string   `toml:"compiler"`
	Exclude  []string `toml:"exclude"`
}

// ToolchainSection defines the [toolchain] section, consumed only by the
// setup-toolchain passthrough
type ToolchainSection struct {
	Channel string   `toml:"channel"`
	Targets []string `toml:"targets"`
}

// RuntimeSection defines the [runtime] section: the emulator launched by the
// run flow against the deployment tree
type RuntimeSection struct {
	Command string   `toml:"command"`
	Args    []string `toml:"args"`
}

// UnitSection defines one [[unit]] entry
type UnitSection struct {
	Name    string   `toml:"name"`
	Kind    string   `toml:"kind"`
	Root    string   `toml:"root"`
	Target  string   `toml:"target"`
	Binary  string   `toml:"binary"`
	Profile string   `toml:"profile"`
	Deps    []string `toml:"deps"`
	Deploy  []string `toml:"deploy"`
	When    string   `toml:"when"`
}

// ConfigEnv is the environment visible to expr expressions in the manifest
// (conditional section keys, `when` gates and {{ }} interpolations).
type ConfigEnv struct {
	TargetOS   string            `expr:"target_os"`
	TargetArch string            `expr:"target_arch"`
	Environ    map[string]string `expr:"environ"`
}

func NewConfigEnv() ConfigEnv {
	environ := make(map[string]string)
	for _, e := range os.Environ() {
		if i := strings.Index(e, "="); i >= 0 {
			environ[e[:i]] = e[i+1:]
		}
	}

	return ConfigEnv{
		TargetOS:   runtime.GOOS,
		TargetArch: runtime.GOARCH,
		Environ:    environ,
	}
}

func mustMarshal(v any) string {
	b, err := toml.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

// unmarshalSection is a helper to parse sections without conditional logic
func unmarshalSection(rawCfg map[string]any, name string, dst any) error {
	if data, ok := rawCfg[name]; ok {
		if err := toml.Unmarshal([]byte(mustMarshal(data)), dst); err != nil {
			return fmt.Errorf("failed to parse [%s] section: %w", name, err)
		}
	}
	return nil
}

// unmarshalConditionalSection parses a section whose subtables keyed by expr
// expressions are merged into it when the expression evaluates to true
func unmarshalConditionalSection[T any](rawCfg map[string]any, name string, dst *T, env ConfigEnv) error {
	sectionData, ok := rawCfg[name]
	if !ok {
		return nil
	}

	sectionMap, ok := sectionData.(map[string]any)
	if !ok {
		return fmt.Errorf("invalid [%s] section format: expected a table", name)
	}

	baseFields := make(map[string]any)
	conditionalFields := make(map[string]map[string]any)

	for key, val := range sectionMap {
		if subMap, ok := val.(map[string]any); ok {
			if _, err := expr.Compile(key, expr.Env(env)); err == nil {
				conditionalFields[key] = subMap
				continue
			}
		}
		baseFields[key] = val
	}

	if len(baseFields) > 0 {
		if err := toml.Unmarshal([]byte(mustMarshal(baseFields)), dst); err != nil {
			return fmt.Errorf("failed to parse base [%s] section: %w", name, err)
		}
	}

	for expression, condMap := range conditionalFields {
		matched, err := evalCondition(expression, env)
		if err != nil {
			return fmt.Errorf("failed to evaluate condition for [%s.%q]: %w", name, expression, err)
		}
		if !matched {
			continue
		}

		var condSection T
		if err := toml.Unmarshal([]byte(mustMarshal(condMap)), &condSection); err != nil {
			return fmt.Errorf("failed to parse conditional section [%s.%q]: %w", name, expression, err)
		}
		if err := mergeStructs(dst, condSection); err != nil {
			return fmt.Errorf("failed to merge conditional section [%s.%q]: %w", name, expression, err)
		}
	}

	return nil
}

// evalCondition compiles and runs a boolean expr expression against env
func evalCondition(expression string, env ConfigEnv) (bool, error) {
	program, err := expr.Compile(expression, expr.Env(env))
	if err != nil {
		return false, err
	}
	result, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}
	matched, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q is not boolean", expression)
	}
	return matched, nil
}

// mergeStructs merges src's fields into dst: slices append, maps overlay,
// bools or together, everything else overwrites when src is non-zero
func mergeStructs(dst, src any) error {
	dstVal := reflect.ValueOf(dst)
	if dstVal.Kind() != reflect.Pointer || dstVal.Elem().Kind() != reflect.Struct {
		return errors.New("dst must be a pointer to a struct")
	}
	dstElem := dstVal.Elem()

	srcVal := reflect.ValueOf(src)
	if srcVal.Kind() == reflect.Pointer {
		srcVal = srcVal.Elem()
	}
	if srcVal.Kind() != reflect.Struct || dstElem.Type() != srcVal.Type() {
		return errors.New("src must be a struct of the same type as dst")
	}

	for i := 0; i < srcVal.NumField(); i++ {
		srcField := srcVal.Field(i)
		dstField := dstElem.Field(i)
		if !dstField.CanSet() {
			continue
		}

		switch dstField.Kind() {
		case reflect.Slice:
			if !srcField.IsNil() {
				dstField.Set(reflect.AppendSlice(dstField, srcField))
			}
		case reflect.Map:
			if !srcField.IsNil() {
				if dstField.IsNil() {
					dstField.Set(reflect.MakeMap(dstField.Type()))
				}
				for _, key := range srcField.MapKeys() {
					dstField.SetMapIndex(key, srcField.MapIndex(key))
				}
			}
		case reflect.Bool:
			dstField.SetBool(dstField.Bool() || srcField.Bool())
		default:
			if !srcField.IsZero() {
				dstField.Set(srcField)
			}
		}
	}

	return nil
}

var exprRegex = regexp.MustCompile(`\{\{(.+?)\}\}`)

// evaluateString finds and evaluates all {{...}} expressions in a string
func evaluateString(s string, env ConfigEnv) (string, error) {
	matches := exprRegex.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	var sb strings.Builder
	lastIndex := 0

	for _, m := range matches {
		sb.WriteString(s[lastIndex:m[0]])

		expression := strings.TrimSpace(s[m[2]:m[3]])
		program, err := expr.Compile(expression, expr.Env(env))
		if err != nil {
			return "", fmt.Errorf("failed to compile expression %q: %w", expression, err)
		}
		result, err := expr.Run(program, env)
		if err != nil {
			return "", fmt.Errorf("failed to run expression %q: %w", expression, err)
		}

		fmt.Fprintf(&sb, "%v", result)
		lastIndex = m[1]
	}

	sb.WriteString(s[lastIndex:])

	return sb.String(), nil
}

// processExpressions recursively walks the parsed TOML data and evaluates
// {{ }} expressions in strings
func processExpressions(data any, env ConfigEnv) (any, error) {
	switch v := data.(type) {
	case map[string]any:
		for key, val := range v {
			processed, err := processExpressions(val, env)
			if err != nil {
				return nil, err
			}
			v[key] = processed
		}
		return v, nil
	case []any:
		for i, item := range v {
			processed, err := processExpressions(item, env)
			if err != nil {
				return nil, err
			}
			v[i] = processed
		}
		return v, nil
	case []map[string]any: // array of tables
		for i, item := range v {
			processed, err := processExpressions(item, env)
			if err != nil {
				return nil, err
			}
			v[i] = processed.(map[string]any)
		}
		return v, nil
	case string:
		return evaluateString(v, env)
	default:
		return data, nil
	}
}

func ParseConfig(rdr io.Reader, env ConfigEnv) (*Config, error) {
	var rawConfig map[string]any
	dec := toml.NewDecoder(rdr)
	if err := dec.Decode(&rawConfig); err != nil {
		if derr, ok := err.(*toml.DecodeError); ok {
			return nil, errors.New(derr.String())
		}
		return nil, err
	}

	processed, err := processExpressions(rawConfig, env)
	if err != nil {
		return nil, fmt.Errorf("error processing expressions in manifest: %w", err)
	}
	rawConfig = processed.(map[string]any)

	cfg := new(Config)

	if err := unmarshalSection(rawConfig, "workspace", &cfg.Workspace); err != nil {
		return nil, err
	}
	if err := unmarshalSection(rawConfig, "toolchain", &cfg.Toolchain); err != nil {
		return nil, err
	}
	if err := unmarshalConditionalSection(rawConfig, "runtime", &cfg.Runtime, env); err != nil {
		return nil, err
	}

	units, err := parseUnits(rawConfig, env)
	if err != nil {
		return nil, err
	}
	cfg.Units = units

	return cfg, nil
}

// parseUnits decodes the [[unit]] array in declared order and drops entries
// whose `when` gate evaluates to false
func parseUnits(rawCfg map[string]any, env ConfigEnv) ([]UnitSection, error) {
	data, ok := rawCfg["unit"]
	if !ok {
		return nil, nil
	}

	var wrapper struct {
		Unit []UnitSection `toml:"unit"`
	}
	if err := toml.Unmarshal([]byte(mustMarshal(map[string]any{"unit": data})), &wrapper); err != nil {
		return nil, fmt.Errorf("failed to parse [[unit]] entries: %w", err)
	}

	units := make([]UnitSection, 0, len(wrapper.Unit))
	for _, u := range wrapper.Unit {
		if u.When != "" {
			matched, err := evalCondition(u.When, env)
			if err != nil {
				return nil, fmt.Errorf("failed to evaluate `when` for unit %q: %w", u.Name, err)
			}
			if !matched {
				continue
			}
		}
		units = append(units, u)
	}

	return units, nil
}

// ParseConfigFromFile parses a manifest from a filepath
func ParseConfigFromFile(path string, env ConfigEnv) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ParseConfig(bufio.NewReader(f), env)
}
