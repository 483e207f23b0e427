package detect

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/toolkit-labs/toolkit/internal/layout"
)

// stackIndicator lists the files and glob patterns whose presence marks
// a stack. Globs are checked at the top level and one directory deep.
type stackIndicator struct {
	files []string
	globs []string
}

var stackIndicators = map[string]stackIndicator{
	"python": {
		files: []string{"pyproject.toml", "requirements.txt", "setup.py", "setup.cfg"},
		globs: []string{"*.py"},
	},
	"typescript": {
		files: []string{"tsconfig.json"},
		globs: []string{"*.ts", "*.tsx"},
	},
	"ios": {
		files: []string{"Package.swift"},
		globs: []string{"*.xcodeproj", "*.swift"},
	},
}

var sourceDirCandidates = []string{"src", "app", "lib", "packages"}

// First match wins.
var versionFilePrecedence = []string{"package.json", "pyproject.toml", "VERSION"}

type toolSpec struct {
	exe         string
	args        string
	checkArgs   string
	versionFlag string
}

var lintTools = map[string][]toolSpec{
	"python":     {{exe: "ruff", args: "check", versionFlag: "--version"}},
	"typescript": {{exe: "eslint", versionFlag: "--version"}},
	"ios":        {{exe: "swiftlint", versionFlag: "version"}},
}

var formatTools = map[string][]toolSpec{
	"python":     {{exe: "ruff", args: "format", checkArgs: "format --check .", versionFlag: "--version"}},
	"typescript": {{exe: "prettier", args: "--write", checkArgs: "--check .", versionFlag: "--version"}},
	"ios":        {{exe: "swiftformat", checkArgs: "--dryrun .", versionFlag: "--version"}},
}

var sourceExtensions = map[string][]string{
	"python":     {"*.py"},
	"typescript": {"*.ts", "*.tsx", "*.js", "*.jsx"},
	"ios":        {"*.swift"},
}

// CommandInfo describes a detected tool invocation for one stack.
type CommandInfo struct {
	Cmd       string `json:"cmd"`
	CheckCmd  string `json:"check_cmd,omitempty"`
	Available bool   `json:"available"`
}

// TestInfo describes the chosen test command and where it came from.
type TestInfo struct {
	Cmd    string `json:"cmd"`
	Source string `json:"source"`
}

// ToolkitState reports how much of the toolkit is installed in the
// project's assistant directory.
type ToolkitState struct {
	SubtreeExists     bool     `json:"subtree_exists"`
	TomlExists        bool     `json:"toml_exists"`
	TomlIsExample     bool     `json:"toml_is_example"`
	SettingsGenerated bool     `json:"settings_generated"`
	MissingSkills     []string `json:"missing_skills"`
	MissingAgents     []string `json:"missing_agents"`
	BrokenSymlinks    []string `json:"broken_symlinks"`
}

// Validation records the outcome of actually running one detected
// command.
type Validation struct {
	Type       string `json:"type"`
	Stack      string `json:"stack,omitempty"`
	Cmd        string `json:"cmd"`
	Passed     bool   `json:"passed"`
	ReturnCode *int   `json:"returncode,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Report is the full detection result.
type Report struct {
	Name             string                 `json:"name"`
	Stacks           []string               `json:"stacks"`
	VersionFile      string                 `json:"version_file"`
	SourceDirs       []string               `json:"source_dirs"`
	SourceExtensions []string               `json:"source_extensions"`
	Lint             map[string]CommandInfo `json:"lint"`
	Test             TestInfo               `json:"test"`
	Format           map[string]CommandInfo `json:"format"`
	MakefileTargets  []string               `json:"makefile_targets"`
	PackageScripts   []string               `json:"package_scripts"`
	ToolkitState     ToolkitState           `json:"toolkit_state"`
	Validations      []Validation           `json:"validations,omitempty"`
}

// JSON renders the report with two-space indentation.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Options controls a detection run.
type Options struct {
	// Validate runs each detected command and records pass/fail.
	Validate bool
}

const (
	probeTimeout    = 10 * time.Second
	validateTimeout = 60 * time.Second
)

// Run scans dir and assembles the detection report. Tool probing and
// command validation are bounded by ctx in addition to their own
// per-command timeouts.
func Run(ctx context.Context, dir string, opts Options) (*Report, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, &NotADirectoryError{Path: dir}
	}

	stacks := detectStacks(dir)
	r := &Report{
		Name:             detectName(ctx, dir),
		Stacks:           stacks,
		VersionFile:      detectVersionFile(dir),
		SourceDirs:       detectSourceDirs(dir),
		SourceExtensions: detectSourceExtensions(stacks),
		Lint:             detectLint(ctx, dir, stacks),
		Format:           detectFormat(ctx, dir, stacks),
		ToolkitState:     detectToolkitState(dir),
	}

	makeTargets := parseMakefileTargets(dir)
	pkgScripts := parsePackageScripts(dir)
	r.MakefileTargets = makeTargets
	r.PackageScripts = pkgScripts
	r.Test = chooseTestCommand(makeTargets, pkgScripts)

	if opts.Validate {
		r.Validations = validateCommands(ctx, dir, r)
	}
	return r, nil
}

// NotADirectoryError is returned when the scan target does not exist or
// is not a directory.
type NotADirectoryError struct {
	Path string
}

func (e *NotADirectoryError) Error() string {
	return "not a directory: " + e.Path
}

func detectStacks(dir string) []string {
	stacks := []string{}
	for name, ind := range stackIndicators {
		if stackPresent(dir, ind) {
			stacks = append(stacks, name)
		}
	}
	sort.Strings(stacks)
	return stacks
}

func stackPresent(dir string, ind stackIndicator) bool {
	for _, f := range ind.files {
		if _, err := os.Stat(filepath.Join(dir, f)); err == nil {
			return true
		}
	}
	for _, pattern := range ind.globs {
		if matches, _ := filepath.Glob(filepath.Join(dir, pattern)); len(matches) > 0 {
			return true
		}
		if matches, _ := filepath.Glob(filepath.Join(dir, "*", pattern)); len(matches) > 0 {
			return true
		}
	}
	return false
}

// detectName uses the git toplevel basename when dir is inside a
// repository, falling back to the directory's own name.
func detectName(ctx context.Context, dir string) string {
	cctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	cmd := exec.CommandContext(cctx, "git", "rev-parse", "--show-toplevel")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err == nil {
		if top := strings.TrimSpace(string(out)); top != "" {
			return filepath.Base(top)
		}
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return filepath.Base(dir)
	}
	return filepath.Base(abs)
}

func detectVersionFile(dir string) string {
	for _, f := range versionFilePrecedence {
		if _, err := os.Stat(filepath.Join(dir, f)); err == nil {
			return f
		}
	}
	return ""
}

func detectSourceDirs(dir string) []string {
	found := []string{}
	for _, candidate := range sourceDirCandidates {
		if info, err := os.Stat(filepath.Join(dir, candidate)); err == nil && info.IsDir() {
			found = append(found, candidate)
		}
	}
	return found
}

func detectSourceExtensions(stacks []string) []string {
	exts := []string{}
	seen := map[string]bool{}
	for _, stack := range stacks {
		for _, ext := range sourceExtensions[stack] {
			if !seen[ext] {
				seen[ext] = true
				exts = append(exts, ext)
			}
		}
	}
	return exts
}

// probeExecutable reports whether exe is on PATH and answers its
// version flag with a zero exit code.
func probeExecutable(ctx context.Context, dir string, spec toolSpec) bool {
	if _, err := exec.LookPath(spec.exe); err != nil {
		return false
	}
	cctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	cmd := exec.CommandContext(cctx, spec.exe, spec.versionFlag)
	cmd.Dir = dir
	return cmd.Run() == nil
}

func detectLint(ctx context.Context, dir string, stacks []string) map[string]CommandInfo {
	lint := map[string]CommandInfo{}
	for _, stack := range stacks {
		lint[stack] = CommandInfo{}
		for _, spec := range lintTools[stack] {
			if probeExecutable(ctx, dir, spec) {
				lint[stack] = CommandInfo{
					Cmd:       strings.TrimSpace(spec.exe + " " + spec.args),
					Available: true,
				}
				break
			}
		}
	}
	return lint
}

func detectFormat(ctx context.Context, dir string, stacks []string) map[string]CommandInfo {
	format := map[string]CommandInfo{}
	for _, stack := range stacks {
		format[stack] = CommandInfo{}
		for _, spec := range formatTools[stack] {
			if probeExecutable(ctx, dir, spec) {
				info := CommandInfo{
					Cmd:       strings.TrimSpace(spec.exe + " " + spec.args),
					Available: true,
				}
				if spec.checkArgs != "" {
					info.CheckCmd = strings.TrimSpace(spec.exe + " " + spec.checkArgs)
				}
				format[stack] = info
				break
			}
		}
	}
	return format
}

// makefileTargetPattern matches target definitions at the start of a
// line, excluding dot-prefixed internal targets and tab-indented
// recipe lines.
var makefileTargetPattern = regexp.MustCompile(`^([a-zA-Z_][a-zA-Z0-9_-]*)\s*:`)

func parseMakefileTargets(dir string) []string {
	content, err := os.ReadFile(filepath.Join(dir, "Makefile"))
	if err != nil {
		return []string{}
	}
	targets := []string{}
	for _, line := range strings.Split(string(content), "\n") {
		if m := makefileTargetPattern.FindStringSubmatch(line); m != nil {
			targets = append(targets, m[1])
		}
	}
	return targets
}

func parsePackageScripts(dir string) []string {
	content, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return []string{}
	}
	var pkg struct {
		Scripts map[string]any `json:"scripts"`
	}
	if err := json.Unmarshal(content, &pkg); err != nil {
		return []string{}
	}
	scripts := make([]string, 0, len(pkg.Scripts))
	for name := range pkg.Scripts {
		scripts = append(scripts, name)
	}
	sort.Strings(scripts)
	return scripts
}

// chooseTestCommand prefers Makefile test targets, then package.json
// test scripts, then a pytest executable on PATH.
func chooseTestCommand(makeTargets, pkgScripts []string) TestInfo {
	testTargets := filterTest(makeTargets)
	if len(testTargets) > 0 {
		if contains(testTargets, "test") {
			return TestInfo{Cmd: "make test", Source: "makefile"}
		}
		return TestInfo{Cmd: "make " + testTargets[0], Source: "makefile"}
	}
	testScripts := filterTest(pkgScripts)
	if len(testScripts) > 0 {
		if contains(testScripts, "test") {
			return TestInfo{Cmd: "npm test", Source: "package.json"}
		}
		return TestInfo{Cmd: "npm run " + testScripts[0], Source: "package.json"}
	}
	if _, err := exec.LookPath("pytest"); err == nil {
		return TestInfo{Cmd: "pytest", Source: "executable"}
	}
	return TestInfo{}
}

func filterTest(names []string) []string {
	out := []string{}
	for _, n := range names {
		if strings.Contains(strings.ToLower(n), "test") {
			out = append(out, n)
		}
	}
	return out
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

func detectToolkitState(dir string) ToolkitState {
	l := layout.Layout{Root: dir}
	assistantDir := l.AssistantDir()
	toolkitDir := l.ToolkitDir()

	state := ToolkitState{
		SubtreeExists:     isDir(toolkitDir),
		TomlExists:        isFile(l.TomlPath()),
		SettingsGenerated: isFile(l.SettingsPath()),
		MissingSkills:     []string{},
		MissingAgents:     []string{},
		BrokenSymlinks:    []string{},
	}

	examplePath := filepath.Join(toolkitDir, "templates", layout.TomlFileName+".example")
	if isFile(l.TomlPath()) && isFile(examplePath) {
		tomlContent, err1 := os.ReadFile(l.TomlPath())
		exampleContent, err2 := os.ReadFile(examplePath)
		if err1 == nil && err2 == nil {
			state.TomlIsExample = strings.TrimSpace(string(tomlContent)) == strings.TrimSpace(string(exampleContent))
		}
	}

	if state.SubtreeExists {
		state.MissingSkills = missingEntries(
			filepath.Join(toolkitDir, layout.SkillsDir),
			filepath.Join(assistantDir, layout.SkillsDir),
			true)
		state.MissingAgents = missingEntries(
			filepath.Join(toolkitDir, layout.AgentsDir),
			filepath.Join(assistantDir, layout.AgentsDir),
			false)
	}

	if isDir(assistantDir) {
		state.BrokenSymlinks = brokenSymlinks(assistantDir)
	}
	return state
}

// missingEntries lists names present under src but absent under dst.
// Skills are directories; agents are .md files.
func missingEntries(src, dst string, dirs bool) []string {
	missing := []string{}
	entries, err := os.ReadDir(src)
	if err != nil {
		return missing
	}
	for _, e := range entries {
		if dirs && !e.IsDir() {
			continue
		}
		if !dirs && (e.IsDir() || !strings.HasSuffix(e.Name(), ".md")) {
			continue
		}
		if _, err := os.Stat(filepath.Join(dst, e.Name())); err != nil {
			missing = append(missing, e.Name())
		}
	}
	sort.Strings(missing)
	return missing
}

// brokenSymlinks walks root and reports symlinks whose targets do not
// resolve, as paths relative to root.
func brokenSymlinks(root string) []string {
	broken := []string{}
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.Type()&fs.ModeSymlink == 0 {
			return nil
		}
		if _, statErr := os.Stat(path); statErr != nil {
			if rel, relErr := filepath.Rel(root, path); relErr == nil {
				broken = append(broken, rel)
			}
		}
		return nil
	})
	sort.Strings(broken)
	return broken
}

func validateCommands(ctx context.Context, dir string, r *Report) []Validation {
	validations := []Validation{}
	for _, stack := range sortedMapKeys(r.Lint) {
		if cmd := r.Lint[stack].Cmd; cmd != "" {
			v := runCommand(ctx, dir, cmd)
			v.Type = "lint"
			v.Stack = stack
			validations = append(validations, v)
		}
	}
	if r.Test.Cmd != "" {
		v := runCommand(ctx, dir, r.Test.Cmd)
		v.Type = "test"
		validations = append(validations, v)
	}
	for _, stack := range sortedMapKeys(r.Format) {
		info := r.Format[stack]
		switch {
		case info.CheckCmd != "":
			v := runCommand(ctx, dir, info.CheckCmd)
			v.Type = "format"
			v.Stack = stack
			validations = append(validations, v)
		case info.Cmd != "":
			v := Validation{Type: "format", Stack: stack, Cmd: info.Cmd}
			exe := strings.Fields(info.Cmd)[0]
			if _, err := exec.LookPath(exe); err == nil {
				v.Passed = true
			} else {
				v.Error = "executable not found"
			}
			validations = append(validations, v)
		}
	}
	return validations
}

// runCommand executes cmd through the shell so pipes and quoting from
// Makefile recipes and package scripts work.
func runCommand(ctx context.Context, dir, cmdStr string) Validation {
	cctx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()
	cmd := exec.CommandContext(cctx, "sh", "-c", cmdStr)
	cmd.Dir = dir
	err := cmd.Run()
	if cctx.Err() == context.DeadlineExceeded {
		return Validation{Cmd: cmdStr, Error: "timeout"}
	}
	if err == nil {
		code := 0
		return Validation{Cmd: cmdStr, Passed: true, ReturnCode: &code}
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		code := exitErr.ExitCode()
		return Validation{Cmd: cmdStr, ReturnCode: &code}
	}
	return Validation{Cmd: cmdStr, Error: err.Error()}
}

func sortedMapKeys(m map[string]CommandInfo) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
