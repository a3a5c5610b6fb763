package build

import (
	"path/filepath"

	"github.com/conneroisu/devloop/internal/config"
)

// Layout holds the absolute paths and package set one pipeline works on.
type Layout struct {
	Root        string
	BuildDir    string
	CratesDir   string
	StaticDir   string
	StylesPath  string
	Packages    []string
	Profile     string
	LinkedFiles []string
}

// LayoutFromConfig derives the pipeline layout from a resolved config.
func LayoutFromConfig(cfg *config.Config) Layout {
	return Layout{
		Root:        cfg.Project.Root,
		BuildDir:    cfg.BuildPath(),
		CratesDir:   cfg.CratesPath(),
		StaticDir:   cfg.StaticPath(),
		StylesPath:  cfg.StylesPath(),
		Packages:    append([]string(nil), cfg.Build.Packages...),
		Profile:     cfg.Build.Profile,
		LinkedFiles: append([]string(nil), cfg.Build.LinkedFiles...),
	}
}

// TargetDir is where cargo places compiled crates.
func (l Layout) TargetDir() string {
	return filepath.Join(l.BuildDir, "crates")
}

// ArtifactDir receives the generated JS bindings.
func (l Layout) ArtifactDir() string {
	return filepath.Join(l.BuildDir, "artifacts", l.Profile)
}

// DistDir is the served output directory.
func (l Layout) DistDir() string {
	return filepath.Join(l.BuildDir, "dist", l.Profile)
}

// WasmPath returns the compiled module of a package.
func (l Layout) WasmPath(pkg string) string {
	return filepath.Join(l.TargetDir(), "wasm32-unknown-unknown", l.Profile, pkg+".wasm")
}

// Entry is the package whose bindings start the bundle.
func (l Layout) Entry() string {
	if len(l.Packages) == 0 {
		return ""
	}
	return l.Packages[0]
}

func (l Layout) fetchStep() Step {
	return Step{
		Stage:   "fetch",
		Program: "npm",
		Args:    []string{"install"},
		Dir:     l.BuildDir,
		Quiet:   true,
	}
}

func (l Layout) compileStep() Step {
	args := []string{"build"}
	for _, pkg := range l.Packages {
		args = append(args, "--package", pkg)
	}
	if l.Profile == "release" {
		args = append(args, "--release")
	}
	return Step{
		Stage:   "compile",
		Program: "cargo",
		Args:    args,
		Dir:     l.CratesDir,
		Env:     []string{"CARGO_TARGET_DIR=" + l.TargetDir()},
	}
}

func (l Layout) bindgenStep(pkg string) Step {
	return Step{
		Stage:   "bindgen:" + pkg,
		Program: "wasm-bindgen",
		Args: []string{
			"--reference-types",
			"--no-typescript",
			"--out-dir", l.ArtifactDir(),
			l.WasmPath(pkg),
		},
		Dir: l.Root,
	}
}

func (l Layout) bundleStep() Step {
	mode := "development"
	if l.Profile == "release" {
		mode = "production"
	}
	entry, _ := filepath.Rel(l.BuildDir, filepath.Join(l.ArtifactDir(), l.Entry()+".js"))
	output, _ := filepath.Rel(l.BuildDir, l.DistDir())
	return Step{
		Stage:   "bundle",
		Program: "npx",
		Args: []string{
			"rspack", "build",
			"--entry", entry,
			"--output-path", output,
			"--mode", mode,
		},
		Dir: l.BuildDir,
	}
}

func (l Layout) stylesStep() Step {
	return Step{
		Stage:   "styles",
		Program: "npx",
		Args: []string{
			"node-sass",
			"--omit-source-map-url",
			l.StylesPath,
			filepath.Join(l.DistDir(), "styles.css"),
		},
		Dir: l.BuildDir,
	}
}
