package build

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// prepareBuildDir creates the build directory and links the shared project
// files into it. Existing entries are left untouched.
func prepareBuildDir(l Layout) error {
	if err := os.MkdirAll(l.BuildDir, 0o755); err != nil {
		return fmt.Errorf("create build dir: %w", err)
	}

	for _, name := range l.LinkedFiles {
		link := filepath.Join(l.BuildDir, name)
		if _, err := os.Lstat(link); err == nil {
			continue
		}
		target, err := filepath.Rel(l.BuildDir, filepath.Join(l.Root, name))
		if err != nil {
			target = filepath.Join(l.Root, name)
		}
		if err := os.Symlink(target, link); err != nil {
			return fmt.Errorf("link %s: %w", name, err)
		}
	}
	return nil
}

// resetDir removes dir and everything under it, then recreates it empty.
func resetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}

// copyTree merges src into dst, overwriting files that already exist.
// Symlinks are followed; links to directories are skipped.
func copyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", src)
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}

		fi, err := os.Stat(path)
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return nil
		}
		return copyFile(path, target, fi.Mode().Perm())
	})
}

func copyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
