// Package validation provides checks applied to configuration values and
// build step invocations before they reach the operating system.
package validation

import (
	"fmt"
	"path/filepath"
	"strings"
)

var shellMetacharacters = []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\n", "\r"}

// ValidateArgument rejects shell metacharacters in a command line argument.
// Steps are executed without a shell, so this guards configuration values
// that end up in argument lists rather than the arguments devloop builds.
func ValidateArgument(arg string) error {
	for _, char := range shellMetacharacters {
		if strings.Contains(arg, char) {
			return fmt.Errorf("contains dangerous character: %q", char)
		}
	}
	return nil
}

// ValidateCommand validates a program name against an allowlist.
func ValidateCommand(command string, allowedCommands map[string]bool) error {
	if command == "" {
		return fmt.Errorf("command cannot be empty")
	}

	if !allowedCommands[filepath.Base(command)] {
		return fmt.Errorf("command '%s' is not allowed", command)
	}

	if err := ValidateArgument(command); err != nil {
		return fmt.Errorf("invalid command '%s': %w", command, err)
	}

	return nil
}

// ValidateRelativePath validates a project-relative path from configuration.
// Absolute paths are accepted as-is; relative paths may not escape the
// project root.
func ValidateRelativePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	if err := ValidateArgument(path); err != nil {
		return err
	}

	if filepath.IsAbs(path) {
		return nil
	}

	cleanPath := filepath.Clean(path)
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path escapes project root: %s", path)
	}

	return nil
}

// ValidateName validates a bare identifier such as a cargo package name.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if strings.ContainsAny(name, `/\ `) {
		return fmt.Errorf("name contains a separator: %s", name)
	}
	return ValidateArgument(name)
}
