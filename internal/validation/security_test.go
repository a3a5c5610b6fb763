package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateArgument(t *testing.T) {
	tests := []struct {
		name    string
		arg     string
		wantErr bool
	}{
		{"plain flag", "--reference-types", false},
		{"relative path", "./crates", false},
		{"absolute path", "/tmp/build/dist/debug", false},
		{"semicolon", "install; rm -rf /", true},
		{"pipe", "install | cat", true},
		{"backtick", "build`whoami`", true},
		{"subshell", "$(id)", true},
		{"newline", "a\nb", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateArgument(tt.arg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateCommand(t *testing.T) {
	allowed := map[string]bool{"npm": true, "cargo": true}

	assert.NoError(t, ValidateCommand("npm", allowed))
	assert.NoError(t, ValidateCommand("/usr/local/bin/cargo", allowed))
	assert.Error(t, ValidateCommand("", allowed))
	assert.Error(t, ValidateCommand("rm", allowed))
	assert.Error(t, ValidateCommand("npm;", allowed))
}

func TestValidateRelativePath(t *testing.T) {
	tests := []struct {
		path    string
		wantErr bool
	}{
		{"build", false},
		{"./static", false},
		{"crates/frontend", false},
		{"/abs/elsewhere", false},
		{"a/../b", false},
		{"..", true},
		{"../outside", true},
		{"", true},
		{"build;ls", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			err := ValidateRelativePath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, ValidateName("frontend"))
	assert.NoError(t, ValidateName("my-crate_2"))
	assert.Error(t, ValidateName(""))
	assert.Error(t, ValidateName("crates/frontend"))
	assert.Error(t, ValidateName("two words"))
	assert.Error(t, ValidateName("x&y"))
}
