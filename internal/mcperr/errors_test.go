// ABOUTME: Tests for the error taxonomy types.
// ABOUTME: Covers code validity, error strings, and unwrapping.

package mcperr

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeValid(t *testing.T) {
	for _, c := range Codes {
		assert.True(t, c.Valid(), "code %s", c)
	}
	assert.False(t, Code("TEAPOT").Valid())
	assert.Len(t, Codes, 13)
}

func TestExecutionErrorUnwraps(t *testing.T) {
	err := &ExecutionError{Op: "reading document", Err: fs.ErrNotExist}

	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.Equal(t, "reading document: file does not exist", err.Error())
}

func TestConfigurationErrorUnwraps(t *testing.T) {
	inner := errors.New("boom")
	err := &ConfigurationError{Reason: "loading keys", Err: inner}

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "loading keys")
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&AuthenticationError{}, "authentication failed"},
		{&AuthorizationError{ClientID: "c1", RequiredPermission: "tool:echo:execute"}, `client "c1" lacks permission "tool:echo:execute"`},
		{&ComponentNotFoundError{Name: "x"}, `component "x" not found`},
		{&ComponentNotFoundError{Name: "x", NotInitialized: true}, `component "x" is not initialized`},
		{&ToolNotFoundError{Name: "missing"}, `tool "missing" not found`},
		{&ResourceNotFoundError{Name: "docs", ID: "a.md"}, `resource "docs" has no entry "a.md"`},
		{InvalidParameter("path", "required"), `invalid parameter "path": required`},
		{Configuration("duplicate %s", "key"), "configuration error: duplicate key"},
		{&MissingDependencyError{Dependency: "llm"}, `missing dependency "llm"`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Error())
	}
}

func TestWireErrorImplementsError(t *testing.T) {
	var err error = &Error{Code: CodeToolNotFound, Message: "tool not found"}
	assert.Equal(t, "TOOL_NOT_FOUND: tool not found", err.Error())
}

func TestClassified(t *testing.T) {
	assert.True(t, Classified(fmt.Errorf("wrapped: %w", &ToolNotFoundError{Name: "x"})))
	assert.True(t, Classified(InvalidParameter("limit", "negative")))
	assert.True(t, Classified(fmt.Errorf("export: %w", ErrNotImplemented)))
	assert.False(t, Classified(errors.New("plain")))
	assert.False(t, Classified(nil))
}
