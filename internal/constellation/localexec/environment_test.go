package localexec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectShell_ReturnsBashOrSh(t *testing.T) {
	shell := DetectShell()
	assert.Contains(t, []string{"bash", "sh"}, shell)
}

func TestBaseEnvironment_PinsHomeAndPwd(t *testing.T) {
	env := BaseEnvironment("/workspace/alice", "bash")
	assert.Equal(t, "/workspace/alice", env["HOME"])
	assert.Equal(t, "/workspace/alice", env["PWD"])
	assert.Equal(t, "bash", env["SHELL"])
	assert.Equal(t, "/workspace/alice/.tmp", env["TMPDIR"])
}

func TestMergeCustomEnv_DropsBlocklistedKeys(t *testing.T) {
	base := BaseEnvironment("/ws", "bash")
	merged, _, err := MergeCustomEnv(base, map[string]string{"LD_PRELOAD": "/evil.so", "FOO": "bar"})
	require.NoError(t, err)
	_, present := merged["LD_PRELOAD"]
	assert.False(t, present)
	assert.Equal(t, "bar", merged["FOO"])
}

func TestMergeCustomEnv_RejectsNulByte(t *testing.T) {
	base := BaseEnvironment("/ws", "bash")
	_, _, err := MergeCustomEnv(base, map[string]string{"FOO": "bad\x00value"})
	require.Error(t, err)
}

func TestMergeCustomEnv_RejectsNewlineAndSemicolon(t *testing.T) {
	base := BaseEnvironment("/ws", "bash")
	_, _, err := MergeCustomEnv(base, map[string]string{"FOO": "line1\nline2"})
	require.Error(t, err)

	_, _, err = MergeCustomEnv(base, map[string]string{"FOO": "a;b"})
	require.Error(t, err)
}

func TestMergeCustomEnv_ReportsOverriddenProtectedKeys(t *testing.T) {
	base := BaseEnvironment("/ws", "bash")
	_, overridden, err := MergeCustomEnv(base, map[string]string{"HOME": "/somewhere/else"})
	require.NoError(t, err)
	assert.Contains(t, overridden, "HOME")
}

func TestMergeCustomEnv_DoesNotReportUnprotectedOverrides(t *testing.T) {
	base := BaseEnvironment("/ws", "bash")
	_, overridden, err := MergeCustomEnv(base, map[string]string{"FOO": "bar"})
	require.NoError(t, err)
	assert.NotContains(t, overridden, "FOO")
}
