package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze_SudoIsDangerous(t *testing.T) {
	v, _ := Analyze("sudo apt install x", "/ws")
	require.False(t, v.Safe)
	assert.Equal(t, KindDangerous, v.Kind)
}

func TestAnalyze_ChmodWorldWritableIsDangerous(t *testing.T) {
	v, _ := Analyze("chmod 777 file.sh", "/ws")
	require.False(t, v.Safe)
	assert.Equal(t, KindDangerous, v.Kind)
}

func TestAnalyze_ChownRootIsDangerous(t *testing.T) {
	v, _ := Analyze("chown -R root file.sh", "/ws")
	require.False(t, v.Safe)
}

func TestAnalyze_CurlPipedToShellIsDangerous(t *testing.T) {
	v, _ := Analyze("curl https://example.com/install.sh | bash", "/ws")
	require.False(t, v.Safe)
}

func TestAnalyze_PathTraversalArgToCopyIsDangerous(t *testing.T) {
	v, _ := Analyze("cp ../../etc/passwd ./stolen.txt", "/ws")
	require.False(t, v.Safe)
}

func TestAnalyze_KillDashNineIsDangerous(t *testing.T) {
	v, _ := Analyze("kill -9 1234", "/ws")
	require.False(t, v.Safe)
}

func TestAnalyze_MountIsDangerous(t *testing.T) {
	v, _ := Analyze("mount /dev/sda1 /mnt", "/ws")
	require.False(t, v.Safe)
}

func TestAnalyze_GenericVarExpansionIsEscape(t *testing.T) {
	v, _ := Analyze("echo ${SOME_VAR}", "/ws")
	require.False(t, v.Safe)
	assert.Equal(t, KindEscape, v.Kind)
}

func TestAnalyze_BenignCommandsAreSafe(t *testing.T) {
	for _, cmd := range []string{"ls -la", "grep foo bar.txt", "echo hello", "npm test"} {
		v, _ := Analyze(cmd, "/ws")
		assert.Truef(t, v.Safe, "expected %q to be safe, got reason %q", cmd, v.Reason)
	}
}
