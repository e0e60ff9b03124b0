package remoteexec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aspects-ai/constellationfs/internal/constellation/execapi"
)

func TestBuildRemoteCommand_PrefixesCdAndSortsEnv(t *testing.T) {
	cmd := buildRemoteCommand("/ws/alice", "ls -la", map[string]string{"B": "2", "A": "1"})
	assert.Equal(t, `A='1' B='2' cd '/ws/alice' && ls -la`, cmd)
}

func TestBuildRemoteCommand_DropsBlocklistedKeys(t *testing.T) {
	cmd := buildRemoteCommand("/ws", "echo hi", map[string]string{"LD_PRELOAD": "/evil.so"})
	assert.Equal(t, `cd '/ws' && echo hi`, cmd)
}

func TestBuildRemoteCommand_NoEnv(t *testing.T) {
	cmd := buildRemoteCommand("/ws", "pwd", nil)
	assert.Equal(t, `cd '/ws' && pwd`, cmd)
}

func TestCheckEscape_RejectsEmptyPath(t *testing.T) {
	require.Error(t, checkEscape("/ws", ""))
}

func TestCheckEscape_RejectsDotDot(t *testing.T) {
	require.Error(t, checkEscape("/ws", "../escape.txt"))
}

func TestCheckEscape_AllowsRelativePath(t *testing.T) {
	require.NoError(t, checkEscape("/ws", "a/b.txt"))
}

func TestParseStatLine_File(t *testing.T) {
	st, err := parseStatLine("regular file|123|1700000000", "f.txt")
	require.NoError(t, err)
	assert.Equal(t, execapi.KindFile, st.Kind)
	assert.Equal(t, int64(123), st.Size)
}

func TestParseStatLine_Directory(t *testing.T) {
	st, err := parseStatLine("directory|4096|1700000000", "sub")
	require.NoError(t, err)
	assert.Equal(t, execapi.KindDirectory, st.Kind)
}

func TestParseStatLine_Symlink(t *testing.T) {
	st, err := parseStatLine("symbolic link|7|1700000000", "link")
	require.NoError(t, err)
	assert.Equal(t, execapi.KindSymlink, st.Kind)
}

func TestParseStatLine_MalformedInputErrors(t *testing.T) {
	_, err := parseStatLine("not enough fields", "x")
	require.Error(t, err)
}

func TestRemoteJoin(t *testing.T) {
	assert.Equal(t, "/ws/a/b.txt", remoteJoin("/ws", "a/b.txt"))
	assert.Equal(t, "/ws", remoteJoin("/ws", "."))
	assert.Equal(t, "/ws", remoteJoin("/ws", ""))
	assert.Equal(t, "/ws/b.txt", remoteJoin("/ws/", "/b.txt"))
}

func TestParentDir(t *testing.T) {
	assert.Equal(t, "/ws/a", parentDir("/ws/a/b.txt"))
	assert.Equal(t, "/", parentDir("/b.txt"))
}
