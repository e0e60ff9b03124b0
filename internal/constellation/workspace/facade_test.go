package workspace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aspects-ai/constellationfs/internal/constellation/execapi"
)

type fakeExecutor struct {
	execCommand string
	execEnv     map[string]string
	files       map[string][]byte
	entries     []execapi.Entry
	deleted     bool
	existsPaths map[string]bool
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{files: map[string][]byte{}, existsPaths: map[string]bool{}}
}

func (f *fakeExecutor) Exec(_ context.Context, _, command string, _ execapi.Encoding, customEnv map[string]string, _ execapi.DangerousOpHandler) (string, []byte, error) {
	f.execCommand = command
	f.execEnv = customEnv
	return "ok", nil, nil
}

func (f *fakeExecutor) ReadFile(_ context.Context, _, relPath string, encoding execapi.Encoding) (string, []byte, error) {
	data, ok := f.files[relPath]
	if !ok {
		return "", nil, assertNotFound(relPath)
	}
	if encoding == execapi.Buffer {
		return "", data, nil
	}
	return string(data), nil, nil
}

func (f *fakeExecutor) WriteFile(_ context.Context, _, relPath string, content []byte) error {
	f.files[relPath] = content
	return nil
}

func (f *fakeExecutor) Mkdir(_ context.Context, _, _ string, _ bool) error { return nil }
func (f *fakeExecutor) Touch(_ context.Context, _, relPath string) error {
	if _, ok := f.files[relPath]; !ok {
		f.files[relPath] = []byte{}
	}
	return nil
}

func (f *fakeExecutor) Stat(_ context.Context, _, relPath string) (execapi.Stat, error) {
	data, ok := f.files[relPath]
	if !ok {
		return execapi.Stat{}, assertNotFound(relPath)
	}
	return execapi.Stat{Kind: execapi.KindFile, Size: int64(len(data))}, nil
}

func (f *fakeExecutor) ListDir(_ context.Context, _, _ string) ([]execapi.Entry, error) {
	return f.entries, nil
}

func (f *fakeExecutor) Exists(_ context.Context, _, relPath string) (bool, error) {
	if relPath == "." {
		return true, nil
	}
	return f.existsPaths[relPath], nil
}

func (f *fakeExecutor) DeleteTree(_ context.Context, _ string) error {
	f.deleted = true
	return nil
}

func assertNotFound(relPath string) error {
	return &notFoundError{path: relPath}
}

type notFoundError struct{ path string }

func (e *notFoundError) Error() string { return "not found: " + e.path }

func TestFacade_ExecForwardsEnvConfig(t *testing.T) {
	fe := newFakeExecutor()
	env := map[string]string{"FOO": "bar"}
	f := New("/ws/alice/scratch", "scratch", env, fe, nil)

	out, _, err := f.Exec(context.Background(), "echo hi", execapi.UTF8, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, "echo hi", fe.execCommand)
	assert.Equal(t, env, fe.execEnv)
}

func TestFacade_WriteThenRead(t *testing.T) {
	fe := newFakeExecutor()
	f := New("/ws/alice/scratch", "scratch", nil, fe, nil)
	ctx := context.Background()

	require.NoError(t, f.Write(ctx, "a.txt", "hello"))
	text, err := f.Read(ctx, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestFacade_Ls_FiltersByPatternAndSorts(t *testing.T) {
	fe := newFakeExecutor()
	fe.entries = []execapi.Entry{
		{Name: "b.txt", Kind: execapi.KindFile},
		{Name: "a.txt", Kind: execapi.KindFile},
		{Name: "readme.md", Kind: execapi.KindFile},
	}
	f := New("/ws", "scratch", nil, fe, nil)

	names, _, err := f.Ls(context.Background(), ".", "*.txt", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, names)
}

func TestFacade_Ls_DetailsReturnsEntries(t *testing.T) {
	fe := newFakeExecutor()
	fe.entries = []execapi.Entry{{Name: "a.txt", Kind: execapi.KindFile}}
	f := New("/ws", "scratch", nil, fe, nil)

	names, entries, err := f.Ls(context.Background(), ".", "", true)
	require.NoError(t, err)
	assert.Nil(t, names)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.txt", entries[0].Name)
}

func TestFacade_List_IsAliasForLsNoPattern(t *testing.T) {
	fe := newFakeExecutor()
	fe.entries = []execapi.Entry{{Name: "x.txt", Kind: execapi.KindFile}}
	f := New("/ws", "scratch", nil, fe, nil)

	names, err := f.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"x.txt"}, names)
}

func TestFacade_Exists_AlwaysTrueForWorkspaceRoot(t *testing.T) {
	fe := newFakeExecutor()
	f := New("/ws", "scratch", nil, fe, nil)

	ok, err := f.Exists(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFacade_FileExists(t *testing.T) {
	fe := newFakeExecutor()
	fe.existsPaths["present.txt"] = true
	f := New("/ws", "scratch", nil, fe, nil)
	ctx := context.Background()

	ok, err := f.FileExists(ctx, "present.txt")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.FileExists(ctx, "missing.txt")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFacade_Delete_ForwardsToDeleteTree(t *testing.T) {
	fe := newFakeExecutor()
	f := New("/ws", "scratch", nil, fe, nil)

	require.NoError(t, f.Delete(context.Background()))
	assert.True(t, fe.deleted)
}

func TestFacade_Move_ShellQuotesBothPaths(t *testing.T) {
	fe := newFakeExecutor()
	f := New("/ws", "scratch", nil, fe, nil)

	require.NoError(t, f.Move(context.Background(), "it's.txt", "dest.txt"))
	assert.Equal(t, `mv 'it'\''s.txt' 'dest.txt'`, fe.execCommand)
}

func TestFacade_NameAndPath(t *testing.T) {
	fe := newFakeExecutor()
	f := New("/ws/alice/scratch", "scratch", nil, fe, nil)
	assert.Equal(t, "scratch", f.Name())
	assert.Equal(t, "/ws/alice/scratch", f.Path())
}
