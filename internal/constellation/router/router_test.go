package router

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aspects-ai/constellationfs/internal/constellation/execapi"
)

type fakeExecutor struct {
	execCalls  []string
	mkdirCalls []string
	statErr    error
}

func (f *fakeExecutor) Exec(_ context.Context, _, command string, _ execapi.Encoding, _ map[string]string, _ execapi.DangerousOpHandler) (string, []byte, error) {
	f.execCalls = append(f.execCalls, command)
	return "", nil, nil
}
func (f *fakeExecutor) ReadFile(_ context.Context, _, _ string, _ execapi.Encoding) (string, []byte, error) {
	return "", nil, nil
}
func (f *fakeExecutor) WriteFile(_ context.Context, _, _ string, _ []byte) error { return nil }
func (f *fakeExecutor) Mkdir(_ context.Context, _, relPath string, _ bool) error {
	f.mkdirCalls = append(f.mkdirCalls, relPath)
	return nil
}
func (f *fakeExecutor) Touch(_ context.Context, _, _ string) error { return nil }
func (f *fakeExecutor) Stat(_ context.Context, _, _ string) (execapi.Stat, error) {
	if f.statErr != nil {
		return execapi.Stat{}, f.statErr
	}
	return execapi.Stat{Kind: execapi.KindDirectory}, nil
}
func (f *fakeExecutor) ListDir(_ context.Context, _, _ string) ([]execapi.Entry, error) { return nil, nil }
func (f *fakeExecutor) Exists(_ context.Context, _, _ string) (bool, error)             { return true, nil }
func (f *fakeExecutor) DeleteTree(_ context.Context, _ string) error                    { return nil }

func TestNew_RejectsInvalidUserID(t *testing.T) {
	_, err := New(KindLocal, &fakeExecutor{}, t.TempDir(), "app", "bad user", nil, nil)
	require.Error(t, err)
}

func TestGetWorkspace_CreatesDirectoryForLocalBackend(t *testing.T) {
	root := t.TempDir()
	rt, err := New(KindLocal, &fakeExecutor{}, root, "app", "alice", nil, nil)
	require.NoError(t, err)

	f, err := rt.GetWorkspace(context.Background(), "scratch", nil)
	require.NoError(t, err)
	assert.Equal(t, "scratch", f.Name())

	info, err := os.Stat(filepath.Join(root, "app", "alice", "scratch"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestGetWorkspace_DefaultsNameWhenEmpty(t *testing.T) {
	root := t.TempDir()
	rt, err := New(KindLocal, &fakeExecutor{}, root, "app", "alice", nil, nil)
	require.NoError(t, err)

	f, err := rt.GetWorkspace(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, "default", f.Name())
}

func TestGetWorkspace_RejectsInvalidWorkspaceName(t *testing.T) {
	root := t.TempDir()
	rt, err := New(KindLocal, &fakeExecutor{}, root, "app", "alice", nil, nil)
	require.NoError(t, err)

	_, err = rt.GetWorkspace(context.Background(), "../escape", nil)
	require.Error(t, err)
}

func TestGetWorkspace_CachesByNameAndEnvConfig(t *testing.T) {
	root := t.TempDir()
	rt, err := New(KindLocal, &fakeExecutor{}, root, "app", "alice", nil, nil)
	require.NoError(t, err)
	ctx := context.Background()

	f1, err := rt.GetWorkspace(ctx, "scratch", nil)
	require.NoError(t, err)
	f2, err := rt.GetWorkspace(ctx, "scratch", nil)
	require.NoError(t, err)
	assert.Same(t, f1, f2)

	f3, err := rt.GetWorkspace(ctx, "scratch", map[string]string{"FOO": "bar"})
	require.NoError(t, err)
	assert.NotSame(t, f1, f3)
}

func TestGetWorkspace_RemoteBackendUsesExecutorMkdir(t *testing.T) {
	root := "/remote/root"
	fe := &fakeExecutor{}
	rt, err := New(KindRemote, fe, root, "app", "alice", nil, nil)
	require.NoError(t, err)

	_, err = rt.GetWorkspace(context.Background(), "scratch", nil)
	require.NoError(t, err)
	require.Len(t, fe.execCalls, 1)
	assert.Contains(t, fe.execCalls[0], "mkdir -p")
}

func TestListWorkspaces_DedupsAndSorts(t *testing.T) {
	root := t.TempDir()
	rt, err := New(KindLocal, &fakeExecutor{}, root, "app", "alice", nil, nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = rt.GetWorkspace(ctx, "zeta", nil)
	require.NoError(t, err)
	_, err = rt.GetWorkspace(ctx, "alpha", nil)
	require.NoError(t, err)
	_, err = rt.GetWorkspace(ctx, "zeta", map[string]string{"FOO": "bar"})
	require.NoError(t, err)

	assert.Equal(t, []string{"alpha", "zeta"}, rt.ListWorkspaces())
}

func TestListWorkspacesDetailed_IsolatesPerEntryErrors(t *testing.T) {
	root := t.TempDir()
	fe := &fakeExecutor{}
	rt, err := New(KindLocal, fe, root, "app", "alice", nil, nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = rt.GetWorkspace(ctx, "scratch", nil)
	require.NoError(t, err)

	details := rt.ListWorkspacesDetailed(ctx)
	require.Len(t, details, 1)
	assert.Equal(t, "scratch", details[0].Name)
	assert.NoError(t, details[0].Err)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestDestroy_ClearsCacheAndClosesRemoteChannel(t *testing.T) {
	root := t.TempDir()
	closed := false
	channel := closerFunc(func() error { closed = true; return nil })

	rt, err := New(KindRemote, &fakeExecutor{}, root, "app", "alice", channel, nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = rt.GetWorkspace(ctx, "scratch", nil)
	require.NoError(t, err)

	require.NoError(t, rt.Destroy())
	assert.True(t, closed)
	assert.Empty(t, rt.ListWorkspaces())
}

func TestDestroy_LocalRouterHasNoChannelToClose(t *testing.T) {
	root := t.TempDir()
	rt, err := New(KindLocal, &fakeExecutor{}, root, "app", "alice", nil, nil)
	require.NoError(t, err)
	require.NoError(t, rt.Destroy())
}
