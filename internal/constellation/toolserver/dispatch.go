package toolserver

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/aspects-ai/constellationfs/internal/constellation/execapi"
	"github.com/aspects-ai/constellationfs/internal/constellation/workspace"
)

// edit is one {old,new} replacement for edit_file.
type edit struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// Dispatch resolves one tool call against session's facade (spec §4.8,
// SPEC_FULL.md D3 "one internal dispatcher"). It never returns a
// transport-level error for a facade failure — per spec, a failed
// operation is reported as an error *result*, not a protocol error; a
// non-nil error here means the request itself was malformed (unknown tool,
// bad arguments) or the session could not be resolved.
func Dispatch(ctx context.Context, s *Session, toolName string, arguments map[string]any) (*mcp.CallToolResult, error) {
	f := resolveFacade(ctx, s)
	if f == nil {
		return nil, fmt.Errorf("session %s has no bound workspace", s.ID)
	}

	switch toolName {
	case "read_text_file":
		return dispatchReadTextFile(ctx, f, arguments)
	case "read_multiple_files":
		return dispatchReadMultipleFiles(ctx, f, arguments)
	case "write_file":
		return dispatchWriteFile(ctx, f, arguments)
	case "edit_file":
		return dispatchEditFile(ctx, f, arguments)
	case "create_directory":
		return dispatchCreateDirectory(ctx, f, arguments)
	case "list_directory":
		return dispatchListDirectory(ctx, f, arguments)
	case "directory_tree":
		return dispatchDirectoryTree(ctx, f, arguments)
	case "move_file":
		return dispatchMoveFile(ctx, f, arguments)
	case "search_files":
		return dispatchSearchFiles(ctx, f, arguments)
	case "get_file_info":
		return dispatchGetFileInfo(ctx, f, arguments)
	case "exec":
		return dispatchExec(ctx, f, arguments)
	default:
		return nil, fmt.Errorf("unknown tool %q", toolName)
	}
}

func argString(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing argument %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", key)
	}
	return s, nil
}

func errResult(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(err.Error())
}

func dispatchReadTextFile(ctx context.Context, f *workspace.Facade, args map[string]any) (*mcp.CallToolResult, error) {
	path, err := argString(args, "path")
	if err != nil {
		return nil, err
	}
	content, readErr := f.Read(ctx, path)
	if readErr != nil {
		return errResult(readErr), nil
	}
	return mcp.NewToolResultText(content), nil
}

func dispatchReadMultipleFiles(ctx context.Context, f *workspace.Facade, args map[string]any) (*mcp.CallToolResult, error) {
	raw, ok := args["paths"].([]any)
	if !ok {
		return nil, fmt.Errorf("argument %q must be an array of strings", "paths")
	}
	var b strings.Builder
	for _, rp := range raw {
		p, ok := rp.(string)
		if !ok {
			return nil, fmt.Errorf("argument %q must be an array of strings", "paths")
		}
		content, readErr := f.Read(ctx, p)
		if readErr != nil {
			fmt.Fprintf(&b, "%s: ERROR %s\n", p, readErr.Error())
			continue
		}
		fmt.Fprintf(&b, "%s:\n%s\n\n", p, content)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func dispatchWriteFile(ctx context.Context, f *workspace.Facade, args map[string]any) (*mcp.CallToolResult, error) {
	path, err := argString(args, "path")
	if err != nil {
		return nil, err
	}
	content, err := argString(args, "content")
	if err != nil {
		return nil, err
	}
	if writeErr := f.Write(ctx, path, content); writeErr != nil {
		return errResult(writeErr), nil
	}
	return mcp.NewToolResultText("ok"), nil
}

func dispatchEditFile(ctx context.Context, f *workspace.Facade, args map[string]any) (*mcp.CallToolResult, error) {
	path, err := argString(args, "path")
	if err != nil {
		return nil, err
	}
	rawEdits, ok := args["edits"]
	if !ok {
		return nil, fmt.Errorf("missing argument %q", "edits")
	}
	encoded, marshalErr := json.Marshal(rawEdits)
	if marshalErr != nil {
		return nil, fmt.Errorf("invalid %q argument: %w", "edits", marshalErr)
	}
	var edits []edit
	if unmarshalErr := json.Unmarshal(encoded, &edits); unmarshalErr != nil {
		return nil, fmt.Errorf("invalid %q argument: %w", "edits", unmarshalErr)
	}

	content, readErr := f.Read(ctx, path)
	if readErr != nil {
		return errResult(readErr), nil
	}
	for _, e := range edits {
		content = strings.Replace(content, e.Old, e.New, 1)
	}
	if writeErr := f.Write(ctx, path, content); writeErr != nil {
		return errResult(writeErr), nil
	}
	return mcp.NewToolResultText("ok"), nil
}

func dispatchCreateDirectory(ctx context.Context, f *workspace.Facade, args map[string]any) (*mcp.CallToolResult, error) {
	path, err := argString(args, "path")
	if err != nil {
		return nil, err
	}
	if mkErr := f.Mkdir(ctx, path, true); mkErr != nil {
		return errResult(mkErr), nil
	}
	return mcp.NewToolResultText("ok"), nil
}

func dispatchListDirectory(ctx context.Context, f *workspace.Facade, args map[string]any) (*mcp.CallToolResult, error) {
	path, err := argString(args, "path")
	if err != nil {
		return nil, err
	}
	names, _, lsErr := f.Ls(ctx, path, "", false)
	if lsErr != nil {
		return errResult(lsErr), nil
	}
	return mcp.NewToolResultText(strings.Join(names, "\n")), nil
}

func dispatchDirectoryTree(ctx context.Context, f *workspace.Facade, args map[string]any) (*mcp.CallToolResult, error) {
	path, err := argString(args, "path")
	if err != nil {
		return nil, err
	}
	depth := 5
	if d, ok := args["depth"].(float64); ok && d > 0 {
		depth = int(d)
	}
	lines, walkErr := walkTree(ctx, f, path, 0, depth)
	if walkErr != nil {
		return errResult(walkErr), nil
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func walkTree(ctx context.Context, f *workspace.Facade, path string, depth, maxDepth int) ([]string, error) {
	_, entries, err := f.Ls(ctx, path, "", true)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	var out []string
	indent := strings.Repeat("  ", depth)
	for _, e := range entries {
		out = append(out, indent+e.Name)
		if e.Kind == execapi.KindDirectory && depth < maxDepth {
			child := path
			if child == "." || child == "" {
				child = e.Name
			} else {
				child = child + "/" + e.Name
			}
			sub, err := walkTree(ctx, f, child, depth+1, maxDepth)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}
	}
	return out, nil
}

func dispatchMoveFile(ctx context.Context, f *workspace.Facade, args map[string]any) (*mcp.CallToolResult, error) {
	from, err := argString(args, "from")
	if err != nil {
		return nil, err
	}
	to, err := argString(args, "to")
	if err != nil {
		return nil, err
	}
	if moveErr := f.Move(ctx, from, to); moveErr != nil {
		return errResult(moveErr), nil
	}
	return mcp.NewToolResultText("ok"), nil
}

func dispatchSearchFiles(ctx context.Context, f *workspace.Facade, args map[string]any) (*mcp.CallToolResult, error) {
	root, err := argString(args, "root")
	if err != nil {
		return nil, err
	}
	pattern, err := argString(args, "pattern")
	if err != nil {
		return nil, err
	}
	matches, walkErr := searchFiles(ctx, f, root, pattern, 0)
	if walkErr != nil {
		return errResult(walkErr), nil
	}
	return mcp.NewToolResultText(strings.Join(matches, "\n")), nil
}

func searchFiles(ctx context.Context, f *workspace.Facade, dir, pattern string, depth int) ([]string, error) {
	const maxSearchDepth = 32
	if depth > maxSearchDepth {
		return nil, nil
	}
	_, entries, err := f.Ls(ctx, dir, "", true)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		rel := e.Name
		if dir != "." && dir != "" {
			rel = dir + "/" + e.Name
		}
		if ok, _ := matchGlob(pattern, e.Name); ok {
			out = append(out, rel)
		}
		if e.Kind == execapi.KindDirectory {
			sub, err := searchFiles(ctx, f, rel, pattern, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}
	}
	return out, nil
}

func matchGlob(pattern, name string) (bool, error) {
	return path.Match(pattern, name)
}

func dispatchGetFileInfo(ctx context.Context, f *workspace.Facade, args map[string]any) (*mcp.CallToolResult, error) {
	path, err := argString(args, "path")
	if err != nil {
		return nil, err
	}
	st, statErr := f.Stat(ctx, path)
	if statErr != nil {
		return errResult(statErr), nil
	}
	body, _ := json.Marshal(map[string]any{
		"kind": string(st.Kind), "size": st.Size, "mtime": st.Mtime,
	})
	return mcp.NewToolResultText(string(body)), nil
}

func dispatchExec(ctx context.Context, f *workspace.Facade, args map[string]any) (*mcp.CallToolResult, error) {
	command, err := argString(args, "command")
	if err != nil {
		return nil, err
	}
	encoding := execapi.UTF8
	if enc, _ := args["encoding"].(string); enc == "buffer" {
		encoding = execapi.Buffer
	}
	out, buf, execErr := f.Exec(ctx, command, encoding, nil)
	if execErr != nil {
		return errResult(execErr), nil
	}
	if encoding == execapi.Buffer {
		return mcp.NewToolResultText(string(buf)), nil
	}
	return mcp.NewToolResultText(out), nil
}
