package toolserver

import "github.com/mark3labs/mcp-go/mcp"

// ToolDefinitions returns the fixed tool set every ConstellationFS session
// exposes (spec §4.8 "Tools").
func ToolDefinitions() []mcp.Tool {
	str := func(name, desc string) mcp.ToolOption { return mcp.WithString(name, mcp.Description(desc)) }
	req := func(name, desc string) mcp.ToolOption {
		return mcp.WithString(name, mcp.Description(desc), mcp.Required())
	}

	return []mcp.Tool{
		mcp.NewTool("read_text_file",
			mcp.WithDescription("Read a workspace file as UTF-8 text"),
			req("path", "workspace-relative path")),
		mcp.NewTool("read_multiple_files",
			mcp.WithDescription("Read several workspace files as UTF-8 text"),
			mcp.WithArray("paths", mcp.Description("workspace-relative paths"), mcp.Items(map[string]any{"type": "string"}))),
		mcp.NewTool("write_file",
			mcp.WithDescription("Write content to a workspace file, creating parents as needed"),
			req("path", "workspace-relative path"),
			req("content", "file content")),
		mcp.NewTool("edit_file",
			mcp.WithDescription("Apply an ordered list of literal old/new replacements to a file"),
			req("path", "workspace-relative path"),
			mcp.WithArray("edits", mcp.Description("[{old,new}] replacements applied in order"),
				mcp.Items(map[string]any{"type": "object"}))),
		mcp.NewTool("create_directory",
			mcp.WithDescription("Create a workspace directory, recursively"),
			req("path", "workspace-relative path")),
		mcp.NewTool("list_directory",
			mcp.WithDescription("List a workspace directory's entries"),
			req("path", "workspace-relative path")),
		mcp.NewTool("directory_tree",
			mcp.WithDescription("Recursively list a workspace directory up to an optional depth"),
			req("path", "workspace-relative path"),
			mcp.WithNumber("depth", mcp.Description("maximum recursion depth (default 5)"))),
		mcp.NewTool("move_file",
			mcp.WithDescription("Rename or relocate a workspace member"),
			req("from", "source path"),
			req("to", "destination path")),
		mcp.NewTool("search_files",
			mcp.WithDescription("Find workspace members under root matching a glob pattern"),
			req("root", "workspace-relative root"),
			req("pattern", "glob pattern, e.g. *.go")),
		mcp.NewTool("get_file_info",
			mcp.WithDescription("Stat a workspace member"),
			req("path", "workspace-relative path")),
		mcp.NewTool("exec",
			mcp.WithDescription("Run a shell command in the workspace"),
			req("command", "shell command line"),
			str("encoding", "utf8 (default) or buffer")),
	}
}
