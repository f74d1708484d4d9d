package builtin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/stellarlinkco/agentbox/internal/tool"
)

// FileStore backs the read_file and write_file tools. Paths resolve inside
// the workspace directory; when restrict is set, escaping it is rejected.
type FileStore struct {
	workspace string
	restrict  bool
}

func NewFileStore(workspace string, restrict bool) *FileStore {
	return &FileStore{workspace: workspace, restrict: restrict}
}

// resolve turns a tool-supplied filename into an absolute path under the
// workspace, rejecting traversal when restriction is on.
func (s *FileStore) resolve(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("empty filename")
	}
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.workspace, path)
	}
	path = filepath.Clean(path)

	if s.restrict {
		root := filepath.Clean(s.workspace)
		if path != root && !strings.HasPrefix(path, root+string(filepath.Separator)) {
			return "", fmt.Errorf("path %q escapes the workspace", name)
		}
	}
	return path, nil
}

// ReadTool reads a file and returns its content.
func (s *FileStore) ReadTool() tool.Tool {
	return tool.Func{
		ToolName: "read_file",
		Desc:     "Read the contents of a file, input is the filename",
		Fn: func(ctx context.Context, input string) (tool.Result, error) {
			path, err := s.resolve(input)
			if err != nil {
				return tool.Fail(err.Error()), nil
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return tool.Fail(fmt.Sprintf("read %s: %v", input, err)), nil
			}
			return tool.Ok(map[string]any{
				"filename": strings.TrimSpace(input),
				"content":  string(data),
				"size":     len(data),
			}), nil
		},
	}
}

// WriteTool writes a file. Input format is "filename|content".
func (s *FileStore) WriteTool() tool.Tool {
	return tool.Func{
		ToolName: "write_file",
		Desc:     "Write content to a file, input format: filename|content",
		Fn: func(ctx context.Context, input string) (tool.Result, error) {
			name, content, found := strings.Cut(input, "|")
			if !found {
				return tool.Fail("input must be filename|content"), nil
			}
			path, err := s.resolve(name)
			if err != nil {
				return tool.Fail(err.Error()), nil
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return tool.Fail(fmt.Sprintf("create directory: %v", err)), nil
			}
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				return tool.Fail(fmt.Sprintf("write %s: %v", strings.TrimSpace(name), err)), nil
			}
			return tool.Ok(map[string]any{
				"filename": strings.TrimSpace(name),
				"written":  len(content),
			}), nil
		},
	}
}
