package adapters

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tdermendjiev/aiwe-client/internal/catalog"
)

// WorkspaceAdapter manages files inside a sandboxed directory. Paths are
// resolved against the root and must not escape it.
type WorkspaceAdapter struct {
	Root string
}

func NewWorkspaceAdapter(root string) *WorkspaceAdapter {
	absRoot, _ := filepath.Abs(root)
	return &WorkspaceAdapter{Root: absRoot}
}

func (w *WorkspaceAdapter) Name() string {
	return "workspace"
}

func (w *WorkspaceAdapter) Catalog() *catalog.Catalog {
	filename := catalog.ParamSpec{Type: "string", Description: "Path relative to the workspace root", Required: true}
	return &catalog.Catalog{
		Service:     "workspace",
		Description: "Manage files in the local workspace: read, write, list, delete, and create directories.",
		Actions: []catalog.ActionSpec{
			{
				Name:        "readFile",
				Description: "Read a file's content",
				Parameters:  map[string]catalog.ParamSpec{"filename": filename},
				Output:      map[string]any{"content": "string"},
			},
			{
				Name:        "writeFile",
				Description: "Write content to a file, replacing what was there",
				Parameters: map[string]catalog.ParamSpec{
					"filename": filename,
					"content":  {Type: "string", Description: "The content to write", Required: true},
				},
			},
			{
				Name:        "listFiles",
				Description: "List a directory's entries",
				Parameters: map[string]catalog.ParamSpec{
					"path": {Type: "string", Description: "Directory relative to the workspace root, defaults to the root"},
				},
				Output: map[string]any{"entries": "array"},
			},
			{
				Name:        "deleteFile",
				Description: "Delete a file or empty directory",
				Parameters:  map[string]catalog.ParamSpec{"filename": filename},
			},
			{
				Name:        "makeDirectory",
				Description: "Create a directory, including parents",
				Parameters: map[string]catalog.ParamSpec{
					"path": {Type: "string", Description: "Directory relative to the workspace root", Required: true},
				},
			},
		},
	}
}

// resolve joins name onto the root and rejects escapes.
func (w *WorkspaceAdapter) resolve(name string) (string, error) {
	target := filepath.Join(w.Root, name)
	rel, err := filepath.Rel(w.Root, target)
	if err != nil || (len(rel) >= 2 && rel[:2] == "..") {
		return "", fmt.Errorf("unsafe path attempt: %s", name)
	}
	return target, nil
}

func (w *WorkspaceAdapter) Execute(ctx context.Context, action string, params map[string]any) (any, error) {
	switch action {
	case "readFile":
		target, err := w.resolve(stringParam(params, "filename"))
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(target)
		if err != nil {
			return nil, fmt.Errorf("failed to read file: %w", err)
		}
		return map[string]any{"content": string(data)}, nil

	case "writeFile":
		name := stringParam(params, "filename")
		target, err := w.resolve(name)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(target, []byte(stringParam(params, "content")), 0644); err != nil {
			return nil, fmt.Errorf("failed to write file: %w", err)
		}
		return map[string]any{"message": fmt.Sprintf("Wrote %s", name)}, nil

	case "listFiles":
		target, err := w.resolve(stringParam(params, "path"))
		if err != nil {
			return nil, err
		}
		dirEntries, err := os.ReadDir(target)
		if err != nil {
			return nil, fmt.Errorf("failed to list directory: %w", err)
		}
		entries := make([]any, 0, len(dirEntries))
		for _, entry := range dirEntries {
			kind := "file"
			if entry.IsDir() {
				kind = "dir"
			}
			entries = append(entries, map[string]any{"name": entry.Name(), "type": kind})
		}
		return map[string]any{"entries": entries}, nil

	case "deleteFile":
		name := stringParam(params, "filename")
		target, err := w.resolve(name)
		if err != nil {
			return nil, err
		}
		if err := os.Remove(target); err != nil {
			return nil, fmt.Errorf("failed to delete: %w", err)
		}
		return map[string]any{"message": fmt.Sprintf("Deleted %s", name)}, nil

	case "makeDirectory":
		name := stringParam(params, "path")
		target, err := w.resolve(name)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(target, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		return map[string]any{"message": fmt.Sprintf("Created directory %s", name)}, nil

	default:
		return nil, &UnknownActionError{Service: w.Name(), Action: action}
	}
}
