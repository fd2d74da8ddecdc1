// internal/tools/file_tools.go
package tools

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/spf13/afero"

	"github.com/xkilldash9x/uiforge/internal/agent"
	"github.com/xkilldash9x/uiforge/internal/config"
)

// Tool names offered during project analysis.
const (
	ToolListDirectory = "list_directory"
	ToolReadFile      = "read_file"
	ToolSearchFiles   = "search_files"
)

// ignoredDirs are never listed or searched.
var ignoredDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	"dist":         true,
	"build":        true,
	"coverage":     true,
	".next":        true,
	".nuxt":        true,
}

const maxSearchMatchesPerFile = 3

// FileTools exposes read-only access to a project directory. Every path is
// resolved relative to root; paths escaping root are rejected.
type FileTools struct {
	fs           afero.Fs
	root         string
	maxFileBytes int64
	maxEntries   int
}

// NewFileTools binds the file tools to a project root.
func NewFileTools(fsys afero.Fs, root string, cfg config.AnalysisConfig) *FileTools {
	maxBytes := cfg.MaxFileBytes
	if maxBytes <= 0 {
		maxBytes = 64 * 1024
	}
	maxEntries := cfg.MaxListEntries
	if maxEntries <= 0 {
		maxEntries = 200
	}
	return &FileTools{
		fs:           fsys,
		root:         filepath.Clean(root),
		maxFileBytes: int64(maxBytes),
		maxEntries:   maxEntries,
	}
}

// Tools returns the file tool definitions.
func (f *FileTools) Tools() []Tool {
	return []Tool{
		{
			Name:        ToolListDirectory,
			Description: "Lists the files and subdirectories directly within a directory of the project. Paths are relative to the project root.",
			Parameters: objectSchema(nil, map[string]*openapi3.Schema{
				"path": stringProp("Directory to list, relative to the project root. Defaults to the root."),
			}),
			Handler: f.listDirectory,
		},
		{
			Name:        ToolReadFile,
			Description: "Reads a text file of the project. Large files are truncated.",
			Parameters: objectSchema([]string{"path"}, map[string]*openapi3.Schema{
				"path": stringProp("File to read, relative to the project root."),
			}),
			Handler: f.readFile,
		},
		{
			Name:        ToolSearchFiles,
			Description: "Finds project files matching a glob pattern such as \"src/**/*.jsx\", optionally only those containing a text fragment.",
			Parameters: objectSchema([]string{"pattern"}, map[string]*openapi3.Schema{
				"pattern":  stringProp("Glob pattern relative to the project root. Supports ** and {a,b}."),
				"contains": stringProp("Optional text the file must contain."),
			}),
			Handler: f.searchFiles,
		},
	}
}

// Register adds the file tools to r.
func (f *FileTools) Register(r *Registry) error {
	return r.Register(f.Tools()...)
}

// resolve maps a project-relative path to an absolute path under root.
func (f *FileTools) resolve(rel string) (string, error) {
	rel = strings.TrimSpace(rel)
	if rel == "" {
		rel = "."
	}
	var abs string
	if filepath.IsAbs(rel) {
		abs = filepath.Clean(rel)
	} else {
		abs = filepath.Join(f.root, rel)
	}
	within, err := filepath.Rel(f.root, abs)
	if err != nil || within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
		return "", withCode(agent.ErrCodePathForbidden, "path %q is outside the project root", rel)
	}
	return abs, nil
}

func (f *FileTools) relative(abs string) string {
	rel, err := filepath.Rel(f.root, abs)
	if err != nil {
		return abs
	}
	return filepath.ToSlash(rel)
}

type dirEntry struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size,omitempty"`
}

type listing struct {
	Path      string     `json:"path"`
	Entries   []dirEntry `json:"entries"`
	Truncated bool       `json:"truncated,omitempty"`
}

func (f *FileTools) listDirectory(_ context.Context, args Args) (any, error) {
	abs, err := f.resolve(args.String("path"))
	if err != nil {
		return nil, err
	}
	infos, err := afero.ReadDir(f.fs, abs)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", f.relative(abs), err)
	}

	out := listing{Path: f.relative(abs), Entries: []dirEntry{}}
	for _, info := range infos {
		if info.IsDir() && ignoredDirs[info.Name()] {
			continue
		}
		if len(out.Entries) >= f.maxEntries {
			out.Truncated = true
			break
		}
		entry := dirEntry{Name: info.Name(), Type: "file", Size: info.Size()}
		if info.IsDir() {
			entry.Type = "dir"
			entry.Size = 0
		}
		out.Entries = append(out.Entries, entry)
	}
	return out, nil
}

type fileContent struct {
	Path      string `json:"path"`
	Content   string `json:"content"`
	Size      int64  `json:"size"`
	Truncated bool   `json:"truncated,omitempty"`
}

func (f *FileTools) readFile(_ context.Context, args Args) (any, error) {
	abs, err := f.resolve(args.String("path"))
	if err != nil {
		return nil, err
	}
	info, err := f.fs.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.relative(abs), err)
	}
	if info.IsDir() {
		return nil, withCode(agent.ErrCodeInvalidParameters, "%s is a directory; use %s", f.relative(abs), ToolListDirectory)
	}

	file, err := f.fs.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.relative(abs), err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, f.maxFileBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.relative(abs), err)
	}
	return fileContent{
		Path:      f.relative(abs),
		Content:   string(data),
		Size:      info.Size(),
		Truncated: info.Size() > f.maxFileBytes,
	}, nil
}

type searchMatch struct {
	Path  string   `json:"path"`
	Lines []string `json:"lines,omitempty"`
}

type searchResult struct {
	Pattern   string        `json:"pattern"`
	Matches   []searchMatch `json:"matches"`
	Truncated bool          `json:"truncated,omitempty"`
}

func (f *FileTools) searchFiles(ctx context.Context, args Args) (any, error) {
	pattern := strings.TrimPrefix(filepath.ToSlash(args.String("pattern")), "./")
	if !doublestar.ValidatePattern(pattern) {
		return nil, withCode(agent.ErrCodeInvalidParameters, "invalid glob pattern %q", pattern)
	}
	contains := args.String("contains")

	out := searchResult{Pattern: pattern, Matches: []searchMatch{}}
	errLimit := errors.New("limit reached")

	walkErr := afero.Walk(f.fs, f.root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if info.IsDir() {
			if path != f.root && ignoredDirs[info.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		rel := f.relative(path)
		if ok, _ := doublestar.Match(pattern, rel); !ok {
			return nil
		}

		match := searchMatch{Path: rel}
		if contains != "" {
			lines, err := f.grep(path, contains)
			if err != nil || len(lines) == 0 {
				return nil
			}
			match.Lines = lines
		}
		if len(out.Matches) >= f.maxEntries {
			out.Truncated = true
			return errLimit
		}
		out.Matches = append(out.Matches, match)
		return nil
	})
	if walkErr != nil && !errors.Is(walkErr, errLimit) {
		return nil, fmt.Errorf("search for %q failed: %w", pattern, walkErr)
	}

	sort.Slice(out.Matches, func(i, j int) bool { return out.Matches[i].Path < out.Matches[j].Path })
	return out, nil
}

// grep returns up to maxSearchMatchesPerFile "line: text" hits for needle.
func (f *FileTools) grep(path, needle string) ([]string, error) {
	file, err := f.fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var hits []string
	scanner := bufio.NewScanner(io.LimitReader(file, f.maxFileBytes))
	for n := 1; scanner.Scan(); n++ {
		line := scanner.Text()
		if strings.Contains(line, needle) {
			hits = append(hits, fmt.Sprintf("%d: %s", n, strings.TrimSpace(line)))
			if len(hits) >= maxSearchMatchesPerFile {
				break
			}
		}
	}
	return hits, scanner.Err()
}
