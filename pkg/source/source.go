// Package source names the text a compiled ast.Block stands in for,
// so a CompileError/OpError's Position can point back at an actual
// line an embedder (or cmd/lucore's demo runner) can display.
package source

import "strings"

// SourceFile is the text behind one compiled block, plus enough
// naming to show the embedder where it came from.
type SourceFile struct {
	Name    string // display name (e.g. a demo program's name, "<eval>")
	Path    string // full file path, empty when there isn't one
	Content string
	lines   []string // cached split lines
}

// NewSourceFile wraps content under name/path for later error display.
func NewSourceFile(name, path, content string) *SourceFile {
	return &SourceFile{Name: name, Path: path, Content: content}
}

// Lines splits Content on newlines, caching the result.
func (sf *SourceFile) Lines() []string {
	if sf.lines == nil {
		sf.lines = strings.Split(sf.Content, "\n")
	}
	return sf.lines
}

// DisplayPath prefers Path, falling back to Name when there is no path.
func (sf *SourceFile) DisplayPath() string {
	if sf.Path != "" {
		return sf.Path
	}
	return sf.Name
}