// Package visualizer implements the features that depend on a running
// language server: syntax tree dumps and formatting previews.
package visualizer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/streekit/streekeeper/internal/lsp"
	"github.com/streekit/streekeeper/internal/supervisor"
	"github.com/streekit/streekeeper/pkg/types"
)

// ErrNotRunning is returned when a request arrives while the language
// server is not running.
var ErrNotRunning = errors.New("language server is not running")

// ErrExcluded is returned when the target file does not match the
// configured document selector.
var ErrExcluded = errors.New("file does not match the document selector")

// Backend supplies the live server handle and its settings snapshot.
// *supervisor.Supervisor satisfies it; the handle may disappear between
// calls, so every request re-acquires it.
type Backend interface {
	Server() supervisor.Server
	Snapshot() *types.Settings
	Workspace() string
}

// Visualizer answers visualize and format-preview requests against the
// supervised server.
type Visualizer struct {
	backend Backend
}

// New returns a Visualizer over the backend.
func New(backend Backend) *Visualizer {
	return &Visualizer{backend: backend}
}

// Visualize returns the syntax tree rendering for the file.
func (v *Visualizer) Visualize(ctx context.Context, path string) (string, error) {
	srv, abs, err := v.admit(path)
	if err != nil {
		return "", err
	}
	return srv.Visualize(ctx, abs)
}

// FormatPreview returns a unified diff between the file's current
// content and the server's formatting of it. The file itself is not
// modified. An empty diff means the file is already formatted.
func (v *Visualizer) FormatPreview(ctx context.Context, path string) (string, error) {
	srv, abs, err := v.admit(path)
	if err != nil {
		return "", err
	}

	before, err := os.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	edits, err := srv.Formatting(ctx, abs)
	if err != nil {
		return "", err
	}

	after := applyEdits(string(before), edits)
	return renderDiff(abs, v.backend.Workspace(), string(before), after), nil
}

// admit re-acquires the server handle and checks the document selector.
func (v *Visualizer) admit(path string) (supervisor.Server, string, error) {
	srv := v.backend.Server()
	if srv == nil {
		return nil, "", ErrNotRunning
	}

	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(v.backend.Workspace(), path)
	}
	abs = filepath.Clean(abs)

	if !v.selected(abs) {
		return nil, "", fmt.Errorf("%s: %w", path, ErrExcluded)
	}
	return srv, abs, nil
}

func (v *Visualizer) selected(abs string) bool {
	var patterns []string
	if s := v.backend.Snapshot(); s != nil {
		patterns = s.Advanced.DocumentSelector
	}
	if len(patterns) == 0 {
		return true
	}

	candidate := filepath.ToSlash(abs)
	if rel, err := filepath.Rel(v.backend.Workspace(), abs); err == nil && !strings.HasPrefix(rel, "..") {
		candidate = filepath.ToSlash(rel)
	}

	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, candidate); err == nil && ok {
			return true
		}
	}
	return false
}

// applyEdits applies the server's text edits to content. Edits are
// applied in reverse document order so earlier offsets stay valid; the
// usual response is a single whole-document replacement.
func applyEdits(content string, edits []lsp.TextEdit) string {
	if len(edits) == 0 {
		return content
	}

	sorted := append([]lsp.TextEdit(nil), edits...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Range.Start, sorted[j].Range.Start
		if a.Line != b.Line {
			return a.Line > b.Line
		}
		return a.Character > b.Character
	})

	offsets := lineOffsets(content)
	for _, edit := range sorted {
		start := offsetOf(offsets, len(content), edit.Range.Start)
		end := offsetOf(offsets, len(content), edit.Range.End)
		if start > end || start > len(content) {
			continue
		}
		content = content[:start] + edit.NewText + content[end:]
		offsets = lineOffsets(content)
	}
	return content
}

func lineOffsets(content string) []int {
	offsets := []int{0}
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			offsets = append(offsets, i+1)
		}
	}
	return offsets
}

func offsetOf(offsets []int, contentLen int, pos lsp.Position) int {
	if pos.Line >= len(offsets) {
		return contentLen
	}
	off := offsets[pos.Line] + pos.Character
	if off > contentLen {
		return contentLen
	}
	return off
}

// renderDiff produces a unified diff with file headers, relative to the
// workspace when possible.
func renderDiff(path, baseDir, before, after string) string {
	if before == after {
		return ""
	}

	rel := path
	if baseDir != "" {
		if r, err := filepath.Rel(baseDir, path); err == nil {
			rel = r
		}
	}

	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	patches := dmp.PatchMake(before, diffs)
	diffText := dmp.PatchToText(patches)
	if diffText == "" {
		return ""
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("--- %s\n", rel))
	builder.WriteString(fmt.Sprintf("+++ %s\n", rel))
	builder.WriteString(diffText)
	return builder.String()
}
