// ABOUTME: Daily markdown notes stored one file per day under a notes directory
// ABOUTME: Notes are plain markdown on disk, rendered to HTML on request

package notes

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// DateLayout is the date format used in note filenames and the API.
const DateLayout = "2006-01-02"

// Note is one daily note.
type Note struct {
	Date    time.Time
	Path    string
	Content string
}

// Notebook manages daily notes in a directory, one markdown file per day
// named 2006-01-02.md.
type Notebook struct {
	dir      string
	markdown goldmark.Markdown
	logger   *slog.Logger
}

// NewNotebook creates a notebook rooted at dir, creating the directory when
// absent. Pass nil logger for the default.
func NewNotebook(dir string, logger *slog.Logger) (*Notebook, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating notes directory: %w", err)
	}
	return &Notebook{
		dir:      dir,
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
		logger:   logger.With("component", "notes"),
	}, nil
}

// path returns the file path for a date's note.
func (n *Notebook) path(date time.Time) string {
	return filepath.Join(n.dir, date.Format(DateLayout)+".md")
}

// Get reads the note for a date. A missing note yields a templated header
// rather than an error, so callers always get usable content.
func (n *Notebook) Get(date time.Time) (*Note, error) {
	path := n.path(date)

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Note{
			Date:    date,
			Path:    path,
			Content: fmt.Sprintf("# Notes for %s\n", date.Format(DateLayout)),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading note: %w", err)
	}

	return &Note{Date: date, Path: path, Content: string(data)}, nil
}

// Save writes the note for a date, replacing any existing content.
func (n *Notebook) Save(date time.Time, content string) error {
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	if err := os.WriteFile(n.path(date), []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing note: %w", err)
	}
	n.logger.Debug("saved note", "date", date.Format(DateLayout), "bytes", len(content))
	return nil
}

// Append adds a timestamped line to the note for a date, creating it with the
// templated header when absent.
func (n *Notebook) Append(date time.Time, line string) error {
	note, err := n.Get(date)
	if err != nil {
		return err
	}

	content := note.Content
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += fmt.Sprintf("- %s %s\n", time.Now().UTC().Format("15:04"), line)

	return n.Save(date, content)
}

// RenderHTML renders a date's note to HTML.
func (n *Notebook) RenderHTML(date time.Time) ([]byte, error) {
	note, err := n.Get(date)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := n.markdown.Convert([]byte(note.Content), &buf); err != nil {
		return nil, fmt.Errorf("rendering note: %w", err)
	}
	return buf.Bytes(), nil
}

// List returns the dates of all stored notes, oldest first.
func (n *Notebook) List() ([]time.Time, error) {
	entries, err := os.ReadDir(n.dir)
	if err != nil {
		return nil, fmt.Errorf("listing notes: %w", err)
	}

	var dates []time.Time
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".md") {
			continue
		}
		date, err := time.Parse(DateLayout, strings.TrimSuffix(name, ".md"))
		if err != nil {
			continue
		}
		dates = append(dates, date)
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}
