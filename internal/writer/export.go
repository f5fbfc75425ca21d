package writer

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/lamim/salonforge/internal/util"
	"github.com/lamim/salonforge/pkg/models"
)

// Format is an export file format
type Format string

const (
	FormatCSV Format = "csv"
	FormatTXT Format = "txt"
)

// ParseFormat accepts csv or txt, case-insensitively
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatTXT:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q: expected csv or txt", s)
	}
}

const utf8BOM = "\ufeff"

var csvHeader = []string{"title", "menu", "comment", "hashtag"}

// WriteCSV writes templates as UTF-8 CSV with a byte order mark so that
// spreadsheet tools detect the encoding. Every field is quoted and list
// hashtags are joined with spaces.
func WriteCSV(w io.Writer, templates []models.Template) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(utf8BOM)
	bw.WriteString(strings.Join(csvHeader, ","))
	for _, t := range templates {
		bw.WriteString("\n")
		bw.WriteString(strings.Join([]string{
			quoteCSV(t.Title),
			quoteCSV(t.Menu),
			quoteCSV(t.Comment),
			quoteCSV(t.Hashtag.Join(" ")),
		}, ","))
	}
	bw.WriteString("\n")
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

func quoteCSV(field string) string {
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}

// TextRule separates blocks in the TXT export
var TextRule = strings.Repeat("=", 40)

const textBlock = `■ Template {{.Index}}
[Title]
{{.Title}}
[Menu]
{{.Menu}}
[Comment]
{{.Comment}}
[Hashtag]
{{.Hashtag}}
{{.Rule}}
`

// WriteTXT writes one "■ Template N" block per template
func WriteTXT(w io.Writer, templates []models.Template) error {
	bw := bufio.NewWriter(w)
	for i, t := range templates {
		if i > 0 {
			bw.WriteString("\n")
		}
		block, err := util.RenderTemplate(textBlock, map[string]any{
			"Index":   i + 1,
			"Title":   t.Title,
			"Menu":    t.Menu,
			"Comment": t.Comment,
			"Hashtag": t.Hashtag.String(),
			"Rule":    TextRule,
		})
		if err != nil {
			return fmt.Errorf("template %d: %w", i+1, err)
		}
		bw.WriteString(block)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write txt: %w", err)
	}
	return nil
}

// Export writes templates to w in format
func Export(w io.Writer, format Format, templates []models.Template) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, templates)
	case FormatTXT:
		return WriteTXT(w, templates)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

// ExportFile writes the export to a temp file in the target directory and
// renames it into place
func ExportFile(path string, format Format, templates []models.Template) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".export-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if err := Export(tmp, format, templates); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to move export into place: %w", err)
	}
	return nil
}
