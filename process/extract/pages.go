package extract

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"

	"catalogscan/models"
	"catalogscan/pkg/ocr"
)

// Page is one unit of work. Load is called once, inside the page step, so a
// page that fails to decode only costs that page.
type Page struct {
	Number int
	Path   string
	Label  string
	Load   func() (image.Image, error)
}

// Source is the page marker written to the Source/Location column.
func (p Page) Source() string {
	return models.SourceFor(p.Number, p.Label)
}

// IsSupportedExt reports whether name looks like a page image we can decode.
func IsSupportedExt(name string) bool {
	// debug dumps live next to the pages
	if strings.Contains(name, ".debug.") {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff":
		return true
	}
	return false
}

// ListPages returns the pages of input: the file itself, or the supported
// images of a directory in lexical order, numbered from 1.
func ListPages(input, mode string) ([]Page, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, fmt.Errorf("input %s: %w", input, err)
	}
	var files []string
	if info.IsDir() {
		entries, err := os.ReadDir(input)
		if err != nil {
			return nil, fmt.Errorf("read input dir: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() || !IsSupportedExt(e.Name()) {
				continue
			}
			files = append(files, filepath.Join(input, e.Name()))
		}
		sort.Strings(files)
	} else if IsSupportedExt(input) {
		files = []string{input}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%s: %w", input, ocr.ErrNoPages)
	}
	pages := make([]Page, len(files))
	for i, f := range files {
		pages[i] = FilePage(i+1, f, mode)
	}
	return pages, nil
}

// FilePage builds a page backed by an image file. Template mode labels rows
// with the file name; page-scan mode uses the page number alone.
func FilePage(number int, path, mode string) Page {
	label := ""
	if mode == models.ModeTemplate {
		label = filepath.Base(path)
	}
	return Page{
		Number: number,
		Path:   path,
		Label:  label,
		Load: func() (image.Image, error) {
			return imaging.Open(path, imaging.AutoOrientation(true))
		},
	}
}
