package progress

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"catalogscan/models"
	"catalogscan/pkg/ocr"
)

var (
	rePageMarker = regexp.MustCompile(`^Page (\d+)`)
	reProblem    = regexp.MustCompile(`^(.*?) - (` + regexp.QuoteMeta(models.ReasonPriceWithoutProduct) + `|` +
		regexp.QuoteMeta(models.ReasonProductWithoutPrice) + `|` + regexp.QuoteMeta(models.ReasonProcessingError) + `): (.*)$`)
	reProblemAny = regexp.MustCompile(`^(.*?) - ([^:]+): (.*)$`)
)

// PageOf returns the page number in a Source/Location value, or 0.
func PageOf(source string) int {
	m := rePageMarker.FindStringSubmatch(source)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

// ReadLegacy rebuilds a run from a products table and its problematic log
// alone, for outputs that have no checkpoint. The last completed page is
// the highest "Page N" marker found in either file.
func ReadLegacy(csvPath string) (*models.RunState, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(csvPath), ".csv")
	st := &models.RunState{Name: name}
	st.Mode, st.Products, err = readProducts(f)
	if err != nil {
		return nil, &ocr.StateCorruptError{Path: csvPath, Err: err}
	}

	logPath := ProblematicPath(filepath.Dir(csvPath), name)
	if lf, err := os.Open(logPath); err == nil {
		st.Problematic, err = readProblematic(lf)
		lf.Close()
		if err != nil {
			return nil, &ocr.StateCorruptError{Path: logPath, Err: err}
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	for _, p := range st.Products {
		st.LastCompletedPage = max(st.LastCompletedPage, PageOf(p.Source))
	}
	for _, p := range st.Problematic {
		st.LastCompletedPage = max(st.LastCompletedPage, PageOf(p.Source))
	}
	if info, err := os.Stat(csvPath); err == nil {
		st.StartedAt = info.ModTime()
		st.UpdatedAt = info.ModTime()
	}
	st.Recount()
	return st, nil
}

func readProducts(r io.Reader) (string, []models.Product, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3
	header, err := cr.Read()
	if err != nil {
		return "", nil, fmt.Errorf("read header: %w", err)
	}
	if header[0] != "Product" || header[1] != "Price" {
		return "", nil, fmt.Errorf("unexpected header %v", header)
	}
	mode := models.ModePages
	switch header[2] {
	case "Source":
		mode = models.ModeTemplate
	case "Location", "Store":
	default:
		return "", nil, fmt.Errorf("unexpected header %v", header)
	}
	var out []models.Product
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", nil, err
		}
		price, err := models.ParsePrice(rec[1])
		if err != nil {
			return "", nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, models.Product{Name: rec[0], Price: price, Source: rec[2]})
	}
	return mode, out, nil
}

func readProblematic(r io.Reader) ([]models.ProblematicItem, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	var out []models.ProblematicItem
	n := 0
	for sc.Scan() {
		n++
		line := sc.Text()
		if n == 1 && line != "Problematic Items:" {
			return nil, fmt.Errorf("missing banner, got %q", line)
		}
		if n <= 3 {
			// banner: title, underline, blank
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		m := reProblem.FindStringSubmatch(line)
		if m == nil {
			m = reProblemAny.FindStringSubmatch(line)
		}
		if m == nil {
			return nil, fmt.Errorf("line %d: unrecognized entry %q", n, line)
		}
		out = append(out, models.ProblematicItem{Source: m[1], Reason: m[2], RawText: m[3]})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// orphanOutputs lists products tables in dir newest first.
func orphanOutputs(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, productsPrefix+"*.csv"))
	if err != nil {
		return nil, err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(matches)))
	return matches, nil
}
