package progress

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"catalogscan/models"
)

const (
	productsPrefix    = "catalog_products_"
	problematicPrefix = "problematic_items_"
	checkpointSuffix  = ".checkpoint.json"
	timestampLayout   = "20060102_150405"

	problematicBanner = "Problematic Items:\n=================\n\n"
)

// Header returns the products table header for a mode.
func Header(mode string) []string {
	if mode == models.ModeTemplate {
		return []string{"Product", "Price", "Source"}
	}
	return []string{"Product", "Price", "Location"}
}

// ProductsPath is the products table of a run.
func ProductsPath(dir, name string) string {
	return filepath.Join(dir, name+".csv")
}

// ProblematicPath is the sibling problematic items log of a run.
func ProblematicPath(dir, name string) string {
	return filepath.Join(dir, problematicPrefix+strings.TrimPrefix(name, productsPrefix)+".txt")
}

func checkpointPath(dir, name string) string {
	return filepath.Join(dir, name+checkpointSuffix)
}

// WriteProducts renders the products table.
func WriteProducts(w io.Writer, mode string, products []models.Product) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(mode)); err != nil {
		return err
	}
	for _, p := range products {
		if err := cw.Write([]string{p.Name, p.Price.Dollars(), p.Source}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteProblematic renders the problematic items log.
func WriteProblematic(w io.Writer, items []models.ProblematicItem) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(problematicBanner); err != nil {
		return err
	}
	for _, it := range items {
		if _, err := bw.WriteString(it.Line() + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// writeFileAtomic writes through a temp file in the same directory and
// renames it over path, so readers never see a half-written file.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	defer os.Remove(name)
	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(name, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
