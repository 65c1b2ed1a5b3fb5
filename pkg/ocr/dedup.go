package ocr

import "catalogscan/models"

// Dedupe collapses products sharing a Key, keeping the strictly higher price.
// The surviving record keeps the position of the first occurrence of its key,
// and ties keep the first seen, so Dedupe(Dedupe(x)) == Dedupe(x).
func Dedupe(products []models.Product) []models.Product {
	out := make([]models.Product, 0, len(products))
	index := make(map[string]int, len(products))
	for _, p := range products {
		k := p.Key()
		if i, ok := index[k]; ok {
			if p.Price > out[i].Price {
				out[i] = p
			}
			continue
		}
		index[k] = len(out)
		out = append(out, p)
	}
	return out
}
