// Package csv parses product catalog uploads.
package csv

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aeo-platform/aeo/backend/pkg/common"
)

// Columns lists the recognised header names. Only sku and title are required.
var Columns = []string{"sku", "title", "description", "category", "brand", "price", "attributes"}

// RowError describes a data row that could not be turned into a product.
// Line is the 1-based line number of the record in the file.
type RowError struct {
	Line int    `json:"line"`
	Err  string `json:"error"`
}

// ParseProducts reads a CSV file with a header row and returns one product
// per valid data row. Blank rows are ignored. Rows with a missing SKU or
// title or an unparsable price are reported in the returned row errors
// and skipped. An attributes cell that is not a JSON object is kept as
// {"raw": "<text>"}.
func ParseProducts(content []byte) ([]common.Product, []RowError, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("CSV file is empty")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"sku", "title"} {
		if _, ok := index[required]; !ok {
			return nil, nil, fmt.Errorf("CSV header is missing the %q column", required)
		}
	}

	var (
		products []common.Product
		rowErrs  []RowError
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				rowErrs = append(rowErrs, RowError{Line: parseErr.StartLine, Err: parseErr.Err.Error()})
				continue
			}
			return nil, nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		line, _ := reader.FieldPos(0)
		if isBlank(record) {
			continue
		}

		p, err := parseRow(record, index)
		if err != nil {
			rowErrs = append(rowErrs, RowError{Line: line, Err: err.Error()})
			continue
		}
		products = append(products, p)
	}

	return products, rowErrs, nil
}

func parseRow(record []string, index map[string]int) (common.Product, error) {
	field := func(name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	p := common.Product{
		SKU:         field("sku"),
		Title:       field("title"),
		Description: field("description"),
		Category:    field("category"),
		Brand:       field("brand"),
	}
	if p.SKU == "" {
		return common.Product{}, fmt.Errorf("sku is empty")
	}
	if p.Title == "" {
		return common.Product{}, fmt.Errorf("title is empty for sku %s", p.SKU)
	}

	if raw := field("price"); raw != "" {
		price, err := strconv.ParseFloat(strings.TrimPrefix(raw, "$"), 64)
		if err != nil {
			return common.Product{}, fmt.Errorf("invalid price %q for sku %s", raw, p.SKU)
		}
		p.Price = &price
	}

	p.Attributes = parseAttributes(field("attributes"))
	return p, nil
}

func parseAttributes(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var attrs map[string]any
	if err := json.Unmarshal([]byte(raw), &attrs); err != nil || attrs == nil {
		return map[string]any{"raw": raw}
	}
	return attrs
}

func isBlank(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
