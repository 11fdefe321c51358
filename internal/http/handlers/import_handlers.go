package handlers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rogerio-castellano/mall-billing/internal/catalog"
	"github.com/rogerio-castellano/mall-billing/internal/models"
)

var requiredColumns = []string{"code", "name", "price"}

type csvRow struct {
	line    int
	product ProductRequest
	err     error
}

func parseCSV(file io.Reader) ([]csvRow, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		return nil, errors.New("invalid CSV header")
	}

	index := map[string]int{}
	for i, h := range headers {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[strings.ToLower(col)]; !ok {
			return nil, fmt.Errorf("CSV header is missing column %q", col)
		}
	}

	field := func(record []string, name string) string {
		i, ok := index[strings.ToLower(name)]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var rows []csvRow
	for line := 2; ; line++ { // header is row 1
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("CSV read error: %v", err)
		}

		row := csvRow{line: line}
		row.product.Code = field(record, "code")
		row.product.Name = field(record, "name")
		row.product.Category = field(record, "category")
		if row.product.Price, err = decimal.NewFromString(field(record, "price")); err != nil {
			row.err = errors.New("invalid price")
		}
		if row.product.Stock, err = parseInt(field(record, "stock")); err != nil && row.err == nil {
			row.err = errors.New("invalid stock")
		}
		if row.product.MinStock, err = parseInt(field(record, "minStock")); err != nil && row.err == nil {
			row.err = errors.New("invalid minStock")
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// parseInt treats an empty cell as zero.
func parseInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

// ImportProductsHandler godoc
// @Summary Import products via CSV
// @Description Columns: code,name,category,price,stock,minStock
// @Tags import
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV file"
// @Param mode query string false "Import mode (skip|update)"
// @Success 200 {object} ImportProductsResult
// @Failure 400 {object} ErrorResponse "Invalid file"
// @Router /products/import [post]
func (s *Server) ImportProductsHandler(w http.ResponseWriter, r *http.Request) {
	mode := strings.ToLower(r.URL.Query().Get("mode"))
	if mode != "update" {
		mode = "skip" // default
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		s.badRequest(w, "missing file")
		return
	}
	defer file.Close()

	records, err := parseCSV(file)
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}

	imported := 0
	errorsList := []ProductValidationError{}
	rowError := func(line int, format string, args ...any) {
		errorsList = append(errorsList, ProductValidationError{Description: fmt.Sprintf("row %d: ", line) + fmt.Sprintf(format, args...)})
	}

	for _, rec := range records {
		if rec.err != nil {
			rowError(rec.line, "%v", rec.err)
			continue
		}
		if problems := validateProduct(rec.product); len(problems) > 0 {
			rowError(rec.line, "%s", problems[0].Description)
			continue
		}

		_, err := s.catalog.AddProduct(r.Context(), rec.product.toModel())
		switch {
		case err == nil:
			imported++
		case errors.Is(err, catalog.ErrDuplicateCode) && mode == "update":
			p := rec.product
			patch := models.ProductPatch{Name: &p.Name, Category: &p.Category, Price: &p.Price, Stock: &p.Stock, MinStock: &p.MinStock}
			if _, err := s.catalog.UpdateProduct(r.Context(), p.Code, patch); err != nil {
				rowError(rec.line, "failed to update '%s': %v", p.Code, err)
				continue
			}
			imported++
		case errors.Is(err, catalog.ErrDuplicateCode):
			rowError(rec.line, "product '%s' already exists", rec.product.Code)
		default:
			rowError(rec.line, "%v", err)
		}
	}

	s.respond(w, http.StatusOK, ImportProductsResult{
		ImportedProductsCount: imported,
		Errors:                errorsList,
	})
}
