package excel

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/mat"

	"rhonull/internal/errors"
)

// DesignReader loads numeric design matrices from Excel and CSV files
type DesignReader struct {
	config ReaderConfig
}

// NewDesignReader creates a reader with the default configuration
func NewDesignReader() *DesignReader {
	return NewDesignReaderWithConfig(DefaultReaderConfig())
}

// NewDesignReaderWithConfig creates a reader with a custom configuration
func NewDesignReaderWithConfig(config ReaderConfig) *DesignReader {
	return &DesignReader{config: config}
}

// Read returns the design matrix stored at path
func (r *DesignReader) Read(path string) (*mat.Dense, error) {
	data, err := r.ReadData(path)
	if err != nil {
		return nil, err
	}
	return data.Matrix, nil
}

// ReadData reads a design file into headers and matrix. The file type is chosen
// by extension: .csv is parsed as CSV, .xlsx as an Excel workbook.
func (r *DesignReader) ReadData(path string) (*DesignData, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, fmt.Errorf("design file not readable: %w", err))
	}

	var (
		rows [][]string
		err  error
	)
	start := time.Now()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		rows, err = r.readCSVRows(path)
	case ".xlsx":
		rows, err = r.readExcelRows(path)
	default:
		return nil, errors.InvalidInput("unsupported design file type: " + ext)
	}
	if err != nil {
		return nil, err
	}

	data, err := parseRows(rows)
	if err != nil {
		return nil, errors.Wrapf(err, "design file %s", filepath.Base(path))
	}
	n, p := data.Matrix.Dims()
	log.Printf("[DesignReader] %s read in %.2fms (%d observations, %d columns)",
		filepath.Base(path), float64(time.Since(start).Nanoseconds())/1e6, n, p)
	return data, nil
}

func (r *DesignReader) readExcelRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, fmt.Errorf("failed to open Excel file: %w", err))
	}
	defer f.Close()

	sheet := r.config.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.InvalidInput("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, fmt.Errorf("failed to read sheet %s: %w", sheet, err))
	}
	return rows, nil
}

func (r *DesignReader) readCSVRows(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, fmt.Errorf("failed to open CSV file: %w", err))
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, fmt.Errorf("failed to read CSV file: %w", err))
	}
	return rows, nil
}

// parseRows converts string cells into a dense matrix. A first row containing any
// non-numeric cell is taken as the header. Blank trailing rows are ignored.
func parseRows(rows [][]string) (*DesignData, error) {
	for len(rows) > 0 && isBlankRow(rows[len(rows)-1]) {
		rows = rows[:len(rows)-1]
	}
	if len(rows) == 0 {
		return nil, errors.InvalidInput("design file is empty")
	}

	var headers []string
	if !isNumericRow(rows[0]) {
		headers = make([]string, len(rows[0]))
		for i, h := range rows[0] {
			headers[i] = strings.TrimSpace(h)
		}
		rows = rows[1:]
	}
	if len(rows) == 0 {
		return nil, errors.InvalidInput("design file has a header but no observations")
	}

	p := len(rows[0])
	if headers != nil {
		p = len(headers)
	}
	if p == 0 {
		return nil, errors.InvalidInput("design matrix has no columns")
	}

	values := make([]float64, 0, len(rows)*p)
	for i, row := range rows {
		if len(row) != p {
			return nil, errors.Newf(errors.CodeInvalidInput,
				"row %d has %d columns, expected %d", i+1, len(row), p)
		}
		for j, cell := range row {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, errors.Newf(errors.CodeInvalidInput,
					"row %d column %d: %q is not numeric", i+1, j+1, cell)
			}
			values = append(values, v)
		}
	}

	return &DesignData{Headers: headers, Matrix: mat.NewDense(len(rows), p, values)}, nil
}

func isNumericRow(row []string) bool {
	for _, cell := range row {
		if _, err := strconv.ParseFloat(strings.TrimSpace(cell), 64); err != nil {
			return false
		}
	}
	return true
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
