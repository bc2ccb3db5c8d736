package tabular

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"

	"github.com/factwise/schema-mapper/internal/pkg/logger"
	"github.com/xuri/excelize/v2"
)

// DefaultSampleRows is how many data rows Samples reads when the caller
// passes a non-positive count.
const DefaultSampleRows = 5

// Extractor reads headers and bounded row samples out of raw tabular file
// content. Extraction is best-effort: malformed content yields empty
// results and a log line, never an error, because a broken upload must not
// take down the request that referenced it.
type Extractor struct {
	sampleRows int
}

// NewExtractor returns an Extractor with the given default sample size.
func NewExtractor(sampleRows int) *Extractor {
	if sampleRows <= 0 {
		sampleRows = DefaultSampleRows
	}
	return &Extractor{sampleRows: sampleRows}
}

// Headers returns the trimmed, non-empty header strings found at the
// zero-based headerRow of the given sheet (first sheet when empty).
func (e *Extractor) Headers(content []byte, sheet string, headerRow int) []string {
	grid, err := readGrid(content, sheet)
	if err != nil {
		logger.Warn("header extraction failed", "error", err)
		return []string{}
	}
	if headerRow < 0 || headerRow >= len(grid) {
		return []string{}
	}

	headers := make([]string, 0, len(grid[headerRow]))
	for _, cell := range grid[headerRow] {
		if h := strings.TrimSpace(cell); h != "" {
			headers = append(headers, h)
		}
	}
	return headers
}

// Samples returns up to rows non-empty stringified values beneath each
// header. Values are keyed by the trimmed header string.
func (e *Extractor) Samples(content []byte, sheet string, headerRow, rows int) map[string][]string {
	if rows <= 0 {
		rows = e.sampleRows
	}

	grid, err := readGrid(content, sheet)
	if err != nil {
		logger.Warn("sample extraction failed", "error", err)
		return map[string][]string{}
	}
	if headerRow < 0 || headerRow >= len(grid) {
		return map[string][]string{}
	}

	samples := make(map[string][]string)
	for col, cell := range grid[headerRow] {
		header := strings.TrimSpace(cell)
		if header == "" {
			continue
		}
		var values []string
		for r := headerRow + 1; r < len(grid) && r <= headerRow+rows; r++ {
			if col >= len(grid[r]) {
				continue
			}
			if v := strings.TrimSpace(grid[r][col]); v != "" {
				values = append(values, v)
			}
		}
		samples[header] = values
	}
	return samples
}

// Rows returns the trimmed headers and every data row below them, padded
// or truncated to the header count. Column positions whose header cell is
// blank are dropped, matching Headers.
func (e *Extractor) Rows(content []byte, sheet string, headerRow int) ([]string, [][]string) {
	grid, err := readGrid(content, sheet)
	if err != nil {
		logger.Warn("row extraction failed", "error", err)
		return []string{}, [][]string{}
	}
	if headerRow < 0 || headerRow >= len(grid) {
		return []string{}, [][]string{}
	}

	var headers []string
	var cols []int
	for col, cell := range grid[headerRow] {
		if h := strings.TrimSpace(cell); h != "" {
			headers = append(headers, h)
			cols = append(cols, col)
		}
	}

	rows := make([][]string, 0, len(grid)-headerRow-1)
	for r := headerRow + 1; r < len(grid); r++ {
		row := make([]string, len(cols))
		for i, col := range cols {
			if col < len(grid[r]) {
				row[i] = grid[r][col]
			}
		}
		rows = append(rows, row)
	}
	return headers, rows
}

// readGrid parses the content into a cell grid. XLSX is recognized by its
// zip magic; everything else is treated as CSV.
func readGrid(content []byte, sheet string) ([][]string, error) {
	if isXLSX(content) {
		return readXLSX(content, sheet)
	}
	return readCSV(content)
}

func isXLSX(content []byte) bool {
	return len(content) >= 2 && content[0] == 'P' && content[1] == 'K'
}

func readXLSX(content []byte, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, excelize.ErrSheetNotExist{SheetName: "(none)"}
		}
		sheet = sheets[0]
	}

	return f.GetRows(sheet)
}

func readCSV(content []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1

	var grid [][]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		grid = append(grid, record)
	}
	return grid, nil
}
