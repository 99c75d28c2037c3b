package adapter

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"

	"github.com/scryhq/ingestor/internal/core/domain"
)

// CSVFileAdapter reads tabular data from a local CSV file. The file handle
// acquired in Collect is released by Cleanup.
type CSVFileAdapter struct {
	cfg       SourceConfig
	path      string
	delimiter rune
}

// NewCSVFileAdapter builds a CSV file adapter. Requires "path"; accepts an
// optional single-character "delimiter".
func NewCSVFileAdapter(cfg SourceConfig) (Adapter, error) {
	path := cfg.String("path")
	if path == "" {
		return nil, domain.NewConfigurationError("csv adapter requires a \"path\" setting", nil)
	}

	delimiter := ','
	if d := cfg.String("delimiter"); d != "" {
		runes := []rune(d)
		if len(runes) != 1 {
			return nil, domain.NewConfigurationError(
				fmt.Sprintf("csv delimiter must be a single character, got %q", d), nil)
		}
		delimiter = runes[0]
	}

	return &CSVFileAdapter{cfg: cfg, path: path, delimiter: delimiter}, nil
}

type csvRaw struct {
	file    *os.File
	records [][]string
}

func (a *CSVFileAdapter) Collect(ctx context.Context) (any, error) {
	f, err := os.Open(a.path)
	if err != nil {
		return nil, domain.NewCollectionError(
			fmt.Sprintf("failed to open CSV file %s", a.path), err)
	}

	reader := csv.NewReader(f)
	reader.Comma = a.delimiter
	reader.FieldsPerRecord = -1 // ragged rows surface as warnings, not errors

	records, err := reader.ReadAll()
	if err != nil {
		_ = f.Close()
		return nil, domain.NewCollectionError(
			fmt.Sprintf("failed to parse CSV file %s", a.path), err)
	}

	return &csvRaw{file: f, records: records}, nil
}

func (a *CSVFileAdapter) Validate(ctx context.Context, raw any) (domain.ValidationResult, error) {
	rows := raw.(*csvRaw).records

	result := domain.ValidationResult{
		IsValid:  true,
		Errors:   []string{},
		Warnings: []string{},
		Metrics:  map[string]any{"row_count": len(rows)},
	}

	if len(rows) == 0 {
		result.IsValid = false
		result.Errors = append(result.Errors, "file has no rows")
		return result, nil
	}

	width := len(rows[0])
	result.Metrics["column_count"] = width

	ragged := 0
	empty := 0
	for _, row := range rows[1:] {
		if len(row) != width {
			ragged++
		}
		blank := true
		for _, cell := range row {
			if cell != "" {
				blank = false
				break
			}
		}
		if blank {
			empty++
		}
	}
	if ragged > 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%d rows have a different column count than the header", ragged))
	}
	if empty > 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%d rows are entirely empty", empty))
	}
	result.Metrics["ragged_rows"] = ragged
	result.Metrics["empty_rows"] = empty

	return result, nil
}

func (a *CSVFileAdapter) Transform(ctx context.Context, raw any) (any, error) {
	rows := raw.(*csvRaw).records
	if len(rows) == 0 {
		return nil, domain.NewTransformationError("cannot transform an empty CSV document", nil)
	}

	header := rows[0]
	out := make([]map[string]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		record := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(row) {
				record[name] = row[i]
			} else {
				record[name] = ""
			}
		}
		out = append(out, record)
	}
	return out, nil
}

func (a *CSVFileAdapter) Cleanup(ctx context.Context, raw any) error {
	r, ok := raw.(*csvRaw)
	if !ok || r.file == nil {
		return nil
	}
	return r.file.Close()
}
