// Package dataset loads labeled student records for training: from local CSV
// exports, from the institutional record API, or synthetically generated for
// tests and bootstrap deployments.
package dataset

import (
	"encoding/csv"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"

	"edurisk-engine/internal/schema"
)

// Dataset is a versioned collection of labeled records. The version is
// recorded in every artifact trained from it.
type Dataset struct {
	Version string                 `json:"version"`
	Records []schema.LabeledRecord `json:"records"`
}

const targetColumn = "target"

// LoadCSV reads a labeled dataset from a CSV export. The header must contain
// the 35 canonical attribute columns plus a "target" column; column order is
// free. Rows failing domain validation are rejected, not skipped, so a
// corrupted export cannot silently bias a training run.
func LoadCSV(path string) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	colIdx := make(map[string]int, len(header))
	for i, name := range header {
		colIdx[name] = i
	}

	fields := schema.Fields()
	fieldCols := make([]int, len(fields))
	for i, f := range fields {
		idx, ok := colIdx[f.Name]
		if !ok {
			return nil, fmt.Errorf("dataset missing required column %q", f.Name)
		}
		fieldCols[i] = idx
	}
	targetCol, ok := colIdx[targetColumn]
	if !ok {
		return nil, fmt.Errorf("dataset missing required column %q", targetColumn)
	}

	hash := fnv.New64a()
	var records []schema.LabeledRecord
	line := 1

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row %d: %w", line, err)
		}
		line++

		var values [schema.NumFields]float64
		for i, col := range fieldCols {
			v, err := strconv.ParseFloat(row[col], 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", line, fields[i].Name, err)
			}
			values[i] = v
			fmt.Fprintf(hash, "%g,", v)
		}

		target, err := strconv.Atoi(row[targetCol])
		if err != nil {
			return nil, fmt.Errorf("row %d column %q: %w", line, targetColumn, err)
		}
		outcome := schema.Outcome(target)
		if !outcome.Valid() {
			return nil, fmt.Errorf("row %d: unknown outcome label %d", line, target)
		}
		fmt.Fprintf(hash, "%d;", target)

		record := schema.FromValues(values)
		if err := record.Validate(); err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}

		records = append(records, schema.LabeledRecord{Record: record, Outcome: outcome})
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("dataset %s contains no records", path)
	}

	ds := &Dataset{
		Version: fmt.Sprintf("ds-%016x", hash.Sum64()),
		Records: records,
	}

	log.Info().
		Str("path", path).
		Str("version", ds.Version).
		Int("records", len(ds.Records)).
		Msg("dataset loaded")

	return ds, nil
}
