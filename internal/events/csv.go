// package events loads requested events from disk.
package events

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/encore/internal/models"
	"github.com/desertthunder/encore/internal/shared"
)

// LoadCSV reads event queries from a CSV file with an artist,event_name,
// venue,city,date,is_festival header. Column order follows the header, extra
// columns are ignored, and rows that fail validation are skipped with a
// warning rather than aborting the batch.
func LoadCSV(path string, logger *log.Logger) ([]models.EventQuery, error) {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open events file: %w", err)
	}
	defer file.Close()

	queries, err := parseCSV(file, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to parse events file %s: %w", path, err)
	}
	return queries, nil
}

func parseCSV(r io.Reader, logger *log.Logger) ([]models.EventQuery, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := columns["artist"]; !ok {
		return nil, fmt.Errorf("%w: missing artist column", shared.ErrInvalidInput)
	}
	if _, ok := columns["date"]; !ok {
		return nil, fmt.Errorf("%w: missing date column", shared.ErrInvalidInput)
	}

	field := func(row []string, name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	var queries []models.EventQuery
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			logger.Warn("skipping malformed row", "line", line, "error", err)
			continue
		}

		query := models.EventQuery{
			Artist:       field(row, "artist"),
			EventName:    field(row, "event_name"),
			Venue:        field(row, "venue"),
			City:         field(row, "city"),
			Date:         field(row, "date"),
			FestivalHint: isTruthy(field(row, "is_festival")),
		}
		if err := query.Validate(); err != nil {
			logger.Warn("skipping invalid row", "line", line, "error", err)
			continue
		}
		queries = append(queries, query)
	}

	return queries, nil
}

func isTruthy(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}
