// CSV parsing for uploaded datasets. Column positions are detected from the
// header row by name, with sensible fallbacks for bare single-column files.

package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Row is one parsed input row. TrueSentiment is the optional ground-truth
// label; when present it feeds the evaluation metrics.
type Row struct {
	Text          string
	Timestamp     string
	Source        string
	Location      string
	DisasterType  string
	TrueSentiment string
	Language      string
}

var columnCandidates = map[string][]string{
	"text":      {"text", "message", "content", "tweet", "post", "body"},
	"timestamp": {"timestamp", "date", "created_at", "time", "datetime"},
	"source":    {"source", "platform", "site"},
	"location":  {"location", "place", "area", "region"},
	"disaster":  {"disaster", "disaster_type", "disastertype", "event_type"},
	"sentiment": {"sentiment", "label", "emotion", "class"},
	"language":  {"language", "lang"},
}

func findColumn(header []string, key string) int {
	for i, name := range header {
		lower := strings.TrimSpace(strings.ToLower(name))
		for _, candidate := range columnCandidates[key] {
			if lower == candidate {
				return i
			}
		}
	}
	return -1
}

// ParseCSV reads the whole dataset into memory. Files larger than memory are
// out of scope; the upload endpoint bounds the request size instead.
func ParseCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // tolerate ragged rows

	raw, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	header := raw[0]
	textCol := findColumn(header, "text")
	dataStart := 1
	if textCol == -1 {
		// No recognizable header: treat the first column as text and the
		// first row as data.
		textCol = 0
		dataStart = 0
	}
	tsCol := findColumn(header, "timestamp")
	sourceCol := findColumn(header, "source")
	locationCol := findColumn(header, "location")
	disasterCol := findColumn(header, "disaster")
	sentimentCol := findColumn(header, "sentiment")
	languageCol := findColumn(header, "language")

	get := func(record []string, idx int) string {
		if idx < 0 || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var rows []Row
	for _, record := range raw[dataStart:] {
		text := get(record, textCol)
		if text == "" {
			continue
		}
		rows = append(rows, Row{
			Text:          text,
			Timestamp:     get(record, tsCol),
			Source:        get(record, sourceCol),
			Location:      get(record, locationCol),
			DisasterType:  get(record, disasterCol),
			TrueSentiment: get(record, sentimentCol),
			Language:      get(record, languageCol),
		})
	}
	return rows, nil
}
