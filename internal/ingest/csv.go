// Package ingest reads listing exports (CSV) into create requests.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/findback/matcher/internal/models"
)

// Column names recognised in the header row. status, category and title are required.
const (
	colStatus      = "status"
	colCategory    = "category"
	colSubcategory = "subcategory"
	colTitle       = "title"
	colDescription = "description"
	colLocation    = "location"
	colLatitude    = "latitude"
	colLongitude   = "longitude"
	colEventDate   = "event_date"
	colEmbedding   = "embedding"
)

var (
	// ErrMissingColumn is returned when a required column is absent from the header.
	ErrMissingColumn = errors.New("missing required column")
	errBadValue      = errors.New("invalid value")
)

// Row is one parsed CSV row. Err is set when the row could not be parsed; Request is then zero.
type Row struct {
	Line    int
	Request models.CreateListingRequest
	Err     error
}

// ReadListings parses a CSV export with a header row. Rows that fail to parse are returned with Err set
// so callers can report them and continue; only header and read errors fail the whole call.
func ReadListings(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}

	for _, required := range []string{colStatus, colCategory, colTitle} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, required)
		}
	}

	var rows []Row

	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return rows, fmt.Errorf("read line %d: %w", line, err)
		}

		get := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(record) {
				return ""
			}

			return strings.TrimSpace(record[i])
		}

		req, err := parseRow(get)
		rows = append(rows, Row{Line: line, Request: req, Err: err})
	}

	return rows, nil
}

func parseRow(get func(string) string) (models.CreateListingRequest, error) {
	req := models.CreateListingRequest{
		Status:      models.ListingStatus(strings.ToLower(get(colStatus))),
		Category:    get(colCategory),
		Subcategory: get(colSubcategory),
		Title:       get(colTitle),
		Description: get(colDescription),
		Location:    get(colLocation),
	}

	var err error

	if req.Latitude, err = parseOptionalFloat(colLatitude, get(colLatitude)); err != nil {
		return models.CreateListingRequest{}, err
	}

	if req.Longitude, err = parseOptionalFloat(colLongitude, get(colLongitude)); err != nil {
		return models.CreateListingRequest{}, err
	}

	if req.EventDate, err = parseDate(get(colEventDate)); err != nil {
		return models.CreateListingRequest{}, err
	}

	if raw := get(colEmbedding); raw != "" {
		var vec pgvector.Vector
		if !strings.HasPrefix(raw, "[") || !strings.HasSuffix(raw, "]") {
			return models.CreateListingRequest{}, fmt.Errorf("%w: %s %q", errBadValue, colEmbedding, raw)
		}

		if err := vec.Parse(raw); err != nil {
			return models.CreateListingRequest{}, fmt.Errorf("%w: %s: %w", errBadValue, colEmbedding, err)
		}

		req.Embedding = vec.Slice()
	}

	return req, nil
}

func parseOptionalFloat(name, s string) (*float64, error) {
	if s == "" {
		return nil, nil //nolint:nilnil // absent value
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q", errBadValue, name, s)
	}

	return &f, nil
}

// parseDate accepts RFC 3339 timestamps or plain dates. Empty means unset.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}

	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %s %q", errBadValue, colEventDate, s)
}
