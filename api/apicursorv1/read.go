package apicursorv1

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/fulldump/windowdb/service"
	"github.com/fulldump/windowdb/window"
)

const (
	defaultReadLimit = 100
	maxReadLimit     = 10000
)

type readInput struct {
	Position int64 `json:"position"`
	Limit    int64 `json:"limit"`
}

type readResponse struct {
	Position int64             `json:"position"`
	Rows     []json.RawMessage `json:"rows"`
	Count    int64             `json:"count"`
	Exact    bool              `json:"exact"`
	EOF      bool              `json:"eof"`
}

// read returns up to limit rows starting at position. Each row is an array
// with one value per column.
func read(ctx context.Context, input *readInput) (*readResponse, error) {

	c, err := findCursor(ctx)
	if err != nil {
		return nil, err
	}

	if input.Position < 0 {
		return nil, fmt.Errorf("%w: negative position", service.ErrorInvalidInput)
	}
	limit := input.Limit
	if limit <= 0 {
		limit = defaultReadLimit
	}
	if limit > maxReadLimit {
		limit = maxReadLimit
	}

	rawDocuments := c.Kind == service.KindQuery

	result := &readResponse{
		Position: input.Position,
		Rows:     []json.RawMessage{},
	}
	for p := input.Position; p < input.Position+limit; p++ {
		ok, values, err := c.ReadAt(ctx, p)
		if err != nil {
			return nil, err
		}
		if !ok {
			result.EOF = true
			break
		}

		row, err := renderRow(values, rawDocuments)
		if err != nil {
			return nil, err
		}
		result.Rows = append(result.Rows, row)
	}

	result.Count, err = c.Count(ctx)
	if err != nil {
		return nil, err
	}
	result.Exact = c.Exact()
	if result.Exact && input.Position+int64(len(result.Rows)) >= result.Count {
		result.EOF = true
	}

	return result, nil
}

// renderRow encodes the cells as a JSON array. Documents projected from a
// collection keep their JSON form instead of being quoted.
func renderRow(values []window.Value, rawDocuments bool) (json.RawMessage, error) {
	row := []byte(`[]`)
	var err error
	for _, v := range values {
		if rawDocuments && isDocument(v) {
			row, err = sjson.SetRawBytes(row, "-1", v.Bytes)
		} else {
			row, err = sjson.SetBytes(row, "-1", v.Interface())
		}
		if err != nil {
			return nil, err
		}
	}
	return row, nil
}

func isDocument(v window.Value) bool {
	if v.Type != window.FieldString || len(v.Bytes) == 0 {
		return false
	}
	if v.Bytes[0] != '{' && v.Bytes[0] != '[' {
		return false
	}
	return gjson.ValidBytes(v.Bytes)
}
