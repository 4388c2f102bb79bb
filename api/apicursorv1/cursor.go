package apicursorv1

import (
	"context"
	"net/http"
	"time"

	"github.com/fulldump/windowdb/cursor"
	"github.com/fulldump/windowdb/service"
)

type PolicyResponse struct {
	Initial int64 `json:"initial"`
	Growth  int64 `json:"growth"`
	Max     int64 `json:"max"`
}

type CursorResponse struct {
	ID         string            `json:"id"`
	Kind       string            `json:"kind"`
	Collection string            `json:"collection,omitempty"`
	Columns    []string          `json:"columns"`
	Policy     PolicyResponse    `json:"policy"`
	Window     cursor.WindowInfo `json:"window"`
	Stats      cursor.Stats      `json:"stats"`
	Stale      bool              `json:"stale"`
	Closed     bool              `json:"closed"`
	Error      string            `json:"error,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// NewCursorResponse describes a cursor without touching its source.
func NewCursorResponse(c *service.Cursor) *CursorResponse {
	p := c.Policy()
	result := &CursorResponse{
		ID:         c.ID(),
		Kind:       c.Kind,
		Collection: c.Collection,
		Columns:    c.ColumnNames(),
		Policy: PolicyResponse{
			Initial: p.Initial(),
			Growth:  p.Growth(),
			Max:     p.Max(),
		},
		Window:    c.Window(),
		Stats:     c.Stats(),
		Stale:     c.Stale(),
		Closed:    c.Closed(),
		CreatedAt: c.CreatedAt,
	}
	if err := c.Err(); err != nil {
		result.Error = err.Error()
	}
	return result
}

func getCursor(ctx context.Context) (*CursorResponse, error) {
	c, err := findCursor(ctx)
	if err != nil {
		return nil, err
	}
	return NewCursorResponse(c), nil
}

func listCursors(ctx context.Context) []*CursorResponse {
	result := []*CursorResponse{}
	for _, c := range GetServicer(ctx).ListCursors() {
		result = append(result, NewCursorResponse(c))
	}
	return result
}

func closeCursor(ctx context.Context, w http.ResponseWriter) error {
	s := GetServicer(ctx)
	c, err := findCursor(ctx)
	if err != nil {
		return err
	}

	err = s.CloseCursor(c.ID())
	if err != nil {
		return err
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

type requeryResponse struct {
	Requeried bool `json:"requeried"`
}

func requery(ctx context.Context) (*requeryResponse, error) {
	c, err := findCursor(ctx)
	if err != nil {
		return nil, err
	}

	ok, err := c.Requery(ctx)
	if err != nil {
		return nil, err
	}
	return &requeryResponse{Requeried: ok}, nil
}

func openSQLCursor(ctx context.Context, w http.ResponseWriter, input *service.OpenSQLCursorOptions) (*CursorResponse, error) {
	s := GetServicer(ctx)

	c, err := s.OpenSQLCursor(ctx, *input)
	if err != nil {
		return nil, err
	}

	w.WriteHeader(http.StatusCreated)
	return NewCursorResponse(c), nil
}
