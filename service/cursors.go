package service

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/fulldump/windowdb/cursor"
	"github.com/fulldump/windowdb/source"
	"github.com/fulldump/windowdb/window"
)

const (
	KindQuery = "query"
	KindSQL   = "sql"
)

// PolicyOptions overrides the default window policy. Missing fields take the
// default value. Growth 0 disables the background fill and, without an
// explicit Max, caps the window at Initial.
type PolicyOptions struct {
	Initial int64  `json:"initial"`
	Growth  *int64 `json:"growth"`
	Max     *int64 `json:"max"`
}

func (p *PolicyOptions) Policy(defaults window.Policy) (window.Policy, error) {
	if p == nil {
		return defaults, nil
	}
	initial, growth, max := defaults.Initial(), defaults.Growth(), defaults.Max()
	if p.Initial != 0 {
		initial = p.Initial
	}
	if p.Growth != nil {
		growth = *p.Growth
	}
	if p.Max != nil {
		max = *p.Max
	}
	if p.Max == nil && (growth == 0 || (max != window.Unbounded && max < initial)) {
		max = initial
	}
	return window.CustomPolicy(initial, growth, max)
}

type OpenCursorOptions struct {
	source.QueryOptions
	Policy *PolicyOptions `json:"policy"`
}

type OpenSQLCursorOptions struct {
	Query  string         `json:"query"`
	Args   []any          `json:"args"`
	Policy *PolicyOptions `json:"policy"`
}

// Cursor is a registered cursor.
type Cursor struct {
	*cursor.Cursor
	Kind       string
	Collection string
	Query      *source.Query
	CreatedAt  time.Time
	lastUsed   atomic.Int64
}

func (c *Cursor) touch() {
	c.lastUsed.Store(time.Now().UnixNano())
}

func (c *Cursor) LastUsed() time.Time {
	return time.Unix(0, c.lastUsed.Load())
}

// Stale reports whether the collection changed after the cursor read it.
func (c *Cursor) Stale() bool {
	return c.Query != nil && c.Query.Stale()
}

func (s *Service) newCursor(kind string, src cursor.RowSource, policy *PolicyOptions) (*Cursor, error) {
	p, err := policy.Policy(s.config.Policy)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	cur, err := cursor.New(src,
		cursor.WithID(id),
		cursor.WithPolicy(p),
		cursor.WithMaxBytes(s.config.WindowMaxBytes),
		cursor.WithLogger(s.log.WithField("kind", kind)),
	)
	if err != nil {
		return nil, err
	}

	c := &Cursor{
		Cursor:    cur,
		Kind:      kind,
		CreatedAt: time.Now(),
	}
	c.touch()
	return c, nil
}

func (s *Service) register(c *Cursor) {
	s.cursorsMutex.Lock()
	s.cursors[c.ID()] = c
	s.cursorsMutex.Unlock()

	s.log.WithField("cursor", c.ID()).
		WithField("kind", c.Kind).
		WithField("policy", c.Policy().String()).
		Debug("cursor opened")
}

func (s *Service) OpenCursor(collectionName string, options OpenCursorOptions) (*Cursor, error) {
	col, err := s.GetCollection(collectionName)
	if err != nil {
		return nil, err
	}

	q, err := source.NewQuery(col, options.QueryOptions)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrorInvalidInput, err.Error())
	}

	c, err := s.newCursor(KindQuery, q, options.Policy)
	if err != nil {
		return nil, err
	}
	c.Collection = collectionName
	c.Query = q

	s.register(c)
	return c, nil
}

func (s *Service) OpenSQLCursor(ctx context.Context, options OpenSQLCursorOptions) (*Cursor, error) {
	if s.config.SQL == nil {
		return nil, ErrorSQLDisabled
	}
	if options.Query == "" {
		return nil, fmt.Errorf("%w: empty query", ErrorInvalidInput)
	}

	src, err := source.NewSQL(ctx, s.config.SQL, options.Query, options.Args...)
	if err != nil {
		return nil, err
	}

	c, err := s.newCursor(KindSQL, src, options.Policy)
	if err != nil {
		src.Close()
		return nil, err
	}

	s.register(c)
	return c, nil
}

func (s *Service) GetCursor(id string) (*Cursor, error) {
	s.cursorsMutex.Lock()
	c, ok := s.cursors[id]
	s.cursorsMutex.Unlock()

	if !ok {
		return nil, ErrorCursorNotFound
	}
	c.touch()
	return c, nil
}

// ListCursors returns the open cursors, oldest first.
func (s *Service) ListCursors() []*Cursor {
	s.cursorsMutex.Lock()
	result := make([]*Cursor, 0, len(s.cursors))
	for _, c := range s.cursors {
		result = append(result, c)
	}
	s.cursorsMutex.Unlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

func (s *Service) CloseCursor(id string) error {
	s.cursorsMutex.Lock()
	c, ok := s.cursors[id]
	delete(s.cursors, id)
	s.cursorsMutex.Unlock()

	if !ok {
		return ErrorCursorNotFound
	}

	s.log.WithField("cursor", id).Debug("cursor closed")
	return c.Close()
}

// CloseAll closes every cursor and waits for their background fills.
func (s *Service) CloseAll() {
	for _, c := range s.ListCursors() {
		s.CloseCursor(c.ID())
		c.Wait()
	}
}

// CloseIdle closes the cursors not used since before `deadline`.
func (s *Service) CloseIdle(deadline time.Time) int {
	closed := 0
	for _, c := range s.ListCursors() {
		if c.LastUsed().Before(deadline) {
			if s.CloseCursor(c.ID()) == nil {
				closed++
			}
		}
	}
	if closed > 0 {
		s.log.WithField("cursors", closed).Info("idle cursors closed")
	}
	return closed
}

// RunJanitor closes idle cursors until ctx is done. It returns at once when
// no idle timeout is configured.
func (s *Service) RunJanitor(ctx context.Context) {
	timeout := s.config.IdleTimeout
	if timeout <= 0 {
		return
	}

	interval := timeout / 2
	if interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.CloseIdle(now.Add(-timeout))
		}
	}
}
