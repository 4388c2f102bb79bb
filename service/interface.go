package service

import (
	"context"
	"errors"

	"github.com/fulldump/windowdb/collection"
)

var (
	ErrorCollectionNotFound      = errors.New("collection not found")
	ErrorCollectionAlreadyExists = errors.New("collection already exists")
	ErrorCursorNotFound          = errors.New("cursor not found")
	ErrorSQLDisabled             = errors.New("sql cursors are disabled")
	ErrorInvalidInput            = errors.New("invalid input")
)

type Servicer interface {
	CreateCollection(name string) (*collection.Collection, error)
	GetCollection(name string) (*collection.Collection, error)
	ListCollections() map[string]*collection.Collection
	DeleteCollection(name string) error

	OpenCursor(collectionName string, options OpenCursorOptions) (*Cursor, error)
	OpenSQLCursor(ctx context.Context, options OpenSQLCursorOptions) (*Cursor, error)
	GetCursor(id string) (*Cursor, error)
	ListCursors() []*Cursor
	CloseCursor(id string) error
}
