package service

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fulldump/windowdb/collection"
	"github.com/fulldump/windowdb/database"
	"github.com/fulldump/windowdb/window"
)

type Config struct {
	// Policy of cursors that do not ask for their own, DefaultPolicy when zero
	Policy         window.Policy
	WindowMaxBytes int64
	// SQL serves SQL cursors, nil disables them
	SQL         *sql.DB
	IdleTimeout time.Duration
	Logger      *logrus.Entry
}

type Service struct {
	db     *database.Database
	config Config
	log    *logrus.Entry

	cursorsMutex sync.Mutex
	cursors      map[string]*Cursor
}

func NewService(db *database.Database) *Service {
	return NewServiceWithConfig(db, Config{})
}

func NewServiceWithConfig(db *database.Database, config Config) *Service {
	if config.Policy.IsZero() {
		config.Policy = window.DefaultPolicy()
	}
	l := config.Logger
	if l == nil {
		l = logrus.NewEntry(logrus.StandardLogger())
	}

	return &Service{
		db:      db,
		config:  config,
		log:     l.WithField("component", "service"),
		cursors: map[string]*Cursor{},
	}
}

func (s *Service) CreateCollection(name string) (*collection.Collection, error) {
	col, err := s.db.CreateCollection(name)
	if errors.Is(err, database.ErrCollectionAlreadyExists) {
		return nil, ErrorCollectionAlreadyExists
	}
	if errors.Is(err, database.ErrInvalidName) {
		return nil, fmt.Errorf("%w: %s", ErrorInvalidInput, err.Error())
	}
	return col, err
}

func (s *Service) GetCollection(name string) (*collection.Collection, error) {
	col, err := s.db.GetCollection(name)
	if errors.Is(err, database.ErrCollectionNotFound) {
		return nil, ErrorCollectionNotFound
	}
	return col, err
}

func (s *Service) ListCollections() map[string]*collection.Collection {
	result := map[string]*collection.Collection{}
	for _, name := range s.db.ListCollections() {
		col, err := s.db.GetCollection(name)
		if err != nil {
			continue // dropped meanwhile
		}
		result[name] = col
	}
	return result
}

// DeleteCollection drops the collection and closes every cursor reading it.
func (s *Service) DeleteCollection(name string) error {
	err := s.db.DropCollection(name)
	if errors.Is(err, database.ErrCollectionNotFound) {
		return ErrorCollectionNotFound
	}
	if err != nil {
		return err
	}

	for _, c := range s.ListCursors() {
		if c.Collection == name {
			s.CloseCursor(c.ID())
		}
	}
	return nil
}
