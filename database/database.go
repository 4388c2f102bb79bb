package database

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fulldump/windowdb/collection"
)

const (
	StatusOpening   = "opening"
	StatusOperating = "operating"
	StatusClosing   = "closing"
)

var (
	ErrCollectionNotFound      = errors.New("collection not found")
	ErrCollectionAlreadyExists = errors.New("collection already exists")
	ErrInvalidName             = errors.New("invalid collection name")
)

type Config struct {
	Dir    string
	Logger *logrus.Entry
}

type Database struct {
	Config      *Config
	log         *logrus.Entry
	status      string
	statusMutex sync.RWMutex
	collections map[string]*collection.Collection
	mutex       sync.RWMutex
	exit        chan struct{}
	exitOnce    sync.Once
}

func NewDatabase(config *Config) *Database {
	l := config.Logger
	if l == nil {
		l = logrus.NewEntry(logrus.StandardLogger())
	}

	return &Database{
		Config:      config,
		log:         l.WithField("component", "database"),
		status:      StatusOpening,
		collections: map[string]*collection.Collection{},
		exit:        make(chan struct{}),
	}
}

func (db *Database) GetStatus() string {
	db.statusMutex.RLock()
	defer db.statusMutex.RUnlock()
	return db.status
}

func (db *Database) setStatus(status string) {
	db.statusMutex.Lock()
	db.status = status
	db.statusMutex.Unlock()
}

func (db *Database) CreateCollection(name string) (*collection.Collection, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	db.mutex.Lock()
	defer db.mutex.Unlock()

	if _, exists := db.collections[name]; exists {
		return nil, fmt.Errorf("%w: '%s'", ErrCollectionAlreadyExists, name)
	}

	col, err := collection.OpenCollection(path.Join(db.Config.Dir, name))
	if err != nil {
		return nil, err
	}
	db.collections[name] = col
	db.log.WithField("collection", name).Info("collection created")

	return col, nil
}

func (db *Database) GetCollection(name string) (*collection.Collection, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	col, exists := db.collections[name]
	if !exists {
		return nil, fmt.Errorf("%w: '%s'", ErrCollectionNotFound, name)
	}
	return col, nil
}

// ListCollections returns the collections sorted by name.
func (db *Database) ListCollections() []string {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	names := make([]string, 0, len(db.collections))
	for name := range db.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (db *Database) DropCollection(name string) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	col, exists := db.collections[name]
	if !exists {
		return fmt.Errorf("%w: '%s'", ErrCollectionNotFound, name)
	}
	delete(db.collections, name)

	if err := col.Drop(); err != nil {
		return fmt.Errorf("drop collection '%s': %w", name, err)
	}
	db.log.WithField("collection", name).Info("collection dropped")
	return nil
}

func validateName(name string) error {
	if name == "" || strings.Contains(name, "..") || strings.HasPrefix(name, "/") {
		return fmt.Errorf("%w '%s'", ErrInvalidName, name)
	}
	return nil
}

func (db *Database) Load() error {
	dir := db.Config.Dir
	db.log.WithField("dir", dir).Info("loading database")

	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return err
	}
	err = filepath.WalkDir(dir, func(filename string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		name := filename
		name = strings.TrimPrefix(name, dir)
		name = strings.TrimPrefix(name, "/")

		t0 := time.Now()
		col, err := collection.OpenCollection(filename)
		if err != nil {
			db.log.WithField("collection", name).WithError(err).Error("open collection")
			return err
		}
		db.log.WithField("collection", name).
			WithField("rows", col.Len()).
			WithField("took", time.Since(t0).String()).
			Info("collection loaded")

		db.mutex.Lock()
		db.collections[name] = col
		db.mutex.Unlock()

		return nil
	})

	if err != nil {
		db.setStatus(StatusClosing)
		return err
	}

	db.setStatus(StatusOperating)
	return nil
}

func (db *Database) Start() error {
	go func() {
		if err := db.Load(); err != nil {
			db.log.WithError(err).Error("load database")
		}
	}()

	<-db.exit

	return nil
}

func (db *Database) Stop() error {
	defer db.exitOnce.Do(func() { close(db.exit) })

	db.setStatus(StatusClosing)

	db.mutex.Lock()
	defer db.mutex.Unlock()

	var lastErr error
	for name, col := range db.collections {
		db.log.WithField("collection", name).Info("closing collection")
		err := col.Close()
		if err != nil {
			db.log.WithField("collection", name).WithError(err).Error("close collection")
			lastErr = err
		}
	}

	return lastErr
}
