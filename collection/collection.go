package collection

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"sync"
	"sync/atomic"
	"time"

	json2 "github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/google/uuid"
)

var (
	ErrCollectionClosed = errors.New("collection is closed")
	ErrRowNotFound      = errors.New("row not found")
)

// Collection is an in-memory set of JSON documents persisted as an append
// only command log.
type Collection struct {
	Filename string
	file     *os.File
	rows     *container
	mutex    *sync.RWMutex
	defaults map[string]any
	maxID    int64
	auto     atomic.Int64
	version  atomic.Int64
}

func OpenCollection(filename string) (*Collection, error) {
	c := &Collection{
		Filename: filename,
		rows:     newContainer(),
		mutex:    &sync.RWMutex{},
	}

	if err := c.load(); err != nil {
		return nil, fmt.Errorf("load collection: %w", err)
	}

	// todo: investigate O_SYNC
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0666)
	if err != nil {
		return nil, fmt.Errorf("open file for write: %w", err)
	}
	c.file = f

	return c, nil
}

func (c *Collection) load() error {
	f, err := os.Open(c.Filename)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open file for read: %w", err)
	}
	defer f.Close()

	return readCommands(f, func(command *Command) error {
		switch command.Name {
		case "insert":
			c.addRow(command.Payload)
			c.auto.Add(1)
		case "remove":
			params := removeCommand{}
			if err := json2.Unmarshal(command.Payload, &params); err != nil {
				return fmt.Errorf("decode remove: %w", err)
			}
			c.removeByID(params.I)
		case "patch":
			params := patchCommand{}
			if err := json2.Unmarshal(command.Payload, &params); err != nil {
				return fmt.Errorf("decode patch: %w", err)
			}
			if _, err := c.patchByID(params.I, params.Diff); err != nil && !errors.Is(err, ErrRowNotFound) {
				return err
			}
		case "set_defaults":
			defaults := map[string]any{}
			if err := json2.Unmarshal(command.Payload, &defaults); err != nil {
				return fmt.Errorf("decode defaults: %w", err)
			}
			c.defaults = defaults
		}
		return nil
	})
}

func (c *Collection) persist(name string, payload any) error {
	command, err := newCommand(name, payload)
	if err != nil {
		return err
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.file == nil {
		return ErrCollectionClosed
	}
	return writeCommand(c.file, command)
}

func (c *Collection) addRow(payload []byte) *Row {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.maxID++
	row := &Row{I: c.maxID, Payload: payload}
	c.rows.ReplaceOrInsert(row)
	c.version.Add(1)
	return row
}

func (c *Collection) Insert(item map[string]any) (*Row, error) {
	if c.Closed() {
		return nil, ErrCollectionClosed
	}

	auto := c.auto.Add(1)

	c.mutex.RLock()
	defaults := c.defaults
	c.mutex.RUnlock()

	for k, v := range defaults {
		if item[k] != nil {
			continue
		}
		switch v {
		case "uuid()":
			item[k] = uuid.NewString()
		case "unixnano()":
			item[k] = time.Now().UnixNano()
		case "auto()":
			item[k] = auto
		default:
			item[k] = v
		}
	}

	payload, err := json2.Marshal(item, json2.Deterministic(true))
	if err != nil {
		return nil, fmt.Errorf("json encode payload: %w", err)
	}

	// The log and the container must agree on ids, so both happen under
	// the same lock.
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.file == nil {
		return nil, ErrCollectionClosed
	}
	command, err := newCommand("insert", jsontext.Value(payload))
	if err != nil {
		return nil, err
	}
	if err := writeCommand(c.file, command); err != nil {
		return nil, fmt.Errorf("persist insert: %w", err)
	}
	c.maxID++
	row := &Row{I: c.maxID, Payload: payload}
	c.rows.ReplaceOrInsert(row)
	c.version.Add(1)

	return &Row{I: row.I, Payload: row.Payload}, nil
}

func (c *Collection) removeByID(id int64) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, ok := c.rows.Delete(id)
	if ok {
		c.version.Add(1)
	}
	return ok
}

func (c *Collection) Remove(row *Row) error {
	if !c.removeByID(row.I) {
		return fmt.Errorf("%w: %d", ErrRowNotFound, row.I)
	}
	return c.persist("remove", removeCommand{I: row.I})
}

func (c *Collection) patchByID(id int64, patch map[string]any) (bool, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	row, ok := c.rows.Get(id)
	if !ok {
		return false, fmt.Errorf("%w: %d", ErrRowNotFound, id)
	}

	payload, changed, err := mergePatch(row.Payload, patch)
	if err != nil {
		return false, fmt.Errorf("cannot apply patch: %w", err)
	}
	if !changed {
		return false, nil
	}

	c.rows.ReplaceOrInsert(&Row{I: id, Payload: payload})
	c.version.Add(1)
	return true, nil
}

// Patch merges `patch` into the document of row.
func (c *Collection) Patch(row *Row, patch map[string]any) error {
	changed, err := c.patchByID(row.I, patch)
	if err != nil || !changed {
		return err
	}
	return c.persist("patch", patchCommand{I: row.I, Diff: patch})
}

// Get returns a copy of the row with the given id.
func (c *Collection) Get(id int64) (*Row, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	row, ok := c.rows.Get(id)
	if !ok {
		return nil, false
	}
	return &Row{I: row.I, Payload: row.Payload}, true
}

func (c *Collection) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.rows.Len()
}

// Traverse visits the rows in id order while holding the read lock. The
// callback must not modify the collection.
func (c *Collection) Traverse(f func(row *Row) bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	c.rows.Traverse(func(row *Row) bool {
		return f(&Row{I: row.I, Payload: row.Payload})
	})
}

// Snapshot copies every row in id order. Later mutations are not reflected.
func (c *Collection) Snapshot() []Row {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	rows := make([]Row, 0, c.rows.Len())
	c.rows.Traverse(func(row *Row) bool {
		rows = append(rows, Row{I: row.I, Payload: row.Payload})
		return true
	})
	return rows
}

// Version changes on every mutation.
func (c *Collection) Version() int64 {
	return c.version.Load()
}

// Defaults returns a copy of the defaults, nil when there are none.
func (c *Collection) Defaults() map[string]any {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if c.defaults == nil {
		return nil
	}
	return maps.Clone(c.defaults)
}

func (c *Collection) SetDefaults(defaults map[string]any) error {
	c.mutex.Lock()
	c.defaults = defaults
	c.mutex.Unlock()

	return c.persist("set_defaults", defaults)
}

func (c *Collection) Closed() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.file == nil
}

func (c *Collection) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.file == nil {
		return nil
	}
	err := c.file.Close()
	c.file = nil
	return err
}

// Drop closes the collection and deletes its command log.
func (c *Collection) Drop() error {
	if err := c.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}

	c.mutex.Lock()
	c.rows.Clear()
	c.version.Add(1)
	c.mutex.Unlock()

	if err := os.Remove(c.Filename); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove: %w", err)
	}
	return nil
}
