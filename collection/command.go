package collection

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	json2 "github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/google/uuid"
)

type Command struct {
	Name      string         `json:"name"`
	Uuid      string         `json:"uuid"`
	Timestamp int64          `json:"timestamp"`
	StartByte int64          `json:"start_byte"`
	Payload   jsontext.Value `json:"payload"`
}

type removeCommand struct {
	I int64 `json:"i"`
}

type patchCommand struct {
	I    int64          `json:"i"`
	Diff map[string]any `json:"diff"`
}

func newCommand(name string, payload any) (*Command, error) {
	raw, err := json2.Marshal(payload, json2.Deterministic(true))
	if err != nil {
		return nil, fmt.Errorf("json encode payload: %w", err)
	}
	return &Command{
		Name:      name,
		Uuid:      uuid.New().String(),
		Timestamp: time.Now().UnixNano(),
		Payload:   raw,
	}, nil
}

// readCommands decodes the newline delimited command log, calling f for
// every command in order.
func readCommands(r io.Reader, f func(command *Command) error) error {
	decoder := jsontext.NewDecoder(bufio.NewReaderSize(r, 1024*1024))
	for {
		value, err := decoder.ReadValue()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("decode command at byte %d: %w", decoder.InputOffset(), err)
		}

		command := &Command{}
		if err := json2.Unmarshal(value, command); err != nil {
			return fmt.Errorf("decode command: %w", err)
		}
		command.Payload = bytes.Clone(command.Payload)

		if err := f(command); err != nil {
			return err
		}
	}
}

func writeCommand(w *os.File, command *Command) error {
	raw, err := json2.Marshal(command)
	if err != nil {
		return fmt.Errorf("json encode command: %w", err)
	}
	raw = append(raw, '\n')
	_, err = w.Write(raw)
	return err
}
