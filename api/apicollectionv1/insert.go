package apicollectionv1

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	json2 "github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/sirupsen/logrus"

	"github.com/fulldump/windowdb/service"
)

// insert reads a stream of JSON documents and answers one line per inserted
// document.
func insert(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

	col, err := getOrCreateCollection(ctx)
	if err != nil {
		return err
	}

	decoder := jsontext.NewDecoder(r.Body)

	for i := 0; true; i++ {
		value, err := decoder.ReadValue()
		if err == io.EOF {
			if i == 0 {
				w.WriteHeader(http.StatusNoContent)
			}
			return nil
		}
		if err != nil {
			logrus.WithError(err).WithField("document", i).Warn("insert: bad input")
			return fmt.Errorf("%w: %s", service.ErrorInvalidInput, err.Error())
		}

		item := map[string]any{}
		err = json2.Unmarshal(value, &item)
		if err != nil {
			return fmt.Errorf("%w: document %d is not an object", service.ErrorInvalidInput, i)
		}

		row, err := col.Insert(item)
		if err != nil {
			logrus.WithError(err).WithField("document", i).Error("insert")
			return errors.Join(err, fmt.Errorf("after %d documents", i))
		}

		if i == 0 {
			w.WriteHeader(http.StatusCreated)
		}
		w.Write(row.Payload)
		w.Write([]byte("\n"))
	}

	return nil
}
