package apicollectionv1

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/fulldump/box"

	"github.com/fulldump/windowdb/collection"
	"github.com/fulldump/windowdb/service"
)

type patchInput struct {
	traverseOptions
	Patch map[string]any `json:"patch"`
}

func patch(ctx context.Context, w http.ResponseWriter, input *patchInput) error {

	s := GetServicer(ctx)
	collectionName := box.GetUrlParameter(ctx, "collectionName")
	col, err := s.GetCollection(collectionName)
	if err != nil {
		return err
	}

	if len(input.Patch) == 0 {
		return fmt.Errorf("%w: empty patch", service.ErrorInvalidInput)
	}

	rows, err := collectRows(col, input.traverseOptions)
	if err != nil {
		return err
	}

	for _, row := range rows {
		err := col.Patch(row, input.Patch)
		if errors.Is(err, collection.ErrRowNotFound) {
			continue
		}
		if err != nil {
			return err
		}

		patched, ok := col.Get(row.I)
		if !ok {
			continue
		}
		w.Write(patched.Payload)
		w.Write([]byte("\n"))
	}

	return nil
}
