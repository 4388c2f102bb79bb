package apicollectionv1

import (
	"context"
	"errors"
	"net/http"

	"github.com/fulldump/box"

	"github.com/fulldump/windowdb/collection"
)

func remove(ctx context.Context, w http.ResponseWriter, input *traverseOptions) error {

	s := GetServicer(ctx)
	collectionName := box.GetUrlParameter(ctx, "collectionName")
	col, err := s.GetCollection(collectionName)
	if err != nil {
		return err
	}

	rows, err := collectRows(col, *input)
	if err != nil {
		return err
	}

	for _, row := range rows {
		err := col.Remove(row)
		if errors.Is(err, collection.ErrRowNotFound) {
			// removed by someone else meanwhile
			continue
		}
		if err != nil {
			return err
		}

		w.Write(row.Payload)
		w.Write([]byte("\n"))
	}

	return nil
}
