package apicollectionv1

import (
	"context"
	"net/http"

	"github.com/fulldump/box"

	"github.com/fulldump/windowdb/api/apicursorv1"
	"github.com/fulldump/windowdb/service"
)

func openCursor(ctx context.Context, w http.ResponseWriter, input *service.OpenCursorOptions) (*apicursorv1.CursorResponse, error) {

	s := GetServicer(ctx)
	collectionName := box.GetUrlParameter(ctx, "collectionName")

	c, err := s.OpenCursor(collectionName, *input)
	if err != nil {
		return nil, err
	}

	w.WriteHeader(http.StatusCreated)
	return apicursorv1.NewCursorResponse(c), nil
}
