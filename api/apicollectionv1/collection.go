package apicollectionv1

import (
	"context"

	"github.com/fulldump/box"

	"github.com/fulldump/windowdb/collection"
)

type CollectionResponse struct {
	Name     string         `json:"name"`
	Total    int            `json:"total"`
	Version  int64          `json:"version"`
	Defaults map[string]any `json:"defaults"`
}

func newCollectionResponse(name string, col *collection.Collection) *CollectionResponse {
	return &CollectionResponse{
		Name:     name,
		Total:    col.Len(),
		Version:  col.Version(),
		Defaults: col.Defaults(),
	}
}

func newCollectionDefaults() map[string]any {
	return map[string]any{
		"id": "uuid()",
	}
}

// getOrCreateCollection creates missing collections with the default
// defaults, so the first insert into a new name just works.
func getOrCreateCollection(ctx context.Context) (*collection.Collection, error) {
	s := GetServicer(ctx)
	collectionName := box.GetUrlParameter(ctx, "collectionName")

	col, err := s.GetCollection(collectionName)
	if err == nil {
		return col, nil
	}

	col, err = s.CreateCollection(collectionName)
	if err != nil {
		return nil, err
	}
	err = col.SetDefaults(newCollectionDefaults())
	if err != nil {
		return nil, err
	}
	return col, nil
}
