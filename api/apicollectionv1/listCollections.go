package apicollectionv1

import (
	"context"
	"sort"
)

func listCollections(ctx context.Context) []*CollectionResponse {

	s := GetServicer(ctx)

	result := []*CollectionResponse{}
	for name, col := range s.ListCollections() {
		result = append(result, newCollectionResponse(name, col))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})

	return result
}
