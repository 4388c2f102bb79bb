package apicollectionv1

import (
	"github.com/fulldump/box"
)

func BuildV1Collection(v1 *box.R) *box.R {

	collections := v1.Resource("/collections").
		WithActions(
			box.Get(listCollections).WithName("listCollections"),
			box.Post(createCollection).WithName("createCollection"),
		)

	v1.Resource("/collections/{collectionName}").
		WithActions(
			box.Get(getCollection).WithName("getCollection"),
			box.ActionPost(insert).WithName("insert"),
			box.ActionPost(remove).WithName("remove"),
			box.ActionPost(patch).WithName("patch"),
			box.ActionPost(setDefaults).WithName("setDefaults"),
			box.ActionPost(dropCollection).WithName("dropCollection"),
			box.ActionPost(openCursor).WithName("openCursor"),
		)

	return collections
}
