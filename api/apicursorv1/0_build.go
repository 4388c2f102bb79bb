package apicursorv1

import (
	"github.com/fulldump/box"
)

func BuildV1Cursor(v1 *box.R) *box.R {

	cursors := v1.Resource("/cursors").
		WithActions(
			box.Get(listCursors).WithName("listCursors"),
		)

	v1.Resource("/cursors/{cursorId}").
		WithActions(
			box.Get(getCursor).WithName("getCursor"),
			box.ActionPost(read).WithName("read"),
			box.ActionPost(wait).WithName("wait"),
			box.ActionPost(requery).WithName("requery"),
			box.ActionPost(closeCursor).WithName("close"),
		)

	v1.Resource("/sql").
		WithActions(
			box.ActionPost(openSQLCursor).WithName("openCursor"),
		)

	return cursors
}
