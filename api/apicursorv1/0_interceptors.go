package apicursorv1

import (
	"context"

	"github.com/fulldump/box"

	"github.com/fulldump/windowdb/service"
)

type servicerKey struct{}

func SetServicer(ctx context.Context, s service.Servicer) context.Context {
	return context.WithValue(ctx, servicerKey{}, s)
}

func GetServicer(ctx context.Context) service.Servicer {
	return ctx.Value(servicerKey{}).(service.Servicer)
}

func findCursor(ctx context.Context) (*service.Cursor, error) {
	s := GetServicer(ctx)
	return s.GetCursor(box.GetUrlParameter(ctx, "cursorId"))
}
