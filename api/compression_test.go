package api

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fulldump/box"
	"github.com/fulldump/biff"

	"github.com/fulldump/windowdb/database"
	"github.com/fulldump/windowdb/service"
)

func TestCompression(t *testing.T) {

	db := database.NewDatabase(&database.Config{
		Dir: t.TempDir(),
	})
	s := service.NewService(db)

	b := Build(s, "compressed", "", "")
	b.WithInterceptors(Compression)

	server := httptest.NewServer(box.Box2Http(b))
	defer server.Close()

	req, err := http.NewRequest("GET", server.URL+"/release", nil)
	biff.AssertNil(err)
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := (&http.Transport{DisableCompression: true}).RoundTrip(req)
	biff.AssertNil(err)
	defer resp.Body.Close()

	biff.AssertEqual(resp.Header.Get("Content-Encoding"), "gzip")

	gz, err := gzip.NewReader(resp.Body)
	biff.AssertNil(err)
	body, err := io.ReadAll(gz)
	biff.AssertNil(err)
	biff.AssertEqual(string(body), "\"compressed\"\n")
}
