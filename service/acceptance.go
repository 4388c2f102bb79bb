package service

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/fulldump/apitest"
	"github.com/fulldump/biff"
)

type JSON = map[string]interface{}

func decodeLines(body string) []interface{} {
	result := []interface{}{}
	dec := json.NewDecoder(strings.NewReader(body))
	for {
		var item interface{}
		err := dec.Decode(&item)
		if err == io.EOF {
			return result
		}
		if err != nil {
			panic(err)
		}
		result = append(result, item)
	}
}

// Acceptance runs the HTTP contract against any server built on a Servicer.
func Acceptance(a *biff.A, apiRequest func(method, path string) *apitest.Request) {

	a.Alternative("Create collection", func(a *biff.A) {
		resp := apiRequest("POST", "/collections").
			WithBodyJson(JSON{
				"name": "my-collection",
			}).Do()
		Save(resp, "Create collection", ``)

		biff.AssertEqual(resp.StatusCode, http.StatusCreated)
		body := resp.BodyJson().(JSON)
		biff.AssertEqual(body["name"], "my-collection")
		biff.AssertEqual(body["total"], float64(0))
		biff.AssertEqualJson(body["defaults"], JSON{"id": "uuid()"})

		a.Alternative("Create it again", func(a *biff.A) {
			resp := apiRequest("POST", "/collections").
				WithBodyJson(JSON{
					"name": "my-collection",
				}).Do()
			Save(resp, "Create collection - conflict", ``)

			biff.AssertEqual(resp.StatusCode, http.StatusConflict)
		})

		a.Alternative("Retrieve collection", func(a *biff.A) {
			resp := apiRequest("GET", "/collections/my-collection").Do()
			Save(resp, "Retrieve collection", ``)

			biff.AssertEqual(resp.StatusCode, http.StatusOK)
			body := resp.BodyJson().(JSON)
			biff.AssertEqual(body["name"], "my-collection")
			biff.AssertEqual(body["total"], float64(0))
		})

		a.Alternative("List collections", func(a *biff.A) {
			resp := apiRequest("GET", "/collections").Do()
			Save(resp, "List collections", ``)

			biff.AssertEqual(resp.StatusCode, http.StatusOK)
			list := resp.BodyJson().([]interface{})
			biff.AssertEqual(len(list), 1)
			biff.AssertEqual(list[0].(JSON)["name"], "my-collection")
		})

		a.Alternative("Drop collection", func(a *biff.A) {
			resp := apiRequest("POST", "/collections/my-collection:dropCollection").
				Do()
			Save(resp, "Drop collection", ``)

			biff.AssertEqual(resp.StatusCode, http.StatusNoContent)

			a.Alternative("Get dropped collection", func(a *biff.A) {
				resp := apiRequest("GET", "/collections/my-collection").
					Do()
				Save(resp, "Get collection - not found", ``)

				biff.AssertEqual(resp.StatusCode, http.StatusNotFound)
			})
		})

		a.Alternative("Set defaults", func(a *biff.A) {
			resp := apiRequest("POST", "/collections/my-collection:setDefaults").
				WithBodyJson(JSON{
					"id":      nil,
					"created": "unixnano()",
					"kind":    "person",
				}).Do()
			Save(resp, "Set defaults", `
				Merges the body into the current defaults. A null value removes
				the default.
			`)

			biff.AssertEqual(resp.StatusCode, http.StatusOK)
			biff.AssertEqualJson(resp.BodyJson(), JSON{
				"created": "unixnano()",
				"kind":    "person",
			})

			a.Alternative("Insert with defaults", func(a *biff.A) {
				resp := apiRequest("POST", "/collections/my-collection:insert").
					WithBodyJson(JSON{"name": "Fulanez"}).Do()

				biff.AssertEqual(resp.StatusCode, http.StatusCreated)
				body := resp.BodyJson().(JSON)
				biff.AssertEqual(body["kind"], "person")
				biff.AssertNotNil(body["created"])
				biff.AssertNil(body["id"])
			})
		})
	})

	a.Alternative("Insert one", func(a *biff.A) {
		myDocument := JSON{
			"id":      "my-id",
			"name":    "Fulanez",
			"address": "Elm Street 11",
		}
		resp := apiRequest("POST", "/collections/my-collection:insert").
			WithBodyJson(myDocument).Do()
		Save(resp, "Insert one", `
			Inserting into a missing collection creates it.
		`)

		biff.AssertEqual(resp.StatusCode, http.StatusCreated)
		biff.AssertEqualJson(resp.BodyJson(), myDocument)

		a.Alternative("Insert not an object", func(a *biff.A) {
			resp := apiRequest("POST", "/collections/my-collection:insert").
				WithBodyString(`[1,2,3]`).Do()

			biff.AssertEqual(resp.StatusCode, http.StatusBadRequest)
		})

		a.Alternative("Insert malformed", func(a *biff.A) {
			resp := apiRequest("POST", "/collections/my-collection:insert").
				WithBodyString(`{"name":`).Do()

			biff.AssertEqual(resp.StatusCode, http.StatusBadRequest)
		})
	})

	a.Alternative("Insert many", func(a *biff.A) {

		myDocuments := []JSON{
			{"id": "1", "name": "Alfonso", "n": 1},
			{"id": "2", "name": "Gerardo", "n": 2},
			{"id": "3", "name": "Alfonso", "n": 3},
			{"id": "4", "name": "Ramona", "n": 4},
			{"id": "5", "name": "Alfonso", "n": 5},
		}

		body := ""
		for _, myDocument := range myDocuments {
			myDocument, _ := json.Marshal(myDocument)
			body += string(myDocument) + "\n"
		}
		resp := apiRequest("POST", "/collections/my-collection:insert").
			WithBodyString(body).Do()
		Save(resp, "Insert many", `
			The body is a stream of JSON documents, the response has one line
			per inserted document.
		`)

		biff.AssertEqual(resp.StatusCode, http.StatusCreated)
		biff.AssertEqual(len(decodeLines(resp.BodyString())), len(myDocuments))

		a.Alternative("Remove by filter", func(a *biff.A) {
			resp := apiRequest("POST", "/collections/my-collection:remove").
				WithBodyJson(JSON{
					"filter": JSON{"name": "Alfonso"},
					"limit":  -1,
				}).Do()
			Save(resp, "Remove - by filter", ``)

			biff.AssertEqual(resp.StatusCode, http.StatusOK)
			biff.AssertEqualJson(decodeLines(resp.BodyString()), []JSON{
				myDocuments[0], myDocuments[2], myDocuments[4],
			})

			resp = apiRequest("GET", "/collections/my-collection").Do()
			biff.AssertEqual(resp.BodyJson().(JSON)["total"], float64(2))
		})

		a.Alternative("Remove with skip and limit", func(a *biff.A) {
			resp := apiRequest("POST", "/collections/my-collection:remove").
				WithBodyJson(JSON{
					"skip":  1,
					"limit": 2,
				}).Do()

			biff.AssertEqual(resp.StatusCode, http.StatusOK)
			biff.AssertEqualJson(decodeLines(resp.BodyString()), []JSON{
				myDocuments[1], myDocuments[2],
			})
		})

		a.Alternative("Patch by filter", func(a *biff.A) {
			resp := apiRequest("POST", "/collections/my-collection:patch").
				WithBodyJson(JSON{
					"filter": JSON{"id": "3"},
					"patch": JSON{
						"name":    "Pedro",
						"address": JSON{"city": "Madrid"},
					},
				}).Do()
			Save(resp, "Patch - by filter", `
				Merge patch: objects merge, null removes a key.
			`)

			biff.AssertEqual(resp.StatusCode, http.StatusOK)
			biff.AssertEqualJson(resp.BodyJson(), JSON{
				"id":      "3",
				"name":    "Pedro",
				"n":       3,
				"address": JSON{"city": "Madrid"},
			})
		})

		a.Alternative("Patch without patch", func(a *biff.A) {
			resp := apiRequest("POST", "/collections/my-collection:patch").
				WithBodyJson(JSON{
					"filter": JSON{"id": "3"},
				}).Do()

			biff.AssertEqual(resp.StatusCode, http.StatusBadRequest)
		})

		a.Alternative("Open cursor", func(a *biff.A) {
			resp := apiRequest("POST", "/collections/my-collection:openCursor").
				WithBodyJson(JSON{
					"filter":  JSON{"n": JSON{"$gt": 2}},
					"columns": []string{"id", "n"},
					"policy":  JSON{"initial": 2, "growth": 0},
				}).Do()
			Save(resp, "Open cursor", `
				Opens a windowed cursor over the documents matching the filter.
				Every column is a path evaluated on each document.
			`)

			biff.AssertEqual(resp.StatusCode, http.StatusCreated)
			cursor := resp.BodyJson().(JSON)
			cursorID := cursor["id"].(string)
			biff.AssertEqual(cursor["kind"], KindQuery)
			biff.AssertEqual(cursor["collection"], "my-collection")
			biff.AssertEqualJson(cursor["columns"], []string{"id", "n"})
			biff.AssertEqualJson(cursor["policy"], JSON{"initial": 2, "growth": 0, "max": 2})

			a.Alternative("Read all", func(a *biff.A) {
				resp := apiRequest("POST", "/cursors/"+cursorID+":read").
					WithBodyJson(JSON{"position": 0, "limit": 10}).Do()
				Save(resp, "Read cursor", `
					Reads rows from a position. Rows are arrays with one value
					per column.
				`)

				biff.AssertEqual(resp.StatusCode, http.StatusOK)
				biff.AssertEqualJson(resp.BodyJson(), JSON{
					"position": 0,
					"rows": []interface{}{
						[]interface{}{"3", 3},
						[]interface{}{"4", 4},
						[]interface{}{"5", 5},
					},
					"count": 3,
					"exact": true,
					"eof":   true,
				})
			})

			a.Alternative("Read a page", func(a *biff.A) {
				resp := apiRequest("POST", "/cursors/"+cursorID+":read").
					WithBodyJson(JSON{"position": 1, "limit": 1}).Do()

				biff.AssertEqual(resp.StatusCode, http.StatusOK)
				body := resp.BodyJson().(JSON)
				biff.AssertEqualJson(body["rows"], []interface{}{
					[]interface{}{"4", 4},
				})
				biff.AssertEqual(body["eof"], false)
			})

			a.Alternative("Read past the end", func(a *biff.A) {
				resp := apiRequest("POST", "/cursors/"+cursorID+":read").
					WithBodyJson(JSON{"position": 10}).Do()

				biff.AssertEqual(resp.StatusCode, http.StatusOK)
				body := resp.BodyJson().(JSON)
				biff.AssertEqualJson(body["rows"], []interface{}{})
				biff.AssertEqual(body["eof"], true)
				biff.AssertEqual(body["count"], float64(3))
			})

			a.Alternative("Read negative position", func(a *biff.A) {
				resp := apiRequest("POST", "/cursors/"+cursorID+":read").
					WithBodyJson(JSON{"position": -1}).Do()

				biff.AssertEqual(resp.StatusCode, http.StatusBadRequest)
			})

			a.Alternative("Get cursor", func(a *biff.A) {
				resp := apiRequest("GET", "/cursors/"+cursorID).Do()
				Save(resp, "Get cursor", ``)

				biff.AssertEqual(resp.StatusCode, http.StatusOK)
				body := resp.BodyJson().(JSON)
				biff.AssertEqual(body["id"], cursorID)
				biff.AssertEqual(body["stale"], false)
				biff.AssertEqual(body["closed"], false)
			})

			a.Alternative("List cursors", func(a *biff.A) {
				resp := apiRequest("GET", "/cursors").Do()
				Save(resp, "List cursors", ``)

				biff.AssertEqual(resp.StatusCode, http.StatusOK)
				list := resp.BodyJson().([]interface{})
				biff.AssertEqual(len(list), 1)
				biff.AssertEqual(list[0].(JSON)["id"], cursorID)
			})

			a.Alternative("Stale after insert, then requery", func(a *biff.A) {
				apiRequest("POST", "/cursors/"+cursorID+":read").
					WithBodyJson(JSON{"position": 0}).Do()

				apiRequest("POST", "/collections/my-collection:insert").
					WithBodyJson(JSON{"id": "6", "n": 6}).Do()

				resp := apiRequest("GET", "/cursors/"+cursorID).Do()
				biff.AssertEqual(resp.BodyJson().(JSON)["stale"], true)

				resp = apiRequest("POST", "/cursors/"+cursorID+":requery").Do()
				Save(resp, "Requery cursor", `
					Drops the window and the count, next read sees the current
					documents.
				`)
				biff.AssertEqual(resp.StatusCode, http.StatusOK)
				biff.AssertEqualJson(resp.BodyJson(), JSON{"requeried": true})

				resp = apiRequest("POST", "/cursors/"+cursorID+":read").
					WithBodyJson(JSON{"position": 0}).Do()
				body := resp.BodyJson().(JSON)
				biff.AssertEqual(body["count"], float64(4))
				biff.AssertEqual(body["exact"], true)
			})

			a.Alternative("Wait", func(a *biff.A) {
				resp := apiRequest("POST", "/cursors/"+cursorID+":wait").
					WithBodyJson(JSON{"timeout_ms": 10}).Do()
				Save(resp, "Wait cursor", `
					Blocks until a background fill adds rows or the timeout
					expires.
				`)

				biff.AssertEqual(resp.StatusCode, http.StatusOK)
				body := resp.BodyJson().(JSON)
				biff.AssertNotNil(body["changed"])
			})

			a.Alternative("Close cursor", func(a *biff.A) {
				resp := apiRequest("POST", "/cursors/"+cursorID+":close").Do()
				Save(resp, "Close cursor", ``)

				biff.AssertEqual(resp.StatusCode, http.StatusNoContent)

				resp = apiRequest("GET", "/cursors/"+cursorID).Do()
				biff.AssertEqual(resp.StatusCode, http.StatusNotFound)
			})

			a.Alternative("Drop collection closes its cursors", func(a *biff.A) {
				resp := apiRequest("POST", "/collections/my-collection:dropCollection").Do()
				biff.AssertEqual(resp.StatusCode, http.StatusNoContent)

				resp = apiRequest("GET", "/cursors/"+cursorID).Do()
				biff.AssertEqual(resp.StatusCode, http.StatusNotFound)
			})
		})

		a.Alternative("Open cursor with whole documents", func(a *biff.A) {
			resp := apiRequest("POST", "/collections/my-collection:openCursor").
				WithBodyJson(JSON{
					"filter": JSON{"name": "Ramona"},
				}).Do()

			biff.AssertEqual(resp.StatusCode, http.StatusCreated)
			cursorID := resp.BodyJson().(JSON)["id"].(string)

			resp = apiRequest("POST", "/cursors/"+cursorID+":read").
				WithBodyJson(JSON{"position": 0}).Do()
			biff.AssertEqual(resp.StatusCode, http.StatusOK)
			biff.AssertEqualJson(resp.BodyJson().(JSON)["rows"], []interface{}{
				[]interface{}{myDocuments[3]},
			})
		})

		a.Alternative("Open cursor with invalid policy", func(a *biff.A) {
			resp := apiRequest("POST", "/collections/my-collection:openCursor").
				WithBodyJson(JSON{
					"policy": JSON{"initial": -1},
				}).Do()

			biff.AssertEqual(resp.StatusCode, http.StatusBadRequest)
		})
	})

	a.Alternative("Open cursor on a missing collection", func(a *biff.A) {
		resp := apiRequest("POST", "/collections/nope:openCursor").
			WithBodyJson(JSON{}).Do()

		biff.AssertEqual(resp.StatusCode, http.StatusNotFound)
	})

	a.Alternative("Missing cursor", func(a *biff.A) {
		resp := apiRequest("POST", "/cursors/nope:read").
			WithBodyJson(JSON{"position": 0}).Do()

		biff.AssertEqual(resp.StatusCode, http.StatusNotFound)
	})
}
