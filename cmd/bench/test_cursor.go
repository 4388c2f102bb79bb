package main

import (
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

type cursorResponse struct {
	ID string `json:"id"`
}

type readResponse struct {
	Rows  []any `json:"rows"`
	Count int64 `json:"count"`
	Exact bool  `json:"exact"`
	EOF   bool  `json:"eof"`
}

// TestCursor pages sequentially through one cursor and then reads random
// pages from several workers, each with its own cursor.
func TestCursor(c Config, collection string) {

	open := func() string {
		cur := cursorResponse{}
		err := Post(c.Base+"/v1/collections/"+collection+":openCursor", JSON{
			"columns": []string{"id", "n"},
		}, &cur)
		if err != nil {
			logrus.WithError(err).Fatal("open cursor")
		}
		return cur.ID
	}

	read := func(id string, position int64) readResponse {
		page := readResponse{}
		err := Post(c.Base+"/v1/cursors/"+id+":read", JSON{
			"position": position,
			"limit":    c.PageSize,
		}, &page)
		if err != nil {
			logrus.WithError(err).Fatal("read cursor")
		}
		return page
	}

	// Sequential scan
	id := open()
	t0 := time.Now()
	rows := int64(0)
	for {
		page := read(id, rows)
		rows += int64(len(page.Rows))
		if page.EOF || len(page.Rows) == 0 {
			break
		}
	}
	took := time.Since(t0)
	logrus.WithField("rows", rows).
		WithField("took", took.String()).
		WithField("rows_per_sec", fmt.Sprintf("%.2f", float64(rows)/took.Seconds())).
		Info("sequential scan finished")

	if rows == 0 {
		return
	}

	// Random pages
	reads := int64(0)
	t0 = time.Now()
	Parallel(c.Workers, func(worker int) {
		id := open()
		r := rand.New(rand.NewSource(int64(worker)))
		for i := 0; i < 100; i++ {
			read(id, r.Int63n(rows))
			atomic.AddInt64(&reads, 1)
		}
		Post(c.Base+"/v1/cursors/"+id+":close", JSON{}, nil)
	})
	took = time.Since(t0)
	logrus.WithField("reads", reads).
		WithField("took", took.String()).
		WithField("reads_per_sec", fmt.Sprintf("%.2f", float64(reads)/took.Seconds())).
		Info("random reads finished")
}
