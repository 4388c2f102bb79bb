package main

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// TestInsert streams N documents with several workers and returns the name
// of the collection.
func TestInsert(c Config) string {

	collection := CreateCollection(c.Base)

	items := c.N

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			case <-time.After(time.Second):
				logrus.WithField("pending", atomic.LoadInt64(&items)).Info("inserting")
			}
		}
	}()

	t0 := time.Now()
	Parallel(c.Workers, func(worker int) {

		r, w := io.Pipe()

		wb := bufio.NewWriterSize(w, 1*1024*1024)

		go func() {
			for {
				n := atomic.AddInt64(&items, -1)
				if n < 0 {
					break
				}
				fmt.Fprintf(wb, "{\"id\":%d,\"n\":\"%d\",\"worker\":%d}\n", n, n, worker)
			}
			wb.Flush()
			w.Close()
		}()

		req, err := http.NewRequest("POST", c.Base+"/v1/collections/"+collection+":insert", r)
		if err != nil {
			logrus.WithError(err).Fatal("new request")
		}

		resp, err := client.Do(req)
		if err != nil {
			logrus.WithError(err).Fatal("do request")
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	})

	took := time.Since(t0)
	logrus.WithField("sent", c.N).
		WithField("took", took.String()).
		WithField("rows_per_sec", fmt.Sprintf("%.2f", float64(c.N)/took.Seconds())).
		Info("insert finished")

	return collection
}
