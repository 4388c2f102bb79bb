package main

import (
	"strings"

	"github.com/fulldump/goconfig"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Test     string `usage:"name of the test: ALL | INSERT | CURSOR"`
	Base     string `usage:"base URL, empty starts a local server"`
	N        int64  `usage:"number of documents"`
	Workers  int    `usage:"number of workers"`
	PageSize int64  `usage:"rows per cursor read"`
}

var cleanups []func()

func main() {

	defer func() {
		logrus.Info("cleaning up")
		for _, cleanup := range cleanups {
			cleanup()
		}
	}()

	c := Config{
		Test:     "ALL",
		Base:     "",
		N:        1_000_000,
		Workers:  16,
		PageSize: 1000,
	}
	goconfig.Read(&c)

	if c.Base == "" {
		start, stop := CreateServer(&c)
		defer stop()
		go start()
	}

	switch strings.ToUpper(c.Test) {
	case "ALL":
		collection := TestInsert(c)
		TestCursor(c, collection)
	case "INSERT":
		TestInsert(c)
	case "CURSOR":
		TestCursor(c, TestInsert(c))
	default:
		logrus.Fatalf("unknown test %s", c.Test)
	}

}
