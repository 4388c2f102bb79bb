package bootstrap

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/fulldump/box"
	"github.com/sirupsen/logrus"

	"github.com/fulldump/windowdb/api"
	"github.com/fulldump/windowdb/configuration"
	"github.com/fulldump/windowdb/database"
	"github.com/fulldump/windowdb/service"
)

var VERSION = "dev"

func Bootstrap(c *configuration.Configuration) (start, stop func(), err error) {

	l, err := NewLogger(c.LogLevel, c.LogFormat)
	if err != nil {
		return nil, nil, err
	}
	log := logrus.NewEntry(l)

	policy, err := c.Policy()
	if err != nil {
		return nil, nil, err
	}

	db := database.NewDatabase(&database.Config{
		Dir:    c.Dir,
		Logger: log,
	})

	var sqlDB *sql.DB
	if c.SqlDriver != "" {
		sqlDB, err = sql.Open(c.SqlDriver, c.SqlDsn)
		if err != nil {
			return nil, nil, fmt.Errorf("open sql %s: %w", c.SqlDriver, err)
		}
		log.WithField("driver", c.SqlDriver).Info("SQL cursors enabled")
	}

	s := service.NewServiceWithConfig(db, service.Config{
		Policy:         policy,
		WindowMaxBytes: c.WindowMaxBytes,
		SQL:            sqlDB,
		IdleTimeout:    c.CursorIdleTimeout,
		Logger:         log,
	})

	b := api.Build(s, VERSION, c.ApiKey, c.ApiSecret)
	if c.EnableCompression {
		b.WithInterceptors(api.Compression)
	}
	b.WithInterceptors(
		api.AccessLog(log.WithField("component", "access")),
		api.RecoverFromPanic,
		api.PrettyErrorInterceptor,
		api.InterceptorUnavailable(db),
	)

	server := &http.Server{
		Addr:    c.HttpAddr,
		Handler: box.Box2Http(b),
	}

	if c.HttpsSelfsigned {
		log.Info("HTTPS selfsigned")
		certificate, err := selfSignedCertificate()
		if err != nil {
			return nil, nil, err
		}
		server.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{certificate},
		}
	}

	ln, err := net.Listen("tcp", c.HttpAddr)
	if err != nil {
		return nil, nil, err
	}
	log.WithField("addr", c.HttpAddr).Info("listening")

	janitorCtx, stopJanitor := context.WithCancel(context.Background())

	stopOnce := sync.Once{}
	stop = func() {
		stopOnce.Do(func() {
			stopJanitor()
			server.Shutdown(context.Background())
			s.CloseAll()
			db.Stop()
			if sqlDB != nil {
				sqlDB.Close()
			}
		})
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		for sig := range signalChan {
			log.WithField("signal", sig.String()).Info("signal received")
			stop()
		}
	}()

	start = func() {

		wg := &sync.WaitGroup{}

		wg.Add(1)
		go func() {
			defer wg.Done()
			err := db.Start()
			if err != nil {
				log.WithError(err).Error("database")
			}
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.RunJanitor(janitorCtx)
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			var err error
			if c.HttpsEnabled {
				err = server.ServeTLS(ln, "", "")
			} else {
				err = server.Serve(ln)
			}
			if err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("http server")
			}
		}()

		wg.Wait()
	}

	return start, stop, nil
}
