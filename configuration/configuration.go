package configuration

import (
	"time"

	"github.com/fulldump/windowdb/window"
)

type Configuration struct {
	HttpAddr          string `usage:"HTTP address"`
	Dir               string `usage:"data directory"`
	Version           bool   `usage:"show version and exit"`
	ShowBanner        bool   `usage:"show big banner"`
	ShowConfig        bool   `usage:"print config"`
	EnableCompression bool   `usage:"enable gzip compression on responses"`
	HttpsEnabled      bool   `usage:"serve HTTPS"`
	HttpsSelfsigned   bool   `usage:"use a self signed certificate for HTTPS"`
	ApiKey            string `usage:"API key, empty disables authentication"`
	ApiSecret         string `usage:"API secret"`

	LogLevel  string `usage:"log level: trace, debug, info, warning, error"`
	LogFormat string `usage:"log format: text or json"`

	WindowInitial  int64 `usage:"rows read synchronously into a new window"`
	WindowGrowth   int64 `usage:"rows added by every background fill step, 0 disables background fill"`
	WindowMax      int64 `usage:"max rows of a window, 0 means unbounded"`
	WindowMaxBytes int64 `usage:"max bytes of a window, 0 means unbounded"`

	SqlDriver string `usage:"database/sql driver for SQL cursors: sqlite3, pgx or mysql. Empty disables SQL cursors"`
	SqlDsn    string `usage:"data source name for SQL cursors"`

	CursorIdleTimeout time.Duration `usage:"close cursors not used for this long, 0 disables it"`
}

func Default() Configuration {
	return Configuration{
		HttpAddr:          "127.0.0.1:8080",
		Dir:               "data",
		ShowBanner:        true,
		ShowConfig:        false,
		EnableCompression: true,
		LogLevel:          "info",
		LogFormat:         "text",
		WindowInitial:     window.DefaultPolicy().Initial(),
		WindowGrowth:      window.DefaultPolicy().Growth(),
		WindowMax:         window.Unbounded,
		CursorIdleTimeout: 10 * time.Minute,
	}
}

// Policy is the window policy of cursors that do not ask for their own.
func (c *Configuration) Policy() (window.Policy, error) {
	return window.CustomPolicy(c.WindowInitial, c.WindowGrowth, c.WindowMax)
}
