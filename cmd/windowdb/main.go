package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fulldump/goconfig"

	"github.com/fulldump/windowdb/bootstrap"
	"github.com/fulldump/windowdb/configuration"
)

var banner = `
__        ___           _               ____  ____
\ \      / (_)_ __   __| | _____      _|  _ \| __ )
 \ \ /\ / /| | '_ \ / _' |/ _ \ \ /\ / / | | |  _ \
  \ V  V / | | | | | (_| | (_) \ V  V /| |_| | |_) |
   \_/\_/  |_|_| |_|\__,_|\___/ \_/\_/ |____/|____/
                                  version ` + bootstrap.VERSION + `
`

func main() {

	c := configuration.Default()
	goconfig.Read(&c)

	if c.Version {
		fmt.Println("Version:", bootstrap.VERSION)
		return
	}

	if c.ShowBanner {
		fmt.Println(banner)
	}

	if c.ShowConfig {
		e := json.NewEncoder(os.Stdout)
		e.SetIndent("", "    ")
		e.Encode(c)
	}

	start, _, err := bootstrap.Bootstrap(&c)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err.Error())
		os.Exit(-1)
	}

	start()
}
