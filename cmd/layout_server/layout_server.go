// Copyright 2026 Google LLC. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// layout_server is an HTTP service which checks uploaded i.MX RT firmware
// images against board layout profiles.
//
// Usage:
//
//	go run ./cmd/layout_server --logtostderr --sqlite_file=/tmp/layout.db
//	curl --data-binary @target/teensy4/thumbv7em-none-eabihf/debug/examples/blink-rtic \
//	  http://localhost:8000/layout/v0/check/for-board/teensy4
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/google/imxrt-bootlayout/cmd/layout_server/impl"
)

var (
	listenAddr     = flag.String("listen", ":8000", "address:port to listen for requests on")
	sqliteFile     = flag.String("sqlite_file", "", "Path to the sqlite file for images and reports")
	mysqlURI       = flag.String("mysql_uri", "", "URI of a MySQL database to use instead of sqlite")
	connectTimeout = flag.Duration("connect_timeout", time.Minute, "Maximum time to wait for the database")
	profilesFile   = flag.String("profiles", "", "YAML file with board profiles. Defaults to the built-in profiles")
	signingKeyFile = flag.String("signing_key_file", "", "File holding a note signer key used to attest passing images")
)

func main() {
	flag.Parse()
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := impl.Main(ctx, impl.ServerOpts{
		ListenAddr:     *listenAddr,
		SQLiteFile:     *sqliteFile,
		MySQLURI:       *mysqlURI,
		ConnectTimeout: *connectTimeout,
		ProfilesFile:   *profilesFile,
		SigningKeyFile: *signingKeyFile,
	}); err != nil {
		glog.Exit(err.Error())
	}
}
