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

// Package impl is the implementation of the layout server, which checks
// uploaded firmware images against board profiles and keeps the images and
// reports in a SQL database.
package impl

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang/glog"
	ih "github.com/google/imxrt-bootlayout/cmd/layout_server/internal/http"
	"github.com/google/imxrt-bootlayout/internal/attest"
	"github.com/google/imxrt-bootlayout/internal/layout"
	"github.com/google/imxrt-bootlayout/internal/report"
	"github.com/google/imxrt-bootlayout/internal/store"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/mod/sumdb/note"
	"golang.org/x/sync/errgroup"

	_ "github.com/go-sql-driver/mysql" // Load drivers for mysql
	_ "github.com/mattn/go-sqlite3"    // Load drivers for sqlite3
)

// ServerOpts encapsulates options for running a layout server.
type ServerOpts struct {
	ListenAddr string
	// Listener is used instead of ListenAddr when set.
	Listener net.Listener

	// Exactly one of SQLiteFile and MySQLURI must be set.
	SQLiteFile string
	MySQLURI   string
	// ConnectTimeout bounds the wait for the database to become reachable.
	ConnectTimeout time.Duration

	ProfilesFile   string
	SigningKeyFile string
}

func Main(ctx context.Context, opts ServerOpts) error {
	db, err := openDB(opts)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := waitForDB(ctx, db, opts.ConnectTimeout); err != nil {
		return err
	}
	st, err := store.New(db)
	if err != nil {
		return fmt.Errorf("failed to initialise store: %w", err)
	}

	profiles := layout.Boards()
	if opts.ProfilesFile != "" {
		b, err := os.ReadFile(opts.ProfilesFile)
		if err != nil {
			return fmt.Errorf("failed to read profiles: %w", err)
		}
		if profiles, err = layout.LoadProfiles(b); err != nil {
			return err
		}
	}
	var gen report.Generator
	if opts.SigningKeyFile != "" {
		s, err := attest.LoadSigner(opts.SigningKeyFile)
		if err != nil {
			return err
		}
		gen.Signers = []note.Signer{s}
		glog.Infof("Attesting passing images as %q", s.Name())
	}

	lis := opts.Listener
	if lis == nil {
		if lis, err = net.Listen("tcp", opts.ListenAddr); err != nil {
			return fmt.Errorf("failed to listen on %q: %w", opts.ListenAddr, err)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	srv := ih.NewServer(st, profiles, gen, ih.NewMetrics(reg))
	r := mux.NewRouter()
	srv.RegisterHandlers(r)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	hServer := &http.Server{
		Handler: r,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		glog.Infof("Layout server listening on %s", lis.Addr())
		defer glog.Info("HTTP server goroutine done")
		if err := hServer.Serve(lis); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		// This goroutine brings down the HTTP server when ctx is done.
		<-ctx.Done()
		glog.Info("Server shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return hServer.Shutdown(sctx)
	})
	return g.Wait()
}

func openDB(opts ServerOpts) (*sql.DB, error) {
	var driver, source string
	switch {
	case opts.SQLiteFile != "" && opts.MySQLURI != "":
		return nil, errors.New("only one of sqlite_file and mysql_uri may be set")
	case opts.SQLiteFile != "":
		driver, source = "sqlite3", opts.SQLiteFile
	case opts.MySQLURI != "":
		driver, source = "mysql", opts.MySQLURI
	default:
		return nil, errors.New("one of sqlite_file or mysql_uri is required")
	}
	glog.Infof("Connecting to %s DB", driver)
	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to DB: %w", err)
	}
	if driver == "sqlite3" {
		// sqlite3 does not support concurrent writers.
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// waitForDB pings db until it answers or the timeout passes.
func waitForDB(ctx context.Context, db *sql.DB, timeout time.Duration) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = timeout
	if timeout <= 0 {
		bo.MaxElapsedTime = time.Minute
	}
	op := func() error {
		if err := db.PingContext(ctx); err != nil {
			glog.Warningf("DB not ready: %v", err)
			return err
		}
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return fmt.Errorf("DB unreachable: %w", err)
	}
	return nil
}
