/*
Copyright 2023 - 2026 Dima Krasner

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/fedcore/engine/admission"
	"github.com/fedcore/engine/ap"
	"github.com/fedcore/engine/cfg"
	"github.com/fedcore/engine/delivery"
	"github.com/fedcore/engine/fed"
	"github.com/fedcore/engine/httpsig"
	"github.com/fedcore/engine/identity"
	"github.com/fedcore/engine/inbox"
	"github.com/fedcore/engine/migrations"
	"github.com/fedcore/engine/outbox"
	"github.com/fedcore/engine/retriever"
	"github.com/fedcore/engine/store"
	"github.com/fedcore/engine/tasks"
	"github.com/fedcore/engine/transport"
	_ "github.com/mattn/go-sqlite3"
)

var (
	domain        = flag.String("domain", "localhost.localdomain:8443", "Domain name")
	logLevel      = flag.Int("loglevel", int(slog.LevelInfo), "Logging verbosity")
	dbPath        = flag.String("db", "db.sqlite3", "database path")
	cert          = flag.String("cert", "cert.pem", "HTTPS TLS certificate")
	key           = flag.String("key", "key.pem", "HTTPS TLS key")
	addr          = flag.String("addr", ":8443", "HTTPS listening address")
	blockListPath = flag.String("blocklist", "blocklist.csv", "Blocklist CSV")
	plain         = flag.Bool("plain", false, "Use HTTP instead of HTTPS")
	cfgPath       = flag.String("cfg", "", "Configuration file")
	dumpCfg       = flag.Bool("dumpcfg", false, "Print default configuration and exit")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flag]...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	uuid.EnableRandPool()

	var config cfg.Config

	if *dumpCfg {
		config.FillDefaults()
		e := json.NewEncoder(os.Stdout)
		e.SetIndent("", "\t")
		if err := e.Encode(config); err != nil {
			panic(err)
		}
		return
	}

	if *cfgPath != "" {
		f, err := os.Open(*cfgPath)
		if err != nil {
			panic(err)
		}
		err = json.NewDecoder(f).Decode(&config)
		f.Close()
		if err != nil {
			panic(err)
		}
	}

	config.FillDefaults()

	opts := slog.HandlerOptions{Level: slog.Level(*logLevel)}
	if opts.Level == slog.LevelDebug {
		opts.AddSource = true
	}
	log := slog.New(slog.NewJSONHandler(os.Stderr, &opts))
	slog.SetDefault(log)

	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?%s", *dbPath, config.DatabaseOptions))
	if err != nil {
		panic(err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-sigs:
			slog.Info("Received termination signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := migrations.Run(ctx, log, db); err != nil {
		panic(err)
	}

	// onBlock cascades an admin's edit to the blocklist CSV into purging
	// whatever that host already federated in (spec.md §8 scenario 5);
	// it fires once per newly-blocked domain, on initial load and on
	// every reload.
	onBlock := func(host string) {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			slog.Error("Failed to begin purge transaction", "host", host, "error", err)
			return
		}
		defer tx.Rollback()

		if err := store.PurgeHost(ctx, tx, host); err != nil {
			slog.Error("Failed to purge blocked host", "host", host, "error", err)
			return
		}

		if err := tx.Commit(); err != nil {
			slog.Error("Failed to commit purge of blocked host", "host", host, "error", err)
		}
	}

	if _, err := os.Stat(*blockListPath); os.IsNotExist(err) {
		if err := os.WriteFile(*blockListPath, []byte("domain\n"), 0o644); err != nil {
			panic(err)
		}
	}

	blockList, err := admission.NewBlockList(log, *blockListPath, onBlock)
	if err != nil {
		panic(err)
	}
	defer blockList.Close()

	transportOpts := http.Transport{
		MaxIdleConns:    config.ResolverMaxIdleConns,
		IdleConnTimeout: config.ResolverIdleConnTimeout,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}
	client := http.Client{
		Transport: &transportOpts,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	sender := transport.Sender{Domain: *domain, Config: &config, Client: &client}

	_, nobodyKey, err := ensureNobody(ctx, db, *domain)
	if err != nil {
		panic(err)
	}

	retr := retriever.New(blockList, *domain, &config, &sender, db)
	dispatcher := &inbox.Dispatcher{Domain: *domain, Config: &config, DB: db}
	ob := &outbox.Outbox{Dispatcher: dispatcher, Config: &config, DB: db}

	listener := &fed.Listener{
		Domain:      *domain,
		Config:      &config,
		DB:          db,
		Dispatcher:  dispatcher,
		Outbox:      ob,
		Retriever:   retr,
		BlockList:   blockList,
		InstanceKey: nobodyKey,
		Addr:        *addr,
		Cert:        *cert,
		Key:         *key,
		Plain:       *plain,
	}

	deliveryQueue := &delivery.Queue{
		Domain:    *domain,
		Config:    &config,
		DB:        db,
		Sender:    &sender,
		Retriever: retr,
	}

	for _, svc := range []struct {
		Name     string
		Listener interface {
			ListenAndServe(context.Context) error
		}
	}{
		{"HTTPS", listener},
	} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := svc.Listener.ListenAndServe(ctx); err != nil {
				slog.Error("Listener has failed", "listener", svc.Name, "error", err)
			}
			cancel()
		}()
	}

	for _, q := range []struct {
		Name  string
		Queue interface {
			Process(context.Context) error
		}
	}{
		{"delivery", deliveryQueue},
	} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := q.Queue.Process(ctx); err != nil {
				slog.Error("Failed to process queue", "queue", q.Name, "error", err)
			}
			cancel()
		}()
	}

	for _, job := range []struct {
		Name     string
		Interval time.Duration
		Runner   tasks.Runner
	}{
		{
			"follows",
			config.OutboxPollingInterval,
			&tasks.FollowProcessor{Dispatcher: dispatcher, DB: db},
		},
		{
			"janitor",
			config.GarbageCollectInterval,
			&tasks.Janitor{Domain: *domain, Config: &config, DB: db},
		},
	} {
		wg.Add(1)
		go func(name string, interval time.Duration, r tasks.Runner) {
			defer wg.Done()
			tasks.RunPeriodically(ctx, name, interval, r)
		}(job.Name, job.Interval, job.Runner)
	}

	wg.Wait()
}

// ensureNobody loads the instance actor's signing key, creating it on
// first run. Every outbound fetch this engine makes to resolve an
// unfamiliar remote actor is signed as nobody, since a fetch has to be
// signed as someone and no specific local user requested it.
func ensureNobody(ctx context.Context, db *sql.DB, domain string) (*ap.Actor, httpsig.Key, error) {
	id := fmt.Sprintf("https://%s/user/nobody", domain)

	if key, err := identity.Load(ctx, db, id); err == nil {
		actor, err := store.GetActorByID(ctx, db, id)
		if err != nil {
			return nil, httpsig.Key{}, err
		}
		return actor, key, nil
	}

	actor, key, err := identity.Create(ctx, domain, db, "nobody", ap.Application)
	if err != nil {
		return nil, httpsig.Key{}, err
	}
	return actor, key, nil
}
