// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

// Command tacit serves the resources of a JSON configuration over REST.
//
// All settings come from the environment, see config.Settings. The minimal
// setup serves an empty in-memory backend on :3000:
//
//	TACIT_CONFIG=resources.json TACIT_AUTH=none tacit
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/opengeek/tacit-sub000/core"
	"github.com/opengeek/tacit-sub000/core/access"
	"github.com/opengeek/tacit-sub000/core/backend"
	"github.com/opengeek/tacit-sub000/core/config"
	"github.com/opengeek/tacit-sub000/core/logger"
	"github.com/opengeek/tacit-sub000/core/metrics"
	"github.com/opengeek/tacit-sub000/core/notify"
	"github.com/opengeek/tacit-sub000/core/persistence"
	"github.com/opengeek/tacit-sub000/core/persistence/memory"
	"github.com/opengeek/tacit-sub000/core/persistence/mongo"
	"github.com/opengeek/tacit-sub000/core/persistence/postgres"
	"github.com/opengeek/tacit-sub000/core/persistence/rethink"
	"github.com/opengeek/tacit-sub000/core/schema"
)

func newRegistry() *persistence.Registry {
	reg := persistence.NewRegistry()
	memory.Register(reg)
	mongo.Register(reg)
	rethink.Register(reg)
	postgres.Register(reg)
	return reg
}

func identityLoader(ctx context.Context, source string) (access.Loader, error) {
	switch {
	case source == "":
		return access.Static(access.Identities{}), nil
	case access.IsS3(source):
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, err
		}
		return access.S3Loader(s3.NewFromConfig(cfg), source), nil
	}
	return access.FileLoader(source), nil
}

func main() {
	settings, err := config.Load()
	if err != nil {
		logger.Default().Fatal(err)
	}
	logger.InitLogger(settings.LogLevel)
	log := logger.Default()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider := persistence.NewProvider(newRegistry(), settings.Connection())
	repository, err := provider.Repository(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer provider.Close(context.Background())

	load, err := identityLoader(ctx, settings.Identities)
	if err != nil {
		log.WithError(err).Fatal("cannot configure identity source")
	}
	identities := access.NewStore(load)
	if err := identities.Load(ctx); err != nil {
		log.WithError(err).Fatal("cannot load identities")
	}
	log.Infof("loaded %d identities", identities.Len(ctx))

	scheme, ok := access.SchemeByName(settings.Auth, identities)
	if !ok {
		log.Fatalf("unknown authorization scheme %q", settings.Auth)
	}

	resources, err := settings.ResourceConfiguration()
	if err != nil {
		log.Fatal(err)
	}

	var schemas *schema.Set
	if settings.Schemas != "" {
		if schemas, err = schema.LoadFS(os.DirFS(settings.Schemas), "."); err != nil {
			log.Fatal(err)
		}
	}

	var notifier core.Notifier
	if brokers := settings.Brokers(); len(brokers) > 0 {
		kafka := notify.NewKafka(brokers, settings.KafkaTopic)
		defer kafka.Close()
		notifier = kafka
		log.Infof("publishing notifications to %s on %v", settings.KafkaTopic, brokers)
	}

	router := mux.NewRouter()
	if settings.Metrics {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		collector, err := metrics.New(registry)
		if err != nil {
			log.Fatal(err)
		}
		router.Use(collector.Middleware)
		router.Handle("/metrics", collector.Handler()).Methods(http.MethodGet)
	}

	b, err := backend.New(&backend.Builder{
		Config:          resources,
		Repository:      repository,
		Router:          router,
		Scheme:          scheme,
		Notifier:        notifier,
		Schemas:         schemas,
		ScopesParameter: settings.ScopesParameter,
		Debug:           settings.Debug,
		Compress:        settings.Compress,
		CORS:            settings.CORS,
	})
	if err != nil {
		log.Fatal(err)
	}
	b.CreateContainers(ctx)

	srv := &http.Server{
		Addr:              settings.Listen,
		Handler:           handlers.RecoveryHandler()(handlers.CombinedLoggingHandler(os.Stdout, router)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdown); err != nil {
			log.WithError(err).Error("shutdown failed")
		}
	}()

	log.Infof("serving %d resources from %s on %s", len(b.Resources()), settings.Connection(), settings.Listen)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
	log.Infof("stopped after %s", settings.Uptime().Round(time.Second))
}
