package main

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/punchamoorthee/suretyops/internal/api"
	"github.com/punchamoorthee/suretyops/internal/config"
	"github.com/punchamoorthee/suretyops/internal/ledger"
	"github.com/punchamoorthee/suretyops/internal/service"
	"github.com/punchamoorthee/suretyops/internal/store"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	// The audit journal is optional: without DB_SOURCE the core runs alone.
	var journal service.Journal = service.NopJournal{}
	if cfg.DBSource != "" {
		st, err := store.NewStore(cfg.DBSource)
		if err != nil {
			log.Fatalf("unable to connect to database: %v", err)
		}
		defer st.Close()
		journal = st
	} else {
		log.Warn("DB_SOURCE not set, audit journal disabled")
	}

	// Initialize Layers
	led := ledger.New(cfg.Owner, cfg.AirlineName, cfg.FirstAirline, cfg.Params)
	if err := led.AuthorizeCaller(cfg.Owner, service.Identity); err != nil {
		log.Fatalf("unable to authorize service identity: %v", err)
	}
	svc := service.NewSuretyService(led, journal, log)
	handler := api.NewHandler(svc)

	// Router
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	handler.Register(r.PathPrefix("/api/v1").Subrouter())

	log.WithFields(logrus.Fields{
		"port":          cfg.Port,
		"first_airline": cfg.FirstAirline,
	}).Info("server starting")
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal(err)
	}
}
