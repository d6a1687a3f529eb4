// Package main wires the hub's three core subsystems (taxonomy,
// thinkerbell, process/tls) into one long-running daemon, the same role
// ais.Run plays for the teacher's node binary.
/*
 * Copyright (c) 2018-2026, Vesper Home Hub Authors. All rights reserved.
 */
package main

import (
	"context"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vesper-home/hub/cmn"
	hubmetrics "github.com/vesper-home/hub/metrics"
	hubprocess "github.com/vesper-home/hub/process"
	"github.com/vesper-home/hub/taxonomy"
	hubtls "github.com/vesper-home/hub/tls"
	"github.com/vesper-home/hub/thinkerbell"
)

// hub bundles every live subsystem so shutdown can tear them down in
// reverse dependency order.
type hub struct {
	backend    *taxonomy.Backend
	frontend   taxonomy.Frontend
	rules      *thinkerbell.Manager
	certs      *hubtls.Manager
	supervised []*hubprocess.Managed
	httpSrv    *http.Server
}

// run is the daemon's entry point, mirroring ais.Run(version, buildTime):
// load config, stand up every subsystem, block until a terminating signal
// arrives, then tear everything down.
func run(version, build string) int {
	defer glog.Flush()

	cfg, err := cmn.LoadConfig(*configPath)
	if err != nil {
		glog.Errorf("config load failed: %v", err)
		return 1
	}
	cmn.GCO.Put(cfg)

	glog.Infof("vesper-home hub starting | version=%s build=%s", version, build)

	reg := prometheus.NewRegistry()
	h, err := startHub(cfg, reg)
	if err != nil {
		glog.Errorf("startup failed: %v", err)
		return 1
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	glog.Infof("received signal %v, shutting down", sig)

	h.shutdown()
	glog.Infoln("terminated OK")
	return 0
}

// startHub brings up the taxonomy back-end, loads persisted rules,
// launches any configured supervised child processes, and arms the
// certificate manager behind an HTTPS metrics listener. It stops at the
// first hard failure and returns a nil hub with the error; subsystems
// started before the failure are not stopped, except that the rule store
// is closed when the box certificate cannot be obtained.
func startHub(cfg *cmn.Config, reg *prometheus.Registry) (*hub, error) {
	taxMetrics := hubmetrics.NewTaxonomy(reg)
	rulesMetrics := hubmetrics.NewRules(reg)
	procMetrics := hubmetrics.NewProcess(reg)
	tlsMetrics := hubmetrics.NewTLS(reg)

	backend := taxonomy.NewBackend(taxonomy.RoleAuthorizer, cfg.Taxonomy.OpQueueSize, taxMetrics)
	frontend := taxonomy.NewFrontend(backend)

	// The built-in dummy adapter stands in for a real device bridge
	// (Hue/Z-Wave/Sonos/camera adapters are out-of-scope collaborators
	// per spec.md §1) so the rule engine and HTTP surface have at least
	// one live feature to bind against on a fresh install.
	dummy := taxonomy.NewDummyAdapter(taxonomy.NewAdapterID("dummy"), "built-in dummy adapter")
	if err := frontend.AddAdapter(dummy); err != nil {
		return nil, err
	}

	rulesMgr, err := thinkerbell.OpenManager(cfg.Rules.StorePath, frontend, taxonomy.Admin, rulesMetrics)
	if err != nil {
		return nil, err
	}
	for id, loadErr := range rulesMgr.Load() {
		if loadErr != nil {
			glog.Errorf("rule %q failed to load: %v", id, loadErr)
		}
	}

	h := &hub{backend: backend, frontend: frontend, rules: rulesMgr}

	for i := range cfg.Supervised {
		sc := cfg.Supervised[i]
		spawn := func() (hubprocess.ChildHandle, error) {
			return hubprocess.NewCmdHandle(exec.Command(sc.Command, sc.Args...))
		}
		h.supervised = append(h.supervised, hubprocess.Start(sc.Name, spawn, sc.Threshold, procMetrics))
	}

	certs := hubtls.NewManager(cfg.TLS.CertDir, cfg.TLS.SelfSignedYears, nil, tlsMetrics)
	if err := certs.Reload(); err != nil {
		glog.Errorf("certificate reload failed, continuing with empty store: %v", err)
	}
	if _, err := certs.GetBoxCertificate(); err != nil {
		rulesMgr.Close()
		return nil, err
	}
	h.certs = certs

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	h.httpSrv = &http.Server{
		Addr:      ":8443",
		Handler:   mux,
		TLSConfig: certs.Config(),
	}
	go func() {
		if err := h.httpSrv.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
			glog.Errorf("metrics listener stopped: %v", err)
		}
	}()

	return h, nil
}

func (h *hub) shutdown() {
	if h == nil {
		return
	}
	if h.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.httpSrv.Shutdown(ctx); err != nil {
			glog.Errorf("metrics listener shutdown: %v", err)
		}
	}
	for _, mp := range h.supervised {
		if err := mp.Shutdown(); err != nil {
			glog.Errorf("supervised process shutdown: %v", err)
		}
	}
	if h.rules != nil {
		for id, stopErr := range h.rules.RemoveAll() {
			if stopErr != nil {
				glog.Errorf("rule %q stop failed: %v", id, stopErr)
			}
		}
		if err := h.rules.Close(); err != nil {
			glog.Errorf("rule store close: %v", err)
		}
	}
	if h.backend != nil {
		h.backend.Stop()
	}
}
