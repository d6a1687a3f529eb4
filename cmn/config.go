// Package cmn provides common constants, types and configuration shared by
// every core package of the hub.
/*
 * Copyright (c) 2018-2026, Vesper Home Hub Authors. All rights reserved.
 */
package cmn

import (
	"encoding/json"
	"os"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
)

// Config is the hub's single versioned configuration object. Like the
// teacher's cmn.Config, it is loaded once at startup and thereafter
// accessed through an atomically-swapped holder (GCO below) rather than
// passed around by reference.
type Config struct {
	Taxonomy   TaxonomyConf      `json:"taxonomy"`
	Rules      RulesConf         `json:"rules"`
	TLS        TLSConf           `json:"tls"`
	Supervised []SupervisedConf  `json:"supervised_processes"`
	LogToDisk  bool              `json:"log_to_disk"`
}

type TaxonomyConf struct {
	// OpQueueSize bounds the taxonomy back-end's operation queue.
	OpQueueSize int `json:"op_queue_size"`
	// DispatchTimeout is decoded from the configuration but not applied:
	// a front-end caller waits for the back-end's reply without a limit.
	DispatchTimeout time.Duration `json:"dispatch_timeout"`
	// JWTSecret is decoded from the configuration but not read by the
	// hub; authorization always goes through the back-end's Authorizer,
	// whether or not it is set.
	JWTSecret string `json:"jwt_secret"`
}

type RulesConf struct {
	// StorePath is the buntdb file backing the rule manager's scripts
	// table. ":memory:" runs fully in-process, used in tests.
	StorePath string `json:"store_path"`
}

type TLSConf struct {
	CertDir         string        `json:"cert_dir"`
	BoxHostname     string        `json:"box_hostname"`
	SelfSignedYears int           `json:"self_signed_years"`
	ACMEDirectory   string        `json:"acme_directory_url"`
	DNSPropagation  time.Duration `json:"dns_propagation_wait"`
}

// SupervisedConf describes one external adapter process the hub should
// spawn and restart under process.Managed's backoff policy (spec.md
// §4.6) rather than expect the operator to keep alive by hand.
type SupervisedConf struct {
	Name      string        `json:"name"`
	Command   string        `json:"command"`
	Args      []string      `json:"args"`
	Threshold time.Duration `json:"restart_threshold"`
}

func DefaultConfig() *Config {
	return &Config{
		Taxonomy: TaxonomyConf{
			OpQueueSize:     256,
			DispatchTimeout: 10 * time.Second,
		},
		Rules: RulesConf{
			StorePath: "rules.db",
		},
		TLS: TLSConf{
			CertDir:         "certificates",
			BoxHostname:     "box.local",
			SelfSignedYears: 2,
			DNSPropagation:  30 * time.Second,
		},
	}
}

func (c *Config) Validate() error {
	if c.Taxonomy.OpQueueSize <= 0 {
		return NewInvalidValueError("taxonomy.op_queue_size must be positive")
	}
	if c.TLS.SelfSignedYears <= 0 {
		return NewInvalidValueError("tls.self_signed_years must be positive")
	}
	return nil
}

// LoadConfig reads JSON configuration from path, falling back to defaults
// on a missing file (a fresh install has none yet).
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			glog.Infof("no config at %s, using defaults", path)
			return cfg, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(b, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// gcoHolder is the Global Config Owner: an atomically-swapped holder
// mirroring the teacher's cmn.GCO, generalized from aistore's
// cluster-wide config singleton to this module's process-wide one.
type gcoHolder struct {
	v atomic.Value
}

func (g *gcoHolder) Get() *Config {
	v, _ := g.v.Load().(*Config)
	if v == nil {
		return DefaultConfig()
	}
	return v
}

func (g *gcoHolder) Put(c *Config) { g.v.Store(c) }

var GCO = &gcoHolder{}

func init() { GCO.Put(DefaultConfig()) }
