// Package main for the hub daemon executable.
/*
 * Copyright (c) 2018-2026, Vesper Home Hub Authors. All rights reserved.
 */
package main

import (
	"flag"
	"os"
)

var configPath = flag.String("config", "hub.conf.json", "path to the hub's JSON configuration file")

// NOTE: set by ldflags
var (
	version string
	build   string
)

func main() {
	os.Exit(run(version, build))
}
