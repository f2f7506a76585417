// Copyright (c) 2020 RethinkDNS and its authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Command resolver wires the config loader, artifact cache, blocklist
// wrapper, and DoH front end together into a runnable process.
package main

import (
	"flag"
	"net/http"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/celzero/rethinkblock/doh"
	"github.com/celzero/rethinkblock/intra/core"
	"github.com/celzero/rethinkblock/intra/log"
	"github.com/celzero/rethinkblock/intra/settings"
	"github.com/celzero/rethinkblock/rdns"
)

func loadConfig(path string) (*settings.Config, error) {
	k := koanf.New(".")

	defaults := settings.Default()
	defaultKeys := map[string]interface{}{
		"blocklistUrl":    defaults.BlocklistURL,
		"latestTimestamp": defaults.LatestTimestamp,
		"tdNodecount":     defaults.TDNodecount,
		"tdParts":         defaults.TDParts,
		"downloadTimeout": defaults.DownloadTimeoutMs,
		"cacheTtl":        defaults.CacheTTL,
		"cachePath":       defaults.CachePath,
		"listenAddr":      defaults.ListenAddr,
	}
	if err := k.Load(confmap.Provider(defaultKeys, "."), nil); err != nil {
		return nil, err
	}

	if len(path) > 0 {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// env var names are upper case; map each back onto the camelCase
	// key the defaults use, so the env layer overrides that key.
	canonical := make(map[string]string, len(defaultKeys))
	for key := range defaultKeys {
		canonical[strings.ToLower(key)] = key
	}
	if err := k.Load(env.Provider("RDNS_", ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, "RDNS_"))
		if c, ok := canonical[key]; ok {
			return c
		}
		return key
	}), nil); err != nil {
		return nil, err
	}

	cfg := &settings.Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	configPath := flag.String("config", "", "path to an optional YAML config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		os.Stdout.WriteString(core.Version() + "\n")
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.E("resolver: config: %v", err)
		os.Exit(1)
	}

	var cache *rdns.ArtifactCache
	if len(cfg.CachePath) > 0 {
		cache, err = rdns.OpenArtifactCache(cfg.CachePath)
		if err != nil {
			log.W("resolver: artifact cache disabled: %v", err)
		} else {
			defer cache.Close()
		}
	}

	loader := rdns.NewLoader(cache)
	wrapper := rdns.NewWrapper(loader, cfg.DownloadTimeout())

	src := rdns.Source{
		URLBase: cfg.BlocklistURL,
		Time:    cfg.LatestTimestamp,
		NodeCnt: cfg.TDNodecount,
		TDParts: cfg.TDParts,
	}

	server := &doh.Server{Wrapper: wrapper, Source: src}

	log.I("resolver: listening on %s", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, server.Router()); err != nil {
		log.E("resolver: serve: %v", err)
		os.Exit(1)
	}
}
