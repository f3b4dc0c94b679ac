package main

import (
	"context"
	"path/filepath"
	"time"

	"github.com/openvr-net/hotspotd/config"
	"github.com/openvr-net/hotspotd/internal/adapter"
	"github.com/openvr-net/hotspotd/internal/lifecycle"
	"github.com/openvr-net/hotspotd/internal/platform"
	"github.com/openvr-net/hotspotd/internal/types"
	"github.com/openvr-net/hotspotd/pkg/log"
)

// shutdownGrace bounds how long Stop is given to tear the AP down cleanly
// once the daemon receives SIGINT/SIGTERM, before the process exits anyway.
const shutdownGrace = 10 * time.Second

// resolveStateDir applies the --state-dir / --config precedence: an
// explicit --state-dir wins, otherwise the directory holding --config,
// otherwise config.Store falls back to its own default (HOTSPOTD_STATE_DIR
// or /var/lib/hotspotd).
func resolveStateDir() string {
	if stateDir != "" {
		return stateDir
	}
	if configFile != "" {
		return filepath.Dir(configFile)
	}
	return ""
}

func initLogging() error {
	opts := []log.Option{}
	if verbose {
		opts = append(opts, log.WithDevMode())
	}
	if jsonLogs {
		opts = append(opts, log.WithJSON())
	}
	return log.Init("", opts...)
}

// runDaemon is hotspotd's single foreground process: build the lifecycle
// core, autostart if configured, drive the request queue until signaled,
// then stop the access point before exiting.
func runDaemon(ctx context.Context) error {
	if err := initLogging(); err != nil {
		return err
	}

	dir := resolveStateDir()
	store := config.NewStore(dir)
	prober := &platform.RealProber{}
	inventory := adapter.New(prober)
	core := lifecycle.New(store, inventory, prober, dir)
	if profile := platform.VendorProfile(); profile != "" {
		log.Infof("hotspotd: using %s vendored binary profile", profile)
		core.Locator.DistroProfile = profile
	}

	queue := newRequestQueue(core)
	queueCtx, stopQueue := context.WithCancel(context.Background())
	defer stopQueue()
	go queue.run(queueCtx)

	cfg, err := store.Load()
	if err != nil {
		log.Errorf("hotspotd: failed to load configuration: %v", err)
	} else if cfg.Autostart {
		log.Infof("hotspotd: autostart enabled, bringing up access point")
		if res := queue.submit(ctx, "start", nil); !res.OK {
			log.Errorf("hotspotd: autostart failed: %s", res.ResultCode)
		}
	}

	log.Infof("hotspotd: ready")
	<-ctx.Done()
	log.Infof("hotspotd: shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if res := queue.submit(stopCtx, "stop", nil); !res.OK && res.ResultCode != string(types.ResultAlreadyStopped) {
		log.Errorf("hotspotd: shutdown stop failed: %s", res.ResultCode)
	}
	return nil
}
