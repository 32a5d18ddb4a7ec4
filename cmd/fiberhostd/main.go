/*
Fiberhostd runs the fiberhost bridge server: a long-lived process that
compiles protocol drafts submitted over HTTP and drives their block
programs to completion.

Usage:

	fiberhostd [flags]
	fiberhostd [flags] -l [[ADDRESS]:PORT]

By default it listens on localhost:8080 and stores its audit database
under ./fiberhost-data. If a JWT token secret is not given, one is
generated at random; tokens issued under a generated secret become
invalid as soon as the process exits, which is fine for local testing
but not for a long-running deployment.

The flags are:

	-v, --version
		Print the daemon's version and exit.

	-c, --config FILE
		Load a TOML operator overlay from FILE before applying flags
		and environment variables (lowest to highest precedence:
		built-in defaults, overlay file, environment, flags).

	-l, --listen LISTEN_ADDRESS
		Listen on the given address. Defaults to the value of
		environment variable FIBERHOSTD_LISTEN_ADDRESS, and if that is
		not given, localhost:8080.

	-d, --data-dir DIR
		Where to keep the audit database. Defaults to
		FIBERHOSTD_DATA_DIR, and if that is not given, ./fiberhost-data.

	-s, --secret TOKEN_SECRET
		Use the provided secret for signing client JWTs. Repeated until
		it reaches 32 bytes if shorter; rejected if over 64 bytes.
		Defaults to FIBERHOSTD_TOKEN_SECRET, and if that is not given
		either, a random secret is generated for this run only.
*/
package main

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/pflag"

	"github.com/dekarrin/fiberhost/internal/bridge"
	"github.com/dekarrin/fiberhost/internal/claim"
	"github.com/dekarrin/fiberhost/internal/fiber"
	"github.com/dekarrin/fiberhost/internal/fiberexpr"
	"github.com/dekarrin/fiberhost/internal/hostlog"
	"github.com/dekarrin/fiberhost/internal/node"
	sqlitestore "github.com/dekarrin/fiberhost/internal/store/sqlite"
	"github.com/dekarrin/fiberhost/internal/units/devices"
	"github.com/dekarrin/fiberhost/internal/units/metadata"
	"github.com/dekarrin/fiberhost/internal/units/record"
	"github.com/dekarrin/fiberhost/internal/units/shorthand"
	"github.com/dekarrin/fiberhost/internal/units/timer"
	"github.com/dekarrin/fiberhost/internal/version"
)

const (
	EnvListen = "FIBERHOSTD_LISTEN_ADDRESS"
	EnvData   = "FIBERHOSTD_DATA_DIR"
	EnvSecret = "FIBERHOSTD_TOKEN_SECRET"
)

var (
	flagVersion = pflag.BoolP("version", "v", false, "Print the daemon's version and exit.")
	flagConfig  = pflag.StringP("config", "c", "", "Load a TOML operator overlay file before flags/environment.")
	flagListen  = pflag.StringP("listen", "l", "", "Listen on the given address.")
	flagDataDir = pflag.StringP("data-dir", "d", "", "Directory for the audit database.")
	flagSecret  = pflag.StringP("secret", "s", "", "Use the given secret for client token signing.")
)

func main() {
	pflag.Parse()

	if *flagVersion {
		fmt.Printf("%s (fiberhost v%s)\n", version.DaemonCurrent, version.Current)
		return
	}

	if len(pflag.Args()) > 0 {
		fmt.Fprintf(os.Stderr, "Too many arguments\nDo -h for help.\n")
		os.Exit(1)
	}

	cfg := bridge.Config{}
	logLevel := hostlog.LevelInfo

	if *flagConfig != "" {
		overlay, overlayLogLevel, err := bridge.LoadOverlayFile(*flagConfig)
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not load config file: %s\n", err.Error())
			os.Exit(1)
		}
		cfg = overlay
		if lvl, ok := parseLogLevel(overlayLogLevel); ok {
			logLevel = lvl
		}
	}

	if v := os.Getenv(EnvListen); v != "" {
		cfg.BindAddr = v
	}
	if v := os.Getenv(EnvData); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv(EnvSecret); v != "" {
		cfg.TokenSecret = []byte(v)
	}

	if pflag.Lookup("listen").Changed {
		cfg.BindAddr = *flagListen
	}
	if pflag.Lookup("data-dir").Changed {
		cfg.DataDir = *flagDataDir
	}
	if pflag.Lookup("secret").Changed {
		cfg.TokenSecret = []byte(*flagSecret)
	}

	if len(cfg.TokenSecret) == 0 {
		secret := make([]byte, bridge.MaxSecretSize)
		if _, err := rand.Read(secret); err != nil {
			fmt.Fprintf(os.Stderr, "could not generate token secret: %s\n", err.Error())
			os.Exit(1)
		}
		cfg.TokenSecret = secret
	}
	for len(cfg.TokenSecret) < bridge.MinSecretSize {
		cfg.TokenSecret = append(cfg.TokenSecret, cfg.TokenSecret...)
	}
	if len(cfg.TokenSecret) > bridge.MaxSecretSize {
		cfg.TokenSecret = cfg.TokenSecret[:bridge.MaxSecretSize]
	}

	cfg = cfg.FillDefaults()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %s\nDo -h for help.\n", err.Error())
		os.Exit(1)
	}

	logger := hostlog.New(logLevel)

	if err := os.MkdirAll(cfg.DataDir, 0770); err != nil {
		logger.Errorf("could not create data directory %s: %s", cfg.DataDir, err.Error())
		os.Exit(1)
	}

	store, err := sqlitestore.NewStore(cfg.DataDir)
	if err != nil {
		logger.Errorf("could not open audit store: %s", err.Error())
		os.Exit(1)
	}

	tree := node.NewInMemoryTree()
	claimRegistry := claim.NewRegistry()

	parser, err := fiber.NewFiberParser([]fiber.Parser{
		metadata.NewParser(),
		timer.NewParser(),
		devices.NewParser(tree, claimRegistry),
		record.NewParser(tree, store.Rows),
		shorthand.NewParser(),
		fiber.NewStateParser(),
	})
	if err != nil {
		logger.Errorf("could not compose parser namespaces: %s", err.Error())
		os.Exit(1)
	}

	globalEnv := fiberexpr.NewEnv("global")
	clients := bridge.NewClientStore()

	logger.Infof("Starting fiberhost bridge %s, listening on %s", version.DaemonCurrent, cfg.BindAddr)
	srv := bridge.NewServer(cfg, parser, globalEnv, store, clients, logger)

	if err := http.ListenAndServe(cfg.BindAddr, srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Errorf("server exited: %s", err.Error())
		os.Exit(1)
	}
}

func parseLogLevel(s string) (hostlog.Level, bool) {
	switch s {
	case "debug":
		return hostlog.LevelDebug, true
	case "info":
		return hostlog.LevelInfo, true
	case "warn":
		return hostlog.LevelWarn, true
	case "error":
		return hostlog.LevelError, true
	default:
		return 0, false
	}
}
