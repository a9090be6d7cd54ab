package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scrtlabs/SecretNetwork-sub003/api/seedhandler"
	"github.com/scrtlabs/SecretNetwork-sub003/cmd/flags"
	"github.com/scrtlabs/SecretNetwork-sub003/discovery"
	"github.com/scrtlabs/SecretNetwork-sub003/enclave"
	"github.com/scrtlabs/SecretNetwork-sub003/httpserver"
	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
	"github.com/urfave/cli/v2"
)

var flagListenAddr = &cli.StringFlag{
	Name:    "listen-addr",
	EnvVars: []string{"LISTEN_ADDR"},
	Value:   "127.0.0.1:8080",
	Usage:   "address to listen on for the seed exchange and admin API",
}

var flagAdminKeysFile = &cli.StringFlag{
	Name:  "admin-keys-file",
	Usage: "JSON file with administrator public keys; enables the seed escrow and recovery API",
}

var flagRecoveryTimeout = &cli.DurationFlag{
	Name:  "recovery-timeout",
	Value: 30 * time.Minute,
	Usage: "how long serve waits for administrators to restore a missing seed",
}

var flagProvider = &cli.StringSliceFlag{
	Name:    "provider",
	EnvVars: []string{"ENCLAVE_PROVIDERS"},
	Usage:   "seed provider base URL, overrides the config",
}

var flagProviderKey = &cli.StringFlag{
	Name:  "provider-key",
	Usage: "hex genesis seed exchange key of the network, overrides providers.key",
}

func buildNode(cCtx *cli.Context) (*flags.Node, *slog.Logger, error) {
	logger := flags.SetupLogger(cCtx)
	cfg, err := flags.LoadConfig(cCtx)
	if err != nil {
		logger.Error("Failed to load node config", "err", err)
		return nil, nil, err
	}
	if key := cCtx.String(flagProviderKey.Name); key != "" {
		cfg.Providers.Key = key
	}
	node, err := flags.BuildNode(cfg, logger)
	if err != nil {
		logger.Error("Failed to set up node", "err", err)
		return nil, nil, err
	}
	return node, logger, nil
}

func resultErr(what string, res enclave.Result) error {
	if res.OK() {
		return nil
	}
	return fmt.Errorf("%s: %s (%s)", what, res.Reason, res.Status)
}

func main() {
	commonFlags := append(append([]cli.Flag{}, flags.LogFlags...), flags.NodeFlags...)

	app := &cli.App{
		Name:  "enclave-node",
		Usage: "Run a confidential contract enclave node",
		Flags: commonFlags,
		Commands: []*cli.Command{
			{
				Name:  "init-bootstrap",
				Usage: "create the network seed on the first node",
				Action: func(cCtx *cli.Context) error {
					node, logger, err := buildNode(cCtx)
					if err != nil {
						return err
					}
					res := node.Enclave.InitBootstrap(cCtx.Context)
					if err := resultErr("bootstrap", res); err != nil {
						logger.Error("Bootstrap failed", "err", err)
						return err
					}
					fmt.Println(hex.EncodeToString(res.Output))
					return nil
				},
			},
			{
				Name:  "init-node",
				Usage: "join the network by requesting the seed from a provider",
				Flags: []cli.Flag{flagProvider, flagProviderKey},
				Action: func(cCtx *cli.Context) error {
					node, logger, err := buildNode(cCtx)
					if err != nil {
						return err
					}
					return initNode(cCtx, node, logger)
				},
			},
			{
				Name:  "rotate-seed",
				Usage: "replace the current seed generation",
				Action: func(cCtx *cli.Context) error {
					node, logger, err := buildNode(cCtx)
					if err != nil {
						return err
					}
					if err := resultErr("start", node.Enclave.Start(cCtx.Context)); err != nil {
						logger.Error("Failed to load sealed seeds", "err", err)
						return err
					}
					res := node.Enclave.RotateSeed(cCtx.Context)
					if err := resultErr("rotate", res); err != nil {
						logger.Error("Seed rotation failed", "err", err)
						return err
					}
					fmt.Println(hex.EncodeToString(res.Output))
					return nil
				},
			},
			{
				Name:  "serve",
				Usage: "serve the seed exchange to joining nodes",
				Flags: append([]cli.Flag{flagListenAddr, flagAdminKeysFile, flagRecoveryTimeout}, flags.ServerFlags...),
				Action: func(cCtx *cli.Context) error {
					node, logger, err := buildNode(cCtx)
					if err != nil {
						return err
					}
					return serve(cCtx, node, logger)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func providerURLs(ctx context.Context, cCtx *cli.Context, cfg *flags.NodeConfig) ([]string, error) {
	if urls := cCtx.StringSlice(flagProvider.Name); len(urls) > 0 {
		return urls, nil
	}
	if len(cfg.Providers.URLs) > 0 {
		return cfg.Providers.URLs, nil
	}
	if cfg.Providers.SRV == "" {
		return nil, fmt.Errorf("%w: no seed providers configured", interfaces.ErrInvalidConfig)
	}
	return discovery.NewResolver(cfg.Providers.DNSServer).ResolveProviders(ctx, cfg.Providers.SRV)
}

func initNode(cCtx *cli.Context, node *flags.Node, logger *slog.Logger) error {
	ctx := cCtx.Context

	if node.Config.Providers.Key == "" {
		err := fmt.Errorf("%w: providers.key is required to join", interfaces.ErrInvalidConfig)
		logger.Error("Network key not configured", "err", err)
		return err
	}
	networkKey, err := interfaces.NewPublicKeyFromHex(node.Config.Providers.Key)
	if err != nil {
		return err
	}

	urls, err := providerURLs(ctx, cCtx, node.Config)
	if err == nil && len(urls) == 0 {
		err = fmt.Errorf("%w: no seed providers found", interfaces.ErrInvalidConfig)
	}
	if err != nil {
		logger.Error("Failed to find seed providers", "err", err)
		return err
	}

	if err := resultErr("registration key", node.Enclave.CreateRegistrationKey(ctx)); err != nil {
		return err
	}
	report := node.Enclave.AttestationReport(ctx)
	if err := resultErr("attestation", report); err != nil {
		logger.Error("Failed to produce attestation certificate", "err", err)
		return err
	}

	var lastErr error
	for _, url := range urls {
		resp, err := seedhandler.DefaultClient.RequestSeed(ctx, url, report.Output)
		if err != nil {
			logger.Warn("Seed provider failed", "err", err, slog.String("provider", url))
			lastErr = err
			continue
		}
		if resp.ProviderKey != networkKey {
			lastErr = fmt.Errorf("provider %s presented key %s", url, resp.ProviderKey)
			logger.Warn("Unexpected provider key", "err", lastErr)
			continue
		}

		res := node.Enclave.InitNode(ctx, resp.Payload, resp.ProviderKey.Bytes())
		if err := resultErr("install seeds", res); err != nil {
			logger.Warn("Could not install seeds from provider", "err", err, slog.String("provider", url))
			lastErr = err
			continue
		}
		logger.Info("Joined network", slog.String("provider", url), slog.Int("seedID", int(node.Keychain.SeedID())))
		fmt.Println(hex.EncodeToString(res.Output))
		return nil
	}
	return fmt.Errorf("no provider delivered seeds: %w", lastErr)
}

func serve(cCtx *cli.Context, node *flags.Node, logger *slog.Logger) error {
	cfg := flags.ConfigureServer(cCtx, logger, cCtx.String(flagListenAddr.Name))

	start := node.Enclave.Start(cCtx.Context)
	if !start.OK() && !errors.Is(start.Err(), interfaces.ErrNotInitialized) {
		logger.Error("Failed to load sealed seeds", "err", start.Err())
		return start.Err()
	}

	var admin *httpserver.AdminHandler
	if path := cCtx.String(flagAdminKeysFile.Name); path != "" {
		f, err := os.Open(path)
		if err != nil {
			logger.Error("Failed to open admin keys file", "err", err)
			return err
		}
		adminKeys, err := httpserver.LoadAdminKeys(f)
		f.Close()
		if err != nil {
			logger.Error("Failed to load admin keys", "err", err)
			return err
		}
		logger.Info("Admin keys loaded", slog.Int("count", len(adminKeys)))
		admin = httpserver.NewAdminHandler(logger, node.Keychain, adminKeys)
		cfg.EnableAdmin = true
	} else if !start.OK() {
		logger.Error("Node holds no seed, run init-bootstrap or init-node first")
		return start.Err()
	}

	rl := node.Config.RateLimit
	seeds := seedhandler.NewHandler(node.Enclave.SeedProvider(), seedhandler.NewPeerLimiter(rl.RPS, rl.Burst, rl.IdleTTL), logger)

	server, err := httpserver.New(cfg, seeds, admin)
	if err != nil {
		logger.Error("Failed to create server", "err", err)
		return err
	}
	server.RunInBackground()

	if !start.OK() {
		logger.Info("Node holds no seed, waiting for administrators to restore it",
			slog.Duration("timeout", cCtx.Duration(flagRecoveryTimeout.Name)))
		ctx, cancel := context.WithTimeout(cCtx.Context, cCtx.Duration(flagRecoveryTimeout.Name))
		err := admin.WaitForSeed(ctx)
		cancel()
		if err != nil {
			logger.Error("Seed recovery did not complete", "err", err)
			server.Shutdown()
			return err
		}
		logger.Info("Seed restored, serving seed exchange")
	}

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
	logger.Info("Node is running, press Ctrl+C to stop")
	<-exit
	logger.Info("Shutdown signal received")

	server.Shutdown()
	logger.Info("Server shutdown complete")
	return nil
}
