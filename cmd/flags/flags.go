package flags

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/scrtlabs/SecretNetwork-sub003/api"
	"github.com/scrtlabs/SecretNetwork-sub003/common"
	"github.com/urfave/cli/v2"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String(LogServiceFlag.Name)

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger, listenAddr string) *api.HTTPServerConfig {
	metricsAddr := cCtx.String(MetricsAddrFlag.Name)
	enablePprof := cCtx.Bool(PprofFlag.Name)
	drainDuration := time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second

	return &api.HTTPServerConfig{
		ListenAddr:               listenAddr,
		MetricsAddr:              metricsAddr,
		Log:                      logger,
		EnablePprof:              enablePprof,
		DrainDuration:            drainDuration,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}
}

// LoadConfig reads the node config named by --config and applies the
// flags that override it.
func LoadConfig(cCtx *cli.Context) (*NodeConfig, error) {
	cfg, err := LoadNodeConfig(cCtx.String(ConfigFlag.Name))
	if err != nil {
		return nil, err
	}
	if cCtx.IsSet(StorageFlag.Name) {
		cfg.Storage = cCtx.StringSlice(StorageFlag.Name)
	}
	if cCtx.IsSet(PlatformSecretFlag.Name) {
		cfg.PlatformSecretFile = cCtx.String(PlatformSecretFlag.Name)
	}
	if cCtx.Bool(AllowDebugFlag.Name) {
		cfg.Policy.AllowDebug = true
	}
	return cfg, nil
}

var ConfigFlag = &cli.StringFlag{
	Name:    "config",
	EnvVars: []string{"ENCLAVE_CONFIG"},
	Usage:   "path to the YAML node config",
}

var StorageFlag = &cli.StringSliceFlag{
	Name:    "storage",
	EnvVars: []string{"ENCLAVE_STORAGE"},
	Usage:   "sealed storage URI (file://, vault://, s3://, keyring://), repeat to replicate",
}

var PlatformSecretFlag = &cli.StringFlag{
	Name:    "platform-secret-file",
	EnvVars: []string{"ENCLAVE_PLATFORM_SECRET_FILE"},
	Usage:   "file holding the hex platform secret used to seal storage",
}

var AllowDebugFlag = &cli.BoolFlag{
	Name:    "allow-debug",
	EnvVars: []string{"ENCLAVE_ALLOW_DEBUG"},
	Value:   false,
	Usage:   "accept debug enclaves; rejected together with a production policy",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:    "log-json",
	EnvVars: []string{"LOG_JSON"},
	Value:   false,
	Usage:   "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:    "log-debug",
	EnvVars: []string{"LOG_DEBUG"},
	Value:   false,
	Usage:   "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:    "log-uid",
	EnvVars: []string{"LOG_UID"},
	Value:   false,
	Usage:   "generate a uuid and add to all log messages",
}
var LogServiceFlag = &cli.StringFlag{
	Name:    "log-service",
	EnvVars: []string{"LOG_SERVICE"},
	Value:   common.PackageName,
	Usage:   "add 'service' tag to logs",
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait in drain HTTP request",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:    "metrics-addr",
	EnvVars: []string{"METRICS_ADDR"},
	Value:   "127.0.0.1:8090",
	Usage:   "address to listen on for Prometheus metrics",
}

var LogFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	LogServiceFlag,
}

var NodeFlags = []cli.Flag{
	ConfigFlag,
	StorageFlag,
	PlatformSecretFlag,
	AllowDebugFlag,
}

var ServerFlags = []cli.Flag{
	PprofFlag,
	DrainSecondsFlag,
	MetricsAddrFlag,
}
