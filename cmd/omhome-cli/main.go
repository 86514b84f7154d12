package main

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshp123/omhome/internal/config"
)

var version = "dev"

var (
	flagAPI     string
	flagGRPC    string
	flagConfig  string
	flagJSON    bool
	flagTimeout time.Duration
)

// newRootCmd builds the full command tree. Binding the flags resets them to
// their defaults, so every run starts from a fresh tree.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "omhome-cli",
		Short: "Inspect and control an OpenMotics installation through omhome",
		Long: `omhome-cli talks to a running omhome daemon over its HTTP API and gRPC
health service. The installations and check commands talk to the gateway
directly using the daemon's config file.`,
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flagAPI, "api", "", "omhome HTTP API base URL (env: OMHOME_API_URL)")
	root.PersistentFlags().StringVar(&flagGRPC, "grpc", "", "omhome gRPC address (env: OMHOME_GRPC_ADDR)")
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path (env: OMHOME_CONFIG, default: "+config.DefaultPath+")")
	root.PersistentFlags().BoolVar(&flagJSON, "json", false, "Print JSON instead of tables")
	root.PersistentFlags().DurationVar(&flagTimeout, "timeout", 30*time.Second, "Request timeout")

	addEntityCommands(root)
	addControlCommands(root)
	addGatewayCommands(root)
	addGRPCCommands(root)
	root.AddCommand(newPluginsCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func output(cmd *cobra.Command) outputMode {
	return outputMode{json: flagJSON, w: cmd.OutOrStdout()}
}

func configPath() string {
	if flagConfig != "" {
		return flagConfig
	}
	return envOrDefault("OMHOME_CONFIG", config.DefaultPath)
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath())
}

// resolveAPI prefers the flag, then the environment, then the config file's
// http_addr.
func resolveAPI() string {
	if flagAPI != "" {
		return strings.TrimRight(flagAPI, "/")
	}
	if value := os.Getenv("OMHOME_API_URL"); value != "" {
		return strings.TrimRight(value, "/")
	}
	addr := config.DefaultHTTPAddr
	if cfg, err := loadConfig(); err == nil {
		addr = cfg.Core.HTTPAddr
	}
	return "http://" + dialable(addr)
}

func resolveGRPC() string {
	if flagGRPC != "" {
		return flagGRPC
	}
	if value := os.Getenv("OMHOME_GRPC_ADDR"); value != "" {
		return value
	}
	addr := config.DefaultGRPCAddr
	if cfg, err := loadConfig(); err == nil {
		addr = cfg.Core.GRPCAddr
	}
	return dialable(addr)
}

// dialable turns a listen address into one a client can connect to.
func dialable(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func usageError(cmd *cobra.Command, format string, args ...any) error {
	return fmt.Errorf("%s: %s", cmd.CommandPath(), fmt.Sprintf(format, args...))
}
