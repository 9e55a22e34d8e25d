package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pmos-desktop/sei-gateway/internal/infrastructure/config"
	"github.com/pmos-desktop/sei-gateway/internal/infrastructure/logging"
	"github.com/pmos-desktop/sei-gateway/internal/portal"
)

// PasswordEnv holds the Portal password; it is never taken from a flag.
const PasswordEnv = "PORTAL_PASSWORD"

var (
	statePath   string
	profilePath string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:           "portalctl",
	Short:         "portalctl talks to the SEI Portal through the gateway's engine.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&statePath, "state", "portal-state.json", "State file carrying cookies between invocations.")
	rootCmd.PersistentFlags().StringVar(&profilePath, "profile", "", "YAML or TOML markup profile (defaults to PORTAL_PROFILE_FILE).")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log Portal traffic to stderr.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newClient builds the HTTP engine from the environment, like the server does.
func newClient() (*portal.Client, error) {
	cfg := config.LoadOrDefault()
	if profilePath != "" {
		cfg.Portal.ProfileFile = profilePath
	}

	profile, err := cfg.Profile()
	if err != nil {
		return nil, err
	}

	logger := logging.NewNop()
	if verbose {
		var err error
		logger, err = logging.New(logging.Config{
			Level:       "debug",
			Development: true,
			OutputPaths: []string{"stderr"},
		})
		if err != nil {
			return nil, err
		}
	}

	return portal.NewClient(profile, cfg.ClientOptions()).WithLogger(logger.Component("portal")), nil
}

func password() (string, error) {
	pw := os.Getenv(PasswordEnv)
	if pw == "" {
		return "", fmt.Errorf("%s is not set", PasswordEnv)
	}
	return pw, nil
}
