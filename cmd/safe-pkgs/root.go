package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/git-pkgs/safe-pkgs/internal/advisory/osv"
	"github.com/git-pkgs/safe-pkgs/internal/audit"
	"github.com/git-pkgs/safe-pkgs/internal/cache"
	"github.com/git-pkgs/safe-pkgs/internal/config"
	"github.com/git-pkgs/safe-pkgs/internal/core"
	"github.com/git-pkgs/safe-pkgs/internal/orchestrator"
	"github.com/git-pkgs/safe-pkgs/internal/transport"
)

var (
	cfgFile            string
	projectCfgFile     string
	httpsProxy         string
	caCertPath         string
	insecureSkipVerify bool

	cfg  *config.Config
	orch *orchestrator.Orchestrator
)

var rootCmd = &cobra.Command{
	Use:   "safe-pkgs",
	Short: "Evaluate third-party packages for supply-chain risk before you install them",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		globalPath, projectPath := config.Paths()
		if cfgFile != "" {
			globalPath = cfgFile
		}
		if projectCfgFile != "" {
			projectPath = projectCfgFile
		}

		loaded, warnings, err := config.LoadWithWarnings(globalPath, projectPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		for _, w := range warnings {
			fmt.Fprintf(os.Stderr, "warning: %s\n", w)
		}
		cfg = loaded

		httpClient, err := transport.New(transport.Options{
			ProxyURL:           httpsProxy,
			CACertPath:         caCertPath,
			InsecureSkipVerify: insecureSkipVerify,
		})
		if err != nil {
			return fmt.Errorf("building transport: %w", err)
		}

		client := core.NewClient(core.WithHTTPClient(httpClient))

		decisionCache, fellBack, cacheErr := cache.Open(config.CachePath())
		if decisionCache == nil {
			return fmt.Errorf("opening decision cache: %w", cacheErr)
		}
		if fellBack {
			fmt.Fprintf(os.Stderr, "warning: %v\n", cacheErr)
		}

		advisoryProvider := osv.New(osv.DefaultURL, client)

		auditWriter, auditErr := audit.Open(audit.DefaultPath())
		if auditErr != nil {
			fmt.Fprintf(os.Stderr, "warning: audit log disabled: %v\n", auditErr)
		}

		orch = orchestrator.New(client, decisionCache, advisoryProvider, auditWriter)
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "global config file path (default: per-user config dir)")
	rootCmd.PersistentFlags().StringVar(&projectCfgFile, "project-config", "", "project config file path (default: .safe-pkgs.toml)")
	rootCmd.PersistentFlags().StringVar(&httpsProxy, "https-proxy", "", "HTTPS proxy URL for all outbound registry/advisory requests")
	rootCmd.PersistentFlags().StringVar(&caCertPath, "ca-cert", "", "path to an additional PEM-encoded CA certificate to trust")
	rootCmd.PersistentFlags().BoolVar(&insecureSkipVerify, "insecure-skip-tls-verify", false, "disable TLS certificate verification (unsafe)")
}

// Execute runs the root command and returns the process exit code per
// §6's CLI table: 0 on success, 1 when `check`/`audit` completed but
// denied at least one package, 2 on any other (fatal) error.
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}
	if IsDenied(err) {
		return 1
	}
	fmt.Fprintln(os.Stderr, err)
	return 2
}
