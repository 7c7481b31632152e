package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/andywolf/delimreport/internal/config"
	"github.com/andywolf/delimreport/internal/version"
)

// newRootCmd builds the command tree around v. Every command reads its
// settings from v, so flags, the config file and the environment resolve in
// viper's usual order.
func newRootCmd(v *viper.Viper) *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "delimreport",
		Short: "Report unsupported version delimiters to a GitHub issue",
		Long: `delimreport keeps one GitHub issue up to date with the version identifiers
a CI job found unsupported.

The first report opens an issue labelled "unsupported-version". Later runs
comment on that issue with only the versions it does not mention yet, and do
nothing when there is nothing new.

Example:
  VERSIONS='{"node@21": {"delimiter": "~"}}' delimreport report --repo octo/widgets`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cmd, v, cfgFile)
		},
	}

	rootCmd.Version = version.Short()
	rootCmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .delimreport.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")
	bindFlags(v, rootCmd.PersistentFlags(), map[string]string{"verbose": "verbose"})

	rootCmd.AddCommand(
		newReportCmd(v),
		newConfigCmd(v),
		newVersionCmd(),
	)

	return rootCmd
}

// bindFlags binds each flag to its config key.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for flag, key := range keys {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}
}

func initConfig(cmd *cobra.Command, v *viper.Viper, cfgFile string) error {
	config.SetDefaults(v)
	if err := config.BindEnvironment(v); err != nil {
		return err
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		v.AddConfigPath(cwd)
		v.SetConfigType("yaml")
		v.SetConfigName(".delimreport")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
		return nil
	}

	if v.GetBool("verbose") {
		fmt.Fprintln(cmd.ErrOrStderr(), "Using config file:", v.ConfigFileUsed())
	}
	return nil
}

// Execute runs the root command
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with ctx, which is cancelled on
// SIGINT/SIGTERM by the caller.
func ExecuteContext(ctx context.Context) error {
	return newRootCmd(viper.New()).ExecuteContext(ctx)
}
