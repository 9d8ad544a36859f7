package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var verbose bool

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vcfid",
		Short: "Rewrite VCF ID columns to CHROM:POS:REF:ALT",
		Long: `vcfid streams a VCF file and replaces the ID column of every data line
with CHROM:POS:REF:ALT. Header lines and all other bytes pass through
unchanged, so the output diffs against the input only inside column 3.`,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			initConfig()
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(newRewriteCmd())
	cmd.AddCommand(newVerifyCmd())
	cmd.AddCommand(newBenchCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("vcfid version %s (%s) built %s\n", version, commit, date)
		},
	}
}

// initConfig loads ~/.vcfid.yaml and VCFID_* environment overrides.
func initConfig() {
	viper.SetConfigName(".vcfid")
	viper.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
	}
	viper.SetEnvPrefix("VCFID")
	viper.AutomaticEnv()

	viper.SetDefault("rewrite.buffer_size", 0) // 0 means the package default
	viper.SetDefault("rewrite.blank_lines", "error")
	viper.SetDefault("rewrite.workers", 0)
	viper.SetDefault("bench.iterations", 3)
	viper.SetDefault("bench.db", defaultBenchDB())

	// A missing config file is fine; anything else is worth a warning.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Warning: could not read config: %v\n", err)
		}
	}
}

func defaultBenchDB() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "bench.duckdb"
	}
	return filepath.Join(home, ".vcfid", "bench.duckdb")
}

// buildLogger creates the process logger: quiet console output by default,
// development logging with --verbose.
func buildLogger() *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
