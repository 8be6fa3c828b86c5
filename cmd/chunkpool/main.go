package main

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ajitpratap0/chunkpool/pkg/config"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Flags are bound to a viper instance
// so CHUNKPOOL_* environment variables can override config file values.
func newRootCmd(out io.Writer) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("chunkpool")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "chunkpool",
		Short: "chunkpool - chunked object pool allocator",
		Long: `chunkpool drives allocate/traverse/release workloads through a chunked
object pool and reports timings, pool statistics and invariant checks.`,
		SilenceUsage: true,
	}
	root.SetOut(out)

	root.PersistentFlags().String("config", "", "Path to YAML configuration file")
	root.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	_ = v.BindPFlag("config", root.PersistentFlags().Lookup("config"))
	_ = v.BindPFlag("logging.level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "chunkpool v%s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "Go version: %s\n", runtime.Version())
			fmt.Fprintf(cmd.OutOrStdout(), "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(newConfigCmd(v))
	root.AddCommand(newBenchCmd(v))
	return root
}

func newConfigCmd(v *viper.Viper) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Long: `Print the configuration bench would run with: defaults, then the
--config file, then CHUNKPOOL_* environment overrides. With --output the
YAML is written to a file that --config accepts.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			if output != "" {
				if err := config.Save(output, cfg); err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
				return err
			}
			data, err := config.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the configuration to this file instead of stdout")
	return cmd
}

// loadConfig layers defaults, the optional config file and any viper
// overrides (flags that were set, CHUNKPOOL_* variables), then validates.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	cfg := config.Default()
	if path := v.GetString("config"); path != "" {
		loaded, err := config.LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if v.IsSet("pool.name") {
		cfg.Pool.Name = v.GetString("pool.name")
	}
	if v.IsSet("pool.chunk_size") {
		cfg.Pool.ChunkSize = v.GetInt("pool.chunk_size")
	}
	if v.IsSet("pool.initial_chunks") {
		cfg.Pool.InitialChunks = v.GetInt("pool.initial_chunks")
	}
	if v.IsSet("pool.max_chunks") {
		cfg.Pool.MaxChunks = v.GetInt("pool.max_chunks")
	}
	if v.IsSet("bench.objects") {
		cfg.Bench.Objects = v.GetInt("bench.objects")
	}
	if v.IsSet("bench.rounds") {
		cfg.Bench.Rounds = v.GetInt("bench.rounds")
	}
	if v.IsSet("bench.release_ratio") {
		cfg.Bench.ReleaseRatio = v.GetFloat64("bench.release_ratio")
	}
	if v.IsSet("bench.tag_every") {
		cfg.Bench.TagEvery = v.GetInt("bench.tag_every")
	}
	if v.IsSet("bench.seed") {
		cfg.Bench.Seed = v.GetInt64("bench.seed")
	}
	if v.IsSet("bench.workers") {
		cfg.Bench.Workers = v.GetInt("bench.workers")
	}
	if v.IsSet("logging.level") {
		cfg.Logging.Level = v.GetString("logging.level")
	}
	if v.IsSet("tracing.enabled") {
		cfg.Tracing.Enabled = v.GetBool("tracing.enabled")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
