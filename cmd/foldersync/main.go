package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/openmined/foldersync/internal/config"
	"github.com/openmined/foldersync/internal/handle/s3tree"
	"github.com/openmined/foldersync/internal/utils"
	"github.com/openmined/foldersync/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "FOLDERSYNC"

// cli carries the state shared by the commands of one invocation.
type cli struct {
	root    *cobra.Command
	v       *viper.Viper
	cfg     *config.Config
	logFile *os.File
}

func newCLI() *cli {
	c := &cli{v: viper.New()}

	c.root = &cobra.Command{
		Use:          "foldersync",
		Short:        "Keep pairs of folders in sync",
		Version:      version.Detailed(),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, c.v)
			if err != nil {
				return err
			}
			c.cfg = cfg

			verbose, _ := cmd.Flags().GetBool("verbose")
			if err := c.setupLogging(cfg.LogFile, verbose); err != nil {
				return err
			}
			slog.Debug("config loaded", "path", cfg.Path, "config", cfg)
			return nil
		},
	}

	flags := c.root.PersistentFlags()
	flags.SortFlags = false
	flags.StringP("config", "c", config.DefaultConfigPath, "foldersync config file")
	flags.StringP("datadir", "d", config.DefaultDataDir, "foldersync data directory")
	flags.BoolP("verbose", "v", false, "debug logging")

	c.root.AddCommand(
		newSyncCmd(c),
		newPairCmd(c),
		newHistoryCmd(c),
		newVersionCmd(),
	)
	return c
}

// Close releases the log file.
func (c *cli) Close() {
	if c.logFile != nil {
		c.logFile.Close()
		c.logFile = nil
	}
}

func main() {
	c := newCLI()
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := c.root.ExecuteContext(ctx); err != nil {
		c.Close()
		stop()
		os.Exit(1)
	}
}

func (c *cli) setupLogging(logPath string, verbose bool) error {
	if err := utils.EnsureParent(logPath); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	c.Close()
	c.logFile = file

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	// command output goes to stdout, logs to stderr
	stderrHandler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})
	fileHandler := slog.NewTextHandler(utils.NewLogInterceptor(file), &slog.HandlerOptions{
		Level: slog.LevelDebug,
		// the interceptor stamps each line
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	})

	slog.SetDefault(slog.New(utils.NewMultiLogHandler(stderrHandler, fileHandler)))
	return nil
}

// loadConfig merges, lowest first: defaults, the config file, FOLDERSYNC_* environment
// variables (a .env file in the working directory is loaded into the environment first) and
// flags.
func loadConfig(cmd *cobra.Command, v *viper.Viper) (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	configPath := resolveConfigPath(cmd)
	v.SetConfigFile(configPath)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, ok := err.(viper.ConfigFileNotFoundError)
		if !enoent && !ok {
			return nil, fmt.Errorf("config read '%s': %w", configPath, err)
		}
	}

	v.SetDefault("data_dir", config.DefaultDataDir)
	v.SetDefault("mode", "two-way")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if f := cmd.Flags().Lookup("datadir"); f != nil && f.Changed {
		v.Set("data_dir", f.Value.String())
	}

	cfg := &config.Config{
		Path:           configPath,
		DataDir:        v.GetString("data_dir"),
		PairsFile:      v.GetString("pairs_file"),
		JournalFile:    v.GetString("journal_file"),
		LogFile:        v.GetString("log_file"),
		Mode:           v.GetString("mode"),
		Ignore:         v.GetStringSlice("ignore"),
		IgnoreDefaults: v.GetBool("ignore_defaults"),
		MetricsFile:    v.GetString("metrics_file"),
		S3: s3tree.Config{
			Region:       v.GetString("s3.region"),
			Endpoint:     v.GetString("s3.endpoint"),
			AccessKey:    v.GetString("s3.access_key"),
			SecretKey:    v.GetString("s3.secret_key"),
			UsePathStyle: v.GetBool("s3.use_path_style"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveConfigPath honors, in order, the --config flag, FOLDERSYNC_CONFIG_PATH and the
// default path.
func resolveConfigPath(cmd *cobra.Command) string {
	if f := cmd.Flags().Lookup("config"); f != nil && f.Changed {
		return f.Value.String()
	}
	if envPath := os.Getenv(envPrefix + "_CONFIG_PATH"); envPath != "" {
		return envPath
	}
	return config.DefaultConfigPath
}
