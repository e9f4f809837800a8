// Package cli implements the captcha-ocr-devkit command line
// interface.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/changyy/captcha-ocr-devkit/pkg/config"
	"github.com/changyy/captcha-ocr-devkit/pkg/infra/logger"
	"github.com/changyy/captcha-ocr-devkit/pkg/infra/store"
	"github.com/changyy/captcha-ocr-devkit/pkg/registry"
)

var (
	cliVersion   = "dev"
	cliBuildDate = "unknown"
	cliGitCommit = "unknown"
)

type RootCommand struct {
	cmd       *cobra.Command
	cfg       *config.Config
	registry  *registry.Registry
	opts      *OutputOptions
	formatStr string
}

func NewRootCommand() *RootCommand {
	root := &RootCommand{
		opts: NewOutputOptions(),
	}

	cmd := &cobra.Command{
		Use:   "captcha-ocr-devkit",
		Short: "Handler-based CAPTCHA recognition toolkit",
		Long: `captcha-ocr-devkit is a development kit for CAPTCHA recognition.

Recognition logic lives in pluggable handlers discovered from a
handlers directory. The toolkit trains models, evaluates them,
serves an OCR API, and generates labeled captcha datasets.`,
		PersistentPreRunE: root.persistentPreRunE,
	}

	pflags := cmd.PersistentFlags()

	pflags.StringVarP(&root.formatStr, "output", "o", "table", "Output format (table, json, yaml)")
	pflags.BoolVarP(&root.opts.Quiet, "quiet", "q", false, "Suppress output")
	pflags.String("config", "", "Config file path (TOML)")
	pflags.String("handlers", "", "Handlers directory (overrides config)")

	viper.BindPFlag("output", pflags.Lookup("output"))
	viper.BindPFlag("quiet", pflags.Lookup("quiet"))
	viper.BindPFlag("config", pflags.Lookup("config"))
	viper.BindPFlag("handlers", pflags.Lookup("handlers"))

	root.cmd = cmd

	root.addSubCommands()

	return root
}

func (r *RootCommand) persistentPreRunE(cmd *cobra.Command, args []string) error {
	r.opts.Format = OutputFormat(r.formatStr)

	cfgPath := viper.GetString("config")
	var err error
	r.cfg, err = config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if dir := viper.GetString("handlers"); dir != "" {
		r.cfg.General.HandlersDir = dir
	}

	logCfg := logger.Config{
		Level:  r.cfg.Logging.Level,
		Format: r.cfg.Logging.Format,
	}
	if r.cfg.Logging.File != "" {
		if f, err := os.OpenFile(r.cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			logCfg.Output = f
		}
	}
	logger.Init(logCfg)

	r.registry = registry.New()
	if _, err := os.Stat(r.cfg.General.HandlersDir); err == nil {
		if _, err := r.registry.Discover(r.cfg.General.HandlersDir); err != nil {
			return fmt.Errorf("discover handlers: %w", err)
		}
	}

	return nil
}

func (r *RootCommand) addSubCommands() {
	r.cmd.AddCommand(NewVersionCommand(r))
	r.cmd.AddCommand(NewInitCommand(r))
	r.cmd.AddCommand(NewCreateHandlerCommand(r))
	r.cmd.AddCommand(NewTrainCommand(r))
	r.cmd.AddCommand(NewEvaluateCommand(r))
	r.cmd.AddCommand(NewAPICommand(r))
	r.cmd.AddCommand(NewGenerateCommand(r))
	r.cmd.AddCommand(NewHandlersCommand(r))
	r.cmd.AddCommand(NewRunsCommand(r))
}

// openRunStore opens the configured run-history store. Callers own
// the returned store and must Close it.
func (r *RootCommand) openRunStore() store.RunStore {
	return store.Open(r.cfg.Store.Driver, r.cfg.Store.Path)
}

func (r *RootCommand) Command() *cobra.Command {
	return r.cmd
}

func (r *RootCommand) Registry() *registry.Registry {
	return r.registry
}

func (r *RootCommand) Config() *config.Config {
	return r.cfg
}

func (r *RootCommand) OutputOptions() *OutputOptions {
	return r.opts
}

func (r *RootCommand) SetOutputWriter(w interface{ Write([]byte) (int, error) }) {
	r.opts.Writer = w
}

func (r *RootCommand) Execute() error {
	return r.cmd.Execute()
}

func (r *RootCommand) ExecuteContext(ctx context.Context) error {
	return r.cmd.ExecuteContext(ctx)
}

func Execute() {
	root := NewRootCommand()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func SetVersion(version, buildDate, gitCommit string) {
	cliVersion = version
	cliBuildDate = buildDate
	cliGitCommit = gitCommit
}

func GetVersion() string {
	return cliVersion
}

func GetBuildDate() string {
	return cliBuildDate
}

func GetGitCommit() string {
	return cliGitCommit
}
