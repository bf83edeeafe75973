package cmd

import (
	"fmt"
	"github.com/cottand/refine/fixpoint"
	"github.com/cottand/refine/internal/log"
	"github.com/cottand/refine/refine"
	"github.com/cottand/refine/ty"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

var logger = log.DefaultLogger.With("section", "cmd")

// commonFlags are understood by every subcommand and override refine.yaml
type commonFlags struct {
	config      *string
	workers     *int
	logLevel    *string
	logSections *string
	watch       *bool
}

func addCommonFlags(flags *pflag.FlagSet) *commonFlags {
	return &commonFlags{
		config:      flags.StringP("config", "c", "", "path of refine.yaml (default: searched from the program's directory upwards)"),
		workers:     flags.IntP("workers", "j", 0, "functions checked at once (default: from config, or the number of CPUs)"),
		logLevel:    flags.StringP("log-level", "l", "", "log level: debug, info, warn or error"),
		logSections: flags.String("log-sections", "", "comma separated sections to log below warning level, e.g. tycheck,fixpoint"),
		watch:       flags.BoolP("watch", "w", false, "run again whenever the program changes"),
	}
}

// session is everything one invocation needs: the program's path, the merged
// configuration and a logger tagged with the run id
type session struct {
	target string
	cfg    *refine.Config
	quals  []fixpoint.Qualifier
	logger *slog.Logger
}

func newSession(cmd *cobra.Command, target string, flags *commonFlags) (*session, error) {
	target, err := filepath.Abs(target)
	if err != nil {
		return nil, fmt.Errorf("could not get absolute path of target: %w", err)
	}
	stat, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("could not stat target: %w", err)
	}
	if stat.IsDir() {
		return nil, fmt.Errorf("%s is a directory, expected a program file", target)
	}

	cfgPath := *flags.config
	if cfgPath == "" {
		if cfgPath, err = refine.FindConfig(filepath.Dir(target)); err != nil {
			return nil, fmt.Errorf("could not look for %s: %w", refine.ConfigFile, err)
		}
	}
	cfg := refine.DefaultConfig()
	if cfgPath != "" {
		if cfg, err = refine.LoadConfig(cfgPath); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = *flags.workers
	}
	if *flags.logLevel != "" {
		cfg.LogLevel = *flags.logLevel
	}
	log.SetLevel(cfg.Level())
	if *flags.logSections != "" {
		log.EnableSections(strings.Split(*flags.logSections, ",")...)
	}

	// config qualifiers are compiled once; program qualifiers come with each load
	quals, err := refine.ParseQualifiers(ty.NewCtxt(), cfg.Qualifiers)
	if err != nil {
		return nil, fmt.Errorf("could not read qualifiers from %s: %w", cfgPath, err)
	}

	s := &session{
		target: target,
		cfg:    cfg,
		quals:  quals,
		logger: logger.With("run", uuid.NewString()),
	}
	s.logger.Info("starting", "target", target, "config", cfgPath, "workers", cfg.Workers)
	return s, nil
}

// load reads the program afresh, into its own type context
func (s *session) load() (*ty.Ctxt, *refine.Program, error) {
	tcx := ty.NewCtxt()
	prog, err := refine.Load(tcx, s.target)
	if err != nil {
		return nil, nil, fmt.Errorf("could not load program: %w", err)
	}
	return tcx, prog, nil
}
