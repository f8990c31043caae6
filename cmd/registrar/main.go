// Package main - консольная утилита администратора BIT College Registrar.
//
// Утилита выполняет миграции, заполняет справочник статусов, выдаёт номера
// из последовательностей, выставляет оценки и пересчитывает академический
// статус студентов.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bitcollege/registrar/config"
	"github.com/bitcollege/registrar/internal/domain/shared"
	"github.com/bitcollege/registrar/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps registration rule violations to 1, 2 and 3 (codes -100,
// -200 and -300) and an interrupt to 130.
func exitCode(err error) int {
	if code := shared.RegistrationErrorCode(err); code != 0 {
		return -code / 100
	}
	if errors.Is(err, context.Canceled) {
		return 130
	}
	return 1
}

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	envFiles []string
	logLevel string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "registrar",
		Short:         "BIT College academic standing and numbering tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", nil, "dotenv files to load (default .env if present)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override LOG_LEVEL")

	root.AddCommand(
		newMigrateCommand(opts),
		newSeedCommand(opts),
		newNextNumberCommand(opts),
		newGradeCommand(),
		newEnrolCommand(opts),
		newCourseCommand(opts),
		newRegisterCommand(opts),
		newSubmitGradeCommand(opts),
		newReconcileCommand(opts),
		newWatchCommand(opts),
		newTuitionCommand(opts),
		newEventsCommand(opts),
	)
	return root
}

// loadConfig reads configuration and builds the logger.
func loadConfig(opts *rootOptions) (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(opts.envFiles...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Observability.LogLevel
	if opts.logLevel != "" {
		level = opts.logLevel
	}
	log := logger.New(logger.Options{
		Output:    os.Stderr,
		Level:     logger.ParseLevel(level),
		Format:    logger.ParseFormat(cfg.Observability.LogFormat),
		AddCaller: !cfg.IsProduction(),
	}).With(
		logger.String("app", cfg.App.Name),
		logger.String("env", string(cfg.App.Environment)),
	)
	return cfg, log, nil
}

// withApp loads configuration, wires the app, seeds the standing table and
// runs fn with it.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, a *app) error) error {
	cfg, log, err := loadConfig(opts)
	if err != nil {
		return err
	}

	ctx := logger.WithContext(cmd.Context(), log)
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if cmd.Annotations[annotationSkipSeed] == "" {
		if err := a.seedStandings(ctx); err != nil {
			return err
		}
	}
	return fn(ctx, a)
}

// annotationSkipSeed marks commands that run before the schema exists.
const annotationSkipSeed = "registrar/skip-seed"
