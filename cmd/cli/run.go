package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/tessworth/routinely/pkg/browser"
	"github.com/tessworth/routinely/pkg/engine"
	"github.com/tessworth/routinely/pkg/httpclient"
	"github.com/tessworth/routinely/pkg/log"
	"github.com/tessworth/routinely/pkg/log/sinks"
	"github.com/tessworth/routinely/pkg/routine"
	"github.com/tessworth/routinely/pkg/security"
)

type RunCmd struct {
	Routine  string `arg:"" help:"The routine definition file (JSON or YAML)."`
	Varfile  string `help:"The YAML varfile for parameter values." default:"rtvars.yml"`
	Attach   string `help:"DevTools websocket URL of a running browser to attach to."`
	Headless bool   `help:"Launch the browser headless." default:"true"`
}

func (r *RunCmd) Run() error {
	runID := uuid.New().String()

	consoleSink := sinks.NewConsoleSink()

	logsDir := ".routinely/logs"
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("creating logs directory %q: %w", logsDir, err)
	}
	logFilePath := filepath.Join(logsDir, fmt.Sprintf("%s.json", runID))
	fileSink, err := sinks.NewFileSink(logFilePath)
	if err != nil {
		return fmt.Errorf("creating file log sink: %w", err)
	}

	logRouter := log.NewRouter()
	logRouter.AddSink(consoleSink)
	logRouter.AddSink(fileSink)

	baseZerolog := zerolog.New(logRouter).With().Timestamp().Logger()
	cmdLogger := log.NewZerologAdapter(baseZerolog)

	cmdLogger.Info().Msgf("Logs will be saved to %q", logFilePath)

	defer func() {
		if err := logRouter.Close(); err != nil {
			fmt.Printf("Error during log shutdown: %v", err)
		}
	}()

	if err := godotenv.Load(); err != nil {
		cmdLogger.Warn().Err(err).Msg("No .env file found or error thrown while loading it. Relying on existing ENV if vars use {{ env.* }}")
	}

	rt, err := routine.LoadFromFile(r.Routine)
	if err != nil {
		cmdLogger.Error().Err(err).Msgf("Failed to load routine file %s", r.Routine)
		return fmt.Errorf("loading routine file %q: %w", r.Routine, err)
	}
	cmdLogger.Info().Msgf("Successfully loaded routine: %q", rt.Name)

	if report := routine.Validate(rt, engine.DefaultNamespaces(), engine.DefaultBuiltins()); !report.Empty() {
		for _, name := range report.Unused {
			cmdLogger.Error().Str("parameter", name).Msg("Declared parameter is never referenced")
		}
		for _, ref := range report.Undefined {
			cmdLogger.Error().Str("placeholder", ref.Name).Int("op_index", ref.OpIndex).Msg("Placeholder does not name a declared parameter or builtin")
		}
		return report.Err()
	}
	cmdLogger.Info().Msg("Routine validation passed")

	var values map[string]any
	if _, statErr := os.Stat(r.Varfile); os.IsNotExist(statErr) {
		cmdLogger.Warn().Msgf("Varfile %s not found. Proceeding without parameter values.", r.Varfile)
		values = make(map[string]any)
	} else {
		values, err = routine.ResolveVarfile(r.Varfile)
		if err != nil {
			cmdLogger.Error().Err(err).Msgf("Could not resolve varfile %q", r.Varfile)
			return err
		}
		cmdLogger.Info().Msgf("Successfully loaded and resolved varfile: %s", r.Varfile)
	}

	if err := routine.ValidateRequiredValues(rt, values); err != nil {
		cmdLogger.Error().Err(err).Msg("Required parameter validation failed")
		return err
	}

	logRouter.SetRedactor(security.NewRedactor(rt.Parameters, values))

	ctx := context.Background()

	surface, err := browser.NewChrome(ctx, browser.Options{
		AttachURL: r.Attach,
		Headless:  r.Headless,
	})
	if err != nil {
		cmdLogger.Error().Err(err).Msg("Failed to start browser session")
		return fmt.Errorf("starting browser session: %w", err)
	}
	defer surface.Close()

	exec := engine.New(surface, httpclient.New(cmdLogger), cmdLogger, engine.Options{})

	report, err := exec.Execute(ctx, rt, values)
	if report != nil {
		cmdLogger.Info().
			Str("status", report.Status.String()).
			Int("operations_traced", len(report.Trace)).
			Msgf("Run %s finished", report.RunID)
	}
	if err != nil {
		return err
	}

	cmdLogger.Info().Msgf("Routine completed successfully. Logs can be found at %q", logFilePath)
	return nil
}
