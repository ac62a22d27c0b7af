package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/tessworth/routinely/pkg/engine"
	"github.com/tessworth/routinely/pkg/log"
	"github.com/tessworth/routinely/pkg/log/sinks"
	"github.com/tessworth/routinely/pkg/routine"
	"github.com/tessworth/routinely/pkg/script"
)

type LintCmd struct {
	Routine string `arg:"" help:"The routine definition file (JSON or YAML)."`
	Varfile string `help:"The YAML varfile for parameter values." default:"rtvars.yml"`
}

func (l *LintCmd) Run() error {
	consoleSink := sinks.NewConsoleSink()

	logRouter := log.NewRouter()
	logRouter.AddSink(consoleSink)

	baseZerolog := zerolog.New(logRouter).With().Timestamp().Logger()
	cmdLogger := log.NewZerologAdapter(baseZerolog)

	cmdLogger.Info().Msgf("Validating %s", l.Routine)

	if err := godotenv.Load(); err != nil {
		cmdLogger.Warn().Err(err).Msg("No .env file found or error thrown while loading it. Relying on existing ENV if vars use {{ env.* }}")
	}

	rt, err := routine.LoadFromFile(l.Routine)
	if err != nil {
		cmdLogger.Error().Err(err).Msgf("Failed to load routine file %s", l.Routine)
		return fmt.Errorf("loading routine file %q: %w", l.Routine, err)
	}
	cmdLogger.Info().Msgf("Successfully loaded routine: %q", rt.Name)

	report := routine.Validate(rt, engine.DefaultNamespaces(), engine.DefaultBuiltins())
	for _, name := range report.Unused {
		cmdLogger.Error().Str("parameter", name).Msg("Declared parameter is never referenced")
	}
	for _, ref := range report.Undefined {
		cmdLogger.Error().Str("placeholder", ref.Name).Int("op_index", ref.OpIndex).Msg("Placeholder does not name a declared parameter or builtin")
	}
	if err := report.Err(); err != nil {
		return err
	}
	cmdLogger.Info().Msg("Placeholder coverage validation passed")

	// Surface script defects that do not depend on parameter values.
	// Sources with placeholders still validate structurally since
	// substitution cannot introduce or remove the IIFE wrapper.
	denylist := script.DefaultDenylist()
	for i := range rt.Operations {
		op := &rt.Operations[i]
		if op.Kind != routine.OpEvaluateScript {
			continue
		}
		result := script.Validate(op.Script, denylist)
		for _, w := range result.Warnings {
			cmdLogger.Warn().Int("op_index", i).Str("warning", w).Msg("Script readability warning")
		}
		if !result.OK() {
			for _, e := range result.Errors {
				cmdLogger.Error().Int("op_index", i).Str("violation", e).Msg("Script validation failed")
			}
			return fmt.Errorf("operation %d script is invalid", i)
		}
	}

	if _, statErr := os.Stat(l.Varfile); statErr == nil {
		values, err := routine.ResolveVarfile(l.Varfile)
		if err != nil {
			cmdLogger.Error().Err(err).Msgf("Could not resolve varfile %q", l.Varfile)
			return err
		}
		if err := routine.ValidateRequiredValues(rt, values); err != nil {
			cmdLogger.Error().Err(err).Msg("Required parameter validation failed")
			return err
		}
		cmdLogger.Info().Msg("Required parameter validation passed")
	} else {
		cmdLogger.Warn().Msgf("Varfile %s not found; skipping required parameter checks", l.Varfile)
	}

	cmdLogger.Info().Msg("Successfully validated routine")
	return nil
}
