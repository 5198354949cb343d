package main

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/fanx/internal/shared"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
//
// A nil Config is loaded from the --config flag of each command.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, runCommand, cacheCommand, runsCommand, documentsCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig returns the injected config, or reads path (falling back to the
// embedded defaults when it does not exist). Environment secrets are applied
// and the result validated.
func (r *Runner) loadConfig(path string) (*shared.Config, error) {
	if r.config != nil {
		return r.config, nil
	}
	if path == "" {
		path = r.configPath
	}

	config := shared.DefaultConfig()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if config, err = shared.LoadConfig(path); err != nil {
				return nil, err
			}
		} else {
			r.logger.Debug("config file not found, using defaults", "path", path)
		}
	}

	config.ApplyEnv()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	r.config = config
	r.configPath = path
	return config, nil
}

// client returns the injected HTTP client or one bounded by the fetch timeout.
func (r *Runner) client(config *shared.Config) *http.Client {
	if r.httpClient != nil {
		return r.httpClient
	}
	return &http.Client{Timeout: config.Fetch.Timeout.Duration}
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
