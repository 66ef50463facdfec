package observability

import (
	"fmt"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
)

var (
	// CLILogger is used by commands (SIMPLE profile)
	CLILogger *logging.Logger

	// ServerLogger is used by the HTTP server and the submission pipeline (STRUCTURED profile)
	ServerLogger *logging.Logger
)

// ServerLoggerOptions selects how the server logger is built.
type ServerLoggerOptions struct {
	Service string
	// Level is one of trace, debug, info, warn, error. Unknown values mean info.
	Level string
	// Mode is the run mode (development, production) stamped on every record.
	Mode      string
	Namespace string
	// Format is json or console.
	Format string
}

// InitCLILogger initializes the CLI logger with SIMPLE profile
func InitCLILogger(serviceName string, verbose bool) {
	logger, err := logging.NewCLI(serviceName)
	if err != nil {
		exitWithCodeStderr(foundry.ExitConfigInvalid, "Failed to initialize CLI logger", err)
	}
	if verbose {
		logger.SetLevel(logging.DEBUG)
	}
	CLILogger = logger
}

// InitServerLogger replaces ServerLogger. Failure to build a logger is fatal.
func InitServerLogger(opts ServerLoggerOptions) {
	logger, err := NewServerLogger(opts)
	if err != nil {
		exitWithCodeStderr(foundry.ExitConfigInvalid, "Failed to initialize server logger", err)
	}
	ServerLogger = logger
}

// NewServerLogger builds a STRUCTURED logger writing to stderr with
// correlation IDs attached.
func NewServerLogger(opts ServerLoggerOptions) (*logging.Logger, error) {
	mode := strings.TrimSpace(opts.Mode)
	if mode == "" {
		mode = "development"
	}

	static := map[string]any{}
	if opts.Namespace != "" {
		static["namespace"] = opts.Namespace
	}

	return logging.New(&logging.LoggerConfig{
		Profile:      logging.ProfileStructured,
		DefaultLevel: logLevel(opts.Level),
		Service:      opts.Service,
		Environment:  mode,
		StaticFields: static,
		Middleware: []logging.MiddlewareConfig{
			{Name: "correlation", Enabled: true, Order: 100, Config: map[string]any{}},
		},
		Sinks: []logging.SinkConfig{{
			Type:    "console",
			Format:  sinkFormat(opts.Format),
			Console: &logging.ConsoleSinkConfig{Stream: "stderr"},
		}},
		EnableCaller:     true,
		EnableStacktrace: mode != "development",
	})
}

func sinkFormat(format string) string {
	if strings.EqualFold(strings.TrimSpace(format), "console") {
		return "console"
	}
	return "json"
}

func logLevel(level string) string {
	switch l := strings.ToUpper(strings.TrimSpace(level)); l {
	case "TRACE", "DEBUG", "WARN", "ERROR":
		return l
	case "WARNING":
		return "WARN"
	default:
		return "INFO"
	}
}

// exitWithCodeStderr is used when logger construction itself fails.
func exitWithCodeStderr(exitCode foundry.ExitCode, msg string, err error) {
	fmt.Fprintf(os.Stderr, "FATAL: %s: %v\n", msg, err)
	if info, ok := foundry.GetExitCodeInfo(exitCode); ok {
		fmt.Fprintf(os.Stderr, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)
		os.Exit(info.Code)
	}
	os.Exit(int(exitCode))
}
