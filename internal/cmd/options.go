package cmd

import (
	"fmt"

	goFlags "github.com/jessevdk/go-flags"
)

// options are the command-line arguments.
type options struct {
	// ConfigPath is the path to the YAML configuration file.
	ConfigPath string `short:"c" long:"config" description:"Path to the YAML configuration file. Overrides CONFIG_PATH."`

	// FilterLists are the paths to the additional filter lists.
	FilterLists []string `short:"f" long:"filter" description:"Path to the filter list. Can be specified multiple times."`

	// RequestsPath is the path to the JSON-lines file with the requests to
	// match, "-" means stdin.
	RequestsPath string `short:"r" long:"requests" description:"Path to the JSON-lines file with requests. Use \"-\" for stdin." default:"-"`

	// LogOutput is the path to the log file.
	LogOutput string `short:"o" long:"output" description:"Path to the log file. If not set, it writes to stderr." default:""`

	// MetricsAddr is the address of the Prometheus metrics HTTP handler.
	MetricsAddr string `long:"metrics-addr" description:"Address to serve the Prometheus metrics on. Overrides METRICS_ADDR."`

	// Verbose enables debug-level logging.
	Verbose bool `short:"v" long:"verbose" description:"Verbose output (optional)." optional:"yes" optional-value:"true"`
}

// parseOptions parses the command-line arguments.  isHelp is true if the user
// requested the help message, in which case opts is nil.
func parseOptions(args []string) (opts *options, isHelp bool, err error) {
	opts = &options{}
	parser := goFlags.NewParser(opts, goFlags.Default)

	_, err = parser.ParseArgs(args)
	if err != nil {
		if flagsErr, ok := err.(*goFlags.Error); ok && flagsErr.Type == goFlags.ErrHelp {
			return nil, true, nil
		}

		return nil, false, fmt.Errorf("parsing options: %w", err)
	}

	return opts, false, nil
}
