package cli

import "flag"

const versionString = "1.0.0"
const defaultConfigPath = "./cobolscan.toml"

type cliOptions struct {
	configPath  string
	once        bool
	ui          bool
	outline     string
	refs        string
	exportCache string
	verbose     bool
	version     bool
	args        []string
}

func parseOptions(args []string) (cliOptions, error) {
	var opts cliOptions
	fs := flag.NewFlagSet("cobolscan", flag.ContinueOnError)

	fs.StringVar(&opts.configPath, "config", defaultConfigPath, "Path to config file")
	fs.BoolVar(&opts.once, "once", false, "Run single scan and exit")
	fs.BoolVar(&opts.ui, "ui", false, "Enable terminal UI mode")
	fs.StringVar(&opts.outline, "outline", "", "Print the token outline of one source file and exit")
	fs.StringVar(&opts.refs, "refs", "", "Print definitions and references of a name across the workspace and exit")
	fs.StringVar(&opts.exportCache, "export-cache", "", "Write the workspace cache records to this path after the initial scan")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&opts.version, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, err
	}

	opts.args = fs.Args()
	return opts, nil
}
