package cli

import (
	"flag"
)

const (
	jsonFlagName     = "json"
	envFileFlagName  = "env-file"
	verboseFlagName  = "verbose"
	versionFlagName  = "version"
	hostFlagName     = "host"
	portFlagName     = "port"
	userFlagName     = "user"
	passwordFlagName = "password"
	dbFlagName       = "db"
	imageFlagName    = "image"
)

func jsonFlag(f *flag.FlagSet) {
	f.Bool(jsonFlagName, false, "Output results in JSON format")
}

func envFileFlag(f *flag.FlagSet) {
	f.String(envFileFlagName, "", "Load environment variables from file (default .env, if present)")
}

func verboseFlag(f *flag.FlagSet) {
	f.Bool(verboseFlagName, false, "Log debug output, including image pulls, to stderr")
}

// containerFlags override the PGFIXTURE_* environment variables.
func containerFlags(f *flag.FlagSet) {
	f.String(hostFlagName, "", "Host address the postgres port is published on")
	f.Int(portFlagName, 0, "Host port; a free port is picked when unset")
	f.String(userFlagName, "", "Database user")
	f.String(passwordFlagName, "", "Database password; a random one is generated when unset")
	f.String(dbFlagName, "", "Database name")
	f.String(imageFlagName, "", "Postgres image")
}
