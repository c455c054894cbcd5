// Package cfg resolves the CLI configuration from the environment, optionally seeded from an env
// file.
package cfg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pressly/pgfixture"
)

const (
	EnvHost     = "PGFIXTURE_HOST"
	EnvPort     = "PGFIXTURE_PORT"
	EnvUser     = "PGFIXTURE_USER"
	EnvPassword = "PGFIXTURE_PASSWORD"
	EnvDB       = "PGFIXTURE_DB"
	EnvImage    = "PGFIXTURE_IMAGE"
	// https://no-color.org/
	EnvNoColor = "NO_COLOR"
)

// DefaultEnvFile is loaded when no env file is named and it exists.
const DefaultEnvFile = ".env"

var (
	DefaultHost     = "127.0.0.1"
	DefaultUser     = "user"
	DefaultDatabase = "demo"
)

// Values are the resolved settings. A zero Port means a free port is picked; an empty Password
// means a random one is generated.
type Values struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Image    string
	NoColor  bool
}

// LoadEnvFile adds the variables from path to the process environment. Variables that are
// already set are kept. An empty path loads DefaultEnvFile if it exists.
func LoadEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(DefaultEnvFile); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		path = DefaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %q: %w", path, err)
	}
	return nil
}

// Load reads the values from the environment.
func Load() (Values, error) {
	v := Values{
		Host:     envOr(EnvHost, DefaultHost),
		User:     envOr(EnvUser, DefaultUser),
		Password: os.Getenv(EnvPassword),
		Database: envOr(EnvDB, DefaultDatabase),
		Image:    envOr(EnvImage, pgfixture.DefaultImage),
	}
	if s := os.Getenv(EnvPort); s != "" {
		port, err := strconv.Atoi(s)
		if err != nil || port < 0 || port > 65535 {
			return Values{}, fmt.Errorf("invalid %s: %q", EnvPort, s)
		}
		v.Port = port
	}
	v.NoColor = NoColor()
	return v, nil
}

// NoColor reports whether NO_COLOR is set to anything other than an explicit false.
func NoColor() bool {
	s := os.Getenv(EnvNoColor)
	if s == "" {
		return false
	}
	ok, err := strconv.ParseBool(s)
	return err != nil || ok
}

// Config turns v into a pgfixture.Config, filling in a free port and a random password when they
// are unset.
func (v Values) Config() (pgfixture.Config, error) {
	port := v.Port
	if port == 0 {
		var err error
		if port, err = pgfixture.FreePort(v.Host); err != nil {
			return pgfixture.Config{}, err
		}
	}
	password := v.Password
	if password == "" {
		var err error
		if password, err = pgfixture.RandomPassword(); err != nil {
			return pgfixture.Config{}, err
		}
	}
	cfg := pgfixture.NewConfig(v.Host, port, v.User, password, v.Database)
	if err := cfg.Validate(); err != nil {
		return pgfixture.Config{}, err
	}
	return cfg, nil
}

// An EnvVar is an environment variable Name=Value.
type EnvVar struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// List returns the variables understood by the CLI with their resolved values. The password is
// masked.
func (v Values) List() []EnvVar {
	password := ""
	if v.Password != "" {
		password = "xxxxx"
	}
	port := ""
	if v.Port != 0 {
		port = strconv.Itoa(v.Port)
	}
	return []EnvVar{
		{Name: EnvHost, Value: v.Host},
		{Name: EnvPort, Value: port},
		{Name: EnvUser, Value: v.User},
		{Name: EnvPassword, Value: password},
		{Name: EnvDB, Value: v.Database},
		{Name: EnvImage, Value: v.Image},
		{Name: EnvNoColor, Value: strconv.FormatBool(v.NoColor)},
	}
}

// envOr returns os.Getenv(key) if set, or else default.
func envOr(key, def string) string {
	val := os.Getenv(key)
	if val == "" {
		val = def
	}
	return val
}
