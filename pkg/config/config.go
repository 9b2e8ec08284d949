package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v2"
)

const (
	configDir  string = ".dwarfscan"
	configFile string = "config.yml"
)

// SubstitutePathRule describes a rule for substitution of path to source code file.
type SubstitutePathRule struct {
	// Directory path will be substituted if it matches `From`.
	From string
	// Path to which substitution is performed.
	To string
}

// SubstitutePathRules is a slice of source code path substitution rules.
type SubstitutePathRules []SubstitutePathRule

// Config defines all configuration options available to be set through the config file.
type Config struct {
	// Color selects when output is colored: "auto", "always" or "never".
	Color string `yaml:"color,omitempty"`

	// MaxDepth limits the nesting depth printed by the info command.
	MaxDepth *int `yaml:"max-depth,omitempty"`

	// Jobs is the number of units verified concurrently.
	Jobs *int `yaml:"jobs,omitempty"`

	// LogOutput is the default value of --log-output.
	LogOutput string `yaml:"log-output,omitempty"`

	// Source code path substitution rules.
	SubstitutePath SubstitutePathRules `yaml:"substitute-path"`

	// If NormalizeBackslash is true backslashes in line table paths are
	// converted to forward slashes.
	NormalizeBackslash bool `yaml:"normalize-backslash"`
}

// LoadConfig attempts to populate a Config object from the config.yml file.
func LoadConfig() *Config {
	err := createConfigPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not create config directory: %v.\n", err)
		return &Config{}
	}
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to get config file path: %v.\n", err)
		return &Config{}
	}

	f, err := os.Open(fullConfigFile)
	if err != nil {
		f, err = createDefaultConfig(fullConfigFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating default config file: %v\n", err)
			return &Config{}
		}
	}
	defer func() {
		err := f.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Closing config file failed: %v.\n", err)
		}
	}()

	c, err := readConfig(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to decode config file: %v.\n", err)
		return &Config{}
	}
	return c
}

func readConfig(f *os.File) (*Config, error) {
	data, err := ioutil.ReadAll(f)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Substitute applies the substitution rules of c to path. The first rule
// whose From directory contains path wins.
func (c *Config) Substitute(path string) string {
	if c == nil {
		return path
	}
	separator := "/"
	if strings.Contains(path, "\\") {
		separator = "\\"
	}
	for _, r := range c.SubstitutePath {
		from, to := r.From, r.To
		if !strings.HasSuffix(from, separator) {
			from += separator
		}
		if !strings.HasSuffix(to, separator) {
			to += separator
		}
		if strings.HasPrefix(path, from) {
			return to + path[len(from):]
		}
	}
	return path
}

func createDefaultConfig(path string) (*os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("unable to create config file: %v", err)
	}
	err = writeDefaultConfig(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("unable to write default configuration: %v", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func writeDefaultConfig(f *os.File) error {
	_, err := f.WriteString(
		`# Configuration file for dwarfscan.

# This is the default configuration file. Available options are provided, but disabled.
# Delete the leading hash mark to enable an item.

# When to color output: auto, always or never.
# color: auto

# Maximum nesting depth printed by the info command.
# max-depth: 8

# Number of units checked concurrently by the verify command.
# jobs: 4

# Components to log, same syntax as --log-output.
# log-output: loader

# Define sources path substitution rules. Can be used to rewrite a source path stored
# in program's debug information, if the sources were moved to a different place
# after compilation.
substitute-path:
  # - {from: path, to: path}

# Uncomment the following line to convert backslashes in line table paths to slashes.
# normalize-backslash: true
`)
	return err
}

// createConfigPath creates the directory structure at which all config files are saved.
func createConfigPath() error {
	path, err := GetConfigFilePath("")
	if err != nil {
		return err
	}
	return os.MkdirAll(path, 0700)
}

// GetConfigFilePath gets the full path to the given config file name.
func GetConfigFilePath(file string) (string, error) {
	userHomeDir, err := homedir.Dir()
	if err != nil {
		userHomeDir = "."
	}
	return filepath.Join(userHomeDir, configDir, file), nil
}
