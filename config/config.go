/*
	fgblock - a blocklist aggregation tool by ScraperWall
	Copyright (C) 2021 ScraperWall, Tobias von Dewitz <tobias@scraperwall.com>

	This program is free software: you can redistribute it and/or modify it
	under the terms of the GNU Affero General Public License as published by
	the Free Software Foundation, either version 3 of the License, or (at your
	option) any later version.

	This program is distributed in the hope that it will be useful, but WITHOUT
	ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
	FITNESS FOR A PARTICULAR PURPOSE. See the GNU Affero General Public License
	for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program. If not, see <https://www.gnu.org/licenses/>.
*/

package config

import (
	"errors"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml"
)

// Config contains all configurable bits and pieces the fgblock application needs
// The configuration gets passed on to all parts of the application that need to access it
type Config struct {
	Threshold        int   `toml:"threshold_group_ips_into_subnets"`
	MaxEntries       int   `toml:"fg_max_entries"`
	MaxCommentLength int   `toml:"fg_max_comment_length"`
	MaxSizeBytes     int64 `toml:"fg_max_size_bytes"`

	RepoPath    string   `toml:"repo_path"`
	Remote      string   `toml:"remote"`
	Branch      string   `toml:"branch"`
	AuthorName  string   `toml:"git_author_name"`
	AuthorEmail string   `toml:"git_author_email"`
	CommitMsg   string   `toml:"commit_message"`
	InputFiles  []string `toml:"input_files_to_process"`
	OutputDir   string   `toml:"output_dir"`
	OutputName  string   `toml:"output_prefix"`

	IntervalHours int    `toml:"run_script_interval_hours"`
	Debug         bool   `toml:"debug"`
	LogLevel      string `toml:"log_level"`
	LogFile       string `toml:"log_file"`
	WatchInputs   bool   `toml:"watch_inputs"`

	AllowlistTOML string `toml:"allowlist_toml"`
	BadgerPath    string `toml:"badger_path"`
	NatsURL       string `toml:"nats_url"`
	NatsSubject   string `toml:"nats_subject"`
	APIAddress    string `toml:"api_address"`

	Registry Registry `toml:"registry"`
}

// Registry configures how registry metadata for new entries is looked up
type Registry struct {
	Provider     string `toml:"provider"`
	URL          string `toml:"url"`
	DNSServer    string `toml:"dns_server"`
	GeoIPDBFile  string `toml:"geoip_db_file"`
	ASNDBFile    string `toml:"asn_db_file"`
	TimeoutSecs  int    `toml:"timeout_seconds"`
	CacheTTLHour int    `toml:"cache_ttl_hours"`
}

// Registry providers
const (
	ProviderNone    = "none"
	ProviderIPWhois = "ipwhois"
	ProviderCymru   = "cymru"
	ProviderGeoDB   = "geodb"
)

// Default returns the configuration that is used for every option missing from the config file
func Default() Config {
	return Config{
		Threshold:        10,
		MaxEntries:       131072,
		MaxCommentLength: 63,
		MaxSizeBytes:     10 << 20,
		Remote:           "origin",
		Branch:           "main",
		AuthorName:       "fgblock",
		AuthorEmail:      "fgblock@localhost",
		CommitMsg:        "Update validated blocklists",
		InputFiles: []string{
			"add-manual-addresses-here.txt",
			"add-automated-addresses-here.txt",
		},
		OutputDir:     "output",
		OutputName:    "blocklist-industrial",
		IntervalHours: 2,
		LogLevel:      "info",
		NatsSubject:   "fgblock.runs",
		Registry: Registry{
			Provider:     ProviderIPWhois,
			URL:          "http://ipwho.is",
			DNSServer:    "8.8.8.8:53",
			TimeoutSecs:  10,
			CacheTTLHour: 24 * 30,
		},
	}
}

// Load reads a TOML config file. Options that are missing from the file keep their default value
func Load(filename string) (*Config, error) {
	raw, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	return Parse(raw)
}

// Parse decodes TOML config data on top of the defaults and validates the result
func Parse(raw []byte) (*Config, error) {
	tree, err := toml.LoadBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("can't parse config: %w", err)
	}

	var fileConfig Config
	if err := tree.Unmarshal(&fileConfig); err != nil {
		return nil, fmt.Errorf("can't decode config: %w", err)
	}

	config := Default()
	config.merge(&fileConfig, tree)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// merge copies every option that is present in tree. Explicit zero values
// can't be told apart from missing keys in f alone.
func (c *Config) merge(f *Config, tree *toml.Tree) {
	setInt := func(key string, dst *int, v int) {
		if tree.Has(key) {
			*dst = v
		}
	}
	setString := func(key string, dst *string, v string) {
		if tree.Has(key) {
			*dst = v
		}
	}

	setInt("threshold_group_ips_into_subnets", &c.Threshold, f.Threshold)
	setInt("fg_max_entries", &c.MaxEntries, f.MaxEntries)
	setInt("fg_max_comment_length", &c.MaxCommentLength, f.MaxCommentLength)
	if tree.Has("fg_max_size_bytes") {
		c.MaxSizeBytes = f.MaxSizeBytes
	}

	setString("repo_path", &c.RepoPath, f.RepoPath)
	setString("remote", &c.Remote, f.Remote)
	setString("branch", &c.Branch, f.Branch)
	setString("git_author_name", &c.AuthorName, f.AuthorName)
	setString("git_author_email", &c.AuthorEmail, f.AuthorEmail)
	setString("commit_message", &c.CommitMsg, f.CommitMsg)
	if tree.Has("input_files_to_process") {
		c.InputFiles = f.InputFiles
	}
	setString("output_dir", &c.OutputDir, f.OutputDir)
	setString("output_prefix", &c.OutputName, f.OutputName)

	setInt("run_script_interval_hours", &c.IntervalHours, f.IntervalHours)
	if tree.Has("debug") {
		c.Debug = f.Debug
	}
	setString("log_level", &c.LogLevel, f.LogLevel)
	setString("log_file", &c.LogFile, f.LogFile)
	if tree.Has("watch_inputs") {
		c.WatchInputs = f.WatchInputs
	}

	setString("allowlist_toml", &c.AllowlistTOML, f.AllowlistTOML)
	setString("badger_path", &c.BadgerPath, f.BadgerPath)
	setString("nats_url", &c.NatsURL, f.NatsURL)
	setString("nats_subject", &c.NatsSubject, f.NatsSubject)
	setString("api_address", &c.APIAddress, f.APIAddress)

	setString("registry.provider", &c.Registry.Provider, f.Registry.Provider)
	setString("registry.url", &c.Registry.URL, f.Registry.URL)
	setString("registry.dns_server", &c.Registry.DNSServer, f.Registry.DNSServer)
	setString("registry.geoip_db_file", &c.Registry.GeoIPDBFile, f.Registry.GeoIPDBFile)
	setString("registry.asn_db_file", &c.Registry.ASNDBFile, f.Registry.ASNDBFile)
	setInt("registry.timeout_seconds", &c.Registry.TimeoutSecs, f.Registry.TimeoutSecs)
	setInt("registry.cache_ttl_hours", &c.Registry.CacheTTLHour, f.Registry.CacheTTLHour)
}

// Validate checks the configuration for values the pipeline can't work with
func (c *Config) Validate() error {
	var errs []string

	if c.Threshold < 1 {
		errs = append(errs, "threshold_group_ips_into_subnets must be at least 1")
	}
	if c.MaxEntries < 1 {
		errs = append(errs, "fg_max_entries must be positive")
	}
	if c.MaxCommentLength < 5 {
		errs = append(errs, "fg_max_comment_length must be at least 5")
	}
	if c.MaxSizeBytes < 1 {
		errs = append(errs, "fg_max_size_bytes must be positive")
	}
	if strings.TrimSpace(c.RepoPath) == "" {
		errs = append(errs, "repo_path is required")
	}
	if len(c.InputFiles) == 0 {
		errs = append(errs, "input_files_to_process must name at least one file")
	}
	if c.IntervalHours < 0 {
		errs = append(errs, "run_script_interval_hours must not be negative")
	}

	switch c.Registry.Provider {
	case ProviderNone, ProviderIPWhois, ProviderCymru:
	case ProviderGeoDB:
		if c.Registry.GeoIPDBFile == "" {
			errs = append(errs, "registry.geoip_db_file is required for the geodb provider")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown registry provider %q", c.Registry.Provider))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Interval is the time between two scheduled runs
func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalHours) * time.Hour
}

// InputPath returns the absolute location of an input file. Relative names are
// resolved against the repository
func (c *Config) InputPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.RepoPath, name)
}

// OutputPath returns the blocklist file an input file is published to.
// Inputs with "manual" in their name get their own list.
func (c *Config) OutputPath(input string) string {
	name := c.OutputName
	if strings.Contains(filepath.Base(input), "manual") {
		name += "-manual"
	}

	dir := c.OutputDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(c.RepoPath, dir)
	}
	return filepath.Join(dir, name+".txt")
}

// Timeout is the time a single registry lookup may take
func (r Registry) Timeout() time.Duration {
	return time.Duration(r.TimeoutSecs) * time.Second
}

// CacheTTL is how long looked up registry data is kept
func (r Registry) CacheTTL() time.Duration {
	return time.Duration(r.CacheTTLHour) * time.Hour
}
