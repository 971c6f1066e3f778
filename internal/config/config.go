// Package config loads Curator's connection and logging configuration,
// layering environment variables over a YAML config file over built-in
// defaults, in the teacher's viper-based precedence idiom (cli/root.go's
// initConfig pattern). No command-line flag is bound here: the --config
// flag only selects which file is read, and connection settings have no
// flag overrides.
package config

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net/http"
	"os"
	"strings"

	elasticsearch "github.com/elastic/go-elasticsearch/v9"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/curatorhq/curator/internal/curatorerr"
	"github.com/curatorhq/curator/internal/logging"
	"github.com/curatorhq/curator/internal/s3store"
)

// DefaultConfigFileName is searched for in $HOME and the working directory
// when --config is not given.
const DefaultConfigFileName = "curator"

// EnvPrefix namespaces environment-variable overrides (spec §6: "command-
// line overrides of connection settings").
const EnvPrefix = "CURATOR"

// Connection is the elasticsearch: root of the config file.
type Connection struct {
	Hosts      []string
	CloudID    string `mapstructure:"cloud_id"`
	Username   string
	Password   string
	APIKeyID   string
	APIKey     string
	APIKeyToken string
	CACerts    string `mapstructure:"ca_certs"`
	ClientCert string `mapstructure:"client_cert"`
	ClientKey  string `mapstructure:"client_key"`
	VerifyCerts bool `mapstructure:"verify_certs"`
	RequestTimeout int `mapstructure:"request_timeout"`
	MasterOnly bool `mapstructure:"master_only"`
}

// Logging is the logging: root of the config file.
type Logging struct {
	LogLevel  string `mapstructure:"loglevel"`
	LogFile   string `mapstructure:"logfile"`
	LogFormat string `mapstructure:"logformat"`
}

// ObjectStore is the s3: root of the config file, consumed by s3store.New
// for Deepfreeze's object-store adapter. Only Deepfreeze subcommands need
// this root populated; the action-file runner ignores it entirely.
type ObjectStore struct {
	Region          string
	Endpoint        string
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Concurrency     int
}

// Config is the full parsed configuration file plus any flag/env overrides
// applied on top of it.
type Config struct {
	Elasticsearch Connection
	Logging       Logging
	S3            ObjectStore
}

// Load reads configuration with precedence env > file > defaults,
// mirroring the teacher's initConfig; no flag values are merged in.
// cfgFile may be empty, in which case
// DefaultConfigFileName is searched for in $HOME and ".".
func Load(cfgFile string) (Config, error) {
	v := viper.New()
	v.SetDefault("elasticsearch.verify_certs", true)
	v.SetDefault("elasticsearch.request_timeout", 30)
	v.SetDefault("logging.loglevel", string(logging.LevelInfo))
	v.SetDefault("logging.logformat", string(logging.FormatDefault))
	v.SetDefault("s3.concurrency", s3store.DefaultConcurrency)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err == nil {
			v.AddConfigPath(home)
			v.AddConfigPath(home + "/.curator")
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(DefaultConfigFileName)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.AllowEmptyEnv(true)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && cfgFile != "" {
			return Config{}, curatorerr.Wrap(curatorerr.ConfigError, "reading config file "+cfgFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, curatorerr.Wrap(curatorerr.ConfigError, "parsing configuration", err)
	}
	return cfg, nil
}

// Validate enforces the mutual-exclusion and required-field rules from
// spec §6: hosts xor cloud_id, master_only incompatible with multiple hosts.
func (c Connection) Validate() error {
	hasHosts := len(c.Hosts) > 0
	hasCloudID := c.CloudID != ""
	if hasHosts == hasCloudID {
		return curatorerr.New(curatorerr.ConfigError, "exactly one of elasticsearch.hosts or elasticsearch.cloud_id must be set")
	}
	if c.MasterOnly && len(c.Hosts) > 1 {
		return curatorerr.New(curatorerr.ConfigError, "master_only is incompatible with multiple hosts")
	}
	return nil
}

// BuildESClient constructs an *elasticsearch.Client from a validated
// Connection, resolving the implicit :443 port and TLS material per
// spec §6.
func BuildESClient(c Connection) (*elasticsearch.Client, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	escfg := elasticsearch.Config{
		Username: c.Username,
		Password: c.Password,
	}
	if c.CloudID != "" {
		escfg.CloudID = c.CloudID
	} else {
		escfg.Addresses = normalizeHosts(c.Hosts)
	}
	if c.APIKey != "" {
		if c.APIKeyID != "" {
			escfg.APIKey = c.APIKeyID + ":" + c.APIKey
		} else {
			escfg.APIKey = c.APIKey
		}
	} else if c.APIKeyToken != "" {
		escfg.APIKey = c.APIKeyToken
	}

	if c.CACerts != "" || c.ClientCert != "" || !c.VerifyCerts {
		tlsCfg, err := buildTLSConfig(c)
		if err != nil {
			return nil, err
		}
		escfg.Transport = &http.Transport{TLSClientConfig: tlsCfg}
	}

	client, err := elasticsearch.NewClient(escfg)
	if err != nil {
		return nil, curatorerr.Wrap(curatorerr.ConfigError, "building elasticsearch client", err)
	}
	return client, nil
}

// BuildS3Store constructs an s3store.Store from a parsed ObjectStore root.
func BuildS3Store(ctx context.Context, c ObjectStore) (*s3store.Store, error) {
	return s3store.New(ctx, s3store.Config{
		Region:          c.Region,
		Endpoint:        c.Endpoint,
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		Concurrency:     c.Concurrency,
	})
}

// normalizeHosts appends the implicit :443 port to any https:// host with
// no explicit port, per spec §6.
func normalizeHosts(hosts []string) []string {
	out := make([]string, len(hosts))
	for i, h := range hosts {
		out[i] = normalizeHost(h)
	}
	return out
}

func normalizeHost(h string) string {
	if !strings.HasPrefix(h, "https://") {
		return h
	}
	rest := strings.TrimPrefix(h, "https://")
	if strings.Contains(rest, ":") {
		return h
	}
	return h + ":443"
}

func buildTLSConfig(c Connection) (*tls.Config, error) {
	tlsCfg := &tls.Config{InsecureSkipVerify: !c.VerifyCerts}
	if c.CACerts != "" {
		pem, err := os.ReadFile(c.CACerts)
		if err != nil {
			return nil, curatorerr.Wrap(curatorerr.ConfigError, "reading ca_certs", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, curatorerr.New(curatorerr.ConfigError, "ca_certs contains no valid certificates")
		}
		tlsCfg.RootCAs = pool
	}
	if c.ClientCert != "" && c.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
		if err != nil {
			return nil, curatorerr.Wrap(curatorerr.ConfigError, "loading client_cert/client_key", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}
	return tlsCfg, nil
}
