package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/curatorhq/curator/internal/curatorerr"
)

func TestConnectionValidate_RequiresHostsXorCloudID(t *testing.T) {
	cases := []struct {
		name    string
		conn    Connection
		wantErr bool
	}{
		{"neither set", Connection{}, true},
		{"both set", Connection{Hosts: []string{"http://localhost:9200"}, CloudID: "abc"}, true},
		{"hosts only", Connection{Hosts: []string{"http://localhost:9200"}}, false},
		{"cloud id only", Connection{CloudID: "abc"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.conn.Validate()
			if tc.wantErr {
				assert.Error(t, err)
				assert.True(t, curatorerr.Is(err, curatorerr.ConfigError))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConnectionValidate_MasterOnlyRejectsMultipleHosts(t *testing.T) {
	conn := Connection{Hosts: []string{"http://a:9200", "http://b:9200"}, MasterOnly: true}
	err := conn.Validate()
	assert.Error(t, err)
	assert.True(t, curatorerr.Is(err, curatorerr.ConfigError))
}

func TestNormalizeHost_AddsImplicitHTTPSPort(t *testing.T) {
	assert.Equal(t, "https://es.example.com:443", normalizeHost("https://es.example.com"))
	assert.Equal(t, "https://es.example.com:9243", normalizeHost("https://es.example.com:9243"))
	assert.Equal(t, "http://localhost:9200", normalizeHost("http://localhost:9200"))
}

func TestLoad_DefaultsWhenNoConfigFilePresent(t *testing.T) {
	cfg, err := Load("")
	assert.NoError(t, err)
	assert.Equal(t, "INFO", cfg.Logging.LogLevel)
	assert.True(t, cfg.Elasticsearch.VerifyCerts)
}
