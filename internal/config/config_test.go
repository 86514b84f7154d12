package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cloudYAML = `
openmotics:
  cloud:
    client_id: abc
    client_secret: s3cret
    installation_id: 21
mqtt:
  enabled: true
  broker: tcp://localhost:1883
  password: hunter2
`

func TestLoadCloudDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cloudYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ModeCloud, cfg.Mode())
	assert.Equal(t, DefaultHTTPAddr, cfg.Core.HTTPAddr)
	assert.Equal(t, DefaultGRPCAddr, cfg.Core.GRPCAddr)
	assert.Equal(t, 28*time.Second, cfg.Core.ScanInterval)
	assert.Equal(t, DefaultCloudBaseURL, cfg.OpenMotics.Cloud.BaseURL)
	assert.Equal(t, DefaultCloudTokenURL, cfg.OpenMotics.Cloud.TokenURL)
	assert.Equal(t, 21, cfg.OpenMotics.Cloud.InstallationID)
	assert.Equal(t, DefaultTopicPrefix, cfg.MQTT.TopicPrefix)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestParseLocal(t *testing.T) {
	cfg, err := Parse([]byte(`
core:
  scan_interval: 10s
openmotics:
  local:
    ip_address: 192.168.1.20
    name: admin
    password: pw
`))
	require.NoError(t, err)
	assert.Equal(t, ModeLocal, cfg.Mode())
	assert.Equal(t, 443, cfg.OpenMotics.Local.Port)
	assert.False(t, cfg.OpenMotics.Local.VerifySSL)
	assert.Equal(t, 10*time.Second, cfg.Core.ScanInterval)
}

func TestParseRejectsBothModes(t *testing.T) {
	_, err := Parse([]byte(`
openmotics:
  cloud: {client_id: a, client_secret: b}
  local: {ip_address: x, name: y, password: z}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not both")
}

func TestParseRequiresMode(t *testing.T) {
	_, err := Parse([]byte(`core: {http_addr: ":8080"}`))
	require.Error(t, err)
}

func TestValidateMissingFields(t *testing.T) {
	cases := map[string]string{
		"openmotics.cloud.client_secret": `openmotics: {cloud: {client_id: a}}`,
		"openmotics.local.password":      `openmotics: {local: {ip_address: x, name: y}}`,
		"mqtt.broker":                    "openmotics: {cloud: {client_id: a, client_secret: b}}\nmqtt: {enabled: true}",
		"diagnostics.blob.access_key_file": "openmotics: {cloud: {client_id: a, client_secret: b}}\n" +
			"diagnostics: {blob: {endpoint: s3.local, bucket: diag}}",
		"diagnostics.keep": "openmotics: {cloud: {client_id: a, client_secret: b}}\ndiagnostics: {keep: -1}",
	}
	for want, doc := range cases {
		t.Run(want, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), want)
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("OMHOME_CLOUD_CLIENT_SECRET", "from-env")
	t.Setenv("OMHOME_CORE_HTTP_ADDR", "127.0.0.1:9999")
	t.Setenv("OMHOME_CLOUD_INSTALLATION_ID", "7")

	cfg, err := Parse([]byte(`openmotics: {cloud: {client_id: a}}`))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.OpenMotics.Cloud.ClientSecret)
	assert.Equal(t, "127.0.0.1:9999", cfg.Core.HTTPAddr)
	assert.Equal(t, 7, cfg.OpenMotics.Cloud.InstallationID)
}

func TestClientSecretFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(path, []byte("filesecret\n"), 0o600))

	cfg, err := Parse([]byte("openmotics: {cloud: {client_id: a, client_secret_file: " + path + "}}"))
	require.NoError(t, err)
	assert.Equal(t, "filesecret", cfg.OpenMotics.Cloud.ClientSecret)
}

func TestRedacted(t *testing.T) {
	cfg, err := Parse([]byte(cloudYAML))
	require.NoError(t, err)

	red := cfg.Redacted()
	assert.Equal(t, redacted, red.OpenMotics.Cloud.ClientSecret)
	assert.Equal(t, redacted, red.OpenMotics.Cloud.ClientID)
	assert.Equal(t, redacted, red.MQTT.Password)
	assert.Equal(t, "", red.MQTT.Username)
	assert.Equal(t, "s3cret", cfg.OpenMotics.Cloud.ClientSecret)
	assert.Equal(t, 21, red.OpenMotics.Cloud.InstallationID)
}
