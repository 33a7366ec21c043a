package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "odatalake.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":8080"
  allow_cors: false
odata:
  default_row_count: 25
rdbms:
  backend: mysql
  host: db.internal
  port: 3307
store:
  engine: sqlite
  path: /var/lib/odatalake/kv.db
accounts:
  reset_token_ttl: 2h
log:
  level: debug
  format: json
`), 0o600))
	t.Setenv(EnvAdminUser, "root")
	t.Setenv(EnvAdminPassword, "secret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.False(t, cfg.Server.AllowCORS)
	assert.Equal(t, "s", cfg.Server.SysPath)
	assert.Equal(t, 25, cfg.OData.DefaultRowCount)
	assert.Equal(t, "mysql", cfg.RDBMS.Backend)
	assert.Equal(t, 3307, cfg.RDBMS.Port)
	assert.Equal(t, "root", cfg.RDBMS.AdminUser)
	assert.Equal(t, "secret", cfg.RDBMS.AdminPassword)
	assert.Equal(t, "sqlite", cfg.Store.Engine)
	assert.Equal(t, 64<<10, cfg.Store.ChunkSize)
	assert.Equal(t, 2*time.Hour, cfg.Accounts.ResetTokenTTL)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Server, cfg.Server)
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	cfg := Default()
	err := Decode([]byte("server:\n  adress: x\n"), &cfg)
	require.Error(t, err)
	require.NoError(t, Decode([]byte("  \n"), &cfg))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.Server.SysPath = "a/b"
	cfg.RDBMS.Backend = "oracle"
	cfg.Store.ChunkSize = 0
	cfg.Server.TLSCert = "cert.pem"
	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "server.sys_path")
	assert.Contains(t, msg, "oracle")
	assert.Contains(t, msg, "chunk_size")
	assert.Contains(t, msg, "tls_key")
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	env := map[string]string{EnvSecretSalt: "pepper"}
	cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	assert.Equal(t, "pepper", cfg.Accounts.SecretSalt)
	assert.Empty(t, cfg.RDBMS.AdminUser)
}
