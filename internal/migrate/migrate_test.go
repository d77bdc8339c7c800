package migrate

import (
	"io/fs"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/e2kpm/internal/export"
)

func TestVersions(t *testing.T) {
	versions, err := Versions()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"000001_kpm_measurements",
		"000002_kpm_measurements_ue_index",
	}, versions)
}

func TestMigrations_HaveDownFiles(t *testing.T) {
	versions, err := Versions()
	require.NoError(t, err)

	for _, v := range versions {
		down, err := fs.ReadFile(migrations, "sql/"+v+".down.sql")
		require.NoError(t, err, v)
		assert.NotEmpty(t, strings.TrimSpace(string(down)), v)
	}
}

func TestMigrations_TableMatchesInsertColumns(t *testing.T) {
	up, err := fs.ReadFile(migrations, "sql/000001_kpm_measurements.up.sql")
	require.NoError(t, err)

	for _, col := range []string{
		"updated_date_time", "period", "period_start_date_time", "period_duration_ms",
		"report", "metric", "level", "label", "ue_id", "cell", "record_type",
		"value_int", "value_real", "meta_node_name",
	} {
		assert.Contains(t, string(up), "\n    "+col+" ", col)
	}
}

func TestDSN(t *testing.T) {
	dsn := DSN(export.ClickHouseConfig{
		Endpoint: "clickhouse:9000",
		Database: "ran",
		Username: "writer",
		Password: "p@ss",
	})

	u, err := url.Parse(dsn)
	require.NoError(t, err)

	assert.Equal(t, "clickhouse", u.Scheme)
	assert.Equal(t, "clickhouse:9000", u.Host)
	assert.Equal(t, "ran", u.Query().Get("database"))
	assert.Equal(t, "true", u.Query().Get("x-multi-statement"))
	assert.Equal(t, "writer", u.Query().Get("username"))
	assert.Equal(t, "p@ss", u.Query().Get("password"))
}

func TestDSN_NoCredentials(t *testing.T) {
	dsn := DSN(export.ClickHouseConfig{Endpoint: "localhost:9000", Database: "default"})

	assert.NotContains(t, dsn, "username")
	assert.NotContains(t, dsn, "password")
}
