package lookup

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/liyubing19/telegram-bot/internal/domain"
)

func TestLoadSources_EmptyPathDiscovers(t *testing.T) {
	t.Parallel()

	s, err := LoadSources("")
	require.NoError(t, err)
	require.Equal(t, "public", s.Schema)
	require.Equal(t, 50, s.Limit)
	require.Empty(t, s.tables(domain.QueryPhone))
}

func TestLoadSources_YAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
schema: leaks
limit: 10
phone:
  - table: carriers
  - table: couriers
    column: mobile
id_card:
  - table: residents
    schema: gov
`), 0o600))

	s, err := LoadSources(path)
	require.NoError(t, err)
	require.Equal(t, 10, s.Limit)
	require.Equal(t, []Table{
		{Schema: "leaks", Name: "carriers", Column: "phone"},
		{Schema: "leaks", Name: "couriers", Column: "mobile"},
	}, s.tables(domain.QueryPhone))
	require.Equal(t, []Table{{Schema: "gov", Name: "residents", Column: "cardno"}}, s.tables(domain.QueryIDCard))
}

func TestLoadSources_Errors(t *testing.T) {
	t.Parallel()

	_, err := LoadSources(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("phone:\n  - column: phone\n"), 0o600))
	_, err = LoadSources(path)
	require.ErrorContains(t, err, "table name is required")
}

func TestRecordFromRow(t *testing.T) {
	t.Parallel()

	rec := recordFromRow(map[string]any{
		"name":   "Wang Wu",
		"cardno": "11010119900307001X",
		"phone":  json.Number("13800138000"),
		"extra":  true,
	})
	require.Equal(t, domain.Record{Name: "Wang Wu", CardNo: "11010119900307001X", Phone: "13800138000"}, rec)

	require.Equal(t, domain.Record{}, recordFromRow(map[string]any{"name": nil}))
}

func TestDecodeRow_KeepsLongNumbersExact(t *testing.T) {
	t.Parallel()

	row, err := decodeRow([]byte(`{"name":"Li","cardno":110105194912310021,"phone":13800138000}`))
	require.NoError(t, err)
	require.Equal(t, domain.Record{Name: "Li", CardNo: "110105194912310021", Phone: "13800138000"}, recordFromRow(row))

	_, err = decodeRow([]byte(`not json`))
	require.Error(t, err)
}
