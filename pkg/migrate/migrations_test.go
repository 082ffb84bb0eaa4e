package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/harvestdesk/farmops-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	require.NoError(t, err)
	require.Len(t, matches, 1, "migration %s", suffix)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	return string(data)
}

func assertContainsAll(t *testing.T, content string, checks ...string) {
	t.Helper()
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestInventoryMigrationContainsConstraints(t *testing.T) {
	assertContainsAll(t, readMigration(t, "create_inventory"),
		"CREATE TABLE IF NOT EXISTS inventory_rows",
		"CONSTRAINT uq_inventory_rows_key UNIQUE (product_name, grade, location_id)",
		"CHECK (quantity >= 0)",
		"FOREIGN KEY (location_id) REFERENCES storage_locations(id)",
		"CREATE TABLE IF NOT EXISTS inventory_movements",
		"DROP TABLE IF EXISTS inventory_rows",
	)
}

func TestOrdersMigrationDefaultsStoreGeneratedID(t *testing.T) {
	assertContainsAll(t, readMigration(t, "create_orders"),
		"CREATE OR REPLACE FUNCTION farmops_order_id()",
		"id text PRIMARY KEY DEFAULT farmops_order_id()",
		"'Asia/Taipei'",
		"CONSTRAINT uq_order_items_line UNIQUE (order_id, line_index)",
		"REFERENCES orders(id) ON DELETE CASCADE",
		"DROP FUNCTION IF EXISTS farmops_order_id()",
	)
}

func TestStoreOrderIDsCarryChannelPrefix(t *testing.T) {
	assertContainsAll(t, readMigration(t, "order_id_channel_prefix"),
		"CREATE OR REPLACE FUNCTION farmops_order_id(channel text)",
		"coalesce(nullif(upper(btrim(channel)), ''), 'ORD')",
		"NEW.id := farmops_order_id(NEW.channel)",
		"ALTER TABLE orders ALTER COLUMN id DROP DEFAULT",
		"BEFORE INSERT ON orders",
		"ALTER TABLE orders ALTER COLUMN id SET DEFAULT farmops_order_id()",
	)
}

func TestCustomerAndOutboxMigrations(t *testing.T) {
	assertContainsAll(t, readMigration(t, "create_customers"),
		"segment text NOT NULL DEFAULT 'New'",
		"'At Risk'",
	)
	assertContainsAll(t, readMigration(t, "create_outbox_events"),
		"aggregate_id text NOT NULL",
		"WHERE published_at IS NULL",
	)
}

func TestEmbeddedMigrationsMatchDisk(t *testing.T) {
	fsys, err := migrate.Migrations()
	require.NoError(t, err)
	require.NoError(t, migrate.ValidateFS(fsys))
	require.NoError(t, migrate.ValidateDir("migrations"))

	embedded, err := fs.Glob(fsys, "*.sql")
	require.NoError(t, err)
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	require.NoError(t, err)
	require.Len(t, embedded, len(onDisk))
}

func TestValidateRejectsBrokenFiles(t *testing.T) {
	cases := map[string]fstest.MapFS{
		"bad name": {
			"create_things.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		},
		"missing down": {
			"20260105090000_things.sql": {Data: []byte("-- +goose Up\n")},
		},
		"not a timestamp": {
			"20261399000000_things.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		},
		"unbalanced block": {
			"20260105090000_things.sql": {Data: []byte("-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n")},
		},
	}
	for name, fsys := range cases {
		t.Run(name, func(t *testing.T) {
			require.Error(t, migrate.ValidateFS(fsys))
		})
	}
}

func TestNewFileSanitizesNameAndRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 1, 5, 9, 10, 0, 0, time.UTC)

	path, err := migrate.NewFile(dir, "Add Harvest Batches!", now)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "20260105091000_add_harvest_batches.sql"), path)
	require.NoError(t, migrate.ValidateDir(dir))

	_, err = migrate.NewFile(dir, "add harvest batches", now)
	require.Error(t, err)

	_, err = migrate.NewFile(dir, "!!!", now)
	require.Error(t, err)
}

func TestParseVersion(t *testing.T) {
	v, err := migrate.ParseVersion("20260105090200")
	require.NoError(t, err)
	require.Equal(t, int64(20260105090200), v)

	for _, bad := range []string{"", "2026", "2026010509020x", "20261305090200"} {
		_, err := migrate.ParseVersion(bad)
		require.Error(t, err, bad)
	}
}
