package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/glowcart/glowcart-backend/pkg/migrate"
)

func TestMigrationsDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations dir: %v", err)
	}
}

func TestInitMigrationContainsGuards(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_init.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no init migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE UNIQUE INDEX ux_deliveries_order_id ON deliveries (order_id)",
		"CREATE UNIQUE INDEX ux_payments_provider_reference ON payments (provider_reference)",
		"CHECK (available_qty >= 0 AND reserved_qty >= 0)",
		"CREATE UNIQUE INDEX ux_inventory_reservations_order_product",
		"CREATE UNIQUE INDEX ux_commission_records_order_store",
		"DROP TABLE IF EXISTS orders",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}
