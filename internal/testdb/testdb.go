// Package testdb provides SQLite-backed gorm databases for package tests.
// The DDL mirrors the Postgres migrations with SQLite-compatible defaults.
package testdb

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// uuidExpr generates a v4-shaped UUID in SQLite, standing in for
// gen_random_uuid() in Postgres.
const uuidExpr = "(lower(hex(randomblob(4))) || '-' || lower(hex(randomblob(2))) || '-4' || substr(lower(hex(randomblob(2))),2) || '-' || substr('89ab', abs(random()) % 4 + 1, 1) || substr(lower(hex(randomblob(2))),2) || '-' || lower(hex(randomblob(6))))"

var tableDDL = map[string]string{
	"orders": `
CREATE TABLE orders (
  id TEXT PRIMARY KEY DEFAULT %s,
  order_number TEXT NOT NULL UNIQUE,
  customer_id TEXT NOT NULL,
  subtotal_cents INTEGER NOT NULL,
  tax_cents INTEGER NOT NULL DEFAULT 0,
  shipping_cents INTEGER NOT NULL DEFAULT 0,
  tip_cents INTEGER NOT NULL DEFAULT 0,
  total_cents INTEGER NOT NULL,
  currency TEXT NOT NULL DEFAULT 'USD',
  payment_intent_id TEXT UNIQUE,
  payment_status TEXT NOT NULL DEFAULT 'pending',
  status TEXT NOT NULL DEFAULT 'created',
  payment_method TEXT NOT NULL DEFAULT 'card',
  shipping_address TEXT,
  created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`,
	"order_items": `
CREATE TABLE order_items (
  id TEXT PRIMARY KEY DEFAULT %s,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  variant_id TEXT,
  store_id TEXT NOT NULL,
  name TEXT NOT NULL,
  qty INTEGER NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  total_cents INTEGER NOT NULL,
  created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`,
	"payments": `
CREATE TABLE payments (
  id TEXT PRIMARY KEY DEFAULT %s,
  provider_reference TEXT NOT NULL UNIQUE,
  order_id TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  currency TEXT NOT NULL DEFAULT 'USD',
  provider_status TEXT NOT NULL,
  created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`,
	"deliveries": `
CREATE TABLE deliveries (
  id TEXT PRIMARY KEY DEFAULT %s,
  order_id TEXT NOT NULL UNIQUE,
  driver_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'assigned',
  pickup_address TEXT,
  delivery_address TEXT,
  assigned_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  estimated_delivery_time DATETIME,
  actual_delivery_time DATETIME,
  created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`,
	"delivery_tracking_entries": `
CREATE TABLE delivery_tracking_entries (
  id TEXT PRIMARY KEY DEFAULT %s,
  delivery_id TEXT NOT NULL,
  status TEXT NOT NULL,
  location TEXT,
  notes TEXT,
  created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`,
	"driver_statuses": `
CREATE TABLE driver_statuses (
  driver_id TEXT PRIMARY KEY,
  is_online INTEGER NOT NULL DEFAULT 0,
  last_location TEXT,
  updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`,
	"inventory_records": `
CREATE TABLE inventory_records (
  product_id TEXT NOT NULL,
  store_id TEXT NOT NULL,
  available_qty INTEGER NOT NULL DEFAULT 0,
  reserved_qty INTEGER NOT NULL DEFAULT 0,
  updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY (product_id, store_id)
);`,
	"inventory_reservations": `
CREATE TABLE inventory_reservations (
  id TEXT PRIMARY KEY DEFAULT %s,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  store_id TEXT NOT NULL,
  qty INTEGER NOT NULL,
  deducted_at DATETIME,
  released_at DATETIME,
  created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  UNIQUE (order_id, product_id)
);`,
	"order_status_history_entries": `
CREATE TABLE order_status_history_entries (
  id TEXT PRIMARY KEY DEFAULT %s,
  order_id TEXT NOT NULL,
  old_status TEXT NOT NULL,
  new_status TEXT NOT NULL,
  changed_by TEXT NOT NULL,
  reason TEXT,
  automated INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`,
	"commission_records": `
CREATE TABLE commission_records (
  id TEXT PRIMARY KEY DEFAULT %s,
  order_id TEXT NOT NULL,
  store_id TEXT NOT NULL,
  rate NUMERIC NOT NULL,
  store_share_cents INTEGER NOT NULL,
  commission_cents INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  UNIQUE (order_id, store_id)
);`,
	"notifications": `
CREATE TABLE notifications (
  id TEXT PRIMARY KEY DEFAULT %s,
  user_id TEXT NOT NULL,
  channel TEXT NOT NULL,
  title TEXT NOT NULL,
  message TEXT NOT NULL,
  order_id TEXT,
  read_at DATETIME,
  created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`,
	"notification_preferences": `
CREATE TABLE notification_preferences (
  user_id TEXT PRIMARY KEY,
  email_enabled INTEGER NOT NULL DEFAULT 1,
  push_enabled INTEGER NOT NULL DEFAULT 1,
  in_app_enabled INTEGER NOT NULL DEFAULT 1,
  order_updates_enabled INTEGER NOT NULL DEFAULT 1,
  updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`,
	"audit_records": `
CREATE TABLE audit_records (
  id TEXT PRIMARY KEY DEFAULT %s,
  entity_type TEXT NOT NULL,
  entity_id TEXT NOT NULL,
  action TEXT NOT NULL,
  actor_id TEXT NOT NULL,
  details TEXT,
  created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`,
	"outbox_events": `
CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY DEFAULT %s,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`,
	"outbox_dlq": `
CREATE TABLE outbox_dlq (
  id TEXT PRIMARY KEY DEFAULT %s,
  event_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  error_reason TEXT NOT NULL,
  error_message TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  failed_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`,
}

// New opens an isolated in-memory database with the requested tables. With no
// table names it creates the full schema.
func New(t *testing.T, tables ...string) *gorm.DB {
	t.Helper()

	dsn := "file:testdb_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	if len(tables) == 0 {
		for name := range tableDDL {
			tables = append(tables, name)
		}
	}
	for _, name := range tables {
		ddl, ok := tableDDL[name]
		if !ok {
			t.Fatalf("unknown test table %q", name)
		}
		stmt := ddl
		if strings.Contains(ddl, "%s") {
			stmt = fmt.Sprintf(ddl, uuidExpr)
		}
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create table %s: %v", name, err)
		}
	}
	return db
}
