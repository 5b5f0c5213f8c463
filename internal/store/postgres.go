package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"orderlink/internal/model"
)

// Postgres backs the engine with the shared dashboard database. Staging
// tables are owned by this subsystem; the orders table is consumed, with
// writes limited to the carrier-owned columns.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

// MigrateDir executes the .sql files of dir in lexical order. Dev helper, the
// same shape the rest of the platform uses.
func (p *Postgres) MigrateDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			return err
		}
		if _, err := p.db.Exec(string(b)); err != nil {
			return fmt.Errorf("migrate %s: %w", f, err)
		}
	}
	return nil
}

const stagingCols = `id, provider, account_id, provider_record_id, order_number_hint,
customer_name, customer_phone, customer_email, customer_city,
status, tracking_code, value, raw_payload, processed_to_orders,
coalesce(linked_order_id::text,''), created_at, updated_at`

func scanStaging(row interface{ Scan(...any) error }) (model.StagingRecord, error) {
	var r model.StagingRecord
	err := row.Scan(&r.ID, &r.Provider, &r.AccountID, &r.ProviderRecordID, &r.OrderNumberHint,
		&r.CustomerName, &r.CustomerPhone, &r.CustomerEmail, &r.CustomerCity,
		&r.Status, &r.TrackingCode, &r.Value, &r.RawPayload, &r.ProcessedToOrders,
		&r.LinkedOrderID, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func (p *Postgres) UpsertStagingRecord(ctx context.Context, rec model.StagingRecord) (model.StagingRecord, error) {
	row := p.db.QueryRowContext(ctx, `
INSERT INTO staging_records (id, provider, account_id, provider_record_id, order_number_hint,
  customer_name, customer_phone, customer_email, customer_city,
  status, tracking_code, value, raw_payload)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (provider, account_id, provider_record_id) DO UPDATE SET
  order_number_hint = EXCLUDED.order_number_hint,
  customer_name = EXCLUDED.customer_name,
  customer_phone = EXCLUDED.customer_phone,
  customer_email = EXCLUDED.customer_email,
  customer_city = EXCLUDED.customer_city,
  status = EXCLUDED.status,
  tracking_code = EXCLUDED.tracking_code,
  value = EXCLUDED.value,
  processed_to_orders = CASE
    WHEN staging_records.raw_payload IS DISTINCT FROM EXCLUDED.raw_payload THEN false
    ELSE staging_records.processed_to_orders END,
  raw_payload = EXCLUDED.raw_payload,
  updated_at = now()
RETURNING `+stagingCols,
		uuid.New(), rec.Provider, rec.AccountID, rec.ProviderRecordID, rec.OrderNumberHint,
		rec.CustomerName, rec.CustomerPhone, rec.CustomerEmail, rec.CustomerCity,
		rec.Status, rec.TrackingCode, rec.Value, jsonOrNull(rec.RawPayload))
	out, err := scanStaging(row)
	if err != nil {
		return model.StagingRecord{}, fmt.Errorf("upsert staging: %w", err)
	}
	return out, nil
}

func (p *Postgres) FetchUnprocessedStaging(ctx context.Context, provider model.Provider, limit int) ([]model.StagingRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx, `
SELECT `+stagingCols+` FROM staging_records
WHERE provider = $1 AND processed_to_orders = false
ORDER BY created_at, id LIMIT $2`, provider, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := []model.StagingRecord{}
	for rows.Next() {
		r, err := scanStaging(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkStagingLinked(ctx context.Context, provider model.Provider, stagingID, orderID string) error {
	res, err := p.db.ExecContext(ctx, `
UPDATE staging_records SET processed_to_orders = true, linked_order_id = $3, updated_at = now()
WHERE id = $2 AND provider = $1`, provider, stagingID, orderID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const orderCols = `id, tenant_id, coalesce(store_id,''), operation_id, coalesce(order_number,''),
coalesce(customer_name,''), coalesce(customer_phone,''), coalesce(customer_email,''), coalesce(customer_city,''),
coalesce(total,0), status, coalesce(tracking_number,''), carrier_imported,
coalesce(carrier_order_id,''), coalesce(provider,''), provider_data, last_status_update, created_at`

func scanOrder(row interface{ Scan(...any) error }) (model.CanonicalOrder, error) {
	var o model.CanonicalOrder
	err := row.Scan(&o.ID, &o.TenantID, &o.StoreID, &o.OperationID, &o.OrderNumber,
		&o.CustomerName, &o.CustomerPhone, &o.CustomerEmail, &o.CustomerCity,
		&o.Total, &o.Status, &o.TrackingNumber, &o.CarrierImported,
		&o.CarrierOrderID, &o.Provider, &o.ProviderData, &o.LastStatusUpdate, &o.CreatedAt)
	return o, err
}

// scopeWhere builds the pool-scoping predicate. operationId always applies;
// storeId only for the store-scoped matcher.
func scopeWhere(scope model.Scope, args *[]any) string {
	w := ""
	if scope.OperationID != "" {
		*args = append(*args, scope.OperationID)
		w += fmt.Sprintf(" AND operation_id = $%d", len(*args))
	}
	if scope.StoreID != "" {
		*args = append(*args, scope.StoreID)
		w += fmt.Sprintf(" AND store_id = $%d", len(*args))
	}
	return w
}

func (p *Postgres) OrderByCarrierID(ctx context.Context, scope model.Scope, provider model.Provider, carrierOrderID string) (model.CanonicalOrder, bool, error) {
	if carrierOrderID == "" {
		return model.CanonicalOrder{}, false, nil
	}
	args := []any{provider, carrierOrderID}
	q := `SELECT ` + orderCols + ` FROM orders WHERE provider = $1 AND carrier_order_id = $2` +
		scopeWhere(scope, &args) + ` LIMIT 1`
	o, err := scanOrder(p.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return model.CanonicalOrder{}, false, nil
	}
	if err != nil {
		return model.CanonicalOrder{}, false, err
	}
	return o, true, nil
}

func (p *Postgres) OrdersByPhoneSuffix(ctx context.Context, scope model.Scope, suffix string) ([]model.CanonicalOrder, error) {
	if suffix == "" {
		return []model.CanonicalOrder{}, nil
	}
	args := []any{suffix}
	q := `SELECT ` + orderCols + ` FROM orders
WHERE right(regexp_replace(coalesce(customer_phone,''), '\D', '', 'g'), 9) = $1` +
		scopeWhere(scope, &args)
	return p.queryOrders(ctx, q, args...)
}

func (p *Postgres) OrderByNumber(ctx context.Context, operationID, orderNumber string) (model.CanonicalOrder, bool, error) {
	o, err := scanOrder(p.db.QueryRowContext(ctx, `
SELECT `+orderCols+` FROM orders WHERE operation_id = $1 AND order_number = $2 LIMIT 1`,
		operationID, orderNumber))
	if errors.Is(err, sql.ErrNoRows) {
		return model.CanonicalOrder{}, false, nil
	}
	if err != nil {
		return model.CanonicalOrder{}, false, err
	}
	return o, true, nil
}

func (p *Postgres) OrdersByEmail(ctx context.Context, operationID, email string) ([]model.CanonicalOrder, error) {
	return p.queryOrders(ctx, `
SELECT `+orderCols+` FROM orders WHERE operation_id = $1 AND lower(customer_email) = lower($2)`,
		operationID, email)
}

func (p *Postgres) CandidateOrders(ctx context.Context, scope model.Scope, limit int) ([]model.CanonicalOrder, error) {
	if limit <= 0 {
		limit = 100
	}
	args := []any{}
	q := `SELECT ` + orderCols + ` FROM orders WHERE true` + scopeWhere(scope, &args)
	args = append(args, limit)
	q += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))
	return p.queryOrders(ctx, q, args...)
}

func (p *Postgres) GetOrder(ctx context.Context, orderID string) (model.CanonicalOrder, error) {
	o, err := scanOrder(p.db.QueryRowContext(ctx,
		`SELECT `+orderCols+` FROM orders WHERE id = $1`, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.CanonicalOrder{}, ErrNotFound
	}
	return o, err
}

// ApplyCarrierUpdate is a compare-and-swap on the ownership column: the
// predicate only admits unclaimed orders or re-application by the same
// provider, so two providers can never both claim one order even when their
// workers race.
func (p *Postgres) ApplyCarrierUpdate(ctx context.Context, orderID string, upd model.CarrierUpdate) (model.CanonicalOrder, error) {
	o, err := scanOrder(p.db.QueryRowContext(ctx, `
UPDATE orders SET
  status = $2,
  tracking_number = CASE WHEN $3 <> '' THEN $3 ELSE tracking_number END,
  carrier_imported = true,
  carrier_order_id = $4,
  provider = $5,
  provider_data = COALESCE($6, provider_data),
  last_status_update = now()
WHERE id = $1 AND (provider IS NULL OR provider = '' OR provider = $5)
RETURNING `+orderCols,
		orderID, upd.Status, upd.TrackingNumber, upd.CarrierOrderID, upd.Provider, jsonOrNull(upd.ProviderData)))
	if errors.Is(err, sql.ErrNoRows) {
		// distinguish a missing order from a lost claim
		var one int
		if e := p.db.QueryRowContext(ctx, `SELECT 1 FROM orders WHERE id = $1`, orderID).Scan(&one); e != nil {
			return model.CanonicalOrder{}, ErrNotFound
		}
		return model.CanonicalOrder{}, ErrOwnershipConflict
	}
	if err != nil {
		return model.CanonicalOrder{}, err
	}
	return o, nil
}

func (p *Postgres) ListAccountOperations(ctx context.Context, provider model.Provider) (map[string][]model.Operation, error) {
	rows, err := p.db.QueryContext(ctx, `
SELECT ao.account_id, o.id, coalesce(o.store_id,''), coalesce(o.name,''), coalesce(o.order_number_prefix,'')
FROM account_operations ao
JOIN operations o ON o.id = ao.operation_id
WHERE ao.provider = $1
ORDER BY ao.account_id, ao.position, o.id`, provider)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := map[string][]model.Operation{}
	for rows.Next() {
		var acc string
		var op model.Operation
		if err := rows.Scan(&acc, &op.ID, &op.StoreID, &op.Name, &op.OrderNumberPrefix); err != nil {
			return nil, err
		}
		out[acc] = append(out[acc], op)
	}
	return out, rows.Err()
}

func (p *Postgres) queryOrders(ctx context.Context, q string, args ...any) ([]model.CanonicalOrder, error) {
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := []model.CanonicalOrder{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// jsonOrNull passes a payload as a text parameter so the driver lets Postgres
// cast it to jsonb, with empty meaning NULL.
func jsonOrNull(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
