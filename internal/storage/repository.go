package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"billcal/internal/core"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Repository is the SQL data source. Queries are written with '?'
// placeholders and rebound for postgres.
type Repository struct {
	db     *sql.DB
	driver string
}

// NewSQLiteRepository opens (creating if needed) the database file at dbPath
// with foreign keys enabled and applies migrations.
func NewSQLiteRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	return open(DriverSQLite, sqliteDSN(dbPath))
}

// NewPostgresRepository connects to dsn and applies migrations.
func NewPostgresRepository(dsn string) (*Repository, error) {
	return open(DriverPostgres, dsn)
}

func open(driver, dsn string) (*Repository, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(driver, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if driver == DriverSQLite {
		// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}

	return &Repository{db: db, driver: driver}, nil
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "_pragma=") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return core.Remote("ping", r.db.PingContext(ctx))
}

// rebind rewrites '?' placeholders to '$n' for postgres.
func (r *Repository) rebind(q string) string {
	if r.driver != DriverPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, c := range q {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func (r *Repository) exec(ctx context.Context, op, kind string, id int64, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, r.rebind(q), args...)
	if err != nil {
		return core.Remote(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.Remote(op, err)
	}
	if n == 0 {
		return core.NotFound(kind, id)
	}
	return nil
}

func (r *Repository) insert(ctx context.Context, op, q string, args ...any) (int64, error) {
	var id int64
	if err := r.db.QueryRowContext(ctx, r.rebind(q+" RETURNING id"), args...).Scan(&id); err != nil {
		return 0, core.Remote(op, err)
	}
	return id, nil
}

func (r *Repository) exists(ctx context.Context, table string, id int64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, r.rebind("SELECT 1 FROM "+table+" WHERE id = ?"), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, core.Remote("lookup "+table, err)
	}
	return true, nil
}

// Profiles

const profileColumns = "id, name, street, city, country"

func scanProfile(sc interface{ Scan(...any) error }) (core.Profile, error) {
	var p core.Profile
	err := sc.Scan(&p.ID, &p.Name, &p.Street, &p.City, &p.Country)
	p.Country = strings.TrimSpace(p.Country)
	return p, err
}

func (r *Repository) GetProfile(ctx context.Context, id int64) (core.Profile, error) {
	row := r.db.QueryRowContext(ctx, r.rebind("SELECT "+profileColumns+" FROM profiles WHERE id = ?"), id)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Profile{}, core.NotFound("profile", id)
	}
	if err != nil {
		return core.Profile{}, core.Remote("get profile", err)
	}
	return p, nil
}

func (r *Repository) ListProfiles(ctx context.Context) ([]core.Profile, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+profileColumns+" FROM profiles ORDER BY name, id")
	if err != nil {
		return nil, core.Remote("list profiles", err)
	}
	defer rows.Close()
	var out []core.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, core.Remote("scan profile", err)
		}
		out = append(out, p)
	}
	return out, core.Remote("list profiles", rows.Err())
}

func (r *Repository) CreateProfile(ctx context.Context, p core.Profile) (core.Profile, error) {
	if err := p.Validate(); err != nil {
		return core.Profile{}, err
	}
	id, err := r.insert(ctx, "create profile",
		"INSERT INTO profiles (name, street, city, country) VALUES (?, ?, ?, ?)",
		p.Name, p.Street, p.City, p.Country)
	if err != nil {
		return core.Profile{}, err
	}
	p.ID = id
	slog.DebugContext(ctx, "profile created", "id", id, "name", p.Name)
	return p, nil
}

func (r *Repository) UpdateProfile(ctx context.Context, p core.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return r.exec(ctx, "update profile", "profile", p.ID,
		"UPDATE profiles SET name = ?, street = ?, city = ?, country = ? WHERE id = ?",
		p.Name, p.Street, p.City, p.Country, p.ID)
}

// DeleteProfile relies on ON DELETE CASCADE for bills and instances.
func (r *Repository) DeleteProfile(ctx context.Context, id int64) error {
	return r.exec(ctx, "delete profile", "profile", id, "DELETE FROM profiles WHERE id = ?", id)
}

// Bills

func (r *Repository) GetBill(ctx context.Context, id int64) (core.Bill, error) {
	var b core.Bill
	err := r.db.QueryRowContext(ctx, r.rebind("SELECT id, profile_id, name FROM bills WHERE id = ?"), id).
		Scan(&b.ID, &b.ProfileID, &b.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Bill{}, core.NotFound("bill", id)
	}
	if err != nil {
		return core.Bill{}, core.Remote("get bill", err)
	}
	return b, nil
}

func (r *Repository) ListBills(ctx context.Context, profileID int64) ([]core.Bill, error) {
	return r.listBills(ctx, "SELECT id, profile_id, name FROM bills WHERE profile_id = ? ORDER BY name, id", profileID)
}

func (r *Repository) ListAllBills(ctx context.Context) ([]core.Bill, error) {
	return r.listBills(ctx, "SELECT id, profile_id, name FROM bills ORDER BY name, id")
}

func (r *Repository) listBills(ctx context.Context, q string, args ...any) ([]core.Bill, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(q), args...)
	if err != nil {
		return nil, core.Remote("list bills", err)
	}
	defer rows.Close()
	var out []core.Bill
	for rows.Next() {
		var b core.Bill
		if err := rows.Scan(&b.ID, &b.ProfileID, &b.Name); err != nil {
			return nil, core.Remote("scan bill", err)
		}
		out = append(out, b)
	}
	return out, core.Remote("list bills", rows.Err())
}

func (r *Repository) CreateBill(ctx context.Context, b core.Bill) (core.Bill, error) {
	if err := b.Validate(); err != nil {
		return core.Bill{}, err
	}
	ok, err := r.exists(ctx, "profiles", b.ProfileID)
	if err != nil {
		return core.Bill{}, err
	}
	if !ok {
		return core.Bill{}, core.NotFound("profile", b.ProfileID)
	}
	id, err := r.insert(ctx, "create bill", "INSERT INTO bills (profile_id, name) VALUES (?, ?)", b.ProfileID, b.Name)
	if err != nil {
		return core.Bill{}, err
	}
	b.ID = id
	return b, nil
}

func (r *Repository) DeleteBill(ctx context.Context, id int64) error {
	return r.exec(ctx, "delete bill", "bill", id, "DELETE FROM bills WHERE id = ?", id)
}

// Bill instances

const instanceColumns = "id, bill_id, month, due_date, amount, paid, description"

func scanInstance(sc interface{ Scan(...any) error }) (core.BillInstance, error) {
	var (
		bi         core.BillInstance
		month, due dateValue
	)
	if err := sc.Scan(&bi.ID, &bi.BillID, &month, &due, &bi.Amount.Decimal, &bi.Paid, &bi.Description); err != nil {
		return core.BillInstance{}, err
	}
	bi.Month = month.Date
	bi.DueDate = due.Date
	bi.Amount = core.NewMoney(bi.Amount.Decimal)
	return bi, nil
}

func (r *Repository) GetBillInstance(ctx context.Context, id int64) (core.BillInstance, error) {
	row := r.db.QueryRowContext(ctx, r.rebind("SELECT "+instanceColumns+" FROM bill_instances WHERE id = ?"), id)
	bi, err := scanInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.BillInstance{}, core.NotFound("bill instance", id)
	}
	if err != nil {
		return core.BillInstance{}, core.Remote("get bill instance", err)
	}
	return bi, nil
}

func (r *Repository) ListInstances(ctx context.Context, month core.Date) ([]core.BillInstance, error) {
	return r.listInstances(ctx,
		"SELECT "+instanceColumns+" FROM bill_instances WHERE month = ? ORDER BY due_date, id",
		month.FirstOfMonth().String())
}

func (r *Repository) ListInstancesDue(ctx context.Context, from, to core.Date) ([]core.BillInstance, error) {
	return r.listInstances(ctx,
		"SELECT "+instanceColumns+" FROM bill_instances WHERE due_date >= ? AND due_date <= ? ORDER BY due_date, id",
		from.String(), to.String())
}

func (r *Repository) ListInstancesByBill(ctx context.Context, billID int64) ([]core.BillInstance, error) {
	return r.listInstances(ctx,
		"SELECT "+instanceColumns+" FROM bill_instances WHERE bill_id = ? ORDER BY due_date, id",
		billID)
}

func (r *Repository) listInstances(ctx context.Context, q string, args ...any) ([]core.BillInstance, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(q), args...)
	if err != nil {
		return nil, core.Remote("list bill instances", err)
	}
	defer rows.Close()
	var out []core.BillInstance
	for rows.Next() {
		bi, err := scanInstance(rows)
		if err != nil {
			return nil, core.Remote("scan bill instance", err)
		}
		out = append(out, bi)
	}
	return out, core.Remote("list bill instances", rows.Err())
}

func (r *Repository) CreateBillInstance(ctx context.Context, bi core.BillInstance) (core.BillInstance, error) {
	if err := bi.Validate(); err != nil {
		return core.BillInstance{}, err
	}
	ok, err := r.exists(ctx, "bills", bi.BillID)
	if err != nil {
		return core.BillInstance{}, err
	}
	if !ok {
		return core.BillInstance{}, core.NotFound("bill", bi.BillID)
	}
	id, err := r.insert(ctx, "create bill instance",
		"INSERT INTO bill_instances (bill_id, month, due_date, amount, paid, description) VALUES (?, ?, ?, ?, ?, ?)",
		bi.BillID, bi.Month.String(), bi.DueDate.String(), bi.Amount.Plain(), bi.Paid, bi.Description)
	if err != nil {
		return core.BillInstance{}, err
	}
	bi.ID = id
	slog.DebugContext(ctx, "bill instance created", "id", id, "bill_id", bi.BillID, "month", bi.Month.String())
	return bi, nil
}

func (r *Repository) UpdateBillInstance(ctx context.Context, bi core.BillInstance) error {
	if err := bi.Validate(); err != nil {
		return err
	}
	ok, err := r.exists(ctx, "bills", bi.BillID)
	if err != nil {
		return err
	}
	if !ok {
		return core.NotFound("bill", bi.BillID)
	}
	return r.exec(ctx, "update bill instance", "bill instance", bi.ID,
		"UPDATE bill_instances SET bill_id = ?, month = ?, due_date = ?, amount = ?, paid = ?, description = ? WHERE id = ?",
		bi.BillID, bi.Month.String(), bi.DueDate.String(), bi.Amount.Plain(), bi.Paid, bi.Description, bi.ID)
}

func (r *Repository) SetInstancePaid(ctx context.Context, id int64, paid bool) error {
	return r.exec(ctx, "set paid", "bill instance", id, "UPDATE bill_instances SET paid = ? WHERE id = ?", paid, id)
}

func (r *Repository) DeleteBillInstance(ctx context.Context, id int64) error {
	return r.exec(ctx, "delete bill instance", "bill instance", id, "DELETE FROM bill_instances WHERE id = ?", id)
}

// dateValue scans DATE columns (postgres) and ISO text columns (sqlite).
type dateValue struct {
	core.Date
}

func (d *dateValue) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		d.Date = core.DateOf(v)
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	case nil:
		d.Date = core.Date{}
		return nil
	default:
		return fmt.Errorf("unsupported date type %T", src)
	}
}

func (d *dateValue) parse(s string) error {
	if len(s) > 10 {
		s = s[:10]
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return fmt.Errorf("parse date %q: %w", s, err)
	}
	d.Date = core.DateOf(t)
	return nil
}
