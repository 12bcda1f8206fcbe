package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"raisin/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping verifies the database connection is still usable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// CreateFundraiser inserts a fundraiser and returns it with its ID set.
func (r *SQLiteRepository) CreateFundraiser(ctx context.Context, f core.Fundraiser) (core.Fundraiser, error) {
	if err := f.Validate(); err != nil {
		return core.Fundraiser{}, err
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO fundraisers (name, currency, goal, total_raised, donations_count,
			match_funding_rate, match_funding_per_donation_limit, match_funding_remaining,
			recurring_donations_to, created_at)
		VALUES (?, ?, ?, 0, 0, ?, ?, ?, ?, ?)`,
		f.Name, string(f.Currency), f.Goal,
		f.MatchFundingRate, f.MatchFundingPerDonationLimit, f.MatchFundingRemaining,
		f.RecurringDonationsTo, orNow(f.CreatedAt))
	if err != nil {
		return core.Fundraiser{}, fmt.Errorf("create fundraiser: %w", err)
	}

	f.ID, err = res.LastInsertId()
	if err != nil {
		return core.Fundraiser{}, fmt.Errorf("fundraiser insert id: %w", err)
	}

	slog.InfoContext(ctx, "Fundraiser created",
		"id", f.ID,
		"name", f.Name,
		"currency", f.Currency,
		"goal", f.Goal)

	return f, nil
}

// GetFundraiser loads one fundraiser by ID.
func (r *SQLiteRepository) GetFundraiser(ctx context.Context, id int64) (core.Fundraiser, error) {
	var (
		f         core.Fundraiser
		currency  string
		cutoff    sql.NullTime
		createdAt time.Time
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, currency, goal, total_raised, donations_count,
			match_funding_rate, match_funding_per_donation_limit, match_funding_remaining,
			recurring_donations_to, created_at
		FROM fundraisers WHERE id = ?`, id).Scan(
		&f.ID, &f.Name, &currency, &f.Goal, &f.TotalRaised, &f.DonationsCount,
		&f.MatchFundingRate, &f.MatchFundingPerDonationLimit, &f.MatchFundingRemaining,
		&cutoff, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Fundraiser{}, ErrNotFound
	}
	if err != nil {
		return core.Fundraiser{}, fmt.Errorf("get fundraiser: %w", err)
	}

	f.Currency = core.Currency(currency)
	if cutoff.Valid {
		t := cutoff.Time
		f.RecurringDonationsTo = &t
	}
	f.CreatedAt = createdAt
	return f, nil
}

// CreateDonationWithPayments persists a donation, all of its payments and the
// fundraiser delta in a single transaction. Returns the donation with its ID
// and the IDs of the created payments in schedule order.
func (r *SQLiteRepository) CreateDonationWithPayments(ctx context.Context, d core.Donation, payments []core.Payment, deltas core.FundraiserDeltas) (core.Donation, []int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Donation{}, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO donations (fundraiser_id, donor_name, donor_email, message,
			donation_amount, contribution_amount, match_funding_amount, frequency,
			gift_aid, name_visible, message_visible, version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)`,
		d.FundraiserID, d.DonorName, d.DonorEmail, d.Message,
		d.DonationAmount, d.ContributionAmount, d.MatchFundingAmount, string(d.Frequency),
		d.GiftAid, d.NameVisible, d.MessageVisible, orNow(d.CreatedAt))
	if err != nil {
		return core.Donation{}, nil, fmt.Errorf("create donation: %w", err)
	}
	d.ID, err = res.LastInsertId()
	if err != nil {
		return core.Donation{}, nil, fmt.Errorf("donation insert id: %w", err)
	}
	d.Version = 1

	paymentIDs := make([]int64, 0, len(payments))
	for _, p := range payments {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO payments (donation_id, fundraiser_id, at, donation_amount,
				contribution_amount, match_funding_amount, method, status, version, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?)`,
			d.ID, d.FundraiserID, p.At, p.DonationAmount,
			p.ContributionAmount, p.MatchFundingAmount, p.Method, string(p.Status), orNow(p.CreatedAt))
		if err != nil {
			return core.Donation{}, nil, fmt.Errorf("create payment: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return core.Donation{}, nil, fmt.Errorf("payment insert id: %w", err)
		}
		paymentIDs = append(paymentIDs, id)
	}

	if err := applyDeltas(ctx, tx, d.FundraiserID, deltas); err != nil {
		return core.Donation{}, nil, err
	}

	if err := tx.Commit(); err != nil {
		return core.Donation{}, nil, fmt.Errorf("commit donation: %w", err)
	}

	slog.InfoContext(ctx, "Donation saved",
		"id", d.ID,
		"fundraiser_id", d.FundraiserID,
		"amount_minor", d.DonationAmount,
		"frequency", d.Frequency,
		"payments", len(paymentIDs))

	return d, paymentIDs, nil
}

// ApplyFundraiserDeltas adjusts a fundraiser's running totals. Totals are
// only ever moved by deltas; the match funding pool is clamped at zero and a
// NULL pool stays NULL (unlimited).
func (r *SQLiteRepository) ApplyFundraiserDeltas(ctx context.Context, fundraiserID int64, deltas core.FundraiserDeltas) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := applyDeltas(ctx, tx, fundraiserID, deltas); err != nil {
		return err
	}
	return tx.Commit()
}

func applyDeltas(ctx context.Context, tx *sql.Tx, fundraiserID int64, deltas core.FundraiserDeltas) error {
	if deltas.IsZero() {
		return nil
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE fundraisers
		SET total_raised = total_raised + ?,
			donations_count = donations_count + ?,
			match_funding_remaining = CASE
				WHEN match_funding_remaining IS NULL THEN NULL
				ELSE MAX(0, match_funding_remaining + ?)
			END
		WHERE id = ?`,
		deltas.TotalRaised, deltas.DonationsCount, deltas.MatchFundingRemaining, fundraiserID)
	if err != nil {
		return fmt.Errorf("apply fundraiser deltas: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("apply fundraiser deltas: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetDonation loads one donation by ID.
func (r *SQLiteRepository) GetDonation(ctx context.Context, id int64) (core.Donation, error) {
	var (
		d         core.Donation
		frequency string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, fundraiser_id, donor_name, donor_email, message,
			donation_amount, contribution_amount, match_funding_amount, frequency,
			gift_aid, name_visible, message_visible, version, created_at
		FROM donations WHERE id = ?`, id).Scan(
		&d.ID, &d.FundraiserID, &d.DonorName, &d.DonorEmail, &d.Message,
		&d.DonationAmount, &d.ContributionAmount, &d.MatchFundingAmount, &frequency,
		&d.GiftAid, &d.NameVisible, &d.MessageVisible, &d.Version, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Donation{}, ErrNotFound
	}
	if err != nil {
		return core.Donation{}, fmt.Errorf("get donation: %w", err)
	}
	d.Frequency = core.Frequency(frequency)
	return d, nil
}

// GetPayment loads one payment by ID.
func (r *SQLiteRepository) GetPayment(ctx context.Context, id int64) (core.Payment, error) {
	p, err := scanPayment(r.db.QueryRowContext(ctx, `
		SELECT id, donation_id, fundraiser_id, at, donation_amount,
			contribution_amount, match_funding_amount, method, status, version, created_at
		FROM payments WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Payment{}, ErrNotFound
	}
	if err != nil {
		return core.Payment{}, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

// ListDonations returns a fundraiser's donations, newest first.
func (r *SQLiteRepository) ListDonations(ctx context.Context, fundraiserID int64) ([]core.Donation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, fundraiser_id, donor_name, donor_email, message,
			donation_amount, contribution_amount, match_funding_amount, frequency,
			gift_aid, name_visible, message_visible, version, created_at
		FROM donations WHERE fundraiser_id = ? ORDER BY created_at DESC, id DESC`, fundraiserID)
	if err != nil {
		return nil, fmt.Errorf("list donations: %w", err)
	}
	defer rows.Close()

	var out []core.Donation
	for rows.Next() {
		var (
			d         core.Donation
			frequency string
		)
		if err := rows.Scan(
			&d.ID, &d.FundraiserID, &d.DonorName, &d.DonorEmail, &d.Message,
			&d.DonationAmount, &d.ContributionAmount, &d.MatchFundingAmount, &frequency,
			&d.GiftAid, &d.NameVisible, &d.MessageVisible, &d.Version, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan donation: %w", err)
		}
		d.Frequency = core.Frequency(frequency)
		out = append(out, d)
	}
	return out, rows.Err()
}

// UpdateDonationAmounts overwrites a donation's monetary fields, bumps its
// version and applies the fundraiser deltas, all in one transaction: the
// record never changes without the totals moving with it. Nil fields are
// left untouched.
func (r *SQLiteRepository) UpdateDonationAmounts(ctx context.Context, id int64, donationAmount, contributionAmount, matchFundingAmount *int64, deltas core.FundraiserDeltas) (core.Donation, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Donation{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var fundraiserID int64
	err = tx.QueryRowContext(ctx, `SELECT fundraiser_id FROM donations WHERE id = ?`, id).Scan(&fundraiserID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Donation{}, ErrNotFound
	}
	if err != nil {
		return core.Donation{}, fmt.Errorf("update donation amounts: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE donations
		SET donation_amount = COALESCE(?, donation_amount),
			contribution_amount = COALESCE(?, contribution_amount),
			match_funding_amount = COALESCE(?, match_funding_amount),
			version = version + 1
		WHERE id = ?`,
		donationAmount, contributionAmount, matchFundingAmount, id); err != nil {
		return core.Donation{}, fmt.Errorf("update donation amounts: %w", err)
	}

	if err := applyDeltas(ctx, tx, fundraiserID, deltas); err != nil {
		return core.Donation{}, err
	}
	if err := tx.Commit(); err != nil {
		return core.Donation{}, fmt.Errorf("commit donation update: %w", err)
	}
	return r.GetDonation(ctx, id)
}

// UpdatePaymentAmounts overwrites a payment's monetary fields, bumps its
// version and applies the fundraiser deltas in the same transaction. Nil
// fields are left untouched. The payment goes back to pending sync so the
// mirror picks up the correction.
func (r *SQLiteRepository) UpdatePaymentAmounts(ctx context.Context, id int64, donationAmount, contributionAmount, matchFundingAmount *int64, deltas core.FundraiserDeltas) (core.Payment, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Payment{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var fundraiserID int64
	err = tx.QueryRowContext(ctx, `SELECT fundraiser_id FROM payments WHERE id = ?`, id).Scan(&fundraiserID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Payment{}, ErrNotFound
	}
	if err != nil {
		return core.Payment{}, fmt.Errorf("update payment amounts: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET donation_amount = COALESCE(?, donation_amount),
			contribution_amount = COALESCE(?, contribution_amount),
			match_funding_amount = COALESCE(?, match_funding_amount),
			version = version + 1,
			sync_status = 'pending'
		WHERE id = ?`,
		donationAmount, contributionAmount, matchFundingAmount, id); err != nil {
		return core.Payment{}, fmt.Errorf("update payment amounts: %w", err)
	}

	if err := applyDeltas(ctx, tx, fundraiserID, deltas); err != nil {
		return core.Payment{}, err
	}
	if err := tx.Commit(); err != nil {
		return core.Payment{}, fmt.Errorf("commit payment update: %w", err)
	}
	return r.GetPayment(ctx, id)
}

// AddPayment appends a payment to an existing donation and applies the
// fundraiser deltas in the same transaction. Refunds come through here as
// paid payments with negated amounts; they enter the sync queue like any
// other settled payment.
func (r *SQLiteRepository) AddPayment(ctx context.Context, p core.Payment, deltas core.FundraiserDeltas) (core.Payment, error) {
	if err := p.Validate(); err != nil {
		return core.Payment{}, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Payment{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO payments (donation_id, fundraiser_id, at, donation_amount,
			contribution_amount, match_funding_amount, method, status, version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?)`,
		p.DonationID, p.FundraiserID, p.At, p.DonationAmount,
		p.ContributionAmount, p.MatchFundingAmount, p.Method, string(p.Status), orNow(p.CreatedAt))
	if err != nil {
		return core.Payment{}, fmt.Errorf("add payment: %w", err)
	}
	p.ID, err = res.LastInsertId()
	if err != nil {
		return core.Payment{}, fmt.Errorf("payment insert id: %w", err)
	}
	p.Version = 1

	if err := applyDeltas(ctx, tx, p.FundraiserID, deltas); err != nil {
		return core.Payment{}, err
	}
	if err := tx.Commit(); err != nil {
		return core.Payment{}, fmt.Errorf("commit payment: %w", err)
	}

	slog.InfoContext(ctx, "Payment appended",
		"id", p.ID,
		"donation_id", p.DonationID,
		"amount_minor", p.DonationAmount,
		"method", p.Method)
	return p, nil
}

// ListDuePayments returns scheduled payments whose due time has passed.
func (r *SQLiteRepository) ListDuePayments(ctx context.Context, now time.Time, limit int) ([]core.Payment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, donation_id, fundraiser_id, at, donation_amount,
			contribution_amount, match_funding_amount, method, status, version, created_at
		FROM payments
		WHERE status = 'scheduled' AND at <= ?
		ORDER BY at ASC
		LIMIT ?`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due payments: %w", err)
	}
	defer rows.Close()

	var out []core.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkPaymentCollected moves a payment from scheduled to paid with its final
// match funding amount and applies the fundraiser deltas, all in one
// transaction. Only scheduled payments transition, so a payment is never
// collected (and its totals never counted) twice.
func (r *SQLiteRepository) MarkPaymentCollected(ctx context.Context, id int64, matchFundingAmount *int64, deltas core.FundraiserDeltas) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var fundraiserID int64
	err = tx.QueryRowContext(ctx, `SELECT fundraiser_id FROM payments WHERE id = ?`, id).Scan(&fundraiserID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("mark payment collected: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET status = 'paid', match_funding_amount = ?, version = version + 1
		WHERE id = ? AND status = 'scheduled'`,
		matchFundingAmount, id)
	if err != nil {
		return fmt.Errorf("mark payment collected: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark payment collected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	if err := applyDeltas(ctx, tx, fundraiserID, deltas); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit collection: %w", err)
	}

	slog.InfoContext(ctx, "Payment collected", "id", id)
	return nil
}

// PendingSyncPayment is the minimal data carried on receipt queue messages.
type PendingSyncPayment struct {
	ID         int64
	DonationID int64
	Version    int64
	CreatedAt  time.Time
}

// GetPendingSyncPayments returns collected payments not yet mirrored to the
// ledger. Scheduled payments are not mirrored until they are collected.
func (r *SQLiteRepository) GetPendingSyncPayments(ctx context.Context, limit int) ([]PendingSyncPayment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, donation_id, version, created_at
		FROM payments
		WHERE sync_status = 'pending' AND status = 'paid'
		ORDER BY created_at ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync payments: %w", err)
	}
	defer rows.Close()

	var out []PendingSyncPayment
	for rows.Next() {
		var p PendingSyncPayment
		if err := rows.Scan(&p.ID, &p.DonationID, &p.Version, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending sync payment: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkSynced marks a payment as successfully mirrored.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE payments SET sync_status = 'synced', synced_at = ? WHERE id = ?`,
		time.Now(), id); err != nil {
		return fmt.Errorf("mark payment synced: %w", err)
	}

	slog.InfoContext(ctx, "Payment marked as synced", "id", id)
	return nil
}

// MarkSyncError marks a payment as having failed to mirror.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE payments SET sync_status = 'error' WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark payment sync error: %w", err)
	}

	slog.WarnContext(ctx, "Payment marked with sync error", "id", id)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (core.Payment, error) {
	var (
		p      core.Payment
		status string
	)
	err := row.Scan(
		&p.ID, &p.DonationID, &p.FundraiserID, &p.At, &p.DonationAmount,
		&p.ContributionAmount, &p.MatchFundingAmount, &p.Method, &status, &p.Version, &p.CreatedAt)
	if err != nil {
		return core.Payment{}, err
	}
	p.Status = core.PaymentStatus(status)
	return p, nil
}

func orNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
