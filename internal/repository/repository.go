package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Sivendra-Kumar/drec-origin/internal/db"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Tx is an alias for pgx.Tx
type Tx = pgx.Tx

// Repository implements the device registry, read store, issue log store,
// certificate ledger and group registry over PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// BeginTx starts a new transaction
func (r *Repository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// LockDevice serializes writers for one device for the lifetime of the
// transaction. Concurrent submissions for the same device wait here instead
// of interleaving.
func (r *Repository) LockDevice(ctx context.Context, tx pgx.Tx, deviceExternalID string) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, deviceExternalID); err != nil {
		return fmt.Errorf("failed to acquire device lock: %w", err)
	}
	return nil
}

const deviceColumns = `
	external_id, developer_external_id, organization_id, capacity_watts,
	commissioning_date, created_at, yield_value, meter_read_type
`

func scanDevice(row pgx.Row) (*db.DeviceSnapshot, error) {
	var d db.DeviceSnapshot
	err := row.Scan(
		&d.ExternalID,
		&d.DeveloperExternalID,
		&d.OrganizationID,
		&d.CapacityWatts,
		&d.CommissioningDate,
		&d.CreatedAt,
		&d.YieldValue,
		&d.MeterReadType,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query device: %w", err)
	}
	return &d, nil
}

// FindDeviceByExternalID returns the device snapshot, or nil when the id
// does not resolve.
func (r *Repository) FindDeviceByExternalID(ctx context.Context, externalID string) (*db.DeviceSnapshot, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE external_id = $1`
	return scanDevice(r.pool.QueryRow(ctx, query, externalID))
}

// FindDeviceByDeveloperExternalID resolves a device by the id the developer
// registered it under, scoped to their organization.
func (r *Repository) FindDeviceByDeveloperExternalID(ctx context.Context, developerExternalID string, organizationID int64) (*db.DeviceSnapshot, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE developer_external_id = $1 AND organization_id = $2`
	return scanDevice(r.pool.QueryRow(ctx, query, developerExternalID, organizationID))
}

// FindDeviceByID resolves the numeric registry id carried in certificate
// metadata.
func (r *Repository) FindDeviceByID(ctx context.Context, id int64) (*db.DeviceSnapshot, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = $1`
	device, err := scanDevice(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, fmt.Errorf("no device found with id %d", id)
	}
	return device, nil
}

// InsertMeterReadTx appends an accepted read to the device's series.
func (r *Repository) InsertMeterReadTx(ctx context.Context, tx pgx.Tx, read *db.MeterRead) error {
	query := `
		INSERT INTO meter_reads (device_external_id, start_timestamp, end_timestamp, value_watt_hour)
		VALUES ($1, $2, $3, $4)
	`
	_, err := tx.Exec(ctx, query,
		read.DeviceExternalID,
		read.StartTimestamp,
		read.EndTimestamp,
		read.ValueWattHour,
	)
	if err != nil {
		return fmt.Errorf("failed to insert meter read: %w", err)
	}
	return nil
}

// rowQuerier is satisfied by both the pool and a transaction.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// LatestRead returns the most recent accepted read for a device, or nil
// when the series is empty.
func (r *Repository) LatestRead(ctx context.Context, deviceExternalID string) (*db.MeterRead, error) {
	return latestRead(ctx, r.pool, deviceExternalID)
}

// LatestReadTx is LatestRead inside a transaction. Callers holding the
// device lock use it so the envelope check sees the committed tip of the
// series, not a snapshot from before the lock.
func (r *Repository) LatestReadTx(ctx context.Context, tx pgx.Tx, deviceExternalID string) (*db.MeterRead, error) {
	return latestRead(ctx, tx, deviceExternalID)
}

func latestRead(ctx context.Context, q rowQuerier, deviceExternalID string) (*db.MeterRead, error) {
	query := `
		SELECT device_external_id, start_timestamp, end_timestamp, value_watt_hour
		FROM meter_reads
		WHERE device_external_id = $1
		ORDER BY end_timestamp DESC
		LIMIT 1
	`
	var read db.MeterRead
	err := q.QueryRow(ctx, query, deviceExternalID).Scan(
		&read.DeviceExternalID,
		&read.StartTimestamp,
		&read.EndTimestamp,
		&read.ValueWattHour,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest read: %w", err)
	}
	return &read, nil
}

// QueryReads returns the accepted reads of a device whose end timestamp
// falls in [from, to], ordered by end timestamp.
func (r *Repository) QueryReads(ctx context.Context, deviceExternalID string, from, to time.Time) ([]db.MeterRead, error) {
	query := `
		SELECT device_external_id, start_timestamp, end_timestamp, value_watt_hour
		FROM meter_reads
		WHERE device_external_id = $1 AND end_timestamp BETWEEN $2 AND $3
		ORDER BY end_timestamp ASC
	`
	rows, err := r.pool.Query(ctx, query, deviceExternalID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query reads: %w", err)
	}
	defer rows.Close()

	var reads []db.MeterRead
	for rows.Next() {
		var read db.MeterRead
		if err := rows.Scan(&read.DeviceExternalID, &read.StartTimestamp, &read.EndTimestamp, &read.ValueWattHour); err != nil {
			return nil, fmt.Errorf("failed to scan read: %w", err)
		}
		reads = append(reads, read)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return reads, nil
}

// InsertCertificateIssueLogTx records the immutable audit row for a
// certificate issuance.
func (r *Repository) InsertCertificateIssueLogTx(ctx context.Context, tx pgx.Tx, log *db.CertificateIssueLog) error {
	query := `
		INSERT INTO certificate_issue_logs (
			group_id, device_id, certificate_transaction_uid,
			certificate_issuance_startdate, certificate_issuance_enddate,
			readvalue_watthour, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := tx.Exec(ctx, query,
		log.GroupID,
		log.DeviceID,
		log.CertificateTransactionUID,
		log.IssuanceStartDate,
		log.IssuanceEndDate,
		log.ReadValueWattHour,
		log.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to insert certificate issue log: %w", err)
	}
	return nil
}

const issueLogColumns = `
	id, group_id, device_id, certificate_transaction_uid,
	certificate_issuance_startdate, certificate_issuance_enddate,
	readvalue_watthour, status
`

func scanIssueLogs(rows pgx.Rows) ([]db.CertificateIssueLog, error) {
	defer rows.Close()
	var logs []db.CertificateIssueLog
	for rows.Next() {
		var log db.CertificateIssueLog
		err := rows.Scan(
			&log.ID,
			&log.GroupID,
			&log.DeviceID,
			&log.CertificateTransactionUID,
			&log.IssuanceStartDate,
			&log.IssuanceEndDate,
			&log.ReadValueWattHour,
			&log.Status,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan issue log: %w", err)
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return logs, nil
}

// IssueLogsByTransactionUID is the authoritative lookup for certificates
// issued after the transaction UID was introduced.
func (r *Repository) IssueLogsByTransactionUID(ctx context.Context, groupID int64, deviceID string, transactionUID string) ([]db.CertificateIssueLog, error) {
	query := `
		SELECT ` + issueLogColumns + `
		FROM certificate_issue_logs
		WHERE group_id = $1 AND device_id = $2 AND certificate_transaction_uid = $3
	`
	rows, err := r.pool.Query(ctx, query, groupID, deviceID, transactionUID)
	if err != nil {
		return nil, fmt.Errorf("failed to query issue logs: %w", err)
	}
	return scanIssueLogs(rows)
}

// IssueLogsByDateWindow is the legacy fallback: a row matches when its
// issuance start or end falls inside the inclusive search window (see
// reconcile.WindowMatches).
func (r *Repository) IssueLogsByDateWindow(ctx context.Context, groupID int64, deviceID string, start, end time.Time) ([]db.CertificateIssueLog, error) {
	query := `
		SELECT ` + issueLogColumns + `
		FROM certificate_issue_logs
		WHERE group_id = $1 AND device_id = $2
		  AND (certificate_issuance_startdate BETWEEN $3 AND $4
		       OR certificate_issuance_enddate BETWEEN $3 AND $4)
	`
	rows, err := r.pool.Query(ctx, query, groupID, deviceID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query issue logs: %w", err)
	}
	return scanIssueLogs(rows)
}

// IssueLogsByGroup lists the whole audit trail for a group.
func (r *Repository) IssueLogsByGroup(ctx context.Context, groupID int64) ([]db.CertificateIssueLog, error) {
	query := `SELECT ` + issueLogColumns + ` FROM certificate_issue_logs WHERE group_id = $1 ORDER BY certificate_issuance_startdate ASC`
	rows, err := r.pool.Query(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query issue logs: %w", err)
	}
	return scanIssueLogs(rows)
}

func scanCertificates(rows pgx.Rows) ([]db.Certificate, error) {
	defer rows.Close()
	var certificates []db.Certificate
	for rows.Next() {
		var cert db.Certificate
		var claims []byte
		err := rows.Scan(
			&cert.ID,
			&cert.DeviceID,
			&cert.GenerationStartTime,
			&cert.GenerationEndTime,
			&cert.Metadata,
			&claims,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan certificate: %w", err)
		}
		if len(claims) > 0 {
			// Claims are stored as a JSON array; a malformed payload only
			// loses the claims, not the certificate.
			_ = json.Unmarshal(claims, &cert.Claims)
		}
		certificates = append(certificates, cert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return certificates, nil
}

const certificateColumns = `id, device_id, generation_start_time, generation_end_time, metadata, claims`

// CertificatesByGroup returns every certificate the ledger issued to the
// group.
func (r *Repository) CertificatesByGroup(ctx context.Context, groupID int64) ([]db.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE device_id = $1::text`
	rows, err := r.pool.Query(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query certificates: %w", err)
	}
	return scanCertificates(rows)
}

// ClaimedCertificatesByGroup returns the group's certificates that carry at
// least one redemption claim.
func (r *Repository) ClaimedCertificatesByGroup(ctx context.Context, groupID int64) ([]db.Certificate, error) {
	query := `
		SELECT ` + certificateColumns + `
		FROM certificates
		WHERE device_id = $1::text AND claims IS NOT NULL AND claims::text <> '[]'
	`
	rows, err := r.pool.Query(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query claimed certificates: %w", err)
	}
	return scanCertificates(rows)
}

// BuyerDeviceGroups lists the device groups reserved by a buyer, with the
// provenance fields the redemption report needs.
func (r *Repository) BuyerDeviceGroups(ctx context.Context, buyerID int64) ([]db.DeviceGroup, error) {
	query := `
		SELECT id, name, buyer_id, fuel_code, country_code, capacity_range,
		       installation_configs, off_takers, sectors,
		       commissioning_date_range, standard_compliance
		FROM device_groups
		WHERE buyer_id = $1
	`
	rows, err := r.pool.Query(ctx, query, buyerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query device groups: %w", err)
	}
	defer rows.Close()

	var groups []db.DeviceGroup
	for rows.Next() {
		var g db.DeviceGroup
		err := rows.Scan(
			&g.ID,
			&g.Name,
			&g.BuyerID,
			&g.FuelCode,
			&g.CountryCode,
			&g.CapacityRange,
			&g.InstallationConfigs,
			&g.OffTakers,
			&g.Sectors,
			&g.CommissioningDateRange,
			&g.StandardCompliance,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return groups, nil
}
