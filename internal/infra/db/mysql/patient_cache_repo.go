package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	domain "github.com/bryanwahyu/clinisense/internal/domain/patients"
)

// PatientCacheRepository is the MySQL-backed local cache of analysed patients.
// Rows are only ever inserted; seq keeps append order.
type PatientCacheRepository struct {
	db *sql.DB
}

func NewPatientCacheRepository(db *sql.DB) *PatientCacheRepository {
	return &PatientCacheRepository{db: db}
}

const createPatientCache = `
CREATE TABLE IF NOT EXISTS patient_cache (
  seq BIGINT AUTO_INCREMENT PRIMARY KEY,
  id VARCHAR(64) NOT NULL UNIQUE,
  doctor_id VARCHAR(128) NOT NULL,
  patient_name VARCHAR(255) NOT NULL,
  handle VARCHAR(32) NOT NULL,
  created_at DATETIME(6) NOT NULL,
  data_json LONGTEXT NOT NULL,
  INDEX idx_patient_cache_doctor (doctor_id, seq)
);`

// Migrate creates the patient_cache table when missing.
func (r *PatientCacheRepository) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, createPatientCache)
	return err
}

// Append inserts a record
func (r *PatientCacheRepository) Append(ctx context.Context, rec domain.PatientRecord) error {
	const q = `
INSERT INTO patient_cache
  (id, doctor_id, patient_name, handle, created_at, data_json)
VALUES (?,?,?,?,?,?);
`
	data, err := encodePayload(rec.Data)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = r.db.ExecContext(ctx, q,
		string(rec.ID), stringOrDash(rec.DoctorID), rec.PatientName, rec.Handle, createdAt, data,
	)
	return err
}

// List returns the doctor's records in insertion order
func (r *PatientCacheRepository) List(ctx context.Context, doctorID string) ([]domain.PatientRecord, error) {
	const q = `
SELECT id, doctor_id, patient_name, handle, created_at, data_json
FROM patient_cache
WHERE doctor_id=?
ORDER BY seq ASC;
`
	rows, err := r.db.QueryContext(ctx, q, stringOrDash(doctorID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.PatientRecord{}
	for rows.Next() {
		var (
			rec     domain.PatientRecord
			id, doc string
			data    string
		)
		if err := rows.Scan(&id, &doc, &rec.PatientName, &rec.Handle, &rec.CreatedAt, &data); err != nil {
			return nil, err
		}
		rec.ID = domain.RecordID(id)
		rec.DoctorID = dashToEmpty(doc)
		if rec.Data, err = decodePayload(data); err != nil {
			return nil, fmt.Errorf("decode payload for %s: %w", id, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
