package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	domain "github.com/bryanwahyu/clinisense/internal/domain/patients"
)

type PatientCacheRepository struct{ db *sql.DB }

func NewPatientCacheRepository(db *sql.DB) *PatientCacheRepository {
	return &PatientCacheRepository{db: db}
}

const createPatientCache = `
CREATE TABLE IF NOT EXISTS patient_cache (
  seq BIGSERIAL PRIMARY KEY,
  id TEXT NOT NULL UNIQUE,
  doctor_id TEXT NOT NULL,
  patient_name TEXT NOT NULL,
  handle TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  data_json JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_patient_cache_doctor ON patient_cache (doctor_id, seq);`

func (r *PatientCacheRepository) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, createPatientCache)
	return err
}

// Append inserts a record; ids are unique so a replayed append fails.
func (r *PatientCacheRepository) Append(ctx context.Context, rec domain.PatientRecord) error {
	const q = `
INSERT INTO patient_cache
 (id, doctor_id, patient_name, handle, created_at, data_json)
VALUES ($1,$2,$3,$4,$5,$6);`

	data, err := payloadJSON(rec.Data)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err = r.db.ExecContext(ctx, q,
		string(rec.ID), stringOrDash(rec.DoctorID), rec.PatientName, rec.Handle, created, data,
	)
	return err
}

func (r *PatientCacheRepository) List(ctx context.Context, doctorID string) ([]domain.PatientRecord, error) {
	const q = `
SELECT id, doctor_id, patient_name, handle, created_at, data_json
FROM patient_cache
WHERE doctor_id=$1
ORDER BY seq ASC;`
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
			data    []byte
		)
		if err := rows.Scan(&id, &doc, &rec.PatientName, &rec.Handle, &rec.CreatedAt, &data); err != nil {
			return nil, err
		}
		rec.ID = domain.RecordID(id)
		rec.DoctorID = dashToEmpty(doc)
		rec.CreatedAt = rec.CreatedAt.UTC()
		if rec.Data, err = parsePayload(data); err != nil {
			return nil, fmt.Errorf("decode payload for %s: %w", id, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
