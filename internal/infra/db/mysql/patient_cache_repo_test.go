package mysql

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/clinisense/internal/domain/patients"
)

func TestPatientCacheRepository_Append(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	rec := domain.PatientRecord{
		ID:          "r1",
		PatientName: "Alice",
		Handle:      "alice",
		CreatedAt:   created,
		Data: &domain.AnalysisPayload{
			Handle:         "alice",
			OverallSummary: domain.NewSummary(domain.SummaryEntry{Category: "positive", Value: 1}),
			Predictions:    []domain.Prediction{},
		},
	}

	mock.ExpectExec("INSERT INTO patient_cache").
		WithArgs("r1", "-", "Alice", "alice", created, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := NewPatientCacheRepository(db)
	require.NoError(t, repo.Append(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPatientCacheRepository_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "doctor_id", "patient_name", "handle", "created_at", "data_json"}).
		AddRow("r1", "d1", "Alice", "alice", created,
			`{"handle":"alice","items_analyzed":1,"overall_summary":{"negative":0.4,"positive":0.6},"predictions":[]}`).
		AddRow("r2", "d1", "Bob", "bob", created, "null")

	mock.ExpectQuery("SELECT id, doctor_id, patient_name, handle, created_at, data_json").
		WithArgs("d1").
		WillReturnRows(rows)

	repo := NewPatientCacheRepository(db)
	got, err := repo.List(context.Background(), "d1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, domain.RecordID("r1"), got[0].ID)
	assert.Equal(t, "d1", got[0].DoctorID)
	require.NotNil(t, got[0].Data)
	assert.Equal(t, "negative", got[0].Data.OverallSummary.Oldest().Key)
	assert.Nil(t, got[1].Data)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPatientCacheRepository_ListEmptyAndBadJSON(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPatientCacheRepository(db)

	mock.ExpectQuery("SELECT id").WithArgs("-").
		WillReturnRows(sqlmock.NewRows([]string{"id", "doctor_id", "patient_name", "handle", "created_at", "data_json"}))
	got, err := repo.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)

	mock.ExpectQuery("SELECT id").WithArgs("d1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "doctor_id", "patient_name", "handle", "created_at", "data_json"}).
			AddRow("r1", "d1", "Alice", "alice", time.Now(), "{broken"))
	_, err = repo.List(context.Background(), "d1")
	assert.ErrorContains(t, err, "decode payload for r1")
	assert.NoError(t, mock.ExpectationsWereMet())
}
