package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsStore_All(t *testing.T) {
	db, mock := newMock(t)
	s := NewSettingsStore(db)

	mock.ExpectQuery(`SELECT setting_key, setting_value FROM settings`).
		WillReturnRows(sqlmock.NewRows([]string{"setting_key", "setting_value"}).
			AddRow("storeName", "Lens Lab").
			AddRow("currency", "EUR"))

	all, err := s.All(context.Background())

	require.NoError(t, err)
	assert.Equal(t, map[string]string{"storeName": "Lens Lab", "currency": "EUR"}, all)
}

func TestSettingsStore_Get_Missing(t *testing.T) {
	db, mock := newMock(t)
	s := NewSettingsStore(db)

	mock.ExpectQuery(`SELECT setting_value FROM settings WHERE setting_key = \?`).
		WithArgs("timezone").
		WillReturnRows(sqlmock.NewRows([]string{"setting_value"}))

	_, ok, err := s.Get(context.Background(), "timezone")

	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSettingsStore_Upsert(t *testing.T) {
	db, mock := newMock(t)
	s := NewSettingsStore(db)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO settings \(setting_key, setting_value\) VALUES \(\?, \?\) ON DUPLICATE KEY UPDATE`).
		WithArgs("currency", "EUR").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	assert.NoError(t, s.Upsert(context.Background(), map[string]string{"currency": "EUR"}))
}
