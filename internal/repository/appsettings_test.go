package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppSettingsRepositoryGetMissingReturnsNil(t *testing.T) {
	db := newTestDB(t)
	repo := NewAppSettingsRepository(db.Conn(), testLogger())

	v, err := repo.Get("does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestAppSettingsRepositorySetAndGet(t *testing.T) {
	db := newTestDB(t)
	repo := NewAppSettingsRepository(db.Conn(), testLogger())

	require.NoError(t, repo.Set("unattended_mode", "true"))

	v, err := repo.Get("unattended_mode")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "true", *v)

	require.NoError(t, repo.Set("unattended_mode", "false"))
	v, err = repo.Get("unattended_mode")
	require.NoError(t, err)
	assert.Equal(t, "false", *v)
}

func TestAppSettingsRepositoryGetAllIncludesSeedRow(t *testing.T) {
	db := newTestDB(t)
	repo := NewAppSettingsRepository(db.Conn(), testLogger())

	all, err := repo.GetAll()
	require.NoError(t, err)
	assert.Equal(t, "8080", all["api_port"])
}
