package migrate

import (
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/shandysiswandi/konkurs/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_RejectsBadInput(t *testing.T) {
	assert.ErrorIs(t, Run(migrations.FS, "  ", "up"), ErrEmptyDSN)
	assert.ErrorIs(t, Run(migrations.FS, "postgres://localhost/konkurs", "sideways"), ErrInvalidDirection)
	assert.ErrorIs(t, Run(migrations.FS, "postgres://localhost/konkurs", "UP"), ErrInvalidDirection)
}

func TestEmbeddedMigrations(t *testing.T) {
	src, err := iofs.New(migrations.FS, ".")
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	up, ident, err := src.ReadUp(first)
	require.NoError(t, err)
	defer up.Close()
	assert.Equal(t, "init", ident)

	down, _, err := src.ReadDown(first)
	require.NoError(t, err)
	defer down.Close()
}
