package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmbeddedSchemaFiles(t *testing.T) {
	entries, err := fs.ReadDir(FS, ".")
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		require.True(t, strings.HasSuffix(e.Name(), ".sql"), "unexpected embedded file %s", e.Name())
		names = append(names, e.Name())

		content, err := fs.ReadFile(FS, e.Name())
		require.NoError(t, err)
		require.NotEmpty(t, content, "embedded migration %s is empty", e.Name())
	}

	require.Equal(t, []string{
		"0001_certificates.sql",
		"0002_door_access.sql",
		"0003_bookings.sql",
		"0004_audit_events.sql",
	}, names)
}
