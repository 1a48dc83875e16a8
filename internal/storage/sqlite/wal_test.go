package sqlite

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDBPathFromDSN(t *testing.T) {
	cases := map[string]string{
		"":                           "",
		":memory:":                   "",
		"/data/thinkgraph.db":        "/data/thinkgraph.db",
		"file:/data/t.db?mode=rwc":   "/data/t.db",
		"file::memory:?cache=shared": "",
	}
	for dsn, want := range cases {
		assert.Equal(t, want, dbPathFromDSN(dsn), dsn)
	}
}

func TestIsRecoverableWALError(t *testing.T) {
	assert.False(t, isRecoverableWALError(nil))
	assert.True(t, isRecoverableWALError(errors.New("disk I/O error (10)")))
	assert.True(t, isRecoverableWALError(errors.New("database is locked")))
	assert.False(t, isRecoverableWALError(errors.New("no such table")))
}

func TestIsWALStale_NoFiles(t *testing.T) {
	assert.False(t, isWALStale(t.TempDir()+"/missing.db"))
}
