package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subtrans/backend/internal/audit"
	"github.com/subtrans/backend/internal/auth"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	d, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestEnsureAdmin(t *testing.T) {
	d := openTestDB(t)

	require.NoError(t, d.EnsureAdmin("admin", "pw"))
	require.NoError(t, d.EnsureAdmin("admin2", "other"))

	users, err := d.ListUsers()
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "admin", users[0].Username)
	assert.Equal(t, "admin", users[0].Role)
	assert.True(t, auth.CheckPassword("pw", users[0].Password))
}

func TestUsersCRUD(t *testing.T) {
	d := openTestDB(t)

	id, err := d.CreateUser("bob", "hash", "viewer")
	require.NoError(t, err)

	_, err = d.CreateUser("bob", "hash", "viewer")
	assert.Error(t, err, "duplicate username")

	require.NoError(t, d.UpdateUser(id, "robert", "editor"))
	require.NoError(t, d.UpdateUserPassword(id, "newhash"))

	u, err := d.GetUserByUsername("robert")
	require.NoError(t, err)
	assert.Equal(t, "editor", u.Role)
	assert.Equal(t, "newhash", u.Password)

	count, err := d.CountAdmins()
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, d.DeleteUser(id))
	_, err = d.GetUserByID(id)
	assert.Error(t, err)
}

func TestSettings(t *testing.T) {
	d := openTestDB(t)

	assert.Equal(t, "fallback", d.GetSetting("gemini_model", "fallback"))
	require.NoError(t, d.SetSetting("gemini_model", "gemini-2.5-pro"))
	require.NoError(t, d.SetSetting("gemini_model", "gemini-2.5-flash"))
	assert.Equal(t, "gemini-2.5-flash", d.GetSetting("gemini_model", "fallback"))

	require.NoError(t, d.SetSetting("gemini_model", ""))
	assert.Equal(t, "fallback", d.GetSetting("gemini_model", "fallback"))

	all, err := d.GetAllSettings()
	require.NoError(t, err)
	assert.Contains(t, all, "gemini_model")
}

func TestTranslationPresets(t *testing.T) {
	d := openTestDB(t)

	presets, err := d.ListTranslationPresets()
	require.NoError(t, err)
	assert.Empty(t, presets)

	id, err := d.CreateTranslationPreset("Formal", "Use formal register.")
	require.NoError(t, err)
	require.NoError(t, d.UpdateTranslationPreset(id, "Formal PT", "Use 'o senhor'."))

	p, err := d.GetTranslationPreset(id)
	require.NoError(t, err)
	assert.Equal(t, "Formal PT", p.Name)
	assert.Equal(t, "Use 'o senhor'.", p.Prompt)

	assert.Error(t, d.UpdateTranslationPreset(id+100, "x", "y"))

	require.NoError(t, d.DeleteTranslationPreset(id))
	presets, err = d.ListTranslationPresets()
	require.NoError(t, err)
	assert.Empty(t, presets)
}

func TestBatchAudit(t *testing.T) {
	d := openTestDB(t)
	var sink audit.Sink = d

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, sink.Record(context.Background(), audit.Entry{RunID: "r", Batch: 2, FirstID: 3, LastID: 4, State: "failed", Request: "q2", Response: "ERROR: x", At: at}))
	require.NoError(t, sink.Record(context.Background(), audit.Entry{RunID: "r", Batch: 1, FirstID: 1, LastID: 2, State: "success", Request: "q1", Response: "a1", At: at}))
	require.NoError(t, sink.Record(context.Background(), audit.Entry{RunID: "other", Batch: 1, At: at}))

	entries, err := d.ListBatchAudit("r")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries[0].Batch)
	assert.Equal(t, "q1", entries[0].Request)
	assert.Equal(t, "failed", entries[1].State)
	assert.True(t, at.Equal(entries[1].At))

	require.NoError(t, d.DeleteBatchAudit("r"))
	entries, err = d.ListBatchAudit("r")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
