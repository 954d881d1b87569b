package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAuditState_MissingFileMeansNoSuppression(t *testing.T) {
	st := loadAuditState(t.TempDir())
	assert.False(t, st.SuppressNotes)
}

func TestLoadAuditState_ReadsSuppressFlag(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, auditStateFile),
		[]byte(`{"suppress_notes": true, "started_by": "ops"}`), 0o644))
	st := loadAuditState(dir)
	assert.True(t, st.SuppressNotes)
}

func TestLoadAuditState_MalformedFileIgnored(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, auditStateFile), []byte("{not json"), 0o644))
	st := loadAuditState(dir)
	assert.False(t, st.SuppressNotes)
}
