package engine

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// auditStateFile is the opaque flag file consulted by search to decide
// whether note results should be suppressed, e.g. while an operator
// audits the notes store for stale or sensitive content.
const auditStateFile = "audit_state.json"

// auditState mirrors the on-disk audit_state.json shape. Unknown fields
// are ignored so the file can carry additional operator state.
type auditState struct {
	SuppressNotes bool `json:"suppress_notes"`
}

// loadAuditState reads dataDir/audit_state.json. A missing or malformed
// file means no suppression; the file is advisory, never an error.
func loadAuditState(dataDir string) auditState {
	var st auditState
	raw, err := os.ReadFile(filepath.Join(dataDir, auditStateFile))
	if err != nil {
		return st
	}
	if jerr := json.Unmarshal(raw, &st); jerr != nil {
		return auditState{}
	}
	return st
}
