package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Kinds(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
		want Kind
	}{
		{"dashboard auth", `{"type":"auth-dashboard","token":"abc"}`, KindAuthDashboard},
		{"device auth", `{"type":"auth-arduino","secret":"s","admin_id":4}`, KindAuthDevice},
		{"toggle scan mode", `{"type":"toggle-scan-mode","enabled":true}`, KindToggleScanMode},
		{"toggle replacement", `{"type":"toggle-replacement-scan-mode","enabled":false}`, KindToggleReplacementMode},
		{"untyped scan", `{"rfid_tag":"A1","location":"ENTRY"}`, KindScan},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m, err := Decode([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Kind())
		})
	}
}

func TestDecode_Normalizes(t *testing.T) {
	t.Parallel()
	m, err := Decode([]byte(`{"rfid_tag":"  04A1B2 ","location":" entry "}`))
	require.NoError(t, err)
	assert.Equal(t, "04A1B2", m.RFIDTag)
	assert.Equal(t, LocationEntry, m.Location)
}

func TestDecode_DeviceAdminID(t *testing.T) {
	t.Parallel()
	m, err := Decode([]byte(`{"type":"auth-arduino","secret":"s","admin_id":12,"location":"lock"}`))
	require.NoError(t, err)
	require.NotNil(t, m.AdminID)
	assert.Equal(t, int64(12), *m.AdminID)
	assert.Equal(t, LocationLock, m.Location)
}

func TestDecode_Malformed(t *testing.T) {
	t.Parallel()
	_, err := Decode([]byte(`not json`))
	assert.True(t, errors.Is(err, ErrMalformed))
}

func TestAuthSuccess_NullAdminForSuperScope(t *testing.T) {
	t.Parallel()
	raw, err := json.Marshal(NewAuthSuccess(0, true))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"auth-success","admin_id":null,"isSuperAdmin":true}`, string(raw))

	raw, err = json.Marshal(NewAuthSuccess(7, false))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"auth-success","admin_id":7,"isSuperAdmin":false}`, string(raw))
}
