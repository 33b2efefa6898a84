package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gymgate/access-router/internal/hub"
	"github.com/gymgate/access-router/internal/identity"
	"github.com/gymgate/access-router/internal/ledger"
	"github.com/gymgate/access-router/internal/protocol"
	"github.com/gymgate/access-router/internal/scanmode"
	"github.com/gymgate/access-router/internal/storage"
	"github.com/gymgate/access-router/internal/testutil/mockstore"
)

type env struct {
	hub    *hub.Hub
	modes  *scanmode.Registry
	router *Router
	store  *storage.SQLiteStorage
	opID   int64
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	s, err := storage.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	opID, err := s.CreateOperator(ctx, storage.Operator{Name: "Iron Gym", BillingModel: storage.BillingSubscription})
	require.NoError(t, err)
	for _, tag := range []string{"M-1", "FREE-1"} {
		require.NoError(t, s.AddVendorTag(ctx, tag))
	}
	_, err = s.CreateMember(ctx, storage.Member{OperatorID: opID, Name: "Mia", Tag: "M-1", Balance: 1200})
	require.NoError(t, err)

	h := hub.New(discard())
	modes := scanmode.New(h, discard())
	resolver := identity.NewResolver(s)
	r := New(h, modes, resolver, ledger.New(s, ledger.WithLogger(discard())), discard())
	return &env{hub: h, modes: modes, router: r, store: s, opID: opID}
}

func (e *env) connect(typ hub.ClientType, opID int64, super bool, loc protocol.Location) *hub.Client {
	c := hub.NewClient(typ, opID, super, loc)
	e.hub.Register(c)
	return c
}

type frame struct {
	Type    string          `json:"type"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func frames(t *testing.T, c *hub.Client) []frame {
	t.Helper()
	var out []frame
	for {
		select {
		case raw := <-c.Outbound():
			var f frame
			require.NoError(t, json.Unmarshal(raw, &f))
			out = append(out, f)
		default:
			return out
		}
	}
}

func (e *env) send(c *hub.Client, raw string) {
	e.router.Handle(context.Background(), c, []byte(raw))
}

func TestHandle_ErrorReplies(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	superDevice := e.connect(hub.Device, 0, true, protocol.LocationSuperAdmin)
	device := e.connect(hub.Device, e.opID, false, "")

	tests := []struct {
		name   string
		client *hub.Client
		raw    string
		want   string
	}{
		{"not json", device, `{{`, "Invalid message"},
		{"unknown type", device, `{"type":"reboot"}`, "Unknown message type: reboot"},
		{"auth after handshake", device, `{"type":"auth-arduino","secret":"x"}`, "Unknown message type: auth-arduino"},
		{"missing tag", device, `{"location":"ENTRY"}`, "Missing rfid_tag or location"},
		{"missing location", device, `{"rfid_tag":"M-1"}`, "Missing rfid_tag or location"},
		{"unknown location", device, `{"rfid_tag":"M-1","location":"GARAGE"}`, "Unknown location: GARAGE"},
		{"entry without operator", superDevice, `{"rfid_tag":"M-1","location":"ENTRY"}`, "Not authenticated."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e.send(tt.client, tt.raw)
			got := frames(t, tt.client)
			require.Len(t, got, 1)
			assert.Equal(t, protocol.TypeError, got[0].Type)
			assert.Equal(t, tt.want, got[0].Message)
		})
	}
}

func TestToggle_RequiresScope(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	unscoped := e.connect(hub.Device, 0, false, protocol.LocationEntry)

	e.send(unscoped, `{"type":"toggle-scan-mode","enabled":true}`)
	got := frames(t, unscoped)
	require.Len(t, got, 1)
	assert.Equal(t, "Not authenticated.", got[0].Message)
	assert.False(t, e.modes.Flags(0).Registration)
}

func TestRegistrationMode_ConsumesOneScan(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	dash := e.connect(hub.Dashboard, e.opID, false, "")
	reader := e.connect(hub.Device, e.opID, false, protocol.LocationEntry)

	e.send(dash, `{"type":"toggle-scan-mode","enabled":true}`)
	e.send(reader, `{"rfid_tag":"FREE-1","location":"ENTRY"}`)
	e.send(reader, `{"rfid_tag":"M-1","location":"ENTRY"}`)

	assert.False(t, e.modes.Flags(e.opID).Registration)

	got := frames(t, dash)
	var types []string
	disabled := 0
	for _, f := range got {
		types = append(types, f.Type)
		if f.Type == protocol.TypeScanModeUpdated {
			var d protocol.ScanModeData
			require.NoError(t, json.Unmarshal(f.Data, &d))
			if !d.Enabled {
				disabled++
			}
		}
	}
	assert.Equal(t, []string{
		protocol.TypeScanModeUpdated,
		protocol.TypeScanModeUpdated,
		protocol.TypeStaffScan,
		protocol.TypeMemberUpdate,
	}, types)
	assert.Equal(t, 1, disabled)

	var check protocol.AvailabilityData
	require.NoError(t, json.Unmarshal(got[2].Data, &check))
	assert.True(t, check.Available)
	assert.Equal(t, identity.ReasonReady, check.Message)

	// The reader sees only the ordinary scan result, not the registration result
	readerFrames := frames(t, reader)
	require.Len(t, readerFrames, 1)
	assert.Equal(t, protocol.TypeMemberUpdate, readerFrames[0].Type)
}

func TestReplacementMode_TakesPriority(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	dash := e.connect(hub.Dashboard, e.opID, false, "")
	reader := e.connect(hub.Device, e.opID, false, protocol.LocationEntry)

	e.modes.SetRegistrationMode(e.opID, true)
	e.modes.SetReplacementMode(e.opID, true)
	frames(t, dash)

	e.send(reader, `{"rfid_tag":"M-1","location":"ENTRY"}`)

	flags := e.modes.Flags(e.opID)
	assert.False(t, flags.Replacement)
	assert.True(t, flags.Registration)

	got := frames(t, dash)
	require.Len(t, got, 2)
	assert.Equal(t, protocol.TypeReplacementModeUpdated, got[0].Type)
	assert.Equal(t, protocol.TypeReplacementScanned, got[1].Type)
	assert.JSONEq(t, `{"rfid_tag":"M-1","admin_id":`+itoa(e.opID)+`}`, string(got[1].Data))

	count, err := e.store.CountEntryLogs(context.Background(), "M-1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestEntryScan_BroadcastsMemberUpdate(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	dash := e.connect(hub.Dashboard, e.opID, false, "")
	entry := e.connect(hub.Device, e.opID, false, protocol.LocationEntry)
	exit := e.connect(hub.Device, e.opID, false, protocol.LocationExit)
	lock := e.connect(hub.Device, e.opID, false, protocol.LocationLock)
	other := e.connect(hub.Device, e.opID+1, false, protocol.LocationEntry)

	// location falls back to the reader's handshake location
	e.send(entry, `{"rfid_tag":"M-1"}`)

	for _, c := range []*hub.Client{dash, entry, lock} {
		got := frames(t, c)
		require.Len(t, got, 1)
		assert.Equal(t, protocol.TypeMemberUpdate, got[0].Type)

		var out ledger.Outcome
		require.NoError(t, json.Unmarshal(got[0].Data, &out))
		assert.True(t, out.AccessGranted)
		assert.Equal(t, "Mia", out.Name)
		assert.Equal(t, "ENTRY", out.Location)
	}
	assert.Empty(t, frames(t, exit))
	assert.Empty(t, frames(t, other))
}

func TestStaffLocation_ReturnsExistingMember(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	dash := e.connect(hub.Dashboard, e.opID, false, "")
	desk := e.connect(hub.Device, e.opID, false, protocol.LocationStaff)

	e.send(desk, `{"rfid_tag":"M-1"}`)

	got := frames(t, dash)
	require.Len(t, got, 1)
	assert.Equal(t, protocol.TypeScannedForStaff, got[0].Type)

	var data protocol.AvailabilityData
	require.NoError(t, json.Unmarshal(got[0].Data, &data))
	assert.False(t, data.Available)
	assert.Equal(t, identity.ReasonMemberAssigned, data.Message)
	require.NotNil(t, data.Member)
	assert.Equal(t, "Mia", data.Member.Name)
	assert.Equal(t, int64(1200), data.Member.Balance)
	assert.Empty(t, frames(t, desk))
}

func TestSuperAdminLocation_OnlySuperDashboards(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	super := e.connect(hub.Dashboard, 0, true, "")
	dash := e.connect(hub.Dashboard, e.opID, false, "")
	reader := e.connect(hub.Device, 0, true, protocol.LocationSuperAdmin)

	e.send(reader, `{"rfid_tag":"M-1"}`)
	e.send(reader, `{"rfid_tag":"UNKNOWN"}`)

	got := frames(t, super)
	require.Len(t, got, 2)
	var first, second protocol.RegistrationCheckData
	require.NoError(t, json.Unmarshal(got[0].Data, &first))
	require.NoError(t, json.Unmarshal(got[1].Data, &second))
	assert.True(t, first.Registered)
	assert.False(t, second.Registered)
	assert.Equal(t, identity.ReasonNotVendor, second.Message)

	assert.Empty(t, frames(t, dash))
}

func TestEntryScan_ResolveErrorBecomesErrorUpdate(t *testing.T) {
	t.Parallel()
	store := &mockstore.MockStorage{
		IsVendorTagFunc: func(ctx context.Context, tag string) (bool, error) {
			return false, errors.New("database is locked")
		},
	}
	h := hub.New(discard())
	r := New(h, scanmode.New(h, discard()), identity.NewResolver(store), ledger.New(store), discard())

	dash := hub.NewClient(hub.Dashboard, 1, false, "")
	reader := hub.NewClient(hub.Device, 1, false, protocol.LocationEntry)
	h.Register(dash)
	h.Register(reader)

	r.Handle(context.Background(), reader, []byte(`{"rfid_tag":"M-1"}`))

	got := frames(t, dash)
	require.Len(t, got, 1)
	var out ledger.Outcome
	require.NoError(t, json.Unmarshal(got[0].Data, &out))
	assert.Equal(t, ledger.StatusError, out.Status)
	assert.Contains(t, out.ErrorMessage, "database is locked")
	assert.False(t, out.Timestamp.IsZero())
}

func itoa(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
