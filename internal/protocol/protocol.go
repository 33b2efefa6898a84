// Package protocol defines the JSON frames exchanged with dashboards and card readers.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Kind identifies an inbound frame. Frames without a type are scans.
type Kind string

const (
	// KindAuthDashboard authenticates an operator dashboard with a bearer token.
	KindAuthDashboard Kind = "auth-dashboard"
	// KindAuthDevice authenticates a card reader with the shared device secret.
	KindAuthDevice Kind = "auth-arduino"
	// KindToggleScanMode switches registration scan mode.
	KindToggleScanMode Kind = "toggle-scan-mode"
	// KindToggleReplacementMode switches replacement scan mode.
	KindToggleReplacementMode Kind = "toggle-replacement-scan-mode"
	// KindScan is a tag read reported by a device.
	KindScan Kind = "scan"
)

// Outbound frame types.
const (
	TypeAuthSuccess            = "auth-success"
	TypeAuthFailed             = "auth-failed"
	TypeError                  = "error"
	TypeScanModeUpdated        = "scan-mode-updated"
	TypeReplacementModeUpdated = "replacement-scan-mode-updated"
	TypeRegistrationCheck      = "rfid-registration-check"
	TypeScannedForStaff        = "rfid-scanned-for-staff"
	TypeReplacementScanned     = "rfid-replacement-scanned"
	TypeStaffScan              = "staff-scan"
	TypeMemberUpdate           = "member-update"
)

// Location is the free-text physical tag a reader reports with each scan.
type Location string

const (
	LocationSuperAdmin Location = "SUPERADMIN"
	LocationStaff      Location = "STAFF"
	LocationEntry      Location = "ENTRY"
	LocationExit       Location = "EXIT"
	// LocationLock is the always-listening actuator channel.
	LocationLock Location = "LOCK"
)

// ParseLocation normalizes a reader-supplied location.
func ParseLocation(s string) Location {
	return Location(strings.ToUpper(strings.TrimSpace(s)))
}

// ErrMalformed is returned for frames that are not JSON objects.
var ErrMalformed = errors.New("protocol: malformed frame")

// Inbound is the union of every frame a client may send.
type Inbound struct {
	Type     Kind     `json:"type,omitempty"`
	Token    string   `json:"token,omitempty"`
	Secret   string   `json:"secret,omitempty"`
	AdminID  *int64   `json:"admin_id,omitempty"`
	Location Location `json:"location,omitempty"`
	Enabled  bool     `json:"enabled"`
	RFIDTag  string   `json:"rfid_tag,omitempty"`
}

// Kind reports the dispatch key for the frame.
func (m *Inbound) Kind() Kind {
	if m.Type == "" {
		return KindScan
	}
	return m.Type
}

// Decode parses a raw frame and normalizes its tag and location.
func Decode(data []byte) (*Inbound, error) {
	var m Inbound
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	m.RFIDTag = strings.TrimSpace(m.RFIDTag)
	m.Location = ParseLocation(string(m.Location))
	return &m, nil
}

// AuthSuccess acknowledges a completed handshake.
type AuthSuccess struct {
	Type         string `json:"type"`
	AdminID      *int64 `json:"admin_id"`
	IsSuperAdmin bool   `json:"isSuperAdmin"`
}

// AuthFailed rejects a handshake; the connection is closed afterwards.
type AuthFailed struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// Error is a non-fatal error reply.
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Envelope wraps every broadcast payload.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ScanModeData is the payload of the scan-mode update broadcasts.
type ScanModeData struct {
	Enabled bool   `json:"enabled"`
	AdminID *int64 `json:"admin_id"`
}

// NewAuthSuccess builds the handshake acknowledgement.
func NewAuthSuccess(operatorID int64, super bool) AuthSuccess {
	return AuthSuccess{Type: TypeAuthSuccess, AdminID: OperatorRef(operatorID), IsSuperAdmin: super}
}

// NewAuthFailed builds a handshake rejection.
func NewAuthFailed(reason string) AuthFailed {
	return AuthFailed{Type: TypeAuthFailed, Reason: reason}
}

// NewError builds an error reply.
func NewError(message string) Error {
	return Error{Type: TypeError, Message: message}
}

// OperatorRef maps the internal "no operator" id 0 to JSON null.
func OperatorRef(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

// ReplacementData is the payload of rfid-replacement-scanned.
type ReplacementData struct {
	RFIDTag string `json:"rfid_tag"`
	AdminID *int64 `json:"admin_id"`
}

// RegistrationCheckData answers the SUPERADMIN "is this tag known" query.
type RegistrationCheckData struct {
	RFIDTag    string `json:"rfid_tag"`
	Registered bool   `json:"registered"`
	Message    string `json:"message"`
}

// MemberRef identifies an existing member holding a scanned tag.
type MemberRef struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	ProfileImage string `json:"profile_image"`
	Status       string `json:"status"`
	Balance      int64  `json:"balance"`
}

// AvailabilityData is the payload of staff-scan and rfid-scanned-for-staff.
// Member is set when the tag already belongs to a member.
type AvailabilityData struct {
	RFIDTag      string     `json:"rfid_tag"`
	Available    bool       `json:"available"`
	Message      string     `json:"message"`
	Category     string     `json:"category"`
	Member       *MemberRef `json:"member,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}
