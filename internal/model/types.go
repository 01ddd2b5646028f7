package model

import (
	"time"
)

// CheckResult is the outcome of a single validation check.
// Stored as a smallint in the input_sms check columns.
type CheckResult int

const (
	CheckPass          CheckResult = 1
	CheckFail          CheckResult = 2
	CheckDisabled      CheckResult = 3
	CheckNotApplicable CheckResult = 4
)

// String returns the wire/log representation of a check result.
func (c CheckResult) String() string {
	switch c {
	case CheckPass:
		return "pass"
	case CheckFail:
		return "fail"
	case CheckDisabled:
		return "disabled"
	case CheckNotApplicable:
		return "not_applicable"
	default:
		return "unknown"
	}
}

// ValidationStatus is the overall verdict of the pipeline for one message.
type ValidationStatus string

const (
	StatusPending ValidationStatus = "pending"
	StatusPassed  ValidationStatus = "passed"
	StatusFailed  ValidationStatus = "failed"
)

// Check identifiers, in default execution order. These double as the
// check_sequence setting tokens and the failed_at_check values.
const (
	CheckMobile        = "mobile"
	CheckDuplicate     = "duplicate"
	CheckHeaderHash    = "header_hash"
	CheckCount         = "count"
	CheckForeignNumber = "foreign_number"
	CheckBlacklist     = "blacklist"
	CheckTimeWindow    = "time_window"
)

// CheckOrder is the built-in order used when the check_sequence setting is
// missing or malformed.
var CheckOrder = []string{
	CheckMobile,
	CheckDuplicate,
	CheckHeaderHash,
	CheckCount,
	CheckForeignNumber,
	CheckBlacklist,
	CheckTimeWindow,
}

// OnboardingChallenge is the ephemeral challenge issued to a number.
// Lives in the fast store keyed by number, removed only by store expiry.
type OnboardingChallenge struct {
	Number       string
	Email        string
	DeviceID     string
	Hash         string
	Salt         string
	CountryCode  string
	LocalMobile  string
	IssuedAt     time.Time
	UserDeadline time.Time
	AuditExpiry  time.Time
}

// InboundMessage is one SMS routed to us by the gateway, with the pipeline
// verdict once processed. The seven check fields and the status are written
// together; the record is never mutated after the verdict.
type InboundMessage struct {
	Seq         int64
	Number      string
	CountryCode string
	LocalMobile string
	DeviceID    string
	Text        string
	ReceivedAt  time.Time

	MobileCheck        CheckResult
	DuplicateCheck     CheckResult
	HeaderHashCheck    CheckResult
	CountCheck         CheckResult
	ForeignNumberCheck CheckResult
	BlacklistCheck     CheckResult
	TimeWindowCheck    CheckResult

	Status        ValidationStatus
	FailedAtCheck string
}

// ResultFor returns the stored result for the given check id.
func (m *InboundMessage) ResultFor(check string) CheckResult {
	switch check {
	case CheckMobile:
		return m.MobileCheck
	case CheckDuplicate:
		return m.DuplicateCheck
	case CheckHeaderHash:
		return m.HeaderHashCheck
	case CheckCount:
		return m.CountCheck
	case CheckForeignNumber:
		return m.ForeignNumberCheck
	case CheckBlacklist:
		return m.BlacklistCheck
	case CheckTimeWindow:
		return m.TimeWindowCheck
	}
	return 0
}

// SetResult records the result for the given check id.
func (m *InboundMessage) SetResult(check string, r CheckResult) {
	switch check {
	case CheckMobile:
		m.MobileCheck = r
	case CheckDuplicate:
		m.DuplicateCheck = r
	case CheckHeaderHash:
		m.HeaderHashCheck = r
	case CheckCount:
		m.CountCheck = r
	case CheckForeignNumber:
		m.ForeignNumberCheck = r
	case CheckBlacklist:
		m.BlacklistCheck = r
	case CheckTimeWindow:
		m.TimeWindowCheck = r
	}
}

// BlacklistEntry mirrors one row of blacklist_sms. The durable table is the
// source of truth; the fast-store set is a disposable read cache.
type BlacklistEntry struct {
	ID            int64
	Number        string
	Reason        string
	OffenseCount  int
	BlacklistedAt time.Time
}

// Setting is one row of sms_settings. ValueType is one of
// int|bool|string|csv.
type Setting struct {
	Key         string
	Value       string
	ValueType   string
	Category    string
	Description string
	UpdatedAt   time.Time
}

// PowerDownRecord is a raw inbound message captured while the fast store was
// unreachable. Replayed by the recovery worker once the store returns.
type PowerDownRecord struct {
	ID         int64
	Number     string
	DeviceID   string
	Text       string
	ReceivedAt time.Time
	Processed  bool
	CreatedAt  time.Time
}
