package faststore

import (
	"strconv"
	"time"

	"github.com/smsbridge/server/internal/model"
)

// Field layout of the onboarding:{number} and input_sms:{seq} hashes.
// Timestamps are RFC3339Nano strings; check results are their smallint codes.

// ChallengeFields flattens a challenge into fast-store hash fields.
func ChallengeFields(ch model.OnboardingChallenge) map[string]string {
	return map[string]string{
		"mobile_number": ch.Number,
		"email":         ch.Email,
		"device_id":     ch.DeviceID,
		"hash":          ch.Hash,
		"salt":          ch.Salt,
		"country_code":  ch.CountryCode,
		"local_mobile":  ch.LocalMobile,
		"issued_at":     ch.IssuedAt.UTC().Format(time.RFC3339Nano),
		"user_deadline": ch.UserDeadline.UTC().Format(time.RFC3339Nano),
		"audit_expiry":  ch.AuditExpiry.UTC().Format(time.RFC3339Nano),
	}
}

// ParseChallenge rebuilds a challenge from fast-store hash fields.
func ParseChallenge(fields map[string]string) model.OnboardingChallenge {
	return model.OnboardingChallenge{
		Number:       fields["mobile_number"],
		Email:        fields["email"],
		DeviceID:     fields["device_id"],
		Hash:         fields["hash"],
		Salt:         fields["salt"],
		CountryCode:  fields["country_code"],
		LocalMobile:  fields["local_mobile"],
		IssuedAt:     parseTime(fields["issued_at"]),
		UserDeadline: parseTime(fields["user_deadline"]),
		AuditExpiry:  parseTime(fields["audit_expiry"]),
	}
}

// MessageFields flattens an inbound message (including any verdict) into
// fast-store hash fields.
func MessageFields(m model.InboundMessage) map[string]string {
	return map[string]string{
		"seq_id":               strconv.FormatInt(m.Seq, 10),
		"mobile_number":        m.Number,
		"country_code":         m.CountryCode,
		"local_mobile":         m.LocalMobile,
		"device_id":            m.DeviceID,
		"sms_message":          m.Text,
		"received_at":          m.ReceivedAt.UTC().Format(time.RFC3339Nano),
		"mobile_check":         strconv.Itoa(int(m.MobileCheck)),
		"duplicate_check":      strconv.Itoa(int(m.DuplicateCheck)),
		"header_hash_check":    strconv.Itoa(int(m.HeaderHashCheck)),
		"count_check":          strconv.Itoa(int(m.CountCheck)),
		"foreign_number_check": strconv.Itoa(int(m.ForeignNumberCheck)),
		"blacklist_check":      strconv.Itoa(int(m.BlacklistCheck)),
		"time_window_check":    strconv.Itoa(int(m.TimeWindowCheck)),
		"validation_status":    string(m.Status),
		"failed_at_check":      m.FailedAtCheck,
	}
}

// ParseMessage rebuilds an inbound message from fast-store hash fields.
func ParseMessage(fields map[string]string) model.InboundMessage {
	seq, _ := strconv.ParseInt(fields["seq_id"], 10, 64)
	return model.InboundMessage{
		Seq:                seq,
		Number:             fields["mobile_number"],
		CountryCode:        fields["country_code"],
		LocalMobile:        fields["local_mobile"],
		DeviceID:           fields["device_id"],
		Text:               fields["sms_message"],
		ReceivedAt:         parseTime(fields["received_at"]),
		MobileCheck:        parseCheck(fields["mobile_check"]),
		DuplicateCheck:     parseCheck(fields["duplicate_check"]),
		HeaderHashCheck:    parseCheck(fields["header_hash_check"]),
		CountCheck:         parseCheck(fields["count_check"]),
		ForeignNumberCheck: parseCheck(fields["foreign_number_check"]),
		BlacklistCheck:     parseCheck(fields["blacklist_check"]),
		TimeWindowCheck:    parseCheck(fields["time_window_check"]),
		Status:             model.ValidationStatus(fields["validation_status"]),
		FailedAtCheck:      fields["failed_at_check"],
	}
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func parseCheck(s string) model.CheckResult {
	n, _ := strconv.Atoi(s)
	return model.CheckResult(n)
}
