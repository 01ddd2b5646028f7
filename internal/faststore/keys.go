package faststore

import "strconv"

// Key schema. Sets and counters are flat names; per-entity records are
// prefix:{id} hashes.
const (
	SetValidated = "validated_mobiles"
	SetBlacklist = "blacklist_mobiles"

	CounterInputSMS   = "counter:input_sms"
	CounterOnboarding = "counter:onboarding"
	CounterSyncedLWM  = "counter:input_sms_synced"
)

// ChallengeKey returns the key of the onboarding challenge hash for a number.
func ChallengeKey(number string) string {
	return "onboarding:" + number
}

// MessageKey returns the key of an inbound message record.
func MessageKey(seq int64) string {
	return "input_sms:" + strconv.FormatInt(seq, 10)
}

// RateKey returns the key of the per-number rate counter.
func RateKey(number string) string {
	return "sms_count:" + number
}

// SettingKey returns the key of a cached setting value.
func SettingKey(key string) string {
	return "setting:" + key
}

// ValidatedMember returns the composite member stored in the validated set.
func ValidatedMember(number, deviceID string) string {
	return number + ":" + deviceID
}
