package pipeline

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"github.com/smsbridge/server/internal/faststore"
	"github.com/smsbridge/server/internal/mobile"
	"github.com/smsbridge/server/internal/model"
	"github.com/smsbridge/server/internal/onboarding"
	"github.com/smsbridge/server/internal/settings"
)

// mobileCheck validates the sender number format and populates the country
// code and local number on the message for later stages.
func (p *Pipeline) mobileCheck(ctx context.Context, rc *runContext) (model.CheckResult, error) {
	countryCode, local, err := mobile.Normalize(rc.msg.Number)
	if err != nil {
		return model.CheckFail, nil
	}
	rc.msg.CountryCode = countryCode
	rc.msg.LocalMobile = local
	return model.CheckPass, nil
}

// duplicateCheck fails when the number+device pair already validated.
func (p *Pipeline) duplicateCheck(ctx context.Context, rc *runContext) (model.CheckResult, error) {
	member := faststore.ValidatedMember(rc.localNumber(), rc.msg.DeviceID)
	dup, err := p.store.SIsMember(ctx, faststore.SetValidated, member)
	if err != nil {
		return 0, err
	}
	if dup {
		return model.CheckFail, nil
	}
	return model.CheckPass, nil
}

// headerHashCheck requires the message to be exactly the configured header
// literal followed by a hash of the configured length, matching the live
// challenge for the sending number. A missing or expired challenge fails the
// same way as a hash mismatch.
func (p *Pipeline) headerHashCheck(ctx context.Context, rc *runContext) (model.CheckResult, error) {
	prefix := p.settings.GetString(ctx, settings.KeyAllowedPrefix, "ONBOARD:")
	hashLength := p.settings.GetInt(ctx, settings.KeyHashLength, 8)

	text := strings.TrimSpace(rc.msg.Text)
	if len(text) != len(prefix)+hashLength || !strings.HasPrefix(text, prefix) {
		return model.CheckFail, nil
	}
	candidate := text[len(prefix):]
	if !onboarding.ValidHashFormat(candidate, hashLength) {
		return model.CheckFail, nil
	}

	ch, err := p.loadChallenge(ctx, rc)
	if err != nil {
		return 0, err
	}
	if ch == nil {
		return model.CheckFail, nil
	}
	if subtle.ConstantTimeCompare([]byte(candidate), []byte(ch.Hash)) != 1 {
		return model.CheckFail, nil
	}
	if ch.LocalMobile != rc.localNumber() {
		return model.CheckFail, nil
	}
	return model.CheckPass, nil
}

// countCheck atomically increments the per-number rate counter (window TTL
// set on first increment) and fails above the threshold. The increment
// happens even for messages that go on to fail later stages.
func (p *Pipeline) countCheck(ctx context.Context, rc *runContext) (model.CheckResult, error) {
	threshold := p.settings.GetInt(ctx, settings.KeyCountCheckThreshold, 5)
	window := p.settings.GetSeconds(ctx, settings.KeyCountWindowSeconds, 24*time.Hour)

	count, err := p.store.IncrWithTTL(ctx, faststore.RateKey(rc.localNumber()), window)
	if err != nil {
		return 0, err
	}
	if count > int64(threshold) {
		return model.CheckFail, nil
	}
	return model.CheckPass, nil
}

// foreignNumberCheck requires the extracted country code to be on the
// allow-list. Senders without a country prefix are treated as domestic: the
// gateway strips the national prefix for in-country traffic.
func (p *Pipeline) foreignNumberCheck(ctx context.Context, rc *runContext) (model.CheckResult, error) {
	cc := rc.msg.CountryCode
	if cc == "" && rc.msg.LocalMobile == "" {
		// Format check disabled; derive the country code here.
		derived, _, err := mobile.Normalize(rc.msg.Number)
		if err != nil {
			return model.CheckFail, nil
		}
		cc = derived
	}
	if cc == "" {
		return model.CheckPass, nil
	}
	allowed := p.settings.GetStrings(ctx, settings.KeyAllowedCountries, []string{"+91"})
	for _, a := range allowed {
		if cc == a {
			return model.CheckPass, nil
		}
	}
	return model.CheckFail, nil
}

// blacklistCheck fails for numbers in the cached blacklist set.
func (p *Pipeline) blacklistCheck(ctx context.Context, rc *runContext) (model.CheckResult, error) {
	listed, err := p.store.SIsMember(ctx, faststore.SetBlacklist, rc.localNumber())
	if err != nil {
		return 0, err
	}
	if listed {
		return model.CheckFail, nil
	}
	return model.CheckPass, nil
}

// timeWindowCheck enforces the user-facing deadline: the message must have
// been received at or before the challenge's user deadline. The challenge
// itself outlives the deadline (audit window), which is what makes a late
// reply distinguishable here rather than by key expiry.
func (p *Pipeline) timeWindowCheck(ctx context.Context, rc *runContext) (model.CheckResult, error) {
	ch, err := p.loadChallenge(ctx, rc)
	if err != nil {
		return 0, err
	}
	if ch == nil {
		return model.CheckFail, nil
	}
	if rc.msg.ReceivedAt.After(ch.UserDeadline) {
		return model.CheckFail, nil
	}
	return model.CheckPass, nil
}
