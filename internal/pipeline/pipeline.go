// Package pipeline runs the ordered validation checks that decide whether an
// inbound SMS satisfies its onboarding challenge. Check failures are data (a
// FAILED verdict), never errors; only fast-store connectivity problems
// propagate as errors.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/smsbridge/server/internal/faststore"
	"github.com/smsbridge/server/internal/model"
	"github.com/smsbridge/server/internal/settings"
)

// A stage is a pure decision over the run context. It returns Pass or Fail;
// enablement and short-circuiting are handled by the fold in Process.
type stage struct {
	id  string
	run func(ctx context.Context, rc *runContext) (model.CheckResult, error)
}

// Pipeline executes the configured check sequence for one message at a time.
// Instances are stateless between runs; all shared state lives in the fast
// store, so concurrent runs for different messages are safe.
type Pipeline struct {
	store    faststore.Store
	settings *settings.Cache
	stages   map[string]stage
}

// New creates a pipeline over the given fast store and settings cache.
func New(store faststore.Store, cache *settings.Cache) *Pipeline {
	p := &Pipeline{store: store, settings: cache}
	p.stages = map[string]stage{
		model.CheckMobile:        {model.CheckMobile, p.mobileCheck},
		model.CheckDuplicate:     {model.CheckDuplicate, p.duplicateCheck},
		model.CheckHeaderHash:    {model.CheckHeaderHash, p.headerHashCheck},
		model.CheckCount:         {model.CheckCount, p.countCheck},
		model.CheckForeignNumber: {model.CheckForeignNumber, p.foreignNumberCheck},
		model.CheckBlacklist:     {model.CheckBlacklist, p.blacklistCheck},
		model.CheckTimeWindow:    {model.CheckTimeWindow, p.timeWindowCheck},
	}
	return p
}

// runContext carries per-message state across stages. The challenge is
// loaded at most once per run.
type runContext struct {
	msg             *model.InboundMessage
	challenge       *model.OnboardingChallenge
	challengeLoaded bool
}

// localNumber is the canonical identity used for store keys. Falls back to
// the raw sender when the format check is disabled and never populated it.
func (rc *runContext) localNumber() string {
	if rc.msg.LocalMobile != "" {
		return rc.msg.LocalMobile
	}
	return rc.msg.Number
}

// Process runs the configured checks against msg, records all seven results
// plus the verdict on msg, writes the verdict to the fast store in a single
// update, and adds passing pairs to the validated set. The check order and
// enable flags are read fresh for every message.
func (p *Pipeline) Process(ctx context.Context, msg *model.InboundMessage) error {
	sequence := p.settings.GetStrings(ctx, settings.KeyCheckSequence, model.CheckOrder)

	// Stages absent from the configured sequence stay DISABLED.
	for _, id := range model.CheckOrder {
		msg.SetResult(id, model.CheckDisabled)
	}

	rc := &runContext{msg: msg}
	failedAt := ""

	for i, id := range sequence {
		st, ok := p.stages[id]
		if !ok {
			log.Printf("Pipeline: unknown check %q in check_sequence, skipping", id)
			continue
		}
		if !p.settings.GetBool(ctx, settings.EnabledKey(id), true) {
			msg.SetResult(id, model.CheckDisabled)
			continue
		}
		result, err := st.run(ctx, rc)
		if err != nil {
			return fmt.Errorf("check %s: %w", id, err)
		}
		msg.SetResult(id, result)
		if result == model.CheckFail {
			failedAt = id
			for _, rest := range sequence[i+1:] {
				if _, known := p.stages[rest]; known {
					msg.SetResult(rest, model.CheckNotApplicable)
				}
			}
			break
		}
	}

	if failedAt == "" {
		msg.Status = model.StatusPassed
		msg.FailedAtCheck = ""
		member := faststore.ValidatedMember(rc.localNumber(), msg.DeviceID)
		if err := p.store.SAdd(ctx, faststore.SetValidated, member); err != nil {
			return fmt.Errorf("record validated pair: %w", err)
		}
	} else {
		msg.Status = model.StatusFailed
		msg.FailedAtCheck = failedAt
	}

	ttl := p.settings.GetSeconds(ctx, settings.KeyMessageTTLSeconds, 24*time.Hour)
	if err := p.store.HSet(ctx, faststore.MessageKey(msg.Seq), faststore.MessageFields(*msg), ttl); err != nil {
		return fmt.Errorf("write verdict: %w", err)
	}
	return nil
}

// loadChallenge fetches the live challenge for the sender, caching the
// lookup for the rest of the run. A missing challenge (never registered or
// evicted by store expiry) yields nil.
func (p *Pipeline) loadChallenge(ctx context.Context, rc *runContext) (*model.OnboardingChallenge, error) {
	if rc.challengeLoaded {
		return rc.challenge, nil
	}
	fields, err := p.store.HGetAll(ctx, faststore.ChallengeKey(rc.localNumber()))
	if err != nil {
		return nil, err
	}
	rc.challengeLoaded = true
	if fields == nil {
		return nil, nil
	}
	ch := faststore.ParseChallenge(fields)
	rc.challenge = &ch
	return rc.challenge, nil
}
