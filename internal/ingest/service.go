// Package ingest is the entry point for inbound SMS traffic. It assigns
// sequence ids, records the message in the fast store and runs the
// validation pipeline. When the fast store is unreachable the raw message is
// captured in the durable power-down table instead, with no verdict, and
// replayed later by the recovery worker.
package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/smsbridge/server/internal/faststore"
	"github.com/smsbridge/server/internal/model"
	"github.com/smsbridge/server/internal/pipeline"
	"github.com/smsbridge/server/internal/repo"
	"github.com/smsbridge/server/internal/settings"
)

// Result is the outcome of ingesting one message. Deferred means the fast
// store was down and the message went to the power-down backup; Msg then
// carries only the raw fields, no verdict.
type Result struct {
	Msg      model.InboundMessage
	Deferred bool
}

// Service wires the ingestion path together.
type Service struct {
	store         faststore.Store
	pipeline      *pipeline.Pipeline
	settings      *settings.Cache
	powerDownRepo repo.PowerDownRepo
}

// NewService creates the ingestion service.
func NewService(store faststore.Store, pl *pipeline.Pipeline, cache *settings.Cache, powerDownRepo repo.PowerDownRepo) *Service {
	return &Service{
		store:         store,
		pipeline:      pl,
		settings:      cache,
		powerDownRepo: powerDownRepo,
	}
}

// Receive processes one inbound message end to end. On a fast-store
// connectivity failure anywhere on the write path it falls back to the
// durable power-down table; any other error propagates.
func (s *Service) Receive(ctx context.Context, number, deviceID, text string, receivedAt time.Time) (Result, error) {
	msg, err := s.process(ctx, number, deviceID, text, receivedAt)
	if err == nil {
		return Result{Msg: msg}, nil
	}
	if !faststore.IsUnavailable(err) {
		return Result{}, err
	}

	log.Printf("Fast store down, capturing message from %s to power-down backup", number)
	rec := model.PowerDownRecord{
		Number:     number,
		DeviceID:   deviceID,
		Text:       text,
		ReceivedAt: receivedAt,
	}
	if _, dbErr := s.powerDownRepo.InsertRecord(ctx, rec); dbErr != nil {
		return Result{}, fmt.Errorf("power-down capture: %w", dbErr)
	}
	return Result{
		Msg: model.InboundMessage{
			Number:     number,
			DeviceID:   deviceID,
			Text:       text,
			ReceivedAt: receivedAt,
			Status:     model.StatusPending,
		},
		Deferred: true,
	}, nil
}

// Replay pushes a captured power-down record through the normal path. No
// fallback here: if the store drops again the error propagates and the
// record stays unprocessed for the next recovery tick.
func (s *Service) Replay(ctx context.Context, rec model.PowerDownRecord) (model.InboundMessage, error) {
	return s.process(ctx, rec.Number, rec.DeviceID, rec.Text, rec.ReceivedAt)
}

func (s *Service) process(ctx context.Context, number, deviceID, text string, receivedAt time.Time) (model.InboundMessage, error) {
	// Unique sequence ids guarantee each message is processed exactly once;
	// concurrent pipeline runs only ever touch distinct message keys.
	seq, err := s.store.IncrWithTTL(ctx, faststore.CounterInputSMS, 0)
	if err != nil {
		return model.InboundMessage{}, fmt.Errorf("assign message seq: %w", err)
	}

	msg := model.InboundMessage{
		Seq:        seq,
		Number:     number,
		DeviceID:   deviceID,
		Text:       text,
		ReceivedAt: receivedAt,
		Status:     model.StatusPending,
	}

	ttl := s.settings.GetSeconds(ctx, settings.KeyMessageTTLSeconds, 24*time.Hour)
	if err := s.store.HSet(ctx, faststore.MessageKey(seq), faststore.MessageFields(msg), ttl); err != nil {
		return model.InboundMessage{}, fmt.Errorf("record message: %w", err)
	}

	if err := s.pipeline.Process(ctx, &msg); err != nil {
		return model.InboundMessage{}, err
	}
	return msg, nil
}
