package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/sifan077/snaplink/internal/app/model"
)

// LinkIDHeader carries the link id on published click messages.
const LinkIDHeader = "Snaplink-Link-Id"

const clickStreamMaxBytes = 1024 * 1024 * 100 // 100MB

// ClickStream names the JetStream resources used for click events.
type ClickStream struct {
	Name    string
	Subject string
	Durable string
}

// EnsureClickStream creates the click stream when it does not exist yet.
func EnsureClickStream(js nats.JetStreamContext, stream ClickStream) error {
	_, err := js.StreamInfo(stream.Name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("lookup stream %s: %w", stream.Name, err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:     stream.Name,
		Subjects: []string{stream.Subject},
		MaxBytes: clickStreamMaxBytes,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// ClickPublisher publishes click events to NATS JetStream without waiting for acks.
type ClickPublisher struct {
	js      nats.JetStreamContext
	subject string
}

// NewClickPublisher creates a new click event publisher
func NewClickPublisher(js nats.JetStreamContext, subject string) *ClickPublisher {
	return &ClickPublisher{js: js, subject: subject}
}

// Record publishes the event. Ack failures surface later through PublishErrorHandler.
func (p *ClickPublisher) Record(_ context.Context, event model.ClickEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := nats.NewMsg(p.subject)
	msg.Header.Set(LinkIDHeader, event.ID)
	msg.Data = data

	_, err = p.js.PublishMsgAsync(msg)
	return err
}

// PublishErrorHandler routes asynchronous publish failures to observer.
func PublishErrorHandler(observer Observer) nats.JSOpt {
	return nats.PublishAsyncErrHandler(func(_ nats.JetStream, msg *nats.Msg, err error) {
		id := ""
		if msg != nil && msg.Header != nil {
			id = msg.Header.Get(LinkIDHeader)
		}
		observer.ClickFailed(id, err)
	})
}
