// Package kafka ships audit events to per-category Kafka topics.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "drivematch/pkg/platform/audit"
)

const defaultTopicPrefix = "drivematch.audit"

// Sink implements audit.Appender by producing one record per event. Records
// are keyed by session id so a session's trail stays ordered in a partition.
type Sink struct {
	client      *kgo.Client
	topicPrefix string
}

type Option func(*Sink)

func WithTopicPrefix(prefix string) Option {
	return func(s *Sink) {
		if prefix != "" {
			s.topicPrefix = prefix
		}
	}
}

// New connects to brokers. The client is owned by the sink; call Close.
func New(brokers []string, opts ...Option) (*Sink, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerLinger(5*time.Millisecond),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka: create client: %w", err)
	}
	s := &Sink{client: client, topicPrefix: defaultTopicPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Topic returns the topic events of category c are written to.
func (s *Sink) Topic(c audit.EventCategory) string {
	return s.topicPrefix + "." + string(c)
}

// EnsureTopics creates the category topics when missing.
func (s *Sink) EnsureTopics(ctx context.Context, partitions int32, replication int16) error {
	adm := kadm.NewClient(s.client)
	topics := []string{
		s.Topic(audit.CategoryCompliance),
		s.Topic(audit.CategorySecurity),
		s.Topic(audit.CategoryOperations),
	}
	resps, err := adm.CreateTopics(ctx, partitions, replication, nil, topics...)
	if err != nil {
		return fmt.Errorf("kafka: create topics: %w", err)
	}
	for topic, r := range resps {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("kafka: create topic %s: %w", topic, r.Err)
		}
	}
	return nil
}

// payload is the JSON written as the record value.
type payload struct {
	ID          string `json:"id"`
	Category    string `json:"category"`
	Timestamp   string `json:"timestamp"`
	SessionID   string `json:"session_id,omitempty"`
	Actor       string `json:"actor,omitempty"`
	Action      string `json:"action"`
	Decision    string `json:"decision,omitempty"`
	Reason      string `json:"reason,omitempty"`
	Step        string `json:"step,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
	SubjectHash string `json:"subject_hash,omitempty"`
}

func (s *Sink) Append(ctx context.Context, event audit.Event) error {
	category := event.Category
	if category == "" {
		category = audit.AuditEvent(event.Action).Category()
	}
	p := payload{
		ID:          uuid.NewString(),
		Category:    string(category),
		Timestamp:   event.Timestamp.UTC().Format(time.RFC3339Nano),
		Actor:       event.Actor,
		Action:      event.Action,
		Decision:    event.Decision,
		Reason:      event.Reason,
		Step:        event.Step,
		RequestID:   event.RequestID,
		SubjectHash: event.SubjectHash,
	}
	if !event.SessionID.IsNil() {
		p.SessionID = event.SessionID.String()
	}
	value, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("kafka: marshal audit event: %w", err)
	}

	record := &kgo.Record{
		Topic: s.Topic(category),
		Key:   []byte(p.SessionID),
		Value: value,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("kafka: produce audit event: %w", err)
	}
	return nil
}

// Ping checks broker reachability.
func (s *Sink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func (s *Sink) Close() {
	s.client.Close()
}
