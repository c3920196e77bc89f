package activitymap

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-print"

	users "github.com/ogehub/go-users"
)

// MetadataKeyOutcome stores whether the recorded action succeeded.
const MetadataKeyOutcome = "outcome"

const (
	defaultChannel    = "users"
	defaultObjectType = "account"
	defaultActorID    = "anonymous"
)

// Normalized is a transport-agnostic activity shape for downstream systems.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel       string
	objectType    string
	actorFallback string
}

// Normalize converts a users.ActivityEvent into the generic shape. Account
// events are self-service, so the account is both actor and object.
func Normalize(event users.ActivityEvent, opts ...Option) Normalized {
	options := normalizeOptions{
		channel:       defaultChannel,
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	accountID := strings.TrimSpace(event.AccountID)
	actorID := accountID
	if actorID == "" {
		actorID = options.actorFallback
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	return Normalized{
		ActorID:    actorID,
		Verb:       string(event.EventType),
		ObjectType: options.objectType,
		ObjectID:   accountID,
		Channel:    options.channel,
		Metadata:   normalizeMetadata(event),
		OccurredAt: occurredAt.UTC(),
	}
}

// WithDefaultChannel sets the channel for normalized records.
func WithDefaultChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithDefaultObjectType sets the object type for normalized records.
func WithDefaultObjectType(objectType string) Option {
	return func(opts *normalizeOptions) {
		opts.objectType = strings.TrimSpace(objectType)
	}
}

// WithActorFallback sets the actor id used when the event has no account.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

// LogSink returns an ActivitySink that writes each normalized record to
// logger.
func LogSink(logger users.Logger, opts ...Option) users.ActivitySink {
	if logger == nil {
		logger = users.NopLogger()
	}
	return users.ActivitySinkFunc(func(_ context.Context, event users.ActivityEvent) error {
		record := Normalize(event, opts...)
		logger.Info("activity",
			"verb", record.Verb,
			"actor", record.ActorID,
			"record", print.MaybePrettyJSON(record),
		)
		return nil
	})
}

func normalizeMetadata(event users.ActivityEvent) map[string]any {
	metadata := make(map[string]any, len(event.Metadata)+1)
	for key, value := range event.Metadata {
		metadata[key] = value
	}

	if _, exists := metadata[MetadataKeyOutcome]; !exists {
		outcome := "success"
		if event.EventType == users.ActivityEventLoginFailure {
			outcome = "failure"
		}
		metadata[MetadataKeyOutcome] = outcome
	}
	return metadata
}
