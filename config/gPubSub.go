package config

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"google.golang.org/api/option"
)

// LedgerEventMessage is the wire form of a billing-ledger outbox event.
// It is published after the reconciling transaction commits and consumed by
// the push-subscription handler that notifies the property's tenants.
type LedgerEventMessage struct {
	EventId          int             `json:"event_id"`
	EventType        string          `json:"event_type"`
	PropertyId       string          `json:"property_id"`
	LedgerId         string          `json:"ledger_id"`
	MonthYear        string          `json:"month_year"`
	CurrentReading   decimal.Decimal `json:"current_meter_reading"`
	ElectricityTotal decimal.Decimal `json:"electricity_total"`
	CorrelationId    string          `json:"correlation_id"`
}

var (
	pubsubClient   *pubsub.Client
	pubsubClientMu sync.Mutex
)

func init() {
	// Load env from .env
	godotenv.Load()
}

// PubSubConfigured reports whether publishing can work at all. When it
// returns false the outbox dispatcher idles instead of erroring forever.
func PubSubConfigured() bool {
	return getPubSubProjectID() != "" && os.Getenv("PUBSUB_TOPIC") != ""
}

func getPubSubProjectID() string {
	// Prefer explicit override.
	if v := os.Getenv("PUBSUB_PROJECT_ID"); v != "" {
		return v
	}
	// Cloud Run/Cloud Functions often set this.
	if v := os.Getenv("GOOGLE_CLOUD_PROJECT"); v != "" {
		return v
	}
	// Common fallback.
	if v := os.Getenv("GCP_PROJECT"); v != "" {
		return v
	}
	return ""
}

func getPubSubClient(ctx context.Context) (*pubsub.Client, error) {
	pubsubClientMu.Lock()
	if pubsubClient != nil {
		c := pubsubClient
		pubsubClientMu.Unlock()
		return c, nil
	}
	pubsubClientMu.Unlock()

	projectID := getPubSubProjectID()
	if projectID == "" {
		return nil, errors.New("PUBSUB_PROJECT_ID/GOOGLE_CLOUD_PROJECT not set")
	}

	credJSON := os.Getenv("PUBSUB_CREDENTIALS_JSON")

	var (
		c   *pubsub.Client
		err error
	)
	if credJSON != "" {
		c, err = pubsub.NewClient(ctx, projectID, option.WithCredentialsJSON([]byte(credJSON)))
	} else {
		// Uses Application Default Credentials (Cloud Run service account or GOOGLE_APPLICATION_CREDENTIALS).
		c, err = pubsub.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, err
	}

	pubsubClientMu.Lock()
	if pubsubClient == nil {
		pubsubClient = c
	} else {
		// Another goroutine won the race; close ours.
		_ = c.Close()
	}
	c2 := pubsubClient
	pubsubClientMu.Unlock()

	log.Printf("pubsub client ready (project_id=%s)", projectID)
	return c2, nil
}

func CreateTopicIfNotExists(ctx context.Context, topic string) (*pubsub.Topic, error) {
	if topic == "" {
		return nil, errors.New("topic is required")
	}
	c, err := getPubSubClient(ctx)
	if err != nil {
		return nil, err
	}

	t := c.Topic(topic)
	ok, err := t.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		return t, nil
	}
	return c.CreateTopic(ctx, topic)
}

// PublishLedgerEvent publishes a single outbox event and returns the
// server-assigned message id.
func PublishLedgerEvent(ctx context.Context, msg LedgerEventMessage) (string, error) {
	client, err := getPubSubClient(ctx)
	if err != nil {
		return "", err
	}

	topicName := os.Getenv("PUBSUB_TOPIC")
	if topicName == "" {
		return "", errors.New("PUBSUB_TOPIC is required")
	}

	msgJSON, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}

	publishCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	result := client.Topic(topicName).Publish(publishCtx, &pubsub.Message{
		Data: msgJSON,
	})
	return result.Get(publishCtx)
}
