package monitoring

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	eventbridgetypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/rs/zerolog/log"
)

// EventSource is the EventBridge source of every event.
const EventSource = "agrisa.satellite-data-service"

// Detail types.
const (
	EventIndexComputed    = "VegetationIndexComputed"
	EventBoundaryDetected = "BoundaryDetected"
)

// EventAPI is the subset of the EventBridge client used to publish.
type EventAPI interface {
	PutEvents(ctx context.Context, in *eventbridge.PutEventsInput, opts ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// IndexComputed is the detail of EventIndexComputed.
type IndexComputed struct {
	RequestID       string  `json:"request_id"`
	FarmID          string  `json:"farm_id,omitempty"`
	Index           string  `json:"index"`
	DateRange       string  `json:"date_range"`
	TotalImages     int     `json:"total_images"`
	ImagesProcessed int     `json:"images_processed"`
	AreaHectares    float64 `json:"area_hectares"`
	LatestMean      float64 `json:"latest_mean,omitempty"`
	ArchiveKey      string  `json:"archive_key,omitempty"`
}

// BoundaryDetected is the detail of EventBoundaryDetected.
type BoundaryDetected struct {
	RequestID  string  `json:"request_id"`
	Mode       string  `json:"mode"`
	Fields     int     `json:"fields"`
	AreaHa     float64 `json:"area_ha"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Publisher sends events to one bus.
type Publisher struct {
	client  EventAPI
	busName string
}

func NewPublisher(client EventAPI, busName string) *Publisher {
	return &Publisher{client: client, busName: busName}
}

// Publish sends one event and fails when the entry is rejected.
func (p *Publisher) Publish(ctx context.Context, detailType string, detail any) error {
	body, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", detailType, err)
	}

	result, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []eventbridgetypes.PutEventsRequestEntry{
			{
				EventBusName: aws.String(p.busName),
				Source:       aws.String(EventSource),
				DetailType:   aws.String(detailType),
				Detail:       aws.String(string(body)),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("PutEvents: %w", err)
	}
	if result.FailedEntryCount > 0 {
		for i, entry := range result.Entries {
			if entry.ErrorCode != nil || entry.ErrorMessage != nil {
				log.Error().
					Int("index", i).
					Str("errorCode", aws.ToString(entry.ErrorCode)).
					Str("errorMessage", aws.ToString(entry.ErrorMessage)).
					Str("detailType", detailType).
					Msg("EventBridge PutEvents entry failed")
				return fmt.Errorf("PutEvents entry %d failed: %s - %s", i, aws.ToString(entry.ErrorCode), aws.ToString(entry.ErrorMessage))
			}
		}
	}

	log.Debug().Str("detailType", detailType).Str("bus", p.busName).Msg("Event published")
	return nil
}
