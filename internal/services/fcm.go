package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"strconv"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"fleetwatch-backend/internal/models"
)

// FCMService pushes alert notices to a Firebase Cloud Messaging topic
type FCMService struct {
	client *messaging.Client
	topic  string
}

// NewFCMService creates a new FCM service instance from a credentials file
func NewFCMService(credentialsFile, topic string) (*FCMService, error) {
	return newFCMService(topic, option.WithCredentialsFile(credentialsFile))
}

// NewFCMServiceFromBase64 creates a new FCM service instance from base64-encoded credentials
// This is useful for cloud deployments where you can't upload files easily
func NewFCMServiceFromBase64(credentialsBase64, topic string) (*FCMService, error) {
	credentialsJSON, err := base64.StdEncoding.DecodeString(credentialsBase64)
	if err != nil {
		return nil, fmt.Errorf("error decoding base64 credentials: %w", err)
	}
	return newFCMService(topic, option.WithCredentialsJSON(credentialsJSON))
}

func newFCMService(topic string, opt option.ClientOption) (*FCMService, error) {
	ctx := context.Background()

	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}

	return &FCMService{client: client, topic: topic}, nil
}

// Notify sends the notice to the alert topic
func (s *FCMService) Notify(ctx context.Context, notice models.AlertNotice) error {
	response, err := s.client.Send(ctx, BuildAlertMessage(s.topic, notice))
	if err != nil {
		return fmt.Errorf("error sending FCM message: %w", err)
	}

	log.Printf("✅ FCM %s alert sent for %s: %s", notice.Kind, notice.UnitName, response)
	return nil
}

// BuildAlertMessage converts a notice into a topic message
func BuildAlertMessage(topic string, notice models.AlertNotice) *messaging.Message {
	data := map[string]string{
		"type":      "fleet_alert",
		"kind":      string(notice.Kind),
		"fleet_id":  notice.FleetID,
		"unit_id":   notice.UnitID,
		"unit_name": notice.UnitName,
		"latitude":  strconv.FormatFloat(notice.Latitude, 'f', 6, 64),
		"longitude": strconv.FormatFloat(notice.Longitude, 'f', 6, 64),
		"timestamp": notice.Time.UTC().Format(time.RFC3339),
	}
	if notice.Kind == models.AlertSpeed {
		data["speed_kph"] = strconv.FormatFloat(notice.SpeedKph, 'f', 1, 64)
	} else {
		data["stop_minutes"] = strconv.FormatFloat(notice.StopMinutes, 'f', 1, 64)
	}

	return &messaging.Message{
		Topic: topic,
		Notification: &messaging.Notification{
			Title: NoticeTitle(notice),
			Body:  NoticeBody(notice),
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					ContentAvailable: true,
					Sound:            "default",
				},
			},
		},
	}
}
