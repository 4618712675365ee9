package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// PushService delivers push notifications through Firebase Cloud Messaging.
// The Firebase client is optional: without credentials the service degrades
// to logging, so local development needs no Firebase project.
type PushService struct {
	PG     *sql.DB
	client *messaging.Client
}

func NewPushService(pg *sql.DB) (*PushService, error) {
	service := &PushService{PG: pg}

	credentialsFile := os.Getenv("FCM_CREDENTIALS_FILE")
	if credentialsFile == "" {
		credentialsFile = "firebase-service-account-key.json"
	}

	opt := option.WithCredentialsFile(credentialsFile)
	app, err := firebase.NewApp(context.Background(), nil, opt)
	if err != nil {
		log.Printf("Firebase app not initialized: %v (push delivery disabled)", err)
		return service, nil
	}

	client, err := app.Messaging(context.Background())
	if err != nil {
		log.Printf("Firebase messaging client not initialized: %v (push delivery disabled)", err)
		return service, nil
	}

	service.client = client
	log.Println("Push service: Firebase messaging initialized")

	return service, nil
}

// Enabled reports whether direct FCM delivery is available.
func (s *PushService) Enabled() bool {
	return s.client != nil
}

// SendToRecipient pushes one notification to a staff member or resident. A
// recipient without a registered device token is not an error.
func (s *PushService) SendToRecipient(ctx context.Context, recipientKind, recipientID, title, body string, data map[string]string) error {
	if s.client == nil {
		log.Printf("Push disabled, skipping notification to %s %s", recipientKind, recipientID)
		return nil
	}

	table := "staff"
	if recipientKind == "resident" {
		table = "residents"
	}

	var fcmToken, name string
	err := s.PG.QueryRowContext(ctx,
		fmt.Sprintf("SELECT fcm_token, name FROM %s WHERE id = $1 AND fcm_token IS NOT NULL AND fcm_token != ''", table),
		recipientID,
	).Scan(&fcmToken, &name)

	if err != nil {
		if err == sql.ErrNoRows {
			log.Printf("No FCM token found for %s %s", recipientKind, recipientID)
			return nil
		}
		return fmt.Errorf("error fetching FCM token: %v", err)
	}

	message := &messaging.Message{
		Token: fcmToken,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Icon:         "ic_notification",
				Sound:        "default",
				ChannelID:    "high_importance_channel",
				Priority:     messaging.PriorityHigh,
				DefaultSound: true,
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{
						Title: title,
						Body:  body,
					},
					Badge: intPtr(1),
					Sound: "default",
				},
			},
		},
	}

	response, err := s.client.Send(ctx, message)
	if err != nil {
		log.Printf("Error sending FCM message to %s: %v", name, err)
		return err
	}

	log.Printf("Sent push notification to %s (token: %s...): %s", name, fcmToken[:10], response)
	return nil
}

// UpdateStaffFCMToken stores a staff member's device token.
func (s *PushService) UpdateStaffFCMToken(ctx context.Context, staffID, fcmToken string) error {
	_, err := s.PG.ExecContext(ctx,
		"UPDATE staff SET fcm_token = $1, updated_at = NOW() WHERE id = $2",
		fcmToken, staffID,
	)
	if err != nil {
		return fmt.Errorf("error updating FCM token: %v", err)
	}
	return nil
}

// UpdateResidentFCMToken stores a resident's device token.
func (s *PushService) UpdateResidentFCMToken(ctx context.Context, residentID, fcmToken string) error {
	_, err := s.PG.ExecContext(ctx,
		"UPDATE residents SET fcm_token = $1, updated_at = NOW() WHERE id = $2",
		fcmToken, residentID,
	)
	if err != nil {
		return fmt.Errorf("error updating FCM token: %v", err)
	}
	return nil
}

func intPtr(i int) *int {
	return &i
}
