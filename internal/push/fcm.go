package push

import (
	"context"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// maxTokensPerRequest is the FCM multicast limit.
const maxTokensPerRequest = 500

// NewFirebaseApp builds a Firebase app from service account fields. The same
// app backs push delivery and ID token verification.
//
// The private key in .env has literal "\n" sequences; the SDK expects real
// newlines in the PEM block.
func NewFirebaseApp(ctx context.Context, projectID, clientEmail, privateKey string) (*firebase.App, error) {
	privateKey = strings.ReplaceAll(privateKey, "\\n", "\n")

	credsJSON := fmt.Sprintf(`{
		"type": "service_account",
		"project_id": %q,
		"private_key": %q,
		"client_email": %q,
		"token_uri": "https://oauth2.googleapis.com/token"
	}`, projectID, privateKey, clientEmail)

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, option.WithCredentialsJSON([]byte(credsJSON)))
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}
	return app, nil
}

// FCMSender delivers pushes through Firebase Cloud Messaging.
type FCMSender struct {
	client *messaging.Client
	logger *zap.Logger
}

func NewFCMSender(ctx context.Context, app *firebase.App, logger *zap.Logger) (*FCMSender, error) {
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("get messaging client: %w", err)
	}
	return &FCMSender{client: client, logger: logger.Named("fcm")}, nil
}

// Send delivers msg to every token and reports one Result per token, in
// input order. A request-level failure marks its whole batch transient and is
// also returned as an error.
func (s *FCMSender) Send(ctx context.Context, tokens []string, msg Message) ([]Result, error) {
	results := make([]Result, 0, len(tokens))
	var firstErr error

	for start := 0; start < len(tokens); start += maxTokensPerRequest {
		end := min(start+maxTokensPerRequest, len(tokens))
		batch := tokens[start:end]

		response, err := s.client.SendEachForMulticast(ctx, buildMulticast(batch, msg))
		if err != nil {
			s.logger.Error("Send FAILED", zap.Int("tokens", len(batch)), zap.Error(err))
			for _, t := range batch {
				results = append(results, Result{Token: t, Kind: KindTransient, Err: err})
			}
			if firstErr == nil {
				firstErr = fmt.Errorf("send multicast: %w", err)
			}
			continue
		}

		for i, resp := range response.Responses {
			r := Result{Token: batch[i], Kind: KindDelivered}
			if !resp.Success {
				r.Kind = Classify(resp.Error)
				r.Err = resp.Error
			}
			results = append(results, r)
		}

		s.logger.Info("Send OK",
			zap.Int("tokens", len(batch)),
			zap.Int("success", response.SuccessCount),
			zap.Int("failure", response.FailureCount),
		)
	}

	return results, firstErr
}

func buildMulticast(tokens []string, msg Message) *messaging.MulticastMessage {
	return &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound: "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
					Badge: msg.Badge,
				},
			},
		},
	}
}

// Classify sorts a per-token FCM error. Permanent failures mean the token
// will never work again and should be removed.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindDelivered
	case messaging.IsUnregistered(err),
		messaging.IsInvalidArgument(err),
		messaging.IsSenderIDMismatch(err):
		return KindPermanent
	default:
		return KindTransient
	}
}
