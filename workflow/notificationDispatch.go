package workflow

import (
	"context"
	"os"
	"strings"
	"sync"

	"bitbucket.org/mmdatafocus/rentroll_backend/config"
	"bitbucket.org/mmdatafocus/rentroll_backend/models"
	"bitbucket.org/mmdatafocus/rentroll_backend/utils"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

var (
	messagingClient   *messaging.Client
	messagingClientMu sync.Mutex
)

// DispatchResult reports what a push fan-out did. Delivery is best effort;
// callers only ever log these counts.
type DispatchResult struct {
	TotalTokens int `json:"total_tokens"`
	SentCount   int `json:"sent_count"`
	FailedCount int `json:"failed_count"`
}

func getMessagingClient(ctx context.Context) (*messaging.Client, error) {
	messagingClientMu.Lock()
	defer messagingClientMu.Unlock()
	if messagingClient != nil {
		return messagingClient, nil
	}

	var opts []option.ClientOption
	if credJSON := os.Getenv("FIREBASE_CREDENTIALS_JSON"); credJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, err
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, err
	}
	messagingClient = client
	return messagingClient, nil
}

// CollectTokens returns the distinct, trimmed device tokens of the given
// users, skipping deleted users and users who turned notifications off.
func CollectTokens(users []*models.User) []string {
	seen := make(map[string]bool)
	tokens := []string{}
	for _, user := range users {
		if user == nil || user.IsDeleted() {
			continue
		}
		if user.NotificationPermission == "denied" {
			continue
		}
		token := strings.TrimSpace(user.FcmToken)
		if token == "" || seen[token] {
			continue
		}
		seen[token] = true
		tokens = append(tokens, token)
	}
	return tokens
}

// sendToTokens multicasts one notification to the tokens in batches of 500,
// the FCM multicast limit. Send failures are counted, never returned.
func sendToTokens(ctx context.Context, tokens []string, title, body string, data map[string]string) DispatchResult {
	logger := config.GetLogger()
	result := DispatchResult{TotalTokens: len(tokens)}
	if len(tokens) == 0 {
		return result
	}

	client, err := getMessagingClient(ctx)
	if err != nil {
		config.LogError(logger, "workflow", "sendToTokens", "messaging client", nil, err)
		result.FailedCount = len(tokens)
		return result
	}

	for start := 0; start < len(tokens); start += 500 {
		end := start + 500
		if end > len(tokens) {
			end = len(tokens)
		}
		batch := tokens[start:end]

		response, err := client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
			Tokens: batch,
			Notification: &messaging.Notification{
				Title: title,
				Body:  body,
			},
			Data: data,
		})
		if err != nil {
			config.LogError(logger, "workflow", "sendToTokens", "multicast", logrus.Fields{"batch": len(batch)}, err)
			result.FailedCount += len(batch)
			continue
		}
		result.SentCount += response.SuccessCount
		result.FailedCount += response.FailureCount
	}

	logger.WithFields(logrus.Fields{
		"total_tokens": result.TotalTokens,
		"sent":         result.SentCount,
		"failed":       result.FailedCount,
	}).Info("push dispatch done")
	return result
}

// DispatchToRole notifies every live user holding the role.
func DispatchToRole(ctx context.Context, role models.Role, title, body string, data map[string]string) (DispatchResult, error) {
	users, err := models.ListUsersByRole(ctx, role)
	if err != nil {
		return DispatchResult{}, err
	}
	return sendToTokens(ctx, CollectTokens(users), title, body, data), nil
}

// DispatchToPropertyTenants notifies the live tenants attached to the
// property. Used by the ledger-event push handler after a meter reading.
func DispatchToPropertyTenants(ctx context.Context, propertyId, title, body string, data map[string]string) (DispatchResult, error) {
	tenants, err := models.ListUsersByRole(ctx, models.RoleTenant)
	if err != nil {
		return DispatchResult{}, err
	}

	onProperty := []*models.User{}
	for _, tenant := range tenants {
		if utils.RefTerminalID(tenant.PropertyID) == propertyId {
			onProperty = append(onProperty, tenant)
		}
	}
	return sendToTokens(ctx, CollectTokens(onProperty), title, body, data), nil
}

// DispatchToUsers notifies a caller-selected set of users.
func DispatchToUsers(ctx context.Context, users []*models.User, title, body string, data map[string]string) DispatchResult {
	return sendToTokens(ctx, CollectTokens(users), title, body, data)
}
