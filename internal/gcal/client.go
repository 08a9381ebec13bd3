// Package gcal adapts the Google Calendar API to the engine's provider
// surface. Every provider failure is translated into the service error
// taxonomy so callers never see transport details.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/finledger/calsync/internal/service"
)

const (
	defaultTokenURL  = "https://oauth2.googleapis.com/token"
	defaultRevokeURL = "https://oauth2.googleapis.com/revoke"

	// channelTTL is the lifetime requested for push channels. The provider
	// may grant less; the granted expiry is what gets persisted.
	channelTTL = 7 * 24 * time.Hour

	listPageSize = 250
)

type Client struct {
	clientID     string
	clientSecret string
	logger       *zap.Logger
	httpClient   *http.Client

	// Endpoint overrides used by tests; production uses the Google URLs.
	endpoint  string
	tokenURL  string
	revokeURL string
}

func NewClient(clientID, clientSecret string, logger *zap.Logger) *Client {
	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		logger:       logger,
		httpClient:   http.DefaultClient,
	}
}

func (c *Client) service(ctx context.Context, accessToken string) (*calendar.Service, error) {
	token := &oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}

	opts := []option.ClientOption{option.WithTokenSource(oauth2.StaticTokenSource(token))}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}

	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return svc, nil
}

func (c *Client) CreateEvent(ctx context.Context, token, calendarID string, ev *calendar.Event) (*calendar.Event, error) {
	svc, err := c.service(ctx, token)
	if err != nil {
		return nil, err
	}

	created, err := svc.Events.Insert(calendarID, ev).Context(ctx).Do()
	if err != nil {
		return nil, mapError(err)
	}
	return created, nil
}

func (c *Client) UpdateEvent(ctx context.Context, token, calendarID, eventID string, ev *calendar.Event) (*calendar.Event, error) {
	svc, err := c.service(ctx, token)
	if err != nil {
		return nil, err
	}

	updated, err := svc.Events.Update(calendarID, eventID, ev).Context(ctx).Do()
	if err != nil {
		return nil, mapError(err)
	}
	return updated, nil
}

func (c *Client) DeleteEvent(ctx context.Context, token, calendarID, eventID string) error {
	svc, err := c.service(ctx, token)
	if err != nil {
		return err
	}

	if err := svc.Events.Delete(calendarID, eventID).Context(ctx).Do(); err != nil {
		return mapError(err)
	}
	return nil
}

func (c *Client) GetEvent(ctx context.Context, token, calendarID, eventID string) (*calendar.Event, error) {
	svc, err := c.service(ctx, token)
	if err != nil {
		return nil, err
	}

	ev, err := svc.Events.Get(calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return nil, mapError(err)
	}
	return ev, nil
}

// ListEvents fetches one page. Deleted events are included so deletions
// propagate; recurring events are expanded to single instances.
func (c *Client) ListEvents(ctx context.Context, token, calendarID string, opts service.ListOptions) (*service.EventPage, error) {
	svc, err := c.service(ctx, token)
	if err != nil {
		return nil, err
	}

	call := svc.Events.List(calendarID).
		ShowDeleted(true).
		SingleEvents(true).
		MaxResults(listPageSize)
	if opts.SyncToken != "" {
		call = call.SyncToken(opts.SyncToken)
	} else if !opts.TimeMin.IsZero() {
		call = call.TimeMin(opts.TimeMin.UTC().Format(time.RFC3339))
	}
	if opts.PageToken != "" {
		call = call.PageToken(opts.PageToken)
	}

	resp, err := call.Context(ctx).Do()
	if err != nil {
		if opts.SyncToken != "" {
			return nil, mapListError(err)
		}
		return nil, mapError(err)
	}

	return &service.EventPage{
		Items:         resp.Items,
		NextPageToken: resp.NextPageToken,
		NextSyncToken: resp.NextSyncToken,
	}, nil
}

func (c *Client) Watch(ctx context.Context, token, calendarID, channelID, address string) (*service.ChannelInfo, error) {
	svc, err := c.service(ctx, token)
	if err != nil {
		return nil, err
	}

	req := &calendar.Channel{
		Id:      channelID,
		Type:    "web_hook",
		Address: address,
		Params:  map[string]string{"ttl": fmt.Sprintf("%d", int64(channelTTL.Seconds()))},
	}

	ch, err := svc.Events.Watch(calendarID, req).Context(ctx).Do()
	if err != nil {
		return nil, mapError(err)
	}

	info := &service.ChannelInfo{
		ChannelID:  ch.Id,
		ResourceID: ch.ResourceId,
	}
	if ch.Expiration > 0 {
		info.ExpiresAt = time.UnixMilli(ch.Expiration)
	}

	c.logger.Debug("notification channel opened",
		zap.String("channel_id", ch.Id),
		zap.Time("expires_at", info.ExpiresAt))
	return info, nil
}

// StopChannel tells the provider to stop delivering notifications. Both the
// channel id and the resource id are required by the provider.
func (c *Client) StopChannel(ctx context.Context, token, channelID, resourceID string) error {
	svc, err := c.service(ctx, token)
	if err != nil {
		return err
	}

	call := svc.Channels.Stop(&calendar.Channel{Id: channelID, ResourceId: resourceID})
	if err := call.Context(ctx).Do(); err != nil {
		return mapError(err)
	}
	return nil
}

// RefreshAccessToken exchanges a refresh token for new access credentials.
// The returned newRefreshToken is empty when the provider did not rotate it.
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (accessToken, newRefreshToken string, expiresAt time.Time, err error) {
	config := &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL: c.tokenEndpoint(),
		},
	}

	source := config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	newToken, err := source.Token()
	if err != nil {
		return "", "", time.Time{}, mapRefreshError(err)
	}

	rotated := ""
	if newToken.RefreshToken != "" && newToken.RefreshToken != refreshToken {
		rotated = newToken.RefreshToken
	}

	c.logger.Debug("access token refreshed", zap.Time("expires_at", newToken.Expiry))
	return newToken.AccessToken, rotated, newToken.Expiry, nil
}

// RevokeToken invalidates the grant at the provider.
func (c *Client) RevokeToken(ctx context.Context, refreshToken string) error {
	endpoint := c.revokeURL
	if endpoint == "" {
		endpoint = defaultRevokeURL
	}

	form := url.Values{"token": {refreshToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", service.ErrTransientProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("revoke endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) tokenEndpoint() string {
	if c.tokenURL != "" {
		return c.tokenURL
	}
	return defaultTokenURL
}

// mapError translates a provider failure into the service error taxonomy.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusUnauthorized:
			return fmt.Errorf("%w: %v", service.ErrCredentialInvalid, err)
		case apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone:
			return fmt.Errorf("%w: %v", service.ErrRemoteNotFound, err)
		case apiErr.Code == http.StatusForbidden && isRateLimited(apiErr):
			return fmt.Errorf("%w: %v", service.ErrTransientProvider, err)
		case apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500:
			return fmt.Errorf("%w: %v", service.ErrTransientProvider, err)
		}
		return err
	}

	// No structured provider response, so the request itself failed.
	return fmt.Errorf("%w: %v", service.ErrTransientProvider, err)
}

// mapListError covers listings made with a sync token, where 410 Gone means
// the cursor expired rather than an event being missing.
func mapListError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusGone {
		return fmt.Errorf("%w: %v", service.ErrCursorInvalid, err)
	}
	return mapError(err)
}

func mapRefreshError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.ErrorCode == "invalid_grant" {
			return fmt.Errorf("%w: %v", service.ErrCredentialInvalid, err)
		}
		if retrieveErr.Response != nil && retrieveErr.Response.StatusCode >= 500 {
			return fmt.Errorf("%w: %v", service.ErrTransientProvider, err)
		}
		return fmt.Errorf("%w: %v", service.ErrCredentialInvalid, err)
	}
	return fmt.Errorf("%w: %v", service.ErrTransientProvider, err)
}

func isRateLimited(apiErr *googleapi.Error) bool {
	for _, item := range apiErr.Errors {
		switch item.Reason {
		case "rateLimitExceeded", "userRateLimitExceeded":
			return true
		}
	}
	return false
}
