package api

import (
	"context"
	"net/http"
)

func (c *Client) GetProfile(ctx context.Context) (*Profile, error) {
	var p Profile
	if err := c.getJSON(ctx, "/api/settings/profile", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) UpdateProfile(ctx context.Context, p Profile) (*Profile, error) {
	var out Profile
	if err := c.sendJSON(ctx, http.MethodPut, "/api/settings/profile", p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetAPIKey returns the masked key metadata. The full key is only available
// through RevealAPIKey or RotateAPIKey.
func (c *Client) GetAPIKey(ctx context.Context) (*APIKeyInfo, error) {
	var info APIKeyInfo
	if err := c.getJSON(ctx, "/api/settings/api-key", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) RevealAPIKey(ctx context.Context) (string, error) {
	var v apiKeyValue
	if err := c.sendJSON(ctx, http.MethodPost, "/api/settings/api-key/reveal", nil, &v); err != nil {
		return "", err
	}
	return v.APIKey, nil
}

// RotateAPIKey invalidates the current key server-side and returns its replacement.
func (c *Client) RotateAPIKey(ctx context.Context) (string, error) {
	var v apiKeyValue
	if err := c.sendJSON(ctx, http.MethodPost, "/api/settings/api-key/rotate", nil, &v); err != nil {
		return "", err
	}
	return v.APIKey, nil
}

func (c *Client) GetNotifications(ctx context.Context) (NotificationPrefs, error) {
	prefs := NotificationPrefs{}
	if err := c.getJSON(ctx, "/api/settings/notifications", nil, &prefs); err != nil {
		return nil, err
	}
	return prefs, nil
}

func (c *Client) UpdateNotifications(ctx context.Context, prefs NotificationPrefs) (NotificationPrefs, error) {
	out := NotificationPrefs{}
	if err := c.sendJSON(ctx, http.MethodPut, "/api/settings/notifications", prefs, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	return c.sendJSON(ctx, http.MethodPost, "/api/settings/security/change-password",
		changePasswordRequest{CurrentPassword: current, NewPassword: next}, nil)
}

func (c *Client) SignOutOthers(ctx context.Context) error {
	return c.sendJSON(ctx, http.MethodPost, "/api/settings/security/signout-others", nil, nil)
}
