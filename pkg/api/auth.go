package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
)

// Login exchanges credentials for a bearer token. The request is form-encoded
// with the email sent as "username".
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	var tok tokenResponse
	err := c.doJSON(ctx, request{
		method:      http.MethodPost,
		path:        "/auth/login",
		body:        strings.NewReader(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
	}, &tok)
	if err != nil {
		return "", asAuthError(err)
	}
	if tok.AccessToken == "" {
		return "", &AuthError{Status: http.StatusOK, Detail: "no access token in response"}
	}
	return tok.AccessToken, nil
}

func (c *Client) Register(ctx context.Context, email, password, fullName string) error {
	r, err := c.jsonRequest(http.MethodPost, "/auth/register", registerRequest{
		Email:    email,
		Password: password,
		FullName: fullName,
	})
	if err != nil {
		return err
	}
	r.token = ""
	if err := c.doJSON(ctx, r, nil); err != nil {
		return asAuthError(err)
	}
	return nil
}

// Me fetches the profile of the current token holder.
func (c *Client) Me(ctx context.Context) (*User, error) {
	return c.MeWith(ctx, c.tokens.Token())
}

// MeWith fetches the profile for an explicit token, used while a session is
// not yet established.
func (c *Client) MeWith(ctx context.Context, token string) (*User, error) {
	var u User
	err := c.doJSON(ctx, request{method: http.MethodGet, path: "/auth/me", token: token}, &u)
	if err != nil {
		var re *RequestError
		if errors.As(err, &re) && (re.Status == http.StatusUnauthorized || re.Status == http.StatusForbidden) {
			return nil, &AuthError{Status: re.Status, Detail: detailOf(re.Body)}
		}
		return nil, err
	}
	return &u, nil
}

// asAuthError maps 4xx responses of the auth endpoints onto AuthError so the
// server's text reaches the user.
func asAuthError(err error) error {
	var re *RequestError
	if errors.As(err, &re) && re.Status >= 400 && re.Status < 500 {
		return &AuthError{Status: re.Status, Detail: detailOf(re.Body)}
	}
	return err
}
