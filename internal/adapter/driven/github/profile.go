package github

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/ericfisherdev/ghswitch/internal/domain/model"
	"github.com/ericfisherdev/ghswitch/internal/domain/port/driven"
)

// FetchProfile retrieves the authenticated user's profile with the given
// token. Each call builds a short-lived go-github client because every linked
// identity carries its own token; the transport stack is:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with token auth)
func (c *Client) FetchProfile(ctx context.Context, accessToken string) (model.GitHubUser, error) {
	client, err := c.profileClient(accessToken)
	if err != nil {
		return model.GitHubUser{}, err
	}

	user, resp, err := client.Users.Get(ctx, "")
	if err != nil {
		var errResp *gh.ErrorResponse
		if errors.As(err, &errResp) && errResp.Response != nil {
			return model.GitHubUser{}, &driven.ProtocolError{StatusCode: errResp.Response.StatusCode}
		}
		if resp != nil {
			return model.GitHubUser{}, &driven.ProtocolError{StatusCode: resp.StatusCode}
		}
		return model.GitHubUser{}, fmt.Errorf("fetch profile: %w", err)
	}

	if user.ID == nil || user.GetLogin() == "" {
		return model.GitHubUser{}, &driven.ProtocolError{Code: "malformed_user_response"}
	}

	return model.GitHubUser{
		ID:        user.GetID(),
		Login:     user.GetLogin(),
		Name:      user.Name,
		Email:     user.Email,
		AvatarURL: user.AvatarURL,
	}, nil
}

func (c *Client) profileClient(accessToken string) (*gh.Client, error) {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient).WithAuthToken(accessToken)

	if c.apiBaseURL != "" {
		// Test path: point go-github at an httptest server.
		base := c.apiBaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parse api base URL: %w", err)
		}
		client = gh.NewClient(c.httpClient).WithAuthToken(accessToken)
		client.BaseURL = u
	}

	return client, nil
}
