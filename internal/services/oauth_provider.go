package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jobboard/backend/internal/config"
	"github.com/jobboard/backend/pkg/logger"
	"github.com/jobboard/backend/pkg/signing"
	"golang.org/x/oauth2"
	github "golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
)

const (
	oauthStateTTL  = 10 * time.Minute
	oauthStateSalt = "oauth-state"
)

type SocialProfile struct {
	Provider       string
	ProviderUserID string
	Email          string
	Name           string
}

type oauthState struct {
	Provider string `json:"p"`
	Nonce    string `json:"n"`
}

type OAuthProviderService struct {
	Cfg   config.SSOConfig
	state *signing.Signer

	// Endpoints overrides provider endpoints and profile URLs in tests.
	Endpoints map[string]ProviderEndpoints
}

type ProviderEndpoints struct {
	OAuth      oauth2.Endpoint
	ProfileURL string
	EmailsURL  string
}

var defaultEndpoints = map[string]ProviderEndpoints{
	"google": {
		OAuth:      google.Endpoint,
		ProfileURL: "https://www.googleapis.com/oauth2/v2/userinfo",
	},
	"github": {
		OAuth:      github.Endpoint,
		ProfileURL: "https://api.github.com/user",
		EmailsURL:  "https://api.github.com/user/emails",
	},
}

func NewOAuthProviderService(cfg config.SSOConfig, secretKey string) *OAuthProviderService {
	return &OAuthProviderService{
		Cfg:       cfg,
		state:     signing.New(secretKey, oauthStateSalt),
		Endpoints: defaultEndpoints,
	}
}

func (s *OAuthProviderService) GetOAuthConfig(provider string) (*oauth2.Config, error) {
	provider = strings.ToLower(provider)
	var p config.OAuthProviderConfig
	var scopes []string
	switch provider {
	case "google":
		p = s.Cfg.Google
		scopes = []string{"openid", "email", "profile"}
	case "github":
		p = s.Cfg.GitHub
		scopes = []string{"read:user", "user:email"}
	default:
		return nil, ErrUnknownProvider
	}
	if !p.Enabled() {
		return nil, wrap(ErrUnknownProvider, fmt.Errorf("%s oauth is not enabled", provider))
	}
	return &oauth2.Config{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		RedirectURL:  p.RedirectURL,
		Scopes:       scopes,
		Endpoint:     s.Endpoints[provider].OAuth,
	}, nil
}

// BeginURL returns the provider consent URL carrying a signed state that
// expires after ten minutes.
func (s *OAuthProviderService) BeginURL(provider string) (string, error) {
	oauthCfg, err := s.GetOAuthConfig(provider)
	if err != nil {
		return "", err
	}
	state, err := s.state.SignExpiring(oauthState{
		Provider: strings.ToLower(provider),
		Nonce:    oauth2.GenerateVerifier(),
	}, oauthStateTTL)
	if err != nil {
		return "", err
	}
	return oauthCfg.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

func (s *OAuthProviderService) ValidateState(provider, state string) error {
	var st oauthState
	if err := s.state.Unsign(state, &st); err != nil {
		return wrap(ErrProviderFailure, err)
	}
	if st.Provider != strings.ToLower(provider) {
		return wrap(ErrProviderFailure, errors.New("state issued for another provider"))
	}
	return nil
}

func (s *OAuthProviderService) ExchangeCode(ctx context.Context, provider string, code string) (*oauth2.Token, error) {
	oauthCfg, err := s.GetOAuthConfig(provider)
	if err != nil {
		return nil, err
	}

	token, err := oauthCfg.Exchange(ctx, code)
	if err != nil {
		logger.Warn("oauth_exchange_failed", map[string]interface{}{
			"provider": provider,
			"error":    err.Error(),
		})
		return nil, wrap(ErrProviderFailure, err)
	}

	return token, nil
}

func (s *OAuthProviderService) GetUserInfo(ctx context.Context, provider string, token *oauth2.Token) (*SocialProfile, error) {
	oauthCfg, err := s.GetOAuthConfig(provider)
	if err != nil {
		return nil, err
	}
	client := oauthCfg.Client(ctx, token)

	var profile *SocialProfile
	switch strings.ToLower(provider) {
	case "google":
		profile, err = s.getGoogleUserInfo(client)
	case "github":
		profile, err = s.getGitHubUserInfo(client)
	default:
		return nil, ErrUnknownProvider
	}
	if err != nil {
		return nil, wrap(ErrProviderFailure, err)
	}
	return profile, nil
}

func getJSON(client *http.Client, url string, out interface{}) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned status %d: %s", url, resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (s *OAuthProviderService) getGoogleUserInfo(client *http.Client) (*SocialProfile, error) {
	var data struct {
		ID            string `json:"id"`
		Email         string `json:"email"`
		Name          string `json:"name"`
		VerifiedEmail bool   `json:"verified_email"`
	}
	if err := getJSON(client, s.Endpoints["google"].ProfileURL, &data); err != nil {
		return nil, err
	}
	if data.Email == "" || !data.VerifiedEmail {
		return nil, errors.New("google email not verified")
	}

	return &SocialProfile{
		Provider:       "google",
		ProviderUserID: data.ID,
		Email:          data.Email,
		Name:           data.Name,
	}, nil
}

func (s *OAuthProviderService) getGitHubUserInfo(client *http.Client) (*SocialProfile, error) {
	var data struct {
		ID    int    `json:"id"`
		Login string `json:"login"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := getJSON(client, s.Endpoints["github"].ProfileURL, &data); err != nil {
		return nil, err
	}

	if data.Email == "" {
		var emails []struct {
			Email    string `json:"email"`
			Primary  bool   `json:"primary"`
			Verified bool   `json:"verified"`
		}
		if err := getJSON(client, s.Endpoints["github"].EmailsURL, &emails); err == nil {
			for _, e := range emails {
				if e.Primary && e.Verified {
					data.Email = e.Email
					break
				}
			}
		}
	}

	if data.Email == "" {
		return nil, errors.New("github email not available")
	}

	return &SocialProfile{
		Provider:       "github",
		ProviderUserID: fmt.Sprintf("%d", data.ID),
		Email:          data.Email,
		Name:           data.Name,
	}, nil
}
