package graph

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// DefaultScope requests the app's configured Graph permissions.
const DefaultScope = "https://graph.microsoft.com/.default"

// ClientCredentialsSource returns an app-only token source for an Entra ID tenant.
// App-only tokens cannot use /me, so a sender mailbox must be configured alongside it.
func ClientCredentialsSource(ctx context.Context, tenantID, clientID, clientSecret string) oauth2.TokenSource {
	cfg := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", tenantID),
		Scopes:       []string{DefaultScope},
	}
	return cfg.TokenSource(ctx)
}

// StaticSource wraps a pre-acquired delegated access token.
func StaticSource(accessToken string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
}
