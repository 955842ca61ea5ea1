package gmail

import (
	"context"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/customeros/mailsync/config"
	"github.com/customeros/mailsync/interfaces"
	internalerrors "github.com/customeros/mailsync/internal/errors"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/models"
)

var Scopes = []string{
	gmailapi.GmailModifyScope,
	gmailapi.GmailComposeScope,
	gmailapi.GmailSendScope,
}

// AccountCredentials issues token sources from the tokens stored on the account.
// Refreshed tokens are written back to the account.
type AccountCredentials struct {
	oauth    *oauth2.Config
	accounts interfaces.EmailAccountRepository
	log      logger.Logger
}

func NewAccountCredentials(cfg *config.GoogleOAuthConfig, accounts interfaces.EmailAccountRepository, log logger.Logger) *AccountCredentials {
	return &AccountCredentials{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       Scopes,
		},
		accounts: accounts,
		log:      log,
	}
}

func (c *AccountCredentials) TokenSource(ctx context.Context, account *models.EmailAccount) (oauth2.TokenSource, error) {
	if account == nil || account.RefreshToken == "" {
		return nil, internalerrors.ErrAuth
	}

	token := &oauth2.Token{
		AccessToken:  account.AccessToken,
		RefreshToken: account.RefreshToken,
		TokenType:    "Bearer",
	}
	if account.TokenExpiry != nil {
		token.Expiry = *account.TokenExpiry
	}

	// refreshes may happen after the calling request is done
	refreshCtx := context.WithoutCancel(ctx)
	persisting := &persistingTokenSource{
		ctx:       refreshCtx,
		base:      c.oauth.TokenSource(refreshCtx, token),
		accountID: account.ID,
		accounts:  c.accounts,
		log:       c.log,
		last:      token.AccessToken,
	}
	return oauth2.ReuseTokenSource(token, persisting), nil
}

type persistingTokenSource struct {
	ctx       context.Context
	base      oauth2.TokenSource
	accountID string
	accounts  interfaces.EmailAccountRepository
	log       logger.Logger

	mu   sync.Mutex
	last string
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if token.AccessToken != s.last {
		s.last = token.AccessToken
		if err := s.accounts.UpdateToken(s.ctx, s.accountID, token.AccessToken, token.RefreshToken, token.Expiry); err != nil {
			s.log.Errorf("failed to persist refreshed token for account %s: %v", s.accountID, err)
		}
	}
	return token, nil
}
