package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-oauth2/oauth2/v4"
	oautherrors "github.com/go-oauth2/oauth2/v4/errors"
	"github.com/go-oauth2/oauth2/v4/manage"
	"github.com/go-oauth2/oauth2/v4/server"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// OAuthService issues access tokens to integration clients through the
// client-credentials grant. Tokens carry the owning user's id and role and
// are verified by the same TokenIssuer as user logins.
type OAuthService struct {
	server *server.Server
	tokens *GormTokenStore
}

func NewOAuthService(db *gorm.DB, issuer *TokenIssuer) *OAuthService {
	manager := manage.NewDefaultManager()
	manager.SetClientTokenCfg(&manage.Config{AccessTokenExp: issuer.TTL()})

	// Access tokens are JWTs with the same claims as user logins
	manager.MapAccessGenerate(NewClientAccessGenerate(issuer, db))

	tokenStore := NewGormTokenStore(db)
	manager.MustTokenStorage(tokenStore, nil)
	manager.MapClientStorage(NewGormClientStore(db))

	srv := server.NewDefaultServer(manager)
	srv.SetAllowedGrantType(oauth2.ClientCredentials)
	srv.SetClientInfoHandler(clientInfoHandler)
	srv.SetInternalErrorHandler(func(err error) *oautherrors.Response {
		log.WithError(err).Error("OAuth2 internal error")
		return nil
	})
	srv.SetResponseErrorHandler(func(re *oautherrors.Response) {
		log.WithFields(logrus.Fields{
			"error":       re.Error,
			"status_code": re.StatusCode,
		}).Warn("OAuth2 token request rejected")
	})

	return &OAuthService{
		server: srv,
		tokens: tokenStore,
	}
}

// clientInfoHandler accepts HTTP Basic credentials and falls back to form fields
func clientInfoHandler(r *http.Request) (string, string, error) {
	if clientID, secret, err := server.ClientBasicHandler(r); err == nil {
		return clientID, secret, nil
	}
	return server.ClientFormHandler(r)
}

func (o *OAuthService) GetServer() *server.Server {
	return o.server
}

// Tokens exposes the token store for housekeeping jobs
func (o *OAuthService) Tokens() *GormTokenStore {
	return o.tokens
}

// HandleToken handles the token endpoint for the client credentials grant
// @Summary Token Endpoint
// @Description Obtain an access token using the client credentials grant
// @Tags OAuth2
// @Accept application/x-www-form-urlencoded
// @Produce json
// @Param grant_type formData string true "Grant type: client_credentials"
// @Param client_id formData string false "Client ID (or HTTP Basic)"
// @Param client_secret formData string false "Client Secret (or HTTP Basic)"
// @Param scope formData string false "Requested scope"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} models.OAuth2Error
// @Failure 401 {object} models.OAuth2Error
// @Router /api/oauth/token [post]
func (o *OAuthService) HandleToken(c *gin.Context) {
	if err := o.server.HandleTokenRequest(c.Writer, c.Request); err != nil {
		log.WithError(err).Error("Failed to write token response")
	}
	c.Abort()
}
