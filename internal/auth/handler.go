package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"user-auth-service/internal/domain/session"
	"user-auth-service/internal/domain/user"
)

// BasePath is where the auth routes live inside Handler.
const BasePath = "/api"

type signUpRequest struct {
	Email      string  `json:"email" binding:"required"`
	Password   string  `json:"password" binding:"required"`
	Name       *string `json:"name"`
	Image      *string `json:"image"`
	RememberMe *bool   `json:"rememberMe"`
}

type signInRequest struct {
	Email      string `json:"email" binding:"required"`
	Password   string `json:"password" binding:"required"`
	RememberMe *bool  `json:"rememberMe"`
}

type sessionResponse struct {
	Session session.Session `json:"session"`
	User    user.User       `json:"user"`
}

type signInResponse struct {
	Redirect bool      `json:"redirect"`
	Token    string    `json:"token"`
	User     user.User `json:"user"`
}

type signUpResponse struct {
	Token string    `json:"token"`
	User  user.User `json:"user"`
}

// Handler returns the HTTP handler serving the auth routes under BasePath.
func (s *Service) Handler() http.Handler {
	r := gin.New()
	r.HandleMethodNotAllowed = false

	api := r.Group(BasePath, s.checkOrigin())
	{
		api.POST("/sign-up/email", s.handleSignUp)
		api.POST("/sign-in/email", s.handleSignIn)
		api.POST("/sign-out", s.handleSignOut)
		api.GET("/get-session", s.handleGetSession)
		api.GET("/ok", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"ok": true})
		})
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(ErrNotFound.Status, ErrNotFound)
	})
	return r
}

// checkOrigin rejects state-changing requests from untrusted origins.
func (s *Service) checkOrigin() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		origin := c.GetHeader("Origin")
		if origin != "" && !s.TrustedOrigin(origin) {
			s.log.Warn("rejected untrusted origin", zap.String("origin", origin), zap.String("path", c.Request.URL.Path))
			s.abort(c, ErrInvalidOrigin)
			return
		}
		c.Next()
	}
}

func (s *Service) handleSignUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abort(c, ErrInvalidBody)
		return
	}

	ident, err := s.SignUp(c.Request.Context(), SignUpInput{
		Email:      req.Email,
		Password:   req.Password,
		Name:       req.Name,
		Image:      req.Image,
		RememberMe: rememberMe(req.RememberMe),
	}, requestMeta(c))
	if err != nil {
		s.abort(c, err)
		return
	}

	if err := s.setSessionCookies(c.Writer, ident, !rememberMe(req.RememberMe)); err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, signUpResponse{Token: ident.Session.Token, User: ident.User})
}

func (s *Service) handleSignIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abort(c, ErrInvalidBody)
		return
	}

	ident, err := s.SignIn(c.Request.Context(), SignInInput{
		Email:      req.Email,
		Password:   req.Password,
		RememberMe: rememberMe(req.RememberMe),
	}, requestMeta(c))
	if err != nil {
		s.abort(c, err)
		return
	}

	if err := s.setSessionCookies(c.Writer, ident, !rememberMe(req.RememberMe)); err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, signInResponse{Redirect: false, Token: ident.Session.Token, User: ident.User})
}

func (s *Service) handleSignOut(c *gin.Context) {
	if err := s.SignOut(c.Request.Context(), c.Request.Header); err != nil {
		s.abort(c, err)
		return
	}
	s.ClearSessionCookies(c.Writer)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Service) handleGetSession(c *gin.Context) {
	_, hadToken := s.sessionToken(c.Request.Header)

	ident, refreshed, err := s.resolve(c.Request.Context(), c.Request.Header)
	if err != nil {
		s.abort(c, err)
		return
	}
	if ident == nil {
		if hadToken {
			s.ClearSessionCookies(c.Writer)
		}
		c.JSON(http.StatusOK, nil)
		return
	}

	_, cached := readCookie(c.Request.Header, s.cookies.data)
	if refreshed || (s.cfg.CookieCacheEnabled && !cached) {
		if err := s.setSessionCookies(c.Writer, ident, s.dontRemember(c.Request.Header)); err != nil {
			s.abort(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, sessionResponse{Session: ident.Session, User: ident.User})
}

// abort writes err as an APIError body. Unknown errors become 500.
func (s *Service) abort(c *gin.Context, err error) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		s.log.Error("auth request failed", zap.Error(err), zap.String("path", c.Request.URL.Path))
		apiErr = &APIError{Status: http.StatusInternalServerError, Code: "INTERNAL_SERVER_ERROR", Message: "Internal server error"}
	}
	c.AbortWithStatusJSON(apiErr.Status, apiErr)
}

func requestMeta(c *gin.Context) RequestMeta {
	return RequestMeta{IPAddress: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

func rememberMe(v *bool) bool {
	return v == nil || *v
}
