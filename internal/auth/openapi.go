package auth

import (
	"net/http"

	"github.com/go-openapi/spec"
)

// OpenAPISchema is the auth contribution to the API document.
// Paths are relative to BasePath.
type OpenAPISchema struct {
	Paths       map[string]spec.PathItem
	Definitions spec.Definitions
}

// OpenAPISchema describes the auth routes. The result is built once.
func (s *Service) OpenAPISchema() *OpenAPISchema {
	s.schemaOnce.Do(func() {
		s.schema = buildOpenAPISchema()
	})
	return s.schema
}

func buildOpenAPISchema() *OpenAPISchema {
	errorResp := func(desc string) *spec.Response {
		return spec.NewResponse().WithDescription(desc).WithSchema(spec.RefSchema("#/definitions/AuthError"))
	}

	signUpBody := new(spec.Schema).Typed("object", "").
		SetProperty("email", *spec.StrFmtProperty("email")).
		SetProperty("password", *spec.StringProperty().WithMinLength(MinPasswordLength).WithMaxLength(MaxPasswordLength)).
		SetProperty("name", *spec.StringProperty()).
		SetProperty("image", *spec.StringProperty()).
		SetProperty("rememberMe", *spec.BoolProperty()).
		WithRequired("email", "password")

	signInBody := new(spec.Schema).Typed("object", "").
		SetProperty("email", *spec.StrFmtProperty("email")).
		SetProperty("password", *spec.StringProperty()).
		SetProperty("rememberMe", *spec.BoolProperty()).
		WithRequired("email", "password")

	signUp := spec.NewOperation("signUpEmail").
		WithSummary("Sign up with email and password").
		WithConsumes("application/json").
		WithProduces("application/json").
		AddParam(spec.BodyParam("body", signUpBody)).
		RespondsWith(http.StatusOK, spec.NewResponse().WithDescription("User created and signed in").
			WithSchema(new(spec.Schema).Typed("object", "").
				SetProperty("token", *spec.StringProperty()).
				SetProperty("user", *spec.RefSchema("#/definitions/User")))).
		RespondsWith(http.StatusBadRequest, errorResp("Invalid email or password length")).
		RespondsWith(http.StatusUnprocessableEntity, errorResp("User already exists"))

	signIn := spec.NewOperation("signInEmail").
		WithSummary("Sign in with email and password").
		WithConsumes("application/json").
		WithProduces("application/json").
		AddParam(spec.BodyParam("body", signInBody)).
		RespondsWith(http.StatusOK, spec.NewResponse().WithDescription("Signed in; session cookie set").
			WithSchema(new(spec.Schema).Typed("object", "").
				SetProperty("redirect", *spec.BoolProperty()).
				SetProperty("token", *spec.StringProperty()).
				SetProperty("user", *spec.RefSchema("#/definitions/User")))).
		RespondsWith(http.StatusUnauthorized, errorResp("Invalid email or password"))

	signOut := spec.NewOperation("signOut").
		WithSummary("Sign out the current session").
		WithProduces("application/json").
		RespondsWith(http.StatusOK, spec.NewResponse().WithDescription("Session revoked; cookies cleared").
			WithSchema(new(spec.Schema).Typed("object", "").SetProperty("success", *spec.BoolProperty())))

	getSession := spec.NewOperation("getSession").
		WithSummary("Get the current session").
		WithProduces("application/json").
		RespondsWith(http.StatusOK, spec.NewResponse().WithDescription("Current session, or null").
			WithSchema(new(spec.Schema).Typed("object", "").
				SetProperty("session", *spec.RefSchema("#/definitions/Session")).
				SetProperty("user", *spec.RefSchema("#/definitions/User"))))

	ok := spec.NewOperation("ok").
		WithSummary("Auth liveness").
		WithProduces("application/json").
		RespondsWith(http.StatusOK, spec.NewResponse().WithDescription("Auth routes are up"))

	session := new(spec.Schema).Typed("object", "").
		SetProperty("id", *spec.StringProperty()).
		SetProperty("token", *spec.StringProperty()).
		SetProperty("userId", *spec.StringProperty()).
		SetProperty("expiresAt", *spec.DateTimeProperty()).
		SetProperty("ipAddress", *spec.StringProperty()).
		SetProperty("userAgent", *spec.StringProperty()).
		SetProperty("createdAt", *spec.DateTimeProperty()).
		SetProperty("updatedAt", *spec.DateTimeProperty())

	authError := new(spec.Schema).Typed("object", "").
		SetProperty("code", *spec.StringProperty()).
		SetProperty("message", *spec.StringProperty())

	return &OpenAPISchema{
		Paths: map[string]spec.PathItem{
			"/sign-up/email": {PathItemProps: spec.PathItemProps{Post: signUp}},
			"/sign-in/email": {PathItemProps: spec.PathItemProps{Post: signIn}},
			"/sign-out":      {PathItemProps: spec.PathItemProps{Post: signOut}},
			"/get-session":   {PathItemProps: spec.PathItemProps{Get: getSession}},
			"/ok":            {PathItemProps: spec.PathItemProps{Get: ok}},
		},
		Definitions: spec.Definitions{
			"Session":   *session,
			"AuthError": *authError,
		},
	}
}
