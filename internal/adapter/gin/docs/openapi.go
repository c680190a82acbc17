// Package docs builds and serves the OpenAPI document of the HTTP API.
package docs

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-openapi/spec"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

const (
	// JSONPath serves the raw document.
	JSONPath = "/openapi.json"
	// UIPath is the prefix of the interactive documentation.
	UIPath = "/docs"

	cookieAuth = "cookieAuth"
	tagUsers   = "Users"
	tagHealth  = "Health"

	// DefaultAuthTag groups the merged auth operations when Options.AuthTag is empty.
	DefaultAuthTag = "Auth"
)

// Options configures Build.
type Options struct {
	Title       string
	Version     string
	Description string
	// AuthPrefix is where the auth paths are mounted, e.g. "/auth/api".
	AuthPrefix string
	// AuthTag replaces the tags of every merged auth operation.
	AuthTag         string
	AuthPaths       map[string]spec.PathItem
	AuthDefinitions spec.Definitions
}

// Build assembles the document from the user routes and the auth contribution.
func Build(opts Options) *spec.Swagger {
	authTag := opts.AuthTag
	if authTag == "" {
		authTag = DefaultAuthTag
	}
	doc := &spec.Swagger{
		SwaggerProps: spec.SwaggerProps{
			Swagger:  "2.0",
			Consumes: []string{"application/json"},
			Produces: []string{"application/json"},
			Info: &spec.Info{InfoProps: spec.InfoProps{
				Title:       opts.Title,
				Version:     opts.Version,
				Description: opts.Description,
			}},
			Paths: &spec.Paths{Paths: userPaths()},
			Definitions: spec.Definitions{
				"User":   userSchema(),
				"Error":  errorSchema(),
				"Health": healthSchema(),
			},
			SecurityDefinitions: spec.SecurityDefinitions{
				cookieAuth: spec.APIKeyAuth("Cookie", "header"),
			},
			Tags: []spec.Tag{
				spec.NewTag(tagHealth, "Liveness and readiness", nil),
				spec.NewTag(tagUsers, "User management", nil),
				spec.NewTag(authTag, "Email and password authentication", nil),
			},
		},
	}

	for name, def := range opts.AuthDefinitions {
		if _, exists := doc.Definitions[name]; !exists {
			doc.Definitions[name] = def
		}
	}

	paths := make([]string, 0, len(opts.AuthPaths))
	for p := range opts.AuthPaths {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		doc.Paths.Paths[strings.TrimSuffix(opts.AuthPrefix, "/")+p] = tagged(opts.AuthPaths[p], authTag)
	}

	return doc
}

// Register mounts the raw document and the UI on r.
func Register(r gin.IRoutes, doc *spec.Swagger) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal openapi document: %w", err)
	}

	r.GET(JSONPath, func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
	})
	r.GET(UIPath+"/*any", gin.WrapH(httpSwagger.Handler(httpSwagger.URL(JSONPath))))
	return nil
}

// tagged copies item so the caller's operations are left untouched.
func tagged(item spec.PathItem, tag string) spec.PathItem {
	ops := []**spec.Operation{
		&item.Get, &item.Put, &item.Post, &item.Delete,
		&item.Options, &item.Head, &item.Patch,
	}
	for _, op := range ops {
		if *op == nil {
			continue
		}
		cp := **op
		cp.Tags = []string{tag}
		*op = &cp
	}
	return item
}

func errorResponse(desc string) *spec.Response {
	return spec.NewResponse().WithDescription(desc).WithSchema(spec.RefSchema("#/definitions/Error"))
}

func successOf(data *spec.Schema) *spec.Schema {
	return new(spec.Schema).Typed("object", "").
		SetProperty("success", *spec.BoolProperty()).
		SetProperty("data", *data).
		WithRequired("success", "data")
}

func userPaths() map[string]spec.PathItem {
	userRef := spec.RefSchema("#/definitions/User")

	health := spec.NewOperation("health").
		WithTags(tagHealth).
		WithSummary("Liveness probe").
		RespondsWith(http.StatusOK, spec.NewResponse().WithDescription("Service is up").
			WithSchema(spec.RefSchema("#/definitions/Health")))

	ready := spec.NewOperation("ready").
		WithTags(tagHealth).
		WithSummary("Readiness probe").
		RespondsWith(http.StatusOK, spec.NewResponse().WithDescription("Dependencies reachable")).
		RespondsWith(http.StatusServiceUnavailable, spec.NewResponse().WithDescription("A dependency is unreachable"))

	getMe := spec.NewOperation("getMe").
		WithTags(tagUsers).
		WithSummary("Get the current user").
		SecuredWith(cookieAuth).
		RespondsWith(http.StatusOK, spec.NewResponse().WithDescription("Current user").WithSchema(successOf(userRef))).
		RespondsWith(http.StatusUnauthorized, errorResponse("Authentication required"))

	listUsers := spec.NewOperation("listUsers").
		WithTags(tagUsers).
		WithSummary("List users").
		SecuredWith(cookieAuth).
		AddParam(spec.QueryParam("q").Typed("string", "").WithMaxLength(100).
			WithDescription("Case-insensitive substring of name or email")).
		AddParam(spec.QueryParam("limit").Typed("integer", "int32").WithMinimum(1, false).WithMaximum(100, false)).
		AddParam(spec.QueryParam("offset").Typed("integer", "int32").WithMinimum(0, false)).
		RespondsWith(http.StatusOK, spec.NewResponse().WithDescription("Users").
			WithSchema(successOf(spec.ArrayProperty(userRef)))).
		RespondsWith(http.StatusBadRequest, errorResponse("Validation failed")).
		RespondsWith(http.StatusUnauthorized, errorResponse("Authentication required"))

	updateBody := new(spec.Schema).Typed("object", "").
		SetProperty("name", *spec.StringProperty().WithMinLength(1)).
		SetProperty("email", *spec.StrFmtProperty("email"))

	updateMe := spec.NewOperation("updateMe").
		WithTags(tagUsers).
		WithSummary("Update the current user").
		SecuredWith(cookieAuth).
		AddParam(spec.BodyParam("body", updateBody)).
		RespondsWith(http.StatusOK, spec.NewResponse().WithDescription("Updated user").WithSchema(successOf(userRef))).
		RespondsWith(http.StatusBadRequest, errorResponse("Validation failed or update failed")).
		RespondsWith(http.StatusUnauthorized, errorResponse("Authentication required")).
		RespondsWith(http.StatusNotFound, errorResponse("User not found"))

	deleteUser := spec.NewOperation("deleteUser").
		WithTags(tagUsers).
		WithSummary("Delete a user").
		WithDescription("Only the caller's own account may be deleted.").
		SecuredWith(cookieAuth).
		AddParam(spec.PathParam("id").Typed("string", "")).
		RespondsWith(http.StatusOK, spec.NewResponse().WithDescription("Deleted user").WithSchema(successOf(userRef))).
		RespondsWith(http.StatusUnauthorized, errorResponse("Authentication required")).
		RespondsWith(http.StatusForbidden, errorResponse("You can only delete your own account")).
		RespondsWith(http.StatusNotFound, errorResponse("User not found"))

	return map[string]spec.PathItem{
		"/health":       {PathItemProps: spec.PathItemProps{Get: health}},
		"/health/ready": {PathItemProps: spec.PathItemProps{Get: ready}},
		"/users":        {PathItemProps: spec.PathItemProps{Get: listUsers}},
		"/users/me":     {PathItemProps: spec.PathItemProps{Get: getMe, Patch: updateMe}},
		"/users/{id}":   {PathItemProps: spec.PathItemProps{Delete: deleteUser}},
	}
}

func userSchema() spec.Schema {
	return *new(spec.Schema).Typed("object", "").
		SetProperty("id", *spec.StringProperty()).
		SetProperty("email", *spec.StrFmtProperty("email")).
		SetProperty("name", *spec.StringProperty()).
		SetProperty("emailVerified", *spec.BoolProperty()).
		SetProperty("image", *spec.StringProperty()).
		SetProperty("createdAt", *spec.DateTimeProperty()).
		SetProperty("updatedAt", *spec.DateTimeProperty()).
		WithRequired("id", "email", "emailVerified", "createdAt", "updatedAt")
}

func errorSchema() spec.Schema {
	details := new(spec.Schema).Typed("object", "").
		SetProperty("field", *spec.StringProperty()).
		SetProperty("message", *spec.StringProperty())

	return *new(spec.Schema).Typed("object", "").
		SetProperty("success", *spec.BoolProperty()).
		SetProperty("error", *spec.StringProperty()).
		SetProperty("message", *spec.StringProperty()).
		SetProperty("details", *spec.ArrayProperty(details)).
		WithRequired("success", "error")
}

func healthSchema() spec.Schema {
	return *new(spec.Schema).Typed("object", "").
		SetProperty("status", *spec.StringProperty()).
		SetProperty("timestamp", *spec.DateTimeProperty())
}
