package services

import (
	"fmt"

	"github.com/lborres/warden/core"
)

// Operation ids bound by HTTP adapters.
const (
	OpRegister       = "register"
	OpLogin          = "login"
	OpRefreshToken   = "refreshToken"
	OpLogout         = "logout"
	OpGetCurrentUser = "getCurrentUser"
	OpUpdateProfile  = "updateProfile"
	OpChangePassword = "changePassword"
	OpGetUserByID    = "getUserById"
	OpSearchUsers    = "searchUsers"
)

// BaseEndpoints returns framework-agnostic endpoint definitions for the
// auth and user APIs, relative to the base path.
//
// Order matters: static segments are listed before parameterized ones so
// routers that match in registration order resolve /users/me before
// /users/:id.
func BaseEndpoints() []core.Endpoint {
	return []core.Endpoint{
		{
			Path:   "/auth/register",
			Method: "POST",
			Metadata: core.EndpointMetadata{
				OperationID: OpRegister,
				Description: "Register a user with username, email and password",
			},
		},
		{
			Path:   "/auth/login",
			Method: "POST",
			Metadata: core.EndpointMetadata{
				OperationID: OpLogin,
				Description: "Log in with email and password",
			},
		},
		{
			Path:   "/auth/refresh-token",
			Method: "POST",
			Metadata: core.EndpointMetadata{
				OperationID: OpRefreshToken,
				Description: "Exchange a refresh token for a new access token",
			},
		},
		{
			Path:   "/auth/logout",
			Method: "POST",
			Metadata: core.EndpointMetadata{
				OperationID: OpLogout,
				Description: "Delete the session bound to a refresh token",
			},
		},
		{
			Path:      "/users/me",
			Method:    "GET",
			Protected: true,
			Metadata: core.EndpointMetadata{
				OperationID: OpGetCurrentUser,
				Description: "Get the caller's profile",
			},
		},
		{
			Path:      "/users/me",
			Method:    "PUT",
			Protected: true,
			Metadata: core.EndpointMetadata{
				OperationID: OpUpdateProfile,
				Description: "Update the caller's username, full name or bio",
			},
		},
		{
			Path:      "/users/change-password",
			Method:    "PUT",
			Protected: true,
			Metadata: core.EndpointMetadata{
				OperationID: OpChangePassword,
				Description: "Change the caller's password",
			},
		},
		{
			Path:      "/users/:id",
			Method:    "GET",
			Protected: true,
			Metadata: core.EndpointMetadata{
				OperationID: OpGetUserByID,
				Description: "Get another user's public profile",
			},
		},
		{
			Path:      "/users",
			Method:    "GET",
			Protected: true,
			Metadata: core.EndpointMetadata{
				OperationID: OpSearchUsers,
				Description: "Search users by username, full name or email",
			},
		},
	}
}

// EndpointRegistry manages a collection of framework-agnostic endpoints
// and handles conflict detection for duplicate METHOD:PATH combinations.
// Registration order is preserved.
type EndpointRegistry struct {
	// endpoints stores all registered endpoints keyed by "METHOD:PATH"
	endpoints map[string]*core.Endpoint
	order     []string
}

// NewEndpointRegistry creates a new registry with all base endpoints
// pre-registered.
func NewEndpointRegistry() *EndpointRegistry {
	reg := &EndpointRegistry{
		endpoints: make(map[string]*core.Endpoint),
	}

	base := BaseEndpoints()
	for i := range base {
		// base endpoints are unique by construction
		_ = reg.register(&base[i])
	}

	return reg
}

func endpointKey(ep *core.Endpoint) string {
	return fmt.Sprintf("%s:%s", ep.Method, ep.Path)
}

// register adds a single endpoint to the registry with conflict detection.
// Returns error if an endpoint with the same METHOD:PATH already exists.
func (r *EndpointRegistry) register(ep *core.Endpoint) error {
	key := endpointKey(ep)

	if _, exists := r.endpoints[key]; exists {
		return fmt.Errorf("endpoint conflict: %s %s already registered", ep.Method, ep.Path)
	}

	r.endpoints[key] = ep
	r.order = append(r.order, key)
	return nil
}

// Endpoints returns all registered endpoints in registration order.
func (r *EndpointRegistry) Endpoints() []*core.Endpoint {
	result := make([]*core.Endpoint, 0, len(r.order))
	for _, key := range r.order {
		result = append(result, r.endpoints[key])
	}
	return result
}
