package fiber

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/lborres/warden/core"
	"github.com/lborres/warden/internal/logging"
	"github.com/lborres/warden/internal/metrics"
	"github.com/lborres/warden/services"
)

// Response messages. These are part of the API contract.
const (
	msgRegistered      = "User registered successfully"
	msgLoggedIn        = "Login successful"
	msgRefreshed       = "Token refreshed successfully"
	msgLoggedOut       = "Logout successful"
	msgPasswordChanged = "Password changed successfully"
	msgProfileUpdated  = "Profile updated successfully"
	msgInternal        = "Internal server error"
)

// requestContext detaches the service call from the client connection: a
// disconnect must not abort store writes already issued.
func requestContext(c fiber.Ctx) context.Context {
	return context.WithoutCancel(c.Context())
}

func sessionMeta(c fiber.Ctx) core.SessionMeta {
	return core.SessionMeta{
		DeviceInfo: c.Get(fiber.HeaderUserAgent),
		IPAddress:  c.IP(),
	}
}

// bindBody decodes the request body into out. An empty body leaves out at
// its zero value.
func bindBody(c fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.Bind().Body(out); err != nil {
		return core.ErrInvalidBody
	}
	return nil
}

func (a *Adapter) register(auth core.AuthProvider) fiber.Handler {
	return func(c fiber.Ctx) error {
		var input core.RegisterInput
		if err := bindBody(c, &input); err != nil {
			return a.authFail(c, services.OpRegister, err)
		}
		if err := input.Validate(); err != nil {
			return a.authFail(c, services.OpRegister, err)
		}

		result, err := auth.Register(requestContext(c), input, sessionMeta(c))
		if err != nil {
			return a.authFail(c, services.OpRegister, err)
		}

		a.metrics.RecordAuth(services.OpRegister, metrics.OutcomeSuccess)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"message":      msgRegistered,
			"user":         result.User,
			"token":        result.AccessToken,
			"refreshToken": result.RefreshToken,
		})
	}
}

func (a *Adapter) login(auth core.AuthProvider) fiber.Handler {
	return func(c fiber.Ctx) error {
		var input core.LoginInput
		if err := bindBody(c, &input); err != nil {
			return a.authFail(c, services.OpLogin, err)
		}
		if err := input.Validate(); err != nil {
			return a.authFail(c, services.OpLogin, err)
		}

		result, err := auth.Login(requestContext(c), input, sessionMeta(c))
		if err != nil {
			return a.authFail(c, services.OpLogin, err)
		}

		a.metrics.RecordAuth(services.OpLogin, metrics.OutcomeSuccess)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"message":      msgLoggedIn,
			"user":         result.User,
			"token":        result.AccessToken,
			"refreshToken": result.RefreshToken,
		})
	}
}

func (a *Adapter) refresh(auth core.AuthProvider) fiber.Handler {
	return func(c fiber.Ctx) error {
		var input core.RefreshInput
		if err := bindBody(c, &input); err != nil {
			return a.authFail(c, services.OpRefreshToken, err)
		}

		result, err := auth.Refresh(requestContext(c), input.RefreshToken)
		if err != nil {
			return a.authFail(c, services.OpRefreshToken, err)
		}

		a.metrics.RecordAuth(services.OpRefreshToken, metrics.OutcomeSuccess)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": msgRefreshed,
			"token":   result.AccessToken,
		})
	}
}

func (a *Adapter) logout(auth core.AuthProvider) fiber.Handler {
	return func(c fiber.Ctx) error {
		var input core.RefreshInput
		if err := bindBody(c, &input); err != nil {
			return a.authFail(c, services.OpLogout, err)
		}

		if err := auth.Logout(requestContext(c), input.RefreshToken, bearerToken(c)); err != nil {
			return a.authFail(c, services.OpLogout, err)
		}

		a.metrics.RecordAuth(services.OpLogout, metrics.OutcomeSuccess)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": msgLoggedOut,
		})
	}
}

func (a *Adapter) changePassword(auth core.AuthProvider) fiber.Handler {
	return func(c fiber.Ctx) error {
		claims, ok := ClaimsFrom(c)
		if !ok {
			return a.fail(c, core.ErrMissingAuthHeader)
		}

		var input core.ChangePasswordInput
		if err := bindBody(c, &input); err != nil {
			return a.authFail(c, services.OpChangePassword, err)
		}
		if err := input.Validate(); err != nil {
			return a.authFail(c, services.OpChangePassword, err)
		}

		if err := auth.ChangePassword(requestContext(c), claims.UserID, input); err != nil {
			return a.authFail(c, services.OpChangePassword, err)
		}

		a.metrics.RecordAuth(services.OpChangePassword, metrics.OutcomeSuccess)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": msgPasswordChanged,
		})
	}
}

func (a *Adapter) getCurrentUser(users core.UserProvider) fiber.Handler {
	return func(c fiber.Ctx) error {
		claims, ok := ClaimsFrom(c)
		if !ok {
			return a.fail(c, core.ErrMissingAuthHeader)
		}

		profile, err := users.GetCurrentUser(requestContext(c), claims.UserID)
		if err != nil {
			return a.fail(c, err)
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"user": profile})
	}
}

func (a *Adapter) updateProfile(users core.UserProvider) fiber.Handler {
	return func(c fiber.Ctx) error {
		claims, ok := ClaimsFrom(c)
		if !ok {
			return a.fail(c, core.ErrMissingAuthHeader)
		}

		var upd core.ProfileUpdate
		if err := bindBody(c, &upd); err != nil {
			return a.fail(c, err)
		}
		if err := upd.Validate(); err != nil {
			return a.fail(c, err)
		}

		profile, err := users.UpdateProfile(requestContext(c), claims.UserID, upd)
		if err != nil {
			return a.fail(c, err)
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": msgProfileUpdated,
			"user":    profile,
		})
	}
}

func (a *Adapter) getUserByID(users core.UserProvider) fiber.Handler {
	return func(c fiber.Ctx) error {
		profile, err := users.GetUserByID(requestContext(c), c.Params("id"))
		if err != nil {
			return a.fail(c, err)
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"user": profile})
	}
}

func (a *Adapter) searchUsers(users core.UserProvider) fiber.Handler {
	return func(c fiber.Ctx) error {
		claims, ok := ClaimsFrom(c)
		if !ok {
			return a.fail(c, core.ErrMissingAuthHeader)
		}

		q := core.UserSearch{
			Query:  c.Query("query"),
			Limit:  fiber.Query[int](c, "limit", core.DefaultSearchLimit),
			Offset: fiber.Query[int](c, "offset", 0),
		}

		found, err := users.SearchUsers(requestContext(c), claims.UserID, q)
		if err != nil {
			return a.fail(c, err)
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"users": found})
	}
}

// authFail records the auth outcome for op and writes the error response.
func (a *Adapter) authFail(c fiber.Ctx, op string, err error) error {
	status, _ := mapError(err)
	outcome := metrics.OutcomeRejected
	if status >= fiber.StatusInternalServerError {
		outcome = metrics.OutcomeError
	}
	a.metrics.RecordAuth(op, outcome)
	return a.fail(c, err)
}

// fail maps err to a status and a client-facing message. Unexpected errors
// are logged and answered with a generic 500.
func (a *Adapter) fail(c fiber.Ctx, err error) error {
	status, message := mapError(err)
	if status == fiber.StatusInternalServerError {
		logging.LogError(c.Context(), a.logger, "request failed", err)
	}

	resp := core.ErrorResponse{Message: message}
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		resp.Errors = verr.Fields
	}
	return c.Status(status).JSON(resp)
}

// mapError maps core errors to HTTP status codes and response messages.
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrValidation):
		return fiber.StatusBadRequest, "Validation failed"
	case errors.Is(err, core.ErrInvalidBody):
		return fiber.StatusBadRequest, "Invalid request body"
	case errors.Is(err, core.ErrEmailTaken):
		return fiber.StatusBadRequest, "Email already in use"
	case errors.Is(err, core.ErrUsernameTaken):
		return fiber.StatusBadRequest, "Username already taken"
	case errors.Is(err, core.ErrRefreshTokenRequired):
		return fiber.StatusBadRequest, "Refresh token is required"

	case errors.Is(err, core.ErrInvalidCredentials):
		return fiber.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, core.ErrWrongPassword):
		return fiber.StatusUnauthorized, "Current password is incorrect"
	case errors.Is(err, core.ErrInvalidRefreshToken), errors.Is(err, core.ErrSessionNotFound):
		return fiber.StatusUnauthorized, "Invalid or expired refresh token"
	case errors.Is(err, core.ErrSessionUserNotFound):
		return fiber.StatusUnauthorized, "User not found"
	case errors.Is(err, core.ErrMissingAuthHeader):
		return fiber.StatusUnauthorized, "Authentication required"
	case errors.Is(err, core.ErrTokenExpired):
		return fiber.StatusUnauthorized, "Token expired"
	case errors.Is(err, core.ErrTokenInvalid):
		return fiber.StatusUnauthorized, "Invalid token"

	case errors.Is(err, core.ErrUserNotFound):
		return fiber.StatusNotFound, "User not found"

	default:
		return fiber.StatusInternalServerError, msgInternal
	}
}
