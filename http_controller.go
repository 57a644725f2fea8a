package auth

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/goliatone/go-router"
)

type AuthControllerRoutes struct {
	Signup         string
	Login          string
	Refresh        string
	Logout         string
	ForgotPassword string
	ResetPassword  string
	Me             string
	User           string
}

type AuthController struct {
	Logger       Logger
	Auther       *Auther
	Routes       *AuthControllerRoutes
	Protected    router.MiddlewareFunc
	ErrorHandler router.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Logger = normalizeLogger(logger)
		return c
	}
}

func WithAuther(auther *Auther) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = auther
		return c
	}
}

// WithProtectedRoute sets the middleware guarding the user routes, usually
// the bearer token middleware.
func WithProtectedRoute(mw router.MiddlewareFunc) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Protected = mw
		return c
	}
}

func WithControllerErrorHandler(eh router.ErrorHandler) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.ErrorHandler = eh
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defLogger{},
		Routes: &AuthControllerRoutes{
			Signup:         "/auth/signup",
			Login:          "/auth/login",
			Refresh:        "/auth/refresh",
			Logout:         "/auth/logout",
			ForgotPassword: "/auth/forgot-password",
			ResetPassword:  "/auth/reset-password",
			Me:             "/users/me",
			User:           "/users",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Auther == nil {
		panic("Missing Auther in auth controller...")
	}

	if c.Protected == nil {
		panic("Missing protected route middleware in auth controller...")
	}

	if c.ErrorHandler == nil {
		c.ErrorHandler = NewErrorHandler(c.Logger)
	}

	return c
}

// RegisterAuthRoutes mounts the account routes on app.
func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) *AuthController {
	controller := NewAuthController(opts...)

	app.Post(controller.Routes.Signup, controller.Handle(controller.SignupPost)).
		SetName("auth.signup")
	app.Post(controller.Routes.Login, controller.Handle(controller.LoginPost)).
		SetName("auth.login")
	app.Post(controller.Routes.Refresh, controller.Handle(controller.RefreshPost)).
		SetName("auth.refresh")
	app.Post(controller.Routes.Logout, controller.Handle(controller.LogoutPost)).
		SetName("auth.logout")
	app.Post(controller.Routes.ForgotPassword, controller.Handle(controller.ForgotPasswordPost)).
		SetName("auth.forgot-password")
	app.Post(fmt.Sprintf("%s/:resetToken", controller.Routes.ResetPassword), controller.Handle(controller.ResetPasswordPost)).
		SetName("auth.reset-password")

	app.Get(controller.Routes.Me, controller.Handle(controller.MeGet), controller.Protected).
		SetName("users.me")
	app.Get(fmt.Sprintf("%s/:id", controller.Routes.User), controller.Handle(controller.UserGet), controller.Protected).
		SetName("users.get")

	return controller
}

// Handle renders any error returned by h through the controller error handler.
func (a *AuthController) Handle(h router.HandlerFunc) router.HandlerFunc {
	return func(ctx router.Context) error {
		if err := h(ctx); err != nil {
			return a.ErrorHandler(ctx, err)
		}
		return nil
	}
}

func (a *AuthController) SignupPost(ctx router.Context) error {
	payload := new(SignupRequest)
	if err := a.bind(ctx, payload); err != nil {
		return err
	}

	user, err := a.Auther.Signup(ctx.Context(), *payload)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusCreated, map[string]any{
		"message": "User created successfully",
		"user":    ToPublicProfile(user),
	})
}

func (a *AuthController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)
	if err := a.bind(ctx, payload); err != nil {
		return err
	}

	if err := payload.Validate(); err != nil {
		return validationError(err)
	}

	pair, err := a.Auther.Login(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, pair)
}

func (a *AuthController) RefreshPost(ctx router.Context) error {
	payload := new(RefreshRequest)
	if err := a.bind(ctx, payload); err != nil {
		return err
	}

	if err := payload.Validate(); err != nil {
		return validationError(err)
	}

	pair, err := a.Auther.Refresh(ctx.Context(), payload.RefreshToken)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, pair)
}

func (a *AuthController) LogoutPost(ctx router.Context) error {
	payload := new(RefreshRequest)
	if err := a.bind(ctx, payload); err != nil {
		return err
	}

	if err := payload.Validate(); err != nil {
		return validationError(err)
	}

	if err := a.Auther.Logout(ctx.Context(), payload.RefreshToken); err != nil {
		return err
	}

	return ctx.Status(http.StatusNoContent).SendString("")
}

func (a *AuthController) ForgotPasswordPost(ctx router.Context) error {
	payload := new(ForgotPasswordRequest)
	if err := a.bind(ctx, payload); err != nil {
		return err
	}

	if err := payload.Validate(); err != nil {
		return validationError(err)
	}

	if err := a.Auther.ForgotPassword(ctx.Context(), payload.Email); err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"message": "If the email is registered, a password reset link has been sent",
	})
}

func (a *AuthController) ResetPasswordPost(ctx router.Context) error {
	payload := new(ResetPasswordRequest)
	if err := a.bind(ctx, payload); err != nil {
		return err
	}
	payload.ResetToken = ctx.Param("resetToken", "")

	if err := a.Auther.ResetPassword(ctx.Context(), *payload); err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"message": "Password has been reset successfully",
	})
}

func (a *AuthController) MeGet(ctx router.Context) error {
	identity, ok := IdentityFromContext(ctx.Context())
	if !ok {
		return ErrTokenInvalid
	}
	return a.sendProfile(ctx, identity.UserID)
}

func (a *AuthController) UserGet(ctx router.Context) error {
	id := ctx.Param("id", "")
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound.Clone().WithMetadata(map[string]any{"id": id})
	}
	return a.sendProfile(ctx, id)
}

func (a *AuthController) sendProfile(ctx router.Context, id string) error {
	user, err := a.Auther.Profile(ctx.Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"user": ToPublicProfile(user),
	})
}

func (a *AuthController) bind(ctx router.Context, out any) error {
	if err := ctx.Bind(out); err != nil {
		a.Logger.Warn("failed to parse request body", "path", ctx.Path(), "error", err)
		e := wrapKind(ErrValidationFailed, err, nil)
		e.Message = "failed to parse request body"
		return e
	}
	return nil
}
