package web

import (
	"context"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-command"
	"github.com/goliatone/go-command/runner"
	goerrors "github.com/goliatone/go-errors"
	tours "github.com/goliatone/go-tours"
	"github.com/goliatone/go-tours/query"
	"github.com/google/uuid"
)

// LoginRequest payload
type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// UpdateMeRequest is the self service profile payload. Password fields are
// only decoded so they can be rejected.
type UpdateMeRequest struct {
	Name            *string `json:"name" form:"name"`
	Email           *string `json:"email" form:"email"`
	Phone           *string `json:"phone" form:"phone"`
	Password        *string `json:"password" form:"password"`
	PasswordConfirm *string `json:"passwordConfirm" form:"passwordConfirm"`
}

// Validate will run validation rules
func (r UpdateMeRequest) Validate() error {
	if r.Password != nil || r.PasswordConfirm != nil {
		return tours.NewValidationError("This route is not for password updates. Please use /updateMyPassword.")
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.NilOrNotEmpty, is.EmailFormat),
	)
}

type UserController struct {
	auth     *RouteAuthenticator
	auther   tours.Authenticator
	repo     tours.RepositoryManager
	commands *runner.Handler
	register command.Commander[tours.RegisterUserMessage]
	forgot   command.Commander[tours.InitializePasswordResetMessage]
	reset    command.Commander[tours.FinalizePasswordResetMessage]
	update   command.Commander[tours.UpdatePasswordMessage]
	activity tours.ActivitySink
	logger   tours.Logger
	// PublicURL is the base used for links in emails
	PublicURL string
	Factory   *Factory[*tours.User]
}

func (u *UserController) Signup(c *fiber.Ctx) error {
	msg := tours.RegisterUserMessage{}
	if err := bodyParser(c, &msg); err != nil {
		return err
	}
	msg.AccountURL = u.baseURL(c) + "/me"

	var created *tours.User
	msg.OnResponse = func(user *tours.User) { created = user }

	if err := runCommand(c.UserContext(), u.commands, u.register, msg); err != nil {
		return err
	}

	token, err := u.auther.IssueToken(created)
	if err != nil {
		return err
	}
	return u.auth.SendToken(c, http.StatusCreated, created, token)
}

func (u *UserController) Login(c *fiber.Ctx) error {
	payload := LoginRequest{}
	if err := bodyParser(c, &payload); err != nil {
		return err
	}

	user, token, err := u.auther.Login(c.UserContext(), payload.Email, payload.Password)
	if err != nil {
		return err
	}
	return u.auth.SendToken(c, http.StatusOK, user, token)
}

func (u *UserController) Logout(c *fiber.Ctx) error {
	return u.auth.Logout(c)
}

func (u *UserController) ForgotPassword(c *fiber.Ctx) error {
	msg := tours.InitializePasswordResetMessage{}
	if err := bodyParser(c, &msg); err != nil {
		return err
	}
	msg.BaseURL = u.baseURL(c)

	if err := runCommand(c.UserContext(), u.commands, u.forgot, msg); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "Token sent to email!",
	})
}

func (u *UserController) ResetPassword(c *fiber.Ctx) error {
	msg := tours.FinalizePasswordResetMessage{}
	if err := bodyParser(c, &msg); err != nil {
		return err
	}
	msg.Token = c.Params("token")

	var (
		user  *tours.User
		token string
	)
	msg.OnResponse = func(usr *tours.User, tkn string) { user, token = usr, tkn }

	if err := runCommand(c.UserContext(), u.commands, u.reset, msg); err != nil {
		return err
	}
	return u.auth.SendToken(c, http.StatusOK, user, token)
}

func (u *UserController) UpdateMyPassword(c *fiber.Ctx) error {
	msg := tours.UpdatePasswordMessage{}
	if err := bodyParser(c, &msg); err != nil {
		return err
	}
	me := currentUser(c)
	if me == nil {
		return tours.ErrUnauthenticated
	}
	msg.UserID = me.ID

	var (
		user  *tours.User
		token string
	)
	msg.OnResponse = func(usr *tours.User, tkn string) { user, token = usr, tkn }

	if err := runCommand(c.UserContext(), u.commands, u.update, msg); err != nil {
		return err
	}
	return u.auth.SendToken(c, http.StatusOK, user, token)
}

// GetMe points the id param at the current user
func (u *UserController) GetMe(c *fiber.Ctx) error {
	me := currentUser(c)
	if me == nil {
		return tours.ErrUnauthenticated
	}
	return sendData(c, http.StatusOK, me)
}

func (u *UserController) UpdateMe(c *fiber.Ctx) error {
	me := currentUser(c)
	if me == nil {
		return tours.ErrUnauthenticated
	}

	payload := UpdateMeRequest{}
	if err := bodyParser(c, &payload); err != nil {
		return err
	}
	if err := payload.Validate(); err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.FromOzzoValidation(err, "Invalid input data").WithCode(http.StatusBadRequest)
	}

	user, err := u.repo.Users().UpdateProfile(c.UserContext(), me.ID, tours.UserProfile{
		Name:  payload.Name,
		Email: payload.Email,
		Phone: payload.Phone,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"status": "success",
		"data":   fiber.Map{"user": user},
	})
}

func (u *UserController) DeleteMe(c *fiber.Ctx) error {
	me := currentUser(c)
	if me == nil {
		return tours.ErrUnauthenticated
	}
	if err := u.repo.Users().Deactivate(c.UserContext(), me.ID); err != nil {
		return err
	}
	tours.RecordActivity(c.UserContext(), u.activity, u.logger, tours.ActivityEventAccountDeactivated, me.ID.String(), nil)
	return sendNoContent(c)
}

// CreateUser is not supported, accounts come from signup
func (u *UserController) CreateUser(c *fiber.Ctx) error {
	return goerrors.New("This route is not defined! Please use /signup instead", goerrors.CategoryOperation).
		WithCode(http.StatusInternalServerError)
}

func (u *UserController) baseURL(c *fiber.Ctx) string {
	if u.PublicURL != "" {
		return u.PublicURL
	}
	return c.BaseURL()
}

// userStore lets the handler factory drive admin user management
type userStore struct {
	users tours.Users
}

func (s userStore) List(ctx context.Context, d query.Descriptor) ([]*tours.User, int, error) {
	return s.users.List(ctx, d)
}

func (s userStore) Schema() *query.Schema {
	return s.users.Schema()
}

func (s userStore) GetByID(ctx context.Context, id uuid.UUID) (*tours.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s userStore) Create(ctx context.Context, user *tours.User) (*tours.User, error) {
	return s.users.Register(ctx, user)
}

func (s userStore) Update(ctx context.Context, user *tours.User) (*tours.User, error) {
	role := user.Role
	return s.users.UpdateByAdmin(ctx, user.ID, tours.UserAdminUpdate{
		UserProfile: tours.UserProfile{
			Name:  &user.Name,
			Email: &user.Email,
			Phone: &user.Phone,
		},
		Role: &role,
	})
}

func (s userStore) Delete(ctx context.Context, id uuid.UUID) error {
	return s.users.Delete(ctx, id)
}
