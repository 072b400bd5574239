package tours

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-tours/query"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the user store. Every lookup ignores inactive users.
type Users interface {
	UserFinder

	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByResetTokenHash(ctx context.Context, hash string) (*User, error)
	List(ctx context.Context, d query.Descriptor) ([]*User, int, error)
	// Schema maps API field names of the model for projections
	Schema() *query.Schema

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)

	SetPasswordResetTx(ctx context.Context, tx bun.IDB, id uuid.UUID, hash string, expires time.Time) error
	ClearPasswordResetTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	SetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string, changedAt time.Time) error
	ConsumeResetTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, resetHash, passwordHash string, changedAt time.Time) error

	UpdateProfile(ctx context.Context, id uuid.UUID, profile UserProfile) (*User, error)
	UpdateByAdmin(ctx context.Context, id uuid.UUID, update UserAdminUpdate) (*User, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// UserProfile is the self service subset of user fields
type UserProfile struct {
	Name  *string
	Email *string
	Phone *string
}

// UserAdminUpdate is what an admin may change on a user
type UserAdminUpdate struct {
	UserProfile
	Role   *UserRole
	Active *bool
}

type users struct {
	base   repository.Repository[*User]
	db     *bun.DB
	schema *query.Schema
}

var _ Users = (*users)(nil)

func (a *users) Schema() *query.Schema {
	return a.schema
}

func NewUsersRepository(db *bun.DB) Users {
	base := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{
		base:   base,
		db:     db,
		schema: query.SchemaFor(db, (*User)(nil)),
	}
}

func (a *users) activeSelect(db bun.IDB, user *User) *bun.SelectQuery {
	return db.NewSelect().Model(user).Where("?TableAlias.active = ?", true)
}

func (a *users) GetActiveByEmail(ctx context.Context, email string) (*User, error) {
	user := &User{}
	err := a.activeSelect(a.db, user).
		Where("?TableAlias.email = ?", NormalizeEmail(email)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, translateStoreError(err, "user")
	}
	return user, nil
}

func (a *users) GetActiveByID(ctx context.Context, id uuid.UUID) (*User, error) {
	user, err := a.base.GetByID(ctx, id.String())
	if err != nil {
		return nil, translateStoreError(err, "user")
	}
	if user == nil || !user.Active {
		return nil, NewNotFound("user")
	}
	return user, nil
}

func (a *users) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return a.GetActiveByID(ctx, id)
}

// GetByResetTokenHash finds the user holding hash. Expiry is checked by
// the caller.
func (a *users) GetByResetTokenHash(ctx context.Context, hash string) (*User, error) {
	if hash == "" {
		return nil, NewNotFound("user")
	}
	user := &User{}
	err := a.activeSelect(a.db, user).
		Where("?TableAlias.password_reset_token = ?", hash).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, translateStoreError(err, "user")
	}
	return user, nil
}

func (a *users) List(ctx context.Context, d query.Descriptor) ([]*User, int, error) {
	records := []*User{}
	q := d.Apply(a.db.NewSelect().Model(&records), a.schema).
		Where("?TableAlias.active = ?", true)

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, translateStoreError(err, "user")
	}
	return records, total, nil
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	prepareUserDefaults(user)
	created, err := a.base.CreateTx(ctx, tx, user)
	if err != nil {
		return nil, translateStoreError(err, "user")
	}
	return created, nil
}

func (a *users) SetPasswordResetTx(ctx context.Context, tx bun.IDB, id uuid.UUID, hash string, expires time.Time) error {
	expires = expires.UTC()
	return a.updateColumns(ctx, tx, &User{
		ID:                   id,
		PasswordResetToken:   hash,
		PasswordResetExpires: &expires,
	}, "password_reset_token", "password_reset_expires")
}

func (a *users) ClearPasswordResetTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	return a.updateColumns(ctx, tx, &User{ID: id}, "password_reset_token", "password_reset_expires")
}

// SetPasswordTx stores a new hash, stamps the change one second in the
// past so a token minted right after still validates, and drops any
// pending reset.
func (a *users) SetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string, changedAt time.Time) error {
	stamp := changedAt.Add(-time.Second).UTC()
	return a.updateColumns(ctx, tx, &User{
		ID:                id,
		PasswordHash:      passwordHash,
		PasswordChangedAt: &stamp,
	}, "password_hash", "password_changed_at", "password_reset_token", "password_reset_expires")
}

// ConsumeResetTokenTx is SetPasswordTx conditioned on the user still
// holding resetHash. A token that was already used yields
// ErrInvalidOrExpiredToken.
func (a *users) ConsumeResetTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, resetHash, passwordHash string, changedAt time.Time) error {
	if resetHash == "" {
		return ErrInvalidOrExpiredToken
	}
	stamp := changedAt.Add(-time.Second).UTC()
	err := a.updateColumnsWhere(ctx, tx, &User{
		ID:                id,
		PasswordHash:      passwordHash,
		PasswordChangedAt: &stamp,
	}, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Where("?TableAlias.password_reset_token = ?", resetHash)
	}, "password_hash", "password_changed_at", "password_reset_token", "password_reset_expires")
	if goerrors.IsNotFound(err) {
		return ErrInvalidOrExpiredToken
	}
	return err
}

func (a *users) UpdateProfile(ctx context.Context, id uuid.UUID, profile UserProfile) (*User, error) {
	return a.UpdateByAdmin(ctx, id, UserAdminUpdate{UserProfile: profile})
}

func (a *users) UpdateByAdmin(ctx context.Context, id uuid.UUID, update UserAdminUpdate) (*User, error) {
	user, err := a.GetActiveByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var columns []string
	if update.Name != nil {
		user.Name = *update.Name
		columns = append(columns, "name")
	}
	if update.Email != nil {
		user.Email = NormalizeEmail(*update.Email)
		columns = append(columns, "email")
	}
	if update.Phone != nil {
		phone, err := NormalizePhone(*update.Phone)
		if err != nil {
			return nil, err
		}
		user.Phone = phone
		columns = append(columns, "phone_number")
	}
	if update.Role != nil {
		user.Role = *update.Role
		columns = append(columns, "role")
	}
	if update.Active != nil {
		user.Active = *update.Active
		columns = append(columns, "active")
	}

	if err := ValidateUser(user); err != nil {
		return nil, err
	}

	if len(columns) > 0 {
		if err := a.updateColumns(ctx, a.db, user, columns...); err != nil {
			return nil, err
		}
	}
	return user, nil
}

func (a *users) Deactivate(ctx context.Context, id uuid.UUID) error {
	return a.updateColumns(ctx, a.db, &User{ID: id, Active: false}, "active")
}

func (a *users) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := a.db.NewDelete().Model((*User)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return translateStoreError(err, "user")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return NewNotFound("user")
	}
	return nil
}

func (a *users) updateColumns(ctx context.Context, tx bun.IDB, user *User, columns ...string) error {
	return a.updateColumnsWhere(ctx, tx, user, nil, columns...)
}

func (a *users) updateColumnsWhere(ctx context.Context, tx bun.IDB, user *User, where func(*bun.UpdateQuery) *bun.UpdateQuery, columns ...string) error {
	user.UpdatedAt = time.Now().UTC()
	columns = append(columns, "updated_at")

	q := tx.NewUpdate().
		Model(user).
		Column(columns...).
		WherePK().
		Where("?TableAlias.active = ?", true)
	if where != nil {
		q = where(q)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return translateStoreError(err, "user")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return NewNotFound("user")
	}
	return nil
}

func prepareUserDefaults(user *User) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.Email = NormalizeEmail(user.Email)
	if user.Role == "" {
		user.Role = RoleUser
	}
	if user.Photo == "" {
		user.Photo = DefaultUserPhoto
	}
	user.Active = true
	prepareTimestamps(&user.CreatedAt, &user.UpdatedAt)
}
