package usecase

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/gigwork/internal/apperror"
	"github.com/example/gigwork/internal/auth"
	"github.com/example/gigwork/internal/repository"
	"github.com/example/gigwork/internal/storage"
	"github.com/example/gigwork/internal/upload"
)

// AccountRepository defines the persistence operations for roles, admins and app users.
type AccountRepository interface {
	CreateRole(ctx context.Context, role *repository.Role) error
	ListRoles(ctx context.Context) ([]repository.Role, error)
	FindRole(ctx context.Context, id string) (*repository.Role, error)
	FindRoleByName(ctx context.Context, name string) (*repository.Role, error)
	RenameRole(ctx context.Context, id, name string) (*repository.Role, error)
	DeleteRole(ctx context.Context, id string) error

	CreateAdmin(ctx context.Context, admin *repository.Admin) error
	FindAdmin(ctx context.Context, id string) (*repository.Admin, error)
	FindAdminByEmail(ctx context.Context, email string) (*repository.Admin, error)
	ListAdmins(ctx context.Context, filter repository.AdminFilter) ([]repository.Admin, error)
	UpdateAdmin(ctx context.Context, id string, updates map[string]any) (*repository.Admin, error)
	DeleteAdmin(ctx context.Context, id string) error

	CreateUser(ctx context.Context, user *repository.User) error
	FindUser(ctx context.Context, id string) (*repository.User, error)
	FindUserByPhone(ctx context.Context, phone string) (*repository.User, error)
	UpdateUser(ctx context.Context, id string, updates map[string]any) (*repository.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// DefaultAvatar is the image of accounts registered without one.
const DefaultAvatar = "/images/avatar.jpg"

// Admin statuses.
const (
	AdminActive   = "active"
	AdminInactive = "inactive"
)

// AccountUseCase manages roles, back office admins and app users.
type AccountUseCase struct {
	repo   AccountRepository
	store  storage.ObjectStore
	issuer *auth.Issuer
	logger *zap.Logger
	newID  func() string
	now    func() time.Time
}

// NewAccountUseCase wires the account flows. newID generates primary keys.
func NewAccountUseCase(repo AccountRepository, store storage.ObjectStore, issuer *auth.Issuer, newID func() string, logger *zap.Logger) *AccountUseCase {
	return &AccountUseCase{
		repo:   repo,
		store:  store,
		issuer: issuer,
		logger: logger.Named("account_usecase"),
		newID:  newID,
		now:    time.Now,
	}
}

// Session is a signed token with the account it was issued for.
type Session struct {
	Token string `json:"token"`
	Data  any    `json:"data"`
}

func (uc *AccountUseCase) CreateRole(ctx context.Context, name string) (*repository.Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.Validation("role_name is required")
	}
	role := &repository.Role{ID: uc.newID(), Name: name}
	if err := uc.repo.CreateRole(ctx, role); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperror.Conflict("Role already exists")
		}
		return nil, apperror.Internal("Failed to create role", err)
	}
	return role, nil
}

func (uc *AccountUseCase) ListRoles(ctx context.Context) ([]repository.Role, error) {
	roles, err := uc.repo.ListRoles(ctx)
	if err != nil {
		return nil, apperror.Internal("Failed to list roles", err)
	}
	return roles, nil
}

func (uc *AccountUseCase) GetRole(ctx context.Context, id string) (*repository.Role, error) {
	role, err := uc.repo.FindRole(ctx, id)
	return role, roleError(err, "Failed to load role")
}

func (uc *AccountUseCase) RenameRole(ctx context.Context, id, name string) (*repository.Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.Validation("role_name is required")
	}
	role, err := uc.repo.RenameRole(ctx, id, name)
	return role, roleError(err, "Failed to update role")
}

// DeleteRole fails while admins still reference the role.
func (uc *AccountUseCase) DeleteRole(ctx context.Context, id string) error {
	admins, err := uc.repo.ListAdmins(ctx, repository.AdminFilter{RoleID: id})
	if err != nil {
		return apperror.Internal("Failed to delete role", err)
	}
	if len(admins) > 0 {
		return apperror.Conflict("Role is assigned to admin users")
	}
	return roleError(uc.repo.DeleteRole(ctx, id), "Failed to delete role")
}

func roleError(err error, message string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperror.NotFound("Role not found")
	case errors.Is(err, repository.ErrDuplicate):
		return apperror.Conflict("Role already exists")
	default:
		return apperror.Internal(message, err)
	}
}

// AdminRegistration is the input of RegisterAdmin.
type AdminRegistration struct {
	RoleID   string
	Name     string
	Email    string
	Password string
	Image    *upload.File
}

func (uc *AccountUseCase) RegisterAdmin(ctx context.Context, in AdminRegistration) (*repository.Admin, error) {
	if in.RoleID == "" || strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return nil, apperror.Validation("All fields (role_id, admin_name, admin_email, admin_password) are required")
	}
	if err := checkPassword(in.Password); err != nil {
		return nil, err
	}
	if _, err := uc.repo.FindRole(ctx, in.RoleID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.Validation("Invalid role_id")
		}
		return nil, apperror.Internal("Failed to register admin", err)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, apperror.Internal("Failed to register admin", err)
	}
	admin := &repository.Admin{
		ID:           uc.newID(),
		RoleID:       in.RoleID,
		Name:         strings.TrimSpace(in.Name),
		Email:        in.Email,
		PasswordHash: hash,
		Status:       AdminActive,
		Image:        DefaultAvatar,
	}
	if in.Image != nil {
		name, err := uc.upload(ctx, storage.BucketAdmins, in.Image)
		if err != nil {
			uc.logger.Warn("admin image upload failed, using default avatar", zap.Error(err))
		} else {
			admin.Image = name
		}
	}
	if err := uc.repo.CreateAdmin(ctx, admin); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperror.Conflict("Email already exists")
		}
		return nil, apperror.Internal("Failed to register admin", err)
	}
	uc.logger.Info("admin registered", zap.String("admin_id", admin.ID), zap.String("role_id", admin.RoleID))
	return admin, nil
}

// EnsureBootstrapAdmin creates the first administrator when the email is unused.
func (uc *AccountUseCase) EnsureBootstrapAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	if _, err := uc.repo.FindAdminByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	role, err := uc.repo.FindRoleByName(ctx, auth.RoleAdministrator)
	if err != nil {
		return err
	}
	_, err = uc.RegisterAdmin(ctx, AdminRegistration{
		RoleID:   role.ID,
		Name:     "Administrator",
		Email:    email,
		Password: password,
	})
	return err
}

func (uc *AccountUseCase) SignInAdmin(ctx context.Context, email, password string) (*Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, apperror.Validation("Email and password are required")
	}
	admin, err := uc.repo.FindAdminByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.Unauthorized("Invalid credentials")
	}
	if err != nil {
		return nil, apperror.Internal("Failed to sign in", err)
	}
	if !auth.CheckPassword(admin.PasswordHash, password) {
		return nil, apperror.Unauthorized("Invalid credentials")
	}
	if admin.Status != AdminActive {
		return nil, apperror.Forbidden("Your account is not active")
	}

	token, err := uc.issuer.Issue(admin.ID, admin.RoleID, auth.SystemAdmin)
	if err != nil {
		return nil, apperror.Internal("Failed to sign in", err)
	}
	return &Session{Token: token, Data: admin}, nil
}

func (uc *AccountUseCase) ListAdmins(ctx context.Context, filter repository.AdminFilter) ([]repository.Admin, error) {
	admins, err := uc.repo.ListAdmins(ctx, filter)
	if err != nil {
		return nil, apperror.Internal("Failed to list admins", err)
	}
	return admins, nil
}

func (uc *AccountUseCase) GetAdmin(ctx context.Context, id string) (*repository.Admin, error) {
	admin, err := uc.repo.FindAdmin(ctx, id)
	return admin, adminError(err, "Failed to load admin")
}

// AdminUpdate lists the admin fields to change. Nil fields are left alone.
type AdminUpdate struct {
	Name     *string      `json:"admin_name"`
	Email    *string      `json:"admin_email"`
	Password *string      `json:"admin_password"`
	Status   *string      `json:"admin_status"`
	RoleID   *string      `json:"role_id"`
	Image    *upload.File `json:"-"`
}

func (uc *AccountUseCase) UpdateAdmin(ctx context.Context, id string, in AdminUpdate) (*repository.Admin, error) {
	updates := map[string]any{}
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return nil, apperror.Validation("admin_name must not be empty")
		}
		updates["admin_name"] = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil {
		if strings.TrimSpace(*in.Email) == "" {
			return nil, apperror.Validation("admin_email must not be empty")
		}
		updates["admin_email"] = strings.ToLower(strings.TrimSpace(*in.Email))
	}
	if in.Password != nil {
		if err := checkPassword(*in.Password); err != nil {
			return nil, err
		}
		hash, err := auth.HashPassword(*in.Password)
		if err != nil {
			return nil, apperror.Internal("Failed to update admin", err)
		}
		updates["admin_password"] = hash
	}
	if in.Status != nil {
		if *in.Status != AdminActive && *in.Status != AdminInactive {
			return nil, apperror.Validation("admin_status must be active or inactive")
		}
		updates["admin_status"] = *in.Status
	}
	if in.RoleID != nil {
		if _, err := uc.repo.FindRole(ctx, *in.RoleID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperror.Validation("Invalid role_id")
			}
			return nil, apperror.Internal("Failed to update admin", err)
		}
		updates["role_id"] = *in.RoleID
	}
	if in.Image != nil {
		name, err := uc.upload(ctx, storage.BucketAdmins, in.Image)
		if err != nil {
			return nil, apperror.Internal("Failed to update admin image", err)
		}
		updates["admin_img"] = name
	}
	if len(updates) == 0 {
		return nil, apperror.Validation("No fields to update")
	}

	admin, err := uc.repo.UpdateAdmin(ctx, id, updates)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, apperror.Conflict("Email already exists")
	}
	return admin, adminError(err, "Failed to update admin")
}

func (uc *AccountUseCase) DeleteAdmin(ctx context.Context, id string) error {
	return adminError(uc.repo.DeleteAdmin(ctx, id), "Failed to delete admin")
}

func (uc *AccountUseCase) upload(ctx context.Context, bucket string, file *upload.File) (string, error) {
	return uc.store.Upload(ctx, bucket, storage.Object{
		OriginalName: file.OriginalName,
		ContentType:  file.ContentType,
		Data:         file.Data,
	})
}

func adminError(err error, message string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperror.NotFound("Admin not found")
	default:
		return apperror.Internal(message, err)
	}
}

// UserRegistration is the input of RegisterUser.
type UserRegistration struct {
	Phone     string
	Password  string
	FirstName string
	LastName  string
	BirthDate string
	Gender    string
	Country   string
	Image     *upload.File
}

var nonDigits = regexp.MustCompile(`\D`)

// CleanPhone strips every non-digit character.
func CleanPhone(phone string) string {
	return nonDigits.ReplaceAllString(phone, "")
}

func (uc *AccountUseCase) RegisterUser(ctx context.Context, in UserRegistration) (*Session, error) {
	if in.Phone == "" || in.Password == "" {
		return nil, apperror.Validation("Phone and password are required")
	}
	phone := CleanPhone(in.Phone)
	if len(phone) < 10 || len(phone) > 15 {
		return nil, apperror.Validation("Please enter a valid phone number (10-15 digits)")
	}
	if err := checkPassword(in.Password); err != nil {
		return nil, err
	}
	birthDate, err := NormalizeBirthDate(in.BirthDate, uc.now())
	if err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, apperror.Internal("Failed to register user", err)
	}
	user := &repository.User{
		ID:           uc.newID(),
		Phone:        phone,
		FirstName:    firstNonEmpty(in.FirstName, "DefaultFirst"),
		LastName:     firstNonEmpty(in.LastName, "DefaultLast"),
		BirthDate:    birthDate,
		Gender:       in.Gender,
		Country:      in.Country,
		PasswordHash: hash,
		Status:       repository.StatusActive,
		Image:        DefaultAvatar,
	}
	if in.Image != nil {
		name, err := uc.upload(ctx, storage.BucketUsers, in.Image)
		if err != nil {
			uc.logger.Warn("user image upload failed, using default avatar", zap.Error(err))
		} else {
			user.Image = name
		}
	}

	if err := uc.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperror.Conflict("Phone number already registered")
		}
		return nil, apperror.Internal("Failed to register user", err)
	}
	return uc.userSession(ctx, user)
}

func (uc *AccountUseCase) SignInUser(ctx context.Context, phone, password string) (*Session, error) {
	if phone == "" || password == "" {
		return nil, apperror.Validation("Phone number and password are required")
	}
	user, err := uc.repo.FindUserByPhone(ctx, CleanPhone(phone))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.NotFound("User not found")
	}
	if err != nil {
		return nil, apperror.Internal("Failed to sign in", err)
	}
	switch user.Status {
	case repository.StatusPending:
		return nil, apperror.Forbidden("Your account is pending approval")
	case repository.StatusBlocked:
		return nil, apperror.Forbidden("Your account is blocked")
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, apperror.Unauthorized("Invalid phone number or password")
	}
	return uc.userSession(ctx, user)
}

// App tokens carry the id of the seeded "user" role.
func (uc *AccountUseCase) userSession(ctx context.Context, user *repository.User) (*Session, error) {
	role, err := uc.repo.FindRoleByName(ctx, auth.RoleUser)
	if err != nil {
		return nil, apperror.Internal("Failed to sign in", err)
	}
	token, err := uc.issuer.Issue(user.ID, role.ID, auth.SystemApp)
	if err != nil {
		return nil, apperror.Internal("Failed to sign in", err)
	}
	return &Session{Token: token, Data: user}, nil
}

func (uc *AccountUseCase) GetUser(ctx context.Context, id string) (*repository.User, error) {
	user, err := uc.repo.FindUser(ctx, id)
	return user, userError(err, "Failed to load user")
}

func (uc *AccountUseCase) UpdateUserName(ctx context.Context, id, first, last string) (*repository.User, error) {
	first, last = strings.TrimSpace(first), strings.TrimSpace(last)
	if first == "" && last == "" {
		return nil, apperror.Validation("user_first or user_last is required")
	}
	updates := map[string]any{}
	if first != "" {
		updates["user_first"] = first
	}
	if last != "" {
		updates["user_last"] = last
	}
	user, err := uc.repo.UpdateUser(ctx, id, updates)
	return user, userError(err, "Failed to update user")
}

// UpdateUserImage overwrites the stored image when it still exists, otherwise uploads a new one.
func (uc *AccountUseCase) UpdateUserImage(ctx context.Context, id string, file *upload.File) (*repository.User, error) {
	if file == nil {
		return nil, apperror.Validation("No file uploaded")
	}
	user, err := uc.repo.FindUser(ctx, id)
	if err != nil {
		return nil, userError(err, "Failed to update user image")
	}

	obj := storage.Object{OriginalName: file.OriginalName, ContentType: file.ContentType, Data: file.Data}
	name := ""
	if user.Image != "" && user.Image != DefaultAvatar {
		exists, err := uc.store.Exists(ctx, storage.BucketUsers, user.Image)
		if err != nil {
			return nil, apperror.Internal("Failed to update user image", err)
		}
		if exists {
			if err := uc.store.Replace(ctx, storage.BucketUsers, user.Image, obj); err != nil {
				return nil, apperror.Internal("Failed to update user image", err)
			}
			name = user.Image
		}
	}
	if name == "" {
		name, err = uc.store.Upload(ctx, storage.BucketUsers, obj)
		if err != nil {
			return nil, apperror.Internal("Failed to update user image", err)
		}
	}

	if name == user.Image {
		return user, nil
	}
	updated, err := uc.repo.UpdateUser(ctx, id, map[string]any{"user_img": name})
	return updated, userError(err, "Failed to update user image")
}

// UserFieldUpdate changes one column of the caller's own account.
type UserFieldUpdate struct {
	DataType string
	IDValue  string
	Value    string
}

// MsgNoChanges is returned when an update would store the current value.
const MsgNoChanges = "No changes made (value already set)"

// userFields are the columns an app user may change through UpdateUserField.
// Identity, status and image have dedicated flows.
var userFields = map[string]bool{
	"phone":           true,
	"user_first":      true,
	"user_last":       true,
	"user_birth_date": true,
	"user_gender":     true,
	"user_country":    true,
	"user_password":   true,
}

// UpdateUserField validates and stores a single user column. callerID must own the account.
func (uc *AccountUseCase) UpdateUserField(ctx context.Context, callerID string, in UserFieldUpdate) (*repository.User, error) {
	in.DataType, in.IDValue = strings.TrimSpace(in.DataType), strings.TrimSpace(in.IDValue)
	if in.DataType == "" || in.IDValue == "" || strings.TrimSpace(in.Value) == "" {
		return nil, apperror.Validation("Missing required fields: data_type, id_value, value")
	}
	if !userFields[in.DataType] {
		return nil, apperror.Validation("Invalid update field: " + in.DataType)
	}
	if in.IDValue != callerID {
		return nil, apperror.Forbidden("You can only update your own account")
	}

	user, err := uc.repo.FindUser(ctx, in.IDValue)
	if err != nil {
		return nil, userError(err, "Failed to update user")
	}

	value := strings.TrimSpace(in.Value)
	switch in.DataType {
	case "phone":
		value = CleanPhone(value)
		if len(value) < 10 || len(value) > 15 {
			return nil, apperror.Validation("Please enter a valid phone number (10-15 digits)")
		}
	case "user_birth_date":
		if value, err = NormalizeBirthDate(value, uc.now()); err != nil {
			return nil, err
		}
	case "user_password":
		if err := checkPassword(in.Value); err != nil {
			return nil, err
		}
		if auth.CheckPassword(user.PasswordHash, in.Value) {
			return nil, apperror.Validation(MsgNoChanges)
		}
		if value, err = auth.HashPassword(in.Value); err != nil {
			return nil, apperror.Internal("Failed to update user", err)
		}
	}
	if in.DataType != "user_password" && UserColumn(user, in.DataType) == value {
		return nil, apperror.Validation(MsgNoChanges)
	}

	updated, err := uc.repo.UpdateUser(ctx, user.ID, map[string]any{in.DataType: value})
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, apperror.Conflict(in.DataType + " already exists")
	}
	return updated, userError(err, "Failed to update user")
}

// UserColumn returns the stored value of an updatable column. Passwords yield "".
func UserColumn(user *repository.User, column string) string {
	switch column {
	case "phone":
		return user.Phone
	case "user_first":
		return user.FirstName
	case "user_last":
		return user.LastName
	case "user_birth_date":
		return user.BirthDate
	case "user_gender":
		return user.Gender
	case "user_country":
		return user.Country
	}
	return ""
}

func (uc *AccountUseCase) DeleteUser(ctx context.Context, id string) error {
	return userError(uc.repo.DeleteUser(ctx, id), "Failed to delete user")
}

func userError(err error, message string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperror.NotFound("User not found")
	default:
		return apperror.Internal(message, err)
	}
}

func checkPassword(password string) error {
	switch auth.PasswordStrength(password) {
	case auth.StrengthValid:
		return nil
	case auth.StrengthTooShort:
		return apperror.Validation("The password must be at least 8 characters")
	default:
		return apperror.Validation("Your password must include at least one lowercase letter, number, symbol, or uppercase letter")
	}
}

var birthDateLayouts = []string{"2006-01-02", "02-01-2006", "02/01/2006"}

// NormalizeBirthDate accepts YYYY-MM-DD, DD-MM-YYYY or DD/MM/YYYY and returns
// YYYY-MM-DD. The holder must be between 13 and 120 years old. Empty input is allowed.
func NormalizeBirthDate(value string, now time.Time) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	var (
		date time.Time
		err  error
	)
	for _, layout := range birthDateLayouts {
		if date, err = time.Parse(layout, value); err == nil {
			break
		}
	}
	if err != nil {
		return "", apperror.Validation("Invalid birth date format. Use DD-MM-YYYY, YYYY-MM-DD, or DD/MM/YYYY")
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch {
	case date.After(today):
		return "", apperror.Validation("Birth date cannot be in the future")
	case date.Before(today.AddDate(-120, 0, 0)):
		return "", apperror.Validation("Birth date seems unrealistic")
	case date.After(today.AddDate(-13, 0, 0)):
		return "", apperror.Validation("You must be at least 13 years old to register")
	}
	return date.Format("2006-01-02"), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
