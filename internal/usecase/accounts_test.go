package usecase

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/gigwork/internal/apperror"
	"github.com/example/gigwork/internal/auth"
	"github.com/example/gigwork/internal/repository"
	"github.com/example/gigwork/internal/storage"
	"github.com/example/gigwork/internal/upload"
)

const strongPassword = "Sup3r$ecret"

func newAccountFixture(t *testing.T) (*AccountUseCase, *memoryAccounts, *fakeStore, *auth.Issuer) {
	t.Helper()
	repo := newMemoryAccounts(
		repository.Role{ID: "role-administrator", Name: auth.RoleAdministrator},
		repository.Role{ID: "role-user", Name: auth.RoleUser},
	)
	store := newFakeStore()
	issuer := auth.NewIssuer("admin-secret", "app-secret", "gigwork", time.Hour)
	uc := NewAccountUseCase(repo, store, issuer, sequentialIDs("id"), zap.NewNop())
	uc.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return uc, repo, store, issuer
}

func requireStatus(t *testing.T, err error, status int, message string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperror.As(err)
	require.True(t, ok, "expected apperror, got %T", err)
	assert.Equal(t, status, appErr.Status)
	if message != "" {
		assert.Equal(t, message, appErr.Message)
	}
}

func TestCreateRoleRejectsDuplicates(t *testing.T) {
	uc, _, _, _ := newAccountFixture(t)
	ctx := context.Background()

	role, err := uc.CreateRole(ctx, "  reviewer ")
	require.NoError(t, err)
	assert.Equal(t, "reviewer", role.Name)

	_, err = uc.CreateRole(ctx, "reviewer")
	requireStatus(t, err, http.StatusConflict, "Role already exists")

	_, err = uc.CreateRole(ctx, " ")
	requireStatus(t, err, http.StatusBadRequest, "")
}

func TestDeleteRoleInUse(t *testing.T) {
	uc, _, _, _ := newAccountFixture(t)
	ctx := context.Background()

	_, err := uc.RegisterAdmin(ctx, AdminRegistration{RoleID: "role-administrator", Name: "Root", Email: "root@example.com", Password: strongPassword})
	require.NoError(t, err)

	requireStatus(t, uc.DeleteRole(ctx, "role-administrator"), http.StatusConflict, "")
	requireStatus(t, uc.DeleteRole(ctx, "missing"), http.StatusNotFound, "Role not found")
	require.NoError(t, uc.DeleteRole(ctx, "role-user"))
}

func TestRegisterAdminValidation(t *testing.T) {
	tests := []struct {
		name    string
		in      AdminRegistration
		status  int
		message string
	}{
		{
			name:    "missing fields",
			in:      AdminRegistration{Email: "a@example.com"},
			status:  http.StatusBadRequest,
			message: "All fields (role_id, admin_name, admin_email, admin_password) are required",
		},
		{
			name:    "short password",
			in:      AdminRegistration{RoleID: "role-administrator", Name: "A", Email: "a@example.com", Password: "Ab1!"},
			status:  http.StatusBadRequest,
			message: "The password must be at least 8 characters",
		},
		{
			name:    "weak password",
			in:      AdminRegistration{RoleID: "role-administrator", Name: "A", Email: "a@example.com", Password: "alllowercase"},
			status:  http.StatusBadRequest,
			message: "Your password must include at least one lowercase letter, number, symbol, or uppercase letter",
		},
		{
			name:    "unknown role",
			in:      AdminRegistration{RoleID: "nope", Name: "A", Email: "a@example.com", Password: strongPassword},
			status:  http.StatusBadRequest,
			message: "Invalid role_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc, _, _, _ := newAccountFixture(t)
			_, err := uc.RegisterAdmin(context.Background(), tt.in)
			requireStatus(t, err, tt.status, tt.message)
		})
	}
}

func TestRegisterAndSignInAdmin(t *testing.T) {
	uc, _, _, issuer := newAccountFixture(t)
	ctx := context.Background()

	admin, err := uc.RegisterAdmin(ctx, AdminRegistration{RoleID: "role-administrator", Name: "Root", Email: "Root@Example.com", Password: strongPassword})
	require.NoError(t, err)
	assert.Equal(t, DefaultAvatar, admin.Image)
	assert.NotEqual(t, strongPassword, admin.PasswordHash)

	_, err = uc.RegisterAdmin(ctx, AdminRegistration{RoleID: "role-administrator", Name: "Again", Email: "root@example.com", Password: strongPassword})
	requireStatus(t, err, http.StatusConflict, "Email already exists")

	_, err = uc.SignInAdmin(ctx, "root@example.com", "wrong")
	requireStatus(t, err, http.StatusUnauthorized, "Invalid credentials")
	_, err = uc.SignInAdmin(ctx, "nobody@example.com", strongPassword)
	requireStatus(t, err, http.StatusUnauthorized, "Invalid credentials")

	session, err := uc.SignInAdmin(ctx, "ROOT@example.com", strongPassword)
	require.NoError(t, err)
	claims, err := issuer.Parse(session.Token, auth.SystemAdmin)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, claims.ID)
	assert.Equal(t, "role-administrator", claims.Role)
}

func TestSignInAdminInactive(t *testing.T) {
	uc, _, _, _ := newAccountFixture(t)
	ctx := context.Background()

	admin, err := uc.RegisterAdmin(ctx, AdminRegistration{RoleID: "role-administrator", Name: "Root", Email: "root@example.com", Password: strongPassword})
	require.NoError(t, err)
	status := AdminInactive
	_, err = uc.UpdateAdmin(ctx, admin.ID, AdminUpdate{Status: &status})
	require.NoError(t, err)

	_, err = uc.SignInAdmin(ctx, "root@example.com", strongPassword)
	requireStatus(t, err, http.StatusForbidden, "")
}

func TestUpdateAdmin(t *testing.T) {
	uc, _, _, _ := newAccountFixture(t)
	ctx := context.Background()

	admin, err := uc.RegisterAdmin(ctx, AdminRegistration{RoleID: "role-administrator", Name: "Root", Email: "root@example.com", Password: strongPassword})
	require.NoError(t, err)

	_, err = uc.UpdateAdmin(ctx, admin.ID, AdminUpdate{})
	requireStatus(t, err, http.StatusBadRequest, "No fields to update")

	bogus := "suspended"
	_, err = uc.UpdateAdmin(ctx, admin.ID, AdminUpdate{Status: &bogus})
	requireStatus(t, err, http.StatusBadRequest, "")

	name, role := "Operator", "role-user"
	updated, err := uc.UpdateAdmin(ctx, admin.ID, AdminUpdate{Name: &name, RoleID: &role})
	require.NoError(t, err)
	assert.Equal(t, "Operator", updated.Name)
	assert.Equal(t, "role-user", updated.RoleID)

	_, err = uc.UpdateAdmin(ctx, "missing", AdminUpdate{Name: &name})
	requireStatus(t, err, http.StatusNotFound, "Admin not found")
}

func TestAdminImages(t *testing.T) {
	uc, _, store, _ := newAccountFixture(t)
	ctx := context.Background()

	admin, err := uc.RegisterAdmin(ctx, AdminRegistration{
		RoleID:   "role-administrator",
		Name:     "Root",
		Email:    "root@example.com",
		Password: strongPassword,
		Image:    &upload.File{OriginalName: "root.png", ContentType: "image/png", Data: []byte("png")},
	})
	require.NoError(t, err)
	assert.Equal(t, "1-root.png", admin.Image)

	updated, err := uc.UpdateAdmin(ctx, admin.ID, AdminUpdate{Image: &upload.File{OriginalName: "new.png", Data: []byte("new")}})
	require.NoError(t, err)
	assert.Equal(t, "2-new.png", updated.Image)
	assert.Equal(t, []string{storage.BucketAdmins + "/1-root.png", storage.BucketAdmins + "/2-new.png"}, store.uploads)

	store.failFor[storage.BucketAdmins] = true
	other, err := uc.RegisterAdmin(ctx, AdminRegistration{
		RoleID:   "role-administrator",
		Name:     "Other",
		Email:    "other@example.com",
		Password: strongPassword,
		Image:    &upload.File{OriginalName: "other.png", Data: []byte("png")},
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultAvatar, other.Image)

	_, err = uc.UpdateAdmin(ctx, admin.ID, AdminUpdate{Image: &upload.File{OriginalName: "x.png"}})
	requireStatus(t, err, http.StatusInternalServerError, "Failed to update admin image")
}

func TestEnsureBootstrapAdminIsIdempotent(t *testing.T) {
	uc, repo, _, _ := newAccountFixture(t)
	ctx := context.Background()

	require.NoError(t, uc.EnsureBootstrapAdmin(ctx, "boot@example.com", strongPassword))
	require.NoError(t, uc.EnsureBootstrapAdmin(ctx, "boot@example.com", strongPassword))
	require.NoError(t, uc.EnsureBootstrapAdmin(ctx, "", ""))
	assert.Len(t, repo.admins, 1)
}

func TestRegisterUser(t *testing.T) {
	uc, repo, store, issuer := newAccountFixture(t)
	ctx := context.Background()

	session, err := uc.RegisterUser(ctx, UserRegistration{
		Phone:     "+66 (81) 234-5678",
		Password:  strongPassword,
		BirthDate: "15/03/1990",
		Image:     &upload.File{OriginalName: "me.png", ContentType: "image/png", Data: []byte("png")},
	})
	require.NoError(t, err)

	user := session.Data.(*repository.User)
	assert.Equal(t, "66812345678", user.Phone)
	assert.Equal(t, "DefaultFirst", user.FirstName)
	assert.Equal(t, "DefaultLast", user.LastName)
	assert.Equal(t, "1990-03-15", user.BirthDate)
	assert.Equal(t, repository.StatusActive, user.Status)
	assert.Equal(t, "1-me.png", user.Image)
	assert.Equal(t, []string{storage.BucketUsers + "/1-me.png"}, store.uploads)
	assert.Len(t, repo.users, 1)

	claims, err := issuer.Parse(session.Token, auth.SystemApp)
	require.NoError(t, err)
	assert.Equal(t, "role-user", claims.Role)

	_, err = uc.RegisterUser(ctx, UserRegistration{Phone: "66812345678", Password: strongPassword})
	requireStatus(t, err, http.StatusConflict, "Phone number already registered")
}

func TestRegisterUserValidation(t *testing.T) {
	uc, _, store, _ := newAccountFixture(t)
	ctx := context.Background()

	_, err := uc.RegisterUser(ctx, UserRegistration{Phone: "12345", Password: strongPassword})
	requireStatus(t, err, http.StatusBadRequest, "Please enter a valid phone number (10-15 digits)")

	_, err = uc.RegisterUser(ctx, UserRegistration{Phone: "0812345678"})
	requireStatus(t, err, http.StatusBadRequest, "Phone and password are required")

	_, err = uc.RegisterUser(ctx, UserRegistration{Phone: "0812345678", Password: "password"})
	requireStatus(t, err, http.StatusBadRequest, "")

	store.failFor[storage.BucketUsers] = true
	session, err := uc.RegisterUser(ctx, UserRegistration{
		Phone:    "0812345678",
		Password: strongPassword,
		Image:    &upload.File{OriginalName: "me.png", Data: []byte("png")},
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultAvatar, session.Data.(*repository.User).Image)
}

func TestSignInUser(t *testing.T) {
	uc, repo, _, _ := newAccountFixture(t)
	ctx := context.Background()

	_, err := uc.RegisterUser(ctx, UserRegistration{Phone: "0812345678", Password: strongPassword})
	require.NoError(t, err)

	_, err = uc.SignInUser(ctx, "081-234-5678", strongPassword)
	require.NoError(t, err)

	_, err = uc.SignInUser(ctx, "0812345678", "Wr0ng!pass")
	requireStatus(t, err, http.StatusUnauthorized, "Invalid phone number or password")

	_, err = uc.SignInUser(ctx, "0899999999", strongPassword)
	requireStatus(t, err, http.StatusNotFound, "User not found")

	for _, u := range repo.users {
		u.Status = repository.StatusPending
	}
	_, err = uc.SignInUser(ctx, "0812345678", strongPassword)
	requireStatus(t, err, http.StatusForbidden, "Your account is pending approval")

	for _, u := range repo.users {
		u.Status = repository.StatusBlocked
	}
	_, err = uc.SignInUser(ctx, "0812345678", strongPassword)
	requireStatus(t, err, http.StatusForbidden, "Your account is blocked")
}

func TestUpdateUserImageReplacesExistingObject(t *testing.T) {
	uc, _, store, _ := newAccountFixture(t)
	ctx := context.Background()

	session, err := uc.RegisterUser(ctx, UserRegistration{
		Phone:    "0812345678",
		Password: strongPassword,
		Image:    &upload.File{OriginalName: "old.png", Data: []byte("old")},
	})
	require.NoError(t, err)
	user := session.Data.(*repository.User)

	updated, err := uc.UpdateUserImage(ctx, user.ID, &upload.File{OriginalName: "new.png", Data: []byte("new")})
	require.NoError(t, err)
	assert.Equal(t, "1-old.png", updated.Image)
	assert.Equal(t, []string{storage.BucketUsers + "/1-old.png"}, store.replaced)

	data, err := store.Download(ctx, storage.BucketUsers, "1-old.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), data)
}

func TestUpdateUserImageUploadsWhenMissing(t *testing.T) {
	uc, _, store, _ := newAccountFixture(t)
	ctx := context.Background()

	session, err := uc.RegisterUser(ctx, UserRegistration{Phone: "0812345678", Password: strongPassword})
	require.NoError(t, err)
	user := session.Data.(*repository.User)

	updated, err := uc.UpdateUserImage(ctx, user.ID, &upload.File{OriginalName: "new.png", Data: []byte("new")})
	require.NoError(t, err)
	assert.Equal(t, "1-new.png", updated.Image)
	assert.Empty(t, store.replaced)

	_, err = uc.UpdateUserImage(ctx, "missing", &upload.File{OriginalName: "x.png"})
	requireStatus(t, err, http.StatusNotFound, "User not found")
}

func TestUpdateUserName(t *testing.T) {
	uc, _, _, _ := newAccountFixture(t)
	ctx := context.Background()

	session, err := uc.RegisterUser(ctx, UserRegistration{Phone: "0812345678", Password: strongPassword})
	require.NoError(t, err)
	id := session.Data.(*repository.User).ID

	user, err := uc.UpdateUserName(ctx, id, "Anna", "")
	require.NoError(t, err)
	assert.Equal(t, "Anna", user.FirstName)
	assert.Equal(t, "DefaultLast", user.LastName)

	_, err = uc.UpdateUserName(ctx, id, " ", "")
	requireStatus(t, err, http.StatusBadRequest, "")
}

func TestUpdateUserField(t *testing.T) {
	uc, repo, _, _ := newAccountFixture(t)
	ctx := context.Background()

	session, err := uc.RegisterUser(ctx, UserRegistration{Phone: "0812345678", Password: strongPassword, FirstName: "Anna"})
	require.NoError(t, err)
	id := session.Data.(*repository.User).ID
	_, err = uc.RegisterUser(ctx, UserRegistration{Phone: "0899999999", Password: strongPassword})
	require.NoError(t, err)

	tests := []struct {
		name    string
		caller  string
		in      UserFieldUpdate
		status  int
		message string
		check   func(t *testing.T, u *repository.User)
	}{
		{name: "missing value", caller: id, in: UserFieldUpdate{DataType: "user_first", IDValue: id}, status: http.StatusBadRequest, message: "Missing required fields: data_type, id_value, value"},
		{name: "status is not updatable", caller: id, in: UserFieldUpdate{DataType: "user_status", IDValue: id, Value: "active"}, status: http.StatusBadRequest, message: "Invalid update field: user_status"},
		{name: "unknown column", caller: id, in: UserFieldUpdate{DataType: "is_admin", IDValue: id, Value: "1"}, status: http.StatusBadRequest, message: "Invalid update field: is_admin"},
		{name: "other account", caller: "someone-else", in: UserFieldUpdate{DataType: "user_first", IDValue: id, Value: "Eve"}, status: http.StatusForbidden},
		{name: "unchanged value", caller: id, in: UserFieldUpdate{DataType: "user_first", IDValue: id, Value: " Anna "}, status: http.StatusBadRequest, message: MsgNoChanges},
		{name: "short phone", caller: id, in: UserFieldUpdate{DataType: "phone", IDValue: id, Value: "123"}, status: http.StatusBadRequest, message: "Please enter a valid phone number (10-15 digits)"},
		{name: "taken phone", caller: id, in: UserFieldUpdate{DataType: "phone", IDValue: id, Value: "089-999-9999"}, status: http.StatusConflict, message: "phone already exists"},
		{name: "weak password", caller: id, in: UserFieldUpdate{DataType: "user_password", IDValue: id, Value: "password"}, status: http.StatusBadRequest},
		{name: "same password", caller: id, in: UserFieldUpdate{DataType: "user_password", IDValue: id, Value: strongPassword}, status: http.StatusBadRequest, message: MsgNoChanges},
		{name: "future birth date", caller: id, in: UserFieldUpdate{DataType: "user_birth_date", IDValue: id, Value: "2030-01-01"}, status: http.StatusBadRequest, message: "Birth date cannot be in the future"},
		{
			name:   "phone is cleaned",
			caller: id,
			in:     UserFieldUpdate{DataType: "phone", IDValue: id, Value: "+66 81 111 2222"},
			check:  func(t *testing.T, u *repository.User) { assert.Equal(t, "66811112222", u.Phone) },
		},
		{
			name:   "birth date is normalized",
			caller: id,
			in:     UserFieldUpdate{DataType: "user_birth_date", IDValue: id, Value: "15-03-1990"},
			check:  func(t *testing.T, u *repository.User) { assert.Equal(t, "1990-03-15", u.BirthDate) },
		},
		{
			name:   "password is hashed",
			caller: id,
			in:     UserFieldUpdate{DataType: "user_password", IDValue: id, Value: "N3w$ecret!"},
			check:  func(t *testing.T, u *repository.User) {
				assert.NotEqual(t, "N3w$ecret!", u.PasswordHash)
				assert.True(t, auth.CheckPassword(u.PasswordHash, "N3w$ecret!"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := uc.UpdateUserField(ctx, tt.caller, tt.in)
			if tt.status != 0 {
				requireStatus(t, err, tt.status, tt.message)
				return
			}
			require.NoError(t, err)
			tt.check(t, user)
		})
	}

	_, err = uc.UpdateUserField(ctx, "missing", UserFieldUpdate{DataType: "user_last", IDValue: "missing", Value: "Doe"})
	requireStatus(t, err, http.StatusNotFound, "User not found")
	assert.Len(t, repo.users, 2)
}

func TestNormalizeBirthDate(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		in      string
		want    string
		wantErr string
	}{
		{in: "", want: ""},
		{in: "1990-03-15", want: "1990-03-15"},
		{in: "15-03-1990", want: "1990-03-15"},
		{in: "15/03/1990", want: "1990-03-15"},
		{in: "1990.03.15", wantErr: "Invalid birth date format. Use DD-MM-YYYY, YYYY-MM-DD, or DD/MM/YYYY"},
		{in: "2030-01-01", wantErr: "Birth date cannot be in the future"},
		{in: "1890-01-01", wantErr: "Birth date seems unrealistic"},
		{in: "2015-01-01", wantErr: "You must be at least 13 years old to register"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeBirthDate(tt.in, now)
			if tt.wantErr != "" {
				requireStatus(t, err, http.StatusBadRequest, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
