package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

// AccountRepository stores roles, admins and app users.
type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// EnsureRoles creates every named role that does not exist yet. newID supplies ids.
func (r *AccountRepository) EnsureRoles(ctx context.Context, newID func() string, names ...string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, name := range names {
			role := Role{ID: newID(), Name: name}
			if err := tx.Where(Role{Name: name}).FirstOrCreate(&role).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *AccountRepository) CreateRole(ctx context.Context, role *Role) error {
	return translate(r.db.WithContext(ctx).Create(role).Error)
}

func (r *AccountRepository) ListRoles(ctx context.Context) ([]Role, error) {
	var roles []Role
	err := r.db.WithContext(ctx).Order("role_name").Find(&roles).Error
	return roles, err
}

func (r *AccountRepository) FindRole(ctx context.Context, id string) (*Role, error) {
	var role Role
	if err := r.db.WithContext(ctx).First(&role, "role_id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &role, nil
}

func (r *AccountRepository) FindRoleByName(ctx context.Context, name string) (*Role, error) {
	var role Role
	if err := r.db.WithContext(ctx).First(&role, "role_name = ?", name).Error; err != nil {
		return nil, translate(err)
	}
	return &role, nil
}

// RoleName resolves a role id for token checks. Unknown ids yield "".
func (r *AccountRepository) RoleName(ctx context.Context, roleID string) (string, error) {
	role, err := r.FindRole(ctx, roleID)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return role.Name, nil
}

func (r *AccountRepository) RenameRole(ctx context.Context, id, name string) (*Role, error) {
	res := r.db.WithContext(ctx).Model(&Role{}).Where("role_id = ?", id).Update("role_name", name)
	if err := translate(res.Error); err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.FindRole(ctx, id)
}

func (r *AccountRepository) DeleteRole(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&Role{}, "role_id = ?", id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *AccountRepository) CreateAdmin(ctx context.Context, admin *Admin) error {
	admin.Email = strings.ToLower(strings.TrimSpace(admin.Email))
	return translate(r.db.WithContext(ctx).Omit("Role").Create(admin).Error)
}

func (r *AccountRepository) FindAdmin(ctx context.Context, id string) (*Admin, error) {
	var admin Admin
	if err := r.db.WithContext(ctx).Preload("Role").First(&admin, "admin_id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &admin, nil
}

func (r *AccountRepository) FindAdminByEmail(ctx context.Context, email string) (*Admin, error) {
	var admin Admin
	err := r.db.WithContext(ctx).Preload("Role").
		First(&admin, "admin_email = ?", strings.ToLower(strings.TrimSpace(email))).Error
	if err != nil {
		return nil, translate(err)
	}
	return &admin, nil
}

// AdminFilter narrows ListAdmins. Empty fields match everything.
type AdminFilter struct {
	Status string
	RoleID string
}

func (r *AccountRepository) ListAdmins(ctx context.Context, filter AdminFilter) ([]Admin, error) {
	query := r.db.WithContext(ctx).Preload("Role").Order("created_at DESC")
	if filter.Status != "" {
		query = query.Where("admin_status = ?", filter.Status)
	}
	if filter.RoleID != "" {
		query = query.Where("role_id = ?", filter.RoleID)
	}
	var admins []Admin
	err := query.Find(&admins).Error
	return admins, err
}

// UpdateAdmin applies column updates and returns the fresh row.
func (r *AccountRepository) UpdateAdmin(ctx context.Context, id string, updates map[string]any) (*Admin, error) {
	res := r.db.WithContext(ctx).Model(&Admin{}).Where("admin_id = ?", id).Updates(updates)
	if err := translate(res.Error); err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.FindAdmin(ctx, id)
}

func (r *AccountRepository) DeleteAdmin(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&Admin{}, "admin_id = ?", id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *AccountRepository) CreateUser(ctx context.Context, user *User) error {
	return translate(r.db.WithContext(ctx).Create(user).Error)
}

func (r *AccountRepository) FindUser(ctx context.Context, id string) (*User, error) {
	var user User
	if err := r.db.WithContext(ctx).First(&user, "user_id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *AccountRepository) FindUserByPhone(ctx context.Context, phone string) (*User, error) {
	var user User
	if err := r.db.WithContext(ctx).First(&user, "phone = ?", phone).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// UpdateUser applies column updates and returns the fresh row.
func (r *AccountRepository) UpdateUser(ctx context.Context, id string, updates map[string]any) (*User, error) {
	res := r.db.WithContext(ctx).Model(&User{}).Where("user_id = ?", id).Updates(updates)
	if err := translate(res.Error); err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.FindUser(ctx, id)
}

func (r *AccountRepository) DeleteUser(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&User{}, "user_id = ?", id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
