package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/example/gigwork/internal/repository"
	"github.com/example/gigwork/internal/storage"
)

type memoryAccounts struct {
	roles  map[string]*repository.Role
	admins map[string]*repository.Admin
	users  map[string]*repository.User
}

func newMemoryAccounts(roles ...repository.Role) *memoryAccounts {
	m := &memoryAccounts{
		roles:  map[string]*repository.Role{},
		admins: map[string]*repository.Admin{},
		users:  map[string]*repository.User{},
	}
	for i := range roles {
		role := roles[i]
		m.roles[role.ID] = &role
	}
	return m
}

func (m *memoryAccounts) CreateRole(ctx context.Context, role *repository.Role) error {
	for _, r := range m.roles {
		if r.Name == role.Name {
			return repository.ErrDuplicate
		}
	}
	copied := *role
	m.roles[role.ID] = &copied
	return nil
}

func (m *memoryAccounts) ListRoles(ctx context.Context) ([]repository.Role, error) {
	var out []repository.Role
	for _, r := range m.roles {
		out = append(out, *r)
	}
	return out, nil
}

func (m *memoryAccounts) FindRole(ctx context.Context, id string) (*repository.Role, error) {
	if r, ok := m.roles[id]; ok {
		copied := *r
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memoryAccounts) FindRoleByName(ctx context.Context, name string) (*repository.Role, error) {
	for _, r := range m.roles {
		if r.Name == name {
			copied := *r
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memoryAccounts) RenameRole(ctx context.Context, id, name string) (*repository.Role, error) {
	r, ok := m.roles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	r.Name = name
	return r, nil
}

func (m *memoryAccounts) DeleteRole(ctx context.Context, id string) error {
	if _, ok := m.roles[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.roles, id)
	return nil
}

func (m *memoryAccounts) CreateAdmin(ctx context.Context, admin *repository.Admin) error {
	admin.Email = strings.ToLower(strings.TrimSpace(admin.Email))
	for _, a := range m.admins {
		if a.Email == admin.Email {
			return repository.ErrDuplicate
		}
	}
	copied := *admin
	m.admins[admin.ID] = &copied
	return nil
}

func (m *memoryAccounts) FindAdmin(ctx context.Context, id string) (*repository.Admin, error) {
	if a, ok := m.admins[id]; ok {
		return a, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memoryAccounts) FindAdminByEmail(ctx context.Context, email string) (*repository.Admin, error) {
	for _, a := range m.admins {
		if a.Email == strings.ToLower(strings.TrimSpace(email)) {
			return a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memoryAccounts) ListAdmins(ctx context.Context, filter repository.AdminFilter) ([]repository.Admin, error) {
	var out []repository.Admin
	for _, a := range m.admins {
		if filter.RoleID != "" && a.RoleID != filter.RoleID {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

func (m *memoryAccounts) UpdateAdmin(ctx context.Context, id string, updates map[string]any) (*repository.Admin, error) {
	a, ok := m.admins[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	for k, v := range updates {
		switch k {
		case "admin_name":
			a.Name = v.(string)
		case "admin_email":
			a.Email = v.(string)
		case "admin_password":
			a.PasswordHash = v.(string)
		case "admin_status":
			a.Status = v.(string)
		case "role_id":
			a.RoleID = v.(string)
		case "admin_img":
			a.Image = v.(string)
		default:
			return nil, fmt.Errorf("unexpected column %s", k)
		}
	}
	return a, nil
}

func (m *memoryAccounts) DeleteAdmin(ctx context.Context, id string) error {
	if _, ok := m.admins[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.admins, id)
	return nil
}

func (m *memoryAccounts) CreateUser(ctx context.Context, user *repository.User) error {
	for _, u := range m.users {
		if u.Phone == user.Phone {
			return repository.ErrDuplicate
		}
	}
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *memoryAccounts) FindUser(ctx context.Context, id string) (*repository.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memoryAccounts) FindUserByPhone(ctx context.Context, phone string) (*repository.User, error) {
	for _, u := range m.users {
		if u.Phone == phone {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memoryAccounts) UpdateUser(ctx context.Context, id string, updates map[string]any) (*repository.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if phone, ok := updates["phone"]; ok {
		for _, other := range m.users {
			if other.ID != id && other.Phone == phone {
				return nil, repository.ErrDuplicate
			}
		}
	}
	for k, v := range updates {
		switch k {
		case "phone":
			u.Phone = v.(string)
		case "user_birth_date":
			u.BirthDate = v.(string)
		case "user_gender":
			u.Gender = v.(string)
		case "user_country":
			u.Country = v.(string)
		case "user_password":
			u.PasswordHash = v.(string)
		case "user_first":
			u.FirstName = v.(string)
		case "user_last":
			u.LastName = v.(string)
		case "user_img":
			u.Image = v.(string)
		default:
			return nil, fmt.Errorf("unexpected column %s", k)
		}
	}
	return u, nil
}

func (m *memoryAccounts) DeleteUser(ctx context.Context, id string) error {
	if _, ok := m.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

type fakeStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	failFor   map[string]bool
	uploads   []string
	replaced  []string
	nextIndex int
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}, failFor: map[string]bool{}}
}

func (f *fakeStore) Upload(ctx context.Context, bucket string, obj storage.Object) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[bucket] {
		return "", errors.New("storage unavailable")
	}
	f.nextIndex++
	name := fmt.Sprintf("%d-%s", f.nextIndex, obj.OriginalName)
	f.objects[bucket+"/"+name] = obj.Data
	f.uploads = append(f.uploads, bucket+"/"+name)
	return name, nil
}

func (f *fakeStore) Download(ctx context.Context, bucket, name string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[bucket+"/"+name]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

func (f *fakeStore) Exists(ctx context.Context, bucket, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[bucket+"/"+name]
	return ok, nil
}

func (f *fakeStore) Replace(ctx context.Context, bucket, name string, obj storage.Object) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[bucket+"/"+name]; !ok {
		return storage.ErrNotFound
	}
	f.objects[bucket+"/"+name] = obj.Data
	f.replaced = append(f.replaced, bucket+"/"+name)
	return nil
}

func (f *fakeStore) EnsureBucket(ctx context.Context, bucket string) error {
	return nil
}

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}
