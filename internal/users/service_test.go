package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memoryRepo struct {
	users  map[int64]User
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: map[int64]User{}, nextID: 1}
}

func (m *memoryRepo) Insert(ctx context.Context, user User) (User, error) {
	for _, existing := range m.users {
		if existing.Email == user.Email {
			return User{}, ErrEmailTaken
		}
	}
	user.ID = m.nextID
	m.nextID++
	m.users[user.ID] = user
	return user, nil
}

func (m *memoryRepo) FindByEmail(ctx context.Context, email string) (User, error) {
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return User{}, ErrNotFound
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (User, error) {
	user, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (m *memoryRepo) List(ctx context.Context) ([]User, error) {
	list := make([]User, 0, len(m.users))
	for _, user := range m.users {
		list = append(list, user)
	}
	return list, nil
}

func (m *memoryRepo) Update(ctx context.Context, user User) error {
	if _, ok := m.users[user.ID]; !ok {
		return ErrNotFound
	}
	m.users[user.ID] = user
	return nil
}

func (m *memoryRepo) SetActive(ctx context.Context, id int64, active bool) error {
	user, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	user.IsActive = active
	m.users[id] = user
	return nil
}

func TestCreateHashesPassword(t *testing.T) {
	service := NewService(newMemoryRepo())

	user, err := service.Create(context.Background(), "Morgan", "morgan@example.com", "s3cret-pass", RoleManager)
	require.NoError(t, err)
	require.NotEqual(t, "s3cret-pass", user.PasswordHash)
	require.True(t, user.IsActive)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("s3cret-pass")))
}

func TestCreateDuplicateEmail(t *testing.T) {
	service := NewService(newMemoryRepo())

	_, err := service.Create(context.Background(), "Morgan", "morgan@example.com", "s3cret-pass", RoleManager)
	require.NoError(t, err)

	_, err = service.Create(context.Background(), "Impostor", "morgan@example.com", "other-pass", RoleStaff)
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestUpdateRole(t *testing.T) {
	repo := newMemoryRepo()
	service := NewService(repo)

	user, err := service.Create(context.Background(), "Sam", "sam@example.com", "s3cret-pass", RoleStaff)
	require.NoError(t, err)

	require.NoError(t, service.UpdateRole(context.Background(), user.ID, RoleAdmin))
	updated, err := service.Get(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, RoleAdmin, updated.Role)

	require.ErrorIs(t, service.UpdateRole(context.Background(), 999, RoleAdmin), ErrNotFound)
}

func TestDeactivateKeepsAccount(t *testing.T) {
	repo := newMemoryRepo()
	service := NewService(repo)

	user, err := service.Create(context.Background(), "Sam", "sam@example.com", "s3cret-pass", RoleStaff)
	require.NoError(t, err)

	require.NoError(t, service.Deactivate(context.Background(), user.ID))
	got, err := service.Get(context.Background(), user.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive)

	require.NoError(t, service.Activate(context.Background(), user.ID))
	got, err = service.Get(context.Background(), user.ID)
	require.NoError(t, err)
	require.True(t, got.IsActive)
}
