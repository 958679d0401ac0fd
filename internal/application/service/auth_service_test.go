package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/reimbursement-tracker/internal/domain/entity"
)

func newAuthService(users ...*entity.User) (AuthService, *mockUserRepo) {
	repo := newMockUserRepo(users...)
	return NewAuthService(repo, plainHasher{}, mockTokens{}, nopLogger{}), repo
}

func TestSplitRealName(t *testing.T) {
	tests := []struct {
		in, last, first string
	}{
		{"张三丰", "张", "三丰"},
		{"李四", "李", "四"},
		{"王", "", "王"},
		{"", "", ""},
	}
	for _, tt := range tests {
		last, first := SplitRealName(tt.in)
		assert.Equal(t, tt.last, last, tt.in)
		assert.Equal(t, tt.first, first, tt.in)
	}
}

func TestAuthService_Register(t *testing.T) {
	svc, repo := newAuthService()
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{Username: "zhang", Password: "secret1", Email: "z@example.com", RealName: "张三"})
	require.NoError(t, err)
	assert.Equal(t, "张", user.LastName)
	assert.Equal(t, "三", user.FirstName)
	assert.True(t, user.IsActive)
	assert.False(t, user.CanAccessAdmin())

	stored, _ := repo.GetByUsername(ctx, "zhang")
	require.NotNil(t, stored)
	assert.Equal(t, "hashed:secret1", stored.PasswordHash)

	_, err = svc.Register(ctx, RegisterInput{Username: "zhang", Password: "secret1"})
	assert.ErrorIs(t, err, entity.ErrValidation)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	svc, _ := newAuthService()

	_, err := svc.Register(context.Background(), RegisterInput{Password: "123", Email: "not-an-email"})
	var verr *entity.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "username")
	assert.Contains(t, verr.Fields, "password")
	assert.Contains(t, verr.Fields, "email")
}

func TestAuthService_Token(t *testing.T) {
	staff := &entity.User{ID: 1, Username: "admin", PasswordHash: "hashed:pw", IsStaff: true, IsActive: true}
	regular := &entity.User{ID: 2, Username: "user", PasswordHash: "hashed:pw", IsActive: true}
	inactive := &entity.User{ID: 3, Username: "gone", PasswordHash: "hashed:pw", IsSuperuser: true}
	svc, _ := newAuthService(staff, regular, inactive)
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{"missing username", "", "pw", entity.ErrValidation},
		{"not staff", "user", "pw", entity.ErrPermission},
		{"not staff with wrong password", "user", "nope", entity.ErrPermission},
		{"wrong password", "admin", "nope", entity.ErrUnauthenticated},
		{"unknown user", "nobody", "pw", entity.ErrUnauthenticated},
		{"inactive", "gone", "pw", entity.ErrUnauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Token(ctx, tt.username, tt.password)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	pair, err := svc.Token(ctx, "admin", "pw")
	require.NoError(t, err)
	assert.Equal(t, "access-1", pair.Access)

	access, err := svc.Refresh(ctx, pair.Refresh)
	require.NoError(t, err)
	assert.Equal(t, "access-1", access)

	_, err = svc.Refresh(ctx, "garbage")
	assert.ErrorIs(t, err, entity.ErrUnauthenticated)
}

func TestAuthService_Authenticate(t *testing.T) {
	active := &entity.User{ID: 1, Username: "a", IsActive: true}
	inactive := &entity.User{ID: 2, Username: "b"}
	svc, _ := newAuthService(active, inactive)
	ctx := context.Background()

	user, err := svc.Authenticate(ctx, "access-1")
	require.NoError(t, err)
	assert.Equal(t, "a", user.Username)

	_, err = svc.Authenticate(ctx, "access-2")
	assert.ErrorIs(t, err, entity.ErrUnauthenticated)
	_, err = svc.Authenticate(ctx, "access-9")
	assert.ErrorIs(t, err, entity.ErrUnauthenticated)
	_, err = svc.Authenticate(ctx, "bogus")
	assert.ErrorIs(t, err, entity.ErrUnauthenticated)
}

func TestAuthService_UpdateFlags(t *testing.T) {
	root := &entity.User{ID: 1, Username: "root", IsSuperuser: true, IsActive: true}
	staff := &entity.User{ID: 2, Username: "staff", IsStaff: true, IsActive: true}
	svc, repo := newAuthService(root, staff)
	ctx := context.Background()
	no := false

	_, err := svc.UpdateFlags(ctx, staff, 1, UserFlags{IsActive: &no})
	assert.ErrorIs(t, err, entity.ErrPermission)

	_, err = svc.UpdateFlags(ctx, root, 1, UserFlags{IsActive: &no})
	assert.ErrorIs(t, err, entity.ErrPermission)

	_, err = svc.UpdateFlags(ctx, root, 42, UserFlags{IsActive: &no})
	assert.ErrorIs(t, err, entity.ErrNotFound)

	updated, err := svc.UpdateFlags(ctx, root, 2, UserFlags{IsStaff: &no})
	require.NoError(t, err)
	assert.False(t, updated.IsStaff)
	assert.True(t, updated.IsActive)

	stored, _ := repo.GetByID(ctx, 2)
	assert.False(t, stored.IsStaff)
}

func TestAuthService_CreateAdmin(t *testing.T) {
	svc, _ := newAuthService()

	user, err := svc.CreateAdmin(context.Background(), RegisterInput{Username: "root", Password: "secret1"}, true)
	require.NoError(t, err)
	assert.True(t, user.IsStaff)
	assert.True(t, user.IsSuperuser)
	assert.True(t, user.CanAccessAdmin())
}
