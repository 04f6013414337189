package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cityworks/addressing-service/internal/domain"
	apperrors "github.com/cityworks/addressing-service/pkg/util"
)

func testStaff() *domain.Staff {
	return &domain.Staff{
		ID:         "staff-1",
		Name:       "Jane Smith",
		Email:      "jane@example.gov",
		Department: domain.DepartmentGIS,
		Role:       domain.StaffRoleGISStaff,
	}
}

func TestTokenRoundTrip(t *testing.T) {
	manager := NewTokenManager("test-secret", time.Hour)

	token, expiresAt, err := manager.Issue(testStaff())
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := manager.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "staff-1", claims.StaffID)
	assert.Equal(t, "gis_staff", claims.Role)
	assert.Equal(t, "GIS", claims.Department)
}

func TestTokenWrongSecret(t *testing.T) {
	issuer := NewTokenManager("secret-a", time.Hour)
	verifier := NewTokenManager("secret-b", time.Hour)

	token, _, err := issuer.Issue(testStaff())
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
}

func TestTokenExpired(t *testing.T) {
	manager := NewTokenManager("test-secret", time.Hour)
	manager.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, _, err := manager.Issue(testStaff())
	require.NoError(t, err)

	manager.now = time.Now
	_, err = manager.Verify(token)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
}

func TestTokenGarbage(t *testing.T) {
	manager := NewTokenManager("test-secret", time.Hour)
	_, err := manager.Verify("not-a-jwt")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
}

func TestPasswordHasher(t *testing.T) {
	hasher := NewPasswordHasher(4)

	hash, err := hasher.Hash("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery staple", hash)

	assert.True(t, hasher.Compare(hash, "correct horse battery staple"))
	assert.False(t, hasher.Compare(hash, "wrong password"))
	assert.False(t, hasher.Compare("not-a-hash", "anything"))
}

func TestRolePermissions(t *testing.T) {
	assert.True(t, HasPermission(domain.StaffRoleFrontDesk, PermTicketCreate))
	assert.True(t, HasPermission(domain.StaffRoleFrontDesk, PermTicketClose))
	assert.False(t, HasPermission(domain.StaffRoleFrontDesk, PermStaffManage))

	assert.True(t, HasPermission(domain.StaffRoleGISStaff, PermTicketTransition))
	assert.False(t, HasPermission(domain.StaffRoleGISStaff, PermTicketCreate))

	assert.True(t, HasPermission(domain.StaffRoleAdmin, PermStaffManage))
	assert.True(t, HasPermission(domain.StaffRoleAdmin, PermWorkerTrigger))

	assert.False(t, HasPermission(domain.StaffRole("unknown"), PermTicketRead))
}
