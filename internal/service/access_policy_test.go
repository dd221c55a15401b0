package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/identica-edu/portal-api/internal/models"
)

var allRoles = []models.Role{
	models.RoleStudent,
	models.RoleMonitor,
	models.RoleCurator,
	models.RoleTeacher,
	models.RoleAdmin,
}

func profileWithRole(role models.Role) *models.Profile {
	return &models.Profile{ID: "p-1", UserID: "u-1", Role: role}
}

func TestRolePolicyAccessAllAdmitsEveryRole(t *testing.T) {
	policy := NewRoleAccessPolicy()
	website := &models.Website{AccessLevel: models.AccessAll}
	for _, role := range allRoles {
		assert.True(t, policy.CanAccess(profileWithRole(role), website), "role %s", role)
	}
}

func TestRolePolicyMonotonicInRank(t *testing.T) {
	policy := NewRoleAccessPolicy()
	thresholds := map[models.AccessLevel]models.Role{
		models.AccessStudents: models.RoleStudent,
		models.AccessMonitors: models.RoleMonitor,
		models.AccessCurators: models.RoleCurator,
		models.AccessTeachers: models.RoleTeacher,
	}
	for level, minRole := range thresholds {
		website := &models.Website{AccessLevel: level}
		for _, role := range allRoles {
			want := role.Rank() >= minRole.Rank()
			assert.Equal(t, want, policy.CanAccess(profileWithRole(role), website),
				"level %s role %s", level, role)
		}
	}
}

func TestRolePolicyUnknownLevelFailsClosed(t *testing.T) {
	policy := NewRoleAccessPolicy()
	website := &models.Website{AccessLevel: models.AccessLevel("vip")}
	for _, role := range allRoles {
		assert.False(t, policy.CanAccess(profileWithRole(role), website), "role %s", role)
	}
}

func TestRolePolicyUnknownRoleFailsClosed(t *testing.T) {
	policy := NewRoleAccessPolicy()
	website := &models.Website{AccessLevel: models.AccessStudents}
	assert.False(t, policy.CanAccess(profileWithRole(models.Role("ghost")), website))
}

type staticGroups map[string][]string

func (s staticGroups) GetUserGroups(username string) []string {
	if groups, ok := s[username]; ok {
		return groups
	}
	return []string{"identica-users"}
}

func TestDirectoryPolicyGrantsOnGroupIntersection(t *testing.T) {
	policy := NewDirectoryAccessPolicy(staticGroups{
		"student1": {"students", "identica-users"},
		"admin":    {"staff", "admins", "identica-users"},
	})

	assert.True(t, policy.CheckAccess("student1", "https://library.identica.local"))
	assert.False(t, policy.CheckAccess("student1", "https://admin.identica.local"))
	assert.True(t, policy.CheckAccess("admin", "https://admin.identica.local"))
}

func TestDirectoryPolicyNormalizesURL(t *testing.T) {
	policy := NewDirectoryAccessPolicy(staticGroups{"student1": {"students"}})

	assert.True(t, policy.CheckAccess("student1", "library.identica.local"))
	assert.True(t, policy.CheckAccess("student1", "http://library.identica.local"))
	assert.True(t, policy.CheckAccess("student1", "https://www.library.identica.local"))
	assert.True(t, policy.CheckAccess("student1", "https://library.identica.local/"))
}

func TestDirectoryPolicyUnknownURLFailsClosedForEveryone(t *testing.T) {
	policy := NewDirectoryAccessPolicy(staticGroups{
		"student1": {"students", "identica-users"},
		"admin":    {"staff", "admins", "identica-users"},
	})

	for _, username := range []string{"student1", "admin", "stranger"} {
		assert.False(t, policy.CheckAccess(username, "unknown.example.com"), "user %s", username)
	}
}

func TestDirectoryPolicyListPagesAnnotatesAccess(t *testing.T) {
	policy := NewDirectoryAccessPolicy(staticGroups{"student1": {"students"}})
	pages := policy.ListPages("student1")

	byURL := make(map[string]bool, len(pages))
	for _, page := range pages {
		byURL[NormalizeURL(page.URL)] = page.AccessGranted
	}
	assert.True(t, byURL["library.identica.local"])
	assert.True(t, byURL["courses.identica.local"])
	assert.False(t, byURL["research.identica.local"])
	assert.False(t, byURL["admin.identica.local"])
}
