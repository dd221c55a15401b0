// Package directory provides a mock LDAP-like user directory. It stands
// in for the university directory service: group membership and contact
// attributes keyed by username. Lookups never fail; unknown users fall
// back to the baseline group so callers can stay fail-closed on the
// policy side without handling directory errors.
package directory

import "go.uber.org/zap"

// BaselineGroup is the group every known portal account carries.
const BaselineGroup = "identica-users"

// UserInfo is the directory record for one account.
type UserInfo struct {
	Username  string   `json:"username"`
	Groups    []string `json:"groups"`
	Email     string   `json:"email"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
}

// Service resolves usernames to directory records.
type Service struct {
	users  map[string]UserInfo
	logger *zap.Logger
}

// New returns a directory seeded with the test population.
func New(logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{users: testUsers(), logger: logger}
}

// GetUserGroups returns the group set for a username. Unknown users get
// the baseline group only.
func (s *Service) GetUserGroups(username string) []string {
	if user, ok := s.users[username]; ok {
		groups := make([]string, len(user.Groups))
		copy(groups, user.Groups)
		return groups
	}
	s.logger.Debug("directory lookup fell back to defaults", zap.String("username", username))
	return []string{BaselineGroup}
}

// GetUserInfo returns the full directory record for a username, or a
// safe default record when the user is unknown.
func (s *Service) GetUserInfo(username string) UserInfo {
	if user, ok := s.users[username]; ok {
		return user
	}
	return UserInfo{
		Username: username,
		Groups:   []string{BaselineGroup},
		Email:    username + "@university.local",
	}
}

func testUsers() map[string]UserInfo {
	return map[string]UserInfo{
		"student1": {
			Username:  "student1",
			Groups:    []string{"students", BaselineGroup},
			Email:     "student1@university.local",
			FirstName: "Ivan",
			LastName:  "Petrov",
		},
		"student2": {
			Username:  "student2",
			Groups:    []string{"students", BaselineGroup},
			Email:     "student2@university.local",
			FirstName: "Maria",
			LastName:  "Sidorova",
		},
		"monitor1": {
			Username:  "monitor1",
			Groups:    []string{"students", BaselineGroup, "monitors"},
			Email:     "monitor1@university.local",
			FirstName: "Olga",
			LastName:  "Ivanova",
		},
		"admin": {
			Username:  "admin",
			Groups:    []string{"staff", BaselineGroup, "admins"},
			Email:     "admin@university.local",
			FirstName: "Portal",
			LastName:  "Administrator",
		},
	}
}
