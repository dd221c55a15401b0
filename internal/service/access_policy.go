package service

import (
	"strings"

	"github.com/identica-edu/portal-api/internal/models"
)

// accessLevelMinRole maps a website access level to the minimum role
// required. Levels absent from this table deny everyone: an unknown or
// future level must fail closed, never open.
var accessLevelMinRole = map[models.AccessLevel]models.Role{
	models.AccessStudents: models.RoleStudent,
	models.AccessMonitors: models.RoleMonitor,
	models.AccessCurators: models.RoleCurator,
	models.AccessTeachers: models.RoleTeacher,
}

// RoleAccessPolicy decides catalog access from the profile's role rank.
// It is a pure function of its inputs and governs only the subscription
// catalog; demonstration pages use DirectoryAccessPolicy instead.
type RoleAccessPolicy struct{}

// NewRoleAccessPolicy constructs a RoleAccessPolicy.
func NewRoleAccessPolicy() *RoleAccessPolicy {
	return &RoleAccessPolicy{}
}

// CanAccess reports whether the profile's role satisfies the website's
// access level. "all" admits every role.
func (RoleAccessPolicy) CanAccess(profile *models.Profile, website *models.Website) bool {
	if website.AccessLevel == models.AccessAll {
		return true
	}
	minRole, ok := accessLevelMinRole[website.AccessLevel]
	if !ok {
		return false
	}
	return profile.Role.AtLeast(minRole)
}

// groupLookup resolves a username to its directory group set.
type groupLookup interface {
	GetUserGroups(username string) []string
}

// DirectoryAccessPolicy decides demonstration-page access from directory
// group membership. The rule table is keyed by normalized URL; a URL not
// listed is inaccessible to everyone.
type DirectoryAccessPolicy struct {
	dir   groupLookup
	rules map[string][]string
}

// NewDirectoryAccessPolicy constructs the policy over the fixed
// demonstration-page rules.
func NewDirectoryAccessPolicy(dir groupLookup) *DirectoryAccessPolicy {
	return &DirectoryAccessPolicy{dir: dir, rules: demonstrationPageRules()}
}

// CheckAccess reports whether the user may reach the URL: the user's
// directory groups must intersect the URL's required groups.
func (p *DirectoryAccessPolicy) CheckAccess(username, websiteURL string) bool {
	required, ok := p.rules[NormalizeURL(websiteURL)]
	if !ok || len(required) == 0 {
		return false
	}

	groups := p.dir.GetUserGroups(username)
	for _, g := range groups {
		for _, want := range required {
			if g == want {
				return true
			}
		}
	}
	return false
}

// DemonstrationPage describes one fixed test page with the caller's
// access verdict attached.
type DemonstrationPage struct {
	Name          string `json:"name"`
	URL           string `json:"url"`
	Description   string `json:"description"`
	AccessGranted bool   `json:"access_granted"`
}

// ListPages returns every demonstration page annotated with whether the
// user may reach it.
func (p *DirectoryAccessPolicy) ListPages(username string) []DemonstrationPage {
	pages := []DemonstrationPage{
		{Name: "University Library", URL: "https://library.identica.local", Description: "Digital library access"},
		{Name: "Research Portal", URL: "https://research.identica.local", Description: "Publications and research"},
		{Name: "Admin Panel", URL: "https://admin.identica.local", Description: "System administration"},
		{Name: "Courses", URL: "https://courses.identica.local", Description: "Online courses and materials"},
	}
	for i := range pages {
		pages[i].AccessGranted = p.CheckAccess(username, pages[i].URL)
	}
	return pages
}

// NormalizeURL strips the scheme and a leading www. so rule keys match
// regardless of how the caller spells the URL.
func NormalizeURL(raw string) string {
	url := strings.TrimPrefix(raw, "https://")
	url = strings.TrimPrefix(url, "http://")
	url = strings.TrimPrefix(url, "www.")
	return strings.TrimSuffix(url, "/")
}

func demonstrationPageRules() map[string][]string {
	return map[string][]string{
		"library.identica.local":  {"students", "staff", "admins"},
		"research.identica.local": {"staff", "admins", "monitors"},
		"admin.identica.local":    {"staff", "admins"},
		"courses.identica.local":  {"students", "staff", "admins", "monitors"},
	}
}
