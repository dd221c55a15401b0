package models

import "time"

// Role identifies a profile's position in the portal hierarchy.
type Role string

const (
	RoleStudent Role = "student"
	RoleMonitor Role = "monitor"
	RoleCurator Role = "curator"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// roleRanks defines the total order used by every "role or above" check.
// A role not listed here ranks below student and satisfies nothing.
var roleRanks = map[Role]int{
	RoleStudent: 0,
	RoleMonitor: 1,
	RoleCurator: 2,
	RoleTeacher: 3,
	RoleAdmin:   4,
}

// Rank returns the role's position in the hierarchy, or -1 for unknown roles.
func (r Role) Rank() int {
	rank, ok := roleRanks[r]
	if !ok {
		return -1
	}
	return rank
}

// AtLeast reports whether the role ranks at or above the given minimum.
// Unknown roles never satisfy any minimum.
func (r Role) AtLeast(min Role) bool {
	rank := r.Rank()
	return rank >= 0 && rank >= min.Rank()
}

// Valid reports whether the role is one of the enumerated values.
func (r Role) Valid() bool {
	_, ok := roleRanks[r]
	return ok
}

// Faculty enumerates the faculties a profile may belong to.
type Faculty string

const (
	FacultyComputerScience Faculty = "computer_science"
	FacultyEngineering     Faculty = "engineering"
	FacultyBusiness        Faculty = "business"
	FacultyArts            Faculty = "arts"
	FacultyScience         Faculty = "science"
	FacultyMedicine        Faculty = "medicine"
)

// Profile holds the extended student data attached to a user account.
// Exactly one profile exists per user; it is provisioned synchronously
// when the account is created.
type Profile struct {
	ID        string     `db:"id" json:"id"`
	UserID    string     `db:"user_id" json:"user_id"`
	StudentID *string    `db:"student_id" json:"student_id,omitempty"`
	Faculty   *Faculty   `db:"faculty" json:"faculty,omitempty"`
	Course    *int       `db:"course" json:"course,omitempty"`
	Group     *string    `db:"group_name" json:"group,omitempty"`
	Phone     string     `db:"phone" json:"phone,omitempty"`
	BirthDate *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Role      Role       `db:"role" json:"role"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// Complete reports whether the profile carries everything subscriptions
// require: student id, faculty, course and group.
func (p *Profile) Complete() bool {
	return p.StudentID != nil && *p.StudentID != "" &&
		p.Faculty != nil && *p.Faculty != "" &&
		p.Course != nil &&
		p.Group != nil && *p.Group != ""
}

// ProfileDetail joins profile rows with the owning account for listings.
type ProfileDetail struct {
	Profile
	Username  string `db:"username" json:"username"`
	Email     string `db:"email" json:"email"`
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
}
