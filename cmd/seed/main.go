package main

import (
	"context"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/identica-edu/portal-api/internal/models"
	"github.com/identica-edu/portal-api/internal/repository"
	"github.com/identica-edu/portal-api/pkg/config"
	"github.com/identica-edu/portal-api/pkg/database"
	"github.com/identica-edu/portal-api/pkg/logger"
)

type seedUser struct {
	Username  string
	Password  string
	Email     string
	FirstName string
	LastName  string
	StudentID string
	Faculty   models.Faculty
	Course    int
	Group     string
	Role      models.Role
}

type seedWebsite struct {
	Name             string
	URL              string
	Category         string
	Description      string
	SubscriptionType models.SubscriptionType
	RequiresApproval bool
	DurationDays     int
	AccessLevel      models.AccessLevel
}

func seedUsers() []seedUser {
	return []seedUser{
		{Username: "student1", Password: "password123", Email: "student1@university.local", FirstName: "Ivan", LastName: "Petrov", StudentID: "ST001", Faculty: models.FacultyComputerScience, Course: 2, Group: "CS-201", Role: models.RoleStudent},
		{Username: "student2", Password: "password123", Email: "student2@university.local", FirstName: "Maria", LastName: "Sidorova", StudentID: "ST002", Faculty: models.FacultyEngineering, Course: 3, Group: "ENG-301", Role: models.RoleStudent},
		{Username: "monitor1", Password: "password123", Email: "monitor1@university.local", FirstName: "Alexey", LastName: "Ivanov", StudentID: "ST003", Faculty: models.FacultyComputerScience, Course: 3, Group: "CS-301", Role: models.RoleMonitor},
		{Username: "curator1", Password: "password123", Email: "curator1@university.local", FirstName: "Olga", LastName: "Smirnova", StudentID: "CR001", Faculty: models.FacultyComputerScience, Course: 3, Group: "STAFF", Role: models.RoleCurator},
		{Username: "teacher1", Password: "password123", Email: "teacher1@university.local", FirstName: "Dmitry", LastName: "Volkov", StudentID: "TC001", Faculty: models.FacultyComputerScience, Course: 1, Group: "STAFF", Role: models.RoleTeacher},
		{Username: "admin", Password: "admin123", Email: "admin@university.local", FirstName: "System", LastName: "Administrator", StudentID: "ADM001", Faculty: models.FacultyComputerScience, Course: 5, Group: "ADMIN", Role: models.RoleAdmin},
	}
}

func seedCategories() map[string]string {
	return map[string]string{
		"education":   "Educational platforms",
		"programming": "Programming and IT",
		"design":      "Design and creativity",
		"science":     "Scientific resources",
	}
}

func seedWebsites() []seedWebsite {
	return []seedWebsite{
		{Name: "Coursera", URL: "https://www.coursera.org", Category: "education", Description: "Online courses from leading universities", SubscriptionType: models.SubscriptionAuto, DurationDays: 90, AccessLevel: models.AccessAll},
		{Name: "edX", URL: "https://www.edx.org", Category: "education", Description: "Online courses from Harvard, MIT and others", SubscriptionType: models.SubscriptionAuto, DurationDays: 180, AccessLevel: models.AccessAll},
		{Name: "GitHub Student Pack", URL: "https://education.github.com/pack", Category: "programming", Description: "Free developer tools for students", SubscriptionType: models.SubscriptionManual, RequiresApproval: true, DurationDays: 365, AccessLevel: models.AccessAll},
		{Name: "JetBrains IDE", URL: "https://www.jetbrains.com/student/", Category: "programming", Description: "Free IDE licenses for students", SubscriptionType: models.SubscriptionManual, RequiresApproval: true, DurationDays: 365, AccessLevel: models.AccessAll},
		{Name: "Figma Education", URL: "https://www.figma.com/education/", Category: "design", Description: "Professional design tooling", SubscriptionType: models.SubscriptionManual, RequiresApproval: true, DurationDays: 365, AccessLevel: models.AccessAll},
		{Name: "Adobe Creative Cloud", URL: "https://www.adobe.com/creativecloud/buy/students.html", Category: "design", Description: "Creative applications with a student discount", SubscriptionType: models.SubscriptionManual, RequiresApproval: true, DurationDays: 365, AccessLevel: models.AccessAll},
		{Name: "Google Scholar", URL: "https://scholar.google.com", Category: "science", Description: "Scholarly literature search", SubscriptionType: models.SubscriptionAuto, DurationDays: 0, AccessLevel: models.AccessAll},
		{Name: "ResearchGate", URL: "https://www.researchgate.net", Category: "science", Description: "Network for scientists and researchers", SubscriptionType: models.SubscriptionAuto, DurationDays: 0, AccessLevel: models.AccessAll},
		{Name: "Teacher Portal", URL: "https://university-teacher-portal.example.com", Category: "education", Description: "Internal portal for university teachers", SubscriptionType: models.SubscriptionAuto, DurationDays: 365, AccessLevel: models.AccessTeachers},
		{Name: "Curator Analytics", URL: "https://curator-analytics.example.com", Category: "education", Description: "Student performance and activity analytics", SubscriptionType: models.SubscriptionAuto, DurationDays: 365, AccessLevel: models.AccessCurators},
		{Name: "Monitor Portal", URL: "https://monitor-portal.example.com", Category: "education", Description: "Group management and communication", SubscriptionType: models.SubscriptionAuto, DurationDays: 365, AccessLevel: models.AccessMonitors},
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck
	sugar := logr.Sugar()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		sugar.Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	userRepo := repository.NewUserRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	websiteRepo := repository.NewWebsiteRepository(db)

	for _, u := range seedUsers() {
		if _, err := userRepo.FindByUsername(ctx, u.Username); err == nil {
			sugar.Infow("user exists, skipping", "username", u.Username)
			continue
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			sugar.Fatalw("failed to hash password", "username", u.Username, "error", err)
		}
		user := &models.User{
			Username:     u.Username,
			Email:        u.Email,
			PasswordHash: string(hash),
			FirstName:    u.FirstName,
			LastName:     u.LastName,
			Active:       true,
		}
		if err := userRepo.Create(ctx, user); err != nil {
			sugar.Fatalw("failed to create user", "username", u.Username, "error", err)
		}

		studentID := u.StudentID
		faculty := u.Faculty
		course := u.Course
		group := u.Group
		profile := &models.Profile{
			UserID:    user.ID,
			StudentID: &studentID,
			Faculty:   &faculty,
			Course:    &course,
			Group:     &group,
			Role:      u.Role,
		}
		if err := profileRepo.Create(ctx, profile); err != nil {
			sugar.Fatalw("failed to create profile", "username", u.Username, "error", err)
		}
		sugar.Infow("user created", "username", u.Username, "role", u.Role)
	}

	existing, err := websiteRepo.ListCategories(ctx)
	if err != nil {
		sugar.Fatalw("failed to list categories", "error", err)
	}
	categoryIDs := make(map[string]string)
	byName := make(map[string]string, len(existing))
	for _, c := range existing {
		byName[c.Name] = c.ID
	}
	for slug, name := range seedCategories() {
		if id, ok := byName[name]; ok {
			categoryIDs[slug] = id
			continue
		}
		category := &models.WebsiteCategory{Name: name, Description: "Resources in the " + name + " category"}
		if err := websiteRepo.CreateCategory(ctx, category); err != nil {
			sugar.Fatalw("failed to create category", "name", name, "error", err)
		}
		categoryIDs[slug] = category.ID
		sugar.Infow("category created", "name", name)
	}

	active, err := websiteRepo.ListActive(ctx)
	if err != nil {
		sugar.Fatalw("failed to list websites", "error", err)
	}
	existingSites := make(map[string]struct{}, len(active))
	for _, w := range active {
		existingSites[w.Name] = struct{}{}
	}

	created := 0
	for _, w := range seedWebsites() {
		if _, ok := existingSites[w.Name]; ok {
			continue
		}
		website := &models.Website{
			Name:             w.Name,
			URL:              w.URL,
			Description:      w.Description,
			CategoryID:       categoryIDs[w.Category],
			Active:           true,
			SubscriptionType: w.SubscriptionType,
			DurationDays:     w.DurationDays,
			RequiresApproval: w.RequiresApproval,
			AccessLevel:      w.AccessLevel,
		}
		if err := websiteRepo.Create(ctx, website); err != nil {
			sugar.Fatalw("failed to create website", "name", w.Name, "error", err)
		}
		created++
		sugar.Infow("website created", "name", w.Name)
	}

	sugar.Infow("seed finished", "websites_created", created)
}
