// Package inmemdb is a map based implementation of every repository, used for local runs and tests.
// A single lock guards all tables, so multi-table writes (e.g. a review and its profile credit) are atomic.
package inmemdb

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Gokulakrishnan610/chicken-dinner/core"
	"github.com/Gokulakrishnan610/chicken-dinner/core/achievement"
	"github.com/Gokulakrishnan610/chicken-dinner/core/certificate"
	"github.com/Gokulakrishnan610/chicken-dinner/core/notification"
	"github.com/Gokulakrishnan610/chicken-dinner/core/profile"
	"github.com/Gokulakrishnan610/chicken-dinner/core/report"
	"github.com/Gokulakrishnan610/chicken-dinner/core/submission"
	"github.com/Gokulakrishnan610/chicken-dinner/core/user"
	"github.com/Gokulakrishnan610/chicken-dinner/core/volunteering"
)

type subKey struct {
	kind submission.Kind
	id   string
}

type likeKey struct {
	subKey
	userID string
}

type DB struct {
	mu sync.RWMutex

	users    map[string]*user.User
	profiles map[string]*profile.Profile

	achievementCats  map[string]*achievement.Category
	certificateCats  map[string]*certificate.Category
	volunteeringCats map[string]*volunteering.Category
	achievements     map[string]*achievement.Achievement
	certificates     map[string]*certificate.Certificate
	activities       map[string]*volunteering.Activity

	reviews  []submission.Review
	comments []submission.Comment
	likes    map[likeKey]time.Time
	shares   []submission.Share

	notifications map[string]*notification.Notification

	templates map[string]*report.Template
	reports   map[string]*report.Report
	schedules map[string]*report.Schedule
	accesses  []report.Access
}

// NewDB returns an empty database holding the default categories.
func NewDB() *DB {
	db := &DB{
		users:            make(map[string]*user.User),
		profiles:         make(map[string]*profile.Profile),
		achievementCats:  make(map[string]*achievement.Category),
		certificateCats:  make(map[string]*certificate.Category),
		volunteeringCats: make(map[string]*volunteering.Category),
		achievements:     make(map[string]*achievement.Achievement),
		certificates:     make(map[string]*certificate.Certificate),
		activities:       make(map[string]*volunteering.Activity),
		likes:            make(map[likeKey]time.Time),
		notifications:    make(map[string]*notification.Notification),
		templates:        make(map[string]*report.Template),
		reports:          make(map[string]*report.Report),
		schedules:        make(map[string]*report.Schedule),
	}
	db.seedCategories(time.Now().UTC())
	return db
}

// Same ids as the seed migration.
const (
	AcademicExcellenceID   = "5f0c1d52-3b59-4b1e-9a53-0d7f1a6b2c01"
	TechnicalSkillsID      = "5f0c1d52-3b59-4b1e-9a53-0d7f1a6b2c02"
	LeadershipID           = "5f0c1d52-3b59-4b1e-9a53-0d7f1a6b2c03"
	CommunityServiceID     = "5f0c1d52-3b59-4b1e-9a53-0d7f1a6b2c04"
	InnovationID           = "5f0c1d52-3b59-4b1e-9a53-0d7f1a6b2c05"
	ProgrammingLanguagesID = "8a3e7c10-6d2f-4f5b-8e44-1c9b2d3e4f01"
	CloudComputingID       = "8a3e7c10-6d2f-4f5b-8e44-1c9b2d3e4f02"
	DataScienceID          = "8a3e7c10-6d2f-4f5b-8e44-1c9b2d3e4f03"
	CybersecurityID        = "8a3e7c10-6d2f-4f5b-8e44-1c9b2d3e4f04"
	ProjectManagementID    = "8a3e7c10-6d2f-4f5b-8e44-1c9b2d3e4f05"
	EducationID            = "c2d4e6f8-1a3b-4c5d-9e7f-2b4d6f8a0c01"
	EnvironmentID          = "c2d4e6f8-1a3b-4c5d-9e7f-2b4d6f8a0c02"
	CommunityID            = "c2d4e6f8-1a3b-4c5d-9e7f-2b4d6f8a0c03"
	TechnologyID           = "c2d4e6f8-1a3b-4c5d-9e7f-2b4d6f8a0c04"
	HealthID               = "c2d4e6f8-1a3b-4c5d-9e7f-2b4d6f8a0c05"
)

func (db *DB) seedCategories(now time.Time) {
	for _, c := range []achievement.Category{
		{ID: AcademicExcellenceID, Name: "Academic Excellence", Description: "Academic achievements and academic performance", Icon: "graduation-cap", Color: "#3B82F6", PointsMultiplier: 1.5},
		{ID: TechnicalSkillsID, Name: "Technical Skills", Description: "Programming, software development, and technical certifications", Icon: "laptop", Color: "#10B981", PointsMultiplier: 1.2},
		{ID: LeadershipID, Name: "Leadership", Description: "Leadership roles and team management", Icon: "crown", Color: "#F59E0B", PointsMultiplier: 1.3},
		{ID: CommunityServiceID, Name: "Community Service", Description: "Volunteering and community involvement", Icon: "handshake", Color: "#EF4444", PointsMultiplier: 1.0},
		{ID: InnovationID, Name: "Innovation", Description: "Innovative projects and creative solutions", Icon: "lightbulb", Color: "#8B5CF6", PointsMultiplier: 1.4},
	} {
		c := c
		c.IsActive, c.CreatedAt = true, now
		db.achievementCats[c.ID] = &c
	}
	for _, c := range []certificate.Category{
		{ID: ProgrammingLanguagesID, Name: "Programming Languages", Description: "Programming language certifications", Icon: "code", Color: "#10B981", PointsValue: 25},
		{ID: CloudComputingID, Name: "Cloud Computing", Description: "Cloud platform certifications", Icon: "cloud", Color: "#3B82F6", PointsValue: 30},
		{ID: DataScienceID, Name: "Data Science", Description: "Data science and analytics certifications", Icon: "chart", Color: "#8B5CF6", PointsValue: 35},
		{ID: CybersecurityID, Name: "Cybersecurity", Description: "Security and cybersecurity certifications", Icon: "lock", Color: "#EF4444", PointsValue: 40},
		{ID: ProjectManagementID, Name: "Project Management", Description: "Project management certifications", Icon: "clipboard", Color: "#F59E0B", PointsValue: 20},
	} {
		c := c
		c.IsActive, c.CreatedAt = true, now
		db.certificateCats[c.ID] = &c
	}
	for _, c := range []volunteering.Category{
		{ID: EducationID, Name: "Education", Description: "Teaching and educational support", Icon: "book", Color: "#3B82F6", PointsPerHour: 2.0},
		{ID: EnvironmentID, Name: "Environment", Description: "Environmental conservation and sustainability", Icon: "leaf", Color: "#10B981", PointsPerHour: 1.5},
		{ID: CommunityID, Name: "Community", Description: "Community development and support", Icon: "home", Color: "#F59E0B", PointsPerHour: 1.0},
		{ID: TechnologyID, Name: "Technology", Description: "Tech for good and digital inclusion", Icon: "laptop", Color: "#8B5CF6", PointsPerHour: 2.5},
		{ID: HealthID, Name: "Health", Description: "Health and wellness initiatives", Icon: "heart", Color: "#EF4444", PointsPerHour: 1.8},
	} {
		c := c
		c.IsActive, c.CreatedAt = true, now
		db.volunteeringCats[c.ID] = &c
	}
}

// SetCategoryActive (de)activates a category of any kind. It reports whether the category exists.
func (db *DB) SetCategoryActive(id string, active bool) bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	if c, ok := db.achievementCats[id]; ok {
		c.IsActive = active
		return true
	}
	if c, ok := db.certificateCats[id]; ok {
		c.IsActive = active
		return true
	}
	if c, ok := db.volunteeringCats[id]; ok {
		c.IsActive = active
		return true
	}
	return false
}

func cloneStrings(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return append(make([]string, 0, len(ss)), ss...)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	tt := *t
	return &tt
}

var defaultOrdering = []core.DBOrdering{{Field: "created_at"}}

// less applies `ordering` (newest first by default) to two rows, `cmp` comparing them on one field.
func less(ordering []core.DBOrdering, cmp func(field string) int) bool {
	if len(ordering) == 0 {
		ordering = defaultOrdering
	}
	for _, ord := range ordering {
		if c := cmp(ord.Field); c != 0 {
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
	}
	return false
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func cmpTimePtr(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return cmpTime(*a, *b)
}

func cmpString(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
