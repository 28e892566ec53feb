package profile

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/Gokulakrishnan610/chicken-dinner/core"
)

var ErrNotFound = core.NewNotFoundError("profile")

// Profile aggregates a user's engagement. Its counters only grow, and only through Credit.
type Profile struct {
	UserID       string   `json:"user_id"`
	Bio          string   `json:"bio"`
	City         string   `json:"city"`
	Country      string   `json:"country"`
	LinkedinURL  string   `json:"linkedin_url"`
	GithubURL    string   `json:"github_url"`
	PortfolioURL string   `json:"portfolio_url"`
	Skills       []string `json:"skills"`
	Interests    []string `json:"interests"`

	AchievementsCount int     `json:"achievements_count"`
	CertificatesCount int     `json:"certificates_count"`
	VolunteeringHours float64 `json:"volunteering_hours"`
	TotalPoints       int     `json:"total_points"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Credit is what an approved submission adds to its owner's profile.
type Credit struct {
	Points       int
	Achievements int
	Certificates int
	Hours        float64
}

func (c Credit) IsZero() bool {
	return c.Points == 0 && c.Achievements == 0 && c.Certificates == 0 && c.Hours == 0
}

// Apply adds the credit to p's counters.
func (c Credit) Apply(p *Profile) {
	p.TotalPoints += c.Points
	p.AchievementsCount += c.Achievements
	p.CertificatesCount += c.Certificates
	p.VolunteeringHours += c.Hours
}

// UpdateProfile holds the editable fields of a Profile. Nil fields are left untouched.
type UpdateProfile struct {
	Bio          *string  `json:"bio" validate:"omitempty,max=500"`
	City         *string  `json:"city" validate:"omitempty,max=100"`
	Country      *string  `json:"country" validate:"omitempty,max=100"`
	LinkedinURL  *string  `json:"linkedin_url" validate:"omitempty,url"`
	GithubURL    *string  `json:"github_url" validate:"omitempty,url"`
	PortfolioURL *string  `json:"portfolio_url" validate:"omitempty,url"`
	Skills       []string `json:"skills" validate:"omitempty,max=50,dive,max=100"`
	Interests    []string `json:"interests" validate:"omitempty,max=50,dive,max=100"`
}

func (up *UpdateProfile) Validate(validate *validator.Validate) error {
	for _, fld := range []*string{up.Bio, up.City, up.Country, up.LinkedinURL, up.GithubURL, up.PortfolioURL} {
		if fld != nil {
			*fld = core.CleanString(*fld)
		}
	}
	if up.Skills != nil {
		up.Skills = core.CleanStrings(up.Skills)
	}
	if up.Interests != nil {
		up.Interests = core.CleanStrings(up.Interests)
	}
	return validate.Struct(up)
}

func (up UpdateProfile) apply(p *Profile) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&p.Bio, up.Bio)
	set(&p.City, up.City)
	set(&p.Country, up.Country)
	set(&p.LinkedinURL, up.LinkedinURL)
	set(&p.GithubURL, up.GithubURL)
	set(&p.PortfolioURL, up.PortfolioURL)
	if up.Skills != nil {
		p.Skills = up.Skills
	}
	if up.Interests != nil {
		p.Interests = up.Interests
	}
}

type (
	Repository interface {
		// GetOrCreate returns the profile of `userID`, creating an empty one if needed.
		GetOrCreate(ctx context.Context, userID string, now time.Time) (Profile, error)
		// UpdateProfile saves the editable fields of `p`; counters are never written.
		UpdateProfile(ctx context.Context, p Profile) (Profile, error)
	}

	Service struct {
		repo     Repository
		validate *validator.Validate
		nowFunc  func() time.Time
	}
)

func NewService(repo Repository, validate *validator.Validate) *Service {
	return &Service{repo: repo, validate: validate, nowFunc: time.Now}
}

func (svc *Service) Get(ctx context.Context, userID string) (Profile, error) {
	p, err := svc.repo.GetOrCreate(ctx, userID, svc.nowFunc().UTC())
	if err != nil {
		return Profile{}, errors.Wrap(err, "getting profile")
	}
	return p, nil
}

// Initialize creates the profile of a new user.
func (svc *Service) Initialize(ctx context.Context, userID string) error {
	_, err := svc.Get(ctx, userID)
	return err
}

func (svc *Service) Update(ctx context.Context, userID string, up UpdateProfile) (Profile, error) {
	if err := up.Validate(svc.validate); err != nil {
		return Profile{}, err
	}
	p, err := svc.Get(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	up.apply(&p)
	p.UpdatedAt = svc.nowFunc().UTC()
	return svc.repo.UpdateProfile(ctx, p)
}
