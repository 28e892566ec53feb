package achievement

import (
	"context"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/Gokulakrishnan610/chicken-dinner/core"
	"github.com/Gokulakrishnan610/chicken-dinner/core/submission"
	"github.com/Gokulakrishnan610/chicken-dinner/core/user"
)

var (
	ErrNotFound         = core.NewNotFoundError("achievement")
	ErrCategoryNotFound = core.NewNotFoundError("achievement category")
	errInvalidCategory  = core.NewValidationError(nil, core.FieldError{Field: "category_id", Error: "invalid category"})

	// OrderingFields are the fields achievements can be ordered by.
	OrderingFields = []string{"created_at", "updated_at", "points", "title"}
)

type Category struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	Icon             string    `json:"icon"`
	Color            string    `json:"color"`
	PointsMultiplier float64   `json:"points_multiplier"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
}

type Achievement struct {
	submission.Submission
	EvidenceURL  string   `json:"evidence_url"`
	SkillsGained []string `json:"skills_gained"`
}

// Points weighs the points claimed for an achievement by its category's multiplier.
func Points(claimed *int, c Category) int {
	if claimed == nil {
		return 0
	}
	return int(math.Round(float64(*claimed) * c.PointsMultiplier))
}

type NewAchievement struct {
	CategoryID   string              `json:"category_id" validate:"required,uuid"`
	Title        string              `json:"title" validate:"required,notblank,max=200"`
	Description  string              `json:"description" validate:"required,notblank"`
	Priority     submission.Priority `json:"priority" validate:"omitempty,oneof=low medium high"`
	Points       *int                `json:"points" validate:"omitempty,min=0,max=10000"`
	EvidenceURL  string              `json:"evidence_url" validate:"omitempty,url"`
	SkillsGained []string            `json:"skills_gained" validate:"max=50,dive,max=100"`
	Tags         []string            `json:"tags" validate:"max=20,dive,max=50"`
	IsPublic     *bool               `json:"is_public"`
}

func (na *NewAchievement) Validate(validate *validator.Validate) error {
	na.CategoryID = core.CleanString(na.CategoryID, true /* lower */)
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	na.EvidenceURL = core.CleanString(na.EvidenceURL)
	na.SkillsGained = core.CleanStrings(na.SkillsGained)
	na.Tags = core.CleanStrings(na.Tags, true /* lower */)
	if na.Priority == "" {
		na.Priority = submission.PriorityMedium
	}
	return validate.Struct(na)
}

// UpdateAchievement holds the editable fields of an Achievement. Nil fields are left untouched.
type UpdateAchievement struct {
	CategoryID   *string             `json:"category_id" validate:"omitempty,uuid"`
	Title        *string             `json:"title" validate:"omitempty,notblank,max=200"`
	Description  *string             `json:"description" validate:"omitempty,notblank"`
	Priority     submission.Priority `json:"priority" validate:"omitempty,oneof=low medium high"`
	Points       *int                `json:"points" validate:"omitempty,min=0,max=10000"`
	EvidenceURL  *string             `json:"evidence_url" validate:"omitempty,url"`
	SkillsGained []string            `json:"skills_gained" validate:"omitempty,max=50,dive,max=100"`
	Tags         []string            `json:"tags" validate:"omitempty,max=20,dive,max=50"`
	IsPublic     *bool               `json:"is_public"`
}

func (ua *UpdateAchievement) Validate(validate *validator.Validate) error {
	for _, fld := range []*string{ua.Title, ua.Description, ua.EvidenceURL} {
		if fld != nil {
			*fld = core.CleanString(*fld)
		}
	}
	if ua.CategoryID != nil {
		*ua.CategoryID = core.CleanString(*ua.CategoryID, true /* lower */)
	}
	if ua.SkillsGained != nil {
		ua.SkillsGained = core.CleanStrings(ua.SkillsGained)
	}
	if ua.Tags != nil {
		ua.Tags = core.CleanStrings(ua.Tags, true /* lower */)
	}
	return validate.Struct(ua)
}

func (ua UpdateAchievement) apply(a *Achievement) {
	if ua.Title != nil {
		a.Title = *ua.Title
	}
	if ua.Description != nil {
		a.Description = *ua.Description
	}
	if ua.Priority != "" {
		a.Priority = ua.Priority
	}
	if ua.EvidenceURL != nil {
		a.EvidenceURL = *ua.EvidenceURL
	}
	if ua.SkillsGained != nil {
		a.SkillsGained = ua.SkillsGained
	}
	if ua.Tags != nil {
		a.Tags = ua.Tags
	}
	if ua.IsPublic != nil {
		a.IsPublic = *ua.IsPublic
	}
}

type QueryFilter struct {
	Status     submission.Status `query:"status"`
	CategoryID string            `query:"category"`
	UserID     string            `query:"user"`
}

type (
	Repository interface {
		QueryAchievementCategories(ctx context.Context, activeOnly bool) ([]Category, error)
		GetAchievementCategory(ctx context.Context, id string) (Category, error)
		CreateAchievement(ctx context.Context, a Achievement) (Achievement, error)
		// QueryAchievements lists the achievements within `scope` matching every set filter field.
		QueryAchievements(ctx context.Context, scope submission.Scope, filter *QueryFilter, ordering []core.DBOrdering) ([]Achievement, error)
		GetAchievement(ctx context.Context, id string) (Achievement, error)
		// UpdateAchievement saves the editable fields & points of `a`. With onlyPending, it fails with
		// submission.ErrNotPending unless the stored achievement is still pending.
		UpdateAchievement(ctx context.Context, a Achievement, onlyPending bool) (Achievement, error)
		DeleteAchievement(ctx context.Context, id string, onlyPending bool) error
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

func (svc *Service) Categories(ctx context.Context) ([]Category, error) {
	return svc.repo.QueryAchievementCategories(ctx, true)
}

func (svc *Service) activeCategory(ctx context.Context, id string) (Category, error) {
	c, err := svc.repo.GetAchievementCategory(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrCategoryNotFound {
			return Category{}, errInvalidCategory
		}
		return Category{}, errors.Wrap(err, "getting category")
	}
	if !c.IsActive {
		return Category{}, errInvalidCategory
	}
	return c, nil
}

func (svc *Service) Create(ctx context.Context, actor user.User, na NewAchievement) (Achievement, error) {
	if err := na.Validate(svc.validate); err != nil {
		return Achievement{}, err
	}
	cat, err := svc.activeCategory(ctx, na.CategoryID)
	if err != nil {
		return Achievement{}, err
	}

	now := svc.nowFunc().UTC()
	a := Achievement{
		Submission: submission.Submission{
			Kind:         submission.KindAchievement,
			OwnerID:      actor.ID,
			OwnerName:    actor.FullName(),
			CategoryID:   cat.ID,
			CategoryName: cat.Name,
			Title:        na.Title,
			Description:  na.Description,
			Status:       submission.StatusPending,
			Priority:     na.Priority,
			Points:       Points(na.Points, cat),
			Tags:         na.Tags,
			IsPublic:     na.IsPublic == nil || *na.IsPublic,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		EvidenceURL:  na.EvidenceURL,
		SkillsGained: na.SkillsGained,
	}
	a, err = svc.repo.CreateAchievement(ctx, a)
	if err != nil {
		return Achievement{}, errors.Wrap(err, "creating achievement")
	}
	return a, nil
}

func (svc *Service) Query(ctx context.Context, actor user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]Achievement, error) {
	return svc.repo.QueryAchievements(ctx, submission.ScopeFor(actor), filter, core.FilterOrderings(ordering, OrderingFields...))
}

// Get returns the achievement if the actor may see it. Hidden achievements are reported as not found.
func (svc *Service) Get(ctx context.Context, actor user.User, id string) (Achievement, error) {
	a, err := svc.repo.GetAchievement(ctx, id)
	if err != nil {
		return Achievement{}, err
	}
	if !submission.ScopeFor(actor).Allows(a.Submission) {
		return Achievement{}, ErrNotFound
	}
	return a, nil
}

func (svc *Service) Update(ctx context.Context, actor user.User, id string, ua UpdateAchievement) (Achievement, error) {
	a, err := svc.Get(ctx, actor, id)
	if err != nil {
		return Achievement{}, err
	}
	onlyPending, err := submission.EditPermission(actor, a.Submission)
	if err != nil {
		return Achievement{}, err
	}
	if err = ua.Validate(svc.validate); err != nil {
		return Achievement{}, err
	}

	cat := Category{ID: a.CategoryID, Name: a.CategoryName, PointsMultiplier: 1}
	if ua.CategoryID != nil && *ua.CategoryID != a.CategoryID || ua.Points != nil {
		catID := a.CategoryID
		if ua.CategoryID != nil {
			catID = *ua.CategoryID
		}
		if cat, err = svc.activeCategory(ctx, catID); err != nil {
			return Achievement{}, err
		}
	}
	ua.apply(&a)
	a.CategoryID, a.CategoryName = cat.ID, cat.Name
	if a.IsPending() && ua.Points != nil {
		a.Points = Points(ua.Points, cat)
	}
	a.UpdatedAt = svc.nowFunc().UTC()

	a, err = svc.repo.UpdateAchievement(ctx, a, onlyPending)
	if err != nil {
		return Achievement{}, errors.Wrap(err, "updating achievement")
	}
	return a, nil
}

func (svc *Service) Delete(ctx context.Context, actor user.User, id string) error {
	a, err := svc.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	onlyPending, err := submission.DeletePermission(actor, a.Submission)
	if err != nil {
		return err
	}
	return svc.repo.DeleteAchievement(ctx, a.ID, onlyPending)
}
