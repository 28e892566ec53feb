package volunteering

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/Gokulakrishnan610/chicken-dinner/core"
	"github.com/Gokulakrishnan610/chicken-dinner/core/submission"
	"github.com/Gokulakrishnan610/chicken-dinner/core/user"
)

var (
	ErrNotFound         = core.NewNotFoundError("volunteering activity")
	ErrCategoryNotFound = core.NewNotFoundError("volunteering category")
	errInvalidCategory  = core.NewValidationError(nil, core.FieldError{Field: "category_id", Error: "invalid category"})
	errDateNeeded       = core.NewValidationError(nil, core.FieldError{Field: "activity_date", Error: "this field is required"})

	OrderingFields = []string{"created_at", "updated_at", "points", "title", "activity_date", "hours_volunteered"}
)

type Category struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Icon          string    `json:"icon"`
	Color         string    `json:"color"`
	PointsPerHour float64   `json:"points_per_hour"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}

type Activity struct {
	submission.Submission
	Organization     string    `json:"organization"`
	Location         string    `json:"location"`
	ActivityDate     core.Date `json:"activity_date"`
	HoursVolunteered float64   `json:"hours_volunteered"`
	EvidenceURL      string    `json:"evidence_url"`
	SkillsDeveloped  []string  `json:"skills_developed"`
}

// Points returns the claimed points, or the hours worked times the category's rate.
func Points(claimed *int, hours float64, c Category) int {
	if claimed != nil {
		return *claimed
	}
	return int(hours * c.PointsPerHour)
}

type NewActivity struct {
	CategoryID       string              `json:"category_id" validate:"required,uuid"`
	Title            string              `json:"title" validate:"required,notblank,max=200"`
	Description      string              `json:"description" validate:"required,notblank"`
	Organization     string              `json:"organization" validate:"required,notblank,max=200"`
	Location         string              `json:"location" validate:"max=200"`
	ActivityDate     core.Date           `json:"activity_date"`
	HoursVolunteered float64             `json:"hours_volunteered" validate:"gt=0,max=1000"`
	Priority         submission.Priority `json:"priority" validate:"omitempty,oneof=low medium high"`
	Points           *int                `json:"points" validate:"omitempty,min=0,max=10000"`
	EvidenceURL      string              `json:"evidence_url" validate:"omitempty,url"`
	SkillsDeveloped  []string            `json:"skills_developed" validate:"max=50,dive,max=100"`
	Tags             []string            `json:"tags" validate:"max=20,dive,max=50"`
	IsPublic         *bool               `json:"is_public"`
}

func (na *NewActivity) Validate(validate *validator.Validate) error {
	na.CategoryID = core.CleanString(na.CategoryID, true /* lower */)
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	na.Organization = core.CleanString(na.Organization)
	na.Location = core.CleanString(na.Location)
	na.EvidenceURL = core.CleanString(na.EvidenceURL)
	na.SkillsDeveloped = core.CleanStrings(na.SkillsDeveloped)
	na.Tags = core.CleanStrings(na.Tags, true /* lower */)
	if na.Priority == "" {
		na.Priority = submission.PriorityMedium
	}
	if err := validate.Struct(na); err != nil {
		return err
	}
	if na.ActivityDate.IsZero() {
		return errDateNeeded
	}
	return nil
}

// UpdateActivity holds the editable fields of an Activity. Nil fields are left untouched.
type UpdateActivity struct {
	CategoryID       *string             `json:"category_id" validate:"omitempty,uuid"`
	Title            *string             `json:"title" validate:"omitempty,notblank,max=200"`
	Description      *string             `json:"description" validate:"omitempty,notblank"`
	Organization     *string             `json:"organization" validate:"omitempty,notblank,max=200"`
	Location         *string             `json:"location" validate:"omitempty,max=200"`
	ActivityDate     *core.Date          `json:"activity_date"`
	HoursVolunteered *float64            `json:"hours_volunteered" validate:"omitempty,gt=0,max=1000"`
	Priority         submission.Priority `json:"priority" validate:"omitempty,oneof=low medium high"`
	Points           *int                `json:"points" validate:"omitempty,min=0,max=10000"`
	EvidenceURL      *string             `json:"evidence_url" validate:"omitempty,url"`
	SkillsDeveloped  []string            `json:"skills_developed" validate:"omitempty,max=50,dive,max=100"`
	Tags             []string            `json:"tags" validate:"omitempty,max=20,dive,max=50"`
	IsPublic         *bool               `json:"is_public"`
}

func (ua *UpdateActivity) Validate(validate *validator.Validate) error {
	for _, fld := range []*string{ua.Title, ua.Description, ua.Organization, ua.Location, ua.EvidenceURL} {
		if fld != nil {
			*fld = core.CleanString(*fld)
		}
	}
	if ua.CategoryID != nil {
		*ua.CategoryID = core.CleanString(*ua.CategoryID, true /* lower */)
	}
	if ua.SkillsDeveloped != nil {
		ua.SkillsDeveloped = core.CleanStrings(ua.SkillsDeveloped)
	}
	if ua.Tags != nil {
		ua.Tags = core.CleanStrings(ua.Tags, true /* lower */)
	}
	if err := validate.Struct(ua); err != nil {
		return err
	}
	if ua.ActivityDate != nil && ua.ActivityDate.IsZero() {
		return errDateNeeded
	}
	return nil
}

func (ua UpdateActivity) apply(a *Activity) {
	if ua.Title != nil {
		a.Title = *ua.Title
	}
	if ua.Description != nil {
		a.Description = *ua.Description
	}
	if ua.Organization != nil {
		a.Organization = *ua.Organization
	}
	if ua.Location != nil {
		a.Location = *ua.Location
	}
	if ua.ActivityDate != nil {
		a.ActivityDate = *ua.ActivityDate
	}
	if ua.Priority != "" {
		a.Priority = ua.Priority
	}
	if ua.EvidenceURL != nil {
		a.EvidenceURL = *ua.EvidenceURL
	}
	if ua.SkillsDeveloped != nil {
		a.SkillsDeveloped = ua.SkillsDeveloped
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
		QueryVolunteeringCategories(ctx context.Context, activeOnly bool) ([]Category, error)
		GetVolunteeringCategory(ctx context.Context, id string) (Category, error)
		CreateActivity(ctx context.Context, a Activity) (Activity, error)
		QueryActivities(ctx context.Context, scope submission.Scope, filter *QueryFilter, ordering []core.DBOrdering) ([]Activity, error)
		GetActivity(ctx context.Context, id string) (Activity, error)
		// UpdateActivity saves the editable fields, hours & points of `a`. With onlyPending, it fails with
		// submission.ErrNotPending unless the stored activity is still pending.
		UpdateActivity(ctx context.Context, a Activity, onlyPending bool) (Activity, error)
		DeleteActivity(ctx context.Context, id string, onlyPending bool) error
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
	return svc.repo.QueryVolunteeringCategories(ctx, true)
}

func (svc *Service) activeCategory(ctx context.Context, id string) (Category, error) {
	c, err := svc.repo.GetVolunteeringCategory(ctx, id)
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

func (svc *Service) Create(ctx context.Context, actor user.User, na NewActivity) (Activity, error) {
	if err := na.Validate(svc.validate); err != nil {
		return Activity{}, err
	}
	cat, err := svc.activeCategory(ctx, na.CategoryID)
	if err != nil {
		return Activity{}, err
	}

	now := svc.nowFunc().UTC()
	a := Activity{
		Submission: submission.Submission{
			Kind:         submission.KindVolunteering,
			OwnerID:      actor.ID,
			OwnerName:    actor.FullName(),
			CategoryID:   cat.ID,
			CategoryName: cat.Name,
			Title:        na.Title,
			Description:  na.Description,
			Status:       submission.StatusPending,
			Priority:     na.Priority,
			Points:       Points(na.Points, na.HoursVolunteered, cat),
			Tags:         na.Tags,
			IsPublic:     na.IsPublic == nil || *na.IsPublic,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		Organization:     na.Organization,
		Location:         na.Location,
		ActivityDate:     na.ActivityDate,
		HoursVolunteered: na.HoursVolunteered,
		EvidenceURL:      na.EvidenceURL,
		SkillsDeveloped:  na.SkillsDeveloped,
	}
	a, err = svc.repo.CreateActivity(ctx, a)
	if err != nil {
		return Activity{}, errors.Wrap(err, "creating volunteering activity")
	}
	return a, nil
}

func (svc *Service) Query(ctx context.Context, actor user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]Activity, error) {
	return svc.repo.QueryActivities(ctx, submission.ScopeFor(actor), filter, core.FilterOrderings(ordering, OrderingFields...))
}

func (svc *Service) Get(ctx context.Context, actor user.User, id string) (Activity, error) {
	a, err := svc.repo.GetActivity(ctx, id)
	if err != nil {
		return Activity{}, err
	}
	if !submission.ScopeFor(actor).Allows(a.Submission) {
		return Activity{}, ErrNotFound
	}
	return a, nil
}

func (svc *Service) Update(ctx context.Context, actor user.User, id string, ua UpdateActivity) (Activity, error) {
	a, err := svc.Get(ctx, actor, id)
	if err != nil {
		return Activity{}, err
	}
	onlyPending, err := submission.EditPermission(actor, a.Submission)
	if err != nil {
		return Activity{}, err
	}
	if err = ua.Validate(svc.validate); err != nil {
		return Activity{}, err
	}

	catChanged := ua.CategoryID != nil && *ua.CategoryID != a.CategoryID
	recompute := catChanged || ua.Points != nil || ua.HoursVolunteered != nil
	cat := Category{ID: a.CategoryID, Name: a.CategoryName}
	if recompute {
		catID := a.CategoryID
		if catChanged {
			catID = *ua.CategoryID
		}
		if cat, err = svc.activeCategory(ctx, catID); err != nil {
			return Activity{}, err
		}
	}
	ua.apply(&a)
	a.CategoryID, a.CategoryName = cat.ID, cat.Name
	if a.IsPending() {
		if ua.HoursVolunteered != nil {
			a.HoursVolunteered = *ua.HoursVolunteered
		}
		if recompute {
			a.Points = Points(ua.Points, a.HoursVolunteered, cat)
		}
	}
	a.UpdatedAt = svc.nowFunc().UTC()

	a, err = svc.repo.UpdateActivity(ctx, a, onlyPending)
	if err != nil {
		return Activity{}, errors.Wrap(err, "updating volunteering activity")
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
	return svc.repo.DeleteActivity(ctx, a.ID, onlyPending)
}
