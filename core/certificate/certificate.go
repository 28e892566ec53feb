package certificate

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/Gokulakrishnan610/chicken-dinner/core"
	"github.com/Gokulakrishnan610/chicken-dinner/core/notification"
	"github.com/Gokulakrishnan610/chicken-dinner/core/submission"
	"github.com/Gokulakrishnan610/chicken-dinner/core/user"
)

var (
	ErrNotFound         = core.NewNotFoundError("certificate")
	ErrCategoryNotFound = core.NewNotFoundError("certificate category")
	errInvalidCategory  = core.NewValidationError(nil, core.FieldError{Field: "category_id", Error: "invalid category"})
	errIssueDateNeeded  = core.NewValidationError(nil, core.FieldError{Field: "issue_date", Error: "this field is required"})
	errExpiryBeforeIss  = core.NewValidationError(nil, core.FieldError{Field: "expiry_date", Error: "must be after the issue date"})

	// OrderingFields are the fields certificates can be ordered by.
	OrderingFields = []string{"created_at", "updated_at", "points", "title", "issue_date", "expiry_date"}
)

type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	Color       string    `json:"color"`
	PointsValue int       `json:"points_value"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

type Certificate struct {
	submission.Submission
	Issuer            string     `json:"issuer"`
	IssueDate         core.Date  `json:"issue_date"`
	ExpiryDate        *core.Date `json:"expiry_date"`
	CertificateNumber string     `json:"certificate_number"`
	SkillsVerified    []string   `json:"skills_verified"`
	IsExpired         bool       `json:"is_expired"`
	ExpiryNotifiedAt  *time.Time `json:"-"`
}

// Expired reports whether the certificate expired before `today`.
func (c Certificate) Expired(today core.Date) bool {
	return c.ExpiryDate != nil && c.ExpiryDate.Before(today)
}

// Points returns the claimed points, or the category's value when none are claimed.
func Points(claimed *int, c Category) int {
	if claimed != nil {
		return *claimed
	}
	return c.PointsValue
}

type NewCertificate struct {
	CategoryID        string              `json:"category_id" validate:"required,uuid"`
	Title             string              `json:"title" validate:"required,notblank,max=200"`
	Description       string              `json:"description" validate:"max=5000"`
	Issuer            string              `json:"issuer" validate:"required,notblank,max=200"`
	IssueDate         core.Date           `json:"issue_date"`
	ExpiryDate        *core.Date          `json:"expiry_date"`
	CertificateNumber string              `json:"certificate_number" validate:"max=100"`
	Priority          submission.Priority `json:"priority" validate:"omitempty,oneof=low medium high"`
	Points            *int                `json:"points" validate:"omitempty,min=0,max=10000"`
	SkillsVerified    []string            `json:"skills_verified" validate:"max=50,dive,max=100"`
	Tags              []string            `json:"tags" validate:"max=20,dive,max=50"`
	IsPublic          *bool               `json:"is_public"`
}

func (nc *NewCertificate) Validate(validate *validator.Validate) error {
	nc.CategoryID = core.CleanString(nc.CategoryID, true /* lower */)
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	nc.Issuer = core.CleanString(nc.Issuer)
	nc.CertificateNumber = core.CleanString(nc.CertificateNumber)
	nc.SkillsVerified = core.CleanStrings(nc.SkillsVerified)
	nc.Tags = core.CleanStrings(nc.Tags, true /* lower */)
	if nc.Priority == "" {
		nc.Priority = submission.PriorityMedium
	}
	if err := validate.Struct(nc); err != nil {
		return err
	}
	return validateDates(nc.IssueDate, nc.ExpiryDate)
}

func validateDates(issued core.Date, expires *core.Date) error {
	if issued.IsZero() {
		return errIssueDateNeeded
	}
	if expires != nil && !expires.IsZero() && !issued.Before(*expires) {
		return errExpiryBeforeIss
	}
	return nil
}

// UpdateCertificate holds the editable fields of a Certificate. Nil fields are left untouched.
type UpdateCertificate struct {
	CategoryID        *string             `json:"category_id" validate:"omitempty,uuid"`
	Title             *string             `json:"title" validate:"omitempty,notblank,max=200"`
	Description       *string             `json:"description" validate:"omitempty,max=5000"`
	Issuer            *string             `json:"issuer" validate:"omitempty,notblank,max=200"`
	IssueDate         *core.Date          `json:"issue_date"`
	ExpiryDate        *core.Date          `json:"expiry_date"`
	CertificateNumber *string             `json:"certificate_number" validate:"omitempty,max=100"`
	Priority          submission.Priority `json:"priority" validate:"omitempty,oneof=low medium high"`
	Points            *int                `json:"points" validate:"omitempty,min=0,max=10000"`
	SkillsVerified    []string            `json:"skills_verified" validate:"omitempty,max=50,dive,max=100"`
	Tags              []string            `json:"tags" validate:"omitempty,max=20,dive,max=50"`
	IsPublic          *bool               `json:"is_public"`
}

func (uc *UpdateCertificate) Validate(validate *validator.Validate) error {
	for _, fld := range []*string{uc.Title, uc.Description, uc.Issuer, uc.CertificateNumber} {
		if fld != nil {
			*fld = core.CleanString(*fld)
		}
	}
	if uc.CategoryID != nil {
		*uc.CategoryID = core.CleanString(*uc.CategoryID, true /* lower */)
	}
	if uc.SkillsVerified != nil {
		uc.SkillsVerified = core.CleanStrings(uc.SkillsVerified)
	}
	if uc.Tags != nil {
		uc.Tags = core.CleanStrings(uc.Tags, true /* lower */)
	}
	return validate.Struct(uc)
}

func (uc UpdateCertificate) apply(c *Certificate) {
	if uc.Title != nil {
		c.Title = *uc.Title
	}
	if uc.Description != nil {
		c.Description = *uc.Description
	}
	if uc.Issuer != nil {
		c.Issuer = *uc.Issuer
	}
	if uc.IssueDate != nil {
		c.IssueDate = *uc.IssueDate
	}
	if uc.ExpiryDate != nil {
		if uc.ExpiryDate.IsZero() {
			c.ExpiryDate = nil
		} else {
			c.ExpiryDate = uc.ExpiryDate
		}
		c.ExpiryNotifiedAt = nil
	}
	if uc.CertificateNumber != nil {
		c.CertificateNumber = *uc.CertificateNumber
	}
	if uc.Priority != "" {
		c.Priority = uc.Priority
	}
	if uc.SkillsVerified != nil {
		c.SkillsVerified = uc.SkillsVerified
	}
	if uc.Tags != nil {
		c.Tags = uc.Tags
	}
	if uc.IsPublic != nil {
		c.IsPublic = *uc.IsPublic
	}
}

type QueryFilter struct {
	Status     submission.Status `query:"status"`
	CategoryID string            `query:"category"`
	UserID     string            `query:"user"`
}

type (
	Repository interface {
		QueryCertificateCategories(ctx context.Context, activeOnly bool) ([]Category, error)
		GetCertificateCategory(ctx context.Context, id string) (Category, error)
		CreateCertificate(ctx context.Context, c Certificate) (Certificate, error)
		// QueryCertificates lists the certificates within `scope` matching every set filter field.
		QueryCertificates(ctx context.Context, scope submission.Scope, filter *QueryFilter, ordering []core.DBOrdering) ([]Certificate, error)
		GetCertificate(ctx context.Context, id string) (Certificate, error)
		// UpdateCertificate saves the editable fields & points of `c`. With onlyPending, it fails with
		// submission.ErrNotPending unless the stored certificate is still pending.
		UpdateCertificate(ctx context.Context, c Certificate, onlyPending bool) (Certificate, error)
		DeleteCertificate(ctx context.Context, id string, onlyPending bool) error
		// QueryExpiringCertificates lists the approved certificates expiring in [from, to]
		// whose owners were not warned yet.
		QueryExpiringCertificates(ctx context.Context, from, to core.Date) ([]Certificate, error)
		MarkExpiryNotified(ctx context.Context, id string, at time.Time) error
	}

	Notifier interface {
		Notify(ctx context.Context, n notification.Notification) (notification.Notification, error)
	}

	Service struct {
		repo     Repository
		notifier Notifier
		validate *validator.Validate
		logger   core.Logger
		nowFunc  func() time.Time
	}
)

func NewService(repo Repository, notifier Notifier, validate *validator.Validate, logger core.Logger) *Service {
	return &Service{repo: repo, notifier: notifier, validate: validate, logger: logger, nowFunc: time.Now}
}

func (svc *Service) today() core.Date {
	return core.NewDate(svc.nowFunc())
}

func (svc *Service) Categories(ctx context.Context) ([]Category, error) {
	return svc.repo.QueryCertificateCategories(ctx, true)
}

func (svc *Service) activeCategory(ctx context.Context, id string) (Category, error) {
	c, err := svc.repo.GetCertificateCategory(ctx, id)
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

func (svc *Service) Create(ctx context.Context, actor user.User, nc NewCertificate) (Certificate, error) {
	if err := nc.Validate(svc.validate); err != nil {
		return Certificate{}, err
	}
	cat, err := svc.activeCategory(ctx, nc.CategoryID)
	if err != nil {
		return Certificate{}, err
	}

	now := svc.nowFunc().UTC()
	c := Certificate{
		Submission: submission.Submission{
			Kind:         submission.KindCertificate,
			OwnerID:      actor.ID,
			OwnerName:    actor.FullName(),
			CategoryID:   cat.ID,
			CategoryName: cat.Name,
			Title:        nc.Title,
			Description:  nc.Description,
			Status:       submission.StatusPending,
			Priority:     nc.Priority,
			Points:       Points(nc.Points, cat),
			Tags:         nc.Tags,
			IsPublic:     nc.IsPublic == nil || *nc.IsPublic,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		Issuer:            nc.Issuer,
		IssueDate:         nc.IssueDate,
		CertificateNumber: nc.CertificateNumber,
		SkillsVerified:    nc.SkillsVerified,
	}
	if nc.ExpiryDate != nil && !nc.ExpiryDate.IsZero() {
		c.ExpiryDate = nc.ExpiryDate
	}
	c, err = svc.repo.CreateCertificate(ctx, c)
	if err != nil {
		return Certificate{}, errors.Wrap(err, "creating certificate")
	}
	c.IsExpired = c.Expired(svc.today())
	return c, nil
}

func (svc *Service) Query(ctx context.Context, actor user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]Certificate, error) {
	certs, err := svc.repo.QueryCertificates(ctx, submission.ScopeFor(actor), filter, core.FilterOrderings(ordering, OrderingFields...))
	if err != nil {
		return nil, err
	}
	today := svc.today()
	for i := range certs {
		certs[i].IsExpired = certs[i].Expired(today)
	}
	return certs, nil
}

// Get returns the certificate if the actor may see it. Hidden certificates are reported as not found.
func (svc *Service) Get(ctx context.Context, actor user.User, id string) (Certificate, error) {
	c, err := svc.repo.GetCertificate(ctx, id)
	if err != nil {
		return Certificate{}, err
	}
	if !submission.ScopeFor(actor).Allows(c.Submission) {
		return Certificate{}, ErrNotFound
	}
	c.IsExpired = c.Expired(svc.today())
	return c, nil
}

func (svc *Service) Update(ctx context.Context, actor user.User, id string, uc UpdateCertificate) (Certificate, error) {
	c, err := svc.Get(ctx, actor, id)
	if err != nil {
		return Certificate{}, err
	}
	onlyPending, err := submission.EditPermission(actor, c.Submission)
	if err != nil {
		return Certificate{}, err
	}
	if err = uc.Validate(svc.validate); err != nil {
		return Certificate{}, err
	}

	catChanged := uc.CategoryID != nil && *uc.CategoryID != c.CategoryID
	cat := Category{ID: c.CategoryID, Name: c.CategoryName}
	if catChanged || uc.Points != nil {
		catID := c.CategoryID
		if catChanged {
			catID = *uc.CategoryID
		}
		if cat, err = svc.activeCategory(ctx, catID); err != nil {
			return Certificate{}, err
		}
	}
	uc.apply(&c)
	if err = validateDates(c.IssueDate, c.ExpiryDate); err != nil {
		return Certificate{}, err
	}
	c.CategoryID, c.CategoryName = cat.ID, cat.Name
	if c.IsPending() && (catChanged || uc.Points != nil) {
		c.Points = Points(uc.Points, cat)
	}
	c.UpdatedAt = svc.nowFunc().UTC()

	c, err = svc.repo.UpdateCertificate(ctx, c, onlyPending)
	if err != nil {
		return Certificate{}, errors.Wrap(err, "updating certificate")
	}
	c.IsExpired = c.Expired(svc.today())
	return c, nil
}

func (svc *Service) Delete(ctx context.Context, actor user.User, id string) error {
	c, err := svc.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	onlyPending, err := submission.DeletePermission(actor, c.Submission)
	if err != nil {
		return err
	}
	return svc.repo.DeleteCertificate(ctx, c.ID, onlyPending)
}

// NotifyExpiring warns the owners of approved certificates expiring within `window`, once per certificate.
func (svc *Service) NotifyExpiring(ctx context.Context, window time.Duration) (int, error) {
	today := svc.today()
	until := core.NewDate(today.Add(window))
	certs, err := svc.repo.QueryExpiringCertificates(ctx, today, until)
	if err != nil {
		return 0, errors.Wrap(err, "querying expiring certificates")
	}

	var sent int
	for _, c := range certs {
		days := int(c.ExpiryDate.Sub(today.Time).Hours() / 24)
		_, err = svc.notifier.Notify(ctx, notification.Notification{
			UserID:     c.OwnerID,
			Type:       notification.TypeCertificate,
			Title:      "Certificate expiring soon",
			Message:    fmt.Sprintf("Your certificate %q from %s expires on %s (in %d days).", c.Title, c.Issuer, c.ExpiryDate, days),
			Priority:   notification.PriorityHigh,
			ActionURL:  "/certificates/" + c.ID,
			ActionText: "View Certificate",
		})
		if err != nil {
			if svc.logger != nil {
				svc.logger.Error(fmt.Sprintf("notifying expiry of certificate %s: %v", c.ID, err), err)
			}
			continue
		}
		if err = svc.repo.MarkExpiryNotified(ctx, c.ID, svc.nowFunc().UTC()); err != nil {
			return sent, errors.Wrap(err, "marking expiry notified")
		}
		sent++
	}
	return sent, nil
}
