package report

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/Gokulakrishnan610/chicken-dinner/core"
	"github.com/Gokulakrishnan610/chicken-dinner/core/user"
)

type (
	Repository interface {
		CreateTemplate(ctx context.Context, t Template) (Template, error)
		QueryTemplates(ctx context.Context, activeOnly bool) ([]Template, error)
		GetTemplate(ctx context.Context, id string) (Template, error)
		UpdateTemplate(ctx context.Context, t Template) (Template, error)
		DeleteTemplate(ctx context.Context, id string) error

		CreateReport(ctx context.Context, r Report) (Report, error)
		// QueryReports lists every report when viewerID is empty,
		// otherwise the viewer's own reports and the public ones.
		QueryReports(ctx context.Context, viewerID string, filter *QueryFilter) ([]Report, error)
		GetReport(ctx context.Context, id string) (Report, error)
		// RecordDownload increments the report's download count and stores `a`, atomically.
		RecordDownload(ctx context.Context, a Access) (Report, error)
		// ReportStats counts the reports generated by viewerID (every report when empty).
		ReportStats(ctx context.Context, viewerID string, monthStart time.Time) (Stats, error)

		CreateSchedule(ctx context.Context, s Schedule) (Schedule, error)
		QuerySchedules(ctx context.Context) ([]Schedule, error)
		GetSchedule(ctx context.Context, id string) (Schedule, error)
		UpdateSchedule(ctx context.Context, s Schedule) (Schedule, error)
		DeleteSchedule(ctx context.Context, id string) error
		// QueryDueSchedules lists the active schedules whose next run is at or before `now`.
		QueryDueSchedules(ctx context.Context, now time.Time) ([]Schedule, error)
		MarkScheduleRun(ctx context.Context, id string, lastRun, nextRun time.Time) error
	}

	Service struct {
		repo     Repository
		mailSvc  core.EmailService
		validate *validator.Validate
		logger   core.Logger
		nowFunc  func() time.Time
	}
)

func NewService(repo Repository, mailSvc core.EmailService, validate *validator.Validate, logger core.Logger) *Service {
	return &Service{repo: repo, mailSvc: mailSvc, validate: validate, logger: logger, nowFunc: time.Now}
}

func staffOnly(actor user.User) error {
	if !actor.IsStaff() {
		return errStaffOnly
	}
	return nil
}

// viewerID returns the id reports are restricted to for `actor`, if any.
func viewerID(actor user.User) string {
	if actor.IsStaff() {
		return ""
	}
	return actor.ID
}

func canSee(actor user.User, r Report) bool {
	vid := viewerID(actor)
	return vid == "" || r.IsPublic || r.GeneratedBy == vid
}

// Templates

func (svc *Service) CreateTemplate(ctx context.Context, actor user.User, nt NewTemplate) (Template, error) {
	if err := staffOnly(actor); err != nil {
		return Template{}, err
	}
	if err := nt.Validate(svc.validate); err != nil {
		return Template{}, err
	}
	now := svc.nowFunc().UTC()
	t := Template{
		Name:        nt.Name,
		Description: nt.Description,
		ReportType:  nt.ReportType,
		Fields:      nt.Fields,
		Filters:     nt.Filters,
		IsActive:    nt.IsActive == nil || *nt.IsActive,
		CreatedBy:   actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	t, err := svc.repo.CreateTemplate(ctx, t)
	if err != nil {
		return Template{}, errors.Wrap(err, "creating report template")
	}
	return t, nil
}

// Templates lists active templates. Staff may also list inactive ones.
func (svc *Service) Templates(ctx context.Context, actor user.User, includeInactive bool) ([]Template, error) {
	return svc.repo.QueryTemplates(ctx, !(includeInactive && actor.IsStaff()))
}

func (svc *Service) GetTemplate(ctx context.Context, actor user.User, id string) (Template, error) {
	t, err := svc.repo.GetTemplate(ctx, id)
	if err != nil {
		return Template{}, err
	}
	if !t.IsActive && !actor.IsStaff() {
		return Template{}, ErrTemplateNotFound
	}
	return t, nil
}

func (svc *Service) UpdateTemplate(ctx context.Context, actor user.User, id string, ut UpdateTemplate) (Template, error) {
	if err := staffOnly(actor); err != nil {
		return Template{}, err
	}
	t, err := svc.repo.GetTemplate(ctx, id)
	if err != nil {
		return Template{}, err
	}
	if err = ut.Validate(svc.validate); err != nil {
		return Template{}, err
	}
	ut.apply(&t)
	t.UpdatedAt = svc.nowFunc().UTC()
	return svc.repo.UpdateTemplate(ctx, t)
}

func (svc *Service) DeleteTemplate(ctx context.Context, actor user.User, id string) error {
	if err := staffOnly(actor); err != nil {
		return err
	}
	return svc.repo.DeleteTemplate(ctx, id)
}

// Reports

func (svc *Service) activeTemplate(ctx context.Context, id string) (Template, error) {
	t, err := svc.repo.GetTemplate(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrTemplateNotFound {
			return Template{}, errInvalidTemplate
		}
		return Template{}, errors.Wrap(err, "getting report template")
	}
	if !t.IsActive {
		return Template{}, errInvalidTemplate
	}
	return t, nil
}

// Generate records a report built from a template. Rendering the file is out of scope,
// so the report is completed right away.
func (svc *Service) Generate(ctx context.Context, actor user.User, gr GenerateRequest) (Report, error) {
	if err := gr.Validate(svc.validate); err != nil {
		return Report{}, err
	}
	tmpl, err := svc.activeTemplate(ctx, gr.TemplateID)
	if err != nil {
		return Report{}, err
	}
	if tmpl.ReportType == TypeAnalyticsReport && !actor.IsStaff() {
		return Report{}, errAnalyticsForStaff
	}

	now := svc.nowFunc().UTC()
	r := Report{
		Name:           gr.Name,
		Description:    gr.Description,
		TemplateID:     tmpl.ID,
		TemplateName:   tmpl.Name,
		ReportType:     tmpl.ReportType,
		GeneratedBy:    actor.ID,
		Status:         StatusCompleted,
		Format:         gr.Format,
		FiltersApplied: gr.Filters,
		IsPublic:       gr.IsPublic,
		CreatedAt:      now,
		CompletedAt:    &now,
	}
	if r.Name == "" {
		r.Name = fmt.Sprintf("%s - %s", tmpl.Name, now.Format(core.DateLayout))
	}
	if string(r.FiltersApplied) == string(emptyFilters) {
		r.FiltersApplied = tmpl.Filters
	}
	if gr.ExpiresInDays != nil {
		exp := now.AddDate(0, 0, *gr.ExpiresInDays)
		r.ExpiresAt = &exp
	}

	r, err = svc.repo.CreateReport(ctx, r)
	if err != nil {
		return Report{}, errors.Wrap(err, "creating report")
	}
	return r, nil
}

func (svc *Service) Query(ctx context.Context, actor user.User, filter *QueryFilter) ([]Report, error) {
	return svc.repo.QueryReports(ctx, viewerID(actor), filter)
}

func (svc *Service) Get(ctx context.Context, actor user.User, id string) (Report, error) {
	r, err := svc.repo.GetReport(ctx, id)
	if err != nil {
		return Report{}, err
	}
	if !canSee(actor, r) {
		return Report{}, ErrNotFound
	}
	return r, nil
}

// Download records that actor downloaded the report and returns it with its new download count.
func (svc *Service) Download(ctx context.Context, actor user.User, id, ip, userAgent string) (Report, error) {
	r, err := svc.Get(ctx, actor, id)
	if err != nil {
		return Report{}, err
	}
	now := svc.nowFunc().UTC()
	if r.IsExpired(now) {
		return Report{}, ErrExpired
	}
	r, err = svc.repo.RecordDownload(ctx, Access{
		ReportID:   r.ID,
		UserID:     actor.ID,
		Action:     ActionDownload,
		IPAddress:  ip,
		UserAgent:  userAgent,
		AccessedAt: now,
	})
	if err != nil {
		return Report{}, errors.Wrap(err, "recording download")
	}
	return r, nil
}

func (svc *Service) Stats(ctx context.Context, actor user.User) (Stats, error) {
	return svc.repo.ReportStats(ctx, viewerID(actor), core.MonthStart(svc.nowFunc()))
}

// Schedules

func (svc *Service) CreateSchedule(ctx context.Context, actor user.User, ns NewSchedule) (Schedule, error) {
	if err := staffOnly(actor); err != nil {
		return Schedule{}, err
	}
	if err := ns.Validate(svc.validate); err != nil {
		return Schedule{}, err
	}
	if _, err := svc.activeTemplate(ctx, ns.TemplateID); err != nil {
		return Schedule{}, err
	}

	now := svc.nowFunc().UTC()
	next := ns.Frequency.Next(now)
	s := Schedule{
		Name:       ns.Name,
		TemplateID: ns.TemplateID,
		CreatedBy:  actor.ID,
		Frequency:  ns.Frequency,
		Recipients: ns.Recipients,
		Filters:    ns.Filters,
		Format:     ns.Format,
		IsActive:   ns.IsActive == nil || *ns.IsActive,
		NextRun:    &next,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s, err := svc.repo.CreateSchedule(ctx, s)
	if err != nil {
		return Schedule{}, errors.Wrap(err, "creating report schedule")
	}
	return s, nil
}

func (svc *Service) Schedules(ctx context.Context, actor user.User) ([]Schedule, error) {
	if err := staffOnly(actor); err != nil {
		return nil, err
	}
	return svc.repo.QuerySchedules(ctx)
}

func (svc *Service) GetSchedule(ctx context.Context, actor user.User, id string) (Schedule, error) {
	if err := staffOnly(actor); err != nil {
		return Schedule{}, err
	}
	return svc.repo.GetSchedule(ctx, id)
}

func (svc *Service) UpdateSchedule(ctx context.Context, actor user.User, id string, us UpdateSchedule) (Schedule, error) {
	s, err := svc.GetSchedule(ctx, actor, id)
	if err != nil {
		return Schedule{}, err
	}
	if err = us.Validate(svc.validate); err != nil {
		return Schedule{}, err
	}
	freqChanged := us.Frequency != "" && us.Frequency != s.Frequency
	us.apply(&s)
	now := svc.nowFunc().UTC()
	if freqChanged {
		from := now
		if s.LastRun != nil {
			from = *s.LastRun
		}
		next := s.Frequency.Next(from)
		s.NextRun = &next
	}
	s.UpdatedAt = now
	return svc.repo.UpdateSchedule(ctx, s)
}

func (svc *Service) DeleteSchedule(ctx context.Context, actor user.User, id string) error {
	if err := staffOnly(actor); err != nil {
		return err
	}
	return svc.repo.DeleteSchedule(ctx, id)
}

// RunDueSchedules generates a report for every due schedule, emails its recipients
// and moves the schedule's next run forward. It returns the number of reports generated.
func (svc *Service) RunDueSchedules(ctx context.Context) (int, error) {
	now := svc.nowFunc().UTC()
	due, err := svc.repo.QueryDueSchedules(ctx, now)
	if err != nil {
		return 0, errors.Wrap(err, "querying due schedules")
	}

	var generated int
	for _, s := range due {
		if err = ctx.Err(); err != nil {
			return generated, err
		}
		r, err := svc.runSchedule(ctx, s, now)
		if err != nil {
			if svc.logger != nil {
				svc.logger.Error(fmt.Sprintf("running report schedule %s: %v", s.ID, err), err)
			}
			continue
		}
		generated++

		var to []mail.Address
		for _, addr := range s.Recipients {
			to = append(to, mail.Address{Address: addr})
		}
		if len(to) > 0 && svc.mailSvc != nil {
			svc.mailSvc.SendMessages(&core.EmailMessage{
				To:           to,
				Subject:      "Scheduled report: " + s.Name,
				TemplateName: "report_ready",
				TemplateData: map[string]interface{}{
					"ScheduleName": s.Name,
					"ReportName":   r.Name,
					"ReportID":     r.ID,
					"Format":       string(r.Format),
				},
			})
		}
	}
	return generated, nil
}

func (svc *Service) runSchedule(ctx context.Context, s Schedule, now time.Time) (Report, error) {
	// the schedule moves on even if its template went away, so it does not fail on every tick
	next := s.Frequency.Next(now)
	if err := svc.repo.MarkScheduleRun(ctx, s.ID, now, next); err != nil {
		return Report{}, errors.Wrap(err, "marking schedule run")
	}

	tmpl, err := svc.activeTemplate(ctx, s.TemplateID)
	if err != nil {
		return Report{}, err
	}
	filters := s.Filters
	if len(filters) == 0 || string(filters) == string(emptyFilters) {
		filters = tmpl.Filters
	}
	r := Report{
		Name:           fmt.Sprintf("%s - %s", s.Name, now.Format(core.DateLayout)),
		TemplateID:     tmpl.ID,
		TemplateName:   tmpl.Name,
		ReportType:     tmpl.ReportType,
		GeneratedBy:    s.CreatedBy,
		Status:         StatusCompleted,
		Format:         s.Format,
		FiltersApplied: filters,
		CreatedAt:      now,
		CompletedAt:    &now,
	}
	r, err = svc.repo.CreateReport(ctx, r)
	if err != nil {
		return Report{}, errors.Wrap(err, "creating scheduled report")
	}
	return r, nil
}
