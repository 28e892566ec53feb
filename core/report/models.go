package report

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Gokulakrishnan610/chicken-dinner/core"
)

type (
	Type      string
	Status    string
	Format    string
	Frequency string
)

const (
	TypeUserSummary        Type = "user_summary"
	TypeAchievementReport  Type = "achievement_report"
	TypeCertificateReport  Type = "certificate_report"
	TypeVolunteeringReport Type = "volunteering_report"
	TypeAnalyticsReport    Type = "analytics_report"
	TypeCustom             Type = "custom"

	StatusPending    Status = "pending"
	StatusGenerating Status = "generating"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"

	FormatPDF   Format = "pdf"
	FormatExcel Format = "excel"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"

	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"

	ActionDownload = "download"
)

var (
	emptyFilters = json.RawMessage("{}")

	ErrNotFound         = core.NewNotFoundError("report")
	ErrTemplateNotFound = core.NewNotFoundError("report template")
	ErrScheduleNotFound = core.NewNotFoundError("report schedule")
	ErrExpired          = core.NewExpiredError("report")

	errStaffOnly         = core.NewPermissionError("only faculty and admins can manage report templates and schedules")
	errAnalyticsForStaff = core.NewPermissionError("only faculty and admins can generate analytics reports")
	errInvalidTemplate   = core.NewValidationError(nil, core.FieldError{Field: "template_id", Error: "invalid template"})
	errFiltersNotKV      = core.NewValidationError(nil, core.FieldError{Field: "filters", Error: "must be a JSON object"})
)

// Next returns the run following one at t.
func (f Frequency) Next(t time.Time) time.Time {
	switch f {
	case FrequencyDaily:
		return t.AddDate(0, 0, 1)
	case FrequencyWeekly:
		return t.AddDate(0, 0, 7)
	case FrequencyMonthly:
		return t.AddDate(0, 1, 0)
	case FrequencyQuarterly:
		return t.AddDate(0, 3, 0)
	case FrequencyYearly:
		return t.AddDate(1, 0, 0)
	}
	return t.AddDate(0, 0, 1)
}

type Template struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	ReportType  Type            `json:"report_type"`
	Fields      []string        `json:"fields"`
	Filters     json.RawMessage `json:"filters"`
	IsActive    bool            `json:"is_active"`
	CreatedBy   string          `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type NewTemplate struct {
	Name        string          `json:"name" validate:"required,notblank,max=200"`
	Description string          `json:"description" validate:"max=5000"`
	ReportType  Type            `json:"report_type" validate:"required,oneof=user_summary achievement_report certificate_report volunteering_report analytics_report custom"`
	Fields      []string        `json:"fields" validate:"max=100,dive,notblank,max=100"`
	Filters     json.RawMessage `json:"filters"`
	IsActive    *bool           `json:"is_active"`
}

func (nt *NewTemplate) Validate(validate *validator.Validate) error {
	nt.Name = core.CleanString(nt.Name)
	nt.Description = core.CleanString(nt.Description)
	nt.Fields = core.CleanStrings(nt.Fields)
	if err := validate.Struct(nt); err != nil {
		return err
	}
	var err error
	nt.Filters, err = cleanFilters(nt.Filters)
	return err
}

type UpdateTemplate struct {
	Name        *string         `json:"name" validate:"omitempty,notblank,max=200"`
	Description *string         `json:"description" validate:"omitempty,max=5000"`
	ReportType  Type            `json:"report_type" validate:"omitempty,oneof=user_summary achievement_report certificate_report volunteering_report analytics_report custom"`
	Fields      []string        `json:"fields" validate:"omitempty,max=100,dive,notblank,max=100"`
	Filters     json.RawMessage `json:"filters"`
	IsActive    *bool           `json:"is_active"`
}

func (ut *UpdateTemplate) Validate(validate *validator.Validate) error {
	if ut.Name != nil {
		*ut.Name = core.CleanString(*ut.Name)
	}
	if ut.Description != nil {
		*ut.Description = core.CleanString(*ut.Description)
	}
	if ut.Fields != nil {
		ut.Fields = core.CleanStrings(ut.Fields)
	}
	if err := validate.Struct(ut); err != nil {
		return err
	}
	if ut.Filters != nil {
		var err error
		ut.Filters, err = cleanFilters(ut.Filters)
		return err
	}
	return nil
}

func (ut UpdateTemplate) apply(t *Template) {
	if ut.Name != nil {
		t.Name = *ut.Name
	}
	if ut.Description != nil {
		t.Description = *ut.Description
	}
	if ut.ReportType != "" {
		t.ReportType = ut.ReportType
	}
	if ut.Fields != nil {
		t.Fields = ut.Fields
	}
	if ut.Filters != nil {
		t.Filters = ut.Filters
	}
	if ut.IsActive != nil {
		t.IsActive = *ut.IsActive
	}
}

type Report struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	TemplateID     string          `json:"template_id"`
	TemplateName   string          `json:"template_name"`
	ReportType     Type            `json:"report_type"`
	GeneratedBy    string          `json:"generated_by"`
	Status         Status          `json:"status"`
	Format         Format          `json:"format"`
	FiltersApplied json.RawMessage `json:"filters_applied"`
	DownloadCount  int             `json:"download_count"`
	IsPublic       bool            `json:"is_public"`
	ExpiresAt      *time.Time      `json:"expires_at"`
	CreatedAt      time.Time       `json:"created_at"`
	CompletedAt    *time.Time      `json:"completed_at"`
}

func (r Report) IsExpired(now time.Time) bool {
	return r.ExpiresAt != nil && !now.Before(*r.ExpiresAt)
}

type GenerateRequest struct {
	TemplateID    string          `json:"template_id" validate:"required,uuid"`
	Name          string          `json:"name" validate:"max=200"`
	Description   string          `json:"description" validate:"max=5000"`
	Format        Format          `json:"format" validate:"omitempty,oneof=pdf excel csv json"`
	Filters       json.RawMessage `json:"filters"`
	IsPublic      bool            `json:"is_public"`
	ExpiresInDays *int            `json:"expires_in_days" validate:"omitempty,min=1,max=365"`
}

func (gr *GenerateRequest) Validate(validate *validator.Validate) error {
	gr.TemplateID = core.CleanString(gr.TemplateID, true /* lower */)
	gr.Name = core.CleanString(gr.Name)
	gr.Description = core.CleanString(gr.Description)
	if gr.Format == "" {
		gr.Format = FormatPDF
	}
	if err := validate.Struct(gr); err != nil {
		return err
	}
	var err error
	gr.Filters, err = cleanFilters(gr.Filters)
	return err
}

type QueryFilter struct {
	Status     Status `query:"status"`
	Format     Format `query:"format"`
	TemplateID string `query:"template"`
}

// Access records a use of a report, e.g. a download.
type Access struct {
	ID         string    `json:"id"`
	ReportID   string    `json:"report_id"`
	UserID     string    `json:"user_id"`
	Action     string    `json:"action"`
	IPAddress  string    `json:"ip_address"`
	UserAgent  string    `json:"user_agent"`
	AccessedAt time.Time `json:"created_at"`
}

type Stats struct {
	Total          int `json:"total_reports"`
	Completed      int `json:"completed_reports"`
	Pending        int `json:"pending_reports"`
	Failed         int `json:"failed_reports"`
	TotalDownloads int `json:"total_downloads"`
	ThisMonth      int `json:"reports_this_month"`
}

type Schedule struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	TemplateID string          `json:"template_id"`
	CreatedBy  string          `json:"created_by"`
	Frequency  Frequency       `json:"frequency"`
	Recipients []string        `json:"recipients"`
	Filters    json.RawMessage `json:"filters"`
	Format     Format          `json:"format"`
	IsActive   bool            `json:"is_active"`
	LastRun    *time.Time      `json:"last_run"`
	NextRun    *time.Time      `json:"next_run"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type NewSchedule struct {
	Name       string          `json:"name" validate:"required,notblank,max=200"`
	TemplateID string          `json:"template_id" validate:"required,uuid"`
	Frequency  Frequency       `json:"frequency" validate:"required,oneof=daily weekly monthly quarterly yearly"`
	Recipients []string        `json:"recipients" validate:"required,min=1,max=50,dive,email"`
	Filters    json.RawMessage `json:"filters"`
	Format     Format          `json:"format" validate:"omitempty,oneof=pdf excel csv json"`
	IsActive   *bool           `json:"is_active"`
}

func (ns *NewSchedule) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.TemplateID = core.CleanString(ns.TemplateID, true /* lower */)
	ns.Recipients = core.CleanStrings(ns.Recipients, true /* lower */)
	if ns.Format == "" {
		ns.Format = FormatPDF
	}
	if err := validate.Struct(ns); err != nil {
		return err
	}
	var err error
	ns.Filters, err = cleanFilters(ns.Filters)
	return err
}

type UpdateSchedule struct {
	Name       *string         `json:"name" validate:"omitempty,notblank,max=200"`
	Frequency  Frequency       `json:"frequency" validate:"omitempty,oneof=daily weekly monthly quarterly yearly"`
	Recipients []string        `json:"recipients" validate:"omitempty,min=1,max=50,dive,email"`
	Filters    json.RawMessage `json:"filters"`
	Format     Format          `json:"format" validate:"omitempty,oneof=pdf excel csv json"`
	IsActive   *bool           `json:"is_active"`
}

func (us *UpdateSchedule) Validate(validate *validator.Validate) error {
	if us.Name != nil {
		*us.Name = core.CleanString(*us.Name)
	}
	if us.Recipients != nil {
		us.Recipients = core.CleanStrings(us.Recipients, true /* lower */)
	}
	if err := validate.Struct(us); err != nil {
		return err
	}
	if us.Filters != nil {
		var err error
		us.Filters, err = cleanFilters(us.Filters)
		return err
	}
	return nil
}

func (us UpdateSchedule) apply(s *Schedule) {
	if us.Name != nil {
		s.Name = *us.Name
	}
	if us.Frequency != "" {
		s.Frequency = us.Frequency
	}
	if us.Recipients != nil {
		s.Recipients = us.Recipients
	}
	if us.Filters != nil {
		s.Filters = us.Filters
	}
	if us.Format != "" {
		s.Format = us.Format
	}
	if us.IsActive != nil {
		s.IsActive = *us.IsActive
	}
}

// cleanFilters defaults empty filters to {} and rejects anything but a JSON object.
func cleanFilters(raw json.RawMessage) (json.RawMessage, error) {
	filters, ok := core.CleanJSONObject(raw)
	if !ok {
		return nil, errFiltersNotKV
	}
	return filters, nil
}
