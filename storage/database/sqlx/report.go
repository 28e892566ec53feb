package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/Gokulakrishnan610/chicken-dinner/core/report"
)

var _ report.Repository = (*Store)(nil)

type templateRow struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	Description string         `db:"description"`
	ReportType  string         `db:"report_type"`
	Fields      pq.StringArray `db:"fields"`
	Filters     types.JSONText `db:"filters"`
	IsActive    bool           `db:"is_active"`
	CreatedBy   string         `db:"created_by"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func toTemplateRow(t report.Template) templateRow {
	return templateRow{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		ReportType:  string(t.ReportType),
		Fields:      stringsOrEmpty(t.Fields),
		Filters:     jsonObject(t.Filters),
		IsActive:    t.IsActive,
		CreatedBy:   t.CreatedBy,
		CreatedAt:   t.CreatedAt.UTC(),
		UpdatedAt:   t.UpdatedAt.UTC(),
	}
}

func (r templateRow) toTemplate() report.Template {
	return report.Template{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		ReportType:  report.Type(r.ReportType),
		Fields:      stringsOrEmpty(r.Fields),
		Filters:     json.RawMessage(r.Filters),
		IsActive:    r.IsActive,
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

const reportColumns = `r.id, r.name, r.description, r.template_id, t.name AS template_name, t.report_type,
	r.generated_by, r.status, r.format, r.filters_applied, r.download_count, r.is_public, r.expires_at,
	r.created_at, r.completed_at`

type reportRow struct {
	ID             string         `db:"id"`
	Name           string         `db:"name"`
	Description    string         `db:"description"`
	TemplateID     string         `db:"template_id"`
	TemplateName   string         `db:"template_name"`
	ReportType     string         `db:"report_type"`
	GeneratedBy    string         `db:"generated_by"`
	Status         string         `db:"status"`
	Format         string         `db:"format"`
	FiltersApplied types.JSONText `db:"filters_applied"`
	DownloadCount  int            `db:"download_count"`
	IsPublic       bool           `db:"is_public"`
	ExpiresAt      null.Time      `db:"expires_at"`
	CreatedAt      time.Time      `db:"created_at"`
	CompletedAt    null.Time      `db:"completed_at"`
}

func (r reportRow) toReport() report.Report {
	return report.Report{
		ID:             r.ID,
		Name:           r.Name,
		Description:    r.Description,
		TemplateID:     r.TemplateID,
		TemplateName:   r.TemplateName,
		ReportType:     report.Type(r.ReportType),
		GeneratedBy:    r.GeneratedBy,
		Status:         report.Status(r.Status),
		Format:         report.Format(r.Format),
		FiltersApplied: json.RawMessage(r.FiltersApplied),
		DownloadCount:  r.DownloadCount,
		IsPublic:       r.IsPublic,
		ExpiresAt:      r.ExpiresAt.Ptr(),
		CreatedAt:      r.CreatedAt.UTC(),
		CompletedAt:    r.CompletedAt.Ptr(),
	}
}

type scheduleRow struct {
	ID         string         `db:"id"`
	Name       string         `db:"name"`
	TemplateID string         `db:"template_id"`
	CreatedBy  string         `db:"created_by"`
	Frequency  string         `db:"frequency"`
	Recipients pq.StringArray `db:"recipients"`
	Filters    types.JSONText `db:"filters"`
	Format     string         `db:"format"`
	IsActive   bool           `db:"is_active"`
	LastRun    null.Time      `db:"last_run"`
	NextRun    null.Time      `db:"next_run"`
	CreatedAt  time.Time      `db:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at"`
}

func toScheduleRow(s report.Schedule) scheduleRow {
	return scheduleRow{
		ID:         s.ID,
		Name:       s.Name,
		TemplateID: s.TemplateID,
		CreatedBy:  s.CreatedBy,
		Frequency:  string(s.Frequency),
		Recipients: stringsOrEmpty(s.Recipients),
		Filters:    jsonObject(s.Filters),
		Format:     string(s.Format),
		IsActive:   s.IsActive,
		LastRun:    null.TimeFromPtr(s.LastRun),
		NextRun:    null.TimeFromPtr(s.NextRun),
		CreatedAt:  s.CreatedAt.UTC(),
		UpdatedAt:  s.UpdatedAt.UTC(),
	}
}

func (r scheduleRow) toSchedule() report.Schedule {
	return report.Schedule{
		ID:         r.ID,
		Name:       r.Name,
		TemplateID: r.TemplateID,
		CreatedBy:  r.CreatedBy,
		Frequency:  report.Frequency(r.Frequency),
		Recipients: stringsOrEmpty(r.Recipients),
		Filters:    json.RawMessage(r.Filters),
		Format:     report.Format(r.Format),
		IsActive:   r.IsActive,
		LastRun:    r.LastRun.Ptr(),
		NextRun:    r.NextRun.Ptr(),
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
}

func (s *Store) CreateTemplate(ctx context.Context, t report.Template) (report.Template, error) {
	t.ID = uuid.New().String()
	q := `INSERT INTO report_templates (id, name, description, report_type, fields, filters, is_active, created_by,
		created_at, updated_at) VALUES (:id, :name, :description, :report_type, :fields, :filters, :is_active,
		:created_by, :created_at, :updated_at)`
	row := toTemplateRow(t)
	if _, err := s.db.NamedExecContext(ctx, q, row); err != nil {
		return report.Template{}, errors.Wrap(err, "inserting report template")
	}
	return row.toTemplate(), nil
}

func (s *Store) QueryTemplates(ctx context.Context, activeOnly bool) ([]report.Template, error) {
	var rows []templateRow
	q := "SELECT * FROM report_templates WHERE ($1 = false OR is_active) ORDER BY name"
	if err := s.db.SelectContext(ctx, &rows, q, activeOnly); err != nil {
		return nil, errors.Wrap(err, "querying report templates")
	}
	list := make([]report.Template, 0, len(rows))
	for _, r := range rows {
		list = append(list, r.toTemplate())
	}
	return list, nil
}

func (s *Store) GetTemplate(ctx context.Context, id string) (report.Template, error) {
	if !validID(id) {
		return report.Template{}, report.ErrTemplateNotFound
	}
	var r templateRow
	if err := s.db.GetContext(ctx, &r, "SELECT * FROM report_templates WHERE id = $1", id); err != nil {
		return report.Template{}, trapNoRows(err, report.ErrTemplateNotFound, "getting report template")
	}
	return r.toTemplate(), nil
}

func (s *Store) UpdateTemplate(ctx context.Context, t report.Template) (report.Template, error) {
	if !validID(t.ID) {
		return report.Template{}, report.ErrTemplateNotFound
	}
	q := `UPDATE report_templates SET name = :name, description = :description, report_type = :report_type,
		fields = :fields, filters = :filters, is_active = :is_active, updated_at = :updated_at
		WHERE id = :id`
	res, err := s.db.NamedExecContext(ctx, q, toTemplateRow(t))
	if err != nil {
		return report.Template{}, errors.Wrap(err, "updating report template")
	}
	if n, err := rowsAffected(res, "updating report template"); err != nil {
		return report.Template{}, err
	} else if n == 0 {
		return report.Template{}, report.ErrTemplateNotFound
	}
	return s.GetTemplate(ctx, t.ID)
}

// DeleteTemplate relies on ON DELETE CASCADE for the template's reports & schedules.
func (s *Store) DeleteTemplate(ctx context.Context, id string) error {
	if !validID(id) {
		return report.ErrTemplateNotFound
	}
	n, err := s.execCount(ctx, "deleting report template", "DELETE FROM report_templates WHERE id = $1", id)
	if err == nil && n == 0 {
		return report.ErrTemplateNotFound
	}
	return err
}

func (s *Store) CreateReport(ctx context.Context, r report.Report) (report.Report, error) {
	if !validID(r.TemplateID) {
		return report.Report{}, report.ErrTemplateNotFound
	}
	r.ID = uuid.New().String()
	q := `INSERT INTO reports (id, name, description, template_id, generated_by, status, format, filters_applied,
		download_count, is_public, expires_at, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := s.db.ExecContext(ctx, q, r.ID, r.Name, r.Description, r.TemplateID, r.GeneratedBy, string(r.Status),
		string(r.Format), jsonObject(r.FiltersApplied), r.DownloadCount, r.IsPublic, null.TimeFromPtr(r.ExpiresAt),
		r.CreatedAt.UTC(), null.TimeFromPtr(r.CompletedAt))
	if err != nil {
		if pqCode(err) == pqForeignKeyViolation {
			return report.Report{}, report.ErrTemplateNotFound
		}
		return report.Report{}, errors.Wrap(err, "inserting report")
	}
	return s.GetReport(ctx, r.ID)
}

func (s *Store) QueryReports(ctx context.Context, viewerID string, filter *report.QueryFilter) ([]report.Report, error) {
	var w where
	if viewerID != "" {
		w.add("(r.generated_by::text = ? OR r.is_public)", viewerID)
	}
	if filter != nil {
		if filter.Status != "" {
			w.add("r.status = ?", string(filter.Status))
		}
		if filter.Format != "" {
			w.add("r.format = ?", string(filter.Format))
		}
		if filter.TemplateID != "" {
			w.add("r.template_id::text = ?", filter.TemplateID)
		}
	}

	q := "SELECT " + reportColumns + " FROM reports r JOIN report_templates t ON t.id = r.template_id" +
		w.String() + " ORDER BY r.created_at DESC"
	var rows []reportRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying reports")
	}
	list := make([]report.Report, 0, len(rows))
	for _, r := range rows {
		list = append(list, r.toReport())
	}
	return list, nil
}

func getReport(ctx context.Context, q querier, id string) (report.Report, error) {
	var r reportRow
	query := "SELECT " + reportColumns + " FROM reports r JOIN report_templates t ON t.id = r.template_id WHERE r.id = $1"
	if err := q.GetContext(ctx, &r, query, id); err != nil {
		return report.Report{}, trapNoRows(err, report.ErrNotFound, "getting report")
	}
	return r.toReport(), nil
}

func (s *Store) GetReport(ctx context.Context, id string) (report.Report, error) {
	if !validID(id) {
		return report.Report{}, report.ErrNotFound
	}
	return getReport(ctx, s.db, id)
}

func (s *Store) RecordDownload(ctx context.Context, a report.Access) (report.Report, error) {
	if !validID(a.ReportID) {
		return report.Report{}, report.ErrNotFound
	}
	var r report.Report
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, "UPDATE reports SET download_count = download_count + 1 WHERE id = $1", a.ReportID)
		if err != nil {
			return errors.Wrap(err, "counting download")
		}
		if n, err := rowsAffected(res, "counting download"); err != nil {
			return err
		} else if n == 0 {
			return report.ErrNotFound
		}

		q := `INSERT INTO report_analytics (id, report_id, user_id, action, ip_address, user_agent, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`
		_, err = tx.ExecContext(ctx, q,
			uuid.New().String(), a.ReportID, a.UserID, a.Action, a.IPAddress, a.UserAgent, a.AccessedAt.UTC())
		if err != nil {
			return errors.Wrap(err, "recording report access")
		}
		r, err = getReport(ctx, tx, a.ReportID)
		return err
	})
	return r, err
}

func (s *Store) ReportStats(ctx context.Context, viewerID string, monthStart time.Time) (report.Stats, error) {
	var stats struct {
		Total          int `db:"total"`
		Completed      int `db:"completed"`
		Pending        int `db:"pending"`
		Failed         int `db:"failed"`
		TotalDownloads int `db:"total_downloads"`
		ThisMonth      int `db:"this_month"`
	}
	q := `SELECT COUNT(*) AS total,
		COUNT(*) FILTER (WHERE status = 'completed') AS completed,
		COUNT(*) FILTER (WHERE status IN ('pending', 'generating')) AS pending,
		COUNT(*) FILTER (WHERE status = 'failed') AS failed,
		COALESCE(SUM(download_count), 0) AS total_downloads,
		COUNT(*) FILTER (WHERE created_at >= $1) AS this_month
		FROM reports
		WHERE ($2 = '' OR generated_by::text = $2)`
	if err := s.db.GetContext(ctx, &stats, q, monthStart.UTC(), viewerID); err != nil {
		return report.Stats{}, errors.Wrap(err, "computing report stats")
	}
	return report.Stats(stats), nil
}

func (s *Store) CreateSchedule(ctx context.Context, sch report.Schedule) (report.Schedule, error) {
	if !validID(sch.TemplateID) {
		return report.Schedule{}, report.ErrTemplateNotFound
	}
	sch.ID = uuid.New().String()
	q := `INSERT INTO report_schedules (id, name, template_id, created_by, frequency, recipients, filters, format,
		is_active, last_run, next_run, created_at, updated_at) VALUES (:id, :name, :template_id, :created_by,
		:frequency, :recipients, :filters, :format, :is_active, :last_run, :next_run, :created_at, :updated_at)`
	row := toScheduleRow(sch)
	if _, err := s.db.NamedExecContext(ctx, q, row); err != nil {
		if pqCode(err) == pqForeignKeyViolation {
			return report.Schedule{}, report.ErrTemplateNotFound
		}
		return report.Schedule{}, errors.Wrap(err, "inserting report schedule")
	}
	return row.toSchedule(), nil
}

func (s *Store) QuerySchedules(ctx context.Context) ([]report.Schedule, error) {
	return s.selectSchedules(ctx, "SELECT * FROM report_schedules ORDER BY created_at DESC")
}

func (s *Store) selectSchedules(ctx context.Context, q string, args ...interface{}) ([]report.Schedule, error) {
	var rows []scheduleRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying report schedules")
	}
	list := make([]report.Schedule, 0, len(rows))
	for _, r := range rows {
		list = append(list, r.toSchedule())
	}
	return list, nil
}

func (s *Store) GetSchedule(ctx context.Context, id string) (report.Schedule, error) {
	if !validID(id) {
		return report.Schedule{}, report.ErrScheduleNotFound
	}
	var r scheduleRow
	if err := s.db.GetContext(ctx, &r, "SELECT * FROM report_schedules WHERE id = $1", id); err != nil {
		return report.Schedule{}, trapNoRows(err, report.ErrScheduleNotFound, "getting report schedule")
	}
	return r.toSchedule(), nil
}

// UpdateSchedule never changes the template & creator of a schedule.
func (s *Store) UpdateSchedule(ctx context.Context, sch report.Schedule) (report.Schedule, error) {
	if !validID(sch.ID) {
		return report.Schedule{}, report.ErrScheduleNotFound
	}
	q := `UPDATE report_schedules SET name = :name, frequency = :frequency, recipients = :recipients,
		filters = :filters, format = :format, is_active = :is_active, last_run = :last_run, next_run = :next_run,
		updated_at = :updated_at
		WHERE id = :id`
	res, err := s.db.NamedExecContext(ctx, q, toScheduleRow(sch))
	if err != nil {
		return report.Schedule{}, errors.Wrap(err, "updating report schedule")
	}
	if n, err := rowsAffected(res, "updating report schedule"); err != nil {
		return report.Schedule{}, err
	} else if n == 0 {
		return report.Schedule{}, report.ErrScheduleNotFound
	}
	return s.GetSchedule(ctx, sch.ID)
}

func (s *Store) DeleteSchedule(ctx context.Context, id string) error {
	if !validID(id) {
		return report.ErrScheduleNotFound
	}
	n, err := s.execCount(ctx, "deleting report schedule", "DELETE FROM report_schedules WHERE id = $1", id)
	if err == nil && n == 0 {
		return report.ErrScheduleNotFound
	}
	return err
}

func (s *Store) QueryDueSchedules(ctx context.Context, now time.Time) ([]report.Schedule, error) {
	q := "SELECT * FROM report_schedules WHERE is_active AND next_run <= $1 ORDER BY next_run"
	return s.selectSchedules(ctx, q, now.UTC())
}

func (s *Store) MarkScheduleRun(ctx context.Context, id string, lastRun, nextRun time.Time) error {
	if !validID(id) {
		return report.ErrScheduleNotFound
	}
	q := "UPDATE report_schedules SET last_run = $1, next_run = $2, updated_at = $1 WHERE id = $3"
	n, err := s.execCount(ctx, "marking report schedule run", q, lastRun.UTC(), nextRun.UTC(), id)
	if err == nil && n == 0 {
		return report.ErrScheduleNotFound
	}
	return err
}
