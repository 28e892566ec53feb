package inmemdb

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Gokulakrishnan610/chicken-dinner/core/report"
)

var _ report.Repository = (*DB)(nil)

func copyTemplate(t *report.Template) report.Template {
	cp := *t
	cp.Fields = cloneStrings(t.Fields)
	cp.Filters = append(json.RawMessage(nil), t.Filters...)
	return cp
}

func (db *DB) loadReport(r *report.Report) report.Report {
	cp := *r
	cp.FiltersApplied = append(json.RawMessage(nil), r.FiltersApplied...)
	cp.ExpiresAt = cloneTime(r.ExpiresAt)
	cp.CompletedAt = cloneTime(r.CompletedAt)
	if t, ok := db.templates[r.TemplateID]; ok {
		cp.TemplateName, cp.ReportType = t.Name, t.ReportType
	}
	return cp
}

func copySchedule(s *report.Schedule) report.Schedule {
	cp := *s
	cp.Recipients = cloneStrings(s.Recipients)
	cp.Filters = append(json.RawMessage(nil), s.Filters...)
	cp.LastRun = cloneTime(s.LastRun)
	cp.NextRun = cloneTime(s.NextRun)
	return cp
}

func (db *DB) CreateTemplate(_ context.Context, t report.Template) (report.Template, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	t.ID = uuid.New().String()
	t.Fields = cloneStrings(t.Fields)
	db.templates[t.ID] = &t
	return copyTemplate(&t), nil
}

func (db *DB) QueryTemplates(_ context.Context, activeOnly bool) ([]report.Template, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	list := make([]report.Template, 0, len(db.templates))
	for _, t := range db.templates {
		if !activeOnly || t.IsActive {
			list = append(list, copyTemplate(t))
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

func (db *DB) GetTemplate(_ context.Context, id string) (report.Template, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if t, ok := db.templates[id]; ok {
		return copyTemplate(t), nil
	}
	return report.Template{}, report.ErrTemplateNotFound
}

func (db *DB) UpdateTemplate(_ context.Context, t report.Template) (report.Template, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	orig, ok := db.templates[t.ID]
	if !ok {
		return report.Template{}, report.ErrTemplateNotFound
	}
	t.CreatedBy, t.CreatedAt = orig.CreatedBy, orig.CreatedAt
	t.Fields = cloneStrings(t.Fields)
	*orig = t
	return copyTemplate(orig), nil
}

// DeleteTemplate also deletes the template's reports and schedules.
func (db *DB) DeleteTemplate(_ context.Context, id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.templates[id]; !ok {
		return report.ErrTemplateNotFound
	}
	delete(db.templates, id)
	for rid, r := range db.reports {
		if r.TemplateID == id {
			delete(db.reports, rid)
		}
	}
	for sid, s := range db.schedules {
		if s.TemplateID == id {
			delete(db.schedules, sid)
		}
	}
	return nil
}

func (db *DB) CreateReport(_ context.Context, r report.Report) (report.Report, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.templates[r.TemplateID]; !ok {
		return report.Report{}, report.ErrTemplateNotFound
	}
	r.ID = uuid.New().String()
	db.reports[r.ID] = &r
	return db.loadReport(&r), nil
}

func (db *DB) QueryReports(_ context.Context, viewerID string, filter *report.QueryFilter) ([]report.Report, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var f report.QueryFilter
	if filter != nil {
		f = *filter
	}
	list := make([]report.Report, 0)
	for _, r := range db.reports {
		switch {
		case viewerID != "" && r.GeneratedBy != viewerID && !r.IsPublic,
			f.Status != "" && r.Status != f.Status,
			f.Format != "" && r.Format != f.Format,
			f.TemplateID != "" && r.TemplateID != f.TemplateID:
			continue
		}
		list = append(list, db.loadReport(r))
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

func (db *DB) GetReport(_ context.Context, id string) (report.Report, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if r, ok := db.reports[id]; ok {
		return db.loadReport(r), nil
	}
	return report.Report{}, report.ErrNotFound
}

func (db *DB) RecordDownload(_ context.Context, a report.Access) (report.Report, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	r, ok := db.reports[a.ReportID]
	if !ok {
		return report.Report{}, report.ErrNotFound
	}
	r.DownloadCount++
	a.ID = uuid.New().String()
	db.accesses = append(db.accesses, a)
	return db.loadReport(r), nil
}

// Accesses returns the recorded accesses of a report.
func (db *DB) Accesses(reportID string) []report.Access {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var list []report.Access
	for _, a := range db.accesses {
		if a.ReportID == reportID {
			list = append(list, a)
		}
	}
	return list
}

func (db *DB) ReportStats(_ context.Context, viewerID string, monthStart time.Time) (report.Stats, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var stats report.Stats
	for _, r := range db.reports {
		if viewerID != "" && r.GeneratedBy != viewerID {
			continue
		}
		stats.Total++
		switch r.Status {
		case report.StatusCompleted:
			stats.Completed++
		case report.StatusPending, report.StatusGenerating:
			stats.Pending++
		case report.StatusFailed:
			stats.Failed++
		}
		stats.TotalDownloads += r.DownloadCount
		if !r.CreatedAt.Before(monthStart) {
			stats.ThisMonth++
		}
	}
	return stats, nil
}

func (db *DB) CreateSchedule(_ context.Context, s report.Schedule) (report.Schedule, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.templates[s.TemplateID]; !ok {
		return report.Schedule{}, report.ErrTemplateNotFound
	}
	s.ID = uuid.New().String()
	s.Recipients = cloneStrings(s.Recipients)
	db.schedules[s.ID] = &s
	return copySchedule(&s), nil
}

func (db *DB) QuerySchedules(_ context.Context) ([]report.Schedule, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	list := make([]report.Schedule, 0, len(db.schedules))
	for _, s := range db.schedules {
		list = append(list, copySchedule(s))
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

func (db *DB) GetSchedule(_ context.Context, id string) (report.Schedule, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if s, ok := db.schedules[id]; ok {
		return copySchedule(s), nil
	}
	return report.Schedule{}, report.ErrScheduleNotFound
}

func (db *DB) UpdateSchedule(_ context.Context, s report.Schedule) (report.Schedule, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	orig, ok := db.schedules[s.ID]
	if !ok {
		return report.Schedule{}, report.ErrScheduleNotFound
	}
	s.TemplateID, s.CreatedBy, s.CreatedAt = orig.TemplateID, orig.CreatedBy, orig.CreatedAt
	s.Recipients = cloneStrings(s.Recipients)
	*orig = s
	return copySchedule(orig), nil
}

func (db *DB) DeleteSchedule(_ context.Context, id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.schedules[id]; !ok {
		return report.ErrScheduleNotFound
	}
	delete(db.schedules, id)
	return nil
}

func (db *DB) QueryDueSchedules(_ context.Context, now time.Time) ([]report.Schedule, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	list := make([]report.Schedule, 0)
	for _, s := range db.schedules {
		if s.IsActive && s.NextRun != nil && !s.NextRun.After(now) {
			list = append(list, copySchedule(s))
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].NextRun.Before(*list[j].NextRun) })
	return list, nil
}

func (db *DB) MarkScheduleRun(_ context.Context, id string, lastRun, nextRun time.Time) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	s, ok := db.schedules[id]
	if !ok {
		return report.ErrScheduleNotFound
	}
	s.LastRun, s.NextRun = &lastRun, &nextRun
	s.UpdatedAt = lastRun
	return nil
}

// SetScheduleNextRun moves a schedule's next run, e.g. to make it due.
func (db *DB) SetScheduleNextRun(id string, next time.Time) bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	s, ok := db.schedules[id]
	if ok {
		s.NextRun = &next
	}
	return ok
}
