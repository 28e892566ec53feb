package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/Gokulakrishnan610/chicken-dinner/core"
	"github.com/Gokulakrishnan610/chicken-dinner/core/submission"
	"github.com/Gokulakrishnan610/chicken-dinner/core/volunteering"
)

var _ volunteering.Repository = (*DB)(nil)

func (db *DB) loadActivity(a *volunteering.Activity) volunteering.Activity {
	cp := *a
	cp.Submission = db.loadSubmission(&a.Submission)
	cp.SkillsDeveloped = cloneStrings(a.SkillsDeveloped)
	return cp
}

func cmpActivities(a, b volunteering.Activity, field string) int {
	switch field {
	case "activity_date":
		return cmpTime(a.ActivityDate.Time, b.ActivityDate.Time)
	case "hours_volunteered":
		return cmpFloat(a.HoursVolunteered, b.HoursVolunteered)
	}
	return cmpSubmissions(a.Submission, b.Submission, field)
}

func (db *DB) QueryVolunteeringCategories(_ context.Context, activeOnly bool) ([]volunteering.Category, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	cats := make([]volunteering.Category, 0, len(db.volunteeringCats))
	for _, c := range db.volunteeringCats {
		if !activeOnly || c.IsActive {
			cats = append(cats, *c)
		}
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i].Name < cats[j].Name })
	return cats, nil
}

func (db *DB) GetVolunteeringCategory(_ context.Context, id string) (volunteering.Category, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if c, ok := db.volunteeringCats[id]; ok {
		return *c, nil
	}
	return volunteering.Category{}, volunteering.ErrCategoryNotFound
}

func (db *DB) CreateActivity(_ context.Context, a volunteering.Activity) (volunteering.Activity, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	a.ID = uuid.New().String()
	a.Tags = cloneStrings(a.Tags)
	a.SkillsDeveloped = cloneStrings(a.SkillsDeveloped)
	db.activities[a.ID] = &a
	return db.loadActivity(&a), nil
}

func (db *DB) QueryActivities(_ context.Context, scope submission.Scope, filter *volunteering.QueryFilter, ordering []core.DBOrdering) ([]volunteering.Activity, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var f volunteering.QueryFilter
	if filter != nil {
		f = *filter
	}
	list := make([]volunteering.Activity, 0)
	for _, a := range db.activities {
		if matchesSubmission(a.Submission, scope, f.Status, f.CategoryID, f.UserID) {
			list = append(list, db.loadActivity(a))
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		return less(ordering, func(field string) int { return cmpActivities(list[i], list[j], field) })
	})
	return list, nil
}

func (db *DB) GetActivity(_ context.Context, id string) (volunteering.Activity, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if a, ok := db.activities[id]; ok {
		return db.loadActivity(a), nil
	}
	return volunteering.Activity{}, volunteering.ErrNotFound
}

func (db *DB) UpdateActivity(_ context.Context, a volunteering.Activity, onlyPending bool) (volunteering.Activity, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	orig, ok := db.activities[a.ID]
	if !ok {
		return volunteering.Activity{}, volunteering.ErrNotFound
	}
	if onlyPending && !orig.IsPending() {
		return volunteering.Activity{}, submission.ErrNotPending
	}
	orig.CategoryID = a.CategoryID
	orig.Title = a.Title
	orig.Description = a.Description
	orig.Priority = a.Priority
	orig.Points = a.Points
	orig.Tags = cloneStrings(a.Tags)
	orig.IsPublic = a.IsPublic
	orig.UpdatedAt = a.UpdatedAt
	orig.Organization = a.Organization
	orig.Location = a.Location
	orig.ActivityDate = a.ActivityDate
	if orig.IsPending() {
		orig.HoursVolunteered = a.HoursVolunteered
	}
	orig.EvidenceURL = a.EvidenceURL
	orig.SkillsDeveloped = cloneStrings(a.SkillsDeveloped)
	return db.loadActivity(orig), nil
}

func (db *DB) DeleteActivity(_ context.Context, id string, onlyPending bool) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	a, ok := db.activities[id]
	if !ok {
		return volunteering.ErrNotFound
	}
	if onlyPending && !a.IsPending() {
		return submission.ErrNotPending
	}
	delete(db.activities, id)
	db.deleteEngagement(submission.KindVolunteering, id)
	return nil
}
