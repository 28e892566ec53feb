package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/Gokulakrishnan610/chicken-dinner/core"
	"github.com/Gokulakrishnan610/chicken-dinner/core/achievement"
	"github.com/Gokulakrishnan610/chicken-dinner/core/submission"
)

var _ achievement.Repository = (*DB)(nil)

func (db *DB) loadAchievement(a *achievement.Achievement) achievement.Achievement {
	cp := *a
	cp.Submission = db.loadSubmission(&a.Submission)
	cp.SkillsGained = cloneStrings(a.SkillsGained)
	return cp
}

func (db *DB) QueryAchievementCategories(_ context.Context, activeOnly bool) ([]achievement.Category, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	cats := make([]achievement.Category, 0, len(db.achievementCats))
	for _, c := range db.achievementCats {
		if !activeOnly || c.IsActive {
			cats = append(cats, *c)
		}
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i].Name < cats[j].Name })
	return cats, nil
}

func (db *DB) GetAchievementCategory(_ context.Context, id string) (achievement.Category, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if c, ok := db.achievementCats[id]; ok {
		return *c, nil
	}
	return achievement.Category{}, achievement.ErrCategoryNotFound
}

func (db *DB) CreateAchievement(_ context.Context, a achievement.Achievement) (achievement.Achievement, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	a.ID = uuid.New().String()
	a.Tags = cloneStrings(a.Tags)
	a.SkillsGained = cloneStrings(a.SkillsGained)
	db.achievements[a.ID] = &a
	return db.loadAchievement(&a), nil
}

func (db *DB) QueryAchievements(_ context.Context, scope submission.Scope, filter *achievement.QueryFilter, ordering []core.DBOrdering) ([]achievement.Achievement, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var f achievement.QueryFilter
	if filter != nil {
		f = *filter
	}
	list := make([]achievement.Achievement, 0)
	for _, a := range db.achievements {
		if matchesSubmission(a.Submission, scope, f.Status, f.CategoryID, f.UserID) {
			list = append(list, db.loadAchievement(a))
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		return less(ordering, func(field string) int { return cmpSubmissions(list[i].Submission, list[j].Submission, field) })
	})
	return list, nil
}

func (db *DB) GetAchievement(_ context.Context, id string) (achievement.Achievement, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if a, ok := db.achievements[id]; ok {
		return db.loadAchievement(a), nil
	}
	return achievement.Achievement{}, achievement.ErrNotFound
}

func (db *DB) UpdateAchievement(_ context.Context, a achievement.Achievement, onlyPending bool) (achievement.Achievement, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	orig, ok := db.achievements[a.ID]
	if !ok {
		return achievement.Achievement{}, achievement.ErrNotFound
	}
	if onlyPending && !orig.IsPending() {
		return achievement.Achievement{}, submission.ErrNotPending
	}
	orig.CategoryID = a.CategoryID
	orig.Title = a.Title
	orig.Description = a.Description
	orig.Priority = a.Priority
	orig.Points = a.Points
	orig.Tags = cloneStrings(a.Tags)
	orig.IsPublic = a.IsPublic
	orig.UpdatedAt = a.UpdatedAt
	orig.EvidenceURL = a.EvidenceURL
	orig.SkillsGained = cloneStrings(a.SkillsGained)
	return db.loadAchievement(orig), nil
}

func (db *DB) DeleteAchievement(_ context.Context, id string, onlyPending bool) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	a, ok := db.achievements[id]
	if !ok {
		return achievement.ErrNotFound
	}
	if onlyPending && !a.IsPending() {
		return submission.ErrNotPending
	}
	delete(db.achievements, id)
	db.deleteEngagement(submission.KindAchievement, id)
	return nil
}
