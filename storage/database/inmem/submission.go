package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Gokulakrishnan610/chicken-dinner/core/submission"
)

var _ submission.Store = (*DB)(nil)

// submissionRef returns the shared part of the submission `id` of `kind`, with its volunteered hours.
func (db *DB) submissionRef(kind submission.Kind, id string) (*submission.Submission, float64, bool) {
	switch kind {
	case submission.KindAchievement:
		if a, ok := db.achievements[id]; ok {
			return &a.Submission, 0, true
		}
	case submission.KindCertificate:
		if c, ok := db.certificates[id]; ok {
			return &c.Submission, 0, true
		}
	case submission.KindVolunteering:
		if v, ok := db.activities[id]; ok {
			return &v.Submission, v.HoursVolunteered, true
		}
	}
	return nil, 0, false
}

// eachSubmission calls fn with every submission of `kind`.
func (db *DB) eachSubmission(kind submission.Kind, fn func(s *submission.Submission, hours float64)) {
	switch kind {
	case submission.KindAchievement:
		for _, a := range db.achievements {
			fn(&a.Submission, 0)
		}
	case submission.KindCertificate:
		for _, c := range db.certificates {
			fn(&c.Submission, 0)
		}
	case submission.KindVolunteering:
		for _, v := range db.activities {
			fn(&v.Submission, v.HoursVolunteered)
		}
	}
}

func (db *DB) categoryName(kind submission.Kind, id string) (string, bool) {
	switch kind {
	case submission.KindAchievement:
		if c, ok := db.achievementCats[id]; ok {
			return c.Name, c.IsActive
		}
	case submission.KindCertificate:
		if c, ok := db.certificateCats[id]; ok {
			return c.Name, c.IsActive
		}
	case submission.KindVolunteering:
		if c, ok := db.volunteeringCats[id]; ok {
			return c.Name, c.IsActive
		}
	}
	return "", false
}

func (db *DB) activeCategories(kind submission.Kind) int {
	var n int
	switch kind {
	case submission.KindAchievement:
		for _, c := range db.achievementCats {
			if c.IsActive {
				n++
			}
		}
	case submission.KindCertificate:
		for _, c := range db.certificateCats {
			if c.IsActive {
				n++
			}
		}
	case submission.KindVolunteering:
		for _, c := range db.volunteeringCats {
			if c.IsActive {
				n++
			}
		}
	}
	return n
}

func (db *DB) userName(id string) string {
	if usr, ok := db.users[id]; ok {
		return usr.FullName()
	}
	return ""
}

// loadSubmission returns a copy of s with its joined & counted fields set, as a SELECT would.
func (db *DB) loadSubmission(s *submission.Submission) submission.Submission {
	cp := *s
	cp.Tags = cloneStrings(s.Tags)
	cp.ReviewedAt = cloneTime(s.ReviewedAt)
	if s.ReviewerID != nil {
		rid := *s.ReviewerID
		cp.ReviewerID = &rid
	}
	cp.OwnerName = db.userName(s.OwnerID)
	cp.CategoryName, _ = db.categoryName(s.Kind, s.CategoryID)

	key := subKey{s.Kind, s.ID}
	cp.LikesCount, cp.CommentsCount = 0, 0
	for k := range db.likes {
		if k.subKey == key {
			cp.LikesCount++
		}
	}
	for _, c := range db.comments {
		if c.Kind == s.Kind && c.SubmissionID == s.ID {
			cp.CommentsCount++
		}
	}
	return cp
}

// deleteEngagement drops the reviews, comments, likes & shares of a deleted submission.
func (db *DB) deleteEngagement(kind submission.Kind, id string) {
	reviews := db.reviews[:0]
	for _, r := range db.reviews {
		if r.Kind != kind || r.SubmissionID != id {
			reviews = append(reviews, r)
		}
	}
	db.reviews = reviews

	comments := db.comments[:0]
	for _, c := range db.comments {
		if c.Kind != kind || c.SubmissionID != id {
			comments = append(comments, c)
		}
	}
	db.comments = comments

	shares := db.shares[:0]
	for _, s := range db.shares {
		if s.Kind != kind || s.SubmissionID != id {
			shares = append(shares, s)
		}
	}
	db.shares = shares

	key := subKey{kind, id}
	for k := range db.likes {
		if k.subKey == key {
			delete(db.likes, k)
		}
	}
}

func (db *DB) ApplyTransition(_ context.Context, kind submission.Kind, id string, tr submission.Transition) (submission.Submission, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	s, hours, ok := db.submissionRef(kind, id)
	if !ok {
		return submission.Submission{}, submission.ErrNotFound
	}
	if !s.IsPending() {
		return submission.Submission{}, submission.ErrNotPending
	}

	reviewerID, reviewedAt := tr.ReviewerID, tr.ReviewedAt
	s.Status = tr.To
	s.ReviewerID = &reviewerID
	s.ReviewedAt = &reviewedAt
	s.RejectionReason = tr.Reason
	if tr.Points != nil {
		s.Points = *tr.Points
	}
	s.UpdatedAt = reviewedAt

	if s.Status == submission.StatusApproved {
		credit := submission.CreditFor(kind, s.Points, hours)
		p := db.profileLocked(s.OwnerID, reviewedAt)
		credit.Apply(p)
		p.UpdatedAt = reviewedAt
	}

	db.reviews = append(db.reviews, submission.Review{
		ID:           uuid.New().String(),
		Kind:         kind,
		SubmissionID: id,
		ReviewerID:   reviewerID,
		Action:       tr.Action,
		Notes:        tr.Reason,
		ReviewedAt:   reviewedAt,
	})
	return db.loadSubmission(s), nil
}

func (db *DB) GetSubmission(_ context.Context, kind submission.Kind, id string) (submission.Submission, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	s, _, ok := db.submissionRef(kind, id)
	if !ok {
		return submission.Submission{}, submission.ErrNotFound
	}
	return db.loadSubmission(s), nil
}

func (db *DB) QueryReviews(_ context.Context, kind submission.Kind, id string) ([]submission.Review, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	reviews := make([]submission.Review, 0)
	for _, r := range db.reviews {
		if r.Kind == kind && r.SubmissionID == id {
			r.ReviewerName = db.userName(r.ReviewerID)
			reviews = append(reviews, r)
		}
	}
	sort.SliceStable(reviews, func(i, j int) bool { return reviews[i].ReviewedAt.After(reviews[j].ReviewedAt) })
	return reviews, nil
}

func (db *DB) CountReviewsBy(_ context.Context, reviewerID string) (int, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var n int
	for _, r := range db.reviews {
		if r.ReviewerID == reviewerID {
			n++
		}
	}
	return n, nil
}

func (db *DB) CreateComment(_ context.Context, c submission.Comment) (submission.Comment, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, _, ok := db.submissionRef(c.Kind, c.SubmissionID); !ok {
		return submission.Comment{}, submission.ErrNotFound
	}
	c.ID = uuid.New().String()
	db.comments = append(db.comments, c)
	c.UserName = db.userName(c.UserID)
	return c, nil
}

func (db *DB) QueryComments(_ context.Context, kind submission.Kind, id string, includeInternal bool) ([]submission.Comment, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	comments := make([]submission.Comment, 0)
	for _, c := range db.comments {
		if c.Kind != kind || c.SubmissionID != id || (c.IsInternal && !includeInternal) {
			continue
		}
		c.UserName = db.userName(c.UserID)
		comments = append(comments, c)
	}
	sort.SliceStable(comments, func(i, j int) bool { return comments[i].CreatedAt.Before(comments[j].CreatedAt) })
	return comments, nil
}

func (db *DB) ToggleLike(_ context.Context, kind submission.Kind, id, userID string, at time.Time) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, _, ok := db.submissionRef(kind, id); !ok {
		return false, submission.ErrNotFound
	}
	key := likeKey{subKey{kind, id}, userID}
	if _, liked := db.likes[key]; liked {
		delete(db.likes, key)
		return false, nil
	}
	db.likes[key] = at
	return true, nil
}

func (db *DB) CreateShare(_ context.Context, s submission.Share) (submission.Share, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, _, ok := db.submissionRef(s.Kind, s.SubmissionID); !ok {
		return submission.Share{}, submission.ErrNotFound
	}
	s.ID = uuid.New().String()
	db.shares = append(db.shares, s)
	return s, nil
}

func (db *DB) SubmissionStats(_ context.Context, kind submission.Kind, ownerID string, monthStart time.Time) (submission.Stats, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var (
		stats      submission.Stats
		hours      float64
		categories = make(map[string]bool)
	)
	db.eachSubmission(kind, func(s *submission.Submission, h float64) {
		if ownerID != "" && s.OwnerID != ownerID {
			return
		}
		stats.Total++
		switch s.Status {
		case submission.StatusApproved:
			stats.Approved++
			stats.TotalPoints += s.Points
			hours += h
		case submission.StatusPending:
			stats.Pending++
		case submission.StatusRejected:
			stats.Rejected++
		}
		if !s.CreatedAt.Before(monthStart) {
			stats.ThisMonth++
		}
		categories[s.CategoryID] = true
	})

	if ownerID != "" {
		stats.CategoriesCount = len(categories)
	} else {
		stats.CategoriesCount = db.activeCategories(kind)
	}
	if kind == submission.KindVolunteering {
		stats.TotalHours = &hours
	}
	return stats, nil
}

func (db *DB) CountByCategory(_ context.Context, kind submission.Kind) ([]submission.CategoryCount, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	counts := make(map[string]int)
	db.eachSubmission(kind, func(s *submission.Submission, _ float64) {
		name, _ := db.categoryName(kind, s.CategoryID)
		counts[name]++
	})

	result := make([]submission.CategoryCount, 0, len(counts))
	for _, name := range sortedKeys(counts) {
		result = append(result, submission.CategoryCount{Name: name, Count: counts[name]})
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Count > result[j].Count })
	return result, nil
}

func (db *DB) CountByMonth(_ context.Context, kind submission.Kind, since time.Time) (map[string]int, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	counts := make(map[string]int)
	db.eachSubmission(kind, func(s *submission.Submission, _ float64) {
		if !s.CreatedAt.Before(since) {
			counts[s.CreatedAt.UTC().Format(submission.MonthKeyLayout)]++
		}
	})
	return counts, nil
}

func (db *DB) TopContributors(_ context.Context, kind submission.Kind, limit int) ([]submission.Contributor, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	byOwner := make(map[string]*submission.Contributor)
	db.eachSubmission(kind, func(s *submission.Submission, _ float64) {
		if s.Status != submission.StatusApproved {
			return
		}
		c, ok := byOwner[s.OwnerID]
		if !ok {
			c = &submission.Contributor{UserID: s.OwnerID, Name: db.userName(s.OwnerID)}
			byOwner[s.OwnerID] = c
		}
		c.TotalPoints += s.Points
		c.Count++
	})

	top := make([]submission.Contributor, 0, len(byOwner))
	for _, c := range byOwner {
		top = append(top, *c)
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].TotalPoints != top[j].TotalPoints {
			return top[i].TotalPoints > top[j].TotalPoints
		}
		return top[i].Name < top[j].Name
	})
	if len(top) > limit {
		top = top[:limit]
	}
	return top, nil
}

func cmpSubmissions(a, b submission.Submission, field string) int {
	switch field {
	case "created_at":
		return cmpTime(a.CreatedAt, b.CreatedAt)
	case "updated_at":
		return cmpTime(a.UpdatedAt, b.UpdatedAt)
	case "points":
		return cmpInt(a.Points, b.Points)
	case "title":
		return cmpString(a.Title, b.Title)
	}
	return 0
}

// matchesSubmission applies the filters every kind shares.
func matchesSubmission(s submission.Submission, scope submission.Scope, status submission.Status, categoryID, userID string) bool {
	if !scope.Allows(s) {
		return false
	}
	if status != "" && s.Status != status {
		return false
	}
	if categoryID != "" && s.CategoryID != categoryID {
		return false
	}
	if userID != "" && s.OwnerID != userID {
		return false
	}
	return true
}
