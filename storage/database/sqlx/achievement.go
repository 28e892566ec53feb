package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/Gokulakrishnan610/chicken-dinner/core"
	"github.com/Gokulakrishnan610/chicken-dinner/core/achievement"
	"github.com/Gokulakrishnan610/chicken-dinner/core/submission"
)

var _ achievement.Repository = (*Store)(nil)

type achievementCategoryRow struct {
	ID               string    `db:"id"`
	Name             string    `db:"name"`
	Description      string    `db:"description"`
	Icon             string    `db:"icon"`
	Color            string    `db:"color"`
	PointsMultiplier float64   `db:"points_multiplier"`
	IsActive         bool      `db:"is_active"`
	CreatedAt        time.Time `db:"created_at"`
}

type achievementRow struct {
	submissionRow
	EvidenceURL  string         `db:"evidence_url"`
	SkillsGained pq.StringArray `db:"skills_gained"`
}

func (r achievementRow) toAchievement() achievement.Achievement {
	return achievement.Achievement{
		Submission:   r.toSubmission(submission.KindAchievement),
		EvidenceURL:  r.EvidenceURL,
		SkillsGained: stringsOrEmpty(r.SkillsGained),
	}
}

func (s *Store) QueryAchievementCategories(ctx context.Context, activeOnly bool) ([]achievement.Category, error) {
	var rows []achievementCategoryRow
	q := "SELECT * FROM achievement_categories WHERE ($1 = false OR is_active) ORDER BY name"
	if err := s.db.SelectContext(ctx, &rows, q, activeOnly); err != nil {
		return nil, errors.Wrap(err, "querying achievement categories")
	}
	cats := make([]achievement.Category, 0, len(rows))
	for _, r := range rows {
		cats = append(cats, achievement.Category(r))
	}
	return cats, nil
}

func (s *Store) GetAchievementCategory(ctx context.Context, id string) (achievement.Category, error) {
	if !validID(id) {
		return achievement.Category{}, achievement.ErrCategoryNotFound
	}
	var r achievementCategoryRow
	if err := s.db.GetContext(ctx, &r, "SELECT * FROM achievement_categories WHERE id = $1", id); err != nil {
		return achievement.Category{}, trapNoRows(err, achievement.ErrCategoryNotFound, "getting achievement category")
	}
	return achievement.Category(r), nil
}

func (s *Store) CreateAchievement(ctx context.Context, a achievement.Achievement) (achievement.Achievement, error) {
	a.ID = uuid.New().String()
	q := `INSERT INTO achievements (id, user_id, category_id, title, description, status, priority, points,
		evidence_url, skills_gained, tags, is_public, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := s.db.ExecContext(ctx, q, a.ID, a.OwnerID, a.CategoryID, a.Title, a.Description, string(a.Status),
		string(a.Priority), a.Points, a.EvidenceURL, pq.StringArray(stringsOrEmpty(a.SkillsGained)),
		pq.StringArray(stringsOrEmpty(a.Tags)), a.IsPublic, a.CreatedAt.UTC(), a.UpdatedAt.UTC())
	if err != nil {
		return achievement.Achievement{}, errors.Wrap(err, "inserting achievement")
	}
	return s.GetAchievement(ctx, a.ID)
}

func (s *Store) QueryAchievements(ctx context.Context, scope submission.Scope, filter *achievement.QueryFilter, ordering []core.DBOrdering) ([]achievement.Achievement, error) {
	var f achievement.QueryFilter
	if filter != nil {
		f = *filter
	}
	w := submissionWhere(scope, f.Status, f.CategoryID, f.UserID)
	q, err := selectSubmissions(submission.KindAchievement, "s.evidence_url, s.skills_gained")
	if err != nil {
		return nil, err
	}
	q += w.String() + orderSubmissions(ordering)

	var rows []achievementRow
	if err = s.db.SelectContext(ctx, &rows, s.db.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying achievements")
	}
	list := make([]achievement.Achievement, 0, len(rows))
	for _, r := range rows {
		list = append(list, r.toAchievement())
	}
	return list, nil
}

func getAchievement(ctx context.Context, q querier, id string) (achievement.Achievement, error) {
	query, err := selectSubmissions(submission.KindAchievement, "s.evidence_url, s.skills_gained")
	if err != nil {
		return achievement.Achievement{}, err
	}
	var r achievementRow
	if err = q.GetContext(ctx, &r, query+" WHERE s.id = $1", id); err != nil {
		return achievement.Achievement{}, trapNoRows(err, achievement.ErrNotFound, "getting achievement")
	}
	return r.toAchievement(), nil
}

func (s *Store) GetAchievement(ctx context.Context, id string) (achievement.Achievement, error) {
	if !validID(id) {
		return achievement.Achievement{}, achievement.ErrNotFound
	}
	return getAchievement(ctx, s.db, id)
}

func (s *Store) UpdateAchievement(ctx context.Context, a achievement.Achievement, onlyPending bool) (achievement.Achievement, error) {
	if !validID(a.ID) {
		return achievement.Achievement{}, achievement.ErrNotFound
	}
	var updated achievement.Achievement
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := lockSubmission(ctx, tx, "achievements", a.ID, onlyPending, achievement.ErrNotFound); err != nil {
			return err
		}
		q := `UPDATE achievements SET category_id = $1, title = $2, description = $3, priority = $4, points = $5,
			tags = $6, is_public = $7, updated_at = $8, evidence_url = $9, skills_gained = $10
			WHERE id = $11`
		_, err := tx.ExecContext(ctx, q, a.CategoryID, a.Title, a.Description, string(a.Priority), a.Points,
			pq.StringArray(stringsOrEmpty(a.Tags)), a.IsPublic, a.UpdatedAt.UTC(), a.EvidenceURL,
			pq.StringArray(stringsOrEmpty(a.SkillsGained)), a.ID)
		if err != nil {
			return errors.Wrap(err, "updating achievement")
		}
		updated, err = getAchievement(ctx, tx, a.ID)
		return err
	})
	return updated, err
}

func (s *Store) DeleteAchievement(ctx context.Context, id string, onlyPending bool) error {
	return s.deleteSubmission(ctx, submission.KindAchievement, id, onlyPending, achievement.ErrNotFound)
}
