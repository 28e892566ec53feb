package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/Gokulakrishnan610/chicken-dinner/core"
	"github.com/Gokulakrishnan610/chicken-dinner/core/submission"
	"github.com/Gokulakrishnan610/chicken-dinner/core/volunteering"
)

var _ volunteering.Repository = (*Store)(nil)

const activityColumns = "s.organization, s.location, s.activity_date, s.hours_volunteered, s.evidence_url, s.skills_developed"

type volunteeringCategoryRow struct {
	ID            string    `db:"id"`
	Name          string    `db:"name"`
	Description   string    `db:"description"`
	Icon          string    `db:"icon"`
	Color         string    `db:"color"`
	PointsPerHour float64   `db:"points_per_hour"`
	IsActive      bool      `db:"is_active"`
	CreatedAt     time.Time `db:"created_at"`
}

type activityRow struct {
	submissionRow
	Organization     string         `db:"organization"`
	Location         string         `db:"location"`
	ActivityDate     time.Time      `db:"activity_date"`
	HoursVolunteered float64        `db:"hours_volunteered"`
	EvidenceURL      string         `db:"evidence_url"`
	SkillsDeveloped  pq.StringArray `db:"skills_developed"`
}

func (r activityRow) toActivity() volunteering.Activity {
	return volunteering.Activity{
		Submission:       r.toSubmission(submission.KindVolunteering),
		Organization:     r.Organization,
		Location:         r.Location,
		ActivityDate:     core.NewDate(r.ActivityDate),
		HoursVolunteered: r.HoursVolunteered,
		EvidenceURL:      r.EvidenceURL,
		SkillsDeveloped:  stringsOrEmpty(r.SkillsDeveloped),
	}
}

func (s *Store) QueryVolunteeringCategories(ctx context.Context, activeOnly bool) ([]volunteering.Category, error) {
	var rows []volunteeringCategoryRow
	q := "SELECT * FROM volunteering_categories WHERE ($1 = false OR is_active) ORDER BY name"
	if err := s.db.SelectContext(ctx, &rows, q, activeOnly); err != nil {
		return nil, errors.Wrap(err, "querying volunteering categories")
	}
	cats := make([]volunteering.Category, 0, len(rows))
	for _, r := range rows {
		cats = append(cats, volunteering.Category(r))
	}
	return cats, nil
}

func (s *Store) GetVolunteeringCategory(ctx context.Context, id string) (volunteering.Category, error) {
	if !validID(id) {
		return volunteering.Category{}, volunteering.ErrCategoryNotFound
	}
	var r volunteeringCategoryRow
	if err := s.db.GetContext(ctx, &r, "SELECT * FROM volunteering_categories WHERE id = $1", id); err != nil {
		return volunteering.Category{}, trapNoRows(err, volunteering.ErrCategoryNotFound, "getting volunteering category")
	}
	return volunteering.Category(r), nil
}

func (s *Store) CreateActivity(ctx context.Context, a volunteering.Activity) (volunteering.Activity, error) {
	a.ID = uuid.New().String()
	q := `INSERT INTO volunteering_activities (id, user_id, category_id, title, description, organization, location,
		activity_date, hours_volunteered, status, priority, points, evidence_url, skills_developed, tags, is_public,
		created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`
	_, err := s.db.ExecContext(ctx, q, a.ID, a.OwnerID, a.CategoryID, a.Title, a.Description, a.Organization,
		a.Location, a.ActivityDate.Time, a.HoursVolunteered, string(a.Status), string(a.Priority), a.Points,
		a.EvidenceURL, pq.StringArray(stringsOrEmpty(a.SkillsDeveloped)), pq.StringArray(stringsOrEmpty(a.Tags)),
		a.IsPublic, a.CreatedAt.UTC(), a.UpdatedAt.UTC())
	if err != nil {
		return volunteering.Activity{}, errors.Wrap(err, "inserting volunteering activity")
	}
	return s.GetActivity(ctx, a.ID)
}

func (s *Store) QueryActivities(ctx context.Context, scope submission.Scope, filter *volunteering.QueryFilter, ordering []core.DBOrdering) ([]volunteering.Activity, error) {
	var f volunteering.QueryFilter
	if filter != nil {
		f = *filter
	}
	w := submissionWhere(scope, f.Status, f.CategoryID, f.UserID)
	q, err := selectSubmissions(submission.KindVolunteering, activityColumns)
	if err != nil {
		return nil, err
	}
	q += w.String() + orderSubmissions(ordering)

	var rows []activityRow
	if err = s.db.SelectContext(ctx, &rows, s.db.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying volunteering activities")
	}
	list := make([]volunteering.Activity, 0, len(rows))
	for _, r := range rows {
		list = append(list, r.toActivity())
	}
	return list, nil
}

func getActivity(ctx context.Context, q querier, id string) (volunteering.Activity, error) {
	query, err := selectSubmissions(submission.KindVolunteering, activityColumns)
	if err != nil {
		return volunteering.Activity{}, err
	}
	var r activityRow
	if err = q.GetContext(ctx, &r, query+" WHERE s.id = $1", id); err != nil {
		return volunteering.Activity{}, trapNoRows(err, volunteering.ErrNotFound, "getting volunteering activity")
	}
	return r.toActivity(), nil
}

func (s *Store) GetActivity(ctx context.Context, id string) (volunteering.Activity, error) {
	if !validID(id) {
		return volunteering.Activity{}, volunteering.ErrNotFound
	}
	return getActivity(ctx, s.db, id)
}

// UpdateActivity writes the hours volunteered only while the activity is pending.
func (s *Store) UpdateActivity(ctx context.Context, a volunteering.Activity, onlyPending bool) (volunteering.Activity, error) {
	if !validID(a.ID) {
		return volunteering.Activity{}, volunteering.ErrNotFound
	}
	var updated volunteering.Activity
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := lockSubmission(ctx, tx, "volunteering_activities", a.ID, onlyPending, volunteering.ErrNotFound); err != nil {
			return err
		}
		q := `UPDATE volunteering_activities SET category_id = $1, title = $2, description = $3, priority = $4,
			points = $5, tags = $6, is_public = $7, updated_at = $8, organization = $9, location = $10,
			activity_date = $11,
			hours_volunteered = CASE WHEN status = 'pending' THEN $12 ELSE hours_volunteered END,
			evidence_url = $13, skills_developed = $14
			WHERE id = $15`
		_, err := tx.ExecContext(ctx, q, a.CategoryID, a.Title, a.Description, string(a.Priority), a.Points,
			pq.StringArray(stringsOrEmpty(a.Tags)), a.IsPublic, a.UpdatedAt.UTC(), a.Organization, a.Location,
			a.ActivityDate.Time, a.HoursVolunteered, a.EvidenceURL, pq.StringArray(stringsOrEmpty(a.SkillsDeveloped)), a.ID)
		if err != nil {
			return errors.Wrap(err, "updating volunteering activity")
		}
		updated, err = getActivity(ctx, tx, a.ID)
		return err
	})
	return updated, err
}

func (s *Store) DeleteActivity(ctx context.Context, id string, onlyPending bool) error {
	return s.deleteSubmission(ctx, submission.KindVolunteering, id, onlyPending, volunteering.ErrNotFound)
}
