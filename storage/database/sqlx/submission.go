package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/Gokulakrishnan610/chicken-dinner/core"
	"github.com/Gokulakrishnan610/chicken-dinner/core/submission"
)

var _ submission.Store = (*Store)(nil)

// tables returns the submission & category tables of `kind`.
func tables(kind submission.Kind) (string, string, error) {
	switch kind {
	case submission.KindAchievement:
		return "achievements", "achievement_categories", nil
	case submission.KindCertificate:
		return "certificates", "certificate_categories", nil
	case submission.KindVolunteering:
		return "volunteering_activities", "volunteering_categories", nil
	}
	return "", "", errors.Wrap(submission.ErrInvalidKind, string(kind))
}

func hoursColumn(kind submission.Kind) string {
	if kind == submission.KindVolunteering {
		return "s.hours_volunteered"
	}
	return "0::float8"
}

const ownerNameExpr = `COALESCE(NULLIF(TRIM(u.first_name || ' ' || u.last_name), ''), u.username)`

// selectSubmissions selects the columns of submissionRow (plus `extra`) from the table of `kind`,
// aliased `s`, joined with its owner `u` and category `c`.
func selectSubmissions(kind submission.Kind, extra string) (string, error) {
	table, catTable, err := tables(kind)
	if err != nil {
		return "", err
	}
	if extra != "" {
		extra = ", " + extra
	}
	return fmt.Sprintf(`SELECT s.id, s.user_id, s.category_id, s.title, s.description, s.status, s.priority, s.points,
		s.tags, s.is_public, s.verified_by, s.verified_at, s.rejection_reason, s.created_at, s.updated_at,
		%[4]s AS user_name, c.name AS category_name,
		(SELECT COUNT(*) FROM submission_likes l WHERE l.kind = '%[1]s' AND l.submission_id = s.id) AS likes_count,
		(SELECT COUNT(*) FROM submission_comments m WHERE m.kind = '%[1]s' AND m.submission_id = s.id) AS comments_count%[5]s
		FROM %[2]s s
		JOIN users u ON u.id = s.user_id
		JOIN %[3]s c ON c.id = s.category_id`, kind, table, catTable, ownerNameExpr, extra), nil
}

type submissionRow struct {
	ID              string         `db:"id"`
	OwnerID         string         `db:"user_id"`
	OwnerName       string         `db:"user_name"`
	CategoryID      string         `db:"category_id"`
	CategoryName    string         `db:"category_name"`
	Title           string         `db:"title"`
	Description     string         `db:"description"`
	Status          string         `db:"status"`
	Priority        string         `db:"priority"`
	Points          int            `db:"points"`
	Tags            pq.StringArray `db:"tags"`
	IsPublic        bool           `db:"is_public"`
	VerifiedBy      null.String    `db:"verified_by"`
	VerifiedAt      null.Time      `db:"verified_at"`
	RejectionReason string         `db:"rejection_reason"`
	LikesCount      int            `db:"likes_count"`
	CommentsCount   int            `db:"comments_count"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func (r submissionRow) toSubmission(kind submission.Kind) submission.Submission {
	return submission.Submission{
		ID:              r.ID,
		Kind:            kind,
		OwnerID:         r.OwnerID,
		OwnerName:       r.OwnerName,
		CategoryID:      r.CategoryID,
		CategoryName:    r.CategoryName,
		Title:           r.Title,
		Description:     r.Description,
		Status:          submission.Status(r.Status),
		Priority:        submission.Priority(r.Priority),
		Points:          r.Points,
		Tags:            stringsOrEmpty(r.Tags),
		IsPublic:        r.IsPublic,
		ReviewerID:      r.VerifiedBy.Ptr(),
		ReviewedAt:      r.VerifiedAt.Ptr(),
		RejectionReason: r.RejectionReason,
		LikesCount:      r.LikesCount,
		CommentsCount:   r.CommentsCount,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
}

// submissionWhere filters the submissions aliased `s` on what every kind shares.
func submissionWhere(scope submission.Scope, status submission.Status, categoryID, userID string) where {
	var w where
	if !scope.All {
		w.add("(s.user_id::text = ? OR (s.is_public AND s.status = 'approved'))", scope.ViewerID)
	}
	if status != "" {
		w.add("s.status = ?", string(status))
	}
	if categoryID != "" {
		w.add("s.category_id::text = ?", categoryID)
	}
	if userID != "" {
		w.add("s.user_id::text = ?", userID)
	}
	return w
}

type querier interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

func getSubmission(ctx context.Context, q querier, kind submission.Kind, id string) (submission.Submission, error) {
	query, err := selectSubmissions(kind, "")
	if err != nil {
		return submission.Submission{}, err
	}
	var r submissionRow
	if err = q.GetContext(ctx, &r, query+" WHERE s.id = $1", id); err != nil {
		return submission.Submission{}, trapNoRows(err, submission.ErrNotFound, "getting submission")
	}
	return r.toSubmission(kind), nil
}

func (s *Store) GetSubmission(ctx context.Context, kind submission.Kind, id string) (submission.Submission, error) {
	if !validID(id) {
		return submission.Submission{}, submission.ErrNotFound
	}
	return getSubmission(ctx, s.db, kind, id)
}

// ApplyTransition updates the submission only while it is pending, so of two concurrent reviews
// exactly one updates a row; the other rolls back with ErrNotPending.
func (s *Store) ApplyTransition(ctx context.Context, kind submission.Kind, id string, tr submission.Transition) (submission.Submission, error) {
	table, _, err := tables(kind)
	if err != nil {
		return submission.Submission{}, err
	}
	if !validID(id) {
		return submission.Submission{}, submission.ErrNotFound
	}

	var sub submission.Submission
	err = s.withTx(ctx, func(tx *sqlx.Tx) error {
		var updated struct {
			OwnerID string  `db:"user_id"`
			Points  int     `db:"points"`
			Hours   float64 `db:"hours"`
		}
		q := fmt.Sprintf(`UPDATE %s s SET status = $1, verified_by = $2, verified_at = $3, rejection_reason = $4,
			points = COALESCE($5, s.points), updated_at = $3
			WHERE s.id = $6 AND s.status = 'pending'
			RETURNING s.user_id, s.points, %s AS hours`, table, hoursColumn(kind))
		err := tx.GetContext(ctx, &updated, q,
			string(tr.To), tr.ReviewerID, tr.ReviewedAt.UTC(), tr.Reason, null.IntFromPtr(tr.Points), id)
		if err != nil {
			if errors.Cause(err) != sql.ErrNoRows {
				return errors.Wrap(err, "updating submission status")
			}
			var exists bool
			q = fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)", table)
			if err = tx.GetContext(ctx, &exists, q, id); err != nil {
				return errors.Wrap(err, "checking submission")
			}
			if !exists {
				return submission.ErrNotFound
			}
			return submission.ErrNotPending
		}

		if tr.To == submission.StatusApproved {
			credit := submission.CreditFor(kind, updated.Points, updated.Hours)
			if err = creditProfile(ctx, tx, updated.OwnerID, credit, tr.ReviewedAt); err != nil {
				return err
			}
		}

		q = `INSERT INTO submission_reviews (id, kind, submission_id, reviewer_id, action, notes, reviewed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`
		_, err = tx.ExecContext(ctx, q,
			uuid.New().String(), string(kind), id, tr.ReviewerID, string(tr.Action), tr.Reason, tr.ReviewedAt.UTC())
		if err != nil {
			return errors.Wrap(err, "logging review")
		}

		sub, err = getSubmission(ctx, tx, kind, id)
		return err
	})
	return sub, err
}

func (s *Store) QueryReviews(ctx context.Context, kind submission.Kind, id string) ([]submission.Review, error) {
	var rows []struct {
		ID           string      `db:"id"`
		ReviewerID   null.String `db:"reviewer_id"`
		ReviewerName null.String `db:"reviewer_name"`
		Action       string      `db:"action"`
		Notes        string      `db:"notes"`
		ReviewedAt   time.Time   `db:"reviewed_at"`
	}
	q := `SELECT r.id, r.reviewer_id, ` + ownerNameExpr + ` AS reviewer_name, r.action, r.notes, r.reviewed_at
		FROM submission_reviews r
		LEFT JOIN users u ON u.id = r.reviewer_id
		WHERE r.kind = $1 AND r.submission_id::text = $2
		ORDER BY r.reviewed_at DESC`
	if err := s.db.SelectContext(ctx, &rows, q, string(kind), id); err != nil {
		return nil, errors.Wrap(err, "querying reviews")
	}
	reviews := make([]submission.Review, 0, len(rows))
	for _, r := range rows {
		reviews = append(reviews, submission.Review{
			ID:           r.ID,
			Kind:         kind,
			SubmissionID: id,
			ReviewerID:   r.ReviewerID.String,
			ReviewerName: r.ReviewerName.String,
			Action:       submission.Action(r.Action),
			Notes:        r.Notes,
			ReviewedAt:   r.ReviewedAt.UTC(),
		})
	}
	return reviews, nil
}

func (s *Store) CountReviewsBy(ctx context.Context, reviewerID string) (int, error) {
	var count int
	q := "SELECT COUNT(*) FROM submission_reviews WHERE reviewer_id::text = $1"
	if err := s.db.GetContext(ctx, &count, q, reviewerID); err != nil {
		return 0, errors.Wrap(err, "counting reviews")
	}
	return count, nil
}

func (s *Store) CreateComment(ctx context.Context, c submission.Comment) (submission.Comment, error) {
	c.ID = uuid.New().String()
	q := `INSERT INTO submission_comments (id, kind, submission_id, user_id, content, is_internal, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.db.ExecContext(ctx, q,
		c.ID, string(c.Kind), c.SubmissionID, c.UserID, c.Content, c.IsInternal, c.CreatedAt.UTC(), c.UpdatedAt.UTC())
	if err != nil {
		return submission.Comment{}, errors.Wrap(err, "inserting comment")
	}
	return c, nil
}

func (s *Store) QueryComments(ctx context.Context, kind submission.Kind, id string, includeInternal bool) ([]submission.Comment, error) {
	var rows []struct {
		ID         string    `db:"id"`
		UserID     string    `db:"user_id"`
		UserName   string    `db:"user_name"`
		Content    string    `db:"content"`
		IsInternal bool      `db:"is_internal"`
		CreatedAt  time.Time `db:"created_at"`
		UpdatedAt  time.Time `db:"updated_at"`
	}
	q := `SELECT m.id, m.user_id, ` + ownerNameExpr + ` AS user_name, m.content, m.is_internal, m.created_at, m.updated_at
		FROM submission_comments m
		JOIN users u ON u.id = m.user_id
		WHERE m.kind = $1 AND m.submission_id::text = $2 AND ($3 OR NOT m.is_internal)
		ORDER BY m.created_at`
	if err := s.db.SelectContext(ctx, &rows, q, string(kind), id, includeInternal); err != nil {
		return nil, errors.Wrap(err, "querying comments")
	}
	comments := make([]submission.Comment, 0, len(rows))
	for _, r := range rows {
		comments = append(comments, submission.Comment{
			ID:           r.ID,
			Kind:         kind,
			SubmissionID: id,
			UserID:       r.UserID,
			UserName:     r.UserName,
			Content:      r.Content,
			IsInternal:   r.IsInternal,
			CreatedAt:    r.CreatedAt.UTC(),
			UpdatedAt:    r.UpdatedAt.UTC(),
		})
	}
	return comments, nil
}

func (s *Store) ToggleLike(ctx context.Context, kind submission.Kind, id, userID string, at time.Time) (bool, error) {
	var liked bool
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		q := "INSERT INTO submission_likes (kind, submission_id, user_id, created_at) VALUES ($1, $2, $3, $4) " +
			"ON CONFLICT (kind, submission_id, user_id) DO NOTHING"
		res, err := tx.ExecContext(ctx, q, string(kind), id, userID, at.UTC())
		if err != nil {
			return errors.Wrap(err, "liking submission")
		}
		n, err := rowsAffected(res, "liking submission")
		if err != nil {
			return err
		}
		if n > 0 {
			liked = true
			return nil
		}
		// already liked
		q = "DELETE FROM submission_likes WHERE kind = $1 AND submission_id = $2 AND user_id = $3"
		if _, err = tx.ExecContext(ctx, q, string(kind), id, userID); err != nil {
			return errors.Wrap(err, "unliking submission")
		}
		return nil
	})
	return liked, err
}

func (s *Store) CreateShare(ctx context.Context, sh submission.Share) (submission.Share, error) {
	sh.ID = uuid.New().String()
	q := `INSERT INTO submission_shares (id, kind, submission_id, user_id, platform, shared_at) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.db.ExecContext(ctx, q, sh.ID, string(sh.Kind), sh.SubmissionID, sh.UserID, sh.Platform, sh.SharedAt.UTC())
	if err != nil {
		return submission.Share{}, errors.Wrap(err, "inserting share")
	}
	return sh, nil
}

func (s *Store) SubmissionStats(ctx context.Context, kind submission.Kind, ownerID string, monthStart time.Time) (submission.Stats, error) {
	table, catTable, err := tables(kind)
	if err != nil {
		return submission.Stats{}, err
	}

	var row struct {
		Total       int     `db:"total"`
		Approved    int     `db:"approved"`
		Pending     int     `db:"pending"`
		Rejected    int     `db:"rejected"`
		TotalPoints int     `db:"total_points"`
		ThisMonth   int     `db:"this_month"`
		Categories  int     `db:"categories"`
		Hours       float64 `db:"hours"`
	}
	// an owner's categories are the ones they used; overall, the active ones
	categories := fmt.Sprintf("(SELECT COUNT(*) FROM %s WHERE is_active)", catTable)
	if ownerID != "" {
		categories = "COUNT(DISTINCT s.category_id)"
	}
	q := fmt.Sprintf(`SELECT COUNT(*) AS total,
		COUNT(*) FILTER (WHERE s.status = 'approved') AS approved,
		COUNT(*) FILTER (WHERE s.status = 'pending') AS pending,
		COUNT(*) FILTER (WHERE s.status = 'rejected') AS rejected,
		COALESCE(SUM(s.points) FILTER (WHERE s.status = 'approved'), 0) AS total_points,
		COUNT(*) FILTER (WHERE s.created_at >= $1) AS this_month,
		%s AS categories,
		COALESCE(SUM(%s) FILTER (WHERE s.status = 'approved'), 0) AS hours
		FROM %s s
		WHERE ($2 = '' OR s.user_id::text = $2)`, categories, hoursColumn(kind), table)
	if err = s.db.GetContext(ctx, &row, q, monthStart.UTC(), ownerID); err != nil {
		return submission.Stats{}, errors.Wrapf(err, "computing %s stats", kind)
	}

	stats := submission.Stats{
		Total:           row.Total,
		Approved:        row.Approved,
		Pending:         row.Pending,
		Rejected:        row.Rejected,
		TotalPoints:     row.TotalPoints,
		ThisMonth:       row.ThisMonth,
		CategoriesCount: row.Categories,
	}
	if kind == submission.KindVolunteering {
		stats.TotalHours = &row.Hours
	}
	return stats, nil
}

func (s *Store) CountByCategory(ctx context.Context, kind submission.Kind) ([]submission.CategoryCount, error) {
	table, catTable, err := tables(kind)
	if err != nil {
		return nil, err
	}
	var counts []struct {
		Name  string `db:"name"`
		Count int    `db:"count"`
	}
	q := fmt.Sprintf(`SELECT c.name, COUNT(*) AS count FROM %s s JOIN %s c ON c.id = s.category_id
		GROUP BY c.name ORDER BY count DESC, c.name`, table, catTable)
	if err = s.db.SelectContext(ctx, &counts, q); err != nil {
		return nil, errors.Wrapf(err, "counting %s by category", kind)
	}
	result := make([]submission.CategoryCount, 0, len(counts))
	for _, c := range counts {
		result = append(result, submission.CategoryCount{Name: c.Name, Count: c.Count})
	}
	return result, nil
}

func (s *Store) CountByMonth(ctx context.Context, kind submission.Kind, since time.Time) (map[string]int, error) {
	table, _, err := tables(kind)
	if err != nil {
		return nil, err
	}
	var counts []struct {
		Month string `db:"month"`
		Count int    `db:"count"`
	}
	q := fmt.Sprintf(`SELECT to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM') AS month, COUNT(*) AS count
		FROM %s WHERE created_at >= $1 GROUP BY month`, table)
	if err = s.db.SelectContext(ctx, &counts, q, since.UTC()); err != nil {
		return nil, errors.Wrapf(err, "counting %s by month", kind)
	}
	result := make(map[string]int, len(counts))
	for _, c := range counts {
		result[c.Month] = c.Count
	}
	return result, nil
}

func (s *Store) TopContributors(ctx context.Context, kind submission.Kind, limit int) ([]submission.Contributor, error) {
	table, _, err := tables(kind)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		UserID      string `db:"user_id"`
		Name        string `db:"name"`
		TotalPoints int    `db:"total_points"`
		Count       int    `db:"count"`
	}
	q := fmt.Sprintf(`SELECT s.user_id, %s AS name, SUM(s.points) AS total_points, COUNT(*) AS count
		FROM %s s JOIN users u ON u.id = s.user_id
		WHERE s.status = 'approved'
		GROUP BY s.user_id, u.first_name, u.last_name, u.username
		ORDER BY total_points DESC, name
		LIMIT $1`, ownerNameExpr, table)
	if err = s.db.SelectContext(ctx, &rows, q, limit); err != nil {
		return nil, errors.Wrapf(err, "ranking %s contributors", kind)
	}
	top := make([]submission.Contributor, 0, len(rows))
	for _, r := range rows {
		top = append(top, submission.Contributor(r))
	}
	return top, nil
}

// deleteEngagement removes the reviews, comments, likes & shares of a deleted submission.
func deleteEngagement(ctx context.Context, tx *sqlx.Tx, kind submission.Kind, id string) error {
	for _, table := range []string{"submission_reviews", "submission_comments", "submission_likes", "submission_shares"} {
		q := fmt.Sprintf("DELETE FROM %s WHERE kind = $1 AND submission_id = $2", table)
		if _, err := tx.ExecContext(ctx, q, string(kind), id); err != nil {
			return errors.Wrapf(err, "deleting %s", table)
		}
	}
	return nil
}

// lockSubmission locks the row of the submission `id` for the rest of tx.
// With onlyPending, it fails with submission.ErrNotPending unless the submission is still pending.
func lockSubmission(ctx context.Context, tx *sqlx.Tx, table, id string, onlyPending bool, notFound error) error {
	var status string
	if err := tx.GetContext(ctx, &status, fmt.Sprintf("SELECT status FROM %s WHERE id = $1 FOR UPDATE", table), id); err != nil {
		return trapNoRows(err, notFound, "locking submission")
	}
	if onlyPending && submission.Status(status) != submission.StatusPending {
		return submission.ErrNotPending
	}
	return nil
}

// deleteSubmission deletes the submission `id` of `kind` with its engagement.
func (s *Store) deleteSubmission(ctx context.Context, kind submission.Kind, id string, onlyPending bool, notFound error) error {
	table, _, err := tables(kind)
	if err != nil {
		return err
	}
	if !validID(id) {
		return notFound
	}
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := lockSubmission(ctx, tx, table, id, onlyPending, notFound); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", table), id); err != nil {
			return errors.Wrap(err, "deleting submission")
		}
		return deleteEngagement(ctx, tx, kind, id)
	})
}

// orderSubmissions orders on the columns of `s`; the default is the most recent first.
func orderSubmissions(ordering []core.DBOrdering) string {
	return orderBy(ordering, "s", "s.created_at DESC")
}
