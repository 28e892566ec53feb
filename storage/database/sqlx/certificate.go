package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/Gokulakrishnan610/chicken-dinner/core"
	"github.com/Gokulakrishnan610/chicken-dinner/core/certificate"
	"github.com/Gokulakrishnan610/chicken-dinner/core/submission"
)

var _ certificate.Repository = (*Store)(nil)

const certificateColumns = "s.issuer, s.issue_date, s.expiry_date, s.certificate_number, s.skills_verified, s.expiry_notified_at"

type certificateCategoryRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	Icon        string    `db:"icon"`
	Color       string    `db:"color"`
	PointsValue int       `db:"points_value"`
	IsActive    bool      `db:"is_active"`
	CreatedAt   time.Time `db:"created_at"`
}

type certificateRow struct {
	submissionRow
	Issuer            string         `db:"issuer"`
	IssueDate         time.Time      `db:"issue_date"`
	ExpiryDate        null.Time      `db:"expiry_date"`
	CertificateNumber string         `db:"certificate_number"`
	SkillsVerified    pq.StringArray `db:"skills_verified"`
	ExpiryNotifiedAt  null.Time      `db:"expiry_notified_at"`
}

func (r certificateRow) toCertificate() certificate.Certificate {
	c := certificate.Certificate{
		Submission:        r.toSubmission(submission.KindCertificate),
		Issuer:            r.Issuer,
		IssueDate:         core.NewDate(r.IssueDate),
		CertificateNumber: r.CertificateNumber,
		SkillsVerified:    stringsOrEmpty(r.SkillsVerified),
		ExpiryNotifiedAt:  r.ExpiryNotifiedAt.Ptr(),
	}
	if r.ExpiryDate.Valid {
		d := core.NewDate(r.ExpiryDate.Time)
		c.ExpiryDate = &d
	}
	return c
}

func expiryDate(d *core.Date) null.Time {
	if d == nil || d.IsZero() {
		return null.Time{}
	}
	return null.TimeFrom(d.Time)
}

func (s *Store) QueryCertificateCategories(ctx context.Context, activeOnly bool) ([]certificate.Category, error) {
	var rows []certificateCategoryRow
	q := "SELECT * FROM certificate_categories WHERE ($1 = false OR is_active) ORDER BY name"
	if err := s.db.SelectContext(ctx, &rows, q, activeOnly); err != nil {
		return nil, errors.Wrap(err, "querying certificate categories")
	}
	cats := make([]certificate.Category, 0, len(rows))
	for _, r := range rows {
		cats = append(cats, certificate.Category(r))
	}
	return cats, nil
}

func (s *Store) GetCertificateCategory(ctx context.Context, id string) (certificate.Category, error) {
	if !validID(id) {
		return certificate.Category{}, certificate.ErrCategoryNotFound
	}
	var r certificateCategoryRow
	if err := s.db.GetContext(ctx, &r, "SELECT * FROM certificate_categories WHERE id = $1", id); err != nil {
		return certificate.Category{}, trapNoRows(err, certificate.ErrCategoryNotFound, "getting certificate category")
	}
	return certificate.Category(r), nil
}

func (s *Store) CreateCertificate(ctx context.Context, c certificate.Certificate) (certificate.Certificate, error) {
	c.ID = uuid.New().String()
	q := `INSERT INTO certificates (id, user_id, category_id, title, description, issuer, issue_date, expiry_date,
		certificate_number, status, priority, points, skills_verified, tags, is_public, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	_, err := s.db.ExecContext(ctx, q, c.ID, c.OwnerID, c.CategoryID, c.Title, c.Description, c.Issuer,
		c.IssueDate.Time, expiryDate(c.ExpiryDate), c.CertificateNumber, string(c.Status), string(c.Priority), c.Points,
		pq.StringArray(stringsOrEmpty(c.SkillsVerified)), pq.StringArray(stringsOrEmpty(c.Tags)), c.IsPublic,
		c.CreatedAt.UTC(), c.UpdatedAt.UTC())
	if err != nil {
		return certificate.Certificate{}, errors.Wrap(err, "inserting certificate")
	}
	return s.GetCertificate(ctx, c.ID)
}

func (s *Store) QueryCertificates(ctx context.Context, scope submission.Scope, filter *certificate.QueryFilter, ordering []core.DBOrdering) ([]certificate.Certificate, error) {
	var f certificate.QueryFilter
	if filter != nil {
		f = *filter
	}
	w := submissionWhere(scope, f.Status, f.CategoryID, f.UserID)
	q, err := selectSubmissions(submission.KindCertificate, certificateColumns)
	if err != nil {
		return nil, err
	}
	q += w.String() + orderSubmissions(ordering)

	var rows []certificateRow
	if err = s.db.SelectContext(ctx, &rows, s.db.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying certificates")
	}
	return toCertificates(rows), nil
}

func toCertificates(rows []certificateRow) []certificate.Certificate {
	list := make([]certificate.Certificate, 0, len(rows))
	for _, r := range rows {
		list = append(list, r.toCertificate())
	}
	return list
}

func getCertificate(ctx context.Context, q querier, id string) (certificate.Certificate, error) {
	query, err := selectSubmissions(submission.KindCertificate, certificateColumns)
	if err != nil {
		return certificate.Certificate{}, err
	}
	var r certificateRow
	if err = q.GetContext(ctx, &r, query+" WHERE s.id = $1", id); err != nil {
		return certificate.Certificate{}, trapNoRows(err, certificate.ErrNotFound, "getting certificate")
	}
	return r.toCertificate(), nil
}

func (s *Store) GetCertificate(ctx context.Context, id string) (certificate.Certificate, error) {
	if !validID(id) {
		return certificate.Certificate{}, certificate.ErrNotFound
	}
	return getCertificate(ctx, s.db, id)
}

func (s *Store) UpdateCertificate(ctx context.Context, c certificate.Certificate, onlyPending bool) (certificate.Certificate, error) {
	if !validID(c.ID) {
		return certificate.Certificate{}, certificate.ErrNotFound
	}
	var updated certificate.Certificate
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := lockSubmission(ctx, tx, "certificates", c.ID, onlyPending, certificate.ErrNotFound); err != nil {
			return err
		}
		q := `UPDATE certificates SET category_id = $1, title = $2, description = $3, priority = $4, points = $5,
			tags = $6, is_public = $7, updated_at = $8, issuer = $9, issue_date = $10, expiry_date = $11,
			expiry_notified_at = $12, certificate_number = $13, skills_verified = $14
			WHERE id = $15`
		_, err := tx.ExecContext(ctx, q, c.CategoryID, c.Title, c.Description, string(c.Priority), c.Points,
			pq.StringArray(stringsOrEmpty(c.Tags)), c.IsPublic, c.UpdatedAt.UTC(), c.Issuer, c.IssueDate.Time,
			expiryDate(c.ExpiryDate), null.TimeFromPtr(c.ExpiryNotifiedAt), c.CertificateNumber,
			pq.StringArray(stringsOrEmpty(c.SkillsVerified)), c.ID)
		if err != nil {
			return errors.Wrap(err, "updating certificate")
		}
		updated, err = getCertificate(ctx, tx, c.ID)
		return err
	})
	return updated, err
}

func (s *Store) DeleteCertificate(ctx context.Context, id string, onlyPending bool) error {
	return s.deleteSubmission(ctx, submission.KindCertificate, id, onlyPending, certificate.ErrNotFound)
}

// QueryExpiringCertificates lists the approved certificates expiring between from & to (inclusive)
// whose owner was not notified yet, soonest first.
func (s *Store) QueryExpiringCertificates(ctx context.Context, from, to core.Date) ([]certificate.Certificate, error) {
	q, err := selectSubmissions(submission.KindCertificate, certificateColumns)
	if err != nil {
		return nil, err
	}
	q += ` WHERE s.status = 'approved' AND s.expiry_notified_at IS NULL
		AND s.expiry_date BETWEEN $1 AND $2
		ORDER BY s.expiry_date`

	var rows []certificateRow
	if err = s.db.SelectContext(ctx, &rows, q, from.Time, to.Time); err != nil {
		return nil, errors.Wrap(err, "querying expiring certificates")
	}
	return toCertificates(rows), nil
}

func (s *Store) MarkExpiryNotified(ctx context.Context, id string, at time.Time) error {
	if !validID(id) {
		return certificate.ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, "UPDATE certificates SET expiry_notified_at = $1 WHERE id = $2", at.UTC(), id)
	if err != nil {
		return errors.Wrap(err, "marking certificate expiry notified")
	}
	n, err := rowsAffected(res, "marking certificate expiry notified")
	if err == nil && n == 0 {
		return certificate.ErrNotFound
	}
	return err
}
