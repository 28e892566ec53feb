package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/Gokulakrishnan610/chicken-dinner/core/profile"
)

var _ profile.Repository = (*Store)(nil)

const profileColumns = `user_id, bio, city, country, linkedin_url, github_url, portfolio_url, skills, interests,
	achievements_count, certificates_count, volunteering_hours, total_points, created_at, updated_at`

type profileRow struct {
	UserID            string         `db:"user_id"`
	Bio               string         `db:"bio"`
	City              string         `db:"city"`
	Country           string         `db:"country"`
	LinkedinURL       string         `db:"linkedin_url"`
	GithubURL         string         `db:"github_url"`
	PortfolioURL      string         `db:"portfolio_url"`
	Skills            pq.StringArray `db:"skills"`
	Interests         pq.StringArray `db:"interests"`
	AchievementsCount int            `db:"achievements_count"`
	CertificatesCount int            `db:"certificates_count"`
	VolunteeringHours float64        `db:"volunteering_hours"`
	TotalPoints       int            `db:"total_points"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

func (r profileRow) toProfile() profile.Profile {
	return profile.Profile{
		UserID:            r.UserID,
		Bio:               r.Bio,
		City:              r.City,
		Country:           r.Country,
		LinkedinURL:       r.LinkedinURL,
		GithubURL:         r.GithubURL,
		PortfolioURL:      r.PortfolioURL,
		Skills:            stringsOrEmpty(r.Skills),
		Interests:         stringsOrEmpty(r.Interests),
		AchievementsCount: r.AchievementsCount,
		CertificatesCount: r.CertificatesCount,
		VolunteeringHours: r.VolunteeringHours,
		TotalPoints:       r.TotalPoints,
		CreatedAt:         r.CreatedAt.UTC(),
		UpdatedAt:         r.UpdatedAt.UTC(),
	}
}

func stringsOrEmpty(a pq.StringArray) []string {
	if a == nil {
		return []string{}
	}
	return a
}

func (s *Store) GetOrCreate(ctx context.Context, userID string, now time.Time) (profile.Profile, error) {
	if !validID(userID) {
		return profile.Profile{}, profile.ErrNotFound
	}
	q := `INSERT INTO profiles (user_id, created_at, updated_at) VALUES ($1, $2, $2) ON CONFLICT (user_id) DO NOTHING`
	if _, err := s.db.ExecContext(ctx, q, userID, now.UTC()); err != nil {
		if pqCode(err) == pqForeignKeyViolation {
			return profile.Profile{}, profile.ErrNotFound
		}
		return profile.Profile{}, errors.Wrap(err, "creating profile")
	}

	var r profileRow
	if err := s.db.GetContext(ctx, &r, "SELECT "+profileColumns+" FROM profiles WHERE user_id = $1", userID); err != nil {
		return profile.Profile{}, trapNoRows(err, profile.ErrNotFound, "getting profile")
	}
	return r.toProfile(), nil
}

func (s *Store) UpdateProfile(ctx context.Context, p profile.Profile) (profile.Profile, error) {
	if !validID(p.UserID) {
		return profile.Profile{}, profile.ErrNotFound
	}
	q := `UPDATE profiles SET bio = $1, city = $2, country = $3, linkedin_url = $4, github_url = $5, portfolio_url = $6,
		skills = $7, interests = $8, updated_at = $9 WHERE user_id = $10 RETURNING ` + profileColumns
	var r profileRow
	err := s.db.GetContext(ctx, &r, q, p.Bio, p.City, p.Country, p.LinkedinURL, p.GithubURL, p.PortfolioURL,
		pq.StringArray(stringsOrEmpty(p.Skills)), pq.StringArray(stringsOrEmpty(p.Interests)), p.UpdatedAt.UTC(), p.UserID)
	if err != nil {
		return profile.Profile{}, trapNoRows(err, profile.ErrNotFound, "updating profile")
	}
	return r.toProfile(), nil
}

// creditProfile adds `c` to the profile of `userID`, creating the profile if needed.
func creditProfile(ctx context.Context, tx *sqlx.Tx, userID string, c profile.Credit, at time.Time) error {
	q := `INSERT INTO profiles (user_id, achievements_count, certificates_count, volunteering_hours, total_points, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			achievements_count = profiles.achievements_count + EXCLUDED.achievements_count,
			certificates_count = profiles.certificates_count + EXCLUDED.certificates_count,
			volunteering_hours = profiles.volunteering_hours + EXCLUDED.volunteering_hours,
			total_points = profiles.total_points + EXCLUDED.total_points,
			updated_at = EXCLUDED.updated_at`
	_, err := tx.ExecContext(ctx, q, userID, c.Achievements, c.Certificates, c.Hours, c.Points, at.UTC())
	return errors.Wrap(err, "crediting profile")
}
