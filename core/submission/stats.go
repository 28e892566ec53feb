package submission

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"github.com/Gokulakrishnan610/chicken-dinner/core"
	"github.com/Gokulakrishnan610/chicken-dinner/core/user"
)

const (
	analyticsMonths      = 12
	topContributorsLimit = 10
	popularCategoriesLen = 5
)

// Stats are computed on every call; they are never cached.
type Stats struct {
	Total           int      `json:"total"`
	Approved        int      `json:"approved"`
	Pending         int      `json:"pending"`
	Rejected        int      `json:"rejected"`
	TotalPoints     int      `json:"total_points"`
	ThisMonth       int      `json:"this_month"`
	CategoriesCount int      `json:"categories_count"`
	TotalHours      *float64 `json:"total_hours,omitempty"` // volunteering only
}

type CategoryCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type Contributor struct {
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	TotalPoints int    `json:"total_points"`
	Count       int    `json:"count"`
}

type Analytics struct {
	ByCategory        map[string]int  `json:"by_category"`
	ByMonth           map[string]int  `json:"by_month"`
	TopContributors   []Contributor   `json:"top_contributors"`
	PopularCategories []CategoryCount `json:"popular_categories"`
	AveragePoints     float64         `json:"average_points"`
	ApprovalRate      float64         `json:"approval_rate"`
}

// Stats returns the actor's own figures for students, and global ones for faculty & admins.
func (svc *Service) Stats(ctx context.Context, actor user.User, kind Kind) (Stats, error) {
	var ownerID string
	if !actor.IsStaff() {
		ownerID = actor.ID
	}
	stats, err := svc.store.SubmissionStats(ctx, kind, ownerID, core.MonthStart(svc.nowFunc()))
	if err != nil {
		return Stats{}, errors.Wrapf(err, "computing %s stats", kind)
	}
	return stats, nil
}

func (svc *Service) Analytics(ctx context.Context, actor user.User, kind Kind) (Analytics, error) {
	if !actor.IsStaff() {
		return Analytics{}, errAnalyticsForbidden
	}

	now := svc.nowFunc().UTC()
	stats, err := svc.store.SubmissionStats(ctx, kind, "", core.MonthStart(now))
	if err != nil {
		return Analytics{}, errors.Wrapf(err, "computing %s stats", kind)
	}
	categories, err := svc.store.CountByCategory(ctx, kind)
	if err != nil {
		return Analytics{}, errors.Wrapf(err, "counting %s by category", kind)
	}
	firstMonth := core.MonthStart(now).AddDate(0, -(analyticsMonths - 1), 0)
	months, err := svc.store.CountByMonth(ctx, kind, firstMonth)
	if err != nil {
		return Analytics{}, errors.Wrapf(err, "counting %s by month", kind)
	}
	top, err := svc.store.TopContributors(ctx, kind, topContributorsLimit)
	if err != nil {
		return Analytics{}, errors.Wrapf(err, "ranking %s contributors", kind)
	}

	a := Analytics{
		ByCategory:        make(map[string]int, len(categories)),
		ByMonth:           make(map[string]int, analyticsMonths),
		TopContributors:   top,
		PopularCategories: categories,
	}
	if a.TopContributors == nil {
		a.TopContributors = []Contributor{}
	}
	for _, cc := range categories {
		a.ByCategory[cc.Name] = cc.Count
	}
	if len(a.PopularCategories) > popularCategoriesLen {
		a.PopularCategories = a.PopularCategories[:popularCategoriesLen]
	}
	if a.PopularCategories == nil {
		a.PopularCategories = []CategoryCount{}
	}
	for i := 0; i < analyticsMonths; i++ {
		key := firstMonth.AddDate(0, i, 0).Format(MonthKeyLayout)
		a.ByMonth[key] = months[key]
	}
	if stats.Approved > 0 {
		a.AveragePoints = round2(float64(stats.TotalPoints) / float64(stats.Approved))
	}
	if stats.Total > 0 {
		a.ApprovalRate = round2(float64(stats.Approved) / float64(stats.Total) * 100)
	}
	return a, nil
}

// MonthKeyLayout formats the keys of Analytics.ByMonth.
const MonthKeyLayout = "2006-01"

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
