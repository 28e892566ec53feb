package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Gokulakrishnan610/chicken-dinner/core"
	"github.com/Gokulakrishnan610/chicken-dinner/core/certificate"
	"github.com/Gokulakrishnan610/chicken-dinner/core/submission"
)

var _ certificate.Repository = (*DB)(nil)

func cloneDate(d *core.Date) *core.Date {
	if d == nil {
		return nil
	}
	dd := *d
	return &dd
}

func (db *DB) loadCertificate(c *certificate.Certificate) certificate.Certificate {
	cp := *c
	cp.Submission = db.loadSubmission(&c.Submission)
	cp.ExpiryDate = cloneDate(c.ExpiryDate)
	cp.ExpiryNotifiedAt = cloneTime(c.ExpiryNotifiedAt)
	cp.SkillsVerified = cloneStrings(c.SkillsVerified)
	return cp
}

func cmpCertificates(a, b certificate.Certificate, field string) int {
	switch field {
	case "issue_date":
		return cmpTime(a.IssueDate.Time, b.IssueDate.Time)
	case "expiry_date":
		var ea, eb *time.Time
		if a.ExpiryDate != nil {
			ea = &a.ExpiryDate.Time
		}
		if b.ExpiryDate != nil {
			eb = &b.ExpiryDate.Time
		}
		return cmpTimePtr(ea, eb)
	}
	return cmpSubmissions(a.Submission, b.Submission, field)
}

func (db *DB) QueryCertificateCategories(_ context.Context, activeOnly bool) ([]certificate.Category, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	cats := make([]certificate.Category, 0, len(db.certificateCats))
	for _, c := range db.certificateCats {
		if !activeOnly || c.IsActive {
			cats = append(cats, *c)
		}
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i].Name < cats[j].Name })
	return cats, nil
}

func (db *DB) GetCertificateCategory(_ context.Context, id string) (certificate.Category, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if c, ok := db.certificateCats[id]; ok {
		return *c, nil
	}
	return certificate.Category{}, certificate.ErrCategoryNotFound
}

func (db *DB) CreateCertificate(_ context.Context, c certificate.Certificate) (certificate.Certificate, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	c.ID = uuid.New().String()
	c.Tags = cloneStrings(c.Tags)
	c.SkillsVerified = cloneStrings(c.SkillsVerified)
	c.ExpiryDate = cloneDate(c.ExpiryDate)
	db.certificates[c.ID] = &c
	return db.loadCertificate(&c), nil
}

func (db *DB) QueryCertificates(_ context.Context, scope submission.Scope, filter *certificate.QueryFilter, ordering []core.DBOrdering) ([]certificate.Certificate, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var f certificate.QueryFilter
	if filter != nil {
		f = *filter
	}
	list := make([]certificate.Certificate, 0)
	for _, c := range db.certificates {
		if matchesSubmission(c.Submission, scope, f.Status, f.CategoryID, f.UserID) {
			list = append(list, db.loadCertificate(c))
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		return less(ordering, func(field string) int { return cmpCertificates(list[i], list[j], field) })
	})
	return list, nil
}

func (db *DB) GetCertificate(_ context.Context, id string) (certificate.Certificate, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if c, ok := db.certificates[id]; ok {
		return db.loadCertificate(c), nil
	}
	return certificate.Certificate{}, certificate.ErrNotFound
}

func (db *DB) UpdateCertificate(_ context.Context, c certificate.Certificate, onlyPending bool) (certificate.Certificate, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	orig, ok := db.certificates[c.ID]
	if !ok {
		return certificate.Certificate{}, certificate.ErrNotFound
	}
	if onlyPending && !orig.IsPending() {
		return certificate.Certificate{}, submission.ErrNotPending
	}
	orig.CategoryID = c.CategoryID
	orig.Title = c.Title
	orig.Description = c.Description
	orig.Priority = c.Priority
	orig.Points = c.Points
	orig.Tags = cloneStrings(c.Tags)
	orig.IsPublic = c.IsPublic
	orig.UpdatedAt = c.UpdatedAt
	orig.Issuer = c.Issuer
	orig.IssueDate = c.IssueDate
	orig.ExpiryDate = cloneDate(c.ExpiryDate)
	orig.ExpiryNotifiedAt = cloneTime(c.ExpiryNotifiedAt)
	orig.CertificateNumber = c.CertificateNumber
	orig.SkillsVerified = cloneStrings(c.SkillsVerified)
	return db.loadCertificate(orig), nil
}

func (db *DB) DeleteCertificate(_ context.Context, id string, onlyPending bool) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	c, ok := db.certificates[id]
	if !ok {
		return certificate.ErrNotFound
	}
	if onlyPending && !c.IsPending() {
		return submission.ErrNotPending
	}
	delete(db.certificates, id)
	db.deleteEngagement(submission.KindCertificate, id)
	return nil
}

func (db *DB) QueryExpiringCertificates(_ context.Context, from, to core.Date) ([]certificate.Certificate, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	list := make([]certificate.Certificate, 0)
	for _, c := range db.certificates {
		if c.Status != submission.StatusApproved || c.ExpiryDate == nil || c.ExpiryNotifiedAt != nil {
			continue
		}
		if c.ExpiryDate.Before(from) || to.Before(*c.ExpiryDate) {
			continue
		}
		list = append(list, db.loadCertificate(c))
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ExpiryDate.Before(*list[j].ExpiryDate) })
	return list, nil
}

func (db *DB) MarkExpiryNotified(_ context.Context, id string, at time.Time) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	c, ok := db.certificates[id]
	if !ok {
		return certificate.ErrNotFound
	}
	c.ExpiryNotifiedAt = &at
	return nil
}
