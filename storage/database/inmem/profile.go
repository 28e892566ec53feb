package inmemdb

import (
	"context"
	"time"

	"github.com/Gokulakrishnan610/chicken-dinner/core/profile"
)

var _ profile.Repository = (*DB)(nil)

func copyProfile(p *profile.Profile) profile.Profile {
	cp := *p
	cp.Skills = cloneStrings(p.Skills)
	cp.Interests = cloneStrings(p.Interests)
	return cp
}

// profileLocked returns the profile of userID, creating it if needed. The caller holds the write lock.
func (db *DB) profileLocked(userID string, now time.Time) *profile.Profile {
	p, ok := db.profiles[userID]
	if !ok {
		p = &profile.Profile{
			UserID:    userID,
			Skills:    []string{},
			Interests: []string{},
			CreatedAt: now,
			UpdatedAt: now,
		}
		db.profiles[userID] = p
	}
	return p
}

func (db *DB) GetOrCreate(_ context.Context, userID string, now time.Time) (profile.Profile, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.users[userID]; !ok {
		return profile.Profile{}, profile.ErrNotFound
	}
	return copyProfile(db.profileLocked(userID, now)), nil
}

func (db *DB) UpdateProfile(_ context.Context, p profile.Profile) (profile.Profile, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	orig, ok := db.profiles[p.UserID]
	if !ok {
		return profile.Profile{}, profile.ErrNotFound
	}
	orig.Bio = p.Bio
	orig.City = p.City
	orig.Country = p.Country
	orig.LinkedinURL = p.LinkedinURL
	orig.GithubURL = p.GithubURL
	orig.PortfolioURL = p.PortfolioURL
	orig.Skills = cloneStrings(p.Skills)
	orig.Interests = cloneStrings(p.Interests)
	orig.UpdatedAt = p.UpdatedAt
	return copyProfile(orig), nil
}
