package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
	"tle_zone_contest/internal/common"
	"tle_zone_contest/internal/domain/contest"
	"tle_zone_contest/internal/domain/model"
)

// MemoryStore keeps every table in process memory behind one mutex. It
// satisfies all repository interfaces and backs STORAGE_DRIVER=memory and
// the service tests.
type MemoryStore struct {
	mu sync.RWMutex

	contests      map[string]*model.Contest
	contestSlugs  map[string]string
	registrations map[string]map[string]model.Registration // contest -> user -> row
	ratings       map[string][]model.RatingHistoryEntry    // user -> entries in insert order
	results       map[string]model.ProblemResult           // user|contest|problem -> row
	users         map[string]*model.User
}

var (
	_ ContestRepository      = (*MemoryStore)(nil)
	_ RegistrationRepository = (*MemoryStore)(nil)
	_ RatingRepository       = (*MemoryStore)(nil)
	_ ResultRepository       = (*MemoryStore)(nil)
	_ UserRepository         = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		contests:      make(map[string]*model.Contest),
		contestSlugs:  make(map[string]string),
		registrations: make(map[string]map[string]model.Registration),
		ratings:       make(map[string][]model.RatingHistoryEntry),
		results:       make(map[string]model.ProblemResult),
		users:         make(map[string]*model.User),
	}
}

// copyContest returns a detached copy with the live participant count.
func (s *MemoryStore) copyContest(c *model.Contest) model.Contest {
	out := *c
	out.Problems = append([]model.ContestProblem(nil), c.Problems...)
	out.ParticipantCount = len(s.registrations[c.ID])
	return out
}

func (s *MemoryStore) CreateContest(ctx context.Context, c *model.Contest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.contests[c.ID]; ok {
		return fmt.Errorf("contest %s already exists: %w", c.ID, common.ErrConflict)
	}
	if _, ok := s.contestSlugs[c.Slug]; ok {
		return fmt.Errorf("contest with this slug already exists: %w", common.ErrConflict)
	}
	seen := make(map[string]bool, len(c.Problems))
	for i := range c.Problems {
		if seen[c.Problems[i].ProblemID] {
			return fmt.Errorf("problem %s listed twice: %w", c.Problems[i].ProblemID, common.ErrInvalidContestDefinition)
		}
		seen[c.Problems[i].ProblemID] = true
		c.Problems[i].SortOrder = i + 1
	}

	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	stored := *c
	stored.Problems = append([]model.ContestProblem(nil), c.Problems...)
	s.contests[c.ID] = &stored
	s.contestSlugs[c.Slug] = c.ID
	return nil
}

func (s *MemoryStore) FindContestByID(ctx context.Context, id string) (*model.Contest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contests[id]
	if !ok {
		return nil, fmt.Errorf("contest not found: %w", common.ErrNotFound)
	}
	out := s.copyContest(c)
	return &out, nil
}

func (s *MemoryStore) FindContestBySlug(ctx context.Context, slug string) (*model.Contest, error) {
	s.mu.RLock()
	id, ok := s.contestSlugs[slug]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("contest not found: %w", common.ErrNotFound)
	}
	return s.FindContestByID(ctx, id)
}

func (s *MemoryStore) ListContests(ctx context.Context, f ContestFilter) ([]model.Contest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if f.View == contest.ViewMy && f.UserID == "" {
		return nil, fmt.Errorf("my contests requires a user: %w", common.ErrUnauthorized)
	}

	out := []model.Contest{}
	for _, c := range s.contests {
		_, registered := s.registrations[c.ID][f.UserID]
		registered = registered && f.UserID != ""

		var match bool
		switch f.View {
		case contest.ViewCurrent:
			match = !c.StartTime.After(f.Now) && !c.EndTime.Before(f.Now)
		case contest.ViewUpcoming:
			match = c.StartTime.After(f.Now)
		case contest.ViewPast:
			match = c.EndTime.Before(f.Now)
		case contest.ViewMy:
			match = registered
		default:
			return nil, fmt.Errorf("unknown view %q: %w", f.View, common.ErrBadRequest)
		}
		if !match || (!f.IncludePrivate && !c.IsPublic && !registered) {
			continue
		}
		out = append(out, s.copyContest(c))
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		var ka, kb time.Time
		desc := false
		switch f.View {
		case contest.ViewCurrent:
			ka, kb = a.EndTime, b.EndTime
		case contest.ViewPast:
			ka, kb, desc = a.EndTime, b.EndTime, true
		case contest.ViewMy:
			ka, kb, desc = a.StartTime, b.StartTime, true
		default:
			ka, kb = a.StartTime, b.StartTime
		}
		if !ka.Equal(kb) {
			if desc {
				return ka.After(kb)
			}
			return ka.Before(kb)
		}
		return a.ID < b.ID
	})

	if f.Limit > 0 {
		if f.Offset >= len(out) {
			return []model.Contest{}, nil
		}
		end := f.Offset + f.Limit
		if end > len(out) {
			end = len(out)
		}
		out = out[f.Offset:end]
	}
	return out, nil
}

func (s *MemoryStore) Register(ctx context.Context, reg *model.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contests[reg.ContestID]
	if !ok {
		return fmt.Errorf("contest %s: %w", reg.ContestID, common.ErrNotFound)
	}
	rows := s.registrations[reg.ContestID]
	if _, exists := rows[reg.UserID]; exists {
		return common.ErrAlreadyRegistered
	}
	if c.MaxParticipants > 0 && len(rows) >= c.MaxParticipants {
		return common.ErrContestFull
	}
	if rows == nil {
		rows = make(map[string]model.Registration)
		s.registrations[reg.ContestID] = rows
	}
	rows[reg.UserID] = *reg
	return nil
}

func (s *MemoryStore) IsRegistered(ctx context.Context, userID, contestID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.registrations[contestID][userID]
	return ok, nil
}

func (s *MemoryStore) ListParticipants(ctx context.Context, contestID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]model.Registration, 0, len(s.registrations[contestID]))
	for _, r := range s.registrations[contestID] {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].RegisteredAt.Equal(rows[j].RegisteredAt) {
			return rows[i].RegisteredAt.Before(rows[j].RegisteredAt)
		}
		return rows[i].UserID < rows[j].UserID
	})
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.UserID
	}
	return ids, nil
}

// RegistrationCount reports how many rows exist for a contest.
func (s *MemoryStore) RegistrationCount(contestID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.registrations[contestID])
}

func (s *MemoryStore) InsertEntry(ctx context.Context, e *model.RatingHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.ratings[e.UserID] {
		if existing.ContestID == e.ContestID {
			return common.ErrRatingAlreadyRecorded
		}
	}
	s.ratings[e.UserID] = append(s.ratings[e.UserID], *e)
	return nil
}

func (s *MemoryStore) FindEntry(ctx context.Context, userID, contestID string) (*model.RatingHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.ratings[userID] {
		if e.ContestID == contestID {
			out := e
			return &out, nil
		}
	}
	return nil, common.ErrNotFound
}

func (s *MemoryStore) LatestEntry(ctx context.Context, userID string) (*model.RatingHistoryEntry, error) {
	history, _ := s.ListHistory(ctx, userID)
	if len(history) == 0 {
		return nil, common.ErrNotFound
	}
	last := history[len(history)-1]
	return &last, nil
}

func (s *MemoryStore) ListHistory(ctx context.Context, userID string) ([]model.RatingHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := append([]model.RatingHistoryEntry{}, s.ratings[userID]...)
	// Stable keeps insert order for equal timestamps, matching the seq tiebreak in Postgres.
	sort.SliceStable(history, func(i, j int) bool { return history[i].Date.Before(history[j].Date) })
	return history, nil
}

func resultKey(userID, contestID, problemID string) string {
	return userID + "|" + contestID + "|" + problemID
}

func (s *MemoryStore) UpsertProblemResults(ctx context.Context, results []model.ProblemResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range results {
		s.results[resultKey(r.UserID, r.ContestID, r.ProblemID)] = r
	}
	return nil
}

func (s *MemoryStore) ListContestResults(ctx context.Context, contestID string) ([]model.ProblemResult, error) {
	return s.filterResults(func(r model.ProblemResult) bool { return r.ContestID == contestID }), nil
}

func (s *MemoryStore) ListUserResults(ctx context.Context, userID, contestID string) ([]model.ProblemResult, error) {
	return s.filterResults(func(r model.ProblemResult) bool {
		return r.UserID == userID && r.ContestID == contestID
	}), nil
}

func (s *MemoryStore) filterResults(keep func(model.ProblemResult) bool) []model.ProblemResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.ProblemResult
	for _, r := range s.results {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].ProblemID < out[j].ProblemID
	})
	return out
}

func (s *MemoryStore) Create(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == user.Username || u.Email == user.Email {
			return fmt.Errorf("user with given username or email already exists: %w", common.ErrConflict)
		}
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	stored := *user
	s.users[user.ID] = &stored
	return nil
}

func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.findUser(func(u *model.User) bool { return u.Email == email })
}

func (s *MemoryStore) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.findUser(func(u *model.User) bool { return u.Username == username })
}

func (s *MemoryStore) FindByID(ctx context.Context, id string) (*model.User, error) {
	return s.findUser(func(u *model.User) bool { return u.ID == id })
}

func (s *MemoryStore) findUser(match func(*model.User) bool) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if match(u) {
			out := *u
			return &out, nil
		}
	}
	return nil, fmt.Errorf("user not found: %w", common.ErrNotFound)
}
