package accesscontrol

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/dependable-access-control/internal/domain/access"
	"github.com/davidleathers/dependable-access-control/internal/domain/errors"
)

// memoryStore is an in-process stand-in for every store the service reads
type memoryStore struct {
	mu            sync.Mutex
	permissions   map[uuid.UUID]access.DataAccessPermission
	relationships []access.BusinessRelationship
	trades        map[[2]uuid.UUID]access.TransactionStats
	roles         map[uuid.UUID]access.Role
	audit         []*access.AuditEntry
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		permissions: make(map[uuid.UUID]access.DataAccessPermission),
		trades:      make(map[[2]uuid.UUID]access.TransactionStats),
		roles:       make(map[uuid.UUID]access.Role),
	}
}

func (s *memoryStore) stores() Stores {
	return Stores{Permissions: s, Relationships: s, Transactions: s, Directory: s, Audit: s}
}

func (s *memoryStore) Create(_ context.Context, p *access.DataAccessPermission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permissions[p.ID] = *p
	return nil
}

func (s *memoryStore) GetByID(_ context.Context, id uuid.UUID) (*access.DataAccessPermission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.permissions[id]
	if !ok {
		return nil, errors.NewNotFoundError("permission")
	}
	return &p, nil
}

func (s *memoryStore) FindActive(_ context.Context, grantee, grantor uuid.UUID, category access.DataCategory, accessType access.AccessType, now time.Time) ([]*access.DataAccessPermission, error) {
	return s.list(func(p access.DataAccessPermission) bool {
		return p.IsValid(now) && p.GranteeCompanyID == grantee && p.GrantorCompanyID == grantor &&
			p.DataCategory == category && p.AccessType == accessType
	}), nil
}

func (s *memoryStore) Update(_ context.Context, p *access.DataAccessPermission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.permissions[p.ID]
	if !ok {
		return errors.NewNotFoundError("permission")
	}
	if stored.Version != p.Version {
		return errors.NewConflictError("permission was modified concurrently")
	}
	p.Version++
	s.permissions[p.ID] = *p
	return nil
}

func (s *memoryStore) ListActiveByGranteeUser(_ context.Context, userID uuid.UUID) ([]*access.DataAccessPermission, error) {
	return s.list(func(p access.DataAccessPermission) bool {
		return p.IsActive && p.GranteeUserID != nil && *p.GranteeUserID == userID
	}), nil
}

func (s *memoryStore) ListActiveByCompany(_ context.Context, companyID uuid.UUID) ([]*access.DataAccessPermission, error) {
	return s.list(func(p access.DataAccessPermission) bool {
		return p.IsActive && p.GranteeCompanyID == companyID
	}), nil
}

func (s *memoryStore) ListExpired(_ context.Context, now time.Time) ([]*access.DataAccessPermission, error) {
	return s.list(func(p access.DataAccessPermission) bool {
		return p.IsActive && p.IsExpired(now)
	}), nil
}

func (s *memoryStore) list(keep func(access.DataAccessPermission) bool) []*access.DataAccessPermission {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*access.DataAccessPermission
	for _, p := range s.permissions {
		if keep(p) {
			p := p
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GrantedAt.Before(out[j].GrantedAt) })
	return out
}

func (s *memoryStore) FindActiveRelationship(_ context.Context, a, b uuid.UUID) (*access.BusinessRelationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.relationships {
		if r.IsActive && r.Links(a, b) {
			r := r
			return &r, nil
		}
	}
	return nil, nil
}

func (s *memoryStore) TransactionStats(_ context.Context, seller, buyer uuid.UUID) (access.TransactionStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trades[[2]uuid.UUID{seller, buyer}], nil
}

func (s *memoryStore) HasCommonCounterparty(_ context.Context, a, b uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	partners := func(c uuid.UUID) map[uuid.UUID]bool {
		out := make(map[uuid.UUID]bool)
		for k, v := range s.trades {
			if v.Count == 0 {
				continue
			}
			switch c {
			case k[0]:
				out[k[1]] = true
			case k[1]:
				out[k[0]] = true
			}
		}
		return out
	}
	pb := partners(b)
	for c := range partners(a) {
		if c != a && c != b && pb[c] {
			return true, nil
		}
	}
	return false, nil
}

func (s *memoryStore) GetUserRole(_ context.Context, userID, _ uuid.UUID) (access.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.roles[userID]
	if !ok {
		return "", errors.NewNotFoundError("company user")
	}
	return role, nil
}

func (s *memoryStore) GetCompanyTier(context.Context, uuid.UUID) (string, error) {
	return "standard", nil
}

func (s *memoryStore) Append(_ context.Context, entry *access.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, entry)
	return nil
}

func (s *memoryStore) CountRecentDenials(_ context.Context, userID uuid.UUID, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.audit {
		if e.ActorUserID == userID && e.EventType == access.AuditAccessDenied && e.Result == access.ResultDenied && !e.OccurredAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *memoryStore) ListForCompany(_ context.Context, companyID uuid.UUID, since time.Time) ([]*access.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*access.AuditEntry
	for _, e := range s.audit {
		if e.ActorCompanyID == companyID && !e.OccurredAt.Before(since) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	return out, nil
}

func (s *memoryStore) events(eventType access.AuditEventType) []*access.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*access.AuditEntry
	for _, e := range s.audit {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}
