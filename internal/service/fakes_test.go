package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/openclaw/attendance-server-go/internal/database"
	"github.com/openclaw/attendance-server-go/internal/model"
	"github.com/openclaw/attendance-server-go/internal/repository"
	"github.com/openclaw/attendance-server-go/internal/sse"
)

// memStore is an in-memory stand-in for the attendance tables. A single mutex
// serializes every operation, which gives the accepted-scan insert the same
// atomic check-and-insert behaviour as the unique constraint.
type memStore struct {
	mu       sync.Mutex
	owners   map[string]*model.Owner
	sessions map[string]*model.Session
	tokens   []model.RotatingToken
	accepted []model.AcceptedScan
	rejected []model.RejectedScan
	archived []model.ArchivedScan
	nextID   int64

	archiveErr error
}

func newMemStore() *memStore {
	return &memStore{
		owners:   make(map[string]*model.Owner),
		sessions: make(map[string]*model.Session),
	}
}

func (m *memStore) addOwner(email, name string) *model.Owner {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := &model.Owner{ID: uuid.NewString(), Email: email, Name: name, CreatedAt: time.Now()}
	m.owners[o.ID] = o
	return o
}

func (m *memStore) addSession(ownerID string, lat, lon float64, startedAt time.Time) *model.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &model.Session{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		AnchorLat: lat,
		AnchorLon: lon,
		StartedAt: startedAt,
		IsActive:  true,
	}
	m.sessions[s.ID] = s
	return s
}

func (m *memStore) acceptedFor(sessionID string) []model.AcceptedScan {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AcceptedScan
	for _, a := range m.accepted {
		if a.SessionID == sessionID {
			out = append(out, a)
		}
	}
	return out
}

func (m *memStore) rejectedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rejected)
}

func (m *memStore) tokenCount(sessionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tokens {
		if t.SessionID == sessionID {
			n++
		}
	}
	return n
}

// Transactions run inline against the store. err, when set, fails the
// transaction before fn runs.
type memTx struct {
	err error
}

func (t *memTx) WithTx(_ context.Context, fn database.TxFunc) error {
	if t.err != nil {
		return t.err
	}
	return fn(nil)
}

type memOwnerRepo struct{ m *memStore }

func (r *memOwnerRepo) FindByID(_ context.Context, id string) (*model.Owner, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if o, ok := r.m.owners[id]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, nil
}

func (r *memOwnerRepo) FindByEmail(_ context.Context, email string) (*model.Owner, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, o := range r.m.owners {
		if o.Email == email {
			cp := *o
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memOwnerRepo) Create(_ context.Context, params model.CreateOwnerParams) (*model.Owner, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, o := range r.m.owners {
		if o.Email == params.Email {
			return nil, repository.ErrEmailTaken
		}
	}
	o := &model.Owner{ID: uuid.NewString(), Email: params.Email, Name: params.Name, PasswordHash: params.PasswordHash}
	r.m.owners[o.ID] = o
	cp := *o
	return &cp, nil
}

func (r *memOwnerRepo) Lock(context.Context, string) error { return nil }

func (r *memOwnerRepo) WithTx(*sqlx.Tx) repository.OwnerRepository { return r }

type memSessionRepo struct{ m *memStore }

func (r *memSessionRepo) FindByID(_ context.Context, id string) (*model.Session, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if s, ok := r.m.sessions[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (r *memSessionRepo) ListByOwner(_ context.Context, ownerID string) ([]model.SessionSummary, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []model.SessionSummary
	for _, s := range r.m.sessions {
		if s.OwnerID != ownerID {
			continue
		}
		summary := model.SessionSummary{Session: *s}
		for _, a := range r.m.accepted {
			if a.SessionID == s.ID {
				summary.AcceptedCount++
			}
		}
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

func (r *memSessionRepo) CountActiveByOwner(_ context.Context, ownerID string) (int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	n := 0
	for _, s := range r.m.sessions {
		if s.OwnerID == ownerID && s.IsActive {
			n++
		}
	}
	return n, nil
}

func (r *memSessionRepo) Create(_ context.Context, params model.CreateSessionParams) (*model.Session, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s := &model.Session{
		ID:        uuid.NewString(),
		OwnerID:   params.OwnerID,
		AnchorLat: params.AnchorLat,
		AnchorLon: params.AnchorLon,
		StartedAt: params.StartedAt,
		IsActive:  true,
	}
	r.m.sessions[s.ID] = s
	cp := *s
	return &cp, nil
}

func (r *memSessionRepo) MarkEnded(_ context.Context, id string, endedAt time.Time) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.sessions[id]
	if !ok || !s.IsActive {
		return false, nil
	}
	s.IsActive = false
	s.EndedAt = &endedAt
	return true, nil
}

func (r *memSessionRepo) WithTx(*sqlx.Tx) repository.SessionRepository { return r }

type memTokenRepo struct{ m *memStore }

func (r *memTokenRepo) Create(_ context.Context, params model.CreateTokenParams) (*model.RotatingToken, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.nextID++
	t := model.RotatingToken{
		ID:         r.m.nextID,
		SessionID:  params.SessionID,
		TokenValue: params.TokenValue,
		IssuedAt:   params.IssuedAt,
		ExpiresAt:  params.ExpiresAt,
	}
	r.m.tokens = append(r.m.tokens, t)
	return &t, nil
}

func (r *memTokenRepo) FindValid(_ context.Context, sessionID, value string, now time.Time) (*model.RotatingToken, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, t := range r.m.tokens {
		if t.SessionID == sessionID && t.TokenValue == value && !t.ExpiresAt.Before(now) {
			cp := t
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memTokenRepo) deleteWhere(match func(model.RotatingToken) bool) int64 {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	kept := r.m.tokens[:0]
	var removed int64
	for _, t := range r.m.tokens {
		if match(t) {
			removed++
			continue
		}
		kept = append(kept, t)
	}
	r.m.tokens = kept
	return removed
}

func (r *memTokenRepo) DeleteExpiredForSession(_ context.Context, sessionID string, now time.Time) (int64, error) {
	return r.deleteWhere(func(t model.RotatingToken) bool {
		return t.SessionID == sessionID && t.ExpiresAt.Before(now)
	}), nil
}

func (r *memTokenRepo) DeleteBySession(_ context.Context, sessionID string) (int64, error) {
	return r.deleteWhere(func(t model.RotatingToken) bool { return t.SessionID == sessionID }), nil
}

func (r *memTokenRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	return r.deleteWhere(func(t model.RotatingToken) bool { return t.ExpiresAt.Before(now) }), nil
}

func (r *memTokenRepo) WithTx(*sqlx.Tx) repository.TokenRepository { return r }

type memScanRepo struct{ m *memStore }

func (r *memScanRepo) ExistsForDevice(_ context.Context, sessionID, deviceID string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, a := range r.m.accepted {
		if a.SessionID == sessionID && a.DeviceID == deviceID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memScanRepo) Create(_ context.Context, params model.CreateAcceptedScanParams) (*model.AcceptedScan, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, a := range r.m.accepted {
		if a.SessionID == params.SessionID && a.DeviceID == params.DeviceID {
			return nil, repository.ErrDuplicateDevice
		}
	}
	if params.RequireActiveSession {
		s, ok := r.m.sessions[params.SessionID]
		if !ok || !s.IsActive {
			return nil, repository.ErrSessionInactive
		}
	}
	scan := model.AcceptedScan{
		ID:            uuid.NewString(),
		SessionID:     params.SessionID,
		SubjectID:     params.SubjectID,
		FirstName:     params.FirstName,
		LastName:      params.LastName,
		DeviceID:      params.DeviceID,
		ClientLat:     params.ClientLat,
		ClientLon:     params.ClientLon,
		ClientTS:      params.ClientTS,
		ClaimNonce:    params.ClaimNonce,
		IssuanceNonce: params.IssuanceNonce,
		ClientVersion: params.ClientVersion,
		DistanceM:     params.DistanceM,
		ManualReason:  params.ManualReason,
		VerifiedAt:    params.VerifiedAt,
	}
	r.m.accepted = append(r.m.accepted, scan)
	return &scan, nil
}

func (r *memScanRepo) FindBySession(_ context.Context, sessionID string) ([]model.AcceptedScan, error) {
	out := r.m.acceptedFor(sessionID)
	sort.SliceStable(out, func(i, j int) bool { return out[i].VerifiedAt.After(out[j].VerifiedAt) })
	return out, nil
}

func (r *memScanRepo) CountBySession(_ context.Context, sessionID string) (int, error) {
	return len(r.m.acceptedFor(sessionID)), nil
}

func (r *memScanRepo) WithTx(*sqlx.Tx) repository.AcceptedScanRepository { return r }

type memRejectionRepo struct{ m *memStore }

func (r *memRejectionRepo) Create(_ context.Context, params model.CreateRejectedScanParams) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.rejected = append(r.m.rejected, model.RejectedScan{
		ID:            uuid.NewString(),
		SessionID:     params.SessionID,
		SubjectID:     params.SubjectID,
		FirstName:     params.FirstName,
		LastName:      params.LastName,
		DeviceID:      params.DeviceID,
		ClientLat:     params.ClientLat,
		ClientLon:     params.ClientLon,
		ClientTS:      params.ClientTS,
		ClaimNonce:    params.ClaimNonce,
		ClientVersion: params.ClientVersion,
		Code:          params.Code,
		Reason:        params.Reason,
		RejectedAt:    params.RejectedAt,
	})
	return nil
}

func (r *memRejectionRepo) FindBySession(_ context.Context, sessionID string, limit int) ([]model.RejectedScan, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []model.RejectedScan
	for i := len(r.m.rejected) - 1; i >= 0 && len(out) < limit; i-- {
		rej := r.m.rejected[i]
		if rej.SessionID != nil && *rej.SessionID == sessionID {
			out = append(out, rej)
		}
	}
	return out, nil
}

func (r *memRejectionRepo) CountBySession(_ context.Context, sessionID string) (int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	n := 0
	for _, rej := range r.m.rejected {
		if rej.SessionID != nil && *rej.SessionID == sessionID {
			n++
		}
	}
	return n, nil
}

type memArchiveRepo struct{ m *memStore }

func (r *memArchiveRepo) archive(scan model.AcceptedScan, at time.Time) int64 {
	for _, a := range r.m.archived {
		if a.SessionID == scan.SessionID && a.DeviceID == scan.DeviceID {
			return 0
		}
	}
	r.m.archived = append(r.m.archived, model.ArchivedScan{AcceptedScan: scan, ArchivedAt: at})
	return 1
}

func (r *memArchiveRepo) ArchiveSession(_ context.Context, sessionID string, archivedAt time.Time) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.archiveErr != nil {
		return 0, r.m.archiveErr
	}
	var n int64
	for _, a := range r.m.accepted {
		if a.SessionID == sessionID {
			n += r.archive(a, archivedAt)
		}
	}
	return n, nil
}

func (r *memArchiveRepo) ArchiveScan(_ context.Context, scanID string, archivedAt time.Time) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.archiveErr != nil {
		return 0, r.m.archiveErr
	}
	for _, a := range r.m.accepted {
		if a.ID == scanID {
			return r.archive(a, archivedAt), nil
		}
	}
	return 0, nil
}

func (r *memArchiveRepo) FindBySession(_ context.Context, sessionID string) ([]model.ArchivedScan, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []model.ArchivedScan
	for _, a := range r.m.archived {
		if a.SessionID == sessionID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memArchiveRepo) CountBySession(ctx context.Context, sessionID string) (int, error) {
	out, err := r.FindBySession(ctx, sessionID)
	return len(out), err
}

func (r *memArchiveRepo) WithTx(*sqlx.Tx) repository.ArchiveRepository { return r }

type publishedEvent struct {
	SessionID string
	Event     sse.Event
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, sessionID string, event sse.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{SessionID: sessionID, Event: event})
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Event.Type)
	}
	return out
}

// fixedClock returns a clock that can be advanced from tests.
type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFixedClock(t time.Time) *fixedClock { return &fixedClock{t: t} }

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
