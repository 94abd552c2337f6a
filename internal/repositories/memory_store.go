package repositories

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"useraccounts/internal/models"
	"useraccounts/internal/utils"
)

// MemoryStore keeps everything in process memory. It backs the "memory"
// database driver and the service tests. WithinTx serializes transactions
// and restores a snapshot when fn fails.
type MemoryStore struct {
	mu   *sync.Mutex
	data *memoryData
	inTx bool
}

type memoryData struct {
	users   map[uuid.UUID]models.User
	seq     map[uuid.UUID]int64
	tokens  map[string]models.AuthToken
	outbox  []models.OutboxEvent
	nextSeq int64
	nextID  int64
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mu: &sync.Mutex{},
		data: &memoryData{
			users:  make(map[uuid.UUID]models.User),
			seq:    make(map[uuid.UUID]int64),
			tokens: make(map[string]models.AuthToken),
			now:    time.Now,
		},
	}
}

func (d *memoryData) clone() *memoryData {
	cp := &memoryData{
		users:   make(map[uuid.UUID]models.User, len(d.users)),
		seq:     make(map[uuid.UUID]int64, len(d.seq)),
		tokens:  make(map[string]models.AuthToken, len(d.tokens)),
		outbox:  make([]models.OutboxEvent, len(d.outbox)),
		nextSeq: d.nextSeq,
		nextID:  d.nextID,
		now:     d.now,
	}
	for k, v := range d.users {
		cp.users[k] = v
	}
	for k, v := range d.seq {
		cp.seq[k] = v
	}
	for k, v := range d.tokens {
		cp.tokens[k] = v
	}
	copy(cp.outbox, d.outbox)
	return cp
}

func (s *MemoryStore) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *MemoryStore) Users() UserRepository {
	return &memoryUsers{s: s}
}

func (s *MemoryStore) AuthTokens() AuthTokenRepository {
	return &memoryTokens{s: s}
}

func (s *MemoryStore) Outbox() OutboxRepository {
	return &memoryOutbox{s: s}
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(ctx, &MemoryStore{mu: s.mu, data: s.data, inTx: true}); err != nil {
		*s.data = *snapshot
		return err
	}
	return nil
}

type memoryUsers struct {
	s *MemoryStore
}

func (r *memoryUsers) emailTaken(email string, except uuid.UUID) bool {
	for id, u := range r.s.data.users {
		if id != except && u.Email == email {
			return true
		}
	}
	return false
}

func (r *memoryUsers) Create(_ context.Context, user *models.User) error {
	defer r.s.lock()()
	d := r.s.data

	if r.emailTaken(user.Email, uuid.Nil) {
		return ErrEmailTaken
	}
	now := d.now()
	user.CreatedAt = now
	user.UpdatedAt = now
	d.users[user.ID] = *user
	d.nextSeq++
	d.seq[user.ID] = d.nextSeq
	return nil
}

func (r *memoryUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	defer r.s.lock()()
	u, ok := r.s.data.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (r *memoryUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	defer r.s.lock()()
	for _, u := range r.s.data.users {
		if u.Email == email {
			found := u
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryUsers) ExistsByEmail(_ context.Context, email string) (bool, error) {
	defer r.s.lock()()
	return r.emailTaken(email, uuid.Nil), nil
}

func (r *memoryUsers) List(_ context.Context, filter models.UserFilter) ([]*models.User, error) {
	defer r.s.lock()()
	d := r.s.data

	needle := strings.ToLower(filter.Email)
	users := make([]*models.User, 0, len(d.users))
	for _, u := range d.users {
		if needle != "" && !strings.Contains(strings.ToLower(u.Email), needle) {
			continue
		}
		cp := u
		users = append(users, &cp)
	}
	sort.Slice(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.After(users[j].CreatedAt)
		}
		return d.seq[users[i].ID] > d.seq[users[j].ID]
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(users) {
			return []*models.User{}, nil
		}
		users = users[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(users) {
		users = users[:filter.Limit]
	}
	return users, nil
}

func (r *memoryUsers) Update(_ context.Context, user *models.User) error {
	defer r.s.lock()()
	d := r.s.data

	stored, ok := d.users[user.ID]
	if !ok {
		return ErrNotFound
	}
	if r.emailTaken(user.Email, user.ID) {
		return ErrEmailTaken
	}
	user.CreatedAt = stored.CreatedAt
	user.UpdatedAt = d.now()
	d.users[user.ID] = *user
	return nil
}

type memoryTokens struct {
	s *MemoryStore
}

func (r *memoryTokens) GetOrCreate(_ context.Context, userID uuid.UUID) (*models.AuthToken, error) {
	defer r.s.lock()()
	d := r.s.data

	for _, t := range d.tokens {
		if t.UserID == userID {
			found := t
			return &found, nil
		}
	}

	key, err := utils.NewOpaqueToken(utils.AuthTokenBytes)
	if err != nil {
		return nil, err
	}
	t := models.AuthToken{Key: key, UserID: userID, CreatedAt: d.now()}
	d.tokens[key] = t
	return &t, nil
}

func (r *memoryTokens) Resolve(_ context.Context, key string) (uuid.UUID, error) {
	defer r.s.lock()()
	t, ok := r.s.data.tokens[key]
	if !ok {
		return uuid.Nil, ErrNotFound
	}
	return t.UserID, nil
}

type memoryOutbox struct {
	s *MemoryStore
}

func (r *memoryOutbox) Save(_ context.Context, event *models.OutboxEvent) error {
	defer r.s.lock()()
	d := r.s.data

	d.nextID++
	event.ID = d.nextID
	event.CreatedAt = d.now()
	d.outbox = append(d.outbox, *event)
	return nil
}

func (r *memoryOutbox) ClaimBatch(_ context.Context, batchSize, maxAttempts int, lease time.Duration) ([]*models.OutboxEvent, error) {
	defer r.s.lock()()
	d := r.s.data
	now := d.now()

	var events []*models.OutboxEvent
	for i := range d.outbox {
		if len(events) == batchSize {
			break
		}
		e := &d.outbox[i]
		if e.PublishedAt != nil || e.Attempts >= maxAttempts {
			continue
		}
		if e.LockedUntil != nil && !e.LockedUntil.Before(now) {
			continue
		}
		until := now.Add(lease)
		e.LockedUntil = &until
		cp := *e
		events = append(events, &cp)
	}
	return events, nil
}

func (r *memoryOutbox) MarkPublished(_ context.Context, id int64) error {
	defer r.s.lock()()
	d := r.s.data
	for i := range d.outbox {
		if d.outbox[i].ID == id {
			now := d.now()
			d.outbox[i].PublishedAt = &now
			d.outbox[i].LastError = nil
			d.outbox[i].LockedUntil = nil
			return nil
		}
	}
	return ErrNotFound
}

func (r *memoryOutbox) MarkFailed(_ context.Context, id int64, reason string) error {
	defer r.s.lock()()
	d := r.s.data
	for i := range d.outbox {
		if d.outbox[i].ID == id {
			d.outbox[i].Attempts++
			d.outbox[i].LastError = &reason
			d.outbox[i].LockedUntil = nil
			return nil
		}
	}
	return ErrNotFound
}

// Events returns a copy of every stored outbox event, oldest first.
func (s *MemoryStore) Events() []models.OutboxEvent {
	defer s.lock()()
	out := make([]models.OutboxEvent, len(s.data.outbox))
	copy(out, s.data.outbox)
	return out
}
