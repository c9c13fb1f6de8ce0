package usecase

import (
	"cmp"
	"context"
	"regexp"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shandysiswandi/konkurs/internal/identity/entity"
	"github.com/shandysiswandi/konkurs/internal/pkg/config"
	"github.com/shandysiswandi/konkurs/internal/pkg/goerror"
	"github.com/shandysiswandi/konkurs/internal/pkg/hash"
	"github.com/shandysiswandi/konkurs/internal/pkg/instrument"
	"github.com/shandysiswandi/konkurs/internal/pkg/jwt"
	"github.com/shandysiswandi/konkurs/internal/pkg/lock"
	"github.com/shandysiswandi/konkurs/internal/pkg/otp"
	"github.com/shandysiswandi/konkurs/internal/pkg/revocation"
	"github.com/shandysiswandi/konkurs/internal/pkg/uid"
	"github.com/shandysiswandi/konkurs/internal/pkg/validator"
	"github.com/stretchr/testify/require"
)

const testPhone = "+998901234567"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type seqID struct{ n atomic.Int64 }

func (s *seqID) Generate() int64 { return s.n.Add(1) }

type sentMessage struct {
	destination string
	message     string
	hasDeadline bool
	deadline    time.Time
}

var reCode = regexp.MustCompile(`\b\d{5}\b`)

type fakeDispatcher struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, destination, message string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	deadline, ok := ctx.Deadline()
	d.sent = append(d.sent, sentMessage{destination: destination, message: message, hasDeadline: ok, deadline: deadline})
	return d.err
}

func (d *fakeDispatcher) lastCode(t *testing.T) string {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()

	require.NotEmpty(t, d.sent, "nothing dispatched")
	code := reCode.FindString(d.sent[len(d.sent)-1].message)
	require.NotEmpty(t, code)
	return code
}

func (d *fakeDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

type fakeMessaging struct {
	mu        sync.Mutex
	activated []UserActivatedEvent
	changed   []PasswordChangedEvent
}

func (m *fakeMessaging) PublishUserActivated(_ context.Context, msg UserActivatedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activated = append(m.activated, msg)
	return nil
}

func (m *fakeMessaging) PublishPasswordChanged(_ context.Context, msg PasswordChangedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changed = append(m.changed, msg)
	return nil
}

type lockerFunc func(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error

func (f lockerFunc) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	return f(ctx, key, ttl, fn)
}

// fakeRepo keeps the same guarantees as the SQL repository: conditional
// updates report goerror.ErrNotFound when the row is no longer active.
type fakeRepo struct {
	mu        sync.Mutex
	users     map[int64]*entity.User
	otps      []*entity.OTPRecord
	refresh   map[int64]*entity.RefreshToken
	blacklist map[string]entity.BlacklistEntry
	inserts   int
	// afterKeyRead runs after every key lookup, outside the lock.
	afterKeyRead func()
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:     map[int64]*entity.User{},
		refresh:   map[int64]*entity.RefreshToken{},
		blacklist: map[string]entity.BlacklistEntry{},
	}
}

func clone[T any](v *T) *T {
	c := *v
	return &c
}

func (r *fakeRepo) GetUserByPhone(_ context.Context, phone string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.PhoneNumber == phone {
			return clone(u), nil
		}
	}
	return nil, goerror.ErrNotFound
}

func (r *fakeRepo) GetUserByID(_ context.Context, id int64) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, goerror.ErrNotFound
	}
	return clone(u), nil
}

func (r *fakeRepo) CreateUser(_ context.Context, user entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.PhoneNumber == user.PhoneNumber {
			return goerror.ErrConflict
		}
	}
	r.users[user.ID] = &user
	return nil
}

func (r *fakeRepo) UpdateUserRole(_ context.Context, id int64, role entity.Role, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return goerror.ErrNotFound
	}
	u.Role = role
	u.UpdatedAt = at
	return nil
}

func (r *fakeRepo) ChangePassword(_ context.Context, userID int64, hash string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return goerror.ErrNotFound
	}
	u.PasswordHash = hash
	r.revokeAllLocked(userID, at)
	return nil
}

func (r *fakeRepo) activeLocked(subject string, purpose entity.OTPPurpose) []*entity.OTPRecord {
	var out []*entity.OTPRecord
	for _, o := range r.otps {
		if o.SubjectRef == subject && o.Purpose == purpose && o.IsActive() {
			out = append(out, o)
		}
	}
	slices.SortStableFunc(out, func(a, b *entity.OTPRecord) int {
		return cmp.Compare(b.CreatedAt.UnixNano(), a.CreatedAt.UnixNano())
	})
	return out
}

func (r *fakeRepo) CreateOTP(_ context.Context, rec entity.OTPRecord, decide func([]entity.OTPRecord) entity.Decision) (entity.Decision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	active := r.activeLocked(rec.SubjectRef, rec.Purpose)
	view := make([]entity.OTPRecord, 0, len(active))
	for _, a := range active {
		view = append(view, *a)
	}

	d := decide(view)
	switch d {
	case entity.DecisionMustRotate:
		for _, a := range active {
			a.State = entity.OTPInvalidated{At: rec.CreatedAt}
		}
		fallthrough
	case entity.DecisionAllow:
		r.otps = append(r.otps, &rec)
		r.inserts++
	}
	return d, nil
}

func (r *fakeRepo) GetActiveOTPByKey(_ context.Context, keyHash string, purpose entity.OTPPurpose) (*entity.OTPRecord, error) {
	rec, err := r.activeOTPByKey(keyHash, purpose)
	if r.afterKeyRead != nil {
		r.afterKeyRead()
	}
	return rec, err
}

func (r *fakeRepo) activeOTPByKey(keyHash string, purpose entity.OTPPurpose) (*entity.OTPRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.otps {
		if o.OpaqueKeyHash == keyHash && o.Purpose == purpose && o.IsActive() {
			return clone(o), nil
		}
	}
	return nil, goerror.ErrNotFound
}

func (r *fakeRepo) GetActiveOTPByConfirmToken(_ context.Context, tokenHash string) (*entity.OTPRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.otps {
		if o.ConfirmTokenHash == tokenHash && o.Purpose == entity.OTPPurposePasswordResetConfirm && o.IsActive() {
			return clone(o), nil
		}
	}
	return nil, goerror.ErrNotFound
}

func (r *fakeRepo) findActiveLocked(id int64) *entity.OTPRecord {
	for _, o := range r.otps {
		if o.ID == id && o.IsActive() {
			return o
		}
	}
	return nil
}

func (r *fakeRepo) ReserveOTPAttempt(_ context.Context, id int64, maxAttempts int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.findActiveLocked(id)
	if o == nil || o.Attempts >= maxAttempts {
		return 0, goerror.ErrNotFound
	}
	o.Attempts++
	return o.Attempts, nil
}

func (r *fakeRepo) InvalidateOTP(_ context.Context, id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.findActiveLocked(id)
	if o == nil {
		return goerror.ErrNotFound
	}
	o.State = entity.OTPInvalidated{At: at}
	return nil
}

func (r *fakeRepo) consumeLocked(rec entity.OTPRecord, at time.Time) error {
	if r.findActiveLocked(rec.ID) == nil {
		return goerror.ErrNotFound
	}
	for _, o := range r.activeLocked(rec.SubjectRef, rec.Purpose) {
		o.State = entity.OTPInvalidated{At: at}
	}
	return nil
}

func (r *fakeRepo) ActivateUserByOTP(_ context.Context, rec entity.OTPRecord, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.consumeLocked(rec, at); err != nil {
		return err
	}
	if u, ok := r.users[rec.UserID]; ok {
		u.IsActive = true
		u.UpdatedAt = at
	}
	return nil
}

func (r *fakeRepo) ExchangeOTPForConfirm(_ context.Context, rec, confirm entity.OTPRecord, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.consumeLocked(rec, at); err != nil {
		return err
	}
	for _, o := range r.activeLocked(rec.SubjectRef, entity.OTPPurposePasswordResetConfirm) {
		o.State = entity.OTPInvalidated{At: at}
	}
	r.otps = append(r.otps, &confirm)
	return nil
}

func (r *fakeRepo) ResetPasswordByConfirm(_ context.Context, rec entity.OTPRecord, hash string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.findActiveLocked(rec.ID)
	if o == nil {
		return goerror.ErrNotFound
	}
	o.State = entity.OTPInvalidated{At: at}
	if u, ok := r.users[rec.UserID]; ok {
		u.PasswordHash = hash
	}
	r.revokeAllLocked(rec.UserID, at)
	return nil
}

func (r *fakeRepo) SweepOTPs(_ context.Context, createdBefore, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, o := range r.otps {
		if o.IsActive() && o.CreatedAt.Before(createdBefore) {
			o.State = entity.OTPInvalidated{At: at}
			n++
		}
	}
	return n, nil
}

func (r *fakeRepo) PruneBlacklist(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, e := range r.blacklist {
		if !e.ExpiresAt.After(now) {
			delete(r.blacklist, k)
			n++
		}
	}
	return n, nil
}

func (r *fakeRepo) CreateRefreshToken(_ context.Context, rt entity.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refresh[rt.ID] = &rt
	return nil
}

func (r *fakeRepo) GetRefreshToken(_ context.Context, tokenHash string) (*entity.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rt := range r.refresh {
		if rt.TokenHash == tokenHash {
			return clone(rt), nil
		}
	}
	return nil, goerror.ErrNotFound
}

func (r *fakeRepo) RotateRefreshToken(_ context.Context, oldID int64, next entity.RefreshToken, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.refresh[oldID]
	if !ok || old.RevokedAt != nil {
		return goerror.ErrNotFound
	}
	old.RevokedAt = &at
	old.ReplacedBy = &next.ID
	r.refresh[next.ID] = &next
	return nil
}

func (r *fakeRepo) revokeAllLocked(userID int64, at time.Time) {
	for _, rt := range r.refresh {
		if rt.UserID == userID && rt.RevokedAt == nil {
			rt.RevokedAt = &at
		}
	}
}

func (r *fakeRepo) RevokeAllRefreshTokens(_ context.Context, userID int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revokeAllLocked(userID, at)
	return nil
}

func (r *fakeRepo) RevokeSession(_ context.Context, refreshID int64, entry entity.BlacklistEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rt, ok := r.refresh[refreshID]; ok && rt.RevokedAt == nil {
		at := entry.BlacklistedAt
		rt.RevokedAt = &at
	}
	if _, ok := r.blacklist[entry.TokenDigest]; !ok {
		r.blacklist[entry.TokenDigest] = entry
	}
	return nil
}

// Lookup lets the fake back a real revocation.Checker.
func (r *fakeRepo) Lookup(_ context.Context, digest string) (time.Time, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.blacklist[digest]
	return e.ExpiresAt, ok, nil
}

func (r *fakeRepo) active(subject string, purpose entity.OTPPurpose) []entity.OTPRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.OTPRecord
	for _, o := range r.activeLocked(subject, purpose) {
		out = append(out, *o)
	}
	return out
}

func (r *fakeRepo) otpByID(id int64) entity.OTPRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.otps {
		if o.ID == id {
			return *o
		}
	}
	return entity.OTPRecord{}
}

type testEnv struct {
	uc    *Usecase
	repo  *fakeRepo
	disp  *fakeDispatcher
	mq    *fakeMessaging
	clock *fakeClock
	hmac  *hash.HMACSHA256
	jwt   *jwt.Symmetric
	revk  *revocation.Checker
}

func newTestEnv(t *testing.T, opts ...func(*Dependency)) *testEnv {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte("app:\n  name: konkurs-test\n"))
	require.NoError(t, err)

	v, err := validator.NewV10Validator()
	require.NoError(t, err)

	clk := &fakeClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	hm := hash.NewHMACSHA256("test-hmac-secret")

	tokens, err := jwt.NewHS512(jwt.Config{
		Secret:    []byte("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"),
		Issuer:    "konkurs-test",
		Audiences: []string{"konkurs"},
		TTL:       15 * time.Minute,
		Clock:     clk,
		UUID:      uid.NewUUID(),
	})
	require.NoError(t, err)

	env := &testEnv{
		repo:  newFakeRepo(),
		disp:  &fakeDispatcher{},
		mq:    &fakeMessaging{},
		clock: clk,
		hmac:  hm,
		jwt:   tokens,
	}
	env.revk = revocation.New(revocation.Config{Store: env.repo, Hasher: hm, Clock: clk})

	dep := Dependency{
		RepoDB:        env.repo,
		RepoMessaging: env.mq,
		Dispatcher:    env.disp,
		Revoker:       env.revk,
		Locker:        lock.Noop{},
		Validator:     v,
		Config:        cfg,
		HMAC:          hm,
		Bcrypt:        hash.NewBcrypt(4, ""),
		UID:           &seqID{},
		Opaque:        uid.NewOpaque(),
		Code:          otp.NewNumeric(5),
		Clock:         clk,
		JWT:           tokens,
		Instrument:    instrument.NewNoop(),
	}
	for _, opt := range opts {
		opt(&dep)
	}

	env.uc = New(dep)
	return env
}

func (e *testEnv) seedUser(t *testing.T, id int64, phone, password string, active bool, role entity.Role) entity.User {
	t.Helper()

	hashed, err := hash.NewBcrypt(4, "").Hash(password)
	require.NoError(t, err)

	u := entity.User{
		ID:           id,
		PhoneNumber:  phone,
		FirstName:    "Ali",
		LastName:     "Valiyev",
		PasswordHash: string(hashed),
		Role:         role,
		IsActive:     active,
		CreatedAt:    e.clock.Now(),
		UpdatedAt:    e.clock.Now(),
	}
	require.NoError(t, e.repo.CreateUser(context.Background(), u))
	return u
}

func (e *testEnv) issue(t *testing.T, userID int64, purpose entity.OTPPurpose) *IssueResult {
	t.Helper()

	res, err := e.uc.Issue(context.Background(), IssueRequest{SubjectRef: testPhone, UserID: userID, Purpose: purpose})
	require.NoError(t, err)
	return res
}

func requireKind(t *testing.T, err error, kind goerror.Kind, status int) {
	t.Helper()

	require.Error(t, err)
	var ge *goerror.Error
	require.ErrorAs(t, err, &ge)
	require.Equal(t, kind, ge.Kind(), ge.Msg())
	require.Equal(t, status, ge.StatusCode())
}
