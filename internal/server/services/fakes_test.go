package services

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/mail"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/providers"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/verifications"
)

// memDB is an in-memory stand-in for the users and email_verifications
// tables, including their unique indexes.
type memDB struct {
	mu     sync.Mutex
	txMu   sync.Mutex
	seq    int
	users  map[string]models.User
	verifs map[string]models.VerificationRecord
	fail   map[string]error
	calls  map[string]int
}

func newMemDB() *memDB {
	return &memDB{
		users:  map[string]models.User{},
		verifs: map[string]models.VerificationRecord{},
		fail:   map[string]error{},
		calls:  map[string]int{},
	}
}

func (m *memDB) hit(op string) error {
	m.calls[op]++
	return m.fail[op]
}

func (m *memDB) nextID() string {
	m.seq++
	return strconv.Itoa(m.seq)
}

func (m *memDB) snapshot() (map[string]models.User, map[string]models.VerificationRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := make(map[string]models.User, len(m.users))
	for k, v := range m.users {
		u[k] = v
	}
	v := make(map[string]models.VerificationRecord, len(m.verifs))
	for k, r := range m.verifs {
		v[k] = r
	}
	return u, v
}

func (m *memDB) restore(u map[string]models.User, v map[string]models.VerificationRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users, m.verifs = u, v
}

func (m *memDB) userCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

func (m *memDB) userByUsername(t *testing.T, username string) models.User {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if models.Deref(u.Username) == username {
			return u
		}
	}
	t.Fatalf("user %q not stored", username)
	return models.User{}
}

func (m *memDB) userByEmail(t *testing.T, email string) models.User {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if models.Deref(u.Email) == email {
			return u
		}
	}
	t.Fatalf("user with email %q not stored", email)
	return models.User{}
}

func (m *memDB) put(u models.User) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == "" {
		u.ID = m.nextID()
	}
	m.users[u.ID] = u
	return &u
}

func (m *memDB) verifsFor(email string) []models.VerificationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.VerificationRecord
	for _, v := range m.verifs {
		if v.Email == email {
			out = append(out, v)
		}
	}
	return out
}

// memStore runs transactions one at a time and rolls the tables back when
// fn fails.
type memStore struct {
	db *memDB
}

func (s *memStore) Conn() dbx.DBTX { return nil }

func (s *memStore) InTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	s.db.txMu.Lock()
	defer s.db.txMu.Unlock()

	u, v := s.db.snapshot()
	if err := fn(ctx, nil); err != nil {
		s.db.restore(u, v)
		return err
	}
	return nil
}

type memManager struct {
	db *memDB
}

var _ repomanager.RepositoryManager = (*memManager)(nil)

func (m *memManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *memManager) Users(dbx.DBTX) users.Repository { return &memUsers{m.db} }

func (m *memManager) Verifications(dbx.DBTX) verifications.Repository { return &memVerifs{m.db} }

type memUsers struct {
	db *memDB
}

func clash(a, b *string) bool {
	return a != nil && b != nil && *a == *b
}

func (r *memUsers) checkUnique(u models.User) error {
	for id, o := range r.db.users {
		if id == u.ID {
			continue
		}
		switch {
		case clash(u.Email, o.Email):
			return fmt.Errorf("%w: users_email_key", common.ErrDuplicateIdentity)
		case clash(u.Username, o.Username):
			return fmt.Errorf("%w: users_username_key", common.ErrDuplicateIdentity)
		case clash(u.Nickname, o.Nickname):
			return fmt.Errorf("%w: users_nickname_key", common.ErrDuplicateIdentity)
		case u.Provider != models.ProviderLocal && u.Provider == o.Provider && clash(u.ProviderID, o.ProviderID):
			return fmt.Errorf("%w: users_provider_key", common.ErrDuplicateIdentity)
		}
	}
	return nil
}

func (r *memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.hit("users.Create"); err != nil {
		return nil, err
	}
	if err := r.checkUnique(*u); err != nil {
		return nil, err
	}
	u.ID = r.db.nextID()
	u.CreatedAt = time.Unix(0, 0).UTC()
	u.UpdatedAt = u.CreatedAt
	r.db.users[u.ID] = *u
	out := *u
	return &out, nil
}

func (r *memUsers) Update(_ context.Context, u *models.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.hit("users.Update"); err != nil {
		return err
	}
	if _, ok := r.db.users[u.ID]; !ok {
		return common.ErrorNotFound
	}
	if err := r.checkUnique(*u); err != nil {
		return err
	}
	r.db.users[u.ID] = *u
	return nil
}

func (r *memUsers) find(op string, match func(models.User) bool) (*models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.hit(op); err != nil {
		return nil, err
	}
	for _, u := range r.db.users {
		if match(u) {
			out := u
			return &out, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	return r.find("users.FindByID", func(u models.User) bool { return u.ID == id })
}

func (r *memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	return r.find("users.FindByEmail", func(u models.User) bool { return models.Deref(u.Email) == email })
}

func (r *memUsers) FindByUsername(_ context.Context, username string) (*models.User, error) {
	return r.find("users.FindByUsername", func(u models.User) bool { return models.Deref(u.Username) == username })
}

func (r *memUsers) FindByNickname(_ context.Context, nickname string) (*models.User, error) {
	return r.find("users.FindByNickname", func(u models.User) bool { return models.Deref(u.Nickname) == nickname })
}

func (r *memUsers) FindByProviderAndProviderID(_ context.Context, p models.AuthProvider, id string) (*models.User, error) {
	return r.find("users.FindByProvider", func(u models.User) bool {
		return u.Provider == p && models.Deref(u.ProviderID) == id
	})
}

func (r *memUsers) exists(op string, match func(models.User) bool) (bool, error) {
	_, err := r.find(op, match)
	if err == common.ErrorNotFound {
		return false, nil
	}
	return err == nil, err
}

func (r *memUsers) ExistsByEmail(_ context.Context, email string) (bool, error) {
	return r.exists("users.ExistsByEmail", func(u models.User) bool { return models.Deref(u.Email) == email })
}

func (r *memUsers) ExistsByUsername(_ context.Context, username string) (bool, error) {
	return r.exists("users.ExistsByUsername", func(u models.User) bool { return models.Deref(u.Username) == username })
}

func (r *memUsers) ExistsByNickname(_ context.Context, nickname string) (bool, error) {
	return r.exists("users.ExistsByNickname", func(u models.User) bool { return models.Deref(u.Nickname) == nickname })
}

func (r *memUsers) ListWithoutNickname(context.Context) ([]*models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.hit("users.ListWithoutNickname"); err != nil {
		return nil, err
	}
	var out []*models.User
	for _, u := range r.db.users {
		if u.Nickname == nil {
			c := u
			out = append(out, &c)
		}
	}
	return out, nil
}

type memVerifs struct {
	db *memDB
}

func (r *memVerifs) LockEmail(context.Context, string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.db.hit("verifs.LockEmail")
}

func (r *memVerifs) Create(_ context.Context, rec *models.VerificationRecord) (*models.VerificationRecord, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.hit("verifs.Create"); err != nil {
		return nil, err
	}
	for _, v := range r.db.verifs {
		if v.Token == rec.Token {
			return nil, fmt.Errorf("%w: email_verifications_token_key", common.ErrDuplicateIdentity)
		}
	}
	rec.ID = r.db.nextID()
	r.db.verifs[rec.ID] = *rec
	out := *rec
	return &out, nil
}

func (r *memVerifs) find(op string, match func(models.VerificationRecord) bool) (*models.VerificationRecord, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.hit(op); err != nil {
		return nil, err
	}
	for _, v := range r.db.verifs {
		if match(v) {
			out := v
			return &out, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memVerifs) FindByToken(_ context.Context, token string) (*models.VerificationRecord, error) {
	return r.find("verifs.FindByToken", func(v models.VerificationRecord) bool { return v.Token == token })
}

func unusedCode(email, code string) func(models.VerificationRecord) bool {
	return func(v models.VerificationRecord) bool {
		return v.Email == email && !v.Used && models.Deref(v.Code) == code && v.Code != nil
	}
}

func (r *memVerifs) FindByEmailAndCodeUnused(_ context.Context, email, code string) (*models.VerificationRecord, error) {
	return r.find("verifs.FindByEmailAndCodeUnused", unusedCode(email, code))
}

func (r *memVerifs) LockByEmailAndCodeUnused(_ context.Context, email, code string) (*models.VerificationRecord, error) {
	return r.find("verifs.LockByEmailAndCodeUnused", unusedCode(email, code))
}

func (r *memVerifs) MarkVerified(_ context.Context, id string, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.hit("verifs.MarkVerified"); err != nil {
		return err
	}
	v, ok := r.db.verifs[id]
	if !ok {
		return common.ErrorNotFound
	}
	if v.VerifiedAt == nil {
		v.VerifiedAt = &at
	}
	r.db.verifs[id] = v
	return nil
}

func (r *memVerifs) MarkUsed(_ context.Context, id string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.hit("verifs.MarkUsed"); err != nil {
		return false, err
	}
	v, ok := r.db.verifs[id]
	if !ok || v.Used {
		return false, nil
	}
	v.Used = true
	r.db.verifs[id] = v
	return true, nil
}

func (r *memVerifs) MarkUsedInSavepoint(ctx context.Context, id string) (bool, error) {
	return r.MarkUsed(ctx, id)
}

func (r *memVerifs) DeleteUnusedByEmail(_ context.Context, email string) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.hit("verifs.DeleteUnusedByEmail"); err != nil {
		return 0, err
	}
	var n int64
	for id, v := range r.db.verifs {
		if v.Email == email && !v.Used {
			delete(r.db.verifs, id)
			n++
		}
	}
	return n, nil
}

func (r *memVerifs) DeleteExpiredBefore(_ context.Context, now time.Time) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.hit("verifs.DeleteExpiredBefore"); err != nil {
		return 0, err
	}
	var n int64
	for id, v := range r.db.verifs {
		if v.ExpiresAt.Before(now) {
			delete(r.db.verifs, id)
			n++
		}
	}
	return n, nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (f *fakeMailer) Enqueue(_ context.Context, msg mail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeMailer) last(t *testing.T) mail.Message {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatalf("no mail sent")
	}
	return f.sent[len(f.sent)-1]
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// env wires every service against one memDB.
type env struct {
	db         *memDB
	clock      *testClock
	mailer     *fakeMailer
	cfg        *config.Config
	tokens     *auth.TokenService
	hasher     *cryptox.PasswordHasher
	verify     *VerificationService
	users      *UserService
	federation *FederationService
	oauth      *fakeOAuth
}

func newEnv(t *testing.T, tweak ...func(*config.Config)) *env {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = "test-secret"
	cfg.BaseURL = "https://auth.example/"
	for _, f := range tweak {
		f(cfg)
	}

	e := &env{
		db:     newMemDB(),
		clock:  &testClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
		mailer: &fakeMailer{},
		cfg:    cfg,
		oauth:  &fakeOAuth{},
	}

	var err error
	e.tokens, err = auth.NewTokenService(cfg.SecretKey, cfg.AccessTokenValidityDuration,
		cfg.RefreshTokenValidityDuration, e.clock.Now)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	e.hasher, err = cryptox.NewPasswordHasher(cryptox.Params{
		Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	})
	if err != nil {
		t.Fatalf("NewPasswordHasher: %v", err)
	}

	store := &memStore{db: e.db}
	rm := &memManager{db: e.db}
	log := logging.Nop{}

	e.verify = NewVerificationService(store, rm, e.mailer, log, cfg, e.clock.Now)
	e.users = NewUserService(store, rm, e.tokens, e.hasher, e.verify, log, cfg, e.clock.Now)
	e.federation = NewFederationService(store, rm, e.tokens, e.oauth, log, e.clock.Now)
	return e
}

// confirmedCode requests and confirms a code for email.
func (e *env) confirmedCode(t *testing.T, email string) string {
	t.Helper()
	ctx := context.Background()
	code, err := e.verify.RequestCode(ctx, email)
	if err != nil {
		t.Fatalf("RequestCode: %v", err)
	}
	if err := e.verify.ConfirmCode(ctx, email, code); err != nil {
		t.Fatalf("ConfirmCode: %v", err)
	}
	return code
}

type fakeOAuth struct {
	attrs    map[string]any
	err      error
	gotCode  string
	gotState string
}

func (f *fakeOAuth) AuthURL(provider, state string) (string, error) {
	if _, err := providers.Lookup(provider); err != nil {
		return "", err
	}
	f.gotState = state
	return "https://idp.example/auth?state=" + state, nil
}

func (f *fakeOAuth) Exchange(_ context.Context, provider, code string) (map[string]any, error) {
	f.gotCode = code
	if f.err != nil {
		return nil, f.err
	}
	return f.attrs, nil
}
