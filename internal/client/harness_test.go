package client

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	pb "github.com/and161185/meal-planner/gen/go/mealplanner/v1"
	pkgcrypto "github.com/and161185/meal-planner/internal/crypto"
	"github.com/and161185/meal-planner/internal/errs"
	"github.com/and161185/meal-planner/internal/model"
	"github.com/and161185/meal-planner/internal/repository"
	grpcserver "github.com/and161185/meal-planner/internal/server/grpc"
	"github.com/and161185/meal-planner/internal/service"
)

type memAccounts struct {
	mu   sync.Mutex
	byID map[uuid.UUID]model.Account
}

var _ repository.AccountRepository = (*memAccounts)(nil)

func (m *memAccounts) Create(_ context.Context, a *model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.byID {
		if x.Email == a.Email {
			return errs.ErrAlreadyExists
		}
	}
	m.byID[a.ID] = *a
	return nil
}

func (m *memAccounts) GetByID(_ context.Context, id uuid.UUID) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &a, nil
}

func (m *memAccounts) GetByEmail(_ context.Context, email string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if a.Email == email {
			return &a, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (m *memAccounts) SetPassword(_ context.Context, id uuid.UUID, hash, salt []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return errs.ErrNotFound
	}
	a.PwdHash, a.PwdSalt, a.ResetTokenHash = hash, salt, nil
	m.byID[id] = a
	return nil
}

func (m *memAccounts) SetResetToken(_ context.Context, id uuid.UUID, h []byte, exp time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return errs.ErrNotFound
	}
	a.ResetTokenHash, a.ResetExpiresAt = h, exp
	m.byID[id] = a
	return nil
}

type memDocs struct {
	mu   sync.Mutex
	rows []model.StoredDocument
}

var _ repository.DocumentRepository = (*memDocs)(nil)

func (m *memDocs) Insert(_ context.Context, d *model.StoredDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, *d)
	return nil
}

func (m *memDocs) find(owner uuid.UUID, coll string, id uuid.UUID) int {
	for i, r := range m.rows {
		if r.OwnerID == owner && r.Collection == coll && r.ID == id.String() {
			return i
		}
	}
	return -1
}

func (m *memDocs) Update(_ context.Context, owner uuid.UUID, coll string, id uuid.UUID, body json.RawMessage, at time.Time) (model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.find(owner, coll, id)
	if i < 0 {
		return model.Document{}, errs.ErrNotFound
	}
	m.rows[i].Body, m.rows[i].Updated = body, at
	return m.rows[i].Document, nil
}

func (m *memDocs) Delete(_ context.Context, owner uuid.UUID, coll string, id uuid.UUID) (model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.find(owner, coll, id)
	if i < 0 {
		return model.Document{}, errs.ErrNotFound
	}
	d := m.rows[i].Document
	m.rows = append(m.rows[:i:i], m.rows[i+1:]...)
	return d, nil
}

func (m *memDocs) List(_ context.Context, owner uuid.UUID, coll string) ([]model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Document{}
	for _, r := range m.rows {
		if r.OwnerID == owner && r.Collection == coll {
			out = append(out, r.Document)
		}
	}
	return out, nil
}

type captureNotifier struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (n *captureNotifier) SendPasswordReset(_ context.Context, email, token string, _ time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tokens[email] = token
	return nil
}

func (n *captureNotifier) token(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.tokens[email]
}

type harness struct {
	cc       *grpc.ClientConn
	accounts *memAccounts
	notifier *captureNotifier
}

// newHarness runs the real services behind the gRPC server on an in-memory
// listener.
func newHarness(t *testing.T) *harness {
	t.Helper()
	log := zaptest.NewLogger(t)
	h := &harness{
		accounts: &memAccounts{byID: map[uuid.UUID]model.Account{}},
		notifier: &captureNotifier{tokens: map[string]string{}},
	}
	auth := service.NewAuthService(h.accounts, nil, h.notifier, service.AuthConfig{
		SignKey: []byte("test-secret"),
		Hash:    pkgcrypto.Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32},
	}, log)
	docs := service.NewDocumentService(&memDocs{}, service.NewHub(), log)

	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcserver.RecoverUnary(log), grpcserver.AuthUnary(auth)),
		grpc.ChainStreamInterceptor(grpcserver.RecoverStream(log), grpcserver.AuthStream(auth)),
	)
	pb.RegisterPlannerServer(gs, grpcserver.New(auth, docs, log))
	go func() { _ = gs.Serve(lis) }()

	dialer := func(context.Context, string) (net.Conn, error) { return lis.Dial() }
	//nolint:staticcheck // DialContext is supported through 1.x; migrate when grpc.NewClient is stable
	cc, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(dialer), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = cc.Close(); gs.Stop(); _ = lis.Close() })
	h.cc = cc
	return h
}

func (h *harness) client(t *testing.T, store *TokenStore) *Client {
	t.Helper()
	return New(h.cc, Options{Store: store, RequestTimeout: 5 * time.Second, Log: zaptest.NewLogger(t)})
}
