package console

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/engagehq/console/internal/platform/timeouts"
	"github.com/engagehq/console/internal/services/console/directory"
	"github.com/engagehq/console/internal/services/console/policy"
	"github.com/engagehq/console/internal/services/console/session"
	consolesqlite "github.com/engagehq/console/internal/services/console/storage/sqlite"
)

// Config defines the inputs for the console process.
type Config struct {
	HTTPAddr      string
	DBPath        string
	SessionSecret string
	SessionTTL    time.Duration
	// Bootstrap seeds the first SuperAdmin when the account table is empty.
	Bootstrap BootstrapConfig
}

// BootstrapConfig describes the initial operator account. It only takes
// effect on an empty database; an existing deployment ignores it.
type BootstrapConfig struct {
	Name     string
	Email    string
	Password string
}

// Server hosts the console: the decision gateway in front of the operator
// pages, backed by a SQLite account directory.
type Server struct {
	httpAddr   string
	httpServer *http.Server
	store      *consolesqlite.Store
}

// NewServer builds a configured console server.
func NewServer(ctx context.Context, cfg Config) (*Server, error) {
	httpAddr := strings.TrimSpace(cfg.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}

	store, err := openStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	codec, err := session.NewCodec([]byte(cfg.SessionSecret), cfg.SessionTTL, nil)
	if err != nil {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close console store: %v", closeErr)
		}
		return nil, fmt.Errorf("session codec: %w", err)
	}

	if err := bootstrap(ctx, store, cfg.Bootstrap); err != nil {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close console store: %v", closeErr)
		}
		return nil, err
	}

	enricher := NewEnricher(store, timeouts.DirectoryLookup)
	gateway := NewGateway(codec, enricher, policy.Default())
	auth := NewAuthenticator(store, store, nil)
	handler := NewHandler(store, auth, codec, gateway)

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	return &Server{
		httpAddr:   httpAddr,
		httpServer: httpServer,
		store:      store,
	}, nil
}

// ListenAndServe runs the HTTP server until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("console server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	serveErr := make(chan error, 1)
	log.Printf("console listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close releases resources held by the server.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close console store: %v", err)
		}
	}
}

func openStore(path string) (*consolesqlite.Store, error) {
	if path == "" {
		path = filepath.Join("data", "console.db")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := consolesqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open console sqlite store: %w", err)
	}
	return store, nil
}

// bootstrap seeds the first SuperAdmin so a fresh deployment can sign in.
func bootstrap(ctx context.Context, store *consolesqlite.Store, cfg BootstrapConfig) error {
	email := strings.TrimSpace(cfg.Email)
	if email == "" || cfg.Password == "" {
		return nil
	}
	accounts, err := store.ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap: list accounts: %w", err)
	}
	if len(accounts) > 0 {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("bootstrap: hash password: %w", err)
	}
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = "Operator"
	}
	if err := store.CreateAccount(ctx, directory.Account{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         policy.RoleSuperAdmin,
		Status:       policy.StatusActive,
	}); err != nil {
		return fmt.Errorf("bootstrap: create account: %w", err)
	}
	log.Printf("console bootstrapped initial SuperAdmin %s", strings.ToLower(email))
	return nil
}
