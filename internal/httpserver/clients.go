package httpserver

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"invasivewatch/dashboard/internal/auth"
	"invasivewatch/dashboard/internal/kvstore"
	"invasivewatch/dashboard/internal/notify"
	"invasivewatch/dashboard/internal/reports"
	"invasivewatch/dashboard/internal/verification"
)

const (
	tokenBytes  = 32
	noticeLimit = 50
)

var ErrUnknownClient = errors.New("unknown client")

// Client is one signed-in browser context: its session, its review modal and
// the messages waiting for it.
type Client struct {
	Token    string
	Sessions *auth.SessionStore
	Workflow *verification.Workflow
	Notices  *notify.Recorder

	mu sync.Mutex
	// unsaved holds a session the medium refused to store. It stays valid
	// for this process only.
	unsaved *auth.Session
	nowFunc func() time.Time
}

// Session returns the live session, extending it on activity.
func (c *Client) Session() (auth.Session, error) {
	sess, err := c.Sessions.Touch()
	switch {
	case err == nil:
		c.setUnsaved(nil)
		return sess, nil
	case errors.Is(err, auth.ErrStorageUnavailable):
		c.setUnsaved(&sess)
		return sess, nil
	case errors.Is(err, auth.ErrNoSession):
		return c.unsavedSession()
	default:
		c.setUnsaved(nil)
		return auth.Session{}, err
	}
}

func (c *Client) setUnsaved(sess *auth.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unsaved = sess
}

func (c *Client) unsavedSession() (auth.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unsaved == nil {
		return auth.Session{}, auth.ErrNoSession
	}
	if c.unsaved.Expired(c.nowFunc()) {
		c.unsaved = nil
		return auth.Session{}, auth.ErrSessionExpired
	}
	return *c.unsaved, nil
}

type ClientsConfig struct {
	Medium     kvstore.Store
	Activity   *auth.ActivityLog
	Reports    verification.ReportStore
	Audit      verification.AuditRecorder
	Logger     *slog.Logger
	OnVerified func(reports.Report)
}

// Clients maps bearer tokens to client contexts. Session state lives in the
// shared medium under a namespace derived from the token, so a token issued
// before a restart can be re-attached.
type Clients struct {
	cfg     ClientsConfig
	log     *slog.Logger
	nowFunc func() time.Time

	mu      sync.Mutex
	byToken map[string]*Client
}

func NewClients(cfg ClientsConfig) (*Clients, error) {
	if cfg.Reports == nil {
		return nil, fmt.Errorf("report store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Clients{
		cfg:     cfg,
		log:     logger,
		nowFunc: time.Now,
		byToken: make(map[string]*Client),
	}, nil
}

// Create builds a fresh client context with no session yet. It stays
// invisible to Resolve and Sweep until Register.
func (c *Clients) Create() (*Client, error) {
	token, err := generateToken(tokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generate client token: %w", err)
	}
	return c.build(token)
}

// Register makes client resolvable by its token. Call it once the client
// holds a session.
func (c *Clients) Register(client *Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byToken[client.Token] = client
}

// Resolve finds the client for token. A token unknown to this process is
// re-attached when the medium still holds a live session for it.
func (c *Clients) Resolve(token string) (*Client, error) {
	c.mu.Lock()
	client, ok := c.byToken[token]
	c.mu.Unlock()
	if ok {
		return client, nil
	}
	if len(token) != tokenBytes*2 {
		return nil, ErrUnknownClient
	}
	if _, err := hex.DecodeString(token); err != nil {
		return nil, ErrUnknownClient
	}

	client, err := c.build(token)
	if err != nil {
		return nil, err
	}
	if _, err := client.Sessions.Restore(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.byToken[token]; ok {
		return existing, nil
	}
	c.byToken[token] = client
	c.log.Info("client re-attached from stored session")
	return client, nil
}

func (c *Clients) Remove(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byToken, token)
}

func (c *Clients) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byToken)
}

// Sweep runs the periodic expiry check on every client. Clients whose session
// expired get a notice, lose any open review and are dropped. Clients left
// without any session are dropped silently.
func (c *Clients) Sweep() int {
	c.mu.Lock()
	clients := make([]*Client, 0, len(c.byToken))
	for _, cl := range c.byToken {
		clients = append(clients, cl)
	}
	c.mu.Unlock()

	expired := 0
	for _, cl := range clients {
		err := cl.Sessions.Check()
		if errors.Is(err, auth.ErrNoSession) {
			_, err = cl.unsavedSession()
		}
		switch {
		case err == nil:
			continue
		case errors.Is(err, auth.ErrSessionExpired):
			expired++
			if cerr := cl.Workflow.Cancel(); cerr != nil {
				c.log.Warn("cancel review on expiry", "error", cerr)
			}
			cl.Notices.NotifyError("Your session has expired. Please sign in again.")
		}
		c.Remove(cl.Token)
	}
	if expired > 0 {
		c.log.Info("expired sessions swept", "count", expired)
	}
	return expired
}

func (c *Clients) build(token string) (*Client, error) {
	notices := notify.NewRecorder(noticeLimit)
	wf, err := verification.New(verification.Config{
		Reports:    c.cfg.Reports,
		Notifier:   notify.Fanout{notices, notify.NewLogSink(c.log)},
		Audit:      c.cfg.Audit,
		Logger:     c.log,
		OnVerified: c.cfg.OnVerified,
	})
	if err != nil {
		return nil, fmt.Errorf("create verification workflow: %w", err)
	}
	return &Client{
		Token: token,
		Sessions: auth.NewSessionStore(c.cfg.Medium, auth.SessionStoreConfig{
			Namespace: namespaceFor(token),
			Activity:  c.cfg.Activity,
			Logger:    c.log,
		}),
		Workflow: wf,
		Notices:  notices,
		nowFunc:  c.nowFunc,
	}, nil
}

// namespaceFor keeps raw tokens out of the medium.
func namespaceFor(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "client:" + hex.EncodeToString(sum[:16])
}

func generateToken(n int) (string, error) {
	if n < 16 {
		return "", fmt.Errorf("token length too short")
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
