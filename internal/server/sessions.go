package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"calllog_viewer/internal/controller"
	"calllog_viewer/internal/logger"
	"calllog_viewer/internal/metrics"
)

const sessionCookie = "calllog_session"

// sessionStore keeps one page controller per browser session. Evicted or
// expired controllers are closed, which releases their recordings.
type sessionStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	lru    *expirable.LRU[string, *controller.Controller]
	create func(id string) *controller.Controller
}

func newSessionStore(size int, ttl time.Duration, create func(id string) *controller.Controller) *sessionStore {
	onEvict := func(id string, c *controller.Controller) {
		c.Close()
		metrics.Sessions.Dec()
		logger.Debug("session closed", zap.String("session", id))
	}
	return &sessionStore{
		ttl:    ttl,
		lru:    expirable.NewLRU[string, *controller.Controller](size, onEvict, ttl),
		create: create,
	}
}

// get returns the controller bound to the request's cookie, creating a new
// session when the cookie is missing or stale. Every hit extends the TTL.
func (s *sessionStore) get(w http.ResponseWriter, r *http.Request) *controller.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ck, err := r.Cookie(sessionCookie); err == nil {
		if c, ok := s.lru.Get(ck.Value); ok {
			s.lru.Add(ck.Value, c)
			return c
		}
	}

	id := uuid.NewString()
	c := s.create(id)
	s.lru.Add(id, c)
	metrics.Sessions.Inc()
	logger.Debug("session opened", zap.String("session", id))

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return c
}

func (s *sessionStore) len() int {
	return s.lru.Len()
}

// purge closes every session.
func (s *sessionStore) purge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lru.Purge()
}
