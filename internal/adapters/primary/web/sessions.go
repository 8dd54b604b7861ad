package web

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jupiterclapton/captionfeed/internal/core/services"
)

const sessionCookie = "feed_session"

// FeedFactory construit une nouvelle instance de la page liste.
type FeedFactory func() *services.FeedController

type session struct {
	ctrl     *services.FeedController
	lastSeen time.Time
	// carry : le prochain GET affiche la page telle quelle (après une redirection)
	carry bool
}

// Sessions associe chaque navigateur à sa propre instance de page liste,
// comme un onglet resté ouvert. Une instance n'est créée qu'à la première action
// du formulaire : un simple GET n'en alloue pas.
type Sessions struct {
	mu      sync.Mutex
	items   map[string]*session
	ttl     time.Duration
	newFeed FeedFactory
	now     func() time.Time
}

func NewSessions(ttl time.Duration, newFeed FeedFactory) *Sessions {
	return &Sessions{
		items:   make(map[string]*session),
		ttl:     ttl,
		newFeed: newFeed,
		now:     time.Now,
	}
}

// Feed renvoie l'instance du navigateur, ou en crée une (et pose le cookie).
func (s *Sessions) Feed(w http.ResponseWriter, r *http.Request) *session {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if sess := s.lookupLocked(r, now); sess != nil {
		return sess
	}

	id := uuid.NewString()
	sess := &session{ctrl: s.newFeed(), lastSeen: now}
	s.items[id] = sess

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	slog.Debug("New feed page instance", "session", id)
	return sess
}

// Open sert un chargement de page : instance existante sans en créer.
// carried indique que la page suit une redirection et doit être rendue telle quelle.
func (s *Sessions) Open(r *http.Request) (ctrl *services.FeedController, carried bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.lookupLocked(r, s.now())
	if sess == nil {
		return nil, false, false
	}
	carried = sess.carry
	sess.carry = false
	return sess.ctrl, carried, true
}

// Carry marque la session pour le GET qui suit une redirection.
func (s *Sessions) Carry(sess *session) {
	s.mu.Lock()
	sess.carry = true
	s.mu.Unlock()
}

// NewTransient construit une instance jetable pour un visiteur sans session.
func (s *Sessions) NewTransient() *services.FeedController {
	return s.newFeed()
}

func (s *Sessions) lookupLocked(r *http.Request, now time.Time) *session {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil
	}
	sess, ok := s.items[c.Value]
	if !ok {
		return nil
	}
	sess.lastSeen = now
	return sess
}

// Sweep ferme les instances inactives depuis plus de ttl.
func (s *Sessions) Sweep(ctx context.Context) int {
	now := s.now()

	s.mu.Lock()
	var expired []*services.FeedController
	for id, sess := range s.items {
		if now.Sub(sess.lastSeen) >= s.ttl {
			expired = append(expired, sess.ctrl)
			delete(s.items, id)
		}
	}
	s.mu.Unlock()

	// Close relâche les aperçus : hors verrou
	for _, ctrl := range expired {
		ctrl.Close(ctx)
	}
	if len(expired) > 0 {
		slog.Info("🧹 Expired feed sessions", "count", len(expired))
	}
	return len(expired)
}

// Run balaie périodiquement jusqu'à l'annulation du contexte, puis ferme tout.
func (s *Sessions) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.CloseAll(context.Background())
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

func (s *Sessions) CloseAll(ctx context.Context) {
	s.mu.Lock()
	all := s.items
	s.items = make(map[string]*session)
	s.mu.Unlock()

	for _, sess := range all {
		sess.ctrl.Close(ctx)
	}
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
