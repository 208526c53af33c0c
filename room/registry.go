/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package room

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	CodeLength   = 6
	CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// Registry maps room codes to running rooms.
type Registry struct {
	mu          sync.RWMutex
	rooms       map[string]*Room
	opts        Options
	idleTimeout time.Duration
}

func NewRegistry(opts Options, idleTimeout time.Duration) *Registry {
	return &Registry{
		rooms:       make(map[string]*Room),
		opts:        opts.withDefaults(),
		idleTimeout: idleTimeout,
	}
}

// newCode draws codes from crypto/rand until one is free. Callers must
// hold the write lock.
func (g *Registry) newCode() (string, error) {
	buf := make([]byte, CodeLength)

	for range 64 {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}

		out := make([]byte, CodeLength)
		for i := range out {
			out[i] = CodeAlphabet[int(buf[i])%len(CodeAlphabet)]
		}

		code := string(out)
		if _, exists := g.rooms[code]; !exists {
			return code, nil
		}
	}

	return "", fmt.Errorf("no free room code after 64 attempts")
}

// Create starts a room. Zero fields in settings take their defaults.
func (g *Registry) Create(settings Settings) (*Room, error) {
	def := DefaultSettings()
	if settings.RoundSeconds == 0 {
		settings.RoundSeconds = def.RoundSeconds
	}
	if settings.TargetScore == 0 {
		settings.TargetScore = def.TargetScore
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	code, err := g.newCode()
	if err != nil {
		return nil, wrap(ErrInternal, err)
	}

	r := New(code, settings, g.opts)
	g.rooms[code] = r

	g.opts.Logf("ROOMS: Created room %s (%ds rounds, target %d)", code, settings.RoundSeconds, settings.TargetScore)

	return r, nil
}

// Get looks a room up by code, ignoring case and surrounding spaces.
func (g *Registry) Get(code string) (*Room, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	g.mu.RLock()
	r, ok := g.rooms[code]
	g.mu.RUnlock()

	if !ok {
		return nil, ErrRoomNotFound
	}

	return r, nil
}

func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.rooms)
}

// Sweep closes rooms that have nobody connected and have been idle for
// longer than the idle timeout. It returns the removed codes.
func (g *Registry) Sweep() []string {
	cutoff := g.opts.Clock.Now().Add(-g.idleTimeout)

	var stale []*Room

	g.mu.Lock()
	for code, r := range g.rooms {
		if r.ConnectedCount() == 0 && !r.LastActivity().After(cutoff) {
			delete(g.rooms, code)
			stale = append(stale, r)
		}
	}
	g.mu.Unlock()

	codes := make([]string, 0, len(stale))
	for _, r := range stale {
		r.Close()
		codes = append(codes, r.Code())

		g.opts.Logf("ROOMS: Removed idle room %s", r.Code())
	}

	return codes
}

// Run sweeps every interval until ctx is done.
func (g *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := g.opts.Clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.Sweep()
		}
	}
}

// Close stops every room.
func (g *Registry) Close() {
	g.mu.Lock()
	rooms := g.rooms
	g.rooms = make(map[string]*Room)
	g.mu.Unlock()

	for _, r := range rooms {
		r.Close()
	}
}
