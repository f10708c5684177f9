package notifications

import (
	"context"
	"strconv"
	"sync"
	"time"

	"tutorx/internal/cache"
	"tutorx/internal/middleware"

	"github.com/redis/go-redis/v9"
)

const (
	defaultOfflineGrace = 5 * time.Second
	sweepInterval       = time.Minute
)

type userPresence struct {
	conns   int
	pending *time.Timer
	offline bool
}

// Presence tracks which users hold an open event stream. Local counts decide
// online/offline transitions; Redis, when present, mirrors them across instances.
type Presence struct {
	rdb   *redis.Client
	grace time.Duration

	mu        sync.RWMutex
	users     map[uint]*userPresence
	onOnline  func(userID uint)
	onOffline func(userID uint)

	cancel context.CancelFunc
	done   chan struct{}
}

func NewPresence(rdb *redis.Client) *Presence {
	p := &Presence{
		rdb:   rdb,
		grace: defaultOfflineGrace,
		users: make(map[uint]*userPresence),
	}
	if rdb != nil {
		ctx, cancel := context.WithCancel(context.Background())
		p.cancel = cancel
		p.done = make(chan struct{})
		go p.sweepLoop(ctx)
	}
	return p
}

// SetHooks installs callbacks for online/offline transitions. Either may be nil.
func (p *Presence) SetHooks(onOnline, onOffline func(userID uint)) {
	p.mu.Lock()
	p.onOnline = onOnline
	p.onOffline = onOffline
	p.mu.Unlock()
}

func (p *Presence) SetGrace(d time.Duration) {
	p.mu.Lock()
	p.grace = d
	p.mu.Unlock()
}

// Join records a new connection for userID.
func (p *Presence) Join(ctx context.Context, userID uint) {
	p.mu.Lock()
	up, ok := p.users[userID]
	if !ok {
		up = &userPresence{}
		p.users[userID] = up
	}
	up.conns++
	reconnect := up.pending != nil
	if reconnect {
		up.pending.Stop()
		up.pending = nil
	}
	first := up.conns == 1 && !reconnect
	up.offline = false
	hook := p.onOnline
	p.mu.Unlock()

	p.Seen(ctx, userID)
	if first && hook != nil {
		hook(userID)
	}
}

// Leave drops one connection. The last one starts the grace timer; the user
// only goes offline if no new connection arrives before it fires.
func (p *Presence) Leave(userID uint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	up, ok := p.users[userID]
	if !ok || up.conns == 0 {
		return
	}
	up.conns--
	if up.conns > 0 || up.pending != nil {
		return
	}
	up.pending = time.AfterFunc(p.grace, func() { p.expire(userID) })
}

func (p *Presence) expire(userID uint) {
	p.mu.Lock()
	up, ok := p.users[userID]
	if !ok || up.conns > 0 || up.offline {
		p.mu.Unlock()
		return
	}
	up.pending = nil
	up.offline = true
	hook := p.onOffline
	p.mu.Unlock()

	p.forget(context.Background(), userID)
	if hook != nil {
		hook(userID)
	}
}

// Seen refreshes the shared last-seen marker for userID.
func (p *Presence) Seen(ctx context.Context, userID uint) {
	if p.rdb == nil {
		return
	}
	_, err := p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, cache.PresenceOnlineKey, userID)
		pipe.SetEx(ctx, cache.PresenceSeenKey(userID), time.Now().Unix(), cache.PresenceTTL)
		return nil
	})
	if err != nil {
		middleware.Logger.Debug("presence refresh failed", "user_id", userID, "error", err)
	}
}

func (p *Presence) forget(ctx context.Context, userID uint) {
	if p.rdb == nil {
		return
	}
	_, err := p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, cache.PresenceOnlineKey, userID)
		pipe.Del(ctx, cache.PresenceSeenKey(userID))
		return nil
	})
	if err != nil {
		middleware.Logger.Debug("presence clear failed", "user_id", userID, "error", err)
	}
}

// Online reports whether userID has a live connection here or, with Redis, anywhere.
func (p *Presence) Online(ctx context.Context, userID uint) bool {
	p.mu.RLock()
	up, ok := p.users[userID]
	local := ok && (up.conns > 0 || up.pending != nil)
	p.mu.RUnlock()
	if local || p.rdb == nil {
		return local
	}
	n, err := p.rdb.Exists(ctx, cache.PresenceSeenKey(userID)).Result()
	return err == nil && n > 0
}

// Sweep removes users from the shared online set whose last-seen marker has
// expired, typically because the instance holding them died. It returns the
// number of users removed.
func (p *Presence) Sweep(ctx context.Context) int {
	if p.rdb == nil {
		return 0
	}
	members, err := p.rdb.SMembers(ctx, cache.PresenceOnlineKey).Result()
	if err != nil {
		middleware.Logger.Debug("presence sweep failed", "error", err)
		return 0
	}

	p.mu.RLock()
	hook := p.onOffline
	p.mu.RUnlock()

	removed := 0
	for _, m := range members {
		id, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			_ = p.rdb.SRem(ctx, cache.PresenceOnlineKey, m).Err()
			continue
		}
		userID := uint(id)
		if n, err := p.rdb.Exists(ctx, cache.PresenceSeenKey(userID)).Result(); err != nil || n > 0 {
			continue
		}
		if err := p.rdb.SRem(ctx, cache.PresenceOnlineKey, m).Err(); err != nil {
			continue
		}
		removed++
		if hook != nil {
			hook(userID)
		}
	}
	return removed
}

func (p *Presence) sweepLoop(ctx context.Context) {
	defer close(p.done)
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Sweep(ctx)
		}
	}
}

// Stop halts the sweeper and cancels pending offline timers.
func (p *Presence) Stop() {
	if p.cancel != nil {
		p.cancel()
		<-p.done
		p.cancel = nil
	}
	p.mu.Lock()
	for _, up := range p.users {
		if up.pending != nil {
			up.pending.Stop()
			up.pending = nil
		}
	}
	p.mu.Unlock()
}
