package callback

import (
	"context"
	"errors"
	"sync"

	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth/providers"
	"golang.org/x/sync/singleflight"
)

// maxRemembered bounds the number of used codes kept.
const maxRemembered = 64

// ErrCodeUsed is returned by Guard.Do for a code whose exchange already completed.
var ErrCodeUsed = errors.New("authorization code already used")

// Guard makes sure an authorization code is POSTed at most once per process.
// Concurrent exchanges of one code share a single request. Once that request
// completes the code is spent and later exchanges of it fail with ErrCodeUsed.
type Guard struct {
	group singleflight.Group

	mu   sync.Mutex
	used map[string]struct{}
	keys []string
}

// NewGuard creates an empty Guard.
func NewGuard() *Guard {
	return &Guard{used: make(map[string]struct{})}
}

// Do runs fn for code unless code is already spent. Callers arriving while the
// exchange is in flight share its result. The shared exchange is not cancelled
// when ctx is; the caller stops waiting.
func (g *Guard) Do(ctx context.Context, code string, fn func(context.Context) (*providers.ExchangeResult, error)) (*providers.ExchangeResult, error) {
	if g.spent(code) {
		return nil, ErrCodeUsed
	}

	shared := context.WithoutCancel(ctx)
	ch := g.group.DoChan(code, func() (interface{}, error) {
		if g.spent(code) {
			return nil, ErrCodeUsed
		}
		res, err := fn(shared)
		g.markSpent(code, err)
		return res, err
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		res, _ := r.Val.(*providers.ExchangeResult)
		return res, r.Err
	}
}

func (g *Guard) spent(code string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.used[code]
	return ok
}

// markSpent records code unless its exchange never reached a conclusion.
func (g *Guard) markSpent(code string, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.used[code]; ok {
		return
	}
	g.used[code] = struct{}{}
	g.keys = append(g.keys, code)
	for len(g.keys) > maxRemembered {
		delete(g.used, g.keys[0])
		g.keys = g.keys[1:]
	}
}
