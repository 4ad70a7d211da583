package offline

import (
	"context"
	"sync/atomic"

	"github.com/sekolahmbg/mbg-client/core"
)

type (
	// Connectivity answers "are we online right now". Probes may be wrong;
	// SubmitOrQueue treats the send error path as the authoritative safety
	// net, so a false positive never strands a user action.
	Connectivity interface {
		Online(ctx context.Context) bool
	}

	// Replayer replays one queued item against the backend; the generic
	// sync endpoint receives the full item and dispatches on its type.
	Replayer interface {
		Replay(ctx context.Context, item Item) error
	}

	// SendFunc performs the actual online submission of a feature action.
	SendFunc func(ctx context.Context) error

	// Engine drains the queue and offers the submit-or-queue path feature
	// flows build on.
	Engine struct {
		queue    *Queue
		remote   Replayer
		network  Connectivity
		logger   core.Logger
		draining int32
	}
)

func NewEngine(queue *Queue, remote Replayer, network Connectivity, logger core.Logger) *Engine {
	return &Engine{queue: queue, remote: remote, network: network, logger: core.OrNopLogger(logger)}
}

// Sync drains the current queue snapshot once. Succeeded items are removed;
// failed items stay in place with their retry counter bumped, and never
// abort the rest of the batch. Returns true only when every item in the
// snapshot succeeded (an empty queue also returns true).
//
// The re-entrancy guard is a flag, not a queue: a drain already in progress
// makes a concurrent call a no-op returning false, so overlapping triggers
// (connectivity callback plus manual refresh) cannot double-submit.
func (e *Engine) Sync(ctx context.Context) bool {
	if !atomic.CompareAndSwapInt32(&e.draining, 0, 1) {
		return false
	}
	defer atomic.StoreInt32(&e.draining, 0)

	all := true
	for _, item := range e.queue.All() {
		if err := ctx.Err(); err != nil {
			return false
		}
		if err := e.remote.Replay(ctx, item); err != nil {
			e.queue.BumpTries(item.ID)
			all = false
			e.logger.Warn("sync: replay failed", map[string]interface{}{
				"id": item.ID, "type": item.Type, "tries": item.Tries + 1, "err": err.Error(),
			})
			continue
		}
		e.queue.Remove(item.ID)
	}
	return all
}

// SubmitOrQueue tries the live submission and falls back to queuing.
// Offline: enqueue immediately without invoking send. Online: invoke send;
// any error from it queues the action instead of losing it. queued reports
// which path the action took; err is only ever a local encoding failure.
func (e *Engine) SubmitOrQueue(
	ctx context.Context,
	itemType string,
	payload interface{},
	send SendFunc,
	id ...string,
) (queued bool, err error) {
	if !e.network.Online(ctx) {
		if _, err := e.queue.Enqueue(itemType, payload, id...); err != nil {
			return false, err
		}
		return true, nil
	}

	if sendErr := send(ctx); sendErr != nil {
		e.logger.Info("sync: live submit failed, queuing", map[string]interface{}{
			"type": itemType, "err": sendErr.Error(),
		})
		if _, err := e.queue.Enqueue(itemType, payload, id...); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// Queue exposes the underlying queue for inspection (status server, CLI).
func (e *Engine) Queue() *Queue { return e.queue }
