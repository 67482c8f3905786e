package wizard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/progress"
)

const (
	DefaultDebounce      = 2 * time.Second
	DefaultForceInterval = 30 * time.Second
)

type AutosaverOptions struct {
	// Debounce is the quiet period after the last change before saving.
	Debounce time.Duration
	// ForceInterval bounds how long a change can stay unsaved while edits keep arriving.
	ForceInterval time.Duration
}

// Autosaver writes wizard snapshots to a progress store in the background:
// Debounce after the last change, or ForceInterval after the first unsaved
// change, whichever comes first. Save errors are logged and never returned.
type Autosaver struct {
	store progress.Store
	opts  AutosaverOptions

	mu      sync.Mutex
	pending *progress.Snapshot

	kick chan struct{}
	reqs chan request
	done chan struct{}

	closeOnce sync.Once
}

type requestKind int

const (
	requestFlush requestKind = iota
	requestDiscard
	requestClose
)

type request struct {
	kind  requestKind
	reply chan struct{}
}

// StartAutosaver starts the background loop. Call Close to stop it.
func StartAutosaver(ctx context.Context, store progress.Store, opts AutosaverOptions) *Autosaver {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.ForceInterval <= 0 {
		opts.ForceInterval = DefaultForceInterval
	}

	a := &Autosaver{
		store: store,
		opts:  opts,
		kick:  make(chan struct{}, 1),
		reqs:  make(chan request),
		done:  make(chan struct{}),
	}
	go a.run(ctx)
	return a
}

// Touch records snap as the latest unsaved state. It never blocks.
func (a *Autosaver) Touch(snap progress.Snapshot) {
	a.mu.Lock()
	a.pending = &snap
	a.mu.Unlock()

	select {
	case a.kick <- struct{}{}:
	default:
	}
}

// Flush saves any pending snapshot now and waits for the write.
func (a *Autosaver) Flush() {
	a.send(requestFlush)
}

// Discard drops the pending snapshot without saving it. After a successful
// submission this runs before the stored snapshot is deleted so a late save
// cannot resurrect it.
func (a *Autosaver) Discard() {
	a.send(requestDiscard)
}

// Close saves anything pending and stops the loop. It is safe to call twice.
func (a *Autosaver) Close() {
	a.closeOnce.Do(func() {
		a.send(requestClose)
	})
}

func (a *Autosaver) send(kind requestKind) {
	reply := make(chan struct{})
	select {
	case a.reqs <- request{kind: kind, reply: reply}:
		<-reply
	case <-a.done:
	}
}

func (a *Autosaver) run(ctx context.Context) {
	defer close(a.done)

	debounce := time.NewTimer(time.Hour)
	force := time.NewTimer(time.Hour)
	debounce.Stop()
	force.Stop()
	defer debounce.Stop()
	defer force.Stop()
	forceArmed := false

	save := func() {
		debounce.Stop()
		force.Stop()
		forceArmed = false

		a.mu.Lock()
		snap := a.pending
		a.pending = nil
		a.mu.Unlock()
		if snap == nil {
			return
		}
		if err := a.store.Save(context.WithoutCancel(ctx), *snap); err != nil {
			slog.WarnContext(ctx, "autosave failed", "session_id", snap.SessionID, "error", err)
		}
	}

	for {
		select {
		case <-a.kick:
			debounce.Reset(a.opts.Debounce)
			if !forceArmed {
				force.Reset(a.opts.ForceInterval)
				forceArmed = true
			}

		case <-debounce.C:
			save()

		case <-force.C:
			save()

		case req := <-a.reqs:
			switch req.kind {
			case requestFlush:
				save()
			case requestDiscard:
				debounce.Stop()
				force.Stop()
				forceArmed = false
				a.mu.Lock()
				a.pending = nil
				a.mu.Unlock()
			case requestClose:
				save()
				close(req.reply)
				return
			}
			close(req.reply)

		case <-ctx.Done():
			save()
			return
		}
	}
}
