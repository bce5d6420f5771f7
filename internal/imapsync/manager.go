package imapsync

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/onebox/internal/core"
	"github.com/mikey/onebox/internal/metrics"
)

// Processor receives each normalized document. Satisfied by
// core.EmailPipeline.
type Processor interface {
	Process(ctx context.Context, doc *core.EmailDocument)
}

// Manager owns one mailbox session: it backfills each watched folder, feeds
// live new-message events through the same pipeline, and repairs the
// connection with a periodic watchdog. One Manager per account; managers
// share nothing.
type Manager struct {
	account    core.AccountConfig
	session    Session
	processor  Processor
	normalizer *Normalizer
	logger     *zap.Logger

	backfillWindow time.Duration
	watchdogPeriod time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewManager creates a sync manager for one account.
func NewManager(
	account core.AccountConfig,
	session Session,
	processor Processor,
	normalizer *Normalizer,
	logger *zap.Logger,
	backfillWindow time.Duration,
	watchdogPeriod time.Duration,
) *Manager {
	return &Manager{
		account:        account,
		session:        session,
		processor:      processor,
		normalizer:     normalizer,
		logger:         logger,
		backfillWindow: backfillWindow,
		watchdogPeriod: watchdogPeriod,
		locks:          make(map[string]*sync.Mutex),
		stopCh:         make(chan struct{}),
	}
}

// Start connects the session, backfills every configured folder in order,
// then arms the live listener and the watchdog. A connect failure is
// returned; everything after that point is self-healing.
func (m *Manager) Start(ctx context.Context) error {
	if err := m.session.Connect(); err != nil {
		return err
	}
	m.logger.Info("IMAP sync started", zap.String("account", m.account.AccountID))

	m.syncFolders(ctx)

	go m.listen(ctx)
	go m.watchdogLoop(ctx)
	return nil
}

// Stop shuts the manager down and logs the session out.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
	if err := m.session.Logout(); err != nil {
		m.logger.Debug("Logout failed during shutdown", zap.Error(err))
	}
}

// syncFolders runs the trailing-window backfill for each folder in
// configuration order. A folder failure never stops the remaining folders.
func (m *Manager) syncFolders(ctx context.Context) {
	for _, folder := range m.account.Folders {
		if err := m.backfillFolder(ctx, folder); err != nil {
			m.logger.Error("Backfill failed",
				zap.String("account", m.account.AccountID),
				zap.String("folder", folder),
				zap.Error(err))
		}
	}
}

// backfillFolder fetches and processes every message dated within the
// backfill window. The folder lock is held for the whole traversal and
// released on every exit path.
func (m *Manager) backfillFolder(ctx context.Context, folder string) error {
	lock := m.folderLock(folder)
	lock.Lock()
	defer lock.Unlock()

	since := time.Now().Add(-m.backfillWindow)
	msgs, err := m.session.FetchSince(folder, since)
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		m.handleMessage(ctx, folder, msg)
	}
	return nil
}

// fetchNew re-scans the folder for messages not yet marked read. Invoked on
// every server-reported new-message event.
func (m *Manager) fetchNew(ctx context.Context, folder string) {
	lock := m.folderLock(folder)
	lock.Lock()
	defer lock.Unlock()

	msgs, err := m.session.FetchUnseen(folder)
	if err != nil {
		m.logger.Error("Unseen fetch failed",
			zap.String("account", m.account.AccountID),
			zap.String("folder", folder),
			zap.Error(err))
		return
	}
	for _, msg := range msgs {
		m.handleMessage(ctx, folder, msg)
	}
}

// handleMessage normalizes one raw message and pushes it through the
// pipeline. Parse failures are logged and skipped; the pipeline absorbs its
// own failures.
func (m *Manager) handleMessage(ctx context.Context, folder string, msg RawMessage) {
	doc, err := m.normalizer.Normalize(m.account.AccountID, folder, msg.UID, msg.Raw)
	if err != nil {
		m.logger.Error("Failed to parse message",
			zap.String("account", m.account.AccountID),
			zap.String("folder", folder),
			zap.Uint32("uid", msg.UID),
			zap.Error(err))
		return
	}
	m.processor.Process(ctx, doc)
}

// listen consumes new-message events from the session. Decoupling event
// delivery from processing through the channel keeps fetches from
// re-entering while a previous batch is still being handled.
func (m *Manager) listen(ctx context.Context) {
	for {
		select {
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		case folder := <-m.session.Updates():
			m.logger.Info("New mail detected",
				zap.String("account", m.account.AccountID),
				zap.String("folder", folder))
			m.fetchNew(ctx, folder)
		}
	}
}

// watchdogLoop checks session liveness on a fixed period for the lifetime
// of the manager.
func (m *Manager) watchdogLoop(ctx context.Context) {
	ticker := time.NewTicker(m.watchdogPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.watchdogTick(ctx)
		}
	}
}

// watchdogTick repairs a dead session: one graceful logout attempt with the
// error swallowed, one reconnect attempt. A failed reconnect is logged and
// retried on the next tick; the watchdog never gives up.
func (m *Manager) watchdogTick(ctx context.Context) {
	if m.session.Usable() {
		return
	}

	m.logger.Warn("IMAP connection lost, reconnecting",
		zap.String("account", m.account.AccountID))
	metrics.Reconnects.Inc()

	if err := m.session.Logout(); err != nil {
		m.logger.Debug("Logout of dead session failed", zap.Error(err))
	}
	if err := m.session.Connect(); err != nil {
		m.logger.Error("Reconnect failed",
			zap.String("account", m.account.AccountID),
			zap.Error(err))
		return
	}

	m.syncFolders(ctx)
}

// folderLock returns the exclusive lock serializing fetch traversals of one
// folder.
func (m *Manager) folderLock(folder string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[folder]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[folder] = lock
	}
	return lock
}
