package imapsync

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"go.uber.org/zap"

	"github.com/mikey/onebox/internal/core"
)

// ErrNotConnected is returned by fetch operations on a dead session.
var ErrNotConnected = errors.New("imap session not connected")

// RawMessage is one fetched message: its server-assigned uid plus the full
// RFC822 content.
type RawMessage struct {
	UID uint32
	Raw []byte
}

// Session is the mail transport owned by a Manager. The concrete
// implementation speaks IMAP; tests substitute a fake.
type Session interface {
	// Connect dials and authenticates a fresh transport
	Connect() error

	// Logout gracefully ends the session
	Logout() error

	// Usable reports whether the underlying transport is still alive
	Usable() bool

	// FetchSince retrieves all messages in the folder dated within the window
	FetchSince(folder string, since time.Time) ([]RawMessage, error)

	// FetchUnseen retrieves the folder's messages not yet marked read
	FetchUnseen(folder string) ([]RawMessage, error)

	// Updates delivers the folder name whenever the server reports new mail
	Updates() <-chan string
}

// imapSession is the go-imap backed Session. One live authenticated
// connection per account; the connection idles on the selected folder
// between fetch commands so the server can push new-message notifications.
type imapSession struct {
	account core.AccountConfig
	logger  *zap.Logger
	updates chan string

	selected atomic.Value // string, folder currently selected

	mu       sync.Mutex
	client   *client.Client
	idleStop chan struct{}
	idleDone chan struct{}
}

// NewSession creates an IMAP session for the account. The session is not
// connected until Connect is called.
func NewSession(account core.AccountConfig, logger *zap.Logger) Session {
	s := &imapSession{
		account: account,
		logger:  logger,
		updates: make(chan string, 8),
	}
	s.selected.Store("")
	return s
}

// Connect dials the server, authenticates and starts idling on the first
// configured folder. Calling it on a session that previously died replaces
// the dead transport.
func (s *imapSession) Connect() error {
	addr := fmt.Sprintf("%s:%d", s.account.Host, s.account.Port)

	var c *client.Client
	var err error
	if s.account.Secure {
		c, err = client.DialTLS(addr, &tls.Config{
			ServerName: s.account.Host,
			MinVersion: tls.VersionTLS12,
		})
	} else {
		c, err = client.Dial(addr)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to IMAP server: %w", err)
	}

	if err := c.Login(s.account.User, s.account.Pass); err != nil {
		c.Logout() //nolint:errcheck
		return fmt.Errorf("failed to login to IMAP server: %w", err)
	}

	// Unilateral server data must always be drained, otherwise commands
	// block once the channel fills up.
	updates := make(chan client.Update, 32)
	c.Updates = updates
	go s.drainUpdates(c, updates)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopIdleLocked()
	s.client = c

	if len(s.account.Folders) > 0 {
		folder := s.account.Folders[0]
		if _, err := c.Select(folder, false); err != nil {
			s.client = nil
			c.Logout() //nolint:errcheck
			return fmt.Errorf("failed to select folder %s: %w", folder, err)
		}
		s.selected.Store(folder)
		s.startIdleLocked()
	}

	s.logger.Info("Connected to IMAP server",
		zap.String("account", s.account.AccountID),
		zap.String("host", s.account.Host))
	return nil
}

// Logout ends the session. Safe to call on an already-dead session.
func (s *imapSession) Logout() error {
	s.mu.Lock()
	s.stopIdleLocked()
	c := s.client
	s.client = nil
	s.mu.Unlock()

	if c == nil {
		return nil
	}
	return c.Logout()
}

// Usable reports transport liveness. go-imap moves the client to the logout
// state when the connection drops.
func (s *imapSession) Usable() bool {
	s.mu.Lock()
	c := s.client
	s.mu.Unlock()
	return c != nil && c.State() != imap.LogoutState
}

// Updates delivers the selected folder's name on new-mail notifications.
func (s *imapSession) Updates() <-chan string {
	return s.updates
}

// FetchSince retrieves the full content of every message in the folder
// dated within the trailing window.
func (s *imapSession) FetchSince(folder string, since time.Time) ([]RawMessage, error) {
	criteria := imap.NewSearchCriteria()
	criteria.Since = since
	return s.fetch(folder, criteria)
}

// FetchUnseen retrieves the folder's messages that are not yet marked read.
func (s *imapSession) FetchUnseen(folder string) ([]RawMessage, error) {
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	return s.fetch(folder, criteria)
}

func (s *imapSession) fetch(folder string, criteria *imap.SearchCriteria) ([]RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.client
	if c == nil {
		return nil, ErrNotConnected
	}

	// IDLE and regular commands cannot run concurrently on one connection.
	s.stopIdleLocked()
	defer s.startIdleLocked()

	if _, err := c.Select(folder, false); err != nil {
		return nil, fmt.Errorf("failed to select folder %s: %w", folder, err)
	}
	s.selected.Store(folder)

	seqNums, err := c.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("search failed in folder %s: %w", folder, err)
	}
	if len(seqNums) == 0 {
		return nil, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(seqNums...)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqSet, items, messages)
	}()

	var fetched []RawMessage
	for msg := range messages {
		literal := msg.GetBody(section)
		if literal == nil {
			s.logger.Debug("Message without body section", zap.Uint32("uid", msg.Uid))
			continue
		}
		raw, rerr := io.ReadAll(literal)
		if rerr != nil {
			s.logger.Error("Failed to read message literal",
				zap.Uint32("uid", msg.Uid),
				zap.Error(rerr))
			continue
		}
		fetched = append(fetched, RawMessage{UID: msg.Uid, Raw: raw})
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("fetch failed in folder %s: %w", folder, err)
	}
	return fetched, nil
}

// drainUpdates forwards new-mail notifications to the session's updates
// channel until the connection dies. Other unilateral data is discarded.
func (s *imapSession) drainUpdates(c *client.Client, updates <-chan client.Update) {
	for {
		select {
		case u := <-updates:
			if _, ok := u.(*client.MailboxUpdate); ok {
				folder, _ := s.selected.Load().(string)
				if folder == "" {
					continue
				}
				select {
				case s.updates <- folder:
				default:
					// A rescan is already pending; the unseen sweep will
					// pick this message up too.
				}
			}
		case <-c.LoggedOut():
			return
		}
	}
}

// startIdleLocked begins idling on the selected folder. Caller holds mu.
func (s *imapSession) startIdleLocked() {
	if s.client == nil || s.idleStop != nil {
		return
	}
	folder, _ := s.selected.Load().(string)
	if folder == "" {
		return
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	s.idleStop = stop
	s.idleDone = done

	c := s.client
	go func() {
		defer close(done)
		if err := c.Idle(stop, nil); err != nil {
			s.logger.Debug("IDLE terminated", zap.Error(err))
		}
	}()
}

// stopIdleLocked interrupts the idle command and waits for it to finish.
// Caller holds mu.
func (s *imapSession) stopIdleLocked() {
	if s.idleStop == nil {
		return
	}
	close(s.idleStop)
	<-s.idleDone
	s.idleStop = nil
	s.idleDone = nil
}
