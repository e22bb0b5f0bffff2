package discovery

import (
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/net/ipv4"

	"github.com/muurk/castscan/internal/logging"
)

// MulticastLock is the capability needed to receive multicast traffic on the
// local network. Each SSDP run acquires its own instance and releases it on
// every exit path.
type MulticastLock interface {
	// Acquire enables multicast reception for conn
	Acquire(conn net.PacketConn) error
	// Release gives the capability back. Safe to call more than once.
	Release()
}

// LockFactory creates a fresh lock per discovery run
type LockFactory func() MulticastLock

// GroupLock joins the SSDP multicast group on every up, multicast-capable,
// non-loopback interface and leaves the group again on Release.
type GroupLock struct {
	// Group is the multicast group to join (default 239.255.255.250)
	Group net.IP

	// Interfaces lists candidate interfaces (default net.Interfaces)
	Interfaces func() ([]net.Interface, error)

	mu     sync.Mutex
	pc     *ipv4.PacketConn
	joined []net.Interface
}

// NewGroupLock returns a GroupLock for the SSDP group
func NewGroupLock() MulticastLock {
	return &GroupLock{
		Group:      net.IPv4(239, 255, 255, 250),
		Interfaces: net.Interfaces,
	}
}

// Acquire joins the group on each eligible interface. It fails only when no
// interface could join.
func (l *GroupLock) Acquire(conn net.PacketConn) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ifaces, err := l.Interfaces()
	if err != nil {
		return fmt.Errorf("failed to list interfaces: %w", err)
	}

	l.pc = ipv4.NewPacketConn(conn)
	group := &net.UDPAddr{IP: l.Group}

	var lastErr error
	for _, ifi := range ifaces {
		if ifi.Flags&net.FlagUp == 0 || ifi.Flags&net.FlagMulticast == 0 || ifi.Flags&net.FlagLoopback != 0 {
			continue
		}
		if err := l.pc.JoinGroup(&ifi, group); err != nil {
			lastErr = err
			logging.Debug("Failed to join multicast group",
				zap.String("interface", ifi.Name),
				zap.Error(err),
			)
			continue
		}
		l.joined = append(l.joined, ifi)
	}

	if len(l.joined) == 0 {
		if lastErr == nil {
			lastErr = fmt.Errorf("no multicast-capable interface")
		}
		return lastErr
	}

	logging.Debug("Multicast capability acquired", zap.Int("interfaces", len(l.joined)))
	return nil
}

// Release leaves every joined group
func (l *GroupLock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	group := &net.UDPAddr{IP: l.Group}
	for i := range l.joined {
		_ = l.pc.LeaveGroup(&l.joined[i], group)
	}
	if len(l.joined) > 0 {
		logging.Debug("Multicast capability released", zap.Int("interfaces", len(l.joined)))
	}
	l.joined = nil
}
