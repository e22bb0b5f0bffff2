package discovery

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/castscan/internal/logging"
)

const (
	// SSDPMulticastAddr is the SSDP multicast group and port
	SSDPMulticastAddr = "239.255.255.250:1900"

	// DefaultSearchTarget selects UPnP media renderers
	DefaultSearchTarget = "urn:schemas-upnp-org:device:MediaRenderer:1"

	// DefaultDiscoveryTimeout bounds the SSDP receive phase
	DefaultDiscoveryTimeout = 5 * time.Second

	// DefaultReadTimeout bounds a single receive so the loop can re-check the deadline
	DefaultReadTimeout = 500 * time.Millisecond

	// DefaultMaxWait is the MX hint sent to responders, in seconds
	DefaultMaxWait = 3

	// DefaultLocationPort is used when LOCATION carries no explicit port
	DefaultLocationPort = 80

	maxDatagramSize = 8192
)

// portPattern matches the first ":<digits>" group in a LOCATION URL
var portPattern = regexp.MustCompile(`:(\d+)`)

// SSDPScanner searches for media renderers with a single M-SEARCH datagram
type SSDPScanner struct {
	// Timeout is the overall receive deadline
	Timeout time.Duration

	// ReadTimeout bounds each receive attempt
	ReadTimeout time.Duration

	// SearchTarget is the ST header value
	SearchTarget string

	// MaxWait is the MX header value in seconds
	MaxWait int

	// Target is where the search datagram is sent (default SSDPMulticastAddr)
	Target string

	// Listen opens the socket (default net.ListenPacket)
	Listen func(network, address string) (net.PacketConn, error)

	// NewLock creates the multicast capability for one run (default NewGroupLock)
	NewLock LockFactory
}

// NewSSDPScanner creates a scanner with default settings
func NewSSDPScanner() *SSDPScanner {
	return &SSDPScanner{
		Timeout:      DefaultDiscoveryTimeout,
		ReadTimeout:  DefaultReadTimeout,
		SearchTarget: DefaultSearchTarget,
		MaxWait:      DefaultMaxWait,
		Target:       SSDPMulticastAddr,
		Listen:       net.ListenPacket,
		NewLock:      NewGroupLock,
	}
}

// Name implements Strategy
func (s *SSDPScanner) Name() string {
	return "ssdp"
}

// Discover sends one M-SEARCH and collects responses until the deadline.
// It never panics and always returns the devices accumulated so far; the
// error only explains why the run ended early.
func (s *SSDPScanner) Discover(ctx context.Context) (devices []*Device, err error) {
	devices = make([]*Device, 0)

	defer func() {
		if r := recover(); r != nil {
			logging.Error("SSDP discovery panicked", zap.Any("panic", r))
			err = fmt.Errorf("%w: %v", ErrStrategyPanic, r)
		}
	}()

	listen := s.Listen
	if listen == nil {
		listen = net.ListenPacket
	}
	conn, err := listen("udp4", ":0")
	if err != nil {
		logging.Warn("Failed to open SSDP socket", zap.Error(err))
		return devices, fmt.Errorf("failed to open SSDP socket: %w", err)
	}
	defer func() { _ = conn.Close() }()

	newLock := s.NewLock
	if newLock == nil {
		newLock = NewGroupLock
	}
	lock := newLock()
	if err := lock.Acquire(conn); err != nil {
		logging.Warn("Failed to acquire multicast capability", zap.Error(err))
		return devices, fmt.Errorf("%w: %v", ErrMulticastUnavailable, err)
	}
	defer lock.Release()

	// Cancellation wakes a blocked receive
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	target := s.Target
	if target == "" {
		target = SSDPMulticastAddr
	}
	dst, err := net.ResolveUDPAddr("udp4", target)
	if err != nil {
		return devices, fmt.Errorf("failed to resolve SSDP target: %w", err)
	}

	request := BuildSearchRequest(s.SearchTarget, s.MaxWait)
	if _, err := conn.WriteTo(request, dst); err != nil {
		logging.Warn("Failed to send M-SEARCH", zap.String("target", target), zap.Error(err))
		return devices, fmt.Errorf("failed to send M-SEARCH: %w", err)
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultDiscoveryTimeout
	}
	readTimeout := s.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}

	deadline := time.Now().Add(timeout)
	buf := make([]byte, maxDatagramSize)

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return devices, err
		}

		readDeadline := time.Now().Add(readTimeout)
		if readDeadline.After(deadline) {
			readDeadline = deadline
		}
		_ = conn.SetReadDeadline(readDeadline)

		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return devices, err
			}
			continue
		}

		from := senderIP(addr)
		logging.LogSSDPResponse(from, buf[:n])

		if device := ParseResponse(buf[:n], from); device != nil {
			devices = append(devices, device)
		}
	}

	return devices, nil
}

// BuildSearchRequest returns the CRLF-terminated M-SEARCH message
func BuildSearchRequest(searchTarget string, maxWait int) []byte {
	if searchTarget == "" {
		searchTarget = DefaultSearchTarget
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}

	var b strings.Builder
	b.WriteString("M-SEARCH * HTTP/1.1\r\n")
	b.WriteString("HOST: " + SSDPMulticastAddr + "\r\n")
	b.WriteString("MAN: \"ssdp:discover\"\r\n")
	b.WriteString("MX: " + strconv.Itoa(maxWait) + "\r\n")
	b.WriteString("ST: " + searchTarget + "\r\n")
	b.WriteString("\r\n")
	return []byte(b.String())
}

// ParseResponse converts an SSDP response into a Device.
// Returns nil when the response has no LOCATION header or from is empty.
func ParseResponse(data []byte, from string) *Device {
	headers := parseHeaders(data)

	location := headers["location"]
	if location == "" {
		return nil
	}

	device := NewDevice(ExtractDeviceName(headers["server"]), from, ExtractPort(location), KindMulticast)
	if device == nil {
		return nil
	}
	device.ControlLocation = location
	return device
}

// ExtractDeviceName returns the SERVER banner up to its first '/', trimmed
func ExtractDeviceName(banner string) string {
	name, _, _ := strings.Cut(banner, "/")
	return strings.TrimSpace(name)
}

// ExtractPort returns the first ":<digits>" group in location, or 80. A
// digit run outside 1-65535 is not a usable port and also yields 80.
func ExtractPort(location string) int {
	matches := portPattern.FindStringSubmatch(location)
	if len(matches) < 2 {
		return DefaultLocationPort
	}
	port, err := strconv.Atoi(matches[1])
	if err != nil || port <= 0 || port > 65535 {
		return DefaultLocationPort
	}
	return port
}

// parseHeaders reads "Name: value" lines with lower-cased names.
// The status line and malformed lines are skipped; the first occurrence wins.
func parseHeaders(data []byte) map[string]string {
	headers := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" || strings.Contains(key, " ") {
			continue
		}
		if _, seen := headers[key]; !seen {
			headers[key] = strings.TrimSpace(value)
		}
	}
	return headers
}

func senderIP(addr net.Addr) string {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return a.IP.String()
	case nil:
		return ""
	default:
		host, _, err := net.SplitHostPort(a.String())
		if err != nil {
			return a.String()
		}
		return host
	}
}
