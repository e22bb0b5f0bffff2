package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
)

// ErrNoActivePlayer is returned by player commands when nothing is playing
var ErrNoActivePlayer = errors.New("no active player")

// ErrUnsupportedDevice is returned when a device does not speak JSON-RPC,
// such as a multicast-discovered media renderer
var ErrUnsupportedDevice = errors.New("device does not support remote control")

// ErrorType represents the category of a remote-control failure
type ErrorType int

const (
	// ErrTypeNetwork indicates a network-level error
	ErrTypeNetwork ErrorType = iota
	// ErrTypeTimeout indicates a request timeout
	ErrTypeTimeout
	// ErrTypeConnectionRefused indicates the player refused the connection
	ErrTypeConnectionRefused
	// ErrTypeHTTP indicates a non-200 HTTP status
	ErrTypeHTTP
	// ErrTypeParse indicates a malformed JSON-RPC response
	ErrTypeParse
	// ErrTypeRPC indicates the player answered with a JSON-RPC error object
	ErrTypeRPC
	// ErrTypeUnknown indicates an unexpected error
	ErrTypeUnknown
)

// NetworkErrorSubtype provides more specific network error classification
type NetworkErrorSubtype int

const (
	NetworkErrorGeneral NetworkErrorSubtype = iota
	NetworkErrorTimeout
	NetworkErrorConnectionRefused
	NetworkErrorDNS
	NetworkErrorHostUnreachable
	NetworkErrorNetworkUnreachable
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeParse:
		return "Parse Error"
	case ErrTypeRPC:
		return "RPC Error"
	case ErrTypeUnknown:
		return "Unknown Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// RPCError is a failure talking to a remote-control player
type RPCError struct {
	Type           ErrorType
	Message        string
	StatusCode     int // HTTP status, when applicable
	Code           int // JSON-RPC error code, when applicable
	Err            error
	NetworkSubtype NetworkErrorSubtype
	Address        string
	Retryable      bool
}

// Error implements the error interface
func (e *RPCError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *RPCError) Unwrap() error {
	return e.Err
}

// ClassifyNetworkError analyzes a transport error and returns a typed error
func ClassifyNetworkError(err error, address string) *RPCError {
	if err == nil {
		return nil
	}

	// Caller cancellation is final
	if errors.Is(err, context.Canceled) {
		return &RPCError{
			Type:    ErrTypeNetwork,
			Message: "Request cancelled",
			Err:     err,
			Address: address,
		}
	}

	if os.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return &RPCError{
			Type:           ErrTypeTimeout,
			Message:        "Request timed out",
			Err:            err,
			NetworkSubtype: NetworkErrorTimeout,
			Address:        address,
			Retryable:      true,
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &RPCError{
			Type:           ErrTypeNetwork,
			Message:        fmt.Sprintf("DNS resolution failed for %s", dnsErr.Name),
			Err:            err,
			NetworkSubtype: NetworkErrorDNS,
			Address:        address,
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch {
		case errors.Is(opErr.Err, syscall.ECONNREFUSED):
			return &RPCError{
				Type:           ErrTypeConnectionRefused,
				Message:        "Player refused connection",
				Err:            err,
				NetworkSubtype: NetworkErrorConnectionRefused,
				Address:        address,
				Retryable:      true,
			}
		case errors.Is(opErr.Err, syscall.EHOSTUNREACH):
			return &RPCError{
				Type:           ErrTypeNetwork,
				Message:        "Host unreachable",
				Err:            err,
				NetworkSubtype: NetworkErrorHostUnreachable,
				Address:        address,
				Retryable:      true,
			}
		case errors.Is(opErr.Err, syscall.ENETUNREACH):
			return &RPCError{
				Type:           ErrTypeNetwork,
				Message:        "Network unreachable",
				Err:            err,
				NetworkSubtype: NetworkErrorNetworkUnreachable,
				Address:        address,
				Retryable:      true,
			}
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ClassifyNetworkError(urlErr.Err, address)
	}

	return &RPCError{
		Type:           ErrTypeNetwork,
		Message:        "Network error occurred",
		Err:            err,
		NetworkSubtype: NetworkErrorGeneral,
		Address:        address,
		Retryable:      true,
	}
}

// NewNetworkError creates a network-level error with automatic classification
func NewNetworkError(message string, err error) *RPCError {
	if classified := ClassifyNetworkError(err, ""); classified != nil {
		classified.Message = message
		return classified
	}
	return &RPCError{
		Type:      ErrTypeNetwork,
		Message:   message,
		Err:       err,
		Retryable: true,
	}
}

// NewHTTPError creates an HTTP-level error. Server errors are retryable.
func NewHTTPError(statusCode int, message string) *RPCError {
	return &RPCError{
		Type:       ErrTypeHTTP,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  statusCode >= http.StatusInternalServerError,
	}
}

// NewParseError creates a parsing error
func NewParseError(message string, err error) *RPCError {
	return &RPCError{
		Type:    ErrTypeParse,
		Message: message,
		Err:     err,
	}
}

// NewRemoteError wraps a JSON-RPC error object returned by the player
func NewRemoteError(code int, message string) *RPCError {
	return &RPCError{
		Type:    ErrTypeRPC,
		Message: message,
		Code:    code,
	}
}

func asRPCError(err error) (*RPCError, bool) {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr, true
	}
	return nil, false
}

// IsNetworkError checks if an error is a network, timeout or refused-connection error
func IsNetworkError(err error) bool {
	if rpcErr, ok := asRPCError(err); ok {
		return rpcErr.Type == ErrTypeNetwork ||
			rpcErr.Type == ErrTypeTimeout ||
			rpcErr.Type == ErrTypeConnectionRefused
	}
	return false
}

// IsTimeout checks if an error is a request timeout
func IsTimeout(err error) bool {
	if rpcErr, ok := asRPCError(err); ok {
		return rpcErr.Type == ErrTypeTimeout
	}
	return false
}

// IsRemoteError checks if the player answered with a JSON-RPC error
func IsRemoteError(err error) bool {
	if rpcErr, ok := asRPCError(err); ok {
		return rpcErr.Type == ErrTypeRPC
	}
	return false
}

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	if rpcErr, ok := asRPCError(err); ok {
		return rpcErr.Retryable
	}
	return false
}

// GetShortErrorMessage returns a concise, user-friendly error message
func GetShortErrorMessage(err error) string {
	if errors.Is(err, ErrNoActivePlayer) {
		return "Nothing is playing"
	}
	if errors.Is(err, ErrUnsupportedDevice) {
		return "Device does not accept remote-control commands"
	}

	rpcErr, ok := asRPCError(err)
	if !ok {
		return err.Error()
	}

	switch rpcErr.Type {
	case ErrTypeTimeout:
		return "Player not responding (timeout)"
	case ErrTypeConnectionRefused:
		return "Player refused connection - is remote control enabled?"
	case ErrTypeNetwork:
		switch rpcErr.NetworkSubtype {
		case NetworkErrorHostUnreachable:
			return "Player unreachable - check network connection"
		case NetworkErrorNetworkUnreachable:
			return "Network unreachable - check WiFi connection"
		case NetworkErrorDNS:
			return "Cannot resolve player hostname"
		default:
			return "Network error - check connection"
		}
	case ErrTypeHTTP:
		if rpcErr.StatusCode == http.StatusUnauthorized {
			return "Player requires a username and password"
		}
		return fmt.Sprintf("Player error (HTTP %d)", rpcErr.StatusCode)
	case ErrTypeParse:
		return "Failed to parse player response"
	case ErrTypeRPC:
		return rpcErr.Message
	default:
		return rpcErr.Message
	}
}

// GetTroubleshootingHint returns advice for an error
func GetTroubleshootingHint(err error) string {
	rpcErr, ok := asRPCError(err)
	if !ok {
		return "An unexpected error occurred. Please try again."
	}

	switch rpcErr.Type {
	case ErrTypeTimeout, ErrTypeConnectionRefused:
		return strings.Join([]string{
			"The player did not accept the request.",
			"Troubleshooting:",
			"  • Check that the player is running",
			"  • Enable \"Allow remote control via HTTP\" in the player's settings",
			"  • Verify the port (default is 8080)",
		}, "\n")
	case ErrTypeNetwork:
		return strings.Join([]string{
			"Network communication failed.",
			"Troubleshooting:",
			"  • Verify the player address is correct",
			"  • Check that you're on the same network as the player",
		}, "\n")
	case ErrTypeHTTP:
		if rpcErr.StatusCode == http.StatusUnauthorized {
			return "The player's web server requires authentication. Disable it or set credentials."
		}
		return fmt.Sprintf("The player returned HTTP error %d.", rpcErr.StatusCode)
	case ErrTypeParse:
		return "The response was not JSON-RPC. Is another service using this port?"
	case ErrTypeRPC:
		return "The player rejected the command. Check that the media URL is reachable from the player."
	default:
		return "An error occurred. Please check the error message for details."
	}
}
