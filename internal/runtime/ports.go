// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"syscall"
	"time"
)

const (
	// MaxPort is the highest TCP port number.
	MaxPort = 65535

	// DefaultPortProbeTimeout bounds a single listen attempt.
	DefaultPortProbeTimeout = 500 * time.Millisecond
)

// ErrPortRangeExhausted is the sentinel error wrapped by PortRangeExhaustedError.
var ErrPortRangeExhausted = errors.New("port range exhausted")

type (
	// PortRangeExhaustedError is returned when fewer than Count free ports
	// exist between Start and MaxPort.
	PortRangeExhaustedError struct {
		Start int
		Count int
		Found []int
	}

	// PortFinder returns count free local ports at or above start. network
	// is "tcp" or "udp".
	PortFinder func(ctx context.Context, network string, start, count int) ([]int, error)

	// portProbe tries to bind port and returns the bind error, if any.
	portProbe func(ctx context.Context, network string, port int) error
)

// Error implements the error interface.
func (e *PortRangeExhaustedError) Error() string {
	return fmt.Sprintf("found only %d of %d free ports in %d-%d", len(e.Found), e.Count, e.Start, MaxPort)
}

// Unwrap returns ErrPortRangeExhausted so callers can use errors.Is for programmatic detection.
func (e *PortRangeExhaustedError) Unwrap() error { return ErrPortRangeExhausted }

// FindOpenPorts scans upward from start and returns the first count TCP
// ports that can be bound on localhost. A port is released right after the
// probe, so another process may take it before the caller does.
func FindOpenPorts(ctx context.Context, start, count int) ([]int, error) {
	return NewPortFinder(DefaultPortProbeTimeout)(ctx, "tcp", start, count)
}

// NewPortFinder returns a PortFinder whose probes give up after timeout.
// A non-positive timeout means DefaultPortProbeTimeout.
func NewPortFinder(timeout time.Duration) PortFinder {
	if timeout <= 0 {
		timeout = DefaultPortProbeTimeout
	}
	return newPortFinder(func(ctx context.Context, network string, port int) error {
		return probePort(ctx, network, port, timeout)
	})
}

func newPortFinder(probe portProbe) PortFinder {
	return func(ctx context.Context, network string, start, count int) ([]int, error) {
		if network != "tcp" && network != "udp" {
			return nil, fmt.Errorf("unsupported network %q (want tcp or udp)", network)
		}
		if start < 1 || start > MaxPort {
			return nil, fmt.Errorf("start port %d out of range 1-%d", start, MaxPort)
		}
		if count < 0 {
			return nil, fmt.Errorf("negative port count %d", count)
		}

		ports := make([]int, 0, count)
		for port := start; port <= MaxPort && len(ports) < count; port++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			err := probe(ctx, network, port)
			switch {
			case err == nil:
				ports = append(ports, port)
			case portTaken(err):
			default:
				return nil, fmt.Errorf("probe %s port %d: %w", network, port, err)
			}
		}
		if len(ports) < count {
			return nil, &PortRangeExhaustedError{Start: start, Count: count, Found: ports}
		}
		return ports, nil
	}
}

// portTaken reports whether a bind error means the port cannot be used by
// this process: another socket holds it, or it is privileged.
func portTaken(err error) bool {
	return errors.Is(err, syscall.EADDRINUSE) || errors.Is(err, syscall.EACCES)
}

// probePort binds port on localhost and releases it again. UDP ports are
// probed with a packet listener.
func probePort(ctx context.Context, network string, port int, timeout time.Duration) error {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addr := net.JoinHostPort("localhost", strconv.Itoa(port))
	var lc net.ListenConfig
	var closer io.Closer
	var err error
	if network == "udp" {
		closer, err = lc.ListenPacket(probeCtx, network, addr)
	} else {
		closer, err = lc.Listen(probeCtx, network, addr)
	}
	if err != nil {
		return err
	}
	return closer.Close()
}
