package ping

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// ErrEchoUnavailable marks echo errors that mean the host cannot send ICMP
// at all (pinger construction, socket permissions). Any other echo error is
// a device-side failure and counts as an unanswered request.
var ErrEchoUnavailable = errors.New("icmp echo unavailable")

// Echoer sends a single ICMP echo request and waits for the reply.
// ok is false when no reply arrived within timeout.
type Echoer interface {
	Echo(ctx context.Context, address string, timeout time.Duration) (rtt time.Duration, ok bool, err error)
}

// ProBingEchoer implements Echoer with pro-bing.
type ProBingEchoer struct {
	// Privileged selects raw ICMP sockets instead of unprivileged UDP
	// ping sockets.
	Privileged bool
}

// Echo sends one echo request to address.
func (e ProBingEchoer) Echo(ctx context.Context, address string, timeout time.Duration) (time.Duration, bool, error) {
	pinger, err := probing.NewPinger(address)
	if err != nil {
		return 0, false, fmt.Errorf("%w: create pinger for %s: %v", ErrEchoUnavailable, address, err)
	}

	pinger.Count = 1
	pinger.Timeout = timeout
	pinger.SetPrivileged(e.Privileged)

	if err := pinger.RunWithContext(ctx); err != nil {
		return 0, false, runError(address, err)
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 || len(stats.Rtts) == 0 {
		return 0, false, nil
	}
	return stats.Rtts[0], true, nil
}

// runError classifies an error from running the pinger.
func runError(address string, err error) error {
	if errors.Is(err, os.ErrPermission) {
		return fmt.Errorf("%w: ping %s: %v", ErrEchoUnavailable, address, err)
	}
	return fmt.Errorf("ping %s: %w", address, err)
}
