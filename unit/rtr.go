package unit

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/go-rtrtr/rtrtr/comms"
	"github.com/go-rtrtr/rtrtr/payload"
	"github.com/go-rtrtr/rtrtr/rtrwire"
)

// defaultRefresh is used when a server's End of Data PDU carries no timing
// and the unit's own configuration doesn't override it, matching the RFC
// 8210 suggested default.
const defaultRefresh = 3600 * time.Second

// RTR is a unit that pulls VRP data from an upstream RTR cache server,
// reconnecting and retrying on failure. A nil TLSConfig dials plaintext.
type RTR struct {
	base

	Addr       string
	TLSConfig  *tls.Config
	Version    rtrwire.Version
	Refresh    time.Duration
	RetryWait  time.Duration
	MaxRetries int

	log *logrus.Entry
}

// NewRTR constructs an RTR client unit.
func NewRTR(name, addr string, tlsConfig *tls.Config) *RTR {
	return &RTR{
		base:       newBase(name),
		Addr:       addr,
		TLSConfig:  tlsConfig,
		Version:    rtrwire.Version1,
		Refresh:    defaultRefresh,
		RetryWait:  30 * time.Second,
		MaxRetries: 3,
		log:        logrus.WithField("unit", name).WithField("kind", "rtr"),
	}
}

// Run implements Unit.
func (u *RTR) Run(ctx context.Context) error {
	var current *payload.Set = payload.Empty
	var serial uint32
	var state rtrwire.SessionState
	retries := 0

	for ctx.Err() == nil {
		conn, err := u.dial(ctx)
		if err != nil {
			u.log.WithError(err).Warn("connect failed")
			if retries++; retries > u.MaxRetries {
				u.Gate().UpdateStatus(comms.Gone)
				return fmt.Errorf("unit/rtr %s: %w", u.Addr, err)
			}
			u.Gate().UpdateStatus(comms.Stalled)
			if !sleep(ctx, u.RetryWait) {
				return ctx.Err()
			}
			continue
		}
		retries = 0

		client := rtrwire.NewClient(conn, u.Version)
		for ctx.Err() == nil {
			if err := u.Gate().Process(ctx); err != nil && err != context.Canceled {
				client.Close()
				return err
			}

			result, newState, err := client.Pull(state)
			state = newState
			if err != nil {
				client.Close()
				u.log.WithError(err).Warn("pull failed, reconnecting")
				u.Gate().UpdateStatus(comms.Stalled)
				break
			}
			serial = result.Serial

			if result.Full != nil {
				current = result.Full
				u.Gate().UpdateData(payload.NewFullUpdate(current, serial))
			} else if result.Diff != nil && result.Diff.Len() > 0 {
				next, err := result.Diff.Apply(current)
				if err != nil {
					u.log.WithError(err).Error("diff failed invariant, reporting error and resetting session")
					if sendErr := client.SendError(rtrwire.ErrCorruptData, nil, err.Error()); sendErr != nil {
						u.log.WithError(sendErr).Warn("failed to send error report")
					}
					state = rtrwire.SessionState{}
					break
				}
				current = next
				u.Gate().UpdateData(payload.NewDiffUpdate(current, result.Diff, serial))
			}
			u.Gate().UpdateStatus(comms.Healthy)

			wait := u.Refresh
			if result.Timing.Refresh > 0 {
				wait = time.Duration(result.Timing.Refresh) * time.Second
			}
			if !sleep(ctx, wait) {
				client.Close()
				return ctx.Err()
			}
		}
	}
	return ctx.Err()
}

func (u *RTR) dial(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{}
	if u.TLSConfig != nil {
		return tls.DialWithDialer(&d, "tcp", u.Addr, u.TLSConfig)
	}
	return d.DialContext(ctx, "tcp", u.Addr)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
