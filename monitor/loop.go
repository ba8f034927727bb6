package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/digineo/pingwatch/internal/logging"
)

const (
	// DefaultTimeout is the per-attempt timeout.
	DefaultTimeout = 300 * time.Millisecond

	defaultHistorySize = 10
)

// Loop drives a single prober session for one target: it issues attempts
// back-to-back and logs every timeout. Attempts are strictly sequential.
type Loop struct {
	Target  Target
	Prober  Prober
	Logger  *slog.Logger
	Timeout time.Duration // per attempt, DefaultTimeout if zero

	// ReportInterval enables periodic summaries when positive.
	ReportInterval time.Duration
	HistorySize    int // size of the recent window in summaries
}

// Run opens the session and probes until the session fails or ctx is
// done. Replies are silent, requests that could not be sent count as
// timeouts. It returns a *LoopError if the session could
// not be opened or became unusable, nil if ctx ended the loop.
func (l *Loop) Run(ctx context.Context) error {
	logger := l.logger()

	session, err := l.Prober.Open(l.Target)
	if err != nil {
		logger.Error("could not create pinger", logging.Err(err))
		return &LoopError{Target: l.Target, Op: "open", Err: err}
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("closing pinger failed", logging.Err(err))
		}
	}()

	logger.Info(fmt.Sprintf("starting ping %s", l.Target))

	timeout := l.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var history *History
	if l.ReportInterval > 0 {
		size := l.HistorySize
		if size <= 0 {
			size = defaultHistorySize
		}
		h := NewHistory(size)
		history = &h
	}
	lastReport := time.Now()

	for ctx.Err() == nil {
		outcome, err := session.Probe(timeout)

		var sendErr *SendError
		if errors.As(err, &sendErr) {
			logger.Debug("sending echo request failed", logging.Err(sendErr.Err))
			outcome, err = TimedOut, nil
		}
		if err != nil {
			logger.Error("pinger failed", logging.Err(err))
			return &LoopError{Target: l.Target, Op: "probe", Err: err}
		}

		if outcome == TimedOut {
			logger.Error(fmt.Sprintf("ping %s timeout.", l.Target))
		}

		if history != nil {
			history.AddOutcome(outcome)
			if time.Since(lastReport) >= l.ReportInterval {
				l.report(logger, history.ComputeAndClear())
				lastReport = time.Now()
			}
		}
	}

	logger.Debug("stopping ping")
	return nil
}

func (l *Loop) report(logger *slog.Logger, s *Summary) {
	if s == nil {
		return
	}
	logger.Info(fmt.Sprintf("ping %s summary", l.Target),
		"sent", s.PacketsSent,
		"lost", s.PacketsLost,
		"loss", fmt.Sprintf("%0.2f%%", s.LossPct()),
		"max_lost_in_row", s.MaxLostInRow,
		"recent_loss", fmt.Sprintf("%0.2f%%", s.RecentLossPct),
	)
}

func (l *Loop) logger() *slog.Logger {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("target", l.Target.String())
}
