package progress

import (
	"time"

	"github.com/lawnchairsociety/questsim/internal/logger"
)

// LogObserver writes events to the process logger. Simulation ticks are
// rate limited per study; every other kind is always logged.
type LogObserver struct {
	interval time.Duration
	now      func() time.Time
	last     map[string]time.Time
}

// NewLogObserver logs at most one simulation tick per study per interval.
func NewLogObserver(interval time.Duration) *LogObserver {
	return &LogObserver{
		interval: interval,
		now:      time.Now,
		last:     make(map[string]time.Time),
	}
}

func (l *LogObserver) Observe(e Event) {
	switch e.Kind {
	case KindSimulation:
		now := l.now()
		if e.Completed < e.Total && now.Sub(l.last[e.Label]) < l.interval {
			return
		}
		l.last[e.Label] = now
		logger.Info("study progress",
			"study", e.Label,
			"completed", e.Completed,
			"total", e.Total,
			"percent", percent(e.Completed, e.Total))
	case KindStudyStarted:
		logger.Info("study started", "study", e.Label, "total", e.Total)
	case KindStudyDone:
		logger.Info("study completed", "study", e.Label)
	case KindStudySkipped:
		logger.Warning("study skipped", "study", e.Label, "reason", e.Message)
	case KindStudyFailed:
		logger.Error("study failed", "study", e.Label, "error", e.Message)
	case KindDocket:
		logger.Info("docket progress", "docket", e.Label, "studies_completed", e.Completed, "studies", e.Total)
	}
}

func percent(done, total uint64) float64 {
	if total == 0 {
		return 100
	}
	return float64(done) / float64(total) * 100
}
