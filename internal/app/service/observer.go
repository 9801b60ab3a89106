package service

import "go.uber.org/zap"

// Redirect outcomes reported through Observer.Resolved.
const (
	OutcomeRedirected = "redirected"
	OutcomeNotFound   = "not_found"
	OutcomeInvalid    = "invalid"
	OutcomeError      = "error"
)

// Observer receives operational signals from the services, most importantly
// failures on best-effort paths that never reach the caller.
type Observer interface {
	LinkCreated(id string, attempts int)
	IDCollision(id string, attempt int)
	CollisionExhausted(attempts int)
	Resolved(id string, outcome string)
	ClickRecorded(id string)
	ClickFailed(id string, err error)
}

// NopObserver discards every signal.
type NopObserver struct{}

func (NopObserver) LinkCreated(string, int)   {}
func (NopObserver) IDCollision(string, int)   {}
func (NopObserver) CollisionExhausted(int)    {}
func (NopObserver) Resolved(string, string)   {}
func (NopObserver) ClickRecorded(string)      {}
func (NopObserver) ClickFailed(string, error) {}

// LogObserver writes signals to a zap logger.
type LogObserver struct {
	logger *zap.Logger
}

// NewLogObserver returns an Observer logging through logger.
func NewLogObserver(logger *zap.Logger) *LogObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogObserver{logger: logger}
}

func (o *LogObserver) LinkCreated(id string, attempts int) {
	o.logger.Debug("short link created", zap.String("id", id), zap.Int("attempts", attempts))
}

func (o *LogObserver) IDCollision(id string, attempt int) {
	o.logger.Warn("short id collision", zap.String("id", id), zap.Int("attempt", attempt))
}

func (o *LogObserver) CollisionExhausted(attempts int) {
	o.logger.Error("short id collision retries exhausted", zap.Int("attempts", attempts))
}

func (o *LogObserver) Resolved(id string, outcome string) {
	o.logger.Debug("short link resolved", zap.String("id", id), zap.String("outcome", outcome))
}

func (o *LogObserver) ClickRecorded(id string) {
	o.logger.Debug("click recorded", zap.String("id", id))
}

func (o *LogObserver) ClickFailed(id string, err error) {
	o.logger.Warn("failed to record click", zap.String("id", id), zap.Error(err))
}

type multiObserver []Observer

// Observers fans every signal out to all non-nil observers.
func Observers(observers ...Observer) Observer {
	var out multiObserver
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

func (m multiObserver) LinkCreated(id string, attempts int) {
	for _, o := range m {
		o.LinkCreated(id, attempts)
	}
}

func (m multiObserver) IDCollision(id string, attempt int) {
	for _, o := range m {
		o.IDCollision(id, attempt)
	}
}

func (m multiObserver) CollisionExhausted(attempts int) {
	for _, o := range m {
		o.CollisionExhausted(attempts)
	}
}

func (m multiObserver) Resolved(id string, outcome string) {
	for _, o := range m {
		o.Resolved(id, outcome)
	}
}

func (m multiObserver) ClickRecorded(id string) {
	for _, o := range m {
		o.ClickRecorded(id)
	}
}

func (m multiObserver) ClickFailed(id string, err error) {
	for _, o := range m {
		o.ClickFailed(id, err)
	}
}
