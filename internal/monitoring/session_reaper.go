package monitoring

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/gkasar/healthdash-be/internal/services"
)

// SessionReaper periodically sweeps expired session rows. Validation
// re-checks expiry at read time, so the sweep is storage hygiene only and
// correctness never depends on it running.
type SessionReaper struct {
	identitySvc services.IdentityServiceProvider
	schedule    string
	cron        *cron.Cron
}

// NewSessionReaper creates a reaper that runs on the given cron schedule
// (standard five-field expressions or descriptors like "@hourly").
func NewSessionReaper(identitySvc services.IdentityServiceProvider, schedule string) *SessionReaper {
	return &SessionReaper{
		identitySvc: identitySvc,
		schedule:    schedule,
		cron:        cron.New(),
	}
}

// Run starts the reaper. Invalid schedules are logged and disable the
// sweep; they never bring the process down.
func (r *SessionReaper) Run() {
	if _, err := r.cron.AddFunc(r.schedule, r.sweep); err != nil {
		log.Error().Err(err).Str("schedule", r.schedule).Msg("Invalid reaper schedule, expired-session sweep disabled")
		return
	}
	log.Info().Str("schedule", r.schedule).Msg("Starting expired-session reaper")

	// Sweep once immediately on start
	r.sweep()
	r.cron.Start()
}

// Stop halts the reaper. A sweep already in flight runs to completion.
func (r *SessionReaper) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	log.Info().Msg("Stopped expired-session reaper")
}

func (r *SessionReaper) sweep() {
	n, err := r.identitySvc.DeleteExpiredSessions()
	if err != nil {
		log.Error().Err(err).Msg("Expired-session sweep failed")
		return
	}
	if n > 0 {
		log.Info().Int64("deleted", n).Msg("Swept expired sessions")
	}
}
