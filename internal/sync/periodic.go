package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Periodic triggers sync attempts on a fixed interval. Overlap is handled
// by the engine's single-flight rule: a tick landing mid-attempt is dropped.
type Periodic struct {
	cron   *cron.Cron
	engine *Engine
}

func NewPeriodic(engine *Engine, interval time.Duration) (*Periodic, error) {
	if interval < time.Second {
		return nil, fmt.Errorf("sync: interval too short: %s", interval)
	}
	p := &Periodic{
		cron:   cron.New(cron.WithSeconds()),
		engine: engine,
	}
	spec := fmt.Sprintf("@every %ds", int(interval.Seconds()))
	if _, err := p.cron.AddFunc(spec, p.tick); err != nil {
		return nil, fmt.Errorf("sync: schedule interval: %w", err)
	}
	return p, nil
}

func (p *Periodic) tick() {
	res, err := p.engine.Sync(context.Background())
	switch {
	case errors.Is(err, ErrSyncInFlight):
		// A previous attempt is still running; this tick is a no-op.
	case err != nil:
		log.Printf("sync: periodic attempt failed: %v", err)
	default:
		log.Printf("sync: downloaded %d, merged %d, uploaded %d in %s",
			res.Downloaded, res.Merged, res.Uploaded, res.Duration.Round(time.Millisecond))
	}
}

func (p *Periodic) Start() {
	p.cron.Start()
}

func (p *Periodic) Stop() {
	ctx := p.cron.Stop()
	<-ctx.Done()
}
