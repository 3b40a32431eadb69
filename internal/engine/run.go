package engine

import (
	"os"
	"time"

	"github.com/sweeney/owmaster/internal/model"
)

// Run drives the two scan cadences until a signal arrives. A failing
// scan is logged and the loop keeps going; the source is expected to
// recover on a later cycle.
func (e *Engine) Run(src Source, fullTick, alarmTick <-chan time.Time, sig <-chan os.Signal, now func() time.Time) error {
	if now == nil {
		now = time.Now
	}

	// Prime channel states before the first ticker fires.
	e.scan(src, model.ScanFull, now())

	for {
		select {
		case s := <-sig:
			e.log.Info("shutting down", "signal", s.String())
			return nil
		case <-alarmTick:
			e.scan(src, model.ScanAlarm, now())
		case <-fullTick:
			e.scan(src, model.ScanFull, now())
		}
	}
}

func (e *Engine) scan(src Source, mode model.ScanMode, now time.Time) {
	batch, err := src.Scan(mode)
	if err != nil {
		e.log.Error("scan failed", "mode", mode.String(), "err", err)
		return
	}
	e.Cycle(batch, mode, now)
}
