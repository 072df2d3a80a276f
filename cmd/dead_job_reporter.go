package main

import (
	"context"
	"log"
	"time"

	"nfseBack/internal/services"
)

const (
	deadJobReportInterval = 5 * time.Minute
	deadJobReportTimeout  = 30 * time.Second
)

// startDeadJobReporter periodically logs how many sales exhausted their retries.
func startDeadJobReporter(ctx context.Context, svc *services.SaleService, infoLog, errorLog *log.Logger) {
	if svc == nil {
		return
	}

	go func() {
		ticker := time.NewTicker(deadJobReportInterval)
		defer ticker.Stop()

		run := func() {
			runCtx, cancel := context.WithTimeout(ctx, deadJobReportTimeout)
			defer cancel()

			counts, err := svc.QueueCounts(runCtx)
			if err != nil {
				if errorLog != nil {
					errorLog.Printf("dead job reporter: failed to read queue counts: %v", err)
				}
				return
			}
			if counts.Dead > 0 && infoLog != nil {
				infoLog.Printf("dead job reporter: %d sales exhausted their retries (waiting=%d active=%d delayed=%d)",
					counts.Dead, counts.Waiting, counts.Active, counts.Delayed)
			}
		}

		run()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				run()
			}
		}
	}()
}
