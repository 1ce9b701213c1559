// workers/reconciler.go
package workers

import (
	"context"
	"log"
	"time"

	"school_asset_loan/db"
	"school_asset_loan/realtime"
)

// StartReconciler 周期清扫物品状态投影：逾期的标 overdue，
// 漂移的缓存列修回来。ctx 取消即退出。
func StartReconciler(ctx context.Context, repo *db.Repo, hub *realtime.Hub, every time.Duration) {
	if every <= 0 {
		every = 10 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		log.Printf("reconciler started, sweeping every %s", every)
		for {
			select {
			case <-ctx.Done():
				log.Println("reconciler stopped")
				return
			case <-ticker.C:
				sweep(ctx, repo, hub)
			}
		}
	}()
}

func sweep(ctx context.Context, repo *db.Repo, hub *realtime.Hub) {
	fixed, err := repo.ReconcileAllItems(ctx)
	if err != nil {
		log.Printf("reconciler sweep: %v", err)
		return
	}
	if fixed > 0 {
		log.Printf("reconciler fixed %d item status(es)", fixed)
		hub.Publish(realtime.Event{Table: "items", Action: "update", ID: ""})
	}
}
