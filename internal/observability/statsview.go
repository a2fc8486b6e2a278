package observability

import (
	"context"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
)

// StartStatsView serves the runtime charts on addr until ctx is done. An
// empty addr leaves the viewer off.
func StartStatsView(ctx context.Context, addr string) bool {
	if addr == "" {
		return false
	}
	viewer.SetConfiguration(viewer.WithTheme(viewer.ThemeWesteros), viewer.WithAddr(addr))
	mgr := statsview.New()
	go mgr.Start()
	go func() {
		<-ctx.Done()
		mgr.Stop()
	}()
	return true
}
