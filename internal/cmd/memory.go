package cmd

import (
	"context"
	"log/slog"
	"os"
	"runtime"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/c2h5oh/datasize"
	"github.com/shirou/gopsutil/v3/process"
)

// logMemoryUsage logs the heap and resident set sizes of the current process.
// Failures are logged and otherwise ignored.
func logMemoryUsage(ctx context.Context, logger *slog.Logger) {
	ms := &runtime.MemStats{}
	runtime.ReadMemStats(ms)

	p, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		logger.WarnContext(ctx, "getting process", slogutil.KeyError, err)

		return
	}

	mi, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		logger.WarnContext(ctx, "getting memory info", slogutil.KeyError, err)

		return
	}

	logger.InfoContext(
		ctx,
		"memory usage",
		"heap", datasize.ByteSize(ms.Alloc).HR(),
		"rss", datasize.ByteSize(mi.RSS).HR(),
	)
}
