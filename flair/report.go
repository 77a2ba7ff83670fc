package flair

import (
	"context"

	"github.com/modkit/tradeflair/flair/countstore"
	"github.com/modkit/tradeflair/flair/flagstore"
)

const (
	ReportSelfTag   = "Flair: Self-tagging"
	ReportNotTagged = "User not tagged in parent"
	ReportBanned    = "Flair: Banned user"
	ReportSuspended = "Flair: Suspended user"
)

func reportFlag(reason string) string {
	return "report:" + reason
}

// report files a moderator report against an item, at most once per (item, reason). All failures are logged
// and swallowed: a missing report never blocks the trade state machine.
func (eng *Engine) report(ctx context.Context, sc *ScanContext, itemID, permalink, reason string) {
	logger := sc.Logger.With("item", itemID, "reason", reason)
	exists, err := flagstore.Has(ctx, eng.Flags, itemID, reportFlag(reason))
	if err != nil {
		logger.Error("failed to read report flags", "err", err)
		return
	}
	if exists {
		logger.Debug("skipping report, already filed")
		return
	}
	if !eng.reportQuotaOK(ctx, sc) {
		return
	}
	if err := eng.Forum.Report(ctx, itemID, reason); err != nil {
		logger.Error("failed to file report", "err", err)
		return
	}
	logger.Info("filed report")
	reportsFiled.WithLabelValues(reason).Inc()
	if err := eng.Flags.Add(ctx, itemID, []string{reportFlag(reason)}); err != nil {
		logger.Error("failed to record report flag", "err", err)
	}
	if err := eng.Counters.Increment(ctx, "tradeflair-quota", "report"); err != nil {
		logger.Error("failed to increment report quota", "err", err)
	}
	if eng.Notifier != nil {
		if err := eng.Notifier.SendReport(ctx, itemID, permalink, reason); err != nil {
			logger.Error("failed to send report notification", "err", err)
		}
	}
}

// circuit breaker on the number of reports filed per day
func (eng *Engine) reportQuotaOK(ctx context.Context, sc *ScanContext) bool {
	quota := eng.Config.Trade.DailyReportQuota
	if quota <= 0 {
		return true
	}
	c, err := eng.Counters.GetCount(ctx, "tradeflair-quota", "report", countstore.PeriodDay)
	if err != nil {
		sc.Logger.Error("failed to read report quota", "err", err)
		return false
	}
	if c >= quota {
		sc.Logger.Warn("hit daily report quota", "quota", quota)
		return false
	}
	return true
}
