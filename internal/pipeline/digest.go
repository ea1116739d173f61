package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/appmetry/appmetry/internal/store"
)

// runDailyDigest summarizes the last 24 hours — field changes plus run
// health — and mails it to the configured recipients. Delivery failures are
// logged per recipient and never fail the run; the digest is best-effort.
func (p *Pipeline) runDailyDigest(ctx context.Context) (store.RunMetadata, error) {
	now := p.now()
	since := now.Add(-24 * time.Hour).UnixMilli()

	changes, err := p.store.ListChangesSince(ctx, since, 500)
	if err != nil {
		return store.RunMetadata{}, err
	}
	completed, failed, err := p.store.CountRunsSince(ctx, since)
	if err != nil {
		return store.RunMetadata{}, err
	}

	body := digestBody(now, changes, completed, failed)
	subject := fmt.Sprintf("Marketplace digest %s: %d change(s)", now.UTC().Format("2006-01-02"), len(changes))

	meta := store.RunMetadata{ItemsScraped: len(changes)}
	if p.mailer == nil || len(p.config.DigestRecipients) == 0 {
		p.logger.Info("pipeline: digest composed, no mail configured", "changes", len(changes))
		return meta, nil
	}
	for _, to := range p.config.DigestRecipients {
		if err := p.mailer.Send(to, subject, body); err != nil {
			p.logger.Error("pipeline: digest mail failed", "to", to, "error", err)
			meta.ItemsFailed++
			continue
		}
	}
	p.logger.Info("pipeline: digest sent", "changes", len(changes), "recipients", len(p.config.DigestRecipients)-meta.ItemsFailed)
	return meta, nil
}

func digestBody(now time.Time, changes []*store.FieldChange, completed, failed int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Marketplace digest for %s\n\n", now.UTC().Format("2006-01-02"))
	fmt.Fprintf(&sb, "Runs in the last 24h: %d completed, %d failed\n\n", completed, failed)

	if len(changes) == 0 {
		sb.WriteString("No listing changes detected.\n")
		return sb.String()
	}

	fmt.Fprintf(&sb, "%d listing change(s):\n\n", len(changes))
	for _, c := range changes {
		fmt.Fprintf(&sb, "- [%s] %s: %s changed\n    was: %s\n    now: %s\n",
			c.EntityType, c.EntityKey, c.Field, truncate(c.OldValue, 200), truncate(c.NewValue, 200))
	}
	return sb.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
