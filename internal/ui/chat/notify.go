// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"
)

// changeNotifier turns transcript change hooks into throttled repaints.
// Signal never blocks; signals arriving while one is pending coalesce.
type changeNotifier struct {
	ch      chan struct{}
	limiter *rate.Limiter
}

// newChangeNotifier creates a notifier that repaints at most fps times a
// second. fps <= 0 disables throttling.
func newChangeNotifier(fps int) *changeNotifier {
	limit := rate.Inf
	if fps > 0 {
		limit = rate.Limit(fps)
	}
	return &changeNotifier{
		ch:      make(chan struct{}, 1),
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Signal records that the transcript changed.
func (n *changeNotifier) Signal() {
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

// Wait returns a command that blocks until the next signal, then waits for
// the frame budget and reports transcriptChangedMsg. It returns nil once
// ctx is done.
func (n *changeNotifier) Wait(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return nil
		case <-n.ch:
		}
		if err := n.limiter.Wait(ctx); err != nil {
			return nil
		}
		return transcriptChangedMsg{}
	}
}

// SetFPS changes the repaint cap.
func (n *changeNotifier) SetFPS(fps int) {
	if fps <= 0 {
		n.limiter.SetLimit(rate.Inf)
		return
	}
	n.limiter.SetLimit(rate.Limit(fps))
}
