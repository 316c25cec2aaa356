package usecase

import (
	"context"
	"fmt"

	domrepo "PaperTune/internal/domain/repository"
	"PaperTune/pkg/queue"
)

// AlertJobType is the queue message type for trim alerts.
const AlertJobType = "trim_alert"

// TrimAlert is the queue payload for an escalated trim signal.
type TrimAlert struct {
	Ticker         string  `json:"ticker"`
	Direction      string  `json:"direction"`
	Score          int     `json:"score"`
	Recommendation string  `json:"recommendation"`
	TrimPercent    float64 `json:"trim_percent"`
	Reason         string  `json:"reason"`
}

// TrimAlertJob drains queued alerts into the notifier.
type TrimAlertJob struct {
	notifier domrepo.Notifier
}

func NewTrimAlertJob(notifier domrepo.Notifier) *TrimAlertJob {
	return &TrimAlertJob{notifier: notifier}
}

func (j *TrimAlertJob) Name() string { return "trim-alert-notifier" }
func (j *TrimAlertJob) Type() string { return AlertJobType }

func (j *TrimAlertJob) Handle(ctx context.Context, payload interface{}) error {
	alert, err := queue.ParsePayload[TrimAlert](payload)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("%s %s", alert.Ticker, alert.Recommendation)
	text := fmt.Sprintf("%s %s score=%d trim=%.0f%%: %s",
		alert.Ticker, alert.Direction, alert.Score, alert.TrimPercent, alert.Reason)
	return j.notifier.Notify(ctx, subject, text)
}

var _ queue.Job = (*TrimAlertJob)(nil)
