package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"herwigbench/internal/model"
	"herwigbench/internal/report"

	"github.com/slack-go/slack"
	"github.com/spf13/viper"
)

// Event types
const (
	EventStart       = "on_start"
	EventComplete    = "on_complete"
	EventInterrupted = "on_interrupted"
	EventFailure     = "on_failure"
)

// SlackPoster is the part of *slack.Client the manager uses.
type SlackPoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Manager posts experiment notifications to Slack. A Manager without a
// client is a no-op.
type Manager struct {
	client    SlackPoster
	channelID string
	logger    *slog.Logger

	// threads maps experiment id to the timestamp of its start message.
	threads map[string]string
}

// NewManager reads notifications.slack.* and SLACK_BOT_USER_TOKEN.
func NewManager(logger *slog.Logger) *Manager {
	m := &Manager{logger: logger, threads: make(map[string]string)}
	if !viper.GetBool("notifications.slack.enabled") {
		return m
	}

	botToken := os.Getenv("SLACK_BOT_USER_TOKEN")
	if botToken == "" {
		logger.Warn("SLACK_BOT_USER_TOKEN not set, slack notifications disabled")
		return m
	}

	m.client = slack.New(botToken)
	m.channelID = viper.GetString("notifications.slack.channel")
	return m
}

func newManagerWithClient(client SlackPoster, channelID string, logger *slog.Logger) *Manager {
	return &Manager{client: client, channelID: channelID, logger: logger, threads: make(map[string]string)}
}

// Enabled reports whether a provider is configured.
func (m *Manager) Enabled() bool {
	return m.client != nil
}

func (m *Manager) isEnabled(eventType string) bool {
	return m.client != nil && viper.GetBool("notifications.slack.events."+eventType)
}

// Notify posts message if eventType is enabled, as a reply in threadTS
// when one is given. It returns the posted message's timestamp.
func (m *Manager) Notify(ctx context.Context, eventType, message, threadTS string) (string, error) {
	if !m.isEnabled(eventType) {
		return "", nil
	}
	m.logger.Debug("Sending notification", "event", eventType)

	channelID := m.channelID
	if channelID == "" {
		channelID = "#general"
	}
	opts := []slack.MsgOption{slack.MsgOptionText(message, false)}
	if threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}

	_, ts, err := m.client.PostMessageContext(ctx, channelID, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to send slack notification: %w", err)
	}
	return ts, nil
}

// ExperimentStarted announces the experiment. Later messages about it are
// threaded under this one.
func (m *Manager) ExperimentStarted(ctx context.Context, exp *model.Experiment) error {
	msg := fmt.Sprintf(":stopwatch: %s benchmark `%s` started: %d runs (+%d warm-up), %d events, %d jobs, %s executor",
		exp.Project, shortID(exp.ID), exp.Runs, exp.Warmup, exp.Events, exp.Jobs, exp.Executor)
	ts, err := m.Notify(ctx, EventStart, msg, "")
	if err != nil {
		return err
	}
	if ts != "" {
		m.threads[exp.ID] = ts
	}
	return nil
}

// ObserveMeasurement ignores kept rows; only failures are posted.
func (m *Manager) ObserveMeasurement(context.Context, *model.Experiment, model.PhaseMeasurement) error {
	return nil
}

// ObservePhaseFailure reports a failed phase as a reply in the experiment's
// thread.
func (m *Manager) ObservePhaseFailure(ctx context.Context, exp *model.Experiment, pm model.PhaseMeasurement) error {
	msg := fmt.Sprintf(":x: %s failed (exit code %d): %s", pm.TaskName, pm.ExitCode, pm.Error)
	_, err := m.Notify(ctx, EventFailure, msg, m.threads[exp.ID])
	return err
}

// Finished posts the outcome of an experiment with its report summaries.
func (m *Manager) Finished(ctx context.Context, exp *model.Experiment, summaries []report.Summary, files []string) error {
	event := EventComplete
	if exp.Interrupted {
		event = EventInterrupted
	}
	_, err := m.Notify(ctx, event, FormatSummary(exp, summaries, files), m.threads[exp.ID])
	return err
}

// FormatSummary renders the completion message.
func FormatSummary(exp *model.Experiment, summaries []report.Summary, files []string) string {
	var b strings.Builder
	if exp.Interrupted {
		fmt.Fprintf(&b, ":warning: %s benchmark `%s` was interrupted", exp.Project, shortID(exp.ID))
	} else {
		fmt.Fprintf(&b, ":white_check_mark: %s benchmark `%s` finished", exp.Project, shortID(exp.ID))
	}
	if !exp.FinishedAt.IsZero() {
		fmt.Fprintf(&b, " in %s", exp.FinishedAt.Sub(exp.StartedAt).Round(time.Second))
	}
	b.WriteString("\n")
	for _, s := range summaries {
		fmt.Fprintf(&b, "• *%s*: %d rows, %d failed, %.1fs ± %.1fs, %.4g kWh, %.4g kg CO2eq\n",
			s.Label, s.Count, s.Failures, s.Duration.Mean, s.Duration.StdDev,
			s.EnergyConsumed.Mean*float64(s.Count-s.Failures), s.Emissions.Mean*float64(s.Count-s.Failures))
	}
	for _, f := range files {
		fmt.Fprintf(&b, "• report: `%s`\n", f)
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
