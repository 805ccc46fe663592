// Package notify posts catch and tournament announcements to Discord webhooks.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/grudge-angeler/backend/internal/scores"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	ChannelFish       = "fish"
	ChannelTournament = "tournament"

	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
	StatusDropped = "dropped"

	defaultTimeout     = 10 * time.Second
	defaultResultsSize = 10
	// Discord allows roughly 30 webhook posts per minute.
	defaultRateLimit = rate.Limit(0.5)
	defaultBurst     = 5
	maxErrorBody     = 512
)

var (
	errMissingResultsReader = errors.New("notify: results reader is required for tournament results")
	errRateLimited          = errors.New("notify: rate limit")
)

// ResultsReader lists the ranked entries for a tournament day.
type ResultsReader interface {
	ListTournamentResults(ctx context.Context, date string, limit int) ([]scores.TournamentEntry, error)
}

// DeliveryRecorder observes webhook delivery outcomes.
type DeliveryRecorder interface {
	RecordDelivery(channel string, status string)
}

// Config wires a Dispatcher. Empty webhook URLs disable their channel.
type Config struct {
	FishWebhookURL       string
	TournamentWebhookURL string
	PublicBaseURL        string
	Timeout              time.Duration
	HTTPClient           *http.Client
	RateLimit            rate.Limit
	Burst                int
	Results              ResultsReader
	ResultsSize          int
	Recorder             DeliveryRecorder
	Clock                func() time.Time
	Logger               *zap.Logger
}

// Dispatcher formats embeds and posts them to the configured webhooks.
type Dispatcher struct {
	fishURL       string
	tournamentURL string
	baseURL       string
	timeout       time.Duration
	client        *http.Client
	limiter       *rate.Limiter
	results       ResultsReader
	resultsSize   int
	recorder      DeliveryRecorder
	clock         func() time.Time
	logger        *zap.Logger
	inflight      sync.WaitGroup
}

// NewDispatcher applies defaults and builds the shared webhook rate limiter.
func NewDispatcher(cfg Config) *Dispatcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = defaultRateLimit
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}
	resultsSize := cfg.ResultsSize
	if resultsSize <= 0 {
		resultsSize = defaultResultsSize
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		fishURL:       strings.TrimSpace(cfg.FishWebhookURL),
		tournamentURL: strings.TrimSpace(cfg.TournamentWebhookURL),
		baseURL:       strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/"),
		timeout:       timeout,
		client:        client,
		limiter:       rate.NewLimiter(limit, burst),
		results:       cfg.Results,
		resultsSize:   resultsSize,
		recorder:      cfg.Recorder,
		clock:         clock,
		logger:        logger,
	}
}

// NotifyCatch posts a catch embed in the background. It never reports failure to the caller.
// Catches are not queued: one that cannot get a rate limiter slot within the
// dispatcher timeout is dropped and recorded as StatusDropped. With the default
// limit that happens once a burst exceeds roughly ten catches.
func (d *Dispatcher) NotifyCatch(ctx context.Context, event CatchEvent) {
	if d.fishURL == "" {
		d.record(ChannelFish, StatusSkipped)
		return
	}
	embed := catchEmbed(event, d.baseURL, d.clock())
	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()
		if err := d.send(sendCtx, ChannelFish, d.fishURL, embed); err != nil {
			message := "catch notification failed"
			if errors.Is(err, errRateLimited) {
				message = "catch notification dropped"
			}
			d.logger.Warn(message,
				zap.String("fish", event.FishName),
				zap.String("rarity", event.Rarity),
				zap.Error(err))
		}
	}()
}

func (d *Dispatcher) TournamentStarted(ctx context.Context, date string, endsIn time.Duration) error {
	if d.tournamentURL == "" {
		d.record(ChannelTournament, StatusSkipped)
		return nil
	}
	return d.send(ctx, ChannelTournament, d.tournamentURL, tournamentStartEmbed(date, endsIn, d.baseURL, d.clock()))
}

func (d *Dispatcher) TournamentReminder(ctx context.Context, date string, endsIn time.Duration) error {
	if d.tournamentURL == "" {
		d.record(ChannelTournament, StatusSkipped)
		return nil
	}
	return d.send(ctx, ChannelTournament, d.tournamentURL, tournamentReminderEmbed(date, endsIn, d.baseURL, d.clock()))
}

// TournamentEnded posts the final standings for date. Nothing is sent when nobody entered.
func (d *Dispatcher) TournamentEnded(ctx context.Context, date string) error {
	if d.tournamentURL == "" {
		d.record(ChannelTournament, StatusSkipped)
		return nil
	}
	if d.results == nil {
		return errMissingResultsReader
	}
	results, err := d.results.ListTournamentResults(ctx, date, d.resultsSize)
	if err != nil {
		return fmt.Errorf("notify: load tournament results: %w", err)
	}
	if len(results) == 0 {
		d.record(ChannelTournament, StatusSkipped)
		d.logger.Info("tournament ended without participants", zap.String("date", date))
		return nil
	}
	return d.send(ctx, ChannelTournament, d.tournamentURL, tournamentResultsEmbed(date, results, d.baseURL, d.clock()))
}

// Wait blocks until background catch notifications finish.
func (d *Dispatcher) Wait() {
	d.inflight.Wait()
}

func (d *Dispatcher) send(ctx context.Context, channel string, url string, embed Embed) error {
	err := d.post(ctx, url, webhookPayload{Embeds: []Embed{embed}})
	if errors.Is(err, errRateLimited) {
		d.record(channel, StatusDropped)
		return err
	}
	if err != nil {
		d.record(channel, StatusFailed)
		return err
	}
	d.record(channel, StatusSent)
	return nil
}

func (d *Dispatcher) post(ctx context.Context, url string, payload webhookPayload) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", errRateLimited, err)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: encode payload: %w", err)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := d.client.Do(request)
	if err != nil {
		return fmt.Errorf("notify: post webhook: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorBody))
		return fmt.Errorf("notify: webhook responded %d: %s", response.StatusCode, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, response.Body)
	return nil
}

func (d *Dispatcher) record(channel string, status string) {
	if d.recorder == nil {
		return
	}
	d.recorder.RecordDelivery(channel, status)
}
