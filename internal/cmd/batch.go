package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	netmail "net/mail"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vnykmshr/sendgate/internal/server"
	"github.com/vnykmshr/sendgate/pkg/delivery"
	"github.com/vnykmshr/sendgate/pkg/mail"
)

// HeaderBatchID tags every message of a batch run.
const HeaderBatchID = "X-Batch-Id"

const shutdownTimeout = 5 * time.Second

type batchFlags struct {
	recipients  string
	workers     int
	metricsAddr string
	flushCron   string
	redisAddr   string
	redisKey    string
	redisTTL    time.Duration
}

// batchSummary is printed when a batch finishes.
type batchSummary struct {
	BatchID    string        `json:"batch_id"`
	Total      int           `json:"total"`
	Successful int           `json:"successful"`
	Failed     int           `json:"failed"`
	Results    []mail.Result `json:"results"`
}

func newBatchCmd(global *globalFlags) *cobra.Command {
	msg := &messageFlags{}
	flags := &batchFlags{}

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Send a template to every address in a recipients file",
		Long: `Read recipients from a file (one address per line, # starts a comment)
and send the rendered template to each of them concurrently. All workers
share one rate gate.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBatch(cmd, global, msg, flags)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&flags.recipients, "recipients", "", "file with one recipient address per line")
	fs.IntVar(&flags.workers, "workers", 4, "concurrent senders")
	fs.StringVar(&flags.metricsAddr, "metrics-addr", "", "serve /metrics, /snapshot and /gate on this address while sending")
	fs.StringVar(&flags.flushCron, "flush-cron", "", "persist delivery metrics on this cron schedule, e.g. \"@every 30s\"")
	fs.StringVar(&flags.redisAddr, "redis-addr", "", "persist delivery metrics to this Redis server")
	fs.StringVar(&flags.redisKey, "redis-key", "sendgate:delivery", "Redis key prefix; the batch ID is appended")
	fs.DurationVar(&flags.redisTTL, "redis-ttl", 7*24*time.Hour, "expiry of the Redis snapshot (0 keeps it)")
	msg.register(cmd)

	return cmd
}

func runBatch(cmd *cobra.Command, global *globalFlags, msg *messageFlags, flags *batchFlags) error {
	if flags.recipients == "" {
		return errors.New("--recipients is required")
	}
	if flags.workers < 1 {
		return errors.New("--workers must be at least 1")
	}
	if flags.flushCron != "" && flags.redisAddr == "" && msg.metricsFile == "" {
		return errors.New("--flush-cron needs --redis-addr or --metrics-file")
	}

	recipients, err := readRecipients(flags.recipients)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		return errors.New("no recipients found in file")
	}

	a, err := newApp(global)
	if err != nil {
		return err
	}
	defer a.logger.Sync() // nolint:errcheck // stderr sync fails on some terminals

	batchID := uuid.NewString()
	logger := a.logger.With(zap.String("batch_id", batchID))

	c, err := msg.composer(a.cfg.Mail)
	if err != nil {
		return err
	}
	c.headers[HeaderBatchID] = batchID

	emails := make([]mail.Email, 0, len(recipients))
	for _, to := range recipients {
		email, err := c.compose(to)
		if err != nil {
			return fmt.Errorf("render for %s: %w", to, err)
		}
		emails = append(emails, email)
	}

	sink, closeSink, err := batchSink(flags, msg, batchID)
	if err != nil {
		return err
	}
	defer closeSink()

	var flusher *delivery.Flusher
	if flags.flushCron != "" {
		flusher, err = delivery.NewFlusher(a.tracker, sink, delivery.FlusherConfig{
			Schedule: flags.flushCron,
			Logger:   logger,
		})
		if err != nil {
			return err
		}
		if err := flusher.Start(); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	g, gctx := errgroup.WithContext(ctx)

	var srv *server.Server
	if flags.metricsAddr != "" {
		srv = server.New(server.Config{
			Addr:     flags.metricsAddr,
			Gatherer: a.gatherer,
			Tracker:  a.tracker,
			Gate:     a.gate,
			Logger:   logger,
		})
		g.Go(srv.Start)
	}

	var results []mail.Result
	g.Go(func() error {
		if srv != nil {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Warn("metrics server shutdown failed", zap.Error(err))
				}
			}()
		}

		logger.Info("batch started",
			zap.Int("recipients", len(emails)),
			zap.Int("workers", flags.workers))

		var err error
		results, err = a.sender.SendBatch(gctx, emails, flags.workers)
		return err
	})

	runErr := g.Wait()

	if flusher != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := flusher.Stop(stopCtx); err != nil {
			logger.Error("final delivery metrics flush failed", zap.Error(err))
		}
		cancel()
	} else if sink != nil {
		if err := a.tracker.Persist(context.Background(), sink); err != nil {
			logger.Error("failed to save delivery metrics", zap.Error(err))
		}
	}

	if runErr != nil {
		return runErr
	}

	summary := batchSummary{BatchID: batchID, Total: len(results), Results: results}
	for _, r := range results {
		if r.Status == mail.StatusSuccess {
			summary.Successful++
		} else {
			summary.Failed++
		}
	}
	if err := printJSON(cmd, summary); err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d sends failed", summary.Failed, summary.Total)
	}
	return nil
}

// batchSink picks where delivery metrics go: Redis when an address is set,
// otherwise the metrics file. It returns a nil sink when neither is set.
func batchSink(flags *batchFlags, msg *messageFlags, batchID string) (delivery.Sink, func(), error) {
	if flags.redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: flags.redisAddr})
		sink := delivery.RedisSink{
			Client: client,
			Key:    flags.redisKey + ":" + batchID,
			TTL:    flags.redisTTL,
		}
		return sink, func() { _ = client.Close() }, nil
	}
	if msg.metricsFile != "" {
		return delivery.FileSink{Path: msg.metricsFile}, func() {}, nil
	}
	return nil, func() {}, nil
}

func readRecipients(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close() // nolint:errcheck // best-effort cleanup on read-only file

	recipients := make([]string, 0)
	scanner := bufio.NewScanner(file)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		addr, err := netmail.ParseAddress(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid recipient on line %d: %w", line, err)
		}
		recipients = append(recipients, addr.Address)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return recipients, nil
}
