// Command sse_load opens many concurrent subscriptions to the investment event stream and reports
// how many events arrive and whether each stream delivers them in journal order.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
)

type counters struct {
	connected   atomic.Int64
	connectErrs atomic.Int64
	streamErrs  atomic.Int64
	events      atomic.Int64
	outOfOrder  atomic.Int64
	maxID       atomic.Uint64
}

func (c *counters) seen(id uint64) {
	for {
		cur := c.maxID.Load()
		if id <= cur || c.maxID.CompareAndSwap(cur, id) {
			return
		}
	}
}

func main() {
	var (
		baseURL      string
		account      string
		lastEventID  uint64
		connections  int
		testDuration time.Duration
		rampUp       time.Duration
	)

	flag.StringVar(&baseURL, "url", "http://localhost:8080/events/stream", "event stream endpoint URL")
	flag.StringVar(&account, "account", "", "only stream events of this account")
	flag.Uint64Var(&lastEventID, "from", 0, "resume after this journal index")
	flag.IntVar(&connections, "conns", 1000, "number of concurrent connections to open")
	flag.DurationVar(&testDuration, "dur", 60*time.Second, "test duration (0 for until interrupted)")
	flag.DurationVar(&rampUp, "ramp", 0, "ramp-up duration (spread connection starts across this window)")
	flag.Parse()

	l, _ := zap.NewDevelopment()
	defer l.Sync()

	if connections <= 0 {
		l.Fatal("invalid conns", zap.Int("conns", connections))
	}

	target, err := streamURL(baseURL, account, lastEventID)
	if err != nil {
		l.Fatal("invalid url", zap.Error(err))
	}

	if rampUp == 0 && connections > 100 {
		// 1 second per 500 connections
		rampUp = max(time.Duration(connections/500)*time.Second, time.Second)
	}

	l.Info("starting event stream load",
		zap.String("url", target),
		zap.Int("conns", connections),
		zap.Duration("duration", testDuration),
		zap.Duration("ramp", rampUp))

	client := &http.Client{
		Transport: &http.Transport{
			MaxConnsPerHost:     connections + 100,
			MaxIdleConns:        connections + 100,
			MaxIdleConnsPerHost: connections + 100,
			DisableCompression:  true,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if testDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, testDuration)
		defer cancel()
	}

	var (
		c     counters
		wg    sync.WaitGroup
		start = time.Now()
	)

	var interval time.Duration
	if rampUp > 0 {
		interval = rampUp / time.Duration(connections)
	}

	go report(ctx, l, &c, start)

	for i := 0; i < connections && ctx.Err() == nil; i++ {
		if i > 0 && interval > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(interval):
			}
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			subscribe(ctx, client, target, &c)
		}()
	}

	wg.Wait()

	elapsed := max(time.Since(start), time.Millisecond)
	fmt.Printf("done: connected=%d connect_errs=%d stream_errs=%d events=%d out_of_order=%d max_id=%d elapsed=%s events/s=%.2f\n",
		c.connected.Load(),
		c.connectErrs.Load(),
		c.streamErrs.Load(),
		c.events.Load(),
		c.outOfOrder.Load(),
		c.maxID.Load(),
		elapsed.Truncate(time.Millisecond),
		float64(c.events.Load())/elapsed.Seconds(),
	)
}

func streamURL(base, account string, from uint64) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	if account != "" {
		q.Set("account", account)
	}
	if from > 0 {
		q.Set("last_event_id", strconv.FormatUint(from, 10))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// subscribe reads one stream until ctx is done. Every event carries an "id:" line with its journal
// index, which must grow within a stream.
func subscribe(ctx context.Context, client *http.Client, target string, c *counters) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		c.connectErrs.Add(1)
		return
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(req)
	if err != nil {
		c.connectErrs.Add(1)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.connectErrs.Add(1)
		return
	}

	c.connected.Add(1)
	reader := bufio.NewReader(resp.Body)

	var last uint64
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if ctx.Err() == nil {
				c.streamErrs.Add(1)
			}
			return
		}

		raw, ok := strings.CutPrefix(strings.TrimRight(line, "\r\n"), "id:")
		if !ok {
			continue
		}
		id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			c.streamErrs.Add(1)
			continue
		}

		c.events.Add(1)
		c.seen(id)
		if id <= last {
			c.outOfOrder.Add(1)
		}
		last = id
	}
}

func report(ctx context.Context, l *zap.Logger, c *counters, start time.Time) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Info("status",
				zap.Int64("connected", c.connected.Load()),
				zap.Int64("connect_errs", c.connectErrs.Load()),
				zap.Int64("stream_errs", c.streamErrs.Load()),
				zap.Int64("events", c.events.Load()),
				zap.Int64("out_of_order", c.outOfOrder.Load()),
				zap.Duration("elapsed", time.Since(start).Truncate(time.Second)))
		}
	}
}
