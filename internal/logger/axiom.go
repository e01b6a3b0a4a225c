package logger

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/axiomhq/axiom-go/axiom"
	"github.com/axiomhq/axiom-go/axiom/ingest"
)

const (
	axiomBatchSize  = 200
	axiomBufferSize = 1000
)

// axiomForwarder is an io.Writer that batches zerolog JSON lines into Axiom
// events. Debug lines stay local; the gutter search trace is debug-level.
type axiomForwarder struct {
	client  *axiom.Client
	dataset string
	events  chan axiom.Event
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

func newAxiomForwarder(token, orgID, dataset string, flushEvery time.Duration) (*axiomForwarder, error) {
	if dataset == "" {
		dataset = "dev_" + serviceName
	}
	if flushEvery <= 0 {
		flushEvery = 10 * time.Second
	}
	opts := []axiom.Option{axiom.SetToken(token)}
	if orgID != "" {
		opts = append(opts, axiom.SetOrganizationID(orgID))
	}
	c, err := axiom.NewClient(opts...)
	if err != nil {
		return nil, err
	}
	f := &axiomForwarder{
		client:  c,
		dataset: dataset,
		events:  make(chan axiom.Event, axiomBufferSize),
		done:    make(chan struct{}),
	}
	f.wg.Add(1)
	go f.run(flushEvery)
	return f, nil
}

func (f *axiomForwarder) Write(p []byte) (int, error) {
	ev, ok := toEvent(p)
	if !ok {
		return len(p), nil
	}
	select {
	case f.events <- ev:
	default:
		// buffer full, drop
	}
	return len(p), nil
}

// toEvent decodes one log line. ok is false for lines that are not forwarded.
func toEvent(line []byte) (axiom.Event, bool) {
	var ev map[string]any
	if err := json.Unmarshal(line, &ev); err != nil {
		ev = map[string]any{"message": string(line), "level": "info"}
	}
	if lvl, _ := ev["level"].(string); lvl == "debug" || lvl == "trace" {
		return nil, false
	}
	if _, ok := ev["service"]; !ok {
		ev["service"] = serviceName
	}
	if _, ok := ev[ingest.TimestampField]; !ok {
		ev[ingest.TimestampField] = time.Now()
	}
	return axiom.Event(ev), true
}

func (f *axiomForwarder) run(flushEvery time.Duration) {
	defer f.wg.Done()
	ticker := time.NewTicker(flushEvery)
	defer ticker.Stop()

	pending := make([]axiom.Event, 0, axiomBatchSize)
	flush := func() {
		if len(pending) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		_, _ = f.client.IngestEvents(ctx, f.dataset, pending)
		cancel()
		pending = pending[:0]
	}
	for {
		select {
		case <-f.done:
			for {
				select {
				case ev := <-f.events:
					pending = append(pending, ev)
				default:
					flush()
					return
				}
			}
		case <-ticker.C:
			flush()
		case ev := <-f.events:
			pending = append(pending, ev)
			if len(pending) >= axiomBatchSize {
				flush()
			}
		}
	}
}

// Close drains the buffer, sends the last batch and stops the loop.
func (f *axiomForwarder) Close() {
	f.once.Do(func() {
		close(f.done)
		f.wg.Wait()
	})
}
