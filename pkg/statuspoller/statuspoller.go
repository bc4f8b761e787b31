// Polls the appliance for block-device inventory and RAID array status on a
// fixed cadence, independent of the push channel. Each successful poll fully
// replaces the previous snapshot; failures keep the last-known-good one.
package statuspoller

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/function61/gokit/ezhttp"
	"github.com/function61/gokit/logex"
	"github.com/komero-io/komero/pkg/komtypes"
	"github.com/robfig/cron/v3"
)

// DefaultCadence matches the panel's status refresh interval
const DefaultCadence = "@every 5s"

var cadenceParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// plain request/response fetches against the REST API. The URL set is
// swappable so a mode switch re-points in-flight pollers to the new backend.
type Client struct {
	mu   sync.Mutex
	urls *komtypes.RestClientUrlBuilder
}

func NewClient(urls *komtypes.RestClientUrlBuilder) *Client {
	return &Client{urls: urls}
}

// SetUrls re-points subsequent fetches, e.g. after an access-mode switch
func (c *Client) SetUrls(urls *komtypes.RestClientUrlBuilder) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.urls = urls
}

func (c *Client) endpoint() *komtypes.RestClientUrlBuilder {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.urls
}

func (c *Client) FetchInventory(ctx context.Context) ([]komtypes.Disk, error) {
	ctx, cancel := context.WithTimeout(ctx, ezhttp.DefaultTimeout10s)
	defer cancel()

	disks := []komtypes.Disk{}
	if _, err := ezhttp.Get(
		ctx,
		c.endpoint().StorageInventory(),
		ezhttp.RespondsJson(&disks, true),
	); err != nil {
		return nil, err
	}

	return disks, nil
}

func (c *Client) FetchArrayStatus(ctx context.Context) (*komtypes.ArrayStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, ezhttp.DefaultTimeout10s)
	defer cancel()

	status := &komtypes.ArrayStatus{}
	if _, err := ezhttp.Get(
		ctx,
		c.endpoint().MdraidStatus(),
		ezhttp.RespondsJson(status, true),
	); err != nil {
		return nil, err
	}

	return status, nil
}

// one full poll's worth of state
type Snapshot struct {
	Disks       []komtypes.Disk
	ArrayStatus *komtypes.ArrayStatus
	UpdatedAt   time.Time
}

type Poller struct {
	client   *Client
	schedule cron.Schedule
	onUpdate func(Snapshot) // called after each successful poll, from the poll goroutine

	mu       sync.Mutex
	lastGood *Snapshot

	logl *logex.Leveled
}

// cadence is a cron spec, normally DefaultCadence
func New(client *Client, cadence string, onUpdate func(Snapshot), logger *log.Logger) (*Poller, error) {
	schedule, err := cadenceParser.Parse(cadence)
	if err != nil {
		return nil, err
	}

	return &Poller{
		client:   client,
		schedule: schedule,
		onUpdate: onUpdate,
		logl:     logex.Levels(logger),
	}, nil
}

// Task runs the poll loop until ctx cancel; start it under a taskrunner.
// Polls once immediately so the UI has data before the first tick.
func (p *Poller) Task() func(ctx context.Context) error {
	return func(ctx context.Context) error {
		p.pollOnce(ctx)

		for {
			select {
			case <-time.After(time.Until(p.schedule.Next(time.Now()))):
				p.pollOnce(ctx)
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// RefreshNow forces an immediate out-of-band poll (used right after an
// operation finishes or a resync is stopped).
func (p *Poller) RefreshNow(ctx context.Context) {
	p.pollOnce(ctx)
}

// Snapshot returns the last-known-good state; ok=false before the first
// successful poll.
func (p *Poller) Snapshot() (Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.lastGood == nil {
		return Snapshot{}, false
	}

	return *p.lastGood, true
}

func (p *Poller) pollOnce(ctx context.Context) {
	status, err := p.client.FetchArrayStatus(ctx)
	if err != nil {
		// transient failure: log, keep last-known-good
		p.logl.Error.Printf("array status poll: %v", err)
		return
	}

	disks, err := p.client.FetchInventory(ctx)
	if err != nil {
		p.logl.Error.Printf("inventory poll: %v", err)
		return
	}

	snapshot := Snapshot{
		Disks:       disks,
		ArrayStatus: status,
		UpdatedAt:   time.Now(),
	}

	p.mu.Lock()
	p.lastGood = &snapshot
	p.mu.Unlock()

	if p.onUpdate != nil {
		p.onUpdate(snapshot)
	}
}
