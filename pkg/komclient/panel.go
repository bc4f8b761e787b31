package komclient

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/komero-io/komero/pkg/accessmode"
	"github.com/komero-io/komero/pkg/komtypes"
	"github.com/komero-io/komero/pkg/raidassist"
	"github.com/komero-io/komero/pkg/sessionstore"
	"github.com/komero-io/komero/pkg/statuspoller"
)

// everything a panel command needs: config, the durable store, the mode
// resolver and the URL set for the currently resolved mode
type panel struct {
	conf     *ClientConfig
	store    *sessionstore.Store
	resolver *accessmode.Resolver
	mode     accessmode.Mode
	urls     *komtypes.RestClientUrlBuilder
	logger   *log.Logger
}

func newPanel(logger *log.Logger) (*panel, error) {
	conf, err := ReadConfig()
	if err != nil {
		return nil, err
	}

	dbPath, err := sessionstore.DefaultPath()
	if err != nil {
		return nil, err
	}

	store, err := sessionstore.Open(dbPath)
	if err != nil {
		return nil, err
	}

	loc, err := conf.Location()
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	resolver := accessmode.NewResolver(loc, conf.Endpoints(), store, logger)

	// resolved fresh on startup; the resolver keeps the durable cache in sync
	mode := resolver.Current()

	return &panel{
		conf:     conf,
		store:    store,
		resolver: resolver,
		mode:     mode,
		urls:     conf.URLs(mode),
		logger:   logger,
	}, nil
}

func (p *panel) Close() {
	_ = p.store.Close()
}

func (p *panel) planner() *raidassist.Planner {
	return raidassist.NewPlanner(p.conf.Array, p.urls, p.logger)
}

// resolves a disk path against live inventory; also returns array status so
// callers can cross-reference members
func (p *panel) findDisk(ctx context.Context, diskPath string) (*komtypes.Disk, *komtypes.ArrayStatus, error) {
	client := statuspoller.NewClient(p.urls)

	disks, err := client.FetchInventory(ctx)
	if err != nil {
		return nil, nil, err
	}

	arrayStatus, err := client.FetchArrayStatus(ctx)
	if err != nil {
		return nil, nil, err
	}

	for _, disk := range disks {
		if disk.Path == diskPath {
			return &disk, arrayStatus, nil
		}
	}

	return nil, nil, fmt.Errorf("no such disk: %s", diskPath)
}

func (p *panel) addDiskWorkflow(ctx context.Context, diskPath string, dryRun bool, assumeYes bool) error {
	disk, arrayStatus, err := p.findDisk(ctx, diskPath)
	if err != nil {
		return err
	}

	operation, err := newOperationView(p)
	if err != nil {
		return err
	}
	defer operation.Close()

	operation.assistant.SelectDisk(ctx, disk, arrayStatus)

	plan, err := operation.assistant.Confirm()
	if err != nil {
		if plan := operation.assistant.Plan(); plan != nil {
			printPlan(plan)
		}
		return err
	}

	printPlan(plan)

	if !assumeYes {
		confirmed, err := confirmDataLoss(disk.Path)
		if err != nil {
			return err
		}
		if !confirmed {
			fmt.Println("aborted")
			return nil
		}
	}

	if err := operation.assistant.Execute(ctx, dryRun); err != nil {
		return err
	}

	return operation.follow(ctx)
}

func (p *panel) watchWorkflow(ctx context.Context) error {
	operation, err := newOperationView(p)
	if err != nil {
		return err
	}
	defer operation.Close()

	if err := operation.assistant.Restore(time.Now()); err != nil {
		return err
	}

	return operation.follow(ctx)
}
