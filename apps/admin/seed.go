package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// seed creates or refreshes the canonical plans and creates the missing catalog permissions.
func (cli *commandLine) seed(ctx context.Context) error {
	plans, err := cli.planSvc.SeedCanonicalTiers(ctx)
	if err != nil {
		return errors.Wrap(err, "seeding plans")
	}
	created, err := cli.permSvc.SeedDefaultCatalog(ctx)
	if err != nil {
		return errors.Wrap(err, "seeding permissions")
	}
	fmt.Printf("%d plans seeded, %d permissions created\n", len(plans), created)
	return nil
}
