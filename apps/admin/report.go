package main

import (
	"context"
	"encoding/json"
)

// reportCmd prints one of the dashboard reports as indented JSON.
func (cli *commandLine) reportCmd(name string, args []string) error {
	fs := cli.newFlagSet(name)
	var limit *int
	if name != "stats" {
		limit = fs.Int("limit", 0, "The maximum number of entries; 0 picks the default.")
	}
	if err := parse(fs, args); err != nil {
		return err
	}

	ctx := context.Background()
	var report interface{}
	switch name {
	case "stats":
		report = cli.mgmtSvc.Stats(ctx)
	case "schools":
		report = cli.mgmtSvc.SchoolPerformance(ctx, *limit)
	case "activities":
		report = cli.mgmtSvc.Activities(ctx, *limit)
	}

	enc := json.NewEncoder(cli.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
