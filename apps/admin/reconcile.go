package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/trezcool/mahudhurio/core"
)

// reconcile prints the sessions & records of a class left inconsistent by interrupted commits.
func (cli *commandLine) reconcile(classID, from, to string) error {
	var period core.Period
	for _, bound := range []struct {
		raw string
		day *time.Time
	}{{from, &period.From}, {to, &period.To}} {
		if bound.raw == "" {
			continue
		}
		day, err := core.ParseDay(bound.raw)
		if err != nil {
			return err
		}
		*bound.day = day
	}

	ctx := context.Background()
	cls, err := cli.schoolSvc.GetClass(ctx, core.CleanString(classID))
	if err != nil {
		return err
	}
	rec, err := cli.attSvc.Reconcile(ctx, cls.ID, period)
	if err != nil {
		return err
	}
	if rec.Consistent() {
		fmt.Fprintf(cli.out, "class %s: no inconsistency found\n", rec.ClassID)
		return nil
	}
	fmt.Fprintf(cli.out, "class %s: %d inconsistencies\n", rec.ClassID, len(rec.Issues))
	for _, issue := range rec.Issues {
		ids := issue.SessionIDs
		if len(ids) == 0 {
			ids = issue.StudentIDs
		}
		fmt.Fprintf(cli.out, "  %s  %-16s  %s\n", issue.Date.Format(core.DateLayout), issue.Kind, strings.Join(ids, ", "))
	}
	return nil
}
