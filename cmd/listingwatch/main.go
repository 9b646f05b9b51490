// FindMyLease listing watcher
// Subscribes to listings or a user's saved listings and prints each filtered
// snapshot as it arrives
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"

	flag "github.com/spf13/pflag"

	"github.com/savan1304/FindMyLeaseApp/internal/logger"
	"github.com/savan1304/FindMyLeaseApp/pkg/filter"
	"github.com/savan1304/FindMyLeaseApp/pkg/live"
	"github.com/savan1304/FindMyLeaseApp/pkg/record"
	"github.com/savan1304/FindMyLeaseApp/pkg/remote"
)

var (
	serverAddr  = flag.StringP("server", "s", "localhost:50051", "Listing server address")
	user        = flag.StringP("user", "u", "", "Watch this user's saved listings instead of all listings")
	ranges      = flag.StringArrayP("range", "r", nil, "Range filter field=min:max, either bound may be empty (repeatable)")
	minBedrooms = flag.String("min-bedrooms", "", "Minimum bedrooms")
	maxBedrooms = flag.String("max-bedrooms", "", "Maximum bedrooms")
	minArea     = flag.String("min-area", "", "Minimum area")
	maxArea     = flag.String("max-area", "", "Maximum area")
	remove      = flag.String("delete", "", "Delete this saved listing of --user before watching")
	once        = flag.Bool("once", false, "Exit after the first snapshot")
	logLevel    = flag.String("log-level", "warn", "Log level")
)

func main() {
	flag.Parse()

	logger.InitGlobalLogger(logger.Config{Level: *logLevel, Pretty: true, Output: os.Stderr})
	log := logger.GetGlobalLogger()

	spec, err := buildSpec(*ranges, map[string][2]string{
		"bedrooms": {*minBedrooms, *maxBedrooms},
		"area":     {*minArea, *maxArea},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if err := run(spec, log); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(spec filter.Spec, log *logger.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client, err := remote.Dial(*serverAddr, log)
	if err != nil {
		return err
	}
	defer client.Close()

	key := live.ListingsKey
	if *user != "" {
		if key, err = live.SavedKey(*user); err != nil {
			return err
		}
	}

	if *remove != "" {
		if *user == "" {
			return fmt.Errorf("--delete needs --user")
		}
		removed, err := client.Delete(ctx, key, *remove)
		if err != nil {
			return fmt.Errorf("failed to delete %s: %w", *remove, err)
		}
		log.Info("Saved listing deleted").Str("id", *remove).Bool("removed", removed).Send()
	}

	cache := live.NewCache(client, live.Options{Logger: log})
	defer cache.Close()

	done := make(chan error, 1)
	cache.Subscribe(ctx, key,
		func(snap record.Snapshot) {
			printSnapshot(os.Stdout, key, snap, filter.Apply(snap, spec))
			if *once {
				select {
				case done <- nil:
				default:
				}
			}
		},
		func(err error) {
			select {
			case done <- err:
			default:
			}
		},
	)

	select {
	case <-ctx.Done():
		return nil
	case err := <-done:
		return err
	}
}

// buildSpec merges --range values with the per-field shortcut flags
func buildSpec(ranges []string, shortcuts map[string][2]string) (filter.Spec, error) {
	spec := filter.Spec{}

	for _, r := range ranges {
		field, bounds, ok := strings.Cut(r, "=")
		field = strings.TrimSpace(field)
		if !ok || field == "" {
			return nil, fmt.Errorf("invalid range %q, want field=min:max", r)
		}
		lo, hi, _ := strings.Cut(bounds, ":")
		rng, err := parseRange(lo, hi)
		if err != nil {
			return nil, fmt.Errorf("range %s: %w", field, err)
		}
		spec[field] = rng
	}

	for field, b := range shortcuts {
		if b[0] == "" && b[1] == "" {
			continue
		}
		rng, err := parseRange(b[0], b[1])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", field, err)
		}
		spec[field] = rng
	}

	return spec, spec.Validate()
}

func parseRange(lo, hi string) (filter.Range, error) {
	lower, err := filter.ParseBound(lo)
	if err != nil {
		return filter.Range{}, err
	}
	upper, err := filter.ParseBound(hi)
	if err != nil {
		return filter.Range{}, err
	}
	return filter.Range{Min: lower, Max: upper}, nil
}

func printSnapshot(w io.Writer, key string, all, shown record.Snapshot) {
	fmt.Fprintf(w, "%s: %d of %d\n", key, shown.Len(), all.Len())

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, r := range shown.Records() {
		fields := r.Fields()
		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)

		cols := []string{r.ID}
		for _, name := range names {
			cols = append(cols, fmt.Sprintf("%s=%v", name, fields[name]))
		}
		fmt.Fprintln(tw, strings.Join(cols, "\t"))
	}
	tw.Flush()
}
