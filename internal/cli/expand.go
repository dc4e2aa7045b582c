package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cyp0633/librecur/caltime"
	"github.com/cyp0633/librecur/icalendar"
	"github.com/cyp0633/librecur/internal/config"
	"github.com/cyp0633/librecur/recurrence"
)

// ExpandOptions holds the flags of the expand command.
type ExpandOptions struct {
	From string
	To   string
	Zone string
}

// NewExpandCommand creates the expand command.
func NewExpandCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExpandOptions{}

	cmd := &cobra.Command{
		Use:   "expand <file.ics>",
		Short: "List the occurrences in a calendar file",
		Long: `List every occurrence of the events, to-dos and journals in an iCalendar file
that overlaps the window [--from, --to). Use "-" to read from stdin.

Bounds are RFC 3339 timestamps or dates (midnight UTC). An omitted bound leaves
the window open on that side.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExpand(cmd, rootOpts, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "window start")
	cmd.Flags().StringVar(&opts.To, "to", "", "window end (exclusive)")
	cmd.Flags().StringVar(&opts.Zone, "tz", "", "zone floating times are read in (overrides config)")

	return cmd
}

func runExpand(cmd *cobra.Command, rootOpts *RootOptions, opts *ExpandOptions, path string) error {
	logger := newLogger(cmd.ErrOrStderr(), rootOpts.Verbose)

	cfg, err := config.Load(rootOpts.Config)
	if err != nil {
		return err
	}
	if opts.Zone != "" {
		cfg.FloatingZone = opts.Zone
	}

	from, err := parseBound(opts.From)
	if err != nil {
		return fmt.Errorf("--from: %w", err)
	}
	to, err := parseBound(opts.To)
	if err != nil {
		return fmt.Errorf("--to: %w", err)
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return fmt.Errorf("empty window: --from %s is not before --to %s", opts.From, opts.To)
	}

	in, closeIn, err := open(cmd, path)
	if err != nil {
		return err
	}
	defer closeIn()

	resolver := caltime.NewResolver(caltime.NewTZDB(), caltime.WithFloatingZone(cfg.FloatingZone))
	cal, err := icalendar.Decode(in,
		icalendar.WithResolver(resolver),
		icalendar.WithRestriction(cfg.RestrictionLevel()),
		icalendar.WithEvaluationMode(cfg.EvaluationMode()),
		icalendar.WithZoneHorizon(cfg.ZoneHorizon),
		icalendar.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	logger.Debug("calendar decoded", "entities", len(cal.Entities), "zones", len(cal.Zones.Zones()))

	engine := cal.Engine(cfg.EngineConfig(), recurrence.WithLogger(logger))
	defer engine.Close()

	occs, err := engine.ExpandAll(cmd.Context(), cal.Entities, from, to)
	if err != nil {
		return err
	}
	logger.Debug("expanded", "occurrences", len(occs))

	return writeOccurrences(cmd.OutOrStdout(), rootOpts.Format, cal.Resolver, occs)
}

func open(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if path == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

// parseBound accepts an RFC 3339 timestamp or a date. Empty means unbounded.
func parseBound(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: want RFC 3339 or YYYY-MM-DD", s)
	}
	return t, nil
}
