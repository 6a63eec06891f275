// Package notify exposes the notification bus operations on the command line.
// Each invocation opens the configured store, runs one operation and exits,
// so it is only useful with a persistent store.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/aerodesk/aerodesk/internal/app"
	"github.com/aerodesk/aerodesk/internal/buildinfo"
	"github.com/aerodesk/aerodesk/internal/conf"
	"github.com/aerodesk/aerodesk/internal/notification"
)

// Command returns the notify command tree.
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Create and manage flight notifications",
		Long: `Create and manage flight notifications in the configured store.

Examples:
  # Declare a landing gear emergency
  aerodesk notify create --type=emergency --subtype=landing-gear \
    --flight-id=f1 --flight-number=AF123 --airline="Air France" \
    --captain=Jeanne --captain-id=c1 --from=CDG --to=SGN

  # Show what the ground crew still has to do
  aerodesk notify list --panel=ground-crew --view=open

  # Acknowledge from the ATC desk
  aerodesk notify ack notif_1718000000000_abc123xyz --by="Tower"`,
	}
	cmd.PersistentFlags().BoolVar(&asJSON, "json", false, "Print results as JSON")

	r := &runner{settings: settings, build: build, json: &asJSON}
	cmd.AddCommand(
		r.createCommand(),
		r.listCommand(),
		r.countsCommand(),
		r.ackCommand(),
		r.acceptCommand(),
		r.statusCommand(),
		r.removeCommand(),
		r.clearCommand(),
		r.deleteCommand(),
		r.clearAllCommand(),
	)
	return cmd
}

type runner struct {
	settings *conf.Settings
	build    *buildinfo.Context
	json     *bool
}

// withService opens the bus, runs op and closes it again so the final change
// signal reaches other processes before exit.
func (r *runner) withService(cmd *cobra.Command, op func(ctx context.Context, svc *notification.Service) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.New(r.settings, r.build)
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		_ = a.Close()
		return err
	}
	opErr := op(ctx, a.Service())
	if err := a.Close(); err != nil && opErr == nil {
		return err
	}
	return opErr
}

func (r *runner) createCommand() *cobra.Command {
	var (
		req      notification.CreateRequest
		typ      string
		subType  string
		from, to string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Raise an emergency or ground service request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Type = ParseType(typ)
			req.SubType = ParseSubType(subType)
			if req.Route == "" && from != "" && to != "" {
				req.Route = notification.FormatRoute(from, to)
			}
			return r.withService(cmd, func(ctx context.Context, svc *notification.Service) error {
				n, err := svc.Create(ctx, &req)
				if err != nil {
					return err
				}
				return r.printOne(cmd.OutOrStdout(), n)
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.FlightID, "flight-id", "", "Flight identifier")
	f.StringVar(&req.FlightNumber, "flight-number", "", "Flight number, e.g. AF123")
	f.StringVar(&req.Airline, "airline", "", "Operating airline")
	f.StringVar(&req.Captain, "captain", "", "Captain display name")
	f.StringVar(&req.CaptainID, "captain-id", "", "Captain identifier")
	f.StringVar(&req.Route, "route", "", "Route label, e.g. \"CDG → SGN\"")
	f.StringVar(&from, "from", "", "Departure airport, used with --to when --route is empty")
	f.StringVar(&to, "to", "", "Arrival airport")
	f.StringVar(&typ, "type", "", "emergency|ground")
	f.StringVar(&subType, "subtype", "", "landing-gear|engine-explosion|wing-control|follow-me|pushback|fire-truck")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("subtype")
	return cmd
}

func (r *runner) listCommand() *cobra.Command {
	var (
		panel string
		view  string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notifications, optionally as one panel sees them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := notification.ParseView(view)
			if err != nil {
				return err
			}
			filter := notification.ViewFilter(v)
			if filter == nil {
				filter = &notification.FilterOptions{}
			}
			filter.Limit = limit

			var target notification.Panel
			if panel != "" {
				p, err := notification.ParsePanel(panel)
				if err != nil {
					return err
				}
				target = p
			}

			return r.withService(cmd, func(ctx context.Context, svc *notification.Service) error {
				var list []*notification.Notification
				if target != "" {
					list = svc.ForPanel(ctx, target, filter)
				} else {
					list = svc.List(ctx, filter)
				}
				return r.printList(cmd.OutOrStdout(), list)
			})
		},
	}

	cmd.Flags().StringVar(&panel, "panel", "", "atc|ground-crew")
	cmd.Flags().StringVar(&view, "view", string(notification.ViewAll), "all|pending|active|open")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum rows (0 for all)")
	return cmd
}

func (r *runner) countsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "counts",
		Short: "Show pending and total counts per panel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withService(cmd, func(ctx context.Context, svc *notification.Service) error {
				counts := svc.Counts(ctx)
				if *r.json {
					return writeJSON(cmd.OutOrStdout(), counts)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "PANEL\tPENDING\tTOTAL")
				for _, p := range notification.Panels {
					c := counts.ForPanel(p)
					fmt.Fprintf(tw, "%s\t%d\t%d\n", p, c.Pending, c.Total)
				}
				fmt.Fprintf(tw, "CRITICAL\t%d\t\n", counts.Critical)
				return tw.Flush()
			})
		},
	}
}

func (r *runner) ackCommand() *cobra.Command {
	var by string
	cmd := &cobra.Command{
		Use:   "ack <id>",
		Short: "Acknowledge a notification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withService(cmd, func(ctx context.Context, svc *notification.Service) error {
				n, err := svc.Acknowledge(ctx, args[0], by)
				if err != nil {
					return err
				}
				return r.printOne(cmd.OutOrStdout(), n)
			})
		},
	}
	cmd.Flags().StringVar(&by, "by", "", "Operator name, defaults to ATC Controller")
	return cmd
}

func (r *runner) acceptCommand() *cobra.Command {
	var by string
	cmd := &cobra.Command{
		Use:   "accept <id>",
		Short: "Accept a ground service request and start working on it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withService(cmd, func(ctx context.Context, svc *notification.Service) error {
				n, err := svc.Accept(ctx, args[0], by)
				if err != nil {
					return err
				}
				return r.printOne(cmd.OutOrStdout(), n)
			})
		},
	}
	cmd.Flags().StringVar(&by, "by", "", "Operator name, defaults to Ground Crew")
	return cmd
}

func (r *runner) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Move a notification to a new status",
		Long:  "Valid statuses: pending, acknowledged, in-progress, completed, cancelled.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status := notification.Status(normalize(args[1]))
			if !status.IsValid() {
				return fmt.Errorf("unknown status %q", args[1])
			}
			return r.withService(cmd, func(ctx context.Context, svc *notification.Service) error {
				n, err := svc.SetStatus(ctx, args[0], status)
				if err != nil {
					return err
				}
				return r.printOne(cmd.OutOrStdout(), n)
			})
		},
	}
}

func (r *runner) removeCommand() *cobra.Command {
	var panel string
	cmd := &cobra.Command{
		Use:   "remove <id>",
		Short: "Dismiss a notification from one panel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := notification.ParsePanel(panel)
			if err != nil {
				return err
			}
			return r.withService(cmd, func(ctx context.Context, svc *notification.Service) error {
				if err := svc.RemoveFromPanel(ctx, args[0], p); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "removed %s from %s\n", args[0], p)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&panel, "panel", "", "atc|ground-crew")
	_ = cmd.MarkFlagRequired("panel")
	return cmd
}

func (r *runner) clearCommand() *cobra.Command {
	var panel string
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Dismiss every notification from one panel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := notification.ParsePanel(panel)
			if err != nil {
				return err
			}
			return r.withService(cmd, func(ctx context.Context, svc *notification.Service) error {
				removed, err := svc.ClearForPanel(ctx, p)
				if err != nil {
					return err
				}
				return r.printRemoved(cmd.OutOrStdout(), removed)
			})
		},
	}
	cmd.Flags().StringVar(&panel, "panel", "", "atc|ground-crew")
	_ = cmd.MarkFlagRequired("panel")
	return cmd
}

func (r *runner) deleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a notification from every panel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withService(cmd, func(ctx context.Context, svc *notification.Service) error {
				if err := svc.DeleteOutright(ctx, args[0]); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return err
			})
		},
	}
}

func (r *runner) clearAllCommand() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear-all",
		Short: "Delete every notification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete every notification without --yes")
			}
			return r.withService(cmd, func(ctx context.Context, svc *notification.Service) error {
				removed, err := svc.ClearAll(ctx)
				if err != nil {
					return err
				}
				return r.printRemoved(cmd.OutOrStdout(), removed)
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deletion")
	return cmd
}

func (r *runner) printOne(w io.Writer, n *notification.Notification) error {
	if *r.json {
		return writeJSON(w, n)
	}
	return writeTable(w, []*notification.Notification{n})
}

func (r *runner) printList(w io.Writer, list []*notification.Notification) error {
	if *r.json {
		if list == nil {
			list = []*notification.Notification{}
		}
		return writeJSON(w, list)
	}
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "no notifications")
		return err
	}
	return writeTable(w, list)
}

func (r *runner) printRemoved(w io.Writer, removed int) error {
	if *r.json {
		return writeJSON(w, map[string]int{"removed": removed})
	}
	_, err := fmt.Fprintf(w, "removed %d notification(s)\n", removed)
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeTable(w io.Writer, list []*notification.Notification) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFLIGHT\tROUTE\tSUBTYPE\tPRIORITY\tSTATUS\tPANELS\tCREATED")
	for _, n := range list {
		panels := make([]string, len(n.TargetPanels))
		for i, p := range n.TargetPanels {
			panels[i] = string(p)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			n.ID, n.FlightNumber, n.Route, n.SubType, n.Priority, n.Status,
			strings.Join(panels, ","), n.CreatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

// ParseType accepts the wire value in any case plus the "ground" shorthand.
func ParseType(s string) notification.Type {
	t := normalize(s)
	if t == "GROUND" || t == "GROUND_CREW" {
		return notification.TypeGroundCrewRequest
	}
	return notification.Type(t)
}

// ParseSubType accepts kebab-case or the wire value in any case.
func ParseSubType(s string) notification.SubType {
	return notification.SubType(normalize(s))
}

func normalize(s string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
}
