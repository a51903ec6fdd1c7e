package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli"

	"techcal/internal/calendar"
	"techcal/internal/config"
	"techcal/internal/ics"
	"techcal/internal/model"
	"techcal/internal/source"
)

var monthCmd = cli.Command{
	Name:  "month",
	Usage: "Print the events of one month",
	Flags: []cli.Flag{
		cli.IntFlag{
			Name:  "month, m",
			Value: int(time.Now().Month()) - 1,
			Usage: "Month index, 0 = January",
		},
	},
	Action: func(c *cli.Context) error {
		svc, err := loadService(c)
		if err != nil {
			return err
		}
		m, err := svc.Month(c.Int("month"))
		if err != nil {
			return cli.NewExitError(err.Error(), 2)
		}
		printMonth(os.Stdout, m, svc.Year())
		return nil
	},
}

var calendarCmd = cli.Command{
	Name:  "calendar",
	Usage: "Print every month of the year",
	Action: func(c *cli.Context) error {
		svc, err := loadService(c)
		if err != nil {
			return err
		}
		for i, m := range svc.Months() {
			if i > 0 {
				fmt.Fprintln(os.Stdout)
			}
			printMonth(os.Stdout, m, svc.Year())
		}
		return nil
	},
}

var sponsorsCmd = cli.Command{
	Name:  "sponsors",
	Usage: "Print events grouped by sponsor",
	Flags: []cli.Flag{
		cli.BoolFlag{
			Name:  "needed",
			Usage: "List events still looking for sponsors instead",
		},
	},
	Action: func(c *cli.Context) error {
		svc, err := loadService(c)
		if err != nil {
			return err
		}
		if c.Bool("needed") {
			printEventList(os.Stdout, "Seeking sponsors", svc.NeedingSponsors())
			return nil
		}
		printSponsors(os.Stdout, svc.Sponsors())
		return nil
	},
}

var exportCmd = cli.Command{
	Name:  "export",
	Usage: "Write the year as an iCalendar (.ics) file",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "out, o",
			Usage: "Output file (stdout if empty)",
		},
	},
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		svc, err := loadServiceWith(cfg)
		if err != nil {
			return err
		}
		data, year := svc.Snapshot()
		body, err := ics.Export(data, year, ics.ExportOptions{Name: cfg.CalendarName})
		if err != nil {
			return err
		}
		out := c.String("out")
		if out == "" {
			_, err = io.WriteString(os.Stdout, body)
			return err
		}
		return os.WriteFile(out, []byte(body), 0o644)
	},
}

func loadService(c *cli.Context) (*calendar.Service, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	return loadServiceWith(cfg)
}

// loadServiceWith performs a single load of the configured sources.
func loadServiceWith(cfg *config.Config) (*calendar.Service, error) {
	data, err := source.NewLoader(cfg.Sources, cfg.CacheDir).Load(context.Background())
	if err != nil {
		return nil, cli.NewExitError(calendar.LoadFailedMessage+": "+err.Error(), 1)
	}
	svc := calendar.NewService(cfg.Year)
	svc.Replace(data)
	return svc, nil
}

func printMonth(w io.Writer, m calendar.MonthView, year int) {
	fmt.Fprintf(w, "%s %d\n", m.Name, year)
	if len(m.Events) == 0 {
		fmt.Fprintln(w, "  (no events)")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, ev := range m.Events {
		fmt.Fprintf(tw, "  %2d\t%s\t%s\t%s\t%s\n",
			ev.Date.Day(), ev.Date.Weekday().String()[:3], title(ev), ev.Type, flags(ev))
	}
	tw.Flush()
}

func printSponsors(w io.Writer, groups []calendar.SponsorGroup) {
	if len(groups) == 0 {
		fmt.Fprintln(w, "(no sponsors)")
		return
	}
	for i, g := range groups {
		if i > 0 {
			fmt.Fprintln(w)
		}
		printEventList(w, g.Name, g.Events)
	}
}

func printEventList(w io.Writer, heading string, evs []model.EventInstance) {
	fmt.Fprintf(w, "%s (%d)\n", heading, len(evs))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, ev := range evs {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", ev.Date.Format(model.DateLayout), title(ev), ev.Type)
	}
	tw.Flush()
}

func title(ev model.EventInstance) string {
	if ev.IsMajor {
		return strings.ToUpper(ev.Title)
	}
	return ev.Title
}

// flags renders the legend markers of an event.
func flags(ev model.EventInstance) string {
	out := make([]string, 0, 4)
	if ev.NeedsSponsors {
		out = append(out, "needs-sponsors")
	}
	if ev.HasSponsors() {
		out = append(out, "sponsored")
	}
	if ev.NewsWorthy {
		out = append(out, "newsworthy")
	}
	if ev.IsMajor {
		out = append(out, "major")
	}
	return strings.Join(out, ",")
}
