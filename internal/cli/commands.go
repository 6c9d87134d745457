// Package cli implements the interactive console of the sniffer.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"

	"github.com/albionradar/sniffer/internal/config"
	"github.com/albionradar/sniffer/internal/pipeline"
	"github.com/albionradar/sniffer/internal/profile"
	"github.com/albionradar/sniffer/internal/sniffer"
	"github.com/albionradar/sniffer/internal/world"
)

// ErrUsage is returned for commands called with the wrong arguments.
var ErrUsage = errors.New("usage")

// Deps are the components the console inspects. Config may be nil.
type Deps struct {
	Engine   *sniffer.Engine
	Pipeline *pipeline.Pipeline
	World    *world.World
	Profiles *profile.Manager
	Config   *config.Config
}

// CLI reads commands line by line and prints tables.
type CLI struct {
	deps     Deps
	in       io.Reader
	out      io.Writer
	shutdown func()
	logger   zerolog.Logger
}

// NewCLI creates a console. shutdown is called by the quit command.
func NewCLI(deps Deps, in io.Reader, out io.Writer, shutdown func(), logger zerolog.Logger) *CLI {
	return &CLI{
		deps:     deps,
		in:       in,
		out:      out,
		shutdown: shutdown,
		logger:   logger,
	}
}

// Start runs the read loop until ctx is done, input ends or quit is typed.
func (c *CLI) Start(ctx context.Context) {
	fmt.Fprintln(c.out, "\nSniffer console ready. Type 'help' for available commands.")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(c.out, "sniffer> ")
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			quit, err := c.Execute(ctx, line)
			if err != nil {
				fmt.Fprintf(c.out, "Error: %v\n", err)
			}
			if quit {
				return
			}
		}
	}
}

// Execute runs one command line. It reports true when the console should
// exit.
func (c *CLI) Execute(ctx context.Context, line string) (bool, error) {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return false, nil
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "h", "?":
		c.printHelp()
	case "status", "s":
		c.printStatus()
	case "profiles":
		c.printProfiles()
	case "profile":
		return false, c.cmdProfile(args)
	case "world", "w":
		c.printWorld()
	case "reload":
		return false, c.cmdReload()
	case "quit", "exit", "q":
		fmt.Fprintln(c.out, "Shutting down sniffer...")
		if c.shutdown != nil {
			c.shutdown()
		}
		return true, nil
	default:
		fmt.Fprintf(c.out, "Unknown command: '%s'. Type 'help' for available commands.\n", cmd)
	}
	return false, nil
}

func (c *CLI) printHelp() {
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "  status           Engine and pipeline counters")
	fmt.Fprintln(c.out, "  profiles         List profiles")
	fmt.Fprintln(c.out, "  profile <name>   Activate a profile")
	fmt.Fprintln(c.out, "  world            Tracked entities in the current cluster")
	fmt.Fprintln(c.out, "  reload           Reload the schema tables")
	fmt.Fprintln(c.out, "  quit             Stop the sniffer")
	fmt.Fprintln(c.out, "  help             Show this help message")
	fmt.Fprintln(c.out)
}

func (c *CLI) newTable(header ...string) *tablewriter.Table {
	tw := tablewriter.NewWriter(c.out)
	tw.SetHeader(header)
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)
	return tw
}

func (c *CLI) printStatus() {
	tw := c.newTable("Metric", "Value")

	if e := c.deps.Engine; e != nil {
		st := e.Stats()
		tw.Append([]string{"packets received", fmt.Sprint(st.Received)})
		tw.Append([]string{"packets decoded", fmt.Sprint(st.Decoded)})
		tw.Append([]string{"unknown codes", fmt.Sprint(st.Unknown)})
		tw.Append([]string{"malformed", fmt.Sprint(st.Malformed)})
		tw.Append([]string{"position key", yesNo(st.HasKey)})
		tw.Append([]string{"schema version", fmt.Sprint(st.SchemaVersion)})
	}

	if p := c.deps.Pipeline; p != nil {
		snap := p.Metrics().Snapshot()
		tw.Append([]string{"pipeline state", p.State()})
		tw.Append([]string{"queue", fmt.Sprintf("%d/%d (%.1f%%)", p.QueueLength(), p.Capacity(), p.BufferUsage())})
		tw.Append([]string{"processed", fmt.Sprint(snap.Processed)})
		tw.Append([]string{"filtered", fmt.Sprint(snap.Filtered)})
		tw.Append([]string{"dropped", fmt.Sprintf("%d (%.2f%%)", snap.Dropped, snap.DropRate)})
		tw.Append([]string{"errors", fmt.Sprintf("%d (%.2f%%)", snap.Errors, snap.ErrorRate)})
		tw.Append([]string{"avg latency", snap.AverageLatency.Round(time.Microsecond).String()})
	}

	if pm := c.deps.Profiles; pm != nil {
		if cur := pm.Current(); cur != nil {
			tw.Append([]string{"profile", cur.Name})
		}
	}

	fmt.Fprintln(c.out)
	tw.Render()
	fmt.Fprintln(c.out)
}

func (c *CLI) printProfiles() {
	if c.deps.Profiles == nil {
		fmt.Fprintln(c.out, "No profiles loaded")
		return
	}
	active := ""
	if cur := c.deps.Profiles.Current(); cur != nil {
		active = cur.Name
	}

	tw := c.newTable("", "Name", "Palette", "Priority", "Description")
	for _, p := range c.deps.Profiles.List() {
		marker := ""
		if p.Name == active {
			marker = "*"
		}
		tw.Append([]string{marker, p.Name, p.TierPalette, fmt.Sprint(p.Priority), p.Description})
	}
	fmt.Fprintln(c.out)
	tw.Render()
	fmt.Fprintln(c.out)
}

func (c *CLI) cmdProfile(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: profile <name>", ErrUsage)
	}
	if c.deps.Profiles == nil {
		return errors.New("no profiles loaded")
	}
	if err := c.deps.Profiles.Switch(args[0]); err != nil {
		return err
	}
	if cfg := c.deps.Config; cfg != nil {
		cfg.SetActiveProfile(args[0])
		if err := cfg.Save(); err != nil {
			c.logger.Warn().Err(err).Msg("failed to persist active profile")
		}
	}
	fmt.Fprintf(c.out, "Active profile: %s\n", args[0])
	return nil
}

func (c *CLI) printWorld() {
	if c.deps.World == nil {
		fmt.Fprintln(c.out, "World state not available")
		return
	}
	w := c.deps.World
	cluster := w.Cluster()
	local := w.Local()

	fmt.Fprintln(c.out)
	fmt.Fprintf(c.out, "  Cluster:  %s %s\n", orDash(cluster.LocationID), cluster.Type)
	if local.Known {
		fmt.Fprintf(c.out, "  Player:   %s at (%.1f, %.1f)\n", orDash(local.Name), local.Position.X, local.Position.Y)
	}

	counts := w.Counts()
	tw := c.newTable("Store", "Entities")
	for _, store := range []string{"players", "mobs", "harvestables", "chests", "dungeons", "fishing_zones", "wisps"} {
		tw.Append([]string{store, fmt.Sprint(counts[store])})
	}
	tw.Render()

	if players := w.Players.List(); len(players) > 0 {
		pt := c.newTable("ID", "Name", "Guild", "Alliance", "Position", "Health")
		for _, p := range players {
			pt.Append([]string{
				fmt.Sprint(p.ID),
				p.Name,
				p.Guild,
				p.Alliance,
				fmt.Sprintf("%.1f, %.1f", p.Position.X, p.Position.Y),
				fmt.Sprintf("%d/%d", p.Health.Value, p.Health.Max),
			})
		}
		pt.Render()
	}
	fmt.Fprintln(c.out)
}

func (c *CLI) cmdReload() error {
	if c.deps.Engine == nil {
		return errors.New("engine not running")
	}
	if err := c.deps.Engine.ReloadSchema(); err != nil {
		return err
	}
	reg := c.deps.Engine.Registry()
	fmt.Fprintf(c.out, "Schema reloaded: %d packets, version %d\n", reg.Len(), reg.Version())
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
