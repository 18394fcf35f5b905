package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cory-johannsen/tactics/internal/authority"
	"github.com/cory-johannsen/tactics/internal/config"
	"github.com/cory-johannsen/tactics/internal/content"
	"github.com/cory-johannsen/tactics/internal/game/attribute"
	"github.com/cory-johannsen/tactics/internal/game/dice"
	"github.com/cory-johannsen/tactics/internal/game/encounter"
	"github.com/cory-johannsen/tactics/internal/observability"
	"github.com/cory-johannsen/tactics/internal/scenario"
)

// maxTurns stops a scenario without a round limit that never decides.
const maxTurns = 1000

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Play a scenario and print every turn",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}
	cmd.Flags().Uint64("seed", 0, "dice seed; overrides the scenario seed, 0 keeps it")
	cmd.Flags().Int("rounds", 0, "round limit; overrides the scenario, 0 keeps it")
	return cmd
}

func loadConfig(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	v := config.NewViper()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return config.Config{}, nil, fmt.Errorf("reading config file: %w", err)
		}
	}
	level, _ := cmd.Flags().GetString("log-level")
	v.Set("logging.level", level)
	v.Set("logging.format", "console")
	cfg, err := config.LoadFromViper(v)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := observability.NewLogger(cfg.Logging, "tactics-sim")
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	s, err := scenario.Load(args[0])
	if err != nil {
		return err
	}
	if seed, _ := cmd.Flags().GetUint64("seed"); seed != 0 {
		s.Seed = seed
	}
	if rounds, _ := cmd.Flags().GetInt("rounds"); rounds != 0 {
		s.Rounds = rounds
	}

	src := dice.CryptoSource()
	if s.Seed != 0 {
		src = dice.SeededSource(s.Seed)
	}
	roller := dice.NewRoller(src, logger)
	enforcer := observability.NewEnforcer(cfg.Encounter, logger)
	bundle, err := content.Load(cfg.Content, roller, enforcer, logger)
	if err != nil {
		return err
	}
	defer bundle.Close()

	engine := encounter.NewEngine(cfg.Encounter.Settings(), roller, enforcer, logger)
	defer engine.Close()
	last := &lastSnapshot{}
	host := authority.NewHost(engine, bundle, last, nil, nil, logger)

	out := cmd.OutOrStdout()
	var result *authority.Result
	host.Events.TurnPlayed.Subscribe(func(tp authority.TurnPlayed) { printTurn(out, tp) })
	host.Events.Finished.Subscribe(func(r authority.Result) { result = &r })

	ctx := context.Background()
	fmt.Fprintf(out, "%s (seed %d)\n", s.ID, s.Seed)
	if s.Description != "" {
		fmt.Fprintf(out, "%s\n", s.Description)
	}
	if err := host.Open(ctx, s); err != nil {
		return err
	}
	for turns := 0; result == nil; turns++ {
		if turns == maxTurns {
			_ = host.Abandon(ctx, s.ID)
			return fmt.Errorf("%s undecided after %d turns", s.ID, maxTurns)
		}
		if _, err := host.Step(ctx, s.ID); err != nil {
			return err
		}
	}

	printStandings(out, last.snapshot)
	switch {
	case result.Decided && result.Winner == "":
		fmt.Fprintf(out, "nobody is left standing after %d rounds\n", result.Rounds)
	case result.Decided:
		fmt.Fprintf(out, "%s characters win after %d rounds\n", result.Winner, result.Rounds)
	default:
		fmt.Fprintf(out, "undecided after %d rounds\n", result.Rounds)
	}
	return nil
}

// lastSnapshot keeps the latest snapshot of the encounter being played.
type lastSnapshot struct {
	snapshot encounter.Snapshot
}

func (l *lastSnapshot) Publish(_ context.Context, s encounter.Snapshot) error {
	l.snapshot = s
	return nil
}

func (l *lastSnapshot) Remove(context.Context, string) error { return nil }

func printTurn(w io.Writer, tp authority.TurnPlayed) {
	r := tp.Report
	if len(r.Commands) == 0 {
		fmt.Fprintf(w, "round %d  %-18s waits\n", tp.Round+1, r.Character.ID())
		return
	}
	parts := make([]string, 0, len(r.Commands))
	for _, c := range r.Commands {
		label := c.Command.String()
		if a := c.Command.Ability(); a != nil {
			label = a.Label
		}
		if p := c.Command.Payload(); p != nil && p.TargetID != "" {
			label += " -> " + p.TargetID
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", label, c.Result))
	}
	fmt.Fprintf(w, "round %d  %-18s %s\n", tp.Round+1, r.Character.ID(), strings.Join(parts, ", "))
}

func printStandings(w io.Writer, s encounter.Snapshot) {
	ids := append([]string(nil), s.Roster...)
	sort.Strings(ids)
	fmt.Fprintln(w, "standings:")
	for _, id := range ids {
		attrs := s.Attributes[id]
		fmt.Fprintf(w, "  %-18s %3.0f / %.0f hp\n", id, attrs[attribute.HitPoints], attrs[attribute.MaxHitPoints])
	}
}
