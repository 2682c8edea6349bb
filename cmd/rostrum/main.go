package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/stellarlinkco/rostrum/internal/agent"
	"github.com/stellarlinkco/rostrum/internal/config"
	"github.com/stellarlinkco/rostrum/internal/engine"
	"github.com/stellarlinkco/rostrum/internal/schedule"
)

var rootCmd = &cobra.Command{
	Use:   "rostrum",
	Short: "rostrum - multi-party AI debate simulator",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a full debate on a topic",
	RunE:  runDebate,
}

var replayCmd = &cobra.Command{
	Use:   "replay <session-id>",
	Short: "Render a saved debate session",
	Args:  cobra.ExactArgs(1),
	RunE:  runReplay,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved debate sessions",
	RunE:  runList,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize config directory",
	RunE:  runOnboard,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show rostrum configuration status",
	RunE:  runStatus,
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage scheduled debates",
}

var scheduleServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the debate scheduler until interrupted",
	RunE:  runScheduleServe,
}

var scheduleAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a scheduled debate",
	Args:  cobra.ExactArgs(1),
	RunE:  runScheduleAdd,
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled debates",
	RunE:  runScheduleList,
}

var scheduleRemoveCmd = &cobra.Command{
	Use:   "remove <job-id>",
	Short: "Remove a scheduled debate",
	Args:  cobra.ExactArgs(1),
	RunE:  runScheduleRemove,
}

var (
	topicFlag     string
	turnsFlag     int
	factCheckFlag bool
	debaterFlags  []string
	moderatorFlag string
	formatFlag    string

	cronFlag string
	atFlag   string
)

func init() {
	runCmd.Flags().StringVarP(&topicFlag, "topic", "t", "", "Debate topic (required)")
	runCmd.Flags().IntVar(&turnsFlag, "turns", 0, "Number of debate turns (default from config)")
	runCmd.Flags().BoolVar(&factCheckFlag, "fact-check", false, "Enable fact-checking (needs TAVILY_API_KEY)")
	runCmd.Flags().StringArrayVarP(&debaterFlags, "debater", "d", nil, "Debater as name=stance (repeatable)")
	runCmd.Flags().StringVar(&moderatorFlag, "moderator", "Morgan", "Moderator name")
	runCmd.MarkFlagRequired("topic")

	replayCmd.Flags().StringVar(&formatFlag, "format", engine.FormatText, "Output format: text or markdown")

	scheduleAddCmd.Flags().StringVarP(&topicFlag, "topic", "t", "", "Debate topic (required)")
	scheduleAddCmd.Flags().IntVar(&turnsFlag, "turns", 0, "Number of debate turns")
	scheduleAddCmd.Flags().BoolVar(&factCheckFlag, "fact-check", false, "Enable fact-checking")
	scheduleAddCmd.Flags().StringVar(&cronFlag, "cron", "", "Cron expression with seconds, e.g. '0 0 19 * * FRI'")
	scheduleAddCmd.Flags().StringVar(&atFlag, "at", "", "One-shot time (RFC 3339)")
	scheduleAddCmd.MarkFlagRequired("topic")

	scheduleCmd.AddCommand(scheduleServeCmd, scheduleAddCmd, scheduleListCmd, scheduleRemoveCmd)
	rootCmd.AddCommand(runCmd, replayCmd, listCmd, onboardCmd, statusCmd, scheduleCmd)
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// parseDebaterSpec parses a --debater flag value of the form
// "name=stance"; a bare name gets an empty stance and alternates
// for/against by roster position.
func parseDebaterSpec(spec string) (agent.Persona, error) {
	name, stance, _ := strings.Cut(spec, "=")
	name = strings.TrimSpace(name)
	stance = strings.TrimSpace(stance)
	if name == "" {
		return agent.Persona{}, fmt.Errorf("invalid debater spec %q: empty name", spec)
	}
	return agent.Persona{Name: name, Stance: stance}, nil
}

func defaultDebaters() []agent.Persona {
	return []agent.Persona{
		{Name: "Proponent", Description: "a debater supporting the motion", Stance: "for"},
		{Name: "Opponent", Description: "a debater opposing the motion", Stance: "against"},
	}
}

func executeDebate(cfg *config.Config, topic string, debaters []agent.Persona, moderatorName string) (*engine.Engine, error) {
	e := engine.New(engine.Options{Config: cfg})

	moderator := agent.Persona{Name: moderatorName, Description: "an impartial debate moderator"}
	if err := e.Setup(topic, debaters, moderator, nil); err != nil {
		return nil, err
	}

	ctx := context.Background()
	if err := e.Start(ctx); err != nil {
		return nil, err
	}
	for {
		ok, msg := e.RunTurn(ctx)
		if !ok {
			return nil, fmt.Errorf("debate turn failed: %s", msg)
		}
		fmt.Println(msg)
		if e.Status().Status == engine.StatusCompleted {
			break
		}
	}
	return e, nil
}

func runDebate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Provider.APIKey == "" {
		return fmt.Errorf("API key not set. Run 'rostrum onboard' or set ROSTRUM_API_KEY / GROQ_API_KEY")
	}
	if turnsFlag > 0 {
		cfg.Debate.Turns = turnsFlag
	}
	if factCheckFlag {
		cfg.Debate.FactChecking = true
	}

	debaters := defaultDebaters()
	if len(debaterFlags) > 0 {
		debaters = debaters[:0]
		for _, spec := range debaterFlags {
			p, err := parseDebaterSpec(spec)
			if err != nil {
				return err
			}
			debaters = append(debaters, p)
		}
	}

	e, err := executeDebate(cfg, topicFlag, debaters, moderatorFlag)
	if err != nil {
		return err
	}

	sess := e.Session()
	fmt.Println()
	fmt.Println(engine.FormatTranscript(sess.Transcript, engine.FormatText))
	fmt.Println()
	fmt.Println(engine.FormatSession(sess, engine.FormatText))
	fmt.Printf("\nSession saved as %s\n", e.ID()[:8])
	return nil
}

func runReplay(cmd *cobra.Command, args []string) error {
	store := engine.NewStore(config.DebatesDir())
	sess, err := store.Load(args[0])
	if err != nil {
		return err
	}
	fmt.Println(engine.FormatTranscript(sess.Transcript, formatFlag))
	fmt.Println()
	fmt.Println(engine.FormatSession(sess, formatFlag))
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	store := engine.NewStore(config.DebatesDir())
	sessions, err := store.List()
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No saved debates.")
		return nil
	}
	for _, sess := range sessions {
		winner := "-"
		if sess.Results != nil && sess.Results.Winner != "" {
			winner = sess.Results.Winner
		}
		fmt.Printf("%s  %-40s  turns %d/%d  winner: %s\n",
			sess.ID[:8], sess.Topic, sess.Turns, sess.MaxTurns, winner)
	}
	return nil
}

func runOnboard(cmd *cobra.Command, args []string) error {
	cfgPath := config.ConfigPath()

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		if err := config.SaveConfig(config.DefaultConfig()); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("Created config: %s\n", cfgPath)
	} else {
		fmt.Printf("Config already exists: %s\n", cfgPath)
	}

	if err := os.MkdirAll(config.DebatesDir(), 0755); err != nil {
		return fmt.Errorf("create debates dir: %w", err)
	}

	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Edit %s to set your API key\n", cfgPath)
	fmt.Println("  2. Or set ROSTRUM_API_KEY / GROQ_API_KEY environment variables")
	fmt.Println("  3. Run 'rostrum run -t \"Should social media be regulated?\"'")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Config: error (%v)\n", err)
		return nil
	}

	fmt.Printf("Config: %s\n", config.ConfigPath())
	fmt.Printf("Model: %s\n", cfg.Agent.Model)
	fmt.Printf("Base URL: %s\n", cfg.Provider.BaseURL)
	fmt.Printf("API Key: %s\n", maskKey(cfg.Provider.APIKey))
	fmt.Printf("Search Key: %s\n", maskKey(cfg.Search.APIKey))
	fmt.Printf("Max Turns: %d\n", cfg.Debate.Turns)
	fmt.Printf("Fact Checking: %v\n", cfg.Debate.FactChecking)

	sessions, err := engine.NewStore(config.DebatesDir()).List()
	if err != nil {
		fmt.Printf("Debates: error (%v)\n", err)
	} else {
		fmt.Printf("Debates: %d saved\n", len(sessions))
	}
	return nil
}

func maskKey(key string) string {
	if key == "" {
		return "not set"
	}
	if len(key) > 8 {
		return key[:4] + "..." + key[len(key)-4:]
	}
	return "set"
}

func scheduleStorePath() string {
	return filepath.Join(config.ConfigDir(), "schedule.json")
}

func runScheduleServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Provider.APIKey == "" {
		return fmt.Errorf("API key not set. Run 'rostrum onboard' or set ROSTRUM_API_KEY / GROQ_API_KEY")
	}

	runner := func(job schedule.Job) (schedule.Outcome, error) {
		jobCfg := *cfg
		if job.Payload.MaxTurns > 0 {
			jobCfg.Debate.Turns = job.Payload.MaxTurns
		}
		jobCfg.Debate.FactChecking = job.Payload.FactChecking

		e, err := executeDebate(&jobCfg, job.Payload.Topic, defaultDebaters(), "Morgan")
		if err != nil {
			return schedule.Outcome{}, err
		}
		results, err := e.Results()
		if err != nil {
			return schedule.Outcome{}, err
		}
		return schedule.Outcome{SessionID: e.ID()[:8], Winner: results.Winner}, nil
	}

	svc := schedule.NewService(scheduleStorePath(), runner)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	fmt.Println("Scheduler running. Press Ctrl+C to stop.")
	<-ctx.Done()
	svc.Stop()
	return nil
}

func runScheduleAdd(cmd *cobra.Command, args []string) error {
	var sched schedule.Schedule
	switch {
	case cronFlag != "" && atFlag != "":
		return fmt.Errorf("use either --cron or --at, not both")
	case cronFlag != "":
		sched = schedule.Schedule{Kind: schedule.KindCron, Expr: cronFlag}
	case atFlag != "":
		at, err := time.Parse(time.RFC3339, atFlag)
		if err != nil {
			return fmt.Errorf("parse --at time: %w", err)
		}
		sched = schedule.Schedule{Kind: schedule.KindAt, AtMs: at.UnixMilli()}
	default:
		return fmt.Errorf("one of --cron or --at is required")
	}

	svc := schedule.NewService(scheduleStorePath(), nil)
	if err := svc.Load(); err != nil {
		return fmt.Errorf("load schedule: %w", err)
	}
	job, err := svc.AddJob(args[0], sched, schedule.Payload{
		Topic:        topicFlag,
		MaxTurns:     turnsFlag,
		FactChecking: factCheckFlag,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Added job %s (%s)\n", job.Name, job.ID)
	return nil
}

func runScheduleList(cmd *cobra.Command, args []string) error {
	svc := schedule.NewService(scheduleStorePath(), nil)
	if err := svc.Load(); err != nil {
		return fmt.Errorf("load schedule: %w", err)
	}

	jobs := svc.Jobs()
	if len(jobs) == 0 {
		fmt.Println("No scheduled debates.")
		return nil
	}
	for _, job := range jobs {
		when := job.Schedule.Expr
		if job.Schedule.Kind == schedule.KindAt {
			when = time.UnixMilli(job.Schedule.AtMs).Format(time.RFC3339)
		}
		state := "enabled"
		if !job.Enabled {
			state = "disabled"
		}
		fmt.Printf("%s  %-20s  %-24s  %s  topic: %q\n", job.ID[:8], job.Name, when, state, job.Payload.Topic)
		if job.LastRun.AtMs > 0 {
			if job.LastRun.Error != "" {
				fmt.Printf("          last run failed: %s\n", job.LastRun.Error)
			} else {
				fmt.Printf("          last run: session %s, winner %s\n", job.LastRun.SessionID, job.LastRun.Winner)
			}
		}
	}
	return nil
}

func runScheduleRemove(cmd *cobra.Command, args []string) error {
	svc := schedule.NewService(scheduleStorePath(), nil)
	if err := svc.Load(); err != nil {
		return fmt.Errorf("load schedule: %w", err)
	}

	if !svc.RemoveJob(args[0]) {
		return fmt.Errorf("job %s not found", args[0])
	}
	fmt.Println("Removed.")
	return nil
}
