// Package console is a line-oriented front end for the session controller.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/hcplog/internal/session"
	"github.com/thebtf/hcplog/pkg/models"
)

// ErrQuit is returned by Exec when the user asks to leave.
var ErrQuit = errors.New("quit")

// ErrUsage is returned for malformed commands.
var ErrUsage = errors.New("usage")

// Controller is the part of *session.Controller the console drives.
type Controller interface {
	Snapshot() session.Snapshot
	Store() *session.Store
	StartNew()
	SelectExisting(id models.LogID) bool
	EditField(name, value string) error
	ClearHistory()
	SubmitManual(ctx context.Context) error
	SubmitUpdate(ctx context.Context) error
	SubmitAICreateOrEdit(ctx context.Context, text string) error
	SubmitAIQuery(ctx context.Context, text string) error
	LogWithAI(ctx context.Context, text string) error
	FillFormWithAI(ctx context.Context, text string) error
}

type command struct {
	run   func(ctx context.Context, arg string) error
	usage string
	help  string
}

// Console reads commands and prints the resulting session state.
type Console struct {
	ctl      Controller
	out      io.Writer
	styles   styles
	commands map[string]command
}

// New creates a console writing to out.
func New(ctl Controller, out io.Writer) *Console {
	c := &Console{
		ctl:    ctl,
		out:    out,
		styles: newStyles(lipgloss.NewRenderer(out)),
	}
	c.commands = map[string]command{
		"new":     {run: c.cmdNew, help: "start a new draft"},
		"select":  {run: c.cmdSelect, usage: "select <log id>", help: "edit a logged interaction"},
		"pick":    {run: c.cmdPick, usage: "pick <hcp name>", help: "select the interaction that best matches an HCP name"},
		"set":     {run: c.cmdSet, usage: "set <field> <value>", help: "edit a field of the active record"},
		"save":    {run: c.cmdSave, help: "save the active record"},
		"update":  {run: c.cmdUpdate, help: "send the selected record to the update endpoint"},
		"ai":      {run: c.cmdAI, usage: "ai <text>", help: "create or edit through the assistant"},
		"ask":     {run: c.cmdAsk, usage: "ask <question>", help: "ask about logged interactions"},
		"log":     {run: c.cmdLog, usage: "log <text>", help: "log an interaction from free text"},
		"fill":    {run: c.cmdFill, usage: "fill <text>", help: "fill the form from free text"},
		"history": {run: c.cmdHistory, help: "list logged interactions"},
		"show":    {run: c.cmdShow, help: "show the active record and status"},
		"clear":   {run: c.cmdClear, help: "forget every interaction of this session"},
		"help":    {run: c.cmdHelp, help: "list commands"},
		"quit":    {run: func(context.Context, string) error { return ErrQuit }, help: "leave"},
	}
	return c
}

// Run executes lines from in until EOF, quit or ctx is done.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	c.prompt()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			err := c.Exec(ctx, line)
			switch {
			case errors.Is(err, ErrQuit):
				return nil
			case errors.Is(err, ErrUsage):
				fmt.Fprintln(c.out, c.styles.err.Render(err.Error()))
			case err != nil:
				log.Debug().Err(err).Str("line", line).Msg("Command failed")
				c.printError(err)
			}
			c.prompt()
		}
	}
}

// Exec runs one command line.
func (c *Console) Exec(ctx context.Context, line string) error {
	name, arg := splitCommand(line)
	if name == "" {
		return nil
	}
	cmd, ok := c.commands[name]
	if !ok {
		return fmt.Errorf("%w: unknown command %q, try help", ErrUsage, name)
	}
	if cmd.usage != "" && arg == "" {
		return fmt.Errorf("%w: %s", ErrUsage, cmd.usage)
	}
	return cmd.run(ctx, arg)
}

func splitCommand(line string) (string, string) {
	line = strings.TrimSpace(line)
	name, arg, _ := strings.Cut(line, " ")
	return strings.ToLower(name), strings.TrimSpace(arg)
}

func (c *Console) cmdNew(context.Context, string) error {
	c.ctl.StartNew()
	c.printActive(c.ctl.Snapshot())
	return nil
}

func (c *Console) cmdSelect(_ context.Context, arg string) error {
	if !c.ctl.SelectExisting(models.LogID(arg)) {
		fmt.Fprintf(c.out, "no interaction %s\n", arg)
		return nil
	}
	c.printActive(c.ctl.Snapshot())
	return nil
}

func (c *Console) cmdPick(_ context.Context, arg string) error {
	rec, ok := c.ctl.Store().FindByHCP(arg)
	if !ok {
		fmt.Fprintf(c.out, "no interaction matches %q\n", arg)
		return nil
	}
	c.ctl.SelectExisting(rec.LogID)
	c.printActive(c.ctl.Snapshot())
	return nil
}

func (c *Console) cmdSet(_ context.Context, arg string) error {
	field, value, _ := strings.Cut(arg, " ")
	if err := c.ctl.EditField(field, strings.TrimSpace(value)); err != nil {
		return err
	}
	c.printActive(c.ctl.Snapshot())
	return nil
}

func (c *Console) cmdSave(ctx context.Context, _ string) error {
	return c.report(c.ctl.SubmitManual(ctx))
}

func (c *Console) cmdUpdate(ctx context.Context, _ string) error {
	return c.report(c.ctl.SubmitUpdate(ctx))
}

func (c *Console) cmdAI(ctx context.Context, arg string) error {
	return c.report(c.ctl.SubmitAICreateOrEdit(ctx, arg))
}

func (c *Console) cmdAsk(ctx context.Context, arg string) error {
	return c.report(c.ctl.SubmitAIQuery(ctx, arg))
}

func (c *Console) cmdLog(ctx context.Context, arg string) error {
	return c.report(c.ctl.LogWithAI(ctx, arg))
}

func (c *Console) cmdFill(ctx context.Context, arg string) error {
	return c.report(c.ctl.FillFormWithAI(ctx, arg))
}

func (c *Console) cmdHistory(context.Context, string) error {
	snap := c.ctl.Snapshot()
	if len(snap.History) == 0 {
		fmt.Fprintln(c.out, c.styles.muted.Render("no interactions logged"))
		return nil
	}
	for _, rec := range snap.History {
		marker := " "
		if rec.LogID == snap.CurrentLogID {
			marker = c.styles.accent.Render("*")
		}
		fmt.Fprintf(c.out, "%s %-6s %-24s %-12s %s\n",
			marker, rec.LogID, rec.DisplayName(), rec.InteractionType, c.styles.sentiment(rec.Sentiment))
	}
	return nil
}

func (c *Console) cmdShow(context.Context, string) error {
	c.printActive(c.ctl.Snapshot())
	return nil
}

func (c *Console) cmdClear(context.Context, string) error {
	c.ctl.ClearHistory()
	fmt.Fprintln(c.out, "history cleared; editing a new draft")
	return nil
}

func (c *Console) cmdHelp(context.Context, string) error {
	names := make([]string, 0, len(c.commands))
	for name := range c.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cmd := c.commands[name]
		usage := cmd.usage
		if usage == "" {
			usage = name
		}
		fmt.Fprintf(c.out, "  %-24s %s\n", usage, c.styles.muted.Render(cmd.help))
	}
	fmt.Fprintf(c.out, "  fields: %s\n", c.styles.muted.Render(fieldList()))
	return nil
}

// report prints the outcome of a submit. Backend failures are already in the
// snapshot, so only precondition errors are handed back.
func (c *Console) report(err error) error {
	if isPrecondition(err) {
		return err
	}
	snap := c.ctl.Snapshot()
	c.printStatus(snap)
	if snap.TransientMessage != "" {
		fmt.Fprintln(c.out, c.styles.message.Render(snap.TransientMessage))
	}
	if err == nil {
		if rec, ok := snap.Current(); ok {
			c.printRecord(rec)
		}
	}
	for _, s := range snap.Suggestions {
		fmt.Fprintf(c.out, "  %s %s\n", c.styles.accent.Render("suggested:"), s)
	}
	return nil
}

func (c *Console) printStatus(snap session.Snapshot) {
	line := c.styles.status(snap.Status)
	if snap.Status == models.StatusFailed && snap.Error != "" {
		line += " " + c.styles.err.Render(snap.Error)
	}
	fmt.Fprintln(c.out, line)
}

func (c *Console) printActive(snap session.Snapshot) {
	c.printStatus(snap)
	rec, ok := snap.Active()
	if !ok {
		fmt.Fprintln(c.out, c.styles.muted.Render("no active record; use new"))
		return
	}
	c.printRecord(rec)
}

func (c *Console) printRecord(rec models.InteractionRecord) {
	title := "draft"
	if !rec.LogID.IsZero() {
		title = "interaction " + rec.LogID.String()
	}
	fmt.Fprintln(c.out, c.styles.title.Render(title))
	for _, f := range models.Fields {
		value := rec.Get(f)
		if f == models.FieldSentiment {
			value = c.styles.sentiment(rec.Sentiment)
		}
		fmt.Fprintf(c.out, "  %-20s %s\n", f.WireName(), value)
	}
}

func (c *Console) printError(err error) {
	var fieldErr *session.InvalidFieldError
	switch {
	case errors.As(err, &fieldErr):
		fmt.Fprintln(c.out, c.styles.err.Render(fieldErr.Error()))
	case errors.Is(err, session.ErrNoActiveRecord):
		fmt.Fprintln(c.out, c.styles.err.Render("no active record; use new or select"))
	case errors.Is(err, session.ErrRequestInFlight):
		fmt.Fprintln(c.out, c.styles.err.Render("a request is still running"))
	case errors.Is(err, session.ErrEmptyText):
		fmt.Fprintln(c.out, c.styles.err.Render("nothing to send"))
	default:
		fmt.Fprintln(c.out, c.styles.err.Render(err.Error()))
	}
}

func isPrecondition(err error) bool {
	var fieldErr *session.InvalidFieldError
	return errors.Is(err, session.ErrNoActiveRecord) ||
		errors.Is(err, session.ErrRequestInFlight) ||
		errors.Is(err, session.ErrEmptyText) ||
		errors.As(err, &fieldErr)
}

func (c *Console) prompt() {
	fmt.Fprint(c.out, c.styles.accent.Render("hcplog> "))
}

func fieldList() string {
	names := make([]string, len(models.Fields))
	for i, f := range models.Fields {
		names[i] = f.WireName()
	}
	return strings.Join(names, ", ")
}
