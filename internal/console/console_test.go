package console

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/thebtf/hcplog/internal/session"
	"github.com/thebtf/hcplog/pkg/backend"
	"github.com/thebtf/hcplog/pkg/models"
)

// stubBackend assigns sequential ids and answers queries with a fixed message.
type stubBackend struct {
	nextID int
	answer string
	fail   *backend.BoundaryError
}

func (b *stubBackend) save(r models.InteractionRecord) (*backend.RecordResult, error) {
	if b.fail != nil {
		return nil, b.fail
	}
	if r.LogID.IsZero() {
		b.nextID++
		r.LogID = models.LogID("L" + string(rune('0'+b.nextID)))
		return &backend.RecordResult{Record: r, Created: true}, nil
	}
	return &backend.RecordResult{Record: r}, nil
}

func (b *stubBackend) extract(text string) (*backend.RecordResult, error) {
	rec := models.NewDraft()
	rec.HCPName = strings.TrimPrefix(text, "met ")
	return b.save(rec)
}

func (b *stubBackend) SaveManual(_ context.Context, r models.InteractionRecord) (*backend.RecordResult, error) {
	return b.save(r)
}

func (b *stubBackend) UpdateInteraction(_ context.Context, r models.InteractionRecord) (*backend.RecordResult, error) {
	return b.save(r)
}

func (b *stubBackend) LogInteraction(_ context.Context, text string) (*backend.RecordResult, error) {
	return b.extract(text)
}

func (b *stubBackend) FillFormWithAI(_ context.Context, text string) (*backend.RecordResult, error) {
	res, err := b.extract(text)
	if err == nil {
		res.Suggestions = []string{"Schedule follow-up"}
	}
	return res, err
}

func (b *stubBackend) ChatWithAI(context.Context, string) (*backend.QueryResult, error) {
	return &backend.QueryResult{Message: b.answer}, nil
}

func (b *stubBackend) Chat(_ context.Context, text string, _ models.LogID) (backend.ChatResult, error) {
	return b.extract(text)
}

// ConsoleSuite is a test suite for console commands.
type ConsoleSuite struct {
	suite.Suite
	backend *stubBackend
	ctl     *session.Controller
	out     *bytes.Buffer
	console *Console
	ctx     context.Context
}

func (s *ConsoleSuite) SetupTest() {
	s.ctx = context.Background()
	s.backend = &stubBackend{answer: "Dr. Evans"}
	s.ctl = session.NewController(session.NewStore(), s.backend)
	s.out = &bytes.Buffer{}
	s.console = New(s.ctl, s.out)
}

func TestConsoleSuite(t *testing.T) {
	suite.Run(t, new(ConsoleSuite))
}

func (s *ConsoleSuite) exec(line string) string {
	s.out.Reset()
	s.Require().NoError(s.console.Exec(s.ctx, line))
	return s.out.String()
}

// TestManualFlow tests composing and saving a draft.
func (s *ConsoleSuite) TestManualFlow() {
	s.exec("set hcp_name Dr. Evans")
	out := s.exec("set sentiment positive")
	s.Contains(out, "draft")
	s.Contains(out, "Positive")

	out = s.exec("save")
	s.Contains(out, "[succeeded]")
	s.Contains(out, "interaction L1")
	s.Equal(models.LogID("L1"), s.ctl.Snapshot().CurrentLogID)

	out = s.exec("set outcomes Agreed to trial")
	s.Contains(out, "Agreed to trial")
	out = s.exec("save")
	s.Contains(out, "[updated]")
	s.Equal(1, s.ctl.Store().Len())
}

// TestAICommands tests the assistant commands.
func (s *ConsoleSuite) TestAICommands() {
	out := s.exec("log met Dr. Patel")
	s.Contains(out, "Dr. Patel")

	out = s.exec("fill met Dr. Okafor")
	s.Contains(out, "suggested: Schedule follow-up")

	out = s.exec("ask Who was the last HCP I met?")
	s.Contains(out, "Dr. Evans")

	out = s.exec("ai met Dr. Wu")
	s.Contains(out, "interaction L3")
}

// TestHistoryAndPick tests listing and fuzzy selection.
func (s *ConsoleSuite) TestHistoryAndPick() {
	s.exec("log met Dr. Evans")
	s.exec("log met Dr. Patel")

	out := s.exec("history")
	s.Contains(out, "L1")
	s.Contains(out, "L2")

	out = s.exec("pick evans")
	s.Contains(out, "interaction L1")
	s.Equal(models.LogID("L1"), s.ctl.Snapshot().CurrentLogID)

	out = s.exec("pick Nakamura")
	s.Contains(out, "no interaction matches")

	out = s.exec("select L2")
	s.Contains(out, "interaction L2")

	out = s.exec("select L9")
	s.Contains(out, "no interaction L9")
}

// TestFailureIsPrinted tests backend failures show the status and message.
func (s *ConsoleSuite) TestFailureIsPrinted() {
	s.backend.fail = &backend.BoundaryError{Op: "save interaction", StatusCode: 422, Detail: "Validation failed"}
	out := s.exec("save")
	s.Contains(out, "[failed]")
	s.Contains(out, "Validation failed")
}

// TestPreconditionErrors tests errors handed back to the caller.
func (s *ConsoleSuite) TestPreconditionErrors() {
	var fieldErr *session.InvalidFieldError
	s.ErrorAs(s.console.Exec(s.ctx, "set colour blue"), &fieldErr)

	s.exec("clear")
	s.ErrorIs(s.console.Exec(s.ctx, "update"), session.ErrNoActiveRecord)

	s.ErrorIs(s.console.Exec(s.ctx, "bogus"), ErrUsage)
	s.ErrorIs(s.console.Exec(s.ctx, "ask"), ErrUsage)
	s.ErrorIs(s.console.Exec(s.ctx, "quit"), ErrQuit)
	s.NoError(s.console.Exec(s.ctx, "   "))
}

// TestNewAndShow tests starting a fresh draft.
func (s *ConsoleSuite) TestNewAndShow() {
	s.exec("log met Dr. Evans")
	out := s.exec("new")
	s.Contains(out, "[idle]")
	s.Contains(out, "draft")

	out = s.exec("clear")
	s.Contains(out, "editing a new draft")
	out = s.exec("show")
	s.Contains(out, "draft")
	s.NotContains(out, "no active record")
}

func TestRunProcessesLines(t *testing.T) {
	ctl := session.NewController(session.NewStore(), &stubBackend{answer: "one"})
	out := &bytes.Buffer{}
	c := New(ctl, out)

	in := strings.NewReader("set hcpName Dr. Evans\nsave\nbogus\nsave\nhelp\nquit\nset hcpName ignored\n")
	require.NoError(t, c.Run(context.Background(), in))

	text := out.String()
	assert.Contains(t, text, "unknown command")
	assert.Contains(t, text, "pick <hcp name>")
	assert.Equal(t, 1, ctl.Store().Len())
	rec, ok := ctl.Store().Current()
	require.True(t, ok)
	assert.Equal(t, "Dr. Evans", rec.HCPName)
}

func TestRunStopsAtEOF(t *testing.T) {
	ctl := session.NewController(session.NewStore(), &stubBackend{})
	c := New(ctl, &bytes.Buffer{})
	assert.NoError(t, c.Run(context.Background(), strings.NewReader("history\n")))
}

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		line, name, arg string
	}{
		{"save", "save", ""},
		{"  SET hcp_name  Dr. Evans ", "set", "hcp_name  Dr. Evans"},
		{"", "", ""},
	}
	for _, tt := range tests {
		name, arg := splitCommand(tt.line)
		assert.Equal(t, tt.name, name)
		assert.Equal(t, tt.arg, arg)
	}
}
