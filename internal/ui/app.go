package ui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/solarops/internal/listquery"
	"github.com/five82/solarops/internal/resource"
	"github.com/five82/solarops/internal/state"
)

const defaultUIInterval = time.Second

// Options configures the browser.
type Options struct {
	Lister    resource.Lister
	Catalog   *resource.Catalog
	Store     *state.Store
	PollTick  time.Duration
	ThemeName string
}

// Model is the root Bubble Tea model of the collection browser.
type Model struct {
	ctx      context.Context
	catalog  *resource.Catalog
	store    *state.Store
	pollTick time.Duration

	// Collection state
	lister  resource.Lister
	latest  *resource.Latest
	query   listquery.Query
	views   []string
	columns []string
	result  listquery.Result
	loading bool
	err     error

	// UI state
	theme     Theme
	keys      keyMap
	help      help.Model
	input     textinput.Model
	table     table.Model
	searching bool
	showHelp  bool
	width     int
	height    int

	snapshot    state.Snapshot
	lastUpdated time.Time
}

// New creates the browser model positioned on opts.Lister.
func New(ctx context.Context, opts Options) Model {
	if ctx == nil {
		ctx = context.Background()
	}

	pollTick := opts.PollTick
	if pollTick <= 0 || pollTick > defaultUIInterval {
		pollTick = defaultUIInterval
	}

	input := textinput.New()
	input.Prompt = "/ "
	input.Placeholder = "search"
	input.CharLimit = 120

	m := Model{
		ctx:      ctx,
		catalog:  opts.Catalog,
		store:    opts.Store,
		pollTick: pollTick,
		latest:   &resource.Latest{},
		theme:    GetTheme(opts.ThemeName),
		keys:     defaultKeyMap(),
		help:     help.New(),
		input:    input,
		table:    table.New(table.WithFocused(true), table.WithHeight(10), table.WithWidth(100)),
		width:    100,
		height:   24,
	}
	m.table.SetStyles(m.theme.TableStyles())
	m.setLister(opts.Lister)
	m.loading = m.lister != nil
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(m.pollTick)}
	if m.store != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}
	if cmd := m.fetch(); cmd != nil {
		cmds = append(cmds, cmd)
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.table.SetWidth(msg.Width)
		m.table.SetHeight(max(msg.Height-6, 3))
		m.refreshTable()
		return m, nil

	case tickMsg:
		if m.store == nil {
			return m, tickCmd(m.pollTick)
		}
		return m, tea.Batch(fetchSnapshotCmd(m.store), tickCmd(m.pollTick))

	case snapshotMsg:
		m.snapshot = state.Snapshot(msg)
		m.lastUpdated = time.Now()
		return m, nil

	case resultMsg:
		return m.handleResult(msg), nil
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.showHelp {
		return m.renderHelp()
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.renderToolbar(),
		m.table.View(),
		m.renderStatus(),
		m.renderFooter(),
	)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searching {
		return m.handleSearchKey(msg)
	}
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.latest.Stop()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.table.SetStyles(m.theme.TableStyles())
		return m, nil

	case key.Matches(msg, m.keys.Search):
		m.searching = true
		m.input.SetValue(m.query.Query)
		m.input.CursorEnd()
		return m, m.input.Focus()

	case key.Matches(msg, m.keys.Escape):
		if m.query.Query == "" {
			return m, nil
		}
		m.query.Query = ""
		m.query.Page = 0
		return m.refetch()

	case key.Matches(msg, m.keys.NextView):
		m.query.View = nextValue(m.views, m.query.View)
		m.query.Page = 0
		return m.refetch()

	case key.Matches(msg, m.keys.SortField):
		m.query.SortBy = nextValue(append([]string{""}, m.columns...), m.query.SortBy)
		return m.refetch()

	case key.Matches(msg, m.keys.SortDir):
		if m.query.Sort == listquery.Desc {
			m.query.Sort = listquery.Asc
		} else {
			m.query.Sort = listquery.Desc
		}
		return m.refetch()

	case key.Matches(msg, m.keys.NextPage):
		if m.query.Page+1 >= m.pages() {
			return m, nil
		}
		m.query.Page++
		return m.refetch()

	case key.Matches(msg, m.keys.PrevPage):
		if m.query.Page == 0 {
			return m, nil
		}
		m.query.Page--
		return m.refetch()

	case key.Matches(msg, m.keys.Reload):
		return m.refetch()

	case key.Matches(msg, m.keys.NextResource):
		return m.nextResource()
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		m.searching = false
		m.input.Blur()
		m.query.Query = m.input.Value()
		m.query.Page = 0
		return m.refetch()

	case key.Matches(msg, m.keys.Escape):
		m.searching = false
		m.input.Blur()
		m.input.SetValue(m.query.Query)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) nextResource() (tea.Model, tea.Cmd) {
	if m.catalog == nil || m.lister == nil {
		return m, nil
	}
	name := nextValue(m.catalog.Names(), m.lister.Name())
	lister, err := m.catalog.Lookup(name)
	if err != nil {
		m.err = err
		return m, nil
	}
	m.setLister(lister)
	return m.refetch()
}

func (m *Model) setLister(l resource.Lister) {
	m.lister = l
	m.query = listquery.Query{View: listquery.ViewAll}
	m.views = []string{listquery.ViewAll}
	m.result = listquery.Result{}
	m.err = nil
	m.input.SetValue("")
	if l != nil {
		m.columns = columnsFor(l.Schema())
	}
	m.refreshTable()
}

func (m Model) handleResult(msg resultMsg) Model {
	if !msg.ticket.Current() {
		return m
	}
	m.loading = false
	if msg.err != nil {
		if errors.Is(msg.err, context.Canceled) {
			return m
		}
		m.err = msg.err
		return m
	}
	m.err = nil
	m.result = msg.result
	m.views = msg.views
	m.refreshTable()
	return m
}

func (m Model) pages() int {
	if m.lister == nil {
		return 0
	}
	return listquery.Pages(m.result.TotalCount, m.lister.PageSize())
}

// fetch starts loading the current query. Starting a fetch cancels the
// previous one, and results of superseded fetches are dropped in Update.
func (m *Model) fetch() tea.Cmd {
	if m.lister == nil {
		return nil
	}
	m.loading = true
	ctx, ticket := m.latest.Begin(m.ctx)
	lister, q := m.lister, m.query
	return func() tea.Msg {
		records, err := lister.ListAll(ctx)
		if err != nil {
			return resultMsg{ticket: ticket, err: err}
		}
		schema := lister.Schema()
		pipeline := listquery.Pipeline{PageSize: lister.PageSize()}
		return resultMsg{
			ticket: ticket,
			result: pipeline.Apply(records, q, schema),
			views:  viewValues(records, schema.ViewField()),
		}
	}
}

func (m Model) refetch() (tea.Model, tea.Cmd) {
	cmd := m.fetch()
	return m, cmd
}

// Messages

type tickMsg time.Time

type snapshotMsg state.Snapshot

type resultMsg struct {
	ticket resource.Ticket
	result listquery.Result
	views  []string
	err    error
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(store *state.Store) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(store.Snapshot())
	}
}

// Run starts the browser and blocks until the user quits or ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	if opts.Lister == nil {
		return fmt.Errorf("ui requires a collection")
	}
	m := New(ctx, opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
