package main

import (
	"fmt"
	"sync/atomic"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/native-runtime/errors"
	"github.com/wippyai/native-runtime/mem"
	"github.com/wippyai/native-runtime/platform"
	"github.com/wippyai/native-runtime/runtime"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	fatalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// inspectorModel drives a Core from the TUI, one simulated thread id at a
// time. Every operation runs under a recover so a fatal from a deliberately
// illegal transition lands in the status line instead of killing the
// inspector.
type inspectorModel struct {
	core    *runtime.Core
	memory  *mem.Tracked
	curTID  *atomic.Uint64
	nextTID uint64

	table   table.Model
	rows    []*runtime.State
	boundTo map[uint64]uint64 // instance id -> simulated thread while RUNNING
	hits    map[uint64]int    // instance id -> delivered interrupts
	status  string
}

func newInspectorModel() *inspectorModel {
	cur := &atomic.Uint64{}
	memory := mem.NewTracked()
	core := runtime.New(runtime.Config{
		Memory:   memory,
		Platform: platform.New(platform.WithThreadID(cur.Load)),
	})

	cols := []table.Column{
		{Title: "ID", Width: 6},
		{Title: "STATUS", Width: 12},
		{Title: "THREAD", Width: 8},
		{Title: "BOUND", Width: 8},
		{Title: "INTERRUPTS", Width: 10},
	}
	t := table.New(
		table.WithColumns(cols),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	return &inspectorModel{
		core:    core,
		memory:  memory,
		curTID:  cur,
		table:   t,
		boundTo: make(map[uint64]uint64),
		hits:    make(map[uint64]int),
		status:  "ready",
	}
}

func (m *inspectorModel) Init() tea.Cmd {
	return nil
}

// onThread runs fn with the simulated thread id set to tid.
func (m *inspectorModel) onThread(tid uint64, fn func()) {
	m.curTID.Store(tid)
	fn()
}

// guarded runs op and routes a fatal invariant violation to the status line.
func (m *inspectorModel) guarded(op func()) {
	defer func() {
		if r := recover(); r != nil {
			if f, ok := r.(*errors.Fatal); ok {
				m.status = fatalStyle.Render(f.Error())
				return
			}
			panic(r)
		}
	}()
	op()
}

func (m *inspectorModel) freshThread() uint64 {
	m.nextTID++
	return m.nextTID
}

func (m *inspectorModel) selected() *runtime.State {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.rows) {
		return nil
	}
	return m.rows[i]
}

func (m *inspectorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit

		case "n": // attach on a fresh thread
			m.guarded(func() {
				tid := m.freshThread()
				m.onThread(tid, func() {
					st := m.core.AttachOrCreate()
					m.hookInterrupt(st)
					m.boundTo[st.ID()] = tid
					m.status = statusStyle.Render(fmt.Sprintf("instance %d attached to thread %d", st.ID(), tid))
				})
			})

		case "c": // create detached
			m.guarded(func() {
				m.onThread(m.freshThread(), func() {
					st, err := m.core.CreateDetached()
					if err != nil {
						m.status = fatalStyle.Render(err.Error())
						return
					}
					m.hookInterrupt(st)
					m.status = statusStyle.Render(fmt.Sprintf("instance %d created detached", st.ID()))
				})
			})

		case "s": // suspend selected
			if st := m.selected(); st != nil {
				m.guarded(func() {
					m.onThread(m.boundTo[st.ID()], func() {
						m.core.Suspend()
						delete(m.boundTo, st.ID())
						m.status = statusStyle.Render(fmt.Sprintf("instance %d suspended", st.ID()))
					})
				})
			}

		case "r": // resume selected on a fresh thread
			if st := m.selected(); st != nil {
				m.guarded(func() {
					tid := m.freshThread()
					m.onThread(tid, func() {
						m.core.Resume(st)
						m.boundTo[st.ID()] = tid
						m.status = statusStyle.Render(fmt.Sprintf("instance %d resumed on thread %d", st.ID(), tid))
					})
				})
			}

		case "x": // implicit detach of selected
			if st := m.selected(); st != nil {
				m.guarded(func() {
					m.onThread(m.boundTo[st.ID()], func() {
						m.core.DetachIfAttached()
						delete(m.boundTo, st.ID())
						delete(m.hits, st.ID())
						m.status = statusStyle.Render(fmt.Sprintf("instance %d detached", st.ID()))
					})
				})
			}

		case "d": // destroy selected (requires SUSPENDED)
			if st := m.selected(); st != nil {
				m.guarded(func() {
					m.core.Destroy(st)
					delete(m.hits, st.ID())
					m.status = statusStyle.Render(fmt.Sprintf("instance %d destroyed", st.ID()))
				})
			}

		case "i": // interrupt selected's creating thread
			if st := m.selected(); st != nil {
				m.core.Interrupt(st.CreatingThread())
				m.status = statusStyle.Render(fmt.Sprintf("interrupt sent to thread %d", st.CreatingThread()))
			}
		}
	}

	m.refreshRows()
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// hookInterrupt counts deliveries per instance. The handler only touches
// the pre-allocated map entry's counter path via the Update loop, so the
// demo keeps the signal-safety spirit without real signals.
func (m *inspectorModel) hookInterrupt(st *runtime.State) {
	id := st.ID()
	m.hits[id] = 0
	st.SetInterruptHandler(func(*runtime.State) {
		m.hits[id]++
	})
}

func (m *inspectorModel) refreshRows() {
	m.rows = m.rows[:0]
	m.core.LockRegistry()
	m.core.IterateRegistry(func(s *runtime.State) bool {
		m.rows = append(m.rows, s)
		return false
	})
	m.core.UnlockRegistry()

	rows := make([]table.Row, 0, len(m.rows))
	for _, s := range m.rows {
		bound := "-"
		if tid, ok := m.boundTo[s.ID()]; ok {
			bound = fmt.Sprintf("%d", tid)
		}
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", s.ID()),
			s.Status().String(),
			fmt.Sprintf("%d", s.CreatingThread()),
			bound,
			fmt.Sprintf("%d", m.hits[s.ID()]),
		})
	}
	m.table.SetRows(rows)
}

func (m *inspectorModel) View() string {
	header := titleStyle.Render("native-runtime registry inspector")
	stats := fmt.Sprintf("alive=%d live-heaps=%d", m.core.AliveCount(), m.memory.LiveCount())
	help := helpStyle.Render("n attach  c create  s suspend  r resume  x detach  d destroy  i interrupt  q quit")
	return fmt.Sprintf("%s  %s\n\n%s\n\n%s\n%s\n", header, stats, m.table.View(), m.status, help)
}

func runInteractive() error {
	p := tea.NewProgram(newInspectorModel())
	_, err := p.Run()
	return err
}
