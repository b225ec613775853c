package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dewi-tim/sasmux/internal/library"
)

// LibBrowserKeyMap defines key bindings for the library browser.
type LibBrowserKeyMap struct {
	Up         key.Binding
	Down       key.Binding
	PageUp     key.Binding
	PageDown   key.Binding
	GoToTop    key.Binding
	GoToBottom key.Binding
	Enter      key.Binding // Expand/collapse or select
	Back       key.Binding // Collapse or go to parent
	AddAll     key.Binding // Queue a whole album or format
	Rescan     key.Binding
}

// DefaultLibBrowserKeyMap returns the default library browser key bindings.
func DefaultLibBrowserKeyMap() LibBrowserKeyMap {
	return LibBrowserKeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/up", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/down", "down"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup", "ctrl+u"),
			key.WithHelp("pgup", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown", "ctrl+d"),
			key.WithHelp("pgdown", "page down"),
		),
		GoToTop: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "top"),
		),
		GoToBottom: key.NewBinding(
			key.WithKeys("G"),
			key.WithHelp("G", "bottom"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter", "l", "right"),
			key.WithHelp("enter", "expand/queue"),
		),
		Back: key.NewBinding(
			key.WithKeys("backspace", "h", "left"),
			key.WithHelp("backspace", "collapse"),
		),
		AddAll: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "queue all"),
		),
		Rescan: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "rescan"),
		),
	}
}

// NodeType represents the type of tree node.
type NodeType int

const (
	NodeFormat NodeType = iota
	NodeAlbum
	NodeTrack
)

// TreeNode represents a node in the library tree.
type TreeNode struct {
	Type     NodeType
	Name     string
	Format   string // For albums and tracks
	Album    string // For tracks
	Track    *library.Track
	Children []*TreeNode
	Expanded bool
	Parent   *TreeNode
}

func (n *TreeNode) depth() int {
	d := 0
	for p := n.Parent; p != nil; p = p.Parent {
		d++
	}
	return d
}

// LibBrowser is a tree-based library browser component.
type LibBrowser struct {
	lib  *library.Library
	root []*TreeNode

	// Visible nodes in display order.
	flatList []*TreeNode

	selected int
	offset   int // first visible row

	width  int
	height int

	focused bool
	keyMap  LibBrowserKeyMap
	styles  LibBrowserStyles

	scanning   bool
	trackCount int
	skipped    int
	scanErr    error
}

// LibBrowserStyles contains styles for the library browser component.
type LibBrowserStyles struct {
	Cursor   lipgloss.Style
	Format   lipgloss.Style
	Album    lipgloss.Style
	Track    lipgloss.Style
	Selected lipgloss.Style
	Muted    lipgloss.Style
	Error    lipgloss.Style
}

// DefaultLibBrowserStyles returns the default library browser styles.
func DefaultLibBrowserStyles() LibBrowserStyles {
	return LibBrowserStyles{
		Cursor: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7571F9")).
			Bold(true),
		Format: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")).
			Bold(true),
		Album: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#99CCFF")),
		Track: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")),
		Selected: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7571F9")).
			Bold(true),
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#606060")),
		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555")),
	}
}

// LibBrowserScanCompleteMsg is sent when library scanning completes.
type LibBrowserScanCompleteMsg struct {
	TrackCount int
	Err        error
}

// LibTrackSelectedMsg is sent when a track is selected.
type LibTrackSelectedMsg struct {
	Track library.Track
}

// LibTracksSelectedMsg is sent when a whole album or format is queued.
type LibTracksSelectedMsg struct {
	Tracks []library.Track
}

// NewLibBrowser creates a new library browser.
func NewLibBrowser(lib *library.Library) *LibBrowser {
	return &LibBrowser{
		lib:    lib,
		width:  30,
		height: 10,
		keyMap: DefaultLibBrowserKeyMap(),
		styles: DefaultLibBrowserStyles(),
	}
}

// Init starts the first scan.
func (b *LibBrowser) Init() tea.Cmd {
	return b.Scan()
}

// Scan returns a command that rescans the library.
func (b *LibBrowser) Scan() tea.Cmd {
	b.scanning = true
	lib := b.lib
	return func() tea.Msg {
		count, err := lib.Scan()
		return LibBrowserScanCompleteMsg{TrackCount: count, Err: err}
	}
}

// Scanning reports whether a scan is in flight.
func (b *LibBrowser) Scanning() bool {
	return b.scanning
}

// buildTree rebuilds the tree from the library index, keeping the
// expansion state of nodes that survive the rescan.
func (b *LibBrowser) buildTree() {
	expanded := make(map[string]bool)
	for _, f := range b.root {
		expanded[f.Name] = f.Expanded
		for _, a := range f.Children {
			expanded[f.Name+"\x00"+a.Name] = a.Expanded
		}
	}

	b.root = b.root[:0]
	for _, formatName := range b.lib.Formats() {
		formatNode := &TreeNode{
			Type:     NodeFormat,
			Name:     formatName,
			Expanded: expanded[formatName],
		}
		for _, albumName := range b.lib.Albums(formatName) {
			albumNode := &TreeNode{
				Type:     NodeAlbum,
				Name:     albumName,
				Format:   formatName,
				Expanded: expanded[formatName+"\x00"+albumName],
				Parent:   formatNode,
			}
			tracks := b.lib.Tracks(formatName, albumName)
			for i := range tracks {
				albumNode.Children = append(albumNode.Children, &TreeNode{
					Type:   NodeTrack,
					Name:   tracks[i].Title,
					Format: formatName,
					Album:  albumName,
					Track:  &tracks[i],
					Parent: albumNode,
				})
			}
			formatNode.Children = append(formatNode.Children, albumNode)
		}
		b.root = append(b.root, formatNode)
	}
	b.rebuildFlatList()
}

// rebuildFlatList rebuilds the visible node list from the tree.
func (b *LibBrowser) rebuildFlatList() {
	b.flatList = b.flatList[:0]
	var walk func(n *TreeNode)
	walk = func(n *TreeNode) {
		b.flatList = append(b.flatList, n)
		if n.Expanded {
			for _, c := range n.Children {
				walk(c)
			}
		}
	}
	for _, n := range b.root {
		walk(n)
	}
	b.clampSelection()
}

// Update handles messages and updates the browser state.
func (b *LibBrowser) Update(msg tea.Msg) (*LibBrowser, tea.Cmd) {
	switch msg := msg.(type) {
	case LibBrowserScanCompleteMsg:
		b.scanning = false
		b.scanErr = msg.Err
		if msg.Err == nil {
			b.trackCount = msg.TrackCount
			b.skipped = b.lib.Skipped()
			b.buildTree()
		}
		return b, nil

	case tea.KeyMsg:
		if !b.focused {
			return b, nil
		}
		return b.handleKeyMsg(msg)
	}
	return b, nil
}

// handleKeyMsg handles keyboard input when focused.
func (b *LibBrowser) handleKeyMsg(msg tea.KeyMsg) (*LibBrowser, tea.Cmd) {
	switch {
	case key.Matches(msg, b.keyMap.Up):
		b.move(-1)
	case key.Matches(msg, b.keyMap.Down):
		b.move(1)
	case key.Matches(msg, b.keyMap.PageUp):
		b.move(-b.visibleCount())
	case key.Matches(msg, b.keyMap.PageDown):
		b.move(b.visibleCount())
	case key.Matches(msg, b.keyMap.GoToTop):
		b.move(-len(b.flatList))
	case key.Matches(msg, b.keyMap.GoToBottom):
		b.move(len(b.flatList))
	case key.Matches(msg, b.keyMap.Enter):
		return b, b.handleEnter()
	case key.Matches(msg, b.keyMap.Back):
		b.handleBack()
	case key.Matches(msg, b.keyMap.AddAll):
		return b, b.handleAddAll()
	case key.Matches(msg, b.keyMap.Rescan):
		if !b.scanning {
			return b, b.Scan()
		}
	}
	return b, nil
}

// handleEnter expands or collapses a group, or selects a track.
func (b *LibBrowser) handleEnter() tea.Cmd {
	node := b.SelectedNode()
	if node == nil {
		return nil
	}
	if node.Type != NodeTrack {
		node.Expanded = !node.Expanded
		b.rebuildFlatList()
		return nil
	}
	track := *node.Track
	return func() tea.Msg {
		return LibTrackSelectedMsg{Track: track}
	}
}

// handleBack collapses the selected node, or moves to its parent.
func (b *LibBrowser) handleBack() {
	node := b.SelectedNode()
	if node == nil {
		return
	}
	if node.Expanded {
		node.Expanded = false
		b.rebuildFlatList()
		return
	}
	for i, n := range b.flatList {
		if n == node.Parent {
			b.selected = i
			b.clampSelection()
			return
		}
	}
}

// handleAddAll queues every track under the selected node.
func (b *LibBrowser) handleAddAll() tea.Cmd {
	node := b.SelectedNode()
	if node == nil {
		return nil
	}

	var tracks []library.Track
	switch node.Type {
	case NodeFormat:
		for _, album := range b.lib.Albums(node.Name) {
			tracks = append(tracks, b.lib.Tracks(node.Name, album)...)
		}
	case NodeAlbum:
		tracks = b.lib.Tracks(node.Format, node.Name)
	case NodeTrack:
		tracks = []library.Track{*node.Track}
	}
	if len(tracks) == 0 {
		return nil
	}
	return func() tea.Msg {
		return LibTracksSelectedMsg{Tracks: tracks}
	}
}

func (b *LibBrowser) move(delta int) {
	b.selected += delta
	b.clampSelection()
}

// visibleCount returns the number of tree rows that fit under the status line.
func (b *LibBrowser) visibleCount() int {
	return max(b.height-1, 1)
}

// clampSelection keeps the selection inside the list and on screen.
func (b *LibBrowser) clampSelection() {
	b.selected = max(min(b.selected, len(b.flatList)-1), 0)
	visible := b.visibleCount()
	if b.selected < b.offset {
		b.offset = b.selected
	}
	if b.selected >= b.offset+visible {
		b.offset = b.selected - visible + 1
	}
	b.offset = max(min(b.offset, len(b.flatList)-visible), 0)
}

// View renders the library browser.
func (b *LibBrowser) View() string {
	var s strings.Builder

	switch {
	case b.scanning:
		s.WriteString(b.styles.Muted.Render(fmt.Sprintf("Scanning %s...", b.lib.Root())))
		return b.constrainToHeight(s.String())
	case b.scanErr != nil:
		s.WriteString(b.styles.Error.Render("Scan failed: " + b.scanErr.Error()))
		return b.constrainToHeight(s.String())
	}

	status := fmt.Sprintf("%d tracks in %s", b.trackCount, b.lib.Root())
	if b.skipped > 0 {
		status += fmt.Sprintf(" (%d unreadable)", b.skipped)
	}
	s.WriteString(b.styles.Muted.Render(status))
	s.WriteRune('\n')

	if len(b.flatList) == 0 {
		s.WriteString(b.styles.Muted.Render("No tracks found"))
		return b.constrainToHeight(s.String())
	}

	end := min(b.offset+b.visibleCount(), len(b.flatList))
	for i := b.offset; i < end; i++ {
		s.WriteString(b.renderNode(b.flatList[i], i == b.selected))
		s.WriteRune('\n')
	}
	return b.constrainToHeight(s.String())
}

func (b *LibBrowser) renderNode(node *TreeNode, selected bool) string {
	depth := node.depth()

	var content string
	switch node.Type {
	case NodeFormat, NodeAlbum:
		marker := "[+]"
		if node.Expanded {
			marker = "[-]"
		}
		content = fmt.Sprintf("%s %s (%d)", marker, node.Name, len(node.Children))
	case NodeTrack:
		content = fmt.Sprintf(" -  %s  %s", node.Name, formatDuration(node.Track.Duration))
	}

	// cursor 2, indent 2 per level, padding 2
	maxWidth := max(b.width-4-2*depth, 10)
	if len(content) > maxWidth {
		content = content[:maxWidth-3] + "..."
	}

	indent := strings.Repeat("  ", depth)
	if selected {
		return b.styles.Cursor.Render("> ") + indent + b.styles.Selected.Render(content)
	}
	style := b.styles.Track
	switch node.Type {
	case NodeFormat:
		style = b.styles.Format
	case NodeAlbum:
		style = b.styles.Album
	}
	return "  " + indent + style.Render(content)
}

// constrainToHeight pads or truncates the content to the browser height.
func (b *LibBrowser) constrainToHeight(content string) string {
	if b.height <= 0 {
		return content
	}
	lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	if len(lines) > b.height {
		lines = lines[:b.height]
	}
	for len(lines) < b.height {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// SetSize sets the browser dimensions.
func (b *LibBrowser) SetSize(width, height int) {
	b.width = width
	b.height = height
	b.clampSelection()
}

// Focus sets the browser as focused.
func (b *LibBrowser) Focus() {
	b.focused = true
}

// Blur removes focus from the browser.
func (b *LibBrowser) Blur() {
	b.focused = false
}

// IsFocused returns whether the browser is focused.
func (b *LibBrowser) IsFocused() bool {
	return b.focused
}

// KeyMap returns the key map.
func (b *LibBrowser) KeyMap() LibBrowserKeyMap {
	return b.keyMap
}

// SelectedNode returns the currently selected node.
func (b *LibBrowser) SelectedNode() *TreeNode {
	if b.selected < 0 || b.selected >= len(b.flatList) {
		return nil
	}
	return b.flatList[b.selected]
}
