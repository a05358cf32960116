package main

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"vask/log"
	"vask/recognition"
)

type stateMsg struct {
	state  recognition.State
	ended  bool
	copied bool
}

var (
	listeningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	idleStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	modeStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	transcriptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	interimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
	errorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	copiedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	placeholderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
)

type tuiModel struct {
	ctrl     *recognition.Controller
	provider string
	language string

	state  recognition.State
	copied bool
	width  int
	height int
}

func newModel(ctrl *recognition.Controller, provider, language string) tuiModel {
	return tuiModel{
		ctrl:     ctrl,
		provider: provider,
		language: language,
		state:    ctrl.State(),
	}
}

func (m tuiModel) Init() tea.Cmd {
	return nil
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case stateMsg:
		m.state = msg.state
		if msg.state.Listening {
			m.copied = false
		}
		if msg.ended {
			m.copied = msg.copied
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case " ", "enter":
			if m.state.Listening {
				m.ctrl.Stop()
			} else {
				log.SessionStart(m.provider, m.language)
				m.ctrl.Start()
			}
		case "r":
			m.copied = false
			m.ctrl.Reset()
		case "c":
			if question := strings.TrimSpace(m.state.Transcript); question != "" {
				if err := clipboard.WriteAll(question); err == nil {
					m.copied = true
				}
			}
		}
	}
	return m, nil
}

func (m tuiModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var lines []string

	if m.state.Listening {
		lines = append(lines, listeningStyle.Render("● LISTENING"))
	} else {
		lines = append(lines, idleStyle.Render("○ IDLE"))
	}
	lines = append(lines, modeStyle.Render(fmt.Sprintf("[%s (%s)]", m.provider, m.language)))
	lines = append(lines, "")

	wrapWidth := m.width - 2
	if wrapWidth < 10 {
		wrapWidth = 10
	}

	question := m.state.Transcript + m.state.Interim
	if strings.TrimSpace(question) != "" {
		finalLen := len(m.state.Transcript)
		for _, line := range wrapText(question, wrapWidth) {
			// Finalized text renders solid, the open hypothesis dim.
			if finalLen >= len(line) {
				lines = append(lines, transcriptStyle.Render(line))
			} else if finalLen <= 0 {
				lines = append(lines, interimStyle.Render(line))
			} else {
				lines = append(lines, transcriptStyle.Render(line[:finalLen])+interimStyle.Render(line[finalLen:]))
			}
			finalLen -= len(line) + 1 // wrapping consumes the split space
		}
	} else if !m.state.Supported {
		lines = append(lines, placeholderStyle.Render("voice input unavailable on this system"))
	} else {
		lines = append(lines, placeholderStyle.Render("press space and ask your question"))
	}

	if m.copied {
		lines = append(lines, copiedStyle.Render("[✓ copied]"))
	}
	if m.state.Err != "" {
		lines = append(lines, "")
		lines = append(lines, errorStyle.Render("⚠ "+m.state.Err))
	}

	lines = append(lines, "")
	lines = append(lines, helpStyle.Render("space start/stop · r reset · c copy · q quit"))
	lines = append(lines, helpStyle.Render("vask "+version))

	return strings.Join(lines, "\n")
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}
