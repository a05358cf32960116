// vask dictates a question by voice. It drives a streaming speech-to-text
// engine and shows the live state surface in a terminal UI; the finished
// question lands on the clipboard, ready to paste wherever it gets asked.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"vask/audio"
	"vask/log"
	"vask/recognition"
)

var version = "dev"

func main() {
	langFlag := flag.String("lang", "en", "Language code for recognition (e.g., en, es, fr)")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	setupFlag := flag.Bool("setup", false, "Select microphone device interactively")
	fakeFlag := flag.Bool("fake", false, "Use a scripted fake engine (no API key or microphone needed)")
	copyFlag := flag.Bool("copy", true, "Copy the finished question to the clipboard")
	tuiFlag := flag.Bool("tui", true, "Run with terminal UI (false: stdin-driven headless mode)")
	logPathFlag := flag.String("logpath", "", "Log directory path (default: OS-specific location)")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Println("vask " + version)
		return
	}

	if logPath, err := log.ResolveDir(*logPathFlag); err == nil {
		log.SetDir(logPath)
		if err := log.Init(); err != nil {
			fmt.Fprintf(os.Stderr, "log init: %v\n", err)
		}
		defer log.Close()
	}

	provider, providerName, cleanup, err := buildProvider(*fakeFlag, *setupFlag, *deviceFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer cleanup()

	ctrl := recognition.NewController(provider, *langFlag)
	defer ctrl.Close()

	log.Infof("vask %s starting (provider=%s lang=%s)", version, providerName, *langFlag)
	if !ctrl.State().Supported {
		fmt.Fprintln(os.Stderr, "voice input unavailable: set DEEPGRAM_API_KEY and check your microphone, or run with -fake")
	}

	if *tuiFlag {
		runTUI(ctrl, providerName, *langFlag, *copyFlag)
	} else {
		runHeadless(ctrl, providerName, *langFlag, *copyFlag)
	}
}

func buildProvider(fake, setup bool, deviceName string) (recognition.Provider, string, func(), error) {
	if fake {
		p := &recognition.FakeProvider{
			Script: []string{"what is the screen time policy for teen accounts"},
			Delay:  150 * time.Millisecond,
		}
		return p, "fake", func() {}, nil
	}

	apiKey := os.Getenv("DEEPGRAM_API_KEY")

	audioCtx, err := audio.NewContext()
	if err != nil {
		log.Warnf("audio context: %v", err)
		audioCtx = nil
	}

	var device *audio.DeviceInfo
	if audioCtx != nil {
		switch {
		case setup:
			device, err = audio.SelectDevice(audioCtx)
		case deviceName != "":
			device, err = audio.FindDevice(audioCtx, deviceName)
		}
		if err != nil {
			audioCtx.Close()
			return nil, "", nil, err
		}
	}

	cleanup := func() {
		if audioCtx != nil {
			audioCtx.Close()
		}
	}
	return recognition.NewDeepgramProvider(apiKey, audioCtx, device), "deepgram", cleanup, nil
}

// watchUpdates forwards controller snapshots to the display layer. On each
// listening→idle transition it logs the finished question and optionally
// places it on the clipboard.
func watchUpdates(ctrl *recognition.Controller, copyEnabled bool, onState func(s recognition.State, ended, copied bool)) {
	wasListening := false
	for s := range ctrl.Updates() {
		ended := wasListening && !s.Listening
		copied := false
		if ended {
			if question := strings.TrimSpace(s.Transcript); question != "" {
				log.Question(question)
				if copyEnabled {
					if err := clipboard.WriteAll(question); err != nil {
						log.Warnf("clipboard: %v", err)
					} else {
						copied = true
					}
				}
			}
			log.SessionEnd(len(s.Transcript), s.Err)
		}
		wasListening = s.Listening
		onState(s, ended, copied)
	}
}

func runTUI(ctrl *recognition.Controller, providerName, lang string, copyEnabled bool) {
	p := tea.NewProgram(newModel(ctrl, providerName, lang), tea.WithAltScreen())
	go watchUpdates(ctrl, copyEnabled, func(s recognition.State, ended, copied bool) {
		p.Send(stateMsg{state: s, ended: ended, copied: copied})
	})
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "tui: %v\n", err)
	}
}

func runHeadless(ctrl *recognition.Controller, providerName, lang string, copyEnabled bool) {
	fmt.Println("commands: start | stop | reset | state | quit")

	go watchUpdates(ctrl, copyEnabled, func(s recognition.State, ended, copied bool) {
		switch {
		case ended:
			if question := strings.TrimSpace(s.Transcript); question != "" {
				suffix := ""
				if copied {
					suffix = " [copied]"
				}
				fmt.Printf("question: %s%s\n", question, suffix)
			}
			if s.Err != "" {
				fmt.Printf("error: %s\n", s.Err)
			}
		case s.Err != "":
			fmt.Printf("error: %s\n", s.Err)
		case s.Interim != "":
			fmt.Printf("… %s%s\n", s.Transcript, s.Interim)
		}
	})

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		switch strings.TrimSpace(scanner.Text()) {
		case "start":
			log.SessionStart(providerName, lang)
			ctrl.Start()
		case "stop":
			ctrl.Stop()
		case "reset":
			ctrl.Reset()
		case "state":
			s := ctrl.State()
			fmt.Printf("supported=%t listening=%t transcript=%q interim=%q err=%q\n",
				s.Supported, s.Listening, s.Transcript, s.Interim, s.Err)
		case "quit", "exit":
			return
		case "":
		default:
			fmt.Println("commands: start | stop | reset | state | quit")
		}
	}
}
