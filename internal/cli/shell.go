// Package cli is the chat-channel command shell of §6: a set of plain
// chat messages (`rival`, `rival help`, `rival debug`, `rival ping`,
// `rival reload`, plus the diagnostic `save`, `desync`, and `tracker`
// commands) that the host recognizes via ParseSystemMessage and routes
// here instead of letting them reach the real chat channel.
//
// Grounded on the teacher's internal/handler.HandleGMCommand: a prefix
// check, strings.Fields parsing into a verb and its arguments, and a
// switch dispatching to one function per command, replying through a
// messenger callback rather than touching the connection directly.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/merusira/rival/internal/antidesync"
	"github.com/merusira/rival/internal/emulation"
	"github.com/merusira/rival/internal/pingmeter"
	"github.com/merusira/rival/internal/reload"
	"github.com/merusira/rival/internal/settings"
)

const maxLogRing = 400

// Reply sends one line of text back over the chat channel the command
// arrived on.
type Reply func(text string)

// Shell is the §6 chat-channel command interpreter. All of its
// collaborators are optional (nil-safe) so a harness can wire up only the
// pieces it has running.
type Shell struct {
	settingsPath string
	settings     settings.Settings

	ping     *pingmeter.Meter
	tracker  *emulation.Engine
	desync   *antidesync.Corrector
	reloader *reload.Host
	logDir   string

	logRing []string
}

// New builds a Shell. s is the settings snapshot the shell mutates and
// persists back to settingsPath on every toggle; logDir is where `save`
// flushes the debug ring (empty disables `save`).
func New(settingsPath string, s settings.Settings, ping *pingmeter.Meter, tracker *emulation.Engine, desync *antidesync.Corrector, reloader *reload.Host, logDir string) *Shell {
	return &Shell{
		settingsPath: settingsPath,
		settings:     s,
		ping:         ping,
		tracker:      tracker,
		desync:       desync,
		reloader:     reloader,
		logDir:       logDir,
	}
}

// Settings returns the shell's current settings snapshot.
func (s *Shell) Settings() settings.Settings { return s.settings }

// Log appends one line to the bounded debug ring, dropping the oldest
// entry once full. A no-op unless debug logging is enabled, per §6's
// "debug logs are opt-in and bounded".
func (s *Shell) Log(line string) {
	if !s.settings.Debug.Enabled {
		return
	}
	s.logRing = append(s.logRing, line)
	if len(s.logRing) > maxLogRing {
		s.logRing = s.logRing[len(s.logRing)-maxLogRing:]
	}
}

// Dispatch parses one line of recognized chat text and runs the matching
// command, replying via reply. It returns false when text isn't one of
// this shell's commands, so the caller can let it fall through to
// ordinary chat.
func (s *Shell) Dispatch(text string, now time.Time, reply Reply) bool {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false
	}

	switch strings.ToLower(fields[0]) {
	case "rival":
		s.dispatchRival(fields[1:], now, reply)
		return true
	case "save":
		s.cmdSave(fields[1:], reply)
		return true
	case "desync":
		s.cmdDesync(fields[1:], reply)
		return true
	case "tracker":
		s.cmdTracker(reply)
		return true
	default:
		return false
	}
}

func (s *Shell) dispatchRival(args []string, now time.Time, reply Reply) {
	if len(args) == 0 {
		s.settings.Enabled = !s.settings.Enabled
		s.persist(reply)
		reply(fmt.Sprintf("rival: %s", onOff(s.settings.Enabled)))
		return
	}

	switch strings.ToLower(args[0]) {
	case "help":
		s.cmdHelp(reply)
	case "debug":
		s.settings.Debug.Enabled = !s.settings.Debug.Enabled
		s.persist(reply)
		reply(fmt.Sprintf("rival debug: %s", onOff(s.settings.Debug.Enabled)))
	case "ping":
		s.cmdPing(reply)
	case "reload":
		s.cmdReload(now, reply)
	default:
		reply(fmt.Sprintf("rival: unknown command %q — try \"rival help\"", args[0]))
	}
}

func onOff(enabled bool) string {
	if enabled {
		return "on"
	}
	return "off"
}

func (s *Shell) persist(reply Reply) {
	if s.settingsPath == "" {
		return
	}
	if err := settings.Save(s.settingsPath, s.settings); err != nil {
		reply(fmt.Sprintf("rival: failed to save settings: %v", err))
	}
}

func (s *Shell) cmdHelp(reply Reply) {
	reply("rival — toggle the interceptor on/off")
	reply("rival help — show this list")
	reply("rival debug — toggle debug logging")
	reply("rival ping — show {min, avg, max, samples}")
	reply("rival reload — reload hot-reloadable modules now")
	reply("save [name] — flush the debug log ring to disk")
	reply("desync <float> — set the anti-desync back-correction distance")
	reply("tracker — show average delay/jitter/chain-excess")
}

func (s *Shell) cmdPing(reply Reply) {
	if s.ping == nil {
		reply("rival ping: no ping meter configured")
		return
	}
	st := s.ping.Stats()
	reply(fmt.Sprintf("ping: min=%s avg=%s max=%s samples=%d", st.Min, st.Avg, st.Max, st.Samples))
}

func (s *Shell) cmdReload(now time.Time, reply Reply) {
	if s.reloader == nil {
		reply("rival reload: no reload host configured")
		return
	}
	s.reloader.ForceReload(now)
	reply("rival reload: done")
}

func (s *Shell) cmdSave(args []string, reply Reply) {
	name := "debug"
	if len(args) > 0 {
		name = args[0]
	}
	if s.logDir == "" {
		reply("save: no log directory configured")
		return
	}
	path := filepath.Join(s.logDir, name+".log")
	content := strings.Join(s.logRing, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		reply(fmt.Sprintf("save: %v", err))
		return
	}
	reply(fmt.Sprintf("save: wrote %d lines to %s", len(s.logRing), path))
}

// cmdDesync sets the anti-desync back-correction distance. Per §6 the
// value the operator types is negated before being applied.
func (s *Shell) cmdDesync(args []string, reply Reply) {
	if len(args) != 1 {
		reply("desync: usage: desync <float>")
		return
	}
	v, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		reply(fmt.Sprintf("desync: invalid number %q", args[0]))
		return
	}
	if s.desync == nil {
		reply("desync: no anti-desync corrector configured")
		return
	}
	negated := -v
	s.desync.SetBackCorrection(negated)
	reply(fmt.Sprintf("desync: back-correction set to %v", negated))
}

func (s *Shell) cmdTracker(reply Reply) {
	if s.tracker == nil {
		reply("tracker: no emulation engine configured")
		return
	}
	st := s.tracker.TrackerStats()
	reply(fmt.Sprintf("tracker: samples=%d avg_delay=%s avg_jitter=%s avg_chain_excess=%d",
		st.Samples, st.AvgDelay, st.AvgJitter, st.AvgChainExcess))
}
