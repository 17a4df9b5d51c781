package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"CanSatGS/internal/core"
	"CanSatGS/internal/model"
	"CanSatGS/internal/util"
)

// stationControl is what the console drives.
type stationControl interface {
	Open() error
	Close() error
	SendCommand(text string) error
	SetLogging(on bool)
	Snapshot() core.Snapshot
}

// console reads operator input and prints classified events.
type console struct {
	ctrl     stationControl
	commands []model.CommandConfig

	mu  sync.Mutex
	out io.Writer
}

func newConsole(ctrl stationControl, commands []model.CommandConfig, out io.Writer) *console {
	return &console{ctrl: ctrl, commands: commands, out: out}
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

// OnEvent prints every classified event on its own line.
func (c *console) OnEvent(ev model.Event) {
	switch ev.Kind {
	case model.EventPacket:
		// the telemetry event already shows the decoded record
		return
	case model.EventTelemetry:
		body, err := json.Marshal(ev.Record)
		if err != nil {
			body = []byte(ev.Text)
		}
		c.printf("%-9s %s\n", ev.Kind, body)
	default:
		c.printf("%-9s %s\n", ev.Kind, ev.Text)
	}
}

// run processes input lines until EOF or :quit and reports whether the
// operator asked to quit.
func (c *console) run(in io.Reader) bool {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		if !c.exec(strings.TrimSpace(sc.Text())) {
			return true
		}
	}
	return false
}

// exec handles one input line and reports whether to keep reading.
func (c *console) exec(line string) bool {
	if line == "" {
		return true
	}
	if !strings.HasPrefix(line, ":") {
		c.report(c.ctrl.SendCommand(line))
		return true
	}
	fields := strings.Fields(line)
	switch fields[0] {
	case ":quit", ":q":
		return false
	case ":open":
		c.report(c.ctrl.Open())
	case ":close":
		c.report(c.ctrl.Close())
	case ":log":
		on, ok := onOff(fields)
		if !ok {
			c.printf("usage: :log on|off\n")
			return true
		}
		c.ctrl.SetLogging(on)
	case ":debug":
		on, ok := onOff(fields)
		if !ok {
			c.printf("usage: :debug on|off\n")
			return true
		}
		util.SetDebug(on)
	case ":status":
		snap := c.ctrl.Snapshot()
		c.printf("link %s (%s) pending=%d logging=%v debug=%v last=%q\n",
			snap.State, snap.Transport, snap.Pending, snap.Logging, util.DebugEnabled(), snap.LastStatus)
	case ":commands":
		for _, cmd := range c.commands {
			c.printf("  %-20s %s\n", cmd.Label, cmd.Command)
		}
	case ":help":
		c.printf(":open  :close  :log on|off  :debug on|off  :status  :commands  :quit\n" +
			"anything else is sent as a command; a shortcut label sends its command\n")
	default:
		c.printf("unknown console command %s (try :help)\n", fields[0])
	}
	return true
}

// onOff parses the argument of a two-word ":cmd on|off" line.
func onOff(fields []string) (on, ok bool) {
	if len(fields) != 2 {
		return false, false
	}
	switch fields[1] {
	case "on":
		return true, true
	case "off":
		return false, true
	}
	return false, false
}

func (c *console) report(err error) {
	if err != nil {
		c.printf("error: %v\n", err)
	}
}
