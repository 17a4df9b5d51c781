// Telemetry simulator: writes CanSat packets to a serial device, a socat
// virtual pair or a replay file. Use this for local testing when you don't
// have flight hardware.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.bug.st/serial"

	"CanSatGS/internal/model"
	"CanSatGS/internal/util"
)

type options struct {
	dev      string
	baud     int
	socat    string
	out      string
	team     int
	interval time.Duration
	count    int
	noise    int
	header   bool
	seed     int64
}

func main() {
	var o options
	fs := pflag.NewFlagSet("simulation", pflag.ContinueOnError)
	fs.StringVar(&o.dev, "dev", "/tmp/cansat-sim", "serial device to write telemetry into")
	fs.IntVar(&o.baud, "baud", 115200, "baud rate")
	fs.StringVar(&o.socat, "socat", "", "create a socat pair linking --dev to this path (the ground station side)")
	fs.StringVar(&o.out, "out", "", "append packets to this replay file instead of a serial device")
	fs.IntVar(&o.team, "team", 1071, "team id")
	fs.DurationVar(&o.interval, "interval", time.Second, "time between packets")
	fs.IntVar(&o.count, "count", 0, "stop after this many packets (0 runs until interrupted)")
	fs.IntVar(&o.noise, "noise", 0, "every Nth line is a malformed packet (0 disables)")
	fs.BoolVar(&o.header, "header", false, "write the field header line first")
	fs.Int64Var(&o.seed, "seed", time.Now().UnixNano(), "random seed")
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		os.Exit(2)
	}
	util.SetupLogger(util.LoggerOptions{})

	if err := run(o); err != nil {
		util.Error("[sim] %v", err)
		os.Exit(1)
	}
}

func run(o options) error {
	var (
		sink      io.WriteCloser
		socatDone <-chan struct{}
	)
	switch {
	case o.out != "":
		f, err := os.OpenFile(o.out, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open replay file: %w", err)
		}
		sink = f
		util.Info("[sim] appending packets to %s every %s", o.out, o.interval)
	default:
		if o.socat != "" {
			socat := util.NewSocatManager()
			defer socat.Cleanup()
			pair, err := socat.CreatePair(o.dev, o.socat, 3*time.Second)
			if err != nil {
				return err
			}
			socatDone = pair.Done()
			util.Info("[sim] ground station can open %s (%s)", o.socat, strings.Join(pair.PTYs(), " <-> "))
		}
		port, err := serial.Open(o.dev, &serial.Mode{BaudRate: o.baud})
		if err != nil {
			return fmt.Errorf("open serial %s: %w", o.dev, err)
		}
		sink = port
		go echoCommands(port)
		util.Info("[sim] sending to %s every %s", o.dev, o.interval)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			util.Warn("[sim] close output: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	if o.header {
		header := model.NewSchema(model.DefaultFields()...).Header()
		if _, err := io.WriteString(sink, header+"\n"); err != nil {
			return err
		}
	}

	fl := newFlight(o.team, o.seed, time.Now())
	tick := time.NewTicker(o.interval)
	defer tick.Stop()
	for sent := 0; o.count == 0 || sent < o.count; sent++ {
		select {
		case <-stop:
			return nil
		case <-socatDone:
			return errors.New("socat exited, virtual port is gone")
		case now := <-tick.C:
			fl.advance(o.interval)
			line := fl.line(now)
			if o.noise > 0 && (sent+1)%o.noise == 0 {
				line = line[:strings.LastIndexByte(line, ',')]
			}
			if _, err := io.WriteString(sink, line+"\n"); err != nil {
				util.Warn("[sim] write err: %v", err)
				continue
			}
			util.Debug("[sim] sent: %s", line)
		}
	}
	return nil
}

// echoCommands logs uplink commands and acknowledges them with a free-text
// line, which the ground station shows as a message.
func echoCommands(port serial.Port) {
	r := bufio.NewReader(port)
	for {
		line, err := r.ReadString('\n')
		if cmd := strings.TrimSpace(line); cmd != "" {
			util.Info("[sim] command received: %s", cmd)
			if _, werr := io.WriteString(port, "ACK "+cmd+"\n"); werr != nil {
				util.Warn("[sim] ack err: %v", werr)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return
			}
			// bugst returns 0, nil without a timeout; EOF means the peer went away
			time.Sleep(100 * time.Millisecond)
		}
	}
}
