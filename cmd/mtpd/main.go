// Command mtpd runs one switch's MTP agent: it discovers that switch's
// control and compute interfaces, brings up the join handshake, and then
// drives the liveness/flood/forwarding event loop until told to stop.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pjw7904/closnet/internal/config"
	"github.com/pjw7904/closnet/internal/iface"
	"github.com/pjw7904/closnet/internal/mtp"
	"github.com/pjw7904/closnet/internal/netio"
	"github.com/pjw7904/closnet/pkg/mlog"
)

const version = "mtpd 0.1.0"

var (
	fLevel   = flag.String("level", "warn", "log level: debug, info, warn, error, fatal")
	fVersion = flag.Bool("version", false, "print the version and exit")
)

func usage() {
	fmt.Println("usage: mtpd [option]... <node_name> <config_directory>")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *fVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if flag.NArg() != 2 {
		usage()
		os.Exit(1)
	}
	nodeName := flag.Arg(0)
	configDir := flag.Arg(1)

	level, err := mlog.LevelInt(*fLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if !config.IsValidDirectory(configDir) {
		fmt.Fprintf(os.Stderr, "not a directory: %s\n", configDir)
		os.Exit(1)
	}

	logFile := config.FilePath(configDir, nodeName, "log")
	if f, err := mlog.Init(level, true, logFile); err != nil {
		fmt.Fprintf(os.Stderr, "opening log file %s: %v\n", logFile, err)
		os.Exit(1)
	} else if f != nil {
		defer f.Close()
	}

	cfg, err := config.Read(config.FilePath(configDir, nodeName, "conf"))
	if err != nil {
		mlog.Fatal("mtpd: reading config: %v", err)
	}

	compute, controls, err := iface.Discover(nodeName, cfg.IsLeaf)
	if err != nil {
		mlog.Fatal("mtpd: discovering interfaces: %v", err)
	}
	if len(controls) == 0 {
		mlog.Fatal("mtpd: no control interfaces found for %s", nodeName)
	}

	recv := make(chan netio.Frame, 64)
	engine := mtp.NewEngine(nodeName, cfg.Tier, cfg.IsTopSpine, cfg.HelloTimer, cfg.DeadTimer, recv)
	engine.SetNodeDownPath(config.FilePath(configDir, "node_down", "log"))

	var ports []*netio.Port
	defer func() {
		for _, p := range ports {
			p.Close()
		}
	}()

	for _, ctl := range controls {
		portNum, err := iface.PortNumber(ctl.Name)
		if err != nil {
			mlog.Fatal("mtpd: %v", err)
		}
		p, err := netio.Open(ctl.Name, netio.EtherTypeMTP, recv)
		if err != nil {
			mlog.Fatal("mtpd: opening control port %s: %v", ctl.Name, err)
		}
		ports = append(ports, p)
		engine.AddControlPort(ctl.Name, portNum, ctl.MAC, p)
	}

	if cfg.IsLeaf {
		p, err := netio.Open(compute.Name, netio.EtherTypeIPv4, recv)
		if err != nil {
			mlog.Fatal("mtpd: opening compute port %s: %v", compute.Name, err)
		}
		ports = append(ports, p)
		engine.SetComputePort(compute.Name, compute.MAC, compute.IPv4, p)
	}

	go engine.StartupBurst()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	stop := make(chan struct{})
	go func() {
		sig := <-sigCh
		mlog.Info("mtpd: %s: caught %v, shutting down", nodeName, sig)
		close(stop)
	}()

	mlog.Info("mtpd: %s: running (tier=%d topSpine=%v)", nodeName, cfg.Tier, cfg.IsTopSpine)
	engine.Run(stop)
}
