package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Cybersecurity-and-Enterprise-Security/sockwire/pkg/socket"
	"github.com/prometheus/procfs"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

type arguments struct {
	LogLevel logrus.Level
	NetNS    string
	ProcPath string
	SockType int
	Numeric  bool
	Command  string
	Args     []string
}

var commands = map[string]string{
	"pack":      "pack [record]         encode a JSONC record (argument or stdin) as hex",
	"unpack":    "unpack [hex]          decode a hex address (argument or stdin) as JSON",
	"constants": "constants             print the exported constants",
	"listeners": "listeners [ip]        list listening sockets, optionally only those conflicting with ip",
	"resolve":   "resolve node [service] resolve a host and service into addresses",
	"nameinfo":  "nameinfo hex          look up host and service of an address",
	"bind":      "bind record           bind a socket to the address and print the bound address",
	"route":     "route                 print the default source address and its interface",
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] command [args]\n\nCommands:\n", os.Args[0])
	for _, name := range []string{"pack", "unpack", "constants", "listeners", "resolve", "nameinfo", "bind", "route"} {
		fmt.Fprintf(flag.CommandLine.Output(), "  %s\n", commands[name])
	}
	fmt.Fprintln(flag.CommandLine.Output(), "\nFlags:")
	flag.PrintDefaults()
}

func parseArgs() arguments {
	result := arguments{SockType: unix.SOCK_STREAM}
	var loglevel string

	flag.Usage = usage
	flag.StringVar(&loglevel, "loglevel", "info", "log level to use. See https://github.com/sirupsen/logrus#level-logging for available levels.")
	flag.StringVar(&result.NetNS, "netns", os.Getenv("SOCKWIRE_NETNS"), "named network namespace to open sockets and query interfaces in")
	flag.StringVar(&result.ProcPath, "proc", procfs.DefaultMountPoint, "mount point of the proc filesystem")
	flag.BoolVar(&result.Numeric, "numeric", false, "print numeric hosts and ports in nameinfo instead of looking up names")
	flag.Func("socktype", "socket type for resolve and bind, as SOCK_* name or number (default SOCK_STREAM)",
		func(s string) (err error) { result.SockType, err = parseSockType(s); return err })
	flag.Parse()

	logrusLevel, err := logrus.ParseLevel(loglevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid loglevel: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}
	result.LogLevel = logrusLevel

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "You need to specify a command.")
		flag.Usage()
		os.Exit(1)
	}
	result.Command = flag.Arg(0)
	result.Args = flag.Args()[1:]

	if _, ok := commands[result.Command]; !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", result.Command)
		flag.Usage()
		os.Exit(1)
	}

	return result
}

func parseSockType(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	name := strings.ToUpper(s)
	if !strings.HasPrefix(name, "SOCK_") {
		name = "SOCK_" + name
	}
	v, ok := socket.Constant(name)
	if !ok {
		return 0, fmt.Errorf("unknown socket type: %s", s)
	}
	return v, nil
}
