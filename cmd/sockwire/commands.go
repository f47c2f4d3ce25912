package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"strings"
	"unicode/utf8"

	"github.com/Cybersecurity-and-Enterprise-Security/sockwire/internal/listeners"
	"github.com/Cybersecurity-and-Enterprise-Security/sockwire/internal/netif"
	"github.com/Cybersecurity-and-Enterprise-Security/sockwire/pkg/sockaddr"
	"github.com/Cybersecurity-and-Enterprise-Security/sockwire/pkg/socket"
	"github.com/prometheus/procfs"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/jsonc"
)

var errUsage = errors.New("wrong number of arguments")

// byteFields hold raw bytes. In JSON they are plain strings when valid
// UTF-8 and {"hex": "..."} objects otherwise.
var byteFields = []string{sockaddr.FieldSaData, sockaddr.FieldSunPath}

// input returns the first argument, or all of stdin if there is none.
func input(args []string, stdin io.Reader) ([]byte, error) {
	if len(args) > 0 {
		return []byte(args[0]), nil
	}
	b, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	return b, nil
}

// parseRecord reads a structured address from JSON with comments. Numbers
// are kept as json.Number so large values survive.
func parseRecord(src []byte) (sockaddr.Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(src)))
	dec.UseNumber()

	var f sockaddr.Fields
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse record: %w", err)
	}

	for _, name := range byteFields {
		obj, ok := f[name].(map[string]any)
		if !ok {
			continue
		}
		text, ok := obj["hex"].(string)
		if !ok {
			return nil, fmt.Errorf("parse record: field %s: want a string or a hex object", name)
		}
		b, err := hex.DecodeString(text)
		if err != nil {
			return nil, fmt.Errorf("parse record: field %s: %w", name, err)
		}
		f[name] = b
	}
	return f, nil
}

// printable returns a copy of f that encodes to JSON without losing bytes.
func printable(f sockaddr.Fields) sockaddr.Fields {
	out := make(sockaddr.Fields, len(f))
	for name, v := range f {
		out[name] = v
	}
	for _, name := range byteFields {
		if s, ok := out[name].(string); ok && !utf8.ValidString(s) {
			out[name] = map[string]string{"hex": hex.EncodeToString([]byte(s))}
		}
	}
	return out
}

func parseHex(src []byte) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimSpace(string(src)))
	if err != nil {
		return nil, fmt.Errorf("parse hex address: %w", err)
	}
	return b, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func pack(args arguments, stdin io.Reader, stdout io.Writer) error {
	src, err := input(args.Args, stdin)
	if err != nil {
		return err
	}
	f, err := parseRecord(src)
	if err != nil {
		return err
	}
	b, err := sockaddr.Pack(f)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, hex.EncodeToString(b))
	return err
}

func unpack(args arguments, stdin io.Reader, stdout io.Writer) error {
	src, err := input(args.Args, stdin)
	if err != nil {
		return err
	}
	b, err := parseHex(src)
	if err != nil {
		return err
	}
	f, ok := sockaddr.Unpack(b)
	if !ok {
		return fmt.Errorf("%d bytes do not hold a complete address", len(b))
	}
	return printJSON(stdout, printable(f))
}

func printConstants(stdout io.Writer) error {
	return printJSON(stdout, socket.Constants())
}

type listenerOutput struct {
	Protocol string          `json:"protocol"`
	Inode    uint64          `json:"inode"`
	UID      uint64          `json:"uid"`
	Addr     string          `json:"addr"`
	Fields   sockaddr.Fields `json:"fields"`
}

func printListeners(args arguments, stdout io.Writer) error {
	var ip netip.Addr
	if len(args.Args) > 0 {
		var err error
		if ip, err = netip.ParseAddr(args.Args[0]); err != nil {
			return fmt.Errorf("parse ip: %w", err)
		}
	}

	fs, err := procfs.NewFS(args.ProcPath)
	if err != nil {
		return fmt.Errorf("open proc filesystem: %w", err)
	}
	ls, err := listeners.List(fs)
	if err != nil {
		return err
	}

	out := []listenerOutput{}
	for _, l := range ls {
		if ip.IsValid() && !l.Conflicts(ip) {
			continue
		}
		out = append(out, listenerOutput{
			Protocol: l.Protocol,
			Inode:    l.Inode,
			UID:      l.UID,
			Addr:     hex.EncodeToString(l.Addr),
			Fields:   printable(l.Fields),
		})
	}
	return printJSON(stdout, out)
}

type addrInfoOutput struct {
	Family    sockaddr.Family `json:"family"`
	SockType  int             `json:"socktype"`
	Protocol  int             `json:"protocol"`
	CanonName string          `json:"canonname,omitempty"`
	Addr      string          `json:"addr"`
	Fields    sockaddr.Fields `json:"fields"`
}

func resolve(ctx context.Context, args arguments, stdout io.Writer) error {
	if len(args.Args) < 1 || len(args.Args) > 2 {
		return errUsage
	}
	node, service := args.Args[0], ""
	if len(args.Args) == 2 {
		service = args.Args[1]
	}

	infos, err := socket.Resolve(ctx, node, service, socket.Hints{
		Flags:    socket.AI_CANONNAME,
		SockType: args.SockType,
	})
	if err != nil {
		return err
	}

	out := make([]addrInfoOutput, 0, len(infos))
	for _, info := range infos {
		out = append(out, addrInfoOutput{
			Family:    info.Family,
			SockType:  info.SockType,
			Protocol:  info.Protocol,
			CanonName: info.CanonName,
			Addr:      hex.EncodeToString(info.Addr),
			Fields:    printable(info.Fields),
		})
	}
	return printJSON(stdout, out)
}

func nameInfo(ctx context.Context, args arguments, stdout io.Writer) error {
	if len(args.Args) != 1 {
		return errUsage
	}
	b, err := parseHex([]byte(args.Args[0]))
	if err != nil {
		return err
	}
	flags := 0
	if args.Numeric {
		flags = socket.NI_NUMERICHOST | socket.NI_NUMERICSERV
	}
	host, service, err := socket.NameInfo(ctx, b, flags)
	if err != nil {
		return err
	}
	return printJSON(stdout, map[string]string{"host": host, "service": service})
}

func bind(args arguments, stdout io.Writer) error {
	if len(args.Args) != 1 {
		return errUsage
	}
	f, err := parseRecord([]byte(args.Args[0]))
	if err != nil {
		return err
	}
	a, err := sockaddr.FromFields(f)
	if err != nil {
		return err
	}

	s, err := socket.Open(int(a.Family()), args.SockType, 0, &socket.Config{NetNS: args.NetNS})
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Bind(sockaddr.Encode(a)); err != nil {
		return err
	}
	local, err := s.LocalAddr()
	if err != nil {
		return err
	}
	log.WithField("family", a.Family()).Info("Bound socket")
	return printJSON(stdout, printable(local))
}

func route(args arguments, stdout io.Writer) error {
	h, err := netif.Open(args.NetNS)
	if err != nil {
		return err
	}
	defer h.Close()

	ip, err := h.DefaultListenIP()
	if err != nil {
		return err
	}
	iface, err := h.InterfaceOfAddress(ip)
	if err != nil {
		return err
	}

	return printJSON(stdout, map[string]any{
		"source":    ip.String(),
		"interface": iface.Name,
		"index":     iface.Index,
	})
}
