package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

const checkPortSchema = `
{
  "type": "object",
  "properties": {
    "port": { "type": ["integer", "string"], "description": "The TCP port on this machine" }
  },
  "required": ["port"]
}
`

const findPortSchema = `
{
  "type": "object",
  "properties": {
    "start": { "type": ["integer", "string"], "description": "First port of the range (default 8000)" },
    "end": { "type": ["integer", "string"], "description": "Last port of the range (default start+100)" }
  }
}
`

const checkConnectionSchema = `
{
  "type": "object",
  "properties": {
    "host": { "type": "string", "description": "Host name or IP address" },
    "port": { "type": ["integer", "string"], "description": "The TCP port" },
    "timeout": { "type": ["integer", "string"], "description": "Timeout in seconds (default 5)" }
  },
  "required": ["host", "port"]
}
`

const emptySchema = `{ "type": "object", "properties": {} }`

const (
	defaultPortStart   = 8000
	defaultPortSpan    = 100
	defaultDialTimeout = 5 * time.Second
)

type Network struct {
	// bindHost is where port probes listen.
	bindHost string
}

func NewNetwork() *Network {
	return &Network{bindHost: "127.0.0.1"}
}

func validPort(p int) error {
	if p < 1 || p > 65535 {
		return fmt.Errorf("port %d is out of range 1-65535", p)
	}
	return nil
}

func (n *Network) portFree(port int) bool {
	l, err := net.Listen("tcp", net.JoinHostPort(n.bindHost, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = l.Close()
	return true
}

func (n *Network) CheckPort(ctx context.Context, args json.RawMessage) (string, error) {
	var input struct {
		Port flexInt `json:"port"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return "", err
	}
	port := int(input.Port)
	if err := validPort(port); err != nil {
		return "", err
	}

	if n.portFree(port) {
		return fmt.Sprintf("Port %d is available", port), nil
	}
	return fmt.Sprintf("Port %d is in use", port), nil
}

func (n *Network) FindAvailablePort(ctx context.Context, args json.RawMessage) (string, error) {
	var input struct {
		Start flexInt `json:"start"`
		End   flexInt `json:"end"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return "", err
	}

	start, end := int(input.Start), int(input.End)
	if start == 0 {
		start = defaultPortStart
	}
	if end == 0 {
		end = min(start+defaultPortSpan, 65535)
	}
	if err := validPort(start); err != nil {
		return "", err
	}
	if err := validPort(end); err != nil {
		return "", err
	}
	if end < start {
		return "", fmt.Errorf("range end %d is below start %d", end, start)
	}

	for port := start; port <= end; port++ {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if n.portFree(port) {
			return strconv.Itoa(port), nil
		}
	}
	return "", fmt.Errorf("no available ports in range %d-%d", start, end)
}

func (n *Network) CheckConnection(ctx context.Context, args json.RawMessage) (string, error) {
	var input struct {
		Host    string  `json:"host"`
		Port    flexInt `json:"port"`
		Timeout flexInt `json:"timeout"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return "", err
	}
	host := strings.TrimSpace(input.Host)
	if host == "" {
		return "", errors.New("host must not be empty")
	}
	port := int(input.Port)
	if err := validPort(port); err != nil {
		return "", err
	}
	timeout := defaultDialTimeout
	if input.Timeout > 0 {
		timeout = time.Duration(input.Timeout) * time.Second
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", fmt.Errorf("connection to %s failed: %w", addr, err)
	}
	_ = conn.Close()
	return fmt.Sprintf("Connection to %s successful", addr), nil
}

// GetLocalIP returns the first non-loopback IPv4 address of an interface
// that is up.
func (n *Network) GetLocalIP(ctx context.Context, args json.RawMessage) (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("failed to list interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		for _, ip := range interfaceIPs(iface) {
			if ip.To4() != nil {
				return ip.String(), nil
			}
		}
	}
	return "", errors.New("no non-loopback IPv4 address found")
}

func (n *Network) ListInterfaces(ctx context.Context, args json.RawMessage) (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("failed to list interfaces: %w", err)
	}

	var sb strings.Builder
	for _, iface := range ifaces {
		for _, ip := range interfaceIPs(iface) {
			fmt.Fprintf(&sb, "%s: %s\n", iface.Name, ip)
		}
	}
	if sb.Len() == 0 {
		return "No addresses found", nil
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func interfaceIPs(iface net.Interface) []net.IP {
	addrs, err := iface.Addrs()
	if err != nil {
		return nil
	}
	ips := make([]net.IP, 0, len(addrs))
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok {
			ips = append(ips, ipnet.IP)
		}
	}
	return ips
}

func (n *Network) GetDefinitions() map[string]Definition {
	return map[string]Definition{
		"check_port":          {"Check whether a local TCP port is free", checkPortSchema, n.CheckPort},
		"find_available_port": {"Find the first free local TCP port in a range", findPortSchema, n.FindAvailablePort},
		"check_connection":    {"Check whether host:port accepts TCP connections", checkConnectionSchema, n.CheckConnection},
		"get_local_ip":        {"Get this machine's local IPv4 address", emptySchema, n.GetLocalIP},
		"list_interfaces":     {"List network interfaces and their addresses", emptySchema, n.ListInterfaces},
	}
}
