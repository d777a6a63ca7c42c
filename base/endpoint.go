package base

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Endpoint is the network address of one CBF substream
//
// Index is the position of the substream in the full list of CBF endpoints, which determines its channel sub-range
type Endpoint struct {
	Host  string
	Port  int
	Index int
}

func (ep Endpoint) String() string {
	return net.JoinHostPort(ep.Host, strconv.Itoa(ep.Port))
}

// IsMulticast checks whether the endpoint host is a multicast group address
func (ep Endpoint) IsMulticast() bool {
	ip := net.ParseIP(ep.Host)
	return ip != nil && ip.IsMulticast()
}

// ParseEndpoints parses a list of endpoints in the "host[+count]:port" notation, separated by commas or spaces
//
// "239.9.3.1+3:7148" expands to 4 consecutive IPv4 addresses 239.9.3.1 to 239.9.3.4, all on port 7148.
// The resulting endpoints are indexed in the order of appearance.
func ParseEndpoints(text string) ([]Endpoint, error) {
	fields := strings.FieldsFunc(text, func(r rune) bool { return r == ',' || r == ' ' })
	if len(fields) == 0 {
		return nil, fmt.Errorf("no endpoint in '%s'", text)
	}
	endpoints := make([]Endpoint, 0, len(fields))
	for _, field := range fields {
		hostPart, portPart, err := net.SplitHostPort(field)
		if err != nil {
			return nil, fmt.Errorf("invalid endpoint '%s': %w", field, err)
		}
		port, perr := strconv.Atoi(portPart)
		if perr != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("invalid port in endpoint '%s'", field)
		}
		hosts, herr := expandHostRange(hostPart)
		if herr != nil {
			return nil, fmt.Errorf("invalid endpoint '%s': %w", field, herr)
		}
		for _, host := range hosts {
			endpoints = append(endpoints, Endpoint{Host: host, Port: port, Index: len(endpoints)})
		}
	}
	return endpoints, nil
}

func expandHostRange(hostPart string) ([]string, error) {
	plus := strings.LastIndexByte(hostPart, '+')
	if plus == -1 {
		return []string{hostPart}, nil
	}
	count, cerr := strconv.Atoi(hostPart[plus+1:])
	if cerr != nil || count < 0 {
		return nil, fmt.Errorf("invalid host count '%s'", hostPart[plus+1:])
	}
	ip := net.ParseIP(hostPart[:plus]).To4()
	if ip == nil {
		return nil, fmt.Errorf("host range requires an IPv4 address, got '%s'", hostPart[:plus])
	}
	first := uint32(ip[0])<<24 | uint32(ip[1])<<16 | uint32(ip[2])<<8 | uint32(ip[3])
	if uint64(first)+uint64(count) > 0xFFFFFFFF {
		return nil, fmt.Errorf("host range overflows: %s", hostPart)
	}
	hosts := make([]string, 0, count+1)
	for i := 0; i <= count; i++ {
		v := first + uint32(i)
		hosts = append(hosts, net.IPv4(byte(v>>24), byte(v>>16), byte(v>>8), byte(v)).String())
	}
	return hosts, nil
}
