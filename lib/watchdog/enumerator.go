// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

package watchdog

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/prometheus/procfs"
)

// ErrUnavailable is returned when connection enumeration cannot work
// on this host.
var ErrUnavailable = errors.New("connection enumeration unavailable")

// Kernel TCP states from include/net/tcp_states.h.
const (
	tcpEstablished = 1
	tcpSynSent     = 2
)

// Connection is one live outbound-capable socket.
type Connection struct {
	Family     string // "tcp" or "tcp6"
	LocalAddr  string
	RemoteAddr string
	RemotePort uint64
	State      string
	Inode      uint64
}

// Remote formats the remote endpoint as host:port.
func (c Connection) Remote() string {
	return net.JoinHostPort(c.RemoteAddr, strconv.FormatUint(c.RemotePort, 10))
}

// Enumerator lists the connections the watchdog judges.
type Enumerator interface {
	Connections() ([]Connection, error)
}

// ProcEnumerator lists established and connecting TCP sockets owned by
// one process, read from procfs.
type ProcEnumerator struct {
	fs  procfs.FS
	pid int
}

// NewProcEnumerator opens procfs at mountPoint (empty means /proc) and
// checks that both the TCP tables and the process descriptor table are
// readable. Any failure is reported wrapping ErrUnavailable.
func NewProcEnumerator(mountPoint string, pid int) (*ProcEnumerator, error) {
	if mountPoint == "" {
		mountPoint = procfs.DefaultMountPoint
	}
	if pid <= 0 {
		pid = os.Getpid()
	}
	fs, err := procfs.NewFS(mountPoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	enumerator := &ProcEnumerator{fs: fs, pid: pid}
	if _, err := enumerator.Connections(); err != nil {
		return nil, err
	}
	return enumerator, nil
}

// Connections returns the process's sockets in ESTABLISHED or SYN_SENT
// state. Listening and closing sockets are skipped.
func (e *ProcEnumerator) Connections() ([]Connection, error) {
	inodes, err := e.socketInodes()
	if err != nil {
		return nil, err
	}

	tcp, err := e.fs.NetTCP()
	if err != nil {
		return nil, fmt.Errorf("%w: reading tcp table: %v", ErrUnavailable, err)
	}
	// IPv6 may be disabled, in which case the table is absent.
	tcp6, err := e.fs.NetTCP6()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: reading tcp6 table: %v", ErrUnavailable, err)
	}

	var connections []Connection
	collect := func(family string, table procfs.NetTCP) {
		for _, line := range table {
			if line.St != tcpEstablished && line.St != tcpSynSent {
				continue
			}
			if _, owned := inodes[line.Inode]; !owned {
				continue
			}
			connections = append(connections, Connection{
				Family:     family,
				LocalAddr:  ipString(line.LocalAddr),
				RemoteAddr: ipString(line.RemAddr),
				RemotePort: line.RemPort,
				State:      stateName(line.St),
				Inode:      line.Inode,
			})
		}
	}
	collect("tcp", tcp)
	collect("tcp6", tcp6)
	return connections, nil
}

// socketInodes returns the inodes of every socket the process holds.
func (e *ProcEnumerator) socketInodes() (map[uint64]struct{}, error) {
	process, err := e.fs.Proc(e.pid)
	if err != nil {
		return nil, fmt.Errorf("%w: opening process %d: %v", ErrUnavailable, e.pid, err)
	}
	targets, err := process.FileDescriptorTargets()
	if err != nil {
		return nil, fmt.Errorf("%w: reading descriptors: %v", ErrUnavailable, err)
	}
	inodes := make(map[uint64]struct{})
	for _, target := range targets {
		inode, ok := strings.CutPrefix(target, "socket:[")
		if !ok {
			continue
		}
		value, err := strconv.ParseUint(strings.TrimSuffix(inode, "]"), 10, 64)
		if err != nil {
			continue
		}
		inodes[value] = struct{}{}
	}
	return inodes, nil
}

func ipString(ip net.IP) string {
	if len(ip) == 0 {
		return ""
	}
	return ip.String()
}

func stateName(state uint64) string {
	switch state {
	case tcpEstablished:
		return "ESTABLISHED"
	case tcpSynSent:
		return "SYN_SENT"
	default:
		return strconv.FormatUint(state, 10)
	}
}
