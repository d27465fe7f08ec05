package broker

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// Peer identifies the process on the other end of a Unix socket.
type Peer struct {
	PID int32
	UID uint32
	GID uint32
}

func (p Peer) String() string {
	if p.PID == 0 {
		return "unknown"
	}
	return fmt.Sprintf("pid=%d uid=%d gid=%d", p.PID, p.UID, p.GID)
}

// peerCredentials reads SO_PEERCRED from a Unix socket connection.
// Failures yield the zero Peer; identity is informational only.
func peerCredentials(conn net.Conn) Peer {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return Peer{}
	}
	raw, err := unixConn.SyscallConn()
	if err != nil {
		return Peer{}
	}

	var (
		cred    *unix.Ucred
		credErr error
	)
	if err := raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil || credErr != nil || cred == nil {
		return Peer{}
	}
	return Peer{PID: cred.Pid, UID: cred.Uid, GID: cred.Gid}
}
