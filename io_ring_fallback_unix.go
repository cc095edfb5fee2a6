//go:build !windows

package coop

import (
	"golang.org/x/sys/unix"
)

// execOp performs op synchronously via a blocking unix syscall.
func execOp(op Op) Result {
	switch op.Kind {
	case OpRead:
		n, err := unix.Pread(int(op.FD), op.Buf, op.Offset)
		if err == unix.ESPIPE {
			// Pipes and sockets have no file offset.
			n, err = unix.Read(int(op.FD), op.Buf)
		}
		return Result{N: n, Err: err}
	case OpWrite:
		n, err := unix.Pwrite(int(op.FD), op.Buf, op.Offset)
		if err == unix.ESPIPE {
			n, err = unix.Write(int(op.FD), op.Buf)
		}
		return Result{N: n, Err: err}
	case OpRecv:
		n, _, err := unix.Recvfrom(int(op.FD), op.Buf, 0)
		return Result{N: n, Err: err}
	case OpSend:
		err := unix.Send(int(op.FD), op.Buf, 0)
		if err != nil {
			return Result{Err: err}
		}
		return Result{N: len(op.Buf)}
	case OpAccept:
		connFD, _, err := unix.Accept(int(op.FD))
		return Result{FD: int32(connFD), Err: err}
	case OpConnect:
		sa, err := sockaddrFromBytes(op.Addr)
		if err != nil {
			return Result{Err: err}
		}
		return Result{Err: unix.Connect(int(op.FD), sa)}
	case OpPollMask:
		pfd := []unix.PollFd{{Fd: op.FD, Events: int16(op.PollMask)}}
		_, err := unix.Poll(pfd, -1)
		return Result{Mask: uint32(pfd[0].Revents), Err: err}
	case OpClose:
		return Result{Err: unix.Close(int(op.FD))}
	case OpFsync:
		return Result{Err: unix.Fsync(int(op.FD))}
	case OpShutdown:
		return Result{Err: unix.Shutdown(int(op.FD), op.How)}
	case OpUnlink:
		return Result{Err: unix.Unlink(op.Path)}
	case OpMkdir:
		return Result{Err: unix.Mkdir(op.Path, op.Mode)}
	case OpOpen:
		fd, err := unix.Open(op.Path, unix.O_RDWR|unix.O_CREAT, op.Mode)
		return Result{FD: int32(fd), Err: err}
	default:
		return Result{}
	}
}

// sockaddrFromBytes interprets a raw sockaddr buffer as either an
// IPv4 or IPv6 socket address, the two shapes Connect needs to
// support across the fallback rings.
func sockaddrFromBytes(b []byte) (unix.Sockaddr, error) {
	if len(b) >= 16 && len(b) < 28 {
		sa := &unix.SockaddrInet4{Port: int(b[2])<<8 | int(b[3])}
		copy(sa.Addr[:], b[4:8])
		return sa, nil
	}
	sa := &unix.SockaddrInet6{Port: int(b[2])<<8 | int(b[3])}
	copy(sa.Addr[:], b[8:24])
	return sa, nil
}
