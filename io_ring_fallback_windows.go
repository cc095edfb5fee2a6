//go:build windows

package coop

import (
	"golang.org/x/sys/windows"
)

// execOp performs op synchronously via a blocking Win32/Winsock call.
// Each call blocks its own worker goroutine rather than completing via
// GetQueuedCompletionStatus; see fallbackRing's doc comment.
func execOp(op Op) Result {
	h := windows.Handle(op.FD)
	switch op.Kind {
	case OpRead:
		var n uint32
		err := windows.ReadFile(h, op.Buf, &n, nil)
		return Result{N: int(n), Err: err}
	case OpWrite:
		var n uint32
		err := windows.WriteFile(h, op.Buf, &n, nil)
		return Result{N: int(n), Err: err}
	case OpRecv:
		n, err := windows.Read(h, op.Buf)
		return Result{N: n, Err: err}
	case OpSend:
		n, err := windows.Write(h, op.Buf)
		return Result{N: n, Err: err}
	case OpAccept:
		// Socket-level accept loop isn't wired on the Windows fallback;
		// callers get a clear error rather than a silent hang.
		return Result{Err: windows.ERROR_NOT_SUPPORTED}
	case OpConnect:
		return Result{Err: windows.ERROR_NOT_SUPPORTED}
	case OpPollMask:
		return Result{Err: windows.ERROR_NOT_SUPPORTED}
	case OpClose:
		return Result{Err: windows.CloseHandle(h)}
	case OpFsync:
		return Result{Err: windows.FlushFileBuffers(h)}
	case OpShutdown:
		return Result{Err: windows.ERROR_NOT_SUPPORTED}
	case OpUnlink:
		return Result{Err: windows.DeleteFile(windows.StringToUTF16Ptr(op.Path))}
	case OpMkdir:
		return Result{Err: windows.CreateDirectory(windows.StringToUTF16Ptr(op.Path), nil)}
	case OpOpen:
		pathPtr := windows.StringToUTF16Ptr(op.Path)
		handle, err := windows.CreateFile(pathPtr, windows.GENERIC_READ|windows.GENERIC_WRITE, 0, nil,
			windows.OPEN_ALWAYS, windows.FILE_ATTRIBUTE_NORMAL, 0)
		return Result{FD: int32(handle), Err: err}
	default:
		return Result{}
	}
}
