//go:build windows

package capture

import (
	"runtime"
	"sync"
	"syscall"
	"unsafe"

	"github.com/breeze-rmm/capture-sidecar/internal/fmp4"
)

const (
	mfByteStreamIsReadable = 0x00000001
	mfByteStreamIsWritable = 0x00000002
	mfByteStreamIsSeekable = 0x00000004

	mfByteStreamSeekOriginBegin   = 0
	mfByteStreamSeekOriginCurrent = 1

	eNotImpl = 0x80004001
	eFail    = 0x80004005
)

// byteStreamVtbl mirrors the COM vtable layout IMFByteStream expects:
// IUnknown (3 methods) followed by the IMFByteStream methods.
type byteStreamVtbl struct {
	queryInterface     uintptr
	addRef             uintptr
	release            uintptr
	getCapabilities    uintptr
	getLength          uintptr
	setLength          uintptr
	getCurrentPosition uintptr
	setCurrentPosition uintptr
	isEndOfStream      uintptr
	read               uintptr
	beginRead          uintptr
	endRead            uintptr
	write              uintptr
	beginWrite         uintptr
	endWrite           uintptr
	seek               uintptr
	flush              uintptr
	close              uintptr
}

// byteStreamObj implements IMFByteStream (§4.C, the Virtual Byte Sink) for
// the platform sink writer to target. Its first field must be the vtable
// pointer: every COM interface pointer handed to a caller is assumed to
// point at a struct laid out that way. mu guards staging/framer/state
// together, matching §5's instruction that the Rewriter shares the sink's
// mutex scope to serialize try_release.
type byteStreamObj struct {
	vtbl     *byteStreamVtbl
	refCount int32

	mu      sync.Mutex
	staging *StagingBuffer
	framer  *BoxFramer
	state   *fmp4.State
	sink    segmentSink

	pinner runtime.Pinner
}

// newVirtualByteStream constructs a COM object implementing IMFByteStream
// and returns it as a raw interface pointer ready to pass to
// MFCreateSinkWriterFromMFByteStream. The object pins itself so the Go
// garbage collector never relocates memory a COM caller holds a raw
// pointer into; it unpins on its final Release.
func newVirtualByteStream(staging *StagingBuffer, framer *BoxFramer, state *fmp4.State, sink segmentSink) uintptr {
	obj := &byteStreamObj{
		refCount: 1,
		staging:  staging,
		framer:   framer,
		state:    state,
		sink:     sink,
	}
	obj.vtbl = &byteStreamVtbl{
		queryInterface:     syscall.NewCallback(bsQueryInterface),
		addRef:             syscall.NewCallback(bsAddRef),
		release:            syscall.NewCallback(bsRelease),
		getCapabilities:    syscall.NewCallback(bsGetCapabilities),
		getLength:          syscall.NewCallback(bsGetLength),
		setLength:          syscall.NewCallback(bsSetLength),
		getCurrentPosition: syscall.NewCallback(bsGetCurrentPosition),
		setCurrentPosition: syscall.NewCallback(bsSetCurrentPosition),
		isEndOfStream:      syscall.NewCallback(bsIsEndOfStream),
		read:               syscall.NewCallback(bsRead),
		beginRead:          syscall.NewCallback(bsBeginRW),
		endRead:            syscall.NewCallback(bsEndRW),
		write:              syscall.NewCallback(bsWrite),
		beginWrite:         syscall.NewCallback(bsBeginRW),
		endWrite:           syscall.NewCallback(bsEndRW),
		seek:               syscall.NewCallback(bsSeek),
		flush:              syscall.NewCallback(bsFlush),
		close:              syscall.NewCallback(bsClose),
	}

	obj.pinner.Pin(obj)
	obj.pinner.Pin(obj.vtbl)

	return uintptr(unsafe.Pointer(obj))
}

func bsQueryInterface(this, _riid, ppv uintptr) uintptr {
	if ppv != 0 {
		*(*uintptr)(unsafe.Pointer(ppv)) = this
	}
	bsAddRef(this)
	return 0
}

func bsAddRef(this uintptr) uintptr {
	obj := (*byteStreamObj)(unsafe.Pointer(this))
	obj.refCount++
	return uintptr(obj.refCount)
}

func bsRelease(this uintptr) uintptr {
	obj := (*byteStreamObj)(unsafe.Pointer(this))
	obj.refCount--
	if obj.refCount <= 0 {
		obj.pinner.Unpin()
		return 0
	}
	return uintptr(obj.refCount)
}

func bsGetCapabilities(this, pdwCapabilities uintptr) uintptr {
	*(*uint32)(unsafe.Pointer(pdwCapabilities)) = mfByteStreamIsReadable | mfByteStreamIsWritable | mfByteStreamIsSeekable
	return 0
}

func bsGetLength(this, pqwLength uintptr) uintptr {
	obj := (*byteStreamObj)(unsafe.Pointer(this))
	obj.mu.Lock()
	n := obj.staging.Size()
	obj.mu.Unlock()
	*(*int64)(unsafe.Pointer(pqwLength)) = n
	return 0
}

// bsSetLength is tolerated as a no-op per §4.C.
func bsSetLength(this, _qwLength uintptr) uintptr { return 0 }

func bsGetCurrentPosition(this, pqwPosition uintptr) uintptr {
	obj := (*byteStreamObj)(unsafe.Pointer(this))
	obj.mu.Lock()
	p := obj.staging.Position()
	obj.mu.Unlock()
	*(*int64)(unsafe.Pointer(pqwPosition)) = p
	return 0
}

func bsSetCurrentPosition(this, qwPosition uintptr) uintptr {
	obj := (*byteStreamObj)(unsafe.Pointer(this))
	obj.mu.Lock()
	obj.staging.Seek(SeekSet, int64(qwPosition))
	obj.mu.Unlock()
	return 0
}

// bsIsEndOfStream always reports false: this stream has no read side.
func bsIsEndOfStream(this, pfEndOfStream uintptr) uintptr {
	*(*int32)(unsafe.Pointer(pfEndOfStream)) = 0
	return 0
}

// bsRead is a no-op returning zero bytes read, per §4.C.
func bsRead(this, _pb, _cb, pcbRead uintptr) uintptr {
	if pcbRead != 0 {
		*(*uint32)(unsafe.Pointer(pcbRead)) = 0
	}
	return 0
}

// bsBeginRW/bsEndRW: the async read/write pair is not supported; the sink
// writer only uses the synchronous Write/Seek path.
func bsBeginRW(this, _pb, _cb, _callback, _punkState uintptr) uintptr { return eNotImpl }
func bsEndRW(this, _result, _pcbIO uintptr) uintptr                  { return eNotImpl }

func bsWrite(this, pb, cb, pcbWritten uintptr) uintptr {
	obj := (*byteStreamObj)(unsafe.Pointer(this))
	data := unsafe.Slice((*byte)(unsafe.Pointer(pb)), uint32(cb))

	obj.mu.Lock()
	defer obj.mu.Unlock()

	n, err := obj.staging.Write(data)
	if err != nil {
		if pcbWritten != 0 {
			*(*uint32)(unsafe.Pointer(pcbWritten)) = 0
		}
		return eFail
	}

	for _, box := range obj.framer.TryRelease() {
		seg, ferr := obj.state.Feed(box.Type, box.Data)
		if ferr != nil || seg == nil {
			continue
		}
		obj.sink.Send(seg.Bytes)
	}

	if pcbWritten != 0 {
		*(*uint32)(unsafe.Pointer(pcbWritten)) = uint32(n)
	}
	return 0
}

func bsSeek(this, origin, offset, _flags, pqwCurrentPosition uintptr) uintptr {
	obj := (*byteStreamObj)(unsafe.Pointer(this))

	var so SeekOrigin
	if origin == mfByteStreamSeekOriginCurrent {
		so = SeekCurrent
	} else {
		so = SeekSet
	}

	obj.mu.Lock()
	pos := obj.staging.Seek(so, int64(offset))
	obj.mu.Unlock()

	if pqwCurrentPosition != 0 {
		*(*int64)(unsafe.Pointer(pqwCurrentPosition)) = pos
	}
	return 0
}

// bsFlush is a no-op: every byte handed to Write is already either staged
// or released to the Box Framer, there is nothing held back to flush.
func bsFlush(this uintptr) uintptr { return 0 }

func bsClose(this uintptr) uintptr { return 0 }
