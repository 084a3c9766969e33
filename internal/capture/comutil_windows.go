//go:build windows

package capture

import (
	"fmt"
	"syscall"
	"unsafe"
)

// COM vtable calling infrastructure for Windows Media Foundation, pure Go
// (no CGo). Follows the same raw syscall.SyscallN vtable-call convention
// used throughout this module's Windows-only files.

// comGUID is a COM GUID (128-bit).
type comGUID struct {
	Data1 uint32
	Data2 uint16
	Data3 uint16
	Data4 [8]byte
}

// comCall invokes a COM vtable method at the given index. obj is a pointer
// to a COM interface (pointer to pointer to vtable).
func comCall(obj uintptr, vtableIdx int, args ...uintptr) (uintptr, error) {
	vtablePtr := *(*uintptr)(unsafe.Pointer(obj))
	fnPtr := *(*uintptr)(unsafe.Pointer(vtablePtr + uintptr(vtableIdx)*unsafe.Sizeof(uintptr(0))))

	allArgs := make([]uintptr, 0, 1+len(args))
	allArgs = append(allArgs, obj)
	allArgs = append(allArgs, args...)
	ret, _, _ := syscall.SyscallN(fnPtr, allArgs...)

	if int32(ret) < 0 {
		return ret, fmt.Errorf("COM vtable[%d] HRESULT 0x%08X", vtableIdx, uint32(ret))
	}
	return ret, nil
}

// comRelease calls IUnknown::Release (vtable index 2).
func comRelease(obj uintptr) {
	if obj != 0 {
		vtablePtr := *(*uintptr)(unsafe.Pointer(obj))
		fnPtr := *(*uintptr)(unsafe.Pointer(vtablePtr + 2*unsafe.Sizeof(uintptr(0))))
		syscall.SyscallN(fnPtr, obj)
	}
}

// pack64 packs two uint32 values into a single uint64 (high << 32 | low),
// the layout Media Foundation uses for packed-pair attributes like frame
// size and frame rate.
func pack64(high, low uint32) uint64 {
	return uint64(high)<<32 | uint64(low)
}

// --- DLL procs ---

var (
	ole32DLL  = syscall.NewLazyDLL("ole32.dll")
	mfplatDLL = syscall.NewLazyDLL("mfplat.dll")
	mfreadDLL = syscall.NewLazyDLL("mfreadwrite.dll")

	procCoInitializeEx = ole32DLL.NewProc("CoInitializeEx")
	procCoUninitialize = ole32DLL.NewProc("CoUninitialize")

	procMFStartup                         = mfplatDLL.NewProc("MFStartup")
	procMFShutdown                        = mfplatDLL.NewProc("MFShutdown")
	procMFCreateMediaType                 = mfplatDLL.NewProc("MFCreateMediaType")
	procMFCreateAttributes                = mfplatDLL.NewProc("MFCreateAttributes")
	procMFCreateSample                    = mfplatDLL.NewProc("MFCreateSample")
	procMFCreateMemoryBuffer               = mfplatDLL.NewProc("MFCreateMemoryBuffer")

	procMFCreateSinkWriterFromMFByteStream = mfreadDLL.NewProc("MFCreateSinkWriterFromMFByteStream")
)

// --- COM / Media Foundation constants ---

const (
	coinitMultithreaded = 0x0

	mfVersion     = 0x00020070 // MF_VERSION (Windows 7+)
	mfStartupFull = 0

	mfVideoInterlaceProgressive = 2

	eAVEncH264VProfileBaseline uint32 = 66
)

// --- GUIDs ---
//
// Grounded on the same Media Foundation attribute/format GUID values the
// donor agent declares for its own encoder path (internal/remote/desktop
// /comutil_windows.go), narrowed to what a sink-writer-based encoder needs:
// no raw IMFTransform/MFT enumeration, no D3D11 video device interop.

var (
	mfMediaTypeVideo  = comGUID{0x73646976, 0x0000, 0x0010, [8]byte{0x80, 0x00, 0x00, 0xaa, 0x00, 0x38, 0x9b, 0x71}}
	mfMediaTypeAudio  = comGUID{0x73647561, 0x0000, 0x0010, [8]byte{0x80, 0x00, 0x00, 0xaa, 0x00, 0x38, 0x9b, 0x71}}
	mfVideoFormatH264 = comGUID{0x34363248, 0x0000, 0x0010, [8]byte{0x80, 0x00, 0x00, 0xaa, 0x00, 0x38, 0x9b, 0x71}}
	mfVideoFormatRGB32 = comGUID{0x00000016, 0x0000, 0x0010, [8]byte{0x80, 0x00, 0x00, 0xaa, 0x00, 0x38, 0x9b, 0x71}}
	mfAudioFormatAAC  = comGUID{0x00001610, 0x0000, 0x0010, [8]byte{0x80, 0x00, 0x00, 0xaa, 0x00, 0x38, 0x9b, 0x71}}
	mfAudioFormatPCM  = comGUID{0x00000001, 0x0000, 0x0010, [8]byte{0x80, 0x00, 0x00, 0xaa, 0x00, 0x38, 0x9b, 0x71}}

	mfMTMajorType        = comGUID{0x48eba18e, 0xf8c9, 0x4687, [8]byte{0xbf, 0x11, 0x0a, 0x74, 0xc9, 0xf9, 0x6a, 0x8f}}
	mfMTSubtype          = comGUID{0xf7e34c9a, 0x42e8, 0x4714, [8]byte{0xb7, 0x4b, 0xcb, 0x29, 0xd7, 0x2c, 0x35, 0xe5}}
	mfMTAvgBitrate       = comGUID{0x20332624, 0xfb0d, 0x4d9e, [8]byte{0xbd, 0x0d, 0xcb, 0xf6, 0x78, 0x6c, 0x10, 0x2e}}
	mfMTInterlaceMode    = comGUID{0xe2724bb8, 0xe676, 0x4806, [8]byte{0xb4, 0xb2, 0xa8, 0xd6, 0xef, 0xb4, 0x4c, 0xcd}}
	mfMTFrameSize        = comGUID{0x1652c33d, 0xd6b2, 0x4012, [8]byte{0xb8, 0x34, 0x72, 0x03, 0x08, 0x49, 0xa3, 0x7d}}
	mfMTFrameRate        = comGUID{0xc459a2e8, 0x3d2c, 0x4e44, [8]byte{0xb1, 0x32, 0xfe, 0xe5, 0x15, 0x6c, 0x7b, 0xb0}}
	mfMTPixelAspectRatio = comGUID{0xc6376a1e, 0x8d0a, 0x4027, [8]byte{0xbe, 0x45, 0x6d, 0x9a, 0x0a, 0xd3, 0x9b, 0xb6}}
	mfMTDefaultStride    = comGUID{0x644b4e48, 0x1e02, 0x4516, [8]byte{0xb0, 0xeb, 0xc0, 0x1c, 0xa9, 0xd4, 0x9a, 0xc6}}
	mfMTH264Profile      = comGUID{0x7ab3f116, 0xcb03, 0x4a05, [8]byte{0x9d, 0x6a, 0xb8, 0x07, 0x99, 0x0d, 0x6e, 0x59}}

	mfMTAudioNumChannels        = comGUID{0x37e48bf5, 0x645e, 0x4c5b, [8]byte{0x89, 0xde, 0xad, 0xa9, 0xe2, 0x9b, 0x69, 0x6a}}
	mfMTAudioSamplesPerSecond   = comGUID{0x5faeeae7, 0x0290, 0x4c31, [8]byte{0x9e, 0x8a, 0xc5, 0x34, 0xf6, 0x8d, 0x9d, 0xba}}
	mfMTAudioAvgBytesPerSecond  = comGUID{0x1aab75c8, 0xcfef, 0x451c, [8]byte{0xab, 0x95, 0xac, 0x03, 0x4b, 0x8e, 0x17, 0x31}}
	mfMTAudioBlockAlign         = comGUID{0x322de230, 0x9eeb, 0x43bd, [8]byte{0xab, 0x7a, 0xff, 0x41, 0x22, 0x51, 0x54, 0x1d}}
	mfMTAudioBitsPerSample      = comGUID{0xf2deb57f, 0x40fa, 0x4764, [8]byte{0xaa, 0x33, 0xed, 0x4f, 0x2d, 0x1f, 0xf6, 0x69}}

	mfReadwriteEnableHardwareTransforms = comGUID{0xa634a91c, 0x822b, 0x41b9, [8]byte{0xa4, 0x94, 0x4d, 0xe4, 0x64, 0x36, 0x12, 0xb0}}
	mfSinkWriterDisableThrottling       = comGUID{0x08b845d8, 0x2b74, 0x4afe, [8]byte{0x9d, 0x53, 0xbe, 0x16, 0xd2, 0xd5, 0xae, 0x4f}}
	mfTranscodeContainerType            = comGUID{0x150ff23f, 0x4abc, 0x478b, [8]byte{0xac, 0x4f, 0xe1, 0x90, 0x9, 0x14, 0x93, 0x70}}
	mfTranscodeContainerTypeFMPEG4      = comGUID{0x9ba876f1, 0x70f6, 0x4bfb, [8]byte{0x96, 0x21, 0x37, 0x6d, 0x35, 0x8a, 0x0a, 0xe5}}

	iidIMFByteStream = comGUID{0xad4c1b00, 0x4bf7, 0x422f, [8]byte{0x99, 0x67, 0x89, 0xd6, 0x8b, 0x17, 0x25, 0x9b}}
)

// --- vtable index constants ---
//
// Fixed by the COM ABI. IMFAttributes starts at 3 (after
// QueryInterface/AddRef/Release); IMFSinkWriter and IMFMediaBuffer each
// start fresh at 3 since neither extends IMFAttributes. IMFSample does
// extend IMFAttributes, so its own methods start at 33.

const (
	// IMFAttributes
	vtblSetUINT32 = 21 // 3 + 18
	vtblSetUINT64 = 22 // 3 + 19
	vtblSetGUID   = 24 // 3 + 21

	// IMFSinkWriter
	vtblSWAddStream       = 3
	vtblSWSetInputType    = 4
	vtblSWBeginWriting    = 5
	vtblSWWriteSample     = 6
	vtblSWFinalize        = 11

	// IMFSample (extends IMFAttributes, base 33)
	vtblSampleSetSampleTime     = 36 // 33 + 3
	vtblSampleSetSampleDuration = 38 // 33 + 5
	vtblSampleAddBuffer         = 42 // 33 + 9

	// IMFMediaBuffer
	vtblBufLock             = 3
	vtblBufUnlock            = 4
	vtblBufSetCurrentLength  = 6
)

// comInitialize initializes COM on the calling thread in the multithreaded
// apartment, as the encoder worker thread requires.
func comInitialize() error {
	ret, _, _ := procCoInitializeEx.Call(0, coinitMultithreaded)
	if hr := int32(ret); hr < 0 && uint32(hr) != 0x80010106 /* RPC_E_CHANGED_MODE tolerated */ {
		return fmt.Errorf("CoInitializeEx: HRESULT 0x%08X", uint32(ret))
	}
	return nil
}

func comUninitialize() {
	procCoUninitialize.Call()
}

func mfStartup() error {
	ret, _, _ := procMFStartup.Call(uintptr(mfVersion), uintptr(mfStartupFull))
	if int32(ret) < 0 {
		return fmt.Errorf("MFStartup: HRESULT 0x%08X", uint32(ret))
	}
	return nil
}

func mfShutdown() {
	procMFShutdown.Call()
}

func mfCreateMediaType() (uintptr, error) {
	var mt uintptr
	ret, _, _ := procMFCreateMediaType.Call(uintptr(unsafe.Pointer(&mt)))
	if int32(ret) < 0 {
		return 0, fmt.Errorf("MFCreateMediaType: HRESULT 0x%08X", uint32(ret))
	}
	return mt, nil
}

func mfCreateAttributes(count uint32) (uintptr, error) {
	var attrs uintptr
	ret, _, _ := procMFCreateAttributes.Call(uintptr(unsafe.Pointer(&attrs)), uintptr(count))
	if int32(ret) < 0 {
		return 0, fmt.Errorf("MFCreateAttributes: HRESULT 0x%08X", uint32(ret))
	}
	return attrs, nil
}

func attrSetGUID(attrs uintptr, key comGUID, value comGUID) error {
	_, err := comCall(attrs, vtblSetGUID, uintptr(unsafe.Pointer(&key)), uintptr(unsafe.Pointer(&value)))
	return err
}

func attrSetUINT32(attrs uintptr, key comGUID, value uint32) error {
	_, err := comCall(attrs, vtblSetUINT32, uintptr(unsafe.Pointer(&key)), uintptr(value))
	return err
}

func attrSetUINT64(attrs uintptr, key comGUID, value uint64) error {
	_, err := comCall(attrs, vtblSetUINT64, uintptr(unsafe.Pointer(&key)), uintptr(value))
	return err
}

func mfCreateSample() (uintptr, error) {
	var sample uintptr
	ret, _, _ := procMFCreateSample.Call(uintptr(unsafe.Pointer(&sample)))
	if int32(ret) < 0 {
		return 0, fmt.Errorf("MFCreateSample: HRESULT 0x%08X", uint32(ret))
	}
	return sample, nil
}

func mfCreateMemoryBuffer(size uint32) (uintptr, error) {
	var buf uintptr
	ret, _, _ := procMFCreateMemoryBuffer.Call(uintptr(size), uintptr(unsafe.Pointer(&buf)))
	if int32(ret) < 0 {
		return 0, fmt.Errorf("MFCreateMemoryBuffer: HRESULT 0x%08X", uint32(ret))
	}
	return buf, nil
}

// bufferLock locks the buffer and returns a slice viewing its backing
// memory up to maxLength; the caller must call bufferUnlock when done.
func bufferLock(buf uintptr) ([]byte, error) {
	var ptr uintptr
	var maxLen, curLen uint32
	_, err := comCall(buf, vtblBufLock,
		uintptr(unsafe.Pointer(&ptr)),
		uintptr(unsafe.Pointer(&maxLen)),
		uintptr(unsafe.Pointer(&curLen)))
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(ptr)), maxLen), nil
}

func bufferUnlock(buf uintptr) {
	comCall(buf, vtblBufUnlock)
}

func bufferSetCurrentLength(buf uintptr, n uint32) error {
	_, err := comCall(buf, vtblBufSetCurrentLength, uintptr(n))
	return err
}

func sampleAddBuffer(sample, buf uintptr) error {
	_, err := comCall(sample, vtblSampleAddBuffer, buf)
	return err
}

func sampleSetSampleTime(sample uintptr, time100ns int64) error {
	_, err := comCall(sample, vtblSampleSetSampleTime, uintptr(time100ns))
	return err
}

func sampleSetSampleDuration(sample uintptr, dur100ns int64) error {
	_, err := comCall(sample, vtblSampleSetSampleDuration, uintptr(dur100ns))
	return err
}

func sinkWriterAddStream(writer uintptr, mediaType uintptr) (uint32, error) {
	var streamIdx uint32
	_, err := comCall(writer, vtblSWAddStream, mediaType, uintptr(unsafe.Pointer(&streamIdx)))
	if err != nil {
		return 0, err
	}
	return streamIdx, nil
}

func sinkWriterSetInputType(writer uintptr, streamIdx uint32, mediaType uintptr) error {
	_, err := comCall(writer, vtblSWSetInputType, uintptr(streamIdx), mediaType, 0)
	return err
}

func sinkWriterBeginWriting(writer uintptr) error {
	_, err := comCall(writer, vtblSWBeginWriting)
	return err
}

func sinkWriterWriteSample(writer uintptr, streamIdx uint32, sample uintptr) error {
	_, err := comCall(writer, vtblSWWriteSample, uintptr(streamIdx), sample)
	return err
}

func sinkWriterFinalize(writer uintptr) error {
	_, err := comCall(writer, vtblSWFinalize)
	return err
}

// mfCreateSinkWriterFromMFByteStream wraps byteStream (a custom IMFByteStream,
// see bytesink_windows.go) in a fragmented-MP4 sink writer, with hardware
// transforms enabled and throttling disabled per §4.B.
func mfCreateSinkWriterFromMFByteStream(byteStream uintptr) (uintptr, error) {
	attrs, err := mfCreateAttributes(2)
	if err != nil {
		return 0, err
	}
	defer comRelease(attrs)

	if err := attrSetUINT32(attrs, mfReadwriteEnableHardwareTransforms, 1); err != nil {
		return 0, err
	}
	if err := attrSetUINT32(attrs, mfSinkWriterDisableThrottling, 1); err != nil {
		return 0, err
	}
	if err := attrSetGUID(attrs, mfTranscodeContainerType, mfTranscodeContainerTypeFMPEG4); err != nil {
		return 0, err
	}

	var writer uintptr
	ret, _, _ := procMFCreateSinkWriterFromMFByteStream.Call(
		byteStream, 0, attrs, uintptr(unsafe.Pointer(&writer)))
	if int32(ret) < 0 {
		return 0, fmt.Errorf("MFCreateSinkWriterFromMFByteStream: HRESULT 0x%08X", uint32(ret))
	}
	return writer, nil
}
