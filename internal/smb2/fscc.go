// ref: MS-FSCC

package smb2

import (
	"fmt"

	"github.com/smbclient-go/smbclient/internal/smbenc"
)

// ----------------------------------------------------------------------------
// File Attributes
//

type FileAttributes uint32

const (
	FILE_ATTRIBUTE_READONLY            FileAttributes = 0x1
	FILE_ATTRIBUTE_HIDDEN              FileAttributes = 0x2
	FILE_ATTRIBUTE_SYSTEM              FileAttributes = 0x4
	FILE_ATTRIBUTE_DIRECTORY           FileAttributes = 0x10
	FILE_ATTRIBUTE_ARCHIVE             FileAttributes = 0x20
	FILE_ATTRIBUTE_NORMAL              FileAttributes = 0x80
	FILE_ATTRIBUTE_TEMPORARY           FileAttributes = 0x100
	FILE_ATTRIBUTE_SPARSE_FILE         FileAttributes = 0x200
	FILE_ATTRIBUTE_REPARSE_POINT       FileAttributes = 0x400
	FILE_ATTRIBUTE_COMPRESSED          FileAttributes = 0x800
	FILE_ATTRIBUTE_OFFLINE             FileAttributes = 0x1000
	FILE_ATTRIBUTE_NOT_CONTENT_INDEXED FileAttributes = 0x2000
	FILE_ATTRIBUTE_ENCRYPTED           FileAttributes = 0x4000
	FILE_ATTRIBUTE_INTEGRITY_STREAM    FileAttributes = 0x8000
	FILE_ATTRIBUTE_NO_SCRUB_DATA       FileAttributes = 0x20000
)

// Has reports whether every bit of x is set. Unknown bits are kept as is.
func (a FileAttributes) Has(x FileAttributes) bool {
	return a&x == x
}

// ----------------------------------------------------------------------------
// File Information Classes
//

type FileInformationClass uint8

const (
	FileDirectoryInformation       FileInformationClass = 0x01
	FileFullDirectoryInformation   FileInformationClass = 0x02
	FileBothDirectoryInformation   FileInformationClass = 0x03
	FileBasicInformation           FileInformationClass = 0x04
	FileStandardInformation        FileInformationClass = 0x05
	FileInternalInformation        FileInformationClass = 0x06
	FileEaInformation              FileInformationClass = 0x07
	FileAccessInformation          FileInformationClass = 0x08
	FileRenameInformation          FileInformationClass = 0x0A
	FileNamesInformation           FileInformationClass = 0x0C
	FileDispositionInformation     FileInformationClass = 0x0D
	FilePositionInformation        FileInformationClass = 0x0E
	FileModeInformation            FileInformationClass = 0x10
	FileAlignmentInformation       FileInformationClass = 0x11
	FileAllInformation             FileInformationClass = 0x12
	FileEndOfFileInformation       FileInformationClass = 0x14
	FileIdBothDirectoryInformation FileInformationClass = 0x25
	FileIdFullDirectoryInformation FileInformationClass = 0x26
	FileIdExtdDirectoryInformation FileInformationClass = 0x3C
)

// ValidateDirectoryClass rejects classes QUERY_DIRECTORY does not define.
func ValidateDirectoryClass(c FileInformationClass) error {
	switch c {
	case FileDirectoryInformation,
		FileFullDirectoryInformation,
		FileBothDirectoryInformation,
		FileIdBothDirectoryInformation,
		FileIdFullDirectoryInformation,
		FileNamesInformation,
		FileIdExtdDirectoryInformation:
		return nil
	}
	return fmt.Errorf("unknown file information class 0x%02x", uint8(c))
}

// ----------------------------------------------------------------------------
// FileIdBothDirectoryInformation
//

type FileIdBothDirectoryInfo struct {
	FileIndex      uint32
	CreationTime   Filetime
	LastAccessTime Filetime
	LastWriteTime  Filetime
	ChangeTime     Filetime
	EndOfFile      int64
	AllocationSize int64
	FileAttributes FileAttributes
	EaSize         uint32
	ShortName      string
	FileId         uint64
	FileName       string
	RawFileName    []byte
	RawShortName   []byte
}

const fileIdBothDirectoryInfoSize = 104

// DirectoryIterator walks a chain of FileIdBothDirectoryInformation records
// inside one OutputBuffer. It is finite and cannot be rewound.
type DirectoryIterator struct {
	buf  []byte
	done bool
	err  error
}

func NewDirectoryIterator(buf []byte) *DirectoryIterator {
	return &DirectoryIterator{buf: buf, done: len(buf) == 0}
}

// Next returns the next record, or nil when the chain ends or is broken.
func (it *DirectoryIterator) Next() *FileIdBothDirectoryInfo {
	if it.done {
		return nil
	}

	r := smbenc.NewReader(it.buf)
	next := r.ReadUint32()
	info := &FileIdBothDirectoryInfo{}
	info.FileIndex = r.ReadUint32()
	info.CreationTime = Filetime(r.ReadUint64())
	info.LastAccessTime = Filetime(r.ReadUint64())
	info.LastWriteTime = Filetime(r.ReadUint64())
	info.ChangeTime = Filetime(r.ReadUint64())
	info.EndOfFile = int64(r.ReadUint64())
	info.AllocationSize = int64(r.ReadUint64())
	info.FileAttributes = FileAttributes(r.ReadUint32())
	nameLen := r.ReadUint32()
	info.EaSize = r.ReadUint32()
	shortLen := r.ReadUint8()
	r.Skip(1)
	short := r.ReadBytes(24)
	r.Skip(2)
	info.FileId = r.ReadUint64()
	info.RawFileName = r.ReadBytes(int(nameLen))
	if shortLen > 24 {
		shortLen = 24
	}
	if short != nil {
		info.RawShortName = short[:shortLen]
	}

	if err := r.Err(); err != nil {
		it.fail(&DecodeError{Command: SMB2_QUERY_DIRECTORY, Message: "directory entry", Err: err})
		return nil
	}

	info.FileName = smbenc.DecodeStringOrHex(info.RawFileName)
	info.ShortName = smbenc.DecodeStringOrHex(info.RawShortName)

	switch {
	case next == 0:
		it.done = true
	case int(next) < fileIdBothDirectoryInfoSize || int(next) > len(it.buf):
		it.fail(&DecodeError{Command: SMB2_QUERY_DIRECTORY, Message: fmt.Sprintf("next entry offset %d out of range", next)})
	default:
		it.buf = it.buf[next:]
		it.done = len(it.buf) == 0
	}

	return info
}

func (it *DirectoryIterator) fail(err error) {
	it.err = err
	it.done = true
}

// Err returns the error that stopped iteration, if any.
func (it *DirectoryIterator) Err() error {
	return it.err
}

// DecodeDirectory collects every record of buf.
func DecodeDirectory(buf []byte) ([]*FileIdBothDirectoryInfo, error) {
	var infos []*FileIdBothDirectoryInfo
	it := NewDirectoryIterator(buf)
	for info := it.Next(); info != nil; info = it.Next() {
		infos = append(infos, info)
	}
	return infos, it.Err()
}

// EncodeDirectory lays out infos as an 8-byte aligned chain.
func EncodeDirectory(infos []*FileIdBothDirectoryInfo) []byte {
	w := smbenc.NewWriter(len(infos) * 128)
	for i, info := range infos {
		start := w.Len()
		name := info.RawFileName
		if name == nil {
			name = smbenc.EncodeString(info.FileName)
		}
		short := info.RawShortName
		if short == nil {
			short = smbenc.EncodeString(info.ShortName)
		}
		if len(short) > 24 {
			short = short[:24]
		}

		w.WriteUint32(0) // NextEntryOffset
		w.WriteUint32(info.FileIndex)
		w.WriteUint64(uint64(info.CreationTime))
		w.WriteUint64(uint64(info.LastAccessTime))
		w.WriteUint64(uint64(info.LastWriteTime))
		w.WriteUint64(uint64(info.ChangeTime))
		w.WriteUint64(uint64(info.EndOfFile))
		w.WriteUint64(uint64(info.AllocationSize))
		w.WriteUint32(uint32(info.FileAttributes))
		w.WriteUint32(uint32(len(name)))
		w.WriteUint32(info.EaSize)
		w.WriteUint8(uint8(len(short)))
		w.WriteUint8(0)
		w.WriteBytes(short)
		w.WriteZeros(24 - len(short))
		w.WriteUint16(0)
		w.WriteUint64(info.FileId)
		w.WriteBytes(name)

		if i < len(infos)-1 {
			w.Pad(8)
			w.PutUint32At(start, uint32(w.Len()-start))
		}
	}
	return w.Bytes()
}

// ----------------------------------------------------------------------------
// FileAllInformation
//

type FileBasicInfo struct {
	CreationTime   Filetime
	LastAccessTime Filetime
	LastWriteTime  Filetime
	ChangeTime     Filetime
	FileAttributes FileAttributes
}

func (c *FileBasicInfo) Encode(w *smbenc.Writer) {
	w.WriteUint64(uint64(c.CreationTime))
	w.WriteUint64(uint64(c.LastAccessTime))
	w.WriteUint64(uint64(c.LastWriteTime))
	w.WriteUint64(uint64(c.ChangeTime))
	w.WriteUint32(uint32(c.FileAttributes))
	w.WriteUint32(0)
}

func (c *FileBasicInfo) decode(r *smbenc.Reader) {
	c.CreationTime = Filetime(r.ReadUint64())
	c.LastAccessTime = Filetime(r.ReadUint64())
	c.LastWriteTime = Filetime(r.ReadUint64())
	c.ChangeTime = Filetime(r.ReadUint64())
	c.FileAttributes = FileAttributes(r.ReadUint32())
	r.Skip(4)
}

type FileStandardInfo struct {
	AllocationSize int64
	EndOfFile      int64
	NumberOfLinks  uint32
	DeletePending  bool
	Directory      bool
}

func (c *FileStandardInfo) Encode(w *smbenc.Writer) {
	w.WriteUint64(uint64(c.AllocationSize))
	w.WriteUint64(uint64(c.EndOfFile))
	w.WriteUint32(c.NumberOfLinks)
	w.WriteUint8(boolByte(c.DeletePending))
	w.WriteUint8(boolByte(c.Directory))
	w.WriteUint16(0)
}

func (c *FileStandardInfo) decode(r *smbenc.Reader) {
	c.AllocationSize = int64(r.ReadUint64())
	c.EndOfFile = int64(r.ReadUint64())
	c.NumberOfLinks = r.ReadUint32()
	c.DeletePending = r.ReadUint8() != 0
	c.Directory = r.ReadUint8() != 0
	r.Skip(2)
}

type FileAllInfo struct {
	Basic             FileBasicInfo
	Standard          FileStandardInfo
	IndexNumber       uint64
	EaSize            uint32
	AccessFlags       uint32
	CurrentByteOffset int64
	Mode              uint32
	AlignmentRequired uint32
	FileName          string
}

func (c *FileAllInfo) Encode(w *smbenc.Writer) {
	c.Basic.Encode(w)
	c.Standard.Encode(w)
	w.WriteUint64(c.IndexNumber)
	w.WriteUint32(c.EaSize)
	w.WriteUint32(c.AccessFlags)
	w.WriteUint64(uint64(c.CurrentByteOffset))
	w.WriteUint32(c.Mode)
	w.WriteUint32(c.AlignmentRequired)
	name := smbenc.EncodeString(c.FileName)
	w.WriteUint32(uint32(len(name)))
	w.WriteBytes(name)
}

func DecodeFileAllInfo(buf []byte) (*FileAllInfo, error) {
	var c FileAllInfo

	r := smbenc.NewReader(buf)
	c.Basic.decode(r)
	c.Standard.decode(r)
	c.IndexNumber = r.ReadUint64()
	c.EaSize = r.ReadUint32()
	c.AccessFlags = r.ReadUint32()
	c.CurrentByteOffset = int64(r.ReadUint64())
	c.Mode = r.ReadUint32()
	c.AlignmentRequired = r.ReadUint32()
	n := r.ReadUint32()
	name := r.ReadBytes(int(n))
	if err := r.Err(); err != nil {
		return nil, &DecodeError{Command: SMB2_QUERY_INFO, Message: "file all information", Err: err}
	}
	c.FileName = smbenc.DecodeStringOrHex(name)
	return &c, nil
}

// ----------------------------------------------------------------------------
// SET_INFO input buffers
//

type InfoEncoder interface {
	Class() FileInformationClass
	Encode(w *smbenc.Writer)
}

func (c *FileBasicInfo) Class() FileInformationClass { return FileBasicInformation }

// FileRenameInformationType2
type FileRenameInfo struct {
	ReplaceIfExists bool
	RootDirectory   uint64
	FileName        string
}

func (c *FileRenameInfo) Class() FileInformationClass { return FileRenameInformation }

func (c *FileRenameInfo) Encode(w *smbenc.Writer) {
	name := smbenc.EncodeString(c.FileName)
	w.WriteUint8(boolByte(c.ReplaceIfExists))
	w.WriteZeros(7)
	w.WriteUint64(c.RootDirectory)
	w.WriteUint32(uint32(len(name)))
	w.WriteBytes(name)
}

func DecodeFileRenameInfo(buf []byte) (*FileRenameInfo, error) {
	var c FileRenameInfo

	r := smbenc.NewReader(buf)
	c.ReplaceIfExists = r.ReadUint8() != 0
	r.Skip(7)
	c.RootDirectory = r.ReadUint64()
	n := r.ReadUint32()
	name := r.ReadBytes(int(n))
	if err := r.Err(); err != nil {
		return nil, &DecodeError{Command: SMB2_SET_INFO, Message: "file rename information", Err: err}
	}
	var err error
	c.FileName, err = smbenc.DecodeString(name)
	if err != nil {
		return nil, &DecodeError{Command: SMB2_SET_INFO, Message: "file rename information", Err: err}
	}
	return &c, nil
}

type FileDispositionInfo struct {
	DeletePending bool
}

func (c *FileDispositionInfo) Class() FileInformationClass { return FileDispositionInformation }

func (c *FileDispositionInfo) Encode(w *smbenc.Writer) {
	w.WriteUint8(boolByte(c.DeletePending))
}

type FileEndOfFileInfo struct {
	EndOfFile int64
}

func (c *FileEndOfFileInfo) Class() FileInformationClass { return FileEndOfFileInformation }

func (c *FileEndOfFileInfo) Encode(w *smbenc.Writer) {
	w.WriteUint64(uint64(c.EndOfFile))
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
