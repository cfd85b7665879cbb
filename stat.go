package smbclient

import (
	"os"
	"time"

	"github.com/smbclient-go/smbclient/internal/smb2"
)

// FileAttributes are the MS-FSCC file attribute bits. Unknown bits are kept.
type FileAttributes uint32

const (
	AttributeReadOnly     = FileAttributes(smb2.FILE_ATTRIBUTE_READONLY)
	AttributeHidden       = FileAttributes(smb2.FILE_ATTRIBUTE_HIDDEN)
	AttributeSystem       = FileAttributes(smb2.FILE_ATTRIBUTE_SYSTEM)
	AttributeDirectory    = FileAttributes(smb2.FILE_ATTRIBUTE_DIRECTORY)
	AttributeArchive      = FileAttributes(smb2.FILE_ATTRIBUTE_ARCHIVE)
	AttributeNormal       = FileAttributes(smb2.FILE_ATTRIBUTE_NORMAL)
	AttributeReparsePoint = FileAttributes(smb2.FILE_ATTRIBUTE_REPARSE_POINT)
)

func (a FileAttributes) Has(x FileAttributes) bool {
	return a&x == x
}

// FileStat describes a file or directory. It implements os.FileInfo.
type FileStat struct {
	CreationTime   time.Time
	LastAccessTime time.Time
	LastWriteTime  time.Time
	ChangeTime     time.Time
	EndOfFile      int64
	AllocationSize int64
	FileAttributes FileAttributes
	FileName       string
}

func (fs *FileStat) Name() string {
	return fs.FileName
}

func (fs *FileStat) Size() int64 {
	return fs.EndOfFile
}

func (fs *FileStat) Mode() os.FileMode {
	var m os.FileMode

	if fs.FileAttributes.Has(AttributeDirectory) {
		m |= os.ModeDir | 0111
	}

	if fs.FileAttributes.Has(AttributeReadOnly) {
		m |= 0444
	} else {
		m |= 0666
	}

	if fs.FileAttributes.Has(AttributeReparsePoint) {
		m |= os.ModeSymlink
	}

	return m
}

func (fs *FileStat) ModTime() time.Time {
	return fs.LastWriteTime
}

func (fs *FileStat) IsDir() bool {
	return fs.FileAttributes.Has(AttributeDirectory)
}

func (fs *FileStat) IsHidden() bool {
	return fs.FileAttributes.Has(AttributeHidden)
}

func (fs *FileStat) IsReadOnly() bool {
	return fs.FileAttributes.Has(AttributeReadOnly)
}

func (fs *FileStat) Sys() interface{} {
	return fs
}

// File is one entry of a directory listing.
type File struct {
	FileStat
	ShortName string
	FileId    uint64
	FileIndex uint32
}

func newFile(info *smb2.FileIdBothDirectoryInfo) File {
	return File{
		FileStat: FileStat{
			CreationTime:   info.CreationTime.Time(),
			LastAccessTime: info.LastAccessTime.Time(),
			LastWriteTime:  info.LastWriteTime.Time(),
			ChangeTime:     info.ChangeTime.Time(),
			EndOfFile:      info.EndOfFile,
			AllocationSize: info.AllocationSize,
			FileAttributes: FileAttributes(info.FileAttributes),
			FileName:       info.FileName,
		},
		ShortName: info.ShortName,
		FileId:    info.FileId,
		FileIndex: info.FileIndex,
	}
}

func statFromCreate(name string, res *smb2.CreateResponse) *FileStat {
	return &FileStat{
		CreationTime:   res.CreationTime.Time(),
		LastAccessTime: res.LastAccessTime.Time(),
		LastWriteTime:  res.LastWriteTime.Time(),
		ChangeTime:     res.ChangeTime.Time(),
		EndOfFile:      res.EndOfFile,
		AllocationSize: res.AllocationSize,
		FileAttributes: FileAttributes(res.FileAttributes),
		FileName:       base(name),
	}
}

// FileAllInformation is the FileAllInformation class of QUERY_INFO.
type FileAllInformation struct {
	FileStat
	NumberOfLinks        uint32
	DeletePending        bool
	IndexNumber          uint64
	EaSize               uint32
	AccessFlags          uint32
	CurrentByteOffset    int64
	Mode                 uint32
	AlignmentRequirement uint32
	FullName             string // as reported by the server
}

func newFileAllInformation(name string, info *smb2.FileAllInfo) *FileAllInformation {
	return &FileAllInformation{
		FileStat: FileStat{
			CreationTime:   info.Basic.CreationTime.Time(),
			LastAccessTime: info.Basic.LastAccessTime.Time(),
			LastWriteTime:  info.Basic.LastWriteTime.Time(),
			ChangeTime:     info.Basic.ChangeTime.Time(),
			EndOfFile:      info.Standard.EndOfFile,
			AllocationSize: info.Standard.AllocationSize,
			FileAttributes: FileAttributes(info.Basic.FileAttributes),
			FileName:       base(name),
		},
		NumberOfLinks:        info.Standard.NumberOfLinks,
		DeletePending:        info.Standard.DeletePending,
		IndexNumber:          info.IndexNumber,
		EaSize:               info.EaSize,
		AccessFlags:          info.AccessFlags,
		CurrentByteOffset:    info.CurrentByteOffset,
		Mode:                 info.Mode,
		AlignmentRequirement: info.AlignmentRequired,
		FullName:             info.FileName,
	}
}
