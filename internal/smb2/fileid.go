package smb2

import "github.com/smbclient-go/smbclient/internal/smbenc"

// ----------------------------------------------------------------------------
// SMB2 FILEID
//

type FileId struct {
	Persistent [8]byte
	Volatile   [8]byte
}

func (fd *FileId) IsZero() bool {
	return fd == nil || *fd == FileId{}
}

func (fd *FileId) encode(w *smbenc.Writer) {
	if fd == nil {
		w.WriteZeros(16)
		return
	}
	w.WriteBytes(fd.Persistent[:])
	w.WriteBytes(fd.Volatile[:])
}

func decodeFileId(r *smbenc.Reader) *FileId {
	var fd FileId
	r.ReadInto(fd.Persistent[:])
	r.ReadInto(fd.Volatile[:])
	return &fd
}
