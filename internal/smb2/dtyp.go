// ref: MS-DTYP

package smb2

import "time"

// Filetime counts 100-nanosecond ticks since 1601-01-01 UTC.
type Filetime uint64

const filetimeEpochDelta = 116444736000000000

func (ft Filetime) Nanoseconds() int64 {
	nsec := int64(ft)
	nsec -= filetimeEpochDelta
	nsec *= 100
	return nsec
}

func (ft Filetime) Time() time.Time {
	if ft == 0 {
		return time.Time{}
	}
	return time.Unix(0, ft.Nanoseconds())
}

func NsecToFiletime(nsec int64) Filetime {
	nsec /= 100
	nsec += filetimeEpochDelta
	return Filetime(nsec)
}

func TimeToFiletime(t time.Time) Filetime {
	if t.IsZero() {
		return 0
	}
	return NsecToFiletime(t.UnixNano())
}
