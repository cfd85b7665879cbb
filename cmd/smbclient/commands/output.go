package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"github.com/smbclient-go/smbclient"
)

func newTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	return table
}

func printShares(w io.Writer, shares []smbclient.Share) {
	table := newTable(w)
	table.SetHeader([]string{"Name", "Type", "Comment"})
	for _, s := range shares {
		table.Append([]string{s.Name, s.Type.String(), s.Comment})
	}
	table.Render()
}

func printFiles(w io.Writer, files []smbclient.File) {
	table := newTable(w)
	table.SetHeader([]string{"Mode", "Size", "Modified", "Name"})
	for _, f := range files {
		size := humanize.IBytes(uint64(f.Size()))
		name := f.Name()
		if f.IsDir() {
			size = "-"
			name += "/"
		}
		table.Append([]string{f.Mode().String(), size, formatTime(f.ModTime()), name})
	}
	table.Render()
}

func printInfo(w io.Writer, info *smbclient.FileAllInformation) {
	table := newTable(w)
	table.SetAutoFormatHeaders(false)
	for _, kv := range [][2]string{
		{"Name", info.FullName},
		{"Size", fmt.Sprintf("%d (%s)", info.Size(), humanize.IBytes(uint64(info.Size())))},
		{"Allocated", humanize.IBytes(uint64(info.AllocationSize))},
		{"Attributes", formatAttributes(info.FileAttributes)},
		{"Created", formatTime(info.CreationTime)},
		{"Modified", formatTime(info.LastWriteTime)},
		{"Accessed", formatTime(info.LastAccessTime)},
		{"Changed", formatTime(info.ChangeTime)},
		{"Links", fmt.Sprint(info.NumberOfLinks)},
		{"Index", fmt.Sprintf("%#x", info.IndexNumber)},
		{"Delete pending", fmt.Sprint(info.DeletePending)},
	} {
		table.Append([]string{kv[0] + ":", kv[1]})
	}
	table.Render()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	if time.Since(t) < 7*24*time.Hour {
		return humanize.Time(t)
	}
	return t.Local().Format("2006-01-02 15:04")
}

func formatAttributes(a smbclient.FileAttributes) string {
	var names []string
	for _, attr := range []struct {
		bit  smbclient.FileAttributes
		name string
	}{
		{smbclient.AttributeDirectory, "directory"},
		{smbclient.AttributeReadOnly, "readonly"},
		{smbclient.AttributeHidden, "hidden"},
		{smbclient.AttributeSystem, "system"},
		{smbclient.AttributeArchive, "archive"},
		{smbclient.AttributeReparsePoint, "reparse-point"},
	} {
		if a.Has(attr.bit) {
			names = append(names, attr.name)
		}
	}
	if len(names) == 0 {
		return "normal"
	}
	return strings.Join(names, ",")
}

// progressPrinter reports transfer progress on one rewritten line.
func progressPrinter(w io.Writer, name string, size int64) func(float64) {
	last := -1
	return func(p float64) {
		pct := int(p * 100)
		if pct == last {
			return
		}
		last = pct
		fmt.Fprintf(w, "\r%s  %3d%%  %s", name, pct, humanize.IBytes(uint64(float64(size)*p)))
		if pct >= 100 {
			fmt.Fprintln(w)
		}
	}
}
