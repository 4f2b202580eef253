package output

import (
	"encoding/hex"
	"io"

	"github.com/segmentio/encoding/json"
)

// ListingEntry 清单中的一行
type ListingEntry struct {
	Offset int           `json:"offset"`
	Bytes  string        `json:"bytes,omitempty"`
	Text   string        `json:"text,omitempty"`
	Reloc  *ListingReloc `json:"reloc,omitempty"`
}

type ListingReloc struct {
	Symbol string `json:"symbol"`
	Kind   string `json:"kind"`
	Width  int    `json:"width"`
	Addend int64  `json:"addend"`
}

// Listing 把单元序列转换为清单条目，offset 从 base 开始
func Listing(units []Unit, base int) []ListingEntry {
	entries := make([]ListingEntry, 0, len(units))
	off := base
	for _, u := range units {
		e := ListingEntry{Offset: off}
		switch u := u.(type) {
		case *Code:
			e.Bytes = hex.EncodeToString(u.Bytes)
			e.Text = u.Text
		case *Reloc:
			e.Reloc = &ListingReloc{
				Symbol: u.Symbol,
				Kind:   u.Kind.String(),
				Width:  u.Width,
				Addend: u.Addend,
			}
		}
		entries = append(entries, e)
		off += u.Len()
	}
	return entries
}

// WriteListing 以 JSON 写出单元序列的清单，供目标文件写出器的调试输出使用
func WriteListing(w io.Writer, units []Unit) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Listing(units, 0))
}
