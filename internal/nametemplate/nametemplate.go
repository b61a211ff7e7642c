// Package nametemplate expands the raw-file output filename template
// consumed by cmd/dcdownload (spec §6): %t for device time, %f for
// fingerprint hex, %n for a running dive index, %% for a literal percent.
package nametemplate

import (
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// Fields supplies the values substituted into a template.
type Fields struct {
	DeviceTime  time.Time
	Fingerprint []byte
	Index       int
}

// Expand replaces %t/%f/%n/%% in template with f's values. %t formats the
// UTC time as YYYYMMDDThhmmss (filesystem-safe); %f is lowercase hex; %n
// is the decimal dive index, left-padded to at least 3 digits so a
// directory listing sorts numerically for any realistic dive count.
func Expand(template string, f Fields) string {
	var b strings.Builder
	for i := 0; i < len(template); i++ {
		c := template[i]
		if c != '%' || i+1 >= len(template) {
			b.WriteByte(c)
			continue
		}
		i++
		switch template[i] {
		case 't':
			b.WriteString(strings.ReplaceAll(f.DeviceTime.UTC().Format("20060102T150405"), ":", ""))
		case 'f':
			b.WriteString(hex.EncodeToString(f.Fingerprint))
		case 'n':
			s := strconv.Itoa(f.Index)
			for len(s) < 3 {
				s = "0" + s
			}
			b.WriteString(s)
		case '%':
			b.WriteByte('%')
		default:
			b.WriteByte('%')
			b.WriteByte(template[i])
		}
	}
	return b.String()
}
