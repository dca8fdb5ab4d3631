package testsupport

import "bytes"

// TaggedContent builds a minimal MP3-like payload carrying an ID3v1 trailer,
// enough for tag extraction to find a title, artist, album, and year.
func TaggedContent(title, artist, album, year string) []byte {
	pad := func(s string, n int) []byte {
		b := make([]byte, n)
		copy(b, s)
		return b
	}
	var buf bytes.Buffer
	buf.Write(bytes.Repeat([]byte{0x00}, 512))
	buf.WriteString("TAG")
	buf.Write(pad(title, 30))
	buf.Write(pad(artist, 30))
	buf.Write(pad(album, 30))
	buf.Write(pad(year, 4))
	buf.Write(pad("", 30))
	buf.WriteByte(0xFF)
	return buf.Bytes()
}
