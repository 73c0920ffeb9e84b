package eventsig

import (
	"bytes"
	"crypto/sha256"
	"strconv"

	"github.com/nosdav/nosdav"
)

const hexDigits = "0123456789abcdef"

// Serialize returns the canonical form hashed to produce an event ID:
//
//	[0,<pubkey>,<created_at>,<kind>,<tags>,<content>]
//
// Strings are escaped the way JSON.stringify escapes them, which is what
// Nostr clients sign.
func Serialize(e nosdav.AuthEvent) []byte {
	var b bytes.Buffer
	b.WriteString("[0,")
	writeString(&b, e.PubKey)
	b.WriteByte(',')
	b.WriteString(strconv.FormatInt(e.CreatedAt, 10))
	b.WriteByte(',')
	b.WriteString(strconv.Itoa(e.Kind))
	b.WriteString(",[")
	for i, tag := range e.Tags {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('[')
		for j, v := range tag {
			if j > 0 {
				b.WriteByte(',')
			}
			writeString(&b, v)
		}
		b.WriteByte(']')
	}
	b.WriteString("],")
	writeString(&b, e.Content)
	b.WriteByte(']')
	return b.Bytes()
}

// Hash returns the SHA-256 of the serialized event, which is the event ID.
func Hash(e nosdav.AuthEvent) [32]byte {
	return sha256.Sum256(Serialize(e))
}

func writeString(b *bytes.Buffer, s string) {
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if c < 0x20 {
				b.WriteString(`\u00`)
				b.WriteByte(hexDigits[c>>4])
				b.WriteByte(hexDigits[c&0xf])
				continue
			}
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
}
