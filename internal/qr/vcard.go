// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package qr

import (
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// DefaultSize is the edge length in pixels of rendered QR codes.
const DefaultSize = 256

// Contact holds the card fields rendered into a vCard. Multi-valued fields
// use the "; " separator produced by extraction.
type Contact struct {
	Name    string
	Company string
	Title   string
	Phone   string
	Email   string
	Address string
}

var vcardEscaper = strings.NewReplacer(`\`, `\\`, ",", `\,`, ";", `\;`, "\r\n", `\n`, "\n", `\n`)

func escape(s string) string {
	return vcardEscaper.Replace(strings.TrimSpace(s))
}

func splitValues(s string) []string {
	var out []string
	for _, v := range strings.Split(s, "; ") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// VCard renders c as a vCard 3.0 document.
func VCard(c Contact) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteString("\r\n")
	}

	line("BEGIN:VCARD")
	line("VERSION:3.0")
	line("N:%s;;;;", escape(c.Name))
	line("FN:%s", escape(c.Name))
	if c.Company != "" {
		line("ORG:%s", escape(c.Company))
	}
	if c.Title != "" {
		line("TITLE:%s", escape(c.Title))
	}
	for _, p := range splitValues(c.Phone) {
		line("TEL;TYPE=WORK,VOICE:%s", escape(p))
	}
	for _, e := range splitValues(c.Email) {
		line("EMAIL;TYPE=INTERNET:%s", escape(e))
	}
	if c.Address != "" {
		line("ADR;TYPE=WORK:;;%s;;;;", escape(c.Address))
	}
	line("END:VCARD")
	return b.String()
}

// EncodePNG renders content as a QR code PNG of size x size pixels.
func EncodePNG(content string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultSize
	}
	png, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
