package render

import (
	"bytes"
	"fmt"
	"time"
)

// A4 media box in PDF points.
const (
	pageWidthPt  = 595
	pageHeightPt = 842
)

// writePDF wraps pre-rendered JPEG page images in a minimal PDF container:
// one full-page DCTDecode XObject per page, no fonts, no compression of the
// container itself. CreationDate makes the output an artifact-fingerprint of
// this specific render, not a content-fingerprint.
func writePDF(pages [][]byte, pxWidth, pxHeight int, createdAt time.Time) []byte {
	var buf bytes.Buffer
	var offsets []int

	writeObj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}
	writeStreamObj := func(dict string, stream []byte) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n<< %s /Length %d >>\nstream\n", len(offsets), dict, len(stream))
		buf.Write(stream)
		buf.WriteString("\nendstream\nendobj\n")
	}

	buf.WriteString("%PDF-1.4\n")

	// Object numbering: 1 catalog, 2 pages, 3 info, then per page
	// [page, contents, image] triples.
	pageCount := len(pages)
	kids := make([]string, 0, pageCount)
	for i := 0; i < pageCount; i++ {
		kids = append(kids, fmt.Sprintf("%d 0 R", 4+i*3))
	}

	writeObj("<< /Type /Catalog /Pages 2 0 R >>")
	writeObj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", join(kids, " "), pageCount))
	writeObj(fmt.Sprintf("<< /Producer (rentline) /CreationDate (D:%s) >>", createdAt.UTC().Format("20060102150405")))

	for i, jpeg := range pages {
		pageObj := 4 + i*3
		contentsObj := pageObj + 1
		imageObj := pageObj + 2

		writeObj(fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] /Resources << /XObject << /Im%d %d 0 R >> >> /Contents %d 0 R >>",
			pageWidthPt, pageHeightPt, i, imageObj, contentsObj))

		content := fmt.Sprintf("q %d 0 0 %d 0 0 cm /Im%d Do Q", pageWidthPt, pageHeightPt, i)
		writeStreamObj("", []byte(content))

		writeStreamObj(fmt.Sprintf(
			"/Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter /DCTDecode",
			pxWidth, pxHeight), jpeg)
	}

	xrefStart := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R /Info 3 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xrefStart)

	return buf.Bytes()
}

func join(parts []string, sep string) string {
	var b bytes.Buffer
	for i, p := range parts {
		if i > 0 {
			b.WriteString(sep)
		}
		b.WriteString(p)
	}
	return b.String()
}
