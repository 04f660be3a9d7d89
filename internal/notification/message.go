package notification

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.Indonesian)

// FormatRupiah renders an amount with Indonesian digit grouping, e.g. Rp 1.000.000.
func FormatRupiah(amount int64) string {
	return printer.Sprintf("Rp %d", amount)
}

var actionTitles = map[string]string{
	"submit":       "Dokumen diajukan",
	"approve":      "Dokumen disetujui",
	"revise":       "Dokumen perlu revisi",
	"create":       "SP2D dibuat",
	"release":      "SP2D diterbitkan",
	"send_to_bank": "SP2D dikirim ke bank",
	"disburse":     "Dana telah cair",
	"fail":         "Pencairan gagal",
}

// Render builds the in-app title and message for ev.
func Render(ev Event) (string, string) {
	title, ok := actionTitles[ev.Action]
	if !ok {
		title = "Pembaruan dokumen"
	}

	var sb strings.Builder
	sb.WriteString(strings.ToUpper(ev.DocumentType))
	if ev.DocumentNumber != "" {
		sb.WriteString(" ")
		sb.WriteString(ev.DocumentNumber)
	} else {
		printer.Fprintf(&sb, " #%d", ev.DocumentID)
	}
	if ev.Amount > 0 {
		sb.WriteString(" senilai ")
		sb.WriteString(FormatRupiah(ev.Amount))
	}
	if ev.Stage != "" {
		sb.WriteString(" pada tahap ")
		sb.WriteString(ev.Stage)
	}
	if ev.ToStatus != "" {
		sb.WriteString(" kini berstatus ")
		sb.WriteString(ev.ToStatus)
	}
	sb.WriteString(".")
	if ev.Notes != "" {
		sb.WriteString(" Catatan: ")
		sb.WriteString(ev.Notes)
	}
	return title, sb.String()
}
