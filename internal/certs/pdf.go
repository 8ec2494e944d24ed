package certs

import (
	"context"
	"fmt"
	"html"
	"time"
)

// PDFRenderer turns HTML into a PDF document. The Gotenberg client in the
// report package satisfies it.
type PDFRenderer interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// RenderPDF produces a printable certificate document.
func (s *Service) RenderPDF(ctx context.Context, renderer PDFRenderer, certificateID string) ([]byte, error) {
	cert, err := s.repo.GetByID(ctx, certificateID)
	if err != nil {
		return nil, err
	}
	return renderer.RenderHTML(ctx, certificateHTML(cert, s.baseURL))
}

func certificateHTML(cert *Certificate, baseURL string) string {
	verifyURL := baseURL + "/verify/" + cert.Serial
	issued := cert.IssuedAt.Format("2 January 2006")
	anchor := "Chain anchor pending"
	if cert.TxHash != "" {
		anchor = "Anchored in transaction " + html.EscapeString(cert.TxHash)
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: Georgia, serif; margin: 4em; color: #1a1a2e; }
.frame { border: 3px double #1a1a2e; padding: 4em; text-align: center; }
h1 { font-size: 2.4em; margin-bottom: 0.2em; }
.serial { font-family: monospace; color: #555; }
.footer { margin-top: 3em; font-size: 0.8em; color: #555; }
</style>
</head>
<body>
<div class="frame">
<p>This certifies that</p>
<h1>%s</h1>
<p>has been awarded</p>
<h2>%s</h2>
<p>%s</p>
<p>Issued on %s</p>
<p class="serial">Serial %s</p>
<div class="footer">
<p>%s</p>
<p>Verify at %s</p>
<p>Generated %s</p>
</div>
</div>
</body>
</html>`,
		html.EscapeString(cert.Title),
		html.EscapeString(cert.RecipientName),
		html.EscapeString(cert.Title),
		html.EscapeString(cert.Description),
		issued,
		html.EscapeString(cert.Serial),
		anchor,
		html.EscapeString(verifyURL),
		time.Now().Format(time.RFC1123),
	)
}
