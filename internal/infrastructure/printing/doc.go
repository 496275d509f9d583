// Package printing turns invoices into PDF documents.
//
// The Layout renders an invoice as a self-contained HTML page, the Capturer
// inlines the assets a captured page references, and a Renderer prints the
// resulting document. Two renderers exist: ChromedpRenderer drives headless
// Chrome in-process and backs the standalone rendering service, while
// RenderClient posts documents to that service over HTTP.
//
//	client := NewRenderClient(cfg.Renderer, cfg.App, log)
//	result, err := client.Render(ctx, &RenderRequest{HTML: html, Filename: "Invoice-1.pdf"})
package printing
