package render

// Pipeline prepares stored entry HTML for display: sanitize, transform, then
// route marked images through rewrite. A nil rewrite leaves image sources as
// they are.
func (tr *Transformer) Pipeline(raw string, opts Options, rewrite func(src string) string) string {
	clean := Sanitize(raw)
	transformed := tr.Transform(clean, opts)
	return RewriteImages(transformed, rewrite)
}
