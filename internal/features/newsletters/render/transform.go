package render

import (
	"fmt"
	"html"
	"strings"

	"letterbox/internal/core"
)

// ContainerClass is the class of the element wrapping every transformed fragment
const ContainerClass = "letterbox-content"

// Options controls which transform steps run
type Options struct {
	MaxWidth               string `json:"maxWidth" yaml:"max_width"`
	PreserveOriginalStyles bool   `json:"preserveOriginalStyles" yaml:"preserve_original_styles"`
	RemoveTrackingPixels   bool   `json:"removeTrackingPixels" yaml:"remove_tracking_pixels"`
	MakeImagesResponsive   bool   `json:"makeImagesResponsive" yaml:"make_images_responsive"`
	FixTableLayouts        bool   `json:"fixTableLayouts" yaml:"fix_table_layouts"`
	EnableDarkMode         bool   `json:"enableDarkMode" yaml:"enable_dark_mode"`
}

// DefaultOptions returns the options used for the reader view
func DefaultOptions() Options {
	return Options{
		MaxWidth:               "100%",
		PreserveOriginalStyles: false,
		RemoveTrackingPixels:   true,
		MakeImagesResponsive:   true,
		FixTableLayouts:        true,
		EnableDarkMode:         true,
	}
}

// TransformError describes a failure inside the HTML pipeline. It is logged,
// never returned to callers.
type TransformError struct {
	Step string
	Err  error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform %s: %v", e.Step, e.Err)
}

func (e *TransformError) Unwrap() error {
	return e.Err
}

// Transformer restructures sanitized newsletter HTML for the reader
type Transformer struct {
	logger *core.Logger
}

// NewTransformer creates a transformer. A nil logger discards output.
func NewTransformer(logger *core.Logger) *Transformer {
	if logger == nil {
		logger = core.NopLogger()
	}
	return &Transformer{logger: logger}
}

// Transform runs the enabled steps in order: tracking removal, image
// responsiveness, fixed-dimension stripping, table normalization, dark mode,
// then the container wrap. It never fails; on error the input is returned
// wrapped in the container untouched.
func (tr *Transformer) Transform(input string, opts Options) (out string) {
	if opts.MaxWidth == "" {
		opts.MaxWidth = "100%"
	}

	defer func() {
		if r := recover(); r != nil {
			err := &TransformError{Step: "document", Err: fmt.Errorf("panic: %v", r)}
			tr.logger.Error("Transform failed, returning original markup", "error", err)
			out = wrapContainer(input, opts)
		}
	}()

	body, err := tr.transform(input, opts)
	if err != nil {
		tr.logger.Error("Transform failed, returning original markup", "error", err)
		return wrapContainer(input, opts)
	}
	return wrapContainer(body, opts)
}

func (tr *Transformer) transform(input string, opts Options) (string, error) {
	t, err := parseTree(input)
	if err != nil {
		return "", &TransformError{Step: "parse", Err: err}
	}

	if opts.RemoveTrackingPixels {
		tr.removeTracking(t)
	}
	if opts.MakeImagesResponsive {
		tr.makeImagesResponsive(t)
	}
	if !opts.PreserveOriginalStyles {
		tr.stripFixedDimensions(t)
	}
	if opts.FixTableLayouts {
		tr.fixTables(t)
	}
	if opts.EnableDarkMode {
		tr.adaptDarkMode(t)
	}

	body, err := t.RenderChildren(t.Root())
	if err != nil {
		return "", &TransformError{Step: "render", Err: err}
	}
	return body, nil
}

// each runs fn for every still-attached id. A panic skips only that element.
func (tr *Transformer) each(t *Tree, step string, ids []NodeID, fn func(id NodeID)) {
	for _, id := range ids {
		if !t.Attached(id) {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					tr.logger.Warn("Skipped element", "step", step, "tag", t.Tag(id), "error", r)
				}
			}()
			fn(id)
		}()
	}
}

// elements returns every live element in document order
func (t *Tree) elements() []NodeID {
	var out []NodeID
	t.Walk(t.Root(), func(id NodeID) {
		out = append(out, id)
	})
	return out
}

func wrapContainer(body string, opts Options) string {
	maxWidth := opts.MaxWidth
	if maxWidth == "" {
		maxWidth = "100%"
	}

	style := []string{
		"all:initial",
		"display:block",
		"box-sizing:border-box",
		"width:100%",
		"max-width:" + maxWidth,
		"margin:0 auto",
		"font-family:-apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif",
		"font-size:16px",
		"line-height:1.6",
		"color:inherit",
		"overflow-wrap:break-word",
	}
	if opts.EnableDarkMode {
		style = append(style, "color-scheme:light dark")
	}

	var b strings.Builder
	b.WriteString(`<div class="`)
	b.WriteString(ContainerClass)
	b.WriteString(`" style="`)
	b.WriteString(html.EscapeString(strings.Join(style, "; ")))
	b.WriteString(`">`)
	b.WriteString(body)
	b.WriteString(`</div>`)
	return b.String()
}
