package prerender

import (
	"fmt"
	"math"
)

// BootModuleInfo identifies the module providing the boot function.
type BootModuleInfo struct {
	ModuleName    string `json:"moduleName" validate:"required"`
	ExportName    string `json:"exportName,omitempty"`
	WebpackConfig string `json:"webpackConfig,omitempty"`
}

// RenderResult is the outcome of a successful render: either a page
// (HTML, with optional StatusCode and Globals), or a redirect
// (RedirectURL only).
type RenderResult struct {
	Globals     map[string]any `json:"globals,omitempty"`
	HTML        string         `json:"html,omitempty"`
	RedirectURL string         `json:"redirectUrl,omitempty"`
	StatusCode  int            `json:"statusCode,omitempty"`
}

// IsRedirect reports whether r is a redirect instruction.
func (r *RenderResult) IsRedirect() bool {
	return r != nil && r.RedirectURL != ``
}

// Validate returns an error if r mixes the page and redirect shapes, or is
// the zero value, which is neither. An empty page must set StatusCode or
// Globals, e.g. RenderResult{StatusCode: 204}.
func (r *RenderResult) Validate() error {
	if err := r.validateShape(); err != nil {
		return err
	}
	if r.HTML == `` && r.RedirectURL == `` && r.StatusCode == 0 && r.Globals == nil {
		return fmt.Errorf(`%w: expected html or redirectUrl`, ErrInvalidRenderResult)
	}
	return nil
}

func (r *RenderResult) validateShape() error {
	if r == nil {
		return fmt.Errorf(`%w: nil`, ErrInvalidRenderResult)
	}
	if r.RedirectURL != `` && (r.HTML != `` || r.StatusCode != 0 || r.Globals != nil) {
		return fmt.Errorf(`%w: redirectUrl may not be combined with page fields`, ErrInvalidRenderResult)
	}
	if r.StatusCode < 0 {
		return fmt.Errorf(`%w: negative status code %d`, ErrInvalidRenderResult, r.StatusCode)
	}
	return nil
}

// AsRenderResult converts the fulfilment value of a render into a
// validated [RenderResult]. Supported values are *RenderResult,
// RenderResult, and map[string]any, the latter being the form exported by
// JavaScript objects.
func AsRenderResult(v any) (*RenderResult, error) {
	var (
		r   *RenderResult
		err error
	)
	switch v := v.(type) {
	case *RenderResult:
		r, err = v, v.Validate()
	case RenderResult:
		r, err = &v, v.Validate()
	case map[string]any:
		// presence of the html key is checked, so {html: ''} is a page
		if r, err = renderResultFromMap(v); err == nil {
			err = r.validateShape()
		}
	default:
		err = fmt.Errorf(`%w: unsupported type %T`, ErrInvalidRenderResult, v)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func renderResultFromMap(m map[string]any) (*RenderResult, error) {
	var r RenderResult

	html, hasHTML := m[`html`]
	redirect, hasRedirect := m[`redirectUrl`]
	if !hasHTML && !hasRedirect {
		return nil, fmt.Errorf(`%w: expected html or redirectUrl`, ErrInvalidRenderResult)
	}

	if hasRedirect && redirect != nil {
		s, ok := redirect.(string)
		if !ok {
			return nil, fmt.Errorf(`%w: redirectUrl must be a string, got %T`, ErrInvalidRenderResult, redirect)
		}
		r.RedirectURL = s
	}

	if hasHTML && html != nil {
		s, ok := html.(string)
		if !ok {
			return nil, fmt.Errorf(`%w: html must be a string, got %T`, ErrInvalidRenderResult, html)
		}
		r.HTML = s
	}

	if v, ok := m[`statusCode`]; ok && v != nil {
		code, err := toStatusCode(v)
		if err != nil {
			return nil, err
		}
		r.StatusCode = code
	}

	if v, ok := m[`globals`]; ok && v != nil {
		g, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf(`%w: globals must be an object, got %T`, ErrInvalidRenderResult, v)
		}
		r.Globals = g
	}

	return &r, nil
}

func toStatusCode(v any) (int, error) {
	switch v := v.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf(`%w: statusCode must be an integer, got %v`, ErrInvalidRenderResult, v)
		}
		return int(v), nil
	default:
		return 0, fmt.Errorf(`%w: statusCode must be a number, got %T`, ErrInvalidRenderResult, v)
	}
}

// Request holds the parameters of [Renderer.RenderToString], for callers
// that are not positional, e.g. [Host.Render].
type Request struct {
	// CustomDataParameter is passed through to [BootParams.Data].
	CustomDataParameter any            `json:"customDataParameter,omitempty"`
	BootModule          BootModuleInfo `json:"bootModule"`
	ApplicationBasePath string         `json:"applicationBasePath"`
	AbsoluteRequestURL  string         `json:"absoluteRequestUrl" validate:"required,url"`
	RequestPathAndQuery string         `json:"requestPathAndQuery" validate:"required,startswith=/"`
	RequestPathBase     string         `json:"requestPathBase,omitempty"`
	// OverrideTimeoutMilliseconds: 0 uses the default, negative disables.
	OverrideTimeoutMilliseconds int `json:"overrideTimeoutMilliseconds,omitempty"`
}
