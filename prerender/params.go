package prerender

import (
	eventloop "github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/go-prerender/domaintask"
)

// BootParams describes the request being rendered, and is passed to the
// boot function. It is built once per render, and is not modified after
// the boot function is called.
type BootParams struct {
	// Data is passed through, unchanged, from the caller.
	Data any

	Location *Location

	// DomainTasks is fulfilled once every task tracked by Tasks has
	// settled. It is never rejected, and is not fulfilled at all if a task
	// fails (the render is rejected instead).
	DomainTasks *eventloop.ChainedPromise

	// Tasks tracks the background work of this render. Work started via
	// Tasks delays DomainTasks.
	Tasks *domaintask.Scope

	// Origin is the scheme and host, e.g. "https://example.com".
	Origin string

	// URL is the request path and query.
	URL string

	// BaseURL is the application's virtual directory, e.g. "/" or "/app/".
	BaseURL string

	AbsoluteURL string
}

// NewBootParams builds the parameters for a render. The Tasks field is
// left unset.
func NewBootParams(absoluteRequestURL, requestPathAndQuery, requestPathBase string, data any, domainTasks *eventloop.ChainedPromise) (*BootParams, error) {
	origin, err := requestOrigin(absoluteRequestURL)
	if err != nil {
		return nil, err
	}

	location, err := ParseLocation(requestPathAndQuery)
	if err != nil {
		return nil, err
	}

	return &BootParams{
		Location:    location,
		Origin:      origin,
		URL:         requestPathAndQuery,
		BaseURL:     NormalizeBaseURL(requestPathBase),
		AbsoluteURL: absoluteRequestURL,
		DomainTasks: domainTasks,
		Data:        data,
	}, nil
}

// AbsoluteBaseURL returns Origin + BaseURL, which is the value of the
// page's <base href>.
func (p *BootParams) AbsoluteBaseURL() string {
	return p.Origin + p.BaseURL
}
