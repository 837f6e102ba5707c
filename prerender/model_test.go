package prerender

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocation(t *testing.T) {
	for _, tc := range [...]struct {
		name string
		in   string
		want *Location
	}{
		{
			name: `full`,
			in:   `/products/a%20b?page=2&tag=x&tag=y#reviews`,
			want: &Location{
				Href:     `/products/a%20b?page=2&tag=x&tag=y#reviews`,
				Path:     `/products/a%20b?page=2&tag=x&tag=y`,
				Pathname: `/products/a%20b`,
				Search:   `?page=2&tag=x&tag=y`,
				Hash:     `#reviews`,
				Query: map[string]any{
					`page`: `2`,
					`tag`:  []string{`x`, `y`},
				},
			},
		},
		{
			name: `root`,
			in:   `/`,
			want: &Location{
				Href:     `/`,
				Path:     `/`,
				Pathname: `/`,
				Query:    map[string]any{},
			},
		},
		{
			name: `empty query`,
			in:   `/search?`,
			want: &Location{
				Href:     `/search?`,
				Path:     `/search?`,
				Pathname: `/search`,
				Search:   `?`,
				Query:    map[string]any{},
			},
		},
		{
			name: `malformed pair skipped`,
			in:   `/x?a=1&b=%zz`,
			want: &Location{
				Href:     `/x?a=1&b=%zz`,
				Path:     `/x?a=1&b=%zz`,
				Pathname: `/x`,
				Search:   `?a=1&b=%zz`,
				Query:    map[string]any{`a`: `1`},
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseLocation(tc.in)
			require.NoError(t, err)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("ParseLocation(%q) mismatch (-want +got):\n%s", tc.in, diff)
			}
		})
	}

	_, err := ParseLocation("/bad\x7f")
	assert.Error(t, err)
}

func TestNormalizeBaseURL(t *testing.T) {
	for _, tc := range [...]struct {
		in, out string
	}{
		{``, `/`},
		{`/`, `/`},
		{`/app`, `/app/`},
		{`/app/`, `/app/`},
		{`/app//`, `/app/`},
		{`app`, `/app/`},
		{`/a/b`, `/a/b/`},
	} {
		assert.Equal(t, tc.out, NormalizeBaseURL(tc.in), tc.in)
	}
}

func TestNewBootParams(t *testing.T) {
	p, err := NewBootParams(`http://localhost:5000/sub/x?y=1`, `/x?y=1`, `/sub/`, 42, nil)
	require.NoError(t, err)
	assert.Equal(t, `http://localhost:5000`, p.Origin)
	assert.Equal(t, `/sub/`, p.BaseURL)
	assert.Equal(t, `http://localhost:5000/sub/`, p.AbsoluteBaseURL())
	assert.Equal(t, 42, p.Data)
	assert.Nil(t, p.Tasks)

	_, err = NewBootParams(`localhost:5000`, `/`, ``, nil, nil)
	assert.Error(t, err)
}

func TestAsRenderResult(t *testing.T) {
	for _, tc := range [...]struct {
		name string
		in   any
		out  *RenderResult
		err  bool
	}{
		{
			name: `pointer`,
			in:   &RenderResult{HTML: `x`},
			out:  &RenderResult{HTML: `x`},
		},
		{
			name: `value`,
			in:   RenderResult{RedirectURL: `/login`},
			out:  &RenderResult{RedirectURL: `/login`},
		},
		{
			name: `map page`,
			in: map[string]any{
				`html`:       `<p>hi</p>`,
				`statusCode`: float64(404),
				`globals`:    map[string]any{`__STATE__`: map[string]any{}},
			},
			out: &RenderResult{
				HTML:       `<p>hi</p>`,
				StatusCode: 404,
				Globals:    map[string]any{`__STATE__`: map[string]any{}},
			},
		},
		{
			name: `map int64 status`,
			in:   map[string]any{`html`: ``, `statusCode`: int64(201)},
			out:  &RenderResult{StatusCode: 201},
		},
		{
			name: `map redirect`,
			in:   map[string]any{`redirectUrl`: `/elsewhere`},
			out:  &RenderResult{RedirectURL: `/elsewhere`},
		},
		{name: `mixed`, in: map[string]any{`html`: `x`, `redirectUrl`: `/y`}, err: true},
		{name: `mixed struct`, in: &RenderResult{HTML: `x`, RedirectURL: `/y`}, err: true},
		{
			name: `map empty html`,
			in:   map[string]any{`html`: ``},
			out:  &RenderResult{},
		},
		{
			name: `empty page with status`,
			in:   RenderResult{StatusCode: 204},
			out:  &RenderResult{StatusCode: 204},
		},
		{name: `empty map`, in: map[string]any{}, err: true},
		{name: `zero struct`, in: RenderResult{}, err: true},
		{name: `zero pointer`, in: &RenderResult{}, err: true},
		{name: `bad html`, in: map[string]any{`html`: 5}, err: true},
		{name: `bad status`, in: map[string]any{`html`: `x`, `statusCode`: 200.5}, err: true},
		{name: `bad globals`, in: map[string]any{`html`: `x`, `globals`: `nope`}, err: true},
		{name: `string`, in: `<p>hi</p>`, err: true},
		{name: `nil`, in: nil, err: true},
		{name: `nil pointer`, in: (*RenderResult)(nil), err: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			out, err := AsRenderResult(tc.in)
			if tc.err {
				assert.ErrorIs(t, err, ErrInvalidRenderResult)
				assert.Nil(t, out)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.out, out)
		})
	}
}

func TestErrors(t *testing.T) {
	ce := &ContractError{Module: `boot.js`}
	assert.ErrorIs(t, ce, ErrNoPromise)
	assert.NotErrorIs(t, ce, ErrTimeout)
	assert.Equal(t, `Prerendering failed because the boot function in boot.js did not return a promise.`, ce.Error())

	te := &TimeoutError{Module: `boot.js`, Timeout: 1500 * time.Millisecond}
	assert.ErrorIs(t, te, ErrTimeout)
	assert.Contains(t, te.Error(), `Prerendering timed out after 1500ms because the boot function in 'boot.js'`)
}
