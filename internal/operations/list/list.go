package list

import (
	"context"
	"strings"

	"github.com/s3desk/s3desk/internal/gateway"
	"github.com/s3desk/s3desk/internal/validation"
	"github.com/s3desk/s3desk/s3types"
)

// Store is the part of the remote store listings need.
type Store interface {
	ListPage(ctx context.Context, in gateway.ListInput) (*gateway.Page, error)
}

// Lister walks the bucket a page at a time.
type Lister struct {
	store       Store
	activityKey string
	pageSize    int32
}

// Option configures a Lister.
type Option func(*Lister)

// WithPageSize sets how many keys each page requests. Values outside
// (0, 1000] fall back to 1000.
func WithPageSize(n int32) Option {
	return func(l *Lister) {
		if n > 0 && n <= 1000 {
			l.pageSize = n
		}
	}
}

// New creates a Lister. activityKey is hidden from every listing.
func New(store Store, activityKey string, opts ...Option) *Lister {
	l := &Lister{
		store:       store,
		activityKey: activityKey,
		pageSize:    1000,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Hidden reports whether key is left out of listings: folder markers and
// any object named like the activity log, at any depth.
func (l *Lister) Hidden(key string) bool {
	if strings.HasSuffix(key, "/") {
		return true
	}
	return l.activityKey != "" && validation.BaseName(key) == validation.BaseName(l.activityKey)
}

// Paginator starts a page-by-page listing of prefix.
func (l *Lister) Paginator(prefix, delimiter string) *Paginator {
	return &Paginator{
		store: l.store,
		input: gateway.ListInput{
			Prefix:    prefix,
			Delimiter: delimiter,
			MaxKeys:   l.pageSize,
		},
		firstPage: true,
	}
}

// View lists one folder level: sub-folders first, then files. Folder
// markers and the activity log are left out.
func (l *Lister) View(ctx context.Context, folder string) ([]s3types.Object, error) {
	prefix := validation.FolderPrefix(folder)
	if err := validation.ValidatePrefix(prefix); err != nil {
		return nil, err
	}

	var folders, files []s3types.Object
	p := l.Paginator(prefix, "/")
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, sub := range page.Prefixes {
			folders = append(folders, s3types.Object{
				Key:  sub,
				Name: validation.BaseName(sub),
				Type: s3types.ObjectTypeFolder,
			})
		}
		for _, obj := range page.Objects {
			if l.Hidden(obj.Key) {
				continue
			}
			files = append(files, obj)
		}
	}
	return append(folders, files...), nil
}

// ObjectResult wraps an object or error.
type ObjectResult struct {
	Object s3types.Object
	Err    error
}

// Stream sends every visible object under prefix, across all pages and
// without a delimiter. A listing error is sent as the last result.
func (l *Lister) Stream(ctx context.Context, prefix string) <-chan ObjectResult {
	results := make(chan ObjectResult, 100)

	go func() {
		defer close(results)

		p := l.Paginator(prefix, "")
		for p.HasMorePages() {
			page, err := p.NextPage(ctx)
			if err != nil {
				select {
				case results <- ObjectResult{Err: err}:
				case <-ctx.Done():
				}
				return
			}

			for _, obj := range page.Objects {
				if l.Hidden(obj.Key) {
					continue
				}
				select {
				case results <- ObjectResult{Object: obj}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return results
}

// All collects every visible object under prefix in key order.
func (l *Lister) All(ctx context.Context, prefix string) ([]s3types.Object, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var objects []s3types.Object
	for r := range l.Stream(ctx, prefix) {
		if r.Err != nil {
			return nil, r.Err
		}
		objects = append(objects, r.Object)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return objects, nil
}

// Paginator walks a listing page by page.
type Paginator struct {
	store        Store
	input        gateway.ListInput
	hasMorePages bool
	firstPage    bool
}

// HasMorePages returns true if there are more pages to fetch.
func (p *Paginator) HasMorePages() bool {
	return p.firstPage || p.hasMorePages
}

// NextPage fetches the next page of results.
func (p *Paginator) NextPage(ctx context.Context) (*gateway.Page, error) {
	page, err := p.store.ListPage(ctx, p.input)
	if err != nil {
		return nil, err
	}

	p.firstPage = false
	// a truncated page without a token would loop forever
	p.hasMorePages = page.Truncated && page.NextToken != ""
	p.input.Token = page.NextToken
	return page, nil
}
